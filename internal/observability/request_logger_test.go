package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequestLoggerLabelsSurviveContextReuse(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Post("/x", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })
	app.Get("/y", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	requests := []struct{ method, path string }{
		{"POST", "/x"},
		{"GET", "/y"},
		{"GET", "/y"},
		{"GET", "/y"},
	}
	for _, r := range requests {
		resp, err := app.Test(httptest.NewRequest(r.method, r.path, nil), -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/x", "201")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/y", "200")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.httpRequests))
}

func TestRequestLoggerFallsBackToPathForUnknownRoutes(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, 1, testutil.CollectAndCount(m.httpRequests))
}
