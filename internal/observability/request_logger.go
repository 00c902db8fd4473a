package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// RequestLogger logs and measures every request. The route label is the
// registered pattern, so ticket ids do not explode metric cardinality.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		// Method and path alias the request buffer, which fiber reuses for
		// the next request; label values outlive it.
		method := utils.CopyString(c.Method())
		path := utils.CopyString(c.Path())
		status := c.Response().StatusCode()
		route := path
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		metrics.RecordRequest(route, method, status, latency)
		logger.Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("latency", latency))
		return err
	}
}
