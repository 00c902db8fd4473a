package http

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/supportdesk/ticketflow/internal/observability"
	apperrors "github.com/supportdesk/ticketflow/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger))
}

// requestTimeoutMiddleware bounds the context a workflow operation and its
// transaction retries run under.
func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewInternalError(nil)
			}
			if err != nil {
				domainErr := toDomainError(err)
				response := fiber.Map{"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				}}
				if len(domainErr.Details) > 0 {
					response["error"].(fiber.Map)["details"] = domainErr.Details
				}
				if domainErr.HTTPStatus >= 500 {
					logger.Error("request failed", zap.Error(domainErr))
				}
				c.Status(domainErr.HTTPStatus)
				_ = c.JSON(response)
				err = nil
			}
		}()
		return c.Next()
	}
}

// toDomainError also covers fiber's own errors, such as unknown routes.
func toDomainError(err error) *apperrors.DomainError {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return apperrors.ToDomainError(err)
	}
	code := apperrors.CodeValidation
	switch {
	case fiberErr.Code == http.StatusNotFound:
		code = apperrors.CodeNotFound
	case fiberErr.Code == http.StatusUnauthorized:
		code = apperrors.CodeUnauthorized
	case fiberErr.Code == http.StatusForbidden:
		code = apperrors.CodeForbidden
	case fiberErr.Code >= http.StatusInternalServerError:
		return apperrors.ToDomainError(apperrors.NewInternalError(err))
	}
	return apperrors.NewDomainError(code, fiberErr.Message, fiberErr.Code, nil)
}
