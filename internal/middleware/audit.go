package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit emits structured logs for each request/response lifecycle event.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		duration := time.Since(start)
		requestID := RequestIDFrom(c)

		// The error handler has not run yet, so the response status is stale on error.
		status := c.Response().StatusCode()
		var fe *fiber.Error
		isFiberErr := err != nil && errors.As(err, &fe)
		switch {
		case isFiberErr:
			status = fe.Code
		case err != nil:
			status = fiber.StatusInternalServerError
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.String("ip", c.IP()),
		}
		if requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if err != nil {
			if isFiberErr && status < fiber.StatusInternalServerError {
				logger.Warn("request completed", attrs...)
				return err
			}
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
