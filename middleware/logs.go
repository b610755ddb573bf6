package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const RequestIDHeader = "X-Request-ID"

// LogConfig holds configuration for the logging middleware
type LogConfig struct {
	Logger *zap.Logger
	// Skip logging for specific paths
	SkipPaths []string
	// Include the caller's username in logs
	IncludeUser bool
}

// DefaultLogConfig returns a default configuration for the logging middleware
func DefaultLogConfig(logger *zap.Logger) LogConfig {
	return LogConfig{
		Logger:      logger,
		SkipPaths:   []string{"/health"},
		IncludeUser: true,
	}
}

// LoggingMiddleware tags every request with a request id and writes one
// structured line once the handler chain has finished.
func LoggingMiddleware(cfg LogConfig) fiber.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Locals("request_id", requestID)
		c.Set(RequestIDHeader, requestID)

		if skip[c.Path()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.IP()),
			zap.String("user_agent", c.Get(fiber.HeaderUserAgent)),
			zap.Int("content_length", len(c.Response().Body())),
		}
		if cfg.IncludeUser {
			if caller, ok := CallerFrom(c); ok {
				fields = append(fields, zap.String("username", caller.Username), zap.String("role", string(caller.Role)))
			}
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		logger.Log(levelFor(status, err), "Request", fields...)
		return err
	}
}

func levelFor(status int, err error) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400 || err != nil:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// RequestLogger creates a middleware that logs detailed request information
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return LoggingMiddleware(DefaultLogConfig(logger))
}
