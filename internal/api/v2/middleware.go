// internal/api/v2/middleware.go
package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/birdnetpi/speciestools/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"

	defaultRateLimit     = 2 // requests per second on mutating routes
	rateLimitBurst       = 5
	rateLimitStoreExpiry = 3 * time.Minute
)

// requestLogger assigns every request a trace ID, carries it in the request
// context and logs the outcome to the api module.
func (c *Controller) requestLogger() echo.MiddlewareFunc {
	traceIDs := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id := ctx.Request().Header.Get(headerRequestID)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			ctx.Response().Header().Set(headerRequestID, id)
			req := ctx.Request()
			ctx.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
			return next(ctx)
		}
	}

	logRequests := middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(ctx echo.Context, v middleware.RequestLoggerValues) error {
			log := c.logger.WithContext(ctx.Request().Context())
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency),
				logger.String("remote_ip", v.RemoteIP),
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				log.Error("HTTP request", fields...)
			case v.Status >= http.StatusBadRequest:
				log.Warn("HTTP request", fields...)
			case c.Settings.WebServer.Debug:
				log.Info("HTTP request", fields...)
			default:
				log.Debug("HTTP request", fields...)
			}
			return nil
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return traceIDs(logRequests(next))
	}
}

// rateLimiter limits mutating routes per client IP.
func (c *Controller) rateLimiter() echo.MiddlewareFunc {
	limit := c.Settings.WebServer.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(limit),
				Burst:     rateLimitBurst,
				ExpiresIn: rateLimitStoreExpiry,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return c.HandleError(ctx, err, "Failed to identify client", http.StatusForbidden)
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			ctx.Response().Header().Set("Retry-After", "1")
			return c.HandleError(ctx, err, "Too many requests, please wait before trying again", http.StatusTooManyRequests)
		},
	})
}
