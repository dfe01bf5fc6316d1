// internal/api/v2/api.go
package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/observability"
	"github.com/birdnetpi/speciestools/internal/species"
)

// apiPrefix is the mount point of the species routes.
const apiPrefix = "/api/v2"

// Controller manages the API routes and handlers
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Species  *species.Manager
	Settings *conf.Settings

	metrics *observability.Metrics
	logger  logger.Logger

	// authMiddleware is injected by the caller when basic auth is disabled.
	authMiddleware echo.MiddlewareFunc
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithAuthMiddleware sets the authentication middleware used when basic auth
// is not enabled in settings.
func WithAuthMiddleware(mw echo.MiddlewareFunc) Option {
	return func(c *Controller) {
		c.authMiddleware = mw
	}
}

// WithMetrics exposes m on /metrics when metrics are enabled.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithLogger replaces the api module logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// GetLogger returns the api module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// New creates the controller and registers its routes on e.
func New(e *echo.Echo, manager *species.Manager, settings *conf.Settings, opts ...Option) (*Controller, error) {
	if manager == nil || settings == nil {
		return nil, errors.Newf("api controller requires a species manager and settings").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	c := &Controller{
		Echo:     e,
		Species:  manager,
		Settings: settings,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = GetLogger()
	}

	e.IPExtractor = echo.ExtractIPDirect()
	e.HTTPErrorHandler = c.httpErrorHandler
	e.Use(c.requestLogger())

	c.initRoutes()
	return c, nil
}

// initRoutes registers every route. All of them sit behind authentication;
// mutating ones are also rate limited.
func (c *Controller) initRoutes() {
	auth := c.getEffectiveAuthMiddleware()
	limit := c.rateLimiter()

	c.Group = c.Echo.Group(apiPrefix, auth)
	c.initSpeciesRoutes(limit)

	c.Echo.GET("/scripts/species_tools.php", c.LegacySpeciesTools, auth, limit)

	if c.Settings.Metrics.Enabled && c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()), auth)
	}
}

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// NewErrorResponse creates a new API error response. File system paths and
// credentials are scrubbed from the error text.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = errors.ScrubMessage(err.Error())
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString(),
	}
}

// HandleError logs err and writes an ErrorResponse.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorResp := NewErrorResponse(err, message, code)

	log := c.logger.WithContext(ctx.Request().Context())
	fields := []logger.Field{
		logger.String("correlation_id", errorResp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
		logger.Error(err),
	}
	if code >= http.StatusInternalServerError {
		log.Error("API error", fields...)
	} else {
		log.Warn("API error", fields...)
	}

	return ctx.JSON(code, errorResp)
}

// httpErrorHandler renders echo errors (unknown routes, auth failures) in the
// same shape as handler errors.
func (c *Controller) httpErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
		// only a wrapped cause is reported as the error text
		err = he.Internal
	}
	if code == http.StatusUnauthorized && ctx.Response().Header().Get(echo.HeaderWWWAuthenticate) == "" &&
		c.Settings.Security.BasicAuth.Enabled {
		ctx.Response().Header().Set(echo.HeaderWWWAuthenticate, `Basic realm="speciestools"`)
	}
	if herr := c.HandleError(ctx, err, message, code); herr != nil {
		c.logger.Error("Failed to write error response", logger.Error(herr))
	}
}
