package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/birdnetpi/speciestools/internal/logger"
)

// getEffectiveAuthMiddleware returns basic auth when enabled in settings,
// otherwise the injected middleware. With neither every request is refused.
func (c *Controller) getEffectiveAuthMiddleware() echo.MiddlewareFunc {
	if c.Settings.Security.BasicAuth.Enabled {
		return c.basicAuthMiddleware()
	}
	if c.authMiddleware != nil {
		return c.authMiddleware
	}

	c.logger.Warn("No authentication configured, all API requests will be refused")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication is not configured")
		}
	}
}

func (c *Controller) basicAuthMiddleware() echo.MiddlewareFunc {
	creds := c.Settings.Security.BasicAuth
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: "speciestools",
		Validator: func(username, password string, ctx echo.Context) (bool, error) {
			userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(creds.Username)) == 1
			// always run bcrypt so a wrong username costs the same as a wrong password
			passErr := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password))
			if userMatch && passErr == nil {
				return true, nil
			}
			c.logger.WithContext(ctx.Request().Context()).Warn("Basic authentication failed",
				logger.String("username", username),
				logger.String("ip", ctx.RealIP()))
			return false, nil
		},
	})
}
