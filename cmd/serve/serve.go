// Package serve provides the serve command for the species HTTP API
package serve

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	api "github.com/birdnetpi/speciestools/internal/api/v2"
	"github.com/birdnetpi/speciestools/internal/app"
	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/logger"
)

const shutdownTimeout = 10 * time.Second

// GetLogger returns the serve module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("serve")
}

// Command creates and returns the serve command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the species HTTP API",
		Long: `Serve exposes species preview, delete and list management over HTTP,
including the species_tools.php query interface used by the BirdNET-Pi UI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(settings, func(a *app.App) error {
				e, err := NewServer(a)
				if err != nil {
					return err
				}
				return run(cmd.Context(), e, settings.WebServer.Listen)
			})
		},
	}

	cmd.Flags().String("listen", "", "Listen address, e.g. :8090")
	if err := viper.BindPFlag("webserver.listen", cmd.Flags().Lookup("listen")); err != nil {
		GetLogger().Error("Failed to bind listen flag", logger.Error(err))
	}
	return cmd
}

// NewServer builds the echo instance serving the species API.
func NewServer(a *app.App) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	// requests are logged by the api module
	e.Logger.SetOutput(io.Discard)
	e.Logger.SetLevel(log.OFF)
	e.Use(middleware.Recover())

	opts := []api.Option{api.WithMetrics(a.Metrics)}
	if !a.Settings.Security.BasicAuth.Enabled {
		GetLogger().Warn("Basic authentication is disabled, the species API accepts unauthenticated requests")
		opts = append(opts, api.WithAuthMiddleware(allowAll))
	}

	if _, err := api.New(e, a.Species, a.Settings, opts...); err != nil {
		return nil, err
	}
	return e, nil
}

// allowAll matches a BirdNET-Pi install without a web password.
func allowAll(next echo.HandlerFunc) echo.HandlerFunc {
	return next
}

// run serves until ctx is canceled, then shuts down gracefully.
func run(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	GetLogger().Info("Species API listening", logger.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	GetLogger().Info("Shutting down species API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	err := e.Shutdown(shutdownCtx)
	if serveErr := <-errCh; serveErr != nil && err == nil {
		err = serveErr
	}
	return err
}
