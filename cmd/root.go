// Package cmd builds the speciestools command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/birdnetpi/speciestools/cmd/lists"
	"github.com/birdnetpi/speciestools/cmd/passwd"
	"github.com/birdnetpi/speciestools/cmd/preview"
	"github.com/birdnetpi/speciestools/cmd/remove"
	"github.com/birdnetpi/speciestools/cmd/serve"
	"github.com/birdnetpi/speciestools/cmd/summary"
	"github.com/birdnetpi/speciestools/internal/buildinfo"
	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/telemetry"
)

var centralLogger *logger.CentralLogger

// Execute runs the CLI and returns the process exit code.
func Execute(build *buildinfo.Context) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := &conf.Settings{}
	rootCmd := RootCommand(settings, build)
	err := rootCmd.ExecuteContext(ctx)

	telemetry.Flush()
	if centralLogger != nil {
		_ = centralLogger.Close()
	}
	if err != nil {
		return 1
	}
	return 0
}

// RootCommand creates and returns the root command. settings is filled in
// before any subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "speciestools",
		Short:        "Manage species data of a BirdNET-Pi station",
		Version:      build.String(),
		SilenceUsage: true,
	}

	if err := setupFlags(rootCmd, &configFile); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up flags: %v\n", err)
	}

	passwdCmd := passwd.Command()
	rootCmd.AddCommand(
		preview.Command(settings),
		remove.Command(settings),
		lists.Command(settings),
		summary.Command(settings),
		serve.Command(settings),
		passwdCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// passwd needs no configuration
		if cmd.Name() == passwdCmd.Name() {
			return nil
		}
		if configFile != "" {
			viper.SetConfigFile(configFile)
		}

		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded

		return initialize(settings, build)
	}

	return rootCmd
}

// initialize sets up logging and telemetry once settings are loaded.
func initialize(settings *conf.Settings, build *buildinfo.Context) error {
	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)
	centralLogger = cl

	if err := telemetry.InitSentry(settings, build); err != nil {
		// telemetry is optional
		logger.Global().Module("main").Warn("Sentry telemetry unavailable", logger.Error(err))
	}
	return nil
}

// setupFlags defines the global flags and binds them to their config keys.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to config file")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("storage-root", "", "Directory of extracted recordings (By_Date)")
	flags.String("db", "", "Path to the SQLite detections database")

	bindings := map[string]string{
		"debug":                "debug",
		"storage.root":         "storage-root",
		"database.sqlite.path": "db",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
