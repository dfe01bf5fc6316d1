// env.go - environment variable overrides
package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/birdnetpi/speciestools/internal/logger"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SPECIESTOOLS"

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns the environment variables with validation.
// Other keys are still reachable through AutomaticEnv.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"storage.root", "SPECIESTOOLS_STORAGE_ROOT", validateEnvNonEmpty},
		{"database.type", "SPECIESTOOLS_DATABASE_TYPE", validateEnvDatabaseType},
		{"database.sqlite.path", "SPECIESTOOLS_DATABASE_SQLITE_PATH", validateEnvNonEmpty},
		{"database.sqlite.busytimeout", "SPECIESTOOLS_DATABASE_SQLITE_BUSYTIMEOUT", validateEnvNonNegativeInt},
		{"lists.dir", "SPECIESTOOLS_LISTS_DIR", validateEnvNonEmpty},
		{"webserver.listen", "SPECIESTOOLS_WEBSERVER_LISTEN", nil},
		{"debug", "SPECIESTOOLS_DEBUG", validateEnvBool},
	}
}

// bindEnvVars binds environment overrides. Invalid values are logged and
// left for ValidateSettings to reject.
func bindEnvVars() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			return fmt.Errorf("failed to bind %s: %w", binding.EnvVar, err)
		}
		if binding.Validate == nil {
			continue
		}
		if value, ok := os.LookupEnv(binding.EnvVar); ok {
			if err := binding.Validate(value); err != nil {
				GetLogger().Warn("Invalid environment override",
					logger.String("env", binding.EnvVar),
					logger.Error(err))
			}
		}
	}
	return nil
}

func validateEnvNonEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("value must not be empty")
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch strings.ToLower(value) {
	case DatabaseSQLite, DatabaseMySQL:
		return nil
	}
	return fmt.Errorf("unknown database type %q", value)
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must be >= 0, got %d", n)
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("not a boolean: %w", err)
	}
	return nil
}
