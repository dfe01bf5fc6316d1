// config.go: settings struct for speciestools and functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/birdnetpi/speciestools/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Layout names accepted in storage.layouts.
const (
	LayoutByDate  = "by_date" // {root}/{date}/{token}/{file}
	LayoutShifted = "shifted" // {root}/shifted/{date}/{token}/{file}
)

// KnownLayouts lists every layout name in resolution order.
var KnownLayouts = []string{LayoutByDate, LayoutShifted}

// Database types accepted in database.type.
const (
	DatabaseSQLite = "sqlite"
	DatabaseMySQL  = "mysql"
)

// StorageSettings locates the extracted recordings.
type StorageSettings struct {
	Root    string   // canonical By_Date directory of extracted clips
	Layouts []string // enabled path layouts, in resolution order
}

// SQLiteSettings configures the SQLite detections database.
type SQLiteSettings struct {
	Path        string // path to birds.db
	BusyTimeout int    // milliseconds to wait on a locked database
}

// MySQLSettings configures a MySQL detections database.
type MySQLSettings struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

// DatabaseSettings selects and configures the detection store.
type DatabaseSettings struct {
	Type        string // sqlite or mysql
	AutoMigrate bool   // create the detections table when missing
	SQLite      SQLiteSettings
	MySQL       MySQLSettings
}

// ListSettings locates the line-delimited species list files.
type ListSettings struct {
	Dir       string // directory holding the list files
	Confirmed string // confirmed species, scientific names
	Exclude   string // excluded species, Sci_Common identifiers
	Whitelist string // whitelisted species, Sci_Common identifiers
}

// WebServerSettings configures the HTTP adapter.
type WebServerSettings struct {
	Listen    string  // listen address, e.g. ":8080"
	Debug     bool    // verbose request logging
	RateLimit float64 // requests per second allowed on mutating routes
}

// BasicAuth holds HTTP basic auth credentials.
type BasicAuth struct {
	Enabled      bool
	Username     string
	PasswordHash string // bcrypt hash
}

// Security groups authentication settings.
type Security struct {
	BasicAuth BasicAuth
}

// ShoutrrrSettings configures push notifications through shoutrrr.
type ShoutrrrSettings struct {
	Enabled bool
	URLs    []string
	Timeout time.Duration
}

// MQTTSettings configures event publishing to an MQTT broker.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // e.g. tcp://localhost:1883
	Topic    string // base topic, events go to {topic}/species/deleted
	ClientID string
	Username string
	Password string
}

// NotificationSettings groups the notification backends.
type NotificationSettings struct {
	Shoutrrr ShoutrrrSettings
	MQTT     MQTTSettings
}

// SentrySettings configures error telemetry.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// TelemetrySettings groups telemetry backends.
type TelemetrySettings struct {
	Sentry SentrySettings
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
}

// Settings contains all configuration options for speciestools.
type Settings struct {
	Debug bool // true to enable debug mode

	Storage       StorageSettings
	Database      DatabaseSettings
	Lists         ListSettings
	WebServer     WebServerSettings
	Security      Security
	Logging       logger.LoggingConfig
	Notifications NotificationSettings
	Telemetry     TelemetrySettings
	Metrics       MetricsSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration through the global viper instance, applying
// defaults, environment overrides and flags already bound by the CLI.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings, err := unmarshalSettings(viper.GetViper())
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// unmarshalSettings decodes and validates settings from v.
func unmarshalSettings(v *viper.Viper) (*Settings, error) {
	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	settings.Storage.Root = ExpandPath(settings.Storage.Root)
	settings.Database.SQLite.Path = ExpandPath(settings.Database.SQLite.Path)
	settings.Lists.Dir = ExpandPath(settings.Lists.Dir)

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}
	return settings, nil
}

// initViper sets defaults and env bindings, then reads the config file.
// A missing config file is created from the embedded default.
func initViper() error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	// --config flag already pointed viper at a file
	if viper.ConfigFileUsed() != "" {
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// createDefaultConfig writes the embedded default config into dir and reads it.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("Created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig returns the embedded config.yaml.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the settings loaded by the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}
