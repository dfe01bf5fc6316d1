// conf/validate.go

package conf

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct.
// A storage root that does not exist is not an error here; it fails closed
// on the first filesystem operation.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateStorageSettings(&settings.Storage)...)
	ve.Errors = append(ve.Errors, validateDatabaseSettings(&settings.Database)...)
	ve.Errors = append(ve.Errors, validateListSettings(&settings.Lists)...)
	ve.Errors = append(ve.Errors, validateWebServerSettings(&settings.WebServer)...)
	ve.Errors = append(ve.Errors, validateSecuritySettings(&settings.Security)...)
	ve.Errors = append(ve.Errors, validateNotificationSettings(&settings.Notifications)...)

	if settings.Telemetry.Sentry.Enabled && settings.Telemetry.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "telemetry.sentry.dsn is required when sentry is enabled")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateStorageSettings(settings *StorageSettings) []string {
	var errs []string

	if strings.TrimSpace(settings.Root) == "" {
		errs = append(errs, "storage.root must not be empty")
	}
	if len(settings.Layouts) == 0 {
		errs = append(errs, "storage.layouts must name at least one layout")
	}

	seen := make(map[string]bool, len(settings.Layouts))
	for _, name := range settings.Layouts {
		if !slices.Contains(KnownLayouts, name) {
			errs = append(errs, fmt.Sprintf("storage.layouts: unknown layout %q, valid layouts are %v", name, KnownLayouts))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("storage.layouts: layout %q listed twice", name))
		}
		seen[name] = true
	}
	return errs
}

func validateDatabaseSettings(settings *DatabaseSettings) []string {
	var errs []string

	switch settings.Type {
	case DatabaseSQLite:
		if strings.TrimSpace(settings.SQLite.Path) == "" {
			errs = append(errs, "database.sqlite.path must not be empty")
		}
		if settings.SQLite.BusyTimeout < 0 {
			errs = append(errs, "database.sqlite.busytimeout must be >= 0")
		}
	case DatabaseMySQL:
		if settings.MySQL.Host == "" || settings.MySQL.Database == "" || settings.MySQL.Username == "" {
			errs = append(errs, "database.mysql requires host, username and database")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.type: unknown type %q, expected sqlite or mysql", settings.Type))
	}
	return errs
}

func validateListSettings(settings *ListSettings) []string {
	var errs []string
	if strings.TrimSpace(settings.Dir) == "" {
		errs = append(errs, "lists.dir must not be empty")
	}
	for key, name := range map[string]string{
		"lists.confirmed": settings.Confirmed,
		"lists.exclude":   settings.Exclude,
		"lists.whitelist": settings.Whitelist,
	} {
		if name == "" || strings.ContainsAny(name, `/\`) {
			errs = append(errs, fmt.Sprintf("%s must be a plain file name", key))
		}
	}
	slices.Sort(errs)
	return errs
}

func validateWebServerSettings(settings *WebServerSettings) []string {
	if settings.RateLimit < 0 {
		return []string{"webserver.ratelimit must be >= 0"}
	}
	return nil
}

func validateSecuritySettings(settings *Security) []string {
	ba := settings.BasicAuth
	if !ba.Enabled {
		return nil
	}
	var errs []string
	if ba.Username == "" {
		errs = append(errs, "security.basicauth.username is required when basic auth is enabled")
	}
	if !strings.HasPrefix(ba.PasswordHash, "$2") {
		errs = append(errs, "security.basicauth.passwordhash must be a bcrypt hash")
	}
	return errs
}

func validateNotificationSettings(settings *NotificationSettings) []string {
	var errs []string
	if settings.Shoutrrr.Enabled && len(settings.Shoutrrr.URLs) == 0 {
		errs = append(errs, "notifications.shoutrrr.urls must not be empty when shoutrrr is enabled")
	}
	if settings.MQTT.Enabled {
		if settings.MQTT.Broker == "" {
			errs = append(errs, "notifications.mqtt.broker is required when mqtt is enabled")
		}
		if settings.MQTT.Topic == "" {
			errs = append(errs, "notifications.mqtt.topic is required when mqtt is enabled")
		}
	}
	return errs
}
