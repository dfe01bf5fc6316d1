// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("storage.root", "$HOME/BirdSongs/Extracted/By_Date")
	viper.SetDefault("storage.layouts", KnownLayouts)

	viper.SetDefault("database.type", DatabaseSQLite)
	viper.SetDefault("database.automigrate", false)
	viper.SetDefault("database.sqlite.path", "$HOME/BirdNET-Pi/scripts/birds.db")
	viper.SetDefault("database.sqlite.busytimeout", 1000)
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	viper.SetDefault("lists.dir", "$HOME/BirdNET-Pi/scripts")
	viper.SetDefault("lists.confirmed", "confirmed_species_list.txt")
	viper.SetDefault("lists.exclude", "exclude_species_list.txt")
	viper.SetDefault("lists.whitelist", "whitelist_species_list.txt")

	viper.SetDefault("webserver.listen", ":8090")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.ratelimit", 5.0)

	viper.SetDefault("security.basicauth.enabled", false)
	viper.SetDefault("security.basicauth.username", "birdnet")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")

	viper.SetDefault("notifications.shoutrrr.enabled", false)
	viper.SetDefault("notifications.shoutrrr.timeout", 10*time.Second)
	viper.SetDefault("notifications.mqtt.enabled", false)
	viper.SetDefault("notifications.mqtt.topic", "birdnet")
	viper.SetDefault("notifications.mqtt.clientid", "speciestools")

	viper.SetDefault("telemetry.sentry.enabled", false)
	viper.SetDefault("metrics.enabled", true)
}
