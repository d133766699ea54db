package config

import "ipwatch/internal/logger"

// LogConfig is the logger configuration embedded under [log]
type LogConfig = logger.Config

const (
	// AppName names the config directories and default files
	AppName = "ipwatch"

	// EnvPrefix prefixes environment overrides, e.g. IPWATCH_SMTP_APP_PASSWORD
	EnvPrefix = "IPWATCH"
)

// searchPaths lists where config.{toml,yaml,json} is looked up when no path is given
var searchPaths = []string{
	".",
	"$HOME/.config/" + AppName,
	"$HOME/." + AppName,
	"/etc/" + AppName,
}
