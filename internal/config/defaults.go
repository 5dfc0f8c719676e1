package config

const (
	defaultConfigPath    = "~/.config/granuledb/config.toml"
	projectConfigName    = "granuledb.toml"
	defaultStorePath     = "~/.local/share/granuledb/granules.db"
	defaultBusyTimeoutMS = 5000
	defaultLogFormat     = "auto"
	defaultLogLevel      = "info"
	defaultTelemetryHost = "https://us.i.posthog.com"
	envStorePath         = "GRANULEDB_DB"
	envLogLevel          = "GRANULEDB_LOG_LEVEL"
	envTelemetryAPIKey   = "GRANULEDB_TELEMETRY_KEY"
	envNoTelemetry       = "GRANULEDB_NO_TELEMETRY"
	envDoNotTrack        = "DO_NOT_TRACK"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			Path:          defaultStorePath,
			BusyTimeoutMS: defaultBusyTimeoutMS,
			Lock:          true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Telemetry: Telemetry{
			Endpoint: defaultTelemetryHost,
		},
	}
}
