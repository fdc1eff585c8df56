package config

// Config holds all application configuration.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Launch LaunchConfig `mapstructure:"launch"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LaunchConfig configures the bundled process-group launcher.
type LaunchConfig struct {
	Procs    int    `mapstructure:"procs"`
	Bind     string `mapstructure:"bind"`
	Timeout  string `mapstructure:"timeout"` // "0" disables the deadline
	Audit    string `mapstructure:"audit"`
	LogLevel string `mapstructure:"log_level"`
}
