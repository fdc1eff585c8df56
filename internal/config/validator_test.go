package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/timeoffset/internal/logging"
)

func validConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "warn", Format: "auto"},
		Launch: LaunchConfig{
			Procs:    2,
			Bind:     "127.0.0.1:0",
			Timeout:  "0",
			LogLevel: "info",
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ValidateConfig(validConfig()))
}

func TestValidate_Fields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"zero procs", func(c *Config) { c.Launch.Procs = 0 }, "launch.procs"},
		{"bind without port", func(c *Config) { c.Launch.Bind = "localhost" }, "launch.bind"},
		{"bad timeout", func(c *Config) { c.Launch.Timeout = "soon" }, "launch.timeout"},
		{"negative timeout", func(c *Config) { c.Launch.Timeout = "-5s" }, "launch.timeout"},
		{"bad launch level", func(c *Config) { c.Launch.LogLevel = "loud" }, "launch.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
			assert.True(t, verrs.HasErrors())
		})
	}
}

func TestValidate_LevelsMatchLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"Debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{" warning ", slog.LevelWarn},
		{"Error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Log.Level = tt.level
			cfg.Launch.LogLevel = tt.level

			assert.NoError(t, ValidateConfig(cfg))
			assert.Equal(t, tt.want, logging.ParseLevel(tt.level))
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Log.Level = "x"
	cfg.Launch.Procs = -1

	v := NewValidator()
	err := v.Validate(cfg)
	require.Error(t, err)
	assert.Len(t, v.Errors(), 2)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "launch.procs")
}

func TestParseTimeout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{" 0 ", 0, false},
		{"30s", 30 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"-1s", 0, true},
		{"ten", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTimeout(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}
