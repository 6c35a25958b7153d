// Package config loads process configuration via viper: a config file
// search path and environment variable overrides. It is grounded on
// internal/cli/root.go's initConfig/initLogging in the teacher repository
// this project started from, trimmed of the teacher's godotenv/fang/lipgloss
// presentation layer (dropped per this project's design notes) but keeping
// the config-file-then-env precedence and zerolog level wiring. CLI flags
// are not bound here; internal/cli applies them after Load returns.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration surface, populated by Load from
// (in increasing precedence) defaults, a config file, and PIPELINECTL_*
// environment variables. Load does not read CLI flags; internal/cli applies
// its --log-level and --output flags on top of the loaded values.
type Config struct {
	LogLevel string `mapstructure:"log-level"`
	Output   string `mapstructure:"output"`

	ServerAddr string `mapstructure:"server-addr"`

	BackendSelectTimeout time.Duration `mapstructure:"backend-select-timeout"`
	ResourceCacheTTL     time.Duration `mapstructure:"resource-cache-ttl"`

	DefaultRetryAttempts int    `mapstructure:"default-retry-attempts"`
	DefaultRetryBackoff  string `mapstructure:"default-retry-backoff"`
}

// setDefaults mirrors the teacher's pattern of defaulting everything before
// the config file and environment are consulted.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")
	v.SetDefault("output", "text")
	v.SetDefault("server-addr", ":8080")
	v.SetDefault("backend-select-timeout", 2*time.Second)
	v.SetDefault("resource-cache-ttl", 30*time.Second)
	v.SetDefault("default-retry-attempts", 1)
	v.SetDefault("default-retry-backoff", "fixed")
}

// Load builds a Config by searching for a "config.yaml"/"config.yml" in
// cfgFile (if set), $HOME/.pipelinectl, ".pipelinectl", and the current
// directory, then overlaying PIPELINECTL_* environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.pipelinectl")
		}
		v.AddConfigPath(".pipelinectl")
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PIPELINECTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// ZerologLevel parses c.LogLevel into a zerolog.Level, defaulting to Info
// on an unrecognized value.
func (c *Config) ZerologLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
