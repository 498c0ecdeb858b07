// Package config loads the card server's static configuration from a
// YAML file, environment variables, and built-in defaults, in that order
// of increasing precedence for environment over file.
//
// The schema covers the listener, session store, match constants,
// metrics, and logging. Durations accept Go duration strings via a
// mapstructure decode hook; struct-tag validation runs after defaults
// are applied.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the card server's static configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CARDSERVER_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
//
// Environment variables override only keys that appear in the
// configuration file. When no configuration file is found, Load returns
// the defaults and does not read the environment.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Listen configures the TLS listener.
	Listen ListenConfig `mapstructure:"listen" yaml:"listen"`

	// SessionStore configures the shared-memory session store.
	SessionStore SessionStoreConfig `mapstructure:"session_store" yaml:"session_store"`

	// Match holds the match-engine constants; they are validated but not
	// read by the engine.
	Match MatchConfig `mapstructure:"match" yaml:"match"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ShutdownTimeout is the maximum time to wait for in-flight workers
	// to finish their current step during a graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ListenConfig configures the TLS listener.
type ListenConfig struct {
	// Addr is the TCP address to listen on, e.g. ":9000".
	Addr string `mapstructure:"addr" validate:"required" yaml:"addr"`

	// CertFile and KeyFile are the server's TLS certificate and key paths.
	CertFile string `mapstructure:"cert_file" validate:"required" yaml:"cert_file"`
	KeyFile  string `mapstructure:"key_file" validate:"required" yaml:"key_file"`

	// ReadTimeout bounds every blocking frame read.
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"required,gt=0" yaml:"read_timeout"`
}

// SessionStoreConfig configures the shared-memory session store.
type SessionStoreConfig struct {
	// Path is the backing file for the mmap'd session store region.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// CountersPath is the backing file for the mmap'd counters region.
	CountersPath string `mapstructure:"counters_path" validate:"required" yaml:"counters_path"`
}

// MatchConfig holds the match-engine constants. Validation checks only
// that each value is positive and that HandSize is at most 8, the number
// of hand slots. The engine does not read these values; it uses its own
// constants (engine.InitialHP, engine.DefaultMaxMana, engine.HandSize).
type MatchConfig struct {
	InitialHP int16 `mapstructure:"initial_hp" validate:"required,gt=0" yaml:"initial_hp"`
	MaxMana   uint8 `mapstructure:"max_mana" validate:"required,gt=0" yaml:"max_mana"`
	HandSize  uint8 `mapstructure:"hand_size" validate:"required,gt=0,lte=8" yaml:"hand_size"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the
// config file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  cardserver init\n\n"+
				"Or specify a custom config file:\n"+
				"  cardserver start --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  cardserver init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures viper with environment variable and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CARDSERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// durationDecodeHook converts strings like "30s" or raw numbers into
// time.Duration during mapstructure decoding.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory: $XDG_CONFIG_HOME/cardserver,
// falling back to ~/.config/cardserver, or "." if the home directory can't be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cardserver")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cardserver")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
