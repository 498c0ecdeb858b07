package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills in missing configuration values with sensible
// defaults after loading from file and environment.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyListenDefaults(&cfg.Listen)
	applySessionStoreDefaults(&cfg.SessionStore)
	applyMatchDefaults(&cfg.Match)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyListenDefaults sets listener defaults: port 9000,
// server.crt/server.key in the working directory.
func applyListenDefaults(cfg *ListenConfig) {
	if cfg.Addr == "" {
		cfg.Addr = ":9000"
	}
	if cfg.CertFile == "" {
		cfg.CertFile = "server.crt"
	}
	if cfg.KeyFile == "" {
		cfg.KeyFile = "server.key"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
}

func applySessionStoreDefaults(cfg *SessionStoreConfig) {
	if cfg.Path == "" {
		cfg.Path = "/tmp/cardserver-sessions.dat"
	}
	if cfg.CountersPath == "" {
		cfg.CountersPath = "/tmp/cardserver-counters.dat"
	}
}

// applyMatchDefaults sets the match constants the protocol was designed
// around: 30 starting HP, 3 max mana, 3 cards dealt per turn.
func applyMatchDefaults(cfg *MatchConfig) {
	if cfg.InitialHP == 0 {
		cfg.InitialHP = 30
	}
	if cfg.MaxMana == 0 {
		cfg.MaxMana = 3
	}
	if cfg.HandSize == 0 {
		cfg.HandSize = 3
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
