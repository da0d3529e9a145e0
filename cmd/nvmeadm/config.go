package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/nvme-go/nvme-go/pkg/metrics"
	"gopkg.in/yaml.v3"
)

// Config holds the nvmeadm configuration. Values come from the optional
// YAML file and are overridden by flags given on the command line.
type Config struct {
	ConfigFile string `yaml:"-"`

	LogLevel      string `yaml:"log_level"`
	Trace         string `yaml:"trace"`
	Simulate      string `yaml:"simulate"`
	MetricsListen string `yaml:"metrics_listen"`

	// NamespaceLevel is the discovery level used by "namespaces" when -level
	// is not given.
	NamespaceLevel string `yaml:"namespace_level"`

	Metrics metrics.Config `yaml:"metrics"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:       "info",
		NamespaceLevel: "active",
		Metrics:        metrics.DefaultConfig(),
	}
}

// registerFlags binds the global flags to cfg.
func registerFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", "", "Configuration file path (YAML)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.Trace, "trace", cfg.Trace, "Write a handle trace to this file")
	fs.StringVar(&cfg.Simulate, "simulate", cfg.Simulate, `Use a simulated device: a fixture file or "default"`)
	fs.StringVar(&cfg.MetricsListen, "metrics-listen", cfg.MetricsListen, "Serve /metrics on this address in shell mode")
}

// loadConfig parses the global flags. If -config names a file, its values
// are applied first and every flag that was set explicitly wins.
func loadConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := DefaultConfig()
	registerFlags(fs, &cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.ConfigFile == "" {
		return cfg, nil
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	flags := cfg

	data, err := os.ReadFile(cfg.ConfigFile)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	file := DefaultConfig()
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", cfg.ConfigFile, err)
	}
	file.ConfigFile = cfg.ConfigFile

	if set["log-level"] {
		file.LogLevel = flags.LogLevel
	}
	if set["trace"] {
		file.Trace = flags.Trace
	}
	if set["simulate"] {
		file.Simulate = flags.Simulate
	}
	if set["metrics-listen"] {
		file.MetricsListen = flags.MetricsListen
	}
	return file, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}
