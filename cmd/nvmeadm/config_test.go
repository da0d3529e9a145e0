package main

import (
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func createTestConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nvmeadm.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func newTestFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("nvmeadm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newTestFlagSet(), []string{"list"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.NamespaceLevel != "active" {
		t.Errorf("NamespaceLevel = %q, want active", cfg.NamespaceLevel)
	}
	if cfg.Metrics.Namespace != "nvme" {
		t.Errorf("Metrics.Namespace = %q, want nvme", cfg.Metrics.Namespace)
	}
}

func TestLoadConfigFileAndFlags(t *testing.T) {
	path := createTestConfigFile(t, `
log_level: debug
trace: /var/tmp/nvme.ntrace
simulate: default
metrics_listen: ":9100"
namespace_level: all
metrics:
  namespace: box
  labels:
    host: box1
`)

	fs := newTestFlagSet()
	cfg, err := loadConfig(fs, []string{"-config", path, "-log-level", "warn", "shell"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	// The flag wins over the file.
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
	if cfg.Trace != "/var/tmp/nvme.ntrace" {
		t.Errorf("Trace = %q", cfg.Trace)
	}
	if cfg.Simulate != "default" {
		t.Errorf("Simulate = %q", cfg.Simulate)
	}
	if cfg.MetricsListen != ":9100" {
		t.Errorf("MetricsListen = %q", cfg.MetricsListen)
	}
	if cfg.NamespaceLevel != "all" {
		t.Errorf("NamespaceLevel = %q", cfg.NamespaceLevel)
	}
	if cfg.Metrics.Namespace != "box" || cfg.Metrics.ConstLabels["host"] != "box1" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if len(cfg.Metrics.Buckets) == 0 {
		t.Error("default buckets lost when the file sets metrics")
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
	if fs.Arg(0) != "shell" {
		t.Errorf("command = %q, want shell", fs.Arg(0))
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := map[string]struct {
		args func(t *testing.T) []string
	}{
		"missing file": {
			args: func(t *testing.T) []string {
				return []string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}
			},
		},
		"bad yaml": {
			args: func(t *testing.T) []string {
				return []string{"-config", createTestConfigFile(t, "log_level: [unterminated")}
			},
		},
		"unknown flag": {
			args: func(t *testing.T) []string { return []string{"-bogus"} },
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := loadConfig(newTestFlagSet(), tc.args(t)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		"debug":   {in: "debug", want: slog.LevelDebug},
		"upper":   {in: "WARN", want: slog.LevelWarn},
		"empty":   {in: "", want: slog.LevelInfo},
		"error":   {in: "error", want: slog.LevelError},
		"unknown": {in: "loud", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := parseLogLevel(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseLogLevel(%q) succeeded", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLogLevel(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestLibrarySelection(t *testing.T) {
	if _, err := library("default"); err != nil {
		t.Fatalf("library(default): %v", err)
	}
	if _, err := library(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing fixture")
	}
}

func TestSetupWritesTrace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simulate = "default"
	cfg.Trace = filepath.Join(t.TempDir(), "run.ntrace")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env, err := setup(cfg, logger)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	a := &admin{sess: env.sess, out: io.Discard}
	if err := a.run([]string{"info", "0"}); err != nil {
		t.Fatalf("info: %v", err)
	}
	env.close()

	fi, err := os.Stat(cfg.Trace)
	if err != nil {
		t.Fatalf("trace file: %v", err)
	}
	if fi.Size() == 0 {
		t.Error("trace file is empty")
	}
}
