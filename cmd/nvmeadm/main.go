// Command nvmeadm administers NVMe controllers through libnvme.
//
// Every command opens the controllers it needs and releases them, and any
// lock it took, before it returns. Commands that change the device take the
// controller write lock first.
//
// Usage:
//
//	nvmeadm [flags] <command> [args]
//
// Flags:
//
//	-config string          Configuration file path (YAML)
//	-log-level string       Log level: debug, info, warn, error (default "info")
//	-trace string           Write a handle trace to this file
//	-simulate string        Use a simulated device: a fixture file or "default"
//	-metrics-listen string  Serve /metrics on this address in shell mode
//
// Examples:
//
//	# List controllers
//	nvmeadm list
//
//	# Format every namespace of nvme0 with LBA format 1
//	nvmeadm format 0 -lbaf 1
//
//	# Load and activate a firmware image
//	nvmeadm fw-load 0 image.bin
//	nvmeadm fw-commit 0 -slot 2 -action save-activate
//
//	# Dump the health log
//	nvmeadm logpage 0 health -hex
//
//	# Try the commands against the simulator, recording a trace
//	nvmeadm -simulate default -trace nvmeadm.ntrace shell
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nvme-go/nvme-go/pkg/metrics"
	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/nvme"
	"github.com/nvme-go/nvme-go/pkg/nvmesim"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("nvmeadm", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}

	cfg, err := loadConfig(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	level, err := parseLogLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	nsLevel, err := nvme.ParseNamespaceLevel(cfg.NamespaceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	env, err := setup(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer env.close()

	a := &admin{sess: env.sess, out: os.Stdout, nsLevel: nsLevel}

	if fs.Arg(0) == "shell" {
		if err := runShell(a, env, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	if err := a.run(fs.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describeError(err))
		return 1
	}
	return 0
}

// environment is the session and the trace sinks feeding from it.
type environment struct {
	sess      *nvme.Session
	collector *metrics.Collector
	traceFile *trace.FileLogger
	logger    *slog.Logger
}

func setup(cfg Config, logger *slog.Logger) (*environment, error) {
	env := &environment{logger: logger}

	collector, err := metrics.NewCollector(cfg.Metrics)
	if err != nil {
		return nil, err
	}
	env.collector = collector
	sinks := []trace.Logger{collector}

	if cfg.Trace != "" {
		fl, err := trace.NewFileLogger(cfg.Trace)
		if err != nil {
			return nil, err
		}
		env.traceFile = fl
		sinks = append(sinks, fl)
		logger.Debug("tracing handles", "file", cfg.Trace)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		sinks = append(sinks, trace.NewSlogAdapter(logger))
	}

	lib, err := library(cfg.Simulate)
	if err != nil {
		env.close()
		return nil, err
	}

	sess, err := nvme.Open(nvme.Config{
		Library:     lib,
		Logger:      logger,
		TraceLogger: trace.NewMultiLogger(sinks...),
	})
	if err != nil {
		env.close()
		return nil, err
	}
	env.sess = sess
	return env, nil
}

// library picks the libnvme binding. An empty simulate uses the platform
// library.
func library(simulate string) (native.Library, error) {
	switch simulate {
	case "":
		if !native.Supported() {
			return nil, errors.New(`libnvme is not available on this platform (use -simulate default)`)
		}
		return native.Default(), nil
	case "default":
		return nvmesim.New(nvmesim.DefaultFixture()), nil
	default:
		fix, err := nvmesim.LoadFixture(simulate)
		if err != nil {
			return nil, err
		}
		return nvmesim.New(fix), nil
	}
}

func (e *environment) close() {
	if e.sess != nil {
		e.sess.Close()
	}
	if e.traceFile != nil {
		if err := e.traceFile.Close(); err != nil {
			e.logger.Warn("failed to close trace file", "error", err)
		}
	}
}

// serveMetrics serves the collector on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, c *metrics.Collector, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
