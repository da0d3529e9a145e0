package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chzyer/readline"
)

func runShell(a *admin, env *environment, cfg Config) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "nvme> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryLimit:    500,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	a.out = rl.Stdout()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsListen != "" {
		// Keep log lines from clobbering the prompt.
		shellLogger := slog.New(slog.NewTextHandler(rl.Stderr(), nil))
		go serveMetrics(ctx, cfg.MetricsListen, env.collector, shellLogger)
	}

	shellLoop(rl, a)
	return nil
}

// lineReader is the part of readline the loop needs.
type lineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
}

func shellLoop(rl lineReader, a *admin) {
	printShellHelp(rl.Stdout())

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "help", "?":
			printShellHelp(rl.Stdout())
		case "quit", "exit", "q":
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return
		case "shell":
			fmt.Fprintln(rl.Stdout(), "Already in the shell")
		default:
			if err := a.run(fields); err != nil {
				fmt.Fprintf(rl.Stdout(), "Error: %s\n", describeError(err))
			}
		}
	}
}

func printShellHelp(w io.Writer) {
	fmt.Fprintln(w, `
Commands:
  list                              - List controllers
  info <inst>                       - Show controller identify data
  namespaces <inst> [-level L]      - List namespaces
  format <inst> [-lbaf N] [-nsid N] [-ses N]
  fw-load <inst> <file>             - Download a firmware image
  fw-commit <inst> -slot N -action A
  firmware <inst>                   - Show the firmware slot log
  logpage <inst> <name> [-hex]      - Read a log page
  attach <inst> <nsid>              - Attach blkdev
  detach <inst> <nsid>              - Detach blkdev
  wdc-resize <inst> [-set size]     - Get or set the WDC device size
  help                              - Show this help
  quit                              - Exit`)
}
