package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/nvme-go/nvme-go/pkg/trace"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output    string
	HandleID  string
	Resource  string
	Category  string
	Op        string
	Failed    bool
	TimeStart string
	TimeEnd   string
}

func (opts FilterOptions) traceFilter() (trace.Filter, error) {
	filter := trace.Filter{
		HandleID:   opts.HandleID,
		Op:         opts.Op,
		FailedOnly: opts.Failed,
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	if opts.Resource != "" {
		r, err := ParseResourceFlag(opts.Resource)
		if err != nil {
			return filter, err
		}
		filter.Resource = &r
	}

	if opts.Category != "" {
		c, err := ParseCategoryFlag(opts.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// RunFilter filters the trace file and writes matching events to a new file.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	filter, err := opts.traceFilter()
	if err != nil {
		return err
	}

	reader, err := trace.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	logger, err := trace.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output trace: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	fmt.Fprintf(w, "Filtered %d events to %s\n", count, opts.Output)
	return nil
}
