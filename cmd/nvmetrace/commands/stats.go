package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/nvme-go/nvme-go/pkg/trace"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents      int
	EventsByResource map[trace.Resource]int
	EventsByCategory map[trace.Category]int
	Calls            map[string]*CallStats
	Handles          map[string]*HandleStats
	LockAcquisitions int
	LockReleases     int
	Errors           int
	ErrorsByCode     map[string]int

	TimeRange struct {
		Start time.Time
		End   time.Time
	}
}

// CallStats holds statistics for one libnvme entry point.
type CallStats struct {
	Count    int
	Failures int
	Total    time.Duration
	Max      time.Duration
	Bytes    int
}

// HandleStats tracks one handle's lifetime.
type HandleStats struct {
	Resource trace.Resource
	Label    string
	Opened   time.Time
	Closed   time.Time
}

// Leaked returns the handles that were opened but never closed.
func (s *Stats) Leaked() []string {
	var ids []string
	for id, h := range s.Handles {
		if !h.Opened.IsZero() && h.Closed.IsZero() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.Handles[ids[i]].Opened.Before(s.Handles[ids[j]].Opened)
	})
	return ids
}

func newStats() *Stats {
	return &Stats{
		EventsByResource: make(map[trace.Resource]int),
		EventsByCategory: make(map[trace.Category]int),
		Calls:            make(map[string]*CallStats),
		Handles:          make(map[string]*HandleStats),
		ErrorsByCode:     make(map[string]int),
	}
}

func (s *Stats) add(event trace.Event) {
	s.TotalEvents++
	s.EventsByResource[event.Resource]++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	switch {
	case event.Lifecycle != nil:
		h, ok := s.Handles[event.HandleID]
		if !ok {
			h = &HandleStats{Resource: event.Resource, Label: event.Label}
			s.Handles[event.HandleID] = h
		}
		if event.Lifecycle.Action == trace.ActionOpen {
			h.Opened = event.Timestamp
		} else {
			h.Closed = event.Timestamp
		}

	case event.Call != nil:
		cs, ok := s.Calls[event.Call.Op]
		if !ok {
			cs = &CallStats{}
			s.Calls[event.Call.Op] = cs
		}
		cs.Count++
		if !event.Call.OK {
			cs.Failures++
		}
		cs.Total += event.Call.Duration
		if event.Call.Duration > cs.Max {
			cs.Max = event.Call.Duration
		}
		cs.Bytes += event.Call.Bytes

	case event.StateChange != nil:
		if event.StateChange.OldState == "unlocked" {
			s.LockAcquisitions++
		} else if event.StateChange.NewState == "unlocked" {
			s.LockReleases++
		}

	case event.Error != nil:
		s.Errors++
		code := event.Error.CodeName
		if code == "" {
			code = event.Error.Domain
		}
		s.ErrorsByCode[code]++
	}
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := trace.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== NVMe Handle Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Resource:")
	for _, r := range trace.Resources {
		if count := stats.EventsByResource[r]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", r.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, c := range trace.Categories {
		if count := stats.EventsByCategory[c]; count > 0 {
			fmt.Fprintf(w, "  %-14s %d\n", c.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Calls) > 0 {
		ops := make([]string, 0, len(stats.Calls))
		for op := range stats.Calls {
			ops = append(ops, op)
		}
		sort.Slice(ops, func(i, j int) bool {
			ci, cj := stats.Calls[ops[i]], stats.Calls[ops[j]]
			if ci.Count != cj.Count {
				return ci.Count > cj.Count
			}
			return ops[i] < ops[j]
		})

		fmt.Fprintln(w, "Calls:")
		for _, op := range ops {
			cs := stats.Calls[op]
			fmt.Fprintf(w, "  %-32s %5d", op, cs.Count)
			if cs.Failures > 0 {
				fmt.Fprintf(w, "  failed %d", cs.Failures)
			}
			if cs.Total > 0 {
				fmt.Fprintf(w, "  total %s  max %s", formatDuration(cs.Total), formatDuration(cs.Max))
			}
			if cs.Bytes > 0 {
				fmt.Fprintf(w, "  %d bytes", cs.Bytes)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Handles: %d\n", len(stats.Handles))
	if leaked := stats.Leaked(); len(leaked) > 0 {
		fmt.Fprintf(w, "Still open at end of trace: %d\n", len(leaked))
		for _, id := range leaked {
			h := stats.Handles[id]
			fmt.Fprintf(w, "  [%s] %s %s\n", shortenID(id), h.Resource, h.Label)
		}
	}

	if stats.LockAcquisitions > 0 || stats.LockReleases > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Locks: %d acquired, %d released\n", stats.LockAcquisitions, stats.LockReleases)
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
		codes := make([]string, 0, len(stats.ErrorsByCode))
		for code := range stats.ErrorsByCode {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %-32s %d\n", code, stats.ErrorsByCode[code])
		}
	}
}
