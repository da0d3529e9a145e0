// Package commands implements the nvmetrace CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nvme-go/nvme-go/pkg/trace"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Resource *trace.Resource
	Category *trace.Category
	HandleID string
}

func (f ViewFilter) traceFilter() trace.Filter {
	return trace.Filter{
		Resource: f.Resource,
		Category: f.Category,
		HandleID: f.HandleID,
	}
}

// eventType returns a short label for the event payload.
func eventType(event trace.Event) string {
	switch {
	case event.Lifecycle != nil:
		if event.Lifecycle.Action == trace.ActionOpen {
			return "Open"
		}
		return "Close"
	case event.Call != nil:
		return "Call"
	case event.StateChange != nil:
		return "State"
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event trace.Event) {
	// Header line: timestamp [handle:id] RESOURCE label Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	header := fmt.Sprintf("%s [handle:%s] %s", ts, shortenID(event.HandleID), event.Resource)
	if event.Label != "" {
		header += fmt.Sprintf(" %q", event.Label)
	}
	fmt.Fprintf(w, "%s %s\n", header, eventType(event))

	switch {
	case event.Lifecycle != nil:
		if event.ParentID != "" {
			fmt.Fprintf(w, "  Parent: %s\n", shortenID(event.ParentID))
		}
	case event.Call != nil:
		formatCallDetails(w, event.Call)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// shortenID returns the first 8 characters of a handle id.
func shortenID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatCallDetails(w io.Writer, call *trace.CallEvent) {
	result := "ok"
	if !call.OK {
		result = "FAILED"
	}
	fmt.Fprintf(w, "  %s: %s", call.Op, result)
	if call.Duration > 0 {
		fmt.Fprintf(w, " in %s", formatDuration(call.Duration))
	}
	fmt.Fprintln(w)
	if call.Bytes > 0 {
		fmt.Fprintf(w, "  Bytes: %d", call.Bytes)
		if call.Offset != nil {
			fmt.Fprintf(w, " at offset 0x%x", *call.Offset)
		}
		fmt.Fprintln(w)
	}
}

func formatStateChangeDetails(w io.Writer, sc *trace.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *trace.ErrorEventData) {
	fmt.Fprintf(w, "  Domain: %s\n", err.Domain)
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		if err.CodeName != "" {
			fmt.Fprintf(w, "  Code: %s (%d)\n", err.CodeName, *err.Code)
		} else {
			fmt.Fprintf(w, "  Code: %d\n", *err.Code)
		}
	}
	if err.Errno != 0 {
		fmt.Fprintf(w, "  Errno: %d\n", err.Errno)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
	if err.Lock != "" {
		fmt.Fprintf(w, "  Lock: %s\n", err.Lock)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseResourceFlag parses a resource name (case-insensitive), e.g.
// "controller" or "format_req".
func ParseResourceFlag(s string) (trace.Resource, error) {
	name := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for _, r := range trace.Resources {
		if r.String() == name {
			return r, nil
		}
	}
	names := make([]string, len(trace.Resources))
	for i, r := range trace.Resources {
		names[i] = strings.ToLower(r.String())
	}
	return 0, fmt.Errorf("invalid resource: %s (must be one of %s)", s, strings.Join(names, ", "))
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (trace.Category, error) {
	switch strings.ToLower(s) {
	case "lifecycle":
		return trace.CategoryLifecycle, nil
	case "call":
		return trace.CategoryCall, nil
	case "state":
		return trace.CategoryState, nil
	case "error":
		return trace.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be lifecycle, call, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := trace.NewFilteredReader(path, filter.traceFilter())
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
