package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/nvme-go/nvme-go/pkg/trace"
)

// RunExport exports the trace file to the specified format. An empty output
// writes to w.
func RunExport(path, format, output string, w io.Writer) error {
	reader, err := trace.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

// jsonEvent is the JSON form of an event, with enum names spelled out.
type jsonEvent struct {
	Timestamp   string                  `json:"timestamp"`
	HandleID    string                  `json:"handle_id"`
	ParentID    string                  `json:"parent_id,omitempty"`
	Resource    string                  `json:"resource"`
	Category    string                  `json:"category"`
	Label       string                  `json:"label,omitempty"`
	Action      string                  `json:"action,omitempty"`
	Call        *trace.CallEvent        `json:"call,omitempty"`
	StateChange *trace.StateChangeEvent `json:"state_change,omitempty"`
	Error       *trace.ErrorEventData   `json:"error,omitempty"`
}

func toJSONEvent(event trace.Event) jsonEvent {
	je := jsonEvent{
		Timestamp:   event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		HandleID:    event.HandleID,
		ParentID:    event.ParentID,
		Resource:    event.Resource.String(),
		Category:    event.Category.String(),
		Label:       event.Label,
		Call:        event.Call,
		StateChange: event.StateChange,
		Error:       event.Error,
	}
	if event.Lifecycle != nil {
		je.Action = event.Lifecycle.Action.String()
	}
	return je
}

func exportJSONL(reader *trace.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toJSONEvent(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *trace.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "handle_id", "parent_id", "resource", "category", "label", "type", "op", "ok", "duration_us", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var op, ok, duration, errMsg string
		switch {
		case event.Call != nil:
			op = event.Call.Op
			ok = strconv.FormatBool(event.Call.OK)
			duration = strconv.FormatInt(event.Call.Duration.Microseconds(), 10)
		case event.StateChange != nil:
			op = event.StateChange.OldState + "->" + event.StateChange.NewState
		case event.Error != nil:
			errMsg = event.Error.Message
		}

		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.HandleID,
			event.ParentID,
			event.Resource.String(),
			event.Category.String(),
			event.Label,
			eventType(event),
			op,
			ok,
			duration,
			errMsg,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
