package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logOne(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsCall(t *testing.T) {
	offset := uint64(4096)
	entry := logOne(t, Event{
		Timestamp: time.Now(),
		HandleID:  "lock-1",
		ParentID:  "ctrl-1",
		Resource:  ResourceLock,
		Category:  CategoryCall,
		Call:      &CallEvent{Op: "nvme_fw_load", OK: true, Bytes: 4096, Offset: &offset},
	})

	if entry["level"] != "DEBUG" {
		t.Errorf("level: got %v, want DEBUG", entry["level"])
	}
	if entry["resource"] != "LOCK" {
		t.Errorf("resource: got %v, want LOCK", entry["resource"])
	}
	if entry["parent"] != "ctrl-1" {
		t.Errorf("parent: got %v, want ctrl-1", entry["parent"])
	}
	if entry["op"] != "nvme_fw_load" {
		t.Errorf("op: got %v", entry["op"])
	}
	if entry["offset"] != float64(4096) {
		t.Errorf("offset: got %v, want 4096", entry["offset"])
	}
}

func TestSlogAdapterLogsErrorAtWarn(t *testing.T) {
	code := 84
	entry := logOne(t, Event{
		Timestamp: time.Now(),
		HandleID:  "ctrl-1",
		Resource:  ResourceController,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Domain:   "controller",
			Message:  "controller is locked by another owner",
			Code:     &code,
			CodeName: "NVME_ERR_CTRL_LOCKED",
			Context:  "failed to grab nvme controller lock",
			Errno:    16,
		},
	})

	if entry["level"] != "WARN" {
		t.Errorf("level: got %v, want WARN", entry["level"])
	}
	if entry["error_name"] != "NVME_ERR_CTRL_LOCKED" {
		t.Errorf("error_name: got %v", entry["error_name"])
	}
	if entry["errno"] != float64(16) {
		t.Errorf("errno: got %v, want 16", entry["errno"])
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	entry := logOne(t, Event{
		Timestamp:   time.Now(),
		HandleID:    "lock-1",
		Resource:    ResourceLock,
		Category:    CategoryState,
		StateChange: &StateChangeEvent{OldState: "unlocked", NewState: "write-locked", Reason: "lock acquired"},
	})

	if entry["new_state"] != "write-locked" {
		t.Errorf("new_state: got %v", entry["new_state"])
	}
	if entry["reason"] != "lock acquired" {
		t.Errorf("reason: got %v", entry["reason"])
	}
}
