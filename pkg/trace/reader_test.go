package trace

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func createTestTraceFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ntrace")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test trace: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var read []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return read
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		read = append(read, event)
	}
}

func TestReaderIteratesEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), HandleID: "sess", Resource: ResourceSession, Category: CategoryLifecycle, Lifecycle: &LifecycleEvent{Action: ActionOpen}},
		{Timestamp: time.Now(), HandleID: "ctrl", ParentID: "sess", Resource: ResourceController, Category: CategoryLifecycle, Lifecycle: &LifecycleEvent{Action: ActionOpen}},
		{Timestamp: time.Now(), HandleID: "ctrl", ParentID: "sess", Resource: ResourceController, Category: CategoryCall, Call: &CallEvent{Op: "nvme_ctrl_lock", OK: true}},
	}

	path := createTestTraceFile(t, events)
	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 3 {
		t.Fatalf("got %d events, want 3", len(read))
	}
	if read[0].HandleID != "sess" {
		t.Errorf("first event HandleID = %q, want %q", read[0].HandleID, "sess")
	}
	if read[2].Call == nil || read[2].Call.Op != "nvme_ctrl_lock" {
		t.Errorf("last event call = %+v", read[2].Call)
	}
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ntrace")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err != io.EOF {
		t.Errorf("Next on empty file = %v, want io.EOF", err)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.ntrace")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFilterMatches(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lock := ResourceLock
	call := CategoryCall
	before := base.Add(-time.Second)
	after := base.Add(time.Second)

	failedCall := Event{Timestamp: base, HandleID: "lock", ParentID: "ctrl", Resource: ResourceLock, Category: CategoryCall,
		Call: &CallEvent{Op: "nvme_format_req_exec", OK: false}}
	okCall := Event{Timestamp: base, HandleID: "lock", ParentID: "ctrl", Resource: ResourceLock, Category: CategoryCall,
		Call: &CallEvent{Op: "nvme_fw_load", OK: true}}
	failure := Event{Timestamp: base, HandleID: "ctrl", Resource: ResourceController, Category: CategoryError,
		Error: &ErrorEventData{Domain: "controller", Message: "boom"}}

	tests := map[string]struct {
		filter Filter
		event  Event
		want   bool
	}{
		"empty filter":           {filter: Filter{}, event: okCall, want: true},
		"handle matches parent":  {filter: Filter{HandleID: "ctrl"}, event: okCall, want: true},
		"handle mismatch":        {filter: Filter{HandleID: "other"}, event: okCall, want: false},
		"resource":               {filter: Filter{Resource: &lock}, event: failure, want: false},
		"category":               {filter: Filter{Category: &call}, event: okCall, want: true},
		"op":                     {filter: Filter{Op: "nvme_fw_load"}, event: failedCall, want: false},
		"op on non-call":         {filter: Filter{Op: "nvme_fw_load"}, event: failure, want: false},
		"failed only ok call":    {filter: Filter{FailedOnly: true}, event: okCall, want: false},
		"failed only bad call":   {filter: Filter{FailedOnly: true}, event: failedCall, want: true},
		"failed only error":      {filter: Filter{FailedOnly: true}, event: failure, want: true},
		"time start inclusive":   {filter: Filter{TimeStart: &base}, event: okCall, want: true},
		"time start after event": {filter: Filter{TimeStart: &after}, event: okCall, want: false},
		"time end exclusive":     {filter: Filter{TimeEnd: &base}, event: okCall, want: false},
		"time end after event":   {filter: Filter{TimeStart: &before, TimeEnd: &after}, event: okCall, want: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			if got := tc.filter.Matches(tc.event); got != tc.want {
				t.Errorf("Matches() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestFilteredReaderSkipsEvents(t *testing.T) {
	events := []Event{
		{Timestamp: time.Now(), HandleID: "a", Category: CategoryCall, Call: &CallEvent{Op: "nvme_ctrl_lock", OK: true}},
		{Timestamp: time.Now(), HandleID: "a", Category: CategoryCall, Call: &CallEvent{Op: "nvme_ctrl_lock", OK: false}},
		{Timestamp: time.Now(), HandleID: "a", Category: CategoryError, Error: &ErrorEventData{Domain: "controller", Message: "locked"}},
	}
	path := createTestTraceFile(t, events)

	reader, err := NewFilteredReader(path, Filter{FailedOnly: true})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	read := readAll(t, reader)
	if len(read) != 2 {
		t.Fatalf("got %d events, want 2", len(read))
	}
	if read[1].Error == nil {
		t.Error("second event should be the error")
	}
}
