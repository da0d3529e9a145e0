package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nvme-go/nvme-go/pkg/nvme"
	"github.com/nvme-go/nvme-go/pkg/nvmesim"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

const (
	sessionID = "11111111-aaaa-bbbb-cccc-000000000001"
	ctrlID    = "22222222-aaaa-bbbb-cccc-000000000002"
	lockID    = "33333333-aaaa-bbbb-cccc-000000000003"
)

var baseTime = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func at(ms int) time.Time { return baseTime.Add(time.Duration(ms) * time.Millisecond) }

// sampleEvents is a short session: open a controller, write-lock it, fail a
// format, unlock. The controller and session are never closed.
func sampleEvents() []trace.Event {
	code := 42
	return []trace.Event{
		{Timestamp: at(0), HandleID: sessionID, Resource: trace.ResourceSession, Category: trace.CategoryLifecycle,
			Lifecycle: &trace.LifecycleEvent{Action: trace.ActionOpen}},
		{Timestamp: at(1), HandleID: sessionID, Resource: trace.ResourceSession, Category: trace.CategoryCall,
			Call: &trace.CallEvent{Op: "nvme_ctrl_init_by_instance", OK: true, Duration: 250 * time.Microsecond}},
		{Timestamp: at(2), HandleID: ctrlID, ParentID: sessionID, Resource: trace.ResourceController, Category: trace.CategoryLifecycle,
			Label: "nvme0", Lifecycle: &trace.LifecycleEvent{Action: trace.ActionOpen}},
		{Timestamp: at(3), HandleID: ctrlID, Resource: trace.ResourceController, Category: trace.CategoryCall,
			Label: "nvme0", Call: &trace.CallEvent{Op: "nvme_ctrl_lock", OK: true, Duration: 2 * time.Millisecond}},
		{Timestamp: at(4), HandleID: lockID, ParentID: ctrlID, Resource: trace.ResourceLock, Category: trace.CategoryLifecycle,
			Label: "write", Lifecycle: &trace.LifecycleEvent{Action: trace.ActionOpen}},
		{Timestamp: at(5), HandleID: lockID, Resource: trace.ResourceLock, Category: trace.CategoryState,
			Label: "write", StateChange: &trace.StateChangeEvent{OldState: "unlocked", NewState: "write-locked", Reason: "lock acquired"}},
		{Timestamp: at(6), HandleID: lockID, Resource: trace.ResourceLock, Category: trace.CategoryCall,
			Label: "write", Call: &trace.CallEvent{Op: "nvme_format_req_init", OK: false, Duration: 100 * time.Microsecond}},
		{Timestamp: at(7), HandleID: lockID, Resource: trace.ResourceLock, Category: trace.CategoryError,
			Label: "write", Error: &trace.ErrorEventData{Domain: "controller", Message: "format not supported",
				Code: &code, CodeName: "NVME_ERR_FORMAT_UNSUP_BY_DEV", Context: "failed to create format request", Errno: 0}},
		{Timestamp: at(8), HandleID: lockID, Resource: trace.ResourceLock, Category: trace.CategoryCall,
			Label: "write", Call: &trace.CallEvent{Op: "nvme_ctrl_unlock", OK: true}},
		{Timestamp: at(9), HandleID: lockID, Resource: trace.ResourceLock, Category: trace.CategoryState,
			Label: "write", StateChange: &trace.StateChangeEvent{OldState: "write-locked", NewState: "unlocked", Reason: "lock released"}},
		{Timestamp: at(10), HandleID: lockID, ParentID: ctrlID, Resource: trace.ResourceLock, Category: trace.CategoryLifecycle,
			Label: "write", Lifecycle: &trace.LifecycleEvent{Action: trace.ActionClose}},
	}
}

func createTestTraceFile(t *testing.T, events []trace.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.ntrace")

	logger, err := trace.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test trace: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// recordSession runs a format against the simulator and returns the trace
// it produced.
func recordSession(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.ntrace")
	logger, err := trace.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create trace: %v", err)
	}

	sess, err := nvme.Open(nvme.Config{Library: nvmesim.New(nvmesim.DefaultFixture()), TraceLogger: logger})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctrl, err := sess.ControllerByInstance(0)
	if err != nil {
		t.Fatalf("ControllerByInstance: %v", err)
	}
	w, err := ctrl.WriteLock()
	if err != nil {
		t.Fatalf("WriteLock: %v", err)
	}
	req, err := w.FormatRequest()
	if err != nil {
		t.Fatalf("FormatRequest: %v", err)
	}
	if req, err = req.SetLbaf(1); err != nil {
		t.Fatalf("SetLbaf: %v", err)
	}
	if err := req.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	w.Unlock()
	sess.Close()

	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}
