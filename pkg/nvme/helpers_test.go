package nvme

import (
	"testing"

	"github.com/nvme-go/nvme-go/pkg/nvmesim"
	"github.com/nvme-go/nvme-go/pkg/trace"
	"github.com/stretchr/testify/mock"
)

func openSim(t *testing.T, fix nvmesim.Fixture) (*Session, *nvmesim.Sim) {
	t.Helper()
	sim := nvmesim.New(fix)
	sess, err := Open(Config{Library: sim})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess, sim
}

func openController(t *testing.T) (*Controller, *nvmesim.Sim) {
	t.Helper()
	sess, sim := openSim(t, nvmesim.DefaultFixture())
	ctrl, err := sess.ControllerByInstance(0)
	if err != nil {
		t.Fatalf("ControllerByInstance failed: %v", err)
	}
	return ctrl, sim
}

func writeLock(t *testing.T) (*WriteLockedController, *nvmesim.Sim) {
	t.Helper()
	ctrl, sim := openController(t)
	w, err := ctrl.WriteLock()
	if err != nil {
		t.Fatalf("WriteLock failed: %v", err)
	}
	return w, sim
}

// opsAfter returns the ops recorded after the first n.
func opsAfter(sim *nvmesim.Sim, n int) []string {
	return sim.Ops()[n:]
}

type stubTraceLogger struct{ mock.Mock }

func newStubTraceLogger() *stubTraceLogger {
	l := &stubTraceLogger{}
	l.On("Log", mock.Anything).Return()
	return l
}

func (l *stubTraceLogger) Log(event trace.Event) { l.Called(event) }

func (l *stubTraceLogger) events() []trace.Event {
	events := make([]trace.Event, 0, len(l.Calls))
	for _, c := range l.Calls {
		events = append(events, c.Arguments.Get(0).(trace.Event))
	}
	return events
}

// callsTo returns the call events recorded for op.
func (l *stubTraceLogger) callsTo(op string) []*trace.CallEvent {
	var calls []*trace.CallEvent
	for _, e := range l.events() {
		if e.Category == trace.CategoryCall && e.Call.Op == op {
			calls = append(calls, e.Call)
		}
	}
	return calls
}

// tracedWriteLock write-locks controller 0 of a default simulator with
// events going to a stub logger.
func tracedWriteLock(t *testing.T) (*WriteLockedController, *nvmesim.Sim, *stubTraceLogger) {
	t.Helper()
	sim := nvmesim.New(nvmesim.DefaultFixture())
	events := newStubTraceLogger()
	sess, err := Open(Config{Library: sim, TraceLogger: events})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { sess.Close() })

	ctrl, err := sess.ControllerByInstance(0)
	if err != nil {
		t.Fatalf("ControllerByInstance failed: %v", err)
	}
	w, err := ctrl.WriteLock()
	if err != nil {
		t.Fatalf("WriteLock failed: %v", err)
	}
	return w, sim, events
}
