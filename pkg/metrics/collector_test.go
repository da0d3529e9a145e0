package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/nvme"
	"github.com/nvme-go/nvme-go/pkg/nvmesim"
	"github.com/nvme-go/nvme-go/pkg/trace"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(Config{})
	require.NoError(t, err)
	return c
}

// value returns the value of the metric family name whose labels include
// every pair in labels.
func value(t *testing.T, c *Collector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			switch {
			case m.Counter != nil:
				return m.GetCounter().GetValue()
			case m.Gauge != nil:
				return m.GetGauge().GetValue()
			case m.Histogram != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func lifecycle(res trace.Resource, action trace.LifecycleAction) trace.Event {
	return trace.Event{Timestamp: time.Now(), Resource: res, Category: trace.CategoryLifecycle,
		Lifecycle: &trace.LifecycleEvent{Action: action}}
}

func TestCollectorCountsCalls(t *testing.T) {
	c := newTestCollector(t)

	for _, ok := range []bool{true, true, false} {
		c.Log(trace.Event{Resource: trace.ResourceFormatRequest, Category: trace.CategoryCall,
			Call: &trace.CallEvent{Op: "nvme_format_req_exec", OK: ok, Duration: 2 * time.Second}})
	}

	assert.Equal(t, 2.0, value(t, c, "nvme_calls_total",
		map[string]string{"resource": "FORMAT_REQ", "op": "nvme_format_req_exec", "outcome": "ok"}))
	assert.Equal(t, 1.0, value(t, c, "nvme_calls_total",
		map[string]string{"op": "nvme_format_req_exec", "outcome": "error"}))
	assert.Equal(t, 3.0, value(t, c, "nvme_call_duration_seconds",
		map[string]string{"op": "nvme_format_req_exec"}))
}

func TestCollectorTracksOpenHandles(t *testing.T) {
	c := newTestCollector(t)

	c.Log(lifecycle(trace.ResourceController, trace.ActionOpen))
	c.Log(lifecycle(trace.ResourceController, trace.ActionOpen))
	c.Log(lifecycle(trace.ResourceLock, trace.ActionOpen))
	c.Log(lifecycle(trace.ResourceController, trace.ActionClose))

	assert.Equal(t, 1.0, value(t, c, "nvme_open_handles", map[string]string{"resource": "CONTROLLER"}))
	assert.Equal(t, 1.0, value(t, c, "nvme_open_handles", map[string]string{"resource": "LOCK"}))
}

func TestCollectorLockTransitions(t *testing.T) {
	c := newTestCollector(t)
	state := func(from, to string) trace.Event {
		return trace.Event{Resource: trace.ResourceLock, Category: trace.CategoryState,
			StateChange: &trace.StateChangeEvent{OldState: from, NewState: to}}
	}

	c.Log(state("unlocked", "write-locked"))
	c.Log(state("write-locked", "unlocked"))
	c.Log(state("unlocked", "read-locked"))
	code := 89
	c.Log(trace.Event{Resource: trace.ResourceController, Category: trace.CategoryError,
		Error: &trace.ErrorEventData{Domain: "controller", Code: &code, CodeName: "NVME_ERR_LOCK_WOULD_BLOCK",
			Context: "failed to grab nvme controller lock", Lock: "write"}})
	c.Log(trace.Event{Resource: trace.ResourceController, Category: trace.CategoryError,
		Error: &trace.ErrorEventData{Domain: "local", Message: "nvme: controller is held by a lock wrapper", Lock: "read"}})

	assert.Equal(t, 1.0, value(t, c, "nvme_lock_transitions_total", map[string]string{"level": "write", "outcome": "acquired"}))
	assert.Equal(t, 1.0, value(t, c, "nvme_lock_transitions_total", map[string]string{"level": "write", "outcome": "released"}))
	assert.Equal(t, 1.0, value(t, c, "nvme_lock_transitions_total", map[string]string{"level": "read", "outcome": "acquired"}))
	assert.Equal(t, 1.0, value(t, c, "nvme_lock_transitions_total", map[string]string{"level": "write", "outcome": "contended"}))
	assert.Equal(t, 1.0, value(t, c, "nvme_lock_transitions_total", map[string]string{"level": "read", "outcome": "failed"}))
	assert.Equal(t, 1.0, value(t, c, "nvme_errors_total", map[string]string{"domain": "controller", "code": "NVME_ERR_LOCK_WOULD_BLOCK"}))
}

func TestCollectorCountsSessionLockAttempts(t *testing.T) {
	c := newTestCollector(t)
	sim := nvmesim.New(nvmesim.DefaultFixture())
	sess, err := nvme.Open(nvme.Config{Library: sim, TraceLogger: c})
	require.NoError(t, err)
	defer sess.Close()

	ctrl, err := sess.ControllerByInstance(0)
	require.NoError(t, err)

	sim.HoldLock(0, native.LockWrite)
	res := ctrl.TryWriteLock()
	require.Equal(t, nvme.LockContended, res.Status)
	_, err = ctrl.ReadLock()
	require.ErrorIs(t, err, nvme.ErrCtrlLocked)
	sim.HoldLock(0, 0)

	w, err := ctrl.WriteLock()
	require.NoError(t, err)
	_, err = ctrl.ReadLock()
	require.ErrorIs(t, err, nvme.ErrControllerHeld)
	w.Unlock()

	transitions := func(level, outcome string) float64 {
		return value(t, c, "nvme_lock_transitions_total", map[string]string{"level": level, "outcome": outcome})
	}
	assert.Equal(t, 1.0, transitions("write", "contended"))
	assert.Equal(t, 1.0, transitions("read", "contended"))
	assert.Equal(t, 1.0, transitions("read", "failed"))
	assert.Equal(t, 1.0, transitions("write", "acquired"))
	assert.Equal(t, 1.0, transitions("write", "released"))
	assert.Zero(t, transitions("unknown", "contended"))
}

func TestCollectorLocalErrors(t *testing.T) {
	c := newTestCollector(t)
	c.Log(trace.Event{Category: trace.CategoryError, Error: &trace.ErrorEventData{Domain: "local", Message: "nvme: request already consumed"}})

	assert.Equal(t, 1.0, value(t, c, "nvme_errors_total", map[string]string{"domain": "local", "code": "none"}))
}

func TestCollectorHandler(t *testing.T) {
	c, err := NewCollector(Config{Namespace: "test", ConstLabels: map[string]string{"host": "box1"}})
	require.NoError(t, err)
	c.Log(lifecycle(trace.ResourceSession, trace.ActionOpen))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `test_open_handles{host="box1",resource="SESSION"} 1`), string(body))
}
