package nvme

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

// tracer fans wrapper activity out to the trace logger and the debug logger.
// One tracer is shared by a session and everything created from it.
type tracer struct {
	events trace.Logger
	logger *slog.Logger
}

func newTracer(events trace.Logger, logger *slog.Logger) *tracer {
	if events == nil {
		events = trace.NoopLogger{}
	}
	return &tracer{events: events, logger: logger}
}

func (t *tracer) debugLog(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Debug(msg, args...)
	}
}

// node is one wrapper in the ownership tree. Closing a node closes its live
// children newest first, then runs its own release exactly once.
type node struct {
	id        string
	resource  trace.Resource
	label     string
	parent    *node
	children  []*node
	releaseOp string
	release   func()
	closed    bool
	t         *tracer
}

func (t *tracer) root(res trace.Resource, label, releaseOp string, release func()) *node {
	n := t.newNode(res, label, releaseOp, release)
	n.open()
	return n
}

// child registers a new node owned by n.
func (n *node) child(res trace.Resource, label, releaseOp string, release func()) *node {
	c := n.t.newNode(res, label, releaseOp, release)
	c.parent = n
	n.children = append(n.children, c)
	c.open()
	return c
}

func (t *tracer) newNode(res trace.Resource, label, releaseOp string, release func()) *node {
	return &node{
		id:        uuid.NewString(),
		resource:  res,
		label:     label,
		releaseOp: releaseOp,
		release:   release,
		t:         t,
	}
}

func (n *node) open() {
	n.emit(trace.Event{Category: trace.CategoryLifecycle, Lifecycle: &trace.LifecycleEvent{Action: trace.ActionOpen}})
	n.t.debugLog("nvme handle opened", "resource", n.resource.String(), "id", n.id, "label", n.label)
}

func (n *node) alive() bool { return !n.closed }

func (n *node) close() {
	if n.closed {
		return
	}
	n.closed = true

	children := n.children
	n.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		children[i].close()
	}

	if n.release != nil {
		start := time.Now()
		n.release()
		n.emitCall(n.releaseOp, true, time.Since(start), nil)
	}
	if n.parent != nil {
		n.parent.forget(n)
	}

	n.emit(trace.Event{Category: trace.CategoryLifecycle, Lifecycle: &trace.LifecycleEvent{Action: trace.ActionClose}})
	n.t.debugLog("nvme handle closed", "resource", n.resource.String(), "id", n.id, "label", n.label)
}

func (n *node) forget(c *node) {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// call runs one foreign call and records its outcome.
func (n *node) call(op string, fn func() bool) bool {
	start := time.Now()
	ok := fn()
	n.emitCall(op, ok, time.Since(start), nil)
	return ok
}

// transfer is call for data movement, recording size and offset.
func (n *node) transfer(op string, size int, offset *uint64, fn func() bool) bool {
	start := time.Now()
	ok := fn()
	n.emitCall(op, ok, time.Since(start), func(c *trace.CallEvent) {
		c.Bytes = size
		c.Offset = offset
	})
	return ok
}

// check converts a failed call into an error from src and records it.
func (n *node) check(ok bool, src errorSource, context func() string) error {
	err := check(ok, src, context)
	if err != nil {
		n.fail(err)
	}
	return err
}

// fail records err against n and returns it.
func (n *node) fail(err error) error {
	return n.failWith(err, nil)
}

// failWith is fail with a hook to annotate the recorded error.
func (n *node) failWith(err error, extra func(*trace.ErrorEventData)) error {
	data := &trace.ErrorEventData{Domain: "local", Message: err.Error()}
	switch e := err.(type) {
	case *Error:
		code := int(e.Code)
		data = &trace.ErrorEventData{
			Domain:   e.Domain.String(),
			Message:  e.Message,
			Code:     &code,
			CodeName: e.Code.String(),
			Context:  e.Context,
			Errno:    e.Errno,
		}
	case *InfoError:
		code := int(e.Code)
		data = &trace.ErrorEventData{
			Domain:   DomainInfo.String(),
			Message:  e.Message,
			Code:     &code,
			CodeName: e.Code.String(),
			Context:  e.Context,
			Errno:    e.Errno,
		}
	}
	if extra != nil {
		extra(data)
	}
	n.emit(trace.Event{Category: trace.CategoryError, Error: data})
	return err
}

func (n *node) state(oldState, newState, reason string) {
	n.emit(trace.Event{
		Category:    trace.CategoryState,
		StateChange: &trace.StateChangeEvent{OldState: oldState, NewState: newState, Reason: reason},
	})
	n.t.debugLog("nvme lock state", "id", n.id, "from", oldState, "to", newState, "reason", reason)
}

func (n *node) emitCall(op string, ok bool, d time.Duration, extra func(*trace.CallEvent)) {
	c := &trace.CallEvent{Op: op, OK: ok, Duration: d}
	if extra != nil {
		extra(c)
	}
	n.emit(trace.Event{Category: trace.CategoryCall, Call: c})
}

func (n *node) emit(e trace.Event) {
	e.Timestamp = time.Now()
	e.HandleID = n.id
	e.Resource = n.resource
	e.Label = n.label
	if n.parent != nil {
		e.ParentID = n.parent.id
	}
	n.t.events.Log(e)
}
