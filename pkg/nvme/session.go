package nvme

import (
	"fmt"
	"log/slog"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

// Config configures a Session.
type Config struct {
	// Library is the libnvme binding. If nil, native.Default() is used.
	Library native.Library

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// TraceLogger receives handle trace events. If nil, tracing is disabled.
	TraceLogger trace.Logger
}

// DefaultConfig returns a Config using the platform library with logging off.
func DefaultConfig() Config {
	return Config{}
}

// Session owns the process's libnvme handle. Every other wrapper is created
// from a Session and is closed when the Session is closed.
//
// libnvme assumes a single privileged consumer per process. Opening more
// than one Session is allowed but its behavior is up to the library.
type Session struct {
	lib    native.Library
	handle native.Nvme
	node   *node
	errs   sessionErrors
}

// Open creates a Session. It fails only if libnvme cannot allocate a handle.
func Open(cfg Config) (*Session, error) {
	lib := cfg.Library
	if lib == nil {
		lib = native.Default()
	}
	t := newTracer(cfg.TraceLogger, cfg.Logger)

	h := lib.Init()
	if h == 0 {
		t.debugLog("nvme_init returned a null handle")
		return nil, ErrSessionInit
	}

	s := &Session{
		lib:    lib,
		handle: h,
		errs:   sessionErrors{lib: lib, h: h},
	}
	s.node = t.root(trace.ResourceSession, "", "nvme_fini", func() { lib.Fini(h) })
	return s, nil
}

// Close closes every wrapper created from the session, then the session
// itself. It is safe to call more than once.
func (s *Session) Close() error {
	s.node.close()
	return nil
}

// ControllerDiscovery starts a walk over the controllers present in the system.
func (s *Session) ControllerDiscovery() (*ControllerDiscovery, error) {
	if !s.node.alive() {
		return nil, ErrClosed
	}

	var it native.CtrlIter
	ok := s.node.call("nvme_ctrl_discover_init", func() bool {
		var ok bool
		it, ok = s.lib.CtrlDiscoverInit(s.handle)
		return ok
	})
	if err := s.node.check(ok, s.errs, staticContext("failed to init nvme controller discovery")); err != nil {
		return nil, err
	}

	d := &ControllerDiscovery{sess: s, iter: it}
	d.node = s.node.child(trace.ResourceControllerIter, "", "nvme_ctrl_discover_fini", func() {
		s.lib.CtrlDiscoverFini(it)
	})
	return d, nil
}

// ControllerByInstance opens the controller with the given driver instance
// number, e.g. 0 for nvme0.
func (s *Session) ControllerByInstance(instance int32) (*Controller, error) {
	if !s.node.alive() {
		return nil, ErrClosed
	}
	return s.initController(
		"nvme_ctrl_init_by_instance",
		func() (native.Ctrl, bool) { return s.lib.CtrlInitByInstance(s.handle, instance) },
		func() string { return fmt.Sprintf("failed to init nvme controller instance %d", instance) },
		fmt.Sprintf("nvme%d", instance),
	)
}

func (s *Session) initController(op string, initFn func() (native.Ctrl, bool), context func() string, label string) (*Controller, error) {
	var h native.Ctrl
	ok := s.node.call(op, func() bool {
		var ok bool
		h, ok = initFn()
		return ok
	})
	if err := s.node.check(ok, s.errs, context); err != nil {
		return nil, err
	}

	c := &Controller{
		sess:   s,
		lib:    s.lib,
		handle: h,
		errs:   controllerErrors{lib: s.lib, h: h},
	}
	c.node = s.node.child(trace.ResourceController, label, "nvme_ctrl_fini", func() { s.lib.CtrlFini(h) })
	return c, nil
}
