package nvme

import (
	"errors"
	"fmt"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

// LockLevel is the level of the advisory controller lock.
type LockLevel uint8

const (
	LockRead LockLevel = iota + 1
	LockWrite
)

// String returns the lock level name.
func (l LockLevel) String() string {
	switch l {
	case LockRead:
		return "read"
	case LockWrite:
		return "write"
	default:
		return "unknown"
	}
}

func (l LockLevel) native() native.LockLevel {
	if l == LockWrite {
		return native.LockWrite
	}
	return native.LockRead
}

const stateUnlocked = "unlocked"

func (l LockLevel) state() string { return l.String() + "-locked" }

// lockState is one acquisition of the advisory lock. Its node is a child of
// the controller, so closing the controller releases the lock first, and
// request builders are children of it, so releasing the lock closes them.
type lockState struct {
	ctrl  *Controller
	level LockLevel
	node  *node
}

func (c *Controller) lock(level LockLevel, flags native.LockFlags) (*lockState, error) {
	if !c.node.alive() {
		return nil, ErrClosed
	}
	attempt := func(d *trace.ErrorEventData) { d.Lock = level.String() }
	if c.held != nil {
		return nil, c.node.failWith(ErrControllerHeld, attempt)
	}

	ok := c.node.call("nvme_ctrl_lock", func() bool {
		return c.lib.CtrlLock(c.handle, level.native(), flags)
	})
	if err := check(ok, c.errs, staticContext("failed to grab nvme controller lock")); err != nil {
		return nil, c.node.failWith(err, attempt)
	}

	st := &lockState{ctrl: c, level: level}
	st.node = c.node.child(trace.ResourceLock, level.String(), "nvme_ctrl_unlock", func() {
		c.lib.CtrlUnlock(c.handle)
		c.held = nil
		st.node.state(level.state(), stateUnlocked, "lock released")
	})
	c.held = st
	st.node.state(stateUnlocked, level.state(), "lock acquired")
	return st, nil
}

// ReadLock blocks until the controller's read lock is acquired. On failure
// the returned *LockError carries the controller, which is unchanged.
func (c *Controller) ReadLock() (*ReadLockedController, error) {
	st, err := c.lock(LockRead, native.LockBlock)
	if err != nil {
		return nil, &LockError{Controller: c, Err: err}
	}
	return &ReadLockedController{locked{st}}, nil
}

// WriteLock blocks until the controller's write lock is acquired. On failure
// the returned *LockError carries the controller, which is unchanged.
func (c *Controller) WriteLock() (*WriteLockedController, error) {
	st, err := c.lock(LockWrite, native.LockBlock)
	if err != nil {
		return nil, &LockError{Controller: c, Err: err}
	}
	return &WriteLockedController{locked{st}}, nil
}

// TryReadLock attempts the read lock without blocking.
func (c *Controller) TryReadLock() TryLockResult[*ReadLockedController] {
	st, err := c.lock(LockRead, native.LockDontBlock)
	if err != nil {
		return tryLockFailure[*ReadLockedController](c, err)
	}
	return TryLockResult[*ReadLockedController]{Status: LockAcquired, Lock: &ReadLockedController{locked{st}}}
}

// TryWriteLock attempts the write lock without blocking.
func (c *Controller) TryWriteLock() TryLockResult[*WriteLockedController] {
	st, err := c.lock(LockWrite, native.LockDontBlock)
	if err != nil {
		return tryLockFailure[*WriteLockedController](c, err)
	}
	return TryLockResult[*WriteLockedController]{Status: LockAcquired, Lock: &WriteLockedController{locked{st}}}
}

func tryLockFailure[L any](c *Controller, err error) TryLockResult[L] {
	if errors.Is(err, ErrLockWouldBlock) {
		c.node.t.debugLog("nvme controller lock contended", "id", c.node.id)
		return TryLockResult[L]{Status: LockContended, Controller: c}
	}
	return TryLockResult[L]{Status: LockFailed, Controller: c, Err: err}
}

// TryLockStatus is the outcome of a non-blocking lock attempt.
type TryLockStatus uint8

const (
	// LockAcquired means the lock is held; Lock is set.
	LockAcquired TryLockStatus = iota
	// LockContended means another owner holds the lock. Controller is
	// returned intact and may be locked again later.
	LockContended
	// LockFailed means the attempt failed for another reason; Err is set
	// and Controller is returned intact.
	LockFailed
)

// String returns the status name.
func (s TryLockStatus) String() string {
	switch s {
	case LockAcquired:
		return "acquired"
	case LockContended:
		return "contended"
	case LockFailed:
		return "failed"
	default:
		return fmt.Sprintf("TryLockStatus(%d)", uint8(s))
	}
}

// TryLockResult is returned by TryReadLock and TryWriteLock.
type TryLockResult[L any] struct {
	Status     TryLockStatus
	Lock       L
	Controller *Controller
	Err        error
}

// locked holds what both lock wrappers share.
type locked struct {
	st *lockState
}

// Controller returns the underlying controller.
func (l locked) Controller() *Controller { return l.st.ctrl }

// Level returns the level the lock was acquired at.
func (l locked) Level() LockLevel { return l.st.level }

// Held reports whether the lock is still held by this wrapper.
func (l locked) Held() bool { return l.st.node.alive() }

// ID returns the trace handle id of the lock.
func (l locked) ID() string { return l.st.node.id }

func (l locked) usable() error {
	if l.st.node.alive() {
		return nil
	}
	if !l.st.ctrl.node.alive() {
		return ErrClosed
	}
	return ErrLockReleased
}

// GetInfo snapshots the controller's identify data.
func (l locked) GetInfo() (*ControllerInfo, error) {
	if err := l.usable(); err != nil {
		return nil, err
	}
	return l.st.ctrl.GetInfo()
}

// NamespaceDiscovery starts a namespace walk on the controller.
func (l locked) NamespaceDiscovery(level NamespaceLevel) (*NamespaceDiscovery, error) {
	if err := l.usable(); err != nil {
		return nil, err
	}
	return l.st.ctrl.NamespaceDiscovery(level)
}

// LogPage reads the named log page.
func (l locked) LogPage(name string) (*LogPage, error) {
	if err := l.usable(); err != nil {
		return nil, err
	}
	return l.st.ctrl.LogPage(name)
}

// FirmwareLogPage reads and decodes the firmware slot log.
func (l locked) FirmwareLogPage() (*FirmwareLog, error) {
	if err := l.usable(); err != nil {
		return nil, err
	}
	return l.st.ctrl.FirmwareLogPage()
}

// unlock releases the lock, closing any request builders made from it.
func (l locked) unlock() *Controller {
	l.st.node.close()
	return l.st.ctrl
}

// ReadLockedController is a controller holding the read lock.
type ReadLockedController struct {
	locked
}

// Unlock releases the lock and returns the controller. It is safe to call
// more than once.
func (r *ReadLockedController) Unlock() *Controller { return r.unlock() }

// Close releases the lock and then the controller.
func (r *ReadLockedController) Close() error {
	return r.unlock().Close()
}

// WriteLockedController is a controller holding the write lock. Only it can
// create format and firmware requests.
type WriteLockedController struct {
	locked
}

// Unlock releases the lock and returns the controller. Outstanding request
// builders are closed. It is safe to call more than once.
func (w *WriteLockedController) Unlock() *Controller { return w.unlock() }

// Close releases the lock and then the controller.
func (w *WriteLockedController) Close() error {
	return w.unlock().Close()
}
