package nvme

import (
	"errors"
	"fmt"
	"syscall"
)

// Local errors. These never come from libnvme.
var (
	// ErrSessionInit is returned by Open when libnvme cannot create a handle.
	ErrSessionInit = errors.New("nvme: failed to initialize libnvme handle")

	// ErrClosed is returned when a wrapper, or the wrapper it was created
	// from, has already been closed.
	ErrClosed = errors.New("nvme: handle is closed")

	// ErrDiscoveryDone is returned by Next once iteration has finished.
	ErrDiscoveryDone = errors.New("nvme: discovery finished")

	// ErrDiscoveryFailed is returned by Next after the iterator has reported
	// a fatal error. The iterator is not stepped again.
	ErrDiscoveryFailed = errors.New("nvme: discovery previously failed")

	// ErrControllerHeld is returned when locking a controller that a live
	// lock wrapper already holds.
	ErrControllerHeld = errors.New("nvme: controller is held by a lock wrapper")

	// ErrLockReleased is returned by request builders whose lock was released.
	ErrLockReleased = errors.New("nvme: controller lock was released")

	// ErrRequestConsumed is returned when a request builder is used after
	// Execute or after a failed setter.
	ErrRequestConsumed = errors.New("nvme: request already consumed")

	// ErrFirmwareImageTooLarge is returned when the firmware offset would overflow.
	ErrFirmwareImageTooLarge = errors.New("nvme: supplied firmware is too large")

	// ErrLogSizeUnknown is returned when libnvme cannot size a log page.
	ErrLogSizeUnknown = errors.New("nvme: log page size is unknown")

	// ErrLogTooLarge is returned when libnvme reports a log page larger than
	// MaxLogPageSize.
	ErrLogTooLarge = errors.New("nvme: log page is too large")
)

// Sentinels for errors.Is matching against library failures by code.
var (
	ErrNoMem          = &Error{Code: CodeNoMem}
	ErrPrivs          = &Error{Code: CodePrivs}
	ErrBadController  = &Error{Code: CodeBadController}
	ErrNeedCtrlWrlock = &Error{Code: CodeNeedCtrlWrlock}
	ErrCtrlLocked     = &Error{Code: CodeCtrlLocked}
	ErrNsLocked       = &Error{Code: CodeNsLocked}
	ErrLockWouldBlock = &Error{Code: CodeLockWouldBlock}
	ErrCtrlDead       = &Error{Code: CodeCtrlDead}
	ErrCtrlGone       = &Error{Code: CodeCtrlGone}
)

// Domain identifies which family of handle reported a failure.
type Domain uint8

const (
	DomainSession Domain = iota
	DomainController
	DomainInfo
)

// String returns the domain name.
func (d Domain) String() string {
	switch d {
	case DomainSession:
		return "session"
	case DomainController:
		return "controller"
	case DomainInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Error is a libnvme failure reported on a session or controller handle.
type Error struct {
	Domain  Domain
	Code    ErrorCode
	Context string
	Message string
	Errno   int32
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s [%s]", e.Context, e.Message, errnoString(e.Errno))
}

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Unwrap returns the OS error number as a syscall.Errno, if there is one.
func (e *Error) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}
	return syscall.Errno(e.Errno)
}

// InfoError is a failure reported on a controller or namespace snapshot.
type InfoError struct {
	Code    InfoErrorCode
	Context string
	Message string
	Errno   int32
}

func (e *InfoError) Error() string {
	return fmt.Sprintf("%s: %s [%s]", e.Context, e.Message, errnoString(e.Errno))
}

// Is matches another *InfoError with the same code.
func (e *InfoError) Is(target error) bool {
	if t, ok := target.(*InfoError); ok {
		return e.Code == t.Code
	}
	return false
}

// Unwrap returns the OS error number as a syscall.Errno, if there is one.
func (e *InfoError) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}
	return syscall.Errno(e.Errno)
}

// LockError is returned when a blocking lock attempt fails. The controller
// is unchanged and still owned by the caller.
type LockError struct {
	Controller *Controller
	Err        error
}

func (e *LockError) Error() string { return e.Err.Error() }

func (e *LockError) Unwrap() error { return e.Err }

// FieldError is returned when a request field is outside its legal domain.
// No library call is made.
type FieldError struct {
	Request string
	Field   string
	Value   uint64
	Reason  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("nvme: %s request: invalid %s %d: %s", e.Request, e.Field, e.Value, e.Reason)
}

// LogSizeError is returned when a log page has a different size than the
// structure it is decoded into.
type LogSizeError struct {
	Name     string
	Size     uint64
	Expected uint64
}

func (e *LogSizeError) Error() string {
	return fmt.Sprintf("nvme: libnvme says the %s log page is %d bytes but it should be %d bytes",
		e.Name, e.Size, e.Expected)
}

// CodeOf returns the library error code carried by err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}
