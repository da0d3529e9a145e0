package trace

import (
	"time"
)

// Event is one entry of the handle trace.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// HandleID identifies the wrapper that produced the event (UUID).
	HandleID string `cbor:"2,keyasint"`

	// ParentID is the handle the wrapper was created from, if any.
	ParentID string `cbor:"3,keyasint,omitempty"`

	// Resource is the kind of foreign handle the wrapper owns.
	Resource Resource `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Label is a short human readable name such as "nsid 1" or a log page name.
	Label string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Lifecycle   *LifecycleEvent   `cbor:"10,keyasint,omitempty"`
	Call        *CallEvent        `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Resource is the family of foreign handle an event refers to.
type Resource uint8

const (
	ResourceSession        Resource = 0
	ResourceControllerIter Resource = 1
	ResourceController     Resource = 2
	ResourceControllerInfo Resource = 3
	ResourceNamespaceIter  Resource = 4
	ResourceNamespace      Resource = 5
	ResourceNamespaceInfo  Resource = 6
	ResourceLock           Resource = 7
	ResourceFormatRequest  Resource = 8
	ResourceFirmwareCommit Resource = 9
	ResourceLogRequest     Resource = 10
)

// Resources lists every resource kind in display order.
var Resources = []Resource{
	ResourceSession, ResourceControllerIter, ResourceController, ResourceControllerInfo,
	ResourceNamespaceIter, ResourceNamespace, ResourceNamespaceInfo, ResourceLock,
	ResourceFormatRequest, ResourceFirmwareCommit, ResourceLogRequest,
}

// String returns the resource name.
func (r Resource) String() string {
	switch r {
	case ResourceSession:
		return "SESSION"
	case ResourceControllerIter:
		return "CTRL_ITER"
	case ResourceController:
		return "CONTROLLER"
	case ResourceControllerInfo:
		return "CTRL_INFO"
	case ResourceNamespaceIter:
		return "NS_ITER"
	case ResourceNamespace:
		return "NAMESPACE"
	case ResourceNamespaceInfo:
		return "NS_INFO"
	case ResourceLock:
		return "LOCK"
	case ResourceFormatRequest:
		return "FORMAT_REQ"
	case ResourceFirmwareCommit:
		return "FW_COMMIT_REQ"
	case ResourceLogRequest:
		return "LOG_REQ"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryLifecycle indicates a handle was opened or closed.
	CategoryLifecycle Category = 0
	// CategoryCall indicates a foreign call completed.
	CategoryCall Category = 1
	// CategoryState indicates a lock state change.
	CategoryState Category = 2
	// CategoryError indicates a failure.
	CategoryError Category = 3
)

// Categories lists every category in display order.
var Categories = []Category{CategoryLifecycle, CategoryCall, CategoryState, CategoryError}

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLifecycle:
		return "LIFECYCLE"
	case CategoryCall:
		return "CALL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LifecycleAction says whether a handle was opened or closed.
type LifecycleAction uint8

const (
	ActionOpen  LifecycleAction = 0
	ActionClose LifecycleAction = 1
)

// String returns the action name.
func (a LifecycleAction) String() string {
	switch a {
	case ActionOpen:
		return "OPEN"
	case ActionClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// LifecycleEvent records handle creation and destruction.
type LifecycleEvent struct {
	Action LifecycleAction `cbor:"1,keyasint"`
}

// CallEvent records one foreign call.
type CallEvent struct {
	// Op is the libnvme entry point, e.g. "nvme_format_req_exec".
	Op string `cbor:"1,keyasint"`

	// OK is the boolean outcome reported by the library.
	OK bool `cbor:"2,keyasint"`

	// Duration is how long the call took.
	Duration time.Duration `cbor:"3,keyasint,omitempty"`

	// Bytes is the payload size for data transfers (firmware chunks, log pages).
	Bytes int `cbor:"4,keyasint,omitempty"`

	// Offset is the transfer offset for firmware chunks.
	Offset *uint64 `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures lock transitions.
type StateChangeEvent struct {
	// OldState is the previous state (empty for initial state).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason explains why the state changed.
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures a failure reported through the error layer.
type ErrorEventData struct {
	// Domain is the error classification domain (session, controller, info, local).
	Domain string `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the raw library error code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// CodeName is the symbolic name of Code.
	CodeName string `cbor:"4,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"5,keyasint,omitempty"`

	// Errno is the OS error number reported with the failure.
	Errno int32 `cbor:"6,keyasint,omitempty"`

	// Lock is the lock level being acquired when the failure occurred.
	Lock string `cbor:"7,keyasint,omitempty"`
}
