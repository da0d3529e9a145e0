// Package nvme manages NVMe controllers through illumos libnvme.
//
// Every libnvme handle is owned by exactly one wrapper, and wrappers form a
// tree rooted at a Session:
//
//	Session
//	├── ControllerDiscovery
//	└── Controller
//	    ├── ControllerInfo
//	    ├── NamespaceDiscovery
//	    ├── Namespace ── NamespaceInfo
//	    └── lock ── FormatRequest, FirmwareCommitRequest
//
// Closing a wrapper closes its children newest first and then frees its own
// handle exactly once. Using a wrapper after it, or anything above it, was
// closed returns ErrClosed instead of touching the handle.
//
// # Locking
//
// Operations that change the device need the controller's advisory write
// lock. The lock level is carried in the type: ReadLock and WriteLock turn a
// *Controller into a *ReadLockedController or *WriteLockedController, and
// only the latter has FormatRequest, FirmwareLoad, FirmwareCommitRequest and
// WdcResizeSet. Unlock hands the *Controller back.
//
//	locked, err := ctrl.WriteLock()
//	if err != nil {
//	    var lerr *nvme.LockError
//	    if errors.As(err, &lerr) {
//	        ctrl = lerr.Controller // still ours
//	    }
//	    return err
//	}
//	defer locked.Unlock()
//
// TryReadLock and TryWriteLock never block. Contention is reported as the
// LockContended status rather than as an error.
//
// The advisory lock is a device-level lock. Wrappers are not safe for
// concurrent use by multiple goroutines.
//
// # Errors
//
// Library failures are *Error (session and controller handles) or
// *InfoError (snapshots), formatted as "context: message [errno]". Compare
// them by code with errors.Is against the Err sentinels, or read the code
// with CodeOf. Codes this package does not know are kept as data.
package nvme
