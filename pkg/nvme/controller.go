package nvme

import (
	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

// Controller is an NVMe controller in the unlocked state. Lock it with
// ReadLock or WriteLock to reach the operations that need the advisory lock.
//
// A Controller is not safe for concurrent use.
type Controller struct {
	sess   *Session
	lib    native.Library
	handle native.Ctrl
	node   *node
	errs   controllerErrors
	held   *lockState
}

// ID returns the trace handle id of the controller.
func (c *Controller) ID() string { return c.node.id }

// Locked reports whether a lock wrapper currently holds the controller.
func (c *Controller) Locked() bool { return c.held != nil }

// GetInfo snapshots the controller's identify data. The snapshot is closed
// with the controller.
func (c *Controller) GetInfo() (*ControllerInfo, error) {
	if !c.node.alive() {
		return nil, ErrClosed
	}

	var h native.CtrlInfo
	ok := c.node.call("nvme_ctrl_info_snap", func() bool {
		var ok bool
		h, ok = c.lib.CtrlInfoSnap(c.handle)
		return ok
	})
	if err := c.node.check(ok, c.errs, staticContext("failed to get controller snapshot")); err != nil {
		return nil, err
	}

	info := newControllerInfo(c.lib, h)
	info.node = c.node.child(trace.ResourceControllerInfo, info.serial, "nvme_ctrl_info_free", func() {
		c.lib.CtrlInfoFree(h)
	})
	return info, nil
}

// NamespaceDiscovery starts a walk over the controller's namespaces that
// satisfy level.
func (c *Controller) NamespaceDiscovery(level NamespaceLevel) (*NamespaceDiscovery, error) {
	if !c.node.alive() {
		return nil, ErrClosed
	}

	var it native.NsIter
	ok := c.node.call("nvme_ns_discover_init", func() bool {
		var ok bool
		it, ok = c.lib.NsDiscoverInit(c.handle, level.native())
		return ok
	})
	if err := c.node.check(ok, c.errs, staticContext("failed to init nvme namespace discovery")); err != nil {
		return nil, err
	}

	d := &NamespaceDiscovery{ctrl: c, iter: it}
	d.node = c.node.child(trace.ResourceNamespaceIter, level.String(), "nvme_ns_discover_fini", func() {
		c.lib.NsDiscoverFini(it)
	})
	return d, nil
}

// Close unlocks the controller if a lock wrapper still holds it, closes
// everything created from it, and finalizes the handle. It is safe to call
// more than once.
func (c *Controller) Close() error {
	c.node.close()
	return nil
}
