package nvme

import "fmt"

// WdcResizeGet returns the current capacity setting of a WDC device, in GB.
func (l locked) WdcResizeGet() (uint32, error) {
	if err := l.usable(); err != nil {
		return 0, err
	}
	c := l.st.ctrl
	var size uint32
	ok := l.st.node.call("nvme_wdc_resize_get", func() bool {
		var ok bool
		size, ok = c.lib.WdcResizeGet(c.handle)
		return ok
	})
	if err := l.st.node.check(ok, c.errs, staticContext("failed to get size of wdc device")); err != nil {
		return 0, err
	}
	return size, nil
}

// WdcResizeSet changes the capacity of a WDC device, in GB.
func (w *WriteLockedController) WdcResizeSet(size uint32) error {
	if err := w.usable(); err != nil {
		return err
	}
	c := w.st.ctrl
	ok := w.st.node.call("nvme_wdc_resize_set", func() bool { return c.lib.WdcResizeSet(c.handle, size) })
	return w.st.node.check(ok, c.errs, func() string {
		return fmt.Sprintf("failed to resize wdc device to %d", size)
	})
}
