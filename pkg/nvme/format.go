package nvme

import (
	"fmt"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

const (
	maxLbaf = 63
	maxSes  = 2
)

// Secure erase settings accepted by SetSes.
const (
	SesNone          uint32 = 0
	SesUserData      uint32 = 1
	SesCryptographic uint32 = 2
)

// NsidAll addresses every namespace of the controller.
const NsidAll uint32 = 0xFFFFFFFF

// FormatRequest builds one format command. It can only be created from a
// write-locked controller and is closed when that lock is released.
type FormatRequest struct {
	request
	h native.FormatReq
}

// FormatRequest creates a format request builder.
func (w *WriteLockedController) FormatRequest() (*FormatRequest, error) {
	if err := w.usable(); err != nil {
		return nil, err
	}

	c := w.st.ctrl
	var h native.FormatReq
	ok := w.st.node.call("nvme_format_req_init", func() bool {
		var ok bool
		h, ok = c.lib.FormatReqInit(c.handle)
		return ok
	})
	if err := w.st.node.check(ok, c.errs, staticContext("failed to create format request")); err != nil {
		return nil, err
	}

	f := &FormatRequest{request: request{lock: w.st}, h: h}
	f.node = w.st.node.child(trace.ResourceFormatRequest, "", "nvme_format_req_fini", func() {
		c.lib.FormatReqFini(h)
	})
	return f, nil
}

// SetLbaf sets the LBA format index to format with.
func (f *FormatRequest) SetLbaf(lbaf uint32) (*FormatRequest, error) {
	if err := f.usable(); err != nil {
		return nil, err
	}
	if lbaf > maxLbaf {
		return nil, f.reject(&FieldError{Request: "format", Field: "lbaf", Value: uint64(lbaf), Reason: "must be at most 63"})
	}
	err := f.set("nvme_format_req_set_lbaf",
		func() bool { return f.lock.ctrl.lib.FormatReqSetLbaf(f.h, lbaf) },
		func() string { return fmt.Sprintf("failed to set LBA format %d on format request", lbaf) })
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SetNsid sets the namespace to format. NsidAll formats every namespace.
func (f *FormatRequest) SetNsid(nsid uint32) (*FormatRequest, error) {
	err := f.set("nvme_format_req_set_nsid",
		func() bool { return f.lock.ctrl.lib.FormatReqSetNsid(f.h, nsid) },
		func() string { return fmt.Sprintf("failed to set nsid %d on format request", nsid) })
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SetSes sets the secure erase setting.
func (f *FormatRequest) SetSes(ses uint32) (*FormatRequest, error) {
	if err := f.usable(); err != nil {
		return nil, err
	}
	if ses > maxSes {
		return nil, f.reject(&FieldError{Request: "format", Field: "ses", Value: uint64(ses), Reason: "must be at most 2"})
	}
	err := f.set("nvme_format_req_set_ses",
		func() bool { return f.lock.ctrl.lib.FormatReqSetSes(f.h, ses) },
		func() string { return fmt.Sprintf("failed to set ses %d on format request", ses) })
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Execute submits the format command. The request is consumed.
func (f *FormatRequest) Execute() error {
	return f.exec("nvme_format_req_exec",
		func() bool { return f.lock.ctrl.lib.FormatReqExec(f.h) },
		"failed to execute format request")
}

// Close frees the request handle. It is safe to call more than once and
// after Execute.
func (f *FormatRequest) Close() error { return f.close() }
