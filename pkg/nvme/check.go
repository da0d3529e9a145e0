package nvme

import "github.com/nvme-go/nvme-go/pkg/native"

// errorSource reads the current failure off a libnvme handle.
type errorSource interface {
	failure(context string) error
}

// check returns nil when ok is true, without touching src. Some handles
// assert when their error state is read while no error is pending.
func check(ok bool, src errorSource, context func() string) error {
	if ok {
		return nil
	}
	return src.failure(context())
}

type sessionErrors struct {
	lib native.Library
	h   native.Nvme
}

func (s sessionErrors) failure(context string) error {
	return &Error{
		Domain:  DomainSession,
		Code:    ErrorCode(s.lib.Err(s.h)),
		Context: context,
		Message: s.lib.Errmsg(s.h),
		Errno:   s.lib.Syserr(s.h),
	}
}

type controllerErrors struct {
	lib native.Library
	h   native.Ctrl
}

func (c controllerErrors) failure(context string) error {
	return &Error{
		Domain:  DomainController,
		Code:    ErrorCode(c.lib.CtrlErr(c.h)),
		Context: context,
		Message: c.lib.CtrlErrmsg(c.h),
		Errno:   c.lib.CtrlSyserr(c.h),
	}
}

type controllerInfoErrors struct {
	lib native.Library
	h   native.CtrlInfo
}

func (c controllerInfoErrors) failure(context string) error {
	return &InfoError{
		Code:    InfoErrorCode(c.lib.CtrlInfoErr(c.h)),
		Context: context,
		Message: c.lib.CtrlInfoErrmsg(c.h),
		Errno:   c.lib.CtrlInfoSyserr(c.h),
	}
}

type namespaceInfoErrors struct {
	lib native.Library
	h   native.NsInfo
}

func (n namespaceInfoErrors) failure(context string) error {
	return &InfoError{
		Code:    InfoErrorCode(n.lib.NsInfoErr(n.h)),
		Context: context,
		Message: n.lib.NsInfoErrmsg(n.h),
		Errno:   n.lib.NsInfoSyserr(n.h),
	}
}

func staticContext(s string) func() string {
	return func() string { return s }
}
