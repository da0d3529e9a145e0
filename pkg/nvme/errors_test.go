package nvme

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"no errno": {
			err:  &Error{Code: CodeFormatLbafRange, Context: "failed to set LBA format 9 on format request", Message: "lba format 9 is out of range"},
			want: "failed to set LBA format 9 on format request: lba format 9 is out of range [no system errno]",
		},
		"info": {
			err:  &InfoError{Code: InfoCodeNsInactive, Context: "failed to get current format of NVMe namespace", Message: "namespace 3 is not active"},
			want: "failed to get current format of NVMe namespace: namespace 3 is not active [no system errno]",
		},
		"field": {
			err:  &FieldError{Request: "format", Field: "ses", Value: 3, Reason: "must be at most 2"},
			want: "nvme: format request: invalid ses 3: must be at most 2",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.err.Error())
		})
	}
}

func TestErrorUnwrapsErrno(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &Error{Code: CodeCtrlLocked, Errno: int32(syscall.EBUSY)})
	assert.ErrorIs(t, err, syscall.EBUSY)
	assert.ErrorIs(t, err, ErrCtrlLocked)
	assert.NotErrorIs(t, err, ErrCtrlDead)

	var errno syscall.Errno
	assert.True(t, errors.As(err, &errno))
	assert.Equal(t, syscall.EBUSY, errno)

	assert.Nil(t, (&Error{Code: CodeInternal}).Unwrap())
	assert.Nil(t, (&InfoError{Code: InfoCodeTransport}).Unwrap())
}

func TestErrorIsComparesCodeOnly(t *testing.T) {
	a := &Error{Domain: DomainSession, Code: CodePrivs, Context: "one"}
	b := &Error{Domain: DomainController, Code: CodePrivs, Context: "two"}
	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, &InfoError{Code: InfoErrorCode(CodePrivs)})
	assert.NotErrorIs(t, &InfoError{Code: InfoCodeTransport}, &InfoError{Code: InfoCodeVersion})
}

func TestUnknownCodesArePreserved(t *testing.T) {
	code := ErrorCode(4000)
	assert.False(t, code.Known())
	assert.Equal(t, "ErrorCode(4000)", code.String())

	err := &Error{Code: code}
	got, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, code, got)

	assert.Equal(t, "InfoErrorCode(77)", InfoErrorCode(77).String())
}

func TestErrorCodeNames(t *testing.T) {
	tests := map[ErrorCode]string{
		CodeOK:                     "NVME_ERR_OK",
		CodeInternal:               "NVME_ERR_INTERNAL",
		CodeBadController:          "NVME_ERR_BAD_CONTROLLER",
		CodeLogNameUnknown:         "NVME_ERR_LOG_NAME_UNKNOWN",
		CodeFwSlotRo:               "NVME_ERR_FW_SLOT_RO",
		CodeFormatReqMissingFields: "NVME_ERR_FORMAT_REQ_MISSING_FIELDS",
		CodeNeedCtrlWrlock:         "NVME_ERR_NEED_CTRL_WRLOCK",
		CodeLockWouldBlock:         "NVME_ERR_LOCK_WOULD_BLOCK",
		CodeCtrlGone:               "NVME_ERR_CTRL_GONE",
	}
	for code, want := range tests {
		assert.Equal(t, want, code.String())
	}

	// Positions match the library's numbering.
	assert.Equal(t, ErrorCode(5), CodeInternal)
	assert.Equal(t, ErrorCode(34), CodeLogNameUnknown)
	assert.Equal(t, ErrorCode(61), CodeFwSlotRo)
	assert.Equal(t, ErrorCode(84), CodeCtrlLocked)
	assert.Equal(t, ErrorCode(89), CodeLockWouldBlock)
	assert.Equal(t, ErrorCode(96), CodeCtrlGone)
	assert.Equal(t, InfoErrorCode(8), InfoCodeNsInactive)
	assert.Equal(t, "NVME_INFO_ERR_NS_INACTIVE", InfoCodeNsInactive.String())
}

func TestLockErrorUnwraps(t *testing.T) {
	inner := &Error{Code: CodeLockProg}
	err := &LockError{Err: inner}
	assert.ErrorIs(t, err, inner)
	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, CodeLockProg, code)
}

func TestDomainNames(t *testing.T) {
	assert.Equal(t, "session", DomainSession.String())
	assert.Equal(t, "controller", DomainController.String())
	assert.Equal(t, "info", DomainInfo.String())
	assert.Equal(t, "unknown", Domain(9).String())
}
