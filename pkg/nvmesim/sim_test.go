package nvmesim

import (
	"testing"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCtrl(t *testing.T, s *Sim, instance int32) (native.Nvme, native.Ctrl) {
	t.Helper()
	h := s.Init()
	require.NotZero(t, h)
	c, ok := s.CtrlInitByInstance(h, instance)
	require.True(t, ok)
	return h, c
}

func TestSimLocking(t *testing.T) {
	s := New(DefaultFixture())
	_, a := openCtrl(t, s, 0)
	_, b := openCtrl(t, s, 0)

	require.True(t, s.CtrlLock(a, native.LockRead, 0))
	require.True(t, s.CtrlLock(b, native.LockRead, 0))
	assert.Equal(t, native.LockRead, s.LockHeld(0))

	s.CtrlUnlock(b)
	assert.False(t, s.CtrlLock(b, native.LockWrite, native.LockDontBlock))
	assert.Equal(t, codeLockWouldBlock, s.CtrlErr(b))
	assert.Equal(t, int32(11), s.CtrlSyserr(b))

	assert.False(t, s.CtrlLock(b, native.LockWrite, 0))
	assert.Equal(t, codeCtrlLocked, s.CtrlErr(b))

	assert.False(t, s.CtrlLock(a, native.LockRead, 0))
	assert.Equal(t, codeLockProg, s.CtrlErr(a))

	s.CtrlUnlock(a)
	require.True(t, s.CtrlLock(b, native.LockWrite, 0))
	assert.Equal(t, native.LockWrite, s.LockHeld(0))
	s.CtrlUnlock(b)
	s.CtrlUnlock(b)
	assert.Equal(t, 1, s.BadUnlocks())
}

func TestSimExternalHolder(t *testing.T) {
	s := New(DefaultFixture())
	_, c := openCtrl(t, s, 0)

	s.HoldLock(0, native.LockRead)
	assert.True(t, s.CtrlLock(c, native.LockRead, native.LockDontBlock))
	s.CtrlUnlock(c)
	assert.False(t, s.CtrlLock(c, native.LockWrite, native.LockDontBlock))

	s.HoldLock(0, 0)
	assert.True(t, s.CtrlLock(c, native.LockWrite, native.LockDontBlock))
}

func TestSimStaleErrorReads(t *testing.T) {
	s := New(DefaultFixture())
	h, c := openCtrl(t, s, 0)

	s.CtrlErr(c)
	s.Errmsg(h)
	assert.Equal(t, 2, s.StaleErrorReads())

	_, ok := s.CtrlInitByInstance(h, 5)
	require.False(t, ok)
	assert.Equal(t, codeBadController, s.Err(h))
	assert.Equal(t, 2, s.StaleErrorReads())
}

func TestSimReleaseTracking(t *testing.T) {
	s := New(DefaultFixture())
	h, c := openCtrl(t, s, 0)
	require.True(t, s.CtrlLock(c, native.LockWrite, 0))

	s.CtrlFini(c)
	assert.Equal(t, 1, s.FiniWhileLocked())
	s.CtrlFini(c)
	assert.Equal(t, 1, s.DoubleFrees())

	s.Fini(h)
	assert.Zero(t, s.LiveHandles())
}

func TestSimFaultsQueue(t *testing.T) {
	s := New(DefaultFixture())
	h, c := openCtrl(t, s, 0)
	s.Fail("nvme_ctrl_info_snap", codeInternal, 0)
	s.Fail("nvme_ctrl_info_snap", codeBadDevi, 0)

	_, ok := s.CtrlInfoSnap(c)
	assert.False(t, ok)
	assert.Equal(t, codeInternal, s.CtrlErr(c))
	_, ok = s.CtrlInfoSnap(c)
	assert.False(t, ok)
	assert.Equal(t, codeBadDevi, s.CtrlErr(c))
	info, ok := s.CtrlInfoSnap(c)
	require.True(t, ok)
	s.CtrlInfoFree(info)

	s.CtrlFini(c)
	s.Fini(h)
	assert.Equal(t, []string{"nvme_init", "nvme_ctrl_init_by_instance"}, s.Ops()[:2])
}

func TestSimFirmwareRevision(t *testing.T) {
	assert.Equal(t, "NEWFW002", imageRevision([]byte("NEWFW002rest")))
	assert.Equal(t, "FW1", imageRevision([]byte("FW1     ")))
	assert.Equal(t, "UNKNOWN", imageRevision([]byte{0, 1, 2, 3, 4, 5, 6, 7}))
	assert.Equal(t, "UNKNOWN", imageRevision([]byte("short")))
}

func TestSimIdentify(t *testing.T) {
	d := &device{fix: DefaultFixture().Controllers[0], slots: []string{"A", "B", "C"}}
	id := d.identify()
	require.Len(t, id, native.IdentifyCtrlSize)
	assert.Equal(t, byte(0x96), id[0])
	assert.Equal(t, byte(0x1b), id[1])
	assert.Equal(t, "SIM0000001", string(id[4:14]))
	assert.Equal(t, byte(3<<1|1), id[260])
}
