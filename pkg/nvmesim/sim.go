package nvmesim

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/nvme-go/nvme-go/pkg/native"
)

// libnvme error codes the simulator reports.
const (
	codeInternal          uint32 = 5
	codeBadDevi           uint32 = 8
	codeIllegalInstance   uint32 = 10
	codeBadController     uint32 = 11
	codeNsRange           uint32 = 15
	codeLogNameUnknown    uint32 = 34
	codeVuFuncUnsupByDev  uint32 = 52
	codeKernFwImpos       uint32 = 55
	codeFwLoadLenRange    uint32 = 56
	codeFwLoadOffsetRange uint32 = 57
	codeFwCommitSlotRange uint32 = 58
	codeFwCommitActRange  uint32 = 59
	codeFwCommitMissing   uint32 = 60
	codeFwSlotRo          uint32 = 61
	codeFormatLbafRange   uint32 = 66
	codeFormatSesRange    uint32 = 67
	codeFormatMissing     uint32 = 69
	codeNeedCtrlWrlock    uint32 = 82
	codeCtrlLocked        uint32 = 84
	codeLockProg          uint32 = 86
	codeLockWouldBlock    uint32 = 89
	codeAttachKern        uint32 = 91

	infoCodeTransport uint32 = 1
	infoCodeBadLbaFmt uint32 = 4
	infoCodeNsInact   uint32 = 8
)

const (
	nsidAll         = 0xFFFFFFFF
	fwLoadGranule   = 4
	firmwareLogSize = 512
	healthLogSize   = 512
)

// Call is one recorded library call.
type Call struct {
	Op     string
	Handle uintptr
}

// FormatRecord is the last format command a controller executed.
type FormatRecord struct {
	Lbaf uint32
	Nsid uint32
	Ses  uint32
}

type fault struct {
	code  uint32
	errno int32
}

type errState struct {
	code    uint32
	msg     string
	errno   int32
	pending bool
}

func (e *errState) set(code uint32, errno int32, format string, args ...any) {
	e.code = code
	e.errno = errno
	e.msg = fmt.Sprintf(format, args...)
	e.pending = true
}

func (e *errState) clear() { *e = errState{} }

type device struct {
	fix        ControllerFixture
	devi       native.DevInfo
	namespaces []*namespace
	slots      []string
	activeSlot uint8
	nextSlot   uint8
	image      []byte
	lastFormat *FormatRecord
	wdcSize    uint32

	external native.LockLevel
	readers  int
	writer   bool
}

type namespace struct {
	fix      NamespaceFixture
	attached bool
	format   uint32
}

type session struct {
	errState
}

type ctrlIter struct {
	sess *session
	pos  int
}

type ctrlHandle struct {
	errState
	sess *session
	dev  *device
	lock native.LockLevel
}

type ctrlInfo struct {
	errState
	ctrl *ctrlHandle
}

type nsIter struct {
	ctrl *ctrlHandle
	ids  []uint32
	pos  int
}

type nsHandle struct {
	ctrl *ctrlHandle
	ns   *namespace
}

type nsInfo struct {
	errState
	ns *nsHandle
}

type logDisc struct {
	ctrl *ctrlHandle
	lf   LogFixture
}

type logReq struct {
	ctrl *ctrlHandle
	disc *logDisc
	out  []byte
}

type fwCommitReq struct {
	ctrl      *ctrlHandle
	slot      uint32
	action    uint32
	slotSet   bool
	actionSet bool
}

type formatReq struct {
	ctrl    *ctrlHandle
	lbaf    uint32
	nsid    uint32
	ses     uint32
	lbafSet bool
}

// Sim is a native.Library backed by an in-memory model of the fixture. It
// records every call so tests can check ordering and exactly-once release.
//
// Sim is safe for concurrent use.
type Sim struct {
	mu sync.Mutex

	devices []*device
	next    uintptr

	// live holds every handle that must be released, keyed by handle.
	live     map[uintptr]any
	borrowed map[uintptr]any

	calls       []Call
	faults      map[string][]fault
	steps       map[string][]native.IterState
	outputs     map[string][]int
	staleReads  int
	doubleFrees int
	finiLocked  int
	badUnlocks  int
}

var _ native.Library = (*Sim)(nil)

// New creates a simulator for f.
func New(f Fixture) *Sim {
	s := &Sim{
		next:     0x1000,
		live:     make(map[uintptr]any),
		borrowed: make(map[uintptr]any),
		faults:   make(map[string][]fault),
		steps:    make(map[string][]native.IterState),
		outputs:  make(map[string][]int),
	}
	for _, cf := range f.Controllers {
		d := &device{
			fix:        cf,
			slots:      append([]string(nil), cf.FirmwareSlots...),
			activeSlot: cf.ActiveSlot,
			wdcSize:    cf.WdcSize,
		}
		if len(d.slots) == 0 {
			d.slots = []string{cf.Firmware}
		}
		if d.activeSlot == 0 {
			d.activeSlot = 1
		}
		for _, nf := range cf.Namespaces {
			d.namespaces = append(d.namespaces, &namespace{fix: nf, attached: nf.Attached, format: nf.Format})
		}
		d.devi = native.DevInfo(s.borrow(d))
		s.devices = append(s.devices, d)
	}
	return s
}

// Fail makes the next call of op fail with code and errno. Failures queue
// up when Fail is called more than once for the same op.
func (s *Sim) Fail(op string, code uint32, errno int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], fault{code: code, errno: errno})
}

// InjectStep makes the next call of a discovery step op
// ("nvme_ctrl_discover_step" or "nvme_ns_discover_step") return st. It is
// used to feed states the real library never returns.
func (s *Sim) InjectStep(op string, st native.IterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[op] = append(s.steps[op], st)
}

// HoldLock makes another process hold instance's controller lock at level.
// A zero level drops the hold.
func (s *Sim) HoldLock(instance int32, level native.LockLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(instance); d != nil {
		d.external = level
	}
}

// LockHeld reports the level at which handles of this process hold
// instance's lock, or 0.
func (s *Sim) LockHeld(instance int32) native.LockLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.device(instance)
	switch {
	case d == nil:
		return 0
	case d.writer:
		return native.LockWrite
	case d.readers > 0:
		return native.LockRead
	default:
		return 0
	}
}

// Calls returns every call made so far, in order.
func (s *Sim) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Ops returns the names of every call made so far, in order.
func (s *Sim) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]string, len(s.calls))
	for i, c := range s.calls {
		ops[i] = c.Op
	}
	return ops
}

// Count returns how many times op was called.
func (s *Sim) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// LiveHandles returns the number of handles not yet released.
func (s *Sim) LiveHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// DoubleFrees returns how many release calls named a handle that was
// already released or never issued.
func (s *Sim) DoubleFrees() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doubleFrees
}

// StaleErrorReads returns how many times an error accessor was called on a
// handle with no pending failure.
func (s *Sim) StaleErrorReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staleReads
}

// FiniWhileLocked returns how many controllers were finalized while still
// holding their lock.
func (s *Sim) FiniWhileLocked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finiLocked
}

// BadUnlocks returns how many unlock calls found the controller unlocked.
func (s *Sim) BadUnlocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badUnlocks
}

// LogOutputSizes returns the size of every output buffer set on requests
// for the named log, in order.
func (s *Sim) LogOutputSizes(name string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.outputs[name]...)
}

// FirmwareImage returns the image staged on instance by firmware loads.
func (s *Sim) FirmwareImage(instance int32) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(instance); d != nil {
		return append([]byte(nil), d.image...)
	}
	return nil
}

// FirmwareSlot returns the revision in slot of instance.
func (s *Sim) FirmwareSlot(instance int32, slot int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.device(instance)
	if d == nil || slot < 1 || slot > len(d.slots) {
		return ""
	}
	return d.slots[slot-1]
}

// NextSlot returns the slot instance activates at the next reset, or 0.
func (s *Sim) NextSlot(instance int32) uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(instance); d != nil {
		return d.nextSlot
	}
	return 0
}

// LastFormat returns the last format command instance executed.
func (s *Sim) LastFormat(instance int32) (FormatRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.device(instance)
	if d == nil || d.lastFormat == nil {
		return FormatRecord{}, false
	}
	return *d.lastFormat, true
}

// Attached reports whether namespace nsid of instance is attached to blkdev.
func (s *Sim) Attached(instance int32, nsid uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.device(instance); d != nil {
		if ns := d.namespace(nsid); ns != nil {
			return ns.attached
		}
	}
	return false
}

// LogContent returns the bytes the named log of instance holds.
func (s *Sim) LogContent(instance int32, name string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.device(instance)
	if d == nil {
		return nil
	}
	lf, ok := d.log(name)
	if !ok {
		return nil
	}
	return d.logContent(lf, math.MaxUint64)
}

func (s *Sim) device(instance int32) *device {
	for _, d := range s.devices {
		if d.fix.Instance == instance {
			return d
		}
	}
	return nil
}

func (d *device) namespace(nsid uint32) *namespace {
	for _, ns := range d.namespaces {
		if ns.fix.ID == nsid {
			return ns
		}
	}
	return nil
}

func (s *Sim) record(op string, h uintptr) {
	s.calls = append(s.calls, Call{Op: op, Handle: h})
}

// injected pops a queued failure for op.
func (s *Sim) injected(op string) (fault, bool) {
	q := s.faults[op]
	if len(q) == 0 {
		return fault{}, false
	}
	s.faults[op] = q[1:]
	return q[0], true
}

func (s *Sim) alloc(obj any) uintptr {
	s.next += 0x10
	s.live[s.next] = obj
	return s.next
}

func (s *Sim) borrow(obj any) uintptr {
	s.next += 0x10
	s.borrowed[s.next] = obj
	return s.next
}

func (s *Sim) release(h uintptr) any {
	obj, ok := s.live[h]
	if !ok {
		s.doubleFrees++
		return nil
	}
	delete(s.live, h)
	return obj
}

func lookup[T any](s *Sim, h uintptr) T {
	if obj, ok := s.live[h].(T); ok {
		return obj
	}
	if obj, ok := s.borrowed[h].(T); ok {
		return obj
	}
	var zero T
	return zero
}

// readErr records an error accessor call.
func (s *Sim) readErr(op string, h uintptr, e *errState) {
	s.record(op, h)
	if e == nil || !e.pending {
		s.staleReads++
	}
}

// Session

func (s *Sim) Init() native.Nvme {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_init", 0)
	if _, ok := s.injected("nvme_init"); ok {
		return 0
	}
	return native.Nvme(s.alloc(&session{}))
}

func (s *Sim) Fini(h native.Nvme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_fini", uintptr(h))
	s.release(uintptr(h))
}

func (s *Sim) Err(h native.Nvme) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.sessErr(h)
	s.readErr("nvme_err", uintptr(h), e)
	if e == nil {
		return codeInternal
	}
	return e.code
}

func (s *Sim) Errmsg(h native.Nvme) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.sessErr(h)
	s.readErr("nvme_errmsg", uintptr(h), e)
	if e == nil {
		return "invalid session handle"
	}
	return e.msg
}

func (s *Sim) Syserr(h native.Nvme) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.sessErr(h)
	s.readErr("nvme_syserr", uintptr(h), e)
	if e == nil {
		return 0
	}
	return e.errno
}

func (s *Sim) sessErr(h native.Nvme) *errState {
	if sess := lookup[*session](s, uintptr(h)); sess != nil {
		return &sess.errState
	}
	return nil
}

// Controller discovery

func (s *Sim) CtrlDiscoverInit(h native.Nvme) (native.CtrlIter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_discover_init", uintptr(h))
	sess := lookup[*session](s, uintptr(h))
	sess.clear()
	if f, ok := s.injected("nvme_ctrl_discover_init"); ok {
		sess.set(f.code, f.errno, "simulated controller discovery init failure")
		return 0, false
	}
	return native.CtrlIter(s.alloc(&ctrlIter{sess: sess})), true
}

func (s *Sim) CtrlDiscoverStep(h native.CtrlIter) (native.IterState, native.CtrlDisc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_discover_step", uintptr(h))
	it := lookup[*ctrlIter](s, uintptr(h))
	if st, ok := s.popStep("nvme_ctrl_discover_step"); ok {
		return st, 0
	}
	if f, ok := s.injected("nvme_ctrl_discover_step"); ok {
		it.sess.set(f.code, f.errno, "simulated controller walk failure")
		return native.IterError, 0
	}
	if it.pos >= len(s.devices) {
		return native.IterDone, 0
	}
	d := s.devices[it.pos]
	it.pos++
	return native.IterValid, native.CtrlDisc(s.borrow(d))
}

func (s *Sim) popStep(op string) (native.IterState, bool) {
	q := s.steps[op]
	if len(q) == 0 {
		return 0, false
	}
	s.steps[op] = q[1:]
	return q[0], true
}

func (s *Sim) CtrlDiscoverFini(h native.CtrlIter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_discover_fini", uintptr(h))
	s.release(uintptr(h))
}

func (s *Sim) CtrlDiscDevi(h native.CtrlDisc) native.DevInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_disc_devi", uintptr(h))
	if d := lookup[*device](s, uintptr(h)); d != nil {
		return d.devi
	}
	return 0
}

func (s *Sim) CtrlInit(h native.Nvme, devi native.DevInfo) (native.Ctrl, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_init", uintptr(h))
	sess := lookup[*session](s, uintptr(h))
	sess.clear()
	if f, ok := s.injected("nvme_ctrl_init"); ok {
		sess.set(f.code, f.errno, "simulated controller init failure")
		return 0, false
	}
	d := lookup[*device](s, uintptr(devi))
	if d == nil {
		sess.set(codeBadDevi, 0, "devinfo node %#x is not an nvme controller", uintptr(devi))
		return 0, false
	}
	return native.Ctrl(s.alloc(&ctrlHandle{sess: sess, dev: d})), true
}

func (s *Sim) CtrlInitByInstance(h native.Nvme, instance int32) (native.Ctrl, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_init_by_instance", uintptr(h))
	sess := lookup[*session](s, uintptr(h))
	sess.clear()
	if f, ok := s.injected("nvme_ctrl_init_by_instance"); ok {
		sess.set(f.code, f.errno, "simulated controller init failure")
		return 0, false
	}
	if instance < 0 {
		sess.set(codeIllegalInstance, 0, "instance %d is invalid", instance)
		return 0, false
	}
	d := s.device(instance)
	if d == nil {
		sess.set(codeBadController, 6, "no nvme controller with instance %d", instance)
		return 0, false
	}
	return native.Ctrl(s.alloc(&ctrlHandle{sess: sess, dev: d})), true
}

func (s *Sim) CtrlFini(h native.Ctrl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_fini", uintptr(h))
	if c := lookup[*ctrlHandle](s, uintptr(h)); c != nil && c.lock != 0 {
		s.finiLocked++
		c.dev.unlock(c)
	}
	s.release(uintptr(h))
}

func (s *Sim) ctrlErr(h native.Ctrl) *errState {
	if c := lookup[*ctrlHandle](s, uintptr(h)); c != nil {
		return &c.errState
	}
	return nil
}

func (s *Sim) CtrlErr(h native.Ctrl) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ctrlErr(h)
	s.readErr("nvme_ctrl_err", uintptr(h), e)
	if e == nil {
		return codeInternal
	}
	return e.code
}

func (s *Sim) CtrlErrmsg(h native.Ctrl) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ctrlErr(h)
	s.readErr("nvme_ctrl_errmsg", uintptr(h), e)
	if e == nil {
		return "invalid controller handle"
	}
	return e.msg
}

func (s *Sim) CtrlSyserr(h native.Ctrl) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ctrlErr(h)
	s.readErr("nvme_ctrl_syserr", uintptr(h), e)
	if e == nil {
		return 0
	}
	return e.errno
}

// ctrlOp starts a controller-scoped call: it records op, clears the
// pending error and applies any injected failure.
func (s *Sim) ctrlOp(op string, h native.Ctrl) (*ctrlHandle, bool) {
	s.record(op, uintptr(h))
	c := lookup[*ctrlHandle](s, uintptr(h))
	if c == nil {
		return nil, false
	}
	c.clear()
	if f, ok := s.injected(op); ok {
		c.set(f.code, f.errno, "simulated %s failure", op)
		return c, false
	}
	return c, true
}

func (c *ctrlHandle) needWrite() bool {
	if c.lock == native.LockWrite {
		return true
	}
	c.set(codeNeedCtrlWrlock, 0, "operation requires the controller write lock")
	return false
}

// Locking

func (d *device) conflicts(level native.LockLevel) bool {
	if d.writer || d.external == native.LockWrite {
		return true
	}
	if level == native.LockWrite && (d.readers > 0 || d.external == native.LockRead) {
		return true
	}
	return false
}

func (d *device) unlock(c *ctrlHandle) {
	switch c.lock {
	case native.LockWrite:
		d.writer = false
	case native.LockRead:
		d.readers--
	}
	c.lock = 0
}

func (s *Sim) CtrlLock(h native.Ctrl, level native.LockLevel, flags native.LockFlags) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_ctrl_lock", h)
	if !ok {
		return false
	}
	if c.lock != 0 {
		c.set(codeLockProg, 0, "controller lock is already held by this handle")
		return false
	}
	if c.dev.conflicts(level) {
		if flags&native.LockDontBlock != 0 {
			c.set(codeLockWouldBlock, 11, "controller lock is held and blocking was not requested")
		} else {
			c.set(codeCtrlLocked, 16, "controller is locked by another owner")
		}
		return false
	}
	if level == native.LockWrite {
		c.dev.writer = true
	} else {
		c.dev.readers++
	}
	c.lock = level
	return true
}

func (s *Sim) CtrlUnlock(h native.Ctrl) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_unlock", uintptr(h))
	c := lookup[*ctrlHandle](s, uintptr(h))
	if c == nil || c.lock == 0 {
		s.badUnlocks++
		return
	}
	c.dev.unlock(c)
}

// Controller info

func (s *Sim) CtrlInfoSnap(h native.Ctrl) (native.CtrlInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_ctrl_info_snap", h)
	if !ok {
		return 0, false
	}
	return native.CtrlInfo(s.alloc(&ctrlInfo{ctrl: c})), true
}

func (s *Sim) CtrlInfoFree(h native.CtrlInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ctrl_info_free", uintptr(h))
	s.release(uintptr(h))
}

func (s *Sim) infoErr(h native.CtrlInfo) *errState {
	if i := lookup[*ctrlInfo](s, uintptr(h)); i != nil {
		return &i.errState
	}
	return nil
}

func (s *Sim) CtrlInfoErr(h native.CtrlInfo) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.infoErr(h)
	s.readErr("nvme_ctrl_info_err", uintptr(h), e)
	if e == nil {
		return 0
	}
	return e.code
}

func (s *Sim) CtrlInfoErrmsg(h native.CtrlInfo) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.infoErr(h)
	s.readErr("nvme_ctrl_info_errmsg", uintptr(h), e)
	if e == nil {
		return "invalid controller info handle"
	}
	return e.msg
}

func (s *Sim) CtrlInfoSyserr(h native.CtrlInfo) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.infoErr(h)
	s.readErr("nvme_ctrl_info_syserr", uintptr(h), e)
	if e == nil {
		return 0
	}
	return e.errno
}

func (s *Sim) info(op string, h native.CtrlInfo) *ctrlInfo {
	s.record(op, uintptr(h))
	return lookup[*ctrlInfo](s, uintptr(h))
}

func (s *Sim) CtrlInfoIdentify(h native.CtrlInfo) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.info("nvme_ctrl_info_identify", h)
	return i.ctrl.dev.identify()
}

// identify builds identify controller data with the fields the simulator
// models filled in.
func (d *device) identify() []byte {
	id := make([]byte, native.IdentifyCtrlSize)
	id[0] = byte(d.fix.PCIVendorID)
	id[1] = byte(d.fix.PCIVendorID >> 8)
	copy(id[4:24], padRight(d.fix.Serial, 20))
	copy(id[24:64], padRight(d.fix.Model, 40))
	copy(id[64:72], padRight(d.fix.Firmware, 8))
	frmw := byte(len(d.slots)&0x7) << 1
	if d.fix.Slot1ReadOnly {
		frmw |= 0x1
	}
	id[260] = frmw
	nn := d.nns()
	id[516] = byte(nn)
	id[517] = byte(nn >> 8)
	id[518] = byte(nn >> 16)
	id[519] = byte(nn >> 24)
	return id
}

func padRight(s string, n int) []byte {
	b := bytes.Repeat([]byte{' '}, n)
	copy(b, s)
	return b
}

func (d *device) nns() uint32 {
	if d.fix.MaxNamespaces != 0 {
		return d.fix.MaxNamespaces
	}
	return uint32(len(d.namespaces))
}

func (s *Sim) CtrlInfoModel(h native.CtrlInfo) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info("nvme_ctrl_info_model", h).ctrl.dev.fix.Model
}

func (s *Sim) CtrlInfoSerial(h native.CtrlInfo) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info("nvme_ctrl_info_serial", h).ctrl.dev.fix.Serial
}

func (s *Sim) CtrlInfoFwrev(h native.CtrlInfo) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.info("nvme_ctrl_info_fwrev", h)
	d := i.ctrl.dev
	if int(d.activeSlot) <= len(d.slots) && d.slots[d.activeSlot-1] != "" {
		return d.slots[d.activeSlot-1]
	}
	return d.fix.Firmware
}

func (s *Sim) CtrlInfoNns(h native.CtrlInfo) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info("nvme_ctrl_info_nns", h).ctrl.dev.nns()
}

func (s *Sim) CtrlInfoPCIVid(h native.CtrlInfo) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.info("nvme_ctrl_info_pci_vid", h)
	i.clear()
	if f, ok := s.injected("nvme_ctrl_info_pci_vid"); ok {
		i.set(f.code, f.errno, "simulated pci vid failure")
		return 0, false
	}
	if i.ctrl.dev.fix.PCIVendorID == 0 {
		i.set(infoCodeTransport, 0, "controller is not attached over PCIe")
		return 0, false
	}
	return i.ctrl.dev.fix.PCIVendorID, true
}

func (s *Sim) CtrlInfoNformats(h native.CtrlInfo) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint32(len(s.info("nvme_ctrl_info_nformats", h).ctrl.dev.fix.LbaFormats))
}

type lbaFmt struct {
	id  uint32
	fix LbaFormatFixture
}

func (s *Sim) CtrlInfoFormat(h native.CtrlInfo, idx uint32) (native.LbaFmt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.info("nvme_ctrl_info_format", h)
	i.clear()
	if f, ok := s.injected("nvme_ctrl_info_format"); ok {
		i.set(f.code, f.errno, "simulated lba format failure")
		return 0, false
	}
	formats := i.ctrl.dev.fix.LbaFormats
	if idx >= uint32(len(formats)) {
		i.set(infoCodeBadLbaFmt, 0, "lba format %d is out of range", idx)
		return 0, false
	}
	return native.LbaFmt(s.borrow(&lbaFmt{id: idx, fix: formats[idx]})), true
}

func (s *Sim) lbaFmt(op string, h native.LbaFmt) *lbaFmt {
	s.record(op, uintptr(h))
	return lookup[*lbaFmt](s, uintptr(h))
}

func (s *Sim) LbaFmtID(h native.LbaFmt) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lbaFmt("nvme_nvm_lba_fmt_id", h).id
}

func (s *Sim) LbaFmtMetaSize(h native.LbaFmt) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lbaFmt("nvme_nvm_lba_fmt_meta_size", h).fix.MetaSize
}

func (s *Sim) LbaFmtDataSize(h native.LbaFmt) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lbaFmt("nvme_nvm_lba_fmt_data_size", h).fix.DataSize
}

func (s *Sim) LbaFmtRelPerf(h native.LbaFmt) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lbaFmt("nvme_nvm_lba_fmt_rel_perf", h).fix.RelPerf
}

// Namespaces

func (s *Sim) NsDiscoverInit(h native.Ctrl, level native.NsDiscLevel) (native.NsIter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_ns_discover_init", h)
	if !ok {
		return 0, false
	}
	var ids []uint32
	for _, ns := range c.dev.namespaces {
		if ns.matches(level) {
			ids = append(ids, ns.fix.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return native.NsIter(s.alloc(&nsIter{ctrl: c, ids: ids})), true
}

func (ns *namespace) matches(level native.NsDiscLevel) bool {
	switch level {
	case native.NsDiscAllocated:
		return ns.fix.Allocated || ns.fix.Active
	case native.NsDiscActive:
		return ns.fix.Active
	case native.NsDiscNotIgnored:
		return ns.fix.Active && !ns.fix.Ignored
	case native.NsDiscBlkDev:
		return ns.attached
	default:
		return true
	}
}

func (s *Sim) NsDiscoverStep(h native.NsIter) (native.IterState, native.NsDisc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ns_discover_step", uintptr(h))
	it := lookup[*nsIter](s, uintptr(h))
	if st, ok := s.popStep("nvme_ns_discover_step"); ok {
		return st, 0
	}
	if f, ok := s.injected("nvme_ns_discover_step"); ok {
		it.ctrl.set(f.code, f.errno, "simulated namespace walk failure")
		return native.IterError, 0
	}
	if it.pos >= len(it.ids) {
		return native.IterDone, 0
	}
	nsid := it.ids[it.pos]
	it.pos++
	return native.IterValid, native.NsDisc(s.borrow(nsid))
}

func (s *Sim) NsDiscoverFini(h native.NsIter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ns_discover_fini", uintptr(h))
	s.release(uintptr(h))
}

func (s *Sim) NsDiscNsid(h native.NsDisc) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ns_disc_nsid", uintptr(h))
	return lookup[uint32](s, uintptr(h))
}

func (s *Sim) NsInit(h native.Ctrl, nsid uint32) (native.Ns, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_ns_init", h)
	if !ok {
		return 0, false
	}
	ns := c.dev.namespace(nsid)
	if ns == nil {
		c.set(codeNsRange, 0, "namespace %d does not exist", nsid)
		return 0, false
	}
	return native.Ns(s.alloc(&nsHandle{ctrl: c, ns: ns})), true
}

func (s *Sim) NsFini(h native.Ns) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ns_fini", uintptr(h))
	s.release(uintptr(h))
}

func (s *Sim) nsOp(op string, h native.Ns) (*nsHandle, bool) {
	s.record(op, uintptr(h))
	n := lookup[*nsHandle](s, uintptr(h))
	if n == nil {
		return nil, false
	}
	n.ctrl.clear()
	if f, ok := s.injected(op); ok {
		n.ctrl.set(f.code, f.errno, "simulated %s failure", op)
		return n, false
	}
	return n, true
}

func (s *Sim) NsBdAttach(h native.Ns) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nsOp("nvme_ns_bd_attach", h)
	if !ok || !n.ctrl.needWrite() {
		return false
	}
	if !n.ns.fix.Active || n.ns.fix.Ignored {
		n.ctrl.set(codeAttachKern, 22, "kernel refused to attach namespace %d", n.ns.fix.ID)
		return false
	}
	n.ns.attached = true
	return true
}

func (s *Sim) NsBdDetach(h native.Ns) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nsOp("nvme_ns_bd_detach", h)
	if !ok || !n.ctrl.needWrite() {
		return false
	}
	n.ns.attached = false
	return true
}

func (s *Sim) NsInfoSnap(h native.Ns) (native.NsInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nsOp("nvme_ns_info_snap", h)
	if !ok {
		return 0, false
	}
	return native.NsInfo(s.alloc(&nsInfo{ns: n})), true
}

func (s *Sim) NsInfoFree(h native.NsInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ns_info_free", uintptr(h))
	s.release(uintptr(h))
}

func (s *Sim) nsInfoErr(h native.NsInfo) *errState {
	if i := lookup[*nsInfo](s, uintptr(h)); i != nil {
		return &i.errState
	}
	return nil
}

func (s *Sim) NsInfoErr(h native.NsInfo) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.nsInfoErr(h)
	s.readErr("nvme_ns_info_err", uintptr(h), e)
	if e == nil {
		return 0
	}
	return e.code
}

func (s *Sim) NsInfoErrmsg(h native.NsInfo) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.nsInfoErr(h)
	s.readErr("nvme_ns_info_errmsg", uintptr(h), e)
	if e == nil {
		return "invalid namespace info handle"
	}
	return e.msg
}

func (s *Sim) NsInfoSyserr(h native.NsInfo) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.nsInfoErr(h)
	s.readErr("nvme_ns_info_syserr", uintptr(h), e)
	if e == nil {
		return 0
	}
	return e.errno
}

func (s *Sim) NsInfoCurformat(h native.NsInfo) (native.LbaFmt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_ns_info_curformat", uintptr(h))
	i := lookup[*nsInfo](s, uintptr(h))
	i.clear()
	if f, ok := s.injected("nvme_ns_info_curformat"); ok {
		i.set(f.code, f.errno, "simulated current format failure")
		return 0, false
	}
	ns := i.ns.ns
	if !ns.fix.Active {
		i.set(infoCodeNsInact, 0, "namespace %d is not active", ns.fix.ID)
		return 0, false
	}
	formats := i.ns.ctrl.dev.fix.LbaFormats
	if ns.format >= uint32(len(formats)) {
		i.set(infoCodeBadLbaFmt, 0, "namespace %d uses unknown format %d", ns.fix.ID, ns.format)
		return 0, false
	}
	return native.LbaFmt(s.borrow(&lbaFmt{id: ns.format, fix: formats[ns.format]})), true
}

// Log pages

// log looks up a log page. Fixture entries override the built-in firmware
// and health logs.
func (d *device) log(name string) (LogFixture, bool) {
	for _, l := range d.fix.Logs {
		if l.Name == name {
			return l, true
		}
	}
	switch name {
	case "firmware":
		return LogFixture{Name: name, Kind: LogKindFixed, Size: firmwareLogSize}, true
	case "health":
		return LogFixture{Name: name, Kind: LogKindFixed, Size: healthLogSize}, true
	}
	return LogFixture{}, false
}

// logContent returns the first limit bytes of a log page, or the whole page
// when it is shorter.
func (d *device) logContent(lf LogFixture, limit uint64) []byte {
	switch lf.Name {
	case "firmware":
		return d.firmwareLog()
	}
	size := lf.Size
	if lf.Kind == LogKindVariable {
		size = lf.ActualSize
	}
	buf := make([]byte, min(size, limit))
	seed := byte(len(lf.Name))
	for i := range buf {
		buf[i] = seed + byte(i)
	}
	return buf
}

func (d *device) firmwareLog() []byte {
	buf := make([]byte, firmwareLogSize)
	buf[0] = d.activeSlot&0x7 | (d.nextSlot&0x7)<<4
	for i, rev := range d.slots {
		if rev == "" {
			continue
		}
		copy(buf[8+8*i:16+8*i], padRight(rev, 8))
	}
	return buf
}

func (s *Sim) LogReqInitByName(h native.Ctrl, name string, _ uint32) (native.LogDisc, native.LogReq, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_log_req_init_by_name", h)
	if !ok {
		return 0, 0, false
	}
	lf, ok := c.dev.log(name)
	if !ok {
		c.set(codeLogNameUnknown, 0, "unknown log page %q", name)
		return 0, 0, false
	}
	disc := &logDisc{ctrl: c, lf: lf}
	dh := s.alloc(disc)
	rh := s.alloc(&logReq{ctrl: c, disc: disc})
	return native.LogDisc(dh), native.LogReq(rh), true
}

func (s *Sim) LogDiscSize(h native.LogDisc) (native.LogSizeKind, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_log_disc_size", uintptr(h))
	d := lookup[*logDisc](s, uintptr(h))
	switch d.lf.Kind {
	case LogKindFixed:
		return native.LogSizeFixed, d.lf.Size
	case LogKindVariable:
		return native.LogSizeVar, d.lf.Size
	default:
		return native.LogSizeUnknown, 0
	}
}

func (s *Sim) LogDiscCalcSize(h native.LogDisc, buf []byte) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_log_disc_calc_size", uintptr(h))
	d := lookup[*logDisc](s, uintptr(h))
	d.ctrl.clear()
	if f, ok := s.injected("nvme_log_disc_calc_size"); ok {
		d.ctrl.set(f.code, f.errno, "simulated size calculation failure")
		return 0, false
	}
	if d.lf.Kind != LogKindVariable {
		return d.lf.Size, true
	}
	if uint64(len(buf)) < d.lf.Size {
		d.ctrl.set(codeInternal, 0, "log header is %d bytes, need %d", len(buf), d.lf.Size)
		return 0, false
	}
	return d.lf.ActualSize, true
}

func (s *Sim) LogDiscFree(h native.LogDisc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_log_disc_free", uintptr(h))
	s.release(uintptr(h))
}

func (s *Sim) LogReqSetOutput(h native.LogReq, buf []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_log_req_set_output", uintptr(h))
	r := lookup[*logReq](s, uintptr(h))
	r.ctrl.clear()
	if f, ok := s.injected("nvme_log_req_set_output"); ok {
		r.ctrl.set(f.code, f.errno, "simulated set output failure")
		return false
	}
	r.out = buf
	s.outputs[r.disc.lf.Name] = append(s.outputs[r.disc.lf.Name], len(buf))
	return true
}

func (s *Sim) LogReqExec(h native.LogReq) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_log_req_exec", uintptr(h))
	r := lookup[*logReq](s, uintptr(h))
	r.ctrl.clear()
	if f, ok := s.injected("nvme_log_req_exec"); ok {
		r.ctrl.set(f.code, f.errno, "simulated log read failure")
		return false
	}
	if r.out == nil {
		r.ctrl.set(codeInternal, 0, "log request has no output buffer")
		return false
	}
	copy(r.out, r.ctrl.dev.logContent(r.disc.lf, uint64(len(r.out))))
	return true
}

func (s *Sim) LogReqFini(h native.LogReq) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_log_req_fini", uintptr(h))
	if r := lookup[*logReq](s, uintptr(h)); r != nil {
		r.out = nil
	}
	s.release(uintptr(h))
}

// Firmware

func (s *Sim) FwLoad(h native.Ctrl, data []byte, offset uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_fw_load", h)
	if !ok || !c.needWrite() {
		return false
	}
	if len(data) == 0 || len(data)%fwLoadGranule != 0 {
		c.set(codeFwLoadLenRange, 0, "firmware chunk length %d is not a multiple of %d", len(data), fwLoadGranule)
		return false
	}
	if offset%fwLoadGranule != 0 {
		c.set(codeFwLoadOffsetRange, 0, "firmware offset %#x is not aligned", offset)
		return false
	}
	end := offset + uint64(len(data))
	if end < offset || end > 1<<30 {
		c.set(codeFwLoadOffsetRange, 0, "firmware offset %#x is out of range", offset)
		return false
	}
	if uint64(len(c.dev.image)) < end {
		grown := make([]byte, end)
		copy(grown, c.dev.image)
		c.dev.image = grown
	}
	copy(c.dev.image[offset:], data)
	return true
}

func (s *Sim) FwCommitReqInit(h native.Ctrl) (native.FwCommitReq, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_fw_commit_req_init", h)
	if !ok || !c.needWrite() {
		return 0, false
	}
	return native.FwCommitReq(s.alloc(&fwCommitReq{ctrl: c})), true
}

func (s *Sim) fwReq(op string, h native.FwCommitReq) (*fwCommitReq, bool) {
	s.record(op, uintptr(h))
	r := lookup[*fwCommitReq](s, uintptr(h))
	r.ctrl.clear()
	if f, ok := s.injected(op); ok {
		r.ctrl.set(f.code, f.errno, "simulated %s failure", op)
		return r, false
	}
	return r, true
}

func (s *Sim) FwCommitReqSetSlot(h native.FwCommitReq, slot uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fwReq("nvme_fw_commit_req_set_slot", h)
	if !ok {
		return false
	}
	if slot == 0 || slot > uint32(len(r.ctrl.dev.slots)) {
		r.ctrl.set(codeFwCommitSlotRange, 0, "firmware slot %d is out of range", slot)
		return false
	}
	r.slot, r.slotSet = slot, true
	return true
}

func (s *Sim) FwCommitReqSetAction(h native.FwCommitReq, action uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fwReq("nvme_fw_commit_req_set_action", h)
	if !ok {
		return false
	}
	if action > native.FwcActivateImmed {
		r.ctrl.set(codeFwCommitActRange, 0, "firmware commit action %d is out of range", action)
		return false
	}
	r.action, r.actionSet = action, true
	return true
}

func (s *Sim) FwCommitReqExec(h native.FwCommitReq) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fwReq("nvme_fw_commit_req_exec", h)
	if !ok {
		return false
	}
	if !r.slotSet || !r.actionSet {
		r.ctrl.set(codeFwCommitMissing, 0, "firmware commit request is missing slot or action")
		return false
	}
	d := r.ctrl.dev
	switch r.action {
	case native.FwcSave, native.FwcSaveActivate:
		if r.slot == 1 && d.fix.Slot1ReadOnly {
			r.ctrl.set(codeFwSlotRo, 30, "firmware slot 1 is read-only")
			return false
		}
		d.slots[r.slot-1] = imageRevision(d.image)
		if r.action == native.FwcSaveActivate {
			d.nextSlot = uint8(r.slot)
		}
	case native.FwcActivate:
		d.nextSlot = uint8(r.slot)
	case native.FwcActivateImmed:
		r.ctrl.set(codeKernFwImpos, 95, "immediate activation is not supported")
		return false
	}
	return true
}

// imageRevision is the revision a saved image reports: its first 8 bytes
// when they are printable, "UNKNOWN" otherwise.
func imageRevision(image []byte) string {
	if len(image) < 8 {
		return "UNKNOWN"
	}
	for _, b := range image[:8] {
		if b < 0x20 || b > 0x7e {
			return "UNKNOWN"
		}
	}
	return string(bytes.TrimRight(image[:8], " "))
}

func (s *Sim) FwCommitReqFini(h native.FwCommitReq) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_fw_commit_req_fini", uintptr(h))
	s.release(uintptr(h))
}

// Format

func (s *Sim) FormatReqInit(h native.Ctrl) (native.FormatReq, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_format_req_init", h)
	if !ok || !c.needWrite() {
		return 0, false
	}
	return native.FormatReq(s.alloc(&formatReq{ctrl: c, nsid: nsidAll})), true
}

func (s *Sim) fmtReq(op string, h native.FormatReq) (*formatReq, bool) {
	s.record(op, uintptr(h))
	r := lookup[*formatReq](s, uintptr(h))
	r.ctrl.clear()
	if f, ok := s.injected(op); ok {
		r.ctrl.set(f.code, f.errno, "simulated %s failure", op)
		return r, false
	}
	return r, true
}

func (s *Sim) FormatReqSetLbaf(h native.FormatReq, lbaf uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fmtReq("nvme_format_req_set_lbaf", h)
	if !ok {
		return false
	}
	if lbaf >= uint32(len(r.ctrl.dev.fix.LbaFormats)) {
		r.ctrl.set(codeFormatLbafRange, 0, "lba format %d is out of range", lbaf)
		return false
	}
	r.lbaf, r.lbafSet = lbaf, true
	return true
}

func (s *Sim) FormatReqSetNsid(h native.FormatReq, nsid uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fmtReq("nvme_format_req_set_nsid", h)
	if !ok {
		return false
	}
	if nsid != nsidAll && r.ctrl.dev.namespace(nsid) == nil {
		r.ctrl.set(codeNsRange, 0, "namespace %d does not exist", nsid)
		return false
	}
	r.nsid = nsid
	return true
}

func (s *Sim) FormatReqSetSes(h native.FormatReq, ses uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fmtReq("nvme_format_req_set_ses", h)
	if !ok {
		return false
	}
	if ses > 2 {
		r.ctrl.set(codeFormatSesRange, 0, "secure erase setting %d is out of range", ses)
		return false
	}
	r.ses = ses
	return true
}

func (s *Sim) FormatReqExec(h native.FormatReq) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.fmtReq("nvme_format_req_exec", h)
	if !ok {
		return false
	}
	if !r.lbafSet {
		r.ctrl.set(codeFormatMissing, 0, "format request is missing the lba format")
		return false
	}
	d := r.ctrl.dev
	for _, ns := range d.namespaces {
		if r.nsid == nsidAll || ns.fix.ID == r.nsid {
			ns.format = r.lbaf
		}
	}
	d.lastFormat = &FormatRecord{Lbaf: r.lbaf, Nsid: r.nsid, Ses: r.ses}
	return true
}

func (s *Sim) FormatReqFini(h native.FormatReq) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("nvme_format_req_fini", uintptr(h))
	s.release(uintptr(h))
}

// WDC

func (s *Sim) WdcResizeSet(h native.Ctrl, size uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_wdc_resize_set", h)
	if !ok {
		return false
	}
	if !c.dev.fix.Wdc {
		c.set(codeVuFuncUnsupByDev, 0, "controller does not support wdc resize")
		return false
	}
	if !c.needWrite() {
		return false
	}
	c.dev.wdcSize = size
	return true
}

func (s *Sim) WdcResizeGet(h native.Ctrl) (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrlOp("nvme_wdc_resize_get", h)
	if !ok {
		return 0, false
	}
	if !c.dev.fix.Wdc {
		c.set(codeVuFuncUnsupByDev, 0, "controller does not support wdc resize")
		return 0, false
	}
	return c.dev.wdcSize, true
}
