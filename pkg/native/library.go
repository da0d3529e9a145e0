package native

// Opaque handles. A zero value is the null handle.
type (
	// Nvme is an nvme_t session handle.
	Nvme uintptr
	// CtrlIter is an nvme_ctrl_iter_t controller discovery iterator.
	CtrlIter uintptr
	// CtrlDisc is an nvme_ctrl_disc_t discovery record. It is owned by the iterator.
	CtrlDisc uintptr
	// DevInfo is a di_node_t device tree node.
	DevInfo uintptr
	// Ctrl is an nvme_ctrl_t controller handle.
	Ctrl uintptr
	// CtrlInfo is an nvme_ctrl_info_t controller snapshot.
	CtrlInfo uintptr
	// LbaFmt is an nvme_nvm_lba_fmt_t. It is owned by the snapshot it came from.
	LbaFmt uintptr
	// NsIter is an nvme_ns_iter_t namespace discovery iterator.
	NsIter uintptr
	// NsDisc is an nvme_ns_disc_t discovery record.
	NsDisc uintptr
	// Ns is an nvme_ns_t namespace handle.
	Ns uintptr
	// NsInfo is an nvme_ns_info_t namespace snapshot.
	NsInfo uintptr
	// LogDisc is an nvme_log_disc_t log page description.
	LogDisc uintptr
	// LogReq is an nvme_log_req_t log page request.
	LogReq uintptr
	// FwCommitReq is an nvme_fw_commit_req_t firmware commit request.
	FwCommitReq uintptr
	// FormatReq is an nvme_format_req_t format request.
	FormatReq uintptr
)

// IterState is the nvme_iter_t result of a discovery step.
type IterState uint32

const (
	IterValid IterState = 0
	IterDone  IterState = 1
	IterError IterState = 2
)

// LockLevel is nvme_lock_level_t.
type LockLevel uint32

const (
	LockRead  LockLevel = 1
	LockWrite LockLevel = 2
)

// LockFlags is nvme_lock_flags_t.
type LockFlags uint32

const (
	LockBlock     LockFlags = 0
	LockDontBlock LockFlags = 1 << 0
)

// NsDiscLevel is nvme_ns_disc_level_t.
type NsDiscLevel uint32

const (
	NsDiscAll        NsDiscLevel = 0
	NsDiscAllocated  NsDiscLevel = 1
	NsDiscActive     NsDiscLevel = 2
	NsDiscNotIgnored NsDiscLevel = 3
	NsDiscBlkDev     NsDiscLevel = 4
)

// LogSizeKind is nvme_log_size_kind_t.
type LogSizeKind uint32

const (
	LogSizeUnknown LogSizeKind = 0
	LogSizeFixed   LogSizeKind = 1
	LogSizeVar     LogSizeKind = 2
)

// Firmware commit actions (NVME_FWC_*).
const (
	FwcSave          uint32 = 0
	FwcSaveActivate  uint32 = 1
	FwcActivate      uint32 = 2
	FwcActivateImmed uint32 = 3
)

// Error codes that callers of this package need to produce themselves.
const (
	ErrOK       uint32 = 0
	ErrInternal uint32 = 5
)

// IdentifyCtrlSize is the size of the identify controller data structure.
const IdentifyCtrlSize = 4096

// Library is the set of libnvme entry points used by package nvme.
//
// Functions that can fail return false (or a zero handle) and leave the
// failure on the handle passed in, to be read with the matching
// Err/Errmsg/Syserr accessors. The accessors are only meaningful after a
// failure.
type Library interface {
	Init() Nvme
	Fini(Nvme)
	Err(Nvme) uint32
	Errmsg(Nvme) string
	Syserr(Nvme) int32

	CtrlDiscoverInit(Nvme) (CtrlIter, bool)
	CtrlDiscoverStep(CtrlIter) (IterState, CtrlDisc)
	CtrlDiscoverFini(CtrlIter)
	CtrlDiscDevi(CtrlDisc) DevInfo
	CtrlInit(Nvme, DevInfo) (Ctrl, bool)
	CtrlInitByInstance(Nvme, int32) (Ctrl, bool)
	CtrlFini(Ctrl)
	CtrlErr(Ctrl) uint32
	CtrlErrmsg(Ctrl) string
	CtrlSyserr(Ctrl) int32

	CtrlLock(Ctrl, LockLevel, LockFlags) bool
	CtrlUnlock(Ctrl)

	CtrlInfoSnap(Ctrl) (CtrlInfo, bool)
	CtrlInfoFree(CtrlInfo)
	CtrlInfoErr(CtrlInfo) uint32
	CtrlInfoErrmsg(CtrlInfo) string
	CtrlInfoSyserr(CtrlInfo) int32
	// CtrlInfoIdentify returns a copy of the identify controller data.
	CtrlInfoIdentify(CtrlInfo) []byte
	CtrlInfoModel(CtrlInfo) string
	CtrlInfoSerial(CtrlInfo) string
	CtrlInfoFwrev(CtrlInfo) string
	CtrlInfoNns(CtrlInfo) uint32
	CtrlInfoPCIVid(CtrlInfo) (uint16, bool)
	CtrlInfoNformats(CtrlInfo) uint32
	CtrlInfoFormat(CtrlInfo, uint32) (LbaFmt, bool)

	LbaFmtID(LbaFmt) uint32
	LbaFmtMetaSize(LbaFmt) uint32
	LbaFmtDataSize(LbaFmt) uint64
	LbaFmtRelPerf(LbaFmt) uint32

	NsDiscoverInit(Ctrl, NsDiscLevel) (NsIter, bool)
	NsDiscoverStep(NsIter) (IterState, NsDisc)
	NsDiscoverFini(NsIter)
	NsDiscNsid(NsDisc) uint32
	NsInit(Ctrl, uint32) (Ns, bool)
	NsFini(Ns)
	NsBdAttach(Ns) bool
	NsBdDetach(Ns) bool

	NsInfoSnap(Ns) (NsInfo, bool)
	NsInfoFree(NsInfo)
	NsInfoErr(NsInfo) uint32
	NsInfoErrmsg(NsInfo) string
	NsInfoSyserr(NsInfo) int32
	NsInfoCurformat(NsInfo) (LbaFmt, bool)

	// LogReqInitByName creates the log page description and request for the
	// named log. Errors are reported on the controller.
	LogReqInitByName(Ctrl, string, uint32) (LogDisc, LogReq, bool)
	LogDiscSize(LogDisc) (LogSizeKind, uint64)
	// LogDiscCalcSize computes the real size of a variable length log from
	// the data read so far.
	LogDiscCalcSize(LogDisc, []byte) (uint64, bool)
	LogDiscFree(LogDisc)
	// LogReqSetOutput sets the buffer the next LogReqExec fills. A later call
	// replaces the previous buffer.
	LogReqSetOutput(LogReq, []byte) bool
	LogReqExec(LogReq) bool
	LogReqFini(LogReq)

	FwLoad(Ctrl, []byte, uint64) bool
	FwCommitReqInit(Ctrl) (FwCommitReq, bool)
	FwCommitReqSetSlot(FwCommitReq, uint32) bool
	FwCommitReqSetAction(FwCommitReq, uint32) bool
	FwCommitReqExec(FwCommitReq) bool
	FwCommitReqFini(FwCommitReq)

	FormatReqInit(Ctrl) (FormatReq, bool)
	FormatReqSetLbaf(FormatReq, uint32) bool
	FormatReqSetNsid(FormatReq, uint32) bool
	FormatReqSetSes(FormatReq, uint32) bool
	FormatReqExec(FormatReq) bool
	FormatReqFini(FormatReq)

	WdcResizeSet(Ctrl, uint32) bool
	WdcResizeGet(Ctrl) (uint32, bool)
}
