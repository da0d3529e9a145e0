//go:build !(illumos && cgo)

package native

const unsupportedMsg = "libnvme is not available on this platform"

// Supported reports whether Default is backed by the real libnvme.
func Supported() bool { return false }

// Default returns the platform libnvme binding.
func Default() Library { return unsupported{} }

// unsupported refuses to create a session. Every other entry point requires a
// handle that Init never hands out.
type unsupported struct{}

func (unsupported) Init() Nvme { return 0 }
func (unsupported) Fini(Nvme) {}
func (unsupported) Err(Nvme) uint32 { return ErrInternal }
func (unsupported) Errmsg(Nvme) string { return unsupportedMsg }
func (unsupported) Syserr(Nvme) int32 { return 0 }
func (unsupported) CtrlErr(Ctrl) uint32 { return ErrInternal }
func (unsupported) CtrlErrmsg(Ctrl) string { return unsupportedMsg }
func (unsupported) CtrlSyserr(Ctrl) int32 { return 0 }

func (unsupported) CtrlDiscoverInit(Nvme) (CtrlIter, bool) { return 0, false }
func (unsupported) CtrlDiscoverStep(CtrlIter) (IterState, CtrlDisc) { return IterError, 0 }
func (unsupported) CtrlDiscoverFini(CtrlIter) {}
func (unsupported) CtrlDiscDevi(CtrlDisc) DevInfo { return 0 }
func (unsupported) CtrlInit(Nvme, DevInfo) (Ctrl, bool) { return 0, false }
func (unsupported) CtrlInitByInstance(Nvme, int32) (Ctrl, bool) { return 0, false }
func (unsupported) CtrlFini(Ctrl) {}
func (unsupported) CtrlLock(Ctrl, LockLevel, LockFlags) bool { return false }
func (unsupported) CtrlUnlock(Ctrl) {}
func (unsupported) CtrlInfoSnap(Ctrl) (CtrlInfo, bool) { return 0, false }
func (unsupported) CtrlInfoFree(CtrlInfo) {}
func (unsupported) CtrlInfoErr(CtrlInfo) uint32 { return ErrInternal }
func (unsupported) CtrlInfoErrmsg(CtrlInfo) string { return unsupportedMsg }
func (unsupported) CtrlInfoSyserr(CtrlInfo) int32 { return 0 }
func (unsupported) CtrlInfoIdentify(CtrlInfo) []byte { return nil }
func (unsupported) CtrlInfoModel(CtrlInfo) string { return "" }
func (unsupported) CtrlInfoSerial(CtrlInfo) string { return "" }
func (unsupported) CtrlInfoFwrev(CtrlInfo) string { return "" }
func (unsupported) CtrlInfoNns(CtrlInfo) uint32 { return 0 }
func (unsupported) CtrlInfoPCIVid(CtrlInfo) (uint16, bool) { return 0, false }
func (unsupported) CtrlInfoNformats(CtrlInfo) uint32 { return 0 }
func (unsupported) CtrlInfoFormat(CtrlInfo, uint32) (LbaFmt, bool) { return 0, false }
func (unsupported) LbaFmtID(LbaFmt) uint32 { return 0 }
func (unsupported) LbaFmtMetaSize(LbaFmt) uint32 { return 0 }
func (unsupported) LbaFmtDataSize(LbaFmt) uint64 { return 0 }
func (unsupported) LbaFmtRelPerf(LbaFmt) uint32 { return 0 }
func (unsupported) NsDiscoverInit(Ctrl, NsDiscLevel) (NsIter, bool) { return 0, false }
func (unsupported) NsDiscoverStep(NsIter) (IterState, NsDisc) { return IterError, 0 }
func (unsupported) NsDiscoverFini(NsIter) {}
func (unsupported) NsDiscNsid(NsDisc) uint32 { return 0 }
func (unsupported) NsInit(Ctrl, uint32) (Ns, bool) { return 0, false }
func (unsupported) NsFini(Ns) {}
func (unsupported) NsBdAttach(Ns) bool { return false }
func (unsupported) NsBdDetach(Ns) bool { return false }
func (unsupported) NsInfoSnap(Ns) (NsInfo, bool) { return 0, false }
func (unsupported) NsInfoFree(NsInfo) {}
func (unsupported) NsInfoErr(NsInfo) uint32 { return ErrInternal }
func (unsupported) NsInfoErrmsg(NsInfo) string { return unsupportedMsg }
func (unsupported) NsInfoSyserr(NsInfo) int32 { return 0 }
func (unsupported) NsInfoCurformat(NsInfo) (LbaFmt, bool) { return 0, false }
func (unsupported) LogReqInitByName(Ctrl, string, uint32) (LogDisc, LogReq, bool) {
	return 0, 0, false
}
func (unsupported) LogDiscSize(LogDisc) (LogSizeKind, uint64) { return LogSizeUnknown, 0 }
func (unsupported) LogDiscCalcSize(LogDisc, []byte) (uint64, bool) { return 0, false }
func (unsupported) LogDiscFree(LogDisc) {}
func (unsupported) LogReqSetOutput(LogReq, []byte) bool { return false }
func (unsupported) LogReqExec(LogReq) bool { return false }
func (unsupported) LogReqFini(LogReq) {}
func (unsupported) FwLoad(Ctrl, []byte, uint64) bool { return false }
func (unsupported) FwCommitReqInit(Ctrl) (FwCommitReq, bool) { return 0, false }
func (unsupported) FwCommitReqSetSlot(FwCommitReq, uint32) bool { return false }
func (unsupported) FwCommitReqSetAction(FwCommitReq, uint32) bool { return false }
func (unsupported) FwCommitReqExec(FwCommitReq) bool { return false }
func (unsupported) FwCommitReqFini(FwCommitReq) {}
func (unsupported) FormatReqInit(Ctrl) (FormatReq, bool) { return 0, false }
func (unsupported) FormatReqSetLbaf(FormatReq, uint32) bool { return false }
func (unsupported) FormatReqSetNsid(FormatReq, uint32) bool { return false }
func (unsupported) FormatReqSetSes(FormatReq, uint32) bool { return false }
func (unsupported) FormatReqExec(FormatReq) bool { return false }
func (unsupported) FormatReqFini(FormatReq) {}
func (unsupported) WdcResizeSet(Ctrl, uint32) bool { return false }
func (unsupported) WdcResizeGet(Ctrl) (uint32, bool) { return 0, false }

var _ Library = unsupported{}
