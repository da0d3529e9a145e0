//go:build illumos && cgo

package native

/*
#cgo LDFLAGS: -lnvme -ldevinfo

#include <stdlib.h>
#include <string.h>
#include <libdevinfo.h>
#include <libnvme.h>
*/
import "C"

import (
	"sync"
	"unsafe"
)

// Supported reports whether Default is backed by the real libnvme.
func Supported() bool { return true }

var (
	defaultOnce sync.Once
	defaultLib  *libnvme
)

// Default returns the process-wide libnvme binding.
func Default() Library {
	defaultOnce.Do(func() {
		defaultLib = &libnvme{outputs: make(map[LogReq]*stagedOutput)}
	})
	return defaultLib
}

// stagedOutput is a C buffer registered with a log request. libnvme keeps
// the pointer until exec, so it cannot be Go memory.
type stagedOutput struct {
	buf unsafe.Pointer
	len C.size_t
	dst []byte
}

type libnvme struct {
	mu      sync.Mutex
	outputs map[LogReq]*stagedOutput
}

func ptr(h uintptr) unsafe.Pointer { return unsafe.Pointer(h) }

func nvmeT(h Nvme) *C.nvme_t { return (*C.nvme_t)(ptr(uintptr(h))) }
func ctrlT(h Ctrl) *C.nvme_ctrl_t { return (*C.nvme_ctrl_t)(ptr(uintptr(h))) }
func ctrlInfoT(h CtrlInfo) *C.nvme_ctrl_info_t { return (*C.nvme_ctrl_info_t)(ptr(uintptr(h))) }
func lbaFmtT(h LbaFmt) *C.nvme_nvm_lba_fmt_t { return (*C.nvme_nvm_lba_fmt_t)(ptr(uintptr(h))) }
func nsT(h Ns) *C.nvme_ns_t { return (*C.nvme_ns_t)(ptr(uintptr(h))) }
func nsInfoT(h NsInfo) *C.nvme_ns_info_t { return (*C.nvme_ns_info_t)(ptr(uintptr(h))) }
func logDiscT(h LogDisc) *C.nvme_log_disc_t { return (*C.nvme_log_disc_t)(ptr(uintptr(h))) }
func logReqT(h LogReq) *C.nvme_log_req_t { return (*C.nvme_log_req_t)(ptr(uintptr(h))) }
func fwReqT(h FwCommitReq) *C.nvme_fw_commit_req_t { return (*C.nvme_fw_commit_req_t)(ptr(uintptr(h))) }
func fmtReqT(h FormatReq) *C.nvme_format_req_t { return (*C.nvme_format_req_t)(ptr(uintptr(h))) }

func (l *libnvme) Init() Nvme { return Nvme(uintptr(unsafe.Pointer(C.nvme_init()))) }
func (l *libnvme) Fini(h Nvme) { C.nvme_fini(nvmeT(h)) }
func (l *libnvme) Err(h Nvme) uint32 { return uint32(C.nvme_err(nvmeT(h))) }
func (l *libnvme) Errmsg(h Nvme) string { return C.GoString(C.nvme_errmsg(nvmeT(h))) }
func (l *libnvme) Syserr(h Nvme) int32 { return int32(C.nvme_syserr(nvmeT(h))) }

func (l *libnvme) CtrlDiscoverInit(h Nvme) (CtrlIter, bool) {
	var it *C.nvme_ctrl_iter_t
	ok := C.nvme_ctrl_discover_init(nvmeT(h), &it)
	return CtrlIter(uintptr(unsafe.Pointer(it))), bool(ok)
}

func (l *libnvme) CtrlDiscoverStep(it CtrlIter) (IterState, CtrlDisc) {
	var disc *C.nvme_ctrl_disc_t
	st := C.nvme_ctrl_discover_step((*C.nvme_ctrl_iter_t)(ptr(uintptr(it))), &disc)
	return IterState(st), CtrlDisc(uintptr(unsafe.Pointer(disc)))
}

func (l *libnvme) CtrlDiscoverFini(it CtrlIter) {
	C.nvme_ctrl_discover_fini((*C.nvme_ctrl_iter_t)(ptr(uintptr(it))))
}

func (l *libnvme) CtrlDiscDevi(d CtrlDisc) DevInfo {
	node := C.nvme_ctrl_disc_devi((*C.nvme_ctrl_disc_t)(ptr(uintptr(d))))
	return DevInfo(uintptr(unsafe.Pointer(node)))
}

func (l *libnvme) CtrlInit(h Nvme, d DevInfo) (Ctrl, bool) {
	var c *C.nvme_ctrl_t
	ok := C.nvme_ctrl_init(nvmeT(h), C.di_node_t(ptr(uintptr(d))), &c)
	return Ctrl(uintptr(unsafe.Pointer(c))), bool(ok)
}

func (l *libnvme) CtrlInitByInstance(h Nvme, inst int32) (Ctrl, bool) {
	var c *C.nvme_ctrl_t
	ok := C.nvme_ctrl_init_by_instance(nvmeT(h), C.int32_t(inst), &c)
	return Ctrl(uintptr(unsafe.Pointer(c))), bool(ok)
}

func (l *libnvme) CtrlFini(c Ctrl) { C.nvme_ctrl_fini(ctrlT(c)) }
func (l *libnvme) CtrlErr(c Ctrl) uint32 { return uint32(C.nvme_ctrl_err(ctrlT(c))) }
func (l *libnvme) CtrlErrmsg(c Ctrl) string { return C.GoString(C.nvme_ctrl_errmsg(ctrlT(c))) }
func (l *libnvme) CtrlSyserr(c Ctrl) int32 { return int32(C.nvme_ctrl_syserr(ctrlT(c))) }

func (l *libnvme) CtrlLock(c Ctrl, level LockLevel, flags LockFlags) bool {
	return bool(C.nvme_ctrl_lock(ctrlT(c), C.nvme_lock_level_t(level), C.nvme_lock_flags_t(flags)))
}

func (l *libnvme) CtrlUnlock(c Ctrl) { C.nvme_ctrl_unlock(ctrlT(c)) }

func (l *libnvme) CtrlInfoSnap(c Ctrl) (CtrlInfo, bool) {
	var info *C.nvme_ctrl_info_t
	ok := C.nvme_ctrl_info_snap(ctrlT(c), &info)
	return CtrlInfo(uintptr(unsafe.Pointer(info))), bool(ok)
}

func (l *libnvme) CtrlInfoFree(i CtrlInfo) { C.nvme_ctrl_info_free(ctrlInfoT(i)) }
func (l *libnvme) CtrlInfoErr(i CtrlInfo) uint32 { return uint32(C.nvme_ctrl_info_err(ctrlInfoT(i))) }
func (l *libnvme) CtrlInfoErrmsg(i CtrlInfo) string {
	return C.GoString(C.nvme_ctrl_info_errmsg(ctrlInfoT(i)))
}
func (l *libnvme) CtrlInfoSyserr(i CtrlInfo) int32 { return int32(C.nvme_ctrl_info_syserr(ctrlInfoT(i))) }

func (l *libnvme) CtrlInfoIdentify(i CtrlInfo) []byte {
	id := C.nvme_ctrl_info_identify(ctrlInfoT(i))
	if id == nil {
		return nil
	}
	return C.GoBytes(unsafe.Pointer(id), C.int(IdentifyCtrlSize))
}

func (l *libnvme) CtrlInfoModel(i CtrlInfo) string { return C.GoString(C.nvme_ctrl_info_model(ctrlInfoT(i))) }
func (l *libnvme) CtrlInfoSerial(i CtrlInfo) string { return C.GoString(C.nvme_ctrl_info_serial(ctrlInfoT(i))) }
func (l *libnvme) CtrlInfoFwrev(i CtrlInfo) string { return C.GoString(C.nvme_ctrl_info_fwrev(ctrlInfoT(i))) }
func (l *libnvme) CtrlInfoNns(i CtrlInfo) uint32 { return uint32(C.nvme_ctrl_info_nns(ctrlInfoT(i))) }

func (l *libnvme) CtrlInfoPCIVid(i CtrlInfo) (uint16, bool) {
	var vid C.uint16_t
	ok := C.nvme_ctrl_info_pci_vid(ctrlInfoT(i), &vid)
	return uint16(vid), bool(ok)
}

func (l *libnvme) CtrlInfoNformats(i CtrlInfo) uint32 {
	return uint32(C.nvme_ctrl_info_nformats(ctrlInfoT(i)))
}

func (l *libnvme) CtrlInfoFormat(i CtrlInfo, idx uint32) (LbaFmt, bool) {
	var f *C.nvme_nvm_lba_fmt_t
	ok := C.nvme_ctrl_info_format(ctrlInfoT(i), C.uint32_t(idx), &f)
	return LbaFmt(uintptr(unsafe.Pointer(f))), bool(ok)
}

func (l *libnvme) LbaFmtID(f LbaFmt) uint32 { return uint32(C.nvme_nvm_lba_fmt_id(lbaFmtT(f))) }
func (l *libnvme) LbaFmtMetaSize(f LbaFmt) uint32 { return uint32(C.nvme_nvm_lba_fmt_meta_size(lbaFmtT(f))) }
func (l *libnvme) LbaFmtDataSize(f LbaFmt) uint64 { return uint64(C.nvme_nvm_lba_fmt_data_size(lbaFmtT(f))) }
func (l *libnvme) LbaFmtRelPerf(f LbaFmt) uint32 { return uint32(C.nvme_nvm_lba_fmt_rel_perf(lbaFmtT(f))) }

func (l *libnvme) NsDiscoverInit(c Ctrl, level NsDiscLevel) (NsIter, bool) {
	var it *C.nvme_ns_iter_t
	ok := C.nvme_ns_discover_init(ctrlT(c), C.nvme_ns_disc_level_t(level), &it)
	return NsIter(uintptr(unsafe.Pointer(it))), bool(ok)
}

func (l *libnvme) NsDiscoverStep(it NsIter) (IterState, NsDisc) {
	var disc *C.nvme_ns_disc_t
	st := C.nvme_ns_discover_step((*C.nvme_ns_iter_t)(ptr(uintptr(it))), &disc)
	return IterState(st), NsDisc(uintptr(unsafe.Pointer(disc)))
}

func (l *libnvme) NsDiscoverFini(it NsIter) {
	C.nvme_ns_discover_fini((*C.nvme_ns_iter_t)(ptr(uintptr(it))))
}

func (l *libnvme) NsDiscNsid(d NsDisc) uint32 {
	return uint32(C.nvme_ns_disc_nsid((*C.nvme_ns_disc_t)(ptr(uintptr(d)))))
}

func (l *libnvme) NsInit(c Ctrl, nsid uint32) (Ns, bool) {
	var ns *C.nvme_ns_t
	ok := C.nvme_ns_init(ctrlT(c), C.uint32_t(nsid), &ns)
	return Ns(uintptr(unsafe.Pointer(ns))), bool(ok)
}

func (l *libnvme) NsFini(n Ns) { C.nvme_ns_fini(nsT(n)) }
func (l *libnvme) NsBdAttach(n Ns) bool { return bool(C.nvme_ns_bd_attach(nsT(n))) }
func (l *libnvme) NsBdDetach(n Ns) bool { return bool(C.nvme_ns_bd_detach(nsT(n))) }

func (l *libnvme) NsInfoSnap(n Ns) (NsInfo, bool) {
	var info *C.nvme_ns_info_t
	ok := C.nvme_ns_info_snap(nsT(n), &info)
	return NsInfo(uintptr(unsafe.Pointer(info))), bool(ok)
}

func (l *libnvme) NsInfoFree(i NsInfo) { C.nvme_ns_info_free(nsInfoT(i)) }
func (l *libnvme) NsInfoErr(i NsInfo) uint32 { return uint32(C.nvme_ns_info_err(nsInfoT(i))) }
func (l *libnvme) NsInfoErrmsg(i NsInfo) string { return C.GoString(C.nvme_ns_info_errmsg(nsInfoT(i))) }
func (l *libnvme) NsInfoSyserr(i NsInfo) int32 { return int32(C.nvme_ns_info_syserr(nsInfoT(i))) }

func (l *libnvme) NsInfoCurformat(i NsInfo) (LbaFmt, bool) {
	var f *C.nvme_nvm_lba_fmt_t
	ok := C.nvme_ns_info_curformat(nsInfoT(i), &f)
	return LbaFmt(uintptr(unsafe.Pointer(f))), bool(ok)
}

func (l *libnvme) LogReqInitByName(c Ctrl, name string, flags uint32) (LogDisc, LogReq, bool) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var disc *C.nvme_log_disc_t
	var req *C.nvme_log_req_t
	ok := C.nvme_log_req_init_by_name(ctrlT(c), cname, C.uint32_t(flags), &disc, &req)
	return LogDisc(uintptr(unsafe.Pointer(disc))), LogReq(uintptr(unsafe.Pointer(req))), bool(ok)
}

func (l *libnvme) LogDiscSize(d LogDisc) (LogSizeKind, uint64) {
	var size C.uint64_t
	kind := C.nvme_log_disc_size(logDiscT(d), &size)
	return LogSizeKind(kind), uint64(size)
}

func (l *libnvme) LogDiscCalcSize(d LogDisc, data []byte) (uint64, bool) {
	var size C.uint64_t
	var p unsafe.Pointer
	if len(data) > 0 {
		p = unsafe.Pointer(&data[0])
	}
	ok := C.nvme_log_disc_calc_size(logDiscT(d), &size, p, C.size_t(len(data)))
	return uint64(size), bool(ok)
}

func (l *libnvme) LogDiscFree(d LogDisc) { C.nvme_log_disc_free(logDiscT(d)) }

func (l *libnvme) LogReqSetOutput(r LogReq, dst []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := &stagedOutput{len: C.size_t(len(dst)), dst: dst}
	if len(dst) > 0 {
		staged.buf = C.calloc(1, staged.len)
	}
	if !bool(C.nvme_log_req_set_output(logReqT(r), staged.buf, staged.len)) {
		C.free(staged.buf)
		return false
	}
	if prev, ok := l.outputs[r]; ok {
		C.free(prev.buf)
	}
	l.outputs[r] = staged
	return true
}

func (l *libnvme) LogReqExec(r LogReq) bool {
	if !bool(C.nvme_log_req_exec(logReqT(r))) {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if staged, ok := l.outputs[r]; ok && staged.buf != nil {
		copy(staged.dst, unsafe.Slice((*byte)(staged.buf), int(staged.len)))
	}
	return true
}

func (l *libnvme) LogReqFini(r LogReq) {
	l.mu.Lock()
	if staged, ok := l.outputs[r]; ok {
		C.free(staged.buf)
		delete(l.outputs, r)
	}
	l.mu.Unlock()
	C.nvme_log_req_fini(logReqT(r))
}

func (l *libnvme) FwLoad(c Ctrl, data []byte, offset uint64) bool {
	var p unsafe.Pointer
	if len(data) > 0 {
		p = unsafe.Pointer(&data[0])
	}
	return bool(C.nvme_fw_load(ctrlT(c), p, C.size_t(len(data)), C.uint64_t(offset)))
}

func (l *libnvme) FwCommitReqInit(c Ctrl) (FwCommitReq, bool) {
	var req *C.nvme_fw_commit_req_t
	ok := C.nvme_fw_commit_req_init(ctrlT(c), &req)
	return FwCommitReq(uintptr(unsafe.Pointer(req))), bool(ok)
}

func (l *libnvme) FwCommitReqSetSlot(r FwCommitReq, slot uint32) bool {
	return bool(C.nvme_fw_commit_req_set_slot(fwReqT(r), C.uint32_t(slot)))
}

func (l *libnvme) FwCommitReqSetAction(r FwCommitReq, action uint32) bool {
	return bool(C.nvme_fw_commit_req_set_action(fwReqT(r), C.uint32_t(action)))
}

func (l *libnvme) FwCommitReqExec(r FwCommitReq) bool { return bool(C.nvme_fw_commit_req_exec(fwReqT(r))) }
func (l *libnvme) FwCommitReqFini(r FwCommitReq) { C.nvme_fw_commit_req_fini(fwReqT(r)) }

func (l *libnvme) FormatReqInit(c Ctrl) (FormatReq, bool) {
	var req *C.nvme_format_req_t
	ok := C.nvme_format_req_init(ctrlT(c), &req)
	return FormatReq(uintptr(unsafe.Pointer(req))), bool(ok)
}

func (l *libnvme) FormatReqSetLbaf(r FormatReq, v uint32) bool {
	return bool(C.nvme_format_req_set_lbaf(fmtReqT(r), C.uint32_t(v)))
}

func (l *libnvme) FormatReqSetNsid(r FormatReq, v uint32) bool {
	return bool(C.nvme_format_req_set_nsid(fmtReqT(r), C.uint32_t(v)))
}

func (l *libnvme) FormatReqSetSes(r FormatReq, v uint32) bool {
	return bool(C.nvme_format_req_set_ses(fmtReqT(r), C.uint32_t(v)))
}

func (l *libnvme) FormatReqExec(r FormatReq) bool { return bool(C.nvme_format_req_exec(fmtReqT(r))) }
func (l *libnvme) FormatReqFini(r FormatReq) { C.nvme_format_req_fini(fmtReqT(r)) }

func (l *libnvme) WdcResizeSet(c Ctrl, size uint32) bool {
	return bool(C.nvme_wdc_resize_set(ctrlT(c), C.uint32_t(size)))
}

func (l *libnvme) WdcResizeGet(c Ctrl) (uint32, bool) {
	var size C.uint32_t
	ok := C.nvme_wdc_resize_get(ctrlT(c), &size)
	return uint32(size), bool(ok)
}

var _ Library = (*libnvme)(nil)
