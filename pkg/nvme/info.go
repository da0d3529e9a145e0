package nvme

import (
	"fmt"

	"github.com/nvme-go/nvme-go/pkg/native"
)

// Performance is the relative performance an LBA format advertises.
type Performance uint8

const (
	PerformanceBest Performance = iota
	PerformanceBetter
	PerformanceGood
	PerformanceDegraded
	PerformanceUnknown
)

func performanceFromRaw(raw uint32) Performance {
	if raw > uint32(PerformanceDegraded) {
		return PerformanceUnknown
	}
	return Performance(raw)
}

// String returns the performance name.
func (p Performance) String() string {
	switch p {
	case PerformanceBest:
		return "best"
	case PerformanceBetter:
		return "better"
	case PerformanceGood:
		return "good"
	case PerformanceDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// LbaFormat is one entry of a controller's LBA format table.
type LbaFormat struct {
	ID                  uint32
	MetaSize            uint32
	DataSize            uint64
	RelativePerformance Performance
}

func readLbaFormat(lib native.Library, f native.LbaFmt) LbaFormat {
	return LbaFormat{
		ID:                  lib.LbaFmtID(f),
		MetaSize:            lib.LbaFmtMetaSize(f),
		DataSize:            lib.LbaFmtDataSize(f),
		RelativePerformance: performanceFromRaw(lib.LbaFmtRelPerf(f)),
	}
}

// String formats the entry the way nvmeadm prints it.
func (f LbaFormat) String() string {
	return fmt.Sprintf("lbaf %d: data %d meta %d (%s)", f.ID, f.DataSize, f.MetaSize, f.RelativePerformance)
}

// identifyFrmwOffset is the offset of FRMW in the identify controller data.
const identifyFrmwOffset = 260

// ControllerInfo is a snapshot of a controller's identify data. The strings
// and counts are read when the snapshot is taken; the PCI vendor id and the
// LBA format table are read from the snapshot on demand and can fail.
//
// It is closed when the controller it came from is closed.
type ControllerInfo struct {
	lib  native.Library
	h    native.CtrlInfo
	node *node
	errs controllerInfoErrors

	model    string
	serial   string
	fwrev    string
	nns      uint32
	nformats uint32
	identify []byte
}

func newControllerInfo(lib native.Library, h native.CtrlInfo) *ControllerInfo {
	return &ControllerInfo{
		lib:      lib,
		h:        h,
		errs:     controllerInfoErrors{lib: lib, h: h},
		model:    lib.CtrlInfoModel(h),
		serial:   lib.CtrlInfoSerial(h),
		fwrev:    lib.CtrlInfoFwrev(h),
		nns:      lib.CtrlInfoNns(h),
		nformats: lib.CtrlInfoNformats(h),
		identify: lib.CtrlInfoIdentify(h),
	}
}

// Model returns the controller model string.
func (i *ControllerInfo) Model() string { return i.model }

// Serial returns the controller serial number.
func (i *ControllerInfo) Serial() string { return i.serial }

// FirmwareRevision returns the running firmware revision.
func (i *ControllerInfo) FirmwareRevision() string { return i.fwrev }

// NumNamespaces returns the number of namespaces the controller supports.
func (i *ControllerInfo) NumNamespaces() uint32 { return i.nns }

// FormatCount returns the number of entries in the LBA format table.
func (i *ControllerInfo) FormatCount() uint32 { return i.nformats }

// Identify returns a copy of the raw identify controller data.
func (i *ControllerInfo) Identify() []byte {
	return append([]byte(nil), i.identify...)
}

func (i *ControllerInfo) frmw() (byte, bool) {
	if len(i.identify) <= identifyFrmwOffset {
		return 0, false
	}
	return i.identify[identifyFrmwOffset], true
}

// FirmwareSlotCount returns the number of firmware slots the controller
// advertises in FRMW.NOFS. Identify data too short to hold FRMW reports 0.
func (i *ControllerInfo) FirmwareSlotCount() int {
	frmw, ok := i.frmw()
	if !ok {
		return 0
	}
	return int(frmw>>1) & 0x7
}

// Slot1ReadOnly reports whether firmware slot 1 is read-only.
func (i *ControllerInfo) Slot1ReadOnly() bool {
	frmw, ok := i.frmw()
	return ok && frmw&0x1 != 0
}

// PCIVendorID returns the controller's PCI vendor id.
func (i *ControllerInfo) PCIVendorID() (uint16, error) {
	if !i.node.alive() {
		return 0, ErrClosed
	}

	var vid uint16
	ok := i.node.call("nvme_ctrl_info_pci_vid", func() bool {
		var ok bool
		vid, ok = i.lib.CtrlInfoPCIVid(i.h)
		return ok
	})
	if err := i.node.check(ok, i.errs, staticContext("failed to get pci vid")); err != nil {
		return 0, err
	}
	return vid, nil
}

// LbaFormat returns entry index of the LBA format table.
func (i *ControllerInfo) LbaFormat(index uint32) (LbaFormat, error) {
	if !i.node.alive() {
		return LbaFormat{}, ErrClosed
	}

	var f native.LbaFmt
	ok := i.node.call("nvme_ctrl_info_format", func() bool {
		var ok bool
		f, ok = i.lib.CtrlInfoFormat(i.h, index)
		return ok
	})
	err := i.node.check(ok, i.errs, func() string {
		return fmt.Sprintf("failed to get lba fmt for index %d", index)
	})
	if err != nil {
		return LbaFormat{}, err
	}
	return readLbaFormat(i.lib, f), nil
}

// LbaFormats returns the whole LBA format table. It stops at the first
// entry that cannot be read.
func (i *ControllerInfo) LbaFormats() ([]LbaFormat, error) {
	formats := make([]LbaFormat, 0, i.nformats)
	for idx := uint32(0); idx < i.nformats; idx++ {
		f, err := i.LbaFormat(idx)
		if err != nil {
			return formats, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// Close frees the snapshot. It is safe to call more than once.
func (i *ControllerInfo) Close() error {
	i.node.close()
	return nil
}

// NamespaceInfo is a snapshot of a namespace's identify data. It is closed
// when the namespace it came from is closed.
type NamespaceInfo struct {
	lib  native.Library
	h    native.NsInfo
	node *node
	errs namespaceInfoErrors
}

// CurrentFormat returns the LBA format the namespace is formatted with.
func (i *NamespaceInfo) CurrentFormat() (LbaFormat, error) {
	if !i.node.alive() {
		return LbaFormat{}, ErrClosed
	}

	var f native.LbaFmt
	ok := i.node.call("nvme_ns_info_curformat", func() bool {
		var ok bool
		f, ok = i.lib.NsInfoCurformat(i.h)
		return ok
	})
	if err := i.node.check(ok, i.errs, staticContext("failed to get current format of NVMe namespace")); err != nil {
		return LbaFormat{}, err
	}
	return readLbaFormat(i.lib, f), nil
}

// Close frees the snapshot. It is safe to call more than once.
func (i *NamespaceInfo) Close() error {
	i.node.close()
	return nil
}
