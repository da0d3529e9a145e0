package nvme

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

// FirmwareChunkSize is the size of each firmware load transfer.
const FirmwareChunkSize = 0x1000

// Slot is a firmware slot number, 1 through 7.
type Slot uint8

const (
	minSlot Slot = 1
	maxSlot Slot = 7
)

// SlotError is returned for a slot number outside 1..7, or a slot the
// controller does not have.
type SlotError struct {
	Slot    uint32
	Missing bool
}

func (e *SlotError) Error() string {
	if e.Missing {
		return fmt.Sprintf("nvme: device does not have slot %d", e.Slot)
	}
	return fmt.Sprintf("nvme: slots must be between 1 and 7 but got %d", e.Slot)
}

// NewSlot validates n as a firmware slot number.
func NewSlot(n uint32) (Slot, error) {
	if n < uint32(minSlot) || n > uint32(maxSlot) {
		return 0, &SlotError{Slot: n}
	}
	return Slot(n), nil
}

func (s Slot) valid() bool { return s >= minSlot && s <= maxSlot }

// FirmwareCommitAction says what a firmware commit does with the slot.
type FirmwareCommitAction uint32

const (
	// FirmwareSave saves the image only.
	FirmwareSave FirmwareCommitAction = FirmwareCommitAction(native.FwcSave)
	// FirmwareSaveActivate saves the image and activates it at next reset.
	FirmwareSaveActivate FirmwareCommitAction = FirmwareCommitAction(native.FwcSaveActivate)
	// FirmwareActivate activates the slot at next reset.
	FirmwareActivate FirmwareCommitAction = FirmwareCommitAction(native.FwcActivate)
	// FirmwareActivateImmediately activates the slot now. illumos does not
	// support it today.
	FirmwareActivateImmediately FirmwareCommitAction = FirmwareCommitAction(native.FwcActivateImmed)
)

// String returns the action name.
func (a FirmwareCommitAction) String() string {
	switch a {
	case FirmwareSave:
		return "save"
	case FirmwareSaveActivate:
		return "save-activate"
	case FirmwareActivate:
		return "activate"
	case FirmwareActivateImmediately:
		return "activate-immediately"
	default:
		return fmt.Sprintf("FirmwareCommitAction(%d)", uint32(a))
	}
}

// ParseFirmwareCommitAction parses an action name as returned by String.
func ParseFirmwareCommitAction(s string) (FirmwareCommitAction, error) {
	for a := FirmwareSave; a <= FirmwareActivateImmediately; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown firmware commit action %q", s)
}

// FirmwareLoad uploads a firmware image to the controller. The image still
// has to be committed to a slot with a FirmwareCommitRequest.
func (w *WriteLockedController) FirmwareLoad(r io.Reader) error {
	if err := w.usable(); err != nil {
		return err
	}
	// Images are a few MB at most, so read it whole and split it in chunks.
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("nvme: failed to read firmware image: %w", err)
	}
	return w.firmwareLoadAt(data, 0)
}

func (w *WriteLockedController) firmwareLoadAt(data []byte, offset uint64) error {
	for len(data) >= FirmwareChunkSize {
		if err := w.firmwareLoadChunk(data[:FirmwareChunkSize], offset); err != nil {
			return err
		}
		if offset > math.MaxUint64-FirmwareChunkSize {
			return w.st.node.fail(ErrFirmwareImageTooLarge)
		}
		offset += FirmwareChunkSize
		data = data[FirmwareChunkSize:]
	}
	if len(data) == 0 {
		return nil
	}

	chunk := make([]byte, FirmwareChunkSize)
	copy(chunk, data)
	return w.firmwareLoadChunk(chunk, offset)
}

func (w *WriteLockedController) firmwareLoadChunk(chunk []byte, offset uint64) error {
	if err := w.usable(); err != nil {
		return err
	}
	c := w.st.ctrl
	ok := w.st.node.transfer("nvme_fw_load", len(chunk), &offset, func() bool {
		return c.lib.FwLoad(c.handle, chunk, offset)
	})
	return w.st.node.check(ok, c.errs, staticContext("failed to load firmware"))
}

// FirmwareCommitRequest builds one firmware commit command.
type FirmwareCommitRequest struct {
	request
	h native.FwCommitReq
}

// FirmwareCommitRequest creates a firmware commit request builder.
func (w *WriteLockedController) FirmwareCommitRequest() (*FirmwareCommitRequest, error) {
	if err := w.usable(); err != nil {
		return nil, err
	}

	c := w.st.ctrl
	var h native.FwCommitReq
	ok := w.st.node.call("nvme_fw_commit_req_init", func() bool {
		var ok bool
		h, ok = c.lib.FwCommitReqInit(c.handle)
		return ok
	})
	if err := w.st.node.check(ok, c.errs, staticContext("failed to create firmware commit request")); err != nil {
		return nil, err
	}

	f := &FirmwareCommitRequest{request: request{lock: w.st}, h: h}
	f.node = w.st.node.child(trace.ResourceFirmwareCommit, "", "nvme_fw_commit_req_fini", func() {
		c.lib.FwCommitReqFini(h)
	})
	return f, nil
}

// SetSlot sets the slot the firmware is committed to.
func (f *FirmwareCommitRequest) SetSlot(slot Slot) (*FirmwareCommitRequest, error) {
	if err := f.usable(); err != nil {
		return nil, err
	}
	if !slot.valid() {
		return nil, f.reject(&SlotError{Slot: uint32(slot)})
	}
	err := f.set("nvme_fw_commit_req_set_slot",
		func() bool { return f.lock.ctrl.lib.FwCommitReqSetSlot(f.h, uint32(slot)) },
		func() string { return fmt.Sprintf("failed to set firmware commit request slot to %d", slot) })
	if err != nil {
		return nil, err
	}
	return f, nil
}

// SetAction sets the commit action.
func (f *FirmwareCommitRequest) SetAction(action FirmwareCommitAction) (*FirmwareCommitRequest, error) {
	if err := f.usable(); err != nil {
		return nil, err
	}
	if action > FirmwareActivateImmediately {
		return nil, f.reject(&FieldError{Request: "firmware commit", Field: "action", Value: uint64(action), Reason: "unknown action"})
	}
	err := f.set("nvme_fw_commit_req_set_action",
		func() bool { return f.lock.ctrl.lib.FwCommitReqSetAction(f.h, uint32(action)) },
		func() string { return fmt.Sprintf("failed to set firmware commit request action to %s", action) })
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Execute submits the commit command. The request is consumed.
func (f *FirmwareCommitRequest) Execute() error {
	return f.exec("nvme_fw_commit_req_exec",
		func() bool { return f.lock.ctrl.lib.FwCommitReqExec(f.h) },
		"failed to execute firmware commit request")
}

// Close frees the request handle. It is safe to call more than once.
func (f *FirmwareCommitRequest) Close() error { return f.close() }

// Firmware slot log layout.
const (
	firmwareLogSize       = 512
	firmwareLogSlotOffset = 8
	firmwareLogSlotLen    = 8
)

// FirmwareLog is the decoded firmware slot log page.
type FirmwareLog struct {
	// ActiveSlot is the slot the running firmware came from.
	ActiveSlot Slot
	// NextSlot is the slot activated at the next reset, or 0 if none.
	NextSlot Slot
	// Slot1ReadOnly reports whether slot 1 cannot be written.
	Slot1ReadOnly bool
	// NumSlots is the number of slots the controller supports.
	NumSlots int

	versions []string
}

// SlotVersion returns the firmware revision in slot. The bool is false
// when the slot is empty.
func (l *FirmwareLog) SlotVersion(slot Slot) (string, bool, error) {
	if !slot.valid() {
		return "", false, &SlotError{Slot: uint32(slot)}
	}
	idx := int(slot) - 1
	if idx >= len(l.versions) {
		return "", false, &SlotError{Slot: uint32(slot), Missing: true}
	}
	v := l.versions[idx]
	return v, v != "", nil
}

// decodeFirmwareLog decodes a firmware slot log page. nslot comes from the
// identify data and bounds how many revision strings are read.
func decodeFirmwareLog(data []byte, nslot int, slot1ReadOnly bool) *FirmwareLog {
	afi := data[0]
	l := &FirmwareLog{
		ActiveSlot:    Slot(afi & 0x7),
		NextSlot:      Slot((afi >> 4) & 0x7),
		Slot1ReadOnly: slot1ReadOnly,
		NumSlots:      nslot,
		versions:      make([]string, nslot),
	}
	for i := range nslot {
		off := firmwareLogSlotOffset + i*firmwareLogSlotLen
		frs := data[off : off+firmwareLogSlotLen]
		if frs[0] == 0 {
			continue
		}
		l.versions[i] = trimRevision(frs)
	}
	return l
}

// trimRevision cuts a revision at its first NUL and drops surrounding spaces.
func trimRevision(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(bytes.TrimSpace(b))
}

// FirmwareLogPage reads the firmware slot log and decodes it using the
// controller's identify data.
func (c *Controller) FirmwareLogPage() (*FirmwareLog, error) {
	page, err := c.LogPage(LogFirmware)
	if err != nil {
		return nil, err
	}
	if len(page.Data) != firmwareLogSize {
		return nil, c.node.fail(&LogSizeError{Name: LogFirmware, Size: uint64(len(page.Data)), Expected: firmwareLogSize})
	}

	info, err := c.GetInfo()
	if err != nil {
		return nil, err
	}
	defer info.Close()

	return decodeFirmwareLog(page.Data, info.FirmwareSlotCount(), info.Slot1ReadOnly()), nil
}
