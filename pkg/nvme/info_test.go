package nvme

import (
	"testing"

	"github.com/nvme-go/nvme-go/pkg/nvmesim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerInfoFields(t *testing.T) {
	ctrl, sim := openController(t)

	info, err := ctrl.GetInfo()
	require.NoError(t, err)

	assert.Equal(t, "SIMULATED NVME SSD", info.Model())
	assert.Equal(t, "SIM0000001", info.Serial())
	assert.Equal(t, "SIMFW001", info.FirmwareRevision())
	assert.Equal(t, uint32(3), info.NumNamespaces())
	assert.Equal(t, uint32(2), info.FormatCount())
	assert.Equal(t, 3, info.FirmwareSlotCount())
	assert.True(t, info.Slot1ReadOnly())

	vid, err := info.PCIVendorID()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1b96), vid)

	id := info.Identify()
	require.Len(t, id, 4096)
	id[0] = 0xff
	assert.Equal(t, byte(0x96), info.Identify()[0], "Identify returned the cached slice")

	require.NoError(t, info.Close())
	require.NoError(t, info.Close())
	assert.Equal(t, 1, sim.Count("nvme_ctrl_info_free"))
	assert.Zero(t, sim.StaleErrorReads())
}

func TestControllerInfoLbaFormats(t *testing.T) {
	ctrl, _ := openController(t)
	info, err := ctrl.GetInfo()
	require.NoError(t, err)

	formats, err := info.LbaFormats()
	require.NoError(t, err)
	assert.Equal(t, []LbaFormat{
		{ID: 0, DataSize: 512, RelativePerformance: PerformanceGood},
		{ID: 1, DataSize: 4096, RelativePerformance: PerformanceBest},
	}, formats)
	assert.Equal(t, "lbaf 1: data 4096 meta 0 (best)", formats[1].String())

	_, err = info.LbaFormat(7)
	var ierr *InfoError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, InfoCodeBadLbaFmt, ierr.Code)
	assert.Equal(t, "failed to get lba fmt for index 7", ierr.Context)
}

func TestControllerInfoPCIVendorIDFailure(t *testing.T) {
	fix := nvmesim.DefaultFixture()
	fix.Controllers[0].PCIVendorID = 0
	sess, _ := openSim(t, fix)
	ctrl, err := sess.ControllerByInstance(0)
	require.NoError(t, err)
	info, err := ctrl.GetInfo()
	require.NoError(t, err)

	_, err = info.PCIVendorID()
	assert.ErrorIs(t, err, &InfoError{Code: InfoCodeTransport})
	assert.Equal(t, "failed to get pci vid: controller is not attached over PCIe [no system errno]", err.Error())

	_, ok := CodeOf(err)
	assert.False(t, ok, "info errors carry no library code")
}

func TestControllerInfoSnapshotFailure(t *testing.T) {
	ctrl, sim := openController(t)
	sim.Fail("nvme_ctrl_info_snap", uint32(CodeNoMem), 12)

	_, err := ctrl.GetInfo()
	assert.ErrorIs(t, err, ErrNoMem)
	var nerr *Error
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "failed to get controller snapshot", nerr.Context)
	assert.Zero(t, sim.Count("nvme_ctrl_info_free"))
}

func TestControllerInfoClosedWithController(t *testing.T) {
	ctrl, sim := openController(t)
	info, err := ctrl.GetInfo()
	require.NoError(t, err)

	require.NoError(t, ctrl.Close())
	assert.Equal(t, []string{"nvme_ctrl_info_free", "nvme_ctrl_fini"}, sim.Ops()[len(sim.Ops())-2:])

	_, err = info.PCIVendorID()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = info.LbaFormat(0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, "SIM0000001", info.Serial(), "cached fields outlive the handle")

	require.NoError(t, info.Close())
	assert.Equal(t, 1, sim.Count("nvme_ctrl_info_free"))
}

func TestFirmwareSlotCount(t *testing.T) {
	tests := map[string]struct {
		identify []byte
		slots    int
		ro       bool
	}{
		"short identify": {identify: make([]byte, 100), slots: 0},
		"zero slots":     {identify: make([]byte, 4096), slots: 0},
		"seven slots":    {identify: withByte(260, 0xE), slots: 7},
		"four slots ro":  {identify: withByte(260, 0x9), slots: 4, ro: true},
		"one slot":       {identify: withByte(260, 0x2), slots: 1},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			info := &ControllerInfo{identify: tc.identify}
			assert.Equal(t, tc.slots, info.FirmwareSlotCount())
			assert.Equal(t, tc.ro, info.Slot1ReadOnly())
		})
	}
}

func withByte(off int, b byte) []byte {
	id := make([]byte, 4096)
	id[off] = b
	return id
}

func TestPerformanceFromRaw(t *testing.T) {
	assert.Equal(t, PerformanceBest, performanceFromRaw(0))
	assert.Equal(t, PerformanceDegraded, performanceFromRaw(3))
	assert.Equal(t, PerformanceUnknown, performanceFromRaw(4))
	assert.Equal(t, "unknown", PerformanceUnknown.String())
}

func TestNamespaceCurrentFormat(t *testing.T) {
	ctrl, _ := openController(t)

	ns, err := ctrl.Namespace(1)
	require.NoError(t, err)
	info, err := ns.GetInfo()
	require.NoError(t, err)
	f, err := info.CurrentFormat()
	require.NoError(t, err)
	assert.Equal(t, uint64(512), f.DataSize)

	inactive, err := ctrl.Namespace(3)
	require.NoError(t, err)
	info, err = inactive.GetInfo()
	require.NoError(t, err)
	_, err = info.CurrentFormat()
	var ierr *InfoError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, InfoCodeNsInactive, ierr.Code)
	assert.Equal(t, "failed to get current format of NVMe namespace", ierr.Context)
}
