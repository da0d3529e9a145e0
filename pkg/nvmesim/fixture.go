package nvmesim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture describes the simulated system.
type Fixture struct {
	Controllers []ControllerFixture `yaml:"controllers"`
}

// ControllerFixture describes one simulated controller.
type ControllerFixture struct {
	Instance    int32  `yaml:"instance"`
	Model       string `yaml:"model"`
	Serial      string `yaml:"serial"`
	Firmware    string `yaml:"firmware"`
	PCIVendorID uint16 `yaml:"pci_vendor_id"`

	// MaxNamespaces is the number of namespaces the controller supports.
	// Defaults to the number of listed namespaces.
	MaxNamespaces uint32 `yaml:"max_namespaces"`

	Namespaces []NamespaceFixture `yaml:"namespaces"`
	LbaFormats []LbaFormatFixture `yaml:"lba_formats"`

	// FirmwareSlots holds the revision in each slot, "" for an empty slot.
	// Its length is the number of slots advertised in identify data.
	FirmwareSlots []string `yaml:"firmware_slots"`
	ActiveSlot    uint8    `yaml:"active_slot"`
	Slot1ReadOnly bool     `yaml:"slot1_read_only"`

	Logs []LogFixture `yaml:"logs"`

	// Wdc enables the WDC vendor resize commands.
	Wdc     bool   `yaml:"wdc"`
	WdcSize uint32 `yaml:"wdc_size"`
}

// NamespaceFixture describes one namespace.
type NamespaceFixture struct {
	ID        uint32 `yaml:"id"`
	Allocated bool   `yaml:"allocated"`
	Active    bool   `yaml:"active"`
	Ignored   bool   `yaml:"ignored"`
	Attached  bool   `yaml:"attached"`
	Format    uint32 `yaml:"format"`
}

// LbaFormatFixture is one LBA format table entry.
type LbaFormatFixture struct {
	MetaSize uint32 `yaml:"meta_size"`
	DataSize uint64 `yaml:"data_size"`
	RelPerf  uint32 `yaml:"rel_perf"`
}

// Log size kinds accepted in LogFixture.Kind.
const (
	LogKindFixed    = "fixed"
	LogKindVariable = "variable"
	LogKindUnknown  = "unknown"
)

// LogFixture describes a log page beyond the built-in firmware and health
// logs. For variable logs Size is what the library reports up front and
// ActualSize is what size calculation returns once the header was read.
type LogFixture struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Size       uint64 `yaml:"size"`
	ActualSize uint64 `yaml:"actual_size"`
}

// LoadError is returned when a fixture file cannot be loaded.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return e.File + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.File + ": " + e.Message
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ParseFixture parses a fixture from YAML bytes.
func ParseFixture(data []byte) (Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixture{}, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := f.validate(); err != nil {
		return Fixture{}, &LoadError{Message: err.Error()}
	}
	return f, nil
}

// LoadFixture loads a fixture from a file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	f, err := ParseFixture(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return Fixture{}, le
		}
		return Fixture{}, &LoadError{File: path, Message: err.Error()}
	}
	return f, nil
}

func (f Fixture) validate() error {
	seen := make(map[int32]bool)
	for _, c := range f.Controllers {
		if c.Instance < 0 {
			return fmt.Errorf("controller instance %d is negative", c.Instance)
		}
		if seen[c.Instance] {
			return fmt.Errorf("controller instance %d is listed twice", c.Instance)
		}
		seen[c.Instance] = true

		if len(c.FirmwareSlots) > 7 {
			return fmt.Errorf("controller %d: at most 7 firmware slots", c.Instance)
		}
		if c.ActiveSlot > 7 {
			return fmt.Errorf("controller %d: active slot %d out of range", c.Instance, c.ActiveSlot)
		}
		for _, ns := range c.Namespaces {
			if ns.ID == 0 {
				return fmt.Errorf("controller %d: namespace id 0 is reserved", c.Instance)
			}
			if len(c.LbaFormats) > 0 && ns.Format >= uint32(len(c.LbaFormats)) {
				return fmt.Errorf("controller %d: namespace %d uses unknown format %d", c.Instance, ns.ID, ns.Format)
			}
		}
		for _, l := range c.Logs {
			switch l.Kind {
			case LogKindFixed, LogKindVariable, LogKindUnknown:
			default:
				return fmt.Errorf("controller %d: log %q has unknown kind %q", c.Instance, l.Name, l.Kind)
			}
		}
	}
	return nil
}

// DefaultFixture returns one controller with two namespaces, two LBA
// formats and a variable size log, enough to exercise every operation.
func DefaultFixture() Fixture {
	return Fixture{
		Controllers: []ControllerFixture{{
			Instance:    0,
			Model:       "SIMULATED NVME SSD",
			Serial:      "SIM0000001",
			Firmware:    "SIMFW001",
			PCIVendorID: 0x1b96,
			Namespaces: []NamespaceFixture{
				{ID: 1, Allocated: true, Active: true, Attached: true},
				{ID: 2, Allocated: true, Active: true},
				{ID: 3, Allocated: true},
			},
			LbaFormats: []LbaFormatFixture{
				{DataSize: 512, RelPerf: 2},
				{DataSize: 4096, RelPerf: 0},
			},
			FirmwareSlots: []string{"SIMFW001", "SIMFW000", ""},
			ActiveSlot:    1,
			Slot1ReadOnly: true,
			Logs: []LogFixture{
				{Name: "error", Kind: LogKindFixed, Size: 64},
				{Name: "suplog", Kind: LogKindFixed, Size: 1024},
				{Name: "changens", Kind: LogKindVariable, Size: 8, ActualSize: 4096},
			},
			Wdc:     true,
			WdcSize: 960,
		}},
	}
}
