// Package nvmesim is a simulated libnvme for tests and for running nvmeadm
// on machines without NVMe hardware.
//
// A Sim implements native.Library over an in-memory model described by a
// Fixture: controllers with namespaces, LBA formats, firmware slots and log
// pages. It keeps the advisory lock per controller, can pretend another
// process holds it (HoldLock), and can fail any call on demand (Fail).
//
// Every call is recorded. Tests use Calls, Count and LiveHandles to check
// that each handle is released exactly once and in the right order, and
// StaleErrorReads to check that error accessors are only read after a
// failure.
//
// Fixtures can be loaded from YAML:
//
//	controllers:
//	  - instance: 0
//	    model: SIMULATED NVME SSD
//	    serial: SIM0000001
//	    pci_vendor_id: 0x1b96
//	    namespaces:
//	      - {id: 1, allocated: true, active: true, attached: true}
//	    lba_formats:
//	      - {data_size: 512, rel_perf: 2}
//	    firmware_slots: [SIMFW001, ""]
//	    active_slot: 1
package nvmesim
