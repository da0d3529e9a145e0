package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nvme-go/nvme-go/pkg/nvme"
)

const usage = `nvmeadm - NVMe controller administration

Usage:
  nvmeadm [global flags] <command> [args]

Commands:
  list                              List controllers
  info <inst>                       Show controller identify data
  namespaces <inst> [-level L]      List namespaces (all, allocated, active, not-ignored, blkdev)
  format <inst> [-lbaf N] [-nsid N] [-ses N]
                                    Format one or all namespaces
  fw-load <inst> <file>             Download a firmware image
  fw-commit <inst> -slot N -action A
                                    Commit firmware (save, save-activate, activate, activate-immediately)
  firmware <inst>                   Show the firmware slot log
  logpage <inst> <name> [-hex]      Read a log page (raw to stdout, or a hex dump)
  attach <inst> <nsid>              Attach the blkdev driver to a namespace
  detach <inst> <nsid>              Detach the blkdev driver from a namespace
  wdc-resize <inst> [-set size]     Get or set the WDC device size
  shell                             Interactive mode

Global flags:
`

// errUsage reports a malformed command line. The message is the usage line
// for the command.
type errUsage string

func (e errUsage) Error() string { return "usage: " + string(e) }

// admin runs commands against one session. Every command opens the
// controllers it needs and closes them before returning.
type admin struct {
	sess    *nvme.Session
	out     io.Writer
	nsLevel nvme.NamespaceLevel
}

// run dispatches one command line.
func (a *admin) run(args []string) error {
	if len(args) == 0 {
		return errUsage("<command> [args]")
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "list", "ls":
		return a.cmdList()
	case "info":
		return a.cmdInfo(args)
	case "namespaces", "ns":
		return a.cmdNamespaces(args)
	case "format":
		return a.cmdFormat(args)
	case "fw-load":
		return a.cmdFirmwareLoad(args)
	case "fw-commit":
		return a.cmdFirmwareCommit(args)
	case "firmware", "fw":
		return a.cmdFirmware(args)
	case "logpage", "log":
		return a.cmdLogPage(args)
	case "attach":
		return a.cmdBlkdev(args, true)
	case "detach":
		return a.cmdBlkdev(args, false)
	case "wdc-resize":
		return a.cmdWdcResize(args)
	default:
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// parseInterleaved parses flags that may appear before, between or after
// positional arguments and returns the positional ones.
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseInstance(s string) (int32, error) {
	s = strings.TrimPrefix(s, "nvme")
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid controller instance: %q", s)
	}
	return int32(n), nil
}

func parseUint32(what, s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", what, s)
	}
	return uint32(n), nil
}

// controller opens the controller named by the first positional argument.
func (a *admin) controller(pos []string, want int, use string) (*nvme.Controller, error) {
	if len(pos) != want {
		return nil, errUsage(use)
	}
	inst, err := parseInstance(pos[0])
	if err != nil {
		return nil, err
	}
	return a.sess.ControllerByInstance(inst)
}

func (a *admin) cmdList() error {
	disc, err := a.sess.ControllerDiscovery()
	if err != nil {
		return err
	}
	defer disc.Close()

	fmt.Fprintf(a.out, "%-3s %-40s %-20s %-8s %s\n", "#", "MODEL", "SERIAL", "FW", "NS")
	n := 0
	for ctrl, err := range disc.All() {
		if err != nil {
			return err
		}
		info, err := ctrl.GetInfo()
		if err != nil {
			fmt.Fprintf(a.out, "%-3d %v\n", n, err)
		} else {
			fmt.Fprintf(a.out, "%-3d %-40s %-20s %-8s %d\n",
				n, info.Model(), info.Serial(), info.FirmwareRevision(), info.NumNamespaces())
		}
		ctrl.Close()
		n++
	}
	if n == 0 {
		fmt.Fprintln(a.out, "No controllers found")
	}
	return nil
}

func (a *admin) cmdInfo(args []string) error {
	ctrl, err := a.controller(args, 1, "info <inst>")
	if err != nil {
		return err
	}
	defer ctrl.Close()

	info, err := ctrl.GetInfo()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Model:             %s\n", info.Model())
	fmt.Fprintf(a.out, "Serial:            %s\n", info.Serial())
	fmt.Fprintf(a.out, "Firmware:          %s\n", info.FirmwareRevision())
	fmt.Fprintf(a.out, "Namespaces:        %d\n", info.NumNamespaces())
	if vid, err := info.PCIVendorID(); err != nil {
		fmt.Fprintf(a.out, "PCI vendor:        (%v)\n", err)
	} else {
		fmt.Fprintf(a.out, "PCI vendor:        0x%04x\n", vid)
	}
	fmt.Fprintf(a.out, "Firmware slots:    %d", info.FirmwareSlotCount())
	if info.Slot1ReadOnly() {
		fmt.Fprint(a.out, " (slot 1 read-only)")
	}
	fmt.Fprintln(a.out)

	formats, err := info.LbaFormats()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "LBA formats:       %d\n", len(formats))
	for _, f := range formats {
		fmt.Fprintf(a.out, "  %s\n", f)
	}
	return nil
}

func (a *admin) cmdNamespaces(args []string) error {
	fs := newFlagSet("namespaces")
	levelName := fs.String("level", a.nsLevel.String(), "Discovery level")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	level, err := nvme.ParseNamespaceLevel(*levelName)
	if err != nil {
		return err
	}

	ctrl, err := a.controller(pos, 1, "namespaces <inst> [-level L]")
	if err != nil {
		return err
	}
	defer ctrl.Close()

	disc, err := ctrl.NamespaceDiscovery(level)
	if err != nil {
		return err
	}
	defer disc.Close()

	for ns, err := range disc.All() {
		if err != nil {
			return err
		}
		line := fmt.Sprintf("nsid %d", ns.ID())
		if info, err := ns.GetInfo(); err == nil {
			if f, err := info.CurrentFormat(); err == nil {
				line += fmt.Sprintf(": %s", f)
			}
		}
		fmt.Fprintln(a.out, line)
		ns.Close()
	}
	return nil
}

// writeLocked opens the controller in pos[0] and takes the write lock. The
// returned close func releases both.
func (a *admin) writeLocked(pos []string, want int, use string) (*nvme.WriteLockedController, func(), error) {
	ctrl, err := a.controller(pos, want, use)
	if err != nil {
		return nil, nil, err
	}
	w, err := ctrl.WriteLock()
	if err != nil {
		ctrl.Close()
		return nil, nil, err
	}
	return w, func() { w.Close() }, nil
}

func (a *admin) cmdFormat(args []string) error {
	fs := newFlagSet("format")
	lbafArg := fs.String("lbaf", "0", "LBA format index")
	nsid := fs.String("nsid", "all", `Namespace id or "all"`)
	sesArg := fs.String("ses", "0", "Secure erase setting (0 none, 1 user data, 2 cryptographic)")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}

	lbaf, err := parseUint32("LBA format", *lbafArg)
	if err != nil {
		return err
	}
	ses, err := parseUint32("secure erase setting", *sesArg)
	if err != nil {
		return err
	}
	target := nvme.NsidAll
	if *nsid != "all" {
		if target, err = parseUint32("namespace id", *nsid); err != nil {
			return err
		}
	}

	w, done, err := a.writeLocked(pos, 1, "format <inst> [-lbaf N] [-nsid N] [-ses N]")
	if err != nil {
		return err
	}
	defer done()

	req, err := w.FormatRequest()
	if err != nil {
		return err
	}
	if req, err = req.SetLbaf(lbaf); err != nil {
		return err
	}
	if req, err = req.SetNsid(target); err != nil {
		return err
	}
	if req, err = req.SetSes(ses); err != nil {
		return err
	}
	if err := req.Execute(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Formatted nsid %s with lbaf %d\n", *nsid, lbaf)
	return nil
}

func (a *admin) cmdFirmwareLoad(args []string) error {
	if len(args) != 2 {
		return errUsage("fw-load <inst> <file>")
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	w, done, err := a.writeLocked(args[:1], 1, "fw-load <inst> <file>")
	if err != nil {
		return err
	}
	defer done()

	if err := w.FirmwareLoad(f); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Loaded firmware image %s\n", args[1])
	return nil
}

func (a *admin) cmdFirmwareCommit(args []string) error {
	fs := newFlagSet("fw-commit")
	slotArg := fs.String("slot", "", "Firmware slot (1-7)")
	actionName := fs.String("action", "", "Commit action")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	const use = "fw-commit <inst> -slot N -action A"
	if *actionName == "" || *slotArg == "" {
		return errUsage(use)
	}
	slotNum, err := parseUint32("firmware slot", *slotArg)
	if err != nil {
		return err
	}
	slot, err := nvme.NewSlot(slotNum)
	if err != nil {
		return err
	}
	action, err := nvme.ParseFirmwareCommitAction(*actionName)
	if err != nil {
		return err
	}

	w, done, err := a.writeLocked(pos, 1, use)
	if err != nil {
		return err
	}
	defer done()

	req, err := w.FirmwareCommitRequest()
	if err != nil {
		return err
	}
	if req, err = req.SetSlot(slot); err != nil {
		return err
	}
	if req, err = req.SetAction(action); err != nil {
		return err
	}
	if err := req.Execute(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Committed firmware to slot %d (%s)\n", slot, action)
	return nil
}

func (a *admin) cmdFirmware(args []string) error {
	ctrl, err := a.controller(args, 1, "firmware <inst>")
	if err != nil {
		return err
	}
	defer ctrl.Close()

	fwlog, err := ctrl.FirmwareLogPage()
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Active slot: %d\n", fwlog.ActiveSlot)
	if fwlog.NextSlot != 0 {
		fmt.Fprintf(a.out, "Next slot:   %d\n", fwlog.NextSlot)
	}
	for i := 1; i <= fwlog.NumSlots; i++ {
		slot := nvme.Slot(i)
		version, ok, err := fwlog.SlotVersion(slot)
		if err != nil {
			return err
		}
		if !ok {
			version = "(empty)"
		}
		ro := ""
		if slot == 1 && fwlog.Slot1ReadOnly {
			ro = " [read-only]"
		}
		fmt.Fprintf(a.out, "  slot %d: %s%s\n", slot, version, ro)
	}
	return nil
}

func (a *admin) cmdLogPage(args []string) error {
	fs := newFlagSet("logpage")
	asHex := fs.Bool("hex", false, "Print a hex dump")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	ctrl, err := a.controller(pos, 2, "logpage <inst> <name> [-hex]")
	if err != nil {
		return err
	}
	defer ctrl.Close()

	page, err := ctrl.LogPage(pos[1])
	if err != nil {
		return err
	}
	if *asHex {
		fmt.Fprintf(a.out, "%s log (%d bytes):\n", page.Name, len(page.Data))
		d := hex.Dumper(a.out)
		defer d.Close()
		_, err = d.Write(page.Data)
		return err
	}
	_, err = a.out.Write(page.Data)
	return err
}

func (a *admin) cmdBlkdev(args []string, attach bool) error {
	use := "detach <inst> <nsid>"
	if attach {
		use = "attach <inst> <nsid>"
	}
	if len(args) != 2 {
		return errUsage(use)
	}
	nsid, err := parseUint32("namespace id", args[1])
	if err != nil {
		return err
	}

	w, done, err := a.writeLocked(args, 2, use)
	if err != nil {
		return err
	}
	defer done()

	ns, err := w.Controller().Namespace(nsid)
	if err != nil {
		return err
	}
	if attach {
		err = ns.BlkdevAttach()
	} else {
		err = ns.BlkdevDetach()
	}
	if err != nil {
		return err
	}
	verb := "Detached"
	if attach {
		verb = "Attached"
	}
	fmt.Fprintf(a.out, "%s blkdev on nsid %d\n", verb, nsid)
	return nil
}

func (a *admin) cmdWdcResize(args []string) error {
	fs := newFlagSet("wdc-resize")
	set := fs.String("set", "", "New device size")
	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return err
	}
	const use = "wdc-resize <inst> [-set size]"

	if *set == "" {
		ctrl, err := a.controller(pos, 1, use)
		if err != nil {
			return err
		}
		defer ctrl.Close()
		r, err := ctrl.ReadLock()
		if err != nil {
			return err
		}
		size, err := r.WdcResizeGet()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Device size: %d\n", size)
		return nil
	}

	size, err := parseUint32("size", *set)
	if err != nil {
		return err
	}
	w, done, err := a.writeLocked(pos, 1, use)
	if err != nil {
		return err
	}
	defer done()
	if err := w.WdcResizeSet(size); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Device size set to %d\n", size)
	return nil
}

// describeError adds the lock holder hint to lock failures.
func describeError(err error) string {
	if errors.Is(err, nvme.ErrCtrlLocked) || errors.Is(err, nvme.ErrLockWouldBlock) {
		return err.Error() + " (another process holds the controller lock)"
	}
	return err.Error()
}
