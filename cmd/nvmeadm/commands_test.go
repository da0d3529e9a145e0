package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/nvme"
	"github.com/nvme-go/nvme-go/pkg/nvmesim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdmin(t *testing.T) (*admin, *bytes.Buffer, *nvmesim.Sim) {
	t.Helper()
	sim := nvmesim.New(nvmesim.DefaultFixture())
	sess, err := nvme.Open(nvme.Config{Library: sim})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })

	var out bytes.Buffer
	return &admin{sess: sess, out: &out, nsLevel: nvme.NamespaceActive}, &out, sim
}

// runCmd runs one command line and checks that it left no controller open
// or locked behind.
func runCmd(t *testing.T, a *admin, sim *nvmesim.Sim, line string) error {
	t.Helper()
	err := a.run(strings.Fields(line))
	assert.Equal(t, native.LockLevel(0), sim.LockHeld(0), "lock still held after %q", line)
	assert.Equal(t, sim.Count("nvme_ctrl_init_by_instance"), sim.Count("nvme_ctrl_fini")-sim.Count("nvme_ctrl_init"),
		"controller left open after %q", line)
	return err
}

func TestListCommand(t *testing.T) {
	a, out, sim := newTestAdmin(t)

	require.NoError(t, runCmd(t, a, sim, "list"))
	assert.Contains(t, out.String(), "SIMULATED NVME SSD")
	assert.Contains(t, out.String(), "SIM0000001")
	assert.Contains(t, out.String(), "SIMFW001")
}

func TestInfoCommand(t *testing.T) {
	a, out, sim := newTestAdmin(t)

	require.NoError(t, runCmd(t, a, sim, "info nvme0"))
	got := out.String()
	assert.Contains(t, got, "PCI vendor:        0x1b96")
	assert.Contains(t, got, "Firmware slots:    3 (slot 1 read-only)")
	assert.Contains(t, got, "LBA formats:       2")
	assert.Contains(t, got, "lbaf 1: data 4096 meta 0 (best)")
}

func TestNamespacesCommand(t *testing.T) {
	tests := map[string]struct {
		line    string
		want    []string
		notWant []string
	}{
		"default level": {
			line:    "namespaces 0",
			want:    []string{"nsid 1: lbaf 0", "nsid 2"},
			notWant: []string{"nsid 3"},
		},
		"flag after instance": {
			line: "namespaces 0 -level all",
			want: []string{"nsid 1", "nsid 2", "nsid 3"},
		},
		"blkdev": {
			line:    "namespaces -level blkdev 0",
			want:    []string{"nsid 1"},
			notWant: []string{"nsid 2", "nsid 3"},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, out, sim := newTestAdmin(t)
			require.NoError(t, runCmd(t, a, sim, tc.line))
			for _, w := range tc.want {
				assert.Contains(t, out.String(), w)
			}
			for _, w := range tc.notWant {
				assert.NotContains(t, out.String(), w)
			}
		})
	}
}

func TestNamespacesBadLevel(t *testing.T) {
	a, _, _ := newTestAdmin(t)
	err := a.run([]string{"namespaces", "0", "-level", "sideways"})
	assert.ErrorContains(t, err, "unknown namespace level")
}

func TestFormatCommand(t *testing.T) {
	a, out, sim := newTestAdmin(t)

	require.NoError(t, runCmd(t, a, sim, "format 0 -lbaf 1 -nsid 2 -ses 1"))
	rec, ok := sim.LastFormat(0)
	require.True(t, ok)
	assert.Equal(t, nvmesim.FormatRecord{Lbaf: 1, Nsid: 2, Ses: 1}, rec)
	assert.Contains(t, out.String(), "Formatted nsid 2 with lbaf 1")

	require.NoError(t, runCmd(t, a, sim, "format 0"))
	rec, _ = sim.LastFormat(0)
	assert.Equal(t, nvme.NsidAll, rec.Nsid)
}

func TestFormatCommandRejectsOutOfRangeValues(t *testing.T) {
	tests := map[string]struct {
		line string
		want string
	}{
		"lbaf overflow": {line: "format 0 -lbaf 4294967297", want: `invalid LBA format: "4294967297"`},
		"ses overflow":  {line: "format 0 -ses 4294967296", want: `invalid secure erase setting: "4294967296"`},
		"negative lbaf": {line: "format 0 -lbaf -1", want: `invalid LBA format: "-1"`},
		"lbaf range":    {line: "format 0 -lbaf 64", want: "invalid lbaf 64"},
		"ses range":     {line: "format 0 -ses 3", want: "invalid ses 3"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, out, sim := newTestAdmin(t)
			err := runCmd(t, a, sim, tc.line)
			assert.ErrorContains(t, err, tc.want)
			assert.Zero(t, sim.Count("nvme_format_req_exec"))
			assert.Empty(t, out.String())

			_, ok := sim.LastFormat(0)
			assert.False(t, ok)
		})
	}
}

func TestFormatCommandLockContention(t *testing.T) {
	a, _, sim := newTestAdmin(t)
	sim.HoldLock(0, native.LockWrite)

	err := a.run([]string{"format", "0"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, nvme.ErrCtrlLocked))
	assert.Contains(t, describeError(err), "another process holds the controller lock")
	assert.Equal(t, 1, sim.Count("nvme_ctrl_fini"))
	assert.Zero(t, sim.Count("nvme_format_req_init"))
}

func TestFirmwareCommands(t *testing.T) {
	a, out, sim := newTestAdmin(t)

	img := make([]byte, 6000)
	copy(img, "NEWFW002")
	path := filepath.Join(t.TempDir(), "fw.bin")
	require.NoError(t, os.WriteFile(path, img, 0o600))

	require.NoError(t, runCmd(t, a, sim, "fw-load 0 "+path))
	assert.Equal(t, 2, sim.Count("nvme_fw_load"))

	require.NoError(t, runCmd(t, a, sim, "fw-commit 0 -slot 2 -action save-activate"))
	assert.Equal(t, "NEWFW002", sim.FirmwareSlot(0, 2))
	assert.Contains(t, out.String(), "Committed firmware to slot 2 (save-activate)")

	out.Reset()
	require.NoError(t, runCmd(t, a, sim, "firmware 0"))
	got := out.String()
	assert.Contains(t, got, "Active slot: 1")
	assert.Contains(t, got, "Next slot:   2")
	assert.Contains(t, got, "slot 1: SIMFW001 [read-only]")
	assert.Contains(t, got, "slot 2: NEWFW002")
	assert.Contains(t, got, "slot 3: (empty)")
}

func TestFirmwareCommitArguments(t *testing.T) {
	tests := map[string]struct {
		line string
		want string
	}{
		"no action":     {line: "fw-commit 0 -slot 2", want: "usage: fw-commit"},
		"no slot":       {line: "fw-commit 0 -action save", want: "usage: fw-commit"},
		"bad slot":      {line: "fw-commit 0 -slot 8 -action save", want: "slots must be between 1 and 7"},
		"slot overflow": {line: "fw-commit 0 -slot 4294967298 -action activate", want: `invalid firmware slot: "4294967298"`},
		"bad action":    {line: "fw-commit 0 -slot 2 -action flash", want: `unknown firmware commit action "flash"`},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, _, sim := newTestAdmin(t)
			err := a.run(strings.Fields(tc.line))
			assert.ErrorContains(t, err, tc.want)
			assert.Zero(t, sim.Count("nvme_ctrl_lock"))
		})
	}
}

func TestFirmwareLoadMissingFile(t *testing.T) {
	a, _, sim := newTestAdmin(t)
	err := a.run([]string{"fw-load", "0", filepath.Join(t.TempDir(), "missing.bin")})
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Zero(t, sim.Count("nvme_ctrl_lock"))
}

func TestLogPageCommand(t *testing.T) {
	a, out, sim := newTestAdmin(t)

	require.NoError(t, runCmd(t, a, sim, "logpage 0 error"))
	assert.Equal(t, sim.LogContent(0, "error"), out.Bytes())

	out.Reset()
	require.NoError(t, runCmd(t, a, sim, "logpage 0 health -hex"))
	assert.True(t, strings.HasPrefix(out.String(), "health log (512 bytes):\n00000000  "), out.String())
}

func TestBlkdevCommands(t *testing.T) {
	a, out, sim := newTestAdmin(t)
	require.False(t, sim.Attached(0, 2))

	require.NoError(t, runCmd(t, a, sim, "attach 0 2"))
	assert.True(t, sim.Attached(0, 2))
	assert.Contains(t, out.String(), "Attached blkdev on nsid 2")

	require.NoError(t, runCmd(t, a, sim, "detach 0 2"))
	assert.False(t, sim.Attached(0, 2))
}

func TestWdcResizeCommand(t *testing.T) {
	a, out, sim := newTestAdmin(t)

	require.NoError(t, runCmd(t, a, sim, "wdc-resize 0"))
	assert.Contains(t, out.String(), "Device size: 960")

	require.NoError(t, runCmd(t, a, sim, "wdc-resize 0 -set 800"))
	out.Reset()
	require.NoError(t, runCmd(t, a, sim, "wdc-resize 0"))
	assert.Contains(t, out.String(), "Device size: 800")
}

func TestCommandErrors(t *testing.T) {
	tests := map[string]struct {
		args []string
		want string
	}{
		"empty":          {args: nil, want: "usage: <command>"},
		"unknown":        {args: []string{"frobnicate"}, want: "unknown command: frobnicate"},
		"missing inst":   {args: []string{"info"}, want: "usage: info <inst>"},
		"bad inst":       {args: []string{"info", "sda"}, want: `invalid controller instance: "sda"`},
		"missing nsid":   {args: []string{"attach", "0"}, want: "usage: attach <inst> <nsid>"},
		"unknown flag":   {args: []string{"format", "0", "-bogus"}, want: "flag provided but not defined"},
		"no such device": {args: []string{"info", "7"}, want: "failed to init nvme controller instance 7"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			a, _, _ := newTestAdmin(t)
			assert.ErrorContains(t, a.run(tc.args), tc.want)
		})
	}
}

func TestParseInstance(t *testing.T) {
	tests := map[string]struct {
		in      string
		want    int32
		wantErr bool
	}{
		"number":   {in: "3", want: 3},
		"prefixed": {in: "nvme12", want: 12},
		"negative": {in: "-1", wantErr: true},
		"garbage":  {in: "disk0", wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := parseInstance(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseInstance(%q) succeeded", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseInstance(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("parseInstance(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

// scriptedReader feeds fixed lines to the shell loop.
type scriptedReader struct {
	lines []string
	out   bytes.Buffer
}

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptedReader) Stdout() io.Writer { return &r.out }

func TestShellLoop(t *testing.T) {
	a, _, sim := newTestAdmin(t)
	rl := &scriptedReader{lines: []string{"", "list", "info", "quit", "list"}}
	a.out = &rl.out

	shellLoop(rl, a)

	got := rl.out.String()
	assert.Contains(t, got, "SIMULATED NVME SSD")
	assert.Contains(t, got, "Error: usage: info <inst>")
	assert.Equal(t, 1, strings.Count(got, "SIM0000001"), "ran past quit")
	assert.True(t, strings.HasSuffix(got, "Exiting...\n"))
	assert.Equal(t, 1, sim.Count("nvme_ctrl_discover_init"))
}

func TestShellLoopEndsOnEOF(t *testing.T) {
	a, _, _ := newTestAdmin(t)
	rl := &scriptedReader{lines: []string{"help"}}
	a.out = &rl.out

	shellLoop(rl, a)
	assert.Contains(t, rl.out.String(), "wdc-resize <inst> [-set size]")
	assert.True(t, strings.HasSuffix(rl.out.String(), "Exiting...\n"))
}
