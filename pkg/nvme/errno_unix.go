//go:build unix

package nvme

import (
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

func errnoString(errno int32) string {
	if errno == 0 {
		return "no system errno"
	}
	if name := unix.ErrnoName(syscall.Errno(errno)); name != "" {
		return name + " (errno " + strconv.Itoa(int(errno)) + ")"
	}
	return "errno " + strconv.Itoa(int(errno))
}
