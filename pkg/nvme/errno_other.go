//go:build !unix

package nvme

import "strconv"

func errnoString(errno int32) string {
	if errno == 0 {
		return "no system errno"
	}
	return "errno " + strconv.Itoa(int(errno))
}
