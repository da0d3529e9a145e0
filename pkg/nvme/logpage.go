package nvme

import (
	"fmt"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

// Log page names understood by libnvme.
const (
	LogFirmware       = "firmware"
	LogHealth         = "health"
	LogError          = "error"
	LogSupported      = "suplog"
	LogCommandEffects = "cmdeff"
	LogChangedNs      = "changens"
)

// provisionalLogSize is the buffer used to read the header of a variable
// length log before its real size is known.
const provisionalLogSize = 512

// MaxLogPageSize bounds the buffer allocated for one log page read. Sizes
// reported by the device beyond it fail with ErrLogTooLarge.
const MaxLogPageSize = 64 << 20

// LogPage is the raw content of one log page.
type LogPage struct {
	Name     string
	Variable bool
	Data     []byte
}

// logRequest owns the description and request handles for one log read.
// Both are released together when its node closes.
type logRequest struct {
	ctrl *Controller
	name string
	disc native.LogDisc
	req  native.LogReq
	node *node
}

// LogPage reads the named log page. Fixed size logs are read once. Variable
// size logs are read once into a provisional buffer to compute their size
// and then read again; only the second buffer is returned.
func (c *Controller) LogPage(name string) (*LogPage, error) {
	if !c.node.alive() {
		return nil, ErrClosed
	}

	r, err := c.newLogRequest(name)
	if err != nil {
		return nil, err
	}
	defer r.node.close()

	kind, size := c.lib.LogDiscSize(r.disc)
	switch kind {
	case native.LogSizeFixed:
		data, err := r.read(size)
		if err != nil {
			return nil, err
		}
		return &LogPage{Name: name, Data: data}, nil

	case native.LogSizeVar:
		provisional, err := r.read(max(size, provisionalLogSize))
		if err != nil {
			return nil, err
		}
		var actual uint64
		ok := r.node.call("nvme_log_disc_calc_size", func() bool {
			var ok bool
			actual, ok = c.lib.LogDiscCalcSize(r.disc, provisional)
			return ok
		})
		if err := r.node.check(ok, c.errs, func() string {
			return fmt.Sprintf("failed to calculate size of %s log page", name)
		}); err != nil {
			return nil, err
		}
		data, err := r.read(actual)
		if err != nil {
			return nil, err
		}
		return &LogPage{Name: name, Variable: true, Data: data}, nil

	default:
		return nil, r.node.fail(fmt.Errorf("%w: %s", ErrLogSizeUnknown, name))
	}
}

func (c *Controller) newLogRequest(name string) (*logRequest, error) {
	var (
		disc native.LogDisc
		req  native.LogReq
	)
	ok := c.node.call("nvme_log_req_init_by_name", func() bool {
		var ok bool
		disc, req, ok = c.lib.LogReqInitByName(c.handle, name, 0)
		return ok
	})
	if err := c.node.check(ok, c.errs, func() string {
		return fmt.Sprintf("failed to create %s log page request", name)
	}); err != nil {
		return nil, err
	}

	r := &logRequest{ctrl: c, name: name, disc: disc, req: req}
	r.node = c.node.child(trace.ResourceLogRequest, name, "nvme_log_req_fini", func() {
		c.lib.LogReqFini(req)
		c.lib.LogDiscFree(disc)
	})
	return r, nil
}

// read points the request at a fresh buffer of size bytes and executes it.
// The buffer replaces whatever output the request had before.
func (r *logRequest) read(size uint64) ([]byte, error) {
	c := r.ctrl
	if size > MaxLogPageSize {
		return nil, r.node.fail(fmt.Errorf("%w: %s log page is %d bytes, limit is %d",
			ErrLogTooLarge, r.name, size, MaxLogPageSize))
	}
	buf := make([]byte, size)
	ok := r.node.call("nvme_log_req_set_output", func() bool { return c.lib.LogReqSetOutput(r.req, buf) })
	if err := r.node.check(ok, c.errs, func() string {
		return fmt.Sprintf("failed to set logpage req size to %d", size)
	}); err != nil {
		return nil, err
	}

	ok = r.node.transfer("nvme_log_req_exec", len(buf), nil, func() bool { return c.lib.LogReqExec(r.req) })
	if err := r.node.check(ok, c.errs, func() string {
		return fmt.Sprintf("failed to execute %s log request", r.name)
	}); err != nil {
		return nil, err
	}
	return buf, nil
}
