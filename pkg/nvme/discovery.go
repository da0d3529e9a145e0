package nvme

import (
	"errors"
	"fmt"
	"iter"

	"github.com/nvme-go/nvme-go/pkg/native"
)

// walkState is where a discovery iterator stands. Once it leaves walkActive
// the native iterator is never stepped again.
type walkState uint8

const (
	walkActive walkState = iota
	walkDone
	walkFailed
)

// stepResult decodes a native step outcome. libnvme only returns three
// values; anything else means the library and this package disagree about
// the ABI, and continuing would be unsafe.
func stepResult(kind string, st native.IterState) walkState {
	switch st {
	case native.IterValid:
		return walkActive
	case native.IterDone:
		return walkDone
	case native.IterError:
		return walkFailed
	default:
		panic(fmt.Sprintf("invalid nvme %s iteration state (%d)", kind, st))
	}
}

// walkErr is returned by Next once the walk is over.
func walkErr(state walkState) error {
	if state == walkDone {
		return ErrDiscoveryDone
	}
	return ErrDiscoveryFailed
}

// ControllerDiscovery is a single-pass walk over the controllers in the
// system. Controllers it yields belong to the Session, not to the iterator,
// and stay usable after the iterator is closed.
type ControllerDiscovery struct {
	sess  *Session
	iter  native.CtrlIter
	node  *node
	state walkState
}

// Next returns the next controller. It returns ErrDiscoveryDone when the
// walk is complete. A failure to initialize one controller is returned for
// that step only; a failure of the walk itself is returned once and then
// ErrDiscoveryFailed on every later call.
func (d *ControllerDiscovery) Next() (*Controller, error) {
	if d.state != walkActive {
		return nil, walkErr(d.state)
	}
	if !d.node.alive() {
		return nil, ErrClosed
	}

	var (
		st   native.IterState
		disc native.CtrlDisc
	)
	d.node.call("nvme_ctrl_discover_step", func() bool {
		st, disc = d.sess.lib.CtrlDiscoverStep(d.iter)
		return st != native.IterError
	})

	d.state = stepResult("controller", st)
	switch d.state {
	case walkDone:
		return nil, ErrDiscoveryDone
	case walkFailed:
		return nil, d.node.check(false, d.sess.errs, staticContext("failed to iterate nvme controllers"))
	}

	devi := d.sess.lib.CtrlDiscDevi(disc)
	return d.sess.initController(
		"nvme_ctrl_init",
		func() (native.Ctrl, bool) { return d.sess.lib.CtrlInit(d.sess.handle, devi) },
		staticContext("failed to init nvme controller"),
		"",
	)
}

// All returns an iterator over the remaining controllers. Iteration stops at
// the end of the walk or after a walk failure, which is yielded.
func (d *ControllerDiscovery) All() iter.Seq2[*Controller, error] {
	return func(yield func(*Controller, error) bool) {
		for {
			c, err := d.Next()
			if errors.Is(err, ErrDiscoveryDone) {
				return
			}
			if !yield(c, err) {
				return
			}
			if d.state != walkActive || errors.Is(err, ErrClosed) {
				return
			}
		}
	}
}

// Close releases the native iterator. It is safe to call more than once.
func (d *ControllerDiscovery) Close() error {
	d.node.close()
	return nil
}
