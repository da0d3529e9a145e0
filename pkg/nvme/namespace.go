package nvme

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/nvme-go/nvme-go/pkg/native"
	"github.com/nvme-go/nvme-go/pkg/trace"
)

// NamespaceLevel filters which namespaces a discovery walk yields.
type NamespaceLevel uint8

const (
	NamespaceAll NamespaceLevel = iota
	NamespaceAllocated
	NamespaceActive
	NamespaceNotIgnored
	NamespaceBlkDev
)

var namespaceLevelNames = map[NamespaceLevel]string{
	NamespaceAll:        "all",
	NamespaceAllocated:  "allocated",
	NamespaceActive:     "active",
	NamespaceNotIgnored: "not-ignored",
	NamespaceBlkDev:     "blkdev",
}

// String returns the level name.
func (l NamespaceLevel) String() string {
	if s, ok := namespaceLevelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("NamespaceLevel(%d)", uint8(l))
}

// ParseNamespaceLevel parses a level name as returned by String.
func ParseNamespaceLevel(s string) (NamespaceLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for l, name := range namespaceLevelNames {
		if name == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown namespace level %q", s)
}

func (l NamespaceLevel) native() native.NsDiscLevel {
	switch l {
	case NamespaceAllocated:
		return native.NsDiscAllocated
	case NamespaceActive:
		return native.NsDiscActive
	case NamespaceNotIgnored:
		return native.NsDiscNotIgnored
	case NamespaceBlkDev:
		return native.NsDiscBlkDev
	default:
		return native.NsDiscAll
	}
}

// NamespaceDiscovery is a single-pass walk over a controller's namespaces.
// Namespaces it yields belong to the controller and stay usable after the
// iterator is closed.
type NamespaceDiscovery struct {
	ctrl  *Controller
	iter  native.NsIter
	node  *node
	state walkState
}

// Next returns the next namespace, with the same end and failure behavior
// as ControllerDiscovery.Next.
func (d *NamespaceDiscovery) Next() (*Namespace, error) {
	if d.state != walkActive {
		return nil, walkErr(d.state)
	}
	if !d.node.alive() {
		return nil, ErrClosed
	}

	c := d.ctrl
	var (
		st   native.IterState
		disc native.NsDisc
	)
	d.node.call("nvme_ns_discover_step", func() bool {
		st, disc = c.lib.NsDiscoverStep(d.iter)
		return st != native.IterError
	})

	d.state = stepResult("namespace", st)
	switch d.state {
	case walkDone:
		return nil, ErrDiscoveryDone
	case walkFailed:
		return nil, d.node.check(false, c.errs, staticContext("failed to iterate nvme namespaces"))
	}

	return c.initNamespace(c.lib.NsDiscNsid(disc))
}

// All returns an iterator over the remaining namespaces.
func (d *NamespaceDiscovery) All() iter.Seq2[*Namespace, error] {
	return func(yield func(*Namespace, error) bool) {
		for {
			ns, err := d.Next()
			if errors.Is(err, ErrDiscoveryDone) {
				return
			}
			if !yield(ns, err) {
				return
			}
			if d.state != walkActive || errors.Is(err, ErrClosed) {
				return
			}
		}
	}
}

// Close releases the native iterator. It is safe to call more than once.
func (d *NamespaceDiscovery) Close() error {
	d.node.close()
	return nil
}

// Namespace opens the namespace with the given id directly.
func (c *Controller) Namespace(nsid uint32) (*Namespace, error) {
	if !c.node.alive() {
		return nil, ErrClosed
	}
	return c.initNamespace(nsid)
}

func (c *Controller) initNamespace(nsid uint32) (*Namespace, error) {
	var h native.Ns
	ok := c.node.call("nvme_ns_init", func() bool {
		var ok bool
		h, ok = c.lib.NsInit(c.handle, nsid)
		return ok
	})
	if err := c.node.check(ok, c.errs, staticContext("failed to init nvme namespace")); err != nil {
		return nil, err
	}

	ns := &Namespace{ctrl: c, handle: h, nsid: nsid}
	ns.node = c.node.child(trace.ResourceNamespace, fmt.Sprintf("nsid %d", nsid), "nvme_ns_fini", func() {
		c.lib.NsFini(h)
	})
	return ns, nil
}

// Namespace is one namespace of a controller. Failures are reported in the
// controller domain.
type Namespace struct {
	ctrl   *Controller
	handle native.Ns
	nsid   uint32
	node   *node
}

// ID returns the namespace id.
func (n *Namespace) ID() uint32 { return n.nsid }

// GetInfo snapshots the namespace's identify data.
func (n *Namespace) GetInfo() (*NamespaceInfo, error) {
	if !n.node.alive() {
		return nil, ErrClosed
	}

	lib := n.ctrl.lib
	var h native.NsInfo
	ok := n.node.call("nvme_ns_info_snap", func() bool {
		var ok bool
		h, ok = lib.NsInfoSnap(n.handle)
		return ok
	})
	if err := n.node.check(ok, n.ctrl.errs, staticContext("failed to get ns info snapshot")); err != nil {
		return nil, err
	}

	info := &NamespaceInfo{lib: lib, h: h, errs: namespaceInfoErrors{lib: lib, h: h}}
	info.node = n.node.child(trace.ResourceNamespaceInfo, n.node.label, "nvme_ns_info_free", func() {
		lib.NsInfoFree(h)
	})
	return info, nil
}

// BlkdevAttach attaches the namespace to the block device layer.
func (n *Namespace) BlkdevAttach() error {
	if !n.node.alive() {
		return ErrClosed
	}
	ok := n.node.call("nvme_ns_bd_attach", func() bool { return n.ctrl.lib.NsBdAttach(n.handle) })
	return n.node.check(ok, n.ctrl.errs, staticContext("failed to attach blkdev to namespace"))
}

// BlkdevDetach detaches the namespace from the block device layer.
func (n *Namespace) BlkdevDetach() error {
	if !n.node.alive() {
		return ErrClosed
	}
	ok := n.node.call("nvme_ns_bd_detach", func() bool { return n.ctrl.lib.NsBdDetach(n.handle) })
	return n.node.check(ok, n.ctrl.errs, staticContext("failed to detach blkdev from namespace"))
}

// Close finalizes the namespace. It is safe to call more than once.
func (n *Namespace) Close() error {
	n.node.close()
	return nil
}
