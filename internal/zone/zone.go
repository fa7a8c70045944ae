// Package zone implements the versioned, copy-on-write zone snapshot (C7's
// storage half): a mapping from relative owner name to RRsets keyed by
// type, with reader/writer transaction semantics.
//
// Go has no equivalent of the reader()/writer() scoped-transaction zone
// this design was ported from, so the "at-most-one writer" discipline is
// emulated with copy-on-write: a writer builds the next snapshot in
// isolation and atomically swaps a pointer that readers consult. A reader
// that retains its loaded snapshot observes it in full for as long as it
// needs, even if a writer commits concurrently.
package zone

import (
	"sync/atomic"

	"github.com/miekg/dns"
)

// Snapshot is a point-in-time, read-only view of zone data. The zero value
// is not usable; construct one via Zone.Writer or Zone.Reader.
type Snapshot struct {
	nodes map[string]map[uint16][]dns.RR
}

func emptySnapshot() *Snapshot {
	return &Snapshot{nodes: make(map[string]map[uint16][]dns.RR)}
}

// Lookup returns the RRset of rrtype at the relative owner name (use "@"
// for the zone apex), and whether name exists in the zone at all —
// distinguishing "no such name" (NXDOMAIN) from "name exists, but not with
// this type" (NOERROR, empty answer).
func (s *Snapshot) Lookup(name string, rrtype uint16) (rrset []dns.RR, nodeExists bool) {
	typeMap, ok := s.nodes[name]
	if !ok {
		return nil, false
	}
	return typeMap[rrtype], true
}

// Zone is a single versioned, copy-on-write store of DNS records. Any
// number of readers may call Reader concurrently with no coordination;
// callers are expected to ensure at most one writer builds a Writer at a
// time (the updater, C7, is the sole writer by construction).
type Zone struct {
	current atomic.Pointer[Snapshot]
}

// New returns a Zone holding an empty initial snapshot.
func New() *Zone {
	z := &Zone{}
	z.current.Store(emptySnapshot())
	return z
}

// Reader returns the current snapshot. The caller should hold onto the
// returned value for the duration of its work; it will not change under
// it, even if a writer commits a new snapshot concurrently.
func (z *Zone) Reader() *Snapshot {
	return z.current.Load()
}

// Writer begins building the next snapshot. The updater always rebuilds
// the zone wholesale (clear every name, then re-add NS/SOA/A/DNSSEC
// records), so a writer transaction starts from an empty snapshot rather
// than cloning the current one.
type Writer struct {
	zone *Zone
	next *Snapshot
}

// Writer opens a new writer transaction against z.
func (z *Zone) Writer() *Writer {
	return &Writer{zone: z, next: emptySnapshot()}
}

// Add appends rr to the RRset of its own type at the relative owner name
// (use "@" for the zone apex).
func (w *Writer) Add(name string, rr dns.RR) {
	typeMap, ok := w.next.nodes[name]
	if !ok {
		typeMap = make(map[uint16][]dns.RR)
		w.next.nodes[name] = typeMap
	}
	rrtype := rr.Header().Rrtype
	typeMap[rrtype] = append(typeMap[rrtype], rr)
}

// Commit atomically publishes the writer's snapshot. Every Reader call
// after Commit observes it in full; every Reader call concurrent with or
// before it observes the prior snapshot in full. There is no partial view.
func (w *Writer) Commit() {
	w.zone.current.Store(w.next)
}
