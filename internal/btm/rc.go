package btm

import "github.com/sh01/liasis/internal/proto"

// facetKey is the map key for one fully-parameterised facet instance.
// client-count is global, so its clientIdx/infoHash fields are always
// left at their zero value.
type facetKey struct {
	kind      proto.FacetKind
	clientIdx int
	infoHash  string
}

func keyFor(f proto.Facet) facetKey {
	k := facetKey{kind: f.Kind}
	switch f.Kind {
	case proto.FacetBTHSet:
		k.clientIdx = f.ClientIdx
	case proto.FacetBTHActive:
		k.clientIdx = f.ClientIdx
		k.infoHash = f.InfoHash
	}
	return k
}

// rcTracker is the state version vector: one monotone server_seq plus a
// last-bumped seq per state facet. It is only ever
// touched from the BTM's single event-loop goroutine, so it carries no
// lock of its own — the serial loop is the linearisation point, not
// mutual exclusion.
type rcTracker struct {
	serverSeq  uint32
	lastBumped map[facetKey]uint32
}

func newRCTracker() *rcTracker {
	return &rcTracker{lastBumped: make(map[facetKey]uint32)}
}

// ServerSeq returns the current server_seq, to be stamped on the next
// outbound frame.
func (t *rcTracker) ServerSeq() uint32 { return t.serverSeq }

// Bump advances server_seq by one and, for every facet named, records that
// new server_seq as its last_bumped_seq. Called with no facets still
// advances server_seq — used for notifications that carry no RC-relevant
// facet of their own, like a throughput tick.
func (t *rcTracker) Bump(facets ...proto.Facet) uint32 {
	t.serverSeq++
	for _, f := range facets {
		t.lastBumped[keyFor(f)] = t.serverSeq
	}
	return t.serverSeq
}

// Check reports whether a command declaring the given risk facets remains
// valid against echoedSeq: it fails iff any declared facet's last bump
// post-dates the client's echoed view.
func (t *rcTracker) Check(echoedSeq uint32, facets []proto.Facet) bool {
	for _, f := range facets {
		if t.lastBumped[keyFor(f)] > echoedSeq {
			return false
		}
	}
	return true
}

// ClientCountStale reports whether the client-count facet has advanced
// past echoedSeq, the special-cased range-violation rule for client_idx
// arguments.
func (t *rcTracker) ClientCountStale(echoedSeq uint32) bool {
	return t.lastBumped[facetKey{kind: proto.FacetClientCount}] > echoedSeq
}

// BTHSetStale is the analogous check for bth-set(clientIdx), used for
// info_hash range violations.
func (t *rcTracker) BTHSetStale(echoedSeq uint32, clientIdx int) bool {
	return t.lastBumped[facetKey{kind: proto.FacetBTHSet, clientIdx: clientIdx}] > echoedSeq
}
