package btm

import (
	"github.com/sh01/liasis/internal/domain"
	"github.com/sh01/liasis/internal/proto"
)

// applySignal reacts to one domain-originated signal: it bumps the RC
// state version vector and enqueues whatever unsolicited notifications
// that bump produces, to the right subset of connections. Always runs on
// the BTM event-loop goroutine between reading the signal and moving on to
// the next event; that ordering is what keeps the bump-before-broadcast
// guarantee intact.
func (b *BTM) applySignal(sig domain.Signal) {
	switch sig.Kind {
	case domain.SignalClientCountChanged:
		seq := b.rc.Bump(proto.Facet{Kind: proto.FacetClientCount})
		b.broadcast(seq, proto.InvalidClientCount())
		b.revokeStaleSubscriptions(seq)

	case domain.SignalTorrentSetChanged:
		seq := b.rc.Bump(proto.Facet{Kind: proto.FacetBTHSet, ClientIdx: sig.ClientIdx})
		b.broadcast(seq, proto.InvalidClientTorrents(sig.ClientIdx))

	case domain.SignalThroughputTick:
		seq := b.rc.Bump()
		payload := proto.BTHThroughputSlice(sig.ClientIdx, sig.Down, sig.Up)
		for _, conn := range b.conns {
			if conn.subs[sig.ClientIdx] {
				conn.enqueue(seq, payload)
			}
		}

	case domain.SignalSubscriptionRevoked:
		seq := b.rc.Bump()
		for _, conn := range b.conns {
			if conn.subs[sig.ClientIdx] {
				delete(conn.subs, sig.ClientIdx)
				conn.enqueue(seq, proto.Unsubscribe(sig.ClientIdx))
			}
		}
	}
}

// broadcast enqueues payload, stamped with seq, on every live connection.
func (b *BTM) broadcast(seq uint32, payload []byte) {
	for _, conn := range b.conns {
		conn.enqueue(seq, payload)
	}
}

// revokeStaleSubscriptions drops, and acknowledges with exactly one
// UNSUBSCRIBE each, every subscription whose client index
// no longer exists after a client-count change.
func (b *BTM) revokeStaleSubscriptions(seq uint32) {
	for _, conn := range b.conns {
		for idx := range conn.subs {
			if !b.domain.ClientExists(idx) {
				delete(conn.subs, idx)
				conn.enqueue(seq, proto.Unsubscribe(idx))
			}
		}
	}
}
