package btm

import (
	"net"
	"sync"

	log "github.com/cihub/seelog"

	"github.com/sh01/liasis/internal/wireframe"
)

// ConnState is a connection's position in the Open -> Draining -> Closed
// state machine.
type ConnState int

const (
	StateOpen ConnState = iota
	StateDraining
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// outboxCap bounds a connection's outbound queue: a connection whose
// writer can't keep up is torn down rather than let grow without bound.
const outboxCap = 256

// inboundEvent is what a connection's reader goroutine hands to the BTM's
// central event loop — one channel fed by every connection's reader,
// drained by a single select loop, the same shape as
// gvsurenderreddy-rakoshare/control.go's peerMessageChan.
type inboundEvent struct {
	conn  *Connection
	frame wireframe.Frame
	err   error // non-nil means the connection's read side is finished
}

// Connection is one frontend's control-protocol session. Every field
// below is only ever touched from the BTM event-loop goroutine; the
// reader/writer goroutines only ever exchange frames through channels.
type Connection struct {
	id   uint64
	conn net.Conn

	state           ConnState
	clientEchoedSeq uint32
	subs            map[int]bool // client_idx -> has a live throughput subscription

	outbox chan wireframe.Frame

	closeOnce sync.Once
	done      chan struct{}
}

func newConnection(id uint64, nc net.Conn) *Connection {
	return &Connection{
		id:     id,
		conn:   nc,
		state:  StateOpen,
		subs:   make(map[int]bool),
		outbox: make(chan wireframe.Frame, outboxCap),
		done:   make(chan struct{}),
	}
}

// reader pumps frames off the wire into events until the connection
// errors; the final event always carries a non-nil err.
func (c *Connection) reader(events chan<- inboundEvent) {
	fr := wireframe.NewReader(c.conn)
	for {
		f, err := fr.ReadFrame()
		if err != nil {
			events <- inboundEvent{conn: c, err: err}
			return
		}
		events <- inboundEvent{conn: c, frame: f}
	}
}

// writer drains the outbox onto the wire in enqueue order until the
// outbox is closed, then closes the transport.
func (c *Connection) writer() {
	defer c.conn.Close()
	fw := wireframe.NewWriter(c.conn)
	for f := range c.outbox {
		if err := fw.WriteFrame(f.SeqNum, f.Payload); err != nil {
			log.Debugf("btm: conn %d write error: %s", c.id, err)
			return
		}
	}
}

// enqueue queues a reply or notification for delivery, stamped with the
// server_seq current at enqueue time. A connection whose outbox is full is
// considered unresponsive and is closed rather than left to block the
// event loop.
func (c *Connection) enqueue(seqNum uint32, payload []byte) {
	if c.state == StateClosed {
		return
	}
	select {
	case c.outbox <- wireframe.Frame{SeqNum: seqNum, Payload: payload}:
	default:
		log.Warnf("btm: conn %d outbox full, closing", c.id)
		c.closeNow()
	}
}

// closeNow tears the connection down immediately, abandoning anything
// still queued: used for backpressure violations and for a reader error
// where nothing more can usefully be flushed. Closing the transport here,
// rather than leaving it to writer's deferred Close, is what actually
// abandons the backlog: a writer blocked mid-Write on a stalled peer
// unblocks with an error immediately, and every frame still sitting in
// the outbox fails fast on its own Write instead of being drained to a
// peer that isn't reading.
func (c *Connection) closeNow() {
	c.closeOnce.Do(func() {
		c.state = StateClosed
		c.conn.Close()
		close(c.outbox)
		close(c.done)
	})
}

// drain moves the connection to Draining: already-queued frames still
// flush, but the event loop stops handing it new inbound commands.
func (c *Connection) drain() {
	if c.state == StateOpen {
		c.state = StateDraining
	}
}

// closeGraceful finishes flushing whatever is still queued, then closes.
// Safe to call alongside closeNow; only the first call takes effect.
func (c *Connection) closeGraceful() {
	c.closeOnce.Do(func() {
		c.state = StateClosed
		close(c.outbox)
		close(c.done)
	})
}
