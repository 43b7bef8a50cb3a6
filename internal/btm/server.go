// Package btm implements the BT manager: the control-plane server that
// owns frontend connections, the command dispatcher, the subscription and
// invalidation bus, and the RC state version vector, all driven from one
// event-loop goroutine. Grounded on
// gvsurenderreddy-rakoshare/control.go's ControlSession.Run() select loop:
// per-connection reader/writer goroutines feed one central channel, and a
// heartbeat-driven watchdog panics if the loop ever stalls.
package btm

import (
	"context"
	"net"
	"time"

	log "github.com/cihub/seelog"

	"github.com/sh01/liasis/internal/domain"
	"github.com/sh01/liasis/internal/proto"
)

// Config bundles the BTM's tunables, set from the daemon's configuration
// layer.
type Config struct {
	// LivenessInterval is how often the BTM sends a NOOP frame on every
	// connection, mirroring control.go's 60-second keepAliveChan.
	LivenessInterval time.Duration

	// TickInterval drives domain.Tick() when the domain supports it.
	TickInterval time.Duration

	// DeadlockTimeout is the heartbeat staleness threshold for the
	// watchdog goroutine, grounded on control.go's deadlockDetector.
	DeadlockTimeout time.Duration
}

// DefaultConfig returns the tunables the daemon uses absent overrides.
func DefaultConfig() Config {
	return Config{
		LivenessInterval: 60 * time.Second,
		TickInterval:     1 * time.Second,
		DeadlockTimeout:  15 * time.Second,
	}
}

// ticker is satisfied by domains that support a synthetic or real
// per-cycle advance; MemoryDomain implements it. A domain that doesn't
// simply never gets ticked.
type ticker interface {
	Tick()
}

// BTM is the BT manager: the single event-loop goroutine that owns the
// domain, the connection set, the RC state version vector, and the
// subscription bus. Every field here except the channels is only ever
// touched from the goroutine running run().
type BTM struct {
	cfg Config

	domain   domain.Domain
	snapshot *Snapshot
	rc       *rcTracker

	nextConnID uint64
	conns      map[uint64]*Connection

	events chan inboundEvent
	accept chan net.Conn

	quit chan struct{}
}

// New constructs a BTM bound to d, not yet listening.
func New(d domain.Domain, cfg Config) *BTM {
	return &BTM{
		cfg:      cfg,
		domain:   d,
		snapshot: NewSnapshot(d),
		rc:       newRCTracker(),
		conns:    make(map[uint64]*Connection),
		events:   make(chan inboundEvent, 256),
		accept:   make(chan net.Conn),
		quit:     make(chan struct{}),
	}
}

// Serve accepts connections on l and runs the event loop until ctx is
// cancelled or Stop is called. It blocks; callers normally run it in its
// own goroutine.
func (b *BTM) Serve(ctx context.Context, l net.Listener) error {
	go b.acceptLoop(ctx, l)
	return b.run(ctx)
}

func (b *BTM) acceptLoop(ctx context.Context, l net.Listener) {
	for {
		nc, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Warnf("btm: accept error: %s", err)
			return
		}
		select {
		case b.accept <- nc:
		case <-ctx.Done():
			nc.Close()
			return
		}
	}
}

// Stop requests an orderly shutdown: every connection drains then closes.
func (b *BTM) Stop() {
	close(b.quit)
}

func (b *BTM) run(ctx context.Context) error {
	heartbeat := make(chan struct{}, 1)
	quitDeadlock := make(chan struct{})
	go deadlockDetector(heartbeat, quitDeadlock, b.cfg.DeadlockTimeout)
	defer close(quitDeadlock)

	beat := func() {
		select {
		case heartbeat <- struct{}{}:
		default:
		}
	}

	liveness := time.NewTicker(b.cfg.LivenessInterval)
	defer liveness.Stop()
	tick := time.NewTicker(b.cfg.TickInterval)
	defer tick.Stop()

	log.Info("btm: event loop starting")

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return ctx.Err()

		case <-b.quit:
			b.shutdown()
			return nil

		case nc := <-b.accept:
			beat()
			b.addConnection(nc)

		case ev := <-b.events:
			beat()
			b.handleEvent(ev)

		case sig, ok := <-b.domain.Signals():
			beat()
			if ok {
				b.applySignal(sig)
			}

		case <-tick.C:
			beat()
			if t, ok := b.domain.(ticker); ok {
				t.Tick()
			}

		case <-liveness.C:
			beat()
			seq := b.rc.ServerSeq()
			for _, conn := range b.conns {
				conn.enqueue(seq, nil)
			}
		}
	}
}

func deadlockDetector(heartbeat <-chan struct{}, quit <-chan struct{}, timeout time.Duration) {
	last := time.Now()
	for {
		select {
		case <-quit:
			return
		case <-heartbeat:
			last = time.Now()
		case <-time.After(timeout):
			log.Errorf("btm: event loop stalled, no heartbeat for %s", time.Since(last))
			panic("btm: event loop deadlock detected")
		}
	}
}

func (b *BTM) addConnection(nc net.Conn) {
	id := b.nextConnID
	b.nextConnID++
	conn := newConnection(id, nc)
	b.conns[id] = conn
	go conn.reader(b.events)
	go conn.writer()
	log.Infof("btm: accepted connection %d from %s", id, nc.RemoteAddr())
}

func (b *BTM) removeConnection(conn *Connection) {
	conn.closeNow()
	delete(b.conns, conn.id)
	log.Infof("btm: connection %d closed", conn.id)
}

func (b *BTM) handleEvent(ev inboundEvent) {
	conn := ev.conn
	if ev.err != nil {
		b.removeConnection(conn)
		return
	}
	if conn.state != StateOpen {
		// Draining connections take no new inbound commands; a
		// liveness NOOP from one is still harmless to ignore here too.
		return
	}
	if ev.frame.IsNoop() {
		return // liveness NOOP, dropped silently
	}

	conn.clientEchoedSeq = ev.frame.SeqNum

	cmd, err := proto.ParseCommand(ev.frame.Payload)
	var resp []byte
	if err != nil {
		resp = proto.BencError(ev.frame.Payload)
	} else {
		resp = b.handleCommand(conn, cmd)
	}

	// The handler may have mutated the domain, which emits into a buffered
	// async channel. Drain it now so every subscriber — including this
	// connection — observes the invalidation no later than this reply,
	// preserving the ordering guarantee.
	b.drainSignals()

	conn.enqueue(b.rc.ServerSeq(), resp)
}

func (b *BTM) drainSignals() {
	for {
		select {
		case sig, ok := <-b.domain.Signals():
			if !ok {
				return
			}
			b.applySignal(sig)
		default:
			return
		}
	}
}

func (b *BTM) shutdown() {
	log.Info("btm: shutting down, draining connections")
	for _, conn := range b.conns {
		conn.drain()
		conn.closeGraceful()
	}
}
