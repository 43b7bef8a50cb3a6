package domain

import (
	"fmt"
	"math/rand"
	"sync"

	log "github.com/cihub/seelog"
	"github.com/pkg/errors"

	"github.com/sh01/liasis/internal/bencode"
	"github.com/sh01/liasis/internal/protoerr"
)

const (
	defaultDownCycleMs = 1000
	defaultUpCycleMs   = 1000
	maxRingLen         = 64
)

type bth struct {
	infoHash    []byte
	name        string
	active      bool
	length      int64
	pieceLength int64

	downRing []int64
	upRing   []int64

	lastFingerprint []byte
}

func (b *bth) appendSample(ring *[]int64, v int64) {
	*ring = append(*ring, v)
	if len(*ring) > maxRingLen {
		*ring = (*ring)[len(*ring)-maxRingLen:]
	}
}

func (b *bth) dump() bthDump {
	return bthDump{
		InfoHash:    b.infoHash,
		Name:        b.name,
		Active:      b.active,
		Length:      b.length,
		PieceLength: b.pieceLength,
	}
}

type client struct {
	torrents map[string]*bth // keyed by raw info-hash bytes as a string
	order    []string        // insertion order, for stable CLIENTTORRENTS output
}

func newClient() *client {
	return &client{torrents: make(map[string]*bth)}
}

// MemoryDomain is the in-memory reference Domain used by the daemon by
// default and exercised directly by package tests. It simulates BTClients
// and BTHs without speaking the real peer wire protocol, per the core's
// scope: the peer protocol, tracker announce/scrape and on-disk storage
// stay external collaborators, here represented by stubs.
type MemoryDomain struct {
	mu      sync.Mutex
	clients []*client

	signals chan Signal

	rng     *rand.Rand
	history HistoryStore
	peers   PeerSource
}

// NewMemoryDomain constructs a domain with n pre-configured, empty
// clients. history may be nil, in which case throughput rings do not
// survive a Reconfigure/restart. peers may be nil, in which case
// ForceReannounce only logs and does not kick a DHT peer request.
func NewMemoryDomain(n int, history HistoryStore, peers PeerSource) *MemoryDomain {
	if peers == nil {
		peers = NoopPeerSource{}
	}
	d := &MemoryDomain{
		clients: make([]*client, n),
		signals: make(chan Signal, 64),
		rng:     rand.New(rand.NewSource(1)),
		history: history,
		peers:   peers,
	}
	for i := range d.clients {
		d.clients[i] = newClient()
	}
	return d
}

func (d *MemoryDomain) Signals() <-chan Signal { return d.signals }

func (d *MemoryDomain) emit(s Signal) {
	select {
	case d.signals <- s:
	default:
		log.Warnf("domain: signal channel full, dropping %v", s.Kind)
	}
}

func (d *MemoryDomain) ClientCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.clients)
}

func (d *MemoryDomain) ClientExists(idx int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return idx >= 0 && idx < len(d.clients)
}

func (d *MemoryDomain) ClientData(idx int) (bencode.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return bencode.Value{}, err
	}
	active := 0
	for _, t := range c.torrents {
		if t.active {
			active++
		}
	}
	val, err := encodeClientDump(clientDump{Index: idx, TorrentCount: len(c.torrents), ActiveCount: active})
	if err != nil {
		return bencode.Value{}, errors.Wrap(err, "encoding client dump")
	}
	return val, nil
}

func (d *MemoryDomain) ClientTorrents(idx int) ([][]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, []byte(k))
	}
	return out, nil
}

func (d *MemoryDomain) BTHExists(idx int, infoHash []byte) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return false
	}
	_, ok := c.torrents[string(infoHash)]
	return ok
}

func (d *MemoryDomain) BTHActive(idx int, infoHash []byte) (bool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return false, false
	}
	t, ok := c.torrents[string(infoHash)]
	if !ok {
		return false, false
	}
	return t.active, true
}

func (d *MemoryDomain) BTHData(idx int, infoHash []byte) (bencode.Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return bencode.Value{}, err
	}
	t, ok := c.torrents[string(infoHash)]
	if !ok {
		return bencode.Value{}, errors.Wrap(protoerr.ErrNotFound, "no such bth")
	}
	dump := t.dump()
	val, fp, err := encodeBTHDump(dump)
	if err != nil {
		return bencode.Value{}, errors.Wrap(err, "encoding bth dump")
	}
	if !bytesEqual(fp, t.lastFingerprint) {
		log.Infof("domain: bth %x dump changed", t.infoHash)
		t.lastFingerprint = fp
	}
	return val, nil
}

func (d *MemoryDomain) BTHThroughput(idx int, infoHash []byte, maxHistory int) (int64, []int64, int64, []int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return 0, nil, 0, nil, err
	}
	t, ok := c.torrents[string(infoHash)]
	if !ok {
		return 0, nil, 0, nil, errors.Wrap(protoerr.ErrNotFound, "no such bth")
	}
	return defaultDownCycleMs, truncateTail(t.downRing, maxHistory), defaultUpCycleMs, truncateTail(t.upRing, maxHistory), nil
}

func truncateTail(ring []int64, maxHistory int) []int64 {
	if maxHistory < 0 || maxHistory >= len(ring) {
		out := make([]int64, len(ring))
		copy(out, ring)
		return out
	}
	out := make([]int64, maxHistory)
	copy(out, ring[len(ring)-maxHistory:])
	return out
}

func (d *MemoryDomain) BuildBTHFromMetainfo(idx int, raw []byte, initialActive bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return false, err
	}
	mi, perr := parseMetainfo(raw)
	if perr != nil {
		return false, errors.Wrap(perr, "malformed metainfo")
	}
	key := string(mi.infoHash)
	if existing, ok := c.torrents[key]; ok {
		if existing.active == initialActive {
			return false, nil
		}
		return false, errors.Wrapf(protoerr.ErrBadState, "bth %x already exists with active=%v", mi.infoHash, existing.active)
	}
	nb := &bth{
		infoHash:    mi.infoHash,
		name:        mi.name,
		active:      initialActive,
		length:      mi.length,
		pieceLength: mi.pieceLength,
	}
	if d.history != nil {
		if down, up, ok := d.history.Load(idx, mi.infoHash); ok {
			nb.downRing = down
			nb.upRing = up
		}
	}
	c.torrents[key] = nb
	c.order = append(c.order, key)
	d.emit(Signal{Kind: SignalTorrentSetChanged, ClientIdx: idx})
	return true, nil
}

func (d *MemoryDomain) DropBTH(idx int, infoHash []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return err
	}
	key := string(infoHash)
	t, ok := c.torrents[key]
	if !ok {
		return errors.Wrap(protoerr.ErrNotFound, "no such bth")
	}
	if t.active {
		return errors.Wrap(protoerr.ErrBadState, "bth is active, stop it before dropping")
	}
	// Archive: a real implementation would hand the file store a
	// Cleanup-shaped hook (gvsurenderreddy-rakoshare/files.go's
	// FileStore.Cleanup) before the piece data is actually removed; the
	// in-memory domain only needs to drop its bookkeeping.
	delete(c.torrents, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	d.emit(Signal{Kind: SignalTorrentSetChanged, ClientIdx: idx})
	return nil
}

func (d *MemoryDomain) ForceReannounce(idx int) error {
	d.mu.Lock()
	c, err := d.clientAt(idx)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	hashes := make([][]byte, 0, len(c.order))
	for _, k := range c.order {
		if c.torrents[k].active {
			hashes = append(hashes, []byte(k))
		}
	}
	d.mu.Unlock()

	log.Infof("domain: forcing reannounce for client %d", idx)
	for _, h := range hashes {
		d.peers.RequestPeers(h)
	}
	return nil
}

func (d *MemoryDomain) StartBTH(idx int, infoHash []byte) (bool, error) {
	return d.setActive(idx, infoHash, true)
}

func (d *MemoryDomain) StopBTH(idx int, infoHash []byte) (bool, error) {
	return d.setActive(idx, infoHash, false)
}

func (d *MemoryDomain) setActive(idx int, infoHash []byte, want bool) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, err := d.clientAt(idx)
	if err != nil {
		return false, err
	}
	t, ok := c.torrents[string(infoHash)]
	if !ok {
		return false, errors.Wrap(protoerr.ErrNotFound, "no such bth")
	}
	if t.active == want {
		return false, nil
	}
	t.active = want
	return true, nil
}

// Tick advances every active BTH's throughput rings by one synthetic
// sample and emits a SignalThroughputTick per client that has at least
// one active BTH. Intended to be called from a daemon-owned ticker; not
// itself a goroutine.
func (d *MemoryDomain) Tick() {
	type pendingSave struct {
		idx      int
		infoHash []byte
		down, up []int64
	}
	type perClient struct {
		down []int64
		up   []int64
	}
	d.mu.Lock()
	changed := make(map[int]perClient)
	var saves []pendingSave
	for idx, c := range d.clients {
		var down, up []int64
		for _, t := range c.torrents {
			if !t.active {
				continue
			}
			dv := d.rng.Int63n(1 << 16)
			uv := d.rng.Int63n(1 << 14)
			t.appendSample(&t.downRing, dv)
			t.appendSample(&t.upRing, uv)
			down = append(down, dv)
			up = append(up, uv)
			if d.history != nil {
				// appendSample mutates downRing/upRing's backing array in
				// place once it reaches maxRingLen, so the save goroutine
				// below needs its own copy rather than racing the next
				// Tick() over the same backing array.
				downCopy := append([]int64(nil), t.downRing...)
				upCopy := append([]int64(nil), t.upRing...)
				saves = append(saves, pendingSave{idx: idx, infoHash: t.infoHash, down: downCopy, up: upCopy})
			}
		}
		if down != nil {
			changed[idx] = perClient{down: down, up: up}
		}
	}
	d.mu.Unlock()

	// Persistence runs off the caller's goroutine: Tick() is called
	// directly from the BTM's single event-loop goroutine, and a slow or
	// unreachable history backend must not stall command processing for
	// every connected client. A dropped or delayed save only degrades
	// throughput-history durability, which Reconfigure/restart already
	// tolerates losing.
	for _, s := range saves {
		s := s
		go func() {
			if err := d.history.Save(s.idx, s.infoHash, s.down, s.up); err != nil {
				log.Warnf("domain: failed to persist throughput history for %x: %s", s.infoHash, err)
			}
		}()
	}

	for idx, pc := range changed {
		d.emit(Signal{Kind: SignalThroughputTick, ClientIdx: idx, Down: pc.down, Up: pc.up})
	}
}

// Reconfigure replaces the client set with n clients, dropping any
// clients beyond the new size. Used by cmd/liasisd's SIGHUP reload path
// to drive the INVALIDCLIENTCOUNT / UNSUBSCRIBE sequence for any
// subscriptions on a client index that no longer exists.
func (d *MemoryDomain) Reconfigure(n int) {
	d.mu.Lock()
	if n < len(d.clients) {
		d.clients = d.clients[:n]
	}
	for len(d.clients) < n {
		d.clients = append(d.clients, newClient())
	}
	d.mu.Unlock()
	d.emit(Signal{Kind: SignalClientCountChanged})
}

func (d *MemoryDomain) clientAt(idx int) (*client, error) {
	if idx < 0 || idx >= len(d.clients) {
		return nil, errors.Wrap(protoerr.ErrNotFound, fmt.Sprintf("no such client %d", idx))
	}
	return d.clients[idx], nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
