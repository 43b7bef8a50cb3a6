package domain

import (
	log "github.com/cihub/seelog"
	"github.com/nictuku/dht"
)

// PeerSource abstracts the peer-discovery side channel FORCEBTCREANNOUNCE
// also kicks. The real BT peer wire protocol stays out of scope for the
// core; this only exercises the discovery request/response shape,
// grounded on gvsurenderreddy-rakoshare/control.go's
// cs.dht.PeersRequest(cs.ID.PublicID(), true) call.
type PeerSource interface {
	RequestPeers(infoHash []byte)
}

// DHTPeerSource wraps a running nictuku/dht node, the same dependency
// gvsurenderreddy-rakoshare/control.go wires into its ControlSession.
type DHTPeerSource struct {
	node *dht.DHT
}

// NewDHTPeerSource starts a DHT node listening on port and returns a
// PeerSource backed by it. It starts node.Run() in its own goroutine
// before returning, mirroring "go cs.dht.Run()" in
// gvsurenderreddy-rakoshare/control.go's NewControlSession.
func NewDHTPeerSource(port int) (*DHTPeerSource, error) {
	cfg := dht.NewConfig()
	cfg.Port = port
	node, err := dht.New(cfg)
	if err != nil {
		return nil, err
	}
	go node.Run()
	return &DHTPeerSource{node: node}, nil
}

// RequestPeers asks the DHT for peers of infoHash, logging but not
// blocking on the result: FORCEBTCREANNOUNCE only needs to have kicked
// the request, the real peer connection setup is out of the core's scope.
func (s *DHTPeerSource) RequestPeers(infoHash []byte) {
	idStr := dht.InfoHash(infoHash).String()
	log.Infof("domain: requesting dht peers for %s", idStr)
	s.node.PeersRequest(string(infoHash), true)
}

// Stop tears down the underlying DHT node.
func (s *DHTPeerSource) Stop() {
	s.node.Stop()
}

// NoopPeerSource is used when no DHT node is configured; it satisfies
// PeerSource without doing anything, which is the default for
// FORCEBTCREANNOUNCE when the daemon wasn't started with DHT enabled.
type NoopPeerSource struct{}

func (NoopPeerSource) RequestPeers(infoHash []byte) {}
