package btm

import (
	"github.com/sh01/liasis/internal/domain"
	"github.com/sh01/liasis/internal/proto"
)

// Snapshot is the read-side façade over the domain: every GET* handler in
// dispatcher.go goes through here, so the bencode payload shapes for
// CLIENTDATA/CLIENTTORRENTS/BTHDATA/BTHTHROUGHPUT live in one place
// instead of being assembled ad hoc inside each handler. Projections are
// taken synchronously from the event-loop goroutine, so they always
// observe a quiescent domain.
type Snapshot struct {
	d domain.Domain
}

// NewSnapshot wraps d.
func NewSnapshot(d domain.Domain) *Snapshot { return &Snapshot{d: d} }

// ClientCount builds the CLIENTCOUNT(n) payload.
func (s *Snapshot) ClientCount() []byte {
	return proto.ClientCount(s.d.ClientCount())
}

// ClientData builds the CLIENTDATA(client_idx, data) payload.
func (s *Snapshot) ClientData(idx int) ([]byte, error) {
	data, err := s.d.ClientData(idx)
	if err != nil {
		return nil, err
	}
	return proto.ClientData(idx, data), nil
}

// ClientTorrents builds the CLIENTTORRENTS(client_idx, [info_hash...])
// payload.
func (s *Snapshot) ClientTorrents(idx int) ([]byte, error) {
	hashes, err := s.d.ClientTorrents(idx)
	if err != nil {
		return nil, err
	}
	return proto.ClientTorrents(idx, hashes), nil
}

// BTHData builds the BTHDATA(client_idx, info_hash, data) payload.
func (s *Snapshot) BTHData(idx int, infoHash []byte) ([]byte, error) {
	data, err := s.d.BTHData(idx, infoHash)
	if err != nil {
		return nil, err
	}
	return proto.BTHData(idx, infoHash, data), nil
}

// BTHThroughput builds the BTHTHROUGHPUT(client_idx, info_hash,
// down_cycle_ms, down_list, up_cycle_ms, up_list) payload, truncated to
// maxHistory samples per ring.
func (s *Snapshot) BTHThroughput(idx int, infoHash []byte, maxHistory int) ([]byte, error) {
	downCycle, down, upCycle, up, err := s.d.BTHThroughput(idx, infoHash, maxHistory)
	if err != nil {
		return nil, err
	}
	return proto.BTHThroughput(idx, infoHash, downCycle, down, upCycle, up), nil
}
