// Package domain defines the server-visible BT entities the control
// plane reads and steers and ships an in-memory reference
// implementation. The real BitTorrent peer wire protocol, tracker
// announce/scrape and on-disk piece storage are explicitly out of scope
// for the core; this package only needs to behave correctly as the thing
// the dispatcher, bus and snapshot view observe through the Domain
// interface below.
package domain

import "github.com/sh01/liasis/internal/bencode"

// SignalKind discriminates the unsolicited state-change signals the BTM
// event loop reacts to.
type SignalKind int

const (
	SignalClientCountChanged SignalKind = iota
	SignalTorrentSetChanged
	SignalThroughputTick
	SignalSubscriptionRevoked
)

// Signal is one domain-originated event. Not every field is populated for
// every Kind: ClientIdx is unused for SignalClientCountChanged, and
// Down/Up are only set for SignalThroughputTick.
type Signal struct {
	Kind      SignalKind
	ClientIdx int

	// Populated for SignalThroughputTick.
	Down []int64
	Up   []int64
}

// Domain is the read/command façade the control plane is built against.
// BTClient/BTH instances are opaque on the other side of this interface;
// the dispatcher and snapshot view never reach into domain-internal
// state directly; the BT subsystem itself stays an external collaborator.
type Domain interface {
	// ClientCount returns the number of configured BTClients.
	ClientCount() int

	// ClientExists reports whether idx names a live client.
	ClientExists(idx int) bool

	// ClientData returns the opaque CLIENTDATA payload for client idx.
	ClientData(idx int) (bencode.Value, error)

	// ClientTorrents returns the info-hashes of every BTH under client
	// idx, in the order CLIENTTORRENTS will report them.
	ClientTorrents(idx int) ([][]byte, error)

	// BTHExists reports whether infoHash names a live BTH under client
	// idx.
	BTHExists(idx int, infoHash []byte) bool

	// BTHActive reports whether the named BTH is active. ok is false if
	// it does not exist.
	BTHActive(idx int, infoHash []byte) (active bool, ok bool)

	// BTHData returns the opaque BTHDATA payload for one BTH.
	BTHData(idx int, infoHash []byte) (bencode.Value, error)

	// BTHThroughput returns up to maxHistory of the most recent
	// throughput samples for one BTH, newest last, plus each ring's
	// slice-cycle length in milliseconds.
	BTHThroughput(idx int, infoHash []byte, maxHistory int) (downCycleMs int64, down []int64, upCycleMs int64, up []int64, err error)

	// BuildBTHFromMetainfo parses metainfo and adds the resulting BTH to
	// client idx. changed is false iff a BTH with the same info-hash
	// already existed with the requested active state (COMMANDNOOP).
	BuildBTHFromMetainfo(idx int, metainfo []byte, initialActive bool) (changed bool, err error)

	// DropBTH archives then removes the named BTH. It fails, leaving the
	// BTH in place, if the BTH does not exist or is still active; the
	// dispatcher relies on this rather than checking the active flag
	// itself.
	DropBTH(idx int, infoHash []byte) error

	// ForceReannounce orders every active BTH under client idx to
	// announce immediately.
	ForceReannounce(idx int) error

	// StartBTH/StopBTH toggle the active flag. changed is false iff the
	// BTH was already in the requested state (COMMANDNOOP).
	StartBTH(idx int, infoHash []byte) (changed bool, err error)
	StopBTH(idx int, infoHash []byte) (changed bool, err error)

	// Signals delivers domain-originated state-change events for the
	// BTM event loop to translate into S2C notifications.
	Signals() <-chan Signal
}
