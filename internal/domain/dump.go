package domain

import (
	msgpack "gopkg.in/vmihailenco/msgpack.v2"

	"github.com/sh01/liasis/internal/bencode"
)

// bthDump is the authoritative in-memory shape of one BTH's data dump.
// api/view.go keeps metadata tuples in a msgpack-tagged struct
// (advpo.MetadataTuple) before any wire encoding happens; liasis does the
// same here. encodeBTHDump below is the only place that turns one into the
// wire dictionary, and it does so by actually round-tripping through
// msgpack first, so the tagged struct is on the path from domain state to
// bencode bytes rather than a parallel fingerprint only.
type bthDump struct {
	InfoHash    []byte `msgpack:"info_hash"`
	Name        string `msgpack:"name"`
	Active      bool   `msgpack:"active"`
	Length      int64  `msgpack:"length"`
	PieceLength int64  `msgpack:"piece_length"`
}

// marshalDump serialises d to msgpack bytes. encodeBTHDump uses the result
// both as the wire dictionary's source (via an Unmarshal back into a fresh
// bthDump) and as a byte-comparable fingerprint the in-memory domain uses
// to tell whether a BTHDATA-relevant change actually happened, the same
// cheap equality check view.go's metastore relies on instead of a deep
// struct compare.
func marshalDump(d bthDump) ([]byte, error) {
	return msgpack.Marshal(&d)
}

// encodeBTHDump marshals d to msgpack, unmarshals the result back into a
// fresh bthDump, and flattens that round-tripped value into the opaque
// bencode dictionary BTHDATA carries on the wire. It also returns the
// msgpack bytes so callers can use them as a change fingerprint without a
// second marshal.
func encodeBTHDump(d bthDump) (bencode.Value, []byte, error) {
	raw, err := marshalDump(d)
	if err != nil {
		return bencode.Value{}, nil, err
	}
	var round bthDump
	if err := msgpack.Unmarshal(raw, &round); err != nil {
		return bencode.Value{}, nil, err
	}
	return bencodeDump(round), raw, nil
}

// bencodeDump flattens a bthDump into the opaque bencode dictionary the
// wire protocol actually carries.
func bencodeDump(d bthDump) bencode.Value {
	return bencode.Dict(map[string]bencode.Value{
		"info_hash":    bencode.String(d.InfoHash),
		"name":         bencode.StringFrom(d.Name),
		"active":       bencode.Int64(boolToInt(d.Active)),
		"length":       bencode.Int64(d.Length),
		"piece_length": bencode.Int64(d.PieceLength),
	})
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// clientDump is CLIENTDATA's opaque payload shape: a small summary of the
// client, not the full torrent set (that's CLIENTTORRENTS's job).
type clientDump struct {
	Index        int `msgpack:"index"`
	TorrentCount int `msgpack:"torrent_count"`
	ActiveCount  int `msgpack:"active_count"`
}

// encodeClientDump round-trips d through msgpack the same way
// encodeBTHDump does, before flattening it into CLIENTDATA's bencode
// dictionary.
func encodeClientDump(d clientDump) (bencode.Value, error) {
	raw, err := msgpack.Marshal(&d)
	if err != nil {
		return bencode.Value{}, err
	}
	var round clientDump
	if err := msgpack.Unmarshal(raw, &round); err != nil {
		return bencode.Value{}, err
	}
	return bencodeClientDump(round), nil
}

func bencodeClientDump(d clientDump) bencode.Value {
	return bencode.Dict(map[string]bencode.Value{
		"index":         bencode.Int64(int64(d.Index)),
		"torrent_count": bencode.Int64(int64(d.TorrentCount)),
		"active_count":  bencode.Int64(int64(d.ActiveCount)),
	})
}
