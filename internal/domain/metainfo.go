package domain

import (
	"crypto/sha1"
	"fmt"

	"github.com/sh01/liasis/internal/bencode"
)

// metainfo mirrors the shape gvsurenderreddy-rakoshare's MetaInfo/InfoDict
// carried (piece length, pieces, name, single/multi-file length), adapted
// to decode through our own bencode codec instead of struct-tag
// unmarshalling.
type metainfo struct {
	infoHash    []byte
	info        bencode.Value
	name        string
	pieceLength int64
	length      int64
}

// parseMetainfo decodes a bencoded .torrent metainfo dict and derives its
// 20-byte SHA-1 info-hash, the same derivation rakoshare's control session
// performs before announcing a torrent.
func parseMetainfo(raw []byte) (*metainfo, error) {
	v, err := bencode.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("metainfo: %w", err)
	}
	if v.Kind != bencode.KindDict {
		return nil, fmt.Errorf("metainfo: top level value is not a dictionary")
	}
	info, ok := v.Dict["info"]
	if !ok || info.Kind != bencode.KindDict {
		return nil, fmt.Errorf("metainfo: missing or malformed info dictionary")
	}
	pieceLen, ok := info.Dict["piece length"]
	if !ok || pieceLen.Kind != bencode.KindInt {
		return nil, fmt.Errorf("metainfo: info dict missing piece length")
	}
	if _, ok := info.Dict["pieces"]; !ok {
		return nil, fmt.Errorf("metainfo: info dict missing pieces")
	}
	name := ""
	if n, ok := info.Dict["name"]; ok && n.Kind == bencode.KindString {
		name = string(n.Str)
	}

	// Single-file layout carries "length" directly; a multi-file layout
	// would sum each entry's "length" under "files", but that shape stays
	// out of scope here since BTHDATA only ever reports the aggregate.
	var length int64
	if l, ok := info.Dict["length"]; ok && l.Kind == bencode.KindInt {
		length = l.Int
	}

	// The canonical re-encoding of the info dict is what we hash: our
	// decoder already requires ascending dictionary keys, so this
	// reproduces the standard BitTorrent info-hash for any
	// spec-conformant .torrent file.
	sum := sha1.Sum(bencode.Encode(info))

	return &metainfo{
		infoHash:    sum[:],
		info:        info,
		name:        name,
		pieceLength: pieceLen.Int,
		length:      length,
	}, nil
}
