package proto

import (
	"github.com/sh01/liasis/internal/bencode"
)

// Command is a decoded, well-formed-at-the-bencode-layer client message:
// a bencode list whose head is a byte-string tag.
type Command struct {
	Tag  Tag
	Args []bencode.Value

	// Raw is the decoded list verbatim, used to build the echoed
	// original-list body required by ARGERROR/RCREJ/UNKNOWNCMD/
	// COMMANDOK/COMMANDNOOP/COMMANDFAIL responses.
	Raw bencode.Value
}

// ShapeError is returned by ParseCommand when the payload decodes as
// valid bencode but not into a usable message list (not a list, empty, or
// a non-string head). This collapses into the same BENCERROR response as
// an outright bencode decode failure, carrying the raw bytes.
type ShapeError struct {
	Raw []byte
}

func (e *ShapeError) Error() string { return "proto: decoded value is not a valid command list" }

// ParseCommand decodes a frame payload into a Command. Two distinct
// failure shapes are returned:
//
//   - a *bencode.DecodeError when the bytes are not valid bencode at all
//   - a *ShapeError when they decode fine but aren't list/string-headed
//
// Both map to BENCERROR at the connection layer; ParseCommand does not
// decide the response itself so that layer can also choose to log the
// two cases differently.
func ParseCommand(payload []byte) (Command, error) {
	v, err := bencode.Decode(payload)
	if err != nil {
		return Command{}, err
	}
	if !v.IsList() || len(v.List) == 0 || !v.List[0].IsString() {
		return Command{}, &ShapeError{Raw: payload}
	}
	return Command{
		Tag:  Tag(v.List[0].Str),
		Args: v.List[1:],
		Raw:  v,
	}, nil
}

// EncodeList is a convenience wrapper building a bencode list of values
// and returning its wire encoding, used for every outbound message.
func EncodeList(values ...bencode.Value) []byte {
	return bencode.Encode(bencode.List(values...))
}
