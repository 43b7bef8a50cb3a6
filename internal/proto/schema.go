package proto

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sh01/liasis/internal/bencode"
	"github.com/sh01/liasis/internal/protoerr"
)

// ArgKind names the wire-level argument types: i (integer), s (byte
// string), b (integer constrained to {0,1}).
type ArgKind int

const (
	ArgInt ArgKind = iota
	ArgStr
	ArgBool
)

var argSchemas = map[Tag][]ArgKind{
	TagBuildBTHFromMetainfo:     {ArgInt, ArgStr, ArgBool},
	TagDropBTH:                  {ArgInt, ArgStr},
	TagForceBTCReannounce:       {ArgInt},
	TagGetBTHData:               {ArgInt, ArgStr},
	TagGetBTHThroughput:         {ArgInt, ArgStr, ArgInt},
	TagGetClientCount:           {},
	TagGetClientData:            {ArgInt},
	TagGetClientTorrents:        {ArgInt},
	TagStartBTH:                 {ArgInt, ArgStr},
	TagStopBTH:                  {ArgInt, ArgStr},
	TagSubscribeBTHThroughput:   {ArgInt},
	TagUnsubscribeBTHThroughput: {ArgInt},
}

// ValidateArgs checks a command's decoded arguments against its declared
// wire schema. A non-nil error always wraps protoerr.ErrBadArity (except
// for the table-drift case of a dispatchable tag with no registered
// schema, which is an internal bug rather than a client mistake); the
// message is suitable to use as the ARGERROR human-readable diagnostic.
func ValidateArgs(tag Tag, args []bencode.Value) error {
	schema, ok := argSchemas[tag]
	if !ok {
		return fmt.Errorf("no argument schema registered for %s", tag)
	}
	if len(args) != len(schema) {
		return errors.Wrapf(protoerr.ErrBadArity, "%s expects %d argument(s), got %d", tag, len(schema), len(args))
	}
	for i, kind := range schema {
		a := args[i]
		switch kind {
		case ArgInt, ArgBool:
			if a.Kind != bencode.KindInt {
				return errors.Wrapf(protoerr.ErrBadArity, "%s argument %d must be an integer", tag, i)
			}
			if kind == ArgBool && a.Int != 0 && a.Int != 1 {
				return errors.Wrapf(protoerr.ErrBadArity, "%s argument %d must be 0 or 1", tag, i)
			}
		case ArgStr:
			if a.Kind != bencode.KindString {
				return errors.Wrapf(protoerr.ErrBadArity, "%s argument %d must be a byte string", tag, i)
			}
		}
	}
	return nil
}
