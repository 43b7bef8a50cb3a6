package bencode

import (
	"strconv"
)

// Encode produces the canonical bencode serialisation of v: dictionary
// keys sorted ascending, integers without leading zeros, byte strings
// length-prefixed verbatim. Encode(Decode(x)) reproduces x for any
// well-formed x, and Decode(Encode(v)) reproduces v for any v built by
// this package.
func Encode(v Value) []byte {
	buf := make([]byte, 0, 64)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindInt:
		buf = append(buf, 'i')
		buf = strconv.AppendInt(buf, v.Int, 10)
		buf = append(buf, 'e')
		return buf
	case KindString:
		buf = strconv.AppendInt(buf, int64(len(v.Str)), 10)
		buf = append(buf, ':')
		buf = append(buf, v.Str...)
		return buf
	case KindList:
		buf = append(buf, 'l')
		for _, item := range v.List {
			buf = appendValue(buf, item)
		}
		buf = append(buf, 'e')
		return buf
	case KindDict:
		buf = append(buf, 'd')
		for _, k := range sortedKeys(v.Dict) {
			buf = appendValue(buf, StringFrom(k))
			buf = appendValue(buf, v.Dict[k])
		}
		buf = append(buf, 'e')
		return buf
	default:
		return buf
	}
}
