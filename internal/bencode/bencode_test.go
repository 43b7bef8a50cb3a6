package bencode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeInteger(t *testing.T) {
	v, err := Decode([]byte("i52e"))
	require.NoError(t, err)
	require.Equal(t, int64(52), v.Int)

	v, err = Decode([]byte("i-52e"))
	require.NoError(t, err)
	require.Equal(t, int64(-52), v.Int)

	v, err = Decode([]byte("i0e"))
	require.NoError(t, err)
	require.Equal(t, int64(0), v.Int)
}

func TestDecodeIntegerRejectsMalformed(t *testing.T) {
	cases := []string{"i01e", "i-0e", "ie", "i-e", "i5"}
	for _, c := range cases {
		_, err := Decode([]byte(c))
		require.Error(t, err, "expected error decoding %q", c)
	}
}

func TestDecodeString(t *testing.T) {
	v, err := Decode([]byte("5:hello"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(v.Str))

	v, err = Decode([]byte("0:"))
	require.NoError(t, err)
	require.Equal(t, "", string(v.Str))
}

func TestDecodeStringRejectsLeadingZero(t *testing.T) {
	_, err := Decode([]byte("05:hello"))
	require.Error(t, err)
}

func TestDecodeListAndDict(t *testing.T) {
	v, err := Decode([]byte("l5:helloi52ee"))
	require.NoError(t, err)
	require.True(t, v.IsList())
	require.Len(t, v.List, 2)

	v, err = Decode([]byte("d3:bar4:spam3:fooi42ee"))
	require.NoError(t, err)
	require.Equal(t, KindDict, v.Kind)
	require.Equal(t, "spam", string(v.Dict["bar"].Str))
	require.Equal(t, int64(42), v.Dict["foo"].Int)
}

func TestDecodeDictRejectsOutOfOrderKeys(t *testing.T) {
	_, err := Decode([]byte("d3:foo3:bar3:baz3:quxe"))
	require.Error(t, err)
}

func TestDecodeDictRejectsDuplicateKeys(t *testing.T) {
	_, err := Decode([]byte("d3:fooi1e3:fooi2ee"))
	require.Error(t, err)
}

func TestEncodeCanonicalDictOrder(t *testing.T) {
	v := Dict(map[string]Value{
		"zebra": Int64(1),
		"apple": Int64(2),
	})
	require.Equal(t, "d5:applei2e5:zebrai1ee", string(Encode(v)))
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"i0e",
		"i-42e",
		"5:hello",
		"l5:helloi52ee",
		"d3:bar4:spam3:fooi42ee",
		"le",
		"de",
	}
	for _, in := range inputs {
		v, err := Decode([]byte(in))
		require.NoError(t, err, in)
		out := Encode(v)
		v2, err := Decode(out)
		require.NoError(t, err)
		require.True(t, Equal(v, v2), "round trip mismatch for %q", in)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode([]byte("i1ei2e"))
	require.Error(t, err)
}

func TestDecodeErrorOffset(t *testing.T) {
	_, err := Decode([]byte("l5:helloX"))
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	require.Equal(t, 8, de.Offset) // the 'X' after "l5:hello"
}
