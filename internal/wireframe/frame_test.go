package wireframe

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(7, []byte("hello")))

	r := NewReader(&buf)
	f, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, uint32(7), f.SeqNum)
	require.Equal(t, []byte("hello"), f.Payload)
	require.False(t, f.IsNoop())
}

func TestNoopFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(3, nil))

	r := NewReader(&buf)
	f, err := r.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, uint32(3), f.SeqNum)
	require.True(t, f.IsNoop())
}

func TestReaderNeedsMoreData(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(1, []byte("0123456789")))

	full := buf.Bytes()
	// Feed the reader a truncated stream: header is complete but the
	// payload has not all arrived yet.
	partial := bytes.NewReader(full[:len(full)-3])
	r := NewReader(partial)
	_, err := r.ReadFrame()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReaderRejectsOversizeFrame(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(1, make([]byte, 100)))

	r := NewReaderSize(&buf, 10)
	_, err := r.ReadFrame()
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestEncodeHeaderFields(t *testing.T) {
	out := Encode(0x01020304, []byte("ab"))
	require.Equal(t, byte(0), out[0])
	require.Equal(t, byte(0), out[1])
	require.Equal(t, byte(0), out[2])
	require.Equal(t, byte(2), out[3]) // data_len == 2, big-endian
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, out[4:8])
}
