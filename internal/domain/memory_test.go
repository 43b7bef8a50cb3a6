package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sh01/liasis/internal/bencode"
)

func sampleMetainfo(name string) []byte {
	info := bencode.Dict(map[string]bencode.Value{
		"name":         bencode.StringFrom(name),
		"piece length": bencode.Int64(16384),
		"pieces":       bencode.String(make([]byte, 20)),
		"length":       bencode.Int64(16384),
	})
	return bencode.Encode(bencode.Dict(map[string]bencode.Value{"info": info}))
}

func drainSignal(t *testing.T, d *MemoryDomain) Signal {
	t.Helper()
	select {
	case s := <-d.Signals():
		return s
	default:
		t.Fatal("expected a pending signal, found none")
		return Signal{}
	}
}

func TestBuildBTHFromMetainfoCreatesAndNoops(t *testing.T) {
	d := NewMemoryDomain(1, nil, nil)
	raw := sampleMetainfo("a")

	changed, err := d.BuildBTHFromMetainfo(0, raw, true)
	require.NoError(t, err)
	require.True(t, changed)
	sig := drainSignal(t, d)
	require.Equal(t, SignalTorrentSetChanged, sig.Kind)

	changed, err = d.BuildBTHFromMetainfo(0, raw, true)
	require.NoError(t, err)
	require.False(t, changed, "re-adding with the same active state must be a no-op")
}

func TestBuildBTHFromMetainfoConflictingStateFails(t *testing.T) {
	d := NewMemoryDomain(1, nil, nil)
	raw := sampleMetainfo("a")

	_, err := d.BuildBTHFromMetainfo(0, raw, true)
	require.NoError(t, err)

	_, err = d.BuildBTHFromMetainfo(0, raw, false)
	require.Error(t, err)
}

func TestDropBTHRequiresInactive(t *testing.T) {
	d := NewMemoryDomain(1, nil, nil)
	raw := sampleMetainfo("a")
	mi, err := parseMetainfo(raw)
	require.NoError(t, err)

	_, err = d.BuildBTHFromMetainfo(0, raw, true)
	require.NoError(t, err)
	drainSignal(t, d)

	err = d.DropBTH(0, mi.infoHash)
	require.Error(t, err, "dropping an active bth must fail")

	changed, err := d.StopBTH(0, mi.infoHash)
	require.NoError(t, err)
	require.True(t, changed)

	err = d.DropBTH(0, mi.infoHash)
	require.NoError(t, err)
	drainSignal(t, d)
	require.False(t, d.BTHExists(0, mi.infoHash))
}

func TestStartStopBTHIsIdempotent(t *testing.T) {
	d := NewMemoryDomain(1, nil, nil)
	raw := sampleMetainfo("a")
	mi, err := parseMetainfo(raw)
	require.NoError(t, err)
	_, err = d.BuildBTHFromMetainfo(0, raw, false)
	require.NoError(t, err)
	drainSignal(t, d)

	changed, err := d.StartBTH(0, mi.infoHash)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = d.StartBTH(0, mi.infoHash)
	require.NoError(t, err)
	require.False(t, changed)
}

func TestTickOnlyEmitsForClientsWithActiveTorrents(t *testing.T) {
	d := NewMemoryDomain(2, nil, nil)
	raw := sampleMetainfo("a")
	_, err := d.BuildBTHFromMetainfo(0, raw, true)
	require.NoError(t, err)
	drainSignal(t, d)

	d.Tick()
	sig := drainSignal(t, d)
	require.Equal(t, SignalThroughputTick, sig.Kind)
	require.Equal(t, 0, sig.ClientIdx)
	require.Len(t, sig.Down, 1)

	select {
	case s := <-d.Signals():
		t.Fatalf("unexpected extra signal %+v", s)
	default:
	}
}

func TestReconfigureShrinksClientSet(t *testing.T) {
	d := NewMemoryDomain(2, nil, nil)
	require.Equal(t, 2, d.ClientCount())

	d.Reconfigure(1)
	sig := drainSignal(t, d)
	require.Equal(t, SignalClientCountChanged, sig.Kind)
	require.Equal(t, 1, d.ClientCount())
	require.False(t, d.ClientExists(1))
}

func TestHistoryStoreRoundTrip(t *testing.T) {
	hist := NewMemoryHistoryStore()
	d := NewMemoryDomain(1, hist, nil)
	raw := sampleMetainfo("a")
	_, err := d.BuildBTHFromMetainfo(0, raw, true)
	require.NoError(t, err)
	drainSignal(t, d)

	d.Tick()
	drainSignal(t, d)

	mi, err := parseMetainfo(raw)
	require.NoError(t, err)
	// Tick persists from its own goroutines, so wait for the save to land.
	require.Eventually(t, func() bool {
		_, _, saved := hist.Load(0, mi.infoHash)
		return saved
	}, 2*time.Second, time.Millisecond)
	down, up, ok := hist.Load(0, mi.infoHash)
	require.True(t, ok)
	require.Len(t, down, 1)
	require.Len(t, up, 1)
}
