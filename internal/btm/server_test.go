package btm

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sh01/liasis/internal/bencode"
	"github.com/sh01/liasis/internal/domain"
	"github.com/sh01/liasis/internal/proto"
	"github.com/sh01/liasis/internal/wireframe"
)

// testClient wraps one TCP connection to a running BTM with the raw frame
// codec, for scenario-style exercises against a live listener.
type testClient struct {
	t    *testing.T
	conn net.Conn
	fr   *wireframe.Reader
	fw   *wireframe.Writer
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	return &testClient{t: t, conn: nc, fr: wireframe.NewReader(nc), fw: wireframe.NewWriter(nc)}
}

func (c *testClient) send(seq uint32, tag proto.Tag, args ...bencode.Value) {
	values := append([]bencode.Value{bencode.StringFrom(string(tag))}, args...)
	require.NoError(c.t, c.fw.WriteFrame(seq, bencode.Encode(bencode.List(values...))))
}

func (c *testClient) sendRaw(seq uint32, payload []byte) {
	require.NoError(c.t, c.fw.WriteFrame(seq, payload))
}

func (c *testClient) sendNoop(seq uint32) {
	require.NoError(c.t, c.fw.WriteFrame(seq, nil))
}

func (c *testClient) recv() wireframe.Frame {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	f, err := c.fr.ReadFrame()
	require.NoError(c.t, err)
	return f
}

func (c *testClient) recvCommand() proto.Command {
	c.t.Helper()
	f := c.recv()
	cmd, err := proto.ParseCommand(f.Payload)
	require.NoError(c.t, err)
	return cmd
}

func startTestServer(t *testing.T, d domain.Domain) (string, func()) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.LivenessInterval = time.Hour
	cfg.TickInterval = time.Hour
	cfg.DeadlockTimeout = time.Minute

	b := New(d, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Serve(ctx, l)
		close(done)
	}()

	return l.Addr().String(), func() {
		cancel()
		l.Close()
		<-done
	}
}

func TestNoopProducesNoResponse(t *testing.T) {
	d := domain.NewMemoryDomain(2, nil, nil)
	addr, stop := startTestServer(t, d)
	defer stop()

	c := dialTestClient(t, addr)
	c.sendNoop(0)

	// A subsequent real command should be the very next frame read if the
	// NOOP produced nothing.
	c.send(0, proto.TagGetClientCount)
	cmd := c.recvCommand()
	require.Equal(t, proto.TagClientCount, cmd.Tag)
}

func TestGetClientCountFreshConnection(t *testing.T) {
	d := domain.NewMemoryDomain(3, nil, nil)
	addr, stop := startTestServer(t, d)
	defer stop()

	c := dialTestClient(t, addr)
	c.send(0, proto.TagGetClientCount)
	f := c.recv()
	cmd, err := proto.ParseCommand(f.Payload)
	require.NoError(t, err)
	require.Equal(t, proto.TagClientCount, cmd.Tag)
	require.Equal(t, int64(3), cmd.Args[0].Int)
}

func TestUnknownCommand(t *testing.T) {
	d := domain.NewMemoryDomain(1, nil, nil)
	addr, stop := startTestServer(t, d)
	defer stop()

	c := dialTestClient(t, addr)
	c.sendRaw(0, bencode.Encode(bencode.List(bencode.StringFrom("BOGUSCMD"))))
	cmd := c.recvCommand()
	require.Equal(t, proto.TagUnknownCmd, cmd.Tag)
	require.Equal(t, "BOGUSCMD", string(cmd.Args[0].Str))
}

func TestArgError(t *testing.T) {
	d := domain.NewMemoryDomain(1, nil, nil)
	addr, stop := startTestServer(t, d)
	defer stop()

	c := dialTestClient(t, addr)
	// STARTBTH requires (i, s); send only the client index.
	c.send(0, proto.TagStartBTH, bencode.Int64(0))
	cmd := c.recvCommand()
	require.Equal(t, proto.TagArgError, cmd.Tag)
}

func TestStaleSeqRejection(t *testing.T) {
	d := domain.NewMemoryDomain(1, nil, nil)
	addr, stop := startTestServer(t, d)
	defer stop()

	observer := dialTestClient(t, addr)
	observer.send(0, proto.TagGetClientCount)
	f0 := observer.recv()
	s0 := f0.SeqNum

	mutator := dialTestClient(t, addr)
	mutator.send(0, proto.TagBuildBTHFromMetainfo, bencode.Int64(0), bencode.String(sampleMetainfo(t)), bencode.Int64(0))
	mutReply := mutator.recvCommand()
	require.Equal(t, proto.TagCommandOK, mutReply.Tag)

	// The observer sees the broadcast invalidation before doing anything
	// else; drain it to get to the RCREJ'd reply it cares about.
	inval := observer.recv()
	require.Greater(t, inval.SeqNum, s0)

	observer.send(s0, proto.TagGetClientData, bencode.Int64(0))
	reply := observer.recvCommand()
	require.Equal(t, proto.TagRCReject, reply.Tag)
}

func TestSubscribeTickUnsubscribe(t *testing.T) {
	d := domain.NewMemoryDomain(1, nil, nil)
	addr, stop := startTestServer(t, d)
	defer stop()

	c := dialTestClient(t, addr)

	mi := sampleMetainfo(t)
	built, err := d.BuildBTHFromMetainfo(0, mi, true)
	require.NoError(t, err)
	require.True(t, built)
	// Drain the torrent-set-changed broadcast this produced before moving
	// on to the subscription exchange below.
	inval0 := c.recvCommand()
	require.Equal(t, proto.TagInvalidClientTorrents, inval0.Tag)

	c.send(0, proto.TagSubscribeBTHThroughput, bencode.Int64(0))
	ok := c.recvCommand()
	require.Equal(t, proto.TagCommandOK, ok.Tag)

	d.Tick()
	slice := c.recvCommand()
	require.Equal(t, proto.TagBTHThroughputSlice, slice.Tag)

	d.Reconfigure(0)
	inval := c.recvCommand()
	require.Equal(t, proto.TagInvalidClientCount, inval.Tag)
	unsub := c.recvCommand()
	require.Equal(t, proto.TagUnsubscribe, unsub.Tag)
	require.Equal(t, int64(0), unsub.Args[0].Int)
}

func sampleMetainfo(t *testing.T) []byte {
	t.Helper()
	info := bencode.Dict(map[string]bencode.Value{
		"name":         bencode.StringFrom("sample"),
		"piece length": bencode.Int64(16384),
		"pieces":       bencode.String(make([]byte, 20)),
		"length":       bencode.Int64(16384),
	})
	return bencode.Encode(bencode.Dict(map[string]bencode.Value{"info": info}))
}
