package jbod

import (
	"bytes"
	"context"
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pior/jbod/internal/testutils"
	"github.com/pior/jbod/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionExecute(t *testing.T) {
	mock := testutils.NewConnectionMock(header(0, wire.StatusOK))
	conn := NewConnection(mock, ConnectionConfig{})

	resp, err := conn.Execute(context.Background(), wire.NewOpcode(wire.CmdMount, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, wire.StatusOK, resp.Status)
	assert.Equal(t, []byte{0, 0, 0, 0}, mock.Written())
	assert.False(t, conn.IsClosed())
	assert.Equal(t, "127.0.0.1:3333", conn.Addr())
}

func TestConnectionExecuteNoBlockRead(t *testing.T) {
	// Trailing bytes after a status without the block bit stay unread
	mock := testutils.NewConnectionMock(header(0, wire.StatusOK), bytes.Repeat([]byte{0x77}, wire.BlockSize))
	conn := NewConnection(mock, ConnectionConfig{})

	block := blockOf(0x11)
	_, err := conn.Execute(context.Background(), 0, block)
	require.NoError(t, err)
	assert.Equal(t, wire.BlockSize, mock.Unread())
	assert.Equal(t, blockOf(0x11), block)
}

func TestConnectionExecuteWriteBlock(t *testing.T) {
	op := wire.NewOpcode(wire.CmdWriteBlock, 0x12)
	mock := testutils.NewConnectionMock(header(op, wire.StatusOK))
	mock.ScriptWrites(testutils.Step{N: 100}, testutils.Step{N: 1}, testutils.Step{N: 60})
	conn := NewConnection(mock, ConnectionConfig{})

	_, err := conn.Execute(context.Background(), op, blockOf(0xaa))
	require.NoError(t, err)

	written := mock.Written()
	require.Len(t, written, wire.MaxPacketLen)
	assert.Equal(t, []byte{0, 0, 0x50, 0x12, 0x02}, written[:wire.HeaderLen])
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, wire.BlockSize), written[wire.HeaderLen:])
	assert.Equal(t, 4, mock.WriteCalls())
}

func TestConnectionExecuteReadBlockPartialReads(t *testing.T) {
	op := wire.NewOpcode(wire.CmdReadBlock, 0)
	want := blockOf(0x3c)
	packet := wire.AppendResponse(nil, op, wire.StatusBlock, want)

	mock := testutils.NewConnectionMock()
	mock.ScriptReads(
		testutils.Step{Data: packet[:2]},
		testutils.Step{Data: packet[2:15]},
		testutils.Step{Data: packet[15:200]},
		testutils.Step{Data: packet[200:]},
	)
	conn := NewConnection(mock, ConnectionConfig{})

	var block wire.Block
	resp, err := conn.Execute(context.Background(), op, &block)
	require.NoError(t, err)
	assert.True(t, resp.HasBlock())
	assert.Equal(t, *want, block)
	assert.Zero(t, mock.Unread())
}

func TestConnectionExecuteProtocolError(t *testing.T) {
	op := wire.NewOpcode(wire.CmdSeekToDisk, 3)
	mock := testutils.NewConnectionMock(header(op, wire.StatusFailed), header(op, wire.StatusOK))
	conn := NewConnection(mock, ConnectionConfig{})

	_, err := conn.Execute(context.Background(), op, nil)
	var pe *wire.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.False(t, conn.IsClosed(), "server failures keep the connection")

	_, err = conn.Execute(context.Background(), op, nil)
	require.NoError(t, err)
}

func TestConnectionExecuteFailedWithBlockBit(t *testing.T) {
	op := wire.NewOpcode(wire.CmdReadBlock, 0)
	mock := testutils.NewConnectionMock([]byte{0, 0, 0x40, 0, 0x03}, bytes.Repeat([]byte{0xaa}, wire.BlockSize))
	conn := NewConnection(mock, ConnectionConfig{})

	var block wire.Block
	_, err := conn.Execute(context.Background(), op, &block)

	var pe *wire.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, wire.BlockSize, mock.Unread(), "block not read")
	assert.Equal(t, wire.Block{}, block)
	assert.True(t, conn.IsClosed())
	assert.True(t, mock.IsClosed())
}

func TestConnectionExecuteTransportError(t *testing.T) {
	mock := testutils.NewConnectionMock()
	mock.ScriptReads(testutils.Step{Data: []byte{0, 0}, Err: syscall.ECONNRESET})
	conn := NewConnection(mock, ConnectionConfig{})

	_, err := conn.Execute(context.Background(), 0, nil)
	require.ErrorIs(t, err, syscall.ECONNRESET)

	var te *wire.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Done)
	assert.Equal(t, wire.HeaderLen, te.Want)
	assert.True(t, conn.IsClosed())
	assert.True(t, mock.IsClosed())

	_, err = conn.Execute(context.Background(), 0, nil)
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestConnectionExecutePeerClosed(t *testing.T) {
	mock := testutils.NewConnectionMock([]byte{0, 0, 0})
	conn := NewConnection(mock, ConnectionConfig{})

	_, err := conn.Execute(context.Background(), 0, nil)
	require.ErrorIs(t, err, wire.ErrPeerClosed)
	assert.True(t, conn.IsClosed())
}

func TestConnectionExecuteWriteError(t *testing.T) {
	mock := testutils.NewConnectionMock(header(0, wire.StatusOK))
	mock.ScriptWrites(testutils.Step{N: 1, Err: syscall.EPIPE})
	conn := NewConnection(mock, ConnectionConfig{})

	_, err := conn.Execute(context.Background(), 0, nil)
	require.ErrorIs(t, err, syscall.EPIPE)
	assert.Zero(t, mock.ReadCalls(), "no response read after a failed send")
	assert.True(t, conn.IsClosed())
}

func TestConnectionExecuteMissingBlock(t *testing.T) {
	mock := testutils.NewConnectionMock()
	conn := NewConnection(mock, ConnectionConfig{})

	_, err := conn.Execute(context.Background(), wire.NewOpcode(wire.CmdWriteBlock, 0), nil)
	require.ErrorIs(t, err, wire.ErrMissingBlock)
	assert.Zero(t, mock.WriteCalls())
	assert.False(t, conn.IsClosed())
}

func TestConnectionExecuteRetriesTransientErrors(t *testing.T) {
	var retries int
	retry := wire.DefaultRetryPolicy
	retry.Backoff = 0
	retry.OnRetry = func(op string, attempt int, err error) { retries++ }

	mock := testutils.NewConnectionMock(header(0, wire.StatusOK))
	mock.ScriptReads(testutils.Step{Err: syscall.EAGAIN}, testutils.Step{Err: syscall.EINTR})
	conn := NewConnection(mock, ConnectionConfig{Retry: retry})

	_, err := conn.Execute(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, retries)
}

func TestConnectionExecuteCancelledContext(t *testing.T) {
	mock := testutils.NewConnectionMock(header(0, wire.StatusOK))
	conn := NewConnection(mock, ConnectionConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := conn.Execute(ctx, 0, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, mock.WriteCalls())
	assert.False(t, conn.IsClosed())
}

func TestConnectionClose(t *testing.T) {
	mock := testutils.NewConnectionMock()
	conn := NewConnection(mock, ConnectionConfig{})

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, conn.IsClosed())
	assert.True(t, mock.IsClosed())
}

func TestConnectionLastUsed(t *testing.T) {
	mock := testutils.NewConnectionMock(header(0, wire.StatusOK))
	conn := NewConnection(mock, ConnectionConfig{})
	created := conn.LastUsed()

	time.Sleep(time.Millisecond)
	_, err := conn.Execute(context.Background(), 0, nil)
	require.NoError(t, err)
	assert.True(t, conn.LastUsed().After(created))
}

func TestDial(t *testing.T) {
	stub := testutils.NewStubServer(t, testutils.EchoHandler)

	conn, err := Dial(context.Background(), "127.0.0.1", stub.Port(), ConnectionConfig{
		Logger: hclog.New(&hclog.LoggerOptions{Level: hclog.Trace, Output: testWriter{t}}),
	})
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, stub.Addr(), conn.Addr())

	block := blockOf(0x42)
	resp, err := conn.Execute(context.Background(), wire.NewOpcode(wire.CmdWriteBlock, 9), block)
	require.NoError(t, err)
	assert.True(t, resp.HasBlock())
	assert.Equal(t, blockOf(0x42), block)
}

func TestDialErrors(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		port uint16
	}{
		{"malformed", "127.0.0", 3333},
		{"hostname", "localhost", 3333},
		{"ipv6", "::1", 3333},
		{"refused", "127.0.0.1", closedPort(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := Dial(context.Background(), tt.ip, tt.port, ConnectionConfig{})
			assert.Nil(t, conn)

			var addrErr *AddressError
			require.ErrorAs(t, err, &addrErr)
			assert.Equal(t, KindAddress, ErrorKind(err))
		})
	}
}

func TestConnectionExecuteDeadline(t *testing.T) {
	addr := silentServer(t)

	conn, err := dialAddrPort(context.Background(), addr, ConnectionConfig{})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = conn.Execute(ctx, 0, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded), err)
	assert.True(t, conn.IsClosed())
}

func TestConnectionExecuteCancelInterruptsRead(t *testing.T) {
	addr := silentServer(t)

	conn, err := dialAddrPort(context.Background(), addr, ConnectionConfig{})
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err = conn.Execute(ctx, 0, nil)
	require.ErrorIs(t, err, context.Canceled)

	var te *wire.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, wire.OpRead, te.Op)
}

// slowCancelConn delays deadlines set in the past, as a cancellation
// callback preempted mid-flight would, and records every deadline.
type slowCancelConn struct {
	*testutils.ConnectionMock

	onFirstRead func()
	readOnce    sync.Once
	started     chan struct{}

	mu        sync.Mutex
	deadlines []time.Time
}

func (c *slowCancelConn) Read(b []byte) (int, error) {
	c.readOnce.Do(c.onFirstRead)
	return c.ConnectionMock.Read(b)
}

func (c *slowCancelConn) SetDeadline(t time.Time) error {
	if !t.IsZero() && t.Before(time.Now()) {
		close(c.started)
		time.Sleep(50 * time.Millisecond)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadlines = append(c.deadlines, t)
	return nil
}

func (c *slowCancelConn) lastDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadlines[len(c.deadlines)-1]
}

func TestConnectionCancelAfterExchangeDoesNotLeakDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	netConn := &slowCancelConn{
		ConnectionMock: testutils.NewConnectionMock(header(0, wire.StatusOK), header(0, wire.StatusOK)),
		started:        make(chan struct{}),
	}
	// Cancel while the response is being read, once the callback is running
	netConn.onFirstRead = func() {
		cancel()
		<-netConn.started
	}
	conn := NewConnection(netConn, ConnectionConfig{})

	_, err := conn.Execute(ctx, 0, nil)
	require.NoError(t, err)

	_, err = conn.Execute(context.Background(), 0, nil)
	require.NoError(t, err)

	assert.True(t, netConn.lastDeadline().IsZero(), "the next exchange has no deadline")
}

// testWriter sends log output to t.Log.
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}
