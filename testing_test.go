package jbod

import (
	"context"
	"net"
	"testing"

	"github.com/pior/jbod/internal/testutils"
	"github.com/pior/jbod/wire"
	"github.com/stretchr/testify/require"
)

func header(op wire.Opcode, status wire.Status) []byte {
	return wire.AppendResponse(nil, op, status, nil)
}

func blockOf(v byte) *wire.Block {
	var b wire.Block
	b.Fill(v)
	return &b
}

// closedPort returns a loopback port with no listener.
func closedPort(t testing.TB) uint16 {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := uint16(listener.Addr().(*net.TCPAddr).Port)
	require.NoError(t, listener.Close())
	return port
}

// silentServer accepts connections and never answers.
func silentServer(t testing.TB) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()
		for {
			c, err := listener.Accept()
			if err != nil {
				return
			}
			conns = append(conns, c)
		}
	}()

	return listener.Addr().String()
}

// mockConstructor returns a connection constructor serving each new
// connection from a fresh mock built by newMock.
func mockConstructor(newMock func() *testutils.ConnectionMock) func(context.Context) (*Connection, error) {
	return func(ctx context.Context) (*Connection, error) {
		return NewConnection(newMock(), ConnectionConfig{}), nil
	}
}
