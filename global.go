package jbod

import (
	"context"
	"sync"

	"github.com/pior/jbod/wire"
)

// The functions below keep a process-wide default connection for callers
// that expect a connect / operate / disconnect interface with boolean and
// 0/-1 results. The error kind is lost at this boundary; use Dial and
// Connection, or Client, to keep it.

var defaultConn struct {
	mu     sync.Mutex
	conn   *Connection
	config ConnectionConfig
}

// SetDefaultConfig sets the configuration used by Connect.
func SetDefaultConfig(config ConnectionConfig) {
	defaultConn.mu.Lock()
	defer defaultConn.mu.Unlock()
	defaultConn.config = config
}

// Connect establishes the default connection and reports success. An
// existing default connection is closed first. On failure the state is
// unconnected.
func Connect(ip string, port uint16) bool {
	defaultConn.mu.Lock()
	defer defaultConn.mu.Unlock()

	disconnectLocked()

	conn, err := Dial(context.Background(), ip, port, defaultConn.config)
	if err != nil {
		return false
	}
	defaultConn.conn = conn
	return true
}

// Disconnect closes the default connection. It does nothing when unconnected.
func Disconnect() {
	defaultConn.mu.Lock()
	defer defaultConn.mu.Unlock()
	disconnectLocked()
}

func disconnectLocked() {
	if defaultConn.conn == nil {
		return
	}
	defaultConn.conn.Close()
	defaultConn.conn = nil
}

// Connected reports whether a default connection is established.
func Connected() bool {
	defaultConn.mu.Lock()
	defer defaultConn.mu.Unlock()
	return defaultConn.conn != nil
}

// ClientOperation performs one exchange on the default connection and
// returns 0 on success and -1 on failure.
//
// block must hold at least wire.BlockSize bytes for WriteBlock commands and
// for commands whose response carries a block; it may be nil otherwise. On
// success its first wire.BlockSize bytes hold the received block, if any.
//
// A transport failure leaves the default connection closed; Connect must be
// called again.
func ClientOperation(op uint32, block []byte) int {
	defaultConn.mu.Lock()
	defer defaultConn.mu.Unlock()

	if defaultConn.conn == nil {
		return -1
	}

	var buf *wire.Block
	if block != nil {
		if len(block) < wire.BlockSize {
			return -1
		}
		buf = (*wire.Block)(block[:wire.BlockSize])
	}

	if _, err := defaultConn.conn.Execute(context.Background(), wire.Opcode(op), buf); err != nil {
		if defaultConn.conn.IsClosed() {
			defaultConn.conn = nil
		}
		return -1
	}
	return 0
}
