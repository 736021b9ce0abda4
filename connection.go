package jbod

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pior/jbod/wire"
)

var (
	ErrConnectionClosed = errors.New("jbod: connection closed")
)

// ConnectionConfig holds per-connection settings. The zero value is usable.
type ConnectionConfig struct {
	// Dialer is used by Dial. If nil, a zero net.Dialer is used.
	Dialer *net.Dialer

	// Framing selects how requests without a block are framed.
	// Defaults to wire.FramingCompact.
	Framing wire.Framing

	// Retry controls retries of transient transfer errors.
	// The zero value fails on the first error.
	Retry wire.RetryPolicy

	// Logger receives connection events. If nil, nothing is logged.
	Logger hclog.Logger
}

// Connection is a single stream connection to a JBOD server.
//
// Exchanges are serialised: one request is in flight at a time and
// responses are returned in the order requests were issued.
type Connection struct {
	addr string
	conn net.Conn
	log  hclog.Logger

	mu       sync.Mutex
	writer   *wire.Writer
	reader   *wire.Reader
	lastUsed time.Time
	closed   bool
}

// Dial parses ip and port and connects to the server.
// Malformed addresses and failed connection attempts return *AddressError.
func Dial(ctx context.Context, ip string, port uint16, config ConnectionConfig) (*Connection, error) {
	addrPort, err := ParseAddress(ip, port)
	if err != nil {
		return nil, err
	}
	return dialAddrPort(ctx, addrPort.String(), config)
}

func dialAddrPort(ctx context.Context, addr string, config ConnectionConfig) (*Connection, error) {
	dialer := config.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	netConn, err := dialer.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return nil, &AddressError{Addr: addr, Err: err}
	}

	return NewConnection(netConn, config), nil
}

// NewConnection wraps an established stream.
func NewConnection(netConn net.Conn, config ConnectionConfig) *Connection {
	log := config.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	addr := netConn.RemoteAddr().String()
	log = log.With("server", addr)

	retry := config.Retry
	if retry.OnRetry == nil && retry.MaxRetries > 0 {
		retry.OnRetry = func(op string, attempt int, err error) {
			log.Warn("retrying transfer", "op", op, "attempt", attempt, "error", err)
		}
	}

	writer := wire.NewWriter(netConn)
	writer.Framing = config.Framing
	writer.Retry = retry

	reader := wire.NewReader(netConn)
	reader.Retry = retry

	return &Connection{
		addr:     addr,
		conn:     netConn,
		log:      log,
		writer:   writer,
		reader:   reader,
		lastUsed: time.Now(),
	}
}

// Execute sends one request and reads its response.
//
// block is sent for WriteBlock opcodes and receives the payload of a
// response that carries one. It is only meaningful when err is nil.
//
// If the request was written but the response could not be read, the
// server may have performed the operation even though an error is
// returned.
//
// The context deadline applies to the whole exchange and cancelling ctx
// interrupts blocked I/O. Errors for which wire.ShouldCloseConnection is
// true close the connection.
func (c *Connection) Execute(ctx context.Context, op wire.Opcode, block *wire.Block) (wire.Response, error) {
	if err := ctx.Err(); err != nil {
		return wire.Response{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return wire.Response{}, ErrConnectionClosed
	}

	// Set deadline based on context
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(deadline)
	} else {
		c.conn.SetDeadline(time.Time{})
	}

	// Cancellation moves the deadline into the past. A callback that already
	// started must finish before the next exchange sets its own deadline.
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetDeadline(time.Unix(1, 0))
		close(interrupted)
	})
	defer func() {
		if !stop() {
			<-interrupted
		}
	}()

	resp, err := c.exchange(op, block)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(ctxErr, err)
		}
		if wire.ShouldCloseConnection(err) {
			c.log.Debug("closing connection", "opcode", op, "error", err)
			c.closeLocked()
		}
		return resp, err
	}

	c.lastUsed = time.Now()
	return resp, nil
}

func (c *Connection) exchange(op wire.Opcode, block *wire.Block) (wire.Response, error) {
	if err := c.writer.WriteRequest(op, block); err != nil {
		return wire.Response{}, err
	}

	resp, err := c.reader.ReadResponse(block)
	if c.log.IsTrace() {
		c.log.Trace("exchange", "opcode", op, "status", resp.Status, "error", err)
	}
	return resp, err
}

// LastUsed returns when the connection last completed an exchange
func (c *Connection) LastUsed() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

// IsClosed returns whether the connection is closed
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Addr returns the server address
func (c *Connection) Addr() string {
	return c.addr
}

// Close closes the connection. Closing twice is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	return c.closeLocked()
}

// closeLocked closes the stream (must be called with lock held)
func (c *Connection) closeLocked() error {
	c.closed = true
	return c.conn.Close()
}
