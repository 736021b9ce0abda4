package jbod

import (
	"context"
	"net"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pior/jbod/wire"
	"github.com/sony/gobreaker/v2"
)

// Executor issues JBOD operations.
type Executor interface {
	Execute(ctx context.Context, op wire.Opcode, block *wire.Block) error
}

// Config holds configuration for a Client.
type Config struct {
	// MaxSize is the maximum number of connections to the server.
	// Zero means 1, which keeps every exchange on a single stream in the
	// order it was issued.
	MaxSize int32

	// DialTimeout bounds connection establishment. Zero means no limit.
	DialTimeout time.Duration

	// Dialer is the net.Dialer used to create new connections.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Pool is the connection pool factory function.
	// If nil, uses NewChannelPool. NewPuddlePool is the alternative.
	Pool PoolFactory

	// NewCircuitBreaker creates the circuit breaker for the server.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func(serverAddr string) CircuitBreaker

	// Framing selects how requests without a block are framed.
	Framing wire.Framing

	// Retry controls retries of transient transfer errors.
	// The zero value fails on the first error.
	Retry wire.RetryPolicy

	// Logger receives client and connection events. If nil, nothing is logged.
	Logger hclog.Logger

	// for testing purposes only
	constructor func(ctx context.Context) (*Connection, error)
}

// Client is a JBOD client issuing synchronous request/response exchanges
// over pooled connections to one server.
type Client struct {
	addr           string
	pool           Pool
	circuitBreaker CircuitBreaker // nil if not configured
	log            hclog.Logger
	stats          *clientStatsCollector
}

var _ Executor = (*Client)(nil)

// NewClient creates a client for the server at addr ("a.b.c.d:port") and
// establishes the first connection. A malformed address or an unreachable
// server returns *AddressError.
func NewClient(addr string, config Config) (*Client, error) {
	addrPort, err := ParseHostPort(addr)
	if err != nil {
		return nil, err
	}
	addr = addrPort.String()

	log := config.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	poolFactory := config.Pool
	if poolFactory == nil {
		poolFactory = NewChannelPool
	}

	c := &Client{
		addr:  addr,
		log:   log.Named("jbod"),
		stats: newClientStatsCollector(),
	}

	constructor := config.constructor
	if constructor == nil {
		connConfig := ConnectionConfig{
			Dialer:  config.Dialer,
			Framing: config.Framing,
			Retry:   c.withRetryHook(config.Retry),
			Logger:  c.log,
		}
		constructor = func(ctx context.Context) (*Connection, error) {
			if config.DialTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, config.DialTimeout)
				defer cancel()
			}
			return dialAddrPort(ctx, addr, connConfig)
		}
	}

	c.pool, err = poolFactory(constructor, config.MaxSize)
	if err != nil {
		return nil, err
	}

	if config.NewCircuitBreaker != nil {
		c.circuitBreaker = config.NewCircuitBreaker(addr)
	}

	res, err := c.pool.Acquire(context.Background())
	if err != nil {
		c.pool.Close()
		return nil, err
	}
	res.Release()

	c.log.Debug("connected", "server", addr)
	return c, nil
}

// withRetryHook counts and logs retried transfers.
func (c *Client) withRetryHook(retry wire.RetryPolicy) wire.RetryPolicy {
	next := retry.OnRetry
	retry.OnRetry = func(op string, attempt int, err error) {
		c.stats.recordRetry()
		c.log.Warn("retrying transfer", "op", op, "attempt", attempt, "error", err)
		if next != nil {
			next(op, attempt, err)
		}
	}
	return retry
}

// Addr returns the server address.
func (c *Client) Addr() string {
	return c.addr
}

// Close closes the client and its connections.
func (c *Client) Close() {
	c.pool.Close()
}

// Do performs one exchange and returns the decoded response header.
// Errors keep their kind, see ErrorKind.
func (c *Client) Do(ctx context.Context, op wire.Opcode, block *wire.Block) (wire.Response, error) {
	c.stats.recordRequest()

	resp, err := c.execRequest(ctx, op, block)
	if err != nil {
		kind := ErrorKind(err)
		c.stats.recordError(kind)
		c.log.Debug("operation failed", "opcode", op, "kind", kind, "error", err)
		return resp, err
	}

	if op.IsWrite() {
		c.stats.recordBlockWritten()
	}
	if resp.HasBlock() {
		c.stats.recordBlockRead()
	}
	return resp, nil
}

// Execute performs one exchange. It returns nil on success; on failure the
// error is one of *wire.TransportError, *wire.ProtocolError, *AddressError
// or a context, pool or circuit breaker error.
func (c *Client) Execute(ctx context.Context, op wire.Opcode, block *wire.Block) error {
	_, err := c.Do(ctx, op, block)
	return err
}

// Mount mounts the array.
func (c *Client) Mount(ctx context.Context) error {
	return c.Execute(ctx, wire.NewOpcode(wire.CmdMount, 0), nil)
}

// Unmount unmounts the array.
func (c *Client) Unmount(ctx context.Context) error {
	return c.Execute(ctx, wire.NewOpcode(wire.CmdUnmount, 0), nil)
}

// ReadBlock issues a ReadBlock command with the given operands and fills block.
func (c *Client) ReadBlock(ctx context.Context, operands uint32, block *wire.Block) error {
	return c.Execute(ctx, wire.NewOpcode(wire.CmdReadBlock, operands), block)
}

// WriteBlock issues a WriteBlock command with the given operands.
func (c *Client) WriteBlock(ctx context.Context, operands uint32, block *wire.Block) error {
	return c.Execute(ctx, wire.NewOpcode(wire.CmdWriteBlock, operands), block)
}

// execRequest wraps the exchange with the circuit breaker when configured.
func (c *Client) execRequest(ctx context.Context, op wire.Opcode, block *wire.Block) (wire.Response, error) {
	if c.circuitBreaker == nil {
		return c.execRequestDirect(ctx, op, block)
	}

	return c.circuitBreaker.Execute(func() (wire.Response, error) {
		return c.execRequestDirect(ctx, op, block)
	})
}

// execRequestDirect acquires a connection, runs the exchange and releases or
// destroys the connection depending on the error.
func (c *Client) execRequestDirect(ctx context.Context, op wire.Opcode, block *wire.Block) (wire.Response, error) {
	resource, err := c.pool.Acquire(ctx)
	if err != nil {
		return wire.Response{}, err
	}

	resp, err := resource.Value().Execute(ctx, op, block)
	if err != nil && wire.ShouldCloseConnection(err) {
		resource.Destroy()
		return resp, err
	}

	resource.Release()
	return resp, err
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// PoolStats returns a snapshot of connection pool statistics.
func (c *Client) PoolStats() PoolStats {
	return c.pool.Stats()
}

// CircuitBreakerState returns the breaker state, closed when none is configured.
func (c *Client) CircuitBreakerState() gobreaker.State {
	if c.circuitBreaker == nil {
		return gobreaker.StateClosed
	}
	return c.circuitBreaker.State()
}
