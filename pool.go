package jbod

import (
	"context"
	"errors"
	"time"
)

var ErrPoolClosed = errors.New("jbod: pool closed")

// Pool hands out connections to a single server.
type Pool interface {
	// Acquire returns an idle connection or creates one, waiting for a
	// release when the pool is full.
	Acquire(ctx context.Context) (Resource, error)

	// Stats returns a snapshot of pool statistics.
	Stats() PoolStats

	// Close destroys idle connections. Connections in use are destroyed on release.
	Close()
}

// Resource is a connection checked out of a Pool.
type Resource interface {
	Value() *Connection

	// Release returns the connection to the pool.
	Release()

	// Destroy closes the connection and frees its slot.
	Destroy()

	CreationTime() time.Time
}

// PoolFactory builds a Pool from a connection constructor.
type PoolFactory func(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error)
