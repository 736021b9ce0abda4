package jbod

import (
	"context"
	"sync"
	"time"
)

// NewChannelPool creates a channel-based connection pool. This is the default pool.
func NewChannelPool(constructor func(ctx context.Context) (*Connection, error), maxSize int32) (Pool, error) {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &channelPool{
		constructor: constructor,
		maxSize:     maxSize,
		resources:   make(chan *channelResource, maxSize),
		slotFreed:   make(chan struct{}, maxSize),
		stats:       newPoolStatsCollector(),
	}, nil
}

// channelResource implements Resource for channel pool.
type channelResource struct {
	conn         *Connection
	pool         *channelPool
	creationTime time.Time
}

func (r *channelResource) Value() *Connection {
	return r.conn
}

func (r *channelResource) Release() {
	if r.conn.IsClosed() {
		r.pool.removeResource()
		return
	}
	r.pool.put(r)
}

func (r *channelResource) Destroy() {
	r.conn.Close()
	r.pool.removeResource()
}

func (r *channelResource) CreationTime() time.Time {
	return r.creationTime
}

// channelPool is a small connection pool using a buffered channel as the idle list.
type channelPool struct {
	constructor func(ctx context.Context) (*Connection, error)
	maxSize     int32

	mu        sync.Mutex
	resources chan *channelResource
	slotFreed chan struct{} // one token per slot given back, wakes waiters
	size      int32
	closed    bool

	stats *poolStatsCollector
}

func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	var waitStart time.Time
	for {
		// Try to get an idle connection from the pool first
		select {
		case res, ok := <-p.resources:
			if ok {
				p.recordAcquired(waitStart)
				return res, nil
			}
		default:
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.stats.recordAcquireError()
			return nil, ErrPoolClosed
		}

		if p.size < p.maxSize {
			p.size++
			p.mu.Unlock()
			return p.create(ctx)
		}
		p.mu.Unlock()

		// Pool is full, wait for a release or a destroyed connection
		if waitStart.IsZero() {
			waitStart = time.Now()
		}
		select {
		case res, ok := <-p.resources:
			if !ok {
				p.stats.recordAcquireError()
				return nil, ErrPoolClosed
			}
			p.recordAcquired(waitStart)
			return res, nil
		case <-p.slotFreed:
			// A slot was given back, retry creating a connection
		case <-ctx.Done():
			p.stats.recordAcquireError()
			return nil, ctx.Err()
		}
	}
}

func (p *channelPool) recordAcquired(waitStart time.Time) {
	if !waitStart.IsZero() {
		p.stats.recordAcquireWait(time.Since(waitStart))
	}
	p.stats.recordAcquireFromIdle()
}

// create builds a connection for a slot already reserved in p.size.
func (p *channelPool) create(ctx context.Context) (Resource, error) {
	conn, err := p.constructor(ctx)
	if err != nil {
		p.mu.Lock()
		p.freeSlotLocked()
		p.mu.Unlock()
		p.stats.recordAcquireError()
		return nil, err
	}

	p.stats.recordCreate()
	p.stats.recordActivate()

	return &channelResource{
		conn:         conn,
		pool:         p,
		creationTime: time.Now(),
	}, nil
}

// freeSlotLocked gives a slot back and wakes one waiter (must be called with lock held)
func (p *channelPool) freeSlotLocked() {
	p.size--
	select {
	case p.slotFreed <- struct{}{}:
	default:
		// maxSize tokens already pending, every free slot has a wakeup
	}
}

func (p *channelPool) put(res *channelResource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		res.conn.Close()
		p.freeSlotLocked()
		p.stats.recordDestroyActive()
		return
	}

	select {
	case p.resources <- res:
		p.stats.recordRelease()
	default:
		res.conn.Close()
		p.freeSlotLocked()
		p.stats.recordDestroyActive()
	}
}

func (p *channelPool) removeResource() {
	p.mu.Lock()
	p.freeSlotLocked()
	p.mu.Unlock()
	p.stats.recordDestroyActive()
}

func (p *channelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	// Close all idle connections
	close(p.resources)
	for res := range p.resources {
		res.conn.Close()
		p.size--
		p.stats.recordDestroyIdle()
	}
}

// Stats returns a snapshot of pool statistics.
func (p *channelPool) Stats() PoolStats {
	return p.stats.snapshot()
}
