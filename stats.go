package jbod

import (
	"sync/atomic"
	"time"
)

// PoolStats contains statistics about a connection pool.
type PoolStats struct {
	// Lifetime counters
	AcquireCount      uint64 // Total acquire attempts
	AcquireWaitCount  uint64 // Acquires that had to wait
	CreatedConns      uint64 // Total connections created
	DestroyedConns    uint64 // Total connections destroyed
	AcquireErrors     uint64 // Failed acquire attempts
	AcquireWaitTimeNs uint64 // Total nanoseconds spent waiting

	// Current state gauges
	TotalConns  int32 // Total connections in pool (active + idle)
	IdleConns   int32 // Idle connections available
	ActiveConns int32 // Connections currently in use
}

// ClientStats contains statistics about client exchanges.
//
// Errors counts every failed exchange; TransportErrors, ProtocolErrors and
// AddressErrors break it down by kind.
type ClientStats struct {
	Requests        uint64 // Exchanges attempted
	BlocksRead      uint64 // Responses that carried a block
	BlocksWritten   uint64 // WriteBlock requests acknowledged
	Errors          uint64 // Failed exchanges
	TransportErrors uint64
	ProtocolErrors  uint64
	AddressErrors   uint64
	Retries         uint64 // Transient transfer errors retried
}

type poolStatsCollector struct {
	stats PoolStats
}

func newPoolStatsCollector() *poolStatsCollector {
	return &poolStatsCollector{}
}

func (c *poolStatsCollector) recordAcquire() {
	atomic.AddUint64(&c.stats.AcquireCount, 1)
}

func (c *poolStatsCollector) recordAcquireWait(duration time.Duration) {
	atomic.AddUint64(&c.stats.AcquireWaitCount, 1)
	atomic.AddUint64(&c.stats.AcquireWaitTimeNs, uint64(duration.Nanoseconds()))
}

func (c *poolStatsCollector) recordCreate() {
	atomic.AddUint64(&c.stats.CreatedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, 1)
}

func (c *poolStatsCollector) recordDestroyActive() {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, -1)
}

func (c *poolStatsCollector) recordDestroyIdle() {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
	atomic.AddInt32(&c.stats.IdleConns, -1)
}

func (c *poolStatsCollector) recordAcquireError() {
	atomic.AddUint64(&c.stats.AcquireErrors, 1)
}

func (c *poolStatsCollector) recordAcquireFromIdle() {
	atomic.AddInt32(&c.stats.IdleConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *poolStatsCollector) recordActivate() {
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *poolStatsCollector) recordRelease() {
	atomic.AddInt32(&c.stats.IdleConns, 1)
	atomic.AddInt32(&c.stats.ActiveConns, -1)
}

func (c *poolStatsCollector) snapshot() PoolStats {
	return PoolStats{
		TotalConns:        atomic.LoadInt32(&c.stats.TotalConns),
		IdleConns:         atomic.LoadInt32(&c.stats.IdleConns),
		ActiveConns:       atomic.LoadInt32(&c.stats.ActiveConns),
		AcquireCount:      atomic.LoadUint64(&c.stats.AcquireCount),
		AcquireWaitCount:  atomic.LoadUint64(&c.stats.AcquireWaitCount),
		CreatedConns:      atomic.LoadUint64(&c.stats.CreatedConns),
		DestroyedConns:    atomic.LoadUint64(&c.stats.DestroyedConns),
		AcquireErrors:     atomic.LoadUint64(&c.stats.AcquireErrors),
		AcquireWaitTimeNs: atomic.LoadUint64(&c.stats.AcquireWaitTimeNs),
	}
}

// clientStatsCollector provides internal methods for updating client stats.
type clientStatsCollector struct {
	stats ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) recordRequest() {
	atomic.AddUint64(&c.stats.Requests, 1)
}

func (c *clientStatsCollector) recordBlockRead() {
	atomic.AddUint64(&c.stats.BlocksRead, 1)
}

func (c *clientStatsCollector) recordBlockWritten() {
	atomic.AddUint64(&c.stats.BlocksWritten, 1)
}

func (c *clientStatsCollector) recordRetry() {
	atomic.AddUint64(&c.stats.Retries, 1)
}

func (c *clientStatsCollector) recordError(kind Kind) {
	atomic.AddUint64(&c.stats.Errors, 1)
	switch kind {
	case KindTransport:
		atomic.AddUint64(&c.stats.TransportErrors, 1)
	case KindProtocol:
		atomic.AddUint64(&c.stats.ProtocolErrors, 1)
	case KindAddress:
		atomic.AddUint64(&c.stats.AddressErrors, 1)
	}
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Requests:        atomic.LoadUint64(&c.stats.Requests),
		BlocksRead:      atomic.LoadUint64(&c.stats.BlocksRead),
		BlocksWritten:   atomic.LoadUint64(&c.stats.BlocksWritten),
		Errors:          atomic.LoadUint64(&c.stats.Errors),
		TransportErrors: atomic.LoadUint64(&c.stats.TransportErrors),
		ProtocolErrors:  atomic.LoadUint64(&c.stats.ProtocolErrors),
		AddressErrors:   atomic.LoadUint64(&c.stats.AddressErrors),
		Retries:         atomic.LoadUint64(&c.stats.Retries),
	}
}
