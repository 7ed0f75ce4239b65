package memcache

import (
	"sync/atomic"
	"time"
)

// PoolStats is a snapshot of pool admission and lifecycle counters. All
// updates happen on the pool's own event-loop goroutine; the pool's Stats
// method is safe to call concurrently from any goroutine.
type PoolStats struct {
	TotalConns  int32
	IdleConns   int32
	ActiveConns int32

	AcquireCount      uint64
	AcquireWaitCount  uint64
	CreatedConns      uint64
	DestroyedConns    uint64
	AcquireErrors     uint64
	AcquireWaitTimeNs uint64
}

// AverageWaitTime returns the average duration spent waiting for a
// connection to become available. Zero if no waits occurred.
func (s PoolStats) AverageWaitTime() time.Duration {
	if s.AcquireWaitCount == 0 {
		return 0
	}
	return time.Duration(s.AcquireWaitTimeNs / s.AcquireWaitCount)
}

// ClientStats is a snapshot of typed operation counters.
type ClientStats struct {
	Gets       uint64
	Sets       uint64
	Adds       uint64
	Deletes    uint64
	Increments uint64

	CacheHits   uint64
	CacheMisses uint64
	Errors      uint64

	ConnectionsDestroyed uint64
}

// HitRate returns the fraction of Get calls that were hits, in [0, 1].
func (s ClientStats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// poolStatsCollector accumulates PoolStats. Every method except snapshot is
// called only from the pool's event-loop goroutine, so the gauges need no
// synchronization; the counters use atomics purely so Stats() can read a
// consistent snapshot from any goroutine without a lock.
type poolStatsCollector struct {
	stats PoolStats
}

func (c *poolStatsCollector) recordAcquire() {
	atomic.AddUint64(&c.stats.AcquireCount, 1)
}

func (c *poolStatsCollector) recordAcquireWait(d time.Duration) {
	atomic.AddUint64(&c.stats.AcquireWaitCount, 1)
	atomic.AddUint64(&c.stats.AcquireWaitTimeNs, uint64(d.Nanoseconds()))
}

func (c *poolStatsCollector) recordAcquireError() {
	atomic.AddUint64(&c.stats.AcquireErrors, 1)
}

func (c *poolStatsCollector) recordCreate() {
	atomic.AddUint64(&c.stats.CreatedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, 1)
}

func (c *poolStatsCollector) recordDestroy() {
	atomic.AddUint64(&c.stats.DestroyedConns, 1)
	atomic.AddInt32(&c.stats.TotalConns, -1)
}

func (c *poolStatsCollector) recordLeased() {
	atomic.AddInt32(&c.stats.IdleConns, -1)
	atomic.AddInt32(&c.stats.ActiveConns, 1)
}

func (c *poolStatsCollector) recordIdled() {
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

// clientStatsCollector accumulates ClientStats. Unlike poolStatsCollector,
// every caller-facing goroutine calls these concurrently, so every field
// update is atomic.
type clientStatsCollector struct {
	stats ClientStats
}

func (c *clientStatsCollector) recordGet(hit bool) {
	atomic.AddUint64(&c.stats.Gets, 1)
	if hit {
		atomic.AddUint64(&c.stats.CacheHits, 1)
	} else {
		atomic.AddUint64(&c.stats.CacheMisses, 1)
	}
}

func (c *clientStatsCollector) recordSet()       { atomic.AddUint64(&c.stats.Sets, 1) }
func (c *clientStatsCollector) recordAdd()       { atomic.AddUint64(&c.stats.Adds, 1) }
func (c *clientStatsCollector) recordDelete()    { atomic.AddUint64(&c.stats.Deletes, 1) }
func (c *clientStatsCollector) recordIncrement() { atomic.AddUint64(&c.stats.Increments, 1) }
func (c *clientStatsCollector) recordError()     { atomic.AddUint64(&c.stats.Errors, 1) }

func (c *clientStatsCollector) recordConnectionDestroyed() {
	atomic.AddUint64(&c.stats.ConnectionsDestroyed, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Gets:                 atomic.LoadUint64(&c.stats.Gets),
		Sets:                 atomic.LoadUint64(&c.stats.Sets),
		Adds:                 atomic.LoadUint64(&c.stats.Adds),
		Deletes:              atomic.LoadUint64(&c.stats.Deletes),
		Increments:           atomic.LoadUint64(&c.stats.Increments),
		CacheHits:            atomic.LoadUint64(&c.stats.CacheHits),
		CacheMisses:          atomic.LoadUint64(&c.stats.CacheMisses),
		Errors:               atomic.LoadUint64(&c.stats.Errors),
		ConnectionsDestroyed: atomic.LoadUint64(&c.stats.ConnectionsDestroyed),
	}
}
