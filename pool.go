package memcache

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"github.com/cacheflow/memcache/internal/clock"
)

// PoolEntryState is the lifecycle state of one pool-owned connection.
type PoolEntryState int32

const (
	EntryStarting PoolEntryState = iota
	EntryIdle
	EntryLeased
	EntryKeepAliveInFlight
	EntryClosing
)

type poolEntry struct {
	id        ConnID
	conn      *Connection
	state     PoolEntryState
	lastUsed  time.Time
	runCancel context.CancelFunc
}

type leaseWaiter struct {
	result chan leaseResult
}

type leaseResult struct {
	conn *Connection
	id   ConnID
	err  error
}

type poolEventKind int

const (
	evLeaseRequested poolEventKind = iota
	evLeaseReturned
	evConnectionEstablished
	evConnectionFailed
	evConnectionEnded
	evIdleTick
	evKeepAliveDue
)

type poolEvent struct {
	kind   poolEventKind
	waiter *leaseWaiter
	id     ConnID
	conn   *Connection
	err    error
	fatal  bool
}

// Pool is an async connection pool: a single goroutine (Run) owns all pool
// state and a queue of waiters, acquiring, leasing, releasing, keeping
// alive and retiring connections under the limits in PoolConfig. External
// callers interact with it only by calling Lease, which enqueues a
// LeaseRequested event and blocks for the result — exactly the "mutate only
// by enqueueing events" shape the protocol calls for.
type Pool struct {
	dial DialConfig
	cfg  PoolConfig
	sink EventSink
	clk  clock.Clock

	events chan poolEvent
	nextID atomic.Uint64

	stats poolStatsCollector

	// entries and waiters are owned exclusively by the Run goroutine.
	entries map[ConnID]*poolEntry
	waiters []*leaseWaiter

	runCtx context.Context
}

// NewPool constructs a Pool. Call Run exactly once, in its own goroutine,
// before calling Lease.
func NewPool(dial DialConfig, cfg PoolConfig, sink EventSink) *Pool {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Pool{
		dial:    dial.withDefaults(),
		cfg:     cfg.withDefaults(),
		sink:    sink,
		clk:     clock.System,
		events:  make(chan poolEvent, 256),
		entries: make(map[ConnID]*poolEntry),
	}
}

// Run owns the pool's state machine until ctx is cancelled. On return,
// every connection has been closed and every waiter has been failed.
func (p *Pool) Run(ctx context.Context) error {
	p.runCtx = ctx

	ticker := time.NewTicker(p.cfg.IdleTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return ctx.Err()
		case <-ticker.C:
			p.handleIdleTick()
		case ev := <-p.events:
			p.handle(ev)
		}
	}
}

func (p *Pool) handle(ev poolEvent) {
	switch ev.kind {
	case evLeaseRequested:
		p.handleLeaseRequested(ev.waiter)
	case evLeaseReturned:
		p.handleLeaseReturned(ev.id, ev.fatal)
	case evConnectionEstablished:
		p.handleConnectionEstablished(ev.id, ev.conn)
	case evConnectionFailed:
		p.handleConnectionFailed(ev.id, ev.err)
	case evConnectionEnded:
		p.handleConnectionEnded(ev.id, ev.err)
	case evKeepAliveDue:
		p.handleKeepAliveDue(ev.id, ev.err)
	}
}

// LeasedConnection is a scoped hold on a pool-owned Connection, returned by
// any ConnectionPool backend.
type LeasedConnection interface {
	Connection() *Connection
	Release(fatal bool)
}

// ConnectionPool leases Connections under some admission policy. Pool, the
// event-driven default described by §4.5, and PuddlePool, backed by
// jackc/puddle/v2, both implement it.
type ConnectionPool interface {
	Lease(ctx context.Context) (LeasedConnection, error)
	Stats() PoolStats
}

// Lease acquires a connection, blocking until one is available, a new one
// is established, or ctx is cancelled. The returned Lease must be released
// exactly once.
func (p *Pool) Lease(ctx context.Context) (LeasedConnection, error) {
	w := &leaseWaiter{result: make(chan leaseResult, 1)}
	select {
	case p.events <- poolEvent{kind: evLeaseRequested, waiter: w}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-w.result:
		if res.err != nil {
			return nil, res.err
		}
		return &Lease{pool: p, id: res.id, conn: res.conn}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ ConnectionPool = (*Pool)(nil)

// Lease is a scoped exclusive hold on a pool-owned connection.
type Lease struct {
	pool     *Pool
	id       ConnID
	conn     *Connection
	released atomic.Bool
}

// Connection returns the leased connection.
func (l *Lease) Connection() *Connection { return l.conn }

// Release returns the connection to the pool. fatal reports whether the
// caller observed an error that leaves the connection's protocol state
// unreliable (see ShouldCloseConnection in package meta); a fatal release
// retires the connection instead of returning it to Idle. Only the first
// call takes effect; subsequent calls are no-ops.
func (l *Lease) Release(fatal bool) {
	if !l.released.CompareAndSwap(false, true) {
		return
	}
	l.pool.events <- poolEvent{kind: evLeaseReturned, id: l.id, fatal: fatal}
}

func (p *Pool) popIdleEntry() (*poolEntry, bool) {
	for _, e := range p.entries {
		if e.state == EntryIdle {
			return e, true
		}
	}
	return nil, false
}

func (p *Pool) popWaiter() (*leaseWaiter, bool) {
	if len(p.waiters) == 0 {
		return nil, false
	}
	w := p.waiters[0]
	p.waiters = p.waiters[1:]
	return w, true
}

func (p *Pool) handleLeaseRequested(w *leaseWaiter) {
	p.stats.recordAcquire()

	if entry, ok := p.popIdleEntry(); ok {
		entry.state = EntryLeased
		p.stats.recordLeased()
		p.sink.ConnectionLeased(entry.id)
		w.result <- leaseResult{conn: entry.conn, id: entry.id}
		return
	}

	p.waiters = append(p.waiters, w)
	p.sink.RequestQueueDepthChanged(len(p.waiters))
	p.admit()
}

// admit spawns a new connection when the pool is under its soft limit, or
// under pressure (queue depth exceeds a small threshold) between the soft
// and hard limits. At the hard limit, the waiter just enqueued stays queued
// until a release or a keep-alive failure frees a slot.
const admitPressureThreshold = 1

func (p *Pool) admit() {
	live := len(p.entries)
	switch {
	case live < p.cfg.SoftLimit:
		p.spawn()
	case live < p.cfg.HardLimit && len(p.waiters) > admitPressureThreshold:
		p.spawn()
	}
}

func (p *Pool) spawn() {
	id := ConnID(p.nextID.Add(1))
	p.entries[id] = &poolEntry{id: id, state: EntryStarting}
	p.sink.StartedConnecting(id)

	go func() {
		conn, err := p.dialConnection(id)
		if err != nil {
			p.events <- poolEvent{kind: evConnectionFailed, id: id, err: err}
			return
		}
		p.events <- poolEvent{kind: evConnectionEstablished, id: id, conn: conn}
	}()
}

func (p *Pool) dialConnection(id ConnID) (*Connection, error) {
	ctx, cancel := context.WithTimeout(p.runCtx, p.dial.DialTimeout)
	defer cancel()

	dial := p.dial.Dial
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}

	nc, err := dial(ctx, "tcp", p.dial.Address)
	if err != nil {
		return nil, newConnectionUnavailableError(err)
	}
	return NewConnection(id, nc, p.sink), nil
}

func (p *Pool) handleConnectionEstablished(id ConnID, conn *Connection) {
	entry, ok := p.entries[id]
	if !ok {
		conn.Close()
		return
	}
	entry.conn = conn
	p.stats.recordCreate()
	p.sink.ConnectSucceeded(id)

	runCtx, cancel := context.WithCancel(p.runCtx)
	entry.runCancel = cancel
	go func() {
		err := conn.Run(runCtx)
		p.events <- poolEvent{kind: evConnectionEnded, id: id, err: err}
	}()

	// A new connection counts as active until recordIdled parks it.
	atomic.AddInt32(&p.stats.stats.ActiveConns, 1)

	if w, ok := p.popWaiter(); ok {
		entry.state = EntryLeased
		p.sink.ConnectionLeased(id)
		w.result <- leaseResult{conn: conn, id: id}
		return
	}
	entry.state = EntryIdle
	entry.lastUsed = p.clk.Now()
	p.stats.recordIdled()
}

func (p *Pool) handleConnectionFailed(id ConnID, err error) {
	delete(p.entries, id)
	p.sink.ConnectFailed(id, err)
	p.stats.recordAcquireError()

	if w, ok := p.popWaiter(); ok {
		w.result <- leaseResult{err: newConnectionUnavailableError(err)}
	}
}

// handleConnectionEnded fires when a connection's Run loop exits on its
// own — a transport failure or remote close, not a pool-initiated retire.
// The entry, if still tracked, is dropped; any state already transitioned
// it to Closing (and thus out of p.entries) before this arrives.
func (p *Pool) handleConnectionEnded(id ConnID, err error) {
	entry, ok := p.entries[id]
	if !ok {
		return
	}
	delete(p.entries, entry.id)
	p.stats.recordDestroy()
	p.sink.ConnectionClosed(id, err)
}

func (p *Pool) handleLeaseReturned(id ConnID, fatal bool) {
	entry, ok := p.entries[id]
	if !ok {
		return
	}
	p.sink.ConnectionReleased(id)

	if fatal {
		p.closeEntry(entry)
		return
	}

	if w, ok := p.popWaiter(); ok {
		p.sink.ConnectionLeased(id)
		w.result <- leaseResult{conn: entry.conn, id: id}
		return
	}

	entry.state = EntryIdle
	entry.lastUsed = p.clk.Now()
	p.stats.recordIdled()
}

func (p *Pool) handleIdleTick() {
	now := p.clk.Now()
	live := len(p.entries)

	for _, entry := range p.entries {
		if entry.state != EntryIdle {
			continue
		}
		if now.Sub(entry.lastUsed) > p.cfg.IdleTimeout && live > p.cfg.MinConnections {
			p.closeEntry(entry)
			live--
			continue
		}
		if now.Sub(entry.lastUsed) > p.cfg.KeepAliveFrequency {
			entry.state = EntryKeepAliveInFlight
			go p.probe(entry)
		}
	}
}

func (p *Pool) probe(entry *poolEntry) {
	err := runKeepAlive(p.runCtx, entry.conn, entry.id, p.cfg.KeepAliveFrequency, p.sink)
	p.events <- poolEvent{kind: evKeepAliveDue, id: entry.id, err: err}
}

func (p *Pool) handleKeepAliveDue(id ConnID, err error) {
	entry, ok := p.entries[id]
	if !ok || entry.state != EntryKeepAliveInFlight {
		return
	}
	if err != nil {
		p.closeEntry(entry)
		return
	}
	entry.state = EntryIdle
	entry.lastUsed = p.clk.Now()
}

func (p *Pool) closeEntry(entry *poolEntry) {
	entry.state = EntryClosing
	p.sink.ConnectionClosing(entry.id)
	if entry.runCancel != nil {
		entry.runCancel()
	}
	if entry.conn != nil {
		entry.conn.Close()
	}
	delete(p.entries, entry.id)
	p.stats.recordDestroy()

	if len(p.waiters) > 0 {
		p.admit()
	}
}

// shutdown closes every connection and fails every queued waiter. The pool
// does not wait for in-flight Run goroutines to observe cancellation before
// returning — Run's caller (Client.Run) owns synchronizing on those via the
// same ctx.
func (p *Pool) shutdown() {
	for _, w := range p.waiters {
		w.result <- leaseResult{err: newConnectionUnavailableError(context.Canceled)}
	}
	p.waiters = nil

	for _, entry := range p.entries {
		if entry.runCancel != nil {
			entry.runCancel()
		}
		if entry.conn != nil {
			entry.conn.Close()
		}
	}
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() PoolStats { return p.stats.snapshot() }
