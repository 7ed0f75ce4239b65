package memcache

import (
	"context"
	"net"
	"sync/atomic"

	"github.com/jackc/puddle/v2"
)

// PuddlePool is an alternate ConnectionPool backend built on
// jackc/puddle/v2's generic resource pool instead of the hand-rolled
// event loop in Pool. It trades the admission/idle-retirement state
// machine of §4.5 for puddle's own (simpler, soft-limit-only) acquire
// semantics — no keep-alive, no idle retirement below MinConnections. Use
// it when that tradeoff is acceptable and puddle's acquire-wait
// instrumentation is preferred over EventSink's.
type PuddlePool struct {
	pool   *puddle.Pool[*Connection]
	sink   EventSink
	nextID atomic.Uint64

	createdConns   atomic.Int64
	destroyedConns atomic.Int64
}

// NewPuddlePool constructs a PuddlePool dialing dial.Address, with up to
// maxSize live connections. ctx bounds every spawned Connection.Run — when
// ctx is cancelled, every connection this pool owns stops.
func NewPuddlePool(ctx context.Context, dial DialConfig, maxSize int32, sink EventSink) (*PuddlePool, error) {
	if sink == nil {
		sink = NoopSink{}
	}
	dial = dial.withDefaults()
	p := &PuddlePool{sink: sink}

	cfg := &puddle.Config[*Connection]{
		Constructor: func(dialCtx context.Context) (*Connection, error) {
			id := ConnID(p.nextID.Add(1))
			p.sink.StartedConnecting(id)

			dialer := dial.Dial
			if dialer == nil {
				var d net.Dialer
				dialer = d.DialContext
			}

			timeoutCtx, cancel := context.WithTimeout(dialCtx, dial.DialTimeout)
			defer cancel()

			nc, err := dialer(timeoutCtx, "tcp", dial.Address)
			if err != nil {
				p.sink.ConnectFailed(id, err)
				return nil, newConnectionUnavailableError(err)
			}

			conn := NewConnection(id, nc, p.sink)
			go func() { _ = conn.Run(ctx) }()

			p.createdConns.Add(1)
			p.sink.ConnectSucceeded(id)
			return conn, nil
		},
		Destructor: func(conn *Connection) {
			p.destroyedConns.Add(1)
			_ = conn.Close()
		},
		MaxSize: maxSize,
	}

	pool, err := puddle.NewPool(cfg)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

type puddleLease struct {
	res *puddle.Resource[*Connection]
}

func (l *puddleLease) Connection() *Connection { return l.res.Value() }

func (l *puddleLease) Release(fatal bool) {
	if fatal {
		l.res.Destroy()
		return
	}
	l.res.Release()
}

// Lease implements ConnectionPool.
func (p *PuddlePool) Lease(ctx context.Context) (LeasedConnection, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, newConnectionUnavailableError(err)
	}
	return &puddleLease{res: res}, nil
}

// Stats implements ConnectionPool, translating puddle's own counters into
// PoolStats.
func (p *PuddlePool) Stats() PoolStats {
	s := p.pool.Stat()
	return PoolStats{
		TotalConns:        s.TotalResources(),
		IdleConns:         s.IdleResources(),
		ActiveConns:       s.AcquiredResources(),
		AcquireCount:      uint64(s.AcquireCount()),
		AcquireWaitCount:  uint64(s.EmptyAcquireCount()),
		CreatedConns:      uint64(p.createdConns.Load()),
		DestroyedConns:    uint64(p.destroyedConns.Load()),
		AcquireErrors:     uint64(s.CanceledAcquireCount()),
		AcquireWaitTimeNs: uint64(s.EmptyAcquireWaitTime().Nanoseconds()),
	}
}

// Close closes the pool and every connection it owns.
func (p *PuddlePool) Close() { p.pool.Close() }

var _ ConnectionPool = (*PuddlePool)(nil)
