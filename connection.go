package memcache

import (
	"bufio"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cacheflow/memcache/internal/clock"
	"github.com/cacheflow/memcache/meta"
	"github.com/cockroachdb/errors"
)

type connState int32

const (
	connInitial connState = iota
	connRunning
	connFinished
)

// waiter couples a submitted request to the one-shot channel its response
// (or failure) arrives on. result is buffered so the read loop never blocks
// delivering to an abandoned (context-cancelled) waiter.
type waiter struct {
	req    *meta.Request
	result chan submitResult
}

type submitResult struct {
	resp *meta.Response
	err  error
}

// Connection owns one TCP duplex stream and multiplexes concurrently
// submitted requests over it. Responses arrive in the order requests were
// sent, so a single FIFO queue — here, the pendingCh channel, written only
// by the write loop and read only by the read loop — matches each response
// to its waiter without per-request correlation IDs.
//
// Exactly one goroutine must call Run, exactly once, for the connection's
// entire active lifetime.
type Connection struct {
	id    ConnID
	conn  net.Conn
	r     *bufio.Reader
	w     *bufio.Writer
	sink  EventSink
	clock clock.Clock

	state doneState

	submitCh  chan *waiter
	pendingCh chan *waiter

	inFlight atomic.Int32
	capacity int
}

type doneState struct {
	v    atomic.Int32
	done chan struct{}
	once sync.Once
	err  atomic.Value // error
}

func newDoneState() doneState {
	return doneState{done: make(chan struct{})}
}

func (s *doneState) load() connState { return connState(s.v.Load()) }

func (s *doneState) finish(cause error) {
	s.once.Do(func() {
		s.v.Store(int32(connFinished))
		if cause != nil {
			s.err.Store(cause)
		}
		close(s.done)
	})
}

func (s *doneState) cause() error {
	if e, ok := s.err.Load().(error); ok {
		return e
	}
	return nil
}

// NewConnection wraps conn for the meta protocol. id is used only for
// observability; sink may be nil, in which case events are dropped.
func NewConnection(id ConnID, conn net.Conn, sink EventSink) *Connection {
	if sink == nil {
		sink = NoopSink{}
	}
	const pendingCapacity = 65536
	return &Connection{
		id:        id,
		conn:      conn,
		r:         bufio.NewReader(conn),
		w:         bufio.NewWriter(conn),
		sink:      sink,
		clock:     clock.System,
		state:     newDoneState(),
		submitCh:  make(chan *waiter, 256),
		pendingCh: make(chan *waiter, pendingCapacity),
		capacity:  pendingCapacity,
	}
}

// Run drives the read/write loop until ctx is cancelled or the transport
// fails, then transitions the connection to Finished and fails every
// pending and queued submission with ConnectionShutdownError. It must be
// invoked exactly once and is meant to be launched with `go conn.Run(ctx)`.
func (c *Connection) Run(ctx context.Context) error {
	if !c.state.v.CompareAndSwap(int32(connInitial), int32(connRunning)) {
		return errors.New("memcache: Connection.Run called more than once")
	}

	errCh := make(chan error, 4)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.writeLoop(errCh) }()
	go func() { defer wg.Done(); c.readLoop(errCh) }()

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case runErr = <-errCh:
	}

	c.state.finish(runErr)
	_ = c.conn.Close()
	wg.Wait()
	c.drain()

	c.sink.ConnectionClosed(c.id, runErr)
	return runErr
}

func (c *Connection) writeLoop(errCh chan<- error) {
	for {
		select {
		case w, ok := <-c.submitCh:
			if !ok {
				return
			}
			if err := meta.WriteRequest(c.w, w.req); err != nil {
				w.result <- submitResult{err: newConnectionShutdownError(err)}
				errCh <- err
				return
			}
			select {
			case c.pendingCh <- w:
			case <-c.state.done:
				w.result <- submitResult{err: newConnectionShutdownError(c.state.cause())}
				return
			}
		case <-c.state.done:
			return
		}
	}
}

func (c *Connection) readLoop(errCh chan<- error) {
	for {
		resp, err := meta.ReadResponse(c.r)
		if err != nil {
			errCh <- err
			return
		}
		select {
		case w := <-c.pendingCh:
			w.result <- submitResult{resp: resp}
		case <-c.state.done:
			return
		}
	}
}

// drain fails every waiter still sitting in submitCh or pendingCh once both
// loops have exited. It never blocks: both channels are drained with a
// non-blocking receive until empty.
func (c *Connection) drain() {
	cause := newConnectionShutdownError(c.state.cause())
	for {
		select {
		case w := <-c.submitCh:
			w.result <- submitResult{err: cause}
		case w := <-c.pendingCh:
			w.result <- submitResult{err: cause}
		default:
			return
		}
	}
}

// Submit enqueues req and blocks until the matching response is decoded,
// the connection finishes, or ctx is cancelled. A cancelled Submit detaches
// from its waiter without disturbing FIFO order: the read loop still
// consumes and discards the eventual response.
func (c *Connection) Submit(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	if c.state.load() == connFinished {
		return nil, newConnectionShutdownError(c.state.cause())
	}

	w := &waiter{req: req, result: make(chan submitResult, 1)}

	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	c.sink.ConnectionUtilizationChanged(c.id, int(c.inFlight.Load()), c.capacity)

	select {
	case c.submitCh <- w:
	case <-c.state.done:
		return nil, newConnectionShutdownError(c.state.cause())
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-w.result:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done reports whether Run has finished.
func (c *Connection) Done() <-chan struct{} { return c.state.done }

// Close forcibly closes the underlying transport. Run, if still running,
// observes the resulting I/O error and finishes normally.
func (c *Connection) Close() error { return c.conn.Close() }

func (c *Connection) now() time.Time { return c.clock.Now() }
