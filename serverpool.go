package metacache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-metacache/metacache/meta"
)

// markDownState is the mark-down circuit state shared by whichever Pool
// backend a ServerPool is configured with. It is deliberately independent
// of the optional gobreaker-backed CircuitBreaker: mark-down reacts to
// connection-level failures (dial/write/read errors) fast and cheaply,
// while the circuit breaker (when configured) reacts to a ratio of those
// same failures over a longer window. Error replies such as SERVER_ERROR
// reach neither of them as failures.
type markDownState struct {
	period time.Duration

	// markedUntilNanos is a unix-nanosecond deadline; 0 means not marked
	// down. Stored atomically so Execute's fast path never takes a lock.
	markedUntilNanos atomic.Int64

	// proberClaimed is CAS-set to true by the single goroutine allowed to
	// attempt a real request while marked down; reset when the mark-down
	// window naturally elapses past the deadline.
	proberClaimed atomic.Bool
}

// allow reports whether this call may attempt the network: true
// unconditionally once the mark-down window has elapsed, or once,
// CAS-claimed, per window while it's still active.
func (m *markDownState) allow() bool {
	until := m.markedUntilNanos.Load()
	if until == 0 {
		return true
	}
	if time.Now().UnixNano() >= until {
		// Window elapsed: clear it so the next failure starts a fresh one,
		// and let this call through as the implicit prober.
		if m.markedUntilNanos.CompareAndSwap(until, 0) {
			m.proberClaimed.Store(false)
		}
		return true
	}
	return m.proberClaimed.CompareAndSwap(false, true)
}

func (m *markDownState) recordFailure() {
	m.markedUntilNanos.Store(time.Now().Add(m.period).UnixNano())
}

func (m *markDownState) recordSuccess() {
	m.markedUntilNanos.Store(0)
	m.proberClaimed.Store(false)
}

// NewServerPool builds a ServerPool dialing addr, with its own connection
// pool, mark-down state, and optional circuit breaker.
func NewServerPool(addr string, config Config) (*ServerPool, error) {
	config = config.withDefaults()

	constructor := func(ctx context.Context) (*Connection, error) {
		netConn, err := config.SocketFactory(ctx, addr)
		if err != nil {
			return nil, &ConnectionError{Addr: addr, Err: err}
		}
		return NewConnection(netConn, config.BufferSize, *config.NoDelay), nil
	}

	pool, err := config.NewPool(constructor, config.MaxSize)
	if err != nil {
		return nil, err
	}

	sp := &ServerPool{
		addr:              addr,
		pool:              pool,
		connectionTimeout: config.connectTimeout(),
		recvTimeout:       config.recvTimeout(),
		markDown:          &markDownState{period: config.MarkDownPeriod},
	}
	if config.NewCircuitBreaker != nil {
		sp.circuitBreaker = config.NewCircuitBreaker(addr)
	}

	if err := sp.warmUp(context.Background(), config.InitialPoolSize); err != nil {
		sp.Close()
		return nil, err
	}
	return sp, nil
}

// warmUp eagerly dials n connections and releases them straight back to
// the pool's idle list, so the first n requests after construction don't
// each pay a dial cost.
func (sp *ServerPool) warmUp(ctx context.Context, n int32) error {
	resources := make([]Resource, 0, n)
	for i := int32(0); i < n; i++ {
		res, err := sp.pool.Acquire(ctx)
		if err != nil {
			for _, r := range resources {
				r.Release()
			}
			return &ConnectionError{Addr: sp.addr, Err: err}
		}
		resources = append(resources, res)
	}
	for _, r := range resources {
		r.Release()
	}
	return nil
}

// ServerPool wraps a Pool, a mark-down state machine, and an optional
// circuit breaker, all scoped to a single server address.
type ServerPool struct {
	addr              string
	pool              Pool
	connectionTimeout time.Duration
	recvTimeout       time.Duration
	markDown          *markDownState
	circuitBreaker    CircuitBreaker
}

func (sp *ServerPool) Address() string {
	return sp.addr
}

// ServerPoolStats contains stats for a single server pool.
type ServerPoolStats struct {
	Addr                string
	PoolStats           PoolStats
	CircuitBreakerState CircuitBreakerState
	MarkedDown          bool
}

func (sp *ServerPool) Stats() ServerPoolStats {
	stats := ServerPoolStats{
		Addr:       sp.addr,
		PoolStats:  sp.pool.Stats(),
		MarkedDown: sp.markDown.markedUntilNanos.Load() != 0,
	}
	if sp.circuitBreaker != nil {
		stats.CircuitBreakerState = sp.circuitBreaker.State()
	}
	return stats
}

// Execute performs a single request-response cycle: mark-down check,
// acquire, send, then release-or-destroy based on whether the error
// leaves the connection's reply stream at a clean boundary.
//
// Execute returns ErrServerMarkedDown without touching the network when
// the server is in its mark-down window and this call is not the single
// prober request allowed through per period.
func (sp *ServerPool) Execute(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	if !sp.markDown.allow() {
		return nil, ErrServerMarkedDown
	}

	var resp *meta.Response
	var err error
	if sp.circuitBreaker != nil {
		resp, err = sp.circuitBreaker.Execute(func() (*meta.Response, error) {
			return sp.execRequestDirect(ctx, req)
		})
	} else {
		resp, err = sp.execRequestDirect(ctx, req)
	}

	if err != nil {
		sp.markDown.recordFailure()
		return nil, err
	}
	sp.markDown.recordSuccess()
	return resp, nil
}

// execRequestDirect performs the actual request execution without circuit breaker.
func (sp *ServerPool) execRequestDirect(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	resource, err := sp.pool.Acquire(ctx)
	if err != nil {
		return nil, &ConnectionError{Addr: sp.addr, Err: err}
	}

	conn := resource.Value()

	resp, err := conn.Send(req, sp.connectionTimeout, sp.recvTimeout)
	if err != nil {
		resource.Destroy()
		return nil, &ConnectionError{Addr: sp.addr, Err: err}
	}
	if conn.Poisoned() {
		resource.Destroy()
	} else {
		resource.Release()
	}
	return resp, nil
}

// Close closes the underlying pool.
func (sp *ServerPool) Close() {
	sp.pool.Close()
}
