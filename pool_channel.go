package metacache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// NewChannelPool creates a new channel-based connection pool: the default
// Pool backend, a simple buffered-channel free list. MaxSize caps only the
// number of idle connections retained between calls, not the number of
// connections in flight: Acquire never blocks waiting for capacity, it
// always dials a new connection past the idle cap, and put() closes
// whatever doesn't fit back into the free list instead of parking it.
func NewChannelPool(constructor PoolConstructor, maxSize int32) (Pool, error) {
	return &channelPool{
		constructor: constructor,
		maxSize:     maxSize,
		resources:   make(chan *channelResource, maxSize),
		stats:       *newPoolStatsCollector(),
	}, nil
}

// channelResource implements Resource for channel pool.
type channelResource struct {
	conn         *Connection
	pool         *channelPool
	creationTime time.Time
	lastUsedTime time.Time
}

func (r *channelResource) Value() *Connection {
	return r.conn
}

func (r *channelResource) Release() {
	if r.conn.Poisoned() {
		r.Destroy()
		return
	}
	r.lastUsedTime = time.Now()
	r.pool.put(r)
}

func (r *channelResource) ReleaseUnused() {
	// Don't update lastUsedTime for health checks
	r.pool.put(r)
}

func (r *channelResource) Destroy() {
	r.conn.Close()
	r.pool.removeResource()
}

func (r *channelResource) CreationTime() time.Time {
	return r.creationTime
}

func (r *channelResource) IdleDuration() time.Duration {
	return time.Since(r.lastUsedTime)
}

// channelPool is a simple, allocation-optimized connection pool using Go channels.
type channelPool struct {
	constructor PoolConstructor
	maxSize     int32

	mu        sync.Mutex
	resources chan *channelResource
	closed    bool

	stats poolStatsCollector
}

// Acquire takes an idle connection if one is sitting in the free list, or
// dials a new one otherwise. It never blocks on pool capacity: maxSize only
// bounds how many connections put() will retain as idle, so a caller is
// never parked waiting for one of them to free up.
func (p *channelPool) Acquire(ctx context.Context) (Resource, error) {
	p.stats.recordAcquire()

	select {
	case res := <-p.resources:
		p.stats.recordAcquireFromIdle()
		return res, nil
	default:
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.stats.recordAcquireError()
		return nil, context.Canceled
	}

	conn, err := p.constructor(ctx)
	if err != nil {
		p.stats.recordAcquireError()
		return nil, err
	}

	p.stats.recordCreate()
	p.stats.recordActivate()

	now := time.Now()
	return &channelResource{
		conn:         conn,
		pool:         p,
		creationTime: now,
		lastUsedTime: now,
	}, nil
}

func (p *channelPool) put(res *channelResource) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		res.conn.Close()
		return
	}
	p.mu.Unlock()

	select {
	case p.resources <- res:
		// Successfully returned to the idle free list.
		p.stats.recordRelease()
	default:
		// Idle cap reached: close this connection instead of parking it.
		res.conn.Close()
		p.removeResource()
	}
}

func (p *channelPool) removeResource() {
	p.stats.recordDestroy()
	// Every removed connection was an acquired one, so it leaves the
	// active count as well.
	atomic.AddInt32(&p.stats.stats.ActiveConns, -1)
}

func (p *channelPool) AcquireAllIdle() []Resource {
	var idle []Resource

	// Drain all idle connections from the channel
	for {
		select {
		case res := <-p.resources:
			idle = append(idle, res)
		default:
			return idle
		}
	}
}

func (p *channelPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	// Close all idle connections
	close(p.resources)
	for res := range p.resources {
		res.conn.Close()
	}
}

// Stats returns a snapshot of pool statistics.
func (p *channelPool) Stats() PoolStats {
	return p.stats.snapshot()
}
