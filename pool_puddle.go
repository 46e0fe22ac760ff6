package metacache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
)

// NewPuddlePool creates a puddle-backed connection pool: the alternative
// Pool backend, for callers who want puddle's acquire-wait metrics
// (EmptyAcquireCount, EmptyAcquireWaitTime) and are willing to size MaxSize
// generously so Acquire practically never blocks.
func NewPuddlePool(constructor PoolConstructor, maxSize int32) (Pool, error) {
	p := &puddlePool{}

	poolConfig := &puddle.Config[*Connection]{
		Constructor: func(ctx context.Context) (*Connection, error) {
			conn, err := constructor(ctx)
			if err == nil {
				p.createdConns.Add(1)
			}
			return conn, err
		},
		Destructor: func(c *Connection) {
			p.destroyedConns.Add(1)
			_ = c.Close()
		},
		MaxSize: maxSize,
	}

	pool, err := puddle.NewPool(poolConfig)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// puddlePool wraps puddle.Pool to implement our Pool interface.
type puddlePool struct {
	pool           *puddle.Pool[*Connection]
	createdConns   atomic.Int64
	destroyedConns atomic.Int64
}

func (p *puddlePool) Acquire(ctx context.Context) (Resource, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &puddleResource{res: res}, nil
}

func (p *puddlePool) AcquireAllIdle() []Resource {
	puddleResources := p.pool.AcquireAllIdle()
	resources := make([]Resource, len(puddleResources))
	for i, res := range puddleResources {
		resources[i] = &puddleResource{res: res}
	}
	return resources
}

func (p *puddlePool) Close() {
	p.pool.Close()
}

// Stats returns a snapshot of pool statistics by converting puddle's stats to our format.
func (p *puddlePool) Stats() PoolStats {
	s := p.pool.Stat()

	return PoolStats{
		TotalConns:        s.TotalResources(),
		IdleConns:         s.IdleResources(),
		ActiveConns:       s.AcquiredResources(),
		AcquireCount:      uint64(s.AcquireCount()),
		AcquireWaitCount:  uint64(s.EmptyAcquireCount()), // Acquires that had to wait (pool was empty)
		CreatedConns:      uint64(p.createdConns.Load()),
		DestroyedConns:    uint64(p.destroyedConns.Load()),
		AcquireErrors:     uint64(s.CanceledAcquireCount()),
		AcquireWaitTimeNs: uint64(s.EmptyAcquireWaitTime().Nanoseconds()),
	}
}

// puddleResource adapts *puddle.Resource[*Connection] to our Resource
// interface, inserting the poison check puddle itself has no notion of:
// a poisoned connection is always destroyed, never returned to puddle's
// idle set.
type puddleResource struct {
	res *puddle.Resource[*Connection]
}

func (r *puddleResource) Value() *Connection { return r.res.Value() }

func (r *puddleResource) Release() {
	if r.res.Value().Poisoned() {
		r.res.Destroy()
		return
	}
	r.res.Release()
}

func (r *puddleResource) ReleaseUnused() { r.res.ReleaseUnused() }
func (r *puddleResource) Destroy()       { r.res.Destroy() }
func (r *puddleResource) CreationTime() time.Time {
	return r.res.CreationTime()
}
func (r *puddleResource) IdleDuration() time.Duration {
	return r.res.IdleDuration()
}
