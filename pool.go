package metacache

import (
	"context"
	"time"
)

// Resource represents a connection resource from the pool.
type Resource interface {
	// Value returns the underlying connection.
	Value() *Connection

	// Release returns the connection to the pool for reuse.
	Release()

	// ReleaseUnused returns the connection to the pool without marking it as used.
	// Used for health checks that don't actually use the connection.
	ReleaseUnused()

	// Destroy closes the connection and removes it from the pool.
	Destroy()

	// CreationTime returns when the connection was created.
	CreationTime() time.Time

	// IdleDuration returns how long the connection has been idle.
	IdleDuration() time.Duration
}

// Pool manages a pool of connections to a single server.
type Pool interface {
	// Acquire gets a connection from the pool, creating one if necessary.
	// Implementations follow the library's non-blocking acquisition policy:
	// an empty pool under MaxSize opens a new connection immediately rather
	// than parking the caller.
	Acquire(ctx context.Context) (Resource, error)

	// AcquireAllIdle acquires all idle connections from the pool.
	// Used for health checks and maintenance.
	AcquireAllIdle() []Resource

	// Close closes the pool and all connections.
	Close()

	// Stats returns a snapshot of pool statistics.
	Stats() PoolStats
}

// PoolConstructor builds a new Connection for a pool. Pools call it while
// under their own capacity accounting, never while holding a lock that
// would block other acquisitions.
type PoolConstructor func(ctx context.Context) (*Connection, error)

// NewPoolFunc builds a Pool given a constructor and a maximum size. Config
// exposes this as an extension point so a caller can swap in a different
// Pool backend than the two this package ships.
type NewPoolFunc func(constructor PoolConstructor, maxSize int32) (Pool, error)
