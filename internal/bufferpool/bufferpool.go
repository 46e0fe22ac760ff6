// Package bufferpool provides a sync.Pool-backed bytes.Buffer recycler,
// shared by the pipelined write path in the Executor.
package bufferpool

import (
	"bytes"
	"sync"
)

// Pool recycles *bytes.Buffer values of a given initial capacity.
type Pool struct {
	pool sync.Pool
}

// New creates a Pool whose buffers start with the given capacity.
func New(initialSize int) *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

// Get returns a reset, ready-to-use buffer.
func (p *Pool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put returns buf to the pool after resetting it. Callers must not retain
// buf after calling Put.
func (p *Pool) Put(buf *bytes.Buffer) {
	buf.Reset()
	p.pool.Put(buf)
}
