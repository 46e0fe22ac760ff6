package metacache

import (
	"context"
	"fmt"

	"github.com/go-metacache/metacache/internal/bufferpool"
	"github.com/go-metacache/metacache/meta"
)

// BatchExecutor executes a batch of requests together, such that callers
// routing all of them to the same server can amortize the round trip.
// ServerPool implements it; Router.ExecuteBatch also takes the keys to
// route by, so Router does not.
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, reqs []*meta.Request) ([]*meta.Response, error)
}

var writeBufferPool = bufferpool.New(512)

// ExecuteBatch pipelines reqs onto a single connection: one buffered write
// carrying every request back to back, one flush, then one read per
// request in order. All requests in a batch must be safe to route to this
// ServerPool's server; the caller is responsible for partitioning by key
// before calling this.
//
// A parse error partway through the batch poisons the connection; every
// response from that point on, including ones already read, cannot be
// trusted to align with its request, so the whole batch is reported as a
// single error.
func (sp *ServerPool) ExecuteBatch(ctx context.Context, reqs []*meta.Request) ([]*meta.Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	if !sp.markDown.allow() {
		return nil, ErrServerMarkedDown
	}

	resource, err := sp.pool.Acquire(ctx)
	if err != nil {
		sp.markDown.recordFailure()
		return nil, &ConnectionError{Addr: sp.addr, Err: err}
	}
	conn := resource.Value()

	buf := writeBufferPool.Get()
	defer writeBufferPool.Put(buf)

	for _, req := range reqs {
		if err := meta.WriteRequest(buf, req); err != nil {
			resource.Release()
			return nil, fmt.Errorf("metacache: building pipelined request for key %q: %w", req.Key, err)
		}
	}

	if _, err := conn.Writer.Write(buf.Bytes()); err != nil {
		resource.Destroy()
		sp.markDown.recordFailure()
		return nil, &ConnectionError{Addr: sp.addr, Err: err}
	}
	if err := conn.Writer.Flush(); err != nil {
		resource.Destroy()
		sp.markDown.recordFailure()
		return nil, &ConnectionError{Addr: sp.addr, Err: err}
	}

	responses, err := meta.ReadResponseBatch(conn.Reader, len(reqs), false)
	if err != nil {
		resource.Destroy()
		sp.markDown.recordFailure()
		return nil, &ConnectionError{Addr: sp.addr, Err: err}
	}

	resource.Release()
	sp.markDown.recordSuccess()
	return responses, nil
}
