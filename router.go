package metacache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/go-metacache/metacache/internal/ring"
	"github.com/go-metacache/metacache/meta"
)

// FailureHandling overrides a Router's default error-propagation behavior
// for a single call.
type FailureHandling struct {
	// RaiseOnServerError overrides Config.RaiseOnServerError when non-nil.
	RaiseOnServerError *bool

	// TrackWriteFailures overrides Config.TrackWriteFailures when non-nil,
	// for calls like refill that must not fire write-failure hooks on a
	// NotStored outcome.
	TrackWriteFailures *bool
}

// NewRouter builds a Router over the given primary server addresses, and,
// if gutterAddrs is non-empty, a gutter ring used as a fallback when the
// primary server for a key is marked down or returns a server error.
func NewRouter(primaryAddrs, gutterAddrs []string, config Config) (*Router, error) {
	config = config.withDefaults()

	if len(primaryAddrs) == 0 {
		return nil, ErrNoServers
	}

	primaryPools := make(map[string]*ServerPool, len(primaryAddrs))
	for _, addr := range primaryAddrs {
		sp, err := NewServerPool(addr, config)
		if err != nil {
			return nil, err
		}
		primaryPools[addr] = sp
	}

	r := &Router{
		config:       config,
		primaryRing:  ring.New(primaryAddrs),
		primaryPools: primaryPools,
	}

	if len(gutterAddrs) > 0 {
		gutterPools := make(map[string]*ServerPool, len(gutterAddrs))
		for _, addr := range gutterAddrs {
			sp, err := NewServerPool(addr, config)
			if err != nil {
				return nil, err
			}
			gutterPools[addr] = sp
		}
		r.gutterRing = ring.New(gutterAddrs)
		r.gutterPools = gutterPools
	}

	return r, nil
}

// Router routes requests to a ServerPool by consistent hashing on a key's
// routing token, with an optional gutter ring fallback for servers that
// are marked down or failing.
type Router struct {
	config Config

	primaryRing  *ring.Ring
	primaryPools map[string]*ServerPool

	gutterRing  *ring.Ring
	gutterPools map[string]*ServerPool

	mu              sync.RWMutex
	writeFailureFns []func(Key)
}

// OnWriteFailure registers a hook invoked, with the router's internal lock
// released, whenever a write-class operation fails with a server error and
// TrackWriteFailures is enabled.
func (r *Router) OnWriteFailure(fn func(Key)) {
	r.mu.Lock()
	r.writeFailureFns = append(r.writeFailureFns, fn)
	r.mu.Unlock()
}

func (r *Router) notifyWriteFailure(key Key) {
	r.mu.RLock()
	fns := append([]func(Key){}, r.writeFailureFns...)
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(key)
	}
}

// Route returns the primary ServerPool for routingToken.
func (r *Router) Route(routingToken []byte) (*ServerPool, error) {
	addr, ok := r.primaryRing.Lookup(routingToken)
	if !ok {
		return nil, ErrNoServers
	}
	sp, ok := r.primaryPools[addr]
	if !ok {
		return nil, ErrNoServers
	}
	return sp, nil
}

func (r *Router) routeGutter(routingToken []byte) (*ServerPool, bool) {
	if r.gutterRing == nil || r.gutterRing.Empty() {
		return nil, false
	}
	addr, ok := r.gutterRing.Lookup(routingToken)
	if !ok {
		return nil, false
	}
	sp, ok := r.gutterPools[addr]
	return sp, ok
}

// isWriteCommand reports whether cmd is a write-class operation for the
// purposes of write-failure tracking. Gutter TTL clamping does not use it:
// clampToGutterTTL applies to any request carrying a TTL flag.
func isWriteCommand(cmd meta.CmdType) bool {
	return cmd == meta.CmdSet || cmd == meta.CmdDelete || cmd == meta.CmdArithmetic
}

// Execute routes req by key, sends it to the primary server, and falls
// back to the gutter ring (if configured) when the primary is marked down
// or returns a server error.
func (r *Router) Execute(ctx context.Context, key Key, req *meta.Request, fh *FailureHandling) (*meta.Response, error) {
	sp, err := r.Route(key.RoutingToken)
	if err != nil {
		return nil, err
	}

	resp, err := sp.Execute(ctx, req)
	if err == nil {
		return resp, nil
	}

	if gutterSP, ok := r.routeGutter(key.RoutingToken); ok {
		gutterResp, gutterErr := gutterSP.Execute(ctx, clampToGutterTTL(req, r.config.GutterTTL))
		if gutterErr == nil {
			return gutterResp, nil
		}
		err = gutterErr
	}

	if isWriteCommand(req.Command) && r.trackWriteFailures(fh) {
		r.notifyWriteFailure(key)
	}

	return nil, err
}

func (r *Router) trackWriteFailures(fh *FailureHandling) bool {
	if fh != nil && fh.TrackWriteFailures != nil {
		return *fh.TrackWriteFailures
	}
	return r.config.TrackWriteFailures
}

// raiseOnServerError reports whether a server error reaching this call
// should propagate as an error (true) or be reduced by the caller to a
// soft Miss/false result (false), per fh's override or the Router's
// configured default.
func (r *Router) raiseOnServerError(fh *FailureHandling) bool {
	if fh != nil && fh.RaiseOnServerError != nil {
		return *fh.RaiseOnServerError
	}
	return r.config.RaiseOnServerError
}

// ExecuteBatch routes every request in reqs to the primary server for its
// corresponding key and pipelines same-server requests together. Keys
// routing to different servers are executed in independent pipelines;
// results are returned in the same order as keys.
func (r *Router) ExecuteBatch(ctx context.Context, keys []Key, reqs []*meta.Request) ([]*meta.Response, error) {
	if len(keys) != len(reqs) {
		panic("metacache: keys and reqs must be the same length")
	}

	byServer := map[*ServerPool][]int{}
	for i, key := range keys {
		sp, err := r.Route(key.RoutingToken)
		if err != nil {
			return nil, err
		}
		byServer[sp] = append(byServer[sp], i)
	}

	responses := make([]*meta.Response, len(reqs))
	for sp, indices := range byServer {
		serverReqs := make([]*meta.Request, len(indices))
		for i, idx := range indices {
			serverReqs[i] = reqs[idx]
		}
		serverResps, err := sp.ExecuteBatch(ctx, serverReqs)
		if err != nil {
			return nil, err
		}
		for i, idx := range indices {
			responses[idx] = serverResps[i]
		}
	}

	return responses, nil
}

// clampToGutterTTL returns req with its TTL flag (if any) lowered to at
// most gutterTTL seconds, leaving req untouched when gutterTTL is zero
// (no clamp configured) or the request carries no TTL flag.
func clampToGutterTTL(req *meta.Request, gutterTTL time.Duration) *meta.Request {
	if gutterTTL <= 0 {
		return req
	}
	token, ok := req.Flags.Get(meta.FlagTTL)
	if !ok {
		return req
	}
	ttlSeconds, err := strconv.Atoi(token)
	if err != nil || ttlSeconds <= int(gutterTTL.Seconds()) {
		return req
	}

	clamped := &meta.Request{Command: req.Command, Key: req.Key, Data: req.Data}
	clamped.Flags = make(meta.Flags, len(req.Flags))
	copy(clamped.Flags, req.Flags)
	for i, f := range clamped.Flags {
		if f.Type == meta.FlagTTL {
			clamped.Flags[i].Token = strconv.Itoa(int(gutterTTL.Seconds()))
		}
	}
	return clamped
}

// Close closes every server pool the Router owns.
func (r *Router) Close() {
	for _, sp := range r.primaryPools {
		sp.Close()
	}
	for _, sp := range r.gutterPools {
		sp.Close()
	}
}

// AllServerPoolStats returns a stats snapshot for every primary server pool.
func (r *Router) AllServerPoolStats() []ServerPoolStats {
	stats := make([]ServerPoolStats, 0, len(r.primaryPools))
	for _, sp := range r.primaryPools {
		stats = append(stats, sp.Stats())
	}
	return stats
}
