package metacache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-metacache/metacache/codec"
	"github.com/go-metacache/metacache/meta"
)

// Item is a decoded get result's payload plus the metadata the server
// returned alongside it.
type Item struct {
	Value      []byte
	ClientFlag uint32
	CAS        uint64
	TTL        time.Duration
	Stale      bool
}

// ClientOption configures a Client atop DefaultConfig/NewRouter's behavior.
type ClientOption func(*Client)

// WithValueCodec overrides the Codec used to encode/decode stored values.
// Defaults to codec.GobCodec.
func WithValueCodec(c codec.Codec) ClientOption { return func(cl *Client) { cl.codec = c } }

// WithRecachePolicy enables recache-before-expiry on Get.
func WithRecachePolicy(p RecachePolicy) ClientOption { return func(cl *Client) { cl.recache = p } }

// WithStalePolicy enables serve-stale-on-delete.
func WithStalePolicy(p StalePolicy) ClientOption { return func(cl *Client) { cl.stale = p } }

// WithLeasePolicy enables vivify-on-miss for GetOrLease.
func WithLeasePolicy(p LeasePolicy) ClientOption { return func(cl *Client) { cl.lease = p } }

// WithErrorOnTypeMismatch makes Get, GetWithTouch, GetCAS and GetOrLease
// return a *TypeMismatchError instead of silently reporting a miss when the
// codec cannot decode the stored value into the destination.
func WithErrorOnTypeMismatch(b bool) ClientOption {
	return func(cl *Client) { cl.errorOnTypeMismatch = b }
}

// Client is the high-level, user-facing API: set/get/delete/touch/delta
// plus the anti-dogpiling policies, layered over a Router. It borrows no
// state the Router doesn't already own, so a Client is cheap to build and
// safe to share across goroutines.
type Client struct {
	router *Router
	codec  codec.Codec

	recache             RecachePolicy
	stale               StalePolicy
	lease               LeasePolicy
	errorOnTypeMismatch bool

	stats *clientStatsCollector
}

// NewClient builds a Client routing to primaryAddrs, with gutterAddrs (if
// non-empty) as the fallback ring for a marked-down or failing primary.
func NewClient(primaryAddrs, gutterAddrs []string, config Config, opts ...ClientOption) (*Client, error) {
	router, err := NewRouter(primaryAddrs, gutterAddrs, config)
	if err != nil {
		return nil, err
	}

	c := &Client{
		router: router,
		codec:  codec.GobCodec{},
		stats:  newClientStatsCollector(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes every underlying server connection pool.
func (c *Client) Close() { c.router.Close() }

// OnWriteFailure registers fn to be called whenever a write-class operation
// fails with a server error and write-failure tracking is enabled.
func (c *Client) OnWriteFailure(fn func(Key)) { c.router.OnWriteFailure(fn) }

// Stats returns a snapshot of this Client's operation counters.
func (c *Client) Stats() ClientStats { return c.stats.snapshot() }

// ServerPoolStats returns a stats snapshot for every primary server pool.
func (c *Client) ServerPoolStats() []ServerPoolStats { return c.router.AllServerPoolStats() }

// executeRead runs req through the Router and reduces a transport-level or
// protocol-level server error to a Miss when raise_on_server_error is
// false for this call, per spec's single "server error" propagation rule.
func (c *Client) executeRead(ctx context.Context, key Key, req *meta.Request, decode func(*meta.Response) (ReadResult, error), fh *FailureHandling) (ReadResult, error) {
	resp, err := c.router.Execute(ctx, key, req, fh)
	if err != nil {
		if IsServerError(err) && !c.router.raiseOnServerError(fh) {
			return ReadResult{Kind: KindMiss}, nil
		}
		return ReadResult{}, err
	}

	result, err := decode(resp)
	if err != nil {
		if IsServerError(err) && !c.router.raiseOnServerError(fh) {
			return ReadResult{Kind: KindMiss}, nil
		}
		return ReadResult{}, err
	}
	return result, nil
}

// executeWrite mirrors executeRead for write-class commands: a silenced
// server error reduces to NotStored (false) rather than Miss.
func (c *Client) executeWrite(ctx context.Context, key Key, req *meta.Request, decode func(*meta.Response) (WriteResult, error), fh *FailureHandling) (WriteResult, error) {
	resp, err := c.router.Execute(ctx, key, req, fh)
	if err != nil {
		if IsServerError(err) && !c.router.raiseOnServerError(fh) {
			return WriteResult{Kind: KindNotStored}, nil
		}
		return WriteResult{}, err
	}

	result, err := decode(resp)
	if err != nil {
		// A protocol-level error (CLIENT_ERROR/SERVER_ERROR) surfaces here,
		// not as a Router.Execute error, since the connection itself read a
		// clean reply; Router never saw a failure to track on its own.
		if isWriteCommand(req.Command) && c.router.trackWriteFailures(fh) {
			c.router.notifyWriteFailure(key)
		}
		if IsServerError(err) && !c.router.raiseOnServerError(fh) {
			return WriteResult{Kind: KindNotStored}, nil
		}
		return WriteResult{}, err
	}
	return result, nil
}

// --- set family ---

// Set stores value under key unconditionally.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.set(ctx, key, value, ttl, meta.ModeSet, nil, nil)
}

// Add stores value under key only if it does not already exist.
func (c *Client) Add(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.set(ctx, key, value, ttl, meta.ModeAdd, nil, nil)
}

// Replace stores value under key only if it already exists.
func (c *Client) Replace(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.set(ctx, key, value, ttl, meta.ModeReplace, nil, nil)
}

// Append appends value to the existing item's bytes.
func (c *Client) Append(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.set(ctx, key, value, ttl, meta.ModeAppend, nil, nil)
}

// Prepend prepends value to the existing item's bytes.
func (c *Client) Prepend(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.set(ctx, key, value, ttl, meta.ModePrepend, nil, nil)
}

// SetCAS stores value under key only if its current CAS token equals cas.
func (c *Client) SetCAS(ctx context.Context, key string, value any, ttl time.Duration, cas uint64) (bool, error) {
	return c.set(ctx, key, value, ttl, meta.ModeSet, &cas, nil)
}

// Refill stores value under key only if it is currently absent, without
// raising write-failure hooks on the common NotStored outcome: it's meant
// to be called by a RecachePolicy or LeasePolicy winner repopulating a key
// someone else might have already refreshed first.
func (c *Client) Refill(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	noTrack := false
	return c.set(ctx, key, value, ttl, meta.ModeAdd, nil, &FailureHandling{TrackWriteFailures: &noTrack})
}

func (c *Client) set(ctx context.Context, key string, value any, ttl time.Duration, mode string, cas *uint64, fh *FailureHandling) (bool, error) {
	data, clientFlag, err := c.codec.Encode(value)
	if err != nil {
		return false, fmt.Errorf("metacache: encoding value for key %q: %w", key, err)
	}

	result, err := c.doSet(ctx, key, data, ttl, mode, clientFlag, cas, false, fh)
	if err != nil {
		c.stats.recordError()
		return false, err
	}

	if result.Kind == KindConflict && c.stale.Invalidate && cas != nil {
		result, err = c.doSet(ctx, key, data, ttl, mode, clientFlag, cas, true, fh)
		if err != nil {
			c.stats.recordError()
			return false, err
		}
	}

	if mode == meta.ModeAdd {
		c.stats.recordAdd()
	} else {
		c.stats.recordSet()
	}
	return result.Kind == KindSuccess, nil
}

func (c *Client) doSet(ctx context.Context, key string, data []byte, ttl time.Duration, mode string, clientFlag uint32, cas *uint64, markStale bool, fh *FailureHandling) (WriteResult, error) {
	k := NewKey(key)
	rf := RequestFlags{Mode: mode, ClientFlag: &clientFlag}
	if ttl > 0 {
		rf.TTL = &ttl
	}
	if cas != nil {
		rf.CAS = cas
	}
	if markStale {
		rf.Invalidate = true
	}

	req, decode := MetaSet(k, data, rf)
	return c.executeWrite(ctx, k, req, decode, fh)
}

// --- delete family ---

func (c *Client) deleteResult(ctx context.Context, key string, cas *uint64, fh *FailureHandling) (WriteResult, error) {
	k := NewKey(key)
	rf := RequestFlags{}
	if cas != nil {
		rf.CAS = cas
	}
	if c.stale.Invalidate && c.stale.TTL > 0 {
		ttl := c.stale.TTL
		rf.InvalidateTTL = &ttl
	}

	req, decode := MetaDelete(k, rf)
	return c.executeWrite(ctx, k, req, decode, fh)
}

// Delete removes key. It returns false if the key did not exist or its CAS
// token did not match.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	result, err := c.deleteResult(ctx, key, nil, nil)
	if err != nil {
		c.stats.recordError()
		return false, err
	}
	c.stats.recordDelete()
	return result.Kind == KindSuccess, nil
}

// DeleteCAS removes key only if its current CAS token equals cas.
func (c *Client) DeleteCAS(ctx context.Context, key string, cas uint64) (bool, error) {
	result, err := c.deleteResult(ctx, key, &cas, nil)
	if err != nil {
		c.stats.recordError()
		return false, err
	}
	c.stats.recordDelete()
	return result.Kind == KindSuccess, nil
}

// Invalidate removes key, treating an already-absent key as success (unlike
// Delete, which reports that case as false).
func (c *Client) Invalidate(ctx context.Context, key string) (bool, error) {
	result, err := c.deleteResult(ctx, key, nil, nil)
	if err != nil {
		c.stats.recordError()
		return false, err
	}
	c.stats.recordDelete()
	return result.Kind != KindConflict, nil
}

// Touch refreshes key's TTL without reading its value. It returns false if
// the key does not exist.
func (c *Client) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	k := NewKey(key)
	rf := RequestFlags{TTL: &ttl}
	req, decode := MetaGet(k, rf)

	result, err := c.executeRead(ctx, k, req, decode, nil)
	if err != nil {
		c.stats.recordError()
		return false, err
	}
	return result.IsSuccess(), nil
}

// --- get family ---

// getRaw performs a meta_get and reduces a recache-policy winner to a
// miss: the winner must repopulate the key via Refill, so it never sees
// the about-to-expire value every other concurrent caller still gets.
func (c *Client) getRaw(ctx context.Context, key string, touchTTL time.Duration, withCAS bool, fh *FailureHandling) (Item, bool, error) {
	k := NewKey(key)
	rf := RequestFlags{ReturnValue: true, ReturnClientFlag: true, ReturnTTL: true}
	if withCAS {
		rf.ReturnCAS = true
	}
	if touchTTL > 0 {
		rf.TTL = &touchTTL
	}
	if c.recache.enabled() {
		recache := c.recache.TTL
		rf.Recache = &recache
	}

	req, decode := MetaGet(k, rf)
	result, err := c.executeRead(ctx, k, req, decode, fh)
	if err != nil {
		return Item{}, false, err
	}
	if result.Flags.Win {
		c.stats.recordRecacheWin()
	}
	if result.IsMiss() || result.Flags.Win {
		return Item{}, false, nil
	}
	if result.Flags.Stale {
		c.stats.recordStaleServed()
	}

	return itemFromResult(result), true, nil
}

func itemFromResult(result ReadResult) Item {
	item := Item{
		Value:      result.Value,
		ClientFlag: result.Flags.ClientFlag,
		CAS:        result.Flags.CAS,
		Stale:      result.Flags.Stale,
	}
	if result.Flags.HasTTL {
		item.TTL = time.Duration(result.Flags.TTL) * time.Second
	}
	return item
}

func (c *Client) decodeInto(item Item, dest any) (bool, error) {
	if err := c.codec.Decode(item.Value, item.ClientFlag, dest); err != nil {
		if c.errorOnTypeMismatch {
			return false, &TypeMismatchError{ClientFlag: item.ClientFlag, Err: err}
		}
		return false, nil
	}
	return true, nil
}

// Get fetches key and decodes it into dest via the configured Codec. It
// reports false, with no error, on a cache miss.
func (c *Client) Get(ctx context.Context, key string, dest any) (bool, error) {
	return c.get(ctx, key, dest, 0, nil)
}

// GetWithTouch fetches key like Get, additionally refreshing its TTL.
func (c *Client) GetWithTouch(ctx context.Context, key string, dest any, touchTTL time.Duration) (bool, error) {
	return c.get(ctx, key, dest, touchTTL, nil)
}

func (c *Client) get(ctx context.Context, key string, dest any, touchTTL time.Duration, fh *FailureHandling) (bool, error) {
	item, found, err := c.getRaw(ctx, key, touchTTL, false, fh)
	if err != nil {
		c.stats.recordError()
		return false, err
	}
	if !found {
		c.stats.recordGet(false)
		return false, nil
	}

	ok, err := c.decodeInto(item, dest)
	c.stats.recordGet(ok)
	return ok, err
}

// GetCAS fetches key like Get and also returns its current CAS token, for
// a subsequent SetCAS/DeleteCAS.
func (c *Client) GetCAS(ctx context.Context, key string, dest any) (cas uint64, found bool, err error) {
	item, found, err := c.getRaw(ctx, key, 0, true, nil)
	if err != nil {
		c.stats.recordError()
		return 0, false, err
	}
	if !found {
		c.stats.recordGet(false)
		return 0, false, nil
	}

	ok, err := c.decodeInto(item, dest)
	c.stats.recordGet(ok)
	if err != nil || !ok {
		return 0, false, err
	}
	return item.CAS, true, nil
}

// MultiGet pipelines a meta_get for every key onto one connection per
// server and returns the decoded-metadata items keyed by input key. Keys
// that miss are absent from the result map. Any failure fails the whole
// call with an error and no results: a routing error, a connection or
// mark-down error on any of the servers involved, or an error reply for
// any single key. RaiseOnServerError is not consulted, and no gutter
// fallback is attempted.
func (c *Client) MultiGet(ctx context.Context, keys []string) (map[string]Item, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	ks := make([]Key, len(keys))
	reqs := make([]*meta.Request, len(keys))
	decoders := make([]func(*meta.Response) (ReadResult, error), len(keys))
	opaques := make([]string, len(keys))
	for i, key := range keys {
		k := NewKey(key)
		opaque := generateOpaque()
		rf := RequestFlags{ReturnValue: true, ReturnClientFlag: true, ReturnTTL: true, Opaque: opaque}
		if c.recache.enabled() {
			recache := c.recache.TTL
			rf.Recache = &recache
		}
		req, decode := MetaGet(k, rf)
		ks[i], reqs[i], decoders[i], opaques[i] = k, req, decode, opaque
	}

	resps, err := c.router.ExecuteBatch(ctx, ks, reqs)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}

	results := make(map[string]Item, len(keys))
	for i, key := range keys {
		result, err := decoders[i](resps[i])
		if err != nil {
			c.stats.recordError()
			return nil, fmt.Errorf("metacache: decoding multi_get response for key %q: %w", key, err)
		}
		if result.Flags.Opaque != "" && result.Flags.Opaque != opaques[i] {
			c.stats.recordError()
			return nil, fmt.Errorf("metacache: multi_get response for key %q carries opaque %q, expected %q (pipeline desynced)", key, result.Flags.Opaque, opaques[i])
		}
		if result.Flags.Win {
			c.stats.recordRecacheWin()
		}
		if result.IsMiss() || result.Flags.Win {
			c.stats.recordGet(false)
			continue
		}
		if result.Flags.Stale {
			c.stats.recordStaleServed()
		}
		c.stats.recordGet(true)
		results[key] = itemFromResult(result)
	}
	return results, nil
}

// GetOrLease fetches key, participating in the configured LeasePolicy: on
// a miss, one caller is handed the vivify win and must populate the key
// with Refill; every other concurrent caller retries with backoff until
// the winner's value lands or the retry budget is exhausted.
func (c *Client) GetOrLease(ctx context.Context, key string, dest any) (bool, error) {
	if !c.lease.enabled() {
		return c.Get(ctx, key, dest)
	}

	k := NewKey(key)
	for attempt := 0; ; attempt++ {
		vivify := c.lease.TTL
		rf := RequestFlags{ReturnValue: true, ReturnClientFlag: true, ReturnTTL: true, Vivify: &vivify}
		if c.recache.enabled() {
			recache := c.recache.TTL
			rf.Recache = &recache
		}

		req, decode := MetaGet(k, rf)
		result, err := c.executeRead(ctx, k, req, decode, nil)
		if err != nil {
			c.stats.recordError()
			return false, err
		}

		switch {
		case result.IsMiss(), result.Flags.Win:
			// Winner: must repopulate via Refill. A bare Miss (no vivify
			// reservation came back at all) counts as a win too.
			c.stats.recordLeaseWin()
			c.stats.recordGet(false)
			return false, nil
		case result.Flags.AlreadyWon:
			// Loser: someone else is populating it. Fall through to retry.
			c.stats.recordLeaseLoss()
		default:
			if result.Flags.Stale {
				c.stats.recordStaleServed()
			}
			ok, err := c.decodeInto(itemFromResult(result), dest)
			c.stats.recordGet(ok)
			return ok, err
		}

		if attempt >= c.lease.MissRetries {
			c.stats.recordGet(false)
			return false, nil
		}
		if err := sleepOrDone(ctx, c.lease.nextWait(attempt)); err != nil {
			return false, err
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// --- delta family ---

// Increment adds delta to key's numeric value. It returns false if key
// does not exist.
func (c *Client) Increment(ctx context.Context, key string, delta uint64) (bool, error) {
	_, ok, err := c.delta(ctx, key, delta, meta.ModeIncrement, nil, 0, false)
	return ok, err
}

// Decrement subtracts delta from key's numeric value, floored at zero per
// the meta protocol's arithmetic semantics.
func (c *Client) Decrement(ctx context.Context, key string, delta uint64) (bool, error) {
	_, ok, err := c.delta(ctx, key, delta, meta.ModeDecrement, nil, 0, false)
	return ok, err
}

// IncrementAndGet is Increment, also returning the item's new value.
func (c *Client) IncrementAndGet(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	return c.delta(ctx, key, delta, meta.ModeIncrement, nil, 0, true)
}

// DecrementAndGet is Decrement, also returning the item's new value.
func (c *Client) DecrementAndGet(ctx context.Context, key string, delta uint64) (uint64, bool, error) {
	return c.delta(ctx, key, delta, meta.ModeDecrement, nil, 0, true)
}

// IncrementInitialize increments key by delta, vivifying it to initial
// with ttl if it does not already exist, and returns its resulting value.
func (c *Client) IncrementInitialize(ctx context.Context, key string, delta, initial uint64, ttl time.Duration) (uint64, bool, error) {
	k := NewKey(key)
	rf := RequestFlags{Mode: meta.ModeIncrement, Delta: &delta, InitialValue: &initial, ReturnValue: true}
	if ttl > 0 {
		vivify := ttl
		rf.Vivify = &vivify
	}

	req, decode := MetaArithmetic(k, rf)
	result, err := c.executeRead(ctx, k, req, decode, nil)
	if err != nil {
		c.stats.recordError()
		return 0, false, err
	}
	c.stats.recordIncrement()
	if !result.IsSuccess() {
		return 0, false, nil
	}
	return parseArithmeticValue(key, result.Value)
}

func (c *Client) delta(ctx context.Context, key string, delta uint64, mode string, initial *uint64, vivifyTTL time.Duration, withValue bool) (uint64, bool, error) {
	k := NewKey(key)
	rf := RequestFlags{Mode: mode, Delta: &delta}
	if withValue {
		rf.ReturnValue = true
	}
	if initial != nil {
		rf.InitialValue = initial
	}
	if vivifyTTL > 0 {
		rf.Vivify = &vivifyTTL
	}

	req, decode := MetaArithmetic(k, rf)
	result, err := c.executeRead(ctx, k, req, decode, nil)
	if err != nil {
		c.stats.recordError()
		return 0, false, err
	}
	c.stats.recordIncrement()
	if !result.IsSuccess() {
		return 0, false, nil
	}
	if !withValue {
		return 0, true, nil
	}
	return parseArithmeticValue(key, result.Value)
}

func parseArithmeticValue(key string, data []byte) (uint64, bool, error) {
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("metacache: parsing arithmetic value for key %q: %w", key, err)
	}
	return v, true, nil
}
