package metacache

import (
	"context"
	"net"
	"time"
)

// SocketFactory dials a new connection to a server address.
type SocketFactory func(ctx context.Context, addr string) (net.Conn, error)

// NewCircuitBreakerFunc builds a CircuitBreaker for a given server address.
// A nil NewCircuitBreaker field in Config disables circuit breaking.
type NewCircuitBreakerFunc func(addr string) CircuitBreaker

// Config configures a Router's dialing, pooling, circuit breaking, and
// mark-down behavior. The zero value is not usable directly; use
// DefaultConfig to get sensible defaults and override individual fields.
type Config struct {
	// MaxSize is the maximum number of connections a single server's Pool
	// will hold.
	MaxSize int32

	// SocketFactory dials new connections. Defaults to
	// (&net.Dialer{}).DialContext.
	SocketFactory SocketFactory

	// NewPool builds the Pool backend for each server. Defaults to
	// NewChannelPool.
	NewPool NewPoolFunc

	// NewCircuitBreaker builds a CircuitBreaker per server. Nil disables
	// circuit breaking entirely.
	NewCircuitBreaker NewCircuitBreakerFunc

	// BufferSize sizes each Connection's read/write buffers. Defaults to
	// DefaultBufferSize.
	BufferSize int

	// InitialPoolSize is the number of connections NewServerPool dials
	// eagerly before returning, so the first requests don't pay a dial
	// cost. Zero skips warm-up entirely.
	InitialPoolSize int32

	// ConnectionTimeout bounds how long writing a request onto the wire
	// may take before the connection is poisoned as timed out. Zero
	// disables the deadline.
	ConnectionTimeout time.Duration

	// RecvTimeout bounds how long reading a request's response may take.
	// Zero disables the deadline.
	RecvTimeout time.Duration

	// RequestTimeout bounds a single request's write+read round trip when
	// ConnectionTimeout and RecvTimeout are both unset. Kept for callers
	// that want one combined deadline rather than separate write/read
	// ones; ConnectionTimeout/RecvTimeout take precedence when set.
	RequestTimeout time.Duration

	// NoDelay disables Nagle's algorithm (TCP_NODELAY) on dialed TCP
	// connections. Defaults to true: meta protocol requests are small and
	// latency-sensitive, and coalescing them only adds delay.
	NoDelay *bool

	// MarkDownPeriod is how long a server stays marked down after a
	// connection failure before a single prober request is allowed
	// through again. Defaults to DefaultMarkDownPeriod.
	MarkDownPeriod time.Duration

	// GutterTTL caps the TTL used for writes and touches retried against
	// the gutter ring, per spec: gutter entries are meant to be
	// short-lived stand-ins, not durable replacements for a downed
	// primary.
	GutterTTL time.Duration

	// RaiseOnServerError, if true, makes Client operations return a
	// server-side error to the caller instead of reducing it to a miss
	// (reads) or false (writes). Router.Execute itself always returns the
	// error. Overridable per call via FailureHandling.
	RaiseOnServerError bool

	// TrackWriteFailures, if true, invokes OnWriteFailure hooks whenever
	// a write-class operation (set/delete/invalidate/delta) fails with a
	// server error. Touch is sent as an mg and is not tracked.
	TrackWriteFailures bool
}

// DefaultMarkDownPeriod is how long a server pool stays marked down
// between prober attempts when Config.MarkDownPeriod is unset.
const DefaultMarkDownPeriod = 10 * time.Second

// DefaultConfig returns a Config with the library's defaults: a channel
// pool, a plain net.Dialer, no circuit breaker, and a 10 second mark-down
// period.
func DefaultConfig() Config {
	return Config{
		MaxSize:            10,
		SocketFactory:      (&net.Dialer{}).DialContext,
		NewPool:            NewChannelPool,
		BufferSize:         DefaultBufferSize,
		MarkDownPeriod:     DefaultMarkDownPeriod,
		TrackWriteFailures: true,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxSize <= 0 {
		c.MaxSize = 10
	}
	if c.SocketFactory == nil {
		c.SocketFactory = (&net.Dialer{}).DialContext
	}
	if c.NewPool == nil {
		c.NewPool = NewChannelPool
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MarkDownPeriod <= 0 {
		c.MarkDownPeriod = DefaultMarkDownPeriod
	}
	if c.InitialPoolSize > c.MaxSize {
		c.InitialPoolSize = c.MaxSize
	}
	if c.NoDelay == nil {
		noDelay := true
		c.NoDelay = &noDelay
	}
	return c
}

// connectTimeout returns the deadline to apply while writing a request,
// preferring the split ConnectionTimeout over the combined RequestTimeout.
func (c Config) connectTimeout() time.Duration {
	if c.ConnectionTimeout > 0 || c.RecvTimeout > 0 {
		return c.ConnectionTimeout
	}
	return c.RequestTimeout
}

// recvTimeout returns the deadline to apply while reading a response,
// preferring the split RecvTimeout over the combined RequestTimeout.
func (c Config) recvTimeout() time.Duration {
	if c.ConnectionTimeout > 0 || c.RecvTimeout > 0 {
		return c.RecvTimeout
	}
	return c.RequestTimeout
}

// Option mutates a Config. NewRouter and NewClient take a Config, not
// options, so apply Options to a Config (such as one from DefaultConfig)
// before passing it in.
type Option func(*Config)

// WithMaxSize sets the per-server connection pool size.
func WithMaxSize(n int32) Option { return func(c *Config) { c.MaxSize = n } }

// WithSocketFactory overrides how connections are dialed.
func WithSocketFactory(f SocketFactory) Option { return func(c *Config) { c.SocketFactory = f } }

// WithPool overrides the Pool backend.
func WithPool(f NewPoolFunc) Option { return func(c *Config) { c.NewPool = f } }

// WithCircuitBreaker enables circuit breaking using f to build one
// CircuitBreaker per server.
func WithCircuitBreaker(f NewCircuitBreakerFunc) Option {
	return func(c *Config) { c.NewCircuitBreaker = f }
}

// WithRequestTimeout bounds every request's write+read round trip.
func WithRequestTimeout(d time.Duration) Option { return func(c *Config) { c.RequestTimeout = d } }

// WithInitialPoolSize sets how many connections NewServerPool dials
// eagerly at construction time.
func WithInitialPoolSize(n int32) Option { return func(c *Config) { c.InitialPoolSize = n } }

// WithConnectionTimeout bounds how long writing a request may take,
// independently of how long reading its response may take.
func WithConnectionTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionTimeout = d }
}

// WithRecvTimeout bounds how long reading a response may take,
// independently of how long writing the request may take.
func WithRecvTimeout(d time.Duration) Option { return func(c *Config) { c.RecvTimeout = d } }

// WithNoDelay toggles TCP_NODELAY on dialed connections.
func WithNoDelay(enabled bool) Option { return func(c *Config) { c.NoDelay = &enabled } }

// WithMarkDownPeriod overrides how long a failed server stays marked down.
func WithMarkDownPeriod(d time.Duration) Option { return func(c *Config) { c.MarkDownPeriod = d } }

// WithGutterTTL caps TTLs used for writes retried against the gutter ring.
func WithGutterTTL(d time.Duration) Option { return func(c *Config) { c.GutterTTL = d } }
