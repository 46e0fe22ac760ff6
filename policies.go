package metacache

import "time"

// RecachePolicy configures recache-before-expiry behavior on Get: when an
// item's remaining TTL drops below TTL, the server grants one caller the
// W (win) flag to refresh the value while every other concurrent caller
// keeps getting the still-valid value uninterrupted.
type RecachePolicy struct {
	// TTL is the remaining-seconds threshold below which the server
	// starts granting win flags. Zero disables recache.
	TTL time.Duration
}

func (p RecachePolicy) enabled() bool { return p.TTL > 0 }

// StalePolicy configures serve-stale-on-delete behavior: a Delete call
// with Invalidate set and a positive TTL marks the item stale (with TTL as
// its replacement expiry) instead of removing it outright, so a subsequent
// Get can still return the old value, flagged stale, while one caller
// wins the right to repopulate it.
type StalePolicy struct {
	// Invalidate, when true and TTL is positive, makes Delete mark the
	// item stale rather than deleting it.
	Invalidate bool

	// TTL is the replacement TTL applied to the now-stale item.
	TTL time.Duration
}

// LeasePolicy configures vivify-on-miss behavior on GetOrLease: a miss
// triggers the server to reserve the key for TTL seconds and hand exactly
// one caller the win flag, so that caller (and only that caller) populates
// the value while every other concurrent miss retries with backoff until
// the winner's set lands or the retry budget runs out.
type LeasePolicy struct {
	// TTL is the vivify reservation lifetime.
	TTL time.Duration

	// InitialValue is not read by any Client operation: GetOrLease's
	// vivify request carries no initial value.
	InitialValue uint64

	// MissRetries caps how many times a losing caller retries before
	// giving up and returning a miss.
	MissRetries int

	// MissRetryWait is the sleep before the first retry.
	MissRetryWait time.Duration

	// WaitBackoffFactor multiplies the wait after each retry.
	WaitBackoffFactor float64

	// MissMaxRetryWait caps the backed-off wait.
	MissMaxRetryWait time.Duration
}

func (p LeasePolicy) enabled() bool { return p.TTL > 0 }

// nextWait returns the retry wait for attempt n (0-based), applying the
// backoff factor and cap.
func (p LeasePolicy) nextWait(n int) time.Duration {
	wait := p.MissRetryWait
	for i := 0; i < n; i++ {
		wait = time.Duration(float64(wait) * p.WaitBackoffFactor)
		if p.MissMaxRetryWait > 0 && wait > p.MissMaxRetryWait {
			wait = p.MissMaxRetryWait
			break
		}
	}
	if p.MissMaxRetryWait > 0 && wait > p.MissMaxRetryWait {
		wait = p.MissMaxRetryWait
	}
	return wait
}
