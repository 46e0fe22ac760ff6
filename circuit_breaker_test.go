package metacache

import (
	"fmt"
	"testing"
	"time"

	"github.com/go-metacache/metacache/meta"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGoBreaker_StartsClosed(t *testing.T) {
	cb := NewGoBreaker(gobreaker.Settings{Name: "test"})
	assert.Equal(t, CircuitStateClosed, cb.State())
}

func TestGoBreaker_ExecuteSuccess(t *testing.T) {
	cb := NewGoBreaker(gobreaker.Settings{Name: "test"})

	resp, err := cb.Execute(func() (*meta.Response, error) {
		return &meta.Response{Status: meta.StatusHD}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, meta.StatusHD, resp.Status)
}

func TestGoBreaker_TripsOpenOnFailures(t *testing.T) {
	cb := NewGoBreaker(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	})

	for i := 0; i < 2; i++ {
		_, err := cb.Execute(func() (*meta.Response, error) {
			return nil, fmt.Errorf("boom")
		})
		require.Error(t, err)
	}

	assert.Equal(t, CircuitStateOpen, cb.State())

	_, err := cb.Execute(func() (*meta.Response, error) {
		return &meta.Response{Status: meta.StatusHD}, nil
	})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)

	var circuitErr *ErrCircuitOpen
	require.ErrorAs(t, err, &circuitErr)
	assert.Equal(t, "test", circuitErr.Addr)
	assert.True(t, IsServerError(err))
}

func TestNewGobreakerConfig(t *testing.T) {
	factory := NewGobreakerConfig(3, time.Minute, 10*time.Second)
	require.NotNil(t, factory)

	cb := factory("server1:11211")
	require.NotNil(t, cb)
	assert.Equal(t, CircuitStateClosed, cb.State())
}

func TestCircuitBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitStateClosed.String())
	assert.Equal(t, "half-open", CircuitStateHalfOpen.String())
	assert.Equal(t, "open", CircuitStateOpen.String())
}
