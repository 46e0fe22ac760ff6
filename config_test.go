package metacache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_WithDefaults_NoDelayDefaultsToTrue(t *testing.T) {
	c := Config{}.withDefaults()
	assert.NotNil(t, c.NoDelay)
	assert.True(t, *c.NoDelay)
}

func TestConfig_WithDefaults_InitialPoolSizeCappedAtMaxSize(t *testing.T) {
	c := Config{MaxSize: 3, InitialPoolSize: 10}.withDefaults()
	assert.Equal(t, int32(3), c.InitialPoolSize)
}

func TestConfig_SplitTimeouts_TakePrecedenceOverRequestTimeout(t *testing.T) {
	c := Config{
		RequestTimeout:    5 * time.Second,
		ConnectionTimeout: 1 * time.Second,
		RecvTimeout:       2 * time.Second,
	}
	assert.Equal(t, 1*time.Second, c.connectTimeout())
	assert.Equal(t, 2*time.Second, c.recvTimeout())
}

func TestConfig_RequestTimeout_UsedWhenSplitTimeoutsUnset(t *testing.T) {
	c := Config{RequestTimeout: 5 * time.Second}
	assert.Equal(t, 5*time.Second, c.connectTimeout())
	assert.Equal(t, 5*time.Second, c.recvTimeout())
}

func TestConfig_WithNoDelay_OverridesDefault(t *testing.T) {
	c := Config{}
	WithNoDelay(false)(&c)
	c = c.withDefaults()
	assert.False(t, *c.NoDelay)
}
