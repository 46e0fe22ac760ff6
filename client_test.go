package metacache

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-metacache/metacache/codec"
	"github.com/go-metacache/metacache/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, script string, opts ...ClientOption) *Client {
	t.Helper()
	config := DefaultConfig()
	config.MaxSize = 1
	config.SocketFactory = func(ctx context.Context, addr string) (net.Conn, error) {
		return testutils.NewConnectionMock(script), nil
	}
	opts = append([]ClientOption{WithValueCodec(codec.BytesCodec{})}, opts...)
	client, err := NewClient([]string{"127.0.0.1:11211"}, nil, config, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClient_SetThenGet(t *testing.T) {
	client := newTestClient(t, "HD\r\n"+"VA 5 f2\r\nhello\r\n")

	ok, err := client.Set(context.Background(), "foo", "hello", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	var got string
	found, err := client.Get(context.Background(), "foo", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", got)
}

func TestClient_GetMiss(t *testing.T) {
	client := newTestClient(t, "EN\r\n")

	var got string
	found, err := client.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_GetRecacheWinnerSeesMiss(t *testing.T) {
	client := newTestClient(t, "VA 5 f2 W\r\nhello\r\n", WithRecachePolicy(RecachePolicy{TTL: 30}))

	var got string
	found, err := client.Get(context.Background(), "near-expiry", &got)
	require.NoError(t, err)
	assert.False(t, found, "recache winner must see a miss so it repopulates")
}

func TestClient_DeleteAndInvalidate(t *testing.T) {
	client := newTestClient(t, "HD\r\n"+"NF\r\n")

	ok, err := client.Delete(context.Background(), "foo")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.Invalidate(context.Background(), "gone")
	require.NoError(t, err)
	assert.True(t, ok, "invalidate treats an absent key as success")
}

func TestClient_DeleteWithStalePolicySendsSingleInvalidateTTLToken(t *testing.T) {
	mock := testutils.NewConnectionMock("HD\r\n")
	config := DefaultConfig()
	config.MaxSize = 1
	config.SocketFactory = func(ctx context.Context, addr string) (net.Conn, error) { return mock, nil }

	client, err := NewClient([]string{"127.0.0.1:11211"}, nil, config,
		WithValueCodec(codec.BytesCodec{}),
		WithStalePolicy(StalePolicy{Invalidate: true, TTL: 30 * time.Second}),
	)
	require.NoError(t, err)
	t.Cleanup(client.Close)

	ok, err := client.Delete(context.Background(), "foo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, mock.GetWrittenRequest(), " I30\r\n")
	assert.NotContains(t, mock.GetWrittenRequest(), " T30 I\r\n")
}

func TestClient_DeleteOnMissingKeyIsFalse(t *testing.T) {
	client := newTestClient(t, "NF\r\n")

	ok, err := client.Delete(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_IncrementAndGet(t *testing.T) {
	client := newTestClient(t, "VA 2\r\n42\r\n")

	v, ok, err := client.IncrementAndGet(context.Background(), "counter", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(42), v)
}

func TestClient_GetOrLease_LoserRetriesThenSucceeds(t *testing.T) {
	lease := LeasePolicy{TTL: 30, MissRetries: 2, MissRetryWait: 1, WaitBackoffFactor: 1}
	script := "VA 0 Z\r\n\r\n" + "VA 5 f2\r\nhello\r\n"
	client := newTestClient(t, script, WithLeasePolicy(lease))

	var got string
	found, err := client.GetOrLease(context.Background(), "new", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "hello", got)
}

func TestClient_GetOrLease_WinnerSeesMiss(t *testing.T) {
	lease := LeasePolicy{TTL: 30, MissRetries: 2, MissRetryWait: 1, WaitBackoffFactor: 1}
	client := newTestClient(t, "VA 0 W\r\n\r\n", WithLeasePolicy(lease))

	var got string
	found, err := client.GetOrLease(context.Background(), "new", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestClient_RefillDoesNotFireWriteFailureHookOnSuccess(t *testing.T) {
	client := newTestClient(t, "HD\r\n")

	var fired bool
	client.OnWriteFailure(func(Key) { fired = true })

	ok, err := client.Refill(context.Background(), "foo", "hello", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, fired)
}

func TestClient_MultiGet(t *testing.T) {
	client := newTestClient(t, "VA 3 f2\r\nfoo\r\n"+"EN\r\n")

	results, err := client.MultiGet(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Contains(t, results, "a")
	assert.Equal(t, []byte("foo"), results["a"].Value)
	assert.NotContains(t, results, "b")
}

func TestClient_Stats(t *testing.T) {
	client := newTestClient(t, "HD\r\n"+"EN\r\n")

	_, err := client.Set(context.Background(), "foo", "hello", 0)
	require.NoError(t, err)
	var got string
	_, err = client.Get(context.Background(), "foo", &got)
	require.NoError(t, err)

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.Sets)
	assert.Equal(t, uint64(1), stats.Gets)
	assert.Equal(t, uint64(1), stats.CacheMisses)
}

func TestClient_Stats_RecacheWinCountsSeparatelyFromMiss(t *testing.T) {
	client := newTestClient(t, "VA 5 f2 W\r\nhello\r\n", WithRecachePolicy(RecachePolicy{TTL: 30}))

	var got string
	_, err := client.Get(context.Background(), "near-expiry", &got)
	require.NoError(t, err)

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.CacheMisses)
	assert.Equal(t, uint64(1), stats.RecacheWins)
}

func TestClient_Stats_LeaseWinAndLoss(t *testing.T) {
	lease := LeasePolicy{TTL: 30, MissRetries: 2, MissRetryWait: 1, WaitBackoffFactor: 1}
	script := "VA 0 Z\r\n\r\n" + "VA 5 f2\r\nhello\r\n"
	client := newTestClient(t, script, WithLeasePolicy(lease))

	var got string
	found, err := client.GetOrLease(context.Background(), "new", &got)
	require.NoError(t, err)
	assert.True(t, found)

	stats := client.Stats()
	assert.Equal(t, uint64(1), stats.LeaseLosses)
	assert.Equal(t, uint64(0), stats.LeaseWins)
}
