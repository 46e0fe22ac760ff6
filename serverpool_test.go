package metacache

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-metacache/metacache/internal/testutils"
	"github.com/go-metacache/metacache/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connFromScript(script string) *Connection {
	mock := testutils.NewConnectionMock(script)
	return &Connection{Conn: mock, Reader: bufio.NewReader(mock), Writer: bufio.NewWriter(mock)}
}

func newTestServerPool(t *testing.T, constructor PoolConstructor) *ServerPool {
	t.Helper()
	pool, err := NewChannelPool(constructor, 5)
	require.NoError(t, err)
	return &ServerPool{addr: "test:11211", pool: pool, markDown: &markDownState{period: 50 * time.Millisecond}}
}

func TestServerPool_ExecuteSuccess(t *testing.T) {
	sp := newTestServerPool(t, func(ctx context.Context) (*Connection, error) {
		return connFromScript("HD\r\n"), nil
	})

	resp, err := sp.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "foo", nil))
	require.NoError(t, err)
	assert.Equal(t, meta.StatusHD, resp.Status)
}

func TestServerPool_MarksDownOnDialFailure(t *testing.T) {
	dialErr := errors.New("dial refused")
	sp := newTestServerPool(t, func(ctx context.Context) (*Connection, error) {
		return nil, dialErr
	})

	_, err := sp.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "foo", nil))
	require.Error(t, err)

	// Marked down: the next call is the single prober let through this
	// window, so it reaches the constructor and fails with the dial error.
	_, err = sp.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "foo", nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrServerMarkedDown)

	// The prober slot is taken: every further call in the window fails fast
	// without reaching the constructor.
	_, err = sp.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "foo", nil))
	assert.ErrorIs(t, err, ErrServerMarkedDown)
}

func TestServerPool_ProberAllowedAfterWindow(t *testing.T) {
	calls := 0
	sp := newTestServerPool(t, func(ctx context.Context) (*Connection, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return connFromScript("HD\r\n"), nil
	})

	_, err := sp.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "foo", nil))
	require.Error(t, err)

	time.Sleep(60 * time.Millisecond)

	resp, err := sp.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "foo", nil))
	require.NoError(t, err)
	assert.Equal(t, meta.StatusHD, resp.Status)
}

func TestServerPool_DestroysConnectionOnParseError(t *testing.T) {
	sp := newTestServerPool(t, func(ctx context.Context) (*Connection, error) {
		return connFromScript("VA notanumber\r\n"), nil
	})

	_, err := sp.Execute(context.Background(), meta.NewRequest(meta.CmdGet, "foo", nil))
	assert.Error(t, err)
}

func TestNewServerPool_WarmsUpInitialPoolSize(t *testing.T) {
	var dials int32
	config := DefaultConfig()
	config.MaxSize = 5
	config.InitialPoolSize = 3
	config.SocketFactory = func(ctx context.Context, addr string) (net.Conn, error) {
		atomic.AddInt32(&dials, 1)
		return testutils.NewConnectionMock(""), nil
	}

	sp, err := NewServerPool("test:11211", config)
	require.NoError(t, err)
	t.Cleanup(sp.Close)

	assert.Equal(t, int32(3), atomic.LoadInt32(&dials))
	assert.Equal(t, int32(3), sp.pool.Stats().IdleConns)
}

var _ net.Conn = (*testutils.ConnectionMock)(nil)
