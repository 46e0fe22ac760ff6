package metacache

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-metacache/metacache/internal/ring"
	"github.com/go-metacache/metacache/internal/testutils"
	"github.com/go-metacache/metacache/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptedSocketFactory(script string) SocketFactory {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return testutils.NewConnectionMock(script), nil
	}
}

func failingSocketFactory(err error) SocketFactory {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return nil, err
	}
}

func TestRouter_NoServersIsError(t *testing.T) {
	_, err := NewRouter(nil, nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNoServers)
}

func TestRouter_RouteUnknownKeyStillResolves(t *testing.T) {
	config := DefaultConfig()
	config.SocketFactory = scriptedSocketFactory("HD\r\n")
	router, err := NewRouter([]string{"a:1", "b:1", "c:1"}, nil, config)
	require.NoError(t, err)
	t.Cleanup(router.Close)

	sp, err := router.Route([]byte("any-key"))
	require.NoError(t, err)
	assert.NotNil(t, sp)
}

func TestRouter_FallsBackToGutterOnPrimaryFailure(t *testing.T) {
	primaryConfig := DefaultConfig()
	primaryConfig.SocketFactory = failingSocketFactory(errors.New("dial refused"))
	primarySP, err := NewServerPool("primary:1", primaryConfig)
	require.NoError(t, err)

	gutterConfig := DefaultConfig()
	gutterConfig.SocketFactory = scriptedSocketFactory("HD\r\n")
	gutterSP, err := NewServerPool("gutter:1", gutterConfig)
	require.NoError(t, err)

	router := &Router{
		config:       Config{GutterTTL: 30 * time.Second}.withDefaults(),
		primaryRing:  ring.New([]string{"primary:1"}),
		primaryPools: map[string]*ServerPool{"primary:1": primarySP},
		gutterRing:   ring.New([]string{"gutter:1"}),
		gutterPools:  map[string]*ServerPool{"gutter:1": gutterSP},
	}
	t.Cleanup(router.Close)

	resp, err := router.Execute(context.Background(), NewKey("foo"), meta.NewRequest(meta.CmdGet, "foo", nil), nil)
	require.NoError(t, err)
	assert.Equal(t, meta.StatusHD, resp.Status)
}

func TestRouter_WriteFailureHookFiresOnServerError(t *testing.T) {
	config := DefaultConfig()
	config.SocketFactory = failingSocketFactory(errors.New("dial refused"))
	router, err := NewRouter([]string{"primary:1"}, nil, config)
	require.NoError(t, err)
	t.Cleanup(router.Close)

	var gotKey Key
	fired := make(chan struct{}, 1)
	router.OnWriteFailure(func(k Key) {
		gotKey = k
		fired <- struct{}{}
	})

	_, err = router.Execute(context.Background(), NewKey("foo"), meta.NewRequest(meta.CmdSet, "foo", []byte("v")), nil)
	require.Error(t, err)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("write failure hook never fired")
	}
	assert.Equal(t, "foo", gotKey.String())
}

func TestRouter_WriteFailureHookSkipsReadCommands(t *testing.T) {
	config := DefaultConfig()
	config.SocketFactory = failingSocketFactory(errors.New("dial refused"))
	router, err := NewRouter([]string{"primary:1"}, nil, config)
	require.NoError(t, err)
	t.Cleanup(router.Close)

	fired := false
	router.OnWriteFailure(func(Key) { fired = true })

	_, err = router.Execute(context.Background(), NewKey("foo"), meta.NewRequest(meta.CmdGet, "foo", nil), nil)
	require.Error(t, err)
	assert.False(t, fired)
}

func TestClampToGutterTTL(t *testing.T) {
	req := meta.NewRequest(meta.CmdSet, "foo", []byte("v")).AddTTL(120)

	clamped := clampToGutterTTL(req, 30*time.Second)
	tok, ok := clamped.Flags.Get(meta.FlagTTL)
	require.True(t, ok)
	assert.Equal(t, "30", tok)

	// Original request is untouched.
	tok, ok = req.Flags.Get(meta.FlagTTL)
	require.True(t, ok)
	assert.Equal(t, "120", tok)
}

func TestClampToGutterTTL_NoopBelowCap(t *testing.T) {
	req := meta.NewRequest(meta.CmdSet, "foo", []byte("v")).AddTTL(10)
	clamped := clampToGutterTTL(req, 30*time.Second)
	assert.Same(t, req, clamped)
}

func TestRouter_ExecuteBatchPartitionsByServer(t *testing.T) {
	config := DefaultConfig()
	config.SocketFactory = scriptedSocketFactory("HD\r\nHD\r\nHD\r\n")
	router, err := NewRouter([]string{"only:1"}, nil, config)
	require.NoError(t, err)
	t.Cleanup(router.Close)

	keys := []Key{NewKey("a"), NewKey("b"), NewKey("c")}
	reqs := []*meta.Request{
		meta.NewRequest(meta.CmdGet, "a", nil),
		meta.NewRequest(meta.CmdGet, "b", nil),
		meta.NewRequest(meta.CmdGet, "c", nil),
	}

	resps, err := router.ExecuteBatch(context.Background(), keys, reqs)
	require.NoError(t, err)
	require.Len(t, resps, 3)
	for _, resp := range resps {
		assert.Equal(t, meta.StatusHD, resp.Status)
	}
}
