package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HMasataka/demoserve/pkg/livereload"
	"github.com/HMasataka/demoserve/pkg/static"
	payload "github.com/HMasataka/demoserve/payload/livereload"
	"github.com/HMasataka/logging"
	ws "github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMux(hub *livereload.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	for _, m := range Mounts(hub) {
		mux.Handle(m.Pattern, m.Handler)
	}
	return mux
}

func TestMounts(t *testing.T) {
	t.Run("live reload disabled", func(t *testing.T) {
		mounts := Mounts(nil)

		require.Len(t, mounts, 1)
		assert.Equal(t, HealthPath, mounts[0].Pattern)
	})

	t.Run("live reload enabled", func(t *testing.T) {
		hub := NewLiveReloadHub(livereload.DefaultHubOptions())
		defer hub.Close()

		mux := newMux(hub)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, livereload.ScriptPath, nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func dial(t *testing.T, srv *httptest.Server) *jsonrpc2.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + livereload.SocketPath
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	peer := jsonrpc2.NewConn(context.Background(), wsstream.NewObjectStream(conn),
		jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
			return nil, nil
		}))
	t.Cleanup(func() { peer.Close() })
	return peer
}

func TestHandler(t *testing.T) {
	hub := NewLiveReloadHub(livereload.DefaultHubOptions())
	srv := httptest.NewServer(newMux(hub))
	defer srv.Close()
	defer hub.Close()

	first := dial(t, srv)
	dial(t, srv)
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()

	t.Run("hello", func(t *testing.T) {
		var res payload.HelloResponse
		require.NoError(t, first.Call(ctx, payload.MethodHello, payload.HelloParams{Page: "/demo-interface.html"}, &res))
		assert.Equal(t, 2, res.Peers)
	})

	t.Run("hello without params", func(t *testing.T) {
		err := first.Call(ctx, payload.MethodHello, nil, nil)

		var rpcErr *jsonrpc2.Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
	})

	t.Run("ping", func(t *testing.T) {
		var res payload.PingResponse
		require.NoError(t, first.Call(ctx, payload.MethodPing, nil, &res))
		assert.Equal(t, payload.Pong, res)
	})

	t.Run("unknown", func(t *testing.T) {
		err := first.Call(ctx, "reboot", nil, nil)

		var rpcErr *jsonrpc2.Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
	})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHello_LogsRequestContext(t *testing.T) {
	var logBuf syncBuffer
	prev := slog.Default()
	slog.SetDefault(slog.New(logging.NewHandler(slog.NewTextHandler(&logBuf, nil))))
	t.Cleanup(func() { slog.SetDefault(prev) })

	hub := NewLiveReloadHub(livereload.DefaultHubOptions())
	srv := httptest.NewServer(static.NewAccessLog(io.Discard, newMux(hub)))
	defer srv.Close()
	defer hub.Close()

	peer := dial(t, srv)

	var res payload.HelloResponse
	require.NoError(t, peer.Call(context.Background(), payload.MethodHello, payload.HelloParams{Page: "/demo-interface.html"}, &res))

	require.Eventually(t, func() bool {
		return strings.Contains(logBuf.String(), `msg="browser attached"`)
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, logBuf.String(), "page=/demo-interface.html")
	assert.Contains(t, logBuf.String(), "remote=127.0.0.1")
}
