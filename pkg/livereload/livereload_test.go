package livereload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	payload "github.com/HMasataka/demoserve/payload/livereload"
	ws "github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()

	w := NewWatcher(root, WatcherOptions{
		Interval: 10 * time.Millisecond,
		Debounce: 100 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	<-w.Ready()
	return w
}

func nextChange(t *testing.T, w *Watcher) Change {
	t.Helper()

	select {
	case c, ok := <-w.Changes():
		require.True(t, ok)
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("no change reported")
		return Change{}
	}
}

func TestWatcher_BatchesChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "demo-interface.html"), []byte("v1"), 0o644))

	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "demo-interface.html"), []byte("version 2"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "js"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "js", "app.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "style.css"), []byte("y"), 0o644))

	c := nextChange(t, w)
	assert.Equal(t, []string{"demo-interface.html", "js/app.js", "style.css"}, c.Paths)

	require.NoError(t, os.Remove(filepath.Join(root, "style.css")))

	c = nextChange(t, w)
	assert.Equal(t, []string{"style.css"}, c.Paths)
}

func TestWatcher_SkipsHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "page.html"), []byte("x"), 0o644))

	c := nextChange(t, w)
	assert.Equal(t, []string{"page.html"}, c.Paths)
}

func TestWatcher_ClosesChanges(t *testing.T) {
	w := NewWatcher(t.TempDir(), DefaultWatcherOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	_, ok := <-w.Changes()
	assert.False(t, ok)
}

func TestWatcher_MissingRoot(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing"), DefaultWatcherOptions())

	assert.Error(t, w.Run(context.Background()))
}

func TestDiff(t *testing.T) {
	now := time.Now()
	prev := map[string]fileStat{
		"a": {modTime: now, size: 1},
		"b": {modTime: now, size: 1},
		"c": {modTime: now, size: 1},
	}
	next := map[string]fileStat{
		"a": {modTime: now, size: 1},
		"b": {modTime: now.Add(time.Second), size: 1},
		"d": {modTime: now, size: 1},
	}

	assert.ElementsMatch(t, []string{"b", "c", "d"}, diff(prev, next))
	assert.Empty(t, diff(prev, prev))
}

type notification struct {
	method string
	params json.RawMessage
}

func dialPeer(t *testing.T, url string, notes chan<- notification) *jsonrpc2.Conn {
	t.Helper()

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	require.NoError(t, err)

	h := jsonrpc2.HandlerWithError(func(ctx context.Context, c *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
		if req.Params != nil {
			notes <- notification{method: req.Method, params: *req.Params}
		}
		return nil, nil
	})

	peer := jsonrpc2.NewConn(context.Background(), wsstream.NewObjectStream(conn), h)
	t.Cleanup(func() { peer.Close() })
	return peer
}

func TestHub(t *testing.T) {
	hub := NewHub(HubOptions{
		NotifyTimeout: time.Second,
		Handler: jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
			if req.Method == payload.MethodPing {
				return payload.Pong, nil
			}
			return methodNotFound(ctx, conn, req)
		}),
	})
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	notes := make(chan notification, 4)
	peer := dialPeer(t, srv.URL, notes)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	t.Run("ping", func(t *testing.T) {
		var res payload.PingResponse
		require.NoError(t, peer.Call(context.Background(), payload.MethodPing, nil, &res))
		assert.Equal(t, payload.Pong, res)
	})

	t.Run("unknown method", func(t *testing.T) {
		err := peer.Call(context.Background(), "explode", nil, nil)

		var rpcErr *jsonrpc2.Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
	})

	t.Run("broadcast", func(t *testing.T) {
		n := hub.Broadcast(context.Background(), Change{Paths: []string{"demo-interface.html"}})
		assert.Equal(t, 1, n)

		select {
		case note := <-notes:
			assert.Equal(t, payload.MethodReload, note.method)

			var params payload.ReloadParams
			require.NoError(t, json.Unmarshal(note.params, &params))
			assert.Equal(t, []string{"demo-interface.html"}, params.Paths)
		case <-time.After(2 * time.Second):
			t.Fatal("no notification received")
		}
	})

	t.Run("disconnect", func(t *testing.T) {
		peer.Close()
		require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}

func TestHub_Follow(t *testing.T) {
	hub := NewHub(DefaultHubOptions())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	notes := make(chan notification, 4)
	dialPeer(t, srv.URL, notes)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	changes := make(chan Change, 1)
	changes <- Change{Paths: []string{"a.html"}}
	close(changes)

	hub.Follow(context.Background(), changes)

	select {
	case note := <-notes:
		assert.Equal(t, payload.MethodReload, note.method)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestHub_CloseRejectsPeers(t *testing.T) {
	hub := NewHub(DefaultHubOptions())
	require.NoError(t, hub.Close())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	dialPeer(t, srv.URL, make(chan notification, 1))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, hub.Count())
}

func TestScriptHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	ScriptHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ScriptPath, nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, string(body), SocketPath)
	assert.Contains(t, string(body), `"reload"`)
}
