package livereload

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	payload "github.com/HMasataka/demoserve/payload/livereload"
	ws "github.com/gorilla/websocket"
	"github.com/samber/lo"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"
)

type HubOptions struct {
	ReadBufferSize  int
	WriteBufferSize int
	NotifyTimeout   time.Duration
	// Handler answers requests sent by browsers. Nil rejects every method.
	Handler jsonrpc2.Handler
}

func DefaultHubOptions() HubOptions {
	return HubOptions{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		NotifyTimeout:   5 * time.Second,
	}
}

// Hub keeps one JSON-RPC peer per connected browser tab.
type Hub struct {
	options  HubOptions
	upgrader ws.Upgrader
	peers    map[*jsonrpc2.Conn]struct{}
	mutex    sync.RWMutex
	closed   bool
}

func NewHub(options HubOptions) *Hub {
	if options.Handler == nil {
		options.Handler = jsonrpc2.HandlerWithError(methodNotFound)
	}

	return &Hub{
		options: options,
		upgrader: ws.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		peers: make(map[*jsonrpc2.Conn]struct{}),
	}
}

func methodNotFound(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + req.Method}
}

// ServeWS upgrades the request and blocks until the peer disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection", "error", err)
		return
	}

	peer := jsonrpc2.NewConn(r.Context(), wsstream.NewObjectStream(conn), h.options.Handler)

	if !h.add(peer) {
		peer.Close()
		return
	}
	slog.Debug("live reload peer connected", slog.String("remote", r.RemoteAddr))

	<-peer.DisconnectNotify()

	h.remove(peer)
	slog.Debug("live reload peer disconnected", slog.String("remote", r.RemoteAddr))
}

func (h *Hub) add(peer *jsonrpc2.Conn) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.closed {
		return false
	}
	h.peers[peer] = struct{}{}
	return true
}

func (h *Hub) remove(peer *jsonrpc2.Conn) {
	h.mutex.Lock()
	delete(h.peers, peer)
	h.mutex.Unlock()
}

func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.peers)
}

// Broadcast notifies every peer and returns how many were reached.
// Peers that fail to receive the notification are dropped.
func (h *Hub) Broadcast(ctx context.Context, change Change) int {
	h.mutex.RLock()
	peers := lo.Keys(h.peers)
	h.mutex.RUnlock()

	params := payload.ReloadParams{Paths: change.Paths, At: time.Now()}

	sent := 0
	for _, peer := range peers {
		notifyCtx, cancel := context.WithTimeout(ctx, h.options.NotifyTimeout)
		err := peer.Notify(notifyCtx, payload.MethodReload, params)
		cancel()

		if err != nil {
			slog.Warn("failed to notify live reload peer", "error", err)
			h.remove(peer)
			peer.Close()
			continue
		}
		sent++
	}

	return sent
}

// Follow broadcasts every change until the channel closes or ctx ends.
func (h *Hub) Follow(ctx context.Context, changes <-chan Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			n := h.Broadcast(ctx, change)
			slog.Info("files changed", slog.Any("paths", change.Paths), slog.Int("peers", n))
		}
	}
}

// Close disconnects every peer and refuses new ones.
func (h *Hub) Close() error {
	h.mutex.Lock()
	h.closed = true
	peers := lo.Keys(h.peers)
	h.peers = make(map[*jsonrpc2.Conn]struct{})
	h.mutex.Unlock()

	for _, peer := range peers {
		peer.Close()
	}
	return nil
}
