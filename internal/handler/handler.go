package handler

import (
	"context"
	"log/slog"

	payload "github.com/HMasataka/demoserve/payload/livereload"
	"github.com/sourcegraph/jsonrpc2"
)

// PeerCounter reports how many live reload peers are connected.
type PeerCounter interface {
	Count() int
}

func NewHandler(peers PeerCounter) *Handler {
	return &Handler{
		peers: peers,
	}
}

// Handler answers JSON-RPC requests sent by live reload browsers.
type Handler struct {
	peers PeerCounter
}

func (h *Handler) Handle(ctx context.Context, conn *jsonrpc2.Conn, request *jsonrpc2.Request) {
	switch request.Method {
	case payload.MethodHello:
		h.Hello(ctx, conn, request)
	case payload.MethodPing:
		h.Ping(ctx, conn, request)
	default:
		slog.Warn("unknown method", slog.String("method", request.Method))
		h.replyError(ctx, conn, request, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + request.Method})
	}
}

func (h *Handler) replyError(ctx context.Context, conn *jsonrpc2.Conn, request *jsonrpc2.Request, err *jsonrpc2.Error) {
	if request.Notif {
		return
	}
	if replyErr := conn.ReplyWithError(ctx, request.ID, err); replyErr != nil {
		slog.Error("failed to send error reply", "error", replyErr)
	}
}

var _ jsonrpc2.Handler = (*Handler)(nil)
