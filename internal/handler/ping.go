package handler

import (
	"context"
	"log/slog"

	payload "github.com/HMasataka/demoserve/payload/livereload"
	"github.com/sourcegraph/jsonrpc2"
)

func (h *Handler) Ping(ctx context.Context, conn *jsonrpc2.Conn, request *jsonrpc2.Request) {
	if request.Notif {
		return
	}
	if err := conn.Reply(ctx, request.ID, payload.Pong); err != nil {
		slog.Error("failed to send pong", "error", err)
	}
}
