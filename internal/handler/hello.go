package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	payload "github.com/HMasataka/demoserve/payload/livereload"
	"github.com/HMasataka/logging"
	"github.com/sourcegraph/jsonrpc2"
)

func (h *Handler) Hello(ctx context.Context, conn *jsonrpc2.Conn, request *jsonrpc2.Request) {
	var args payload.HelloParams
	if request.Params == nil {
		h.replyError(ctx, conn, request, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "Invalid params"})
		return
	}
	if err := json.Unmarshal(*request.Params, &args); err != nil || args.Page == "" {
		h.replyError(ctx, conn, request, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "Invalid params"})
		return
	}

	if request.Notif {
		return
	}

	response := payload.HelloResponse{Peers: h.peers.Count()}
	if err := conn.Reply(ctx, request.ID, response); err != nil {
		slog.Error("failed to send hello response", "error", err)
		return
	}

	if logging.HasLoggingContext(ctx) {
		slog.InfoContext(ctx, "browser attached", slog.String("page", args.Page))
	} else {
		slog.Debug("browser attached", slog.String("page", args.Page))
	}
}
