package handler

import (
	"net/http"

	"github.com/HMasataka/demoserve/pkg/livereload"
	"github.com/HMasataka/demoserve/pkg/static"
)

const HealthPath = "/healthz"

func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// NewLiveReloadHub builds a hub whose browsers are answered by Handler.
func NewLiveReloadHub(options livereload.HubOptions) *livereload.Hub {
	h := &Handler{}
	options.Handler = h

	hub := livereload.NewHub(options)
	h.peers = hub
	return hub
}

// Mounts returns the routes served next to the file tree. hub may be nil
// when live reload is disabled.
func Mounts(hub *livereload.Hub) []static.Mount {
	mounts := []static.Mount{
		{Pattern: HealthPath, Handler: http.HandlerFunc(Health)},
	}

	if hub != nil {
		mounts = append(mounts,
			static.Mount{Pattern: livereload.SocketPath, Handler: http.HandlerFunc(hub.ServeWS)},
			static.Mount{Pattern: livereload.ScriptPath, Handler: livereload.ScriptHandler()},
		)
	}

	return mounts
}
