package livereload

import "time"

// JSON-RPC methods spoken on the live reload socket.
const (
	MethodReload = "reload"
	MethodPing   = "ping"
	MethodHello  = "hello"
)

// ReloadParams is sent by the server as a notification when files change.
type ReloadParams struct {
	Paths []string  `json:"paths"`
	At    time.Time `json:"at"`
}

// HelloParams is sent by a browser after connecting.
type HelloParams struct {
	Page string `json:"page"`
}

type HelloResponse struct {
	Peers int `json:"peers"`
}

type PingResponse string

const Pong PingResponse = "pong"
