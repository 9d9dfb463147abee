package livereload

import "net/http"

const (
	SocketPath = "/__livereload"
	ScriptPath = "/__livereload.js"
)

// clientScript is included by demo pages with
// <script src="/__livereload.js"></script>.
const clientScript = `(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var socket = new WebSocket(proto + location.host + "` + SocketPath + `");
  socket.onopen = function () {
    socket.send(JSON.stringify({jsonrpc: "2.0", id: 1, method: "hello", params: {page: location.pathname}}));
  };
  socket.onmessage = function (event) {
    var msg = JSON.parse(event.data);
    if (msg.method === "reload") {
      location.reload();
    }
  };
})();
`

func ScriptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write([]byte(clientScript))
	})
}
