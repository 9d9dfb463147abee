package launcher

import (
	"os"
	"syscall"
)

// TerminationSignals stop the server. Ctrl+C delivers SIGINT.
var TerminationSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
}
