package launcher

import (
	"fmt"
	"io"
)

// Banner writes the startup instructions shown before the server binds.
func Banner(w io.Writer, url string) error {
	_, err := fmt.Fprintf(w, "🚀 Starting demo server...\n\n📱 Open in your browser:\n   %s\n\nPress Ctrl+C to stop\n\n", url)
	return err
}
