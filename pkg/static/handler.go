package static

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/HMasataka/logging"
	"github.com/samber/lo"
)

var allowedMethods = []string{http.MethodGet, http.MethodHead}

// NewFileHandler serves root read-only. Only GET and HEAD are supported.
func NewFileHandler(root string) http.Handler {
	files := http.FileServer(http.Dir(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !lo.Contains(allowedMethods, r.Method) {
			http.Error(w, fmt.Sprintf("Unsupported method (%q)", r.Method), http.StatusNotImplemented)
			return
		}
		files.ServeHTTP(w, r)
	})
}

const accessTimeLayout = "02/Jan/2006 15:04:05"

type accessLog struct {
	out   io.Writer
	mutex sync.Mutex
	next  http.Handler
	now   func() time.Time
}

// NewAccessLog writes one common-log line per request to out.
func NewAccessLog(out io.Writer, next http.Handler) http.Handler {
	return &accessLog{
		out:  out,
		next: next,
		now:  time.Now,
	}
}

func (a *accessLog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	// handlers further down, including live reload peers, log with the remote
	ctx := logging.WithValue(r.Context(), "remote", host)
	r = r.WithContext(ctx)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	a.next.ServeHTTP(rec, r)

	a.mutex.Lock()
	fmt.Fprintf(a.out, "%s - - [%s] \"%s %s %s\" %d -\n",
		host, a.now().Format(accessTimeLayout), r.Method, r.RequestURI, r.Proto, rec.status)
	a.mutex.Unlock()

	slog.DebugContext(ctx, "request served",
		slog.String("method", r.Method),
		slog.String("uri", r.RequestURI),
		slog.Int("status", rec.status),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack lets websocket upgrades pass through the access log.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	s.wroteHeader = true
	return hj.Hijack()
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
