package static

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// BindError reports that the listener could not be created.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

var ErrNotListening = errors.New("server is not listening")

// Mount is an extra handler served next to the file tree.
type Mount struct {
	Pattern string
	Handler http.Handler
}

type Options struct {
	Addr            string
	Root            string
	Stdout          io.Writer
	Stderr          io.Writer
	Mounts          []Mount
	ShutdownTimeout time.Duration
}

type Server struct {
	options  Options
	server   *http.Server
	listener net.Listener
	mutex    sync.Mutex
}

func New(options Options) *Server {
	if options.Stdout == nil {
		options.Stdout = io.Discard
	}
	if options.Stderr == nil {
		options.Stderr = io.Discard
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = 5 * time.Second
	}

	mux := http.NewServeMux()
	for _, m := range options.Mounts {
		mux.Handle(m.Pattern, m.Handler)
	}
	mux.Handle("/", NewFileHandler(options.Root))

	return &Server{
		options: options,
		server: &http.Server{
			Addr:              options.Addr,
			Handler:           NewAccessLog(options.Stderr, mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Listen binds the TCP listener without serving yet.
func (s *Server) Listen() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.options.Addr)
	if err != nil {
		return &BindError{Addr: s.options.Addr, Err: err}
	}

	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then shuts down
// gracefully and returns nil.
func (s *Server) Serve(ctx context.Context) error {
	s.mutex.Lock()
	ln := s.listener
	s.mutex.Unlock()

	if ln == nil {
		return ErrNotListening
	}

	fmt.Fprintln(s.options.Stdout, servingLine(ln.Addr()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.server.Close()
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	<-errCh
	return nil
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// servingLine mirrors the banner a stock static server prints once bound.
func servingLine(addr net.Addr) string {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return fmt.Sprintf("Serving HTTP on %s ...", addr)
	}

	urlHost := host
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		urlHost = "[" + host + "]"
	}

	return fmt.Sprintf("Serving HTTP on %s port %s (http://%s:%s/) ...", host, port, urlHost, port)
}
