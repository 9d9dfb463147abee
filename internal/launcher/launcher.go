package launcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/HMasataka/demoserve/internal/handler"
	"github.com/HMasataka/demoserve/pkg/config"
	"github.com/HMasataka/demoserve/pkg/livereload"
	"github.com/HMasataka/demoserve/pkg/static"
)

const interruptMessage = "\nKeyboard interrupt received, exiting."

type Options struct {
	Config config.Config
	Stdout io.Writer
	Stderr io.Writer
}

// DefaultOptions serves the working directory on port 8000.
func DefaultOptions() Options {
	return Options{
		Config: config.Default(),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run prints the banner, then serves until ctx is cancelled or the server
// fails. A cancelled ctx is a normal stop and returns nil.
func Run(ctx context.Context, options Options) error {
	cfg := options.Config

	if err := Banner(options.Stdout, cfg.BrowserURL()); err != nil {
		return err
	}

	var hub *livereload.Hub
	if cfg.LiveReload.Enabled {
		hub = handler.NewLiveReloadHub(livereload.DefaultHubOptions())
		defer hub.Close()
	}

	srv := static.New(static.Options{
		Addr:            cfg.Addr(),
		Root:            cfg.Server.Root,
		Stdout:          options.Stdout,
		Stderr:          options.Stderr,
		Mounts:          handler.Mounts(hub),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Std(),
	})

	if err := srv.Listen(); err != nil {
		return err
	}

	var watcher *livereload.Watcher
	if hub != nil {
		watcher = livereload.NewWatcher(cfg.Server.Root, livereload.WatcherOptions{
			Interval: cfg.LiveReload.Interval.Std(),
			Debounce: cfg.LiveReload.Debounce.Std(),
		})
	}

	if err := serve(ctx, srv, hub, watcher); err != nil {
		return err
	}

	if ctx.Err() != nil {
		fmt.Fprintln(options.Stdout, interruptMessage)
	}

	return nil
}

type server interface {
	Serve(ctx context.Context) error
}

// serve runs srv with the live reload watcher alongside and returns only
// after the watcher and the hub follower have stopped.
func serve(ctx context.Context, srv server, hub *livereload.Hub, watcher *livereload.Watcher) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if hub != nil && watcher != nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := watcher.Run(ctx); err != nil {
				slog.Error("live reload watcher stopped", "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			hub.Follow(ctx, watcher.Changes())
		}()
	}

	err := srv.Serve(ctx)
	cancel()
	wg.Wait()
	return err
}

// ExitCode prints err to w and returns the process exit status.
func ExitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}

	fmt.Fprintf(w, "demoserve: %v\n", err)
	return 1
}
