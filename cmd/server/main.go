package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/HMasataka/demoserve/internal/launcher"
	"github.com/HMasataka/demoserve/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	port := flag.Int("port", 0, "port to listen on (overrides config)")
	root := flag.String("root", "", "directory to serve (overrides config)")
	liveReload := flag.Bool("livereload", false, "reload open pages when files change")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *root != "" {
		cfg.Server.Root = *root
	}
	if *liveReload {
		cfg.LiveReload.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	slog.SetDefault(cfg.NewLogger(os.Stderr))
	slog.Debug("starting", slog.String("addr", cfg.Addr()), slog.String("root", cfg.Server.Root), slog.Bool("livereload", cfg.LiveReload.Enabled))

	ctx, stop := signal.NotifyContext(context.Background(), launcher.TerminationSignals...)

	err := launcher.Run(ctx, launcher.Options{
		Config: cfg,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	stop()

	os.Exit(launcher.ExitCode(os.Stderr, err))
}
