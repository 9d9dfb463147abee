package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/HMasataka/demoserve/internal/launcher"
	"github.com/HMasataka/demoserve/internal/probe"
	"github.com/HMasataka/demoserve/pkg/config"
	"github.com/samber/lo"
)

func main() {
	cfg := probe.DefaultConfig()

	flag.IntVar(&cfg.Retry.Attempts, "attempts", cfg.Retry.Attempts, "attempts per target")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "targets probed in parallel")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per request timeout")
	flag.Parse()

	if cfg.Retry.Attempts < 1 {
		log.Fatalf("-attempts must be at least 1, got %d", cfg.Retry.Attempts)
	}

	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{config.Default().BrowserURL()}
	}

	ctx, stop := signal.NotifyContext(context.Background(), launcher.TerminationSignals...)
	defer stop()

	results := probe.NewClient(cfg).Check(ctx, targets)
	for _, r := range results {
		fmt.Println(r)
	}

	if !probe.AllHealthy(results) {
		log.Printf("%d of %d targets unhealthy", lo.CountBy(results, func(r probe.Result) bool { return !r.Healthy() }), len(results))
		stop()
		os.Exit(1)
	}
}
