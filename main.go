package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/HMasataka/demoserve/internal/launcher"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), launcher.TerminationSignals...)

	err := launcher.Run(ctx, launcher.DefaultOptions())
	stop()

	os.Exit(launcher.ExitCode(os.Stderr, err))
}
