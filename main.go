// entry point of the application
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"ytbatch/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// the first interrupt is reported by the run; the second one kills the process
	context.AfterFunc(ctx, stop)

	root := cli.NewRootCommand(cli.Options{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Environ: os.Environ(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("ytbatch failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
