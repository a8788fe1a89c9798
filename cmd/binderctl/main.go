package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/codyseavey/tcg-binder/cmd/binderctl/cmd"
	"github.com/codyseavey/tcg-binder/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
