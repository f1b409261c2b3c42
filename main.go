package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

var App *ChainbotApp

func main() {
	App = initApp()

	// cancel any running external tool on SIGINT/SIGTERM - a bootstrap is never resumed, it just stops
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := App.cliCmd.Run(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("Error", "msg", err)
		os.Exit(1)
	}
}
