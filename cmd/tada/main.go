package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Makepad-fr/tada/internal/cli"
	"github.com/Makepad-fr/tada/internal/tui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Run(ctx, os.Args[1:], cli.Deps{RunTUI: runTUI})
	stop()
	os.Exit(code)
}

func runTUI(ctx context.Context, e *cli.Env) error {
	return tui.Run(ctx, tui.Deps{
		Session: e.Session,
		Auth:    e.Auth,
		Store:   e.Store,
		NewForm: e.NewForm,
		Filter:  e.Config.Filter(),
		Log:     e.Log,
	})
}
