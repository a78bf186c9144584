package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"txmanager/internal/service/app"
	"txmanager/internal/service/client"
	"txmanager/internal/utils/log"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "Usage: client <node-url> <own-public-key> <recipient-public-key>")
		os.Exit(2)
	}
	nodeURL, from, to := os.Args[1], os.Args[2], os.Args[3]

	// the tui owns the terminal, so logs only go out when asked for
	if level := os.Getenv("TXCLIENT_LOG_LEVEL"); level != "" {
		if err := log.Init(level); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer log.Sync()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := app.NewApp(client.New(client.DefaultTimeout), nodeURL)
	go func() {
		<-ctx.Done()
		a.Stop()
	}()

	if err := a.Run(ctx, from, to); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
