package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/odvcencio/codecanvas/pkg/devserver"
)

func runDevServerCommand(args []string) error {
	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "config file path")
	bind := fs.String("bind", "", "listen address (overrides config)")
	secret := fs.String("secret", "", "JWT signing secret (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := devserver.Config{
		Bind:      a.cfg.DevServer.Bind,
		JWTSecret: a.cfg.DevServer.JWTSecret,
		Logger:    a.logger,
	}
	if *bind != "" {
		cfg.Bind = *bind
	}
	if *secret != "" {
		cfg.JWTSecret = *secret
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Dev server listening on %s\n", cfg.Bind)
	return devserver.New(cfg).Run(ctx)
}
