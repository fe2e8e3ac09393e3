package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fs1diag/internal/config"
	"fs1diag/internal/listener"
	"fs1diag/internal/logger"
	"fs1diag/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logger.New(cfg.LogLevel)
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(db, cfg, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("mail listener started")
	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
