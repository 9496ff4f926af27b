package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storegate/internal/admin"
	"storegate/pkg/config"
	"storegate/pkg/db"
	"storegate/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	// Refuse to start without the access-control configuration. Running with
	// an empty doc secret would leave the documentation endpoints open.
	if err := cfg.Validate(); err != nil {
		log.Fatalw("config", "err", err)
	}

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	registry := admin.NewRegistry()
	for _, res := range []struct {
		entityType string
		label      string
		icon       string
	}{
		{"products", "Products", "package"},
		{"orders", "Orders", "shopping-cart"},
		{"customers", "Customers", "users"},
	} {
		ctrl := admin.NewEntityController(pool, res.entityType, log)
		if err := registry.Register(res.entityType, ctrl, res.label, res.icon); err != nil {
			log.Fatalw("resource registration", "err", err)
		}
	}

	ctx := context.Background()
	app, err := admin.New(ctx, log, cfg, pool, rdb, registry)
	if err != nil {
		log.Fatalw("startup", "err", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("admin service listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("serve", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("shutdown", "err", err)
	}
	if pool != nil {
		pool.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Infow("admin service stopped")
}
