package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rybalka.web/internal/config"
	"rybalka.web/internal/devserver"
)

func main() {
	var (
		listen     = flag.String("addr", "127.0.0.1:8000", "http listen address")
		worldPath  = flag.String("world", "", "world yaml (species, catalog, starting purse); empty uses the built-in world")
		configPath = flag.String("config", "", "client config yaml to take the price rules and starting bag limit from")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed for catches")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[devserver] ", log.LstdFlags|log.Lmicroseconds)

	cfg := devserver.Config{Seed: *seed, Logger: logger}
	if *worldPath != "" {
		w, err := devserver.LoadWorld(*worldPath)
		if err != nil {
			logger.Fatalf("world: %v", err)
		}
		cfg.World = &w
	}
	if *configPath != "" {
		cc, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("config: %v", err)
		}
		cfg.WormPrice = cc.WormPrice
		cfg.BagUpgradeCost = cc.BagUpgrade.Cost
		cfg.BagUpgradeExpensiveCost = cc.BagUpgrade.ExpensiveCost
		cfg.BagUpgradeExpensiveFrom = cc.BagUpgrade.ExpensiveFrom
		cfg.BagUpgradeIncrement = cc.BagUpgrade.Increment
		cfg.StartBagLimit = cc.DefaultBagLimit
	}
	srv := devserver.New(cfg)

	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on http://%s seed=%d", *listen, *seed)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("listen: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
