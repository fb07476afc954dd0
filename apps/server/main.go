package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"rpg-lite/apps/server/internal/admin"
	"rpg-lite/apps/server/internal/app"
	"rpg-lite/apps/server/internal/auth"
	"rpg-lite/apps/server/internal/config"
	"rpg-lite/apps/server/internal/gateway"
)

const shutdownGrace = 10 * time.Second

func main() {
	dotenv := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*dotenv)
	if err != nil {
		log.Fatalf("[Server] Failed to load config: %v", err)
	}
	if cfg.BridgeSecret == "" {
		log.Fatalf("[Server] RPG_BRIDGE_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("[Server] Failed to init engine: %v", err)
	}
	defer a.Close()

	sessions := auth.NewManager(cfg.SessionTTL)
	defer sessions.Close()
	n, err := sessions.LoadAccounts(cfg.AdminAccounts)
	if err != nil {
		log.Fatalf("[Server] Failed to load admin accounts: %v", err)
	}

	gw := gateway.New(a.Engine, auth.NewBridgeTokens(cfg.BridgeSecret))
	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	auth.NewHTTPHandler(sessions).RegisterRoutes(mux)
	admin.NewHTTPHandler(a.Engine, sessions).RegisterRoutes(mux)

	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	log.Printf("[Server] Store mode: %s", a.StoreMode)
	log.Printf("[Server] Ledger mode: %s", a.LedgerMode)
	log.Printf("[Server] Event pool: %s (%d seeded)", a.PoolMode, len(a.Game.CustomEvents))
	log.Printf("[Server] Admin accounts: %d", n)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Arena.Run(gctx, cfg.SweepEvery)
		return nil
	})
	g.Go(func() error {
		a.Ballots.Run(gctx, cfg.SweepEvery)
		return nil
	})
	g.Go(func() error {
		log.Printf("[Server] Listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("[Server] Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		gw.Close()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("[Server] %v", err)
	}
}
