// Package app assembles the engine and its backends from a Config. The
// server and the rpgctl tool share it.
package app

import (
	"context"
	"fmt"
	"log"

	"rpg-lite/apps/server/internal/arena"
	"rpg-lite/apps/server/internal/config"
	"rpg-lite/apps/server/internal/engine"
	"rpg-lite/apps/server/internal/eventpool"
	"rpg-lite/apps/server/internal/ledger"
	"rpg-lite/apps/server/internal/oracle"
	"rpg-lite/apps/server/internal/store"
	"rpg-lite/progression/catalog"
)

type App struct {
	Config  *config.Config
	Game    *catalog.GameConfig
	Store   store.Store
	Ledger  ledger.Service
	Pool    eventpool.Pool
	Ballots *eventpool.Ballots
	Arena   *arena.Arena
	Engine  *engine.Engine

	StoreMode  string
	LedgerMode string
	PoolMode   string
}

// Build opens every backend named by cfg. On error whatever was already
// opened is closed again.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Game, err = catalog.Load(cfg.GameConfig); err != nil {
		return nil, err
	}
	if a.Store, a.StoreMode, err = store.Open(cfg.StoreOptions()); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if a.Ledger, a.LedgerMode, err = ledger.Open(cfg.LedgerMode, cfg.LedgerDir, cfg.LedgerPath); err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if cfg.EventsDSN != "" {
		if a.Pool, err = eventpool.NewPostgres(ctx, cfg.EventsDSN, a.Game.CustomEvents); err != nil {
			return nil, fmt.Errorf("open event pool: %w", err)
		}
		a.PoolMode = "postgres"
	} else {
		a.Pool = eventpool.NewMemory(a.Game.CustomEvents)
		a.PoolMode = "memory"
	}

	a.Ballots = eventpool.NewBallots(a.Pool)
	a.Arena = arena.New(cfg.ChallengeTTL)
	a.Engine, err = engine.New(engine.Config{
		Store:      a.Store,
		Items:      catalog.NewItems(a.Game.Items),
		Bots:       catalog.NewBots(a.Game.DefaultBot, a.Game.Bots),
		Pool:       a.Pool,
		Ballots:    a.Ballots,
		Arena:      a.Arena,
		Oracle:     oracle.New(a.Game.Oracle),
		Ledger:     a.Ledger,
		Seed:       cfg.Seed,
		RoundPause: cfg.RoundPause,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Close releases the backends in reverse order of opening.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.Ledger != nil {
		if err := a.Ledger.Close(); err != nil {
			log.Printf("[App] ledger close: %v", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Printf("[App] store close: %v", err)
		}
	}
}
