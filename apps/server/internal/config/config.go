// Package config reads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"rpg-lite/apps/server/internal/store"
)

// Config is the process configuration. Game data (bots, items, oracle
// endpoints) lives in the YAML file named by GameConfig.
type Config struct {
	Addr       string `env:"RPG_ADDR"        envDefault:":8080"`
	GameConfig string `env:"RPG_GAME_CONFIG"`

	StoreMode   string `env:"RPG_STORE_MODE"   envDefault:"file"`
	StorePath   string `env:"RPG_STORE_PATH"`
	SQLitePath  string `env:"RPG_SQLITE_PATH"`
	PostgresDSN string `env:"RPG_POSTGRES_DSN"`
	CacheSize   int    `env:"RPG_CACHE_SIZE"   envDefault:"1024"`

	LedgerMode string `env:"RPG_LEDGER_MODE" envDefault:"off"`
	LedgerDir  string `env:"RPG_LEDGER_DIR"`
	LedgerPath string `env:"RPG_LEDGER_PATH"`

	EventsDSN string `env:"RPG_EVENTS_DSN"`

	BridgeSecret  string        `env:"RPG_BRIDGE_SECRET"`
	AdminAccounts string        `env:"RPG_ADMIN_ACCOUNTS"`
	SessionTTL    time.Duration `env:"RPG_SESSION_TTL"    envDefault:"12h"`

	Seed         int64         `env:"RPG_SEED"`
	RoundPause   time.Duration `env:"RPG_ROUND_PAUSE"   envDefault:"1500ms"`
	ChallengeTTL time.Duration `env:"RPG_CHALLENGE_TTL" envDefault:"60s"`
	SweepEvery   time.Duration `env:"RPG_SWEEP_EVERY"   envDefault:"10s"`
}

// Load reads an optional dotenv file and then the environment. Variables
// already set in the environment win over the file.
func Load(dotenv string) (*Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) fillDefaults() error {
	c.StoreMode = strings.ToLower(strings.TrimSpace(c.StoreMode))
	c.LedgerMode = strings.ToLower(strings.TrimSpace(c.LedgerMode))
	if c.StorePath == "" && (c.StoreMode == "" || c.StoreMode == "file" || c.StoreMode == "json") {
		p, err := store.DefaultFilePath()
		if err != nil {
			return fmt.Errorf("resolve store path: %w", err)
		}
		c.StorePath = p
	}
	if c.SQLitePath == "" && (c.StoreMode == "sqlite" || c.StoreMode == "local") {
		p, err := store.DefaultSQLitePath()
		if err != nil {
			return fmt.Errorf("resolve sqlite path: %w", err)
		}
		c.SQLitePath = p
	}
	if c.PostgresDSN == "" {
		c.PostgresDSN = os.Getenv("DATABASE_URL")
	}
	return nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.StoreMode {
	case "postgres", "pg":
		if c.PostgresDSN == "" {
			return errors.New("RPG_POSTGRES_DSN is required for postgres store")
		}
	}
	switch c.LedgerMode {
	case "jsonl", "file":
		if c.LedgerDir == "" {
			return errors.New("RPG_LEDGER_DIR is required for jsonl ledger")
		}
	case "sqlite", "local":
		if c.LedgerPath == "" {
			return errors.New("RPG_LEDGER_PATH is required for sqlite ledger")
		}
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("RPG_CACHE_SIZE must not be negative, got %d", c.CacheSize)
	}
	if c.ChallengeTTL <= 0 {
		return fmt.Errorf("RPG_CHALLENGE_TTL must be positive, got %s", c.ChallengeTTL)
	}
	return nil
}

// StoreOptions maps the store settings onto store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Mode:        c.StoreMode,
		FilePath:    c.StorePath,
		SQLitePath:  c.SQLitePath,
		PostgresDSN: c.PostgresDSN,
		CacheSize:   c.CacheSize,
	}
}
