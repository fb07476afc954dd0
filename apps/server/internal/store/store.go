package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rpg-lite/progression"
)

var ErrInvalidKey = errors.New("invalid record key")

// Store persists player records scoped by (player, bot scope).
// Implementations hand out clones; callers own what they get back.
type Store interface {
	// Get returns the record for key, creating a default one on a miss.
	Get(ctx context.Context, key progression.Key) (*progression.Record, error)
	Put(ctx context.Context, key progression.Key, rec *progression.Record) error
	LoadAll(ctx context.Context) (map[progression.Key]*progression.Record, error)
	// SaveAll upserts every given record atomically: either all of them
	// are stored or none is. Records not in the map are kept.
	SaveAll(ctx context.Context, records map[progression.Key]*progression.Record) error
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Mode        string
	FilePath    string
	SQLitePath  string
	PostgresDSN string
	CacheSize   int
}

// Open builds the backend named by opts.Mode and reports the mode it chose.
// SQL backends are wrapped in a read-through cache when CacheSize > 0.
func Open(opts Options) (Store, string, error) {
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	switch mode {
	case "memory":
		return NewMemory(), "memory", nil
	case "", "file", "json":
		s, err := OpenFile(opts.FilePath)
		if err != nil {
			return nil, "", err
		}
		return s, "file", nil
	case "sqlite", "local":
		s, err := NewSQLite(opts.SQLitePath)
		if err != nil {
			return nil, "", err
		}
		return withCache(s, opts.CacheSize), "sqlite", nil
	case "postgres", "pg":
		s, err := NewPostgres(opts.PostgresDSN)
		if err != nil {
			return nil, "", err
		}
		return withCache(s, opts.CacheSize), "postgres", nil
	default:
		return nil, "", fmt.Errorf("unknown store mode %q", opts.Mode)
	}
}

func withCache(s Store, size int) Store {
	if size <= 0 {
		return s
	}
	c, err := NewCached(s, size)
	if err != nil {
		return s
	}
	return c
}

func checkKey(key progression.Key) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key.String())
	}
	return nil
}

func cloneAll(in map[progression.Key]*progression.Record) map[progression.Key]*progression.Record {
	out := make(map[progression.Key]*progression.Record, len(in))
	for k, v := range in {
		out[k] = v.Clone()
	}
	return out
}
