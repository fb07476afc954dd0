package eventpool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"rpg-lite/progression"
)

var ErrEmptyEvent = errors.New("custom event needs a description")

// Pool is the append-only set of admitted exploration events.
type Pool interface {
	List(ctx context.Context) ([]progression.CustomEvent, error)
	Append(ctx context.Context, ev progression.CustomEvent) error
	Close()
}

func validEvent(ev progression.CustomEvent) (progression.CustomEvent, error) {
	ev.Author = strings.TrimSpace(ev.Author)
	ev.Description = strings.TrimSpace(ev.Description)
	ev.SuccessText = strings.TrimSpace(ev.SuccessText)
	ev.FailText = strings.TrimSpace(ev.FailText)
	if ev.Description == "" {
		return ev, ErrEmptyEvent
	}
	return ev, nil
}

type memoryPool struct {
	mu     sync.RWMutex
	events []progression.CustomEvent
}

// NewMemory returns an in-process pool seeded with events.
func NewMemory(seed []progression.CustomEvent) Pool {
	p := &memoryPool{}
	for _, ev := range seed {
		if ev, err := validEvent(ev); err == nil {
			p.events = append(p.events, ev)
		}
	}
	return p
}

func (p *memoryPool) List(context.Context) ([]progression.CustomEvent, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]progression.CustomEvent(nil), p.events...), nil
}

func (p *memoryPool) Append(_ context.Context, ev progression.CustomEvent) error {
	ev, err := validEvent(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *memoryPool) Close() {}

type postgresPool struct {
	pool *pgxpool.Pool
}

// NewPostgres connects with pgxpool, creates the table if needed and seeds
// it once when empty.
func NewPostgres(ctx context.Context, dsn string, seed []progression.CustomEvent) (Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	p := &postgresPool{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := p.seed(ctx, seed); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *postgresPool) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS custom_events (
    id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    author      TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL,
    success     TEXT NOT NULL DEFAULT '',
    fail        TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("creating custom_events: %w", err)
	}
	return nil
}

func (p *postgresPool) seed(ctx context.Context, seed []progression.CustomEvent) error {
	if len(seed) == 0 {
		return nil
	}
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM custom_events`).Scan(&n); err != nil {
		return fmt.Errorf("counting custom events: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, ev := range seed {
		if err := p.Append(ctx, ev); err != nil && !errors.Is(err, ErrEmptyEvent) {
			return err
		}
	}
	return nil
}

func (p *postgresPool) List(ctx context.Context) ([]progression.CustomEvent, error) {
	rows, err := p.pool.Query(ctx, `
SELECT author, description, success, fail
FROM custom_events
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing custom events: %w", err)
	}
	defer rows.Close()

	var out []progression.CustomEvent
	for rows.Next() {
		var ev progression.CustomEvent
		if err := rows.Scan(&ev.Author, &ev.Description, &ev.SuccessText, &ev.FailText); err != nil {
			return nil, fmt.Errorf("scanning custom event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *postgresPool) Append(ctx context.Context, ev progression.CustomEvent) error {
	ev, err := validEvent(ev)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO custom_events (author, description, success, fail)
VALUES ($1, $2, $3, $4)`, ev.Author, ev.Description, ev.SuccessText, ev.FailText)
	if err != nil {
		return fmt.Errorf("appending custom event: %w", err)
	}
	return nil
}

func (p *postgresPool) Close() { p.pool.Close() }
