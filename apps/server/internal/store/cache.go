package store

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"rpg-lite/progression"
)

// Cached is a read-through, write-through LRU in front of a slower Store.
type Cached struct {
	inner Store
	cache *lru.Cache[progression.Key, *progression.Record]
}

func NewCached(inner Store, size int) (*Cached, error) {
	c, err := lru.New[progression.Key, *progression.Record](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, cache: c}, nil
}

func (c *Cached) Get(ctx context.Context, key progression.Key) (*progression.Record, error) {
	if rec, ok := c.cache.Get(key); ok {
		return rec.Clone(), nil
	}
	rec, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, rec.Clone())
	return rec, nil
}

func (c *Cached) Put(ctx context.Context, key progression.Key, rec *progression.Record) error {
	if err := c.inner.Put(ctx, key, rec); err != nil {
		c.cache.Remove(key)
		return err
	}
	cp := rec.Clone()
	progression.Normalize(cp)
	c.cache.Add(key, cp)
	return nil
}

func (c *Cached) LoadAll(ctx context.Context) (map[progression.Key]*progression.Record, error) {
	return c.inner.LoadAll(ctx)
}

// SaveAll refreshes only the written keys. On failure they are evicted so
// the next Get goes back to the inner store.
func (c *Cached) SaveAll(ctx context.Context, records map[progression.Key]*progression.Record) error {
	if err := c.inner.SaveAll(ctx, records); err != nil {
		for k := range records {
			c.cache.Remove(k)
		}
		return err
	}
	for k, v := range records {
		cp := v.Clone()
		progression.Normalize(cp)
		c.cache.Add(k, cp)
	}
	return nil
}

func (c *Cached) Len() int { return c.cache.Len() }

func (c *Cached) Close() error {
	c.cache.Purge()
	return c.inner.Close()
}
