package engine

import (
	"sort"
	"sync"

	"rpg-lite/progression"
)

// keyedMutex serializes read-modify-write cycles per record key. Entries are
// refcounted and dropped once nobody holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[progression.Key]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[progression.Key]*keyLock)}
}

// Lock acquires every key in a fixed order and returns the release func.
// Duplicate keys are locked once.
func (m *keyedMutex) Lock(keys ...progression.Key) func() {
	ordered := sortedKeys(keys)
	held := make([]*keyLock, 0, len(ordered))
	for _, k := range ordered {
		l := m.acquire(k)
		l.mu.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			m.release(ordered[i])
		}
	}
}

func (m *keyedMutex) acquire(k progression.Key) *keyLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[k]
	if !ok {
		l = &keyLock{}
		m.locks[k] = l
	}
	l.refs++
	return l
}

func (m *keyedMutex) release(k progression.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[k]
	if !ok {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(m.locks, k)
	}
}

func (m *keyedMutex) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func sortedKeys(keys []progression.Key) []progression.Key {
	out := make([]progression.Key, 0, len(keys))
	seen := make(map[progression.Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BotID != out[j].BotID {
			return out[i].BotID < out[j].BotID
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out
}
