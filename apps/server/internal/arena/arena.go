package arena

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"rpg-lite/dice"
	"rpg-lite/progression"
)

const DefaultChallengeTTL = 60 * time.Second

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrNotParticipant    = errors.New("not a participant of this challenge")
	ErrBusy              = errors.New("player already in a challenge or duel")
	ErrWrongState        = errors.New("challenge is not in the required state")
)

type State string

const (
	StatePending  State = "pending"
	StateAccepted State = "accepted"
)

type Participant struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

func (p Participant) label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.PlayerID
}

// Challenge is an open duel invitation under one bot.
type Challenge struct {
	ID         string      `json:"id"`
	Bot        string      `json:"bot"`
	Challenger Participant `json:"challenger"`
	Target     Participant `json:"target"`
	State      State       `json:"state"`
	CreatedAt  time.Time   `json:"created_at"`
	ExpiresAt  time.Time   `json:"expires_at"`
}

// Session is a running duel. The Duel and Src belong to whoever claimed the
// session; nothing else may touch them.
type Session struct {
	ID         string
	Bot        string
	Challenger Participant
	Target     Participant
	Mode       progression.Mode
	Seed       int64
	Duel       *progression.Duel
	Src        dice.Source
	StartedAt  time.Time

	claimed bool
}

// Arena tracks challenges and duel sessions. A player is in at most one of
// either per bot at a time.
type Arena struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	challenges map[string]*Challenge
	sessions   map[string]*Session
	// bot/player -> challenge or session id
	busy map[string]string
}

func New(ttl time.Duration) *Arena {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &Arena{
		ttl:        ttl,
		now:        time.Now,
		challenges: make(map[string]*Challenge),
		sessions:   make(map[string]*Session),
		busy:       make(map[string]string),
	}
}

func busyKey(bot, player string) string { return bot + "/" + player }

// Open registers a new pending challenge.
func (a *Arena) Open(bot string, challenger, target Participant) (Challenge, error) {
	if challenger.PlayerID == target.PlayerID {
		return Challenge{}, progression.ErrInvalidTarget("cannot duel yourself")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweepLocked()

	if a.busyLocked(bot, challenger.PlayerID) || a.busyLocked(bot, target.PlayerID) {
		return Challenge{}, ErrBusy
	}
	now := a.now()
	c := &Challenge{
		ID:         uuid.NewString(),
		Bot:        bot,
		Challenger: challenger,
		Target:     target,
		State:      StatePending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(a.ttl),
	}
	a.challenges[c.ID] = c
	a.busy[busyKey(bot, challenger.PlayerID)] = c.ID
	a.busy[busyKey(bot, target.PlayerID)] = c.ID
	log.Printf("[Arena] challenge %s: %s -> %s (bot=%s)", c.ID, challenger.label(), target.label(), bot)
	return *c, nil
}

func (a *Arena) busyLocked(bot, player string) bool {
	_, ok := a.busy[busyKey(bot, player)]
	return ok
}

// Accept moves a pending challenge to accepted. Only the target may accept.
// Accepting restarts the expiry clock for the mode choice.
func (a *Arena) Accept(id, playerID string) (Challenge, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.liveLocked(id)
	if err != nil {
		return Challenge{}, err
	}
	if c.Target.PlayerID != playerID {
		return Challenge{}, ErrNotParticipant
	}
	if c.State != StatePending {
		return Challenge{}, ErrWrongState
	}
	c.State = StateAccepted
	c.ExpiresAt = a.now().Add(a.ttl)
	return *c, nil
}

// Decline drops a challenge. Either side may decline or withdraw.
func (a *Arena) Decline(id, playerID string) (Challenge, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.liveLocked(id)
	if err != nil {
		return Challenge{}, err
	}
	if c.Target.PlayerID != playerID && c.Challenger.PlayerID != playerID {
		return Challenge{}, ErrNotParticipant
	}
	a.dropChallengeLocked(c)
	return *c, nil
}

// Start turns an accepted challenge into a duel session. Only the challenger
// picks the mode; duel must already be built from both current records.
func (a *Arena) Start(id, playerID string, mode progression.Mode, seed int64, duel *progression.Duel, src dice.Source) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.liveLocked(id)
	if err != nil {
		return nil, err
	}
	if c.Challenger.PlayerID != playerID {
		return nil, ErrNotParticipant
	}
	if c.State != StateAccepted {
		return nil, ErrWrongState
	}
	s := &Session{
		ID:         c.ID,
		Bot:        c.Bot,
		Challenger: c.Challenger,
		Target:     c.Target,
		Mode:       mode,
		Seed:       seed,
		Duel:       duel,
		Src:        src,
		StartedAt:  a.now(),
	}
	delete(a.challenges, c.ID)
	a.sessions[s.ID] = s
	log.Printf("[Arena] duel %s started mode=%s seed=%d", s.ID, mode, seed)
	return s, nil
}

// Finish removes a session and frees both players.
func (a *Arena) Finish(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[sessionID]
	if !ok {
		return
	}
	delete(a.sessions, sessionID)
	a.freeLocked(s.Bot, s.ID, s.Challenger.PlayerID, s.Target.PlayerID)
}

// Lookup returns a live challenge without changing it.
func (a *Arena) Lookup(id string) (Challenge, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, err := a.liveLocked(id)
	if err != nil {
		return Challenge{}, err
	}
	return *c, nil
}

// ChallengeOf finds the open challenge a player is part of, if any.
func (a *Arena) ChallengeOf(bot, playerID string) (Challenge, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sweepLocked()
	id, ok := a.busy[busyKey(bot, playerID)]
	if !ok {
		return Challenge{}, false
	}
	c, ok := a.challenges[id]
	if !ok {
		return Challenge{}, false
	}
	return *c, true
}

// Claim hands a session to the single goroutine that will drive it.
func (a *Arena) Claim(id string) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if s.claimed {
		return nil, ErrWrongState
	}
	s.claimed = true
	return s, nil
}

// Counts reports open challenges and running sessions.
func (a *Arena) Counts() (challenges, sessions int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.challenges), len(a.sessions)
}

func (a *Arena) liveLocked(id string) (*Challenge, error) {
	c, ok := a.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	if !a.now().Before(c.ExpiresAt) {
		a.dropChallengeLocked(c)
		return nil, ErrChallengeExpired
	}
	return c, nil
}

func (a *Arena) dropChallengeLocked(c *Challenge) {
	delete(a.challenges, c.ID)
	a.freeLocked(c.Bot, c.ID, c.Challenger.PlayerID, c.Target.PlayerID)
}

func (a *Arena) freeLocked(bot, id string, players ...string) {
	for _, p := range players {
		k := busyKey(bot, p)
		if a.busy[k] == id {
			delete(a.busy, k)
		}
	}
}

func (a *Arena) sweepLocked() int {
	now := a.now()
	n := 0
	for _, c := range a.challenges {
		if !now.Before(c.ExpiresAt) {
			a.dropChallengeLocked(c)
			n++
		}
	}
	return n
}

// Sweep drops expired challenges and returns how many were removed.
func (a *Arena) Sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweepLocked()
}

// Run sweeps on an interval until ctx is done.
func (a *Arena) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = a.ttl / 2
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.Sweep(); n > 0 {
				log.Printf("[Arena] expired %d challenge(s)", n)
			}
		}
	}
}
