package eventpool

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"rpg-lite/progression"
)

// Quorum is the number of same-side votes that decides a ballot.
const Quorum = 3

const (
	// DecidedRetention keeps a decided ballot around so late voters get
	// ErrBallotClosed instead of ErrBallotNotFound.
	DecidedRetention = 10 * time.Minute
	// OpenTTL drops ballots that never reach quorum.
	OpenTTL = 24 * time.Hour
)

var (
	ErrBallotNotFound = errors.New("ballot not found")
	ErrAlreadyVoted   = errors.New("already voted this way")
	ErrBallotClosed   = errors.New("ballot already decided")
)

type Verdict string

const (
	VerdictOpen     Verdict = "open"
	VerdictAdmitted Verdict = "admitted"
	VerdictRejected Verdict = "rejected"
)

// Ballot is a community vote on one proposed event.
type Ballot struct {
	ID        string                  `json:"id"`
	Bot       string                  `json:"bot"`
	Proposal  progression.CustomEvent `json:"proposal"`
	Approvals int                     `json:"approvals"`
	Rejects   int                     `json:"rejections"`
	Verdict   Verdict                 `json:"verdict"`
	CreatedAt time.Time               `json:"created_at"`
	DecidedAt time.Time               `json:"decided_at,omitzero"`
}

type ballot struct {
	Ballot
	approve map[string]struct{}
	reject  map[string]struct{}
}

func (b *ballot) snapshot() Ballot {
	out := b.Ballot
	out.Approvals = len(b.approve)
	out.Rejects = len(b.reject)
	return out
}

// Ballots holds open votes and admits winners into a Pool.
type Ballots struct {
	mu      sync.Mutex
	pool    Pool
	ballots map[string]*ballot
}

func NewBallots(pool Pool) *Ballots {
	return &Ballots{pool: pool, ballots: make(map[string]*ballot)}
}

func (b *Ballots) Propose(bot string, ev progression.CustomEvent) (Ballot, error) {
	ev, err := validEvent(ev)
	if err != nil {
		return Ballot{}, err
	}
	nb := &ballot{
		Ballot: Ballot{
			ID:        uuid.NewString(),
			Bot:       bot,
			Proposal:  ev,
			Verdict:   VerdictOpen,
			CreatedAt: time.Now().UTC(),
		},
		approve: make(map[string]struct{}),
		reject:  make(map[string]struct{}),
	}
	b.mu.Lock()
	b.ballots[nb.ID] = nb
	b.mu.Unlock()
	return nb.snapshot(), nil
}

// Vote records voter's choice. Switching sides moves the vote. The vote that
// reaches Quorum decides the ballot; an admitted event is appended to the
// pool before Vote returns.
func (b *Ballots) Vote(ctx context.Context, id, voter string, approve bool) (Ballot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bl, ok := b.ballots[id]
	if !ok {
		return Ballot{}, ErrBallotNotFound
	}
	if bl.Verdict != VerdictOpen {
		return bl.snapshot(), ErrBallotClosed
	}
	mine, theirs := bl.approve, bl.reject
	if !approve {
		mine, theirs = bl.reject, bl.approve
	}
	if _, dup := mine[voter]; dup {
		return bl.snapshot(), ErrAlreadyVoted
	}
	_, switched := theirs[voter]
	delete(theirs, voter)
	mine[voter] = struct{}{}

	switch {
	case len(bl.approve) >= Quorum:
		if err := b.pool.Append(ctx, bl.Proposal); err != nil {
			// undo so the vote can be retried
			delete(mine, voter)
			if switched {
				theirs[voter] = struct{}{}
			}
			return bl.snapshot(), err
		}
		bl.Verdict = VerdictAdmitted
		bl.DecidedAt = time.Now().UTC()
		log.Printf("[EventPool] ballot %s admitted: %q by %s", bl.ID, bl.Proposal.Description, bl.Proposal.Author)
	case len(bl.reject) >= Quorum:
		bl.Verdict = VerdictRejected
		bl.DecidedAt = time.Now().UTC()
		log.Printf("[EventPool] ballot %s rejected", bl.ID)
	}
	return bl.snapshot(), nil
}

func (b *Ballots) Get(id string) (Ballot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bl, ok := b.ballots[id]
	if !ok {
		return Ballot{}, false
	}
	return bl.snapshot(), true
}

func (b *Ballots) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ballots)
}

// Sweep drops decided ballots past DecidedRetention and open ballots past
// OpenTTL, as of now. It returns how many were dropped.
func (b *Ballots) Sweep(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for id, bl := range b.ballots {
		expired := bl.Verdict == VerdictOpen && now.Sub(bl.CreatedAt) > OpenTTL
		retired := bl.Verdict != VerdictOpen && now.Sub(bl.DecidedAt) > DecidedRetention
		if expired || retired {
			delete(b.ballots, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (b *Ballots) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := b.Sweep(now); n > 0 {
				log.Printf("[EventPool] dropped %d ballot(s)", n)
			}
		}
	}
}
