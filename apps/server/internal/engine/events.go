package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rpg-lite/apps/server/internal/eventpool"
	"rpg-lite/progression"
	"rpg-lite/progression/catalog"
)

// ProposeEvent opens a ballot for a community exploration event. The author
// defaults to the proposer.
func (e *Engine) ProposeEvent(ctx context.Context, a Actor, ev progression.CustomEvent) (eventpool.Ballot, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return eventpool.Ballot{}, err
	}
	if strings.TrimSpace(ev.Author) == "" {
		ev.Author = a.label()
	}
	return e.ballots.Propose(bot.ID, ev)
}

func (e *Engine) VoteEvent(ctx context.Context, a Actor, ballotID string, approve bool) (eventpool.Ballot, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return eventpool.Ballot{}, err
	}
	bl, ok := e.ballots.Get(ballotID)
	if !ok {
		return eventpool.Ballot{}, eventpool.ErrBallotNotFound
	}
	if bl.Bot != bot.ID {
		return eventpool.Ballot{}, ErrBallotOtherBot
	}
	return e.ballots.Vote(ctx, ballotID, a.PlayerID, approve)
}

// CustomEvents lists the admitted event pool.
func (e *Engine) CustomEvents(ctx context.Context) ([]progression.CustomEvent, error) {
	return e.pool.List(ctx)
}

const maxReminder = 24 * time.Hour

// ParseReminder reads "10m", "2h", "90s" or a bare number of minutes.
func ParseReminder(raw string) (time.Duration, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return 0, fmt.Errorf("%w: empty delay", ErrBadReminder)
	}
	var d time.Duration
	if n, err := strconv.Atoi(raw); err == nil {
		d = time.Duration(n) * time.Minute
	} else {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadReminder, raw)
		}
		d = parsed
	}
	if d <= 0 || d > maxReminder {
		return 0, fmt.Errorf("%w: delay must be positive and at most %s", ErrBadReminder, maxReminder)
	}
	return d, nil
}

// Remind validates a reminder request. Delivery belongs to the transport.
func (e *Engine) Remind(a Actor, delay, note string) (time.Duration, string, error) {
	if err := e.gate(e.bots.Get(a.Bot), catalog.ModuleUtility); err != nil {
		return 0, "", err
	}
	d, err := ParseReminder(delay)
	if err != nil {
		return 0, "", err
	}
	note = strings.TrimSpace(note)
	if note == "" {
		note = "time is up"
	}
	return d, note, nil
}
