package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"rpg-lite/apps/server/internal/arena"
	"rpg-lite/apps/server/internal/eventpool"
	"rpg-lite/apps/server/internal/ledger"
	"rpg-lite/apps/server/internal/oracle"
	"rpg-lite/apps/server/internal/store"
	"rpg-lite/progression"
	"rpg-lite/progression/catalog"
	"rpg-lite/replay"
)

type memLedger struct {
	mu      sync.Mutex
	entries []ledger.Entry
}

func (l *memLedger) Append(_ context.Context, e ledger.Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func (l *memLedger) Close() error { return nil }

func (l *memLedger) kinds() []ledger.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ledger.Kind, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.Kind)
	}
	return out
}

type prompts struct {
	mu     sync.Mutex
	system []string
	user   []string
}

func (p *prompts) last() (string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.system) == 0 {
		return "", ""
	}
	return p.system[len(p.system)-1], p.user[len(p.user)-1]
}

func (p *prompts) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.system)
}

type harness struct {
	e      *Engine
	store  store.Store
	ledger *memLedger
	calls  *prompts
}

// newHarness builds an engine whose oracle always answers reply, or fails
// when reply is empty.
func newHarness(t *testing.T, reply string) *harness {
	t.Helper()
	return newHarnessOn(t, reply, store.NewMemory())
}

func newHarnessOn(t *testing.T, reply string, st store.Store) *harness {
	t.Helper()
	h := &harness{store: st, ledger: &memLedger{}, calls: &prompts{}}
	narrator := oracle.Func(func(_ context.Context, system, user string, _ oracle.Options) (string, error) {
		h.calls.mu.Lock()
		h.calls.system = append(h.calls.system, system)
		h.calls.user = append(h.calls.user, user)
		h.calls.mu.Unlock()
		if reply == "" {
			return "", &oracle.Error{Kind: oracle.KindConnectionFailed, Err: errors.New("down")}
		}
		return reply, nil
	})
	bots := catalog.NewBots(catalog.Bot{Name: "Keeper"}, []catalog.Bot{
		{ID: "quiet", EnabledModules: []string{catalog.ModuleRPG}},
		{ID: "chatty", EnabledModules: []string{catalog.ModuleChat}},
	})
	e, err := New(Config{
		Store:      h.store,
		Items:      catalog.NewItems(catalog.Default().Items),
		Bots:       bots,
		Oracle:     narrator,
		Ledger:     h.ledger,
		Seed:       7,
		RoundPause: -1,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h.e = e
	return h
}

func (h *harness) put(t *testing.T, bot, player string, edit func(*progression.Record)) {
	t.Helper()
	rec := progression.NewRecord()
	edit(rec)
	if err := h.store.Put(context.Background(), keyOf(h.e.Bot(bot), player), rec); err != nil {
		t.Fatalf("put: %v", err)
	}
}

func (h *harness) get(t *testing.T, bot, player string) *progression.Record {
	t.Helper()
	rec, err := h.store.Get(context.Background(), keyOf(h.e.Bot(bot), player))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	return rec
}

var alice = Actor{Bot: "tavern", PlayerID: "alice", Name: "Alice"}

func TestShop_BuysWeaponAndNarrates(t *testing.T) {
	h := newHarness(t, "Fine steel, that.")
	h.put(t, "tavern", "alice", func(r *progression.Record) { r.Gold = 300 })

	res, err := h.e.Shop(context.Background(), alice, "iron sword", "")
	if err != nil {
		t.Fatalf("shop: %v", err)
	}
	if res.View.RPG.Atk != progression.BaseAtk+8 || res.View.Gold != 100 {
		t.Fatalf("unexpected view after purchase: %+v", res.View)
	}
	if res.Narration != "Fine steel, that." {
		t.Fatalf("narration = %q", res.Narration)
	}
	if got := h.get(t, "tavern", "alice"); got.Equip.Weapon != "Iron Sword" {
		t.Fatalf("purchase not persisted: %+v", got)
	}
	if kinds := h.ledger.kinds(); len(kinds) != 1 || kinds[0] != ledger.KindPurchase {
		t.Fatalf("ledger kinds = %v", kinds)
	}
}

func TestShop_FailuresDoNotMutate(t *testing.T) {
	h := newHarness(t, "ok")
	h.put(t, "tavern", "alice", func(r *progression.Record) { r.Gold = 45 })
	before := h.get(t, "tavern", "alice")

	tests := []struct {
		item string
		want error
	}{
		{item: "Excalibur", want: ErrUnknownItem},
		{item: "Iron Sword", want: progression.ErrInsufficientFunds},
		{item: "Compass", want: progression.ErrUnsupportedItem},
		{item: "Indulgence", want: progression.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		if _, err := h.e.Shop(context.Background(), alice, tt.item, ""); !errors.Is(err, tt.want) {
			t.Fatalf("%s: expected %v, got %v", tt.item, tt.want, err)
		}
	}
	if !h.get(t, "tavern", "alice").Equal(before) {
		t.Fatalf("failed purchases changed the record")
	}
	if h.calls.count() != 0 || len(h.ledger.kinds()) != 0 {
		t.Fatalf("failed purchases must not narrate or write the ledger")
	}
}

func TestShop_GiftCarriesDirective(t *testing.T) {
	h := newHarness(t, "For me? [FAVORABILITY:+50]")
	h.put(t, "tavern", "alice", func(r *progression.Record) { r.Gold = 500 })

	res, err := h.e.Shop(context.Background(), alice, "Love Letter", "  you light up the room  ")
	if err != nil {
		t.Fatalf("shop: %v", err)
	}
	if res.View.Favorability != 50 {
		t.Fatalf("favorability = %d, want 50 from the item only", res.View.Favorability)
	}
	if strings.Contains(res.Narration, "FAVORABILITY") {
		t.Fatalf("narration tag must be stripped: %q", res.Narration)
	}
	system, _ := h.calls.last()
	if !strings.Contains(system, "[Gift received]") || !strings.Contains(system, "you light up the room") {
		t.Fatalf("gift directive missing from system prompt:\n%s", system)
	}

	if _, err := h.e.Shop(context.Background(), alice, "Love Letter", "   "); !errors.Is(err, progression.ErrEmptyLetter) {
		t.Fatalf("expected ErrEmptyLetter, got %v", err)
	}
}

func TestChat_AppliesSingleTag(t *testing.T) {
	h := newHarness(t, "Ha, good one. [FAVORABILITY:+5]")

	res, err := h.e.Chat(context.Background(), alice, "tell me a joke", []string{"Bob: hi", "", "Alice: hey"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.Reply != "Ha, good one." || res.Favorability != 5 || !res.Delta.Found {
		t.Fatalf("unexpected chat result: %+v", res)
	}
	if got := h.get(t, "tavern", "alice").Favorability; got != 5 {
		t.Fatalf("stored favorability = %d", got)
	}
	system, user := h.calls.last()
	if !strings.Contains(system, "[Favorability rule]") {
		t.Fatalf("chat prompt lacks the favorability rule")
	}
	if !strings.HasPrefix(user, "History:\nBob: hi\nAlice: hey\n\n") {
		t.Fatalf("user message = %q", user)
	}
}

func TestChat_AmbiguousAndDegraded(t *testing.T) {
	h := newHarness(t, "[FAVORABILITY:+5] hmm [FAVORABILITY:-5]")
	res, err := h.e.Chat(context.Background(), alice, "hello", nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if res.Reply != "hmm" || res.Favorability != 0 || !res.Delta.Ambiguous {
		t.Fatalf("ambiguous tags must be stripped and ignored: %+v", res)
	}

	down := newHarness(t, "")
	res, err = down.e.Chat(context.Background(), alice, "hello", nil)
	if err != nil {
		t.Fatalf("chat with oracle down: %v", err)
	}
	if !res.Degraded || res.Reply != FallbackNarration {
		t.Fatalf("expected fallback reply, got %+v", res)
	}
}

func TestModuleGating(t *testing.T) {
	h := newHarness(t, "should not be used")
	quiet := Actor{Bot: "quiet", PlayerID: "alice"}
	chatty := Actor{Bot: "chatty", PlayerID: "alice"}
	h.put(t, "quiet", "alice", func(r *progression.Record) { r.Gold = 100 })

	res, err := h.e.Shop(context.Background(), quiet, "Wildflowers", "")
	if err != nil {
		t.Fatalf("shop on rpg-only bot: %v", err)
	}
	if !strings.HasPrefix(res.Narration, "Purchased Wildflowers") {
		t.Fatalf("chat-disabled bot must use static narration, got %q", res.Narration)
	}
	if h.calls.count() != 0 {
		t.Fatalf("oracle called for a chat-disabled bot")
	}

	if _, err := h.e.Chat(context.Background(), quiet, "hi", nil); !errors.Is(err, ErrModuleDisabled) {
		t.Fatalf("chat on rpg-only bot: %v", err)
	}
	if _, err := h.e.Explore(context.Background(), chatty, 0); !errors.Is(err, ErrModuleDisabled) {
		t.Fatalf("explore on chat-only bot: %v", err)
	}
	if _, err := h.e.SetCard(context.Background(), chatty, "x"); !errors.Is(err, ErrModuleDisabled) {
		t.Fatalf("set card on chat-only bot: %v", err)
	}
	if _, err := h.e.Summarize(context.Background(), quiet, []string{"a"}, ""); !errors.Is(err, ErrModuleDisabled) {
		t.Fatalf("summarize on rpg-only bot: %v", err)
	}
}

func TestExplore_AppliesAndRefusesWhenDown(t *testing.T) {
	h := newHarness(t, "You push through the dark.")
	res, err := h.e.Explore(context.Background(), alice, 0)
	if err != nil {
		t.Fatalf("explore: %v", err)
	}
	rec := h.get(t, "tavern", "alice")
	if rec.Gold != res.Check.GoldApplied || rec.RPG.HP != res.Check.HPAfter {
		t.Fatalf("stored record %+v does not match check %+v", rec, res.Check)
	}
	_, user := h.calls.last()
	if !strings.Contains(user, res.Check.Seed) || !strings.Contains(user, "second person") {
		t.Fatalf("explore prompt = %q", user)
	}

	h.put(t, "tavern", "alice", func(r *progression.Record) { r.RPG.HP = 0 })
	if _, err := h.e.Explore(context.Background(), alice, 0); !errors.Is(err, progression.ErrIncapacitated) {
		t.Fatalf("expected ErrIncapacitated, got %v", err)
	}
}

func TestProfileAndCard(t *testing.T) {
	h := newHarness(t, "You look sharp.")
	h.put(t, "tavern", "alice", func(r *progression.Record) { r.Gold = 12345 })

	p, err := h.e.Profile(context.Background(), alice)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.GoldText != "12,345 G" || p.Stage.Title != "Neutral" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	if _, err := h.e.SetCard(context.Background(), alice, strings.Repeat("字", progression.CardMaxRunes+1)); !errors.Is(err, ErrCardTooLong) {
		t.Fatalf("expected ErrCardTooLong, got %v", err)
	}
	c, err := h.e.SetCard(context.Background(), alice, strings.Repeat("字", progression.CardMaxRunes))
	if err != nil {
		t.Fatalf("set card at the limit: %v", err)
	}
	if c.Previous != "" || h.get(t, "tavern", "alice").Card != c.Card {
		t.Fatalf("card not stored: %+v", c)
	}
}

func duelFlow(t *testing.T, h *harness, mode progression.Mode) *arena.Session {
	t.Helper()
	ctx := context.Background()
	bob := Actor{Bot: alice.Bot, PlayerID: "bob", Name: "Bob"}

	c, err := h.e.Challenge(ctx, alice, arena.Participant{PlayerID: "bob", Name: "Bob"}, false)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	if _, err := h.e.Accept(ctx, bob, ""); err != nil {
		t.Fatalf("accept: %v", err)
	}
	sess, err := h.e.StartDuel(ctx, alice, c.ID, mode)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return sess
}

func TestDuel_WagerConservesGold(t *testing.T) {
	h := newHarness(t, "What a fight!")
	h.put(t, "tavern", "alice", func(r *progression.Record) { r.Gold = 100 })
	h.put(t, "tavern", "bob", func(r *progression.Record) { r.Gold = 100 })

	sess := duelFlow(t, h, progression.ModeWager)
	var seen []int
	report, err := h.e.RunDuel(context.Background(), sess.ID, func(_ string, r progression.Round) {
		seen = append(seen, r.Number)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(seen) != len(report.Rounds) || len(seen) > progression.WagerRounds {
		t.Fatalf("observer saw %v for %d rounds", seen, len(report.Rounds))
	}

	a, b := h.get(t, "tavern", "alice"), h.get(t, "tavern", "bob")
	if a.Gold+b.Gold != 200 {
		t.Fatalf("wager must conserve gold: %d + %d", a.Gold, b.Gold)
	}
	if a.RPG.HP != report.Settlement.ChallengerHP || b.RPG.HP != report.Settlement.TargetHP {
		t.Fatalf("hp not synced: %d/%d vs %+v", a.RPG.HP, b.RPG.HP, report.Settlement)
	}
	if challenges, sessions := h.e.Arena().Counts(); challenges != 0 || sessions != 0 {
		t.Fatalf("arena not released: %d challenges, %d sessions", challenges, sessions)
	}
	if report.Narration != "What a fight!" {
		t.Fatalf("narration = %q", report.Narration)
	}

	tape, err := replay.Generate(report.Replay)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if diff := cmp.Diff(report.Log, tape.Log); diff != "" {
		t.Fatalf("replay diverged (-report +replay):\n%s", diff)
	}
	if tape.Stolen != report.Settlement.Stolen || tape.Outcome != report.Settlement.Outcome.String() {
		t.Fatalf("replay settled differently: %+v vs %+v", tape, report.Settlement)
	}
	if _, err := h.e.RunDuel(context.Background(), sess.ID, nil); !errors.Is(err, arena.ErrChallengeNotFound) {
		t.Fatalf("finished session must be gone, got %v", err)
	}
}

func TestDuel_CancelledContextSkipsSettlement(t *testing.T) {
	h := newHarness(t, "unused")
	h.e.pause = time.Hour
	sess := duelFlow(t, h, progression.ModeLethal)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.e.RunDuel(ctx, sess.ID, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !h.get(t, "tavern", "alice").Equal(progression.NewRecord()) || !h.get(t, "tavern", "bob").Equal(progression.NewRecord()) {
		t.Fatalf("aborted duel must not settle")
	}
	if _, sessions := h.e.Arena().Counts(); sessions != 0 {
		t.Fatalf("aborted session must be released")
	}
}

func TestDuel_Validation(t *testing.T) {
	h := newHarness(t, "ok")
	ctx := context.Background()

	var invalid progression.InvalidTargetError
	if _, err := h.e.Challenge(ctx, alice, arena.Participant{PlayerID: "keeper"}, true); !errors.As(err, &invalid) {
		t.Fatalf("bot target: %v", err)
	}
	if _, err := h.e.Challenge(ctx, alice, arena.Participant{PlayerID: "alice"}, false); !errors.As(err, &invalid) {
		t.Fatalf("self target: %v", err)
	}
	h.put(t, "tavern", "bob", func(r *progression.Record) { r.RPG.HP = -3 })
	if _, err := h.e.Challenge(ctx, alice, arena.Participant{PlayerID: "bob"}, false); !errors.Is(err, progression.ErrIncapacitated) {
		t.Fatalf("downed target: %v", err)
	}
	if _, err := h.e.Accept(ctx, alice, ""); !errors.Is(err, arena.ErrChallengeNotFound) {
		t.Fatalf("accept with nothing pending: %v", err)
	}
}

func TestVoteEvent_ScopedToBot(t *testing.T) {
	h := newHarness(t, "ok")
	ctx := context.Background()
	bl, err := h.e.ProposeEvent(ctx, alice, progression.CustomEvent{Description: "a talking door"})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if bl.Proposal.Author != "Alice" {
		t.Fatalf("author should default to the proposer, got %q", bl.Proposal.Author)
	}
	other := Actor{Bot: "elsewhere", PlayerID: "carol"}
	if _, err := h.e.VoteEvent(ctx, other, bl.ID, true); !errors.Is(err, eventpool.ErrBallotNotFound) {
		t.Fatalf("vote from another bot: %v", err)
	}
	for _, voter := range []string{"v1", "v2", "v3"} {
		bl, err = h.e.VoteEvent(ctx, Actor{Bot: alice.Bot, PlayerID: voter}, bl.ID, true)
		if err != nil {
			t.Fatalf("vote %s: %v", voter, err)
		}
	}
	events, err := h.e.CustomEvents(ctx)
	if err != nil || bl.Verdict != eventpool.VerdictAdmitted || len(events) != 1 {
		t.Fatalf("quorum should admit: verdict=%s events=%d err=%v", bl.Verdict, len(events), err)
	}
}

func TestParseReminder(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
		ok   bool
	}{
		{raw: "10m", want: 10 * time.Minute, ok: true},
		{raw: "1h", want: time.Hour, ok: true},
		{raw: "45", want: 45 * time.Minute, ok: true},
		{raw: " 90S ", want: 90 * time.Second, ok: true},
		{raw: "", ok: false},
		{raw: "-5m", ok: false},
		{raw: "48h", ok: false},
		{raw: "soon", ok: false},
	}
	for _, tt := range tests {
		got, err := ParseReminder(tt.raw)
		if tt.ok != (err == nil) {
			t.Fatalf("%q: unexpected error state %v", tt.raw, err)
		}
		if !tt.ok && !errors.Is(err, ErrBadReminder) {
			t.Fatalf("%q: expected ErrBadReminder, got %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("%q: got %s want %s", tt.raw, got, tt.want)
		}
	}
}

func TestAdminOverrides(t *testing.T) {
	h := newHarness(t, "ok")
	ctx := context.Background()
	target := Target{Bot: "tavern", Player: "alice"}
	h.put(t, "tavern", "alice", func(r *progression.Record) {
		r.Card = "old card"
		r.RPG.HP = -10
		r.Gold = 77
	})

	res, err := h.e.SetFavorability(ctx, target, "ops", 999, progression.FavorSet)
	if err != nil || res.New != progression.FavorMax {
		t.Fatalf("set favorability: %+v %v", res, err)
	}
	if res, err = h.e.ResetCard(ctx, target, "ops"); err != nil || res.Old != "old card" {
		t.Fatalf("reset card: %+v %v", res, err)
	}
	if res, err = h.e.Revive(ctx, target, "ops"); err != nil || res.Old != -10 || res.View.RPG.HP != progression.BaseMaxHP {
		t.Fatalf("revive: %+v %v", res, err)
	}

	scoped := Target{Bot: progression.BotScope("tavern"), Player: "alice", Scoped: true}
	key, view, err := h.e.Player(ctx, scoped)
	if err != nil || key.BotID != scoped.Bot || view.Gold != 77 {
		t.Fatalf("player by scope: %+v %+v %v", key, view, err)
	}
	if _, err := h.e.ResetPlayer(ctx, target, "ops"); err != nil {
		t.Fatalf("reset player: %v", err)
	}
	if !h.get(t, "tavern", "alice").Equal(progression.NewRecord()) {
		t.Fatalf("reset player must restore defaults")
	}
	if _, err := h.e.History(ctx, target, 10); !errors.Is(err, ErrHistoryUnavailable) {
		t.Fatalf("memory ledger cannot be queried, got %v", err)
	}
	if _, err := h.e.Revive(ctx, Target{Bot: "tavern"}, "ops"); !errors.Is(err, ErrInvalidScope) {
		t.Fatalf("missing player: %v", err)
	}
	if got := len(h.ledger.kinds()); got != 4 {
		t.Fatalf("expected 4 admin ledger entries, got %d", got)
	}
}
