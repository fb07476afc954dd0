package engine

import (
	"context"
	"log"
	"strings"
	"unicode/utf8"

	"rpg-lite/apps/server/internal/ledger"
	"rpg-lite/progression"
	"rpg-lite/progression/catalog"
)

type ChatResult struct {
	Reply        string            `json:"reply"`
	Delta        progression.Delta `json:"delta"`
	Favorability int               `json:"favorability"`
	Stage        string            `json:"stage"`
	Degraded     bool              `json:"degraded,omitempty"`
}

// Chat answers a mention or reply. The prompt is built from a snapshot and
// the oracle runs unlocked; the favorability tag is applied afterwards to
// the record as it is then.
func (e *Engine) Chat(ctx context.Context, a Actor, message string, history []string) (*ChatResult, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleChat); err != nil {
		return nil, err
	}
	key := keyOf(bot, a.PlayerID)
	snap, err := e.snapshot(ctx, key)
	if err != nil {
		return nil, err
	}

	system := systemPrompt(bot, a, snap, favorInstruction)
	text, err := e.oracle.Narrate(ctx, system, userMessage(history, strings.TrimSpace(message)), oracleOpts(bot))
	if err != nil {
		log.Printf("[Engine] chat degraded bot=%s player=%s: %v", bot.ID, a.PlayerID, err)
		return &ChatResult{
			Reply:        FallbackNarration,
			Favorability: snap.Favorability,
			Stage:        progression.StageOf(snap.Favorability).Title,
			Degraded:     true,
		}, nil
	}

	delta, cleaned := progression.ParseDelta(text)
	score := snap.Favorability
	var before int
	if delta.Found {
		rec, err := e.mutate(ctx, key, func(rec *progression.Record) error {
			before = rec.Favorability
			progression.ApplyDelta(rec, text)
			return nil
		})
		if err != nil {
			return nil, err
		}
		score = rec.Favorability
		if score != before {
			e.record(ctx, ledger.Entry{
				Kind:       ledger.KindFavor,
				Player:     key.PlayerID,
				Bot:        key.BotID,
				FavorDelta: score - before,
				Detail:     map[string]any{"tag": delta.Value},
			})
		}
	} else if delta.Ambiguous {
		log.Printf("[Engine] ambiguous favorability tags ignored bot=%s player=%s", bot.ID, a.PlayerID)
	}

	return &ChatResult{
		Reply:        cleaned,
		Delta:        delta,
		Favorability: score,
		Stage:        progression.StageOf(score).Title,
	}, nil
}

type ShopResult struct {
	Purchase  progression.PurchaseResult `json:"purchase"`
	View      progression.View           `json:"view"`
	Narration string                     `json:"narration"`
	Degraded  bool                       `json:"degraded,omitempty"`
}

func (e *Engine) Shop(ctx context.Context, a Actor, itemName, letter string) (*ShopResult, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return nil, err
	}
	item, ok := e.items.Find(itemName)
	if !ok {
		return nil, ErrUnknownItem
	}
	key := keyOf(bot, a.PlayerID)

	var res progression.PurchaseResult
	rec, err := e.mutate(ctx, key, func(rec *progression.Record) error {
		var perr error
		res, perr = progression.Purchase(rec, item, letter)
		return perr
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, ledger.Entry{
		Kind:       ledger.KindPurchase,
		Player:     key.PlayerID,
		Bot:        key.BotID,
		GoldDelta:  res.GoldAfter - res.GoldBefore,
		HPDelta:    res.HPDelta,
		FavorDelta: res.FavorDelta,
		Detail:     map[string]any{"item": item.Name, "category": string(item.Category)},
	})

	var extra []string
	if res.Directive == progression.DirectiveGiftReceive {
		extra = append(extra, giftDirective(rec, item, res.Letter))
	}
	text, degraded := e.narrate(ctx, bot, systemPrompt(bot, a, rec, extra...), purchasePrompt(a, res), staticPurchase(res))
	return &ShopResult{Purchase: res, View: rec.View(), Narration: text, Degraded: degraded}, nil
}

type CatalogSection struct {
	Category progression.Category `json:"category"`
	Items    []progression.Item   `json:"items"`
}

// Catalog lists the shop by category in display order.
func (e *Engine) Catalog(a Actor) ([]CatalogSection, error) {
	if err := e.gate(e.bots.Get(a.Bot), catalog.ModuleRPG); err != nil {
		return nil, err
	}
	out := make([]CatalogSection, 0, len(progression.Categories))
	for _, c := range progression.Categories {
		if items := e.items.ByCategory(c); len(items) > 0 {
			out = append(out, CatalogSection{Category: c, Items: items})
		}
	}
	return out, nil
}

type ExploreResult struct {
	Check     progression.ExploreResult `json:"check"`
	View      progression.View          `json:"view"`
	Narration string                    `json:"narration"`
	Degraded  bool                      `json:"degraded,omitempty"`
}

func (e *Engine) Explore(ctx context.Context, a Actor, bonus int) (*ExploreResult, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return nil, err
	}
	events, err := e.pool.List(ctx)
	if err != nil {
		log.Printf("[Engine] custom events unavailable: %v", err)
		events = nil
	}
	key := keyOf(bot, a.PlayerID)

	var res progression.ExploreResult
	rec, err := e.mutate(ctx, key, func(rec *progression.Record) error {
		var xerr error
		res, xerr = progression.Explore(rec, bonus, e.rng, events)
		return xerr
	})
	if err != nil {
		return nil, err
	}
	detail := map[string]any{"roll": res.Roll, "final": res.FinalRoll, "tier": res.Tier.String()}
	if res.Event != nil {
		detail["event_author"] = res.Event.Author
	}
	e.record(ctx, ledger.Entry{
		Kind:      ledger.KindExplore,
		Player:    key.PlayerID,
		Bot:       key.BotID,
		GoldDelta: res.GoldApplied,
		HPDelta:   res.HPDelta,
		Detail:    detail,
	})

	text, degraded := e.narrate(ctx, bot, bot.Persona(), explorePrompt(a, res), staticExplore(res))
	return &ExploreResult{Check: res, View: rec.View(), Narration: text, Degraded: degraded}, nil
}

type ProfileResult struct {
	View      progression.View  `json:"view"`
	Stage     progression.Stage `json:"stage"`
	GoldText  string            `json:"gold_text"`
	Narration string            `json:"narration"`
	Degraded  bool              `json:"degraded,omitempty"`
}

func (e *Engine) Profile(ctx context.Context, a Actor) (*ProfileResult, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleRPG); err != nil {
		return nil, err
	}
	rec, err := e.snapshot(ctx, keyOf(bot, a.PlayerID))
	if err != nil {
		return nil, err
	}
	v := rec.View()
	text, degraded := e.narrate(ctx, bot, systemPrompt(bot, a, rec), profilePrompt(a, v), staticProfile(a, v))
	return &ProfileResult{
		View:      v,
		Stage:     progression.StageOf(rec.Favorability),
		GoldText:  goldText(v.Gold),
		Narration: text,
		Degraded:  degraded,
	}, nil
}

type CardResult struct {
	Card      string `json:"card"`
	Previous  string `json:"previous"`
	Narration string `json:"narration"`
	Degraded  bool   `json:"degraded,omitempty"`
}

func (e *Engine) SetCard(ctx context.Context, a Actor, card string) (*CardResult, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleUtility); err != nil {
		return nil, err
	}
	card = strings.TrimSpace(card)
	if utf8.RuneCountInString(card) > progression.CardMaxRunes {
		return nil, ErrCardTooLong
	}
	key := keyOf(bot, a.PlayerID)
	var previous string
	rec, err := e.mutate(ctx, key, func(rec *progression.Record) error {
		previous = rec.Card
		rec.Card = card
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.record(ctx, ledger.Entry{
		Kind:   ledger.KindCard,
		Player: key.PlayerID,
		Bot:    key.BotID,
		Detail: map[string]any{"length": utf8.RuneCountInString(card)},
	})

	static := "Card saved."
	if card == "" {
		static = "Card cleared."
	}
	text, degraded := e.narrate(ctx, bot, systemPrompt(bot, a, rec), cardPrompt(card), static)
	return &CardResult{Card: card, Previous: previous, Narration: text, Degraded: degraded}, nil
}

type SummaryResult struct {
	Summary  string `json:"summary"`
	Degraded bool   `json:"degraded,omitempty"`
}

// Summarize is a pure reply over supplied history; it reads no record.
func (e *Engine) Summarize(ctx context.Context, a Actor, history []string, instruction string) (*SummaryResult, error) {
	bot := e.bots.Get(a.Bot)
	if err := e.gate(bot, catalog.ModuleUtility, catalog.ModuleChat); err != nil {
		return nil, err
	}
	text, degraded := e.narrate(ctx, bot, bot.Persona(), userMessage(history, summaryPrompt(instruction)), "")
	return &SummaryResult{Summary: text, Degraded: degraded}, nil
}
