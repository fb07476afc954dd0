package gateway

import (
	"errors"
	"fmt"
	"log"
	"time"

	"rpg-lite/apps/server/internal/arena"
	"rpg-lite/apps/server/internal/codec"
	"rpg-lite/apps/server/internal/engine"
	"rpg-lite/progression"
	"rpg-lite/progression/catalog"
)

// Ops understood by the bridge.
const (
	OpChat           = "chat"
	OpShop           = "shop"
	OpCatalog        = "catalog"
	OpExplore        = "explore"
	OpProfile        = "profile"
	OpSetCard        = "card.set"
	OpChallenge      = "duel.challenge"
	OpAccept         = "duel.accept"
	OpDecline        = "duel.decline"
	OpStartDuel      = "duel.start"
	OpProposeEvent   = "event.propose"
	OpVoteEvent      = "event.vote"
	OpSummarize      = "summarize"
	OpRemind         = "remind"
	OpAdminFavor     = "admin.favorability"
	OpAdminResetCard = "admin.reset_card"
	OpAdminRevive    = "admin.revive"
	OpAdminPlayer    = "admin.player"

	PushDuelRound = "duel.round"
	PushRemind    = "remind"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type handler func(c *Connection, frame codec.Frame, req codec.Request, a engine.Actor) (any, error)

var handlers = map[string]handler{
	OpChat:           handleChat,
	OpShop:           handleShop,
	OpCatalog:        handleCatalog,
	OpExplore:        handleExplore,
	OpProfile:        handleProfile,
	OpSetCard:        handleSetCard,
	OpChallenge:      handleChallenge,
	OpAccept:         handleAccept,
	OpDecline:        handleDecline,
	OpStartDuel:      handleStartDuel,
	OpProposeEvent:   handleProposeEvent,
	OpVoteEvent:      handleVoteEvent,
	OpSummarize:      handleSummarize,
	OpRemind:         handleRemind,
	OpAdminFavor:     handleAdminFavor,
	OpAdminResetCard: handleAdminResetCard,
	OpAdminRevive:    handleAdminRevive,
	OpAdminPlayer:    handleAdminPlayer,
}

func (c *Connection) dispatch(frame codec.Frame, req codec.Request) {
	h, ok := handlers[req.Op]
	if !ok {
		c.reply(frame, codec.Reply{ID: req.ID, Op: req.Op, Code: codeBadRequest, Error: "unknown op " + req.Op})
		return
	}
	if req.Player == "" {
		c.reply(frame, codec.Reply{ID: req.ID, Op: req.Op, Code: codeBadRequest, Error: "player is required"})
		return
	}
	a := engine.Actor{Bot: c.BotID, PlayerID: req.Player, Name: req.Name}
	data, err := h(c, frame, req, a)
	if err != nil {
		code := codeOf(err)
		if code == codeInternal {
			log.Printf("[Gateway] %s op=%s player=%s: %v", c.ID, req.Op, req.Player, err)
		}
		c.reply(frame, codec.Reply{ID: req.ID, Op: req.Op, Code: code, Error: err.Error()})
		return
	}
	c.reply(frame, codec.Reply{ID: req.ID, Op: req.Op, OK: true, Data: data})
}

func handleChat(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	msg := req.Arg("message")
	if msg == "" {
		return nil, badRequest("message is required")
	}
	return c.gateway.engine.Chat(c.ctx, a, msg, req.StringsArg("history"))
}

func handleShop(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	item := req.Arg("item")
	if item == "" {
		return nil, badRequest("item is required")
	}
	return c.gateway.engine.Shop(c.ctx, a, item, req.Arg("letter"))
}

func handleCatalog(c *Connection, _ codec.Frame, _ codec.Request, a engine.Actor) (any, error) {
	return c.gateway.engine.Catalog(a)
}

func handleExplore(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	bonus, _ := req.IntArg("bonus")
	return c.gateway.engine.Explore(c.ctx, a, bonus)
}

func handleProfile(c *Connection, _ codec.Frame, _ codec.Request, a engine.Actor) (any, error) {
	return c.gateway.engine.Profile(c.ctx, a)
}

func handleSetCard(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	return c.gateway.engine.SetCard(c.ctx, a, req.Arg("card"))
}

func handleChallenge(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	if req.Target == "" {
		return nil, badRequest("target is required")
	}
	target := arena.Participant{PlayerID: req.Target, Name: req.TargetName}
	return c.gateway.engine.Challenge(c.ctx, a, target, req.TargetIsBot)
}

func handleAccept(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	return c.gateway.engine.Accept(c.ctx, a, req.Arg("challenge"))
}

func handleDecline(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	return c.gateway.engine.Decline(c.ctx, a, req.Arg("challenge"))
}

// handleStartDuel starts and runs the duel. Rounds are pushed as they
// resolve; the reply carries the full report.
func handleStartDuel(c *Connection, frame codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	raw := req.Arg("mode")
	if raw == "" {
		raw = progression.ModeWager.String()
	}
	mode, err := progression.ParseMode(raw)
	if err != nil {
		return nil, badRequest("%v", err)
	}
	sess, err := c.gateway.engine.StartDuel(c.ctx, a, req.Arg("challenge"), mode)
	if err != nil {
		return nil, err
	}
	return c.gateway.engine.RunDuel(c.ctx, sess.ID, func(sessionID string, r progression.Round) {
		c.push(frame, codec.Push{
			Op:   PushDuelRound,
			Ref:  req.ID,
			Data: map[string]any{"session_id": sessionID, "round": r},
		})
	})
}

func handleProposeEvent(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	ev := progression.CustomEvent{
		Author:      req.Arg("author"),
		Description: req.Arg("description"),
		SuccessText: req.Arg("success"),
		FailText:    req.Arg("fail"),
	}
	return c.gateway.engine.ProposeEvent(c.ctx, a, ev)
}

func handleVoteEvent(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	id := req.Arg("ballot")
	if id == "" {
		return nil, badRequest("ballot is required")
	}
	return c.gateway.engine.VoteEvent(c.ctx, a, id, req.BoolArg("approve"))
}

func handleSummarize(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	history := req.StringsArg("history")
	if len(history) == 0 {
		return nil, badRequest("history is required")
	}
	return c.gateway.engine.Summarize(c.ctx, a, history, req.Arg("instruction"))
}

// handleRemind schedules a push on this connection. Reminders die with it.
func handleRemind(c *Connection, frame codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	d, note, err := c.gateway.engine.Remind(a, req.Arg("delay"), req.Arg("note"))
	if err != nil {
		return nil, err
	}
	due := time.Now().Add(d).UTC()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			c.push(frame, codec.Push{
				Op:   PushRemind,
				Ref:  req.ID,
				Data: map[string]any{"player": a.PlayerID, "note": note},
			})
		case <-c.ctx.Done():
		}
	}()
	return map[string]any{"due": due, "note": note}, nil
}

// Admin ops from the bridge need the admin module and a bridge-asserted
// moderator flag. The affected player is the request target.
func adminTarget(c *Connection, req codec.Request) (engine.Target, error) {
	if !c.gateway.engine.Bot(c.BotID).Enabled(catalog.ModuleAdmin) {
		return engine.Target{}, fmt.Errorf("%w: %s", engine.ErrModuleDisabled, catalog.ModuleAdmin)
	}
	if !req.BoolArg("is_admin") {
		return engine.Target{}, errForbidden
	}
	if req.Target == "" {
		return engine.Target{}, badRequest("target is required")
	}
	return engine.Target{Bot: c.BotID, Player: req.Target}, nil
}

func handleAdminFavor(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	t, err := adminTarget(c, req)
	if err != nil {
		return nil, err
	}
	value, ok := req.IntArg("value")
	if !ok {
		return nil, badRequest("value is required")
	}
	mode, err := progression.ParseFavorMode(req.Arg("mode"))
	if err != nil {
		return nil, badRequest("%v", err)
	}
	return c.gateway.engine.SetFavorability(c.ctx, t, a.PlayerID, value, mode)
}

func handleAdminResetCard(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	t, err := adminTarget(c, req)
	if err != nil {
		return nil, err
	}
	return c.gateway.engine.ResetCard(c.ctx, t, a.PlayerID)
}

func handleAdminRevive(c *Connection, _ codec.Frame, req codec.Request, a engine.Actor) (any, error) {
	t, err := adminTarget(c, req)
	if err != nil {
		return nil, err
	}
	return c.gateway.engine.Revive(c.ctx, t, a.PlayerID)
}

func handleAdminPlayer(c *Connection, _ codec.Frame, req codec.Request, _ engine.Actor) (any, error) {
	t, err := adminTarget(c, req)
	if err != nil {
		return nil, err
	}
	key, view, err := c.gateway.engine.Player(c.ctx, t)
	if err != nil {
		return nil, err
	}
	return map[string]any{"key": key, "view": view}, nil
}
