package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"rpg-lite/apps/server/internal/engine"
	"rpg-lite/progression"
)

const operatorName = "mcp"

type TargetInput struct {
	Player string `json:"player" jsonschema:"player id"`
	Bot    string `json:"bot" jsonschema:"bot instance id, or the stored scope hash when scoped is set"`
	Scoped bool   `json:"scoped,omitempty" jsonschema:"treat bot as an already hashed scope"`
}

func (t TargetInput) target() engine.Target {
	return engine.Target{Bot: t.Bot, Player: t.Player, Scoped: t.Scoped}
}

type SetFavorabilityInput struct {
	TargetInput
	Value int    `json:"value" jsonschema:"favorability value, or a signed delta in add mode"`
	Mode  string `json:"mode,omitempty" jsonschema:"add or set (default add)"`
}

type ListCustomEventsInput struct{}

type PlayerOutput struct {
	PlayerID     string `json:"player_id"`
	BotID        string `json:"bot_id"`
	Card         string `json:"card"`
	Favorability int    `json:"favorability"`
	Stage        string `json:"stage"`
	Gold         int    `json:"gold"`
	Level        int    `json:"lv"`
	HP           int    `json:"hp"`
	MaxHP        int    `json:"max_hp"`
	Atk          int    `json:"atk"`
	Def          int    `json:"def"`
	Weapon       string `json:"weapon"`
	Armor        string `json:"armor"`
	Defeated     bool   `json:"defeated"`
}

type AdminOutput struct {
	Old    string       `json:"old"`
	New    string       `json:"new"`
	Player PlayerOutput `json:"player"`
}

type CustomEventOutput struct {
	Author      string `json:"author"`
	Description string `json:"description"`
	SuccessText string `json:"success"`
	FailText    string `json:"fail"`
}

type ListCustomEventsOutput struct {
	Events []CustomEventOutput `json:"events"`
}

func playerOutput(key progression.Key, v progression.View) PlayerOutput {
	return PlayerOutput{
		PlayerID:     key.PlayerID,
		BotID:        key.BotID,
		Card:         v.Card,
		Favorability: v.Favorability,
		Stage:        v.Stage,
		Gold:         v.Gold,
		Level:        v.RPG.Level,
		HP:           v.RPG.HP,
		MaxHP:        v.RPG.MaxHP,
		Atk:          v.RPG.Atk,
		Def:          v.RPG.Def,
		Weapon:       v.Equip.Weapon,
		Armor:        v.Equip.Armor,
		Defeated:     v.Defeated,
	}
}

func adminOutput(res *engine.AdminResult) AdminOutput {
	return AdminOutput{
		Old:    fmt.Sprint(res.Old),
		New:    fmt.Sprint(res.New),
		Player: playerOutput(res.Key, res.View),
	}
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_player",
		Description: "Show the progression record of a player under one bot",
	}, s.handleGetPlayer)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "set_favorability",
		Description: "Set, raise or lower a player's favorability, clamped to the allowed range",
	}, s.handleSetFavorability)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "reset_card",
		Description: "Clear a player's character card",
	}, s.handleResetCard)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "revive_player",
		Description: "Restore a player's hp to max hp",
	}, s.handleRevivePlayer)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "reset_player",
		Description: "Replace a player's record with a fresh one",
	}, s.handleResetPlayer)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_custom_events",
		Description: "List the community exploration events in the pool",
	}, s.handleListCustomEvents)
}

func validateTarget(input TargetInput) error {
	if input.Player == "" {
		return fmt.Errorf("player is required")
	}
	if input.Bot == "" {
		return fmt.Errorf("bot is required")
	}
	return nil
}

func (s *Server) handleGetPlayer(ctx context.Context, req *sdk.CallToolRequest, input TargetInput) (*sdk.CallToolResult, PlayerOutput, error) {
	if err := validateTarget(input); err != nil {
		return nil, PlayerOutput{}, err
	}
	key, view, err := s.engine.Player(ctx, input.target())
	if err != nil {
		return nil, PlayerOutput{}, err
	}
	return nil, playerOutput(key, view), nil
}

func (s *Server) handleSetFavorability(ctx context.Context, req *sdk.CallToolRequest, input SetFavorabilityInput) (*sdk.CallToolResult, AdminOutput, error) {
	if err := validateTarget(input.TargetInput); err != nil {
		return nil, AdminOutput{}, err
	}
	mode, err := progression.ParseFavorMode(input.Mode)
	if err != nil {
		return nil, AdminOutput{}, err
	}
	res, err := s.engine.SetFavorability(ctx, input.target(), operatorName, input.Value, mode)
	if err != nil {
		return nil, AdminOutput{}, err
	}
	return nil, adminOutput(res), nil
}

type adminOp func(ctx context.Context, t engine.Target, operator string) (*engine.AdminResult, error)

func (s *Server) runAdmin(ctx context.Context, input TargetInput, op adminOp) (*sdk.CallToolResult, AdminOutput, error) {
	if err := validateTarget(input); err != nil {
		return nil, AdminOutput{}, err
	}
	res, err := op(ctx, input.target(), operatorName)
	if err != nil {
		return nil, AdminOutput{}, err
	}
	return nil, adminOutput(res), nil
}

func (s *Server) handleResetCard(ctx context.Context, req *sdk.CallToolRequest, input TargetInput) (*sdk.CallToolResult, AdminOutput, error) {
	return s.runAdmin(ctx, input, s.engine.ResetCard)
}

func (s *Server) handleRevivePlayer(ctx context.Context, req *sdk.CallToolRequest, input TargetInput) (*sdk.CallToolResult, AdminOutput, error) {
	return s.runAdmin(ctx, input, s.engine.Revive)
}

func (s *Server) handleResetPlayer(ctx context.Context, req *sdk.CallToolRequest, input TargetInput) (*sdk.CallToolResult, AdminOutput, error) {
	return s.runAdmin(ctx, input, s.engine.ResetPlayer)
}

func (s *Server) handleListCustomEvents(ctx context.Context, req *sdk.CallToolRequest, input ListCustomEventsInput) (*sdk.CallToolResult, ListCustomEventsOutput, error) {
	events, err := s.engine.CustomEvents(ctx)
	if err != nil {
		return nil, ListCustomEventsOutput{}, err
	}
	output := make([]CustomEventOutput, 0, len(events))
	for _, ev := range events {
		output = append(output, CustomEventOutput{
			Author:      ev.Author,
			Description: ev.Description,
			SuccessText: ev.SuccessText,
			FailText:    ev.FailText,
		})
	}
	return nil, ListCustomEventsOutput{Events: output}, nil
}
