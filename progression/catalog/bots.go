package catalog

import (
	"strings"
	"sync"

	"rpg-lite/progression"
)

const (
	ModuleChat    = "chat"
	ModuleRPG     = "rpg"
	ModuleAdmin   = "admin"
	ModuleUtility = "utility"

	defaultTemperature  = 0.8
	defaultSystemPrompt = "You are a helpful assistant."
)

var allModules = []string{ModuleChat, ModuleRPG, ModuleAdmin, ModuleUtility}

// Bot is the persona and feature set of one bot instance.
type Bot struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	SystemPrompts  []string `yaml:"system_prompts" json:"system_prompts"`
	Knowledge      []string `yaml:"knowledge" json:"knowledge"`
	Temperature    *float64 `yaml:"temperature" json:"temperature,omitempty"`
	EnabledModules []string `yaml:"enabled_modules" json:"enabled_modules"`
}

// Scope is the store scope for records kept under this bot.
func (b Bot) Scope() string { return progression.BotScope(b.ID) }

func (b Bot) Temp() float64 {
	if b.Temperature == nil {
		return defaultTemperature
	}
	return *b.Temperature
}

// Persona joins the non-empty system prompts.
func (b Bot) Persona() string {
	parts := make([]string, 0, len(b.SystemPrompts))
	for _, p := range b.SystemPrompts {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return defaultSystemPrompt
	}
	return strings.Join(parts, "\n\n")
}

// Enabled reports whether module is on. A bot with no module list has
// everything enabled.
func (b Bot) Enabled(module string) bool {
	if len(b.EnabledModules) == 0 {
		return true
	}
	for _, m := range b.EnabledModules {
		if strings.EqualFold(strings.TrimSpace(m), module) {
			return true
		}
	}
	return false
}

// Bots resolves bot settings by instance id or store scope. Unknown bots
// fall back to the default settings under their own id.
type Bots struct {
	mu       sync.RWMutex
	fallback Bot
	byID     map[string]Bot
	byScope  map[string]Bot
}

func NewBots(fallback Bot, list []Bot) *Bots {
	if len(fallback.EnabledModules) == 0 {
		fallback.EnabledModules = append([]string(nil), allModules...)
	}
	b := &Bots{
		fallback: fallback,
		byID:     make(map[string]Bot, len(list)),
		byScope:  make(map[string]Bot, len(list)),
	}
	for _, bot := range list {
		b.putLocked(bot)
	}
	return b
}

func (b *Bots) putLocked(bot Bot) {
	bot.ID = strings.TrimSpace(bot.ID)
	if bot.ID == "" {
		return
	}
	b.byID[bot.ID] = bot
	b.byScope[bot.Scope()] = bot
}

// Put adds or replaces a bot.
func (b *Bots) Put(bot Bot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(bot)
}

func (b *Bots) Get(id string) Bot {
	id = strings.TrimSpace(id)
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bot, ok := b.byID[id]; ok {
		return bot
	}
	bot := b.fallback
	bot.ID = id
	return bot
}

// ByScope finds a configured bot by its store scope.
func (b *Bots) ByScope(scope string) (Bot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bot, ok := b.byScope[scope]
	return bot, ok
}

func (b *Bots) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}
