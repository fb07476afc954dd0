package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"rpg-lite/progression"
)

//go:embed schema.json
var schemaJSON string

//go:embed default.yaml
var defaultYAML []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Endpoint is one OpenAI-compatible narration backend.
type Endpoint struct {
	URL   string   `yaml:"url" json:"url"`
	Keys  []string `yaml:"keys" json:"keys"`
	Model string   `yaml:"model" json:"model"`
}

// GameConfig is the static game data file.
type GameConfig struct {
	Oracle       []Endpoint                `yaml:"oracle"`
	DefaultBot   Bot                       `yaml:"default_bot"`
	Bots         []Bot                     `yaml:"bots"`
	Items        []progression.Item        `yaml:"items"`
	CustomEvents []progression.CustomEvent `yaml:"custom_events"`
}

// Load reads and validates a YAML game config. An empty path loads the
// built-in default.
func Load(path string) (*GameConfig, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read game config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading game config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in game config.
func Default() *GameConfig {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in game config is invalid: %v", err))
	}
	return cfg
}

// Parse validates raw YAML against the embedded schema and decodes it.
func Parse(data []byte) (*GameConfig, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}
	var cfg GameConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse game config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateSchema(data []byte) error {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("gameconfig.schema.json", schemaJSON)
	})
	if schemaErr != nil {
		return fmt.Errorf("compile game config schema: %w", schemaErr)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse game config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// yaml numbers are Go ints; the validator wants JSON-decoded values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("game config is not JSON-compatible: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return err
	}
	if err := schema.Validate(normalized); err != nil {
		return fmt.Errorf("game config schema: %w", err)
	}
	return nil
}

func (c *GameConfig) validate() error {
	seen := make(map[string]struct{}, len(c.Items))
	for _, it := range c.Items {
		key := strings.ToLower(strings.TrimSpace(it.Name))
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate item name %q", it.Name)
		}
		seen[key] = struct{}{}
		if it.Special == progression.SpecialRedemption && it.Category != progression.CategoryTool {
			return fmt.Errorf("item %q: redemption is only valid on tools", it.Name)
		}
		if it.Special == progression.SpecialLetter && it.Category != progression.CategoryGift {
			return fmt.Errorf("item %q: letter is only valid on gifts", it.Name)
		}
	}
	ids := make(map[string]struct{}, len(c.Bots))
	for _, b := range c.Bots {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			return fmt.Errorf("bot %q has no id", b.Name)
		}
		if _, dup := ids[id]; dup {
			return fmt.Errorf("duplicate bot id %q", id)
		}
		ids[id] = struct{}{}
	}
	for i, ep := range c.Oracle {
		if len(ep.Keys) == 0 {
			return fmt.Errorf("oracle endpoint %d (%s) has no keys", i, ep.URL)
		}
	}
	return nil
}

// Items indexes the item catalog. It is read-only after construction.
type Items struct {
	byName map[string]progression.Item
	order  []progression.Item
}

func NewItems(list []progression.Item) *Items {
	it := &Items{byName: make(map[string]progression.Item, len(list))}
	for _, item := range list {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			continue
		}
		it.byName[strings.ToLower(item.Name)] = item
		it.order = append(it.order, item)
	}
	rank := make(map[progression.Category]int, len(progression.Categories))
	for i, c := range progression.Categories {
		rank[c] = i
	}
	sort.SliceStable(it.order, func(i, j int) bool {
		a, b := it.order[i], it.order[j]
		if rank[a.Category] != rank[b.Category] {
			return rank[a.Category] < rank[b.Category]
		}
		return a.Cost < b.Cost
	})
	return it
}

// Find looks an item up by name, ignoring case.
func (it *Items) Find(name string) (progression.Item, bool) {
	item, ok := it.byName[strings.ToLower(strings.TrimSpace(name))]
	return item, ok
}

func (it *Items) ByCategory(c progression.Category) []progression.Item {
	var out []progression.Item
	for _, item := range it.order {
		if item.Category == c {
			out = append(out, item)
		}
	}
	return out
}

func (it *Items) All() []progression.Item {
	return append([]progression.Item(nil), it.order...)
}
