package progression

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// legacyNone is how older records spelled an empty equipment slot.
const legacyNone = "无"

// Key scopes a record to one player under one bot instance.
// BotID holds the scope hash, see BotScope.
type Key struct {
	PlayerID string `json:"player_id"`
	BotID    string `json:"bot_id"`
}

func (k Key) String() string { return k.PlayerID + "@" + k.BotID }

func (k Key) Valid() bool {
	return strings.TrimSpace(k.PlayerID) != "" && strings.TrimSpace(k.BotID) != ""
}

// BotScope hashes a bot instance identifier into the scope key used by
// every store backend.
func BotScope(botInstanceID string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(botInstanceID)))
	return hex.EncodeToString(sum[:8])
}

type Stats struct {
	Level int `json:"lv"`
	HP    int `json:"hp"`
	MaxHP int `json:"max_hp"`
	Atk   int `json:"atk"`
	Def   int `json:"def"`
}

type Equipment struct {
	Weapon string `json:"weapon"`
	Armor  string `json:"armor"`
}

// Record is the persisted progression state of one player.
type Record struct {
	Card         string    `json:"card"`
	Favorability int       `json:"favorability"`
	Gold         int       `json:"gold"`
	RPG          Stats     `json:"rpg"`
	Equip        Equipment `json:"equip"`
}

// NewRecord returns the default record handed to new players and to
// losers of a lethal duel.
func NewRecord() *Record {
	return &Record{
		RPG: Stats{
			Level: BaseLevel,
			HP:    BaseMaxHP,
			MaxHP: BaseMaxHP,
			Atk:   BaseAtk,
			Def:   BaseDef,
		},
	}
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// Equal compares every persisted field.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return *r == *other
}

// View is the display form of a record: hp is never shown negative.
type View struct {
	Card         string    `json:"card"`
	Favorability int       `json:"favorability"`
	Stage        string    `json:"stage"`
	Gold         int       `json:"gold"`
	RPG          Stats     `json:"rpg"`
	Equip        Equipment `json:"equip"`
	Defeated     bool      `json:"defeated"`
}

func (r *Record) View() View {
	v := View{
		Card:         r.Card,
		Favorability: r.Favorability,
		Stage:        StageOf(r.Favorability).Title,
		Gold:         r.Gold,
		RPG:          r.RPG,
		Equip:        r.Equip,
		Defeated:     r.RPG.HP <= 0,
	}
	if v.RPG.HP < 0 {
		v.RPG.HP = 0
	}
	return v
}

// flexInt accepts any JSON number or numeric string so older or hand-edited
// state files never fail to load.
type flexInt struct {
	set bool
	v   int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	if n, err := strconv.Atoi(raw); err == nil {
		f.set, f.v = true, n
		return nil
	}
	if x, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(x) && !math.IsInf(x, 0) {
		if x > math.MaxInt32 {
			x = math.MaxInt32
		}
		if x < math.MinInt32 {
			x = math.MinInt32
		}
		f.set, f.v = true, int(x)
	}
	return nil
}

type flexString struct {
	set bool
	v   string
}

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.set, f.v = true, s
	}
	return nil
}

type rawStats struct {
	Level flexInt `json:"lv"`
	HP    flexInt `json:"hp"`
	MaxHP flexInt `json:"max_hp"`
	Atk   flexInt `json:"atk"`
	Def   flexInt `json:"def"`
}

type rawEquip struct {
	Weapon flexString `json:"weapon"`
	Armor  flexString `json:"armor"`
}

type rawRecord struct {
	Card         flexString `json:"card"`
	Favorability flexInt    `json:"favorability"`
	Gold         flexInt    `json:"gold"`
	RPG          *rawStats  `json:"rpg"`
	Equip        *rawEquip  `json:"equip"`
}

// DecodeRecord parses a stored record of any known shape and normalizes it.
// A bare JSON string is the oldest shape and carries only the card.
func DecodeRecord(data []byte) (*Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return NewRecord(), nil
	}
	if data[0] == '"' {
		var card string
		if err := json.Unmarshal(data, &card); err != nil {
			return nil, fmt.Errorf("decode legacy card: %w", err)
		}
		rec := NewRecord()
		rec.Card = card
		return rec, nil
	}
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return raw.normalize(), nil
}

func (raw *rawRecord) normalize() *Record {
	rec := NewRecord()
	if raw.Card.set {
		rec.Card = raw.Card.v
	}
	if raw.Favorability.set {
		rec.Favorability = raw.Favorability.v
	}
	if raw.Gold.set {
		rec.Gold = raw.Gold.v
	}
	if s := raw.RPG; s != nil {
		if s.Level.set {
			rec.RPG.Level = s.Level.v
		}
		if s.HP.set {
			rec.RPG.HP = s.HP.v
		}
		if s.MaxHP.set {
			rec.RPG.MaxHP = s.MaxHP.v
		}
		if s.Atk.set {
			rec.RPG.Atk = s.Atk.v
		}
		if s.Def.set {
			rec.RPG.Def = s.Def.v
		}
	}
	if e := raw.Equip; e != nil {
		if e.Weapon.set {
			rec.Equip.Weapon = e.Weapon.v
		}
		if e.Armor.set {
			rec.Equip.Armor = e.Armor.v
		}
	}
	Normalize(rec)
	return rec
}

// Normalize enforces the record invariants in place.
func Normalize(rec *Record) {
	rec.Favorability = Clamp(rec.Favorability)
	if rec.Gold < 0 {
		rec.Gold = 0
	}
	if rec.RPG.Level < BaseLevel {
		rec.RPG.Level = BaseLevel
	}
	if rec.RPG.MaxHP <= 0 {
		rec.RPG.MaxHP = BaseMaxHP
	}
	if rec.RPG.Atk <= 0 {
		rec.RPG.Atk = BaseAtk
	}
	if rec.RPG.Def < 0 {
		rec.RPG.Def = BaseDef
	}
	rec.Equip.Weapon = normalizeSlot(rec.Equip.Weapon)
	rec.Equip.Armor = normalizeSlot(rec.Equip.Armor)
}

func normalizeSlot(name string) string {
	name = strings.TrimSpace(name)
	if name == legacyNone || strings.EqualFold(name, "none") {
		return ""
	}
	return name
}

// LooksLikeRecord reports whether a player-level JSON value is a flat record
// rather than a map of bot scopes.
func LooksLikeRecord(data []byte) bool {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return false
	}
	if data[0] == '"' {
		return true
	}
	if data[0] != '{' {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return false
	}
	for _, name := range []string{"card", "favorability", "gold", "rpg", "equip"} {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	return false
}
