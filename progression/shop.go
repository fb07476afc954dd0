package progression

import "strings"

// Item is one catalog entry. Only the effect fields of its category apply.
type Item struct {
	Category Category `json:"category" yaml:"category"`
	Name     string   `json:"name" yaml:"name"`
	Cost     int      `json:"cost" yaml:"cost"`
	Desc     string   `json:"desc,omitempty" yaml:"desc,omitempty"`

	Atk     int     `json:"atk,omitempty" yaml:"atk,omitempty"`
	HP      int     `json:"hp,omitempty" yaml:"hp,omitempty"`
	Def     int     `json:"def,omitempty" yaml:"def,omitempty"`
	Recover int     `json:"recover,omitempty" yaml:"recover,omitempty"`
	Favor   int     `json:"favor,omitempty" yaml:"favor,omitempty"`
	Special Special `json:"special,omitempty" yaml:"special,omitempty"`
}

// Field names reported in PurchaseResult.Changed.
const (
	FieldWeapon       = "equip.weapon"
	FieldArmor        = "equip.armor"
	FieldAtk          = "rpg.atk"
	FieldMaxHP        = "rpg.max_hp"
	FieldHP           = "rpg.hp"
	FieldDef          = "rpg.def"
	FieldFavorability = "favorability"
)

// Directive names extra narration context for an event.
type Directive string

const (
	DirectiveNone        Directive = ""
	DirectiveGiftReceive Directive = "gift_receive"
)

type PurchaseResult struct {
	Item       Item      `json:"item"`
	GoldBefore int       `json:"gold_before"`
	GoldAfter  int       `json:"gold_after"`
	Changed    []string  `json:"changed"`
	FavorDelta int       `json:"favor_delta"`
	HPDelta    int       `json:"hp_delta"`
	OldFavor   int       `json:"old_favor"`
	Directive  Directive `json:"directive,omitempty"`
	Letter     string    `json:"letter,omitempty"`
}

// Purchase validates and applies item to rec. On any error rec is left
// untouched: the effect is built on a copy that is committed at the end.
func Purchase(rec *Record, item Item, letter string) (PurchaseResult, error) {
	if rec.Gold < item.Cost {
		return PurchaseResult{}, ErrInsufficientFunds
	}

	next := rec.Clone()
	res := PurchaseResult{
		Item:       item,
		GoldBefore: rec.Gold,
		OldFavor:   rec.Favorability,
	}

	switch item.Category {
	case CategoryWeapon:
		next.Equip.Weapon = item.Name
		next.RPG.Atk = BaseAtk + item.Atk
		res.Changed = []string{FieldWeapon, FieldAtk}

	case CategoryArmor:
		next.Equip.Armor = item.Name
		next.RPG.MaxHP = BaseMaxHP + item.HP
		next.RPG.Def = max(0, item.Def)
		res.Changed = []string{FieldArmor, FieldMaxHP, FieldDef}
		if next.RPG.HP < next.RPG.MaxHP {
			next.RPG.HP = next.RPG.MaxHP
			res.Changed = append(res.Changed, FieldHP)
		}

	case CategoryPotion:
		if rec.RPG.HP >= HPCap {
			return PurchaseResult{}, ErrAlreadyAtCap
		}
		next.RPG.HP = min(rec.RPG.HP+item.Recover, HPCap)
		res.Changed = []string{FieldHP}

	case CategoryTool:
		if item.Special != SpecialRedemption {
			return PurchaseResult{}, ErrUnsupportedItem
		}
		if rec.Favorability >= 0 {
			return PurchaseResult{}, ErrNothingToRedeem
		}
		next.Favorability = 0
		res.Changed = []string{FieldFavorability}

	case CategoryGift:
		if item.Special == SpecialLetter {
			letter = strings.TrimSpace(letter)
			if letter == "" {
				return PurchaseResult{}, ErrEmptyLetter
			}
			res.Letter = letter
		}
		next.Favorability = Clamp(rec.Favorability + item.Favor)
		res.Changed = []string{FieldFavorability}
		res.Directive = DirectiveGiftReceive

	default:
		return PurchaseResult{}, ErrUnsupportedItem
	}

	next.Gold -= item.Cost
	res.GoldAfter = next.Gold
	res.FavorDelta = next.Favorability - rec.Favorability
	res.HPDelta = next.RPG.HP - rec.RPG.HP
	*rec = *next
	return res, nil
}
