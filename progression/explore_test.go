package progression

import (
	"errors"
	"testing"

	"rpg-lite/dice"
)

func TestTierOf_Bands(t *testing.T) {
	cases := map[int]Tier{1: TierFumble, 5: TierFumble, 6: TierFail, 50: TierFail, 51: TierSuccess, 95: TierSuccess, 96: TierCritical, 100: TierCritical}
	for roll, want := range cases {
		if got := TierOf(roll); got != want {
			t.Fatalf("TierOf(%d)=%v, want %v", roll, got, want)
		}
	}
}

func TestExplore_FumbleAlwaysCosts(t *testing.T) {
	for gold := 0; gold <= 40; gold += 10 {
		for def := 0; def <= 60; def += 20 {
			rec := NewRecord()
			rec.Gold = gold
			rec.RPG.Def = def
			src := &dice.Script{Ints: []int{3, 20, 40}}
			res, err := Explore(rec, 0, src, nil)
			if err != nil {
				t.Fatalf("explore err: %v", err)
			}
			if res.Tier != TierFumble || res.FinalRoll != 3 {
				t.Fatalf("expected FUMBLE at 3, got %v at %d", res.Tier, res.FinalRoll)
			}
			if res.GoldDelta >= 0 {
				t.Fatalf("expected negative gold delta, got %d", res.GoldDelta)
			}
			if res.HPDelta > -5 {
				t.Fatalf("expected hp delta <= -5, got %d", res.HPDelta)
			}
			if rec.Gold != max(0, gold-20) {
				t.Fatalf("gold floor broken: %d", rec.Gold)
			}
		}
	}
}

func TestExplore_TierRewards(t *testing.T) {
	rec := NewRecord()
	res, err := Explore(rec, 0, &dice.Script{Ints: []int{99, 150}}, nil)
	if err != nil {
		t.Fatalf("explore err: %v", err)
	}
	if res.Tier != TierCritical || rec.Gold != 150 || rec.RPG.HP != 120 {
		t.Fatalf("unexpected critical: %+v rec=%+v", res, rec.RPG)
	}

	rec = NewRecord()
	rec.RPG.Def = 50
	res, _ = Explore(rec, 0, &dice.Script{Ints: []int{30, 15}}, nil)
	if res.Tier != TierFail || res.HPDelta != -1 || rec.RPG.HP != 99 {
		t.Fatalf("fail should deal at least 1: %+v", res)
	}
}

func TestExplore_BonusClampsRoll(t *testing.T) {
	rec := NewRecord()
	res, _ := Explore(rec, 500, &dice.Script{Ints: []int{2, 100}}, nil)
	if res.FinalRoll != 100 || res.Tier != TierCritical {
		t.Fatalf("expected clamped 100, got %d", res.FinalRoll)
	}
	rec = NewRecord()
	res, _ = Explore(rec, -500, &dice.Script{Ints: []int{99}}, nil)
	if res.FinalRoll != 1 || res.Tier != TierFumble {
		t.Fatalf("expected clamped 1, got %d", res.FinalRoll)
	}
}

func TestExplore_IncapacitatedRefuses(t *testing.T) {
	rec := NewRecord()
	rec.RPG.HP = 0
	rec.Gold = 10
	if _, err := Explore(rec, 0, dice.New(1), nil); !errors.Is(err, ErrIncapacitated) {
		t.Fatalf("expected ErrIncapacitated, got %v", err)
	}
	if rec.Gold != 10 || rec.RPG.HP != 0 {
		t.Fatalf("record mutated: %+v", rec)
	}
}

func TestExplore_HPIsNotFloored(t *testing.T) {
	rec := NewRecord()
	rec.RPG.HP = 3
	res, _ := Explore(rec, 0, &dice.Script{Ints: []int{2, 10, 50}}, nil)
	if rec.RPG.HP != 3-50 || res.HPAfter != rec.RPG.HP {
		t.Fatalf("expected raw hp %d, got %d", 3-50, rec.RPG.HP)
	}
}

func TestExplore_EventPoolSeedsNarrativeOnly(t *testing.T) {
	pool := []CustomEvent{
		{Author: "a", Description: "a locked chest", SuccessText: "gold", FailText: "a trap"},
		{Author: "b", Description: "a sleeping dragon", SuccessText: "scales", FailText: "fire"},
	}
	rec := NewRecord()
	src := &dice.Script{Floats: []float64{0.2}, Ints: []int{1, 70, 40}}
	res, _ := Explore(rec, 0, src, pool)
	if res.Event == nil || res.Event.Description != "a sleeping dragon" {
		t.Fatalf("expected second event, got %+v", res.Event)
	}
	if res.Tier != TierSuccess || res.GoldDelta != 40 {
		t.Fatalf("event must not change the numbers: %+v", res)
	}

	rec = NewRecord()
	src = &dice.Script{Floats: []float64{0.7}, Ints: []int{70, 40}}
	res, _ = Explore(rec, 0, src, pool)
	if res.Event != nil || res.Seed != genericExploreSeed {
		t.Fatalf("expected generic seed, got %+v", res)
	}
}
