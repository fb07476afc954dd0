package progression

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeRecord_LegacyCardString(t *testing.T) {
	rec, err := DecodeRecord([]byte(`"a wandering bard"`))
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	want := NewRecord()
	want.Card = "a wandering bard"
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecord_BackfillsMissingFields(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"card":"x","rpg":{"lv":1,"hp":80},"equip":{"weapon":"无"}}`))
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	want := &Record{
		Card: "x",
		RPG:  Stats{Level: 1, HP: 80, MaxHP: BaseMaxHP, Atk: BaseAtk, Def: 0},
	}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRecord_ToleratesOddValues(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"favorability":"9000","gold":-5.7,"rpg":{"hp":-12,"atk":25.0,"def":3},"extra":{"k":1}}`))
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if rec.Favorability != FavorMax {
		t.Fatalf("expected favorability clamped to %d, got %d", FavorMax, rec.Favorability)
	}
	if rec.Gold != 0 {
		t.Fatalf("expected gold floored at 0, got %d", rec.Gold)
	}
	if rec.RPG.HP != -12 {
		t.Fatalf("expected raw negative hp to survive, got %d", rec.RPG.HP)
	}
	if rec.RPG.Atk != 25 || rec.RPG.Def != 3 {
		t.Fatalf("unexpected stats: %+v", rec.RPG)
	}
}

func TestDecodeRecord_Empty(t *testing.T) {
	rec, err := DecodeRecord(nil)
	if err != nil {
		t.Fatalf("decode err: %v", err)
	}
	if !rec.Equal(NewRecord()) {
		t.Fatalf("expected default record, got %+v", rec)
	}
	if _, err := DecodeRecord([]byte(`{not json`)); err == nil {
		t.Fatalf("expected error for broken JSON")
	}
}

func TestView_ClampsHPForDisplay(t *testing.T) {
	rec := NewRecord()
	rec.RPG.HP = -30
	v := rec.View()
	if v.RPG.HP != 0 || !v.Defeated {
		t.Fatalf("expected display hp 0 and defeated, got hp=%d defeated=%v", v.RPG.HP, v.Defeated)
	}
	if rec.RPG.HP != -30 {
		t.Fatalf("view must not mutate the record")
	}
}

func TestLooksLikeRecord(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`"card only"`, true},
		{`{"gold":10}`, true},
		{`{"rpg":{"hp":1}}`, true},
		{`{"3fa1c2d4e5f60718":{"gold":10}}`, false},
		{`{}`, false},
		{`12`, false},
	}
	for _, tc := range cases {
		if got := LooksLikeRecord([]byte(tc.raw)); got != tc.want {
			t.Fatalf("LooksLikeRecord(%s)=%v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestBotScope_StableAndDistinct(t *testing.T) {
	a := BotScope("bot-alpha")
	if a != BotScope(" bot-alpha ") {
		t.Fatalf("scope should ignore surrounding space")
	}
	if a == BotScope("bot-beta") {
		t.Fatalf("different bots must not share a scope")
	}
	if len(a) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", a)
	}
}
