package progression

import "testing"

func TestStageOf_CoversRangeContiguously(t *testing.T) {
	table := Stages()
	if table[len(table)-1].Upper != FavorMax {
		t.Fatalf("last stage must end at %d", FavorMax)
	}
	for i := 1; i < len(table); i++ {
		if table[i].Upper <= table[i-1].Upper {
			t.Fatalf("stages not ordered at %d", i)
		}
	}
	for score := FavorMin; score <= FavorMax; score++ {
		s := StageOf(score)
		if score > s.Upper {
			t.Fatalf("score %d placed above its bracket %q", score, s.Title)
		}
	}
	if StageOf(-100).Title != "Hostile" || StageOf(-99).Title != "Cold" || StageOf(0).Title != "Neutral" {
		t.Fatalf("unexpected bracket boundaries")
	}
	if StageOf(99999).Title != "Devoted" || StageOf(-99999).Title != "Nemesis" {
		t.Fatalf("out-of-range scores should clamp into the end brackets")
	}
}

func TestApplyDelta(t *testing.T) {
	cases := []struct {
		name      string
		start     int
		text      string
		wantScore int
		wantText  string
		wantFound bool
	}{
		{"clamps high", 400, "hello [FAVORABILITY:+999]", 500, "hello", true},
		{"negative", 0, "hmph. [FAVORABILITY:-7]", -7, "hmph.", true},
		{"unsigned", 10, "[FAVORABILITY:5] nice", 15, "nice", true},
		{"adversarial low", -499, "x [FAVORABILITY:-2147483648]", -500, "x", true},
		{"absent", 42, "  just text  ", 42, "  just text  ", false},
		{"malformed payload", 42, "oops [FAVORABILITY:abc]", 42, "oops [FAVORABILITY:abc]", false},
		{"overflowing payload", 42, "big [FAVORABILITY:+99999999999999999999]", 42, "big [FAVORABILITY:+99999999999999999999]", false},
		{"multiple tags", 42, "a [FAVORABILITY:+5] b [FAVORABILITY:-3]", 42, "a  b", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := NewRecord()
			rec.Favorability = tc.start
			cleaned, score, delta := ApplyDelta(rec, tc.text)
			if score != tc.wantScore || rec.Favorability != tc.wantScore {
				t.Fatalf("score=%d rec=%d, want %d", score, rec.Favorability, tc.wantScore)
			}
			if cleaned != tc.wantText {
				t.Fatalf("cleaned=%q, want %q", cleaned, tc.wantText)
			}
			if delta.Found != tc.wantFound {
				t.Fatalf("found=%v, want %v", delta.Found, tc.wantFound)
			}
		})
	}
}

func TestParseDelta_MultipleTagsAreAmbiguous(t *testing.T) {
	delta, _ := ParseDelta("[FAVORABILITY:+1][FAVORABILITY:+2]")
	if !delta.Ambiguous || delta.Found {
		t.Fatalf("expected ambiguous delta, got %+v", delta)
	}
}

func TestClamp_AlwaysInRange(t *testing.T) {
	for _, v := range []int{-1 << 40, -501, -500, 0, 500, 501, 1 << 40} {
		got := Clamp(v)
		if got < FavorMin || got > FavorMax {
			t.Fatalf("Clamp(%d)=%d out of range", v, got)
		}
	}
}
