package dice

import "testing"

func TestBetween_StaysInRange(t *testing.T) {
	src := New(7)
	for i := 0; i < 2000; i++ {
		v := Between(src, 10, 20)
		if v < 10 || v > 20 {
			t.Fatalf("out of range: %d", v)
		}
	}
	if got := Between(src, 5, 5); got != 5 {
		t.Fatalf("degenerate range: got %d", got)
	}
}

func TestNew_SameSeedSameSequence(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 50; i++ {
		if D20(a) != D20(b) {
			t.Fatalf("sequences diverged at draw %d", i)
		}
	}
}

func TestScript_ReturnsFacesAndClamps(t *testing.T) {
	s := &Script{Ints: []int{3, 250, -4}, Floats: []float64{0.25}}
	if got := D100(s); got != 3 {
		t.Fatalf("expected face 3, got %d", got)
	}
	if got := D100(s); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}
	if got := D20(s); got != 1 {
		t.Fatalf("expected clamp to 1, got %d", got)
	}
	if got := D20(s); got != 1 {
		t.Fatalf("exhausted script should yield low end, got %d", got)
	}
	if got := Uniform(s, 0.1, 0.5); got < 0.199 || got > 0.201 {
		t.Fatalf("unexpected uniform: %v", got)
	}
}
