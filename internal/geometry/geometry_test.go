package geometry

import (
	"math"
	"math/rand/v2"
	"testing"
)

func TestPixelRoundTrip(t *testing.T) {
	sizes := []float64{1, 37, 800, 1000, 2480.5}
	for _, s := range sizes {
		for v := 0.0; v <= 100; v += 0.7 {
			got := PixelToPct(PctToPixel(v, s), s)
			if math.Abs(got-v) > 1e-9 {
				t.Errorf("size %v: expected %v, got %v", s, v, got)
			}
		}
	}
}

func TestPixelToPct_ZeroContainer(t *testing.T) {
	if got := PixelToPct(120, 0); got != 0 {
		t.Errorf("expected 0 for zero container, got %v", got)
	}
	if got := PixelToPct(120, -5); got != 0 {
		t.Errorf("expected 0 for negative container, got %v", got)
	}
}

func TestConstrainPosition_Clamps(t *testing.T) {
	r := Rect{X: 40, Y: 50, W: 20, H: 6}

	got := ConstrainPosition(r, -50, 0)
	want := Rect{X: 0, Y: 50, W: 20, H: 6}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	got = ConstrainPosition(r, 90, 90)
	want = Rect{X: 80, Y: 94, W: 20, H: 6}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestConstrainSize_RespectsMinimumsAndBounds(t *testing.T) {
	r := Rect{X: 70, Y: 90, W: 20, H: 6}

	got := ConstrainSize(r, 50, 50, 10, 3)
	want := Rect{X: 70, Y: 90, W: 30, H: 10}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	got = ConstrainSize(r, -100, -100, 10, 3)
	want = Rect{X: 70, Y: 90, W: 10, H: 3}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestConstrainSize_MinimumLargerThanRoom(t *testing.T) {
	r := Rect{X: 95, Y: 0, W: 5, H: 5}
	got := ConstrainSize(r, 0, 0, 10, 3)
	if !got.Valid() {
		t.Errorf("expected invariant to hold, got %+v", got)
	}
	if got.W != 5 {
		t.Errorf("expected width capped at 5, got %v", got.W)
	}
}

func TestConstrain_InvariantUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		r := Place(rng.Float64()*100, rng.Float64()*100, rng.Float64()*40, rng.Float64()*40)
		for step := 0; step < 50; step++ {
			d1 := (rng.Float64() - 0.5) * 300
			d2 := (rng.Float64() - 0.5) * 300
			if rng.IntN(2) == 0 {
				r = ConstrainPosition(r, d1, d2)
			} else {
				r = ConstrainSize(r, d1, d2, 4, 2.5)
			}
			if !r.Valid() {
				t.Fatalf("iteration %d step %d: invariant broken: %+v", i, step, r)
			}
		}
	}
}

func TestConstrainPosition_IgnoresNaN(t *testing.T) {
	r := Rect{X: 10, Y: 10, W: 10, H: 10}
	got := ConstrainPosition(r, math.NaN(), math.Inf(1))
	if got != r {
		t.Errorf("expected rect unchanged, got %+v", got)
	}
}

func TestPlace_ShiftsInside(t *testing.T) {
	got := Place(95, 98, 20, 6)
	want := Rect{X: 80, Y: 94, W: 20, H: 6}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestToPixelsFromPixels(t *testing.T) {
	c := Size{W: 1000, H: 800}
	r := Rect{X: 40, Y: 50, W: 20, H: 6}
	px := r.ToPixels(c)
	want := PixelRect{X: 400, Y: 400, W: 200, H: 48}
	if math.Abs(px.X-want.X) > 1e-9 || math.Abs(px.Y-want.Y) > 1e-9 ||
		math.Abs(px.W-want.W) > 1e-9 || math.Abs(px.H-want.H) > 1e-9 {
		t.Errorf("expected %+v, got %+v", want, px)
	}
	if back := FromPixels(px, c); !ApproxEqual(back, r, 1e-9) {
		t.Errorf("expected %+v, got %+v", r, back)
	}
}
