// Package geometry is the percentage coordinate model shared by the field
// editor and the baker. Every function is pure; the baker re-uses these exact
// formulas so a field renders where the editor showed it.
package geometry

import "math"

// epsilon absorbs float rounding in X+W sums after clamping to 100-W.
const epsilon = 1e-9

// Rect is a field rectangle expressed in percent of its page container.
// Invariant: all values in [0,100], X+W <= 100, Y+H <= 100.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Size is a container size in pixels.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PixelRect is a Rect resolved against a container.
type PixelRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PctToPixel converts a percentage of size into pixels.
func PctToPixel(pct, size float64) float64 {
	return pct / 100 * size
}

// PixelToPct converts pixels into a percentage of size. A zero or negative
// size yields 0.
func PixelToPct(px, size float64) float64 {
	if size <= 0 {
		return 0
	}
	return px / size * 100
}

// Clamp limits v to [lo, hi]. When the bounds cross, hi wins so callers keep
// the X+W <= 100 invariant even when a minimum cannot be honoured.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		v = lo
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	return v
}

// ConstrainPosition moves r by (dx, dy) percent and clamps it inside the
// container. Width and height are unchanged.
func ConstrainPosition(r Rect, dx, dy float64) Rect {
	return Rect{
		X: Clamp(r.X+finite(dx), 0, 100-r.W),
		Y: Clamp(r.Y+finite(dy), 0, 100-r.H),
		W: r.W,
		H: r.H,
	}
}

// ConstrainSize grows r by (dw, dh) percent, keeping it at least minW x minH
// and inside the container. Position is unchanged.
func ConstrainSize(r Rect, dw, dh, minW, minH float64) Rect {
	return Rect{
		X: r.X,
		Y: r.Y,
		W: Clamp(r.W+finite(dw), minW, 100-r.X),
		H: Clamp(r.H+finite(dh), minH, 100-r.Y),
	}
}

// Place builds a rect at (x, y) with size (w, h), shrinking the size to the
// container and shifting the origin back inside if needed.
func Place(x, y, w, h float64) Rect {
	w = Clamp(w, 0, 100)
	h = Clamp(h, 0, 100)
	return Rect{
		X: Clamp(x, 0, 100-w),
		Y: Clamp(y, 0, 100-h),
		W: w,
		H: h,
	}
}

// Normalize returns r with the invariant restored.
func (r Rect) Normalize() Rect {
	return Place(r.X, r.Y, r.W, r.H)
}

// Valid reports whether r already satisfies the invariant.
func (r Rect) Valid() bool {
	return r.X >= 0 && r.Y >= 0 && r.W >= 0 && r.H >= 0 &&
		r.X+r.W <= 100+epsilon && r.Y+r.H <= 100+epsilon
}

// ToPixels resolves r against a container.
func (r Rect) ToPixels(c Size) PixelRect {
	return PixelRect{
		X: PctToPixel(r.X, c.W),
		Y: PctToPixel(r.Y, c.H),
		W: PctToPixel(r.W, c.W),
		H: PctToPixel(r.H, c.H),
	}
}

// FromPixels is the inverse of ToPixels.
func FromPixels(p PixelRect, c Size) Rect {
	return Rect{
		X: PixelToPct(p.X, c.W),
		Y: PixelToPct(p.Y, c.H),
		W: PixelToPct(p.W, c.W),
		H: PixelToPct(p.H, c.H),
	}
}

// Delta converts a pixel movement inside c into a percentage movement.
func Delta(dxPx, dyPx float64, c Size) (float64, float64) {
	return PixelToPct(dxPx, c.W), PixelToPct(dyPx, c.H)
}

// ApproxEqual compares two rects within tol percentage points.
func ApproxEqual(a, b Rect, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol && math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.W-b.W) <= tol && math.Abs(a.H-b.H) <= tol
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
