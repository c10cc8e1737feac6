package camera

import (
	"math"
	"testing"

	"github.com/tanema/gween/ease"
)

func almostEqual(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) < float64(tol)
}

func TestWorldClipRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		x, y     float32
		zoom     float32
		cx, cy   float32
	}{
		{"origin", 0, 0, 1, 0, 0},
		{"offset", 123.5, -44.25, 2.5, 10, -5},
		{"zoomedOut", 9999, 9999, 0.01, 0, 0},
		{"zoomedIn", 0.001, -0.002, 500, 0, 0},
		{"negative", -500, 300, 1.75, 20, 40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := New(1920, 1080, 1)
			c.CenterX, c.CenterY = tc.cx, tc.cy
			c.Zoom = clampZoom(tc.zoom)
			c.dirty = true

			cx, cy := c.WorldToClip(tc.x, tc.y)
			wx, wy := c.ClipToWorld(cx, cy)
			if !almostEqual(wx, tc.x, 1e-5) || !almostEqual(wy, tc.y, 1e-5) {
				t.Fatalf("round trip mismatch: want (%v,%v) got (%v,%v)", tc.x, tc.y, wx, wy)
			}
		})
	}
}

func TestScreenWorldRoundTrip(t *testing.T) {
	c := New(1280, 720, 2)
	c.CenterX, c.CenterY = 50, -30
	c.Zoom = 3
	c.dirty = true

	sx, sy := float32(640), float32(360)
	wx, wy := c.ScreenToWorld(sx, sy)
	bx, by := c.WorldToScreen(wx, wy)
	if !almostEqual(bx, sx, 1e-3) || !almostEqual(by, sy, 1e-3) {
		t.Fatalf("screen round trip mismatch: want (%v,%v) got (%v,%v)", sx, sy, bx, by)
	}
}

func TestZoomClamp(t *testing.T) {
	c := New(800, 600, 1)
	c.ZoomBy(1e9, nil)
	if c.Zoom > MaxZoom {
		t.Fatalf("zoom not clamped to max: got %v", c.Zoom)
	}
	c.ZoomBy(1e-12, nil)
	if c.Zoom < MinZoom {
		t.Fatalf("zoom not clamped to min: got %v", c.Zoom)
	}
}

func TestZoomAnchorPreservesWorldPoint(t *testing.T) {
	c := New(800, 600, 1)
	anchor := [2]float32{200, 150}
	worldBefore := make([]float32, 2)
	worldBefore[0], worldBefore[1] = c.ScreenToWorld(anchor[0], anchor[1])

	c.ZoomBy(2, &anchor)

	worldAfter0, worldAfter1 := c.ScreenToWorld(anchor[0], anchor[1])
	if !almostEqual(worldAfter0, worldBefore[0], 1e-3) || !almostEqual(worldAfter1, worldBefore[1], 1e-3) {
		t.Fatalf("anchor point drifted: before (%v,%v) after (%v,%v)",
			worldBefore[0], worldBefore[1], worldAfter0, worldAfter1)
	}
}

func TestFitToView(t *testing.T) {
	c := New(1000, 1000, 1)
	bbox := Bounds{MinX: -100, MinY: -50, MaxX: 100, MaxY: 50}
	c.FitToView(bbox, DefaultFitPadding)

	if !almostEqual(c.CenterX, 0, 1e-5) || !almostEqual(c.CenterY, 0, 1e-5) {
		t.Fatalf("expected centre at bbox centre, got (%v,%v)", c.CenterX, c.CenterY)
	}

	vb := c.VisibleBounds()
	if vb.MinX > bbox.MinX || vb.MaxX < bbox.MaxX || vb.MinY > bbox.MinY || vb.MaxY < bbox.MaxY {
		t.Fatalf("fitted view does not contain bbox: view=%+v bbox=%+v", vb, bbox)
	}
}

func TestAnimateToReachesTarget(t *testing.T) {
	c := New(800, 600, 1)
	c.CenterX, c.CenterY = 0, 0
	c.AnimateTo(100, -50, 1.0, ease.Linear)

	for i := 0; i < 200; i++ {
		c.Tick(0.01)
	}
	if !almostEqual(c.CenterX, 100, 1e-3) || !almostEqual(c.CenterY, -50, 1e-3) {
		t.Fatalf("animation did not converge: got (%v,%v)", c.CenterX, c.CenterY)
	}
}

func TestFrameUniformBytesLength(t *testing.T) {
	c := New(1920, 1080, 1)
	u := c.FrameUniform(1.5)
	b := u.Bytes()
	if len(b) != 48 {
		t.Fatalf("expected 48-byte uniform payload, got %d", len(b))
	}
}
