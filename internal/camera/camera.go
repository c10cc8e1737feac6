// Package camera implements the 2-D affine camera shared by every render
// layer: pan/zoom/fitToView, world<->clip transforms, and the per-frame
// uniform buffer. Adapted from the 2-D camera in phanxgames-willow's
// camera.go (the packed 6-float affine matrix, WorldToScreen/ScreenToWorld,
// VisibleBounds) generalized to the clip-space convention render pipelines
// expect and with the gween-based smooth recentring willow's Camera.ScrollTo
// already models.
package camera

import (
	"math"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

const (
	// MinZoom and MaxZoom bound Camera.Zoom per spec §4.2: [2^-10, 2^10].
	MinZoom = 1.0 / 1024.0
	MaxZoom = 1024.0

	// DefaultFitPadding is fitToView's default padding fraction (spec §4.2).
	DefaultFitPadding = 0.10
)

// Bounds is an axis-aligned world-space rectangle.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float32
}

func (b Bounds) Width() float32  { return b.MaxX - b.MinX }
func (b Bounds) Height() float32 { return b.MaxY - b.MinY }
func (b Bounds) CenterX() float32 { return (b.MinX + b.MaxX) / 2 }
func (b Bounds) CenterY() float32 { return (b.MinY + b.MaxY) / 2 }

// Mat3x2 is a packed affine transform [a, b, c, d, tx, ty] representing
//
//	[a c tx]
//	[b d ty]
//
// applied as x' = a*x + c*y + tx, y' = b*x + d*y + ty. This mirrors willow's
// [6]float64 camera matrix, sized to float32 for direct GPU upload.
type Mat3x2 [6]float32

func identity() Mat3x2 { return Mat3x2{1, 0, 0, 1, 0, 0} }

func (m Mat3x2) apply(x, y float32) (float32, float32) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

func (m Mat3x2) invert() Mat3x2 {
	det := m[0]*m[3] - m[2]*m[1]
	if det == 0 {
		return identity()
	}
	invDet := 1 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	tx := -(a*m[4] + c*m[5])
	ty := -(b*m[4] + d*m[5])
	return Mat3x2{a, b, c, d, tx, ty}
}

type scrollAnim struct {
	tweenX, tweenY   *gween.Tween
	doneX, doneY     bool
}

// Camera holds world-space centre, zoom, and device-pixel viewport.
type Camera struct {
	CenterX, CenterY float32
	Zoom             float32
	ViewportW        float32 // device pixels
	ViewportH        float32
	DPR              float32

	clipFromWorld  Mat3x2
	worldFromClip  Mat3x2
	dirty          bool

	anim *scrollAnim
}

// New creates a camera centred at the origin with zoom 1, sized to the given
// device-pixel viewport.
func New(viewportW, viewportH, dpr float32) *Camera {
	if dpr <= 0 {
		dpr = 1
	}
	return &Camera{
		Zoom:      1,
		ViewportW: viewportW,
		ViewportH: viewportH,
		DPR:       dpr,
		dirty:     true,
	}
}

func clampZoom(z float32) float32 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// Pan shifts the camera centre by a screen-space pixel delta.
func (c *Camera) Pan(dxPx, dyPx float32) {
	c.recompute()
	// Pixel deltas become clip deltas first (+y down in pixels, +y up in
	// clip space); clip deltas map to world deltas via the inverse linear
	// part only (translation cancels out of a delta).
	cdx := dxPx / c.ViewportW * 2
	cdy := -dyPx / c.ViewportH * 2
	wdx := c.worldFromClip[0]*cdx + c.worldFromClip[2]*cdy
	wdy := c.worldFromClip[1]*cdx + c.worldFromClip[3]*cdy
	c.CenterX -= wdx
	c.CenterY -= wdy
	c.dirty = true
}

// ZoomBy multiplies the current zoom by factor, optionally anchored at a
// device-pixel point so that point's world position is preserved.
func (c *Camera) ZoomBy(factor float32, anchorPx *[2]float32) {
	c.recompute()
	var anchorWX, anchorWY float32
	haveAnchor := anchorPx != nil
	if haveAnchor {
		anchorWX, anchorWY = c.ScreenToWorld(anchorPx[0], anchorPx[1])
	}
	c.Zoom = clampZoom(c.Zoom * factor)
	c.dirty = true
	if haveAnchor {
		c.recompute()
		curWX, curWY := c.ScreenToWorld(anchorPx[0], anchorPx[1])
		c.CenterX += anchorWX - curWX
		c.CenterY += anchorWY - curWY
		c.dirty = true
	}
}

// FitToView centres the camera on bbox and chooses a zoom so the longer axis
// fits the viewport, with padding applied on each side (spec §4.2).
func (c *Camera) FitToView(bbox Bounds, padding float32) {
	if padding <= 0 {
		padding = DefaultFitPadding
	}
	w, h := bbox.Width(), bbox.Height()
	if w <= 0 && h <= 0 {
		c.CenterX, c.CenterY = bbox.CenterX(), bbox.CenterY()
		c.dirty = true
		return
	}
	paddedW := w * (1 + 2*padding)
	paddedH := h * (1 + 2*padding)
	c.CenterX, c.CenterY = bbox.CenterX(), bbox.CenterY()

	zoomX := float32(math.MaxFloat32)
	zoomY := float32(math.MaxFloat32)
	if paddedW > 0 {
		zoomX = (c.ViewportW / c.DPR) / paddedW
	}
	if paddedH > 0 {
		zoomY = (c.ViewportH / c.DPR) / paddedH
	}
	z := zoomX
	if zoomY < z {
		z = zoomY
	}
	c.Zoom = clampZoom(z)
	c.dirty = true
}

// AnimateTo eases the camera centre to (x, y) over duration seconds. This is
// host-facing sugar (SPEC_FULL.md §2) built on github.com/tanema/gween,
// additive to the synchronous Pan/ZoomBy API; it does not replace it.
func (c *Camera) AnimateTo(x, y float32, duration float32, fn ease.TweenFunc) {
	c.anim = &scrollAnim{
		tweenX: gween.New(c.CenterX, x, duration, fn),
		tweenY: gween.New(c.CenterY, y, duration, fn),
	}
}

// Tick advances any in-flight AnimateTo animation by dt seconds. A no-op
// when no animation is running.
func (c *Camera) Tick(dt float32) {
	if c.anim == nil {
		return
	}
	if !c.anim.doneX {
		v, done := c.anim.tweenX.Update(dt)
		c.CenterX = v
		c.anim.doneX = done
	}
	if !c.anim.doneY {
		v, done := c.anim.tweenY.Update(dt)
		c.CenterY = v
		c.anim.doneY = done
	}
	if c.anim.doneX && c.anim.doneY {
		c.anim = nil
	}
	c.dirty = true
}

// Resize updates the device-pixel viewport dimensions (spec §4.12 resize).
func (c *Camera) Resize(widthPx, heightPx, dpr float32) {
	c.ViewportW, c.ViewportH = widthPx, heightPx
	if dpr > 0 {
		c.DPR = dpr
	}
	c.dirty = true
}

// recompute rebuilds the cached clip<->world matrices if dirty. Clip space
// is [-1,1]^2 with +y up; device pixels have +y down, matching typical
// surface conventions.
func (c *Camera) recompute() {
	if !c.dirty {
		return
	}
	c.dirty = false

	halfW := c.ViewportW / (2 * c.DPR)
	halfH := c.ViewportH / (2 * c.DPR)
	if halfW <= 0 {
		halfW = 1
	}
	if halfH <= 0 {
		halfH = 1
	}
	sx := c.Zoom / halfW
	sy := -c.Zoom / halfH // flip so +world-y maps to -clip-y, i.e. downward on screen like pixel y

	c.clipFromWorld = Mat3x2{
		sx, 0,
		0, sy,
		-c.CenterX * sx, -c.CenterY * sy,
	}
	c.worldFromClip = c.clipFromWorld.invert()
}

// WorldToClip maps a world point to clip space ([-1,1]^2).
func (c *Camera) WorldToClip(x, y float32) (float32, float32) {
	c.recompute()
	return c.clipFromWorld.apply(x, y)
}

// ClipToWorld is the inverse of WorldToClip.
func (c *Camera) ClipToWorld(x, y float32) (float32, float32) {
	c.recompute()
	return c.worldFromClip.apply(x, y)
}

// WorldToScreen maps a world point to device-pixel screen coordinates
// (origin top-left, +y down), the convention pan/zoom anchors use.
func (c *Camera) WorldToScreen(x, y float32) (float32, float32) {
	cx, cy := c.WorldToClip(x, y)
	sx := (cx + 1) * 0.5 * c.ViewportW
	sy := (1 - cy) * 0.5 * c.ViewportH
	return sx, sy
}

// ScreenToWorld is the inverse of WorldToScreen.
func (c *Camera) ScreenToWorld(sx, sy float32) (float32, float32) {
	cx := sx/c.ViewportW*2 - 1
	cy := 1 - sy/c.ViewportH*2
	return c.ClipToWorld(cx, cy)
}

// VisibleBounds returns the world-space bounding box of the current
// viewport, used by layers that cull against the camera.
func (c *Camera) VisibleBounds() Bounds {
	x0, y0 := c.ScreenToWorld(0, 0)
	x1, y1 := c.ScreenToWorld(c.ViewportW, 0)
	x2, y2 := c.ScreenToWorld(c.ViewportW, c.ViewportH)
	x3, y3 := c.ScreenToWorld(0, c.ViewportH)
	minX := min4(x0, x1, x2, x3)
	maxX := max4(x0, x1, x2, x3)
	minY := min4(y0, y1, y2, y3)
	maxY := max4(y0, y1, y2, y3)
	return Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

func min4(a, b, c, d float32) float32 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	if d < m {
		m = d
	}
	return m
}

func max4(a, b, c, d float32) float32 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	if d > m {
		m = d
	}
	return m
}

// Uniform is the GPU-visible frame uniform written once per frame before any
// pass (spec §4.2): clip-from-world 3x2 affine, viewport, dpr, time.
type Uniform struct {
	ClipFromWorld Mat3x2
	ViewportW     float32
	ViewportH     float32
	DPR           float32
	TimeSeconds   float32
}

// FrameUniform computes the uniform-buffer payload for the current camera
// state at the given frame time.
func (c *Camera) FrameUniform(timeSeconds float32) Uniform {
	c.recompute()
	return Uniform{
		ClipFromWorld: c.clipFromWorld,
		ViewportW:     c.ViewportW,
		ViewportH:     c.ViewportH,
		DPR:           c.DPR,
		TimeSeconds:   timeSeconds,
	}
}

// Bytes packs Uniform into its std140-ish GPU layout: mat3x2 (2 vec4-padded
// columns... in practice we pack as 3 vec2 rows for a 3x2 affine) followed
// by viewport/dpr/time. Padded to 16-byte alignment per WGSL uniform rules.
func (u Uniform) Bytes() []byte {
	buf := make([]byte, 48)
	// Columns packed as vec4 pairs: (a,b,c,d) then (tx,ty,vw,vh) then (dpr,time,pad,pad)
	put := func(off int, v float32) {
		bits := math.Float32bits(v)
		buf[off] = byte(bits)
		buf[off+1] = byte(bits >> 8)
		buf[off+2] = byte(bits >> 16)
		buf[off+3] = byte(bits >> 24)
	}
	m := u.ClipFromWorld
	put(0, m[0])
	put(4, m[1])
	put(8, m[2])
	put(12, m[3])
	put(16, m[4])
	put(20, m[5])
	put(24, u.ViewportW)
	put(28, u.ViewportH)
	put(32, u.DPR)
	put(36, u.TimeSeconds)
	return buf
}
