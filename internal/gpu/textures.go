package gpu

import "github.com/cogentcore/webgpu/wgpu"

// DefaultDensityTextureLimit caps the heatmap density texture side, per
// spec §3 ("clamped to an upper bound, default 1024^2").
const DefaultDensityTextureLimit = 1024

// ViewportTexture is a texture sized to the current viewport (scaled by
// device-pixel ratio, clamped to a maximum side) that is reallocated on
// resize. Density and picking textures both follow this policy (spec §4.1
// resource policy: "resize... triggers re-allocation of viewport-sized
// resources only").
type ViewportTexture struct {
	device    *Device
	label     string
	format    wgpu.TextureFormat
	usage     wgpu.TextureUsage
	maxSide   uint32
	Texture   *wgpu.Texture
	View      *wgpu.TextureView
	Width     uint32
	Height    uint32
}

// Unclamped means the viewport texture tracks the framebuffer size exactly,
// with no upper bound on its side length.
const Unclamped = ^uint32(0)

// NewViewportTexture declares (without yet allocating) a viewport-sized
// texture. Call Resize to allocate/reallocate it. Pass Unclamped for maxSide
// to track the framebuffer 1:1 (used by the picking id texture).
func NewViewportTexture(device *Device, label string, format wgpu.TextureFormat, usage wgpu.TextureUsage, maxSide uint32) *ViewportTexture {
	return &ViewportTexture{device: device, label: label, format: format, usage: usage, maxSide: maxSide}
}

// Resize reallocates the texture to fit (width, height) scaled by dpr and
// clamped to maxSide. No-op if the clamped size is unchanged.
func (t *ViewportTexture) Resize(widthPx, heightPx uint32, dpr float32) {
	w := clampSide(uint32(float32(widthPx)*dpr), t.maxSide)
	h := clampSide(uint32(float32(heightPx)*dpr), t.maxSide)
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	if t.Texture != nil && t.Width == w && t.Height == h {
		return
	}
	if t.Texture != nil {
		t.Texture.Release()
	}
	tex, err := t.device.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         t.label,
		Size:          wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        t.format,
		Usage:         t.usage,
	})
	if err != nil {
		panic(err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		panic(err)
	}
	t.Texture, t.View, t.Width, t.Height = tex, view, w, h
}

func clampSide(v, max uint32) uint32 {
	if v > max {
		return max
	}
	return v
}

// Release frees the texture and view, if allocated.
func (t *ViewportTexture) Release() {
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
		t.View = nil
	}
}

// NewDensityTexture creates the single-channel floating point density
// texture consumed by the heatmap colour pass and the contour layer
// (spec §3, §4.8, §4.9). Render+storage usage so the splat pass can write
// it and the compute-based contour pass can sample it.
func NewDensityTexture(device *Device) *ViewportTexture {
	return NewViewportTexture(device, "DensityTexture", wgpu.TextureFormatR32Float,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageStorageBinding,
		DefaultDensityTextureLimit)
}

// NewPickingIDTexture creates the single-channel 32-bit id texture used by
// the picking pass (spec §4.11). Ids are offset by 1 so 0 denotes "no hit".
func NewPickingIDTexture(device *Device) *ViewportTexture {
	return NewViewportTexture(device, "PickingIDTexture", wgpu.TextureFormatR32Uint,
		wgpu.TextureUsageRenderAttachment|wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopySrc,
		Unclamped)
}
