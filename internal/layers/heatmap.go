package layers

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/shaders"
)

// heatmapConfigUniformSizeGo matches heatmap.wgsl's HeatmapConfig struct.
const heatmapConfigUniformSizeGo = 32

// ColorScale selects the heatmap's density-to-colour lookup (spec 4.8).
type ColorScale uint32

const (
	ColorScaleViridis ColorScale = iota
	ColorScalePlasma
	ColorScaleInferno
	ColorScaleMagma
	ColorScaleTurbo
)

// HeatmapConfig is the partial-mergeable layer config (spec 4.8, 6.3).
type HeatmapConfig struct {
	Visible     bool
	ColorScale  ColorScale
	RadiusPx    float32
	Intensity   float32
	Opacity     float32
	MaxDensity  float32
	Normalize   bool
}

// DefaultHeatmapConfig returns spec.md's §4.8 authoritative defaults.
func DefaultHeatmapConfig() HeatmapConfig {
	return HeatmapConfig{
		Visible:    false,
		ColorScale: ColorScaleViridis,
		RadiusPx:   40,
		Intensity:  0.1,
		Opacity:    0.7,
		MaxDensity: 1.0,
		Normalize:  true,
	}
}

// Merge applies partial, overwriting only the fields the caller set. Since
// Go has no nullable-by-default primitives, callers pass a full struct and
// a bitmask-free convention: zero-value fields in partial are treated as
// "unset" for booleans via explicit pointers at the Renderer boundary; here
// Merge takes the simpler approach of merging non-zero numeric fields,
// matching how the teacher's config-merge helpers work when every field is
// a value type (no separate "partial" wrapper struct).
func (c *HeatmapConfig) Merge(partial HeatmapConfig) {
	if partial.RadiusPx != 0 {
		c.RadiusPx = partial.RadiusPx
	}
	if partial.Intensity != 0 {
		c.Intensity = partial.Intensity
	}
	if partial.Opacity != 0 {
		c.Opacity = partial.Opacity
	}
	if partial.MaxDensity != 0 {
		c.MaxDensity = partial.MaxDensity
	}
	c.ColorScale = partial.ColorScale
	c.Normalize = partial.Normalize
	c.Visible = partial.Visible
}

// HeatmapLayer runs the splat pass (additive Gaussian splats into the
// density texture) and the colour-map pass (spec 4.8).
type HeatmapLayer struct {
	device        *gpu.Device
	Config        HeatmapConfig
	density       *gpu.ViewportTexture
	densitySampler *wgpu.Sampler
	enabled       bool

	splatLayout      *wgpu.BindGroupLayout
	densityLayout    *wgpu.BindGroupLayout
	splatPipeline    *wgpu.RenderPipeline
	colormapPipeline *wgpu.RenderPipeline
	configBuffer     *gpu.GrowableBuffer
	cameraBG         *wgpu.BindGroup
	densityBG        *wgpu.BindGroup
}

// NewHeatmapLayer creates the density texture and both pipelines.
func NewHeatmapLayer(device *gpu.Device, splatLayout, densityLayout *wgpu.BindGroupLayout) (*HeatmapLayer, error) {
	module, err := device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "HeatmapShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.HeatmapWGSL},
	})
	if err != nil {
		return nil, err
	}

	splatPipelineLayout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: "HeatmapSplatLayout", BindGroupLayouts: []*wgpu.BindGroupLayout{splatLayout},
	})
	if err != nil {
		return nil, err
	}
	splatPipeline, err := device.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "HeatmapSplatPipeline",
		Layout: splatPipelineLayout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_splat"},
		Fragment: &wgpu.FragmentState{
			Module: module, EntryPoint: "fs_splat",
			Targets: []wgpu.ColorTargetState{{
				Format: wgpu.TextureFormatR32Float,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
					Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, err
	}

	colormapLayout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: "HeatmapColormapLayout", BindGroupLayouts: []*wgpu.BindGroupLayout{splatLayout, densityLayout},
	})
	if err != nil {
		return nil, err
	}
	colormapPipeline, err := device.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "HeatmapColormapPipeline",
		Layout: colormapLayout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_colormap"},
		Fragment: &wgpu.FragmentState{
			Module: module, EntryPoint: "fs_colormap",
			Targets: []wgpu.ColorTargetState{{
				Format: device.Config.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
					Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, err
	}

	sampler, err := device.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter: wgpu.FilterModeNearest,
		MagFilter: wgpu.FilterModeNearest,
	})
	if err != nil {
		return nil, err
	}

	l := &HeatmapLayer{
		device:           device,
		Config:           DefaultHeatmapConfig(),
		density:          gpu.NewDensityTexture(device),
		densitySampler:   sampler,
		splatLayout:      splatLayout,
		densityLayout:    densityLayout,
		splatPipeline:    splatPipeline,
		colormapPipeline: colormapPipeline,
		configBuffer:     gpu.NewGrowableBuffer(device, "HeatmapConfig", wgpu.BufferUsageUniform),
	}
	densityBG, err := gpu.NewDensityBindGroup(device, densityLayout, l.density.View, l.densitySampler)
	if err != nil {
		return nil, err
	}
	l.densityBG = densityBG
	return l, nil
}

func (l *HeatmapLayer) Name() string      { return "heatmap" }
func (l *HeatmapLayer) Enabled() bool     { return l.enabled && l.Config.Visible }
func (l *HeatmapLayer) SetEnabled(v bool) { l.enabled = v }

// DensityTexture exposes the shared texture the contour layer samples.
func (l *HeatmapLayer) DensityTexture() *gpu.ViewportTexture { return l.density }

// configBytes packs the live Config into heatmap.wgsl's HeatmapConfig layout.
func (l *HeatmapLayer) configBytes() []byte {
	buf := make([]byte, heatmapConfigUniformSizeGo)
	gpu.PutFloat32(buf, 0, l.Config.RadiusPx)
	gpu.PutFloat32(buf, 4, l.Config.Intensity)
	gpu.PutFloat32(buf, 8, l.Config.MaxDensity)
	normalize := uint32(0)
	if l.Config.Normalize {
		normalize = 1
	}
	gpu.PutUint32(buf, 12, normalize)
	gpu.PutUint32(buf, 16, uint32(l.Config.ColorScale))
	gpu.PutFloat32(buf, 20, l.Config.Opacity)
	return buf
}

// SetFrameBuffers rebuilds the splat bind group against this frame's camera
// uniform and positions, re-uploading the live HeatmapConfig uniform.
func (l *HeatmapLayer) SetFrameBuffers(cameraUniform, positions *wgpu.Buffer) error {
	l.configBuffer.Ensure(heatmapConfigUniformSizeGo, l.configBytes())
	bg, err := gpu.NewHeatmapSplatBindGroup(l.device, l.splatLayout, cameraUniform, l.configBuffer.Buffer(), positions)
	if err != nil {
		return err
	}
	l.cameraBG = bg
	return nil
}

// Resize reallocates the clamped density texture and its bind group on
// viewport change, since the texture view itself is replaced.
func (l *HeatmapLayer) Resize(widthPx, heightPx uint32, dpr float32) {
	l.density.Resize(widthPx, heightPx, dpr)
	if bg, err := gpu.NewDensityBindGroup(l.device, l.densityLayout, l.density.View, l.densitySampler); err == nil {
		l.densityBG = bg
	}
}

func (l *HeatmapLayer) Encode(enc *wgpu.CommandEncoder, target *wgpu.TextureView, ctx FrameContext) error {
	if !l.Enabled() || ctx.NodeCount == 0 || l.cameraBG == nil {
		return nil
	}

	splat := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       l.density.View,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 0},
		}},
	})
	splat.SetPipeline(l.splatPipeline)
	splat.SetBindGroup(0, l.cameraBG, nil)
	splat.Draw(6, uint32(ctx.NodeCount), 0, 0)
	if err := splat.End(); err != nil {
		return err
	}

	if l.densityBG == nil {
		return nil
	}
	colormap := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	colormap.SetPipeline(l.colormapPipeline)
	colormap.SetBindGroup(0, l.cameraBG, nil)
	colormap.SetBindGroup(1, l.densityBG, nil)
	colormap.Draw(3, 1, 0, 0)
	return colormap.End()
}

func (l *HeatmapLayer) Release() {
	l.density.Release()
	l.configBuffer.Release()
	if l.splatPipeline != nil {
		l.splatPipeline.Release()
	}
	if l.colormapPipeline != nil {
		l.colormapPipeline.Release()
	}
}
