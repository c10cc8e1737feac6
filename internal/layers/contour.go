package layers

import (
	"encoding/binary"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/colorspec"
	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/shaders"
)

// DefaultStrokeWidth is the contour line thickness in CSS pixels (spec 4.9).
const DefaultStrokeWidth = 2.0

// maxContourSegments bounds the march pass's segment buffer. Marching
// squares emits at most 2 segments per 2x2 cell; this cap is generous for
// the viewport sizes spec 4.1 targets. The march pass does not check it:
// the atomic counter keeps counting past the cap, and Poll clamps the count
// it reads back to maxContourSegments.
const maxContourSegments = 1 << 16

// contourSegmentStride matches contour.wgsl's Segment{a,b: vec2<f32>}.
const contourSegmentStride = 16

// contourConfigSize matches contour.wgsl's ContourConfig struct.
const contourConfigSize = 16

// contourStyleSize matches contour.wgsl's StrokeStyle struct.
const contourStyleSize = 32

// ContourConfig is the partial-mergeable layer config (spec 4.9, 6.3).
type ContourConfig struct {
	Visible     bool
	Thresholds  []float32
	StrokeWidth float32
	StrokeColor colorspec.RGBA
	Opacity     float32
}

// DefaultContourConfig returns spec.md's §4.9 authoritative defaults.
func DefaultContourConfig() ContourConfig {
	return ContourConfig{
		Visible:     false,
		Thresholds:  []float32{0.3, 0.5, 0.7},
		StrokeWidth: DefaultStrokeWidth,
		StrokeColor: colorspec.RGBA{R: 1, G: 1, B: 1, A: 1},
		Opacity:     1.0,
	}
}

func (c *ContourConfig) Merge(partial ContourConfig) {
	if len(partial.Thresholds) > 0 {
		c.Thresholds = partial.Thresholds
	}
	if partial.StrokeWidth != 0 {
		c.StrokeWidth = partial.StrokeWidth
	}
	if partial.Opacity != 0 {
		c.Opacity = partial.Opacity
	}
	if partial.StrokeColor != (colorspec.RGBA{}) {
		c.StrokeColor = partial.StrokeColor
	}
	if partial.Visible {
		c.Visible = true
	}
}

// Segment is a single marching-squares iso-line segment in density-grid
// cell coordinates (fractional - lies on a cell edge).
type Segment struct {
	AX, AY, BX, BY float32
}

// marchCase mirrors contour.wgsl's march entry point exactly: same 4-bit
// case index, same saddle resolution rule, same edge order (bottom, right,
// top, left), so the CPU reference and the GPU pass agree on every case.
func marchCase(v00, v10, v11, v01, iso float32) []Segment {
	caseIndex := 0
	if v00 >= iso {
		caseIndex |= 1
	}
	if v10 >= iso {
		caseIndex |= 2
	}
	if v11 >= iso {
		caseIndex |= 4
	}
	if v01 >= iso {
		caseIndex |= 8
	}
	if caseIndex == 0 || caseIndex == 15 {
		return nil
	}

	lerp := func(a, b, t float32) float32 { return a + (b-a)*t }
	edge := func(va, vb, iso, ax, ay, bx, by float32) (float32, float32) {
		d := vb - va
		if d > -1e-6 && d < 1e-6 {
			d = 1e-6
		}
		t := (iso - va) / d
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		return lerp(ax, bx, t), lerp(ay, by, t)
	}

	bx, by := edge(v00, v10, iso, 0, 0, 1, 0)
	rx, ry := edge(v10, v11, iso, 1, 0, 1, 1)
	tx, ty := edge(v01, v11, iso, 0, 1, 1, 1)
	lx, ly := edge(v00, v01, iso, 0, 0, 0, 1)

	seg := func(p0x, p0y, p1x, p1y float32) Segment {
		return Segment{AX: p0x, AY: p0y, BX: p1x, BY: p1y}
	}

	centerMean := (v00 + v10 + v11 + v01) * 0.25

	switch caseIndex {
	case 1, 14:
		return []Segment{seg(lx, ly, bx, by)}
	case 2, 13:
		return []Segment{seg(bx, by, rx, ry)}
	case 3, 12:
		return []Segment{seg(lx, ly, rx, ry)}
	case 4, 11:
		return []Segment{seg(rx, ry, tx, ty)}
	case 6, 9:
		return []Segment{seg(bx, by, tx, ty)}
	case 7, 8:
		return []Segment{seg(lx, ly, tx, ty)}
	case 5:
		if centerMean >= iso {
			return []Segment{seg(lx, ly, tx, ty), seg(bx, by, rx, ry)}
		}
		return []Segment{seg(lx, ly, bx, by), seg(tx, ty, rx, ry)}
	case 10:
		if centerMean >= iso {
			return []Segment{seg(lx, ly, bx, by), seg(tx, ty, rx, ry)}
		}
		return []Segment{seg(lx, ly, tx, ty), seg(bx, by, rx, ry)}
	}
	return nil
}

func maxf32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// March runs marching squares over a density field sampled at gridW x gridH
// grid points (row-major, density[y*gridW+x]) and returns every segment for
// the given threshold, in grid-cell coordinates. A CPU reference kept for
// testing and for headless/non-GPU callers; the live render path runs
// contour.wgsl's march compute pass instead.
func March(density []float32, gridW, gridH int, threshold float32) []Segment {
	var out []Segment
	for y := 0; y+1 < gridH; y++ {
		for x := 0; x+1 < gridW; x++ {
			v00 := density[y*gridW+x]
			v10 := density[y*gridW+x+1]
			v11 := density[(y+1)*gridW+x+1]
			v01 := density[(y+1)*gridW+x]
			for _, s := range marchCase(v00, v10, v11, v01, threshold) {
				out = append(out, Segment{
					AX: s.AX + float32(x), AY: s.AY + float32(y),
					BX: s.BX + float32(x), BY: s.BY + float32(y),
				})
			}
		}
	}
	return out
}

// ContourLayer runs the compute march pass against the live threshold, then
// draws the resulting segment buffer as camera-space line quads. Only
// Config.Thresholds[0] drives the live GPU pass; March (the CPU reference)
// supports every configured threshold for callers that need the full set.
type ContourLayer struct {
	device  *gpu.Device
	Config  ContourConfig
	enabled bool

	marchLayout *wgpu.BindGroupLayout
	drawLayout  *wgpu.BindGroupLayout

	marchPipeline *wgpu.ComputePipeline
	drawPipeline  *wgpu.RenderPipeline

	configBuffer *gpu.GrowableBuffer // ContourConfig
	styleBuffer  *gpu.GrowableBuffer // StrokeStyle
	segments     *gpu.GrowableBuffer
	segmentCount *wgpu.Buffer // atomic<u32>, 4 bytes
	readback     *wgpu.Buffer

	densityView *wgpu.TextureView
	marchBG     *wgpu.BindGroup
	drawBG      *wgpu.BindGroup

	pending          bool
	mapped           bool
	lastSegmentCount uint32
}

// NewContourLayer builds the march compute pipeline and the line-draw render
// pipeline, both sourced from shaders.ContourWGSL. The march pass needs its
// own 4-binding layout (density texture, ContourConfig uniform, segments
// storage, atomic segment_count storage) since it is shaped nothing like the
// shared camera bind group; the draw pass uses drawLayout's camera+segments
// storage shape (gpu.NewCameraStorageBindGroupLayout).
func NewContourLayer(device *gpu.Device, drawLayout *wgpu.BindGroupLayout) (*ContourLayer, error) {
	module, err := device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "ContourShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ContourWGSL},
	})
	if err != nil {
		return nil, err
	}

	marchLayout, err := device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ContourMarchBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Texture: wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeUnfilterableFloat, ViewDimension: wgpu.TextureViewDimension2D}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: contourConfigSize}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return nil, err
	}
	marchPipelineLayout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: "ContourMarchLayout", BindGroupLayouts: []*wgpu.BindGroupLayout{marchLayout},
	})
	if err != nil {
		return nil, err
	}
	marchPipeline, err := device.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   "ContourMarchPipeline",
		Layout:  marchPipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "march"},
	})
	if err != nil {
		return nil, err
	}

	drawPipelineLayout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: "ContourDrawLayout", BindGroupLayouts: []*wgpu.BindGroupLayout{drawLayout},
	})
	if err != nil {
		return nil, err
	}
	drawPipeline, err := device.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "ContourDrawPipeline",
		Layout: drawPipelineLayout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_contour"},
		Fragment: &wgpu.FragmentState{
			Module: module, EntryPoint: "fs_contour",
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

	segmentCount, err := device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ContourSegmentCount", Size: 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	readback, err := device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ContourSegmentCountReadback", Size: 4,
		Usage: wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
	})
	if err != nil {
		return nil, err
	}

	segments := gpu.NewGrowableBuffer(device, "ContourSegments", wgpu.BufferUsageStorage)
	segments.Ensure(maxContourSegments*contourSegmentStride, nil)

	return &ContourLayer{
		device:        device,
		Config:        DefaultContourConfig(),
		marchLayout:   marchLayout,
		drawLayout:    drawLayout,
		marchPipeline: marchPipeline,
		drawPipeline:  drawPipeline,
		configBuffer:  gpu.NewGrowableBuffer(device, "ContourConfig", wgpu.BufferUsageUniform),
		styleBuffer:   gpu.NewGrowableBuffer(device, "ContourStyle", wgpu.BufferUsageUniform),
		segments:      segments,
		segmentCount:  segmentCount,
		readback:      readback,
	}, nil
}

func (l *ContourLayer) Name() string      { return "contour" }
func (l *ContourLayer) Enabled() bool     { return l.enabled && l.Config.Visible }
func (l *ContourLayer) SetEnabled(v bool) { l.enabled = v }

// SetDensityView points the march pass at the heatmap layer's shared density
// texture view (rebuilt whenever the viewport resizes).
func (l *ContourLayer) SetDensityView(view *wgpu.TextureView) { l.densityView = view }

// SetFrameBuffers rebuilds the draw bind group against this frame's camera
// uniform and uploads the live stroke style.
func (l *ContourLayer) SetFrameBuffers(cameraUniform *wgpu.Buffer) error {
	style := make([]byte, contourStyleSize)
	gpu.PutFloat32(style, 0, l.Config.StrokeColor.R)
	gpu.PutFloat32(style, 4, l.Config.StrokeColor.G)
	gpu.PutFloat32(style, 8, l.Config.StrokeColor.B)
	gpu.PutFloat32(style, 12, l.Config.StrokeColor.A)
	gpu.PutFloat32(style, 16, l.Config.StrokeWidth)
	gpu.PutFloat32(style, 20, l.Config.Opacity)
	l.styleBuffer.Ensure(contourStyleSize, style)

	bg, err := gpu.NewCameraStorageBindGroup(l.device, l.drawLayout, cameraUniform, l.segments.Buffer())
	if err != nil {
		return err
	}
	l.drawBG = bg
	return nil
}

// Poll advances the async segment-count readback without blocking, mirroring
// PickingLayer's map/poll/unmap cycle. The draw pass's instance count
// therefore always lags the GPU-true count by up to one frame.
func (l *ContourLayer) Poll() {
	if l.pending && !l.mapped {
		l.readback.MapAsync(wgpu.MapModeRead, 0, 4, func(status wgpu.BufferMapAsyncStatus) {
			if status == wgpu.BufferMapAsyncStatusSuccess {
				l.mapped = true
			}
		})
	}
	l.device.Device.Poll(false, nil)

	if l.mapped {
		data := l.readback.GetMappedRange(0, 4)
		count := binary.LittleEndian.Uint32(data[0:4])
		l.readback.Unmap()
		l.mapped = false
		l.pending = false
		if count > maxContourSegments {
			count = maxContourSegments
		}
		l.lastSegmentCount = count
	}
}

func (l *ContourLayer) Encode(enc *wgpu.CommandEncoder, target *wgpu.TextureView, ctx FrameContext) error {
	if !l.Enabled() || l.densityView == nil || len(l.Config.Thresholds) == 0 {
		return nil
	}

	configBytes := make([]byte, contourConfigSize)
	gpu.PutFloat32(configBytes, 0, l.Config.Thresholds[0])
	gpu.PutFloat32(configBytes, 4, l.Config.StrokeWidth)
	gpu.PutUint32(configBytes, 8, ctx.DensityWidth)
	gpu.PutUint32(configBytes, 12, ctx.DensityHeight)
	l.configBuffer.Ensure(contourConfigSize, configBytes)

	marchBG, err := gpu.NewContourMarchBindGroup(l.device, l.marchLayout, l.densityView, l.configBuffer.Buffer(), l.segments.Buffer(), l.segmentCount)
	if err != nil {
		return err
	}
	l.marchBG = marchBG

	l.device.Queue.WriteBuffer(l.segmentCount, 0, []byte{0, 0, 0, 0})

	groupsX := (ctx.DensityWidth + 15) / 16
	groupsY := (ctx.DensityHeight + 15) / 16
	if groupsX == 0 {
		groupsX = 1
	}
	if groupsY == 0 {
		groupsY = 1
	}
	pass, err := enc.BeginComputePass(nil)
	if err != nil {
		return err
	}
	pass.SetPipeline(l.marchPipeline)
	pass.SetBindGroup(0, l.marchBG, nil)
	pass.DispatchWorkgroups(groupsX, groupsY, 1)
	if err := pass.End(); err != nil {
		return err
	}

	enc.CopyBufferToBuffer(l.segmentCount, 0, l.readback, 0, 4)
	l.pending = true

	if l.drawBG == nil || l.lastSegmentCount == 0 {
		return nil
	}
	draw := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	draw.SetPipeline(l.drawPipeline)
	draw.SetBindGroup(0, l.drawBG, nil)
	draw.Draw(6, l.lastSegmentCount, 0, 0)
	return draw.End()
}

func (l *ContourLayer) Release() {
	if l.marchPipeline != nil {
		l.marchPipeline.Release()
	}
	if l.drawPipeline != nil {
		l.drawPipeline.Release()
	}
	l.configBuffer.Release()
	l.styleBuffer.Release()
	l.segments.Release()
	if l.segmentCount != nil {
		l.segmentCount.Release()
	}
	if l.readback != nil {
		l.readback.Release()
	}
}
