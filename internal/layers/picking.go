package layers

import (
	"encoding/binary"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/shaders"
)

// pickReadbackBytesPerRow must satisfy wgpu's 256-byte row alignment even
// though a pick only reads a single pixel, mirroring the teacher's
// ReadbackHiZ bytesPerRow padding.
const pickReadbackBytesPerRow = 256

// PickingLayer renders a per-node id texture and serves asynchronous,
// non-blocking hover queries against it (spec 4.11), grounded on the
// teacher's GpuBufferManager.ReadbackHiZ map/poll/unmap cycle.
type PickingLayer struct {
	device  *gpu.Device
	enabled bool

	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.RenderPipeline
	cameraBG *wgpu.BindGroup

	idTexture *gpu.ViewportTexture
	readback  *wgpu.Buffer

	pending     bool
	mapped      bool
	lastID      uint32
	hasLast     bool
	pendingX    uint32
	pendingY    uint32
}

func NewPickingLayer(device *gpu.Device, cameraLayout *wgpu.BindGroupLayout) (*PickingLayer, error) {
	module, err := device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "PickingShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.PickingWGSL},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: "PickingPipelineLayout", BindGroupLayouts: []*wgpu.BindGroupLayout{cameraLayout},
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "PickingPipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_main"},
		Fragment: &wgpu.FragmentState{
			Module: module, EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{Format: wgpu.TextureFormatR32Uint, WriteMask: wgpu.ColorWriteMaskAll}},
		},
		Primitive:   wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, err
	}

	readback, err := device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "PickingReadback",
		Size:             pickReadbackBytesPerRow,
		Usage:            wgpu.BufferUsageCopyDst | wgpu.BufferUsageMapRead,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}

	return &PickingLayer{
		device:    device,
		layout:    cameraLayout,
		pipeline:  pipeline,
		idTexture: gpu.NewPickingIDTexture(device),
		readback:  readback,
	}, nil
}

func (l *PickingLayer) Name() string      { return "picking" }
func (l *PickingLayer) Enabled() bool     { return l.enabled }
func (l *PickingLayer) SetEnabled(v bool) { l.enabled = v }

// SetFrameBuffers rebuilds the camera bind group against this frame's camera
// uniform, positions, and the radii-only buffer picking.wgsl's binding 2
// expects (a plain array<f32>, not the 32-byte NodeAttrs stride nodes/edges
// bind — radii is a dedicated buffer the orchestrator packs per frame).
func (l *PickingLayer) SetFrameBuffers(cameraUniform, positions, radii *wgpu.Buffer) error {
	bg, err := gpu.NewCameraBindGroup(l.device, l.layout, cameraUniform, positions, radii)
	if err != nil {
		return err
	}
	l.cameraBG = bg
	return nil
}

// Resize reallocates the id texture on viewport change.
func (l *PickingLayer) Resize(widthPx, heightPx uint32, dpr float32) {
	l.idTexture.Resize(widthPx, heightPx, dpr)
}

// RequestPick enqueues a copy of the pixel at (px,py) into the readback
// buffer for the next Poll call. A request already in flight is replaced;
// picking is "lossy - only the most recent request matters" (spec 5).
func (l *PickingLayer) RequestPick(enc *wgpu.CommandEncoder, px, py uint32) {
	l.pendingX, l.pendingY = px, py
	enc.CopyTextureToBuffer(
		wgpu.ImageCopyTexture{Texture: l.idTexture.Texture, Origin: wgpu.Origin3D{X: px, Y: py, Z: 0}},
		wgpu.ImageCopyBuffer{Buffer: l.readback, Layout: wgpu.TextureDataLayout{BytesPerRow: pickReadbackBytesPerRow, RowsPerImage: 1}},
		wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)
	l.pending = true
}

// Poll advances the async map state without blocking (spec 4.11: "the read
// is asynchronous and returns the last-hovered id until the readback
// completes"). Call once per frame after submission.
func (l *PickingLayer) Poll() {
	if l.pending && !l.mapped {
		l.readback.MapAsync(wgpu.MapModeRead, 0, pickReadbackBytesPerRow, func(status wgpu.BufferMapAsyncStatus) {
			if status == wgpu.BufferMapAsyncStatusSuccess {
				l.mapped = true
			}
		})
	}
	l.device.Device.Poll(false, nil)

	if l.mapped {
		data := l.readback.GetMappedRange(0, pickReadbackBytesPerRow)
		raw := binary.LittleEndian.Uint32(data[0:4])
		l.readback.Unmap()
		l.mapped = false
		l.pending = false
		if raw == 0 {
			l.hasLast = false
		} else {
			l.lastID = raw - 1 // picking.wgsl offsets ids by +1
			l.hasLast = true
		}
	}
}

// HoveredNodeIndex returns the last completed pick, or ok=false if no node
// is currently hovered (spec 6.2's hoveredNodeId).
func (l *PickingLayer) HoveredNodeIndex() (index uint32, ok bool) {
	return l.lastID, l.hasLast
}

func (l *PickingLayer) Encode(enc *wgpu.CommandEncoder, target *wgpu.TextureView, ctx FrameContext) error {
	if !l.enabled || ctx.NodeCount == 0 || l.cameraBG == nil {
		return nil
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       l.idTexture.View,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		}},
	})
	pass.SetPipeline(l.pipeline)
	pass.SetBindGroup(0, l.cameraBG, nil)
	pass.Draw(6, uint32(ctx.NodeCount), 0, 0)
	return pass.End()
}

func (l *PickingLayer) Release() {
	l.idTexture.Release()
	if l.pipeline != nil {
		l.pipeline.Release()
	}
	if l.readback != nil {
		l.readback.Release()
	}
}
