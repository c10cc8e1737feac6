package layers

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/shaders"
)

// EdgeLayer instance-renders one line-quad per edge (spec 4.7). Edges draw
// before nodes so nodes visually occlude endpoints, per the orchestrator's
// declared z-order (spec 4.12).
type EdgeLayer struct {
	device   *gpu.Device
	enabled  bool
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout
	cameraBG *wgpu.BindGroup
}

func NewEdgeLayer(device *gpu.Device, cameraBindGroupLayout *wgpu.BindGroupLayout) (*EdgeLayer, error) {
	module, err := device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "EdgesShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.EdgesWGSL},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "EdgesPipelineLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{cameraBindGroupLayout},
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "EdgesPipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_main"},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
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

	return &EdgeLayer{device: device, enabled: true, pipeline: pipeline, layout: cameraBindGroupLayout}, nil
}

func (l *EdgeLayer) Name() string      { return "edges" }
func (l *EdgeLayer) Enabled() bool     { return l.enabled }
func (l *EdgeLayer) SetEnabled(v bool) { l.enabled = v }

// SetFrameBuffers rebuilds the camera bind group against this frame's live
// camera uniform, positions, and per-edge attribute buffers.
func (l *EdgeLayer) SetFrameBuffers(cameraUniform, positions, attrs *wgpu.Buffer) error {
	bg, err := gpu.NewCameraBindGroup(l.device, l.layout, cameraUniform, positions, attrs)
	if err != nil {
		return err
	}
	l.cameraBG = bg
	return nil
}

// Encode clears the swap-chain to the background colour, since edges is
// first in the orchestrator's fixed z-order (spec 4.12), then draws one
// line-quad per edge if enabled.
func (l *EdgeLayer) Encode(enc *wgpu.CommandEncoder, target *wgpu.TextureView, ctx FrameContext) error {
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       target,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: backgroundColor,
		}},
	})
	if l.enabled && ctx.EdgeCount > 0 && l.cameraBG != nil {
		pass.SetPipeline(l.pipeline)
		pass.SetBindGroup(0, l.cameraBG, nil)
		pass.Draw(6, uint32(ctx.EdgeCount), 0, 0)
	}
	return pass.End()
}

func (l *EdgeLayer) Release() {
	if l.pipeline != nil {
		l.pipeline.Release()
		l.pipeline = nil
	}
}
