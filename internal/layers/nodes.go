package layers

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/shaders"
)

// NodeLayer instance-renders one screen-space disc per node (spec 4.6),
// grounded on the teacher's fullscreen/instanced render pipeline setup in
// app.go (CreateRenderPipeline with a single vertex+fragment module pair).
type NodeLayer struct {
	device   *gpu.Device
	enabled  bool
	pipeline *wgpu.RenderPipeline
	layout   *wgpu.BindGroupLayout

	cameraBG *wgpu.BindGroup
}

// NewNodeLayer builds the node-disc pipeline against the swap-chain format.
func NewNodeLayer(device *gpu.Device, cameraBindGroupLayout *wgpu.BindGroupLayout) (*NodeLayer, error) {
	module, err := device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "NodesShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.NodesWGSL},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "NodesPipelineLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{cameraBindGroupLayout},
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "NodesPipeline",
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

	return &NodeLayer{device: device, enabled: true, pipeline: pipeline, layout: cameraBindGroupLayout}, nil
}

func (l *NodeLayer) Name() string      { return "nodes" }
func (l *NodeLayer) Enabled() bool     { return l.enabled }
func (l *NodeLayer) SetEnabled(v bool) { l.enabled = v }

// SetFrameBuffers rebuilds the camera bind group against this frame's live
// camera uniform, positions, and per-node attribute buffers. Called once per
// frame by the orchestrator before Encode (spec 4.12).
func (l *NodeLayer) SetFrameBuffers(cameraUniform, positions, attrs *wgpu.Buffer) error {
	bg, err := gpu.NewCameraBindGroup(l.device, l.layout, cameraUniform, positions, attrs)
	if err != nil {
		return err
	}
	l.cameraBG = bg
	return nil
}

// Encode draws one instance per node via the positions/attrs storage
// buffers already bound in cameraBG (spec 4.6: "radius is scaled by zoom").
func (l *NodeLayer) Encode(enc *wgpu.CommandEncoder, target *wgpu.TextureView, ctx FrameContext) error {
	if !l.enabled || ctx.NodeCount == 0 || l.cameraBG == nil {
		return nil
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(l.pipeline)
	pass.SetBindGroup(0, l.cameraBG, nil)
	pass.Draw(6, uint32(ctx.NodeCount), 0, 0)
	return pass.End()
}

func (l *NodeLayer) Release() {
	if l.pipeline != nil {
		l.pipeline.Release()
		l.pipeline = nil
	}
}
