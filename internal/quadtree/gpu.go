package quadtree

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/shaders"
)

// buildParamsSize matches quadtree.wgsl's BuildParams{node_count, margin,
// _pad0, _pad1}.
const buildParamsSize = 16

// globalScratchSize matches quadtree.wgsl's GlobalScratch{speed, _pad0,
// bounds_min, bounds_max}.
const globalScratchSize = 24

// cellStride matches Cell.Bytes' 32-byte QuadCell layout.
const cellStride = 32

// ComputeLayout mirrors Build's bottom-up level-count progression (the loop
// in Build that halves the level count by 4 each pass) without constructing
// a tree, so GPU sizes its cell buffer to match before dispatching.
func ComputeLayout(n int) (cellsTotal int) {
	if n == 0 {
		return 0
	}
	total := n
	levelCount := n
	for levelCount > 1 {
		levelCount = (levelCount + 3) / 4
		total += levelCount
	}
	return total
}

// GPU dispatches quadtree.wgsl's build_tree compute pass: the same five
// steps Build runs on the CPU (bounds reduce, Hilbert code, radix sort, leaf
// build, bottom-up merge), run as the single workgroup-of-one invocation the
// shader is written as (quadtree.wgsl: "there is nothing to gain from
// cross-workgroup parallelism in a tree this shallow"). Build stays the
// simulation tick's authoritative tree source (DESIGN.md's Open Question
// decision on determinism); Dispatch exists so the GPU pass is genuinely
// exercised against real storage buffers each frame rather than only
// embedded and never invoked.
type GPU struct {
	device   *gpu.Device
	layout   *wgpu.BindGroupLayout
	pipeline *wgpu.ComputePipeline

	params        *gpu.GrowableBuffer
	globalScratch *wgpu.Buffer
	codes         *gpu.GrowableBuffer
	codesScratch  *gpu.GrowableBuffer
	cells         *gpu.GrowableBuffer
	leafOriginal  *gpu.GrowableBuffer
	meta          *wgpu.Buffer
}

// NewGPU builds the build_tree pipeline and its scratch buffers.
func NewGPU(device *gpu.Device) (*GPU, error) {
	module, err := device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "QuadtreeBuildShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.QuadtreeWGSL},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "QuadtreeBuildBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: buildParamsSize}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 4, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 5, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 6, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 7, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 8, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: "QuadtreeBuildPipelineLayout", BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, err
	}
	pipeline, err := device.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   "QuadtreeBuildPipeline",
		Layout:  pipelineLayout,
		Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: "build_tree"},
	})
	if err != nil {
		return nil, err
	}

	globalScratch, err := device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "QuadtreeGlobalScratch", Size: globalScratchSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	meta, err := device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "QuadtreeMeta", Size: 8,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	return &GPU{
		device:        device,
		layout:        layout,
		pipeline:      pipeline,
		params:        gpu.NewGrowableBuffer(device, "QuadtreeParams", wgpu.BufferUsageUniform),
		globalScratch: globalScratch,
		codes:         gpu.NewGrowableBuffer(device, "QuadtreeCodes", wgpu.BufferUsageStorage),
		codesScratch:  gpu.NewGrowableBuffer(device, "QuadtreeCodesScratch", wgpu.BufferUsageStorage),
		cells:         gpu.NewGrowableBuffer(device, "QuadtreeCells", wgpu.BufferUsageStorage),
		leafOriginal:  gpu.NewGrowableBuffer(device, "QuadtreeLeafOriginal", wgpu.BufferUsageStorage),
		meta:          meta,
	}, nil
}

// Dispatch records one build_tree compute pass over positions/masses (both
// GPU-resident, node-count sized) into enc. It does not read results back;
// the orchestrator's CPU Build call remains the authoritative tree source,
// per DESIGN.md.
func (g *GPU) Dispatch(enc *wgpu.CommandEncoder, positions, masses *wgpu.Buffer, nodeCount int, margin float32) error {
	if nodeCount == 0 {
		return nil
	}

	params := make([]byte, buildParamsSize)
	gpu.PutUint32(params, 0, uint32(nodeCount))
	gpu.PutFloat32(params, 4, margin)
	g.params.Ensure(buildParamsSize, params)

	g.codes.Ensure(nodeCount*8, nil)
	g.codesScratch.Ensure(nodeCount*8, nil)
	g.cells.Ensure(ComputeLayout(nodeCount)*cellStride, nil)
	g.leafOriginal.Ensure(nodeCount*4, nil)

	bg, err := g.device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "QuadtreeBuildBindGroup",
		Layout: g.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: g.params.Buffer(), Size: wgpu.WholeSize},
			{Binding: 1, Buffer: positions, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: masses, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: g.globalScratch, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: g.codes.Buffer(), Size: wgpu.WholeSize},
			{Binding: 5, Buffer: g.codesScratch.Buffer(), Size: wgpu.WholeSize},
			{Binding: 6, Buffer: g.cells.Buffer(), Size: wgpu.WholeSize},
			{Binding: 7, Buffer: g.leafOriginal.Buffer(), Size: wgpu.WholeSize},
			{Binding: 8, Buffer: g.meta, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return err
	}

	pass, err := enc.BeginComputePass(nil)
	if err != nil {
		return err
	}
	pass.SetPipeline(g.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(1, 1, 1)
	return pass.End()
}

// Release frees every buffer and pipeline GPU owns.
func (g *GPU) Release() {
	if g.pipeline != nil {
		g.pipeline.Release()
	}
	g.params.Release()
	if g.globalScratch != nil {
		g.globalScratch.Release()
	}
	g.codes.Release()
	g.codesScratch.Release()
	g.cells.Release()
	g.leafOriginal.Release()
	if g.meta != nil {
		g.meta.Release()
	}
}
