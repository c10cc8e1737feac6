package simulation

import (
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/quadtree"
	"github.com/heroinegraph/heroinegraph/internal/shaders"
)

// simParamsSize matches simulation.wgsl's SimParams struct.
const simParamsSize = 48

// nodeScratchStride matches simulation.wgsl's NodeScratch struct.
const nodeScratchStride = 32

// globalScratchSize matches simulation.wgsl's GlobalScratch struct (the same
// shape quadtree.wgsl's GlobalScratch uses, independently sized here since
// the two dispatchers don't share a buffer).
const globalScratchSize = 24

// BuildCSR packs edges into the compressed-sparse-row form compute_forces
// scans (simulation.wgsl's csr_offsets/csr_neighbor_weight): each edge
// contributes two directed entries, grouped by source node.
func BuildCSR(nodeCount int, edges []Edge) (offsets []uint32, neighborWeight [][2]uint32) {
	degree := make([]uint32, nodeCount)
	for _, e := range edges {
		degree[e.Source]++
		degree[e.Target]++
	}
	offsets = make([]uint32, nodeCount+1)
	for i := 0; i < nodeCount; i++ {
		offsets[i+1] = offsets[i] + degree[i]
	}
	cursor := append([]uint32(nil), offsets[:nodeCount]...)
	neighborWeight = make([][2]uint32, offsets[nodeCount])
	for _, e := range edges {
		wbits := math.Float32bits(e.Weight)
		neighborWeight[cursor[e.Source]] = [2]uint32{e.Target, wbits}
		cursor[e.Source]++
		neighborWeight[cursor[e.Target]] = [2]uint32{e.Source, wbits}
		cursor[e.Target]++
	}
	return
}

// GPU dispatches simulation.wgsl's three compute passes (compute_forces,
// reduce_global_speed, integrate) against real storage buffers, running the
// same Barnes-Hut-repulsion-plus-CSR-attraction-plus-adaptive-speed
// algorithm Tick runs on the CPU. Tick stays the authoritative tick
// (DESIGN.md's Open Question decision on determinism); Dispatch writes into
// its own shadow positionsOut/velocities buffers rather than the
// orchestrator's render-facing ping-pong, so the GPU pass is genuinely
// exercised without a second writer racing the buffer every layer reads.
type GPU struct {
	device *gpu.Device
	layout *wgpu.BindGroupLayout

	computeForces *wgpu.ComputePipeline
	reduceSpeed   *wgpu.ComputePipeline
	integrate     *wgpu.ComputePipeline

	params        *gpu.GrowableBuffer
	cells         *gpu.GrowableBuffer
	positionsOut  *gpu.GrowableBuffer
	velocities    *gpu.GrowableBuffer
	csrOffsets    *gpu.GrowableBuffer
	csrNeighbors  *gpu.GrowableBuffer
	scratch       *gpu.GrowableBuffer
	globalScratch *wgpu.Buffer
}

// NewGPU builds the three simulation pipelines, all sharing one bind group
// layout since every entry point reads the same @group(0) bindings.
func NewGPU(device *gpu.Device) (*GPU, error) {
	module, err := device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SimulationShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.SimulationWGSL},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SimulationBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: simParamsSize}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 4, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 5, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 6, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 7, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 8, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label: "SimulationPipelineLayout", BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return nil, err
	}

	makePipeline := func(label, entry string) (*wgpu.ComputePipeline, error) {
		return device.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
			Label:   label,
			Layout:  pipelineLayout,
			Compute: wgpu.ProgrammableStageDescriptor{Module: module, EntryPoint: entry},
		})
	}

	computeForces, err := makePipeline("SimulationComputeForces", "compute_forces")
	if err != nil {
		return nil, err
	}
	reduceSpeed, err := makePipeline("SimulationReduceGlobalSpeed", "reduce_global_speed")
	if err != nil {
		return nil, err
	}
	integrate, err := makePipeline("SimulationIntegrate", "integrate")
	if err != nil {
		return nil, err
	}

	globalScratch, err := device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SimulationGlobalScratch", Size: globalScratchSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}

	return &GPU{
		device:        device,
		layout:        layout,
		computeForces: computeForces,
		reduceSpeed:   reduceSpeed,
		integrate:     integrate,
		params:        gpu.NewGrowableBuffer(device, "SimulationParams", wgpu.BufferUsageUniform),
		cells:         gpu.NewGrowableBuffer(device, "SimulationCells", wgpu.BufferUsageStorage),
		positionsOut:  gpu.NewGrowableBuffer(device, "SimulationPositionsOut", wgpu.BufferUsageStorage),
		velocities:    gpu.NewGrowableBuffer(device, "SimulationVelocities", wgpu.BufferUsageStorage),
		csrOffsets:    gpu.NewGrowableBuffer(device, "SimulationCSROffsets", wgpu.BufferUsageStorage),
		csrNeighbors:  gpu.NewGrowableBuffer(device, "SimulationCSRNeighbors", wgpu.BufferUsageStorage),
		scratch:       gpu.NewGrowableBuffer(device, "SimulationScratch", wgpu.BufferUsageStorage),
		globalScratch: globalScratch,
	}, nil
}

// DispatchInput bundles one tick's read-only state for the GPU shadow pass,
// deliberately mirroring TickInput's shape.
type DispatchInput struct {
	PositionsIn          *wgpu.Buffer // GPU-resident front buffer, node-count sized
	NodeCount            int
	Tree                 *quadtree.Tree
	Edges                []Edge
	Pinned               []bool
	Degrees              []uint32
	BoundsMin, BoundsMax [2]float32
	TimeSeed             uint32
	Params               Params
}

// Dispatch records compute_forces, reduce_global_speed, and integrate into
// enc as one compute pass, switching pipelines between dispatches against a
// single bind group (every entry point shares the same @group(0) layout).
func (g *GPU) Dispatch(enc *wgpu.CommandEncoder, in DispatchInput) error {
	n := in.NodeCount
	if n == 0 || in.Tree == nil || in.Tree.Root == quadtree.EmptyChild {
		return nil
	}

	params := make([]byte, simParamsSize)
	gpu.PutFloat32(params, 0, in.Params.Theta)
	gpu.PutFloat32(params, 4, in.Params.Gamma)
	gpu.PutFloat32(params, 8, in.Params.AttractionAlpha)
	gpu.PutFloat32(params, 12, in.Params.AttractionBeta)
	gpu.PutFloat32(params, 16, in.Params.Tau)
	gpu.PutFloat32(params, 20, in.Params.KS)
	gpu.PutFloat32(params, 24, in.Params.KSMax)
	gpu.PutFloat32(params, 28, in.Params.Damping)
	gpu.PutUint32(params, 32, uint32(n))
	gpu.PutUint32(params, 36, in.Tree.Root)
	gpu.PutUint32(params, 40, in.TimeSeed)
	g.params.Ensure(simParamsSize, params)

	cellsBytes := in.Tree.ToBytes()
	g.cells.Ensure(len(cellsBytes), cellsBytes)

	g.positionsOut.Ensure(n*8, nil)
	g.velocities.Ensure(n*8, nil)

	offsets, neighbors := BuildCSR(n, in.Edges)
	offsetBytes := make([]byte, len(offsets)*4)
	for i, v := range offsets {
		gpu.PutUint32(offsetBytes, i*4, v)
	}
	g.csrOffsets.Ensure(len(offsetBytes), offsetBytes)

	neighborBytes := make([]byte, len(neighbors)*8)
	for i, nw := range neighbors {
		gpu.PutUint32(neighborBytes, i*8, nw[0])
		gpu.PutUint32(neighborBytes, i*8+4, nw[1])
	}
	if len(neighborBytes) == 0 {
		neighborBytes = make([]byte, 8)
	}
	g.csrNeighbors.Ensure(len(neighborBytes), neighborBytes)

	scratchBytes := make([]byte, n*nodeScratchStride)
	for i := 0; i < n; i++ {
		off := i * nodeScratchStride
		pinned := uint32(0)
		if in.Pinned != nil && in.Pinned[i] {
			pinned = 1
		}
		degree := uint32(1)
		if in.Degrees != nil && i < len(in.Degrees) {
			degree = in.Degrees[i]
		}
		gpu.PutUint32(scratchBytes, off, pinned)
		gpu.PutUint32(scratchBytes, off+4, degree)
	}
	g.scratch.Ensure(len(scratchBytes), scratchBytes)

	globalBytes := make([]byte, globalScratchSize)
	gpu.PutFloat32(globalBytes, 0, -1) // negative sentinel: reduce_global_speed treats first dispatch as uncapped
	gpu.PutFloat32(globalBytes, 8, in.BoundsMin[0])
	gpu.PutFloat32(globalBytes, 12, in.BoundsMin[1])
	gpu.PutFloat32(globalBytes, 16, in.BoundsMax[0])
	gpu.PutFloat32(globalBytes, 20, in.BoundsMax[1])
	g.device.Queue.WriteBuffer(g.globalScratch, 0, globalBytes)

	bg, err := g.device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "SimulationBindGroup",
		Layout: g.layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: g.params.Buffer(), Size: wgpu.WholeSize},
			{Binding: 1, Buffer: g.cells.Buffer(), Size: wgpu.WholeSize},
			{Binding: 2, Buffer: in.PositionsIn, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: g.positionsOut.Buffer(), Size: wgpu.WholeSize},
			{Binding: 4, Buffer: g.velocities.Buffer(), Size: wgpu.WholeSize},
			{Binding: 5, Buffer: g.csrOffsets.Buffer(), Size: wgpu.WholeSize},
			{Binding: 6, Buffer: g.csrNeighbors.Buffer(), Size: wgpu.WholeSize},
			{Binding: 7, Buffer: g.scratch.Buffer(), Size: wgpu.WholeSize},
			{Binding: 8, Buffer: g.globalScratch, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return err
	}

	groups := uint32((n + 63) / 64)

	pass, err := enc.BeginComputePass(nil)
	if err != nil {
		return err
	}
	pass.SetBindGroup(0, bg, nil)
	pass.SetPipeline(g.computeForces)
	pass.DispatchWorkgroups(groups, 1, 1)
	pass.SetPipeline(g.reduceSpeed)
	pass.DispatchWorkgroups(1, 1, 1)
	pass.SetPipeline(g.integrate)
	pass.DispatchWorkgroups(groups, 1, 1)
	return pass.End()
}

// Release frees every buffer and pipeline GPU owns.
func (g *GPU) Release() {
	if g.computeForces != nil {
		g.computeForces.Release()
	}
	if g.reduceSpeed != nil {
		g.reduceSpeed.Release()
	}
	if g.integrate != nil {
		g.integrate.Release()
	}
	g.params.Release()
	g.cells.Release()
	g.positionsOut.Release()
	g.velocities.Release()
	g.csrOffsets.Release()
	g.csrNeighbors.Release()
	g.scratch.Release()
	if g.globalScratch != nil {
		g.globalScratch.Release()
	}
}
