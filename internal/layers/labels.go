package layers

import (
	"sort"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/colorspec"
	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/shaders"
)

// PriorityMode selects how candidate labels are ranked before the greedy
// placement pass (spec 4.10 step 2).
type PriorityMode int

const (
	PriorityImportance PriorityMode = iota
	PriorityDegree
)

// DefaultLabelPadding is the occupancy-grid cell padding in CSS px.
const DefaultLabelPadding = 4.0

// LabelsConfig is the partial-mergeable layer config (spec 4.10, 6.3).
type LabelsConfig struct {
	Visible           bool
	FontSize          float32
	FontColor         colorspec.RGBA
	MinZoom           float32
	MaxLabels         int
	Priority          PriorityMode
	LabelPadding      float32
	VerticalOffset    float32
	HasBackground     bool
	BackgroundColor   colorspec.RGBA
	BackgroundPadding float32
	BackgroundRadius  float32
}

// DefaultLabelsConfig returns spec.md's §4.10 authoritative defaults.
func DefaultLabelsConfig() LabelsConfig {
	return LabelsConfig{
		Visible:        false,
		FontSize:       14,
		FontColor:      colorspec.RGBA{R: 1, G: 1, B: 1, A: 1},
		MinZoom:        0.3,
		MaxLabels:      1000,
		Priority:       PriorityImportance,
		LabelPadding:   DefaultLabelPadding,
		VerticalOffset: 0,
	}
}

func (c *LabelsConfig) Merge(partial LabelsConfig) {
	if partial.FontSize != 0 {
		c.FontSize = partial.FontSize
	}
	if partial.MinZoom != 0 {
		c.MinZoom = partial.MinZoom
	}
	if partial.MaxLabels != 0 {
		c.MaxLabels = partial.MaxLabels
	}
	if partial.LabelPadding != 0 {
		c.LabelPadding = partial.LabelPadding
	}
	c.VerticalOffset = partial.VerticalOffset
	c.Priority = partial.Priority
	c.FontColor = partial.FontColor
	c.HasBackground = partial.HasBackground
	c.BackgroundColor = partial.BackgroundColor
	c.BackgroundPadding = partial.BackgroundPadding
	c.BackgroundRadius = partial.BackgroundRadius
	c.Visible = partial.Visible
}

// LabelCandidate is one node's label before culling/collision, already
// projected to screen space by the caller (the orchestrator, via camera).
type LabelCandidate struct {
	NodeIndex  uint32
	Text       string
	ScreenX    float32
	ScreenY    float32
	Importance float32
	Degree     uint32
	MinZoom    float32 // per-label override; 0 means "use config.MinZoom"
}

// PlacedLabel is an accepted label with its final screen-space bbox.
type PlacedLabel struct {
	NodeIndex uint32
	Text      string
	X, Y      float32 // top-left of bbox
	W, H      float32
}

// MeasureFunc returns the screen-space width/height a label's text occupies
// at the given font size, supplied by the MSDF atlas (advance-sum layout).
type MeasureFunc func(text string, fontSize float32) (w, h float32)

type occupancyGrid struct {
	cellSize float32
	cells    map[[2]int][]PlacedLabel
}

func newOccupancyGrid(cellSize float32) *occupancyGrid {
	return &occupancyGrid{cellSize: cellSize, cells: make(map[[2]int][]PlacedLabel)}
}

func (g *occupancyGrid) cellOf(x, y float32) [2]int {
	return [2]int{int(x / g.cellSize), int(y / g.cellSize)}
}

func overlaps(a, b PlacedLabel) bool {
	return a.X < b.X+b.W && a.X+a.W > b.X && a.Y < b.Y+b.H && a.Y+a.H > b.Y
}

// collides checks the placed label's bbox against every label occupying a
// neighbouring grid cell (the bbox can span at most a 3x3 neighbourhood
// given cellSize >= label size in the common case).
func (g *occupancyGrid) collides(candidate PlacedLabel) bool {
	minCell := g.cellOf(candidate.X, candidate.Y)
	maxCell := g.cellOf(candidate.X+candidate.W, candidate.Y+candidate.H)
	for cx := minCell[0]; cx <= maxCell[0]; cx++ {
		for cy := minCell[1]; cy <= maxCell[1]; cy++ {
			for _, placed := range g.cells[[2]int{cx, cy}] {
				if overlaps(candidate, placed) {
					return true
				}
			}
		}
	}
	return false
}

func (g *occupancyGrid) insert(label PlacedLabel) {
	minCell := g.cellOf(label.X, label.Y)
	maxCell := g.cellOf(label.X+label.W, label.Y+label.H)
	for cx := minCell[0]; cx <= maxCell[0]; cx++ {
		for cy := minCell[1]; cy <= maxCell[1]; cy++ {
			key := [2]int{cx, cy}
			g.cells[key] = append(g.cells[key], label)
		}
	}
}

// PlaceLabels runs the spec's §4.10 culling + greedy collision pass: discard
// by per-label/global minZoom, sort by descending priority, greedily accept
// non-overlapping labels up to maxLabels.
func PlaceLabels(candidates []LabelCandidate, cfg LabelsConfig, zoom float32, measure MeasureFunc) []PlacedLabel {
	visible := make([]LabelCandidate, 0, len(candidates))
	for _, c := range candidates {
		threshold := cfg.MinZoom
		if c.MinZoom != 0 {
			threshold = c.MinZoom
		}
		if zoom < threshold {
			continue
		}
		visible = append(visible, c)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return priorityOf(visible[i], cfg.Priority) > priorityOf(visible[j], cfg.Priority)
	})

	grid := newOccupancyGrid(cfg.FontSize + cfg.LabelPadding)
	placed := make([]PlacedLabel, 0, cfg.MaxLabels)
	for _, c := range visible {
		if len(placed) >= cfg.MaxLabels {
			break
		}
		w, h := measure(c.Text, cfg.FontSize)
		w += cfg.LabelPadding
		h += cfg.LabelPadding
		candidate := PlacedLabel{
			NodeIndex: c.NodeIndex,
			Text:      c.Text,
			X:         c.ScreenX - w/2,
			Y:         c.ScreenY - cfg.VerticalOffset/zoom - h,
			W:         w,
			H:         h,
		}
		if grid.collides(candidate) {
			continue
		}
		grid.insert(candidate)
		placed = append(placed, candidate)
	}
	return placed
}

func priorityOf(c LabelCandidate, mode PriorityMode) float32 {
	if mode == PriorityDegree {
		return float32(c.Degree)
	}
	return c.Importance
}

// LabelLayer renders the placed glyph instances produced by PlaceLabels
// each frame (spec 4.10's "dynamic instance buffer... rendered in one
// pass"), sourced from shaders.LabelsWGSL's MSDF vs_main/fs_main pair.
type LabelLayer struct {
	device  *gpu.Device
	Config  LabelsConfig
	enabled bool

	layout    *wgpu.BindGroupLayout
	pipeline  *wgpu.RenderPipeline
	cameraBG  *wgpu.BindGroup
	atlasBG   *wgpu.BindGroup
	instances *gpu.GrowableBuffer

	lastPlaced []PlacedLabel
}

// NewLabelLayer builds the glyph-quad pipeline. cameraLayout is the
// camera+glyph-storage group-0 layout (gpu.NewCameraStorageBindGroupLayout),
// since labels.wgsl's group 0 binds a glyph instance storage buffer at
// binding 1, not the generic per-node NodeAttrs shape nodes/edges use.
func NewLabelLayer(device *gpu.Device, cameraLayout, atlasLayout *wgpu.BindGroupLayout) (*LabelLayer, error) {
	module, err := device.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "LabelsShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.LabelsWGSL},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "LabelsPipelineLayout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{cameraLayout, atlasLayout},
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "LabelsPipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_main"},
		Fragment: &wgpu.FragmentState{
			Module: module, EntryPoint: "fs_main",
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

	return &LabelLayer{
		device:    device,
		Config:    DefaultLabelsConfig(),
		layout:    cameraLayout,
		pipeline:  pipeline,
		instances: gpu.NewGrowableBuffer(device, "LabelGlyphInstances", wgpu.BufferUsageStorage),
	}, nil
}

func (l *LabelLayer) Name() string      { return "labels" }
func (l *LabelLayer) Enabled() bool     { return l.enabled && l.Config.Visible }
func (l *LabelLayer) SetEnabled(v bool) { l.enabled = v }

func (l *LabelLayer) SetAtlasBindGroup(bg *wgpu.BindGroup) { l.atlasBG = bg }

// SetFrameBuffers rebuilds the camera+glyphs bind group against this
// frame's camera uniform and the instances buffer SetPlaced just filled.
func (l *LabelLayer) SetFrameBuffers(cameraUniform *wgpu.Buffer) error {
	bg, err := gpu.NewCameraStorageBindGroup(l.device, l.layout, cameraUniform, l.instances.Buffer())
	if err != nil {
		return err
	}
	l.cameraBG = bg
	return nil
}

// SetPlaced uploads glyph instances already resolved by PlaceLabels and the
// atlas. The orchestrator does not call it; while no labels have been
// placed, Encode draws nothing.
func (l *LabelLayer) SetPlaced(placed []PlacedLabel, instanceBytes []byte) {
	l.lastPlaced = placed
	if len(instanceBytes) > 0 {
		l.instances.Ensure(len(instanceBytes), instanceBytes)
	}
}

// LastPlaced returns the most recently placed label set, e.g. for hit-testing.
func (l *LabelLayer) LastPlaced() []PlacedLabel { return l.lastPlaced }

func (l *LabelLayer) Encode(enc *wgpu.CommandEncoder, target *wgpu.TextureView, ctx FrameContext) error {
	if !l.Enabled() || l.cameraBG == nil || l.atlasBG == nil || len(l.lastPlaced) == 0 {
		return nil
	}
	// cameraBG must have been rebuilt (SetFrameBuffers) after the latest
	// SetPlaced, since the instances buffer it binds may have been reallocated.
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  wgpu.LoadOpLoad,
			StoreOp: wgpu.StoreOpStore,
		}},
	})
	pass.SetPipeline(l.pipeline)
	pass.SetBindGroup(0, l.cameraBG, nil)
	pass.SetBindGroup(1, l.atlasBG, nil)
	pass.Draw(6, uint32(len(l.lastPlaced)), 0, 0)
	return pass.End()
}

func (l *LabelLayer) Release() {
	if l.pipeline != nil {
		l.pipeline.Release()
	}
	l.instances.Release()
}
