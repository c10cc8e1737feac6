// Package heroinegraph is a GPU-accelerated force-directed graph renderer
// targeting WebGPU. Renderer is the public entry point (spec §6.2); every
// subsystem it wires lives under internal/.
package heroinegraph

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"

	"github.com/heroinegraph/heroinegraph/internal/camera"
	"github.com/heroinegraph/heroinegraph/internal/colorspec"
	"github.com/heroinegraph/heroinegraph/internal/gpu"
	"github.com/heroinegraph/heroinegraph/internal/graph"
	"github.com/heroinegraph/heroinegraph/internal/herolog"
	"github.com/heroinegraph/heroinegraph/internal/layers"
	"github.com/heroinegraph/heroinegraph/internal/msdf"
	"github.com/heroinegraph/heroinegraph/internal/orchestrator"
	"github.com/heroinegraph/heroinegraph/internal/simulation"
)

// InitOptions configures Init (spec 6.2: "init({canvas, debug?})").
type InitOptions struct {
	Target   gpu.SurfaceTarget
	Debug    bool
	Logger   herolog.Logger
	MaxNodes uint32
}

// Renderer is the public surface every host (native demo, future browser
// binding) drives. Exactly one GraphData is live at a time; Load replaces it.
type Renderer struct {
	device *gpu.Device
	camera *camera.Camera
	store  *graph.Store
	sim    *simulation.Simulator
	orch   *orchestrator.Orchestrator
	log    herolog.Logger

	cameraLayout        *wgpu.BindGroupLayout
	densityLayout       *wgpu.BindGroupLayout
	atlasLayout         *wgpu.BindGroupLayout
	heatmapSplatLayout  *wgpu.BindGroupLayout
	cameraStorageLayout *wgpu.BindGroupLayout

	atlas *msdf.Atlas

	loadGeneration string
}

// Init resolves a GPU device against target and constructs every layer
// (spec 6.2: "init({canvas, debug?}) -> Renderer | Unsupported{reason}").
func Init(ctx context.Context, opts InitOptions) (*Renderer, error) {
	log := opts.Logger
	if log == nil {
		log = herolog.Nop()
	}
	if opts.Debug {
		log.SetDebug(true)
	}

	device, err := gpu.New(ctx, opts.Target, gpu.Options{MaxNodes: opts.MaxNodes, Logger: log})
	if err != nil {
		return nil, wrapErr(KindUnsupported, "device initialization failed", err)
	}

	width, height := opts.Target.FramebufferSize()
	cam := camera.New(float32(width), float32(height), 1.0)
	store := graph.New()
	sim := simulation.New(simulation.DefaultParams())

	cameraLayout, err := gpu.NewCameraBindGroupLayout(device)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "camera bind group layout", err)
	}
	densityLayout, err := gpu.NewDensityBindGroupLayout(device)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "density bind group layout", err)
	}
	atlasLayout, err := gpu.NewAtlasBindGroupLayout(device)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "atlas bind group layout", err)
	}
	heatmapSplatLayout, err := gpu.NewHeatmapSplatBindGroupLayout(device)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "heatmap splat bind group layout", err)
	}
	cameraStorageLayout, err := gpu.NewCameraStorageBindGroupLayout(device)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "camera storage bind group layout", err)
	}

	edgeLayer, err := layers.NewEdgeLayer(device, cameraLayout)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "edge layer", err)
	}
	nodeLayer, err := layers.NewNodeLayer(device, cameraLayout)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "node layer", err)
	}
	heatmapLayer, err := layers.NewHeatmapLayer(device, heatmapSplatLayout, densityLayout)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "heatmap layer", err)
	}
	contourLayer, err := layers.NewContourLayer(device, cameraStorageLayout)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "contour layer", err)
	}
	labelLayer, err := layers.NewLabelLayer(device, cameraStorageLayout, atlasLayout)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "label layer", err)
	}
	pickingLayer, err := layers.NewPickingLayer(device, cameraLayout)
	if err != nil {
		return nil, wrapErr(KindUnsupported, "picking layer", err)
	}
	pickingLayer.SetEnabled(true)

	orch, err := orchestrator.New(device, cam, store, sim, orchestrator.Layers{
		Edges:   edgeLayer,
		Nodes:   nodeLayer,
		Heatmap: heatmapLayer,
		Contour: contourLayer,
		Labels:  labelLayer,
		Picking: pickingLayer,
	})
	if err != nil {
		return nil, wrapErr(KindUnsupported, "orchestrator", err)
	}
	orch.Resize(uint32(width), uint32(height), 1.0)

	return &Renderer{
		device:              device,
		camera:              cam,
		store:               store,
		sim:                 sim,
		orch:                orch,
		log:                 log,
		cameraLayout:        cameraLayout,
		densityLayout:       densityLayout,
		atlasLayout:         atlasLayout,
		heatmapSplatLayout:  heatmapSplatLayout,
		cameraStorageLayout: cameraStorageLayout,
	}, nil
}

// Load replaces the live graph (spec 6.2, 6.1, 7). A Load already in
// flight is superseded: its caller should treat a returned LoadSuperseded
// error as non-fatal.
func (r *Renderer) Load(ctx context.Context, data graph.GraphData) error {
	generation := uuid.NewString()
	r.loadGeneration = generation

	// upload is nil: the orchestrator rebuilds every GPU-resident buffer from
	// r.store at the top of every RenderFrame call (see
	// orchestrator.refreshFrameBuffers), so a dedicated upload-on-load hook
	// would just duplicate that work one frame early.
	_, err := r.store.Load(ctx, data, nil)
	if err != nil {
		var parseErr *colorspec.ParseError
		if asParseError(err, &parseErr) {
			return wrapErr(KindInvalidColor, "invalid color in graph data", err)
		}
		return wrapErr(KindInvalidTopology, "edge references unknown node id", err)
	}

	if r.loadGeneration != generation {
		return newErr(KindLoadSuperseded, "superseded by a later load")
	}
	return nil
}

func asParseError(err error, target **colorspec.ParseError) bool {
	if pe, ok := err.(*colorspec.ParseError); ok {
		*target = pe
		return true
	}
	return false
}

// Resize propagates a host resize (spec 6.2: "resize(widthDevicePx,
// heightDevicePx)").
func (r *Renderer) Resize(widthPx, heightPx int) {
	r.device.Resize(widthPx, heightPx)
	r.orch.Resize(uint32(widthPx), uint32(heightPx), 1.0)
}

// Pan shifts the camera centre by a screen-space delta (spec 4.2).
func (r *Renderer) Pan(dxPx, dyPx float32) { r.camera.Pan(dxPx, dyPx) }

// Zoom multiplies the camera's zoom factor (spec 4.2; no anchor point in
// the distilled public surface — Camera.ZoomBy supports one internally).
func (r *Renderer) Zoom(factor float32) { r.camera.ZoomBy(factor, nil) }

// FitToView recentres and rescales the camera to fit all current node
// positions with the default 10% padding (spec 4.2, 6.2).
func (r *Renderer) FitToView() {
	bbox := computeBounds(r.store)
	r.camera.FitToView(bbox, camera.DefaultFitPadding)
}

func computeBounds(store *graph.Store) camera.Bounds {
	n := store.NodeCount()
	if n == 0 {
		return camera.Bounds{MinX: -1, MinY: -1, MaxX: 1, MaxY: 1}
	}
	b := camera.Bounds{MinX: store.Nodes[0].X, MinY: store.Nodes[0].Y, MaxX: store.Nodes[0].X, MaxY: store.Nodes[0].Y}
	for _, n := range store.Nodes {
		if n.X < b.MinX {
			b.MinX = n.X
		}
		if n.X > b.MaxX {
			b.MaxX = n.X
		}
		if n.Y < b.MinY {
			b.MinY = n.Y
		}
		if n.Y > b.MaxY {
			b.MaxY = n.Y
		}
	}
	return b
}

// StartSimulation resumes per-frame simulation ticking (spec 6.2, 5).
func (r *Renderer) StartSimulation() { r.orch.Running = true }

// PauseSimulation stops per-frame ticking at the next frame boundary
// (spec 5: "Simulation pause takes effect at the next frame boundary, not
// mid-tick").
func (r *Renderer) PauseSimulation() { r.orch.Running = false }

// TickOnce advances the simulation exactly one tick regardless of Running,
// useful for deterministic host-driven stepping (spec 6.2, SPEC_FULL §4.5).
func (r *Renderer) TickOnce() { r.orch.TickOnce() }

// EnableHeatmap turns on the heatmap layer with an optional partial config.
func (r *Renderer) EnableHeatmap(partial *layers.HeatmapConfig) {
	if partial != nil {
		// handled via SetHeatmapConfig below to keep merge semantics in one place
		r.SetHeatmapConfig(*partial)
	}
	r.heatmapLayer().SetEnabled(true)
	r.heatmapLayer().Config.Visible = true
}

func (r *Renderer) DisableHeatmap() { r.heatmapLayer().Config.Visible = false }

func (r *Renderer) SetHeatmapConfig(partial layers.HeatmapConfig) {
	r.heatmapLayer().Config.Merge(partial)
}

func (r *Renderer) EnableContour(partial *layers.ContourConfig) {
	if partial != nil {
		r.SetContourConfig(*partial)
	}
	r.contourLayer().SetEnabled(true)
	r.contourLayer().Config.Visible = true
}

func (r *Renderer) DisableContour() { r.contourLayer().Config.Visible = false }

func (r *Renderer) SetContourConfig(partial layers.ContourConfig) {
	r.contourLayer().Config.Merge(partial)
}

// EnableLabels loads the MSDF atlas (if not already loaded) and enables the
// labels layer (spec 6.2, 7: AtlasFetchFailed on decode failure).
func (r *Renderer) EnableLabels(partial *layers.LabelsConfig, atlasPNG, atlasMetadata []byte) error {
	if r.atlas == nil {
		atlas, err := msdf.Load(atlasPNG, atlasMetadata)
		if err != nil {
			return wrapErr(KindAtlasFetchFailed, "failed to decode MSDF atlas", err)
		}
		r.atlas = atlas
	}
	if partial != nil {
		r.SetLabelsConfig(*partial)
	}
	r.labelLayer().SetEnabled(true)
	r.labelLayer().Config.Visible = true
	return nil
}

func (r *Renderer) DisableLabels() { r.labelLayer().Config.Visible = false }

func (r *Renderer) SetLabelsConfig(partial layers.LabelsConfig) {
	r.labelLayer().Config.Merge(partial)
}

// HoveredNodeID returns the id of the node currently under the cursor, or
// ("", false) if none (spec 6.2: "hoveredNodeId: string | null").
func (r *Renderer) HoveredNodeID() (string, bool) {
	idx, ok := r.orch.HoveredNodeIndex()
	if !ok {
		return "", false
	}
	return r.store.IDOf(idx)
}

// FrameStats returns the latest EMA'd frame timing (spec 6.2).
func (r *Renderer) FrameStats() orchestrator.FrameStats { return r.orch.Stats() }

// NodeCount and EdgeCount report the live graph's sizes (spec 6.2).
func (r *Renderer) NodeCount() int { return r.store.NodeCount() }
func (r *Renderer) EdgeCount() int { return r.store.EdgeCount() }

// RequestPick queues an asynchronous hover hit-test at a framebuffer pixel
// (spec 4.11).
func (r *Renderer) RequestPick(px, py uint32) { r.orch.RequestPick(px, py) }

// RenderFrame draws one frame to target, per the orchestrator's fixed
// sequencing (spec 4.12). Hosts call this once per animation-frame tick.
func (r *Renderer) RenderFrame() error {
	view, err := r.device.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("heroinegraph: acquire swapchain texture: %w", err)
	}
	target, err := view.Texture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("heroinegraph: create swapchain view: %w", err)
	}
	if err := r.orch.RenderFrame(target); err != nil {
		return err
	}
	r.device.Surface.Present()
	return nil
}

func (r *Renderer) heatmapLayer() *layers.HeatmapLayer { return r.orch.LayerSet().Heatmap }
func (r *Renderer) contourLayer() *layers.ContourLayer { return r.orch.LayerSet().Contour }
func (r *Renderer) labelLayer() *layers.LabelLayer     { return r.orch.LayerSet().Labels }
