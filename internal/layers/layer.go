// Package layers holds the render layers that composite a frame: nodes,
// edges, heatmap, contour, labels, and picking. They share a single tagged
// interface (spec §9 "dynamic dispatch": "Layers share an interface
// { enabled, configure(partial), encode(passEncoder, frameCtx) }.
// Implementations are tagged variants; the orchestrator iterates a small
// fixed list in z-order. No reflection needed."), mirrored here as the
// Layer interface below.
package layers

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/camera"
	"github.com/heroinegraph/heroinegraph/internal/gpu"
)

// backgroundColor is the swap-chain clear colour. EdgeLayer clears to it
// since it is first in the orchestrator's fixed z-order (spec 4.12).
var backgroundColor = wgpu.Color{R: 0.05, G: 0.05, B: 0.08, A: 1.0}

// FrameContext is the read-only per-frame state every layer's Encode call
// receives: the device, the current camera, elapsed time, the node/edge
// counts, and the density texture size. It carries no buffers; each layer
// holds its own bind groups.
type FrameContext struct {
	Device        *gpu.Device
	Camera        *camera.Camera
	TimeSeconds   float32
	NodeCount     int
	EdgeCount     int
	DensityWidth  uint32
	DensityHeight uint32
}

// Layer is the shared contract every render layer implements. Encode
// records its pass(es) into the frame's shared command encoder; it must
// not submit independently (spec §5: "All GPU work is encoded into command
// buffers submitted once per frame").
type Layer interface {
	Name() string
	Enabled() bool
	SetEnabled(bool)
	Encode(enc *wgpu.CommandEncoder, target *wgpu.TextureView, ctx FrameContext) error
	Release()
}
