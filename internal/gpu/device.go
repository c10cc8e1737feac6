// Package gpu owns every GPU-resident resource in HeroineGraph: the
// adapter/device/surface handle, buffer and texture factories, and the
// per-frame command-submission gate. The layer, quadtree and simulation
// packages create their own pipelines through the exported Device.Device.
package gpu

import (
	"context"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/heroinegraph/heroinegraph/internal/herolog"
)

// Capability is a single thing the capability probe checks for.
type Capability string

const (
	CapComputePipelines   Capability = "compute pipelines"
	CapStorageBuffers     Capability = "storage buffer binding type"
	CapFloat32Storage     Capability = "32-bit float storage"
	CapStorageTextures    Capability = "render+storage density textures"
	CapStorageBufferLimit Capability = "maxStorageBufferBindingSize"
)

// UnsupportedError is returned by New when the capability probe fails. It
// carries a human-readable reason; no panic ever escapes initialisation.
type UnsupportedError struct {
	Missing Capability
	Detail  string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("gpu: unsupported: %s: %s", e.Missing, e.Detail)
}

// SurfaceTarget abstracts the windowing system that owns the presentation
// surface. The native demo host implements this with glfw; a browser host
// would implement it with a canvas-backed surface descriptor.
type SurfaceTarget interface {
	CreateSurfaceDescriptor() *wgpu.SurfaceDescriptor
	FramebufferSize() (width, height int)
}

// Device wraps the resolved WebGPU handle set and exposes the factories
// every other subsystem builds its resources from.
type Device struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	MaxNodes uint32

	log herolog.Logger

	lost     chan struct{}
	lostOnce bool
}

// Options configures New.
type Options struct {
	MaxNodes uint32 // sizes the storage-buffer-binding-size probe
	Logger   herolog.Logger
}

// New resolves an adapter and device against target, runs the capability
// probe, and configures the presentation surface. On any failure it returns
// an *UnsupportedError; it never panics.
func New(ctx context.Context, target SurfaceTarget, opts Options) (*Device, error) {
	log := opts.Logger
	if log == nil {
		log = herolog.Nop()
	}
	maxNodes := opts.MaxNodes
	if maxNodes == 0 {
		maxNodes = 1 << 20
	}

	instance := wgpu.CreateInstance(nil)
	surface := instance.CreateSurface(target.CreateSurfaceDescriptor())

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, &UnsupportedError{Missing: CapComputePipelines, Detail: err.Error()}
	}

	limits := adapter.GetLimits()
	requiredBindingSize := uint64(maxNodes) * 16
	if limits.MaxStorageBufferBindingSize < requiredBindingSize {
		return nil, &UnsupportedError{
			Missing: CapStorageBufferLimit,
			Detail: fmt.Sprintf("adapter supports %d bytes, need %d for %d nodes",
				limits.MaxStorageBufferBindingSize, requiredBindingSize, maxNodes),
		}
	}

	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		return nil, &UnsupportedError{Missing: CapComputePipelines, Detail: err.Error()}
	}

	width, height := target.FramebufferSize()
	caps := surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 || len(caps.AlphaModes) == 0 {
		return nil, &UnsupportedError{Missing: CapStorageTextures, Detail: "surface reports no usable formats"}
	}

	config := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, dev, config)

	d := &Device{
		Instance: instance,
		Adapter:  adapter,
		Device:   dev,
		Queue:    dev.GetQueue(),
		Surface:  surface,
		Config:   config,
		MaxNodes: maxNodes,
		log:      log,
		lost:     make(chan struct{}),
	}
	dev.SetDeviceLostCallback(func(reason wgpu.DeviceLostReason, message string) {
		log.Errorf("device lost: %s (%d)", message, reason)
		d.markLost()
	})
	return d, nil
}

// Lost returns a channel that is closed exactly once, when the underlying
// GPU device reports itself lost. Callers select on it instead of polling.
func (d *Device) Lost() <-chan struct{} { return d.lost }

func (d *Device) markLost() {
	if d.lostOnce {
		return
	}
	d.lostOnce = true
	close(d.lost)
}

// IsLost reports whether the device has entered the terminal lost state.
func (d *Device) IsLost() bool {
	select {
	case <-d.lost:
		return true
	default:
		return false
	}
}

// Resize reconfigures the presentation surface after a host resize. Only
// viewport-sized resources (density/picking textures) are reallocated by
// callers in response; persistent resources are untouched here.
func (d *Device) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	d.Config.Width = uint32(width)
	d.Config.Height = uint32(height)
	d.Surface.Configure(d.Adapter, d.Device, d.Config)
}

// Submitter coalesces command encoders into a single per-frame submission,
// matching the orchestrator's "submit once per frame" contract (spec §5).
type Submitter struct {
	device  *Device
	encoder *wgpu.CommandEncoder
}

// Begin starts a new frame-scoped command encoder.
func (d *Device) Begin() (*Submitter, error) {
	enc, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	return &Submitter{device: d, encoder: enc}, nil
}

// Encoder exposes the underlying encoder for passes to record into.
func (s *Submitter) Encoder() *wgpu.CommandEncoder { return s.encoder }

// Submit finishes the encoder and submits it as the frame's single command
// buffer.
func (s *Submitter) Submit() error {
	cmd, err := s.encoder.Finish(nil)
	if err != nil {
		return err
	}
	s.device.Queue.Submit(cmd)
	return nil
}
