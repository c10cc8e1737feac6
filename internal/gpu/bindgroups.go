package gpu

import "github.com/cogentcore/webgpu/wgpu"

// cameraUniformSize matches camera.Uniform.Bytes()'s 48-byte packed layout
// (clip-from-world affine + viewport + dpr/time).
const cameraUniformSize = 48

// NewCameraBindGroupLayout declares group 0 shared by every render layer:
// the per-frame camera uniform plus the node position/radius storage
// buffers every instanced draw reads from, grounded on the teacher's
// multi-binding group-0 layouts (app.go's lightBGL0).
func NewCameraBindGroupLayout(device *Device) (*wgpu.BindGroupLayout, error) {
	return device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "CameraBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: cameraUniformSize},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageVertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
		},
	})
}

// NewCameraBindGroup binds the camera uniform buffer plus the positions and
// per-instance-attribute (radius/color or width/color, layer-dependent)
// storage buffers against layout.
func NewCameraBindGroup(device *Device, layout *wgpu.BindGroupLayout, cameraUniform, positions, attrs *wgpu.Buffer) (*wgpu.BindGroup, error) {
	return device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "CameraBindGroup",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: cameraUniform, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: positions, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: attrs, Size: wgpu.WholeSize},
		},
	})
}

// NewDensityBindGroupLayout declares the sampled-texture+sampler binding the
// heatmap colour-map pass consumes (spec 4.8, heatmap.wgsl group 1).
func NewDensityBindGroupLayout(device *Device) (*wgpu.BindGroupLayout, error) {
	return device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "DensityBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment | wgpu.ShaderStageCompute,
				Texture:    wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeUnfilterableFloat, ViewDimension: wgpu.TextureViewDimension2D},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeNonFiltering},
			},
		},
	})
}

// NewDensityBindGroup binds the density texture view and its sampler
// against layout.
func NewDensityBindGroup(device *Device, layout *wgpu.BindGroupLayout, densityView *wgpu.TextureView, sampler *wgpu.Sampler) (*wgpu.BindGroup, error) {
	return device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "DensityBindGroup",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: densityView},
			{Binding: 1, Sampler: sampler},
		},
	})
}

// NewAtlasBindGroupLayout declares the MSDF glyph atlas texture+sampler
// binding the labels layer samples (spec 4.10).
func NewAtlasBindGroupLayout(device *Device) (*wgpu.BindGroupLayout, error) {
	return device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "AtlasBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Texture:    wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat, ViewDimension: wgpu.TextureViewDimension2D},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
			},
		},
	})
}

// NewAtlasBindGroup binds the atlas texture view and sampler against layout.
func NewAtlasBindGroup(device *Device, layout *wgpu.BindGroupLayout, atlasView *wgpu.TextureView, sampler *wgpu.Sampler) (*wgpu.BindGroup, error) {
	return device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "AtlasBindGroup",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: atlasView},
			{Binding: 1, Sampler: sampler},
		},
	})
}

// heatmapConfigUniformSize matches heatmap.wgsl's HeatmapConfig struct.
const heatmapConfigUniformSize = 32

// NewHeatmapSplatBindGroupLayout declares the splat pass's own group 0:
// camera uniform, a second uniform (the live HeatmapConfig, unlike every
// other layer's per-instance storage attrs), and the positions storage
// buffer the splat vertex shader instances over (heatmap.wgsl vs_splat).
func NewHeatmapSplatBindGroupLayout(device *Device) (*wgpu.BindGroupLayout, error) {
	return device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "HeatmapSplatBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: cameraUniformSize},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: heatmapConfigUniformSize},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageVertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
		},
	})
}

// NewHeatmapSplatBindGroup binds the camera uniform, the live config
// uniform, and the positions storage buffer against layout.
func NewHeatmapSplatBindGroup(device *Device, layout *wgpu.BindGroupLayout, cameraUniform, config, positions *wgpu.Buffer) (*wgpu.BindGroup, error) {
	return device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "HeatmapSplatBindGroup",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: cameraUniform, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: config, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: positions, Size: wgpu.WholeSize},
		},
	})
}

// NewCameraStorageBindGroupLayout declares a two-binding group 0: the camera
// uniform plus a single read-only storage buffer, shared by any layer whose
// vertex shader needs the camera and exactly one per-instance storage array
// (labels' glyph instances, contour's line segments).
func NewCameraStorageBindGroupLayout(device *Device) (*wgpu.BindGroupLayout, error) {
	return device.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "CameraStorageBindGroupLayout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: cameraUniformSize},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageVertex,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
		},
	})
}

// NewCameraStorageBindGroup binds the camera uniform and one storage buffer
// against layout.
func NewCameraStorageBindGroup(device *Device, layout *wgpu.BindGroupLayout, cameraUniform, storage *wgpu.Buffer) (*wgpu.BindGroup, error) {
	return device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "CameraStorageBindGroup",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: cameraUniform, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: storage, Size: wgpu.WholeSize},
		},
	})
}

// NewContourMarchBindGroup binds the density texture, the ContourConfig
// uniform, the segment storage buffer, and the atomic segment_count buffer
// against the contour layer's own 4-binding march layout (contour.wgsl
// group 0). Built fresh every frame since densityView changes on resize.
func NewContourMarchBindGroup(device *Device, layout *wgpu.BindGroupLayout, densityView *wgpu.TextureView, config, segments, segmentCount *wgpu.Buffer) (*wgpu.BindGroup, error) {
	return device.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ContourMarchBindGroup",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: densityView},
			{Binding: 1, Buffer: config, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: segments, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: segmentCount, Size: wgpu.WholeSize},
		},
	})
}
