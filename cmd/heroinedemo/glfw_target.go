package main

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// glfwTarget implements gpu.SurfaceTarget over a glfw window, grounded on
// the teacher's GetSurfaceDescriptor (app.go) / NewApp window plumbing.
type glfwTarget struct {
	window *glfw.Window
}

func (t *glfwTarget) CreateSurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(t.window)
}

func (t *glfwTarget) FramebufferSize() (int, int) {
	return t.window.GetFramebufferSize()
}
