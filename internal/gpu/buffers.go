package gpu

import (
	"encoding/binary"
	"math"

	"github.com/cogentcore/webgpu/wgpu"
)

// growthFactor is the geometric growth applied when a managed buffer must
// be reallocated to fit new content, matching the teacher's ensureBuffer.
const growthFactor = 1.5

// GrowableBuffer is a GPU storage/uniform buffer that grows geometrically
// and preserves prior contents across a resize, adapted from the teacher's
// ensureBuffer helper (voxelrt/rt/gpu/manager.go) and generalized beyond the
// handful of buffers it used to manage.
type GrowableBuffer struct {
	device *Device
	label  string
	usage  wgpu.BufferUsage
	buf    *wgpu.Buffer
}

// NewGrowableBuffer creates an empty managed buffer for the given usage.
// The usage flags are combined with CopySrc/CopyDst automatically so resize
// copies and direct writes always succeed.
func NewGrowableBuffer(device *Device, label string, usage wgpu.BufferUsage) *GrowableBuffer {
	return &GrowableBuffer{device: device, label: label, usage: usage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc}
}

// Buffer returns the current backing *wgpu.Buffer, or nil if never ensured.
func (g *GrowableBuffer) Buffer() *wgpu.Buffer { return g.buf }

// Size returns the current capacity in bytes, 0 if unallocated.
func (g *GrowableBuffer) Size() uint64 {
	if g.buf == nil {
		return 0
	}
	return g.buf.GetSize()
}

// Ensure grows the buffer, if needed, to hold at least minBytes and writes
// data (if non-nil) at offset 0. Growth preserves prior content via a
// CopyBufferToBuffer when data is nil (an in-place resize rather than a
// full overwrite). Returns true if the buffer was reallocated.
func (g *GrowableBuffer) Ensure(minBytes int, data []byte) bool {
	needed := uint64(minBytes)
	if dl := uint64(len(data)); dl > needed {
		needed = dl
	}
	if needed%4 != 0 {
		needed += 4 - (needed % 4)
	}
	if needed == 0 {
		needed = 4
	}

	current := g.buf
	if current != nil && current.GetSize() >= needed {
		if len(data) > 0 {
			g.device.Queue.WriteBuffer(current, 0, data)
		}
		return false
	}

	newSize := needed
	if current != nil {
		grown := uint64(float64(current.GetSize()) * growthFactor)
		if grown > newSize {
			newSize = grown
		}
	}

	newBuf, err := g.device.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            g.label,
		Size:             newSize,
		Usage:            g.usage,
		MappedAtCreation: false,
	})
	if err != nil {
		panic(err)
	}

	if current != nil && data == nil {
		enc, err := g.device.Device.CreateCommandEncoder(nil)
		if err != nil {
			panic(err)
		}
		enc.CopyBufferToBuffer(current, 0, newBuf, 0, current.GetSize())
		cmd, err := enc.Finish(nil)
		if err != nil {
			panic(err)
		}
		g.device.Queue.Submit(cmd)
	}
	if current != nil {
		current.Release()
	}
	g.buf = newBuf

	if len(data) > 0 {
		g.device.Queue.WriteBuffer(g.buf, 0, data)
	}
	return true
}

// Release frees the backing buffer, if any.
func (g *GrowableBuffer) Release() {
	if g.buf != nil {
		g.buf.Release()
		g.buf = nil
	}
}

// SlotAllocator hands out dense uint32 slot indices with free-list reuse,
// directly ported from the teacher's SlotAllocator (manager.go). Nothing in
// this module uses it; the graph store interns ids by appending to its own
// dense node array.
type SlotAllocator struct {
	Tail uint32
	Free []uint32
}

func (a *SlotAllocator) Alloc() uint32 {
	if n := len(a.Free); n > 0 {
		idx := a.Free[n-1]
		a.Free = a.Free[:n-1]
		return idx
	}
	idx := a.Tail
	a.Tail++
	return idx
}

func (a *SlotAllocator) FreeSlot(idx uint32) {
	a.Free = append(a.Free, idx)
}

// PingPong holds two identically-sized GrowableBuffers alternating between
// read ("front") and write ("back") roles. The simulation writes only the
// back buffer each tick and swaps roles at tick end (spec §4.5 step 4); every
// render layer reads only the front buffer.
type PingPong struct {
	a, b  *GrowableBuffer
	front int // 0 -> a is front, 1 -> b is front
}

func NewPingPong(device *Device, label string, usage wgpu.BufferUsage) *PingPong {
	return &PingPong{
		a: NewGrowableBuffer(device, label+"/A", usage),
		b: NewGrowableBuffer(device, label+"/B", usage),
	}
}

// Ensure grows both buffers to at least minBytes, preserving content.
func (p *PingPong) Ensure(minBytes int) {
	p.a.Ensure(minBytes, nil)
	p.b.Ensure(minBytes, nil)
}

// Front is the buffer render layers and the next tick's repulsion/attraction
// passes read from.
func (p *PingPong) Front() *GrowableBuffer {
	if p.front == 0 {
		return p.a
	}
	return p.b
}

// Back is the buffer the integration pass writes into.
func (p *PingPong) Back() *GrowableBuffer {
	if p.front == 0 {
		return p.b
	}
	return p.a
}

// Swap exchanges front/back roles at the end of a simulation tick.
func (p *PingPong) Swap() { p.front = 1 - p.front }

// PutFloat32 writes v as little-endian bits at buf[off:off+4], mirroring the
// teacher's math.Float32bits + binary.LittleEndian packing idiom used
// throughout manager.go.
func PutFloat32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
}

// GetFloat32 is the inverse of PutFloat32.
func GetFloat32(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
}

// PutUint32 writes v as little-endian bits at buf[off:off+4].
func PutUint32(buf []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], v)
}

// GetUint32 reads a little-endian uint32 at buf[off:off+4].
func GetUint32(buf []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(buf[off : off+4])
}
