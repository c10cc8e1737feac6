package quadtree

import (
	"encoding/binary"
	"math"
)

// EmptyChild is the reserved child index denoting "no child" (spec §3,
// §4.4 step 5), matching the teacher's use of -1 sentinels in BVHNode but
// expressed as the max uint32 since cell indices are unsigned here.
const EmptyChild = ^uint32(0)

// Cell is one quadtree node: a leaf (level 0) or an internal cell (levels
// 1..L). Matches the WGSL QuadCell layout 1:1 via Bytes.
//
//	struct QuadCell {
//	    com      : vec2<f32>; (8)
//	    mass     : f32;       (4)
//	    side     : f32;       (4)
//	    children : vec4<u32>; (16)
//	}; -> 32 bytes
type Cell struct {
	ComX, ComY float32
	Mass       float32
	Side       float32
	Children   [4]uint32
}

// Bytes packs a Cell into its 32-byte GPU layout, following the teacher's
// BVHNode.ToBytes little-endian float/int packing idiom.
func (c *Cell) Bytes() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(c.ComX))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(c.ComY))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(c.Mass))
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(c.Side))
	for i, child := range c.Children {
		binary.LittleEndian.PutUint32(buf[16+i*4:20+i*4], child)
	}
	return buf
}

// CellFromBytes is the inverse of Cell.Bytes, used by builder tests that
// round-trip the packed buffer.
func CellFromBytes(buf []byte) Cell {
	var c Cell
	c.ComX = math.Float32frombits(binary.LittleEndian.Uint32(buf[0:4]))
	c.ComY = math.Float32frombits(binary.LittleEndian.Uint32(buf[4:8]))
	c.Mass = math.Float32frombits(binary.LittleEndian.Uint32(buf[8:12]))
	c.Side = math.Float32frombits(binary.LittleEndian.Uint32(buf[12:16]))
	for i := range c.Children {
		c.Children[i] = binary.LittleEndian.Uint32(buf[16+i*4 : 20+i*4])
	}
	return c
}

// LevelOffset records where each level's cells begin in the flat Tree
// buffer. The offsets stay CPU-side; the GPU passes traverse the tree from
// the root cell through its child links.
type LevelOffset struct {
	Offset, Count int
}

// Tree is the full linear quadtree buffer produced by Build.
type Tree struct {
	Bounds Bounds
	Cells  []Cell
	Levels []LevelOffset
	Root   uint32

	// LeafOriginalIndex maps level-0 cell slots back to the original node
	// index (the (code, originalIndex) pair array of spec §4.4 step 3),
	// kept as a sibling buffer rather than packed into Cell so the GPU cell
	// layout stays a tight 32 bytes.
	LeafOriginalIndex []uint32
}

// ToBytes packs every cell into the flat GPU buffer layout.
func (t *Tree) ToBytes() []byte {
	out := make([]byte, 0, len(t.Cells)*32)
	for i := range t.Cells {
		out = append(out, t.Cells[i].Bytes()...)
	}
	return out
}

// Build runs the five quadtree passes over positions (flat x,y pairs) and
// masses (one per node, or nil for unit mass), per spec §4.4.
func Build(positions, masses []float32, boundsMargin float32) *Tree {
	n := len(positions) / 2
	if n == 0 {
		return &Tree{Cells: nil, Levels: nil, Root: EmptyChild}
	}

	bounds := ReduceBounds(positions, boundsMargin)

	pairs := make([]CodeIndexPair, n)
	for i := 0; i < n; i++ {
		u, v := bounds.Normalize(positions[i*2], positions[i*2+1])
		pairs[i] = CodeIndexPair{Code: HilbertCode(u, v), OriginalIndex: uint32(i)}
	}
	RadixSort(pairs)

	leafSide := float32(1.0 / float64(int64(1)<<HilbertBits))
	cells := make([]Cell, n)
	leafOriginal := make([]uint32, n)
	for i, p := range pairs {
		idx := p.OriginalIndex
		mass := float32(1)
		if masses != nil {
			mass = masses[idx]
		}
		cells[i] = Cell{
			ComX:     positions[idx*2],
			ComY:     positions[idx*2+1],
			Mass:     mass,
			Side:     leafSide,
			Children: [4]uint32{EmptyChild, EmptyChild, EmptyChild, EmptyChild},
		}
		leafOriginal[i] = idx
	}

	levels := []LevelOffset{{Offset: 0, Count: n}}
	levelStart := 0
	levelCount := n
	for levelCount > 1 {
		nextCount := (levelCount + 3) / 4
		nextStart := len(cells)
		for g := 0; g < nextCount; g++ {
			first := levelStart + g*4
			last := first + 4
			if last > levelStart+levelCount {
				last = levelStart + levelCount
			}
			merged := mergeGroup(cells[first:last])
			children := [4]uint32{EmptyChild, EmptyChild, EmptyChild, EmptyChild}
			for k := first; k < last; k++ {
				children[k-first] = uint32(k)
			}
			merged.Children = children
			cells = append(cells, merged)
		}
		levels = append(levels, LevelOffset{Offset: nextStart, Count: nextCount})
		levelStart = nextStart
		levelCount = nextCount
	}

	root := uint32(EmptyChild)
	if len(cells) > 0 {
		root = uint32(len(cells) - 1)
	}

	return &Tree{Bounds: bounds, Cells: cells, Levels: levels, Root: root, LeafOriginalIndex: leafOriginal}
}

// mergeGroup combines up to 4 sibling cells into their parent, per spec
// §4.4 step 5: mass sums, com is mass-weighted, side doubles (prefix-bit
// halving approximated by doubling the child side per merge level, which is
// equivalent since each level halves the normalised-code prefix length by
// 2 bits == one quadrant subdivision per axis).
func mergeGroup(group []Cell) Cell {
	var totalMass float32
	var comX, comY float32
	maxSide := float32(0)
	for _, c := range group {
		totalMass += c.Mass
		comX += c.Mass * c.ComX
		comY += c.Mass * c.ComY
		if c.Side > maxSide {
			maxSide = c.Side
		}
	}
	if totalMass > 0 {
		comX /= totalMass
		comY /= totalMass
	} else if len(group) > 0 {
		// Degenerate zero-mass group: coalesce to the first child's position
		// rather than producing a NaN com (spec §7 recovery: "a quadtree
		// cell collapsing to zero size is coalesced with its parent's com").
		comX, comY = group[0].ComX, group[0].ComY
	}
	return Cell{
		ComX: comX,
		ComY: comY,
		Mass: totalMass,
		Side: maxSide * 2,
	}
}
