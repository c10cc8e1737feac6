// Package simulation runs the per-tick force-directed layout: Barnes-Hut
// repulsion over the quadtree, spring+t-force attraction over edges,
// adaptive-speed integration, and the ping-pong buffer swap (spec §4.5).
// The repulsion traversal is grounded on the teacher's explicit-stack BVH
// walk pattern (bvh/builder.go's recursive structure, generalized to an
// iterative stack since the opening-criterion traversal here is run once
// per node rather than once per ray).
package simulation

import (
	"math"

	"github.com/heroinegraph/heroinegraph/internal/quadtree"
)

// Params holds every tunable constant from spec §4.5, with its defaults.
type Params struct {
	Theta float32 // Barnes-Hut opening angle, default 2
	Gamma float32 // repulsion falloff exponent, default 2, must be > 1

	AttractionAlpha float32 // linear attraction weight, default 0.1
	AttractionBeta  float32 // short-range t-force attraction weight, default 8

	Tau      float32 // adaptive speed tolerance, default 1.0
	KS       float32 // local speed constant, default 0.1
	KSMax    float32 // local speed cap numerator, default 10
	Damping  float32 // velocity damping factor, default 0.9
	MaxDepth int     // explicit traversal stack depth bound, default 64
}

// DefaultParams returns spec.md's §4.5 default tuning.
func DefaultParams() Params {
	return Params{
		Theta:           2,
		Gamma:           2,
		AttractionAlpha: 0.1,
		AttractionBeta:  8,
		Tau:             1.0,
		KS:              0.1,
		KSMax:           10,
		Damping:         0.9,
		MaxDepth:        64,
	}
}

const epsilon = 1e-6

// stackFrame is one entry in the explicit depth-first traversal stack used
// by Repel, bounded to Params.MaxDepth.
type stackFrame struct {
	cell uint32
}

// Repel accumulates the t-distribution repulsion force on node i from every
// other mass in tree, via Barnes-Hut top-down traversal (spec §4.5 step 1).
// positions is the flat (x,y) array; selfIndex is node i's original index
// (not its position in the sorted leaf array).
func Repel(tree *quadtree.Tree, positions []float32, selfIndex uint32, p Params) (fx, fy float32) {
	if tree.Root == quadtree.EmptyChild {
		return 0, 0
	}
	px, py := positions[selfIndex*2], positions[selfIndex*2+1]

	stack := make([]stackFrame, 0, p.MaxDepth)
	stack = append(stack, stackFrame{cell: tree.Root})

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cell := tree.Cells[top.cell]
		if cell.Mass <= 0 {
			continue
		}

		dx := px - cell.ComX
		dy := py - cell.ComY
		dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))

		isLeaf := cell.Children[0] == quadtree.EmptyChild && cell.Children[1] == quadtree.EmptyChild &&
			cell.Children[2] == quadtree.EmptyChild && cell.Children[3] == quadtree.EmptyChild
		if isLeaf {
			leafNodeIdx := leafNodeIndexOf(tree, top.cell)
			if leafNodeIdx == selfIndex {
				continue
			}
		}

		opens := !isLeaf && cell.Side/maxf(dist, epsilon) >= p.Theta
		if opens {
			for _, c := range cell.Children {
				if c != quadtree.EmptyChild {
					if len(stack) >= p.MaxDepth {
						continue
					}
					stack = append(stack, stackFrame{cell: c})
				}
			}
			continue
		}

		if dist < epsilon {
			dist = epsilon
		}
		g := 1 / float32(math.Pow(float64(1+dist*dist), float64(p.Gamma)))
		mag := cell.Mass * g
		fx += mag * dx / dist
		fy += mag * dy / dist
	}
	return fx, fy
}

// leafNodeIndexOf maps a level-0 cell slot back to its original node index.
func leafNodeIndexOf(tree *quadtree.Tree, cellIdx uint32) uint32 {
	if int(cellIdx) < len(tree.LeafOriginalIndex) {
		return tree.LeafOriginalIndex[cellIdx]
	}
	return quadtree.EmptyChild
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Attract computes the combined spring+t-force attraction an edge applies
// to its endpoints (spec §4.5 step 2). Returns the force applied to the
// source; the target receives the negated force (Newton's third law, the
// §8 "force symmetry" property).
func Attract(srcX, srcY, dstX, dstY, weight float32, p Params) (fx, fy float32) {
	dx := dstX - srcX
	dy := dstY - srcY
	dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if dist < epsilon {
		return 0, 0
	}
	linear := p.AttractionAlpha * dist
	short := p.AttractionBeta * dist / (1 + dist*dist)
	mag := weight * (linear + short)
	return mag * dx / dist, mag * dy / dist
}
