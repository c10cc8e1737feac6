package simulation

import (
	"math"
	"testing"

	"github.com/heroinegraph/heroinegraph/internal/quadtree"
)

func TestAttractForceSymmetry(t *testing.T) {
	p := DefaultParams()
	fx, fy := Attract(0, 0, 10, 4, 1.5, p)
	gx, gy := Attract(10, 4, 0, 0, 1.5, p)
	if math.Abs(float64(fx+gx)) > 1e-4 || math.Abs(float64(fy+gy)) > 1e-4 {
		t.Fatalf("attraction not antisymmetric: F(i<-j)=(%v,%v) F(j<-i)=(%v,%v)", fx, fy, gx, gy)
	}
}

func TestRepelForceSymmetryTwoNodes(t *testing.T) {
	positions := []float32{-10, 0, 10, 0}
	tree := quadtree.Build(positions, nil, quadtree.DefaultBoundsMargin)
	p := DefaultParams()

	fx0, fy0 := Repel(tree, positions, 0, p)
	fx1, fy1 := Repel(tree, positions, 1, p)

	if math.Abs(float64(fx0+fx1)) > 1e-3 || math.Abs(float64(fy0+fy1)) > 1e-3 {
		t.Fatalf("repulsion not antisymmetric between two isolated nodes: F0=(%v,%v) F1=(%v,%v)", fx0, fy0, fx1, fy1)
	}
}

func TestRepelSelfCellContributesNothing(t *testing.T) {
	positions := []float32{0, 0}
	tree := quadtree.Build(positions, nil, quadtree.DefaultBoundsMargin)
	p := DefaultParams()
	fx, fy := Repel(tree, positions, 0, p)
	if fx != 0 || fy != 0 {
		t.Fatalf("single self node should contribute zero force, got (%v,%v)", fx, fy)
	}
}

func TestAdaptiveSpeedBound(t *testing.T) {
	sim := New(DefaultParams())
	n := 50
	positions := make([]float32, n*2)
	velocities := make([]float32, n*2)
	pinned := make([]bool, n)
	degrees := make([]uint32, n)
	for i := 0; i < n; i++ {
		positions[i*2] = float32(i)
		positions[i*2+1] = float32(i % 3)
		degrees[i] = 2
	}
	edges := []Edge{}
	for i := 0; i+1 < n; i++ {
		edges = append(edges, Edge{Source: uint32(i), Target: uint32(i + 1), Weight: 1})
	}

	var prevSg float32
	for tick := 0; tick < 10; tick++ {
		tree := quadtree.Build(positions, nil, quadtree.DefaultBoundsMargin)
		outPos := make([]float32, n*2)
		outVel := make([]float32, n*2)
		sim.Tick(TickInput{
			Tree: tree, Positions: positions, Velocities: velocities, Pinned: pinned, Edges: edges,
		}, TickOutput{Positions: outPos, Velocities: outVel}, degrees)

		sg := sim.GlobalSpeed()
		if tick > 0 && sg > 1.5*prevSg+1e-4 {
			t.Fatalf("tick %d: global speed %v exceeds 1.5x previous %v", tick, sg, prevSg)
		}
		prevSg = sg
		positions, velocities = outPos, outVel
	}
}

func TestTickSkipsPinnedNodes(t *testing.T) {
	sim := New(DefaultParams())
	positions := []float32{0, 0, 100, 0}
	velocities := []float32{0, 0, 0, 0}
	pinned := []bool{true, false}
	edges := []Edge{{Source: 0, Target: 1, Weight: 1}}
	degrees := []uint32{1, 1}

	tree := quadtree.Build(positions, nil, quadtree.DefaultBoundsMargin)
	outPos := make([]float32, 4)
	outVel := make([]float32, 4)
	sim.Tick(TickInput{Tree: tree, Positions: positions, Velocities: velocities, Pinned: pinned, Edges: edges},
		TickOutput{Positions: outPos, Velocities: outVel}, degrees)

	if outPos[0] != 0 || outPos[1] != 0 {
		t.Fatalf("pinned node moved: %v,%v", outPos[0], outPos[1])
	}
}

func TestTickRecoversNaNPosition(t *testing.T) {
	sim := New(DefaultParams())
	positions := []float32{float32(math.NaN()), 0, 5, 5}
	velocities := []float32{0, 0, 0, 0}
	degrees := []uint32{1, 1}
	edges := []Edge{}

	tree := quadtree.Build([]float32{0, 0, 5, 5}, nil, quadtree.DefaultBoundsMargin)
	outPos := make([]float32, 4)
	outVel := make([]float32, 4)
	sim.Tick(TickInput{Tree: tree, Positions: positions, Velocities: velocities, Edges: edges},
		TickOutput{Positions: outPos, Velocities: outVel}, degrees)

	if math.IsNaN(float64(outPos[0])) {
		t.Fatalf("NaN position was not recovered")
	}
}
