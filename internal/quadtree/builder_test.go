package quadtree

import (
	"math"
	"math/rand"
	"testing"
)

func TestHilbertCodeDistinctForDistinctCells(t *testing.T) {
	// Spot-check that distinct cells of a 16x16 grid get distinct codes.
	seen := make(map[uint32]bool)
	for i := 0; i < 16; i++ {
		for j := 0; j < 16; j++ {
			u := float32(i) / 15
			v := float32(j) / 15
			code := HilbertCode(u, v)
			if seen[code] {
				t.Fatalf("duplicate hilbert code for distinct grid cell (%d,%d)", i, j)
			}
			seen[code] = true
		}
	}
}

func TestRadixSortOrdersByCodeStableOnTies(t *testing.T) {
	pairs := []CodeIndexPair{
		{Code: 5, OriginalIndex: 3},
		{Code: 1, OriginalIndex: 1},
		{Code: 5, OriginalIndex: 0},
		{Code: 3, OriginalIndex: 2},
		{Code: 1, OriginalIndex: 4},
	}
	RadixSort(pairs)

	for i := 1; i < len(pairs); i++ {
		if pairs[i].Code < pairs[i-1].Code {
			t.Fatalf("codes not sorted non-decreasing at %d: %+v", i, pairs)
		}
		if pairs[i].Code == pairs[i-1].Code && pairs[i].OriginalIndex < pairs[i-1].OriginalIndex {
			t.Fatalf("tie not broken on original index at %d: %+v", i, pairs)
		}
	}
}

func TestBuildMassConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 200
	positions := make([]float32, n*2)
	for i := 0; i < n; i++ {
		positions[i*2] = float32(rng.Float64()*200 - 100)
		positions[i*2+1] = float32(rng.Float64()*200 - 100)
	}

	tree := Build(positions, nil, DefaultBoundsMargin)
	if tree.Root == EmptyChild {
		t.Fatalf("expected a non-empty tree")
	}

	var leafMassTotal float32
	for _, lvl := range tree.Levels[:1] {
		for i := lvl.Offset; i < lvl.Offset+lvl.Count; i++ {
			leafMassTotal += tree.Cells[i].Mass
		}
	}

	rootMass := tree.Cells[tree.Root].Mass
	if math.Abs(float64(rootMass-leafMassTotal)) > 1e-4*float64(n) {
		t.Fatalf("root mass %v does not match leaf mass total %v", rootMass, leafMassTotal)
	}

	// Every internal cell's mass must equal the sum of its children's mass.
	for lvlIdx := 1; lvlIdx < len(tree.Levels); lvlIdx++ {
		lvl := tree.Levels[lvlIdx]
		for i := lvl.Offset; i < lvl.Offset+lvl.Count; i++ {
			cell := tree.Cells[i]
			var childSum float32
			for _, c := range cell.Children {
				if c == EmptyChild {
					continue
				}
				childSum += tree.Cells[c].Mass
			}
			if math.Abs(float64(cell.Mass-childSum)) > 1e-4 {
				t.Fatalf("cell %d mass %v != child sum %v", i, cell.Mass, childSum)
			}
		}
	}
}

func TestBuildCenterOfMass(t *testing.T) {
	positions := []float32{
		0, 0,
		10, 0,
		0, 10,
		10, 10,
	}
	tree := Build(positions, nil, DefaultBoundsMargin)

	for lvlIdx := 1; lvlIdx < len(tree.Levels); lvlIdx++ {
		lvl := tree.Levels[lvlIdx]
		for i := lvl.Offset; i < lvl.Offset+lvl.Count; i++ {
			cell := tree.Cells[i]
			if cell.Mass == 0 {
				continue
			}
			var mx, my, msum float32
			for _, c := range cell.Children {
				if c == EmptyChild {
					continue
				}
				child := tree.Cells[c]
				mx += child.Mass * child.ComX
				my += child.Mass * child.ComY
				msum += child.Mass
			}
			if msum == 0 {
				continue
			}
			wantX, wantY := mx/msum, my/msum
			dx := float64(cell.ComX - wantX)
			dy := float64(cell.ComY - wantY)
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist > 1e-4*float64(cell.Side+1) {
				t.Fatalf("cell %d com %v,%v diverges from weighted children com %v,%v by %v",
					i, cell.ComX, cell.ComY, wantX, wantY, dist)
			}
		}
	}
}

func TestBuildBytesRoundTrip(t *testing.T) {
	positions := []float32{1, 2, 3, 4, 5, 6}
	tree := Build(positions, nil, DefaultBoundsMargin)
	raw := tree.ToBytes()
	if len(raw) != len(tree.Cells)*32 {
		t.Fatalf("expected %d bytes, got %d", len(tree.Cells)*32, len(raw))
	}
	for i, want := range tree.Cells {
		got := CellFromBytes(raw[i*32 : i*32+32])
		if got != want {
			t.Fatalf("cell %d round trip mismatch: got %+v want %+v", i, got, want)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	tree := Build(nil, nil, DefaultBoundsMargin)
	if tree.Root != EmptyChild {
		t.Fatalf("expected empty tree root sentinel")
	}
}
