package layers

import (
	"math"
	"testing"
)

func bilinear(density []float32, gridW, gridH int, x, y float32) float32 {
	x0 := int(math.Floor(float64(x)))
	y0 := int(math.Floor(float64(y)))
	x1, y1 := x0+1, y0+1
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 >= gridW {
		x1 = gridW - 1
	}
	if y1 >= gridH {
		y1 = gridH - 1
	}
	fx := x - float32(x0)
	fy := y - float32(y0)
	v00 := density[y0*gridW+x0]
	v10 := density[y0*gridW+x1]
	v01 := density[y1*gridW+x0]
	v11 := density[y1*gridW+x1]
	top := v00 + (v10-v00)*fx
	bot := v01 + (v11-v01)*fx
	return top + (bot-top)*fy
}

// TestMarchSegmentsLieNearThreshold verifies spec §8's contour property:
// for every emitted segment at threshold tau, sampling the density field at
// both endpoints returns a value within one cell-step of tau.
func TestMarchSegmentsLieNearThreshold(t *testing.T) {
	const gridW, gridH = 12, 12
	density := make([]float32, gridW*gridH)
	cx, cy := float32(5.5), float32(5.5)
	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			dx := float32(x) - cx
			dy := float32(y) - cy
			density[y*gridW+x] = float32(math.Exp(-float64(dx*dx+dy*dy) * 0.05))
		}
	}

	for _, threshold := range []float32{0.3, 0.5, 0.7} {
		segs := March(density, gridW, gridH, threshold)
		if len(segs) == 0 {
			t.Fatalf("threshold %v: expected segments, got none", threshold)
		}
		const tol = 0.15 // one cell-step worth of bilinear slack
		for _, s := range segs {
			va := bilinear(density, gridW, gridH, s.AX, s.AY)
			vb := bilinear(density, gridW, gridH, s.BX, s.BY)
			if math.Abs(float64(va-threshold)) > tol {
				t.Errorf("threshold %v: endpoint A density %v too far from threshold", threshold, va)
			}
			if math.Abs(float64(vb-threshold)) > tol {
				t.Errorf("threshold %v: endpoint B density %v too far from threshold", threshold, vb)
			}
		}
	}
}

func TestMarchEmptyBelowThreshold(t *testing.T) {
	density := make([]float32, 4*4)
	segs := March(density, 4, 4, 0.5)
	if len(segs) != 0 {
		t.Fatalf("expected no segments over an all-zero field, got %d", len(segs))
	}
}

func TestMarchSaddleCasesEmitTwoSegments(t *testing.T) {
	// Checkerboard 2x2 cell: high corners diagonally opposite (case 5/10).
	density := []float32{
		1.0, 0.0,
		0.0, 1.0,
	}
	segs := March(density, 2, 2, 0.5)
	if len(segs) != 2 {
		t.Fatalf("expected saddle case to emit 2 segments, got %d", len(segs))
	}
}

func TestContourConfigMergePreservesUnsetFields(t *testing.T) {
	cfg := DefaultContourConfig()
	cfg.Merge(ContourConfig{StrokeWidth: 5, Visible: true})
	if cfg.StrokeWidth != 5 {
		t.Fatalf("expected stroke width to update, got %v", cfg.StrokeWidth)
	}
	if len(cfg.Thresholds) != 3 {
		t.Fatalf("expected thresholds to remain default, got %v", cfg.Thresholds)
	}
}
