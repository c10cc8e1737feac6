package msdf

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode tiny png: %v", err)
	}
	return buf.Bytes()
}

func sampleMetadata(t *testing.T) []byte {
	t.Helper()
	meta := map[string]any{
		"atlas":   map[string]any{"size": 4.0, "width": 4, "height": 4},
		"metrics": map[string]any{"emSize": 1.0, "lineHeight": 1.2},
		"glyphs": []map[string]any{
			{
				"unicode": int('A'),
				"advance": 0.6,
				"planeBounds": map[string]any{"left": 0.0, "bottom": 0.0, "right": 0.5, "top": 0.7},
				"atlasBounds": map[string]any{"left": 0.0, "bottom": 0.0, "right": 2.0, "top": 2.0},
			},
			{
				"unicode": int(ReplacementRune),
				"advance": 0.6,
			},
		},
		"kerning": []map[string]any{
			{"unicode1": int('A'), "unicode2": int('A'), "advance": -0.05},
		},
	}
	out, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	return out
}

func TestLoadParsesGlyphsAndKernings(t *testing.T) {
	atlas, err := Load(tinyPNG(t), sampleMetadata(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if atlas.EmSize != 1.0 {
		t.Fatalf("expected emSize 1.0, got %v", atlas.EmSize)
	}
	g, ok := atlas.Glyphs['A']
	if !ok {
		t.Fatalf("expected glyph 'A' present")
	}
	if g.Advance != 0.6 {
		t.Fatalf("expected advance 0.6, got %v", g.Advance)
	}
	if k := atlas.KerningBetween('A', 'A'); k != -0.05 {
		t.Fatalf("expected kerning -0.05, got %v", k)
	}
}

func TestGlyphFallsBackToReplacement(t *testing.T) {
	atlas, err := Load(tinyPNG(t), sampleMetadata(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	g := atlas.Glyph('Z') // not in atlas
	if g.Advance != 0.6 {
		t.Fatalf("expected fallback replacement glyph advance 0.6, got %v", g.Advance)
	}
}

func TestMeasureAppliesKerningAndScale(t *testing.T) {
	atlas, err := Load(tinyPNG(t), sampleMetadata(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w, h := atlas.Measure("AA", 10)
	// advance(A)*scale + (advance(A)+kerning)*scale, scale = 10/1 = 10
	want := float32(0.6*10 + (0.6-0.05)*10)
	if diff := w - want; diff > 1e-3 || diff < -1e-3 {
		t.Fatalf("expected width %v, got %v", want, w)
	}
	if h != 12 {
		t.Fatalf("expected line height 12 (1.2*10), got %v", h)
	}
}
