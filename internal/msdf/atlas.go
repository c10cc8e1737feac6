// Package msdf loads a multi-channel signed distance field glyph atlas:
// a static RGB texture plus metadata describing each glyph's uv-rect,
// advance, plane bounds, and kernings (spec §3, §4.10).
package msdf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ReplacementRune is substituted for any code point missing from the atlas
// (spec 4.10: "Missing glyphs fall back to a replacement character").
const ReplacementRune = '�'

// Glyph describes one atlas entry in atlas-space units (divided by EmSize
// to get the font-size-independent plane bounds the msdf-atlas-gen tool
// family emits).
type Glyph struct {
	UVMin, UVMax       [2]float32
	PlaneMin, PlaneMax [2]float32
	Advance            float32
}

// Kerning is an additional horizontal adjustment applied between an
// ordered pair of code points.
type Kerning struct {
	First, Second rune
	Advance       float32
}

// Atlas is the immutable, once-loaded glyph atlas (spec 4.10, 6.4: "loaded
// once at labels-enable time; immutable thereafter").
type Atlas struct {
	Image    image.Image
	EmSize   float32
	Spread   float32 // distance-field spread, in atlas-space pixels
	LineHeight float32
	Glyphs   map[rune]Glyph
	Kernings map[[2]rune]float32

	// fallbackFace supplies advance/plane-bounds metrics for code points
	// absent from the atlas metadata, rasterized CPU-side on demand the
	// way the teacher's TextRenderer builds its whole atlas (text_renderer.go).
	// No uv rect is produced; callers rendering a fallback glyph draw the
	// replacement rune's MSDF quad instead and rely on these metrics only
	// for layout/advance purposes.
	fallbackFace font.Face
}

// metadataJSON mirrors the msdf-atlas-gen "json" layout output format:
// top-level atlas/metrics blocks plus a flat glyphs array and a kerning
// pair list (grounded on the teacher's TexturePacker-probe style loader in
// atlas.go, generalized from sprite frames to MSDF glyph metrics).
type metadataJSON struct {
	Atlas struct {
		Size   float32 `json:"size"`
		Width  int     `json:"width"`
		Height int     `json:"height"`
	} `json:"atlas"`
	Metrics struct {
		EmSize     float32 `json:"emSize"`
		LineHeight float32 `json:"lineHeight"`
	} `json:"metrics"`
	Glyphs []struct {
		Unicode    rune    `json:"unicode"`
		Advance    float32 `json:"advance"`
		PlaneBounds *struct {
			Left, Bottom, Right, Top float32
		} `json:"planeBounds"`
		AtlasBounds *struct {
			Left, Bottom, Right, Top float32
		} `json:"atlasBounds"`
	} `json:"glyphs"`
	Kerning []struct {
		Unicode1 rune    `json:"unicode1"`
		Unicode2 rune    `json:"unicode2"`
		Advance  float32 `json:"advance"`
	} `json:"kerning"`
}

// Load decodes the atlas PNG and its metadata JSON, both supplied as
// in-memory byte buffers by the host (spec 6.4: "resolved by the host at
// enable time and passed in as byte buffers").
func Load(pngBytes, metadataBytes []byte) (*Atlas, error) {
	img, _, err := image.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("msdf: decode atlas image: %w", err)
	}

	var meta metadataJSON
	if err := json.Unmarshal(metadataBytes, &meta); err != nil {
		return nil, fmt.Errorf("msdf: decode atlas metadata: %w", err)
	}

	w := float32(meta.Atlas.Width)
	h := float32(meta.Atlas.Height)
	if w == 0 || h == 0 {
		b := img.Bounds()
		w, h = float32(b.Dx()), float32(b.Dy())
	}

	atlas := &Atlas{
		Image:      img,
		EmSize:     meta.Metrics.EmSize,
		LineHeight: meta.Metrics.LineHeight,
		Spread:     meta.Atlas.Size,
		Glyphs:     make(map[rune]Glyph, len(meta.Glyphs)),
		Kernings:   make(map[[2]rune]float32, len(meta.Kerning)),
	}

	for _, g := range meta.Glyphs {
		entry := Glyph{Advance: g.Advance}
		if g.AtlasBounds != nil {
			entry.UVMin = [2]float32{g.AtlasBounds.Left / w, 1 - g.AtlasBounds.Top/h}
			entry.UVMax = [2]float32{g.AtlasBounds.Right / w, 1 - g.AtlasBounds.Bottom/h}
		}
		if g.PlaneBounds != nil {
			entry.PlaneMin = [2]float32{g.PlaneBounds.Left, g.PlaneBounds.Bottom}
			entry.PlaneMax = [2]float32{g.PlaneBounds.Right, g.PlaneBounds.Top}
		}
		atlas.Glyphs[g.Unicode] = entry
	}
	for _, k := range meta.Kerning {
		atlas.Kernings[[2]rune{k.Unicode1, k.Unicode2}] = k.Advance
	}

	return atlas, nil
}

// LoadWithFallbackFont additionally parses an OpenType/TrueType font used
// only to source advance/plane-bounds metrics for code points the atlas
// metadata doesn't cover (spec §4.10 "missing glyphs fall back to a
// replacement character" — this supplies *metrics* for that fallback path
// even when the replacement glyph itself isn't present in the atlas JSON).
func LoadWithFallbackFont(pngBytes, metadataBytes, fallbackFontBytes []byte, fontSize float64) (*Atlas, error) {
	atlas, err := Load(pngBytes, metadataBytes)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(fallbackFontBytes)
	if err != nil {
		return nil, fmt.Errorf("msdf: parse fallback font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: fontSize, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("msdf: create fallback face: %w", err)
	}
	atlas.fallbackFace = face
	return atlas, nil
}

// Glyph looks up a code point, falling back to ReplacementRune, then to the
// fallback font face's metrics (if one was loaded), then to a zero-value
// Glyph (zero advance) if nothing resolves it.
func (a *Atlas) Glyph(r rune) Glyph {
	if g, ok := a.Glyphs[r]; ok {
		return g
	}
	if g, ok := a.Glyphs[ReplacementRune]; ok {
		return g
	}
	if a.fallbackFace != nil {
		if g, ok := a.glyphFromFallbackFace(r); ok {
			return g
		}
	}
	return Glyph{}
}

// glyphFromFallbackFace mirrors the teacher's NewTextRenderer glyph-bounds
// extraction (bounds, _, _, adv, ok := face.Glyph(...)), converting fixed
// 26.6 units to the em-normalized units the atlas path uses.
func (a *Atlas) glyphFromFallbackFace(r rune) (Glyph, bool) {
	bounds, _, _, adv, ok := a.fallbackFace.Glyph(fixed.Point26_6{}, r)
	if !ok {
		return Glyph{}, false
	}
	em := a.EmSize
	if em == 0 {
		em = 1
	}
	return Glyph{
		PlaneMin: [2]float32{float32(bounds.Min.X) / 64.0 / em, float32(bounds.Min.Y) / 64.0 / em},
		PlaneMax: [2]float32{float32(bounds.Max.X) / 64.0 / em, float32(bounds.Max.Y) / 64.0 / em},
		Advance:  float32(adv) / 64.0 / em,
	}, true
}

// KerningBetween returns the kerning adjustment for an ordered code point
// pair, 0 if none is defined.
func (a *Atlas) KerningBetween(first, second rune) float32 {
	return a.Kernings[[2]rune{first, second}]
}

// Measure lays out text glyph-by-glyph using atlas advances and kerning and
// returns its screen-space bounding box at the given font size (spec 4.10:
// "Label text is laid out glyph by glyph using atlas advances and kerning").
func (a *Atlas) Measure(text string, fontSize float32) (w, h float32) {
	if a.EmSize == 0 {
		return 0, fontSize
	}
	scale := fontSize / a.EmSize
	var advance float32
	var prev rune
	hasPrev := false
	for _, r := range text {
		g := a.Glyph(r)
		if hasPrev {
			advance += a.KerningBetween(prev, r) * scale
		}
		advance += g.Advance * scale
		prev, hasPrev = r, true
	}
	lineHeight := a.LineHeight * scale
	if lineHeight == 0 {
		lineHeight = fontSize
	}
	return advance, lineHeight
}
