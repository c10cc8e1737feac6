package layers

import "testing"

func monospaceMeasure(text string, fontSize float32) (float32, float32) {
	return float32(len(text)) * fontSize * 0.6, fontSize
}

func boxesDisjoint(a, b PlacedLabel) bool {
	return !overlaps(a, b)
}

// TestPlacedLabelsAreDisjointAndBounded is spec §8's labels property: the
// placed set's pairwise padded bboxes are disjoint and count <= maxLabels.
func TestPlacedLabelsAreDisjointAndBounded(t *testing.T) {
	cfg := DefaultLabelsConfig()
	cfg.MaxLabels = 3

	candidates := make([]LabelCandidate, 0, 10)
	for i := 0; i < 10; i++ {
		candidates = append(candidates, LabelCandidate{
			NodeIndex:  uint32(i),
			Text:       "node-label",
			ScreenX:    100, // all co-located -> forces collisions
			ScreenY:    100,
			Importance: float32(10 - i),
		})
	}

	placed := PlaceLabels(candidates, cfg, 1.0, monospaceMeasure)
	if len(placed) > cfg.MaxLabels {
		t.Fatalf("placed %d labels, expected <= %d", len(placed), cfg.MaxLabels)
	}
	for i := range placed {
		for j := i + 1; j < len(placed); j++ {
			if !boxesDisjoint(placed[i], placed[j]) {
				t.Fatalf("placed labels %d and %d overlap: %+v / %+v", i, j, placed[i], placed[j])
			}
		}
	}
}

// TestLabelsCollisionScenario mirrors spec §8 end-to-end scenario 6: ten
// co-located nodes, only one label survives at zoom 1.0 but all ten are
// placeable once zoom grows enough to space their centres apart.
func TestLabelsCollisionScenario(t *testing.T) {
	cfg := DefaultLabelsConfig()
	cfg.MaxLabels = 1000
	cfg.FontSize = 14

	candidates := make([]LabelCandidate, 0, 10)
	for i := 0; i < 10; i++ {
		candidates = append(candidates, LabelCandidate{
			NodeIndex:  uint32(i),
			Text:       "0123456789", // 10-character label
			ScreenX:    50,
			ScreenY:    50,
			Importance: 1,
		})
	}

	placedLowZoom := PlaceLabels(candidates, cfg, 1.0, monospaceMeasure)
	if len(placedLowZoom) != 1 {
		t.Fatalf("at zoom 1.0 expected exactly 1 label placed, got %d", len(placedLowZoom))
	}

	spread := make([]LabelCandidate, 0, 10)
	for i, c := range candidates {
		c.ScreenX = float32(i) * 200
		spread = append(spread, c)
	}
	placedHighZoom := PlaceLabels(spread, cfg, 10.0, monospaceMeasure)
	if len(placedHighZoom) != 10 {
		t.Fatalf("at zoom 10 with spread centres expected all 10 placed, got %d", len(placedHighZoom))
	}
}

func TestLabelsMinZoomCulling(t *testing.T) {
	cfg := DefaultLabelsConfig()
	candidates := []LabelCandidate{
		{NodeIndex: 0, Text: "a", ScreenX: 0, ScreenY: 0, Importance: 1, MinZoom: 2.0},
		{NodeIndex: 1, Text: "b", ScreenX: 500, ScreenY: 500, Importance: 1},
	}
	placed := PlaceLabels(candidates, cfg, 1.0, monospaceMeasure)
	if len(placed) != 1 || placed[0].NodeIndex != 1 {
		t.Fatalf("expected only node 1 visible below its minZoom override, got %+v", placed)
	}
}

func TestLabelsConfigMergePreservesUnsetFields(t *testing.T) {
	cfg := DefaultLabelsConfig()
	cfg.Merge(LabelsConfig{MaxLabels: 50, Visible: true})
	if cfg.MaxLabels != 50 {
		t.Fatalf("expected maxLabels to update, got %v", cfg.MaxLabels)
	}
	if cfg.FontSize != 14 {
		t.Fatalf("expected fontSize to remain default, got %v", cfg.FontSize)
	}
}
