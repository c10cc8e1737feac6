package graph

import (
	"context"
	"testing"
)

func f32(v float32) *float32 { return &v }
func strp(v string) *string  { return &v }

func TestLoadBasic(t *testing.T) {
	s := New()
	data := GraphData{
		Nodes: []NodeData{
			{ID: "a", X: f32(0), Y: f32(0)},
			{ID: "b", X: f32(1), Y: f32(1)},
			{ID: "c", X: f32(2), Y: f32(2)},
		},
		Edges: []EdgeData{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
		},
	}
	res, err := s.Load(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NodeCount != 3 || res.EdgeCount != 2 {
		t.Fatalf("unexpected counts: %+v", res)
	}
	if s.NodeCount() != 3 {
		t.Fatalf("store node count mismatch: %d", s.NodeCount())
	}
	idx, ok := s.IndexOf("b")
	if !ok {
		t.Fatalf("expected id b to resolve")
	}
	if s.Nodes[idx].Degree != 2 {
		t.Fatalf("expected degree 2 for b, got %d", s.Nodes[idx].Degree)
	}
}

func TestLoadRejectsUnknownEdgeEndpoint(t *testing.T) {
	s := New()
	s.AddNode("existing", Node{})
	data := GraphData{
		Nodes: []NodeData{{ID: "a"}},
		Edges: []EdgeData{{Source: "a", Target: "ghost"}},
	}
	if _, err := s.Load(context.Background(), data, nil); err == nil {
		t.Fatalf("expected error for unknown edge target")
	}
	if s.NodeCount() != 1 {
		t.Fatalf("prior state should be preserved after a rejected load, got nodeCount=%d", s.NodeCount())
	}
}

func TestLoadDropsSelfLoops(t *testing.T) {
	s := New()
	data := GraphData{
		Nodes: []NodeData{{ID: "a"}, {ID: "b"}},
		Edges: []EdgeData{
			{Source: "a", Target: "a"},
			{Source: "a", Target: "b"},
		},
	}
	res, err := s.Load(context.Background(), data, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.EdgeCount != 1 {
		t.Fatalf("expected self-loop dropped, got edgeCount=%d", res.EdgeCount)
	}
}

func TestRemoveByIDTombstonesAndCompacts(t *testing.T) {
	s := New()
	for i := 0; i < 8; i++ {
		s.AddNode(string(rune('a'+i)), Node{})
	}
	for i := 0; i < 3; i++ {
		s.RemoveByID(string(rune('a' + i)))
	}
	if s.NodeCount() != 5 {
		t.Fatalf("expected 5 live nodes, got %d", s.NodeCount())
	}
	if _, ok := s.IndexOf("a"); ok {
		t.Fatalf("expected removed id to no longer resolve")
	}
	if _, ok := s.IndexOf("d"); !ok {
		t.Fatalf("expected surviving id to still resolve")
	}
}

func TestRemoveByIDDropsIncidentEdges(t *testing.T) {
	s := New()
	s.AddNode("a", Node{})
	s.AddNode("b", Node{})
	s.AddNode("c", Node{})
	s.AddEdge("a", "b", Edge{})
	s.AddEdge("b", "c", Edge{})
	s.RemoveByID("b")
	if len(s.Edges) != 0 {
		t.Fatalf("expected both edges incident to b to be dropped, got %d", len(s.Edges))
	}
}

func TestColorParseErrorRejectsLoad(t *testing.T) {
	s := New()
	data := GraphData{
		Nodes: []NodeData{{ID: "a", Color: strp("not-a-color")}},
	}
	if _, err := s.Load(context.Background(), data, nil); err == nil {
		t.Fatalf("expected invalid colour to reject load")
	}
}

func TestFlushDirtyRespectsBudget(t *testing.T) {
	s := New()
	s.MaxAttrUpdatesPerFrame = 2
	for i := 0; i < 5; i++ {
		s.MarkDirty(uint32(i), AttrColor)
	}
	var flushed int
	s.FlushDirty(func(idx uint32, kind AttrKind) { flushed++ })
	if flushed != 2 {
		t.Fatalf("expected 2 flushed updates under budget, got %d", flushed)
	}
	if s.PendingDirtyCount() != 3 {
		t.Fatalf("expected 3 remaining, got %d", s.PendingDirtyCount())
	}
}

func TestDeterministicRNGReproducible(t *testing.T) {
	r1 := DeterministicRNG(100)
	r2 := DeterministicRNG(100)
	x1, y1 := SeedInitialPosition(r1, 0, 100)
	x2, y2 := SeedInitialPosition(r2, 0, 100)
	if x1 != x2 || y1 != y2 {
		t.Fatalf("expected identical seeds to produce identical placement")
	}
}
