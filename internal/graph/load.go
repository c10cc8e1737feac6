package graph

import (
	"context"
	"fmt"

	"github.com/heroinegraph/heroinegraph/internal/colorspec"
)

// NodeData is one node record in the loader contract (spec §6.1). Color may
// be a colour string (see internal/colorspec) or an explicit RGBA; exactly
// one or neither should be set by callers.
type NodeData struct {
	ID         string
	X, Y       *float32
	Radius     *float32
	Color      *string
	ColorRGBA  *colorspec.RGBA
	Importance *float32
	Label      *string
	Pinned     bool
}

// EdgeData is one edge record in the loader contract (spec §6.1).
type EdgeData struct {
	Source, Target string
	Weight         *float32
	Width          *float32
	Color          *string
	ColorRGBA      *colorspec.RGBA
}

// GraphData is the full loader payload (spec §6.1).
type GraphData struct {
	Nodes []NodeData
	Edges []EdgeData
}

const (
	defaultRadius = 8.0
	defaultWidth  = 1.0
	defaultWeight = 1.0
)

var (
	defaultNodeColor = colorspec.RGBA{R: 0.2, G: 0.6, B: 1.0, A: 1.0}
	defaultEdgeColor = colorspec.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 0.5}
)

func resolveColor(str *string, rgba *colorspec.RGBA, fallback colorspec.RGBA) (colorspec.RGBA, error) {
	if rgba != nil {
		return *rgba, nil
	}
	if str != nil {
		c, err := colorspec.Parse(*str)
		if err != nil {
			return colorspec.RGBA{}, err
		}
		return c, nil
	}
	return fallback, nil
}

// LoadResult reports the counts a successful Load produced (spec §8:
// "nodeCount = |G.nodes|; edgeCount = |G.edges| minus dropped self-loops").
type LoadResult struct {
	NodeCount int
	EdgeCount int
}

// Load replaces the store's contents with data, validating topology before
// committing. It never returns a store in a partially-loaded state: on
// InvalidTopology the prior content is left untouched (spec §4.3, §7).
//
// upload, when non-nil, is called once with the fully built replacement
// store before it is committed; an upload error aborts the load and leaves
// s unchanged. Load itself stays synchronous CPU-side work; ctx is checked
// before each node record is built so a superseded load can abort.
func (s *Store) Load(ctx context.Context, data GraphData, upload func(*Store) error) (LoadResult, error) {
	// Validate before mutating anything, so a rejected load leaves s intact.
	knownIDs := make(map[string]struct{}, len(data.Nodes))
	for _, n := range data.Nodes {
		knownIDs[n.ID] = struct{}{}
	}
	for _, e := range data.Edges {
		if _, ok := knownIDs[e.Source]; !ok {
			return LoadResult{}, fmt.Errorf("edge references unknown source id %q", e.Source)
		}
		if _, ok := knownIDs[e.Target]; !ok {
			return LoadResult{}, fmt.Errorf("edge references unknown target id %q", e.Target)
		}
	}

	next := New()
	next.MaxAttrUpdatesPerFrame = s.MaxAttrUpdatesPerFrame
	rng := DeterministicRNG(len(data.Nodes))

	for i, nd := range data.Nodes {
		select {
		case <-ctx.Done():
			return LoadResult{}, ctx.Err()
		default:
		}

		col, err := resolveColor(nd.Color, nd.ColorRGBA, defaultNodeColor)
		if err != nil {
			return LoadResult{}, err
		}
		radius := float32(defaultRadius)
		if nd.Radius != nil {
			radius = *nd.Radius
		}
		importance := float32(0)
		if nd.Importance != nil {
			importance = *nd.Importance
		}
		label := ""
		if nd.Label != nil {
			label = *nd.Label
		}

		var x, y float32
		if nd.X != nil && nd.Y != nil {
			x, y = *nd.X, *nd.Y
		} else {
			x, y = SeedInitialPosition(rng, i, len(data.Nodes))
		}

		next.intern(nd.ID, Node{
			X: x, Y: y,
			Radius:     radius,
			Color:      col,
			Importance: importance,
			Label:      label,
			Pinned:     nd.Pinned,
		})
	}

	dropped := 0
	for _, ed := range data.Edges {
		col, err := resolveColor(ed.Color, ed.ColorRGBA, defaultEdgeColor)
		if err != nil {
			return LoadResult{}, err
		}
		weight := float32(defaultWeight)
		if ed.Weight != nil {
			weight = *ed.Weight
		}
		width := float32(defaultWidth)
		if ed.Width != nil {
			width = *ed.Width
		}
		if !next.AddEdge(ed.Source, ed.Target, Edge{Weight: weight, Width: width, Color: col}) {
			si, sok := next.IndexOf(ed.Source)
			ti, tok := next.IndexOf(ed.Target)
			if sok && tok && si == ti {
				dropped++
				continue
			}
			return LoadResult{}, fmt.Errorf("edge references unknown id")
		}
	}

	computeDegrees(next)

	if upload != nil {
		if err := upload(next); err != nil {
			return LoadResult{}, err
		}
	}

	*s = *next
	return LoadResult{NodeCount: len(s.Nodes), EdgeCount: len(s.Edges)}, nil
}

func computeDegrees(s *Store) {
	for _, e := range s.Edges {
		s.Nodes[e.Source].Degree++
		s.Nodes[e.Target].Degree++
	}
}
