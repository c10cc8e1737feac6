// Package shaders embeds every WGSL source HeroineGraph's compute and
// render pipelines load, one named string constant per file, exactly the
// teacher's shaders.go pattern (voxelrt/rt/shaders/shaders.go).
package shaders

import (
	_ "embed"
)

//go:embed quadtree.wgsl
var QuadtreeWGSL string

//go:embed simulation.wgsl
var SimulationWGSL string

//go:embed nodes.wgsl
var NodesWGSL string

//go:embed edges.wgsl
var EdgesWGSL string

//go:embed heatmap.wgsl
var HeatmapWGSL string

//go:embed contour.wgsl
var ContourWGSL string

//go:embed labels.wgsl
var LabelsWGSL string

//go:embed picking.wgsl
var PickingWGSL string
