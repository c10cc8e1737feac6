// Command heroinedemo is a thin native desktop host that exercises the
// public heroinegraph.Renderer surface end to end: it opens a window,
// loads a small random graph, and drives the render loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/heroinegraph/heroinegraph"
	"github.com/heroinegraph/heroinegraph/internal/graph"
	"github.com/heroinegraph/heroinegraph/internal/herolog"
)

func init() {
	runtime.LockOSThread()
}

func randomGraph(nodeCount, edgeCount int) graph.GraphData {
	nodes := make([]graph.NodeData, nodeCount)
	ids := make([]string, nodeCount)
	for i := range nodes {
		id := fmt.Sprintf("n%d", i)
		ids[i] = id
		x := rand.Float32()*1000 - 500
		y := rand.Float32()*1000 - 500
		nodes[i] = graph.NodeData{ID: id, X: &x, Y: &y}
	}
	edges := make([]graph.EdgeData, 0, edgeCount)
	for i := 0; i < edgeCount; i++ {
		src := ids[rand.Intn(nodeCount)]
		dst := ids[rand.Intn(nodeCount)]
		if src == dst {
			continue
		}
		edges = append(edges, graph.EdgeData{Source: src, Target: dst})
	}
	return graph.GraphData{Nodes: nodes, Edges: edges}
}

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging")
	nodeCount := flag.Int("nodes", 200, "Random demo graph node count")
	edgeCount := flag.Int("edges", 400, "Random demo graph edge count")
	flag.Parse()

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(1280, 720, "HeroineGraph", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	log := herolog.New("heroinedemo", *debug)
	ctx := context.Background()

	renderer, err := heroinegraph.Init(ctx, heroinegraph.InitOptions{
		Target: &glfwTarget{window: window},
		Debug:  *debug,
		Logger: log,
	})
	if err != nil {
		panic(fmt.Errorf("heroinedemo: init failed: %w", err))
	}

	if err := renderer.Load(ctx, randomGraph(*nodeCount, *edgeCount)); err != nil {
		panic(fmt.Errorf("heroinedemo: load failed: %w", err))
	}
	renderer.FitToView()
	renderer.StartSimulation()
	simRunning := true

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		renderer.Resize(width, height)
	})

	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		renderer.RequestPick(uint32(xpos), uint32(ypos))
	})

	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		if yoff > 0 {
			renderer.Zoom(1.1)
		} else if yoff < 0 {
			renderer.Zoom(1 / 1.1)
		}
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeySpace:
			if simRunning {
				renderer.PauseSimulation()
			} else {
				renderer.StartSimulation()
			}
			simRunning = !simRunning
		}
	})

	for !window.ShouldClose() {
		glfw.PollEvents()
		if err := renderer.RenderFrame(); err != nil {
			log.Errorf("render frame failed: %v", err)
		}
	}
}
