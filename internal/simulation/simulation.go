package simulation

import (
	"math"
	"math/rand"

	"github.com/heroinegraph/heroinegraph/internal/quadtree"
)

// Edge is the minimal per-edge data the attraction pass needs: endpoint
// indices and weight (spec §4.5 step 2).
type Edge struct {
	Source, Target uint32
	Weight         float32
}

// Simulator holds the per-tick mutable state that must carry over between
// ticks: the previous frame's force (for swinging/traction) and the
// previous global speed (for the 1.5x damping cap), per spec §4.5 step 3.
type Simulator struct {
	Params Params

	prevForceX []float32
	prevForceY []float32
	prevGlobalSpeed float32
	hasPrev         bool

	rng *rand.Rand
}

// New creates a Simulator with the given tuning parameters.
func New(p Params) *Simulator {
	return &Simulator{Params: p, rng: rand.New(rand.NewSource(1))}
}

// TickInput bundles one tick's read-only state.
type TickInput struct {
	Tree      *quadtree.Tree
	Positions []float32 // flat x,y, length 2n, "front" ping-pong buffer
	Velocities []float32 // flat vx,vy, length 2n
	Pinned    []bool     // length n
	Edges     []Edge
}

// TickOutput is the "back" ping-pong buffer the tick writes into.
type TickOutput struct {
	Positions  []float32
	Velocities []float32
}

// GlobalSpeed is the most recently computed adaptive global speed s_g,
// exposed for the §8 "adaptive speed bound" property test.
func (s *Simulator) GlobalSpeed() float32 { return s.prevGlobalSpeed }

// Tick runs repulsion, attraction, and adaptive-speed integration for one
// simulation step, per spec §4.5. Output buffers must be pre-sized to match
// Positions/Velocities; the caller swaps ping-pong roles after Tick returns
// (spec §4.5 step 4 is the caller's responsibility, matching internal/gpu's
// PingPong.Swap).
func (s *Simulator) Tick(in TickInput, out TickOutput, degrees []uint32) {
	n := len(in.Positions) / 2
	if cap(s.prevForceX) < n {
		s.prevForceX = make([]float32, n)
		s.prevForceY = make([]float32, n)
	}
	s.prevForceX = s.prevForceX[:n]
	s.prevForceY = s.prevForceY[:n]

	forceX := make([]float32, n)
	forceY := make([]float32, n)

	for i := 0; i < n; i++ {
		if (in.Pinned != nil && in.Pinned[i]) || isNaNOrInf(in.Positions[i*2]) || isNaNOrInf(in.Positions[i*2+1]) {
			continue
		}
		fx, fy := Repel(in.Tree, in.Positions, uint32(i), s.Params)
		forceX[i] += fx
		forceY[i] += fy
	}

	for _, e := range in.Edges {
		if in.Pinned != nil && (in.Pinned[e.Source] || in.Pinned[e.Target]) {
			continue
		}
		sx, sy := in.Positions[e.Source*2], in.Positions[e.Source*2+1]
		tx, ty := in.Positions[e.Target*2], in.Positions[e.Target*2+1]
		if isNaNOrInf(sx) || isNaNOrInf(sy) || isNaNOrInf(tx) || isNaNOrInf(ty) {
			continue
		}
		fx, fy := Attract(sx, sy, tx, ty, e.Weight, s.Params)
		forceX[e.Source] += fx
		forceY[e.Source] += fy
		forceX[e.Target] -= fx
		forceY[e.Target] -= fy
	}

	var sSum, tSum float32
	swg := make([]float32, n)
	tra := make([]float32, n)
	for i := 0; i < n; i++ {
		dfx := forceX[i] - s.prevForceX[i]
		dfy := forceY[i] - s.prevForceY[i]
		swg[i] = float32(math.Sqrt(float64(dfx*dfx + dfy*dfy)))

		sfx := forceX[i] + s.prevForceX[i]
		sfy := forceY[i] + s.prevForceY[i]
		tra[i] = float32(math.Sqrt(float64(sfx*sfx+sfy*sfy))) / 2

		deg := float32(1)
		if degrees != nil && i < len(degrees) {
			deg = float32(degrees[i])
			if deg == 0 {
				deg = 1
			}
		}
		sSum += deg * swg[i]
		tSum += deg * tra[i]
	}

	sg := s.Params.Tau * tSum / maxf(sSum, epsilon)
	if s.hasPrev {
		speedCap := 1.5 * s.prevGlobalSpeed
		if sg > speedCap {
			sg = speedCap
		}
	}
	s.prevGlobalSpeed = sg
	s.hasPrev = true

	// The recovery centre comes from the finite positions only.
	finite := make([]float32, 0, len(in.Positions))
	for i := 0; i+1 < len(in.Positions); i += 2 {
		if !isNaNOrInf(in.Positions[i]) && !isNaNOrInf(in.Positions[i+1]) {
			finite = append(finite, in.Positions[i], in.Positions[i+1])
		}
	}
	bounds := quadtree.ReduceBounds(finite, 0)
	cx := (bounds.MinX + bounds.MaxX) / 2
	cy := (bounds.MinY + bounds.MaxY) / 2

	for i := 0; i < n; i++ {
		x, y := in.Positions[i*2], in.Positions[i*2+1]
		vx, vy := in.Velocities[i*2], in.Velocities[i*2+1]

		if isNaNOrInf(x) || isNaNOrInf(y) {
			x = cx + float32(s.rng.Float64()*2-1)
			y = cy + float32(s.rng.Float64()*2-1)
			vx, vy = 0, 0
		}

		if in.Pinned != nil && in.Pinned[i] {
			out.Positions[i*2], out.Positions[i*2+1] = x, y
			out.Velocities[i*2], out.Velocities[i*2+1] = vx, vy
			s.prevForceX[i], s.prevForceY[i] = 0, 0
			continue
		}

		fmag := float32(math.Sqrt(float64(forceX[i]*forceX[i] + forceY[i]*forceY[i])))
		local := sg * s.Params.KS / (1 + sg*float32(math.Sqrt(float64(swg[i]))))
		if fmag > epsilon {
			capSpeed := s.Params.KSMax / fmag
			if local > capSpeed {
				local = capSpeed
			}
		}

		dpx := local * forceX[i]
		dpy := local * forceY[i]

		nvx := s.Params.Damping*vx + dpx
		nvy := s.Params.Damping*vy + dpy

		out.Positions[i*2] = x + nvx
		out.Positions[i*2+1] = y + nvy
		out.Velocities[i*2] = nvx
		out.Velocities[i*2+1] = nvy

		s.prevForceX[i] = forceX[i]
		s.prevForceY[i] = forceY[i]
	}
}

func isNaNOrInf(v float32) bool {
	return math.IsNaN(float64(v)) || math.IsInf(float64(v), 0)
}
