// Package graph owns the CPU-side node/edge arrays, the string-id to
// dense-index mapping, and the attribute dirty-flag bookkeeping that feeds
// GPU uploads (spec §3, §4.3). Dirty-flag budgeting is ported from the
// teacher's GpuBufferManager.UpdateVoxelData, which upload-budgets dirty
// sectors/bricks per frame (manager.go); graph applies the same discipline
// to per-node colour/radius attribute re-uploads.
package graph

import (
	"math"
	"math/rand"

	"github.com/heroinegraph/heroinegraph/internal/colorspec"
)

// TombstoneCompactThreshold is the fraction of tombstoned slots above which
// RemoveByID compacts the store immediately, per spec §4.3 ("compacting ...
// when tombstones exceed 25%"). Load always builds a fresh, compact store.
const TombstoneCompactThreshold = 0.25

// DefaultMaxAttrUpdatesPerFrame bounds how many dirty node attribute
// records are flushed to the GPU colour/radius buffers in one Renderer
// frame (SPEC_FULL.md §4 item 1).
const DefaultMaxAttrUpdatesPerFrame = 4096

// Node is the dense, index-addressed node record. Position/velocity are
// mutated only by the simulation; the rest by explicit attribute setters.
type Node struct {
	X, Y   float32
	VX, VY float32
	Radius float32
	Color  colorspec.RGBA
	Importance float32
	Label      string
	Pinned     bool
	Degree     uint32

	tombstoned bool
}

// Edge is a dense index-pair edge record.
type Edge struct {
	Source, Target uint32
	Weight         float32
	Width          float32
	Color          colorspec.RGBA
}

// AttrKind tags which part of a node changed, for budgeted GPU re-upload.
type AttrKind int

const (
	AttrRadius AttrKind = iota
	AttrColor
	AttrImportance
	AttrLabel
)

// Store holds the interned id map and the dense node/edge arrays. All
// mutation happens from the host's single event loop (spec §5); no locks.
type Store struct {
	idToIndex map[string]uint32
	indexToID []string

	Nodes []Node
	Edges []Edge

	tombstoneCount int

	dirtyAttrs []dirtyAttr

	MaxAttrUpdatesPerFrame int

	rng *rand.Rand
}

type dirtyAttr struct {
	index uint32
	kind  AttrKind
}

// New creates an empty store.
func New() *Store {
	return &Store{
		idToIndex:              make(map[string]uint32),
		MaxAttrUpdatesPerFrame: DefaultMaxAttrUpdatesPerFrame,
		rng:                    rand.New(rand.NewSource(1)),
	}
}

// NodeCount is the number of live (non-tombstoned) nodes.
func (s *Store) NodeCount() int { return len(s.Nodes) - s.tombstoneCount }

// EdgeCount is the number of live edges.
func (s *Store) EdgeCount() int { return len(s.Edges) }

// IndexOf resolves an external string id to its dense index, reporting
// whether it exists (and is not tombstoned).
func (s *Store) IndexOf(id string) (uint32, bool) {
	idx, ok := s.idToIndex[id]
	if !ok {
		return 0, false
	}
	if s.Nodes[idx].tombstoned {
		return 0, false
	}
	return idx, true
}

// IDOf resolves a dense index back to its external string id.
func (s *Store) IDOf(idx uint32) (string, bool) {
	if int(idx) >= len(s.indexToID) {
		return "", false
	}
	return s.indexToID[idx], !s.Nodes[idx].tombstoned
}

// intern assigns a fresh dense index to a previously unseen id.
func (s *Store) intern(id string, n Node) uint32 {
	idx := uint32(len(s.Nodes))
	s.Nodes = append(s.Nodes, n)
	s.indexToID = append(s.indexToID, id)
	s.idToIndex[id] = idx
	return idx
}

// AddNode inserts or updates a single node by external id, per the
// addNodes contract (spec §4.3).
func (s *Store) AddNode(id string, n Node) uint32 {
	if idx, ok := s.idToIndex[id]; ok {
		wasTombstoned := s.Nodes[idx].tombstoned
		n.tombstoned = false
		s.Nodes[idx] = n
		if wasTombstoned {
			s.tombstoneCount--
		}
		return idx
	}
	return s.intern(id, n)
}

// AddEdge appends a new edge between two already-interned node ids. Returns
// false (without mutating the store) if either endpoint is unknown or the
// edge is a self-loop, both dropped per spec §3 ("self-loops are silently
// dropped").
func (s *Store) AddEdge(sourceID, targetID string, e Edge) bool {
	si, ok := s.IndexOf(sourceID)
	if !ok {
		return false
	}
	ti, ok := s.IndexOf(targetID)
	if !ok {
		return false
	}
	if si == ti {
		return false
	}
	e.Source, e.Target = si, ti
	s.Edges = append(s.Edges, e)
	return true
}

// RemoveByID tombstones a node's slot and drops any edge incident to it.
// It compacts immediately once the tombstone ratio exceeds
// TombstoneCompactThreshold; below that, tombstones stay until the next
// Load or Compact call.
func (s *Store) RemoveByID(id string) bool {
	idx, ok := s.idToIndex[id]
	if !ok || s.Nodes[idx].tombstoned {
		return false
	}
	s.Nodes[idx].tombstoned = true
	s.tombstoneCount++
	delete(s.idToIndex, id)

	kept := s.Edges[:0]
	for _, e := range s.Edges {
		if e.Source == idx || e.Target == idx {
			continue
		}
		kept = append(kept, e)
	}
	s.Edges = kept

	if s.TombstoneRatio() > TombstoneCompactThreshold {
		s.Compact()
	}
	return true
}

// TombstoneRatio is the fraction of slots currently tombstoned.
func (s *Store) TombstoneRatio() float64 {
	if len(s.Nodes) == 0 {
		return 0
	}
	return float64(s.tombstoneCount) / float64(len(s.Nodes))
}

// Compact rebuilds dense arrays dropping tombstoned slots and remaps every
// edge index, per spec §4.3's compaction trigger.
func (s *Store) Compact() {
	if s.tombstoneCount == 0 {
		return
	}
	remap := make([]uint32, len(s.Nodes))
	newNodes := make([]Node, 0, len(s.Nodes)-s.tombstoneCount)
	newIDs := make([]string, 0, cap(newNodes))
	for i, n := range s.Nodes {
		if n.tombstoned {
			remap[i] = math.MaxUint32
			continue
		}
		remap[i] = uint32(len(newNodes))
		newNodes = append(newNodes, n)
		newIDs = append(newIDs, s.indexToID[i])
	}
	newEdges := s.Edges[:0]
	for _, e := range s.Edges {
		ns, nt := remap[e.Source], remap[e.Target]
		if ns == math.MaxUint32 || nt == math.MaxUint32 {
			continue
		}
		e.Source, e.Target = ns, nt
		newEdges = append(newEdges, e)
	}

	s.Nodes = newNodes
	s.indexToID = newIDs
	s.Edges = newEdges
	s.idToIndex = make(map[string]uint32, len(newIDs))
	for i, id := range newIDs {
		s.idToIndex[id] = uint32(i)
	}
	s.tombstoneCount = 0
	s.dirtyAttrs = nil
}

// MarkDirty records that a node's attribute changed and needs a GPU
// re-upload, subject to MaxAttrUpdatesPerFrame budgeting in FlushDirty.
func (s *Store) MarkDirty(idx uint32, kind AttrKind) {
	s.dirtyAttrs = append(s.dirtyAttrs, dirtyAttr{index: idx, kind: kind})
}

// FlushDirty drains up to MaxAttrUpdatesPerFrame pending attribute updates
// and invokes upload for each, leaving the remainder queued for the next
// frame. This mirrors the teacher's per-frame sector/brick upload budget.
func (s *Store) FlushDirty(upload func(idx uint32, kind AttrKind)) {
	budget := s.MaxAttrUpdatesPerFrame
	if budget <= 0 {
		budget = DefaultMaxAttrUpdatesPerFrame
	}
	n := len(s.dirtyAttrs)
	if n > budget {
		n = budget
	}
	for i := 0; i < n; i++ {
		d := s.dirtyAttrs[i]
		upload(d.index, d.kind)
	}
	s.dirtyAttrs = s.dirtyAttrs[n:]
}

// PendingDirtyCount reports how many attribute updates remain queued.
func (s *Store) PendingDirtyCount() int { return len(s.dirtyAttrs) }

// SeedInitialPosition places a node uniformly on a disc of radius sqrt(n),
// seeded deterministically by node count (spec §4.3). index is the node's
// position within the batch being placed (not its dense index), and total
// is the batch size.
func SeedInitialPosition(rng *rand.Rand, index, total int) (x, y float32) {
	radius := math.Sqrt(float64(total))
	angle := rng.Float64() * 2 * math.Pi
	r := radius * math.Sqrt(rng.Float64())
	return float32(r * math.Cos(angle)), float32(r * math.Sin(angle))
}

// DeterministicRNG returns a *rand.Rand seeded from the node count alone,
// so identical batch sizes reproduce identical initial layouts (spec
// §4.3: "seeded by a deterministic hash of node count").
func DeterministicRNG(nodeCount int) *rand.Rand {
	seed := int64(2166136261)
	seed = seed*16777619 + int64(nodeCount)
	return rand.New(rand.NewSource(seed))
}
