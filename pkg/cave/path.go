package cave

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	vmath "github.com/Faultbox/midgard-caves/pkg/math"
)

// NoPredecessor marks the root node of a path.
const NoPredecessor = -1

// Walk defaults applied when the corresponding PathParams field is zero.
const (
	DefaultMaxTurn          = 2 * math.Pi / 3 // 120 degrees
	DefaultSeparationFactor = 0.75            // fraction of Spacing
	DefaultMaxRetries       = 16
)

// PathNode is one point of the cave skeleton.
type PathNode struct {
	Position vmath.Vec3
	Prev     int // index of the predecessor, or NoPredecessor
}

// PathParams controls skeleton generation.
type PathParams struct {
	Start              vmath.Vec3
	NodeCount          int     // nodes on the main chain, root included
	Spacing            float32 // distance between a node and its predecessor
	MaxInfluenceRadius float32 // bucket size of the spatial index
	Seed               int64

	MaxTurn       float32 // max heading change per step in radians; >= Pi disables the check
	MinSeparation float32 // min distance to any non-predecessor node
	MaxRetries    int     // rejected candidates before one is accepted regardless

	Branches     int // extra walks forking from existing nodes
	BranchLength int // nodes per branch
}

// Validate reports configuration errors.
func (p PathParams) Validate() error {
	if p.NodeCount < 1 {
		return fmt.Errorf("%w: %d (need at least 1)", ErrInvalidNodeCount, p.NodeCount)
	}
	if !positive(p.Spacing) {
		return fmt.Errorf("%w: %v", ErrInvalidSpacing, p.Spacing)
	}
	if !positive(p.MaxInfluenceRadius) {
		return fmt.Errorf("%w: %v", ErrInvalidRadius, p.MaxInfluenceRadius)
	}
	if !p.Start.IsFinite() {
		return fmt.Errorf("%w: non-finite start %v", ErrInvalidWalk, p.Start)
	}
	if p.MaxTurn < 0 || p.MinSeparation < 0 || p.MaxRetries < 0 {
		return fmt.Errorf("%w: negative turn, separation or retry limit", ErrInvalidWalk)
	}
	if p.Branches < 0 || p.BranchLength < 0 {
		return fmt.Errorf("%w: negative branch count or length", ErrInvalidWalk)
	}
	if p.Branches > 0 && p.BranchLength == 0 {
		return fmt.Errorf("%w: %d branches of length 0", ErrInvalidWalk, p.Branches)
	}
	return nil
}

// TotalNodes returns the node count the walk will produce.
func (p PathParams) TotalNodes() int {
	return p.NodeCount + p.Branches*p.BranchLength
}

func (p PathParams) withDefaults() PathParams {
	if p.MaxTurn == 0 {
		p.MaxTurn = DefaultMaxTurn
	}
	if p.MinSeparation == 0 {
		p.MinSeparation = p.Spacing * DefaultSeparationFactor
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	return p
}

// Path is an immutable cave skeleton: an append-built tree of nodes where
// every predecessor index is smaller than its node's index.
type Path struct {
	nodes      []PathNode
	index      *bucketIndex
	min, max   vmath.Vec3
	maxSegment float32
}

// GeneratePath runs the seeded walk and indexes the result.
func GeneratePath(params PathParams) (*Path, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.withDefaults()

	w := newWalker(params)
	w.extend(0, params.NodeCount-1)
	for range params.Branches {
		fork := w.rng.IntN(len(w.nodes))
		w.extend(fork, params.BranchLength)
	}

	return newPath(w.nodes, params.MaxInfluenceRadius), nil
}

// NewPath builds a path from explicit nodes. Used for hand-made skeletons and
// tests; predecessors must reference earlier nodes.
func NewPath(nodes []PathNode, bucketSize float32) (*Path, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: empty node list", ErrInvalidNodeCount)
	}
	if !positive(bucketSize) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRadius, bucketSize)
	}
	for i, n := range nodes {
		if n.Prev != NoPredecessor && (n.Prev < 0 || n.Prev >= i) {
			return nil, fmt.Errorf("%w: node %d has predecessor %d", ErrInvalidWalk, i, n.Prev)
		}
		if !n.Position.IsFinite() {
			return nil, fmt.Errorf("%w: node %d has non-finite position", ErrInvalidWalk, i)
		}
	}
	return newPath(slices.Clone(nodes), bucketSize), nil
}

func newPath(nodes []PathNode, bucketSize float32) *Path {
	p := &Path{
		nodes: nodes,
		index: newBucketIndex(bucketSize, len(nodes)),
		min:   nodes[0].Position,
		max:   nodes[0].Position,
	}
	for _, n := range nodes {
		p.index.insert(n.Position)
		p.min = p.min.Min(n.Position)
		p.max = p.max.Max(n.Position)
		if n.Prev != NoPredecessor {
			if l := n.Position.Distance(nodes[n.Prev].Position); l > p.maxSegment {
				p.maxSegment = l
			}
		}
	}
	return p
}

// Len returns the number of nodes.
func (p *Path) Len() int {
	return len(p.nodes)
}

// Get returns the position of node i. Panics with *InvariantError when i is
// out of range.
func (p *Path) Get(i int) vmath.Vec3 {
	p.check("Path.Get", i)
	return p.nodes[i].Position
}

// Node returns node i.
func (p *Path) Node(i int) PathNode {
	p.check("Path.Node", i)
	return p.nodes[i]
}

// PreviousFor returns the predecessor of node i. The root reports false.
func (p *Path) PreviousFor(i int) (int, bool) {
	p.check("Path.PreviousFor", i)
	prev := p.nodes[i].Prev
	return prev, prev != NoPredecessor
}

// Segment returns the segment from node i's predecessor to node i. The root
// yields a degenerate segment at its own position.
func (p *Path) Segment(i int) vmath.Segment {
	p.check("Path.Segment", i)
	n := p.nodes[i]
	if n.Prev == NoPredecessor {
		return vmath.Segment{A: n.Position, B: n.Position}
	}
	return vmath.Segment{A: p.nodes[n.Prev].Position, B: n.Position}
}

// NodesWithin returns the indices of all nodes within radius of point, in
// ascending order without duplicates.
func (p *Path) NodesWithin(point vmath.Vec3, radius float32) []int {
	var out []int
	p.index.forEachWithin(point, radius, func(i int) {
		out = append(out, i)
	})
	slices.Sort(out)
	return out
}

// ForEachWithin calls fn for every node within radius of point, in no
// particular order. It does not allocate.
func (p *Path) ForEachWithin(point vmath.Vec3, radius float32, fn func(i int)) {
	p.index.forEachWithin(point, radius, fn)
}

// Bounds returns the axis-aligned bounding box of all node positions.
func (p *Path) Bounds() (vmath.Vec3, vmath.Vec3) {
	return p.min, p.max
}

// MaxSegmentLength returns the longest node-to-predecessor distance.
func (p *Path) MaxSegmentLength() float32 {
	return p.maxSegment
}

// Nodes returns a copy of the node list.
func (p *Path) Nodes() []PathNode {
	return slices.Clone(p.nodes)
}

func (p *Path) check(op string, i int) {
	if i < 0 || i >= len(p.nodes) {
		fault(op, "node index %d out of range [0, %d)", i, len(p.nodes))
	}
}

// walker holds the mutable state of one generation run.
type walker struct {
	params PathParams
	rng    *rand.Rand
	nodes  []PathNode
	placed *bucketIndex // proximity checks while walking
	minCos float32
}

func newWalker(params PathParams) *walker {
	w := &walker{
		params: params,
		rng:    rand.New(rand.NewPCG(uint64(params.Seed), 0xda3e39cb94b95bdb)),
		nodes:  make([]PathNode, 0, params.TotalNodes()),
		placed: newBucketIndex(max(params.MinSeparation, params.Spacing), params.TotalNodes()),
		minCos: -2, // no turn limit
	}
	if params.MaxTurn < math.Pi {
		w.minCos = float32(math.Cos(float64(params.MaxTurn)))
	}
	w.place(PathNode{Position: params.Start, Prev: NoPredecessor})
	return w
}

func (w *walker) place(n PathNode) int {
	w.nodes = append(w.nodes, n)
	return w.placed.insert(n.Position)
}

// extend walks steps nodes starting from node from.
func (w *walker) extend(from, steps int) {
	cur := from
	var heading vmath.Vec3
	if prev := w.nodes[cur].Prev; prev != NoPredecessor {
		heading = w.nodes[cur].Position.Sub(w.nodes[prev].Position).Normalize()
	}

	for range steps {
		origin := w.nodes[cur].Position
		var dir, candidate vmath.Vec3
		for attempt := 0; ; attempt++ {
			dir = w.randomDirection()
			candidate = origin.Add(dir.Scale(w.params.Spacing))
			if attempt >= w.params.MaxRetries || w.acceptable(cur, heading, dir, candidate) {
				break
			}
		}
		cur = w.place(PathNode{Position: candidate, Prev: cur})
		heading = dir
	}
}

// acceptable applies the turning and separation policy to a candidate step.
func (w *walker) acceptable(cur int, heading, dir, candidate vmath.Vec3) bool {
	if heading != (vmath.Vec3{}) && heading.Dot(dir) < w.minCos {
		return false
	}
	crowded := false
	w.placed.forEachWithin(candidate, w.params.MinSeparation, func(i int) {
		if i != cur {
			crowded = true
		}
	})
	return !crowded
}

// randomDirection returns a uniformly distributed unit vector.
func (w *walker) randomDirection() vmath.Vec3 {
	z := 2*w.rng.Float64() - 1
	theta := 2 * math.Pi * w.rng.Float64()
	r := math.Sqrt(1 - z*z)
	return vmath.Vec3{
		X: float32(r * math.Cos(theta)),
		Y: float32(r * math.Sin(theta)),
		Z: float32(z),
	}
}

func positive(v float32) bool {
	f := float64(v)
	return v > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
