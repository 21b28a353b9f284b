package layout

import (
	"math"
	"sort"

	"mindo/domain/core/valueobjects"
)

// HierarchicalOptions configures the layered layout
type HierarchicalOptions struct {
	Direction      Direction
	NodeSeparation float64
	RankSeparation float64
	Margin         float64
	DefaultSize    valueobjects.Dimensions
}

// DefaultHierarchicalOptions returns a left-to-right layout with nodesep 60,
// ranksep 100, margins of 50 and 280x150 nodes
func DefaultHierarchicalOptions() HierarchicalOptions {
	return HierarchicalOptions{
		Direction:      LeftToRight,
		NodeSeparation: 60,
		RankSeparation: 100,
		Margin:         50,
		DefaultSize:    valueobjects.Dimensions{Width: 280, Height: 150},
	}
}

const (
	// Gap kept next to the virtual vertices of long edges.
	edgeSeparation  = 10
	orderIterations = 24
	coordIterations = 8
)

// layered is the working state of one hierarchical run. Vertices 0..n-1 are
// real nodes, the rest are virtual vertices splitting edges that span more
// than one rank.
type layered struct {
	n      int
	rank   []int
	cross  []float64 // size across the rank axis
	along  []float64 // size along the rank axis
	up     [][]int
	down   [][]int
	layers [][]int
	pos    []int
}

// Hierarchical computes a Sugiyama-style layered layout: cycles are broken by
// reversing DFS back edges, ranks come from the longest path, layer order is
// refined with barycenter sweeps and coordinates are placed with the
// configured separations. Positions are returned as top-left corners. Every
// edge gets handles facing along the rank axis.
func Hierarchical(nodes []Node, edges []Edge, opts HierarchicalOptions) Result {
	res := Result{
		Positions: make(map[valueobjects.NodeID]valueobjects.Position, len(nodes)),
		Handles:   make(map[valueobjects.EdgeID]Handles, len(edges)),
	}
	if !opts.Direction.IsValid() {
		opts.Direction = LeftToRight
	}

	ix, links := index(nodes, edges)
	for _, e := range edges {
		if _, ok := ix[e.Source]; !ok {
			continue
		}
		if _, ok := ix[e.Target]; !ok {
			continue
		}
		res.Handles[e.ID] = handlesFor(e, opts.Direction)
	}
	if len(nodes) == 0 {
		return res
	}

	sizes := make([]valueobjects.Dimensions, len(nodes))
	for i, n := range nodes {
		sizes[i] = opts.DefaultSize.Merge(n.Size)
	}

	dag := acyclic(len(nodes), ix, links)
	ranks := longestPathRanks(len(nodes), dag)
	g := buildLayers(sizes, ranks, dag, opts.Direction)
	g.order()
	rankCoord := g.rankCoordinates(opts.RankSeparation)
	crossCoord := g.crossCoordinates(opts.NodeSeparation)

	// Shift so the top-left-most real node sits at the margin.
	minCross, minRank := math.Inf(1), math.Inf(1)
	for v := 0; v < g.n; v++ {
		minCross = math.Min(minCross, crossCoord[v]-g.cross[v]/2)
		minRank = math.Min(minRank, rankCoord[g.rank[v]]-g.along[v]/2)
	}

	for v, node := range nodes {
		c := crossCoord[v] - g.cross[v]/2 - minCross + opts.Margin
		r := rankCoord[g.rank[v]] - g.along[v]/2 - minRank + opts.Margin
		if opts.Direction == LeftToRight {
			res.Positions[node.ID] = valueobjects.Position{X: r, Y: c}
		} else {
			res.Positions[node.ID] = valueobjects.Position{X: c, Y: r}
		}
	}
	return res
}

func handlesFor(e Edge, dir Direction) Handles {
	if dir == TopToBottom {
		return Handles{Source: e.Source.String() + "-bottom", Target: e.Target.String() + "-top"}
	}
	return Handles{Source: e.Source.String() + "-right", Target: e.Target.String() + "-left"}
}

type arc struct{ from, to int }

// acyclic returns the deduplicated edge set with DFS back edges reversed
func acyclic(n int, ix map[valueobjects.NodeID]int, links []Edge) []arc {
	out := make([][]int, n)
	for _, e := range links {
		s, t := ix[e.Source], ix[e.Target]
		out[s] = append(out[s], t)
	}

	const (
		unvisited = iota
		onStack
		done
	)
	state := make([]int, n)
	seen := make(map[arc]struct{})
	var arcs []arc
	add := func(a arc) {
		if _, dup := seen[a]; dup {
			return
		}
		if _, dup := seen[arc{a.to, a.from}]; dup {
			return
		}
		seen[a] = struct{}{}
		arcs = append(arcs, a)
	}

	var visit func(u int)
	visit = func(u int) {
		state[u] = onStack
		for _, v := range out[u] {
			switch state[v] {
			case onStack:
				add(arc{v, u})
			case unvisited:
				add(arc{u, v})
				visit(v)
			default:
				add(arc{u, v})
			}
		}
		state[u] = done
	}
	for u := 0; u < n; u++ {
		if state[u] == unvisited {
			visit(u)
		}
	}
	return arcs
}

// longestPathRanks ranks every node one past its deepest predecessor
func longestPathRanks(n int, arcs []arc) []int {
	indeg := make([]int, n)
	succ := make([][]int, n)
	for _, a := range arcs {
		succ[a.from] = append(succ[a.from], a.to)
		indeg[a.to]++
	}
	rank := make([]int, n)
	queue := make([]int, 0, n)
	for v := 0; v < n; v++ {
		if indeg[v] == 0 {
			queue = append(queue, v)
		}
	}
	for head := 0; head < len(queue); head++ {
		u := queue[head]
		for _, v := range succ[u] {
			if rank[u]+1 > rank[v] {
				rank[v] = rank[u] + 1
			}
			indeg[v]--
			if indeg[v] == 0 {
				queue = append(queue, v)
			}
		}
	}
	return rank
}

func buildLayers(sizes []valueobjects.Dimensions, ranks []int, arcs []arc, dir Direction) *layered {
	n := len(sizes)
	g := &layered{n: n}
	for v := 0; v < n; v++ {
		g.rank = append(g.rank, ranks[v])
		if dir == LeftToRight {
			g.cross = append(g.cross, sizes[v].Height)
			g.along = append(g.along, sizes[v].Width)
		} else {
			g.cross = append(g.cross, sizes[v].Width)
			g.along = append(g.along, sizes[v].Height)
		}
	}
	g.up = make([][]int, n)
	g.down = make([][]int, n)

	link := func(a, b int) {
		g.down[a] = append(g.down[a], b)
		g.up[b] = append(g.up[b], a)
	}
	for _, a := range arcs {
		prev := a.from
		for r := ranks[a.from] + 1; r < ranks[a.to]; r++ {
			v := len(g.rank)
			g.rank = append(g.rank, r)
			g.cross = append(g.cross, 0)
			g.along = append(g.along, 0)
			g.up = append(g.up, nil)
			g.down = append(g.down, nil)
			link(prev, v)
			prev = v
		}
		link(prev, a.to)
	}

	maxRank := 0
	for _, r := range g.rank {
		maxRank = max(maxRank, r)
	}
	g.layers = make([][]int, maxRank+1)
	for v, r := range g.rank {
		g.layers[r] = append(g.layers[r], v)
	}
	g.pos = make([]int, len(g.rank))
	g.reposition()
	return g
}

func (g *layered) reposition() {
	for _, layer := range g.layers {
		for i, v := range layer {
			g.pos[v] = i
		}
	}
}

// order runs alternating barycenter sweeps and keeps the ordering with the
// fewest crossings
func (g *layered) order() {
	best := g.snapshot()
	bestCrossings := g.crossings()

	for it := 0; it < orderIterations && bestCrossings > 0; it++ {
		if it%2 == 0 {
			for r := 1; r < len(g.layers); r++ {
				g.sortByBarycenter(r, g.up)
			}
		} else {
			for r := len(g.layers) - 2; r >= 0; r-- {
				g.sortByBarycenter(r, g.down)
			}
		}
		if c := g.crossings(); c < bestCrossings {
			bestCrossings = c
			best = g.snapshot()
		}
	}

	g.layers = best
	g.reposition()
}

func (g *layered) sortByBarycenter(r int, adj [][]int) {
	layer := g.layers[r]
	bc := make(map[int]float64, len(layer))
	for _, v := range layer {
		if len(adj[v]) == 0 {
			bc[v] = float64(g.pos[v])
			continue
		}
		sum := 0.0
		for _, u := range adj[v] {
			sum += float64(g.pos[u])
		}
		bc[v] = sum / float64(len(adj[v]))
	}
	sort.SliceStable(layer, func(i, j int) bool {
		return bc[layer[i]] < bc[layer[j]]
	})
	for i, v := range layer {
		g.pos[v] = i
	}
}

func (g *layered) crossings() int {
	total := 0
	for r := 0; r+1 < len(g.layers); r++ {
		var segs []arc
		for _, a := range g.layers[r] {
			for _, b := range g.down[a] {
				segs = append(segs, arc{a, b})
			}
		}
		for i := 0; i < len(segs); i++ {
			for j := i + 1; j < len(segs); j++ {
				da := g.pos[segs[i].from] - g.pos[segs[j].from]
				db := g.pos[segs[i].to] - g.pos[segs[j].to]
				if da*db < 0 {
					total++
				}
			}
		}
	}
	return total
}

func (g *layered) snapshot() [][]int {
	out := make([][]int, len(g.layers))
	for i, l := range g.layers {
		out[i] = append([]int(nil), l...)
	}
	return out
}

// rankCoordinates returns the center of each rank along the rank axis
func (g *layered) rankCoordinates(rankSep float64) []float64 {
	coords := make([]float64, len(g.layers))
	offset := 0.0
	for r, layer := range g.layers {
		thickness := 0.0
		for _, v := range layer {
			thickness = math.Max(thickness, g.along[v])
		}
		coords[r] = offset + thickness/2
		offset += thickness + rankSep
	}
	return coords
}

func (g *layered) separation(a, b int, nodeSep float64) float64 {
	gap := nodeSep
	if a >= g.n || b >= g.n {
		gap = edgeSeparation
	}
	return (g.cross[a]+g.cross[b])/2 + gap
}

// crossCoordinates places vertices inside their layer. Each pass pulls
// vertices toward the mean of their neighbours in the previous layer and then
// restores the minimum separations with the smallest squared displacement.
func (g *layered) crossCoordinates(nodeSep float64) []float64 {
	coords := make([]float64, len(g.rank))
	for _, layer := range g.layers {
		x := 0.0
		for i, v := range layer {
			if i > 0 {
				x += g.separation(layer[i-1], v, nodeSep)
			}
			coords[v] = x
		}
		shift := x / 2
		for _, v := range layer {
			coords[v] -= shift
		}
	}

	for it := 0; it < coordIterations; it++ {
		if it%2 == 0 {
			for r := 1; r < len(g.layers); r++ {
				g.align(g.layers[r], g.up, coords, nodeSep)
			}
		} else {
			for r := len(g.layers) - 2; r >= 0; r-- {
				g.align(g.layers[r], g.down, coords, nodeSep)
			}
		}
	}
	return coords
}

func (g *layered) align(layer []int, adj [][]int, coords []float64, nodeSep float64) {
	if len(layer) == 0 {
		return
	}
	desired := make([]float64, len(layer))
	for i, v := range layer {
		if len(adj[v]) == 0 {
			desired[i] = coords[v]
			continue
		}
		sum := 0.0
		for _, u := range adj[v] {
			sum += coords[u]
		}
		desired[i] = sum / float64(len(adj[v]))
	}

	offsets := make([]float64, len(layer))
	for i := 1; i < len(layer); i++ {
		offsets[i] = offsets[i-1] + g.separation(layer[i-1], layer[i], nodeSep)
	}
	shifted := make([]float64, len(layer))
	for i := range layer {
		shifted[i] = desired[i] - offsets[i]
	}
	fitted := isotonic(shifted)
	for i, v := range layer {
		coords[v] = fitted[i] + offsets[i]
	}
}

// isotonic returns the non-decreasing sequence closest to y in least squares
// (pool adjacent violators)
func isotonic(y []float64) []float64 {
	type block struct {
		sum   float64
		count int
	}
	blocks := make([]block, 0, len(y))
	for _, v := range y {
		blocks = append(blocks, block{sum: v, count: 1})
		for len(blocks) > 1 {
			last := blocks[len(blocks)-1]
			prev := blocks[len(blocks)-2]
			if prev.sum/float64(prev.count) <= last.sum/float64(last.count) {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, block{sum: prev.sum + last.sum, count: prev.count + last.count})
		}
	}
	out := make([]float64, 0, len(y))
	for _, b := range blocks {
		mean := b.sum / float64(b.count)
		for i := 0; i < b.count; i++ {
			out = append(out, mean)
		}
	}
	return out
}
