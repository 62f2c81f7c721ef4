package dag

// Graph is a directed acyclic graph over dense node indexes 0..N-1 with a
// non-negative weight per edge. Nodes are task indexes; edge weights carry
// the predecessor's duration plus precedence lag.
type Graph struct {
	N   int
	Adj [][]Edge // outgoing edges per node
	Rev [][]Edge // incoming edges per node
}

// Edge points from its owning node to To with the given weight.
type Edge struct {
	To     int
	Weight int
}

// New allocates an empty graph with n nodes.
func New(n int) *Graph {
	return &Graph{N: n, Adj: make([][]Edge, n), Rev: make([][]Edge, n)}
}

// AddEdge inserts a weighted edge from -> to.
func (g *Graph) AddEdge(from, to, weight int) {
	g.Adj[from] = append(g.Adj[from], Edge{To: to, Weight: weight})
	g.Rev[to] = append(g.Rev[to], Edge{To: from, Weight: weight})
}

// TopoOrder returns a topological order of all nodes, or ok=false when the
// graph contains a cycle. The order is deterministic: ties resolve by node
// index (smallest first), which keeps downstream model building reproducible.
func (g *Graph) TopoOrder() (order []int, ok bool) {
	indeg := make([]int, g.N)
	for from := range g.Adj {
		for _, e := range g.Adj[from] {
			indeg[e.To]++
		}
	}
	// Sorted ready set: repeatedly take the smallest ready index. N is small
	// enough (task counts) that a linear rescan beats maintaining a heap only
	// at much larger sizes; a min-heap keeps this O(E log N) regardless.
	h := &intHeap{}
	for i := 0; i < g.N; i++ {
		if indeg[i] == 0 {
			h.push(i)
		}
	}
	order = make([]int, 0, g.N)
	for h.len() > 0 {
		n := h.pop()
		order = append(order, n)
		for _, e := range g.Adj[n] {
			indeg[e.To]--
			if indeg[e.To] == 0 {
				h.push(e.To)
			}
		}
	}
	return order, len(order) == g.N
}

// LongestFromSources computes, per node, the longest weighted path distance
// from any source (node with no predecessors). With edge weights set to
// pred-duration+lag this is the earliest-start forward pass.
func (g *Graph) LongestFromSources(order []int) []int {
	dist := make([]int, g.N)
	for _, n := range order {
		for _, e := range g.Adj[n] {
			if d := dist[n] + e.Weight; d > dist[e.To] {
				dist[e.To] = d
			}
		}
	}
	return dist
}

// LongestToSinks computes, per node, the longest weighted path distance from
// the node to any sink, where the weight charged on an edge u->v is
// nodeCost[v] + the edge's lag component supplied by lag. Combined with a
// horizon it yields the latest-start backward pass.
func (g *Graph) LongestToSinks(order []int, cost func(edge Edge, from int) int) []int {
	dist := make([]int, g.N)
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		for _, e := range g.Adj[n] {
			if d := dist[e.To] + cost(e, n); d > dist[n] {
				dist[n] = d
			}
		}
	}
	return dist
}

// FindCycle returns one directed cycle as a node sequence, or nil when the
// graph is acyclic. Used to produce a readable rejection message.
func (g *Graph) FindCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, g.N)
	parent := make([]int, g.N)
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var visit func(n int) bool
	visit = func(n int) bool {
		color[n] = gray
		for _, e := range g.Adj[n] {
			switch color[e.To] {
			case white:
				parent[e.To] = n
				if visit(e.To) {
					return true
				}
			case gray:
				// Back edge: walk parents from n to e.To to recover the loop.
				cycle = []int{e.To}
				for x := n; x != e.To; x = parent[x] {
					cycle = append(cycle, x)
				}
				reverse(cycle)
				return true
			}
		}
		color[n] = black
		return false
	}
	for i := 0; i < g.N; i++ {
		if color[i] == white && visit(i) {
			return cycle
		}
	}
	return nil
}

func reverse(xs []int) {
	for i, j := 0, len(xs)-1; i < j; i, j = i+1, j-1 {
		xs[i], xs[j] = xs[j], xs[i]
	}
}

// Min-heap of ints for the deterministic topological ready set.
type intHeap []int

func (h *intHeap) len() int { return len(*h) }

func (h *intHeap) push(v int) {
	*h = append(*h, v)
	i := len(*h) - 1
	for i > 0 {
		p := (i - 1) / 2
		if (*h)[p] <= (*h)[i] {
			break
		}
		(*h)[p], (*h)[i] = (*h)[i], (*h)[p]
		i = p
	}
}

func (h *intHeap) pop() int {
	old := *h
	top := old[0]
	n := len(old) - 1
	old[0] = old[n]
	*h = old[:n]
	i := 0
	for {
		l, r := 2*i+1, 2*i+2
		small := i
		if l < n && (*h)[l] < (*h)[small] {
			small = l
		}
		if r < n && (*h)[r] < (*h)[small] {
			small = r
		}
		if small == i {
			break
		}
		(*h)[i], (*h)[small] = (*h)[small], (*h)[i]
		i = small
	}
	return top
}
