// Package layout places concept triples on a 2D canvas with a force-directed
// spring layout.
package layout

import (
	"math"
	"math/rand"

	"github.com/concept-map/backend/internal/models"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultScale      = 1000.0
	DefaultIterations = 50
	DefaultSeed       = 42

	minDistance = 0.01
	threshold   = 1e-4
)

// Options tunes the spring layout.
type Options struct {
	Scale      float64
	Iterations int
	Seed       int64
}

func (o Options) withDefaults() Options {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	return o
}

type vec struct{ x, y float64 }

// undirected is a simple graph that remembers insertion order of nodes and
// neighbours so edge enumeration is stable.
type undirected struct {
	nodes []string
	index map[string]int
	adj   [][]int
	has   map[[2]int]struct{}
	label map[[2]int]string
}

func newUndirected() *undirected {
	return &undirected{
		index: make(map[string]int),
		has:   make(map[[2]int]struct{}),
		label: make(map[[2]int]string),
	}
}

func (g *undirected) addNode(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[id] = i
	g.nodes = append(g.nodes, id)
	g.adj = append(g.adj, nil)
	return i
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func (g *undirected) addEdge(a, b int, relation string) {
	key := pairKey(a, b)
	if _, ok := g.has[key]; ok {
		return
	}
	g.has[key] = struct{}{}
	g.label[key] = relation
	g.adj[a] = append(g.adj[a], b)
	if a != b {
		g.adj[b] = append(g.adj[b], a)
	}
}

// Build lays out the triples and returns the diagram graph. Each distinct
// concept becomes one node; each unordered concept pair becomes one animated
// edge labelled with the first relation seen between them.
func Build(triples []models.Triple, opts Options) *models.Graph {
	opts = opts.withDefaults()

	g := newUndirected()
	for _, t := range triples {
		a := g.addNode(t.Subject)
		b := g.addNode(t.Object)
		g.addEdge(a, b, t.Relation)
	}

	pos := springLayout(g, opts)

	out := models.NewGraph()
	for i, id := range g.nodes {
		out.Nodes = append(out.Nodes, models.Node{
			ID:       id,
			Data:     models.NodeData{Label: id},
			Position: models.Position{X: pos[i].x, Y: pos[i].y},
		})
	}

	// Edges in adjacency order, each reported once from the node seen first.
	done := make([]bool, len(g.nodes))
	for u := range g.nodes {
		for _, v := range g.adj[u] {
			if done[v] {
				continue
			}
			source, target := g.nodes[u], g.nodes[v]
			out.Edges = append(out.Edges, models.Edge{
				ID:       source + "-" + target,
				Source:   source,
				Target:   target,
				Label:    g.label[pairKey(u, v)],
				Animated: true,
			})
		}
		done[u] = true
	}
	return out
}

// springLayout runs Fruchterman-Reingold from a seeded random start and
// rescales the result so the largest coordinate magnitude equals the scale.
func springLayout(g *undirected, opts Options) []vec {
	n := len(g.nodes)
	switch n {
	case 0:
		return nil
	case 1:
		return []vec{{0, 0}}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	pos := make([]vec, n)
	for i := range pos {
		pos[i] = vec{rng.Float64(), rng.Float64()}
	}

	k := math.Sqrt(1.0 / float64(n))
	t := 0.1
	dt := t / float64(opts.Iterations+1)

	disp := make([]vec, n)
	for iter := 0; iter < opts.Iterations; iter++ {
		for i := range disp {
			disp[i] = vec{}
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				dx, dy := pos[i].x-pos[j].x, pos[i].y-pos[j].y
				dist := math.Max(math.Hypot(dx, dy), minDistance)
				force := k * k / (dist * dist)
				if _, ok := g.has[pairKey(i, j)]; ok {
					force -= dist / k
				}
				disp[i].x += dx * force
				disp[i].y += dy * force
			}
		}

		var moved float64
		for i := range pos {
			length := math.Max(math.Hypot(disp[i].x, disp[i].y), minDistance)
			sx, sy := disp[i].x*t/length, disp[i].y*t/length
			pos[i].x += sx
			pos[i].y += sy
			moved += math.Hypot(sx, sy)
		}
		t -= dt
		if moved/float64(n) < threshold {
			break
		}
	}

	return rescale(pos, opts.Scale)
}

func rescale(pos []vec, scale float64) []vec {
	var cx, cy float64
	for _, p := range pos {
		cx += p.x
		cy += p.y
	}
	cx /= float64(len(pos))
	cy /= float64(len(pos))

	var lim float64
	for i := range pos {
		pos[i].x -= cx
		pos[i].y -= cy
		lim = math.Max(lim, math.Max(math.Abs(pos[i].x), math.Abs(pos[i].y)))
	}
	if lim == 0 {
		return pos
	}
	for i := range pos {
		pos[i].x *= scale / lim
		pos[i].y *= scale / lim
	}
	return pos
}
