package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concept-map/backend/internal/models"
)

var sample = []models.Triple{
	{Subject: "plants", Relation: "produce", Object: "oxygen"},
	{Subject: "animals", Relation: "breathe", Object: "oxygen"},
	{Subject: "oxygen", Relation: "feeds", Object: "plants"},
	{Subject: "plants", Relation: "need", Object: "water"},
}

func TestBuild_NodesAndEdges(t *testing.T) {
	g := Build(sample, Options{})

	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
		assert.Equal(t, n.ID, n.Data.Label)
	}
	assert.Equal(t, []string{"plants", "oxygen", "animals", "water"}, ids)

	require.Len(t, g.Edges, 3)
	assert.Equal(t, models.Edge{ID: "plants-oxygen", Source: "plants", Target: "oxygen", Label: "produce", Animated: true}, g.Edges[0])
	assert.Equal(t, "plants-water", g.Edges[1].ID)
	assert.Equal(t, "need", g.Edges[1].Label)
	assert.Equal(t, "oxygen-animals", g.Edges[2].ID)
	assert.Equal(t, "breathe", g.Edges[2].Label)
}

func TestBuild_BoundedByScale(t *testing.T) {
	for _, scale := range []float64{1, 1000} {
		g := Build(sample, Options{Scale: scale})

		var maxAbs float64
		for _, n := range g.Nodes {
			maxAbs = math.Max(maxAbs, math.Max(math.Abs(n.Position.X), math.Abs(n.Position.Y)))
		}
		assert.InDelta(t, scale, maxAbs, scale*1e-9)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	a := Build(sample, Options{Seed: 7})
	b := Build(sample, Options{Seed: 7})
	assert.Equal(t, a, b)

	c := Build(sample, Options{Seed: 8})
	assert.NotEqual(t, a.Nodes, c.Nodes)
}

func TestBuild_SpreadsNodes(t *testing.T) {
	g := Build(sample, Options{})
	for i := range g.Nodes {
		for j := i + 1; j < len(g.Nodes); j++ {
			a, b := g.Nodes[i].Position, g.Nodes[j].Position
			assert.Greater(t, math.Hypot(a.X-b.X, a.Y-b.Y), 1.0, "%s and %s overlap", g.Nodes[i].ID, g.Nodes[j].ID)
		}
	}
}

func TestBuild_EdgeCases(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		g := Build(nil, Options{})
		assert.Empty(t, g.Nodes)
		assert.Empty(t, g.Edges)
		assert.NotNil(t, g.Nodes)
	})
	t.Run("self loop", func(t *testing.T) {
		g := Build([]models.Triple{{Subject: "cell", Relation: "divides into", Object: "cell"}}, Options{})
		require.Len(t, g.Nodes, 1)
		assert.Equal(t, models.Position{}, g.Nodes[0].Position)
		require.Len(t, g.Edges, 1)
		assert.Equal(t, "cell-cell", g.Edges[0].ID)
	})
}
