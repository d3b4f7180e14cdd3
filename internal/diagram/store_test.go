package diagram

import (
	"sync"
	"testing"

	"github.com/concept-map/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoNodeGraph() *models.Graph {
	return &models.Graph{
		Nodes: []models.Node{
			{ID: "A", Data: models.NodeData{Label: "A"}},
			{ID: "B", Data: models.NodeData{Label: "B"}, Position: models.Position{X: 10, Y: 20}},
		},
		Edges: []models.Edge{{ID: "A-B", Source: "A", Target: "B"}},
	}
}

func TestStore_Publish(t *testing.T) {
	s := NewStore()
	g, rev := s.Current()
	assert.Nil(t, g)
	assert.Equal(t, uint64(0), rev)

	var got []uint64
	cancel := s.Subscribe(func(g *models.Graph, rev uint64) { got = append(got, rev) })
	defer cancel()

	first := twoNodeGraph()
	s.Publish(first)
	s.Publish(nil)
	s.Publish(models.NewGraph())

	assert.Equal(t, []uint64{1, 2}, got)
	g, rev = s.Current()
	assert.Equal(t, uint64(2), rev)
	assert.Empty(t, g.Nodes)
}

func TestStore_SubscribeDeliversCurrent(t *testing.T) {
	s := NewStore()
	s.Publish(twoNodeGraph())

	var delivered *models.Graph
	cancel := s.Subscribe(func(g *models.Graph, rev uint64) { delivered = g })
	require.NotNil(t, delivered)
	assert.Len(t, delivered.Nodes, 2)

	assert.Equal(t, 1, s.Observers())
	cancel()
	cancel()
	assert.Equal(t, 0, s.Observers())
}

func TestStore_ConcurrentPublish(t *testing.T) {
	s := NewStore()
	v := NewView()
	defer v.Attach(s)()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Publish(twoNodeGraph())
		}()
	}
	wg.Wait()

	_, rev := s.Current()
	assert.Equal(t, uint64(20), rev)
	assert.Len(t, v.Snapshot().Nodes, 2)
}
