package diagram

import (
	"errors"
	"fmt"
	"sync"

	"github.com/concept-map/backend/internal/models"
)

// ErrNodeNotFound is returned by edits that name an unknown node.
var ErrNodeNotFound = errors.New("node not found")

// Connection is a user-drawn link between two node handles.
type Connection struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Snapshot is what a view currently renders.
type Snapshot struct {
	Revision uint64        `json:"revision" yaml:"revision" msgpack:"revision"`
	Nodes    []models.Node `json:"nodes" yaml:"nodes" msgpack:"nodes"`
	Edges    []models.Edge `json:"edges" yaml:"edges" msgpack:"edges"`
}

// View renders a graph and holds the user's local edits to it. Edits stay in
// the view; they are discarded when the next graph is rendered.
type View struct {
	mu       sync.RWMutex
	revision uint64
	nodes    []models.Node
	edges    []models.Edge
	onChange func(Snapshot)

	// notifyMu is taken before mu is released so callbacks run in the
	// order the changes were made.
	notifyMu sync.Mutex
}

// NewView creates an empty view.
func NewView() *View {
	return &View{
		nodes: make([]models.Node, 0),
		edges: make([]models.Edge, 0),
	}
}

// OnChange registers fn to be called with a snapshot after every change,
// including replacements from the store. Calls are serialized in change
// order; fn must not edit the view.
func (v *View) OnChange(fn func(Snapshot)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

// Attach subscribes the view to store. The returned function detaches it.
func (v *View) Attach(store *Store) (detach func()) {
	return store.Subscribe(func(g *models.Graph, rev uint64) {
		v.Render(g, rev)
	})
}

// Render replaces the view's nodes and edges with copies of g's when g is
// non-nil and rev is newer than the revision last rendered. Revision 0 always
// renders. It reports whether anything was replaced.
func (v *View) Render(g *models.Graph, rev uint64) bool {
	if g == nil {
		return false
	}

	v.mu.Lock()
	if rev != 0 && rev <= v.revision {
		v.mu.Unlock()
		return false
	}
	v.revision = rev
	v.nodes = append(make([]models.Node, 0, len(g.Nodes)), g.Nodes...)
	v.edges = append(make([]models.Edge, 0, len(g.Edges)), g.Edges...)
	v.notifyLocked()
	return true
}

// Snapshot returns a copy of the rendered state.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() Snapshot {
	return Snapshot{
		Revision: v.revision,
		Nodes:    append(make([]models.Node, 0, len(v.nodes)), v.nodes...),
		Edges:    append(make([]models.Edge, 0, len(v.edges)), v.edges...),
	}
}

// MoveNode sets the position of a node.
func (v *View) MoveNode(id string, pos models.Position) error {
	return v.edit(func() error {
		for i := range v.nodes {
			if v.nodes[i].ID == id {
				v.nodes[i].Position = pos
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	})
}

// Connect adds an edge for c unless c is incomplete or an identical
// connection already exists. It returns the edge and whether it was added.
func (v *View) Connect(c Connection) (models.Edge, bool) {
	edge := models.Edge{
		ID:           EdgeID(c),
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
	}
	if c.Source == "" || c.Target == "" {
		return edge, false
	}

	added := false
	v.edit(func() error {
		for _, e := range v.edges {
			if e.Source == c.Source && e.Target == c.Target &&
				e.SourceHandle == c.SourceHandle && e.TargetHandle == c.TargetHandle {
				return errors.New("duplicate")
			}
		}
		v.edges = append(v.edges, edge)
		added = true
		return nil
	})
	return edge, added
}

// RemoveNode deletes a node and every edge attached to it.
func (v *View) RemoveNode(id string) error {
	return v.edit(func() error {
		idx := -1
		for i := range v.nodes {
			if v.nodes[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
		v.nodes = append(v.nodes[:idx], v.nodes[idx+1:]...)

		kept := v.edges[:0]
		for _, e := range v.edges {
			if e.Source != id && e.Target != id {
				kept = append(kept, e)
			}
		}
		v.edges = kept
		return nil
	})
}

// RemoveEdge deletes an edge. It reports whether the edge existed.
func (v *View) RemoveEdge(id string) bool {
	err := v.edit(func() error {
		for i := range v.edges {
			if v.edges[i].ID == id {
				v.edges = append(v.edges[:i], v.edges[i+1:]...)
				return nil
			}
		}
		return errors.New("edge not found")
	})
	return err == nil
}

// edit applies fn under the lock and notifies the change callback when fn
// succeeds.
func (v *View) edit(fn func() error) error {
	v.mu.Lock()
	if err := fn(); err != nil {
		v.mu.Unlock()
		return err
	}
	v.notifyLocked()
	return nil
}

// notifyLocked releases mu and delivers the new state to the change
// callback.
func (v *View) notifyLocked() {
	snap, fn := v.snapshotLocked(), v.onChange
	v.notifyMu.Lock()
	v.mu.Unlock()
	defer v.notifyMu.Unlock()

	if fn != nil {
		fn(snap)
	}
}

// EdgeID is the identifier the diagram widget assigns to a drawn connection.
func EdgeID(c Connection) string {
	return fmt.Sprintf("reactflow__edge-%s%s-%s%s", c.Source, c.SourceHandle, c.Target, c.TargetHandle)
}
