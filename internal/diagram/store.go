// Package diagram holds the canonical graph and the views that render it.
//
// Store owns the graph published by the input panel. Views subscribe to a
// Store and keep their own copy of nodes and edges, which the user may edit
// locally. A new publication replaces a view's copy wholesale.
package diagram

import (
	"sync"

	"github.com/concept-map/backend/internal/models"
)

// Observer is notified with each published graph and its revision.
type Observer func(g *models.Graph, revision uint64)

// Store owns the canonical graph.
type Store struct {
	mu        sync.RWMutex
	graph     *models.Graph
	revision  uint64
	observers map[uint64]Observer
	nextID    uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{observers: make(map[uint64]Observer)}
}

// Publish makes a copy of g the canonical graph under a new revision and
// notifies all observers. A nil graph is ignored.
func (s *Store) Publish(g *models.Graph) {
	if g == nil {
		return
	}
	g = g.Clone()

	s.mu.Lock()
	s.revision++
	s.graph = g
	rev := s.revision
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(g, rev)
	}
}

// Current returns the canonical graph and its revision. Revision 0 means
// nothing has been published.
func (s *Store) Current() (*models.Graph, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph, s.revision
}

// Subscribe registers o. If a graph has been published, o receives it before
// Subscribe returns. The returned function unregisters o.
func (s *Store) Subscribe(o Observer) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers[id] = o
	g, rev := s.graph, s.revision
	s.mu.Unlock()

	if g != nil {
		o(g, rev)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Observers returns the number of registered observers.
func (s *Store) Observers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.observers)
}
