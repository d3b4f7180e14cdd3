// Package models contains the wire types shared by the concept map backend,
// the input panel and the diagram view.
//
// Graphs are passed through as received. Fields the diagram does not
// interpret are kept in Extra and written back unchanged, and an edge's
// animated flag is accepted either as a boolean or as a "true"/"false"
// string.
package models

import (
	"encoding/json"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// Position is a node coordinate on the diagram canvas.
type Position struct {
	X float64 `json:"x" yaml:"x" msgpack:"x"`
	Y float64 `json:"y" yaml:"y" msgpack:"y"`
}

// NodeData carries the display payload of a node.
type NodeData struct {
	Label string                 `json:"label" yaml:"label" msgpack:"label"`
	Extra map[string]interface{} `json:"-" yaml:",inline" msgpack:"-"`
}

// Node is a concept rendered on the diagram canvas.
type Node struct {
	ID       string                 `json:"id" yaml:"id" msgpack:"id"`
	Type     string                 `json:"type,omitempty" yaml:"type,omitempty" msgpack:"type,omitempty"`
	Data     NodeData               `json:"data" yaml:"data" msgpack:"data"`
	Position Position               `json:"position" yaml:"position" msgpack:"position"`
	Extra    map[string]interface{} `json:"-" yaml:",inline" msgpack:"-"`
}

// Edge is a relation between two nodes.
type Edge struct {
	ID           string                 `json:"id" yaml:"id" msgpack:"id"`
	Source       string                 `json:"source" yaml:"source" msgpack:"source"`
	Target       string                 `json:"target" yaml:"target" msgpack:"target"`
	SourceHandle string                 `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty" msgpack:"sourceHandle,omitempty"`
	TargetHandle string                 `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty" msgpack:"targetHandle,omitempty"`
	Label        string                 `json:"label,omitempty" yaml:"label,omitempty" msgpack:"label,omitempty"`
	Animated     bool                   `json:"animated,omitempty" yaml:"animated,omitempty" msgpack:"animated,omitempty"`
	Extra        map[string]interface{} `json:"-" yaml:",inline" msgpack:"-"`
}

// Graph is the payload exchanged between the backend and the diagram view.
// Nothing here validates it.
type Graph struct {
	Nodes []Node                 `json:"nodes" yaml:"nodes" msgpack:"nodes"`
	Edges []Edge                 `json:"edges" yaml:"edges" msgpack:"edges"`
	Extra map[string]interface{} `json:"-" yaml:",inline" msgpack:"-"`
}

// NewGraph returns an empty graph with non-nil slices so it encodes as
// {"nodes":[],"edges":[]}.
func NewGraph() *Graph {
	return &Graph{
		Nodes: make([]Node, 0),
		Edges: make([]Edge, 0),
	}
}

// Clone returns a copy of the graph that shares no slices or field maps
// with g.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{Extra: cloneExtra(g.Extra)}
	if g.Nodes != nil {
		out.Nodes = make([]Node, len(g.Nodes))
		for i, n := range g.Nodes {
			n.Extra = cloneExtra(n.Extra)
			n.Data.Extra = cloneExtra(n.Data.Extra)
			out.Nodes[i] = n
		}
	}
	if g.Edges != nil {
		out.Edges = make([]Edge, len(g.Edges))
		for i, e := range g.Edges {
			e.Extra = cloneExtra(e.Extra)
			out.Edges[i] = e
		}
	}
	return out
}

func cloneExtra(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d NodeData) MarshalJSON() ([]byte, error) {
	type plain NodeData
	return marshalWithExtra(plain(d), d.Extra)
}

func (d *NodeData) UnmarshalJSON(b []byte) error {
	type plain NodeData
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := unknownFields(b, "label")
	if err != nil {
		return err
	}
	p.Extra = extra
	*d = NodeData(p)
	return nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	type plain Node
	return marshalWithExtra(plain(n), n.Extra)
}

func (n *Node) UnmarshalJSON(b []byte) error {
	type plain Node
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := unknownFields(b, "id", "type", "data", "position")
	if err != nil {
		return err
	}
	p.Extra = extra
	*n = Node(p)
	return nil
}

func (e Edge) MarshalJSON() ([]byte, error) {
	type plain Edge
	return marshalWithExtra(plain(e), e.Extra)
}

// UnmarshalJSON accepts animated as a boolean or a boolean string. Any other
// animated value is kept in Extra untouched.
func (e *Edge) UnmarshalJSON(b []byte) error {
	type plain Edge
	var aux struct {
		*plain
		Animated json.RawMessage `json:"animated"`
	}
	aux.plain = (*plain)(e)
	*e = Edge{}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	extra, err := unknownFields(b, "id", "source", "target", "sourceHandle", "targetHandle", "label", "animated")
	if err != nil {
		return err
	}
	if len(aux.Animated) > 0 {
		if animated, ok := parseFlag(aux.Animated); ok {
			e.Animated = animated
		} else {
			var raw interface{}
			if err := json.Unmarshal(aux.Animated, &raw); err != nil {
				return err
			}
			if extra == nil {
				extra = make(map[string]interface{})
			}
			extra["animated"] = raw
		}
	}
	e.Extra = extra
	return nil
}

func (g Graph) MarshalJSON() ([]byte, error) {
	type plain Graph
	return marshalWithExtra(plain(g), g.Extra)
}

func (g *Graph) UnmarshalJSON(b []byte) error {
	type plain Graph
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := unknownFields(b, "nodes", "edges")
	if err != nil {
		return err
	}
	p.Extra = extra
	*g = Graph(p)
	return nil
}

// MessagePack goes through the JSON form so Extra survives the history store
// and the binary diagram endpoint.

func (n Node) MarshalMsgpack() ([]byte, error) { return msgpackFromJSON(n) }
func (n *Node) UnmarshalMsgpack(b []byte) error { return jsonFromMsgpack(b, n) }
func (e Edge) MarshalMsgpack() ([]byte, error) { return msgpackFromJSON(e) }
func (e *Edge) UnmarshalMsgpack(b []byte) error { return jsonFromMsgpack(b, e) }
func (g Graph) MarshalMsgpack() ([]byte, error) { return msgpackFromJSON(g) }
func (g *Graph) UnmarshalMsgpack(b []byte) error { return jsonFromMsgpack(b, g) }

func msgpackFromJSON(v json.Marshaler) ([]byte, error) {
	b, err := v.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return msgpack.Marshal(generic)
}

func jsonFromMsgpack(b []byte, v json.Unmarshaler) error {
	var generic interface{}
	if err := msgpack.Unmarshal(b, &generic); err != nil {
		return err
	}
	j, err := json.Marshal(generic)
	if err != nil {
		return err
	}
	return v.UnmarshalJSON(j)
}

// marshalWithExtra encodes v and adds the keys of extra that v does not
// already set.
func marshalWithExtra(v interface{}, extra map[string]interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, set := fields[k]; set {
			continue
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}

// unknownFields returns the members of the JSON object b not named in known,
// or nil when there are none.
func unknownFields(b []byte, known ...string) (map[string]interface{}, error) {
	var all map[string]interface{}
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

func parseFlag(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseBool(s); err == nil {
			return v, true
		}
	}
	return false, false
}
