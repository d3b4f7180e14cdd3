package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEdge_UnmarshalAnimated(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		animated bool
		extra    map[string]interface{}
	}{
		{"bool", `true`, true, nil},
		{"string true", `"true"`, true, nil},
		{"string false", `"false"`, false, nil},
		{"null", `null`, false, nil},
		{"other string kept", `"sometimes"`, false, map[string]interface{}{"animated": "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e Edge
			err := json.Unmarshal([]byte(`{"id":"a-b","source":"a","target":"b","animated":`+tt.raw+`}`), &e)
			require.NoError(t, err)
			assert.Equal(t, "a-b", e.ID)
			assert.Equal(t, tt.animated, e.Animated)
			assert.Equal(t, tt.extra, e.Extra)
		})
	}
}

func TestEdge_UnmarshalResetsPreviousValue(t *testing.T) {
	e := Edge{ID: "old", Animated: true, Extra: map[string]interface{}{"style": "x"}}
	require.NoError(t, json.Unmarshal([]byte(`{"id":"new","source":"a","target":"b"}`), &e))
	assert.Equal(t, Edge{ID: "new", Source: "a", Target: "b"}, e)
}

const widgetGraph = `{
	"nodes": [{"id": "a", "type": "input", "data": {"label": "A", "color": "red"}, "position": {"x": 1.5, "y": -2}, "style": {"width": 80}}],
	"edges": [{"id": "a-b", "source": "a", "target": "b", "label": "is", "markerEnd": {"type": "arrow"}}],
	"viewport": {"zoom": 1}
}`

func TestGraph_KeepsUnknownFields(t *testing.T) {
	var g Graph
	require.NoError(t, json.Unmarshal([]byte(widgetGraph), &g))

	assert.Equal(t, "A", g.Nodes[0].Data.Label)
	assert.Equal(t, Position{X: 1.5, Y: -2}, g.Nodes[0].Position)
	assert.Equal(t, map[string]interface{}{"color": "red"}, g.Nodes[0].Data.Extra)
	assert.Contains(t, g.Extra, "viewport")

	out, err := json.Marshal(&g)
	require.NoError(t, err)
	assert.JSONEq(t, widgetGraph, string(out))
}

func TestGraph_MsgpackKeepsUnknownFields(t *testing.T) {
	var g Graph
	require.NoError(t, json.Unmarshal([]byte(widgetGraph), &g))

	payload, err := msgpack.Marshal(&g)
	require.NoError(t, err)

	var decoded Graph
	require.NoError(t, msgpack.Unmarshal(payload, &decoded))
	assert.Equal(t, g, decoded)
}

func TestGraph_EmptyEncoding(t *testing.T) {
	out, err := json.Marshal(NewGraph())
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[],"edges":[]}`, string(out))
}

func TestGraph_Clone(t *testing.T) {
	var g Graph
	require.NoError(t, json.Unmarshal([]byte(widgetGraph), &g))

	c := g.Clone()
	assert.Equal(t, &g, c)

	c.Nodes[0].Position.X = 99
	c.Nodes[0].Extra["style"] = "changed"
	c.Nodes[0].Data.Extra["color"] = "blue"
	c.Edges[0].Label = "was"
	c.Extra["viewport"] = nil

	assert.Equal(t, 1.5, g.Nodes[0].Position.X)
	assert.Equal(t, map[string]interface{}{"width": float64(80)}, g.Nodes[0].Extra["style"])
	assert.Equal(t, "red", g.Nodes[0].Data.Extra["color"])
	assert.Equal(t, "is", g.Edges[0].Label)
	assert.NotNil(t, g.Extra["viewport"])

	assert.Nil(t, (*Graph)(nil).Clone())
}
