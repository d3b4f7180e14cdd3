package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/concept-map/backend/internal/upload"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DefaultEndpoint(t *testing.T) {
	c := NewClient(ClientConfig{}, nil)
	assert.Equal(t, "http://127.0.0.1:5000/send-data", c.Endpoint())
}

func TestClient_SendData_Headers(t *testing.T) {
	var origin, accept, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin = r.Header.Get("Origin")
		accept = r.Header.Get("Accept")
		method = r.Method
		w.Write([]byte(twoNodeResponse))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL, Origin: "http://localhost:3000"}, nil)
	graph, err := c.SendData(context.Background(), "text", nil)
	require.NoError(t, err)

	assert.Len(t, graph.Nodes, 2)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "http://localhost:3000", origin)
	assert.Equal(t, "application/json", accept)
}

// flaskResponse mirrors what the graph backend sends: animated as a string
// and widget fields the diagram does not interpret.
const flaskResponse = `{"success": true, "graph": {
	"nodes": [
		{"id": "plants", "data": {"label": "plants", "color": "#2a9d8f"}, "position": {"x": -500, "y": 0}, "style": {"width": 120}},
		{"id": "oxygen", "data": {"label": "oxygen"}, "position": {"x": 500, "y": 0}}
	],
	"edges": [
		{"id": "plants-oxygen", "source": "plants", "target": "oxygen", "label": "produce", "animated": "true", "markerEnd": {"type": "arrowclosed"}}
	]
}}`

func TestClient_SendData_PassesGraphThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(flaskResponse))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{Endpoint: srv.URL}, nil)
	graph, err := c.SendData(context.Background(), "Plants produce oxygen.", nil)
	require.NoError(t, err)

	require.Len(t, graph.Edges, 1)
	assert.True(t, graph.Edges[0].Animated)
	assert.Equal(t, map[string]interface{}{"type": "arrowclosed"}, graph.Edges[0].Extra["markerEnd"])
	require.Len(t, graph.Nodes, 2)
	assert.Equal(t, "plants", graph.Nodes[0].Data.Label)
	assert.Equal(t, "#2a9d8f", graph.Nodes[0].Data.Extra["color"])

	out, err := json.Marshal(graph)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nodes": [
			{"id": "plants", "data": {"label": "plants", "color": "#2a9d8f"}, "position": {"x": -500, "y": 0}, "style": {"width": 120}},
			{"id": "oxygen", "data": {"label": "oxygen"}, "position": {"x": 500, "y": 0}}
		],
		"edges": [
			{"id": "plants-oxygen", "source": "plants", "target": "oxygen", "label": "produce", "animated": true, "markerEnd": {"type": "arrowclosed"}}
		]
	}`, string(out))
}

func TestClient_SendData_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := NewClient(ClientConfig{Endpoint: srv.URL}, nil)
	_, err := c.SendData(ctx, "text", nil)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Breaker(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	bc := DefaultBreakerConfig("test")
	bc.MinRequests = 2
	bc.FailureThreshold = 0.5
	c := NewClient(ClientConfig{Endpoint: srv.URL, Breaker: &bc}, nil)

	for i := 0; i < 2; i++ {
		_, err := c.SendData(context.Background(), "text", nil)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.Code)
	}

	_, err := c.SendData(context.Background(), "text", nil)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker does not call the endpoint")
}

func TestIsBreakerSuccess(t *testing.T) {
	assert.True(t, isBreakerSuccess(nil))
	assert.True(t, isBreakerSuccess(ErrMalformedResponse))
	assert.True(t, isBreakerSuccess(&StatusError{Code: 400}))
	assert.False(t, isBreakerSuccess(&StatusError{Code: 503}))
	assert.False(t, isBreakerSuccess(&TransportError{Err: context.Canceled}))
}

func TestUserMessage(t *testing.T) {
	rules := upload.DefaultRules()
	assert.Equal(t, "", UserMessage(nil, rules))
	assert.Equal(t, "Please enter text", UserMessage(ErrEmptyText, rules))
	assert.Equal(t, "Request failed: 502 Bad Gateway", UserMessage(&StatusError{Code: 502}, rules))
	assert.Equal(t, "File size must be 64KB or less",
		UserMessage(upload.ErrFileTooLarge, upload.Rules{MaxSize: 64 * 1024}))
}
