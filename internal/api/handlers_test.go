package api

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concept-map/backend/internal/conceptmap"
	"github.com/concept-map/backend/internal/history"
	"github.com/concept-map/backend/internal/models"
	"github.com/concept-map/backend/internal/testutil"
)

type mockGenerator struct {
	mu    sync.Mutex
	graph *models.Graph
	err   error
	reqs  []conceptmap.Request
}

func (m *mockGenerator) Generate(ctx context.Context, req conceptmap.Request) (*conceptmap.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &conceptmap.Result{Graph: m.graph}, nil
}

type mockHistory struct {
	mu      sync.Mutex
	entries []history.Entry
	graphs  map[string]*models.Graph
}

func newMockHistory() *mockHistory {
	return &mockHistory{graphs: make(map[string]*models.Graph)}
}

func (m *mockHistory) Record(ctx context.Context, source, text string, g *models.Graph) (*history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := history.Entry{
		ID:          "g" + string(rune('0'+len(m.entries))),
		Source:      source,
		TextPreview: text,
		NodeCount:   len(g.Nodes),
		EdgeCount:   len(g.Edges),
	}
	m.entries = append(m.entries, e)
	m.graphs[e.ID] = g
	return &e, nil
}

func (m *mockHistory) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]history.Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *mockHistory) Get(ctx context.Context, id string) (*history.Entry, *models.Graph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.entries {
		if m.entries[i].ID == id {
			e := m.entries[i]
			return &e, m.graphs[id], nil
		}
	}
	return nil, nil, history.ErrNotFound
}

func sampleGraph() *models.Graph {
	return &models.Graph{
		Nodes: []models.Node{
			{ID: "plants", Data: models.NodeData{Label: "plants"}, Position: models.Position{X: -500, Y: 0}},
			{ID: "oxygen", Data: models.NodeData{Label: "oxygen"}, Position: models.Position{X: 500, Y: 0}},
		},
		Edges: []models.Edge{
			{ID: "plants-oxygen", Source: "plants", Target: "oxygen", Label: "produce", Animated: true},
		},
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHandleSendText(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		genErr     error
		wantStatus int
		wantBody   string
	}{
		{"success", `{"text":"Plants produce oxygen."}`, nil, http.StatusOK, `"success":true`},
		{"empty text", `{"text":""}`, nil, http.StatusBadRequest, `"error":"text is required"`},
		{"malformed body", `{"text":`, nil, http.StatusBadRequest, `"error"`},
		{"generator failure", `{"text":"Plants produce oxygen."}`, errors.New("boom"), http.StatusInternalServerError, `{"error":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			gen := &mockGenerator{graph: sampleGraph(), err: tt.genErr}
			hist := newMockHistory()
			h := NewBackendHandler(gen, testutil.NewMockStorage(t.TempDir()), hist, nil, 0, nil)

			req := httptest.NewRequest(http.MethodPost, "/send-text", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, h.HandleSendText(c))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)

			if tt.wantStatus == http.StatusOK {
				require.Len(t, hist.entries, 1)
				assert.Equal(t, history.SourceSendText, hist.entries[0].Source)
				assert.Contains(t, rec.Body.String(), `"id":"plants-oxygen"`)
			} else {
				assert.Empty(t, hist.entries)
			}
		})
	}
}

func TestHandleSendData_WithPDF(t *testing.T) {
	e := echo.New()
	gen := &mockGenerator{graph: sampleGraph()}
	store := testutil.NewMockStorage(t.TempDir())
	h := NewBackendHandler(gen, store, nil, nil, 0, nil)

	body, contentType := multipartBody(t,
		map[string]string{"text": "Plants produce oxygen."},
		"notes.pdf", testutil.BuildPDF("Plants produce oxygen"))

	req := httptest.NewRequest(http.MethodPost, "/send-data", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleSendData(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "Plants produce oxygen.", gen.reqs[0].Text)
	assert.NotEmpty(t, gen.reqs[0].PDFPath)
	assert.Equal(t, 1, store.SaveCalls())

	files, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, models.FileStatusProcessed, files[0].Status)
}

func TestHandleSendData_TextOnly(t *testing.T) {
	e := echo.New()
	gen := &mockGenerator{graph: sampleGraph()}
	store := testutil.NewMockStorage(t.TempDir())
	h := NewBackendHandler(gen, store, nil, nil, 0, nil)

	body, contentType := multipartBody(t, map[string]string{"text": "Plants produce oxygen."}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/send-data", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleSendData(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, gen.reqs, 1)
	assert.Empty(t, gen.reqs[0].PDFPath)
	assert.Equal(t, 0, store.SaveCalls())
}

func TestHandleSendData_RejectsDocuments(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		maxSize  int64
		wantErr  string
	}{
		{"not a pdf", "notes.txt", []byte("just some text"), 0, "unsupported file type"},
		{"too large", "notes.pdf", testutil.BuildPDF("hello"), 16, "file too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			gen := &mockGenerator{graph: sampleGraph()}
			store := testutil.NewMockStorage(t.TempDir())
			h := NewBackendHandler(gen, store, nil, nil, tt.maxSize, nil)

			body, contentType := multipartBody(t, map[string]string{"text": "x"}, tt.fileName, tt.data)
			req := httptest.NewRequest(http.MethodPost, "/send-data", body)
			req.Header.Set(echo.HeaderContentType, contentType)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, h.HandleSendData(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantErr)
			assert.Empty(t, gen.reqs)
			assert.Equal(t, 0, store.GetFileCount())
		})
	}
}

func TestHandleSendData_RealGenerator(t *testing.T) {
	e := echo.New()
	gen, err := conceptmap.NewGenerator(conceptmap.DefaultOptions(), nil)
	require.NoError(t, err)
	h := NewBackendHandler(gen, testutil.NewMockStorage(t.TempDir()), nil, nil, 0, nil)

	body, contentType := multipartBody(t, map[string]string{"text": ""}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/send-data", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleSendData(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"graph":{"nodes":[],"edges":[]}}`, rec.Body.String())
}

func TestHealthHandler(t *testing.T) {
	e := echo.New()
	h := NewHealthHandler("1.2.3", true, func() int { return 2 })

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.HandleHealth(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3","history":true,"diagramClients":2}`, rec.Body.String())
}
