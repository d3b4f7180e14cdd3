package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concept-map/backend/internal/diagram"
	"github.com/concept-map/backend/internal/testutil"
)

func runApp(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &stdout
	app.ErrWriter = &stderr
	err := app.Run(append([]string{"conceptmap"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestGenerate(t *testing.T) {
	out, _, err := runApp(t, "", "generate", "--text", "Plants produce oxygen. Animals breathe oxygen.")
	require.NoError(t, err)

	var snap diagram.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Len(t, snap.Nodes, 3)
	assert.Len(t, snap.Edges, 2)
}

func TestGenerate_TextFromStdinAsDOT(t *testing.T) {
	out, _, err := runApp(t, "Plants produce oxygen.", "generate", "--text-file", "-", "--format", "dot")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "digraph conceptmap {"), out)
	assert.Contains(t, out, `"plants" -> "oxygen" [label="produce"];`)
}

func TestGenerate_BadInputs(t *testing.T) {
	_, _, err := runApp(t, "", "generate", "--text", "x", "--format", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = runApp(t, "", "generate", "--text", "x", "--text-file", "-")
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestSubmit(t *testing.T) {
	var gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		gotText = r.FormValue("text")
		_, _, fileErr := r.FormFile("file")
		assert.NoError(t, fileErr)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"graph":{"nodes":[{"id":"a","data":{"label":"a"},"position":{"x":1,"y":2}}],"edges":[]}}`))
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(pdfPath, testutil.BuildPDF("Plants produce oxygen"), 0644))

	out, stderr, err := runApp(t, "", "submit", "--endpoint", srv.URL, "--text", "Plants produce oxygen.", "--file", pdfPath, "--format", "yaml")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Equal(t, "Plants produce oxygen.", gotText)
	assert.Contains(t, out, "revision: 1")
	assert.Contains(t, out, "label: a")
}

func TestSubmit_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, stderr, err := runApp(t, "", "submit", "--endpoint", srv.URL)
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, stderr, "Please enter text")

	_, stderr, err = runApp(t, "", "submit", "--endpoint", srv.URL, "--text", "hello")
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, stderr, "Request failed")

	txtPath := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("plain text"), 0644))
	_, stderr, err = runApp(t, "", "submit", "--endpoint", srv.URL, "--text", "hello", "--file", txtPath)
	assert.ErrorIs(t, err, errRejected)
	assert.Contains(t, stderr, "Only PDF files are allowed")
}
