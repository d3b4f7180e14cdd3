// interfaces.go - Handler contracts for the concept map API
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/concept-map/backend/internal/conceptmap"
	"github.com/concept-map/backend/internal/history"
	"github.com/concept-map/backend/internal/models"
	"github.com/concept-map/backend/internal/submission"
	"github.com/concept-map/backend/internal/upload"
)

// BackendHandler serves the concept map generation endpoints
type BackendHandler interface {
	HandleSendData(c echo.Context) error
	HandleSendText(c echo.Context) error
}

// WorkspaceHandler drives the server-side input panel
type WorkspaceHandler interface {
	HandleGetWorkspace(c echo.Context) error
	HandleSetText(c echo.Context) error
	HandleSelectFile(c echo.Context) error
	HandleClearFile(c echo.Context) error
	HandleSubmit(c echo.Context) error
}

// DiagramHandler exposes the canonical graph
type DiagramHandler interface {
	HandleGetDiagram(c echo.Context) error
	HandleGetDiagramMsgpack(c echo.Context) error
}

// HistoryHandler lists and reloads generated graphs
type HistoryHandler interface {
	HandleRecentGraphs(c echo.Context) error
	HandleGetGraph(c echo.Context) error
	HandleLoadGraph(c echo.Context) error
}

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// Generator produces concept graphs
// This allows mocking in tests
type Generator interface {
	Generate(ctx context.Context, req conceptmap.Request) (*conceptmap.Result, error)
}

// HistoryStore records generated graphs
type HistoryStore interface {
	Record(ctx context.Context, source, text string, g *models.Graph) (*history.Entry, error)
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
	Get(ctx context.Context, id string) (*history.Entry, *models.Graph, error)
}

// Workspace is the input panel as the HTTP layer sees it
type Workspace interface {
	State() submission.State
	Rules() upload.Rules
	SetText(text string)
	SelectFile(sel *submission.Selection) error
	ClearFile()
	Submit(ctx context.Context) (*models.Graph, error)
}

var _ Workspace = (*submission.Panel)(nil)
