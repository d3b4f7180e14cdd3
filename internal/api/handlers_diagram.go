// handlers_diagram.go - Canonical graph endpoints
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/concept-map/backend/internal/diagram"
	"github.com/concept-map/backend/internal/models"
)

// DiagramHandlerImpl implements DiagramHandler
type DiagramHandlerImpl struct {
	store *diagram.Store
}

// NewDiagramHandler creates a new diagram handler
func NewDiagramHandler(store *diagram.Store) DiagramHandler {
	return &DiagramHandlerImpl{store: store}
}

type diagramResponse struct {
	Revision uint64        `json:"revision" msgpack:"revision"`
	Graph    *models.Graph `json:"graph" msgpack:"graph"`
}

// HandleGetDiagram returns the canonical graph. Graph is null until the first
// publication.
func (h *DiagramHandlerImpl) HandleGetDiagram(c echo.Context) error {
	g, rev := h.store.Current()
	return c.JSON(http.StatusOK, diagramResponse{Revision: rev, Graph: g})
}

// HandleGetDiagramMsgpack returns the canonical graph MessagePack-encoded
func (h *DiagramHandlerImpl) HandleGetDiagramMsgpack(c echo.Context) error {
	g, rev := h.store.Current()
	data, err := msgpack.Marshal(diagramResponse{Revision: rev, Graph: g})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}
