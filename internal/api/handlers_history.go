// handlers_history.go - Generated graph history
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/concept-map/backend/internal/diagram"
	"github.com/concept-map/backend/internal/history"
	"github.com/concept-map/backend/internal/models"
)

// HistoryHandlerImpl implements HistoryHandler
type HistoryHandlerImpl struct {
	history HistoryStore
	store   *diagram.Store
}

// NewHistoryHandler creates a new history handler. A nil history store makes
// every endpoint report 503.
func NewHistoryHandler(hist HistoryStore, store *diagram.Store) HistoryHandler {
	return &HistoryHandlerImpl{history: hist, store: store}
}

type graphResponse struct {
	Entry *history.Entry `json:"entry"`
	Graph *models.Graph  `json:"graph"`
}

// HandleRecentGraphs lists recent graphs, newest first
func (h *HistoryHandlerImpl) HandleRecentGraphs(c echo.Context) error {
	if h.history == nil {
		return NewServiceUnavailableError("history is disabled")
	}
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return NewValidationError("limit")
		}
		limit = n
	}

	entries, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to list graphs", err)
	}
	return c.JSON(http.StatusOK, entries)
}

// HandleGetGraph returns one recorded graph
func (h *HistoryHandlerImpl) HandleGetGraph(c echo.Context) error {
	entry, g, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, graphResponse{Entry: entry, Graph: g})
}

// HandleLoadGraph publishes a recorded graph to the diagram, replacing what
// every viewer shows
func (h *HistoryHandlerImpl) HandleLoadGraph(c echo.Context) error {
	_, g, err := h.lookup(c)
	if err != nil {
		return err
	}
	h.store.Publish(g)
	_, rev := h.store.Current()
	return c.JSON(http.StatusOK, diagramResponse{Revision: rev, Graph: g})
}

func (h *HistoryHandlerImpl) lookup(c echo.Context) (*history.Entry, *models.Graph, error) {
	if h.history == nil {
		return nil, nil, NewServiceUnavailableError("history is disabled")
	}
	id := c.Param("id")
	if id == "" {
		return nil, nil, NewValidationError("id")
	}
	entry, g, err := h.history.Get(c.Request().Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		return nil, nil, NewNotFoundError("graph", id)
	}
	if err != nil {
		return nil, nil, NewInternalError("failed to load graph", err)
	}
	return entry, g, nil
}
