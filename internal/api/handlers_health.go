// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version string
	history bool
	clients func() int
}

// NewHealthHandler creates a new health handler. clients may be nil.
func NewHealthHandler(version string, historyEnabled bool, clients func() int) HealthHandler {
	return &HealthHandlerImpl{
		version: version,
		history: historyEnabled,
		clients: clients,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"history": h.history,
	}
	if h.clients != nil {
		resp["diagramClients"] = h.clients()
	}
	return c.JSON(http.StatusOK, resp)
}
