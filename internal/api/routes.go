// routes.go - Wiring of the backend, workspace, diagram and history routes
// onto one Echo instance, plus the shared middleware stack
package api

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/diagram"
	"github.com/concept-map/backend/internal/metrics"
	"github.com/concept-map/backend/internal/storage"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Generator   Generator
	Store       storage.Store
	History     HistoryStore // nil when history is disabled
	Workspace   Workspace
	Diagram     *diagram.Store
	Hub         *DiagramHub
	Metrics     *metrics.Collector
	Endpoint    string
	MaxFileSize int64
	Version     string
	Logger      *zap.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Backend   BackendHandler
	Workspace WorkspaceHandler
	Diagram   DiagramHandler
	History   HistoryHandler
	Hub       *DiagramHub
	Metrics   *metrics.Collector
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var clients func() int
	if deps.Hub != nil {
		clients = deps.Hub.Clients
	}

	return &Handlers{
		Health:    NewHealthHandler(deps.Version, deps.History != nil, clients),
		Backend:   NewBackendHandler(deps.Generator, deps.Store, deps.History, deps.Metrics, deps.MaxFileSize, logger),
		Workspace: NewWorkspaceHandler(deps.Workspace, deps.Endpoint, deps.Metrics, logger),
		Diagram:   NewDiagramHandler(deps.Diagram),
		History:   NewHistoryHandler(deps.History, deps.Diagram),
		Hub:       deps.Hub,
		Metrics:   deps.Metrics,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	// Health check
	e.GET("/api/health", handlers.Health.HandleHealth)

	// Concept map backend, same paths the browser client posts to
	e.POST("/send-data", handlers.Backend.HandleSendData)
	e.POST("/send-text", handlers.Backend.HandleSendText)

	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics.Handler()))
	}

	// Input panel routes
	workspaceGroup := e.Group("/api/workspace")
	workspaceGroup.GET("", handlers.Workspace.HandleGetWorkspace)
	workspaceGroup.PUT("/text", handlers.Workspace.HandleSetText)
	workspaceGroup.POST("/file", handlers.Workspace.HandleSelectFile)
	workspaceGroup.DELETE("/file", handlers.Workspace.HandleClearFile)
	workspaceGroup.POST("/submit", handlers.Workspace.HandleSubmit)

	// Diagram routes
	diagramGroup := e.Group("/api/diagram")
	diagramGroup.GET("", handlers.Diagram.HandleGetDiagram)
	diagramGroup.GET("/msgpack", handlers.Diagram.HandleGetDiagramMsgpack)

	// History routes
	graphGroup := e.Group("/api/graphs")
	graphGroup.GET("/recent", handlers.History.HandleRecentGraphs)
	graphGroup.GET("/:id", handlers.History.HandleGetGraph)
	graphGroup.POST("/:id/load", handlers.History.HandleLoadGraph)

	RegisterWebSocketRoutes(e, handlers)
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	if handlers.Hub != nil {
		e.GET("/api/ws/diagram", handlers.Hub.HandleWebSocket)
	}
}

// MiddlewareOptions configures SetupMiddleware
type MiddlewareOptions struct {
	CORSOrigins    []string
	BodyLimit      string
	Compression    bool
	RequestLogging bool
	Metrics        *metrics.Collector
	Logger         *zap.Logger
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, opts MiddlewareOptions) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.Recover())

	if opts.RequestLogging && opts.Logger != nil {
		e.Use(RequestLogger(opts.Logger))
	}

	if opts.Metrics != nil {
		e.Use(opts.Metrics.Middleware())
	}

	if len(opts.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	if opts.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: 5,
			Skipper: func(c echo.Context) bool {
				// Websocket upgrades cannot be gzipped
				return c.Path() == "/api/ws/diagram"
			},
		}))
	}

	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}
}

// RequestLogger routes echo's request log into zap
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	logger = logger.Named("http")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency.Round(time.Microsecond)),
				zap.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Info("Request", fields...)
			return nil
		},
	})
}
