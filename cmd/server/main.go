package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/api"
	"github.com/concept-map/backend/internal/conceptmap"
	"github.com/concept-map/backend/internal/config"
	"github.com/concept-map/backend/internal/diagram"
	"github.com/concept-map/backend/internal/history"
	"github.com/concept-map/backend/internal/layout"
	"github.com/concept-map/backend/internal/logging"
	"github.com/concept-map/backend/internal/metrics"
	"github.com/concept-map/backend/internal/storage"
	"github.com/concept-map/backend/internal/submission"
	"github.com/concept-map/backend/internal/upload"
	"github.com/concept-map/backend/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Get the executable's directory for config resolution
	exePath, err := os.Executable()
	if err != nil {
		fmt.Printf("Failed to get executable path: %v\n", err)
		os.Exit(1)
	}
	configPath := os.Getenv("CONCEPTMAP_CONFIG")
	if configPath == "" {
		configPath = filepath.Join(filepath.Dir(exePath), config.DefaultFileName)
	}

	// Load XML configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Advanced.LogLevel, cfg.Advanced.DevelopmentLogging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	api.ShowErrorDetails = cfg.Advanced.DevelopmentLogging

	if err := run(cfg, configPath, logger); err != nil {
		logger.Error("Server stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, configPath string, logger *zap.Logger) error {
	// Ensure all data directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	embeddedMode := web.HasEmbeddedFiles()

	// Initialize storage
	fileStore, err := storage.NewLocalStore(cfg.GetUploadDir())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	var collector *metrics.Collector
	if cfg.Advanced.EnableMetrics {
		collector = metrics.NewCollector("conceptmap")
	}

	// History is optional; the handlers need a nil interface when it is off
	var hist api.HistoryStore
	var historyStore *history.Store
	if cfg.Storage.EnableHistory {
		historyStore, err = history.Open(history.Options{
			Path:        cfg.Storage.HistoryDatabase,
			Threads:     cfg.Storage.DuckDBThreads,
			MemoryLimit: cfg.Storage.DuckDBMemoryLimit,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer historyStore.Close()
		hist = historyStore
	}

	generator, err := conceptmap.NewGenerator(conceptmap.Options{
		RequireEnglish: cfg.Extraction.RequireEnglish,
		TopConcepts:    cfg.Extraction.TopConcepts,
		Layout: layout.Options{
			Scale:      cfg.Extraction.LayoutScale,
			Iterations: cfg.Extraction.LayoutIterations,
			Seed:       cfg.Extraction.LayoutSeed,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize generator: %w", err)
	}

	// Diagram and the input panel that feeds it
	diagramStore := diagram.NewStore()
	hub := api.NewDiagramHub(diagramStore, cfg.Advanced.WebSocketMaxMessage*1024, collector, logger)
	defer hub.Close()

	clientCfg := submission.ClientConfig{
		Endpoint: cfg.Submission.Endpoint,
		Origin:   cfg.Submission.Origin,
		Timeout:  cfg.SubmissionTimeout(),
	}
	if cfg.Submission.EnableBreaker {
		bc := submission.DefaultBreakerConfig("conceptmap-endpoint")
		bc.MinRequests = cfg.Submission.BreakerTrips
		bc.Timeout = time.Duration(cfg.Submission.BreakerOpenSec) * time.Second
		clientCfg.Breaker = &bc
	}
	client := submission.NewClient(clientCfg, logger)

	rules := upload.Rules{AllowedMimeType: upload.PDFMimeType, MaxSize: cfg.Submission.MaxFileSize}
	panel := submission.NewPanel(client, diagramStore,
		submission.WithRules(rules),
		submission.WithNotifier(hub),
		submission.WithLogger(logger))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, api.MiddlewareOptions{
		CORSOrigins:    corsOrigins(cfg),
		BodyLimit:      cfg.Server.BodyLimit,
		Compression:    cfg.Server.EnableCompression,
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		Metrics:        collector,
		Logger:         logger,
	})

	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Generator:   generator,
		Store:       fileStore,
		History:     hist,
		Workspace:   panel,
		Diagram:     diagramStore,
		Hub:         hub,
		Metrics:     collector,
		Endpoint:    client.Endpoint(),
		MaxFileSize: cfg.Submission.MaxFileSize,
		Version:     Version,
		Logger:      logger,
	}))

	// Register embedded frontend if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			logger.Warn("Failed to register static routes", zap.Error(err))
		} else {
			logger.Info("Serving embedded frontend from binary")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go cleanupLoop(ctx, cfg, fileStore, historyStore, logger)

	// Configure server with settings from XML config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(cfg, configPath, embeddedMode, client.Endpoint())

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.StartServer(s)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	return e.Shutdown(shutdownCtx)
}

// cleanupLoop drops uploads and history entries older than the retention
// period. A zero retention keeps everything.
func cleanupLoop(ctx context.Context, cfg *config.AppConfig, files storage.Store, hist *history.Store, logger *zap.Logger) {
	maxAge := cfg.Retention()
	if maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.CleanupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := files.Cleanup(maxAge); err != nil {
				logger.Warn("Upload cleanup failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("Removed expired uploads", zap.Int("count", n))
			}
			if hist == nil {
				continue
			}
			if n, err := hist.Cleanup(ctx, maxAge); err != nil {
				logger.Warn("History cleanup failed", zap.Error(err))
			} else if n > 0 {
				logger.Info("Removed expired graphs", zap.Int64("count", n))
			}
		}
	}
}

func corsOrigins(cfg *config.AppConfig) []string {
	if !cfg.Server.EnableCORS {
		return nil
	}
	origins := strings.Split(cfg.Server.AllowOrigins, ",")
	out := origins[:0]
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func printBanner(cfg *config.AppConfig, configPath string, embeddedMode bool, endpoint string) {
	mode := "API only"
	if embeddedMode {
		mode = "Embedded page"
	}
	historyPath := "disabled"
	if cfg.Storage.EnableHistory {
		historyPath = cfg.Storage.HistoryDatabase
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Concept Map Server                              ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Endpoint:  %-46s║\n", endpoint)
	fmt.Printf("║  Data Dir:  %-46s║\n", cfg.GetDataDir())
	fmt.Printf("║  History:   %-46s║\n", historyPath)
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embeddedMode {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}
