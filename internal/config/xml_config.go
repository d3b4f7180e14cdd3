// Package config provides XML-based configuration management.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// DefaultFileName is the configuration file looked up next to the binary.
const DefaultFileName = "conceptmap.config.xml"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"ConceptMap"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Input panel submission settings
	Submission SubmissionConfig `xml:"Submission"`

	// Concept extraction and layout
	Extraction ExtractionConfig `xml:"Extraction"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port              int    `xml:"Port" validate:"min=1,max=65535"`
	BindAddress       string `xml:"BindAddress" validate:"required"`
	EnableCORS        bool   `xml:"EnableCORS"`
	AllowOrigins      string `xml:"AllowOrigins"`
	ReadTimeout       int    `xml:"ReadTimeoutSeconds" validate:"min=0"`
	WriteTimeout      int    `xml:"WriteTimeoutSeconds" validate:"min=0"`
	IdleTimeout       int    `xml:"IdleTimeoutSeconds" validate:"min=0"`
	BodyLimit         string `xml:"BodyLimit" validate:"required"`
	EnableCompression bool   `xml:"EnableCompression"`
	CompressionLevel  int    `xml:"CompressionLevel" validate:"min=-1,max=9"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory          string `xml:"DataDirectory" validate:"required"`
	UploadsDirectory       string `xml:"UploadsDirectory" validate:"required"`
	EnableHistory          bool   `xml:"EnableHistory"`
	HistoryDatabase        string `xml:"HistoryDatabase"`
	RetentionHours         int    `xml:"RetentionHours" validate:"min=0"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes" validate:"min=1"`
	DuckDBThreads          int    `xml:"DuckDBThreads" validate:"min=0"`
	DuckDBMemoryLimit      string `xml:"DuckDBMemoryLimit"`
}

// SubmissionConfig configures the input panel and its client
type SubmissionConfig struct {
	Endpoint       string `xml:"Endpoint" validate:"required,url"`
	Origin         string `xml:"Origin" validate:"omitempty,url"`
	MaxFileSize    int64  `xml:"MaxFileSizeBytes" validate:"min=1"`
	TimeoutSeconds int    `xml:"TimeoutSeconds" validate:"min=0"`
	EnableBreaker  bool   `xml:"EnableCircuitBreaker"`
	BreakerTrips   uint32 `xml:"CircuitBreakerFailures" validate:"min=1"`
	BreakerOpenSec int    `xml:"CircuitBreakerOpenSeconds" validate:"min=1"`
}

// ExtractionConfig tunes concept extraction, ranking and layout
type ExtractionConfig struct {
	RequireEnglish   bool    `xml:"RequireEnglish"`
	TopConcepts      int     `xml:"TopConcepts" validate:"min=1"`
	LayoutScale      float64 `xml:"LayoutScale" validate:"gt=0"`
	LayoutIterations int     `xml:"LayoutIterations" validate:"min=1"`
	LayoutSeed       int64   `xml:"LayoutSeed"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel" validate:"omitempty,oneof=debug info warn warning error"`
	DevelopmentLogging   bool   `xml:"DevelopmentLogging"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	EnableMetrics        bool   `xml:"EnableMetrics"`
	WebSocketMaxMessage  int64  `xml:"WebSocketMaxMessageSizeKB" validate:"min=1"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              5000,
			BindAddress:       "127.0.0.1",
			EnableCORS:        true,
			AllowOrigins:      "*",
			ReadTimeout:       60,
			WriteTimeout:      120,
			IdleTimeout:       120,
			BodyLimit:         "10M",
			EnableCompression: true,
			CompressionLevel:  5,
		},
		Storage: StorageConfig{
			DataDirectory:          "./data",
			UploadsDirectory:       "./data/uploads",
			EnableHistory:          true,
			HistoryDatabase:        "./data/history.duckdb",
			RetentionHours:         24 * 7,
			CleanupIntervalMinutes: 30,
			DuckDBThreads:          2,
			DuckDBMemoryLimit:      "256MB",
		},
		Submission: SubmissionConfig{
			Endpoint:       "http://127.0.0.1:5000/send-data",
			Origin:         "http://localhost:3000",
			MaxFileSize:    5 * 1024 * 1024,
			TimeoutSeconds: 0,
			EnableBreaker:  false,
			BreakerTrips:   5,
			BreakerOpenSec: 60,
		},
		Extraction: ExtractionConfig{
			RequireEnglish:   false,
			TopConcepts:      15,
			LayoutScale:      1000,
			LayoutIterations: 50,
			LayoutSeed:       42,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			EnableMetrics:        true,
			WebSocketMaxMessage:  64,
		},
	}
}

// LoadConfig loads configuration from XML file, writing the defaults on
// first run.
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Concept Map Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves every storage path under the new root
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads")
		c.Storage.HistoryDatabase = filepath.Join(dataDir, "history.duckdb")
	}

	if endpoint := os.Getenv("CONCEPTMAP_ENDPOINT"); endpoint != "" {
		c.Submission.Endpoint = endpoint
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if c.Storage.HistoryDatabase != "" && !filepath.IsAbs(c.Storage.HistoryDatabase) {
		c.Storage.HistoryDatabase = filepath.Join(configDir, c.Storage.HistoryDatabase)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// SubmissionTimeout is zero when submissions may wait indefinitely.
func (c *AppConfig) SubmissionTimeout() time.Duration {
	return time.Duration(c.Submission.TimeoutSeconds) * time.Second
}

// Retention returns how long uploads and history entries are kept.
func (c *AppConfig) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionHours) * time.Hour
}

// CleanupInterval returns the period of the retention sweep.
func (c *AppConfig) CleanupInterval() time.Duration {
	return time.Duration(c.Storage.CleanupIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
