// Package history keeps generated concept graphs in DuckDB so they can be
// listed and reloaded into the diagram.
package history

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/models"
)

// ErrNotFound is returned for unknown graph ids.
var ErrNotFound = errors.New("graph not found")

// Sources of recorded graphs.
const (
	SourceSendData = "send-data"
	SourceSendText = "send-text"
)

const previewLength = 120

// Entry is the listing view of a recorded graph.
type Entry struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	Source      string    `json:"source"`
	TextPreview string    `json:"textPreview"`
	NodeCount   int       `json:"nodeCount"`
	EdgeCount   int       `json:"edgeCount"`
}

// Options tunes the DuckDB connection.
type Options struct {
	// Path of the database file; empty opens an in-memory database.
	Path        string
	Threads     int
	MemoryLimit string
}

// Store records graphs in a DuckDB table.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open creates the database and its table if needed.
func Open(opts Options, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Path != "" {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	pragmas := []string{"PRAGMA enable_progress_bar=false"}
	if opts.Threads > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA threads=%d", opts.Threads))
	}
	if opts.MemoryLimit != "" {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit))
	}

	connector, err := duckdb.NewConnector(opts.Path, func(execer driver.ExecerContext) error {
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				logger.Warn("DuckDB pragma failed", zap.String("pragma", pragma), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS graphs (
			id           VARCHAR PRIMARY KEY,
			created_at   TIMESTAMP NOT NULL,
			source       VARCHAR NOT NULL,
			text_preview VARCHAR,
			node_count   INTEGER NOT NULL,
			edge_count   INTEGER NOT NULL,
			payload      BLOB NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	logger.Info("History store ready", zap.String("path", displayPath(opts.Path)))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a graph produced from text.
func (s *Store) Record(ctx context.Context, source, text string, g *models.Graph) (*Entry, error) {
	if g == nil {
		return nil, errors.New("nil graph")
	}
	payload, err := msgpack.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding graph: %w", err)
	}

	e := &Entry{
		ID:          uuid.New().String(),
		CreatedAt:   s.now().UTC(),
		Source:      source,
		TextPreview: preview(text),
		NodeCount:   len(g.Nodes),
		EdgeCount:   len(g.Edges),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graphs (id, created_at, source, text_preview, node_count, edge_count, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt, e.Source, e.TextPreview, e.NodeCount, e.EdgeCount, payload)
	if err != nil {
		return nil, fmt.Errorf("inserting graph: %w", err)
	}
	return e, nil
}

// Recent lists the newest entries first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, created_at, source, COALESCE(text_preview, ''), node_count, edge_count
		 FROM graphs ORDER BY created_at DESC LIMIT %d`, limit))
	if err != nil {
		return nil, fmt.Errorf("querying graphs: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Source, &e.TextPreview, &e.NodeCount, &e.EdgeCount); err != nil {
			return nil, fmt.Errorf("scanning graph: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns an entry and its decoded graph.
func (s *Store) Get(ctx context.Context, id string) (*Entry, *models.Graph, error) {
	var (
		e       Entry
		payload []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, source, COALESCE(text_preview, ''), node_count, edge_count, payload
		 FROM graphs WHERE id = ?`, id).
		Scan(&e.ID, &e.CreatedAt, &e.Source, &e.TextPreview, &e.NodeCount, &e.EdgeCount, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying graph: %w", err)
	}

	var g models.Graph
	if err := msgpack.Unmarshal(payload, &g); err != nil {
		return nil, nil, fmt.Errorf("decoding graph %s: %w", id, err)
	}
	return &e, &g, nil
}

// Cleanup removes entries older than maxAge.
func (s *Store) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-maxAge)
	res, err := s.db.ExecContext(ctx, `DELETE FROM graphs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting old graphs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted graphs: %w", err)
	}
	if n > 0 {
		s.logger.Info("Removed old graphs from history", zap.Int64("count", n))
	}
	return n, nil
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	r := []rune(text)
	return string(r[:previewLength]) + "…"
}

func displayPath(p string) string {
	if p == "" {
		return ":memory:"
	}
	return p
}
