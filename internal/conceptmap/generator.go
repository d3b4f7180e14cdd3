// Package conceptmap turns submitted text, optionally weighted by a reference
// PDF, into a laid-out concept graph.
package conceptmap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/extract"
	"github.com/concept-map/backend/internal/layout"
	"github.com/concept-map/backend/internal/models"
	"github.com/concept-map/backend/internal/pdftext"
	"github.com/concept-map/backend/internal/ranking"
)

// Options configures a Generator.
type Options struct {
	RequireEnglish bool
	TopConcepts    int
	Layout         layout.Options
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		TopConcepts: ranking.DefaultTopN,
		Layout: layout.Options{
			Scale:      layout.DefaultScale,
			Iterations: layout.DefaultIterations,
			Seed:       layout.DefaultSeed,
		},
	}
}

// Request is one generation job. PDFPath is empty when no document was sent.
type Request struct {
	Text    string
	PDFPath string
}

// Result is the outcome of a generation.
type Result struct {
	Graph    *models.Graph
	Triples  []models.Triple
	Concepts []ranking.Concept
	Duration time.Duration
}

// Generator runs extraction, ranking and layout.
type Generator struct {
	extractor *extract.Extractor
	opts      Options
	logger    *zap.Logger
}

// NewGenerator creates a generator with the embedded lexicon.
func NewGenerator(opts Options, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopConcepts <= 0 {
		opts.TopConcepts = ranking.DefaultTopN
	}

	var extractOpts []extract.Option
	if opts.RequireEnglish {
		extractOpts = append(extractOpts, extract.WithGuard(extract.NewLanguageGuard()))
	}
	ex, err := extract.New(extractOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating extractor: %w", err)
	}
	return &Generator{extractor: ex, opts: opts, logger: logger}, nil
}

// Generate builds the concept graph for req. Empty text yields an empty
// graph; a PDF restricts the graph to the concepts it ranks highest.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	var triples []models.Triple
	if req.Text != "" {
		var err error
		triples, err = g.extractor.Extract(req.Text)
		if err != nil && !errors.Is(err, extract.ErrNoText) {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var concepts []ranking.Concept
	if req.PDFPath != "" {
		docText, err := pdftext.ExtractFile(req.PDFPath)
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stop := g.extractor.Lexicon().IsStopword
		tokens := ranking.RankTokens(g.extractor.NounPhrases(docText), stop)
		concepts = ranking.RankConcepts(g.extractor.NounPhrases(req.Text), tokens, stop)
		before := len(triples)
		triples = ranking.FilterConceptMap(triples, concepts, g.opts.TopConcepts)

		g.logger.Debug("Filtered concept map by document ranking",
			zap.Int("tokens", len(tokens)),
			zap.Int("concepts", len(concepts)),
			zap.Int("triples_before", before),
			zap.Int("triples_after", len(triples)))
	}

	graph := layout.Build(triples, g.opts.Layout)
	res := &Result{
		Graph:    graph,
		Triples:  triples,
		Concepts: concepts,
		Duration: time.Since(start),
	}
	g.logger.Info("Generated concept map",
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)),
		zap.Bool("with_document", req.PDFPath != ""),
		zap.Duration("duration", res.Duration))
	return res, nil
}
