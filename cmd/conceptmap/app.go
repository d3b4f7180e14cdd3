package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/concept-map/backend/internal/conceptmap"
	"github.com/concept-map/backend/internal/diagram"
	"github.com/concept-map/backend/internal/layout"
	"github.com/concept-map/backend/internal/logging"
	"github.com/concept-map/backend/internal/models"
	"github.com/concept-map/backend/internal/ranking"
	"github.com/concept-map/backend/internal/submission"
)

// errRejected is returned after the panel has already told the user what
// went wrong.
var errRejected = errors.New("submission failed")

func newApp() *cli.App {
	inputFlags := []cli.Flag{
		&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "text to turn into a concept map"},
		&cli.StringFlag{Name: "text-file", Usage: "read the text from `PATH` (- for stdin)"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "PDF `PATH` used to rank concepts"},
		&cli.StringFlag{Name: "format", Value: string(diagram.FormatJSON), Usage: "output format: json, yaml or dot"},
	}

	return &cli.App{
		Name:    "conceptmap",
		Usage:   "build concept maps from text",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"LOG_LEVEL"}, Usage: "debug, info, warn or error"},
		},
		Commands: []*cli.Command{
			{
				Name:  "submit",
				Usage: "send text and an optional PDF to a concept map endpoint",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "endpoint", Value: submission.DefaultEndpoint, EnvVars: []string{"CONCEPTMAP_ENDPOINT"}, Usage: "endpoint `URL`"},
					&cli.StringFlag{Name: "origin", Usage: "Origin header sent with the request"},
					&cli.DurationFlag{Name: "timeout", Usage: "give up after this long (0 waits indefinitely)"},
				}, inputFlags...),
				Action: submitAction,
			},
			{
				Name:  "generate",
				Usage: "build the concept map locally without a server",
				Flags: append([]cli.Flag{
					&cli.BoolFlag{Name: "require-english", Usage: "reject text that is not English"},
					&cli.IntFlag{Name: "top", Value: ranking.DefaultTopN, Usage: "concepts kept when a PDF is given"},
					&cli.Int64Flag{Name: "seed", Value: layout.DefaultSeed, Usage: "layout seed"},
				}, inputFlags...),
				Action: generateAction,
			},
		},
	}
}

func submitAction(c *cli.Context) error {
	format, text, logger, err := commonInputs(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	client := submission.NewClient(submission.ClientConfig{
		Endpoint: c.String("endpoint"),
		Origin:   c.String("origin"),
		Timeout:  c.Duration("timeout"),
	}, logger)

	store := diagram.NewStore()
	view := diagram.NewView()
	defer view.Attach(store)()

	stderr := c.App.ErrWriter
	panel := submission.NewPanel(client, store,
		submission.WithNotifier(submission.NotifierFunc(func(msg string) {
			fmt.Fprintln(stderr, msg)
		})),
		submission.WithLogger(logger))

	panel.SetText(text)
	if path := c.String("file"); path != "" {
		sel, err := submission.PathSelection(path)
		if err != nil {
			return err
		}
		// The panel has already reported why the file was refused
		if err := panel.SelectFile(sel); err != nil {
			return errRejected
		}
	}

	if _, err := panel.Submit(contextOrBackground(c)); err != nil {
		return errRejected
	}
	return diagram.Write(c.App.Writer, view.Snapshot(), format)
}

func generateAction(c *cli.Context) error {
	format, text, logger, err := commonInputs(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	opts := conceptmap.DefaultOptions()
	opts.RequireEnglish = c.Bool("require-english")
	opts.TopConcepts = c.Int("top")
	opts.Layout.Seed = c.Int64("seed")

	gen, err := conceptmap.NewGenerator(opts, logger)
	if err != nil {
		return err
	}
	res, err := gen.Generate(contextOrBackground(c), conceptmap.Request{Text: text, PDFPath: c.String("file")})
	if err != nil {
		return err
	}
	return diagram.Write(c.App.Writer, snapshotOf(res.Graph), format)
}

func commonInputs(c *cli.Context) (diagram.Format, string, *zap.Logger, error) {
	format, err := diagram.ParseFormat(c.String("format"))
	if err != nil {
		return "", "", nil, err
	}

	text, err := readText(c)
	if err != nil {
		return "", "", nil, err
	}

	logger, err := logging.New(c.String("log-level"), false)
	if err != nil {
		return "", "", nil, err
	}
	return format, text, logger, nil
}

func readText(c *cli.Context) (string, error) {
	path := c.String("text-file")
	if path == "" {
		return c.String("text"), nil
	}
	if c.IsSet("text") {
		return "", errors.New("--text and --text-file are mutually exclusive")
	}

	var r io.Reader = c.App.Reader
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return string(data), nil
}

func snapshotOf(g *models.Graph) diagram.Snapshot {
	store := diagram.NewStore()
	view := diagram.NewView()
	defer view.Attach(store)()
	store.Publish(g)
	return view.Snapshot()
}

func contextOrBackground(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
