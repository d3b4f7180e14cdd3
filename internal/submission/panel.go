// Package submission implements the input panel: the text and file the user
// has entered, their validation, and the single outstanding request that turns
// them into a graph.
package submission

import (
	"context"
	"fmt"
	"sync"

	"github.com/concept-map/backend/internal/models"
	"github.com/concept-map/backend/internal/upload"
	"go.uber.org/zap"
)

// Sender delivers a submission to the concept map endpoint.
type Sender interface {
	SendData(ctx context.Context, text string, file *Selection) (*models.Graph, error)
}

// GraphSink receives graphs produced by successful submissions.
type GraphSink interface {
	Publish(g *models.Graph)
}

// Notifier surfaces messages to the user.
type Notifier interface {
	Alert(message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Alert(message string) { f(message) }

// State is a snapshot of the panel.
type State struct {
	Text    string     `json:"text"`
	File    *FileState `json:"file"`
	Loading bool       `json:"loading"`
}

// Panel owns the submission state. All mutation goes through its methods.
type Panel struct {
	mu      sync.Mutex
	text    string
	file    *Selection
	loading bool

	rules    upload.Rules
	sender   Sender
	sink     GraphSink
	notifier Notifier
	observer func(State)
	logger   *zap.Logger
}

// Option configures a Panel.
type Option func(*Panel)

// WithRules overrides the attachment rules.
func WithRules(r upload.Rules) Option {
	return func(p *Panel) { p.rules = r }
}

// WithNotifier sets where user-facing alerts go.
func WithNotifier(n Notifier) Option {
	return func(p *Panel) { p.notifier = n }
}

// WithLogger sets the panel logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Panel) { p.logger = l }
}

// WithStateObserver registers a callback invoked after every state change.
func WithStateObserver(fn func(State)) Option {
	return func(p *Panel) { p.observer = fn }
}

// NewPanel creates an idle panel with empty text and no file.
func NewPanel(sender Sender, sink GraphSink, opts ...Option) *Panel {
	p := &Panel{
		rules:  upload.DefaultRules(),
		sender: sender,
		sink:   sink,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("submission")
	return p
}

// State returns the current panel state.
func (p *Panel) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Panel) stateLocked() State {
	return State{Text: p.text, File: p.file.state(), Loading: p.loading}
}

// Rules returns the attachment rules in effect.
func (p *Panel) Rules() upload.Rules {
	return p.rules
}

// Busy reports whether submit is currently disabled.
func (p *Panel) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// SetText replaces the text.
func (p *Panel) SetText(text string) {
	p.mu.Lock()
	p.text = text
	st := p.stateLocked()
	p.mu.Unlock()
	p.emit(st)
}

// SelectFile attaches sel after validating it against the rules. A rejected
// selection leaves the previously attached file in place.
func (p *Panel) SelectFile(sel *Selection) error {
	if sel == nil {
		p.ClearFile()
		return nil
	}
	if err := p.rules.Check(sel.MimeType, sel.Size); err != nil {
		p.logger.Info("file rejected",
			zap.String("name", sel.Name),
			zap.String("mimeType", sel.MimeType),
			zap.Int64("size", sel.Size),
			zap.Error(err))
		p.alert(err)
		return err
	}

	p.mu.Lock()
	p.file = sel
	st := p.stateLocked()
	p.mu.Unlock()
	p.emit(st)
	return nil
}

// ClearFile drops the attached file, if any.
func (p *Panel) ClearFile() {
	p.mu.Lock()
	p.file = nil
	st := p.stateLocked()
	p.mu.Unlock()
	p.emit(st)
}

// Submit sends the current text and file. It returns ErrBusy without doing
// anything while another submission is outstanding, and ErrEmptyText without
// touching the network when there is no text. On success the graph is
// published to the sink and the file is cleared; on failure the sink is not
// touched. Submit is enabled again on every path.
func (p *Panel) Submit(ctx context.Context) (*models.Graph, error) {
	p.mu.Lock()
	if p.loading {
		p.mu.Unlock()
		return nil, ErrBusy
	}
	if p.text == "" {
		p.mu.Unlock()
		p.alert(ErrEmptyText)
		return nil, ErrEmptyText
	}
	text, file := p.text, p.file
	p.loading = true
	st := p.stateLocked()
	p.mu.Unlock()
	p.emit(st)

	succeeded := false
	defer func() {
		p.mu.Lock()
		p.loading = false
		if succeeded {
			p.file = nil
		}
		st := p.stateLocked()
		p.mu.Unlock()
		p.emit(st)
	}()

	graph, err := p.sender.SendData(ctx, text, file)
	if err == nil && graph == nil {
		err = fmt.Errorf("%w: missing graph", ErrMalformedResponse)
	}
	if err != nil {
		p.logger.Warn("submission failed", zap.Error(err))
		p.alert(err)
		return nil, err
	}

	p.logger.Info("submission completed",
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)),
		zap.Bool("withFile", file != nil))

	if p.sink != nil {
		p.sink.Publish(graph)
	}
	succeeded = true
	return graph, nil
}

func (p *Panel) alert(err error) {
	if p.notifier == nil {
		return
	}
	p.notifier.Alert(UserMessage(err, p.rules))
}

func (p *Panel) emit(st State) {
	if p.observer != nil {
		p.observer(st)
	}
}
