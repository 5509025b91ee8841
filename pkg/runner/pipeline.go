package runner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/agilira/go-errors"

	"github.com/CTAG07/tmplr/pkg/ctxfile"
	"github.com/CTAG07/tmplr/pkg/engine"
	"github.com/CTAG07/tmplr/pkg/errcodes"
	"github.com/CTAG07/tmplr/pkg/templating"
)

// Renderer renders one request.
type Renderer interface {
	Render(req templating.Request) (templating.Outcome, error)
}

// Sink receives rendered text.
type Sink interface {
	Emit(text string) error
}

// Report describes one pass of the pipeline, successful or not.
type Report struct {
	Template  string
	Engine    string
	StartedAt time.Time
	Duration  time.Duration
}

// Pipeline is one complete render chain: load the template, resolve its
// context, detect the engine, render and emit. Every pass re-reads the
// template and context files.
type Pipeline struct {
	// TemplatePath is the resolved template path; empty reads Stdin.
	TemplatePath string
	// Stdin is the buffered STDIN template, read once by the caller.
	Stdin string
	// ContextPath is an explicit context file, empty for the fallback cascade.
	ContextPath string
	// Engine forces an engine; engine.Auto lets detection decide.
	Engine engine.Kind
	// Extension is the declared extension / content-type hint.
	Extension string
	// WorkDir is the working directory for STDIN includes; empty means cwd.
	WorkDir string

	Contexts *ctxfile.Resolver
	Renderer Renderer
	Sink     Sink

	logger *slog.Logger
}

// NewPipeline creates a Pipeline with its collaborators.
func NewPipeline(logger *slog.Logger, contexts *ctxfile.Resolver, renderer Renderer, sink Sink) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		Engine:   engine.Auto,
		Contexts: contexts,
		Renderer: renderer,
		Sink:     sink,
		logger:   logger,
	}
}

// Pass runs the chain once.
func (p *Pipeline) Pass(ctx context.Context) (report Report, err error) {
	report = Report{Template: p.displayTemplate(), Engine: p.Engine.String(), StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	if err = ctx.Err(); err != nil {
		return report, err
	}

	src, err := p.load()
	if err != nil {
		return report, err
	}

	doc, err := p.Contexts.Resolve(p.ContextPath, p.TemplatePath)
	if err != nil {
		return report, err
	}

	det := engine.Detect(src, p.Engine, p.Extension)
	report.Engine = det.Kind.String()
	if det.Kind == engine.Unrecognized {
		report.Engine = det.Name
	}
	p.logger.Debug("Detected engine", "engine", det.Name, "template", report.Template, "context", doc.Path)

	outcome, err := p.Renderer.Render(templating.Request{
		Detection:    det,
		Context:      doc.Value,
		TemplatePath: p.TemplatePath,
		Extension:    p.Extension,
		WorkDir:      p.WorkDir,
	})
	if err != nil {
		return report, err
	}

	if err = p.Sink.Emit(outcome.Text); err != nil {
		return report, err
	}
	return report, nil
}

func (p *Pipeline) load() (engine.TemplateSource, error) {
	if p.TemplatePath == "" {
		return engine.TemplateSource{Contents: p.Stdin}, nil
	}
	data, err := os.ReadFile(p.TemplatePath)
	if err != nil {
		return engine.TemplateSource{}, errors.Wrap(err, errcodes.ErrCodeTemplateRead, "failed to read template "+p.TemplatePath+": "+err.Error()).
			WithContext("path", p.TemplatePath)
	}
	return engine.TemplateSource{Contents: string(data), Origin: p.TemplatePath}, nil
}

func (p *Pipeline) displayTemplate() string {
	if p.TemplatePath == "" {
		return "<stdin>"
	}
	return p.TemplatePath
}
