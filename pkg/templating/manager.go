package templating

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/go-errors"

	"github.com/CTAG07/tmplr/pkg/engine"
	"github.com/CTAG07/tmplr/pkg/errcodes"
)

// defaultExtension is the effective extension when neither a hint nor a
// template file supplies one.
const defaultExtension = "html"

// Request is one render of a detected template against a context.
type Request struct {
	// Detection is the engine choice and the content to render.
	Detection engine.Detection
	// Context is the decoded JSON context.
	Context any
	// TemplatePath is the absolute template path, empty for STDIN.
	TemplatePath string
	// Extension is an optional extension hint, with or without the dot.
	Extension string
	// WorkDir is the directory sibling templates are loaded from when the
	// template came from STDIN. Empty means the process working directory.
	WorkDir string
}

// Outcome is the result of a successful render.
type Outcome struct {
	Text     string
	Engine   engine.Kind
	Duration time.Duration
}

// Manager dispatches render requests to the engine a Detection names.
// Each call builds a fresh engine template; nothing is cached between calls.
// All methods are concurrent-safe.
type Manager struct {
	logger *slog.Logger
	config *RenderConfig
	// mu serialises Tera executions, whose autoescape switch is process-global.
	mu sync.Mutex
}

// NewManager creates a Manager. A nil config means DefaultConfig.
func NewManager(logger *slog.Logger, config *RenderConfig) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config == nil {
		config = DefaultConfig()
	}
	registerTeraFilters()
	return &Manager{logger: logger, config: config}
}

// SetConfig applies a new configuration to subsequent renders.
func (m *Manager) SetConfig(config *RenderConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = config
}

// GetConfig returns a copy of the current configuration.
func (m *Manager) GetConfig() RenderConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.config
}

// Render renders req with the engine its Detection names.
//
// NoEngine returns the content unchanged. Unrecognized fails with
// TMPLR_ENGINE_UNRECOGNIZED without invoking any engine. Engine failures
// carry the stage they happened in.
func (m *Manager) Render(req Request) (Outcome, error) {
	start := time.Now()
	kind := req.Detection.Kind

	var (
		text string
		err  error
	)
	switch kind {
	case engine.Tera:
		text, err = m.renderTera(req)
	case engine.Handlebars:
		text, err = m.renderHandlebars(req)
	case engine.Liquid:
		text, err = m.renderLiquid(req)
	case engine.NoEngine:
		text = req.Detection.Content
	case engine.Unrecognized:
		err = errors.New(errcodes.ErrCodeEngineUnknown,
			fmt.Sprintf("unrecognized template engine %q in %s", req.Detection.Name, displayPath(req.TemplatePath))).
			WithContext("engine", req.Detection.Name).
			WithContext("path", displayPath(req.TemplatePath))
	default:
		err = errors.New(errcodes.ErrCodeInvalidConfig, "no engine selected for "+displayPath(req.TemplatePath))
	}
	if err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{Text: text, Engine: kind, Duration: time.Since(start)}
	m.logger.Debug("Rendered template", "engine", kind.String(), "path", displayPath(req.TemplatePath), "duration", outcome.Duration)
	return outcome, nil
}

// effectiveExtension is the hint, else the template's extension, else html.
func effectiveExtension(req Request) string {
	if ext := strings.TrimPrefix(strings.TrimSpace(req.Extension), "."); ext != "" {
		return ext
	}
	if req.TemplatePath != "" {
		if ext := strings.TrimPrefix(filepath.Ext(req.TemplatePath), "."); ext != "" {
			return ext
		}
	}
	return defaultExtension
}

// baseDir is the directory sibling templates resolve against.
func baseDir(req Request) (string, error) {
	if req.TemplatePath != "" {
		return filepath.Dir(req.TemplatePath), nil
	}
	if req.WorkDir != "" {
		return req.WorkDir, nil
	}
	return os.Getwd()
}

// objectContext returns the context as a JSON object, as Tera and Liquid
// require.
func objectContext(req Request) (map[string]any, error) {
	obj, ok := req.Context.(map[string]any)
	if !ok {
		return nil, stageError(fmt.Errorf("context must be a JSON object, got %s", jsonKind(req.Context)),
			req.Detection.Kind, errcodes.StageRejectingContext, req.TemplatePath)
	}
	return obj, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}

var stageCodes = map[string]errors.ErrorCode{
	errcodes.StageBuildingParser:   errcodes.ErrCodeParserBuild,
	errcodes.StageParsing:          errcodes.ErrCodeTemplateParse,
	errcodes.StageRendering:        errcodes.ErrCodeRender,
	errcodes.StageRejectingContext: errcodes.ErrCodeContextRejected,
}

// stageError wraps an engine failure with its stage label.
func stageError(err error, kind engine.Kind, stage, path string) error {
	code, ok := stageCodes[stage]
	if !ok {
		code = errcodes.ErrCodeRender
	}
	return errors.Wrap(err, code, fmt.Sprintf("%s error while %s %s: %v", kind, stage, displayPath(path), err)).
		WithContext("engine", kind.String()).
		WithContext("stage", stage).
		WithContext("path", displayPath(path))
}

func displayPath(path string) string {
	if path == "" {
		return "<stdin>"
	}
	return path
}
