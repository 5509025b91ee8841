package runner

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CTAG07/tmplr/pkg/ctxfile"
	"github.com/CTAG07/tmplr/pkg/engine"
	"github.com/CTAG07/tmplr/pkg/errcodes"
	"github.com/CTAG07/tmplr/pkg/output"
	"github.com/CTAG07/tmplr/pkg/templating"
)

func writeFile(tb testing.TB, path, content string) {
	tb.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		tb.Fatalf("failed to write %s: %v", path, err)
	}
}

// newTestPipeline wires real components with STDOUT captured in a buffer.
func newTestPipeline(t *testing.T, wd, templatePath string) (*Pipeline, *bytes.Buffer) {
	t.Helper()
	emitter := output.NewEmitter(nil, "", true, false, false)
	var out bytes.Buffer
	emitter.Out = &out
	p := NewPipeline(nil, ctxfile.NewResolver(nil, wd), templating.NewManager(nil, nil), emitter)
	p.TemplatePath = templatePath
	p.WorkDir = wd
	return p, &out
}

func TestPipeline_HelloWorld(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "hello.html")
	writeFile(t, tmpl, "<!--template handlebars-->Hello {{name}}")
	writeFile(t, filepath.Join(dir, "hello.ctx.json"), `{"name":"World"}`)

	p, out := newTestPipeline(t, dir, tmpl)
	report, err := p.Pass(context.Background())
	if err != nil {
		t.Fatalf("Pass failed: %v", err)
	}
	if out.String() != "Hello World" {
		t.Errorf("expected %q, got %q", "Hello World", out.String())
	}
	if report.Engine != "handlebars" || report.Template != tmpl {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestPipeline_RereadsTemplateEachPass(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "page.liq")
	writeFile(t, tmpl, "v1 {{ n }}")
	writeFile(t, filepath.Join(dir, ctxfile.DefaultName), `{"n":1}`)

	p, out := newTestPipeline(t, dir, tmpl)
	if _, err := p.Pass(context.Background()); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	writeFile(t, tmpl, "v2 {{ n }}")
	writeFile(t, filepath.Join(dir, ctxfile.DefaultName), `{"n":2}`)
	if _, err := p.Pass(context.Background()); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if out.String() != "v1 1v2 2" {
		t.Errorf("expected both passes to reflect the files on disk, got %q", out.String())
	}
}

func TestPipeline_StdinIsReused(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ctxfile.DefaultName), `{"x":"y"}`)

	p, out := newTestPipeline(t, dir, "")
	p.Stdin = "{{ x }}"
	p.Extension = "hbs"
	for i := 0; i < 2; i++ {
		if _, err := p.Pass(context.Background()); err != nil {
			t.Fatalf("pass %d failed: %v", i, err)
		}
	}
	if out.String() != "yy" {
		t.Errorf("expected the buffered template twice, got %q", out.String())
	}
}

func TestPipeline_UnrecognizedEngine(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "page.html")
	writeFile(t, tmpl, "<!--template mustache-->{{x}}")
	writeFile(t, filepath.Join(dir, ctxfile.DefaultName), `{}`)

	p, out := newTestPipeline(t, dir, tmpl)
	report, err := p.Pass(context.Background())
	if code := errcodes.Code(err); code != errcodes.ErrCodeEngineUnknown {
		t.Fatalf("expected %s, got %s (%v)", errcodes.ErrCodeEngineUnknown, code, err)
	}
	if !strings.Contains(err.Error(), "mustache") || report.Engine != "mustache" {
		t.Errorf("error and report should name mustache: %v, %+v", err, report)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be emitted, got %q", out.String())
	}
}

func TestPipeline_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing template", func(t *testing.T) {
		p, _ := newTestPipeline(t, dir, filepath.Join(dir, "absent.html"))
		_, err := p.Pass(context.Background())
		if code := errcodes.Code(err); code != errcodes.ErrCodeTemplateRead {
			t.Errorf("expected %s, got %s (%v)", errcodes.ErrCodeTemplateRead, code, err)
		}
	})

	t.Run("missing context", func(t *testing.T) {
		tmpl := filepath.Join(dir, "lonely.html")
		writeFile(t, tmpl, "x")
		p, _ := newTestPipeline(t, dir, tmpl)
		_, err := p.Pass(context.Background())
		if code := errcodes.Code(err); code != errcodes.ErrCodeContextRead {
			t.Errorf("expected %s, got %s (%v)", errcodes.ErrCodeContextRead, code, err)
		}
	})

	t.Run("forced engine", func(t *testing.T) {
		sub := t.TempDir()
		tmpl := filepath.Join(sub, "x.hbs")
		writeFile(t, tmpl, "{{ v }}")
		writeFile(t, filepath.Join(sub, ctxfile.DefaultName), `{"v":"<b>"}`)
		p, out := newTestPipeline(t, sub, tmpl)
		p.Engine = engine.NoEngine
		if _, err := p.Pass(context.Background()); err != nil {
			t.Fatalf("Pass failed: %v", err)
		}
		if out.String() != "{{ v }}" {
			t.Errorf("forced none should pass through, got %q", out.String())
		}
	})
}

// editingPasser rewrites the template before each pass of the wrapped
// pipeline and cancels the run once every version has been rendered.
type editingPasser struct {
	pipeline *Pipeline
	path     string
	versions []string
	next     int
	cancel   context.CancelFunc
}

func (p *editingPasser) Pass(ctx context.Context) (Report, error) {
	if p.next >= len(p.versions) {
		p.cancel()
		return Report{}, ctx.Err()
	}
	if err := os.WriteFile(p.path, []byte(p.versions[p.next]), 0644); err != nil {
		return Report{}, err
	}
	p.next++
	return p.pipeline.Pass(ctx)
}

func TestPipeline_WatchPrintsEachDistinctEngineError(t *testing.T) {
	dir := t.TempDir()
	tmpl := filepath.Join(dir, "page.tera")
	writeFile(t, filepath.Join(dir, ctxfile.DefaultName), `{"n":1}`)

	p, out := newTestPipeline(t, dir, tmpl)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	editor := &editingPasser{
		pipeline: p,
		path:     tmpl,
		versions: []string{
			"{% if n %}unterminated",
			"{% if n %}unterminated",
			"{{ n | nosuchfilter }}",
			"{{ n | nosuchfilter }}",
		},
		cancel: cancel,
	}
	s := NewScheduler(nil, editor, time.Millisecond)
	var errOut bytes.Buffer
	s.ErrOut = &errOut

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(errOut.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected one line per distinct error, got %d: %q", len(lines), errOut.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, errcodes.StageParsing) {
			t.Errorf("expected a parse failure, got %q", line)
		}
	}
	if !strings.Contains(lines[1], "nosuchfilter") {
		t.Errorf("second line should name the unknown filter: %q", lines[1])
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be emitted, got %q", out.String())
	}
}
