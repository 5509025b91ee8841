package templating

import (
	"io"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/CTAG07/tmplr/pkg/engine"
	"github.com/CTAG07/tmplr/pkg/errcodes"
)

// rootTemplateName is the synthetic name the rendered content is served
// under, so includes resolve relative to the template directory.
const rootTemplateName = "__tmplr_root__"

// teraKeywords cannot be used as filter names in pongo2 expressions.
var teraKeywords = map[string]struct{}{"and": {}, "or": {}, "not": {}, "in": {}}

var (
	teraFilterOnce sync.Once
	// teraFilters holds the helpers this package registered with pongo2,
	// which are banned per set when helpers are disabled.
	teraFilters []string
)

// memoryLoader serves a single in-memory template.
type memoryLoader struct {
	name    string
	content string
}

func (l *memoryLoader) Abs(_, name string) string {
	return name
}

func (l *memoryLoader) Get(path string) (io.Reader, error) {
	if path != l.name {
		return nil, os.ErrNotExist
	}
	return strings.NewReader(l.content), nil
}

func (m *Manager) renderTera(req Request) (string, error) {
	ctx, err := objectContext(req)
	if err != nil {
		return "", err
	}
	cfg := m.GetConfig()
	ext := effectiveExtension(req)

	dir, err := baseDir(req)
	if err != nil {
		return "", stageError(err, engine.Tera, errcodes.StageBuildingParser, req.TemplatePath)
	}
	local, err := pongo2.NewLocalFileSystemLoader(dir)
	if err != nil {
		return "", stageError(err, engine.Tera, errcodes.StageBuildingParser, req.TemplatePath)
	}
	root := &memoryLoader{name: rootTemplateName + "." + ext, content: req.Detection.Content}
	set := pongo2.NewSet("tmplr", root, local)
	if !cfg.Helpers {
		for _, name := range teraFilters {
			if err = set.BanFilter(name); err != nil {
				return "", stageError(err, engine.Tera, errcodes.StageBuildingParser, req.TemplatePath)
			}
		}
	}

	tpl, err := set.FromFile(root.name)
	if err != nil {
		return "", stageError(err, engine.Tera, errcodes.StageParsing, req.TemplatePath)
	}

	m.mu.Lock()
	pongo2.SetAutoescape(cfg.autoescapes(ext))
	out, err := tpl.Execute(pongo2.Context(ctx))
	m.mu.Unlock()
	if err != nil {
		return "", stageError(err, engine.Tera, errcodes.StageRendering, req.TemplatePath)
	}
	return out, nil
}

// registerTeraFilters exposes the helper library as pongo2 filters. pongo2
// keeps filters in a global registry, so this runs once per process and
// skips names pongo2 already provides.
func registerTeraFilters() {
	teraFilterOnce.Do(func() {
		for name, fn := range helperFuncs() {
			if _, reserved := teraKeywords[name]; reserved {
				continue
			}
			if pongo2.FilterExists(name) {
				continue
			}
			if err := pongo2.RegisterFilter(name, teraFilter(fn)); err == nil {
				teraFilters = append(teraFilters, name)
			}
		}
	})
}

// teraFilter adapts a one or two argument helper to pongo2's filter call
// convention: the piped value is the first argument and the filter
// parameter, if any, the second.
func teraFilter(fn any) pongo2.FilterFunction {
	fv := reflect.ValueOf(fn)
	arity := fv.Type().NumIn()
	return func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		args := []reflect.Value{argValue(in)}
		if arity == 2 {
			args = append(args, argValue(param))
		}
		return pongo2.AsValue(fv.Call(args)[0].Interface()), nil
	}
}

// argValue unwraps a pongo2 value into a reflect.Value usable as an any
// argument. Missing values become a nil interface.
func argValue(v *pongo2.Value) reflect.Value {
	var arg any
	if v != nil {
		arg = v.Interface()
	}
	return reflect.ValueOf(&arg).Elem()
}
