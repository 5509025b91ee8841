package templating

import (
	"github.com/osteele/liquid"

	"github.com/CTAG07/tmplr/pkg/engine"
	"github.com/CTAG07/tmplr/pkg/errcodes"
)

// liquidBuiltins are helper names Liquid already defines as filters.
var liquidBuiltins = map[string]struct{}{"default": {}}

// newLiquidEngine builds a Liquid engine with the helper library
// registered as filters.
func newLiquidEngine(helpers bool) *liquid.Engine {
	eng := liquid.NewEngine()
	if !helpers {
		return eng
	}
	for name, fn := range helperFuncs() {
		if _, builtin := liquidBuiltins[name]; builtin {
			continue
		}
		eng.RegisterFilter(name, fn)
	}
	return eng
}

// renderLiquid parses the content into a template before rendering it, so
// parse failures are reported separately from render failures.
func (m *Manager) renderLiquid(req Request) (string, error) {
	ctx, err := objectContext(req)
	if err != nil {
		return "", err
	}
	cfg := m.GetConfig()

	eng := newLiquidEngine(cfg.Helpers)
	tpl, parseErr := eng.ParseString(req.Detection.Content)
	if parseErr != nil {
		return "", stageError(parseErr, engine.Liquid, errcodes.StageParsing, req.TemplatePath)
	}
	out, renderErr := tpl.RenderString(liquid.Bindings(ctx))
	if renderErr != nil {
		return "", stageError(renderErr, engine.Liquid, errcodes.StageRendering, req.TemplatePath)
	}
	return out, nil
}
