package templating

import (
	"github.com/aymerick/raymond"

	"github.com/CTAG07/tmplr/pkg/engine"
	"github.com/CTAG07/tmplr/pkg/errcodes"
)

// renderHandlebars parses the content and executes it against the context
// with raymond's default HTML escaping. Any JSON value is accepted as the
// context.
func (m *Manager) renderHandlebars(req Request) (string, error) {
	cfg := m.GetConfig()

	tpl, err := raymond.Parse(req.Detection.Content)
	if err != nil {
		return "", stageError(err, engine.Handlebars, errcodes.StageParsing, req.TemplatePath)
	}
	if cfg.Helpers {
		tpl.RegisterHelpers(helperFuncs())
	}

	out, err := tpl.Exec(req.Context)
	if err != nil {
		return "", stageError(err, engine.Handlebars, errcodes.StageRendering, req.TemplatePath)
	}
	return out, nil
}
