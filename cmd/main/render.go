package main

import (
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/agilira/go-errors"
	"github.com/spf13/cobra"

	"github.com/CTAG07/tmplr/pkg/ctxfile"
	"github.com/CTAG07/tmplr/pkg/engine"
	"github.com/CTAG07/tmplr/pkg/errcodes"
	"github.com/CTAG07/tmplr/pkg/output"
	"github.com/CTAG07/tmplr/pkg/pathutil"
	"github.com/CTAG07/tmplr/pkg/runner"
	"github.com/CTAG07/tmplr/pkg/templating"
)

// stdinArg names STDIN as the template source.
const stdinArg = "-"

type renderOptions struct {
	context   string
	engine    string
	extension string
	output    string
	write     bool
	stdout    bool
	stderr    bool
	watch     float64
	open      bool
}

func addRenderFlags(cmd *cobra.Command, opts *renderOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.context, "context", "c", "", "context file (default: <stem>.ctx.json or default.ctx.json)")
	f.StringVarP(&opts.engine, "engine", "e", "", "force the engine (tera, liquid, liq, handlebars, hbs, none)")
	f.StringVarP(&opts.extension, "extension", "x", "", "extension / content-type hint, e.g. html")
	f.StringVarP(&opts.output, "output", "o", "", "write the rendered output to this file")
	f.BoolVarP(&opts.write, "write", "w", false, "write to <stem>.rendered.<ext> beside the template")
	f.BoolVar(&opts.stdout, "stdout", false, "write to STDOUT (the default when no other target is set)")
	f.BoolVar(&opts.stderr, "stderr", false, "write to STDERR")
	f.Float64VarP(&opts.watch, "watch", "i", 0, "re-render every SECONDS; 0 renders once")
	f.BoolVar(&opts.open, "open", false, "open the output file in the default viewer after the first render")
	f.Bool("sanitize", false, "sanitise HTML output")
}

func templateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
		return usageError(err)
	}
	return nil
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError(err)
	}
	return nil
}

func (a *app) renderCommand() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render [TEMPLATE]",
		Short: "Render a template (the default command)",
		Args:  templateArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd, args, opts)
		},
	}
	addRenderFlags(cmd, opts)
	return cmd
}

// watchInterval converts --watch seconds into a duration.
func watchInterval(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, errors.New(errcodes.ErrCodeInvalidConfig,
			"invalid watch interval "+strconv.FormatFloat(seconds, 'g', -1, 64)+": must be zero or a positive number of seconds").
			WithContext("watch", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

func (a *app) runRender(cmd *cobra.Command, args []string, opts *renderOptions) error {
	kind, err := engine.ParseKind(opts.engine)
	if err != nil {
		return err
	}
	interval, err := watchInterval(opts.watch)
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, errcodes.ErrCodePathResolution, "failed to determine working directory: "+err.Error())
	}
	paths := pathutil.NewResolver(a.logger, wd)

	var templatePath, stdin string
	if len(args) == 0 || args[0] == stdinArg {
		data, readErr := io.ReadAll(a.stdin)
		if readErr != nil {
			return errors.Wrap(readErr, errcodes.ErrCodeTemplateRead, "failed to read template from STDIN: "+readErr.Error())
		}
		stdin = string(data)
	} else {
		if templatePath, err = paths.Resolve(args[0]); err != nil {
			return err
		}
	}

	target, err := output.ResolveTarget(paths, opts.output, templatePath, opts.write)
	if err != nil {
		return err
	}
	if opts.open && target == "" {
		return errors.New(errcodes.ErrCodeInvalidConfig, "--open needs an output file (--output or --write)")
	}

	logger := a.logger
	emitter := output.NewEmitter(logger, target, opts.stdout, opts.stderr, a.config.Render.Sanitize)
	emitter.Out = a.stdout
	emitter.Err = a.stderr

	pipeline := runner.NewPipeline(logger, ctxfile.NewResolver(logger, wd), templating.NewManager(logger, a.config.Render), emitter)
	pipeline.TemplatePath = templatePath
	pipeline.Stdin = stdin
	pipeline.ContextPath = opts.context
	pipeline.Engine = kind
	pipeline.Extension = opts.extension
	pipeline.WorkDir = wd

	scheduler := runner.NewScheduler(logger, pipeline, interval)
	scheduler.ErrOut = a.stderr
	if opts.open {
		scheduler.OnFirstSuccess = func() error {
			logger.Info("Opening output in viewer", "path", target)
			return output.OpenInViewer(target)
		}
	}

	if a.config.HistoryPath != "" {
		store, closeStore, histErr := openHistory(logger, a.config.HistoryPath)
		if histErr != nil {
			return histErr
		}
		defer closeStore()
		scheduler.Recorder = store
	}

	logger.Debug("Starting render", "template", templatePath, "stdin", templatePath == "", "engine", kind.String(), "output", target, "interval", interval)
	return scheduler.Run(cmd.Context())
}
