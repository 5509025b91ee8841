package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/agilira/go-errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CTAG07/tmplr/pkg/errcodes"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// ExitError carries the exit code the process should end with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: exitUsage, Err: err}
}

// app holds the process-wide state shared by all commands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	v          *viper.Viper
	configFile string
	config     *Config
	logger     *slog.Logger
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		v:      viper.New(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (a *app) rootCommand() *cobra.Command {
	opts := &renderOptions{}
	root := &cobra.Command{
		Use:   "tmplr [TEMPLATE]",
		Short: "Render a template with a JSON context",
		Long: `tmplr renders a Tera, Handlebars or Liquid template against a JSON context.

The engine comes from --engine, the template's extension (.tera, .hbs, .liq)
or a <!--template NAME--> marker in its content. The context is read from
--context, <stem>.ctx.json beside the template, or default.ctx.json beside
the template or in the working directory. Without TEMPLATE (or with "-")
the template is read from STDIN.`,
		Version:           fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		Args:              templateArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd, args, opts)
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default .tmplr.json in the working directory, or $TMPLR_CONFIG_FILE)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("history", "", "record every render pass in this SQLite database")

	addRenderFlags(root, opts)
	root.AddCommand(a.renderCommand(), a.historyCommand(), a.configCommand())
	return root
}

// setup loads the configuration and builds the logger before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	bindings := map[string]string{
		"log_level":       "log-level",
		"log_format":      "log-format",
		"history_path":    "history",
		"render.sanitize": "sanitize",
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return errors.Wrap(err, errcodes.ErrCodeInvalidConfig, "failed to bind flag --"+flag+": "+err.Error())
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(err, errcodes.ErrCodePathResolution, "failed to determine working directory: "+err.Error())
	}
	cfg, err := LoadConfig(a.v, a.configFile, wd)
	if err != nil {
		return err
	}
	logger, err := newLogger(a.stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	a.config = cfg
	a.logger = logger
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("Loaded config file", "path", used)
	}
	return nil
}

// newLogger builds the process logger. Logs go to w (STDERR) so that STDOUT
// carries only rendered output.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New(errcodes.ErrCodeInvalidConfig, "invalid log format "+format+": must be text or json").
			WithContext("log_format", format)
	}
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *ExitError
	if goerrors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errcodes.Is(err, errcodes.ErrCodeInvalidConfig) {
		return exitUsage
	}
	return exitFailure
}

// execute runs the command line and returns the exit code.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newApp(stdin, stdout, stderr).rootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", err)
	}
	return exitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
