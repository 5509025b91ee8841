// Package output delivers rendered text to its destinations: a file, STDOUT
// and STDERR.
package output

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"
	"github.com/microcosm-cc/bluemonday"
	"github.com/natefinch/atomic"
	"github.com/pkg/browser"

	"github.com/CTAG07/tmplr/pkg/errcodes"
	"github.com/CTAG07/tmplr/pkg/pathutil"
)

// Emitter writes one rendered text to every selected target. With no
// target selected, the text goes to STDOUT.
type Emitter struct {
	// File is the absolute output path, empty for none.
	File string
	// Stdout and Stderr select the standard streams.
	Stdout bool
	Stderr bool
	// Sanitize runs the text through an HTML sanitising policy first.
	Sanitize bool

	// Out and Err default to os.Stdout and os.Stderr.
	Out io.Writer
	Err io.Writer

	logger *slog.Logger
	policy *bluemonday.Policy
}

// NewEmitter creates an Emitter from the given targets.
func NewEmitter(logger *slog.Logger, file string, stdout, stderr, sanitize bool) *Emitter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Emitter{
		File:     file,
		Stdout:   stdout,
		Stderr:   stderr,
		Sanitize: sanitize,
		Out:      os.Stdout,
		Err:      os.Stderr,
		logger:   logger,
	}
	if sanitize {
		e.policy = bluemonday.UGCPolicy()
	}
	return e
}

// Emit writes text to the selected targets.
func (e *Emitter) Emit(text string) error {
	if e.Sanitize {
		if e.policy == nil {
			e.policy = bluemonday.UGCPolicy()
		}
		text = e.policy.Sanitize(text)
	}

	if e.File != "" {
		if err := atomic.WriteFile(e.File, strings.NewReader(text)); err != nil {
			return errors.Wrap(err, errcodes.ErrCodeOutputWrite, "failed to write output file "+e.File+": "+err.Error()).
				WithContext("path", e.File)
		}
		e.logger.Debug("Wrote output file", "path", e.File, "bytes", len(text))
	}

	stdout := e.Stdout || (e.File == "" && !e.Stderr)
	if stdout {
		if err := writeStream(e.Out, os.Stdout, text, "stdout"); err != nil {
			return err
		}
	}
	if e.Stderr {
		if err := writeStream(e.Err, os.Stderr, text, "stderr"); err != nil {
			return err
		}
	}
	return nil
}

func writeStream(w, fallback io.Writer, text, name string) error {
	if w == nil {
		w = fallback
	}
	if _, err := io.WriteString(w, text); err != nil {
		return errors.Wrap(err, errcodes.ErrCodeOutputWrite, "failed to write to "+name+": "+err.Error()).
			WithContext("stream", name)
	}
	return nil
}

// DefaultPath returns <dir>/<stem>.rendered.<ext> for templatePath, or
// <dir>/<stem>.rendered when the template has no extension.
func DefaultPath(templatePath string) string {
	dir := filepath.Dir(templatePath)
	base := filepath.Base(templatePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+".rendered"+ext)
}

// ResolveTarget works out the output file for a run. An explicit output
// wins; otherwise write selects the default path beside the template. A
// STDIN template has no default path, so write without output is an error.
func ResolveTarget(resolver *pathutil.Resolver, explicit, templatePath string, write bool) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		path, err := resolver.Resolve(explicit)
		if err != nil {
			return "", errors.Wrap(err, errcodes.ErrCodeOutputWrite, "invalid output path: "+err.Error()).
				WithContext("path", explicit)
		}
		return path, nil
	}
	if !write {
		return "", nil
	}
	if templatePath == "" {
		return "", errors.New(errcodes.ErrCodeInvalidConfig,
			"--write needs --output when the template is read from STDIN")
	}
	return DefaultPath(templatePath), nil
}

// OpenInViewer opens path with the operating system's default application.
// The opener's own output is discarded so it does not mix with rendered text.
func OpenInViewer(path string) error {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	if err := browser.OpenFile(path); err != nil {
		return errors.Wrap(err, errcodes.ErrCodeOutputWrite, "failed to open "+path+" in viewer: "+err.Error()).
			WithContext("path", path)
	}
	return nil
}
