// Package ctxfile locates and loads the JSON context a template is rendered
// against.
package ctxfile

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/agilira/go-errors"

	"github.com/CTAG07/tmplr/pkg/errcodes"
	"github.com/CTAG07/tmplr/pkg/pathutil"
)

const (
	// DefaultName is the fallback context file name.
	DefaultName = "default.ctx.json"
	// Suffix is appended to a template's stem to form its own context file.
	Suffix = ".ctx.json"
)

// Document is a parsed context together with the file it came from.
type Document struct {
	Value any
	Path  string
}

// Resolver picks the context file for a template.
type Resolver struct {
	logger *slog.Logger
	paths  *pathutil.Resolver
	wd     string
}

// NewResolver creates a Resolver. wd is the working directory used for the
// last fallback and for relative paths; empty means the process directory.
func NewResolver(logger *slog.Logger, wd string) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		logger: logger,
		paths:  pathutil.NewResolver(logger, wd),
		wd:     wd,
	}
}

// Resolve locates and loads the context for templatePath. templatePath is
// empty for STDIN templates.
func (r *Resolver) Resolve(explicit, templatePath string) (Document, error) {
	path, err := r.Locate(explicit, templatePath)
	if err != nil {
		return Document{}, err
	}
	return Load(path)
}

// Locate returns the context path for templatePath, first match wins:
//  1. the explicit path, when given
//  2. <stem>.ctx.json beside the template
//  3. default.ctx.json beside the template
//  4. default.ctx.json in the working directory
//
// The last candidate is returned even if it does not exist, so the read
// error names it.
func (r *Resolver) Locate(explicit, templatePath string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		path, err := r.paths.Resolve(explicit)
		if err != nil {
			return "", errors.Wrap(err, errcodes.ErrCodeContextRead, "failed to resolve context path: "+err.Error()).
				WithContext("path", explicit)
		}
		return path, nil
	}

	if templatePath != "" {
		dir := filepath.Dir(templatePath)
		for _, candidate := range []string{
			filepath.Join(dir, Stem(templatePath)+Suffix),
			filepath.Join(dir, DefaultName),
		} {
			if isFile(candidate) {
				r.logger.Debug("Using context file beside template", "path", candidate)
				return candidate, nil
			}
		}
	}

	wd := r.wd
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			return "", errors.Wrap(err, errcodes.ErrCodeContextRead, "failed to determine working directory: "+err.Error())
		}
	}
	return filepath.Join(wd, DefaultName), nil
}

// Load reads and parses the JSON document at path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, errors.Wrap(err, errcodes.ErrCodeContextRead, "failed to read context file "+path+": "+err.Error()).
			WithContext("path", path)
	}
	var value any
	if err = json.Unmarshal(data, &value); err != nil {
		return Document{}, errors.Wrap(err, errcodes.ErrCodeContextParse, "failed to parse context file "+path+": "+err.Error()).
			WithContext("path", path)
	}
	return Document{Value: value, Path: path}, nil
}

// Stem returns the base name of path without its final extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
