package engine

import (
	"strconv"
	"strings"

	"github.com/agilira/go-errors"

	"github.com/CTAG07/tmplr/pkg/errcodes"
)

// Kind identifies a templating engine.
type Kind int

const (
	// Auto means no engine was forced; detection decides.
	Auto Kind = iota
	Tera
	Handlebars
	Liquid
	// NoEngine passes the content through verbatim.
	NoEngine
	// Unrecognized is a marker naming an engine tmplr does not know.
	Unrecognized
)

func (k Kind) String() string {
	switch k {
	case Auto:
		return "auto"
	case Tera:
		return "tera"
	case Handlebars:
		return "handlebars"
	case Liquid:
		return "liquid"
	case NoEngine:
		return "none"
	case Unrecognized:
		return "unrecognized"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind maps a user supplied engine name to a Kind. The empty string
// yields Auto. Accepted names are tera, liquid, liq, handlebars, hbs and none.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return Auto, nil
	case "tera":
		return Tera, nil
	case "liquid", "liq":
		return Liquid, nil
	case "handlebars", "hbs":
		return Handlebars, nil
	case "none":
		return NoEngine, nil
	default:
		return Auto, errors.New(errcodes.ErrCodeInvalidConfig,
			"unknown engine "+name+" (expected tera, liquid, liq, handlebars, hbs or none)").
			WithContext("engine", name)
	}
}

// fromName resolves an in-content marker name. The second result is false
// for names no engine answers to.
func fromName(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "tera":
		return Tera, true
	case "hbs", "handlebars":
		return Handlebars, true
	case "liq", "liquid":
		return Liquid, true
	default:
		return Unrecognized, false
	}
}

// fromExtension maps a file extension, with or without the leading dot, to
// an engine. Matching is case-sensitive.
func fromExtension(ext string) (Kind, bool) {
	switch strings.TrimPrefix(ext, ".") {
	case "tera":
		return Tera, true
	case "hbs":
		return Handlebars, true
	case "liq":
		return Liquid, true
	default:
		return Auto, false
	}
}
