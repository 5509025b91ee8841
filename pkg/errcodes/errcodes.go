// Package errcodes defines the error codes shared by every stage of the
// render pipeline and helpers to read them back from wrapped errors.
package errcodes

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for tmplr operations
const (
	ErrCodePathResolution  = "TMPLR_PATH_RESOLUTION"
	ErrCodeTemplateRead    = "TMPLR_TEMPLATE_READ"
	ErrCodeContextRead     = "TMPLR_CONTEXT_READ"
	ErrCodeContextParse    = "TMPLR_CONTEXT_PARSE"
	ErrCodeEngineUnknown   = "TMPLR_ENGINE_UNRECOGNIZED"
	ErrCodeParserBuild     = "TMPLR_PARSER_BUILD"
	ErrCodeTemplateParse   = "TMPLR_TEMPLATE_PARSE"
	ErrCodeRender          = "TMPLR_RENDER"
	ErrCodeContextRejected = "TMPLR_CONTEXT_REJECTED"
	ErrCodeOutputWrite     = "TMPLR_OUTPUT_WRITE"
	ErrCodeInvalidConfig   = "TMPLR_INVALID_CONFIG"
	ErrCodeHistory         = "TMPLR_HISTORY"
	ErrCodeUnknown         = "TMPLR_UNKNOWN"
	ErrCodeNone            = ""
)

// Stage labels attached to engine failures.
const (
	StageBuildingParser   = "building parser"
	StageParsing          = "parsing"
	StageRendering        = "rendering"
	StageRejectingContext = "rejecting context"
)

// Code returns the error code carried by err or by anything it wraps.
// A nil error yields ErrCodeNone and an uncoded one ErrCodeUnknown.
func Code(err error) string {
	if err == nil {
		return ErrCodeNone
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}
	return ErrCodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}
