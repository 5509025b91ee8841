// Package engine decides which templating engine renders a template.
//
// Detection looks at three things in order: an engine forced by the caller,
// the extension of the template file (or the declared extension for STDIN),
// and finally a marker comment of the form
//
//	<!--template NAME-->
//
// anywhere in the content. Without any of these the content is passed
// through untouched.
package engine

import (
	"path/filepath"
	"regexp"
	"strings"
)

// markerPattern matches the first engine marker. Keyword and name are
// case-insensitive; leading whitespace is consumed with the marker.
var markerPattern = regexp.MustCompile(`(?i)\s*<!--\s*template\s+([\w-]+)\s*-->`)

// TemplateSource is the template text of one render cycle. An empty Origin
// means the text was read from STDIN.
type TemplateSource struct {
	Contents string
	Origin   string
}

// IsStdin reports whether the source has no originating file.
func (s TemplateSource) IsStdin() bool {
	return s.Origin == ""
}

// Extension returns the origin's final extension without the dot, or "".
func (s TemplateSource) Extension() string {
	if s.IsStdin() {
		return ""
	}
	return strings.TrimPrefix(filepath.Ext(s.Origin), ".")
}

// Detection is the outcome of Detect. Content is the text the engine should
// render: the marker is stripped and the remainder trimmed when the engine
// was chosen by marker, otherwise it is the source unchanged. Name is the
// engine name, which for Unrecognized is the name written in the marker.
type Detection struct {
	Kind    Kind
	Name    string
	Content string
}

// Detect picks the engine for src.
//
// A forced kind other than Auto wins without looking at the content. Next the
// origin's extension is consulted; for STDIN sources declaredExt stands in for
// it. Then the first marker comment in the content decides. Otherwise the
// result is NoEngine.
func Detect(src TemplateSource, forced Kind, declaredExt string) Detection {
	if forced != Auto {
		return Detection{Kind: forced, Name: forced.String(), Content: src.Contents}
	}

	ext := src.Extension()
	if src.IsStdin() {
		ext = declaredExt
	}
	if kind, ok := fromExtension(ext); ok {
		return Detection{Kind: kind, Name: kind.String(), Content: src.Contents}
	}

	loc := markerPattern.FindStringSubmatchIndex(src.Contents)
	if loc == nil {
		return Detection{Kind: NoEngine, Name: NoEngine.String(), Content: src.Contents}
	}
	name := src.Contents[loc[2]:loc[3]]
	stripped := strings.TrimSpace(src.Contents[:loc[0]] + src.Contents[loc[1]:])

	if kind, ok := fromName(name); ok {
		return Detection{Kind: kind, Name: kind.String(), Content: stripped}
	}
	return Detection{Kind: Unrecognized, Name: name, Content: stripped}
}
