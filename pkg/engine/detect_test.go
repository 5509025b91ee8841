package engine

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/CTAG07/tmplr/pkg/errcodes"
)

func TestDetect_ExtensionBeatsMarker(t *testing.T) {
	cases := map[string]Kind{
		"/work/page.tera": Tera,
		"/work/page.hbs":  Handlebars,
		"/work/page.liq":  Liquid,
	}
	bodies := []string{
		"plain body",
		"<!--template liquid-->{{ x }}",
		"<!--template handlebars-->{{x}}",
		"<!--template mustache-->{{x}}",
	}
	for origin, want := range cases {
		for _, body := range bodies {
			got := Detect(TemplateSource{Contents: body, Origin: origin}, Auto, "")
			if got.Kind != want {
				t.Errorf("%s with body %q: expected %v, got %v", origin, body, want, got.Kind)
			}
			if got.Content != body {
				t.Errorf("%s: content should be untouched, got %q", origin, got.Content)
			}
		}
	}
}

func TestDetect_ExtensionIsCaseSensitive(t *testing.T) {
	got := Detect(TemplateSource{Contents: "x", Origin: "/work/page.HBS"}, Auto, "")
	if got.Kind != NoEngine {
		t.Errorf("expected NoEngine for .HBS, got %v", got.Kind)
	}
}

func TestDetect_Forced(t *testing.T) {
	src := TemplateSource{Contents: "<!--template tera-->{{ x }}", Origin: "/work/page.hbs"}
	got := Detect(src, Liquid, "tera")
	want := Detection{Kind: Liquid, Name: "liquid", Content: src.Contents}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("forced detection mismatch (-want +got):\n%s", diff)
	}
}

func TestDetect_Markers(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Detection
	}{
		{
			name: "tera marker stripped",
			body: "<!--template tera-->\n<p>{{ name }}</p>\n",
			want: Detection{Kind: Tera, Name: "tera", Content: "<p>{{ name }}</p>"},
		},
		{
			name: "case insensitive keyword and name",
			body: "  <!--TEMPLATE Handlebars-->Hello {{name}}",
			want: Detection{Kind: Handlebars, Name: "handlebars", Content: "Hello {{name}}"},
		},
		{
			name: "short names",
			body: "<!--template liq-->{{ a }}",
			want: Detection{Kind: Liquid, Name: "liquid", Content: "{{ a }}"},
		},
		{
			name: "marker anywhere",
			body: "<html>\n<!-- template hbs -->\n{{x}}</html>",
			want: Detection{Kind: Handlebars, Name: "handlebars", Content: "<html>\n{{x}}</html>"},
		},
		{
			name: "first marker wins",
			body: "<!--template liquid--><!--template tera-->{{ a }}",
			want: Detection{Kind: Liquid, Name: "liquid", Content: "<!--template tera-->{{ a }}"},
		},
		{
			name: "unknown engine",
			body: "<!--template mustache-->{{x}}",
			want: Detection{Kind: Unrecognized, Name: "mustache", Content: "{{x}}"},
		},
		{
			name: "no marker",
			body: "  just text  ",
			want: Detection{Kind: NoEngine, Name: "none", Content: "  just text  "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(TemplateSource{Contents: tt.body, Origin: "/work/page.html"}, Auto, "")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("detection mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetect_StdinUsesDeclaredExtension(t *testing.T) {
	src := TemplateSource{Contents: "<!--template tera-->{{ x }}"}
	if got := Detect(src, Auto, "hbs"); got.Kind != Handlebars {
		t.Errorf("expected Handlebars from declared extension, got %v", got.Kind)
	}
	if got := Detect(src, Auto, ".liq"); got.Kind != Liquid {
		t.Errorf("expected Liquid from dotted declared extension, got %v", got.Kind)
	}
	if got := Detect(src, Auto, "html"); got.Kind != Tera {
		t.Errorf("expected marker to decide for html hint, got %v", got.Kind)
	}
}

func TestDetect_DeclaredExtensionIgnoredForFiles(t *testing.T) {
	src := TemplateSource{Contents: "plain", Origin: "/work/page.txt"}
	if got := Detect(src, Auto, "hbs"); got.Kind != NoEngine {
		t.Errorf("expected NoEngine for a file source, got %v", got.Kind)
	}
}

func TestParseKind(t *testing.T) {
	valid := map[string]Kind{
		"":           Auto,
		"tera":       Tera,
		"liquid":     Liquid,
		"liq":        Liquid,
		"handlebars": Handlebars,
		"HBS":        Handlebars,
		"none":       NoEngine,
	}
	for name, want := range valid {
		got, err := ParseKind(name)
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", name, err)
			continue
		}
		if got != want {
			t.Errorf("ParseKind(%q): expected %v, got %v", name, want, got)
		}
	}

	_, err := ParseKind("mustache")
	if !errcodes.Is(err, errcodes.ErrCodeInvalidConfig) {
		t.Errorf("expected %s, got %v", errcodes.ErrCodeInvalidConfig, err)
	}
}
