package templating

import "strings"

// RenderConfig holds the configuration options for rendering.
type RenderConfig struct {
	// AutoescapeExtensions lists the effective extensions (without the dot)
	// for which Tera output is HTML-escaped.
	AutoescapeExtensions []string `json:"autoescape_extensions" mapstructure:"autoescape_extensions"`

	// Helpers controls whether the shared helper library is exposed to templates.
	Helpers bool `json:"helpers" mapstructure:"helpers"`

	// Sanitize passes rendered output through an HTML sanitising policy
	// before it is emitted. It is applied by the output emitter.
	Sanitize bool `json:"sanitize" mapstructure:"sanitize"`
}

// DefaultConfig returns a RenderConfig with the default values.
func DefaultConfig() *RenderConfig {
	return &RenderConfig{
		AutoescapeExtensions: []string{"html", "htm", "xml"},
		Helpers:              true,
		Sanitize:             false,
	}
}

// autoescapes reports whether ext is one of the autoescaped extensions.
func (c *RenderConfig) autoescapes(ext string) bool {
	ext = strings.TrimPrefix(ext, ".")
	for _, candidate := range c.AutoescapeExtensions {
		if strings.EqualFold(strings.TrimPrefix(candidate, "."), ext) {
			return true
		}
	}
	return false
}
