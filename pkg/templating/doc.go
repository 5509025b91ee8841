/*
Package templating renders template content with the engine a detection
selected.

Three engines are supported. Tera templates run on pongo2, a Jinja2/Django
style engine whose syntax Tera shares; Handlebars templates run on raymond;
Liquid templates run on osteele/liquid. Content with no engine passes
through unchanged.

Every render builds a fresh engine template from the content, so edits to a
template or to the files it includes are picked up on the next render. Tera
templates can include, extend and import sibling files from the template's
directory. Failures are returned as coded errors labelled with the stage
they occurred in: building parser, parsing, rendering or rejecting context.

A small helper library (add, sub, mult, div, mod, max, min, inc, dec, and,
or, not, isSet, repeat, default) is registered with every engine unless
RenderConfig.Helpers is false. Where an engine already defines a helper
name itself, its own version is kept.
*/
package templating
