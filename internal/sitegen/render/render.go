// Package render declares the two renderer seams spec.md §1 names as
// external collaborators: the templating engine (compile-template /
// render-template) and the Markdown body renderer. internal/sitegen never
// implements these itself; it is constructed with implementations of
// them, matching the "core consumes an interface" boundary in spec.md.
package render

import (
	"context"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
)

// Template is a compiled, instantiable template page or layout.
type Template interface {
	// Render instantiates the template against data (a map[string]any
	// holding front matter, config, and either globals plus an optional
	// pagination context, or, for a layout, the rendered body) and returns
	// the rendered bytes.
	Render(ctx context.Context, data any) ([]byte, error)
}

// TemplateRenderer compiles named template sources. Implementations
// discover cross-template `{{template "..."}}`-style inclusion themselves;
// internal/sitegen only asks for the declared inclusions via
// TemplateRenderer.Includes to build dependency-graph edges statically,
// per spec.md §4.D ("template inclusion (statically parseable)").
type TemplateRenderer interface {
	CompileTemplate(name string, src []byte) (Template, error)
	// Includes returns the names of templates statically referenced by
	// src, without compiling or executing it.
	Includes(src []byte) ([]string, error)
}

// BodyRenderer renders a content-page body (e.g. Markdown to HTML). meta
// is the page's parsed front matter, forwarded read-only for renderers
// that need it (e.g. syntax-highlighting theme selection).
type BodyRenderer interface {
	RenderBody(ctx context.Context, body []byte, meta item.Value) ([]byte, error)
}
