package main

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"regexp"

	"github.com/yuin/goldmark"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/render"
)

// goldmarkBody renders a content-page body from Markdown to HTML. It is the
// concrete BodyRenderer the engine is constructed with; internal/sitegen
// itself never depends on a Markdown implementation.
type goldmarkBody struct {
	md goldmark.Markdown
}

func newGoldmarkBody() *goldmarkBody {
	return &goldmarkBody{md: goldmark.New()}
}

func (g *goldmarkBody) RenderBody(_ context.Context, body []byte, _ item.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := g.md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("render markdown body: %w", err)
	}
	return buf.Bytes(), nil
}

// htmlTemplateRenderer compiles template-page and template sources with
// html/template. It is the concrete TemplateRenderer the engine is
// constructed with.
type htmlTemplateRenderer struct{}

// includeRe matches `{{template "name"}}` / `{{template "name" .}}` actions,
// the only shape TemplateRenderer.Includes needs to statically recognize:
// inclusion must be discoverable without executing the template.
var includeRe = regexp.MustCompile(`\{\{\s*template\s+"([^"]+)"`)

func (htmlTemplateRenderer) CompileTemplate(name string, src []byte) (render.Template, error) {
	tmpl, err := template.New(name).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}
	return &compiledTemplate{tmpl: tmpl}, nil
}

func (htmlTemplateRenderer) Includes(src []byte) ([]string, error) {
	matches := includeRe.FindAllSubmatch(src, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := string(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

type compiledTemplate struct {
	tmpl *template.Template
}

func (c *compiledTemplate) Render(_ context.Context, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute template %q: %w", c.tmpl.Name(), err)
	}
	return buf.Bytes(), nil
}
