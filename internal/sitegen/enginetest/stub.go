// Package enginetest provides a minimal, deterministic TemplateRenderer
// and BodyRenderer stub so internal/sitegen/engine can be exercised
// end-to-end without depending on the real (external) templating engine
// or Markdown renderer.
package enginetest

import (
	"bytes"
	"context"
	"fmt"
	"regexp"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/render"
)

// StubTemplate is a Render that echoes a fixed marker, its source with each
// `{{include "..."}}` replaced by the included template's current source
// (one level deep), and the data it was given, formatted deterministically
// enough for byte-identical snapshot assertions across runs.
type StubTemplate struct {
	Name string
	Src  []byte
	r    *StubRenderer
}

func (t *StubTemplate) Render(_ context.Context, data any) ([]byte, error) {
	src := t.Src
	if t.r != nil {
		src = includeRe.ReplaceAllFunc(t.Src, func(m []byte) []byte {
			return t.r.sources[string(includeRe.FindSubmatch(m)[1])]
		})
	}
	return []byte(fmt.Sprintf("[%s]%s|%v", t.Name, src, data)), nil
}

var includeRe = regexp.MustCompile(`\{\{\s*include\s+"([^"]+)"\s*\}\}`)

// StubRenderer implements render.TemplateRenderer and render.BodyRenderer.
// "Inclusion" is spelled `{{include "templates/x.html"}}` in the stub's toy
// syntax, which is all Includes needs to statically parse.
type StubRenderer struct {
	RenderCalls int
	sources     map[string][]byte // latest compiled source per template name
}

func (r *StubRenderer) CompileTemplate(name string, src []byte) (render.Template, error) {
	if r.sources == nil {
		r.sources = make(map[string][]byte)
	}
	r.sources[name] = append([]byte(nil), src...)
	return &StubTemplate{Name: name, Src: r.sources[name], r: r}, nil
}

func (r *StubRenderer) Includes(src []byte) ([]string, error) {
	matches := includeRe.FindAllSubmatch(src, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, string(m[1]))
	}
	return out, nil
}

func (r *StubRenderer) RenderBody(_ context.Context, body []byte, meta item.Value) ([]byte, error) {
	r.RenderCalls++
	return append([]byte("<body>"), append(bytes.TrimSpace(body), []byte("</body>")...)...), nil
}
