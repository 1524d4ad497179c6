package engine

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/paginate"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/render"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/sitegenerr"
)

// outputFile is one rendered destination for an item.
type outputFile struct {
	Path string
	Data []byte
}

// renderItem implements Render phase (spec.md §4.G step 9) for a single
// item: for template-pages, expand then render each expansion; for
// content-pages, render body then wrap in layout; for templates, produce
// nothing (they influence others only via the dependency graph); for
// static assets, pass through unmodified.
func renderItem(ctx context.Context, it *item.Item, globals item.Globals, opts Options, templates map[string]render.Template, pages []paginate.Page) ([]outputFile, bool, error) {
	switch it.Kind {
	case item.KindTemplate:
		return nil, false, nil

	case item.KindStaticAsset:
		return []outputFile{{Path: naturalAssetPath(it.Key), Data: it.RawBytes}}, false, nil

	case item.KindContentPage:
		body, err := opts.BodyRenderer.RenderBody(ctx, it.Body(), it.Metadata)
		if err != nil {
			return nil, true, fmt.Errorf("render body: %w", err)
		}
		if opts.LayoutTemplate == "" {
			return []outputFile{{Path: naturalPagePath(it.Key), Data: body}}, true, nil
		}
		layout, ok := templates[opts.LayoutTemplate]
		if !ok {
			return nil, true, &sitegenerr.FatalStructural{Detail: fmt.Sprintf("layout template %q not found", opts.LayoutTemplate)}
		}
		out, err := layout.Render(ctx, map[string]any{
			"Body":     body,
			"Metadata": it.Metadata,
			"Config":   opts.Config,
		})
		if err != nil {
			return nil, true, fmt.Errorf("render layout: %w", err)
		}
		return []outputFile{{Path: naturalPagePath(it.Key), Data: out}}, true, nil

	case item.KindTemplatePage:
		tmpl, ok := templates[it.Key]
		if !ok {
			return nil, true, &sitegenerr.FatalStructural{Detail: fmt.Sprintf("template-page %q was not compiled", it.Key)}
		}

		if it.Pagination == nil {
			out, err := tmpl.Render(ctx, map[string]any{
				"Metadata": it.Metadata,
				"Globals":  globals,
				"Config":   opts.Config,
			})
			if err != nil {
				return nil, true, fmt.Errorf("render template-page: %w", err)
			}
			return []outputFile{{Path: naturalPagePath(it.Key), Data: out}}, true, nil
		}

		outputs := make([]outputFile, 0, len(pages))
		for _, p := range pages {
			out, err := tmpl.Render(ctx, map[string]any{
				"Metadata":   it.Metadata,
				"Globals":    globals,
				"Config":     opts.Config,
				"Pagination": p.Context,
			})
			if err != nil {
				return nil, true, fmt.Errorf("render pagination page %q: %w", p.OutputPath, err)
			}
			outputs = append(outputs, outputFile{Path: p.OutputPath, Data: out})
		}
		return outputs, true, nil

	default:
		return nil, true, fmt.Errorf("render: unknown item kind %v", it.Kind)
	}
}
