// Package paginate implements the Template-page Expander of spec.md §4.F:
// splitting a pagination source global into fixed-size chunks and
// synthesizing the {items, index, count, prev, next} context for each.
package paginate

import (
	"fmt"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/sitegenerr"
)

// Page is one fanned-out output of a paginated template-page.
type Page struct {
	OutputPath string
	Context    item.Value // VKMapping: {items, index, count, prev, next}
}

// URLFunc renders the output path for page index i, relative to base, per
// the bit-exact rule of spec.md §4.F: no numeric suffix for i == 0.
func URLFunc(base string) func(i int) string {
	return func(i int) string {
		if i == 0 {
			return base + "/index.html"
		}
		return fmt.Sprintf("%s/%d/index.html", base, i)
	}
}

// Expand splits pg.From's global value into chunks of size pg.Every and
// returns one Page per chunk. base is the template-page's natural output
// base path (without "/index.html").
func Expand(base string, pg item.Pagination, globals item.Globals) ([]Page, error) {
	if pg.Every <= 0 {
		return nil, &sitegenerr.FatalStructural{Detail: fmt.Sprintf("pagination.every must be > 0, got %d", pg.Every)}
	}

	src := globals.Get(pg.From)
	seq, ok := src.AsSequence()
	if !ok {
		return nil, &sitegenerr.FatalStructural{Detail: fmt.Sprintf("pagination.from %q is missing or not a sequence", pg.From)}
	}

	count := (len(seq) + pg.Every - 1) / pg.Every
	if count == 0 {
		count = 1
		seq = []item.Value{}
	}

	url := URLFunc(base)
	pages := make([]Page, 0, count)
	for i := 0; i < count; i++ {
		start := i * pg.Every
		end := start + pg.Every
		if end > len(seq) {
			end = len(seq)
		}
		chunk := append([]item.Value(nil), seq[start:end]...)

		ctx := map[string]item.Value{
			"items": item.Sequence(chunk...),
			"index": item.Int(int64(i)),
			"count": item.Int(int64(count)),
		}
		if i > 0 {
			ctx["prev"] = item.String(url(i - 1))
		} else {
			ctx["prev"] = item.Absent()
		}
		if i+1 < count {
			ctx["next"] = item.String(url(i + 1))
		} else {
			ctx["next"] = item.Absent()
		}

		pages = append(pages, Page{
			OutputPath: url(i),
			Context:    item.Mapping(ctx),
		})
	}
	return pages, nil
}
