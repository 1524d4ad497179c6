package engine

import (
	"sort"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/frontmatter"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
)

// TagsCollector aggregates the "tags" front-matter sequence across every
// content-page into a single sorted, de-duplicated global, matching the
// worked example in spec.md §8 (S3: `tags = ["a"]` -> `["a","b"]`).
var TagsCollector = GlobalCollector{
	Name: "tags",
	Collect: func(items []*item.Item) item.Value {
		seen := make(map[string]struct{})
		for _, it := range items {
			if it.Kind != item.KindContentPage {
				continue
			}
			for _, tag := range frontmatter.StringSequenceField(it.Metadata, "tags") {
				seen[tag] = struct{}{}
			}
		}
		tags := make([]string, 0, len(seen))
		for t := range seen {
			tags = append(tags, t)
		}
		sort.Strings(tags)

		seq := make([]item.Value, len(tags))
		for i, t := range tags {
			seq[i] = item.String(t)
		}
		return item.Sequence(seq...)
	},
}

// runCollectors executes every configured collector, sorted by name for
// determinism, and returns the resulting immutable globals table.
func runCollectors(collectors []GlobalCollector, items []*item.Item) item.Globals {
	sorted := append([]GlobalCollector(nil), collectors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	globals := make(item.Globals, len(sorted))
	for _, c := range sorted {
		globals[c.Name] = c.Collect(items)
	}
	return globals
}
