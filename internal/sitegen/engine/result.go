package engine

import "git.home.luguber.info/inful/docbuilder/internal/sitegen/sitegenerr"

// Result reports the outcome of a single Run. RenderCount and WriteCount
// are the render-counter test hook spec.md §8 property 2 requires
// ("observable via a render-counter test hook").
type Result struct {
	RenderCount int
	WriteCount  int
	Failures    []sitegenerr.ItemLocal
	Deleted     []string // item-keys whose sources disappeared this run
	Hooks       []Hook   // forwarded from Options for an external hook runner
}

// OK reports whether every item that needed rendering/writing succeeded.
func (r Result) OK() bool { return len(r.Failures) == 0 }
