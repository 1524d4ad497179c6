// Package engine implements the Pipeline Orchestrator of spec.md §4.G:
// the fixed-point driver that runs discovery, front-matter parsing,
// deletion reconciliation, global collection, dependency-graph
// construction, change detection, dirty-set closure, rendering, writing,
// and fingerprint commit as a strict sequence of phases.
package engine

import (
	"io/fs"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/discover"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/render"
)

// Hook is a post-run command, mirroring the external hooks.post
// configuration table (spec.md §6). The engine never invokes hooks
// itself — that is the hook runner's job, an external collaborator — but
// Result.Hooks is populated from Options so a caller can drive it.
type Hook struct {
	Cmd  string
	Help string
}

// Config mirrors the recognized site.* keys spec.md §6 lists. The core
// never loads this itself; it is populated by the external config loader
// and passed in by value.
type Config struct {
	URL             string
	Development     bool
	SyntaxTheme     string
	SyntaxThemePath string
}

// GlobalCollector is a deterministic function of the full discovered item
// set that contributes one named global (spec.md §4.G phase 5).
type GlobalCollector struct {
	Name    string
	Collect func(items []*item.Item) item.Value
}

// Options configures a single Run.
type Options struct {
	FS         fs.FS  // source tree, e.g. os.DirFS(Root)
	Root       string // for diagnostics only; FS is authoritative
	OutputPath string
	StorePath  string // defaults to "site.db" if empty

	Classifier discover.Classifier
	// LayoutTemplate is the item-key of the template every content-page's
	// rendered body is wrapped in, e.g. "templates/layout.html". Empty
	// means content-page bodies are written as-is.
	LayoutTemplate string

	TemplateRenderer render.TemplateRenderer
	BodyRenderer     render.BodyRenderer

	Collectors []GlobalCollector

	Config Config
	Hooks  []Hook

	// Clean wipes the output tree and the fingerprint store before
	// discovery, forcing a full rebuild (spec.md §7 "Schema-mismatch" /
	// §8 property 9).
	Clean bool

	// Concurrency bounds the worker pool used in the Render/Write phases.
	// <= 0 means runtime.GOMAXPROCS(0).
	Concurrency int
}

func (o Options) storePath() string {
	if o.StorePath == "" {
		return "site.db"
	}
	return o.StorePath
}
