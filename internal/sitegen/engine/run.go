package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/change"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/depgraph"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/discover"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/fingerprint"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/frontmatter"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/paginate"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/render"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/sitegenerr"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/writer"
)

// txnChangeStore adapts a *fingerprint.Txn to the tiny read interface
// package change needs.
type txnChangeStore struct{ txn *fingerprint.Txn }

func (t txnChangeStore) Get(key string) (string, bool, error) { return t.txn.Get(key) }

type jobOutcome struct {
	key         string
	outputPaths []string
	rendered    bool
	written     int
	err         error
}

// Run drives one build: the twelve phases of spec.md §4.G, in order.
func Run(ctx context.Context, opts Options, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := validate(opts); err != nil {
		return Result{}, err
	}

	// Phase 1: open store, honoring --clean.
	if opts.Clean {
		if err := os.RemoveAll(opts.OutputPath); err != nil {
			return Result{}, fmt.Errorf("%w: clean output path: %v", sitegenerr.ErrFatalConfig, err)
		}
		_ = os.Remove(opts.storePath())
		_ = os.Remove(opts.storePath() + ".lock")
	}

	store, err := fingerprint.Open(opts.storePath())
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("sitegen: failed to close fingerprint store", "error", cerr)
		}
	}()

	txn, err := store.Begin()
	if err != nil {
		return Result{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = txn.Abort()
		}
	}()

	// Phase 2: discover.
	items, err := discover.Discover(opts.FS, discover.Options{
		Root:       opts.Root,
		OutputPath: opts.OutputPath,
		StoreFile:  opts.storePath(),
		Classifier: opts.Classifier,
	})
	if err != nil {
		return Result{}, fmt.Errorf("discover: %w", err)
	}

	// Phase 3: parse front matter for every item except static assets
	// (content-pages, template-pages, and templates).
	for _, it := range items {
		if it.Kind == item.KindStaticAsset {
			it.Metadata = item.Mapping(nil)
			continue
		}
		res, err := frontmatter.Parse(it.RawBytes)
		if err != nil {
			return Result{}, fmt.Errorf("frontmatter %s: %w", it.Key, err)
		}
		it.Metadata = res.Metadata
		it.BodyOffset = res.BodyOffset
		it.DeclaredDeps = frontmatter.StringSequenceField(it.Metadata, "dependencies")
		it.Pagination = frontmatter.PaginationField(it.Metadata)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, sitegenerr.ErrCancelled
	}

	byKey := make(map[string]*item.Item, len(items))
	for _, it := range items {
		byKey[it.Key] = it
	}

	// Phase 4: reconcile deletions.
	priorKeys, err := txn.AllKeys()
	if err != nil {
		return Result{}, err
	}
	outW := writer.New(opts.OutputPath)
	var deleted []string
	for _, key := range priorKeys {
		if _, ok := byKey[key]; ok {
			continue
		}
		paths, err := txn.OutputPaths(key)
		if err != nil {
			return Result{}, err
		}
		for _, p := range paths {
			if err := outW.Remove(p); err != nil {
				logger.Warn("sitegen: failed to remove stale output", "item", key, "path", p, "error", err)
			}
		}
		if err := txn.Delete(key); err != nil {
			return Result{}, err
		}
		deleted = append(deleted, key)
	}

	if err := ctx.Err(); err != nil {
		return Result{}, sitegenerr.ErrCancelled
	}

	// Phase 5: collect globals, deterministic functions of the full set.
	globals := runCollectors(opts.Collectors, items)

	// Phase 6: build the dependency graph.
	graph := depgraph.New()
	for _, it := range items {
		graph.AddNode(it.Key)
		for _, dep := range it.DeclaredDeps {
			graph.AddEdge(it.Key, depgraph.GlobalNode(dep), depgraph.ColorGlobal)
		}
		if it.Pagination != nil {
			graph.AddEdge(it.Key, depgraph.GlobalNode(it.Pagination.From), depgraph.ColorGlobal)
		}
		if (it.Kind == item.KindTemplate || it.Kind == item.KindTemplatePage) && opts.TemplateRenderer != nil {
			includes, err := opts.TemplateRenderer.Includes(it.RawBytes)
			if err != nil {
				return Result{}, &sitegenerr.FatalStructural{Detail: fmt.Sprintf("parse inclusions of %q: %v", it.Key, err)}
			}
			for _, inc := range includes {
				if _, ok := byKey[inc]; !ok {
					return Result{}, &sitegenerr.FatalStructural{Detail: fmt.Sprintf("item %q references missing template %q", it.Key, inc)}
				}
				graph.AddEdge(it.Key, inc, depgraph.ColorItem)
			}
			it.IncludedTmpls = includes
		}
	}
	if err := graph.ValidateAcyclic(); err != nil {
		return Result{}, err
	}

	// Phase 6b (structural): expand every paginated template-page's source
	// up front. spec.md §4.F/§7: a missing or wrong-shape pagination source
	// is fatal-structural, and must abort before the render/commit loop —
	// not surface as an item-local failure that lets the run commit anyway.
	// Expansion only needs globals (collected in phase 5), so it can happen
	// here regardless of dirtiness; renderItem reuses the result.
	pages := make(map[string][]paginate.Page, len(items))
	for _, it := range items {
		if it.Kind != item.KindTemplatePage || it.Pagination == nil {
			continue
		}
		expanded, err := paginate.Expand(pageBase(it.Key), *it.Pagination, globals)
		if err != nil {
			return Result{}, err
		}
		pages[it.Key] = expanded
	}

	// Phase 7: compute the direct dirty set.
	newHashes := make(map[string]string, len(items))
	var seeds []string
	for _, it := range items {
		res, err := change.Check(txnChangeStore{txn}, it, globals)
		if err != nil {
			return Result{}, err
		}
		newHashes[it.Key] = res.NewHash
		if res.Dirty {
			seeds = append(seeds, it.Key)
		}
	}

	// Phase 8: close over dependents.
	dirtySet := graph.TransitiveDirty(seeds)

	// Compile every template and template-page source so inclusion
	// resolves regardless of dirtiness (spec.md §4.G step 9: "for
	// templates, skipping render... they influence others only via graph").
	templates := make(map[string]render.Template)
	if opts.TemplateRenderer != nil {
		for _, it := range items {
			if it.Kind != item.KindTemplate && it.Kind != item.KindTemplatePage {
				continue
			}
			tmpl, err := opts.TemplateRenderer.CompileTemplate(it.Key, it.RawBytes)
			if err != nil {
				return Result{}, &sitegenerr.FatalStructural{Detail: fmt.Sprintf("compile %q: %v", it.Key, err)}
			}
			templates[it.Key] = tmpl
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, sitegenerr.ErrCancelled
	}

	// Phases 9-10: render and write every dirty item. Workers see only the
	// immutable globals table and templates map; each appends its outcome
	// to a shared results slice guarded by a mutex (the "per-run results
	// queue" of spec.md §5).
	var dirtyItems []*item.Item
	for key := range dirtySet {
		if it, ok := byKey[key]; ok {
			dirtyItems = append(dirtyItems, it)
		}
	}
	sort.Slice(dirtyItems, func(i, j int) bool { return dirtyItems[i].Key < dirtyItems[j].Key })

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	var (
		mu        sync.Mutex
		outcomes  = make([]jobOutcome, 0, len(dirtyItems))
		wg        sync.WaitGroup
		sem       = make(chan struct{}, concurrency)
		cancelled bool
	)
	for _, it := range dirtyItems {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(it *item.Item) {
			defer wg.Done()
			defer func() { <-sem }()

			outputs, rendered, err := renderItem(ctx, it, globals, opts, templates, pages[it.Key])
			written := 0
			var paths []string
			if err == nil {
				for _, o := range outputs {
					if werr := outW.Write(o.Path, o.Data); werr != nil {
						err = fmt.Errorf("write %q: %w", o.Path, werr)
						break
					}
					paths = append(paths, o.Path)
					written++
				}
			}

			mu.Lock()
			outcomes = append(outcomes, jobOutcome{key: it.Key, outputPaths: paths, rendered: rendered, written: written, err: err})
			mu.Unlock()
		}(it)
	}
	wg.Wait()

	if cancelled || ctx.Err() != nil {
		return Result{}, sitegenerr.ErrCancelled
	}

	// Phase 11: commit fingerprints for every successfully processed item.
	result := Result{Deleted: deleted, Hooks: opts.Hooks}
	for _, oc := range outcomes {
		if oc.err != nil {
			result.Failures = append(result.Failures, sitegenerr.ItemLocal{ItemKey: oc.key, Err: oc.err})
			continue
		}
		if err := txn.Upsert(oc.key, newHashes[oc.key], oc.outputPaths); err != nil {
			return Result{}, err
		}
		if oc.rendered {
			result.RenderCount++
		}
		result.WriteCount += oc.written
	}
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].ItemKey < result.Failures[j].ItemKey })

	// Phase 12: finalize.
	if err := txn.Commit(); err != nil {
		return Result{}, err
	}
	committed = true

	return result, nil
}

func validate(opts Options) error {
	if opts.FS == nil {
		return fmt.Errorf("%w: Options.FS is required", sitegenerr.ErrFatalConfig)
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("%w: Options.OutputPath is required", sitegenerr.ErrFatalConfig)
	}
	if opts.TemplateRenderer == nil {
		return fmt.Errorf("%w: Options.TemplateRenderer is required", sitegenerr.ErrFatalConfig)
	}
	if opts.BodyRenderer == nil {
		return fmt.Errorf("%w: Options.BodyRenderer is required", sitegenerr.ErrFatalConfig)
	}
	return nil
}
