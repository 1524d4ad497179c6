package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/discover"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/enginetest"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/fingerprint"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/sitegenerr"
)

func baseOptions(t *testing.T, fsys fstest.MapFS) (Options, *enginetest.StubRenderer) {
	t.Helper()
	dir := t.TempDir()
	stub := &enginetest.StubRenderer{}
	return Options{
		FS:               fsys,
		Root:             ".",
		OutputPath:       filepath.Join(dir, "out"),
		StorePath:        filepath.Join(dir, "site.db"),
		Classifier:       discover.Classifier{TemplateExtension: ".html"},
		TemplateRenderer: stub,
		BodyRenderer:     stub,
	}, stub
}

// TestS1FirstRunWritesSecondRunWritesNothing implements spec.md §8 S1 and
// property 2 ("no-op second run").
func TestS1FirstRunWritesSecondRunWritesNothing(t *testing.T) {
	fsys := fstest.MapFS{
		"posts/hello.md": {Data: []byte("---\ntitle = \"Hi\"\n---\nhello\n")},
	}
	opts, _ := baseOptions(t, fsys)

	res1, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res1.RenderCount)
	assert.Equal(t, 1, res1.WriteCount)

	out, err := os.ReadFile(filepath.Join(opts.OutputPath, "posts/hello/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<body>hello</body>", string(out))

	res2, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.RenderCount)
	assert.Equal(t, 0, res2.WriteCount)
}

// TestS2EditRewritesOnlyThatItem implements spec.md §8 S2 / property 3.
func TestS2EditRewritesOnlyThatItem(t *testing.T) {
	fsys := fstest.MapFS{
		"posts/hello.md": {Data: []byte("---\ntitle = \"Hi\"\n---\nhello\n")},
		"posts/other.md": {Data: []byte("---\ntitle = \"Other\"\n---\nuntouched\n")},
	}
	opts, _ := baseOptions(t, fsys)

	_, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	otherPath := filepath.Join(opts.OutputPath, "posts/other/index.html")
	before, err := os.Stat(otherPath)
	require.NoError(t, err)

	fsys["posts/hello.md"] = &fstest.MapFile{Data: []byte("---\ntitle = \"Hi\"\n---\nhello!\n")}
	res2, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res2.RenderCount)

	out, err := os.ReadFile(filepath.Join(opts.OutputPath, "posts/hello/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<body>hello!</body>", string(out))

	after, err := os.Stat(otherPath)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "untouched item must not be rewritten")
}

// TestS3GlobalDependentRebuild implements spec.md §8 S3 / property 4.
func TestS3GlobalDependentRebuild(t *testing.T) {
	fsys := fstest.MapFS{
		"tags.html":  {Data: []byte("---\ndependencies = [\"tags\"]\n---\n{{.Globals}}")},
		"posts/a.md": {Data: []byte("---\ntitle = \"A\"\ntags = [\"a\"]\n---\nbody-a\n")},
	}
	opts, _ := baseOptions(t, fsys)
	opts.Collectors = []GlobalCollector{TagsCollector}

	_, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	tagsPath := filepath.Join(opts.OutputPath, "tags/index.html")
	aPath := filepath.Join(opts.OutputPath, "posts/a/index.html")
	_, err = os.Stat(tagsPath)
	require.NoError(t, err)

	res2, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.RenderCount, "unchanged tags must not trigger a rebuild")

	tagsBefore, err := os.ReadFile(tagsPath)
	require.NoError(t, err)
	aBefore, err := os.Stat(aPath)
	require.NoError(t, err)

	fsys["posts/b.md"] = &fstest.MapFile{Data: []byte("---\ntitle = \"B\"\ntags = [\"b\"]\n---\nbody-b\n")}
	res3, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res3.RenderCount, "tags.html rebuilds and posts/b.md is new")

	tagsAfter, err := os.ReadFile(tagsPath)
	require.NoError(t, err)
	assert.NotEqual(t, string(tagsBefore), string(tagsAfter), "tags.html must rebuild when the tags global changes")

	aAfter, err := os.Stat(aPath)
	require.NoError(t, err)
	assert.Equal(t, aBefore.ModTime(), aAfter.ModTime(), "posts/a.md source is unchanged and must not rebuild")
}

// TestTemplateCascade implements spec.md §8 property 5.
func TestTemplateCascade(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/base.html": {Data: []byte("base-v1")},
		"page.html":           {Data: []byte("---\ndependencies = [\"tags\"]\n---\n{{include \"templates/base.html\"}}")},
	}
	opts, _ := baseOptions(t, fsys)
	opts.Collectors = []GlobalCollector{TagsCollector}

	_, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	pagePath := filepath.Join(opts.OutputPath, "page/index.html")
	before, err := os.ReadFile(pagePath)
	require.NoError(t, err)

	fsys["templates/base.html"] = &fstest.MapFile{Data: []byte("base-v2")}
	res2, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res2.RenderCount, "only page.html re-renders; templates/base.html is never rendered itself")

	after, err := os.ReadFile(pagePath)
	require.NoError(t, err)
	assert.NotEqual(t, string(before), string(after))
}

// TestDeletionRemovesOutputAndFingerprint implements spec.md §8 S5 / property 6.
func TestDeletionRemovesOutputAndFingerprint(t *testing.T) {
	fsys := fstest.MapFS{
		"posts/hello.md": {Data: []byte("---\ntitle = \"Hi\"\n---\nhello\n")},
		"posts/keep.md":  {Data: []byte("---\ntitle = \"Keep\"\n---\nkeep\n")},
	}
	opts, _ := baseOptions(t, fsys)

	_, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	helloPath := filepath.Join(opts.OutputPath, "posts/hello/index.html")
	_, err = os.Stat(helloPath)
	require.NoError(t, err)

	fsys2 := fstest.MapFS{
		"posts/keep.md": fsys["posts/keep.md"],
	}
	opts.FS = fsys2

	res2, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Contains(t, res2.Deleted, "posts/hello.md")

	_, err = os.Stat(helloPath)
	assert.True(t, os.IsNotExist(err), "deleted source's output must be removed")

	keepPath := filepath.Join(opts.OutputPath, "posts/keep/index.html")
	_, err = os.Stat(keepPath)
	assert.NoError(t, err, "untouched item must be unaffected by the deletion")
}

// TestPaginationFanOut implements spec.md §8 S4 / property 7.
func TestPaginationFanOut(t *testing.T) {
	fsys := fstest.MapFS{
		"listing.html": {Data: []byte("---\n[pagination]\nfrom = \"xs\"\nevery = 2\n---\nlisting")},
	}
	opts, _ := baseOptions(t, fsys)
	opts.Collectors = []GlobalCollector{{
		Name: "xs",
		Collect: func([]*item.Item) item.Value {
			return item.Sequence(item.String("a"), item.String("b"), item.String("c"), item.String("d"), item.String("e"))
		},
	}}

	res, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.WriteCount)

	for _, p := range []string{"listing/index.html", "listing/1/index.html", "listing/2/index.html"} {
		_, err := os.Stat(filepath.Join(opts.OutputPath, p))
		assert.NoError(t, err, "expected pagination output %s", p)
	}
}

// TestCleanForcesFullRebuild implements spec.md §8 property 9.
func TestCleanForcesFullRebuild(t *testing.T) {
	fsys := fstest.MapFS{
		"posts/hello.md": {Data: []byte("---\ntitle = \"Hi\"\n---\nhello\n")},
	}
	opts, _ := baseOptions(t, fsys)

	_, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)

	res2, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res2.RenderCount)

	opts.Clean = true
	res3, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res3.RenderCount, "--clean must force a full rebuild")
}

// TestMissingPaginationSourceIsFatalAndStoreUntouched implements spec.md §7's
// "pagination source missing or wrong shape -> abort the run, leave store
// untouched": a template-page's pagination.from must be validated before any
// item renders or the store commits, not surfaced as an item-local failure
// that lets the rest of the run commit anyway.
func TestMissingPaginationSourceIsFatalAndStoreUntouched(t *testing.T) {
	fsys := fstest.MapFS{
		"listing.html": {Data: []byte("---\n[pagination]\nfrom = \"xs\"\nevery = 2\n---\nlisting")},
		"posts/a.md":   {Data: []byte("---\ntitle = \"A\"\n---\nbody a\n")},
	}
	opts, _ := baseOptions(t, fsys)
	// No collector produces "xs": pagination.from is missing.

	_, err := Run(context.Background(), opts, nil)
	require.Error(t, err)
	var structErr *sitegenerr.FatalStructural
	assert.ErrorAs(t, err, &structErr, "missing pagination source must be fatal-structural, not item-local")

	_, statErr := os.Stat(opts.OutputPath)
	assert.True(t, os.IsNotExist(statErr), "a fatal-structural pagination error must leave the output tree untouched")

	// The aborted transaction must not have committed posts/a.md's
	// fingerprint: re-running with a working "xs" collector must still
	// treat posts/a.md as dirty.
	opts.Collectors = []GlobalCollector{{
		Name:    "xs",
		Collect: func([]*item.Item) item.Value { return item.Sequence() },
	}}
	res2, err := Run(context.Background(), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res2.RenderCount, "posts/a.md and listing.html must both render on the first successful run")
}

// TestTemplateCycleIsFatalAndStoreUntouched implements spec.md §8 S6 / property 8-ish.
func TestTemplateCycleIsFatalAndStoreUntouched(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/a.html": {Data: []byte("{{include \"templates/b.html\"}}")},
		"templates/b.html": {Data: []byte("{{include \"templates/a.html\"}}")},
	}
	opts, _ := baseOptions(t, fsys)

	_, err := Run(context.Background(), opts, nil)
	require.Error(t, err)

	_, statErr := os.Stat(opts.OutputPath)
	assert.True(t, os.IsNotExist(statErr), "a fatal-structural error must leave the output tree untouched")

	store, err := fingerprint.Open(opts.StorePath)
	require.NoError(t, err)
	defer store.Close()
	txn, err := store.Begin()
	require.NoError(t, err)
	keys, err := txn.AllKeys()
	require.NoError(t, err)
	assert.Empty(t, keys, "a fatal-structural error must leave no fingerprint rows behind")
	require.NoError(t, txn.Abort())
}
