// Package discover implements the Source Discoverer of spec.md §4.B: a
// deterministic filesystem walk that classifies every regular file into
// one of the four item kinds and returns them item-key sorted.
package discover

import (
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/frontmatter"
	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
)

// Classifier supplies the configuration-owned facts the Discoverer needs
// but does not own itself: the templating engine's file extension and the
// site's ignore-list patterns (spec.md §4.B: "the real extension list is
// configuration-owned, outside this module's concern").
type Classifier struct {
	TemplateExtension string   // e.g. ".html"
	IgnorePatterns    []string // filepath.Match-style globs, matched against the item-key
}

// Options configures a single discovery pass.
type Options struct {
	Root         string
	OutputPath   string // skipped entirely, even if nested under Root
	StoreFile    string // skipped by exact match against its item-key
	Classifier   Classifier
	ReadFile     func(path string) ([]byte, error)
}

// Discover walks opts.Root and returns a deterministic, item-key-sorted
// slice of Items with Kind decided, and RawBytes populated for every file.
// Front-matter parsing (populating Metadata/DeclaredDeps/Pagination) is a
// separate phase (package frontmatter), run by the orchestrator.
func Discover(fsys fs.FS, opts Options) ([]*item.Item, error) {
	var keys []string
	byKey := make(map[string][]byte)

	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("discover: walk %q: %w", path, err)
		}
		if path == "." {
			return nil
		}
		key := normalizeKey(path)

		if d.IsDir() {
			if shouldSkipDir(key, opts) {
				return fs.SkipDir
			}
			return nil
		}
		if shouldSkipFile(key, opts) {
			return nil
		}

		raw, err := readFile(fsys, path, opts)
		if err != nil {
			return fmt.Errorf("discover: read %q: %w", path, err)
		}
		keys = append(keys, key)
		byKey[key] = raw
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(keys)

	items := make([]*item.Item, 0, len(keys))
	for _, key := range keys {
		raw := byKey[key]
		kind, err := classify(key, raw, opts.Classifier)
		if err != nil {
			return nil, err
		}
		items = append(items, &item.Item{
			Key:      key,
			Kind:     kind,
			RawBytes: raw,
		})
	}
	return items, nil
}

func readFile(fsys fs.FS, path string, opts Options) ([]byte, error) {
	if opts.ReadFile != nil {
		return opts.ReadFile(path)
	}
	return fs.ReadFile(fsys, path)
}

func shouldSkipDir(key string, opts Options) bool {
	base := filepath.Base(key)
	if strings.HasPrefix(base, ".") {
		return true
	}
	if opts.OutputPath != "" && (key == normalizeKey(opts.OutputPath) || strings.HasPrefix(key, normalizeKey(opts.OutputPath)+"/")) {
		return true
	}
	return matchesIgnore(key, opts.Classifier.IgnorePatterns)
}

// storeSidecarSuffixes are the live files a SQLite-backed fingerprint store
// may create alongside its main file: the advisory lock fingerprint.Store
// itself uses, plus the WAL/shared-memory/rollback-journal files
// modernc.org/sqlite can create depending on journal mode. None of these
// are part of the site's content and must never be discovered as a static
// asset while a build is in progress.
var storeSidecarSuffixes = []string{".lock", "-wal", "-shm", "-journal"}

func shouldSkipFile(key string, opts Options) bool {
	if opts.StoreFile != "" {
		storeKey := normalizeKey(opts.StoreFile)
		if key == storeKey {
			return true
		}
		for _, suffix := range storeSidecarSuffixes {
			if key == storeKey+suffix {
				return true
			}
		}
	}
	if strings.HasPrefix(filepath.Base(key), ".") {
		return true
	}
	return matchesIgnore(key, opts.Classifier.IgnorePatterns)
}

func matchesIgnore(key string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, key); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(key)); ok {
			return true
		}
	}
	return false
}

// classify decides Kind per the rules of spec.md §4.B.
func classify(key string, raw []byte, c Classifier) (item.Kind, error) {
	if key == "templates" || strings.HasPrefix(key, "templates/") {
		return item.KindTemplate, nil
	}

	res, err := frontmatter.Parse(raw)
	if err != nil {
		// A malformed fence is a fatal-structural error, not a classification
		// failure; surface it directly so the orchestrator aborts.
		return 0, err
	}
	hasFence := res.BodyOffset > 0 || hasEmptyFence(raw)
	meta := res.Metadata

	kindField := frontmatter.StringField(meta, "kind")
	hasPagination := frontmatter.PaginationField(meta) != nil
	hasDeps := len(frontmatter.StringSequenceField(meta, "dependencies")) > 0

	if hasFence && (kindField == "" || kindField == "page") && !hasPagination && !hasDeps && c.TemplateExtension != "" && filepath.Ext(key) != c.TemplateExtension {
		return item.KindContentPage, nil
	}
	if hasFence && (hasPagination || hasDeps || (c.TemplateExtension != "" && filepath.Ext(key) == c.TemplateExtension)) {
		return item.KindTemplatePage, nil
	}
	if hasFence && (kindField == "" || kindField == "page") {
		return item.KindContentPage, nil
	}
	return item.KindStaticAsset, nil
}

func hasEmptyFence(raw []byte) bool {
	return strings.HasPrefix(string(raw), "---\n---\n") || string(raw) == "---\n---"
}

// normalizeKey applies the forward-slash normalization spec.md §3 requires
// of every item-key, and cleans the result (collapsing "./" prefixes and
// redundant separators) so that e.g. Options.OutputPath "./public" and the
// walk key "public" compare equal. Keys are never lowercased: this module
// does not detect case-insensitive filesystems (an external, platform-owned
// concern).
func normalizeKey(p string) string {
	return path.Clean(filepath.ToSlash(p))
}
