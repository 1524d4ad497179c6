package engine

import (
	"path/filepath"
	"strings"
)

// pageBase strips the source extension, e.g. "p/q/name.md" -> "p/q/name".
// Used both as the natural single-page output base and as the pagination
// base path handed to package paginate.
func pageBase(key string) string {
	ext := filepath.Ext(key)
	return strings.TrimSuffix(key, ext)
}

// naturalPagePath is the default output path for a content-page or an
// unpaginated template-page: "<p>/<q>/<name>/index.html" (spec.md §6).
func naturalPagePath(key string) string {
	return pageBase(key) + "/index.html"
}

// naturalAssetPath is the default output path for a static asset: the
// source-relative path, unchanged.
func naturalAssetPath(key string) string {
	return key
}
