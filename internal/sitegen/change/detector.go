// Package change implements the content-addressed dirtiness rule from
// spec.md §4.E: fold an item's raw bytes together with its declared
// dependency values into one canonical byte stream, hash it, and compare
// against the fingerprint store's prior digest.
package change

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
)

// EffectiveContent returns the canonical concatenation of raw bytes and,
// in sorted order, every (name, canonical(value)) pair for names in deps.
// A missing global is folded in as item.Absent(), matching "missing global
// -> empty bytes, marked as absent".
func EffectiveContent(raw []byte, deps []string, globals item.Globals) []byte {
	var sb strings.Builder
	sb.Write(normalizeLineEndings(raw))

	sorted := append([]string(nil), deps...)
	sort.Strings(sorted)

	for _, name := range sorted {
		sb.WriteString("\x00DEP:")
		sb.WriteString(name)
		sb.WriteString("=")
		globals.Get(name).Canonicalize(&sb)
	}
	return []byte(sb.String())
}

// Hash returns the SHA-256 hex digest of the effective content.
func Hash(raw []byte, deps []string, globals item.Globals) string {
	sum := sha256.Sum256(EffectiveContent(raw, deps, globals))
	return hex.EncodeToString(sum[:])
}

// Store is the minimal read view of the fingerprint store the detector
// needs: the prior digest for a key, if any.
type Store interface {
	Get(key string) (digest string, ok bool, err error)
}

// Result reports the outcome of checking a single item.
type Result struct {
	ItemKey  string
	NewHash  string
	OldHash  string
	OldFound bool
	Dirty    bool
}

// Check computes the new hash for it and compares it against store's prior
// record, implementing the four-step rule verbatim.
func Check(store Store, it *item.Item, globals item.Globals) (Result, error) {
	newHash := Hash(it.RawBytes, it.DeclaredDeps, globals)
	oldHash, found, err := store.Get(it.Key)
	if err != nil {
		return Result{}, err
	}
	return Result{
		ItemKey:  it.Key,
		NewHash:  newHash,
		OldHash:  oldHash,
		OldFound: found,
		Dirty:    !found || oldHash != newHash,
	}, nil
}

func normalizeLineEndings(b []byte) []byte {
	s := string(b)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}
