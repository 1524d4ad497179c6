// Package frontmatter splits an item's raw bytes into a TOML metadata
// block and a body, per spec.md §4.C. The fence-scanning shape mirrors
// the reference repo's internal/frontmatter.Split (line-oriented,
// `---`-delimited); the enclosed region is decoded as TOML via
// github.com/pelletier/go-toml/v2 rather than YAML, per this engine's
// front-matter dialect.
package frontmatter

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
)

const fence = "---"

// ParseError is a fatal-structural error (spec.md §7) carrying a line
// number: the last line of the file for an unterminated fence, or the first
// line of the front-matter block for malformed TOML.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("frontmatter: line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("frontmatter: %s", e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Result is the outcome of a successful parse.
type Result struct {
	Metadata   item.Value // VKMapping; empty if there was no fence
	BodyOffset int
}

// Parse splits raw into a metadata block and a body offset. Items without
// a fence are passed through with empty metadata and BodyOffset 0, exactly
// as spec.md §4.C requires.
func Parse(raw []byte) (Result, error) {
	openLine := []byte(fence + "\n")
	if !bytes.HasPrefix(raw, openLine) {
		return Result{Metadata: item.Mapping(nil), BodyOffset: 0}, nil
	}

	fenceStart := len(openLine)
	closeLine := []byte(fence + "\n")

	// Empty front-matter block: the closing fence follows immediately.
	if bytes.Equal(raw[fenceStart:], []byte(fence)) {
		return Result{Metadata: item.Mapping(map[string]item.Value{}), BodyOffset: len(raw)}, nil
	}
	if bytes.HasPrefix(raw[fenceStart:], closeLine) {
		bodyStart := fenceStart + len(closeLine)
		return Result{Metadata: item.Mapping(map[string]item.Value{}), BodyOffset: bodyStart}, nil
	}

	closeSeq := []byte("\n" + fence + "\n")
	idx := bytes.Index(raw[fenceStart:], closeSeq)
	if idx < 0 {
		// A final line that is a bare closing fence with no trailing
		// newline, e.g. "---\ntitle = \"x\"\n---", still terminates the
		// block: consistent with discover.hasEmptyFence's classification-
		// time fence check, which accepts the same shape.
		sub := raw[fenceStart:]
		bareClose := []byte("\n" + fence)
		if bytes.HasSuffix(sub, bareClose) {
			closeStart := len(sub) - len(bareClose)
			tomlBlock := sub[:closeStart+1] // include trailing newline of last line
			meta, err := decodeTOML(tomlBlock, raw)
			if err != nil {
				return Result{}, err
			}
			return Result{Metadata: meta, BodyOffset: len(raw)}, nil
		}
		return Result{}, &ParseError{
			Line: lineNumber(raw, len(raw)),
			Msg:  "unterminated front-matter fence",
		}
	}

	tomlBlock := raw[fenceStart : fenceStart+idx+1] // include trailing newline of last line
	bodyStart := fenceStart + idx + len(closeSeq)

	meta, err := decodeTOML(tomlBlock, raw)
	if err != nil {
		return Result{}, err
	}
	return Result{Metadata: meta, BodyOffset: bodyStart}, nil
}

func decodeTOML(block []byte, fullDoc []byte) (item.Value, error) {
	if len(bytes.TrimSpace(block)) == 0 {
		return item.Mapping(map[string]item.Value{}), nil
	}
	var decoded map[string]any
	if err := toml.Unmarshal(block, &decoded); err != nil {
		offset := bytes.Index(fullDoc, block)
		if offset < 0 {
			offset = 0
		}
		return item.Value{}, &ParseError{
			Line: lineNumber(fullDoc, offset),
			Msg:  "malformed TOML front matter",
			Err:  err,
		}
	}
	return item.FromAny(decoded), nil
}

func lineNumber(b []byte, offset int) int {
	if offset > len(b) {
		offset = len(b)
	}
	return bytes.Count(b[:offset], []byte("\n")) + 1
}

// StringField returns metadata[name] as a string, or "" if absent or of
// another kind.
func StringField(meta item.Value, name string) string {
	m, ok := meta.AsMapping()
	if !ok {
		return ""
	}
	s, _ := m[name].AsString()
	return s
}

// StringSequenceField returns metadata[name] as []string, dropping any
// non-string elements, or nil if absent.
func StringSequenceField(meta item.Value, name string) []string {
	m, ok := meta.AsMapping()
	if !ok {
		return nil
	}
	seq, ok := m[name].AsSequence()
	if !ok {
		return nil
	}
	out := make([]string, 0, len(seq))
	for _, v := range seq {
		if s, ok := v.AsString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// PaginationField decodes metadata["pagination"] into an *item.Pagination,
// or nil if absent or malformed.
func PaginationField(meta item.Value) *item.Pagination {
	m, ok := meta.AsMapping()
	if !ok {
		return nil
	}
	pm, ok := m["pagination"].AsMapping()
	if !ok {
		return nil
	}
	from, _ := pm["from"].AsString()
	if from == "" {
		return nil
	}
	every, _ := pm["every"].AsInt()
	if every <= 0 {
		return nil
	}
	return &item.Pagination{From: from, Every: int(every)}
}
