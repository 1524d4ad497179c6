// Package item defines the shared value model for the incremental build
// engine: the tagged Item variant, the canonical Value encoding used by
// both front matter and globals, and the small helpers every other
// internal/sitegen package builds on.
package item

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind classifies a discovered source file. It is a total, closed variant:
// every switch over Kind in this module must handle all four cases.
type Kind int

const (
	// KindTemplate is a file under templates/. It is never rendered directly;
	// it influences other items only through the dependency graph.
	KindTemplate Kind = iota
	// KindTemplatePage is simultaneously a template and a page: it may carry
	// declared dependencies and a pagination block, and it expands to zero
	// or more output items.
	KindTemplatePage
	// KindContentPage is a Markdown article with TOML front matter.
	KindContentPage
	// KindStaticAsset is passed through to the output tree unmodified.
	KindStaticAsset
)

// String renders the Kind the way it is spelled in spec text and log lines.
func (k Kind) String() string {
	switch k {
	case KindTemplate:
		return "template"
	case KindTemplatePage:
		return "template-page"
	case KindContentPage:
		return "content-page"
	case KindStaticAsset:
		return "static-asset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Pagination describes the {from, every} block declared in a template-page's
// front matter.
type Pagination struct {
	From  string
	Every int
}

// Item is a unit of work discovered from the site tree. RawBytes is only
// populated for the duration of a run; nothing here is persisted verbatim.
type Item struct {
	Key           string
	Kind          Kind
	RawBytes      []byte
	BodyOffset    int
	Metadata      Value
	DeclaredDeps  []string
	Pagination    *Pagination
	IncludedTmpls []string // statically-parseable template inclusions, item-keys
	OutputPaths   []string
}

// Body returns the item's body bytes, i.e. everything after the front-matter
// fence (or the whole file, for items without one).
func (it *Item) Body() []byte {
	if it.BodyOffset >= len(it.RawBytes) {
		return nil
	}
	return it.RawBytes[it.BodyOffset:]
}

// Globals is the run-scoped, immutable-once-built mapping of collected
// global names to canonical values.
type Globals map[string]Value

// Get returns the value for name, or Absent if the global was never
// collected — mirroring "missing global -> empty bytes, marked as absent"
// from the change-detector rule.
func (g Globals) Get(name string) Value {
	if v, ok := g[name]; ok {
		return v
	}
	return Absent()
}

// ValueKind is the closed variant of canonical value shapes.
type ValueKind int

const (
	VKAbsent ValueKind = iota
	VKString
	VKInt
	VKBool
	VKSequence
	VKMapping
)

// Value is the canonical representation shared by front-matter scalars,
// sequences, mappings, and collected globals. It is comparable by its
// canonical encoding, never by Go equality on nested slices/maps.
type Value struct {
	kind ValueKind
	str  string
	i    int64
	b    bool
	seq  []Value
	m    map[string]Value
}

func Absent() Value                { return Value{kind: VKAbsent} }
func String(s string) Value        { return Value{kind: VKString, str: s} }
func Int(i int64) Value            { return Value{kind: VKInt, i: i} }
func Bool(b bool) Value            { return Value{kind: VKBool, b: b} }
func Sequence(vs ...Value) Value   { return Value{kind: VKSequence, seq: vs} }
func Mapping(m map[string]Value) Value {
	return Value{kind: VKMapping, m: m}
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsAbsent() bool  { return v.kind == VKAbsent }

// AsString returns the string payload and whether v is a VKString.
func (v Value) AsString() (string, bool) {
	if v.kind != VKString {
		return "", false
	}
	return v.str, true
}

// AsInt returns the integer payload and whether v is a VKInt.
func (v Value) AsInt() (int64, bool) {
	if v.kind != VKInt {
		return 0, false
	}
	return v.i, true
}

// AsBool returns the boolean payload and whether v is a VKBool.
func (v Value) AsBool() (bool, bool) {
	if v.kind != VKBool {
		return false, false
	}
	return v.b, true
}

// AsSequence returns the sequence payload and whether v is a VKSequence.
func (v Value) AsSequence() ([]Value, bool) {
	if v.kind != VKSequence {
		return nil, false
	}
	return v.seq, true
}

// AsMapping returns the mapping payload and whether v is a VKMapping.
func (v Value) AsMapping() (map[string]Value, bool) {
	if v.kind != VKMapping {
		return nil, false
	}
	return v.m, true
}

// FromAny converts a decoded TOML/JSON-shaped value (map[string]any,
// []any, string, int64/float64, bool, nil) into the canonical Value tree.
// Floats that are integral are folded into VKInt; this module has no use
// for fractional front-matter values today.
func FromAny(v any) Value {
	switch t := v.(type) {
	case nil:
		return Absent()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float64:
		if t == float64(int64(t)) {
			return Int(int64(t))
		}
		return String(strconv.FormatFloat(t, 'g', -1, 64))
	case []any:
		seq := make([]Value, 0, len(t))
		for _, e := range t {
			seq = append(seq, FromAny(e))
		}
		return Sequence(seq...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromAny(e)
		}
		return Mapping(m)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// Canonicalize writes the deterministic, platform- and run-independent
// encoding of v: UTF-8 strings, decimal integers, `[]`-bracketed sequences,
// key-sorted `{}` mappings, LF-normalized line endings. Absent is written
// as a sentinel distinct from an empty string so the two never collide.
func (v Value) Canonicalize(sb *strings.Builder) {
	switch v.kind {
	case VKAbsent:
		sb.WriteString("\x00A")
	case VKString:
		sb.WriteByte('"')
		sb.WriteString(normalizeNewlines(v.str))
		sb.WriteByte('"')
	case VKInt:
		sb.WriteString(strconv.FormatInt(v.i, 10))
	case VKBool:
		if v.b {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case VKSequence:
		sb.WriteByte('[')
		for i, e := range v.seq {
			if i > 0 {
				sb.WriteByte(',')
			}
			e.Canonicalize(sb)
		}
		sb.WriteByte(']')
	case VKMapping:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte('"')
			sb.WriteString(normalizeNewlines(k))
			sb.WriteString("\":")
			v.m[k].Canonicalize(sb)
		}
		sb.WriteByte('}')
	}
}

// CanonicalString is a convenience wrapper around Canonicalize.
func (v Value) CanonicalString() string {
	var sb strings.Builder
	v.Canonicalize(&sb)
	return sb.String()
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}
