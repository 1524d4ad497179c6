package paginate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docbuilder/internal/sitegen/item"
)

func strs(vals ...string) item.Value {
	seq := make([]item.Value, len(vals))
	for i, v := range vals {
		seq[i] = item.String(v)
	}
	return item.Sequence(seq...)
}

// TestFanOutFiveOverTwo covers spec.md §8 property 7 / S4 literally.
func TestFanOutFiveOverTwo(t *testing.T) {
	globals := item.Globals{"xs": strs("a", "b", "c", "d", "e")}
	pages, err := Expand("tags", item.Pagination{From: "xs", Every: 2}, globals)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, "tags/index.html", pages[0].OutputPath)
	assert.Equal(t, "tags/1/index.html", pages[1].OutputPath)
	assert.Equal(t, "tags/2/index.html", pages[2].OutputPath)

	m0, _ := pages[0].Context.AsMapping()
	items0, _ := m0["items"].AsSequence()
	assert.Len(t, items0, 2)
	assert.True(t, m0["prev"].IsAbsent())
	next0, _ := m0["next"].AsString()
	assert.Equal(t, "tags/1/index.html", next0)

	m2, _ := pages[2].Context.AsMapping()
	items2, _ := m2["items"].AsSequence()
	assert.Len(t, items2, 1, "last chunk is the shorter remainder")
	assert.True(t, m2["next"].IsAbsent())
	prev2, _ := m2["prev"].AsString()
	assert.Equal(t, "tags/1/index.html", prev2)

	count2, _ := m2["count"].AsInt()
	assert.EqualValues(t, 3, count2)
	idx2, _ := m2["index"].AsInt()
	assert.EqualValues(t, 2, idx2)
}

func TestExpandMissingGlobalIsFatal(t *testing.T) {
	_, err := Expand("tags", item.Pagination{From: "xs", Every: 2}, item.Globals{})
	require.Error(t, err)
}

func TestExpandNonSequenceGlobalIsFatal(t *testing.T) {
	globals := item.Globals{"xs": item.String("not a sequence")}
	_, err := Expand("tags", item.Pagination{From: "xs", Every: 2}, globals)
	require.Error(t, err)
}

func TestExpandZeroEveryIsFatal(t *testing.T) {
	globals := item.Globals{"xs": strs("a")}
	_, err := Expand("tags", item.Pagination{From: "xs", Every: 0}, globals)
	require.Error(t, err)
}

func TestExpandEmptySequenceProducesSinglePage(t *testing.T) {
	globals := item.Globals{"xs": item.Sequence()}
	pages, err := Expand("tags", item.Pagination{From: "xs", Every: 2}, globals)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "tags/index.html", pages[0].OutputPath)
}
