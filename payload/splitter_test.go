package payload

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vectorhook/types"
)

func newDoc(original string, texts ...string) types.ResultDocument {
	doc := types.ResultDocument{
		Status:       types.StatusSuccess,
		Model:        "openai",
		OriginalText: original,
	}
	for i, text := range texts {
		doc.Chunks = append(doc.Chunks, types.NewChunkRecord(i+1, text, []float64{0.25, -1, float64(i)}))
	}
	return doc
}

func concatChunks(parts []types.ResultDocument) []types.ChunkRecord {
	var out []types.ChunkRecord
	for _, p := range parts {
		out = append(out, p.Chunks...)
	}
	return out
}

func TestMarshal_WireShape(t *testing.T) {
	doc := types.ResultDocument{
		Status:       types.StatusSuccess,
		Model:        "yandex",
		OriginalText: "a <b> & c",
		Chunks: []types.ChunkRecord{
			{ChunkID: 1, Text: "a <b>", Vector: []float64{0.5, 1}},
			{ChunkID: 2, Text: "& c"},
		},
	}

	b, err := Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t,
		`{"status":"success","model":"yandex","original_text":"a <b> & c","chunks":[`+
			`{"chunk_id":1,"text":"a <b>","vector":[0.5,1]},{"chunk_id":2,"text":"& c","vector":[]}]}`,
		string(b))

	// the caller's slice is left alone
	assert.Nil(t, doc.Chunks[1].Vector)
}

func TestMarshal_OmitsEmptyOriginalText(t *testing.T) {
	b, err := Marshal(types.ResultDocument{Status: types.StatusSuccess, Model: "openai"})
	require.NoError(t, err)
	assert.Equal(t, `{"status":"success","model":"openai","chunks":[]}`, string(b))
}

func TestSplitIfLarge_SmallDocumentUnchanged(t *testing.T) {
	doc := newDoc("hello", "a", "b", "c")
	size, err := Size(doc)
	require.NoError(t, err)

	parts, err := SplitIfLarge(doc, size)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, doc, parts[0])

	want, _ := Marshal(doc)
	got, _ := Marshal(parts[0])
	assert.Equal(t, want, got)
}

func TestSplitIfLarge_InvalidLimit(t *testing.T) {
	_, err := SplitIfLarge(newDoc("", "a"), 0)
	assert.ErrorIs(t, err, ErrInvalidLimit)

	_, err = SplitIfLarge(newDoc("", "a"), -5)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestSplitIfLarge_TenLargeRecords(t *testing.T) {
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = strings.Repeat(string(rune('a'+i)), 120_000)
	}
	doc := newDoc("", texts...)

	parts, err := SplitIfLarge(doc, 500_000)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	assert.Len(t, parts[0].Chunks, 4)
	assert.Len(t, parts[1].Chunks, 4)
	assert.Len(t, parts[2].Chunks, 2)

	for _, p := range parts {
		size, err := Size(p)
		require.NoError(t, err)
		assert.LessOrEqual(t, size, 500_000)
		assert.Equal(t, doc.Status, p.Status)
		assert.Equal(t, doc.Model, p.Model)
		assert.Equal(t, doc.OriginalText, p.OriginalText)
	}
	assert.Equal(t, doc.Chunks, concatChunks(parts))
}

func TestSplitIfLarge_BoundaryIsInclusive(t *testing.T) {
	doc := newDoc("header", "first chunk", "second chunk")
	size, err := Size(doc)
	require.NoError(t, err)

	parts, err := SplitIfLarge(doc, size)
	require.NoError(t, err)
	assert.Len(t, parts, 1)

	parts, err = SplitIfLarge(doc, size-1)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, doc.Chunks, concatChunks(parts))
}

func TestSplitIfLarge_PartSizesMatchSerialization(t *testing.T) {
	// varied record sizes, every limit from tight to loose
	texts := make([]string, 40)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk-%d-%s", i, strings.Repeat("ü", (i*37)%211))
	}
	doc := newDoc(strings.Repeat("orig ", 20), texts...)

	for maxBytes := 400; maxBytes <= 6000; maxBytes += 173 {
		parts, err := SplitIfLarge(doc, maxBytes)
		require.NoError(t, err)
		require.NotEmpty(t, parts)
		assert.Equal(t, doc.Chunks, concatChunks(parts), "max=%d", maxBytes)

		for i, p := range parts {
			require.NotEmpty(t, p.Chunks, "max=%d part=%d", maxBytes, i)
			size, err := Size(p)
			require.NoError(t, err)
			if size > maxBytes {
				assert.Len(t, p.Chunks, 1, "only singletons may exceed: max=%d part=%d", maxBytes, i)
			}

			// greedy: the next record would not have fit
			if i+1 < len(parts) {
				grown := p.WithChunks(append(append([]types.ChunkRecord{}, p.Chunks...), parts[i+1].Chunks[0]))
				grownSize, err := Size(grown)
				require.NoError(t, err)
				assert.Greater(t, grownSize, maxBytes, "max=%d part=%d", maxBytes, i)
			}
		}
	}
}

func TestSplitIfLarge_OversizedSingleton(t *testing.T) {
	doc := newDoc("", "small one", strings.Repeat("x", 2000), "small two")

	parts, err := SplitIfLarge(doc, 500)
	require.NoError(t, err)
	require.Len(t, parts, 3)

	assert.Equal(t, []int{1}, chunkIDs(parts[0]))
	assert.Equal(t, []int{2}, chunkIDs(parts[1]))
	assert.Equal(t, []int{3}, chunkIDs(parts[2]))

	size, _ := Size(parts[1])
	assert.Greater(t, size, 500)
	for _, i := range []int{0, 2} {
		size, _ := Size(parts[i])
		assert.LessOrEqual(t, size, 500)
	}
}

func TestSplitIfLarge_HeaderLargerThanLimit(t *testing.T) {
	doc := newDoc(strings.Repeat("o", 1000), "a", "b", "c")

	parts, err := SplitIfLarge(doc, 200)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.Len(t, p.Chunks, 1)
		assert.Equal(t, doc.OriginalText, p.OriginalText)
	}
	assert.Equal(t, doc.Chunks, concatChunks(parts))
}

func TestSplitIfLarge_SingleRecordIsNeverSplit(t *testing.T) {
	doc := newDoc("", strings.Repeat("x", 1000))
	parts, err := SplitIfLarge(doc, 100)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, doc, parts[0])
}

func TestSplitIfLarge_Idempotent(t *testing.T) {
	texts := make([]string, 25)
	for i := range texts {
		texts[i] = strings.Repeat("z", 50+i*10)
	}
	doc := newDoc("idempotence", texts...)

	parts, err := SplitIfLarge(doc, 1500)
	require.NoError(t, err)
	require.Greater(t, len(parts), 1)

	for _, p := range parts {
		again, err := SplitIfLarge(p, 1500)
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, p, again[0])
	}
}

func TestSplitIfLarge_PartsDoNotAlias(t *testing.T) {
	doc := newDoc("", "aaaa", "bbbb", "cccc", "dddd")
	size, _ := Size(newDoc("", "aaaa", "bbbb"))

	parts, err := SplitIfLarge(doc, size)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	parts[0].Chunks[0].Text = "changed"
	assert.Equal(t, "cccc", parts[1].Chunks[0].Text)
	assert.Equal(t, "aaaa", doc.Chunks[0].Text)
}

func chunkIDs(doc types.ResultDocument) []int {
	ids := make([]int, len(doc.Chunks))
	for i, c := range doc.Chunks {
		ids[i] = c.ChunkID
	}
	return ids
}
