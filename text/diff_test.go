package text

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

// applyHunks applies hunk ranges from the last to the first so earlier
// offsets stay valid
func applyHunks(base string, hunks []HunkRange) string {
	sorted := append([]HunkRange(nil), hunks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BaseStart > sorted[j].BaseStart })
	for _, h := range sorted {
		base = base[:h.BaseStart] + h.ProposedSlice + base[h.BaseEnd:]
	}
	return base
}

func TestComputeHunkRanges_Modification(t *testing.T) {
	base := "function f(){\n  return 1;\n}"
	proposed := "function f(){\n  return 2;\n}"

	hunks := ComputeHunkRanges(base, proposed)

	assert.Equal(t, []HunkRange{{BaseStart: 14, BaseEnd: 26, ProposedSlice: "  return 2;\n"}}, hunks)
}

func TestComputeHunkRanges_Insertion(t *testing.T) {
	hunks := ComputeHunkRanges("a\nc\n", "a\nb\nc\n")
	assert.Equal(t, []HunkRange{{BaseStart: 2, BaseEnd: 2, ProposedSlice: "b\n"}}, hunks)
}

func TestComputeHunkRanges_Deletion(t *testing.T) {
	hunks := ComputeHunkRanges("a\nb\nc\n", "a\nc\n")
	assert.Equal(t, []HunkRange{{BaseStart: 2, BaseEnd: 4, ProposedSlice: ""}}, hunks)
}

func TestComputeHunkRanges_Identical(t *testing.T) {
	assert.Nil(t, ComputeHunkRanges("same\ntext", "same\ntext"))
}

func TestComputeHunkRanges_LastLineWithoutNewline(t *testing.T) {
	hunks := ComputeHunkRanges("a\nb", "a\nb\nc")
	assert.Equal(t, 1, len(hunks))
	assert.Equal(t, "a\nb\nc", applyHunks("a\nb", hunks))
}

func TestComputeHunkRanges_DisjointAndReconstructs(t *testing.T) {
	cases := []struct{ base, proposed string }{
		{"one\ntwo\nthree\nfour\nfive\n", "one\nTWO\nthree\nfour\nFIVE\nsix\n"},
		{"x\n", ""},
		{"", "new file\ncontent"},
		{"a\nb\nc\nd\ne\nf", "a\nc\nd\nX\nf\ng"},
		{"keep\r\nold\r\nkeep\r\n", "keep\r\nnew\r\nkeep\r\n"},
	}

	for _, c := range cases {
		hunks := ComputeHunkRanges(c.base, c.proposed)
		for i := 1; i < len(hunks); i++ {
			assert.LessOrEqual(t, hunks[i-1].BaseEnd, hunks[i].BaseStart, "hunks ascending and disjoint")
		}
		for _, h := range hunks {
			assert.True(t, 0 <= h.BaseStart && h.BaseStart <= h.BaseEnd && h.BaseEnd <= len(c.base), "range inside base")
		}
		assert.Equal(t, c.proposed, applyHunks(c.base, hunks), "applying every hunk yields the proposal")
	}
}

func TestLineStartOffsets(t *testing.T) {
	assert.Equal(t, []int{0, 2, 4}, LineStartOffsets("a\nb"))
	assert.Equal(t, []int{0, 2, 3}, LineStartOffsets("a\n"))
	assert.Equal(t, []int{0, 1}, LineStartOffsets(""))
}

func TestCompareLines(t *testing.T) {
	fragments := CompareLines("a\nb\nc\n", "a\nB\nc\nd\n")
	assert.Equal(t, []LineFragment{
		{StartLine1: 1, EndLine1: 2, StartLine2: 1, EndLine2: 2},
		{StartLine1: 3, EndLine1: 3, StartLine2: 3, EndLine2: 4},
	}, fragments)
}

func TestLineSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, LineSimilarity("", ""))
	assert.Equal(t, 0.0, LineSimilarity("abc", ""))
	assert.Equal(t, 1.0, LineSimilarity("same", "same"))
	assert.Greater(t, LineSimilarity("return x", "return y"), 0.8)
}
