package text

import (
	"testing"

	"streamedit/types"

	"github.com/stretchr/testify/assert"
)

func TestFilterSegments_AcceptsMatchingPaths(t *testing.T) {
	segs := []types.Segment{
		{Search: "a", Replace: "b", FilePath: ""},
		{Search: "c", Replace: "d", FilePath: "/repo/src/main.go"},
		{Search: "e", Replace: "f", FilePath: "main.go"},
		{Search: "g", Replace: "h", FilePath: "other/src/main.go"},
	}

	result := FilterSegments("/repo/src/main.go", "main.go", segs)

	assert.Equal(t, 4, len(result.Pairs), "all segments accepted")
	assert.Equal(t, 0, result.FilteredCount, "nothing filtered")
	assert.Equal(t, types.Pair{Search: "c", Replace: "d"}, result.Pairs[1])
}

func TestFilterSegments_WrongFile(t *testing.T) {
	segs := []types.Segment{
		{Search: "a", Replace: "b", FilePath: "/repo/other.go"},
		{Search: "c", Replace: "d", FilePath: "/repo/xmain.go"},
	}

	result := FilterSegments("/repo/main.go", "main.go", segs)

	assert.Empty(t, result.Pairs)
	assert.Equal(t, 2, result.FilteredCount)
	assert.Equal(t, 2, result.Stats[types.FilterWrongFile])
}

func TestFilterSegments_NoCurrentPathOnlyBlankPaths(t *testing.T) {
	segs := []types.Segment{
		{Search: "a", Replace: "b"},
		{Search: "c", Replace: "d", FilePath: "main.go"},
	}

	result := FilterSegments("", "", segs)

	assert.Equal(t, []types.Pair{{Search: "a", Replace: "b"}}, result.Pairs)
	assert.Equal(t, 1, result.Stats[types.FilterWrongFile])
}

func TestFilterSegments_EmptySearchAndTrimming(t *testing.T) {
	segs := []types.Segment{
		{Search: "   \n\t", Replace: "x"},
		{Search: "\n  foo()  \n", Replace: "  bar()\n"},
	}

	result := FilterSegments("/a.go", "a.go", segs)

	assert.Equal(t, 1, result.FilteredCount)
	assert.Equal(t, 1, result.Stats[types.FilterEmptySearch])
	assert.Equal(t, []types.Pair{{Search: "foo()", Replace: "  bar()\n"}}, result.Pairs,
		"search is trimmed, replace is kept as-is")
}
