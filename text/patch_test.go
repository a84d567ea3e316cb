package text

import (
	"testing"

	"streamedit/types"

	"github.com/stretchr/testify/assert"
)

func TestDeduplicatePairs(t *testing.T) {
	tests := []struct {
		name  string
		pairs []types.Pair
		want  []types.Pair
	}{
		{
			name:  "repeated search keeps first",
			pairs: []types.Pair{{Search: "a", Replace: "b"}, {Search: "a", Replace: "c"}},
			want:  []types.Pair{{Search: "a", Replace: "b"}},
		},
		{
			name:  "no-op pair dropped",
			pairs: []types.Pair{{Search: " x ", Replace: "x"}},
			want:  []types.Pair{},
		},
		{
			name:  "narrower search subsumed",
			pairs: []types.Pair{{Search: "abc", Replace: "z"}, {Search: "b", Replace: "y"}},
			want:  []types.Pair{{Search: "abc", Replace: "z"}},
		},
		{
			name:  "wider search subsumed",
			pairs: []types.Pair{{Search: "ab", Replace: "q"}, {Search: "abc", Replace: "z"}},
			want:  []types.Pair{{Search: "ab", Replace: "q"}},
		},
		{
			name:  "independent searches kept in order",
			pairs: []types.Pair{{Search: "one", Replace: "1"}, {Search: "two", Replace: "2"}},
			want:  []types.Pair{{Search: "one", Replace: "1"}, {Search: "two", Replace: "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeduplicatePairs(tt.pairs))
		})
	}
}

func TestApplySearchReplace_ExactReplacesAllOccurrences(t *testing.T) {
	got := ApplySearchReplace("x=1; y; x=1;", []types.Pair{{Search: "x=1", Replace: "x=2"}})
	assert.Equal(t, "x=2; y; x=2;", got)
}

func TestApplySearchReplace_SingleLineEdit(t *testing.T) {
	base := "function f(){\n  return 1;\n}"
	got := ApplySearchReplace(base, []types.Pair{{Search: "return 1;", Replace: "return 2;"}})
	assert.Equal(t, "function f(){\n  return 2;\n}", got)
}

func TestApplySearchReplace_ChainedEditsAreCumulative(t *testing.T) {
	pairs := []types.Pair{
		{Search: "x := 1", Replace: "y := 2"},
		{Search: "y := 2", Replace: "z := 3"},
	}
	assert.Equal(t, "z := 3\n", ApplySearchReplace("x := 1\n", pairs))
}

func TestApplySearchReplace_CRLFDocument(t *testing.T) {
	base := "a\r\nb\r\nc"
	got := ApplySearchReplace(base, []types.Pair{{Search: "a\nb", Replace: "A\nB"}})
	assert.Equal(t, "A\r\nB\r\nc", got)
}

func TestApplySearchReplace_WhitespaceFallbackFirstMatchOnly(t *testing.T) {
	base := "if  x  {\n}\nif x\t{\n}"
	got := ApplySearchReplace(base, []types.Pair{{Search: "if x {", Replace: "if (x) {"}})
	assert.Equal(t, "if (x) {\n}\nif x\t{\n}", got)
}

func TestApplySearchReplace_EllipsisWindow(t *testing.T) {
	base := "func a() {\n  one\n  two\n}\nrest"
	pairs := []types.Pair{{Search: "func a() {\n...\n}", Replace: "func a() {}"}}

	got := ApplySearchReplace(base, pairs)

	// Window spans as many lines as the search, starting at the anchor line
	assert.Equal(t, "func a() {}\n}\nrest", got)
}

func TestApplySearchReplace_SkipsUnmatchedAndEmpty(t *testing.T) {
	base := "alpha\nbeta\n"
	assert.Equal(t, base, ApplySearchReplace(base, []types.Pair{{Search: "", Replace: "x"}}))
	assert.Equal(t, base, ApplySearchReplace(base, []types.Pair{{Search: "gamma", Replace: "delta"}}))
}

func TestApplySearchReplace_NoOpPairLeavesBase(t *testing.T) {
	base := "keep me\n"
	assert.Equal(t, base, ApplySearchReplace(base, []types.Pair{{Search: "keep", Replace: "keep"}}))
}

func TestApplySearchReplace_ExactMatchProperty(t *testing.T) {
	// A unique, non-overlapping search is replaced exactly once
	base := "head\nmiddle line\ntail\n"
	got := ApplySearchReplace(base, []types.Pair{{Search: "middle line", Replace: "center"}})
	assert.Equal(t, "head\ncenter\ntail\n", got)
}

func TestDominantEOL(t *testing.T) {
	assert.Equal(t, "\r\n", DominantEOL("a\r\nb\nc"))
	assert.Equal(t, "\n", DominantEOL("a\nb"))
	assert.Equal(t, "\n", DominantEOL(""))
}
