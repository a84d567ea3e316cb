package text

import (
	"testing"

	"streamedit/types"

	"github.com/stretchr/testify/assert"
)

func TestFormatExchangeSummary(t *testing.T) {
	segs := []types.Segment{
		{Search: " old() ", Replace: "new()\n"},
		{Search: "", Replace: "  "},
	}

	got := FormatExchangeSummary("go", "/repo/main.go", segs)

	want := "```go:/repo/main.go\nSEARCH\nold()\nREPLACE\nnew()\n---\n```\n"
	assert.Equal(t, want, got)
	assert.Equal(t, "", FormatExchangeSummary("go", "x.go", nil))
}

func TestComposeDocument(t *testing.T) {
	doc := "head\nbody\ntail\n"

	assert.Equal(t, "head\nBODY\ntail\n", ComposeDocument(doc, types.Range{Start: 5, End: 9}, "BODY"))
	assert.Equal(t, "whole", ComposeDocument(doc, types.Range{Start: 0, End: len(doc)}, "whole"))
	assert.Equal(t, doc+"!", ComposeDocument(doc, types.Range{Start: 100, End: 200}, "!"), "range clamped")
}

func TestTargetRange(t *testing.T) {
	assert.Equal(t, types.Range{Start: 3, End: 7}, TargetRange(types.Range{Start: 3, End: 7}, 20))
	assert.Equal(t, types.Range{Start: 0, End: 20}, TargetRange(types.Range{Start: 5, End: 5}, 20))
}

func TestLanguageFromPath(t *testing.T) {
	assert.Equal(t, "go", LanguageFromPath("/repo/main.go"))
	assert.Equal(t, "txt", LanguageFromPath("Makefile"))
	assert.Equal(t, "txt", LanguageFromPath("/repo/.bashrc"))
	assert.Equal(t, "lua", LanguageFromPath("plugin/init.LUA"))
}
