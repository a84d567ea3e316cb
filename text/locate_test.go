package text

import (
	"testing"

	"streamedit/types"

	"github.com/stretchr/testify/assert"
)

func TestLocatePattern_ExactOccurrences(t *testing.T) {
	content := "foo()\nbar()\nfoo()\n"

	got := LocatePattern(content, "  foo()  ", true)

	assert.Equal(t, []types.Range{{Start: 0, End: 5}, {Start: 12, End: 17}}, got)
}

func TestLocatePattern_EmptyPattern(t *testing.T) {
	assert.Nil(t, LocatePattern("anything", "   ", true))
}

func TestLocatePattern_PartialExpandsToBlock(t *testing.T) {
	content := "class Foo {\n  void bar() {\n  }\n}\n"

	got := LocatePattern(content, "void bar() {\n...\n", true)

	assert.Equal(t, []types.Range{{Start: 12, End: 30}}, got)
	assert.Equal(t, "  void bar() {\n  }", content[12:30])
}

func TestLocatePattern_NoFuzzyWithoutHint(t *testing.T) {
	// Neither elided nor padded, so no partial fallback
	assert.Nil(t, LocatePattern("class Foo {\n}\n", "void bar()", true))
	assert.Nil(t, LocatePattern("class Foo {\n}\n", "Foo ...", false))
}

func TestExtractIdentifiers(t *testing.T) {
	assert.Equal(t, []string{"int", "compute", "public"}, ExtractIdentifiers("public int compute(value)"))
	assert.Equal(t, []string{"handler", "def"}, ExtractIdentifiers("def handler"))
	assert.Empty(t, ExtractIdentifiers("a + b"))
}
