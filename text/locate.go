package text

import (
	"regexp"
	"strings"

	"streamedit/types"
)

const (
	maxIdentifiers      = 3
	similarityThreshold = 0.8
)

var (
	declRegex     = regexp.MustCompile(`\b(class|function|func|def|var|val|let|const|public|private)\s+(\w+)`)
	callRegex     = regexp.MustCompile(`\b(\w+)\s*\(`)
	wordRegex     = regexp.MustCompile(`\b[a-zA-Z_][a-zA-Z0-9_]{2,}\b`)
	blockKeywords = []string{"class ", "function ", "func ", "def ", "public ", "private "}
)

// LocatePattern finds where a (possibly partial) search pattern sits in
// content. Exact occurrences of the trimmed pattern win. When there are none
// and fuzzy is set, patterns that were elided or padded fall back to lines
// containing the pattern's identifiers, expanded to their enclosing block.
func LocatePattern(content, pattern string, fuzzy bool) []types.Range {
	clean := strings.TrimSpace(pattern)
	if clean == "" {
		return nil
	}

	var matches []types.Range
	for idx := 0; ; {
		i := strings.Index(content[idx:], clean)
		if i < 0 {
			break
		}
		start := idx + i
		matches = append(matches, types.Range{Start: start, End: start + len(clean)})
		idx = start + 1
	}

	if len(matches) == 0 && fuzzy && (strings.Contains(pattern, Ellipsis) || len(clean) < len(pattern)) {
		matches = partialMatches(content, clean)
	}
	return matches
}

func partialMatches(content, pattern string) []types.Range {
	offsets := LineStartOffsets(content)
	lines := strings.Split(content, "\n")

	idents := ExtractIdentifiers(pattern)
	if len(idents) == 0 {
		first, _, _ := strings.Cut(pattern, "\n")
		first = strings.TrimSpace(first)
		if first == "" {
			return nil
		}
		if idx := strings.Index(content, first); idx >= 0 {
			return []types.Range{expandToBlock(lines, offsets, strings.Count(content[:idx], "\n"), len(content))}
		}
		if line := mostSimilarLine(lines, first); line >= 0 {
			return []types.Range{expandToBlock(lines, offsets, line, len(content))}
		}
		return nil
	}

	var matches []types.Range
	for i, line := range lines {
		all := true
		for _, id := range idents {
			if !strings.Contains(line, id) {
				all = false
				break
			}
		}
		if all {
			matches = append(matches, expandToBlock(lines, offsets, i, len(content)))
		}
	}
	return matches
}

// ExtractIdentifiers returns up to three distinct names from a code
// fragment: declared names first, then called functions, then other words
// of three or more characters.
func ExtractIdentifiers(pattern string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, m := range declRegex.FindAllStringSubmatch(pattern, -1) {
		add(m[2])
	}
	for _, m := range callRegex.FindAllStringSubmatch(pattern, -1) {
		add(m[1])
	}
	for _, w := range wordRegex.FindAllString(pattern, -1) {
		add(w)
	}

	if len(out) > maxIdentifiers {
		out = out[:maxIdentifiers]
	}
	return out
}

func mostSimilarLine(lines []string, target string) int {
	best, bestScore := -1, 0.0
	for i, line := range lines {
		score := LineSimilarity(strings.TrimSpace(line), target)
		if score >= similarityThreshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// expandToBlock grows a single line to the brace- or colon-delimited block
// around it, returning the covered byte range.
func expandToBlock(lines []string, offsets []int, lineIdx, contentLen int) types.Range {
	if lineIdx >= len(lines) {
		return types.Range{Start: contentLen, End: contentLen}
	}

	startLine, endLine := lineIdx, lineIdx

	braces := 0
	for i := lineIdx; i >= 0; i-- {
		braces += braceDelta(lines[i])
		if braces > 0 || isBlockStart(lines[i]) {
			startLine = i
			break
		}
	}

	braces = 0
	for i := lineIdx; i < len(lines); i++ {
		braces += braceDelta(lines[i])
		if braces == 0 && strings.Contains(lines[i], "}") && i > lineIdx {
			endLine = i
			break
		}
	}

	start := lineOffset(offsets, startLine, contentLen)
	end := start
	if endLine < len(lines) {
		end = lineOffset(offsets, endLine, contentLen) + len(strings.TrimSuffix(lines[endLine], "\r"))
	}
	return types.Range{Start: start, End: min(end, contentLen)}
}

// braceDelta counts a line as opening and/or closing at most once each
func braceDelta(line string) int {
	d := 0
	if strings.Contains(line, "{") {
		d++
	}
	if strings.Contains(line, "}") {
		d--
	}
	return d
}

func isBlockStart(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, kw := range blockKeywords {
		if strings.HasPrefix(trimmed, kw) {
			return true
		}
	}
	return strings.Contains(trimmed, "{") || strings.HasSuffix(trimmed, ":")
}
