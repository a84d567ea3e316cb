package text

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineFragment is a changed region between two texts in line numbers.
// Lines [StartLine1, EndLine1) of the old text became lines
// [StartLine2, EndLine2) of the new text. Either side may be empty.
type LineFragment struct {
	StartLine1 int
	EndLine1   int
	StartLine2 int
	EndLine2   int
}

// HunkRange is one independently actionable change, in offsets relative to
// the start of the old text.
type HunkRange struct {
	BaseStart     int
	BaseEnd       int
	ProposedSlice string
}

// CompareLines runs a line-granularity diff and returns the changed
// fragments in ascending order. Adjacent deletes and inserts are merged into
// one fragment.
func CompareLines(oldText, newText string) []LineFragment {
	dmp := diffmatchpatch.New()
	runes1, runes2, _ := dmp.DiffLinesToRunes(oldText, newText)
	diffs := dmp.DiffMainRunes(runes1, runes2, false)

	var fragments []LineFragment
	var cur *LineFragment
	line1, line2 := 0, 0

	flush := func() {
		if cur != nil {
			fragments = append(fragments, *cur)
			cur = nil
		}
	}

	for _, d := range diffs {
		// Each rune stands for one line
		n := len([]rune(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			line1 += n
			line2 += n
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &LineFragment{StartLine1: line1, EndLine1: line1, StartLine2: line2, EndLine2: line2}
			}
			line1 += n
			cur.EndLine1 = line1
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &LineFragment{StartLine1: line1, EndLine1: line1, StartLine2: line2, EndLine2: line2}
			}
			line2 += n
			cur.EndLine2 = line2
		}
	}
	flush()

	return fragments
}

// LineStartOffsets returns the byte offset at which each line of s starts,
// plus a final sentinel one past the end of the last line.
func LineStartOffsets(s string) []int {
	offsets := make([]int, 0, strings.Count(s, "\n")+2)
	offsets = append(offsets, 0)
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	// Sentinel covers the last line as if it had a trailing newline
	last := offsets[len(offsets)-1]
	offsets = append(offsets, last+len(s[last:])+1)
	return offsets
}

// lineOffset maps a line index to its start offset, clamped to [0, len(s)]
func lineOffset(offsets []int, line, textLen int) int {
	if line < 0 {
		return 0
	}
	if line >= len(offsets) {
		return textLen
	}
	return min(offsets[line], textLen)
}

// safeSlice returns s[start:end] with both bounds clamped into s
func safeSlice(s string, start, end int) string {
	start = max(0, min(start, len(s)))
	end = max(start, min(end, len(s)))
	return s[start:end]
}

// ComputeHunkRanges diffs oldText against newText line by line and returns
// one HunkRange per changed fragment. Fragments whose old and new slices are
// identical are skipped. Ranges are ascending and never overlap.
func ComputeHunkRanges(oldText, newText string) []HunkRange {
	if oldText == newText {
		return nil
	}

	oldOffsets := LineStartOffsets(oldText)
	newOffsets := LineStartOffsets(newText)

	var hunks []HunkRange
	for _, f := range CompareLines(oldText, newText) {
		oldStart := lineOffset(oldOffsets, f.StartLine1, len(oldText))
		oldEnd := lineOffset(oldOffsets, f.EndLine1, len(oldText))
		newStart := lineOffset(newOffsets, f.StartLine2, len(newText))
		newEnd := lineOffset(newOffsets, f.EndLine2, len(newText))

		oldSlice := safeSlice(oldText, oldStart, oldEnd)
		newSlice := safeSlice(newText, newStart, newEnd)
		if oldSlice == newSlice {
			continue
		}

		hunks = append(hunks, HunkRange{
			BaseStart:     oldStart,
			BaseEnd:       max(oldStart, oldEnd),
			ProposedSlice: newSlice,
		})
	}

	return hunks
}

// LineSimilarity computes a similarity score between two lines (0.0 to 1.0)
// using Levenshtein ratio: 1 - (levenshtein_distance / max_length)
// Higher score means more similar. Empty lines have 0 similarity with non-empty lines.
func LineSimilarity(line1, line2 string) float64 {
	if line1 == "" && line2 == "" {
		return 1.0
	}
	if line1 == "" || line2 == "" {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(line1, line2, false)
	levenshteinDist := dmp.DiffLevenshtein(diffs)

	maxLen := max(len(line1), len(line2))
	if maxLen == 0 {
		return 0.0
	}

	return 1.0 - float64(levenshteinDist)/float64(maxLen)
}
