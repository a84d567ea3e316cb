package text

import (
	"strings"

	"streamedit/types"
)

// FilterSegments keeps the segments that target the current file and have a
// non-blank search. Accepted pairs carry the trimmed search and the replace
// text unchanged.
//
// A segment targets the current file when its path is blank, equals
// currentPath, equals fileName, or ends with "/"+fileName.
func FilterSegments(currentPath, fileName string, segments []types.Segment) *types.FilterResult {
	result := &types.FilterResult{
		Pairs: make([]types.Pair, 0, len(segments)),
		Stats: map[string]int{},
	}

	for _, seg := range segments {
		if !targetsFile(seg.FilePath, currentPath, fileName) {
			result.Stats[types.FilterWrongFile]++
			result.FilteredCount++
			continue
		}

		search := strings.TrimSpace(seg.Search)
		if search == "" {
			result.Stats[types.FilterEmptySearch]++
			result.FilteredCount++
			continue
		}

		result.Pairs = append(result.Pairs, types.Pair{Search: search, Replace: seg.Replace})
	}

	return result
}

func targetsFile(path, currentPath, fileName string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return true
	}
	if currentPath == "" {
		return false
	}
	if path == currentPath {
		return true
	}
	if fileName == "" {
		return false
	}
	return path == fileName || strings.HasSuffix(path, "/"+fileName)
}
