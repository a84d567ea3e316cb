package utils

// Token estimation constants
const (
	AvgCharsPerToken = 2 // Conservative estimate for mixed content (code + prose)
)

// EstimateCharsFromTokens estimates the number of characters for a given token count
func EstimateCharsFromTokens(tokens int) int {
	return tokens * AvgCharsPerToken
}

// EstimateTokens estimates the token count of s
func EstimateTokens(s string) int {
	return (len(s) + AvgCharsPerToken - 1) / AvgCharsPerToken
}

// TrimContentAroundRange trims lines to fit within maxTokens while keeping
// rows startRow..endRow (0-indexed, inclusive) whole and balancing the
// remaining budget above and below them. Returns the kept lines, the index
// of the first kept line, and whether trimming occurred. When the range
// alone exceeds the budget only the range is kept.
func TrimContentAroundRange(lines []string, startRow, endRow, maxTokens int) ([]string, int, bool) {
	if len(lines) == 0 || maxTokens <= 0 {
		return lines, 0, false
	}

	// Clamp the range to valid rows
	startRow = max(0, min(startRow, len(lines)-1))
	endRow = max(startRow, min(endRow, len(lines)-1))

	maxChars := EstimateCharsFromTokens(maxTokens)

	totalChars := 0
	for _, line := range lines {
		totalChars += len(line) + 1 // +1 for newline
	}
	if totalChars <= maxChars {
		return lines, 0, false
	}

	rangeChars := 0
	for _, line := range lines[startRow : endRow+1] {
		rangeChars += len(line) + 1
	}

	// Balanced approach: half of what the range leaves goes above, the rest below
	halfBudget := max(0, maxChars-rangeChars) / 2

	first := startRow
	charsBefore := 0
	for first > 0 {
		newChars := len(lines[first-1]) + 1
		if charsBefore+newChars > halfBudget {
			break
		}
		first--
		charsBefore += newChars
	}

	// Expand below with half the budget plus whatever above left unused
	budgetAfter := 2*halfBudget - charsBefore
	last := endRow
	charsAfter := 0
	for last < len(lines)-1 {
		newChars := len(lines[last+1]) + 1
		if charsAfter+newChars > budgetAfter {
			break
		}
		last++
		charsAfter += newChars
	}

	// Unused budget below goes back above
	budgetBefore := 2*halfBudget - charsAfter
	for first > 0 {
		newChars := len(lines[first-1]) + 1
		if charsBefore+newChars > budgetBefore {
			break
		}
		first--
		charsBefore += newChars
	}

	trimmed := make([]string, last-first+1)
	copy(trimmed, lines[first:last+1])
	return trimmed, first, true
}

// Exchange is one prompt/response turn of a conversation
type Exchange interface {
	GetPrompt() string
	GetResponse() string
}

// TrimExchanges trims turns to fit within maxTokens.
// Keeps the most recent turns and removes older ones if over limit; the
// newest turn is always kept.
func TrimExchanges[T Exchange](turns []T, maxTokens int) []T {
	if len(turns) == 0 || maxTokens <= 0 {
		return turns
	}

	maxChars := EstimateCharsFromTokens(maxTokens)

	// Iterate from newest (end) to oldest (start), keeping turns within limit
	totalChars := 0
	for i := len(turns) - 1; i >= 0; i-- {
		turnChars := len(turns[i].GetPrompt()) + len(turns[i].GetResponse())
		if totalChars+turnChars > maxChars && i < len(turns)-1 {
			return turns[i+1:]
		}
		totalChars += turnChars
	}
	return turns
}
