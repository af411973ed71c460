package extract

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes (start at 1 to avoid clash with parsly.EOF).
const (
	fenceCode = iota + 1
	languageCode
	bodyCode
	proseCode
)

const fence = "```"

var (
	fenceToken    = parsly.NewToken(fenceCode, "Fence", matcher.NewFragment(fence))
	languageToken = parsly.NewToken(languageCode, "Language", &languageMatcher{})
	bodyToken     = parsly.NewToken(bodyCode, "Body", &untilFenceMatcher{})
	proseToken    = parsly.NewToken(proseCode, "Prose", &untilFenceMatcher{})
)

// languageMatcher matches a language tag directly after an opening fence:
// a letter followed by letters, digits or one of "_+-.#".
type languageMatcher struct{}

func (m *languageMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size || !isLetter(input[pos]) {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		c := input[i]
		if isLetter(c) || isDigit(c) || c == '_' || c == '+' || c == '-' || c == '.' || c == '#' {
			matched++
			continue
		}
		break
	}
	return matched
}

// untilFenceMatcher captures everything up to (excluding) the next fence or
// the end of input.
type untilFenceMatcher struct{}

func (m *untilFenceMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	matched := 0
	for i := pos; i < size; i++ {
		if isFenceAt(input, i) {
			break
		}
		matched++
	}
	return matched
}

func isFenceAt(input []byte, i int) bool {
	return i+len(fence) <= len(input) && string(input[i:i+len(fence)]) == fence
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
