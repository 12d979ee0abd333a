package docmeta

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	keyCode
	colonCode
	valueCode
	separatorCode
	restCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	keyToken        = parsly.NewToken(keyCode, "Key", newKeyMatcher())
	colonToken      = parsly.NewToken(colonCode, ":", matcher.NewByte(':'))
	valueToken      = parsly.NewToken(valueCode, "Value", newValueMatcher())
	separatorToken  = parsly.NewToken(separatorCode, "Separator", newSeparatorMatcher())
	restToken       = parsly.NewToken(restCode, "Rest", newRestMatcher())
)

// Custom matchers
func newKeyMatcher() parsly.Matcher {
	return &keyMatcher{}
}

func newValueMatcher() parsly.Matcher {
	return &valueMatcher{}
}

func newSeparatorMatcher() parsly.Matcher {
	return &separatorMatcher{}
}

func newRestMatcher() parsly.Matcher {
	return &restMatcher{}
}

// keyMatcher matches a metadata key identifier.
type keyMatcher struct{}

func (m *keyMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}

	// First character must be a letter or underscore
	if !isLetter(input[pos]) && input[pos] != '_' {
		return 0
	}

	matched := 1
	for i := pos + 1; i < size; i++ {
		if isLetter(input[i]) || isDigit(input[i]) || input[i] == '_' || input[i] == '-' || input[i] == '.' {
			matched++
			continue
		}
		break
	}

	return matched
}

// valueMatcher matches everything until an entry separator.
type valueMatcher struct{}

func (m *valueMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	size := cursor.InputSize

	matched := 0
	for i := cursor.Pos; i < size; i++ {
		if input[i] == ';' || input[i] == '\n' {
			break
		}
		matched++
	}
	return matched
}

// separatorMatcher matches a single entry separator.
type separatorMatcher struct{}

func (m *separatorMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	if pos >= cursor.InputSize {
		return 0
	}
	if input[pos] == ';' || input[pos] == '\n' {
		return 1
	}
	if input[pos] == '\r' && pos+1 < cursor.InputSize && input[pos+1] == '\n' {
		return 2
	}
	return 0
}

// restMatcher consumes the remainder of the current entry including its
// separator, used to skip prose that is not a key: value pair.
type restMatcher struct{}

func (m *restMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	size := cursor.InputSize

	matched := 0
	for i := cursor.Pos; i < size; i++ {
		matched++
		if input[i] == ';' || input[i] == '\n' {
			break
		}
	}
	return matched
}

// Helper functions
func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
