// Package docmeta extracts key: value routing metadata embedded in activity
// documentation strings. Entries are separated by semicolons or newlines;
// anything that does not look like a pair is treated as prose and skipped.
package docmeta

import (
	"strings"

	"github.com/viant/parsly"
)

// Pair is a single documentation metadata entry.
type Pair struct {
	Key   string
	Value string
}

// Parse scans documentation text for key: value entries. Later duplicates of
// a key win. Prose between entries is ignored.
func Parse(input string) []Pair {
	var result []Pair
	index := map[string]int{}
	cursor := parsly.NewCursor("", []byte(input), 0)

	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAfterOptional(whitespaceToken, keyToken)
		if matched.Code != keyToken.Code {
			skipEntry(cursor)
			continue
		}
		key := matched.Text(cursor)

		matched = cursor.MatchOne(colonToken)
		if matched.Code != colonToken.Code {
			skipEntry(cursor)
			continue
		}

		value := ""
		matched = cursor.MatchOne(valueToken)
		if matched.Code == valueToken.Code {
			value = strings.TrimSpace(matched.Text(cursor))
		}
		cursor.MatchOne(separatorToken)

		if at, ok := index[key]; ok {
			result[at].Value = value
			continue
		}
		index[key] = len(result)
		result = append(result, Pair{Key: key, Value: value})
	}
	return result
}

// Lookup returns the value for key from parsed pairs.
func Lookup(pairs []Pair, key string) (string, bool) {
	for _, pair := range pairs {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return "", false
}

// skipEntry advances past the current entry and its separator so parsing can
// resume at the next candidate pair.
func skipEntry(cursor *parsly.Cursor) {
	matched := cursor.MatchOne(restToken)
	if matched.Code != restToken.Code {
		// Nothing was consumed; bail out of the current byte to guarantee
		// progress.
		cursor.Pos++
	}
}
