package locales

import (
	"fmt"
	"strings"
)

// ParseError reports locale list content the parser cannot recover from.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("locales: %s", e.Reason)
}

// Parse turns the raw contents of a locale list file into a List.
//
// Rules:
//   - Input is trimmed, then split into lines.
//   - Blank and whitespace-only lines are skipped (they never produce an
//     entry with an empty locale id).
//   - The first token on a line is the locale id; remaining tokens are
//     platform restrictions, stored verbatim.
//   - A repeated locale id unions restriction sets across its lines.
//
// Policy: empty input (after trimming) yields an empty List, not an error.
// A ParseError is returned only for content that is not plain text (NUL
// bytes), which indicates a wrong or corrupted file rather than an odd
// locale list.
func Parse(text string) (*List, error) {
	if strings.ContainsRune(text, '\x00') {
		return nil, &ParseError{Reason: "content is not plain text (NUL byte)"}
	}

	list := NewList()
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		tokens := strings.Fields(line)
		if len(tokens) == 0 {
			continue
		}
		list.Add(tokens[0], tokens[1:]...)
	}
	return list, nil
}
