// Package trigger decides whether message content addresses the embedded
// AI participant. Patterns are compiled once at construction; detection on
// the hot path is allocation-free apart from the lowercase copy.
package trigger

import (
	"regexp"
	"strings"

	"styx-chat/errors"
)

// DefaultPhrases are the stock ways of calling the assistant. Rooms keep
// this list; it is not user configurable per message.
var DefaultPhrases = []string{
	"@ai",
	"@assistant",
	"@bot",
	"@styx",
	"hey ai",
	"hey styx",
	"ai help",
	"ai:",
}

// terminator is what may legally follow a trigger: whitespace, a small
// punctuation set, or end of string. It keeps "@styx" from matching inside
// "user@styx.com" or "mystyx".
const terminator = `(\s|[,.!?;:]|$)`

type Detector struct {
	patterns []*regexp.Regexp
}

// NewDetector compiles the two trigger shapes. Mention-style phrases
// (leading "@") must sit at the start of the string or after whitespace;
// phrase-style triggers anchor on a word boundary. Both are
// case-insensitive and must be followed by a terminator.
func NewDetector(phrases []string) (*Detector, error) {
	if len(phrases) == 0 {
		return nil, errors.ErrEmptyWords
	}
	patterns := make([]*regexp.Regexp, 0, len(phrases))
	for _, phrase := range phrases {
		quoted := regexp.QuoteMeta(strings.ToLower(phrase))
		var expr string
		if strings.HasPrefix(phrase, "@") {
			expr = `(^|\s)` + quoted + terminator
		} else {
			expr = `\b` + quoted + terminator
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return &Detector{patterns: patterns}, nil
}

// ShouldTrigger reports whether content contains at least one trigger.
func (d *Detector) ShouldTrigger(content string) bool {
	lowered := strings.ToLower(content)
	for _, re := range d.patterns {
		if re.MatchString(lowered) {
			return true
		}
	}
	return false
}
