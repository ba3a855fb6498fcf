// Package glob matches slash-separated file keys against tracking patterns.
//
// Patterns are anchored to the whole key. A single "*" matches any run of
// characters except "/", and "**" matches any run of characters including
// "/". As a whole path segment ("dist/**/x.js") "**" also matches zero
// directories. Character classes ("[a-z]"), "?" and alternation
// ("{js,css}") are accepted as well.
package glob

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// crossSegment stands in for a "**" embedded in a segment. doublestar only
// treats "**" as a globstar when it fills a whole segment.
const crossSegment = "{*,*/**/*}"

// Match reports whether key matches pattern. It never fails: a malformed
// pattern simply matches nothing.
func Match(pattern, key string) bool {
	ok, err := doublestar.Match(expand(pattern), key)
	return err == nil && ok
}

// Validate reports whether pattern is well formed.
func Validate(pattern string) bool {
	return doublestar.ValidatePattern(expand(pattern))
}

// expand rewrites every "**" that does not fill a whole segment into an
// alternation doublestar understands, so "**.map" becomes "{*,*/**/*}.map".
func expand(pattern string) string {
	if !strings.Contains(pattern, "**") {
		return pattern
	}

	var b strings.Builder
	for i := 0; i < len(pattern); {
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			b.WriteString(pattern[i : i+2])
			i += 2
			continue
		}
		if c != '*' {
			b.WriteByte(c)
			i++
			continue
		}

		j := i
		for j < len(pattern) && pattern[j] == '*' {
			j++
		}
		stars := pattern[i:j]
		if len(stars) >= 2 && !wholeSegment(pattern, i, j) {
			b.WriteString(crossSegment)
		} else {
			b.WriteString(stars)
		}
		i = j
	}
	return b.String()
}

// wholeSegment reports whether pattern[start:end] is bounded by separators
// or the ends of the pattern.
func wholeSegment(pattern string, start, end int) bool {
	return (start == 0 || pattern[start-1] == '/') &&
		(end == len(pattern) || pattern[end] == '/')
}
