package impact

import (
	"github.com/albertocavalcante/sizeimpact/pkg/glob"
	"github.com/albertocavalcante/sizeimpact/pkg/util"
)

// IsTracked reports whether key is tracked by rules. Every matching pattern
// overrides the previous match, so the last match in declaration order wins.
// A key that matches no pattern is tracked.
func IsTracked(rules *util.OrderedMap[bool], key string) bool {
	tracked := true
	for pattern, track := range rules.All() {
		if glob.Match(pattern, key) {
			tracked = track
		}
	}
	return tracked
}
