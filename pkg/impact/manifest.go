package impact

import (
	"path"
	"strings"

	"github.com/albertocavalcante/sizeimpact/pkg/snapshot"
	"github.com/albertocavalcante/sizeimpact/pkg/util"
)

// BuildReverseIndex maps physical file keys to the logical keys declared for
// them by manifests. Manifest paths are relative to the manifest's directory.
//
// Only physical keys present in fileMap are indexed; a mapping that points at
// a file the snapshot does not contain stays unresolved. When two mappings
// target the same physical key, the later one wins.
func BuildReverseIndex(manifestMap *util.OrderedMap[snapshot.Manifest], fileMap *util.OrderedMap[snapshot.FileRecord]) map[string]string {
	index := make(map[string]string)
	for manifestKey, mappings := range manifestMap.All() {
		dir := path.Dir(manifestKey)
		for logical, physical := range mappings.All() {
			physicalKey := resolveKey(dir, physical)
			if _, exists := fileMap.Get(physicalKey); !exists {
				continue
			}
			index[physicalKey] = resolveKey(dir, logical)
		}
	}
	return index
}

// resolveKey resolves ref against dir the way a relative URL resolves
// against its base: a leading "/" restarts from the snapshot root.
func resolveKey(dir, ref string) string {
	if strings.HasPrefix(ref, "/") {
		return strings.TrimPrefix(path.Clean(ref), "/")
	}
	return path.Join(dir, ref)
}
