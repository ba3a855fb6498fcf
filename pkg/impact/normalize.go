package impact

import (
	"github.com/albertocavalcante/sizeimpact/pkg/snapshot"
)

// NormalizedEntry is a tracked file of one snapshot group.
type NormalizedEntry struct {
	// RelativeURL is the physical file key.
	RelativeURL string `json:"relativeUrl"`

	// ManifestKey is the logical key resolved through a manifest, or nil.
	ManifestKey *string `json:"manifestKey"`

	Hash    string           `json:"hash"`
	SizeMap map[string]int64 `json:"sizeMap,omitempty"`
}

// IdentityKey is the key used to match the entry across snapshots: the
// logical key when a manifest resolves one, the physical key otherwise.
func (e *NormalizedEntry) IdentityKey() string {
	if e.ManifestKey != nil {
		return *e.ManifestKey
	}
	return e.RelativeURL
}

// Size returns the size recorded for metric, or 0 when absent.
func (e *NormalizedEntry) Size(metric string) int64 {
	if e == nil {
		return 0
	}
	return e.SizeMap[metric]
}

// Normalize returns one entry per tracked file of g, in fileMap order.
// Tracking is decided on the logical key when one resolves, so rules can be
// written against stable names instead of content-hashed ones.
func Normalize(g *snapshot.RawGroup) []NormalizedEntry {
	if g == nil {
		return nil
	}

	index := BuildReverseIndex(&g.ManifestMap, &g.FileMap)
	entries := make([]NormalizedEntry, 0, g.FileMap.Len())

	for physicalKey, record := range g.FileMap.All() {
		var manifestKey *string
		candidate := physicalKey
		if logical, ok := index[physicalKey]; ok {
			manifestKey = &logical
			candidate = logical
		}

		if !IsTracked(&g.Tracking, candidate) {
			continue
		}

		entries = append(entries, NormalizedEntry{
			RelativeURL: physicalKey,
			ManifestKey: manifestKey,
			Hash:        record.Hash,
			SizeMap:     record.SizeMap,
		})
	}
	return entries
}

// Partition splits the files of g into tracked and ignored physical keys.
func Partition(g *snapshot.RawGroup) (tracked, ignored []string) {
	if g == nil {
		return nil, nil
	}
	kept := make(map[string]struct{})
	for _, e := range Normalize(g) {
		kept[e.RelativeURL] = struct{}{}
	}
	for physicalKey := range g.FileMap.All() {
		if _, ok := kept[physicalKey]; ok {
			tracked = append(tracked, physicalKey)
		} else {
			ignored = append(ignored, physicalKey)
		}
	}
	return tracked, ignored
}
