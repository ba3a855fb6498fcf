package impact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/albertocavalcante/sizeimpact/pkg/snapshot"
)

// DiffEntry pairs the before and after entry of one matched file.
// At most one side is nil.
type DiffEntry struct {
	// Key is the display key: the after-merge physical key when the file
	// still exists, the before-merge one otherwise. Keys are unique within a
	// GroupDiff.
	Key string `json:"-"`

	BeforeMerge *NormalizedEntry `json:"beforeMerge"`
	AfterMerge  *NormalizedEntry `json:"afterMerge"`
}

// GroupDiff is the ordered comparison result of one group.
type GroupDiff []DiffEntry

// Lookup returns the entry with the given display key.
func (d GroupDiff) Lookup(key string) (DiffEntry, bool) {
	for _, e := range d {
		if e.Key == key {
			return e, true
		}
	}
	return DiffEntry{}, false
}

// MarshalJSON encodes the diff as an object keyed by display key, in order.
func (d GroupDiff) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Result maps group names to their comparison. Groups without any entry are
// absent.
type Result map[string]GroupDiff

// Compare matches before and after entries of one group.
//
// Entries are matched by identity key (logical key when resolved, physical
// key otherwise). Entries left unmatched on both sides are then paired when
// they share a physical key, which covers a manifest that resolves a file on
// one side only. Entries whose identity and physical keys both differ stay
// split into a removal and an addition.
//
// Output order follows the first appearance of each identity key, before
// entries first.
func Compare(before, after []NormalizedEntry) GroupDiff {
	beforeKeys, _ := indexByIdentity(before)
	afterKeys, afterByKey := indexByIdentity(after)

	type pair struct {
		before, after *NormalizedEntry
	}
	pairs := make([]pair, 0, len(before)+len(after))
	seen := make(map[string]struct{}, len(before))

	for i := range before {
		key := beforeKeys[i]
		seen[key] = struct{}{}
		pairs = append(pairs, pair{before: &before[i], after: afterByKey[key]})
	}
	for i := range after {
		if _, ok := seen[afterKeys[i]]; ok {
			continue
		}
		pairs = append(pairs, pair{after: &after[i]})
	}

	// Removed-looking and added-looking entries on the same physical key are
	// the same file.
	orphans := make(map[string]int)
	for i, p := range pairs {
		if p.after == nil {
			orphans[p.before.RelativeURL] = i
		}
	}
	dropped := make(map[int]bool)
	for i, p := range pairs {
		if p.before != nil {
			continue
		}
		j, ok := orphans[p.after.RelativeURL]
		if !ok {
			continue
		}
		pairs[j].after = p.after
		delete(orphans, p.after.RelativeURL)
		dropped[i] = true
	}

	// Files present after the change own their physical key. A removed file
	// whose key now belongs to a different file is shown under a suffixed key.
	taken := make(map[string]bool, len(pairs))
	for i, p := range pairs {
		if !dropped[i] && p.after != nil {
			taken[p.after.RelativeURL] = true
		}
	}

	diff := make(GroupDiff, 0, len(pairs)-len(dropped))
	for i, p := range pairs {
		if dropped[i] {
			continue
		}
		key := displayKey(p.before, p.after)
		if p.after == nil && taken[key] {
			key = removedKey(key, taken)
			taken[key] = true
		}
		diff = append(diff, DiffEntry{
			Key:         key,
			BeforeMerge: p.before,
			AfterMerge:  p.after,
		})
	}
	return diff
}

// removedKey returns a display key for a removed file whose physical key is
// in use: "dist/a.js (removed)", then "dist/a.js (removed 2)" and so on.
func removedKey(key string, taken map[string]bool) string {
	candidate := key + " (removed)"
	for n := 2; taken[candidate]; n++ {
		candidate = fmt.Sprintf("%s (removed %d)", key, n)
	}
	return candidate
}

// indexByIdentity returns the identity key of every entry and the entries
// indexed by it. Two physical files can claim the same logical key (or a
// logical key can equal another file's physical key); the first claim keeps
// it and later ones get a key private to their physical path, so they can
// still be paired by physical key.
func indexByIdentity(entries []NormalizedEntry) ([]string, map[string]*NormalizedEntry) {
	keys := make([]string, len(entries))
	byKey := make(map[string]*NormalizedEntry, len(entries))
	for i := range entries {
		key := entries[i].IdentityKey()
		if _, taken := byKey[key]; taken {
			key = "\x00" + entries[i].RelativeURL
		}
		keys[i] = key
		byKey[key] = &entries[i]
	}
	return keys, byKey
}

func displayKey(before, after *NormalizedEntry) string {
	if after != nil {
		return after.RelativeURL
	}
	return before.RelativeURL
}

// CompareGroups normalizes and compares one group. Either side may be nil
// when the group is missing from that snapshot.
func CompareGroups(before, after *snapshot.RawGroup) GroupDiff {
	return Compare(Normalize(before), Normalize(after))
}

// CompareSnapshots compares every group present in either snapshot.
func CompareSnapshots(before, after *snapshot.RawSnapshot) Result {
	result := make(Result)
	for _, name := range groupNames(before, after) {
		diff := CompareGroups(lookupGroup(before, name), lookupGroup(after, name))
		if len(diff) == 0 {
			continue
		}
		result[name] = diff
	}
	return result
}

func groupNames(before, after *snapshot.RawSnapshot) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, s := range []*snapshot.RawSnapshot{before, after} {
		if s == nil {
			continue
		}
		for _, name := range s.Groups.Keys() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

func lookupGroup(s *snapshot.RawSnapshot, name string) *snapshot.RawGroup {
	g, ok := s.Group(name)
	if !ok {
		return nil
	}
	return &g
}
