// Package snapshot defines the raw description of a build output tree that
// is compared before and after a change.
//
// A snapshot is keyed by group name (one group per build output directory).
// Each group carries its tracking rules, the manifests found in the output,
// and one record per physical file. All mappings keep the key order of the
// document they were decoded from; tracking precedence depends on it.
package snapshot

import (
	"encoding/json"

	"github.com/albertocavalcante/sizeimpact/pkg/util"
)

// FileRecord describes one physical file.
type FileRecord struct {
	// Hash is an opaque content fingerprint.
	Hash string `json:"hash"`

	// SizeMap holds the file size per metric name (raw, gzip, brotli).
	SizeMap map[string]int64 `json:"sizeMap,omitempty"`
}

// Manifest maps logical names to physical names, both relative to the
// directory containing the manifest file.
type Manifest = util.OrderedMap[string]

// RawGroup is one group of a snapshot.
type RawGroup struct {
	// Tracking maps glob patterns to whether matching files are tracked.
	// Later patterns take precedence.
	Tracking util.OrderedMap[bool] `json:"tracking"`

	// ManifestMap maps a manifest file key to its logical→physical mappings.
	ManifestMap util.OrderedMap[Manifest] `json:"manifestMap"`

	// FileMap maps a physical file key to its record.
	FileMap util.OrderedMap[FileRecord] `json:"fileMap"`
}

// UnmarshalJSON decodes a group field by field so that a malformed field is
// reported by name.
func (g *RawGroup) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return &MalformedError{Err: errNullGroup}
	}

	var fields struct {
		Tracking    json.RawMessage `json:"tracking"`
		ManifestMap json.RawMessage `json:"manifestMap"`
		FileMap     json.RawMessage `json:"fileMap"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return &MalformedError{Err: err}
	}

	*g = RawGroup{}
	if err := decodeField("tracking", fields.Tracking, &g.Tracking); err != nil {
		return err
	}
	if err := decodeField("manifestMap", fields.ManifestMap, &g.ManifestMap); err != nil {
		return err
	}
	if err := decodeField("fileMap", fields.FileMap, &g.FileMap); err != nil {
		return err
	}
	return nil
}

// decodeField decodes raw into dst. An absent field leaves dst empty.
func decodeField(name string, raw json.RawMessage, dst json.Unmarshaler) error {
	if len(raw) == 0 {
		return nil
	}
	if err := dst.UnmarshalJSON(raw); err != nil {
		return &MalformedError{Field: name, Err: err}
	}
	return nil
}

// RawSnapshot maps group names to groups.
type RawSnapshot struct {
	Groups util.OrderedMap[RawGroup]
}

// Group returns the named group.
func (s *RawSnapshot) Group(name string) (RawGroup, bool) {
	if s == nil {
		return RawGroup{}, false
	}
	return s.Groups.Get(name)
}

// MarshalJSON encodes the snapshot as a JSON object keyed by group name.
func (s RawSnapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Groups)
}

// UnmarshalJSON decodes a JSON object keyed by group name. Errors name the
// offending group.
func (s *RawSnapshot) UnmarshalJSON(data []byte) error {
	var raw util.OrderedMap[json.RawMessage]
	if err := raw.UnmarshalJSON(data); err != nil {
		return &MalformedError{Err: err}
	}

	s.Groups = util.OrderedMap[RawGroup]{}
	for name, groupData := range raw.All() {
		var g RawGroup
		if err := g.UnmarshalJSON(groupData); err != nil {
			return withGroup(name, err)
		}
		s.Groups.Set(name, g)
	}
	return nil
}
