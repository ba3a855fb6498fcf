package snapshot

import (
	"encoding/json"
	"fmt"
)

// Version is the current version of the snapshot document format.
const Version = 1

// Document wraps a snapshot with its format version.
type Document struct {
	Version int         `json:"version"`
	Data    RawSnapshot `json:"data"`
}

// NewDocument wraps s in a document at the current version.
func NewDocument(s RawSnapshot) *Document {
	return &Document{Version: Version, Data: s}
}

// Decode parses a snapshot document. Both the versioned envelope
// {"version": 1, "data": {...}} and a bare snapshot object are accepted.
func Decode(data []byte) (RawSnapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return RawSnapshot{}, &MalformedError{Err: err}
	}

	if version, ok := envelopeVersion(fields); ok {
		if version > Version {
			return RawSnapshot{}, fmt.Errorf("%w: document version %d is newer than supported version %d",
				ErrUnsupportedVersion, version, Version)
		}
		var s RawSnapshot
		if err := s.UnmarshalJSON(fields["data"]); err != nil {
			return RawSnapshot{}, err
		}
		return s, nil
	}

	var s RawSnapshot
	if err := s.UnmarshalJSON(data); err != nil {
		return RawSnapshot{}, err
	}
	return s, nil
}

// envelopeVersion reports whether the object looks like a Document: a
// numeric "version" next to a "data" member. A group cannot be a number, so
// this never mistakes a bare snapshot for an envelope.
func envelopeVersion(fields map[string]json.RawMessage) (int, bool) {
	rawVersion, hasVersion := fields["version"]
	_, hasData := fields["data"]
	if !hasVersion || !hasData {
		return 0, false
	}
	var version int
	if err := json.Unmarshal(rawVersion, &version); err != nil {
		return 0, false
	}
	return version, true
}
