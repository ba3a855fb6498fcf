package impact

import "slices"

// Event classifies what happened to a file between the two snapshots.
type Event string

const (
	EventAdded     Event = "added"
	EventRemoved   Event = "removed"
	EventModified  Event = "modified"
	EventRenamed   Event = "renamed"
	EventUnchanged Event = "unchanged"
)

// Event returns the classification of e.
func (e DiffEntry) Event() Event {
	switch {
	case e.BeforeMerge == nil:
		return EventAdded
	case e.AfterMerge == nil:
		return EventRemoved
	case e.BeforeMerge.RelativeURL != e.AfterMerge.RelativeURL:
		return EventRenamed
	case e.BeforeMerge.Hash != e.AfterMerge.Hash:
		return EventModified
	default:
		return EventUnchanged
	}
}

// Changed reports whether the file content differs between both sides.
// A renamed file with identical content is not a change.
func (e DiffEntry) Changed() bool {
	if e.BeforeMerge == nil || e.AfterMerge == nil {
		return true
	}
	return e.BeforeMerge.Hash != e.AfterMerge.Hash
}

// SizeDelta returns the size difference for metric. A missing side counts
// as zero.
func (e DiffEntry) SizeDelta(metric string) int64 {
	return e.AfterMerge.Size(metric) - e.BeforeMerge.Size(metric)
}

// Metrics returns the metric names recorded in d: the preferred ones first,
// in the given order, then any others sorted by name.
func (d GroupDiff) Metrics(preferred ...string) []string {
	present := make(map[string]struct{})
	for _, e := range d {
		for _, side := range []*NormalizedEntry{e.BeforeMerge, e.AfterMerge} {
			if side == nil {
				continue
			}
			for m := range side.SizeMap {
				present[m] = struct{}{}
			}
		}
	}

	var metrics []string
	for _, m := range preferred {
		if _, ok := present[m]; ok {
			metrics = append(metrics, m)
			delete(present, m)
		}
	}
	rest := make([]string, 0, len(present))
	for m := range present {
		rest = append(rest, m)
	}
	slices.Sort(rest)
	return append(metrics, rest...)
}

// SizeDelta sums the size delta of metric over every entry of d.
func (d GroupDiff) SizeDelta(metric string) int64 {
	var total int64
	for _, e := range d {
		total += e.SizeDelta(metric)
	}
	return total
}
