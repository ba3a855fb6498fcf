// Package impact compares two build snapshots and reports, per logical file,
// the before/after pair of entries.
//
// The pipeline for one group is:
//
//	RawGroup --BuildReverseIndex--> physical→logical index
//	         --Normalize----------> []NormalizedEntry (tracked files only)
//	before, after --Compare-------> GroupDiff
//
// CompareSnapshots runs it for every group of two snapshots. All functions
// are pure and safe for concurrent use.
package impact
