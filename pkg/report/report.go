// Package report renders comparison results as markdown, suitable for a pull
// request comment.
package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/albertocavalcante/sizeimpact/pkg/config"
	"github.com/albertocavalcante/sizeimpact/pkg/impact"
	"github.com/albertocavalcante/sizeimpact/pkg/measure"
	"github.com/albertocavalcante/sizeimpact/pkg/util"
)

// Identifier marks a rendered report so that a previous comment can be found
// and updated.
const Identifier = "<!-- sizeimpact report -->"

// NoImpact is rendered when no group has any tracked file.
const NoImpact = "No impact on tracked files."

// Options controls rendering.
type Options struct {
	// Metrics selects the metric columns, in order. Empty means every metric
	// present in the group, built-in metrics first.
	Metrics []string

	// FilesOrdering is config.OrderSizeImpact or config.OrderFilesystem.
	FilesOrdering string

	// MaxRowsPerTable truncates each table (0 = unlimited).
	MaxRowsPerTable int

	// FilePathMaxLength shortens long paths (0 = unlimited).
	FilePathMaxLength int

	// OpenGroups renders each group section expanded.
	OpenGroups bool

	FormatSize     func(bytes int64) string
	FormatFilePath func(path string, maxLength int) string
}

// FromConfig builds Options from the [report] configuration section.
func FromConfig(rc config.ReportConfig) Options {
	return Options{
		FilesOrdering:     rc.FilesOrdering,
		MaxRowsPerTable:   rc.MaxRowsPerTable,
		FilePathMaxLength: rc.FilePathMaxLength,
		OpenGroups:        rc.OpenGroups != nil && *rc.OpenGroups,
	}
}

// FormatSize formats a byte count with SI units ("1.2 kB").
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "-" + humanize.Bytes(uint64(-bytes))
	}
	return humanize.Bytes(uint64(bytes))
}

// ShortenPath keeps the last maxLength characters of path, marking the cut
// with a leading ellipsis.
func ShortenPath(path string, maxLength int) string {
	runes := []rune(path)
	if maxLength <= 0 || len(runes) <= maxLength {
		return path
	}
	if maxLength == 1 {
		return "…"
	}
	return "…" + string(runes[len(runes)-(maxLength-1):])
}

// Format renders result as markdown, one section per group sorted by name.
func Format(result impact.Result, opts Options) string {
	if opts.FormatSize == nil {
		opts.FormatSize = FormatSize
	}
	if opts.FormatFilePath == nil {
		opts.FormatFilePath = ShortenPath
	}

	var b strings.Builder
	b.WriteString(Identifier)
	b.WriteString("\n")

	if len(result) == 0 {
		b.WriteString(NoImpact)
		b.WriteString("\n")
		return b.String()
	}

	for _, name := range util.SortedKeys(result) {
		b.WriteString("\n")
		writeGroup(&b, name, result[name], opts)
	}
	return b.String()
}

func writeGroup(b *strings.Builder, name string, diff impact.GroupDiff, opts Options) {
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = diff.Metrics(measure.Default...)
	}

	var changed []impact.DiffEntry
	for _, e := range diff {
		if e.Changed() {
			changed = append(changed, e)
		}
	}
	hidden := len(diff) - len(changed)
	sortEntries(changed, metrics, opts.FilesOrdering)

	if opts.OpenGroups {
		b.WriteString("<details open>\n")
	} else {
		b.WriteString("<details>\n")
	}
	fmt.Fprintf(b, "<summary><strong>%s</strong>: %s changed%s</summary>\n\n",
		name, plural(len(changed), "file"), summarizeDeltas(diff, metrics, opts.FormatSize))

	if len(changed) == 0 {
		b.WriteString("_No file changed._\n")
	} else {
		rows := changed
		if opts.MaxRowsPerTable > 0 && len(rows) > opts.MaxRowsPerTable {
			rows = rows[:opts.MaxRowsPerTable]
		}
		writeTable(b, rows, metrics, opts)
		if truncated := len(changed) - len(rows); truncated > 0 {
			fmt.Fprintf(b, "\n_%s not shown (limit of %d rows per table)._\n",
				plural(truncated, "more file"), opts.MaxRowsPerTable)
		}
	}
	if hidden > 0 {
		fmt.Fprintf(b, "\n_%s without impact hidden._\n", plural(hidden, "file"))
	}
	b.WriteString("\n</details>\n")
}

func writeTable(b *strings.Builder, rows []impact.DiffEntry, metrics []string, opts Options) {
	b.WriteString("| File |")
	for _, m := range metrics {
		fmt.Fprintf(b, " %s |", m)
	}
	b.WriteString(" Event |\n| :--- |")
	for range metrics {
		b.WriteString(" ---: |")
	}
	b.WriteString(" :---: |\n")

	for _, e := range rows {
		path := escapeCell(opts.FormatFilePath(e.Key, opts.FilePathMaxLength))
		fmt.Fprintf(b, "| `%s` |", path)
		for _, m := range metrics {
			fmt.Fprintf(b, " %s |", sizeCell(e, m, opts.FormatSize))
		}
		fmt.Fprintf(b, " %s |\n", e.Event())
	}
}

// sizeCell renders "before → after (±delta)"; a missing side renders as "-".
func sizeCell(e impact.DiffEntry, metric string, formatSize func(int64) string) string {
	before, after := "-", "-"
	if e.BeforeMerge != nil {
		before = formatSize(e.BeforeMerge.Size(metric))
	}
	if e.AfterMerge != nil {
		after = formatSize(e.AfterMerge.Size(metric))
	}
	return fmt.Sprintf("%s → %s (%s)", before, after, formatDelta(e.SizeDelta(metric), formatSize))
}

func summarizeDeltas(diff impact.GroupDiff, metrics []string, formatSize func(int64) string) string {
	if len(metrics) == 0 {
		return ""
	}
	parts := make([]string, 0, len(metrics))
	for _, m := range metrics {
		parts = append(parts, fmt.Sprintf("%s %s", m, formatDelta(diff.SizeDelta(m), formatSize)))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func formatDelta(delta int64, formatSize func(int64) string) string {
	switch {
	case delta > 0:
		return "+" + formatSize(delta)
	case delta < 0:
		return "-" + formatSize(-delta)
	default:
		return formatSize(0)
	}
}

// sortEntries orders rows by absolute delta of the first metric (largest
// first) or by display key.
func sortEntries(entries []impact.DiffEntry, metrics []string, ordering string) {
	if ordering != config.OrderSizeImpact || len(metrics) == 0 {
		slices.SortStableFunc(entries, func(a, b impact.DiffEntry) int {
			return strings.Compare(a.Key, b.Key)
		})
		return
	}
	metric := metrics[0]
	slices.SortStableFunc(entries, func(a, b impact.DiffEntry) int {
		da, db := abs(a.SizeDelta(metric)), abs(b.SizeDelta(metric))
		switch {
		case da > db:
			return -1
		case da < db:
			return 1
		default:
			return strings.Compare(a.Key, b.Key)
		}
	})
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
