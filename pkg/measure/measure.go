// Package measure computes file sizes under named transforms.
package measure

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
)

// Metric names a size transform.
type Metric struct {
	Name   string
	SizeOf func(data []byte) (int64, error)
}

// Built-in metric names.
const (
	Raw    = "raw"
	Gzip   = "gzip"
	Brotli = "brotli"
)

// Default is the metric set used when none is configured.
var Default = []string{Raw, Gzip, Brotli}

var builtins = map[string]Metric{
	Raw:    {Name: Raw, SizeOf: rawSize},
	Gzip:   {Name: Gzip, SizeOf: gzipSize},
	Brotli: {Name: Brotli, SizeOf: brotliSize},
}

// Names returns the built-in metric names, sorted.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup resolves metric names. An unknown name is an error.
func Lookup(names []string) ([]Metric, error) {
	metrics := make([]Metric, 0, len(names))
	for _, name := range names {
		m, ok := builtins[name]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q (available: %v)", name, Names())
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

// SizeMap measures data with every metric.
func SizeMap(data []byte, metrics []Metric) (map[string]int64, error) {
	sizes := make(map[string]int64, len(metrics))
	for _, m := range metrics {
		n, err := m.SizeOf(data)
		if err != nil {
			return nil, fmt.Errorf("failed to measure %s size: %w", m.Name, err)
		}
		sizes[m.Name] = n
	}
	return sizes, nil
}

func rawSize(data []byte) (int64, error) {
	return int64(len(data)), nil
}

func gzipSize(data []byte) (int64, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}

func brotliSize(data []byte) (int64, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotli.BestCompression)
	if _, err := w.Write(data); err != nil {
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return int64(buf.Len()), nil
}
