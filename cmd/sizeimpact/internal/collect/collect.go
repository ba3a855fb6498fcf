// Package collect builds a snapshot of build output directories: every file
// is hashed and measured, and manifest files are parsed.
package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/albertocavalcante/sizeimpact/internal/log"
	"github.com/albertocavalcante/sizeimpact/pkg/config"
	"github.com/albertocavalcante/sizeimpact/pkg/glob"
	"github.com/albertocavalcante/sizeimpact/pkg/impact"
	"github.com/albertocavalcante/sizeimpact/pkg/measure"
	"github.com/albertocavalcante/sizeimpact/pkg/snapshot"
)

// Options configures a Collector.
type Options struct {
	// Root is the project root. File keys are relative to it.
	Root string

	Groups  []config.GroupConfig
	Metrics []measure.Metric

	// Concurrency bounds parallel file measurement (0 = GOMAXPROCS).
	Concurrency int
}

// Collector builds RawSnapshots from the filesystem.
type Collector struct {
	root    string
	groups  []config.GroupConfig
	metrics []measure.Metric
	limit   int
}

// New creates a collector with the given options.
func New(opts Options) *Collector {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &Collector{
		root:    opts.Root,
		groups:  opts.Groups,
		metrics: opts.Metrics,
		limit:   limit,
	}
}

// Collect snapshots every configured group.
func (c *Collector) Collect(ctx context.Context) (snapshot.RawSnapshot, error) {
	var s snapshot.RawSnapshot
	for _, g := range c.groups {
		group, err := c.CollectGroup(ctx, g)
		if err != nil {
			return snapshot.RawSnapshot{}, fmt.Errorf("group %q: %w", g.Name, err)
		}
		s.Groups.Set(g.Name, group)
	}
	return s, nil
}

// CollectGroup snapshots one group. A missing directory yields an empty
// group: the output may legitimately not exist on one side of a change.
func (c *Collector) CollectGroup(ctx context.Context, g config.GroupConfig) (snapshot.RawGroup, error) {
	logger := log.Component("collect").With("group", g.Name)
	group := snapshot.RawGroup{Tracking: g.TrackingMap()}

	dir := filepath.Join(c.root, g.Directory)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("directory does not exist", "dir", dir)
		return group, nil
	}
	if err != nil {
		return snapshot.RawGroup{}, err
	}
	if !info.IsDir() {
		return snapshot.RawGroup{}, fmt.Errorf("%s is not a directory", dir)
	}

	paths, err := c.walk(ctx, dir)
	if err != nil {
		return snapshot.RawGroup{}, err
	}

	records, err := c.measureAll(ctx, dir, g.ManifestPattern(), paths)
	if err != nil {
		return snapshot.RawGroup{}, err
	}

	for _, r := range records {
		group.FileMap.Set(r.key, r.record)
		if r.manifest == nil {
			continue
		}
		group.ManifestMap.Set(r.key, *r.manifest)
		logger.Debug("manifest found", "manifest", r.key, "entries", r.manifest.Len())
	}

	tracked, ignored := impact.Partition(&group)
	logger.Info("group collected",
		"files", group.FileMap.Len(),
		"tracked", len(tracked),
		"ignored", len(ignored),
		"manifests", group.ManifestMap.Len())
	for _, key := range ignored {
		logger.Debug("file ignored", "file", key)
	}

	return group, nil
}

// walk lists regular files under dir in lexical order.
func (c *Collector) walk(ctx context.Context, dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

type measured struct {
	key    string
	record snapshot.FileRecord
	// manifest is set only for files matching the group's manifest pattern.
	manifest *snapshot.Manifest
}

// measureAll reads, hashes and measures every path in parallel, parsing the
// files under dir that match manifestPattern. File contents are released as
// soon as each file is measured. Results keep the order of paths.
func (c *Collector) measureAll(ctx context.Context, dir, manifestPattern string, paths []string) ([]measured, error) {
	results := make([]measured, len(paths))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.limit)
	for i, path := range paths {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, err := c.key(path)
			if err != nil {
				return err
			}
			inGroup, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			sizes, err := measure.SizeMap(data, c.metrics)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			hash := HashBytes(data)
			log.Trace("file measured", "path", path, "hash", hash, "sizes", sizes)

			results[i] = measured{
				key:    key,
				record: snapshot.FileRecord{Hash: hash, SizeMap: sizes},
			}
			if !glob.Match(manifestPattern, filepath.ToSlash(inGroup)) {
				return nil
			}
			var m snapshot.Manifest
			if err := json.Unmarshal(data, &m); err != nil {
				return fmt.Errorf("failed to parse manifest %s: %w", key, err)
			}
			results[i].manifest = &m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// key returns the forward-slash path of path relative to the project root.
func (c *Collector) key(path string) (string, error) {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
