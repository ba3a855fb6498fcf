// Package config provides configuration management for sizeimpact.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/sizeimpact/config.toml)
//  3. Project config (.sizeimpact/config.toml or sizeimpact.toml)
//  4. A .env file in the project root
//  5. Environment variables (SIZEIMPACT_*)
//  6. CLI flags (highest priority)
package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/albertocavalcante/sizeimpact/pkg/glob"
	"github.com/albertocavalcante/sizeimpact/pkg/measure"
	"github.com/albertocavalcante/sizeimpact/pkg/util"
)

// Files ordering values for ReportConfig.FilesOrdering.
const (
	OrderSizeImpact = "size_impact"
	OrderFilesystem = "filesystem"
)

// Config is the main configuration struct for sizeimpact.
type Config struct {
	// Project configures how the build output is produced.
	Project ProjectConfig `toml:"project"`

	// Metrics configures which size transforms are recorded.
	Metrics MetricsConfig `toml:"metrics"`

	// Groups lists the build output directories to snapshot.
	Groups []GroupConfig `toml:"groups"`

	// Report configures how comparisons are rendered.
	Report ReportConfig `toml:"report"`
}

// ProjectConfig holds the commands run before a snapshot is collected.
type ProjectConfig struct {
	// InstallCommand installs dependencies (e.g., "npm install").
	InstallCommand string `toml:"install_command"`

	// BuildCommand produces the build output (e.g., "npm run-script build").
	BuildCommand string `toml:"build_command"`
}

// MetricsConfig lists the enabled size metrics.
type MetricsConfig struct {
	// Enabled is the list of metric names ("raw", "gzip", "brotli").
	Enabled []string `toml:"enabled"`
}

// GroupConfig describes one build output directory.
type GroupConfig struct {
	// Name identifies the group in snapshots and reports.
	Name string `toml:"name"`

	// Directory is the output directory, relative to the project root.
	Directory string `toml:"directory"`

	// Manifest is a glob selecting manifest files inside Directory.
	Manifest string `toml:"manifest"`

	// Tracking rules in precedence order: later rules win.
	Tracking []TrackingRule `toml:"tracking"`
}

// TrackingRule includes or excludes files matching Pattern.
type TrackingRule struct {
	Pattern string `toml:"pattern"`
	Track   bool   `toml:"track"`
}

// ReportConfig holds rendering options.
type ReportConfig struct {
	// MaxRowsPerTable truncates each group table.
	MaxRowsPerTable int `toml:"max_rows_per_table"`

	// FilesOrdering is "size_impact" or "filesystem".
	FilesOrdering string `toml:"files_ordering"`

	// FilePathMaxLength shortens long file paths.
	FilePathMaxLength int `toml:"file_path_max_length"`

	// OpenGroups renders group sections expanded.
	OpenGroups *bool `toml:"open_groups"`
}

// DefaultManifest is the manifest glob used when a group sets none.
const DefaultManifest = "**/manifest.json"

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	falseVal := false
	return &Config{
		Project: ProjectConfig{
			InstallCommand: "npm install",
			BuildCommand:   "npm run-script build",
		},
		Metrics: MetricsConfig{
			Enabled: slices.Clone(measure.Default),
		},
		Groups: []GroupConfig{
			{
				Name:      "dist",
				Directory: "dist",
				Manifest:  DefaultManifest,
				Tracking: []TrackingRule{
					{Pattern: "**/*", Track: true},
					{Pattern: "**/*.map", Track: false},
				},
			},
		},
		Report: ReportConfig{
			MaxRowsPerTable:   600,
			FilesOrdering:     OrderSizeImpact,
			FilePathMaxLength: 100,
			OpenGroups:        &falseVal,
		},
	}
}

// Merge merges another config into this one (other takes precedence).
// Groups are replaced as a whole: tracking order cannot be merged sensibly.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Project.InstallCommand != "" {
		c.Project.InstallCommand = other.Project.InstallCommand
	}
	if other.Project.BuildCommand != "" {
		c.Project.BuildCommand = other.Project.BuildCommand
	}

	if len(other.Metrics.Enabled) > 0 {
		c.Metrics.Enabled = other.Metrics.Enabled
	}

	if len(other.Groups) > 0 {
		c.Groups = other.Groups
	}

	if other.Report.MaxRowsPerTable != 0 {
		c.Report.MaxRowsPerTable = other.Report.MaxRowsPerTable
	}
	if other.Report.FilesOrdering != "" {
		c.Report.FilesOrdering = other.Report.FilesOrdering
	}
	if other.Report.FilePathMaxLength != 0 {
		c.Report.FilePathMaxLength = other.Report.FilePathMaxLength
	}
	if other.Report.OpenGroups != nil {
		c.Report.OpenGroups = other.Report.OpenGroups
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if _, err := measure.Lookup(c.Metrics.Enabled); err != nil {
		errs = append(errs, fmt.Errorf("metrics: %w", err))
	}

	seen := make(map[string]bool)
	for i, g := range c.Groups {
		switch {
		case g.Name == "":
			errs = append(errs, fmt.Errorf("groups[%d]: name is required", i))
		case seen[g.Name]:
			errs = append(errs, fmt.Errorf("groups[%d]: duplicate group name %q", i, g.Name))
		}
		seen[g.Name] = true

		if g.Directory == "" {
			errs = append(errs, fmt.Errorf("group %q: directory is required", g.Name))
		}
		if g.Manifest != "" && !glob.Validate(g.Manifest) {
			errs = append(errs, fmt.Errorf("group %q: invalid manifest pattern %q", g.Name, g.Manifest))
		}
		for _, rule := range g.Tracking {
			if !glob.Validate(rule.Pattern) {
				errs = append(errs, fmt.Errorf("group %q: invalid tracking pattern %q", g.Name, rule.Pattern))
			}
		}
	}

	switch c.Report.FilesOrdering {
	case OrderSizeImpact, OrderFilesystem:
	default:
		errs = append(errs, fmt.Errorf("report: files_ordering must be %q or %q, got %q",
			OrderSizeImpact, OrderFilesystem, c.Report.FilesOrdering))
	}
	if c.Report.MaxRowsPerTable < 0 {
		errs = append(errs, fmt.Errorf("report: max_rows_per_table must not be negative"))
	}

	return errors.Join(errs...)
}

// TrackingMap returns the group's tracking rules as an ordered pattern map.
func (g GroupConfig) TrackingMap() util.OrderedMap[bool] {
	var m util.OrderedMap[bool]
	for _, rule := range g.Tracking {
		m.Set(rule.Pattern, rule.Track)
	}
	return m
}

// ManifestPattern returns the manifest glob, defaulting when unset.
func (g GroupConfig) ManifestPattern() string {
	if g.Manifest == "" {
		return DefaultManifest
	}
	return g.Manifest
}
