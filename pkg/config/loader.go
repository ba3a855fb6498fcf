package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/albertocavalcante/sizeimpact/internal/log"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "sizeimpact.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".sizeimpact"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "sizeimpact"

// DotEnvFile is the optional environment file read from the project root.
const DotEnvFile = ".env"

// LoadFrom loads configuration from all layers in order of precedence:
//  1. Built-in defaults
//  2. Global user config (~/.config/sizeimpact/config.toml)
//  3. Project config found in dir or its parents
//  4. .env in the project root (never overrides variables already set)
//  5. Environment variables (SIZEIMPACT_*)
//
// CLI flags are applied separately after LoadFrom returns.
// A config file that exists but cannot be parsed is an error.
func LoadFrom(dir string) (*Config, error) {
	cfg := NewConfig()

	// Layer 2: Global user config
	if path := GetGlobalConfigPath(); path != "" {
		globalCfg, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config
	projectCfg, root, err := loadProjectConfigFrom(dir)
	if err != nil {
		return nil, err
	}
	cfg.Merge(projectCfg)

	// Layer 4: .env
	loadDotEnv(root)

	// Layer 5: Environment variables
	if err := applyEnvironmentVariables(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadProjectConfigFrom searches dir and its parents for a project config.
// It returns the config (nil when none is found) and the directory the
// search settled on, which is the project root.
func loadProjectConfigFrom(dir string) (*Config, string, error) {
	current := dir
	for {
		for _, path := range GetProjectConfigPaths(current) {
			cfg, err := loadConfigFile(path)
			if err != nil {
				return nil, "", err
			}
			if cfg != nil {
				return cfg, current, nil
			}
		}

		// Stop at filesystem root or project root
		if isWorkspaceRoot(current) {
			return nil, current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, dir, nil
		}
		current = parent
	}
}

// isWorkspaceRoot checks if the directory is a project root (has .git, package.json or go.mod).
func isWorkspaceRoot(dir string) bool {
	markers := []string{".git", "package.json", "go.mod"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// loadConfigFile loads a configuration from a TOML file.
// A missing file yields (nil, nil).
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// loadDotEnv loads dir/.env into the process environment if present.
// A file that cannot be read or parsed is skipped with a warning.
func loadDotEnv(dir string) {
	path := filepath.Join(dir, DotEnvFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Component("config").Warn("ignoring unreadable .env file", "path", path, "error", err)
	}
}

// applyEnvironmentVariables applies SIZEIMPACT_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) error {
	if v := os.Getenv("SIZEIMPACT_INSTALL_COMMAND"); v != "" {
		cfg.Project.InstallCommand = v
	}
	if v := os.Getenv("SIZEIMPACT_BUILD_COMMAND"); v != "" {
		cfg.Project.BuildCommand = v
	}

	// SIZEIMPACT_METRICS: comma-separated list of metrics
	if v := os.Getenv("SIZEIMPACT_METRICS"); v != "" {
		cfg.Metrics.Enabled = splitAndTrim(v)
	}

	if v := os.Getenv("SIZEIMPACT_MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("SIZEIMPACT_MAX_ROWS: %w", err)
		}
		cfg.Report.MaxRowsPerTable = n
	}
	if v := os.Getenv("SIZEIMPACT_FILES_ORDERING"); v != "" {
		cfg.Report.FilesOrdering = v
	}
	applyBoolEnv("SIZEIMPACT_OPEN_GROUPS", &cfg.Report.OpenGroups)

	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given directory.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigDirName, "config.toml"),
		filepath.Join(dir, ConfigFileName),
	}
}
