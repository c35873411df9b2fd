// Package config holds the tunables of the session reconstruction pipeline.
// Every threshold and cap that shapes extraction or grouping lives here as
// named configuration rather than an inline constant.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full pipeline configuration.
type Config struct {
	Sources    SourcesConfig    `yaml:"sources"`
	Grouping   GroupingConfig   `yaml:"grouping"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// SourcesConfig points at the local stores the extractors read. All paths are
// read-only inputs; a missing path yields an empty per-source result.
type SourcesConfig struct {
	// EditorStoreDir is the root of the editor assistant's binary
	// key-value store, organized as one directory per workspace.
	EditorStoreDir string `yaml:"editor_store_dir"`

	// TerminalLogPath is the terminal emulator's structured network log.
	TerminalLogPath string `yaml:"terminal_log_path"`

	// ConversationDBPath is the terminal tool's sqlite conversation store.
	ConversationDBPath string `yaml:"conversation_db_path"`

	// HistoryFilePath is the flat JSON command history file.
	HistoryFilePath string `yaml:"history_file_path"`
}

// GroupingConfig tunes session boundary detection and cross-source merging.
type GroupingConfig struct {
	// SessionGapMinutes is the maximum idle gap between records grouped
	// into the same session when no correlation id is available.
	SessionGapMinutes int `yaml:"session_gap_minutes"`

	// OverlapMinutes is the minimum time-range intersection required to
	// merge sessions from different sources.
	OverlapMinutes int `yaml:"overlap_minutes"`
}

// ExtractionConfig bounds the binary store miner.
type ExtractionConfig struct {
	// MaxExtractBytes caps the printable-text extraction buffer. Files
	// whose contents would exceed it are skipped, not failed.
	MaxExtractBytes int64 `yaml:"max_extract_bytes"`

	// MaxFilesPerWorkspace caps how many of the newest data files are
	// mined per workspace.
	MaxFilesPerWorkspace int `yaml:"max_files_per_workspace"`

	// MaxWorkspaces caps how many of the newest workspaces are visited.
	MaxWorkspaces int `yaml:"max_workspaces"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Sources: SourcesConfig{
			EditorStoreDir:     filepath.Join(home, ".worklens", "editor-store"),
			TerminalLogPath:    filepath.Join(home, ".worklens", "network.log"),
			ConversationDBPath: filepath.Join(home, ".worklens", "conversations.db"),
			HistoryFilePath:    filepath.Join(home, ".worklens", "history.json"),
		},
		Grouping: GroupingConfig{
			SessionGapMinutes: 30,
			OverlapMinutes:    10,
		},
		Extraction: ExtractionConfig{
			MaxExtractBytes:      50 * 1024 * 1024,
			MaxFilesPerWorkspace: 5,
			MaxWorkspaces:        3,
		},
	}
}

// Load reads a YAML config file merged over the defaults. A missing file is
// not an error: the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg.applyFloors()
	return cfg, nil
}

// applyFloors restores defaults for values a partial config file zeroed out.
func (c *Config) applyFloors() {
	defaults := Default()
	if c.Grouping.SessionGapMinutes <= 0 {
		c.Grouping.SessionGapMinutes = defaults.Grouping.SessionGapMinutes
	}
	if c.Grouping.OverlapMinutes <= 0 {
		c.Grouping.OverlapMinutes = defaults.Grouping.OverlapMinutes
	}
	if c.Extraction.MaxExtractBytes <= 0 {
		c.Extraction.MaxExtractBytes = defaults.Extraction.MaxExtractBytes
	}
	if c.Extraction.MaxFilesPerWorkspace <= 0 {
		c.Extraction.MaxFilesPerWorkspace = defaults.Extraction.MaxFilesPerWorkspace
	}
	if c.Extraction.MaxWorkspaces <= 0 {
		c.Extraction.MaxWorkspaces = defaults.Extraction.MaxWorkspaces
	}
}
