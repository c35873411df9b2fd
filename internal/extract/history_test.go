package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"worklens/internal/activity"
)

func TestHistoryReaderParsesCommandArray(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	content := `[
		{"command": "go test ./...", "timestamp": "2024-03-14T10:00:00Z", "cwd": "/proj", "exit_code": 1},
		{"command": "go build ./...", "timestamp": "2024-03-14T10:05:00Z", "git_branch": "main"}
	]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write history file: %v", err)
	}

	reader := NewHistoryReader(path, zap.NewNop())
	records, err := reader.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.Content != "go test ./..." {
		t.Fatalf("unexpected command %q", first.Content)
	}
	if first.Kind != activity.KindCommand || first.Source != activity.SourceOther {
		t.Fatalf("unexpected kind/source: %q/%q", first.Kind, first.Source)
	}
	if first.ExitCode == nil || *first.ExitCode != 1 {
		t.Fatalf("expected exit code 1, got %v", first.ExitCode)
	}
	if records[1].GitBranch != "main" {
		t.Fatalf("expected git branch main, got %q", records[1].GitBranch)
	}
}

func TestHistoryReaderDropsMalformedEntries(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	content := `[
		{"command": "echo ok", "timestamp": "2024-03-14T10:00:00Z"},
		{"command": "echo bad-time", "timestamp": "yesterday"},
		{"timestamp": "2024-03-14T10:10:00Z"},
		{"command": 42, "timestamp": "2024-03-14T10:15:00Z"}
	]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write history file: %v", err)
	}

	reader := NewHistoryReader(path, zap.NewNop())
	records, err := reader.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected only the valid entry, got %d records", len(records))
	}
	if records[0].Content != "echo ok" {
		t.Fatalf("unexpected command %q", records[0].Content)
	}
}

func TestHistoryReaderMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	reader := NewHistoryReader(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
	records, err := reader.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract on missing file must not error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty result, got %d records", len(records))
	}
}

func TestHistoryReaderNonArrayFileIsEmpty(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte(`{"not": "an array"}`), 0o600); err != nil {
		t.Fatalf("write history file: %v", err)
	}

	reader := NewHistoryReader(path, zap.NewNop())
	records, err := reader.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract on non-array file must not error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty result, got %d records", len(records))
	}
}
