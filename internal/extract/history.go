package extract

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"worklens/internal/activity"
)

// HistoryReader reads the flat JSON command-history file: a single array of
// command-execution records. No normalization happens beyond type checks;
// entries that fail to decode are dropped one at a time.
type HistoryReader struct {
	path string
	log  *zap.Logger
}

func NewHistoryReader(path string, log *zap.Logger) *HistoryReader {
	return &HistoryReader{path: path, log: log}
}

func (r *HistoryReader) Name() string { return "command-history" }

type historyEntry struct {
	Command    string    `json:"command"`
	Timestamp  time.Time `json:"timestamp"`
	Cwd        string    `json:"cwd"`
	GitBranch  string    `json:"git_branch"`
	SessionID  string    `json:"session_id"`
	ExitCode   *int      `json:"exit_code"`
	DurationMs *int      `json:"duration_ms"`
}

func (r *HistoryReader) Extract(ctx context.Context) ([]activity.Record, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		r.log.Warn("command history unavailable, skipping source",
			zap.String("path", r.path), zap.Error(err))
		return nil, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		r.log.Warn("command history is not a JSON array, skipping source",
			zap.String("path", r.path), zap.Error(err))
		return nil, nil
	}

	records := make([]activity.Record, 0, len(elements))
	for i, element := range elements {
		if ctx.Err() != nil {
			break
		}
		var entry historyEntry
		if err := json.Unmarshal(element, &entry); err != nil {
			r.log.Debug("drop malformed history entry",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		if entry.Command == "" || entry.Timestamp.IsZero() {
			continue
		}

		records = append(records, activity.Record{
			ID:            uuid.NewString(),
			Workspace:     "history",
			Source:        activity.SourceOther,
			Timestamp:     entry.Timestamp,
			Kind:          activity.KindCommand,
			Content:       entry.Command,
			CorrelationID: entry.SessionID,
			WorkingDir:    entry.Cwd,
			GitBranch:     entry.GitBranch,
			ExitCode:      entry.ExitCode,
			DurationMs:    entry.DurationMs,
		})
	}

	activity.SortRecords(records)
	return records, nil
}
