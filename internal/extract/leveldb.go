package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"worklens/internal/activity"
	"worklens/internal/config"
)

// StoreMiner recovers message fragments from the editor assistant's binary
// key-value store. The store is proprietary, so the miner does not parse it
// structurally: it extracts printable text from the newest data files and
// runs three independent regex passes over it to recover user messages,
// assistant responses, and conversation ids.
type StoreMiner struct {
	root string
	caps config.ExtractionConfig
	log  *zap.Logger
}

func NewStoreMiner(root string, caps config.ExtractionConfig, log *zap.Logger) *StoreMiner {
	return &StoreMiner{root: root, caps: caps, log: log}
}

func (m *StoreMiner) Name() string { return "editor-store" }

var (
	userFragmentRe      = regexp.MustCompile(`"request_message"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	assistantFragmentRe = regexp.MustCompile(`"response_text"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	conversationIDRe    = regexp.MustCompile(`"conversation_id"\s*:\s*"([A-Za-z0-9][A-Za-z0-9-]{7,})"`)
)

// dataFileExtensions are the binary file types the store writes.
var dataFileExtensions = map[string]bool{
	".ldb": true,
	".log": true,
}

// Extract walks the newest workspaces and their newest data files, bounded
// by the configured caps, and mines message fragments out of each file.
func (m *StoreMiner) Extract(ctx context.Context) ([]activity.Record, error) {
	if _, err := os.Stat(m.root); err != nil {
		m.log.Warn("editor store unavailable, skipping source",
			zap.String("path", m.root), zap.Error(err))
		return nil, nil
	}

	workspaces, err := m.newestWorkspaces()
	if err != nil {
		m.log.Warn("list editor store workspaces", zap.Error(err))
		return nil, nil
	}

	var records []activity.Record
	for _, workspace := range workspaces {
		if ctx.Err() != nil {
			return records, nil
		}
		mined, err := m.mineWorkspace(ctx, workspace)
		if err != nil {
			// Per-workspace failures never abort the run.
			m.log.Warn("mine workspace", zap.String("workspace", workspace), zap.Error(err))
			continue
		}
		records = append(records, mined...)
	}

	activity.SortRecords(records)
	return records, nil
}

func (m *StoreMiner) newestWorkspaces() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("read store root: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	candidates := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(m.root, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime.After(candidates[j].modTime)
	})
	if len(candidates) > m.caps.MaxWorkspaces {
		candidates = candidates[:m.caps.MaxWorkspaces]
	}

	paths := make([]string, 0, len(candidates))
	for _, c := range candidates {
		paths = append(paths, c.path)
	}
	return paths, nil
}

func (m *StoreMiner) mineWorkspace(ctx context.Context, workspaceDir string) ([]activity.Record, error) {
	entries, err := os.ReadDir(workspaceDir)
	if err != nil {
		return nil, fmt.Errorf("read workspace dir: %w", err)
	}

	type dataFile struct {
		path    string
		size    int64
		modTime time.Time
	}
	files := make([]dataFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !dataFileExtensions[filepath.Ext(entry.Name())] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, dataFile{
			path:    filepath.Join(workspaceDir, entry.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	if len(files) > m.caps.MaxFilesPerWorkspace {
		files = files[:m.caps.MaxFilesPerWorkspace]
	}

	workspaceID := filepath.Base(workspaceDir)
	var records []activity.Record
	for _, file := range files {
		if ctx.Err() != nil {
			return records, nil
		}
		if file.size > m.caps.MaxExtractBytes {
			m.log.Warn("data file exceeds extraction cap, skipping",
				zap.String("file", file.path),
				zap.Int64("size", file.size),
				zap.Int64("cap", m.caps.MaxExtractBytes))
			continue
		}

		text, err := extractPrintableText(file.path, m.caps.MaxExtractBytes)
		if err != nil {
			m.log.Warn("extract printable text", zap.String("file", file.path), zap.Error(err))
			continue
		}
		records = append(records, m.mineFragments(workspaceID, file.modTime, text)...)
	}
	return records, nil
}

// mineFragments runs the three regex passes over extracted text and turns
// surviving fragments into records. Fragments are correlated to conversation
// ids by matching list index; a fragment past the end of the id list gets a
// synthetic placeholder id. Index alignment between independently matched
// passes is a heuristic carried over from the store's observed layout and can
// misattribute fragments when passes find different counts.
func (m *StoreMiner) mineFragments(workspaceID string, modTime time.Time, text string) []activity.Record {
	conversationIDs := captureGroups(conversationIDRe, text)

	correlationAt := func(i int) string {
		if i < len(conversationIDs) {
			return conversationIDs[i]
		}
		return fmt.Sprintf("%s%d", activity.PlaceholderCorrelationPrefix, i)
	}

	var records []activity.Record
	for i, fragment := range captureGroups(userFragmentRe, text) {
		cleaned := cleanFragment(fragment)
		if !isMeaningfulFragment(cleaned) {
			continue
		}
		records = append(records, activity.Record{
			ID:            uuid.NewString(),
			Workspace:     workspaceID,
			Source:        activity.SourceEditorAssistant,
			Timestamp:     modTime,
			Kind:          activity.KindUserMessage,
			Content:       cleaned,
			CorrelationID: correlationAt(i),
		})
	}
	for i, fragment := range captureGroups(assistantFragmentRe, text) {
		cleaned := cleanFragment(fragment)
		if !isMeaningfulFragment(cleaned) {
			continue
		}
		records = append(records, activity.Record{
			ID:            uuid.NewString(),
			Workspace:     workspaceID,
			Source:        activity.SourceEditorAssistant,
			Timestamp:     modTime,
			Kind:          activity.KindAssistantMessage,
			Content:       cleaned,
			CorrelationID: correlationAt(i),
		})
	}
	return records
}

func captureGroups(re *regexp.Regexp, text string) []string {
	matches := re.FindAllStringSubmatch(text, -1)
	groups := make([]string, 0, len(matches))
	for _, match := range matches {
		groups = append(groups, match[1])
	}
	return groups
}

// extractPrintableText reads a binary file and keeps runs of printable
// characters of at least four bytes, joined by newlines. The byte cap bounds
// both the read and the output buffer.
func extractPrintableText(path string, maxBytes int64) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read data file: %w", err)
	}
	if int64(len(raw)) > maxBytes {
		return "", fmt.Errorf("data file too large: %d bytes", len(raw))
	}

	const minRunLength = 4

	var builder strings.Builder
	builder.Grow(len(raw) / 2)
	var run []byte
	flush := func() {
		if len(run) >= minRunLength {
			if builder.Len() > 0 {
				builder.WriteByte('\n')
			}
			builder.Write(run)
		}
		run = run[:0]
	}
	for _, b := range raw {
		if b >= 0x20 && b < 0x7f {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()
	return builder.String(), nil
}
