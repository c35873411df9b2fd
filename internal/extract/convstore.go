package extract

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"worklens/internal/activity"
)

// ConversationStore reads the terminal tool's local sqlite conversation
// database: one conversation-listing query, then one exchange-listing query
// per conversation ordered by start time. The database is opened read-only
// and never written back.
type ConversationStore struct {
	path string
	log  *zap.Logger
}

func NewConversationStore(path string, log *zap.Logger) *ConversationStore {
	return &ConversationStore{path: path, log: log}
}

func (s *ConversationStore) Name() string { return "conversation-store" }

type conversationRow struct {
	ID        string
	Workspace string
}

func (s *ConversationStore) Extract(ctx context.Context) ([]activity.Record, error) {
	if _, err := os.Stat(s.path); err != nil {
		s.log.Warn("conversation store unavailable, skipping source",
			zap.String("path", s.path), zap.Error(err))
		return nil, nil
	}

	db, err := sql.Open("sqlite", "file:"+s.path+"?mode=ro")
	if err != nil {
		s.log.Warn("open conversation store", zap.Error(err))
		return nil, nil
	}
	defer func() {
		_ = db.Close()
	}()

	conversations, err := s.listConversations(ctx, db)
	if err != nil {
		s.log.Warn("list conversations", zap.Error(err))
		return nil, nil
	}

	var records []activity.Record
	for _, conversation := range conversations {
		if ctx.Err() != nil {
			break
		}
		mined, err := s.listExchanges(ctx, db, conversation)
		if err != nil {
			// Per-query failures never abort the run.
			s.log.Warn("list exchanges",
				zap.String("conversation", conversation.ID), zap.Error(err))
			continue
		}
		records = append(records, mined...)
	}

	activity.SortRecords(records)
	return records, nil
}

func (s *ConversationStore) listConversations(ctx context.Context, db *sql.DB) ([]conversationRow, error) {
	rows, err := db.QueryContext(
		ctx,
		`SELECT conversation_id, COALESCE(workspace_id, '') FROM conversations`,
	)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]conversationRow, 0)
	for rows.Next() {
		var row conversationRow
		if err := rows.Scan(&row.ID, &row.Workspace); err != nil {
			s.log.Warn("scan conversation row", zap.Error(err))
			continue
		}
		if row.Workspace == "" {
			row.Workspace = "default"
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return result, nil
}

func (s *ConversationStore) listExchanges(ctx context.Context, db *sql.DB, conversation conversationRow) ([]activity.Record, error) {
	rows, err := db.QueryContext(
		ctx,
		`SELECT start_ts, payload FROM exchanges
		 WHERE conversation_id = ?
		 ORDER BY start_ts ASC`,
		conversation.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []activity.Record
	for rows.Next() {
		var (
			startRaw string
			payload  []byte
		)
		if err := rows.Scan(&startRaw, &payload); err != nil {
			s.log.Warn("scan exchange row", zap.Error(err))
			continue
		}

		startedAt, err := time.Parse(time.RFC3339Nano, startRaw)
		if err != nil {
			if fallback, fallbackErr := time.Parse(time.RFC3339, startRaw); fallbackErr == nil {
				startedAt = fallback
			} else {
				s.log.Debug("drop exchange with unparseable start time",
					zap.String("start_ts", startRaw))
				continue
			}
		}

		records = append(records, normalizePayload(conversation, startedAt, payload)...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return records, nil
}

// payloadShape tags the known exchange payload layouts. The shape is decided
// once per payload; every later step switches on the tag instead of
// re-sniffing the JSON.
type payloadShape int

const (
	shapeUnknown payloadShape = iota
	shapeMessages
	shapeExchanges
	shapeGeneric
)

func classifyPayload(node map[string]any) payloadShape {
	if _, ok := node["messages"].([]any); ok {
		return shapeMessages
	}
	if _, ok := node["exchanges"].([]any); ok {
		return shapeExchanges
	}
	return shapeGeneric
}

// normalizePayload turns one exchange payload into records. Malformed
// payloads are dropped, not failed.
func normalizePayload(conversation conversationRow, startedAt time.Time, payload []byte) []activity.Record {
	var node map[string]any
	if err := json.Unmarshal(payload, &node); err != nil {
		return nil
	}

	makeRecord := func(kind activity.Kind, content string) activity.Record {
		return activity.Record{
			ID:            uuid.NewString(),
			Workspace:     conversation.Workspace,
			Source:        activity.SourceTerminal,
			Timestamp:     startedAt,
			Kind:          kind,
			Content:       content,
			CorrelationID: conversation.ID,
		}
	}

	var records []activity.Record
	switch classifyPayload(node) {
	case shapeMessages:
		for _, item := range node["messages"].([]any) {
			message, ok := item.(map[string]any)
			if !ok {
				continue
			}
			content := firstStringValue(message, "content", "text", "message")
			if strings.TrimSpace(content) == "" {
				continue
			}
			kind := activity.KindUserMessage
			if role, _ := message["role"].(string); role == "assistant" {
				kind = activity.KindAssistantMessage
			}
			records = append(records, makeRecord(kind, content))
		}
	case shapeExchanges:
		for _, item := range node["exchanges"].([]any) {
			exchange, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if input := firstStringValue(exchange, "input", "request", "query"); strings.TrimSpace(input) != "" {
				records = append(records, makeRecord(activity.KindUserMessage, input))
			}
			if output := firstStringValue(exchange, "output", "response", "answer"); strings.TrimSpace(output) != "" {
				records = append(records, makeRecord(activity.KindAssistantMessage, output))
			}
		}
	case shapeGeneric:
		for _, content := range harvestStrings(node) {
			records = append(records, makeRecord(activity.KindUserMessage, content))
		}
	}
	return records
}

func firstStringValue(node map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := node[key].(string); ok {
			return value
		}
	}
	return ""
}

// contentKeys name the JSON fields whose string values the generic harvest
// treats as conversational content.
var contentKeys = map[string]bool{
	"content": true,
	"message": true,
	"text":    true,
	"body":    true,
	"prompt":  true,
}

// harvestStrings walks an arbitrary decoded JSON tree and collects every
// string value sitting under a content-named key, keys visited in sorted
// order so the result is deterministic.
func harvestStrings(node any) []string {
	var out []string
	walkContentStrings(node, "", &out)
	return out
}

func walkContentStrings(node any, key string, out *[]string) {
	switch typed := node.(type) {
	case map[string]any:
		childKeys := make([]string, 0, len(typed))
		for childKey := range typed {
			childKeys = append(childKeys, childKey)
		}
		sort.Strings(childKeys)
		for _, childKey := range childKeys {
			walkContentStrings(typed[childKey], childKey, out)
		}
	case []any:
		for _, value := range typed {
			walkContentStrings(value, key, out)
		}
	case string:
		if contentKeys[strings.ToLower(key)] && strings.TrimSpace(typed) != "" {
			*out = append(*out, typed)
		}
	}
}
