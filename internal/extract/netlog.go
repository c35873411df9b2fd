package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"worklens/internal/activity"
)

// NetLogParser reads the terminal emulator's structured network log: a text
// file of `[timestamp]: Request|Response` headers, each optionally followed
// by an inline `Body { ... }` JSON block spanning multiple lines.
type NetLogParser struct {
	path string
	log  *zap.Logger
}

func NewNetLogParser(path string, log *zap.Logger) *NetLogParser {
	return &NetLogParser{path: path, log: log}
}

func (p *NetLogParser) Name() string { return "terminal-netlog" }

type netlogState int

const (
	stateOutside netlogState = iota
	stateBody
)

var netlogHeaderRe = regexp.MustCompile(`^\[([^\]]+)\]:\s*(Request|Response)\b`)

// analyticsPaths are the URL path markers of command telemetry uploads.
// Entries posted anywhere else carry no command data.
var analyticsPaths = []string{"/analytics", "/telemetry"}

var netlogTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

// pendingEntry owns the accumulation state for one log entry while its body
// block is still being read.
type pendingEntry struct {
	timestamp time.Time
	direction string
	body      []string
	depth     int
}

type netlogBody struct {
	URL        string `json:"url"`
	Command    string `json:"command"`
	SessionID  *int64 `json:"session_id"`
	ExitCode   *int   `json:"exit_code"`
	Cwd        string `json:"cwd"`
	GitBranch  string `json:"git_branch"`
	DurationMs *int   `json:"duration_ms"`
}

// Extract runs the two-state line parser over the log. A header line flushes
// any pending entry and opens a new one; a `Body {` marker starts body
// accumulation; the matching closing brace completes the entry. End of input
// flushes whatever entry is still open.
func (p *NetLogParser) Extract(ctx context.Context) ([]activity.Record, error) {
	f, err := os.Open(p.path)
	if err != nil {
		p.log.Warn("terminal network log unavailable, skipping source",
			zap.String("path", p.path), zap.Error(err))
		return nil, nil
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		records []activity.Record
		state   = stateOutside
		pending *pendingEntry
	)

	flush := func() {
		if pending == nil {
			return
		}
		if record, ok := p.finishEntry(pending); ok {
			records = append(records, record)
		}
		pending = nil
		state = stateOutside
	}

	for scanner.Scan() {
		if ctx.Err() != nil {
			break
		}
		line := scanner.Text()

		// A header line opens a new entry in either state, so a truncated
		// body block only loses its own entry.
		if match := netlogHeaderRe.FindStringSubmatch(line); match != nil {
			flush()
			pending = &pendingEntry{
				timestamp: parseNetlogTime(match[1]),
				direction: match[2],
			}
			continue
		}

		switch state {
		case stateOutside:
			if pending != nil && strings.Contains(line, "Body {") {
				rest := line[strings.Index(line, "Body {")+len("Body"):]
				pending.body = append(pending.body, rest)
				pending.depth = braceDelta(rest)
				if pending.depth <= 0 {
					flush()
				} else {
					state = stateBody
				}
			}
		case stateBody:
			pending.body = append(pending.body, line)
			pending.depth += braceDelta(line)
			if pending.depth <= 0 {
				flush()
			}
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		p.log.Warn("scan terminal network log", zap.Error(err))
	}

	activity.SortRecords(records)
	return records, nil
}

// finishEntry parses the accumulated body block as one JSON object and keeps
// the entry only when it carries a command and a recognized analytics URL.
func (p *NetLogParser) finishEntry(entry *pendingEntry) (activity.Record, bool) {
	if len(entry.body) == 0 {
		return activity.Record{}, false
	}

	raw := strings.Join(entry.body, "\n")
	var body netlogBody
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		p.log.Debug("drop malformed network log body", zap.Error(err))
		return activity.Record{}, false
	}

	if body.Command == "" || !isAnalyticsURL(body.URL) {
		return activity.Record{}, false
	}

	record := activity.Record{
		ID:         uuid.NewString(),
		Workspace:  "terminal",
		Source:     activity.SourceTerminal,
		Timestamp:  entry.timestamp,
		Kind:       activity.KindCommand,
		Content:    body.Command,
		WorkingDir: body.Cwd,
		GitBranch:  body.GitBranch,
		ExitCode:   body.ExitCode,
		DurationMs: body.DurationMs,
	}
	if body.SessionID != nil {
		record.CorrelationID = strconv.FormatInt(*body.SessionID, 10)
	}
	return record, true
}

func isAnalyticsURL(url string) bool {
	for _, path := range analyticsPaths {
		if strings.Contains(url, path) {
			return true
		}
	}
	return false
}

func parseNetlogTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, format := range netlogTimeFormats {
		if ts, err := time.Parse(format, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

func braceDelta(line string) int {
	delta := 0
	for _, r := range line {
		switch r {
		case '{':
			delta++
		case '}':
			delta--
		}
	}
	return delta
}
