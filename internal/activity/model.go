package activity

import (
	"sort"
	"strings"
	"time"
)

// Source identifies the tool a record or session was observed in.
type Source string

const (
	SourceEditorAssistant Source = "editor-assistant"
	SourceTerminal        Source = "terminal"
	SourceOther           Source = "other"

	// SourceCombined marks a unified session merged from more than one source.
	SourceCombined Source = "combined"
)

// Kind classifies what a record captured.
type Kind string

const (
	KindCommand          Kind = "command"
	KindUserMessage      Kind = "user_message"
	KindAssistantMessage Kind = "assistant_message"
)

// Record is one atomic extracted fact: a command invocation or a message
// fragment recovered from a local store. Records are produced and consumed
// within a single run and are never persisted.
type Record struct {
	ID            string    `json:"id"`
	Workspace     string    `json:"source_workspace_id"`
	Source        Source    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	Kind          Kind      `json:"kind"`
	Content       string    `json:"content"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	WorkingDir    string    `json:"working_directory,omitempty"`
	GitBranch     string    `json:"git_branch,omitempty"`
	ExitCode      *int      `json:"exit_code,omitempty"`
	DurationMs    *int      `json:"execution_duration_ms,omitempty"`
}

// PlaceholderCorrelationPrefix marks synthetic correlation ids assigned when
// a fragment could not be matched to a real conversation id. Placeholder ids
// never participate in identifier grouping.
const PlaceholderCorrelationPrefix = "unknown-"

// HasCorrelationID reports whether the record carries a real, non-synthetic
// correlation id.
func (r Record) HasCorrelationID() bool {
	return r.CorrelationID != "" && !strings.HasPrefix(r.CorrelationID, PlaceholderCorrelationPrefix)
}

// Timespan is the closed time range covered by a session.
type Timespan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (t Timespan) Minutes() float64 {
	if t.End.Before(t.Start) {
		return 0
	}
	return t.End.Sub(t.Start).Minutes()
}

// OverlapMinutes returns the length of the intersection of two timespans in
// minutes, or zero when they do not intersect.
func (t Timespan) OverlapMinutes(other Timespan) float64 {
	start := t.Start
	if other.Start.After(start) {
		start = other.Start
	}
	end := t.End
	if other.End.Before(end) {
		end = other.End
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start).Minutes()
}

// ContextBundle holds the secondary signals derived from a session's content.
// All fields are deduplicated sets kept in sorted order for stable output.
type ContextBundle struct {
	ProjectNames []string `json:"project_names"`
	WorkingDirs  []string `json:"working_directories"`
	GitBranches  []string `json:"git_branches"`
	Technologies []string `json:"technologies"`
	KeyInsights  []string `json:"key_insights"`
}

// Merge unions other into b with set semantics.
func (b *ContextBundle) Merge(other ContextBundle) {
	b.ProjectNames = UnionStrings(b.ProjectNames, other.ProjectNames)
	b.WorkingDirs = UnionStrings(b.WorkingDirs, other.WorkingDirs)
	b.GitBranches = UnionStrings(b.GitBranches, other.GitBranches)
	b.Technologies = UnionStrings(b.Technologies, other.Technologies)
	b.KeyInsights = UnionStrings(b.KeyInsights, other.KeyInsights)
}

// WorkSummary collects per-session heuristics about what the work episode
// accomplished. NextSteps is always empty: no extractable signal exists for
// it in any source, which is a known gap rather than a defect.
type WorkSummary struct {
	FocusAreas   []string `json:"focus_areas"`
	Achievements []string `json:"achievements"`
	Challenges   []string `json:"challenges"`
	NextSteps    []string `json:"next_steps"`
}

const (
	MaxAchievements = 5
	MaxChallenges   = 3
)

// Session is a time-bounded, single-source cluster of records believed to be
// one continuous work episode. Every record shares the session's source and
// workspace.
type Session struct {
	ID        string        `json:"session_id"`
	Source    Source        `json:"source"`
	Workspace string        `json:"workspace"`
	Records   []Record      `json:"records"`
	Timespan  Timespan      `json:"timespan"`
	Context   ContextBundle `json:"context"`
	Work      WorkSummary   `json:"work_session"`
}

// UnifiedSession is a merge of one or more single-source sessions whose time
// ranges overlap, representing one real-world episode observed across tools.
type UnifiedSession struct {
	ID       string        `json:"session_id"`
	Source   Source        `json:"source"`
	Sources  []Source      `json:"sources"`
	Commands []Record      `json:"commands"`
	Timespan Timespan      `json:"timespan"`
	Context  ContextBundle `json:"context"`
	Work     WorkSummary   `json:"work_session"`
}

// DayActivity is one bucket of the per-day histogram.
type DayActivity struct {
	Day      string  `json:"day"`
	Minutes  float64 `json:"minutes"`
	Sessions int     `json:"sessions"`
}

// ProjectTime is one row of the per-project time table.
type ProjectTime struct {
	Project string  `json:"project"`
	Minutes float64 `json:"minutes"`
}

// TechCount counts sessions (not occurrences) that touched a technology.
type TechCount struct {
	Technology string `json:"technology"`
	Sessions   int    `json:"sessions"`
}

// AnalysisResult aggregates a collection of unified sessions.
type AnalysisResult struct {
	TotalSessions int           `json:"total_sessions"`
	TotalCommands int           `json:"total_commands"`
	TotalMinutes  float64       `json:"total_minutes"`
	Days          []DayActivity `json:"days"`
	Projects      []ProjectTime `json:"projects"`
	Technologies  []TechCount   `json:"technologies"`
}

// UnionStrings merges two string sets into a sorted, deduplicated slice.
// Empty strings are dropped.
func UnionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, values := range [][]string{a, b} {
		for _, v := range values {
			if v == "" {
				continue
			}
			seen[v] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	result := make([]string, 0, len(seen))
	for v := range seen {
		result = append(result, v)
	}
	sort.Strings(result)
	return result
}

// SortRecords orders records by timestamp ascending. The sort is stable, so
// records sharing a timestamp keep their extraction order.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
}

// TruncateString shortens s to at most max runes.
func TruncateString(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
