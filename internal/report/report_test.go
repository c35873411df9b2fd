package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklens/internal/activity"
)

func unifiedAt(id string, start time.Time, minutes int) activity.UnifiedSession {
	return activity.UnifiedSession{
		ID:     id,
		Source: activity.SourceTerminal,
		Timespan: activity.Timespan{
			Start: start,
			End:   start.Add(time.Duration(minutes) * time.Minute),
		},
	}
}

func withCommands(session activity.UnifiedSession, commands ...string) activity.UnifiedSession {
	for i, command := range commands {
		session.Commands = append(session.Commands, activity.Record{
			ID:        fmt.Sprintf("%s-%d", session.ID, i),
			Timestamp: session.Timespan.Start.Add(time.Duration(i) * time.Minute),
			Kind:      activity.KindCommand,
			Content:   command,
			Source:    session.Source,
		})
	}
	return session
}

func TestAggregateCountsTechnologiesPerSession(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

	a := unifiedAt("s1", base, 30)
	a.Context.Technologies = []string{"Node.js", "Docker"}
	b := unifiedAt("s2", base.Add(2*time.Hour), 60)
	b.Context.Technologies = []string{"Node.js"}

	result := Aggregate([]activity.UnifiedSession{a, b})

	for _, tech := range result.Technologies {
		if tech.Technology == "Node.js" {
			assert.Equal(t, 2, tech.Sessions, "two sessions touched Node.js")
		}
		if tech.Technology == "Docker" {
			assert.Equal(t, 1, tech.Sessions)
		}
	}
	require.Len(t, result.Technologies, 2)
}

func TestAggregateProjectMinutesCountAllBuckets(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	session := unifiedAt("s1", base, 40)
	session.Context.ProjectNames = []string{"api", "frontend"}

	result := Aggregate([]activity.UnifiedSession{session})

	require.Len(t, result.Projects, 2)
	for _, project := range result.Projects {
		assert.Equal(t, float64(40), project.Minutes,
			"a session touching N projects contributes its full duration to each")
	}
}

func TestAggregateTotalsAndDays(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	a := withCommands(unifiedAt("s1", base, 30), "go test ./...", "go build ./...")
	b := withCommands(unifiedAt("s2", base.AddDate(0, 0, 1), 60), "make")

	result := Aggregate([]activity.UnifiedSession{a, b})

	assert.Equal(t, 2, result.TotalSessions)
	assert.Equal(t, 3, result.TotalCommands)
	assert.Equal(t, float64(90), result.TotalMinutes)
	require.Len(t, result.Days, 2)
	assert.Equal(t, "2024-03-15", result.Days[0].Day, "days ranked by minutes")
}

func TestAggregateCapsDayAndProjectTables(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var sessions []activity.UnifiedSession
	for i := 0; i < 12; i++ {
		session := unifiedAt(fmt.Sprintf("s%d", i), base.AddDate(0, 0, i), 30+i)
		session.Context.ProjectNames = []string{fmt.Sprintf("project-%d", i)}
		sessions = append(sessions, session)
	}

	result := Aggregate(sessions)
	assert.Len(t, result.Days, 7)
	assert.Len(t, result.Projects, 10)
}

func TestRenderSessionKeyCommandOrdering(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	session := withCommands(unifiedAt("s1", base, 45),
		"ls -la",
		"npm run build",
		`git commit -m "fix: bug"`,
		"mkdir out",
		"cargo test",
	)

	rendered := RenderSession(session)

	commitIdx := strings.Index(rendered, "git commit")
	buildIdx := strings.Index(rendered, "npm run build")
	fileIdx := strings.Index(rendered, "ls -la")
	require.True(t, commitIdx >= 0 && buildIdx >= 0 && fileIdx >= 0, "all key command groups present:\n%s", rendered)
	assert.Less(t, commitIdx, buildIdx, "commits listed before build commands")
	assert.Less(t, buildIdx, fileIdx, "build commands listed before file operations")
}

func TestRenderSessionFrequencyTableOnlyWhenBusy(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

	quiet := withCommands(unifiedAt("s1", base, 30), "ls", "pwd")
	assert.NotContains(t, RenderSession(quiet), "Frequent Commands")

	var commands []string
	for i := 0; i < 14; i++ {
		commands = append(commands, fmt.Sprintf("echo %d", i))
	}
	busy := withCommands(unifiedAt("s2", base, 30), commands...)
	rendered := RenderSession(busy)
	assert.Contains(t, rendered, "Frequent Commands")
	assert.Contains(t, rendered, "| `echo` | 14 |")
}

func TestRenderReportShowsAchievements(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)
	session := unifiedAt("s1", base, 30)
	session.Work.Achievements = []string{"Fixed: bug", "Implemented: api", "Improved: docs"}

	rendered := RenderReport(Aggregate([]activity.UnifiedSession{session}), []activity.UnifiedSession{session})

	assert.Contains(t, rendered, "✅ Fixed: bug")
	assert.Contains(t, rendered, "✅ Implemented: api")
	assert.NotContains(t, rendered, "Improved: docs", "at most two achievements per session")
}

func TestRenderReportLimitsRecentSessions(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)
	var sessions []activity.UnifiedSession
	for i := 0; i < 5; i++ {
		sessions = append(sessions, unifiedAt(fmt.Sprintf("s%d", i), base.Add(time.Duration(i)*time.Hour), 30))
	}

	rendered := RenderReport(Aggregate(sessions), sessions)
	assert.Equal(t, 3, strings.Count(rendered, "### "), "three most recent sessions rendered")
	assert.Contains(t, rendered, "12:00", "newest session present")
	assert.NotContains(t, rendered, "08:00", "oldest session omitted")
}
