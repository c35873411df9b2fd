package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worklens/internal/activity"
)

func sessionOf(records ...activity.Record) *activity.Session {
	return &activity.Session{
		ID:        "terminal-42",
		Source:    activity.SourceTerminal,
		Workspace: "terminal",
		Records:   records,
	}
}

func commandAt(content string, minute int) activity.Record {
	return activity.Record{
		ID:        content,
		Workspace: "terminal",
		Source:    activity.SourceTerminal,
		Timestamp: time.Date(2024, 3, 14, 10, minute, 0, 0, time.UTC),
		Kind:      activity.KindCommand,
		Content:   content,
	}
}

func TestEnrichContextDerivesAchievementsFromCommits(t *testing.T) {
	t.Parallel()

	session := sessionOf(
		commandAt("cd /proj", 0),
		commandAt(`git commit -m "fix: bug"`, 20),
	)
	EnrichContext(session)

	require.Equal(t, []string{"Fixed: bug"}, session.Work.Achievements)
	assert.Contains(t, session.Work.FocusAreas, "Version Control")
	assert.Contains(t, session.Context.WorkingDirs, "/proj")
	assert.Contains(t, session.Context.ProjectNames, "proj")
}

func TestEnrichContextAchievementBuckets(t *testing.T) {
	t.Parallel()

	session := sessionOf(
		commandAt(`git commit -m "add login endpoint"`, 0),
		commandAt(`git commit -m "refactor session handling"`, 5),
		commandAt(`git commit -m "update readme"`, 10),
	)
	EnrichContext(session)

	require.Len(t, session.Work.Achievements, 3)
	assert.Equal(t, "Implemented: login endpoint", session.Work.Achievements[0])
	assert.Equal(t, "Improved: session handling", session.Work.Achievements[1])
	assert.Equal(t, "Committed: update readme", session.Work.Achievements[2])
}

func TestEnrichContextCapsAchievements(t *testing.T) {
	t.Parallel()

	var records []activity.Record
	for i := 0; i < 8; i++ {
		records = append(records, commandAt(`git commit -m "fix: issue"`, i))
	}
	session := sessionOf(records...)
	EnrichContext(session)

	assert.Len(t, session.Work.Achievements, activity.MaxAchievements)
}

func TestEnrichContextChallengesFromExitCodes(t *testing.T) {
	t.Parallel()

	fail := 1
	var records []activity.Record
	for i := 0; i < 5; i++ {
		record := commandAt("make test", i)
		record.ExitCode = &fail
		records = append(records, record)
	}
	session := sessionOf(records...)
	EnrichContext(session)

	require.Len(t, session.Work.Challenges, activity.MaxChallenges)
	assert.Contains(t, session.Work.Challenges[0], "make test")
}

func TestEnrichContextTechnologiesArePerSessionSets(t *testing.T) {
	t.Parallel()

	session := sessionOf(
		commandAt("npm install", 0),
		commandAt("npm run build", 5),
		commandAt("docker compose up", 10),
	)
	EnrichContext(session)

	assert.ElementsMatch(t,
		[]string{"Node.js", "Docker"},
		session.Context.Technologies,
	)
}

func TestEnrichContextFocusAreas(t *testing.T) {
	t.Parallel()

	session := sessionOf(
		commandAt("go test ./...", 0),
		commandAt("go build ./...", 5),
		commandAt("npm install", 10),
	)
	EnrichContext(session)

	assert.Contains(t, session.Work.FocusAreas, "Testing")
	assert.Contains(t, session.Work.FocusAreas, "Building")
	assert.Contains(t, session.Work.FocusAreas, "Dependency Management")
}

func TestEnrichContextBranches(t *testing.T) {
	t.Parallel()

	tagged := commandAt("git checkout -b feature/reports", 0)
	fromField := commandAt("ls", 5)
	fromField.GitBranch = "main"

	session := sessionOf(tagged, fromField)
	EnrichContext(session)

	assert.Contains(t, session.Context.GitBranches, "feature/reports")
	assert.Contains(t, session.Context.GitBranches, "main")
}

func TestEnrichContextNextStepsStayEmpty(t *testing.T) {
	t.Parallel()

	session := sessionOf(commandAt(`git commit -m "fix: done"`, 0))
	EnrichContext(session)

	assert.Empty(t, session.Work.NextSteps)
}

func TestEnrichContextProjectFromCommitScope(t *testing.T) {
	t.Parallel()

	session := sessionOf(commandAt(`git commit -m "feat(reporting): add summary table"`, 0))
	EnrichContext(session)

	assert.Contains(t, session.Context.ProjectNames, "reporting")
}
