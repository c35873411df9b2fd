// Package report aggregates unified sessions into summary statistics and
// renders Markdown views of them.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"worklens/internal/activity"
)

const (
	topDays         = 7
	topProjects     = 10
	reportProjects  = 5
	reportTechs     = 8
	reportSessions  = 3
	maxAchievements = 2
	maxKeyCommands  = 10
	maxCommitsShown = 3
	maxBuildShown   = 5
	maxFileOpsShown = 3
	topBaseCommands = 5
	frequencyCutoff = 10
)

// Aggregate computes the analysis summary over a set of unified sessions.
// Technology frequency is counted once per session; a session touching N
// projects contributes its full duration to all N project buckets.
func Aggregate(sessions []activity.UnifiedSession) activity.AnalysisResult {
	result := activity.AnalysisResult{
		TotalSessions: len(sessions),
	}

	dayMinutes := make(map[string]float64)
	daySessions := make(map[string]int)
	projectMinutes := make(map[string]float64)
	techSessions := make(map[string]int)

	for _, session := range sessions {
		minutes := session.Timespan.Minutes()
		result.TotalCommands += len(session.Commands)
		result.TotalMinutes += minutes

		day := session.Timespan.Start.Format("2006-01-02")
		dayMinutes[day] += minutes
		daySessions[day]++

		for _, project := range session.Context.ProjectNames {
			projectMinutes[project] += minutes
		}
		for _, tech := range session.Context.Technologies {
			techSessions[tech]++
		}
	}

	for day, minutes := range dayMinutes {
		result.Days = append(result.Days, activity.DayActivity{
			Day:      day,
			Minutes:  minutes,
			Sessions: daySessions[day],
		})
	}
	sort.Slice(result.Days, func(i, j int) bool {
		if result.Days[i].Minutes == result.Days[j].Minutes {
			return result.Days[i].Day > result.Days[j].Day
		}
		return result.Days[i].Minutes > result.Days[j].Minutes
	})
	if len(result.Days) > topDays {
		result.Days = result.Days[:topDays]
	}

	for project, minutes := range projectMinutes {
		result.Projects = append(result.Projects, activity.ProjectTime{
			Project: project,
			Minutes: minutes,
		})
	}
	sort.Slice(result.Projects, func(i, j int) bool {
		if result.Projects[i].Minutes == result.Projects[j].Minutes {
			return result.Projects[i].Project < result.Projects[j].Project
		}
		return result.Projects[i].Minutes > result.Projects[j].Minutes
	})
	if len(result.Projects) > topProjects {
		result.Projects = result.Projects[:topProjects]
	}

	for tech, count := range techSessions {
		result.Technologies = append(result.Technologies, activity.TechCount{
			Technology: tech,
			Sessions:   count,
		})
	}
	sort.Slice(result.Technologies, func(i, j int) bool {
		if result.Technologies[i].Sessions == result.Technologies[j].Sessions {
			return result.Technologies[i].Technology < result.Technologies[j].Technology
		}
		return result.Technologies[i].Sessions > result.Technologies[j].Sessions
	})

	return result
}

// buildPrefixes mark build/dev tooling commands picked as key commands.
var buildPrefixes = []string{
	"npm", "yarn", "pnpm", "make", "go ", "cargo", "docker",
	"mvn", "gradle", "pip", "pytest", "python",
}

// fileOpPrefixes mark file-operation commands picked as key commands.
var fileOpPrefixes = []string{
	"cp ", "mv ", "rm ", "mkdir", "touch", "cat ", "ls",
}

// RenderSession renders the Markdown view of one unified session.
func RenderSession(session activity.UnifiedSession) string {
	var b strings.Builder

	minutes := session.Timespan.Minutes()
	fmt.Fprintf(&b, "## Work Session — %s\n\n", formatDuration(minutes))
	fmt.Fprintf(&b, "- **Time**: %s – %s\n",
		session.Timespan.Start.Format("2006-01-02 15:04"),
		session.Timespan.End.Format("15:04"))
	fmt.Fprintf(&b, "- **Source**: %s\n", session.Source)
	fmt.Fprintf(&b, "- **Commands**: %s\n", humanize.Comma(int64(len(session.Commands))))

	if len(session.Context.WorkingDirs) > 0 {
		fmt.Fprintf(&b, "- **Directories**: %s\n", strings.Join(session.Context.WorkingDirs, ", "))
	}
	if len(session.Context.GitBranches) > 0 {
		fmt.Fprintf(&b, "- **Branches**: %s\n", strings.Join(session.Context.GitBranches, ", "))
	}

	commands := commandRecords(session.Commands)
	if key := keyCommands(commands); len(key) > 0 {
		b.WriteString("\n### Key Commands\n\n")
		for _, command := range key {
			fmt.Fprintf(&b, "- `%s`\n", command)
		}
	}

	if len(commands) > frequencyCutoff {
		b.WriteString("\n### Frequent Commands\n\n")
		b.WriteString("| Command | Count |\n|---|---|\n")
		for _, entry := range baseCommandFrequency(commands, topBaseCommands) {
			fmt.Fprintf(&b, "| `%s` | %d |\n", entry.base, entry.count)
		}
	}

	return b.String()
}

// RenderReport renders the full Markdown activity report.
func RenderReport(result activity.AnalysisResult, sessions []activity.UnifiedSession) string {
	var b strings.Builder

	b.WriteString("# Activity Report\n\n")
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- **Sessions**: %d\n", result.TotalSessions)
	fmt.Fprintf(&b, "- **Commands**: %s\n", humanize.Comma(int64(result.TotalCommands)))
	fmt.Fprintf(&b, "- **Active time**: %s\n", formatDuration(result.TotalMinutes))

	if len(result.Projects) > 0 {
		b.WriteString("\n## Top Projects\n\n")
		for i, project := range result.Projects {
			if i >= reportProjects {
				break
			}
			fmt.Fprintf(&b, "%d. **%s** — %s\n", i+1, project.Project, formatDuration(project.Minutes))
		}
	}

	if len(result.Technologies) > 0 {
		b.WriteString("\n## Technologies\n\n")
		for i, tech := range result.Technologies {
			if i >= reportTechs {
				break
			}
			fmt.Fprintf(&b, "- %s (%d sessions)\n", tech.Technology, tech.Sessions)
		}
	}

	recent := make([]activity.UnifiedSession, len(sessions))
	copy(recent, sessions)
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].Timespan.Start.After(recent[j].Timespan.Start)
	})
	if len(recent) > reportSessions {
		recent = recent[:reportSessions]
	}

	if len(recent) > 0 {
		b.WriteString("\n## Recent Sessions\n\n")
		for _, session := range recent {
			fmt.Fprintf(&b, "### %s (%s, %s)\n\n",
				session.Timespan.Start.Format("2006-01-02 15:04"),
				session.Source,
				formatDuration(session.Timespan.Minutes()))
			for i, achievement := range session.Work.Achievements {
				if i >= maxAchievements {
					break
				}
				fmt.Fprintf(&b, "- ✅ %s\n", achievement)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// keyCommands picks up to 10 representative commands: git commits first,
// then build/dev commands, then file operations.
func keyCommands(commands []string) []string {
	var commits, builds, fileOps []string
	for _, command := range commands {
		switch {
		case strings.Contains(command, "git commit") && len(commits) < maxCommitsShown:
			commits = append(commits, command)
		case hasAnyPrefix(command, buildPrefixes) && len(builds) < maxBuildShown:
			builds = append(builds, command)
		case hasAnyPrefix(command, fileOpPrefixes) && len(fileOps) < maxFileOpsShown:
			fileOps = append(fileOps, command)
		}
	}

	key := make([]string, 0, maxKeyCommands)
	key = append(key, commits...)
	key = append(key, builds...)
	key = append(key, fileOps...)
	if len(key) > maxKeyCommands {
		key = key[:maxKeyCommands]
	}
	return key
}

func commandRecords(records []activity.Record) []string {
	commands := make([]string, 0, len(records))
	for _, record := range records {
		if record.Kind == activity.KindCommand {
			commands = append(commands, record.Content)
		}
	}
	return commands
}

type baseCount struct {
	base  string
	count int
}

func baseCommandFrequency(commands []string, limit int) []baseCount {
	counts := make(map[string]int)
	for _, command := range commands {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			continue
		}
		counts[fields[0]]++
	}

	entries := make([]baseCount, 0, len(counts))
	for base, count := range counts {
		entries = append(entries, baseCount{base: base, count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count == entries[j].count {
			return entries[i].base < entries[j].base
		}
		return entries[i].count > entries[j].count
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		trimmed := strings.TrimSpace(prefix)
		if s == trimmed || strings.HasPrefix(s, trimmed+" ") {
			return true
		}
	}
	return false
}

func formatDuration(minutes float64) string {
	d := time.Duration(minutes * float64(time.Minute))
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	hours := int(d.Hours())
	rem := int(d.Minutes()) - hours*60
	if rem == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, rem)
}
