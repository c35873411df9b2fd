package sessions

import (
	"path/filepath"
	"regexp"
	"strings"

	"worklens/internal/activity"
)

// techPattern maps a content regex to a technology label.
type techPattern struct {
	re    *regexp.Regexp
	label string
}

// techTable is the fixed technology detection table. Matching is
// per-session: a session either touched a technology or it did not.
var techTable = []techPattern{
	{regexp.MustCompile(`(?i)\bgo(lang)?\b|\.go\b|go\s+(build|test|run|mod)`), "Go"},
	{regexp.MustCompile(`(?i)\b(npm|npx|node)\b|package\.json`), "Node.js"},
	{regexp.MustCompile(`(?i)\b(yarn|pnpm)\b`), "Node.js"},
	{regexp.MustCompile(`(?i)\b(python3?|pip3?|pytest|venv)\b|\.py\b`), "Python"},
	{regexp.MustCompile(`(?i)\btypescript\b|\.tsx?\b|tsconfig`), "TypeScript"},
	{regexp.MustCompile(`(?i)\bjavascript\b|\.jsx?\b`), "JavaScript"},
	{regexp.MustCompile(`(?i)\b(cargo|rustc|rustup)\b|\.rs\b`), "Rust"},
	{regexp.MustCompile(`(?i)\bdocker(-compose)?\b|dockerfile`), "Docker"},
	{regexp.MustCompile(`(?i)\b(kubectl|kubernetes|k9s|helm)\b`), "Kubernetes"},
	{regexp.MustCompile(`(?i)\bgit\b`), "Git"},
	{regexp.MustCompile(`(?i)\b(postgres(ql)?|psql)\b`), "PostgreSQL"},
	{regexp.MustCompile(`(?i)\bsqlite3?\b|\.db\b`), "SQLite"},
	{regexp.MustCompile(`(?i)\bredis(-cli)?\b`), "Redis"},
	{regexp.MustCompile(`(?i)\bterraform\b|\.tf\b`), "Terraform"},
	{regexp.MustCompile(`(?i)\baws\b|s3://`), "AWS"},
	{regexp.MustCompile(`(?i)\b(gcloud|gsutil)\b`), "GCP"},
	{regexp.MustCompile(`(?i)\bmake(file)?\b`), "Make"},
	{regexp.MustCompile(`(?i)\b(gradle|mvn|maven)\b|\.java\b`), "Java"},
	{regexp.MustCompile(`(?i)\breact\b|\.jsx\b`), "React"},
	{regexp.MustCompile(`(?i)\b(curl|wget|http)\b`), "HTTP"},
}

// focusTrigger maps a content keyword to a focus area label.
type focusTrigger struct {
	keyword string
	label   string
}

var focusTriggers = []focusTrigger{
	{"test", "Testing"},
	{"build", "Building"},
	{"compile", "Building"},
	{"git commit", "Version Control"},
	{"deploy", "Deployment"},
	{"debug", "Debugging"},
	{"log", "Debugging"},
	{"install", "Dependency Management"},
	{"add ", "Dependency Management"},
}

var (
	cdCommandRe     = regexp.MustCompile(`(?m)^\s*cd\s+([^\s;&|]+)`)
	pathLiteralRe   = regexp.MustCompile(`(?:^|\s)(/(?:[\w.-]+/)+[\w.-]+)`)
	branchSwitchRe  = regexp.MustCompile(`git\s+(?:checkout\s+(?:-b\s+)?|switch\s+(?:-c\s+)?)([\w./-]+)`)
	commitMessageRe = regexp.MustCompile(`git\s+commit\b[^"']*["']([^"']+)["']`)
	commitScopeRe   = regexp.MustCompile(`^(?:feat|fix|chore|refactor|docs|test|perf|build)\(([^)]+)\)\s*:`)
)

// achievementBuckets classify commit messages by leading keyword. Order
// matters: the first matching bucket wins.
var achievementBuckets = []struct {
	keywords []string
	label    string
}{
	{[]string{"fix", "resolve"}, "Fixed"},
	{[]string{"add", "implement", "feat"}, "Implemented"},
	{[]string{"refactor", "improve"}, "Improved"},
}

const (
	achievementMaxLen = 50
	insightMaxLen     = 80
	maxKeyInsights    = 5
)

// EnrichContext derives the context bundle and work summary for a session
// from its records. NextSteps stays empty: no source carries a usable signal
// for it.
func EnrichContext(session *activity.Session) {
	var (
		dirs         []string
		branches     []string
		technologies []string
		projects     []string
		insights     []string
		focusAreas   []string
		achievements []string
		challenges   []string
	)

	techSeen := make(map[string]bool)
	focusSeen := make(map[string]bool)

	for _, record := range session.Records {
		if record.WorkingDir != "" {
			dirs = append(dirs, record.WorkingDir)
		}
		if record.GitBranch != "" {
			branches = append(branches, record.GitBranch)
		}

		content := record.Content
		lower := strings.ToLower(content)

		for _, match := range cdCommandRe.FindAllStringSubmatch(content, -1) {
			dirs = append(dirs, match[1])
		}
		for _, match := range pathLiteralRe.FindAllStringSubmatch(content, -1) {
			dirs = append(dirs, match[1])
		}
		for _, match := range branchSwitchRe.FindAllStringSubmatch(content, -1) {
			branches = append(branches, match[1])
		}

		for _, tech := range techTable {
			if !techSeen[tech.label] && tech.re.MatchString(content) {
				techSeen[tech.label] = true
				technologies = append(technologies, tech.label)
			}
		}

		for _, trigger := range focusTriggers {
			if !focusSeen[trigger.label] && strings.Contains(lower, trigger.keyword) {
				focusSeen[trigger.label] = true
				focusAreas = append(focusAreas, trigger.label)
			}
		}

		if record.Kind == activity.KindCommand {
			if message, ok := commitMessage(content); ok {
				if scope := commitScopeRe.FindStringSubmatch(message); scope != nil {
					projects = append(projects, scope[1])
				}
				if len(achievements) < activity.MaxAchievements {
					achievements = append(achievements, achievementFromCommit(message))
				}
			}
			if record.ExitCode != nil && *record.ExitCode != 0 && len(challenges) < activity.MaxChallenges {
				challenges = append(challenges,
					"Command failed: "+activity.TruncateString(content, achievementMaxLen))
			}
		}

		if record.Kind == activity.KindUserMessage && len(insights) < maxKeyInsights {
			insights = append(insights, activity.TruncateString(content, insightMaxLen))
		}
	}

	for _, dir := range dirs {
		if base := filepath.Base(dir); base != "" && base != "/" && base != "." {
			projects = append(projects, base)
		}
	}

	session.Context = activity.ContextBundle{
		ProjectNames: activity.UnionStrings(projects, nil),
		WorkingDirs:  activity.UnionStrings(dirs, nil),
		GitBranches:  activity.UnionStrings(branches, nil),
		Technologies: activity.UnionStrings(technologies, nil),
		KeyInsights:  activity.UnionStrings(insights, nil),
	}
	session.Work = activity.WorkSummary{
		FocusAreas:   activity.UnionStrings(focusAreas, nil),
		Achievements: achievements,
		Challenges:   challenges,
	}
}

// commitMessage extracts the quoted message from a `git commit` command.
func commitMessage(command string) (string, bool) {
	if !strings.Contains(command, "git commit") {
		return "", false
	}
	match := commitMessageRe.FindStringSubmatch(command)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}

// achievementFromCommit buckets a commit message by its leading keyword and
// truncates the remainder. Messages outside every bucket still count as a
// plain commit.
func achievementFromCommit(message string) string {
	lower := strings.ToLower(message)
	for _, bucket := range achievementBuckets {
		for _, keyword := range bucket.keywords {
			if strings.HasPrefix(lower, keyword) {
				rest := message[len(keyword):]
				rest = strings.TrimLeft(rest, "eds") // fixed, resolves, adds, ...
				rest = strings.TrimSpace(strings.TrimLeft(rest, ":"))
				rest = strings.TrimSpace(rest)
				if rest == "" {
					rest = message
				}
				return bucket.label + ": " + activity.TruncateString(rest, achievementMaxLen)
			}
		}
	}
	return "Committed: " + activity.TruncateString(message, achievementMaxLen)
}
