package sessions

import (
	"sort"
	"time"

	"worklens/internal/activity"
)

// Unifier merges time-overlapping sessions from different sources into
// unified sessions. Merging runs as a connected-components pass over the
// overlap graph, so the result is order-independent and transitive: three
// sessions that pairwise overlap always end up in one merge, regardless of
// iteration order.
type Unifier struct {
	overlap time.Duration
}

func NewUnifier(overlap time.Duration) *Unifier {
	return &Unifier{overlap: overlap}
}

// Unify covers every input session exactly once: sessions whose component
// has a single member pass through unchanged, the rest are merged into
// combined sessions. Output is sorted newest-start-first.
func (u *Unifier) Unify(sessions []activity.Session) []activity.UnifiedSession {
	parent := make([]int, len(sessions))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	threshold := u.overlap.Minutes()
	for i := 0; i < len(sessions); i++ {
		for j := i + 1; j < len(sessions); j++ {
			if sessions[i].Source == sessions[j].Source {
				continue
			}
			if sessions[i].Timespan.OverlapMinutes(sessions[j].Timespan) >= threshold {
				union(i, j)
			}
		}
	}

	components := make(map[int][]int)
	for i := range sessions {
		root := find(i)
		components[root] = append(components[root], i)
	}

	unified := make([]activity.UnifiedSession, 0, len(components))
	for _, members := range components {
		if len(members) == 1 {
			unified = append(unified, passthrough(sessions[members[0]]))
			continue
		}
		constituents := make([]activity.Session, 0, len(members))
		for _, idx := range members {
			constituents = append(constituents, sessions[idx])
		}
		unified = append(unified, merge(constituents))
	}

	sort.SliceStable(unified, func(i, j int) bool {
		return unified[i].Timespan.Start.After(unified[j].Timespan.Start)
	})
	return unified
}

func passthrough(session activity.Session) activity.UnifiedSession {
	return activity.UnifiedSession{
		ID:       session.ID,
		Source:   session.Source,
		Sources:  []activity.Source{session.Source},
		Commands: tagRecords(session),
		Timespan: session.Timespan,
		Context:  session.Context,
		Work:     session.Work,
	}
}

// merge combines overlapping sessions: exact min/max timespan, source-tagged
// records re-sorted by timestamp, set-unioned context, and work lists
// unioned then re-capped to their limits.
func merge(constituents []activity.Session) activity.UnifiedSession {
	sort.SliceStable(constituents, func(i, j int) bool {
		return constituents[i].Timespan.Start.Before(constituents[j].Timespan.Start)
	})

	result := activity.UnifiedSession{
		ID:       "merged-" + constituents[0].ID,
		Source:   activity.SourceCombined,
		Timespan: constituents[0].Timespan,
	}

	sourceSeen := make(map[activity.Source]bool)
	for _, session := range constituents {
		if !sourceSeen[session.Source] {
			sourceSeen[session.Source] = true
			result.Sources = append(result.Sources, session.Source)
		}

		result.Commands = append(result.Commands, tagRecords(session)...)

		if session.Timespan.Start.Before(result.Timespan.Start) {
			result.Timespan.Start = session.Timespan.Start
		}
		if session.Timespan.End.After(result.Timespan.End) {
			result.Timespan.End = session.Timespan.End
		}

		result.Context.Merge(session.Context)
		result.Work.FocusAreas = activity.UnionStrings(result.Work.FocusAreas, session.Work.FocusAreas)
		result.Work.Achievements = appendCapped(result.Work.Achievements, session.Work.Achievements, activity.MaxAchievements)
		result.Work.Challenges = appendCapped(result.Work.Challenges, session.Work.Challenges, activity.MaxChallenges)
	}

	activity.SortRecords(result.Commands)
	return result
}

// tagRecords stamps each record with its originating session's source so
// provenance survives the merge.
func tagRecords(session activity.Session) []activity.Record {
	records := make([]activity.Record, len(session.Records))
	copy(records, session.Records)
	for i := range records {
		records[i].Source = session.Source
	}
	return records
}

func appendCapped(existing, extra []string, limit int) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	for _, v := range extra {
		if len(existing) >= limit {
			break
		}
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		existing = append(existing, v)
	}
	return existing
}
