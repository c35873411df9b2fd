// Package sessions clusters raw activity records into work sessions, derives
// context from their content, and merges concurrent sessions across sources.
package sessions

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"worklens/internal/activity"
)

// Grouper clusters one source's records into sessions. Two mutually
// exclusive rules are applied per record: a record carrying a real
// correlation id joins that id's session regardless of elapsed time, while
// any other record joins the most recently opened still-open session of its
// workspace if the gap since that session's last record stays within the
// threshold. Sources differ in identity granularity, so the rule is picked
// per record, not per source.
type Grouper struct {
	gap time.Duration
}

func NewGrouper(gap time.Duration) *Grouper {
	return &Grouper{gap: gap}
}

// Group is a pure function of (records, correlation ids, threshold):
// identical input always yields identical session boundaries apart from the
// generated ids of temporal sessions.
func (g *Grouper) Group(records []activity.Record) []activity.Session {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]activity.Record, len(records))
	copy(sorted, records)
	activity.SortRecords(sorted)

	type openSession struct {
		session *activity.Session
		last    time.Time
	}

	var (
		result        []*activity.Session
		byCorrelation = make(map[string]*openSession)
		byWorkspace   = make(map[string]*openSession)
	)

	appendRecord := func(open *openSession, record activity.Record) {
		open.session.Records = append(open.session.Records, record)
		open.last = record.Timestamp
	}

	openNew := func(record activity.Record, id string) *openSession {
		session := &activity.Session{
			ID:        id,
			Source:    record.Source,
			Workspace: record.Workspace,
			Records:   []activity.Record{record},
		}
		result = append(result, session)
		return &openSession{session: session, last: record.Timestamp}
	}

	for _, record := range sorted {
		if record.HasCorrelationID() {
			key := record.Workspace + "\x00" + record.CorrelationID
			if open, ok := byCorrelation[key]; ok {
				appendRecord(open, record)
				continue
			}
			id := fmt.Sprintf("%s-%s", record.Source, record.CorrelationID)
			byCorrelation[key] = openNew(record, id)
			continue
		}

		if open, ok := byWorkspace[record.Workspace]; ok {
			if record.Timestamp.Sub(open.last) <= g.gap {
				appendRecord(open, record)
				continue
			}
		}
		id := fmt.Sprintf("%s-%s", record.Source, uuid.NewString())
		byWorkspace[record.Workspace] = openNew(record, id)
	}

	sessions := make([]activity.Session, 0, len(result))
	for _, session := range result {
		session.Timespan = activity.Timespan{
			Start: session.Records[0].Timestamp,
			End:   session.Records[len(session.Records)-1].Timestamp,
		}
		sessions = append(sessions, *session)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Timespan.Start.After(sessions[j].Timespan.Start)
	})
	return sessions
}
