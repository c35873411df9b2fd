// Package analyzer wires the pipeline together: concurrent extraction from
// every configured source, then synchronous grouping, context enrichment,
// cross-source unification, and aggregation. Nothing is persisted between
// runs; every run recomputes from source data.
package analyzer

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"worklens/internal/activity"
	"worklens/internal/config"
	"worklens/internal/extract"
	"worklens/internal/report"
	"worklens/internal/sessions"
)

// Result is the output of one analysis run.
type Result struct {
	Sessions []activity.UnifiedSession `json:"sessions"`
	Stats    activity.AnalysisResult   `json:"stats"`
}

// Analyzer runs the reconstruction pipeline.
type Analyzer struct {
	cfg        config.Config
	log        *zap.Logger
	now        func() time.Time
	extractors []extract.Extractor
}

func New(cfg config.Config, log *zap.Logger) *Analyzer {
	return &Analyzer{
		cfg: cfg,
		log: log,
		now: time.Now,
		extractors: []extract.Extractor{
			extract.NewStoreMiner(cfg.Sources.EditorStoreDir, cfg.Extraction, log),
			extract.NewNetLogParser(cfg.Sources.TerminalLogPath, log),
			extract.NewConversationStore(cfg.Sources.ConversationDBPath, log),
			extract.NewHistoryReader(cfg.Sources.HistoryFilePath, log),
		},
	}
}

// NewWithExtractors builds an analyzer over explicit extractors. Used by
// tests and callers that add or replace sources.
func NewWithExtractors(cfg config.Config, log *zap.Logger, extractors []extract.Extractor) *Analyzer {
	a := New(cfg, log)
	a.extractors = extractors
	return a
}

// Run executes one full analysis. Extractions run concurrently; each
// extractor owns its own output slot, so no state is shared until all have
// finished. Extraction problems degrade to empty per-source results and
// never fail the run.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	started := a.now()

	perSource := make([][]activity.Record, len(a.extractors))
	g, gctx := errgroup.WithContext(ctx)
	for i, extractor := range a.extractors {
		i, extractor := i, extractor
		g.Go(func() error {
			records, err := extractor.Extract(gctx)
			if err != nil {
				a.log.Warn("extraction failed, continuing with empty source",
					zap.String("source", extractor.Name()), zap.Error(err))
				return nil
			}
			perSource[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	gap := time.Duration(a.cfg.Grouping.SessionGapMinutes) * time.Minute
	grouper := sessions.NewGrouper(gap)

	var grouped []activity.Session
	for i, records := range perSource {
		sourceSessions := grouper.Group(records)
		a.log.Debug("grouped source records",
			zap.String("source", a.extractors[i].Name()),
			zap.Int("records", len(records)),
			zap.Int("sessions", len(sourceSessions)))
		grouped = append(grouped, sourceSessions...)
	}

	for i := range grouped {
		sessions.EnrichContext(&grouped[i])
	}

	overlap := time.Duration(a.cfg.Grouping.OverlapMinutes) * time.Minute
	unified := sessions.NewUnifier(overlap).Unify(grouped)

	result := &Result{
		Sessions: unified,
		Stats:    report.Aggregate(unified),
	}

	a.log.Info("analysis complete",
		zap.Int("sessions", len(unified)),
		zap.Int("commands", result.Stats.TotalCommands),
		zap.Duration("elapsed", a.now().Sub(started)))
	return result, nil
}
