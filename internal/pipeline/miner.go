// Package pipeline runs a complete mining pass: query building, NCBI
// retrieval, parsing, quality assessment and PRISMA accounting.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/metrics"
	"github.com/prisma-miner/internal/parser"
	"github.com/prisma-miner/internal/prisma"
	"github.com/prisma-miner/internal/quality"
	"github.com/prisma-miner/internal/query"
	"github.com/prisma-miner/internal/store"
	"github.com/prisma-miner/internal/vocabulary"
	"github.com/prisma-miner/pkg/ncbi"
)

// DefaultDatabases are searched when a request names none.
var DefaultDatabases = []string{parser.DBBioProject, parser.DBSRA, parser.DBGEO, parser.DBPubMed}

// Searcher returns the ids matching a term in one database.
type Searcher interface {
	Search(ctx context.Context, db, term string) (ncbi.SearchResult, error)
}

// SummaryFetcher returns raw esummary documents for ids.
type SummaryFetcher interface {
	Summaries(ctx context.Context, db string, ids []string) ([][]byte, error)
}

// RunRequest describes one mining run.
type RunRequest struct {
	Organism      string   `json:"organism"`
	Condition     string   `json:"condition"`
	Experiment    string   `json:"experiment,omitempty"`
	Label         string   `json:"label,omitempty"`
	OutputDir     string   `json:"output_dir,omitempty"`
	QualityFilter bool     `json:"quality_filter"`
	MinQuality    float64  `json:"min_quality"`
	Databases     []string `json:"databases,omitempty"`
	FlowFormat    string   `json:"flow_format,omitempty"`
}

// RunResult is the outcome of a run. Flow and Log stay attached so the
// caller can write outputs.
type RunResult struct {
	ID         string                   `json:"id"`
	Request    RunRequest               `json:"request"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Included   []quality.AssessedRecord `json:"included"`
	Excluded   []quality.AssessedRecord `json:"excluded"`
	Summary    prisma.FlowSummary       `json:"summary"`
	Screening  prisma.ScreeningStats    `json:"screening"`
	Quality    quality.Report           `json:"quality"`
	Flow       *prisma.FlowTracker      `json:"-"`
	Log        *prisma.ScreeningLog     `json:"-"`
}

// Option configures a Miner
type Option func(*Miner)

// WithStore persists every finished run.
func WithStore(s store.RunStore) Option {
	return func(m *Miner) { m.store = s }
}

// WithMetrics observes runs and decisions.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Miner) { m.metrics = c }
}

// WithLogger sets the run logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(m *Miner) { m.logger = logger }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Miner) { m.now = now }
}

// Miner orchestrates runs. It holds no per-run state and may be reused.
type Miner struct {
	vocab    *vocabulary.Registry
	searcher Searcher
	fetcher  SummaryFetcher
	builder  *query.Builder
	assessor *quality.Assessor
	store    store.RunStore
	metrics  *metrics.Collector
	logger   *logrus.Logger
	now      func() time.Time
}

// NewMiner creates a miner. A nil registry selects vocabulary.Default().
func NewMiner(vocab *vocabulary.Registry, searcher Searcher, fetcher SummaryFetcher, opts ...Option) (*Miner, error) {
	if searcher == nil || fetcher == nil {
		return nil, fmt.Errorf("searcher and summary fetcher are required")
	}
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	assessor, err := quality.NewAssessor(vocab)
	if err != nil {
		return nil, fmt.Errorf("failed to create assessor: %w", err)
	}

	m := &Miner{
		vocab:    vocab,
		searcher: searcher,
		fetcher:  fetcher,
		builder:  query.NewBuilder(vocab),
		assessor: assessor,
		logger:   logrus.StandardLogger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run executes a mining run end to end. Search and fetch failures for a
// single database are logged and leave that database with no records; a
// failure to persist the run is returned.
func (m *Miner) Run(ctx context.Context, req RunRequest) (res *RunResult, err error) {
	started := m.now()
	defer func() { m.metrics.ObserveRun(err, m.now().Sub(started)) }()

	req, err = normalize(req)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	log := m.logger.WithFields(logrus.Fields{
		"run_id":    runID,
		"label":     req.Label,
		"condition": req.Condition,
	})
	log.Info("Starting mining run")

	flow := prisma.NewFlowTracker(req.Condition, req.Label)
	screening := prisma.NewScreeningLog(req.Condition, req.Label)
	fields := query.Fields{Organism: req.Organism, Condition: req.Condition, Experiment: req.Experiment}

	var records []domain.Record
	for _, db := range req.Databases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs, identified, err := m.collect(ctx, log, db, fields, req.Condition)
		if err != nil {
			return nil, err
		}
		if err := flow.RecordIdentified(db, identified); err != nil {
			return nil, err
		}
		m.metrics.ObserveIdentified(db, identified)
		records = append(records, recs...)
	}

	records = dropDuplicates(log, records)
	if err := flow.RecordScreened(len(records)); err != nil {
		return nil, err
	}

	assessed := m.assessor.AssessCollection(records)
	for _, r := range assessed {
		m.metrics.ObserveQuality(r.Score())
	}

	included, excluded := assessed, []quality.AssessedRecord(nil)
	if req.QualityFilter {
		included, excluded = split(assessed, req.MinQuality)
		for _, r := range excluded {
			reason := fmt.Sprintf("Low quality score: %.1f", r.Score())
			if err := screening.AddEntry(r.ID, r.SourceDatabase, prisma.DecisionExcluded,
				prisma.WithTitle(r.Title), prisma.WithReason(reason), prisma.WithQualityScore(r.Score())); err != nil {
				return nil, err
			}
			m.metrics.ObserveDecision(r.SourceDatabase, string(prisma.DecisionExcluded))
		}
		if len(excluded) > 0 {
			if err := flow.RecordExcluded(len(excluded), "Quality score < "+formatThreshold(req.MinQuality)); err != nil {
				return nil, err
			}
		}
	}

	bySource := prisma.NewTally()
	for _, r := range included {
		if err := screening.AddEntry(r.ID, r.SourceDatabase, prisma.DecisionIncluded,
			prisma.WithTitle(r.Title), prisma.WithQualityScore(r.Score())); err != nil {
			return nil, err
		}
		bySource.Add(r.SourceDatabase, 1)
		m.metrics.ObserveDecision(r.SourceDatabase, string(prisma.DecisionIncluded))
	}
	if err := flow.SetIncluded(len(included), bySource); err != nil {
		return nil, err
	}

	res = &RunResult{
		ID:         runID,
		Request:    req,
		StartedAt:  started,
		FinishedAt: m.now(),
		Included:   included,
		Excluded:   excluded,
		Summary:    flow.Summary(),
		Screening:  screening.Statistics(),
		Quality:    m.assessor.Report(assessed),
		Flow:       flow,
		Log:        screening,
	}

	if m.store != nil {
		record, err := toRunRecord(res)
		if err != nil {
			return nil, err
		}
		if err := m.store.SaveRun(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to save run %s: %w", runID, err)
		}
	}

	log.WithFields(logrus.Fields{
		"identified": res.Summary.TotalIdentified,
		"screened":   res.Summary.TotalScreened,
		"excluded":   res.Summary.TotalExcluded,
		"included":   res.Summary.TotalIncluded,
		"avg_score":  fmt.Sprintf("%.1f", res.Quality.Average),
	}).Info("Completed mining run")
	return res, nil
}

// collect searches one database and parses its summaries. Only a query
// that cannot be built or a cancelled context is an error. A search that
// fails after retrieving some ids keeps those ids.
func (m *Miner) collect(ctx context.Context, log *logrus.Entry, db string, fields query.Fields, condition string) ([]domain.Record, int, error) {
	log = log.WithField("database", db)

	q, err := m.builder.Build(fields, targetFor(db))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build %s query: %w", db, err)
	}
	p, err := parser.ForDatabase(db, m.vocab, m.logger)
	if err != nil {
		return nil, 0, err
	}

	found, err := m.searcher.Search(ctx, db, q.Expression)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		if len(found.IDs) == 0 {
			log.WithError(err).Warn("Search failed, recording no records")
			return nil, 0, nil
		}
		log.WithError(err).WithField("retrieved", len(found.IDs)).
			Warn("Search incomplete, keeping retrieved records")
	}
	log.WithFields(logrus.Fields{"count": found.Count, "retrieved": len(found.IDs)}).Info("Search completed")
	if len(found.IDs) == 0 {
		return nil, 0, nil
	}

	docs, err := m.fetcher.Summaries(ctx, db, found.IDs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		log.WithError(err).Warn("Summary fetch failed")
	}

	var records []domain.Record
	for i, doc := range docs {
		recs, err := p.Parse(doc, condition)
		if err != nil {
			log.WithError(err).WithField("batch", i+1).Warn("Failed to parse summary batch")
			continue
		}
		records = append(records, recs...)
	}
	return records, len(found.IDs), nil
}

func normalize(req RunRequest) (RunRequest, error) {
	req.Organism = strings.TrimSpace(req.Organism)
	req.Condition = strings.TrimSpace(req.Condition)
	req.Label = strings.TrimSpace(req.Label)

	if req.Organism == "" {
		return req, domain.NewValidationError("organism", "organism is required", req.Organism)
	}
	if req.Condition == "" {
		return req, domain.NewValidationError("condition", "condition is required", req.Condition)
	}
	if req.MinQuality < 0 || req.MinQuality > 100 {
		return req, domain.NewValidationError("min_quality", "must be between 0 and 100", req.MinQuality)
	}
	if req.Label == "" {
		req.Label = req.Condition
	}
	if _, err := prisma.ParseFormat(req.FlowFormat); err != nil {
		return req, err
	}

	if len(req.Databases) == 0 {
		req.Databases = DefaultDatabases
	}
	dbs := make([]string, 0, len(req.Databases))
	seen := make(map[string]bool, len(req.Databases))
	for _, db := range req.Databases {
		db = strings.ToLower(strings.TrimSpace(db))
		if db == "geo" {
			db = parser.DBGEO
		}
		if targetFor(db) == "" {
			return req, domain.NewValidationError("databases", fmt.Sprintf("unsupported database %q", db), db)
		}
		if !seen[db] {
			seen[db] = true
			dbs = append(dbs, db)
		}
	}
	req.Databases = dbs
	return req, nil
}

// targetFor maps an NCBI database to the query syntax it accepts.
func targetFor(db string) query.Target {
	switch db {
	case parser.DBBioProject, parser.DBPubMed:
		return query.TargetNCBI
	case parser.DBSRA:
		return query.TargetSRA
	case parser.DBGEO:
		return query.TargetGEO
	}
	return ""
}

// dropDuplicates keeps the first record for every id.
func dropDuplicates(log *logrus.Entry, records []domain.Record) []domain.Record {
	seen := make(map[string]bool, len(records))
	out := records[:0:0]
	for _, r := range records {
		if seen[r.ID] {
			log.WithFields(logrus.Fields{"record_id": r.ID, "source": r.SourceDatabase}).Warn("Dropping duplicate record")
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

func split(records []quality.AssessedRecord, threshold float64) (included, excluded []quality.AssessedRecord) {
	for _, r := range records {
		if r.Score() < threshold {
			excluded = append(excluded, r)
		} else {
			included = append(included, r)
		}
	}
	return included, excluded
}

// formatThreshold renders whole numbers with one decimal ("50.0") and keeps
// any other value at full precision.
func formatThreshold(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func toRunRecord(res *RunResult) (*store.RunRecord, error) {
	flow, err := json.Marshal(res.Flow.Document())
	if err != nil {
		return nil, fmt.Errorf("failed to encode flow for run %s: %w", res.ID, err)
	}
	return &store.RunRecord{
		ID:              res.ID,
		Label:           res.Request.Label,
		Condition:       res.Request.Condition,
		Organism:        res.Request.Organism,
		Experiment:      res.Request.Experiment,
		CreatedAt:       res.StartedAt,
		MinQuality:      res.Request.MinQuality,
		QualityFilter:   res.Request.QualityFilter,
		TotalIdentified: res.Summary.TotalIdentified,
		TotalScreened:   res.Summary.TotalScreened,
		TotalExcluded:   res.Summary.TotalExcluded,
		TotalIncluded:   res.Summary.TotalIncluded,
		Flow:            flow,
		Entries:         res.Log.Entries(),
	}, nil
}
