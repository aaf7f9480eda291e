package prisma

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/prisma-miner/internal/domain"
)

// Decision is the outcome of screening one record.
type Decision string

const (
	DecisionIncluded Decision = "included"
	DecisionExcluded Decision = "excluded"
)

// Valid reports whether d is exactly "included" or "excluded".
func (d Decision) Valid() bool {
	return d == DecisionIncluded || d == DecisionExcluded
}

// ScreeningEntry is one immutable audit row.
type ScreeningEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	RecordID     string    `json:"record_id"`
	Database     string    `json:"database"`
	Title        string    `json:"title,omitempty"`
	Decision     Decision  `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
	QualityScore *float64  `json:"quality_score,omitempty"`
	Notes        string    `json:"notes,omitempty"`
}

// EntryOption sets an optional field of a ScreeningEntry.
type EntryOption func(*ScreeningEntry)

// WithTitle sets the record title.
func WithTitle(title string) EntryOption {
	return func(e *ScreeningEntry) { e.Title = title }
}

// WithReason sets the exclusion reason.
func WithReason(reason string) EntryOption {
	return func(e *ScreeningEntry) { e.Reason = reason }
}

// WithQualityScore attaches the record's quality score.
func WithQualityScore(score float64) EntryOption {
	return func(e *ScreeningEntry) { e.QualityScore = &score }
}

// WithNotes sets free-form notes.
func WithNotes(notes string) EntryOption {
	return func(e *ScreeningEntry) { e.Notes = notes }
}

// DatabaseCounts is the per-database screening breakdown.
type DatabaseCounts struct {
	Total    int `json:"total"`
	Included int `json:"included"`
	Excluded int `json:"excluded"`
}

// ScreeningStats is derived from the log entries.
type ScreeningStats struct {
	TotalScreened    int                                            `json:"total_screened"`
	Included         int                                            `json:"included"`
	Excluded         int                                            `json:"excluded"`
	InclusionRate    float64                                        `json:"inclusion_rate"`
	ExclusionReasons Tally                                          `json:"exclusion_reasons"`
	ByDatabase       *orderedmap.OrderedMap[string, DatabaseCounts] `json:"by_database"`
}

// ScreeningLog is an append-only trail of screening decisions for one run.
// It is not safe for concurrent use.
type ScreeningLog struct {
	condition string
	label     string
	created   time.Time
	entries   []ScreeningEntry
	now       func() time.Time
}

// NewScreeningLog starts an empty log. An empty label defaults to the
// condition.
func NewScreeningLog(condition, label string) *ScreeningLog {
	if strings.TrimSpace(label) == "" {
		label = condition
	}
	return &ScreeningLog{
		condition: condition,
		label:     label,
		created:   time.Now().UTC(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Condition returns the condition the log was started for.
func (l *ScreeningLog) Condition() string { return l.condition }

// Label returns the output label.
func (l *ScreeningLog) Label() string { return l.label }

// AddEntry validates and appends a decision. Excluded entries require a
// non-empty reason.
func (l *ScreeningLog) AddEntry(recordID, database string, decision Decision, opts ...EntryOption) error {
	e := ScreeningEntry{
		RecordID: recordID,
		Database: database,
		Decision: decision,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if err := validateEntry(e); err != nil {
		return err
	}
	e.Timestamp = l.now()
	l.entries = append(l.entries, e)
	return nil
}

func validateEntry(e ScreeningEntry) error {
	if !e.Decision.Valid() {
		return domain.NewValidationError("decision", "must be 'included' or 'excluded'", string(e.Decision))
	}
	if e.Decision == DecisionExcluded && !domain.Present(e.Reason) {
		return domain.NewValidationError("reason", "required for excluded records", e.Reason)
	}
	return nil
}

// Len returns the number of entries.
func (l *ScreeningLog) Len() int { return len(l.entries) }

// Entries returns a copy of the entries in append order.
func (l *ScreeningLog) Entries() []ScreeningEntry {
	out := make([]ScreeningEntry, len(l.entries))
	copy(out, l.entries)
	for i := range out {
		if out[i].QualityScore != nil {
			v := *out[i].QualityScore
			out[i].QualityScore = &v
		}
	}
	return out
}

// Statistics derives totals, the exclusion reason histogram and the
// per-database breakdown from the entries.
func (l *ScreeningLog) Statistics() ScreeningStats {
	s := ScreeningStats{
		TotalScreened:    len(l.entries),
		ExclusionReasons: NewTally(),
		ByDatabase:       orderedmap.New[string, DatabaseCounts](),
	}

	for _, e := range l.entries {
		counts, _ := s.ByDatabase.Get(e.Database)
		counts.Total++
		if e.Decision == DecisionIncluded {
			s.Included++
			counts.Included++
		} else {
			s.Excluded++
			counts.Excluded++
			if e.Reason != "" {
				s.ExclusionReasons.Add(e.Reason, 1)
			}
		}
		s.ByDatabase.Set(e.Database, counts)
	}

	if s.TotalScreened > 0 {
		s.InclusionRate = float64(s.Included) / float64(s.TotalScreened) * 100
	}
	return s
}

// SummaryText renders the statistics as a plain-text document. Reasons are
// listed by descending count.
func (l *ScreeningLog) SummaryText(generated time.Time) string {
	stats := l.Statistics()
	var b strings.Builder

	b.WriteString("Screening Log Summary\n")
	b.WriteString("====================\n\n")
	fmt.Fprintf(&b, "Condition: %s\n", l.condition)
	fmt.Fprintf(&b, "Generated: %s\n\n", generated.Format("2006-01-02 15:04:05"))

	b.WriteString("OVERALL STATISTICS\n")
	b.WriteString("------------------\n")
	fmt.Fprintf(&b, "Total screened: %s\n", humanize.Comma(int64(stats.TotalScreened)))
	fmt.Fprintf(&b, "Included: %s (%.1f%%)\n", humanize.Comma(int64(stats.Included)), stats.InclusionRate)
	fmt.Fprintf(&b, "Excluded: %s (%.1f%%)\n\n", humanize.Comma(int64(stats.Excluded)), exclusionShare(stats))

	if stats.ExclusionReasons.Len() > 0 {
		b.WriteString("EXCLUSION REASONS\n")
		b.WriteString("-----------------\n")
		reasons := stats.ExclusionReasons.Entries()
		sort.SliceStable(reasons, func(i, j int) bool { return reasons[i].Count > reasons[j].Count })
		for _, r := range reasons {
			fmt.Fprintf(&b, "  %s: %s (%.1f%%)\n", r.Key, humanize.Comma(int64(r.Count)), percent(r.Count, stats.Excluded))
		}
		b.WriteString("\n")
	}

	b.WriteString("BY DATABASE\n")
	b.WriteString("-----------\n")
	for pair := stats.ByDatabase.Oldest(); pair != nil; pair = pair.Next() {
		c := pair.Value
		rate := percent(c.Included, c.Total)
		fmt.Fprintf(&b, "%s:\n", pair.Key)
		fmt.Fprintf(&b, "  Total: %s\n", humanize.Comma(int64(c.Total)))
		fmt.Fprintf(&b, "  Included: %s (%.1f%%)\n", humanize.Comma(int64(c.Included)), rate)
		fmt.Fprintf(&b, "  Excluded: %s (%.1f%%)\n", humanize.Comma(int64(c.Excluded)), 100-rate)
	}

	return b.String()
}

func exclusionShare(s ScreeningStats) float64 {
	if s.TotalScreened == 0 {
		return 0
	}
	return 100 - s.InclusionRate
}
