// Package prisma tracks PRISMA record accounting for a mining run: the
// identification/screening/exclusion/inclusion flow counters and the
// per-record screening log.
package prisma

import (
	"fmt"
	"strings"
	"time"

	"github.com/prisma-miner/internal/domain"
)

// FlowMetadata identifies the run a flow document belongs to.
type FlowMetadata struct {
	Condition string    `json:"condition" yaml:"condition"`
	Label     string    `json:"label" yaml:"label"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Identification holds per-database identified counts.
type Identification struct {
	Databases Tally `json:"databases" yaml:"databases"`
	Total     int   `json:"total" yaml:"total"`
}

// Screening holds screened and excluded counts with exclusion reasons.
type Screening struct {
	RecordsScreened  int   `json:"records_screened" yaml:"records_screened"`
	RecordsExcluded  int   `json:"records_excluded" yaml:"records_excluded"`
	ExclusionReasons Tally `json:"exclusion_reasons" yaml:"exclusion_reasons"`
}

// Included holds the final dataset size and its per-source breakdown.
type Included struct {
	Total    int   `json:"total" yaml:"total"`
	BySource Tally `json:"by_source" yaml:"by_source"`
}

// FlowDocument is the persisted form of a FlowTracker.
type FlowDocument struct {
	Metadata       FlowMetadata   `json:"metadata" yaml:"metadata"`
	Identification Identification `json:"identification" yaml:"identification"`
	Screening      Screening      `json:"screening" yaml:"screening"`
	Included       Included       `json:"included" yaml:"included"`
}

// FlowSummary is the derived headline view of a flow.
type FlowSummary struct {
	TotalIdentified int     `json:"total_identified"`
	TotalScreened   int     `json:"total_screened"`
	TotalExcluded   int     `json:"total_excluded"`
	TotalIncluded   int     `json:"total_included"`
	ExclusionRate   float64 `json:"exclusion_rate"`
}

// FlowTracker aggregates the four PRISMA stage counters for one run. The
// identified and excluded totals are always derived from their tallies.
// A FlowTracker is owned by a single caller and is not safe for concurrent
// use.
type FlowTracker struct {
	meta      FlowMetadata
	databases Tally
	screened  int
	reasons   Tally
	included  int
	bySource  Tally
}

// NewFlowTracker starts a flow for condition. An empty label defaults to
// the condition.
func NewFlowTracker(condition, label string) *FlowTracker {
	if strings.TrimSpace(label) == "" {
		label = condition
	}
	return &FlowTracker{
		meta: FlowMetadata{
			Condition: condition,
			Label:     label,
			Timestamp: time.Now().UTC(),
		},
		databases: NewTally(),
		reasons:   NewTally(),
		bySource:  NewTally(),
	}
}

// NewFlowTrackerFromDocument restores a tracker from a persisted document.
// Stored totals must agree with the tallies they summarize.
func NewFlowTrackerFromDocument(doc FlowDocument) (*FlowTracker, error) {
	if got := doc.Identification.Databases.Sum(); got != doc.Identification.Total {
		return nil, domain.NewValidationError("identification.total",
			fmt.Sprintf("total %d does not match database sum %d", doc.Identification.Total, got), doc.Identification.Total)
	}
	if got := doc.Screening.ExclusionReasons.Sum(); got != doc.Screening.RecordsExcluded {
		return nil, domain.NewValidationError("screening.records_excluded",
			fmt.Sprintf("excluded %d does not match reason sum %d", doc.Screening.RecordsExcluded, got), doc.Screening.RecordsExcluded)
	}
	label := doc.Metadata.Label
	if strings.TrimSpace(label) == "" {
		label = doc.Metadata.Condition
	}
	return &FlowTracker{
		meta: FlowMetadata{
			Condition: doc.Metadata.Condition,
			Label:     label,
			Timestamp: doc.Metadata.Timestamp,
		},
		databases: doc.Identification.Databases.Clone(),
		screened:  doc.Screening.RecordsScreened,
		reasons:   doc.Screening.ExclusionReasons.Clone(),
		included:  doc.Included.Total,
		bySource:  doc.Included.BySource.Clone(),
	}, nil
}

// Condition returns the condition the flow was started for.
func (f *FlowTracker) Condition() string { return f.meta.Condition }

// Label returns the output label.
func (f *FlowTracker) Label() string { return f.meta.Label }

// Timestamp returns the flow creation time.
func (f *FlowTracker) Timestamp() time.Time { return f.meta.Timestamp }

// RecordIdentified sets the identified count for database, overwriting any
// earlier value.
func (f *FlowTracker) RecordIdentified(database string, count int) error {
	if err := checkName("database", database); err != nil {
		return err
	}
	if err := checkCount(count); err != nil {
		return err
	}
	f.databases.Set(database, count)
	return nil
}

// RecordScreened sets the screened total.
func (f *FlowTracker) RecordScreened(count int) error {
	if err := checkCount(count); err != nil {
		return err
	}
	f.screened = count
	return nil
}

// RecordExcluded adds count records excluded for reason.
func (f *FlowTracker) RecordExcluded(count int, reason string) error {
	if err := checkName("reason", reason); err != nil {
		return err
	}
	if err := checkCount(count); err != nil {
		return err
	}
	f.reasons.Add(reason, count)
	return nil
}

// SetIncluded sets the included total. A non-empty bySource replaces the
// per-source breakdown.
func (f *FlowTracker) SetIncluded(total int, bySource Tally) error {
	if err := checkCount(total); err != nil {
		return err
	}
	f.included = total
	if bySource.Len() > 0 {
		f.bySource = bySource.Clone()
	}
	return nil
}

// IdentifiedTotal returns the sum of the latest count per database.
func (f *FlowTracker) IdentifiedTotal() int { return f.databases.Sum() }

// ExcludedTotal returns the sum of all exclusion reason counts.
func (f *FlowTracker) ExcludedTotal() int { return f.reasons.Sum() }

// Databases returns a copy of the per-database identified counts.
func (f *FlowTracker) Databases() Tally { return f.databases.Clone() }

// ExclusionReasons returns a copy of the reason counts.
func (f *FlowTracker) ExclusionReasons() Tally { return f.reasons.Clone() }

// Summary derives the headline totals and exclusion rate.
func (f *FlowTracker) Summary() FlowSummary {
	s := FlowSummary{
		TotalIdentified: f.IdentifiedTotal(),
		TotalScreened:   f.screened,
		TotalExcluded:   f.ExcludedTotal(),
		TotalIncluded:   f.included,
	}
	if s.TotalScreened > 0 {
		s.ExclusionRate = float64(s.TotalExcluded) / float64(s.TotalScreened) * 100
	}
	return s
}

// Document returns an independent snapshot suitable for persistence.
func (f *FlowTracker) Document() FlowDocument {
	return FlowDocument{
		Metadata: f.meta,
		Identification: Identification{
			Databases: f.databases.Clone(),
			Total:     f.IdentifiedTotal(),
		},
		Screening: Screening{
			RecordsScreened:  f.screened,
			RecordsExcluded:  f.ExcludedTotal(),
			ExclusionReasons: f.reasons.Clone(),
		},
		Included: Included{
			Total:    f.included,
			BySource: f.bySource.Clone(),
		},
	}
}

func checkName(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return domain.NewValidationError(field, "must not be empty", v)
	}
	return nil
}

func checkCount(n int) error {
	if n < 0 {
		return domain.NewValidationError("count", "must not be negative", n)
	}
	return nil
}
