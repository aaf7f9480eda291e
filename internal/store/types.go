// Package store persists completed mining runs together with their flow
// document and screening trail.
package store

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/prisma-miner/internal/prisma"
)

// RunRecord is one persisted pipeline run.
type RunRecord struct {
	ID              string                  `json:"id"`
	Label           string                  `json:"label"`
	Condition       string                  `json:"condition"`
	Organism        string                  `json:"organism"`
	Experiment      string                  `json:"experiment,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	MinQuality      float64                 `json:"min_quality"`
	QualityFilter   bool                    `json:"quality_filter"`
	TotalIdentified int                     `json:"total_identified"`
	TotalScreened   int                     `json:"total_screened"`
	TotalExcluded   int                     `json:"total_excluded"`
	TotalIncluded   int                     `json:"total_included"`
	Flow            json.RawMessage         `json:"flow,omitempty"`
	Entries         []prisma.ScreeningEntry `json:"entries,omitempty"`
}

// ListOptions pages and filters ListRuns. An empty Label matches every run.
type ListOptions struct {
	Limit  int
	Offset int
	Label  string
}

// RunStore defines run persistence operations.
type RunStore interface {
	// SaveRun inserts a run and its screening entries atomically.
	SaveRun(ctx context.Context, run *RunRecord) error

	// GetRun returns a run with its entries, or an error wrapping
	// domain.ErrNotFound.
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// ListRuns returns runs newest first, without entries.
	ListRuns(ctx context.Context, opts ListOptions) ([]*RunRecord, error)

	CountRuns(ctx context.Context) (int64, error)

	// DeleteRun removes a run and its entries.
	DeleteRun(ctx context.Context, id string) error

	// Entries returns a run's screening entries in append order.
	Entries(ctx context.Context, runID string) ([]prisma.ScreeningEntry, error)

	// ExportJSON writes every run, with entries, as one JSON document.
	ExportJSON(ctx context.Context, w io.Writer) error

	Close() error
}

// RunExport is the JSON export format.
type RunExport struct {
	Version    string       `json:"version"`
	ExportedAt time.Time    `json:"exported_at"`
	Count      int          `json:"count"`
	Runs       []*RunRecord `json:"runs"`
}

const (
	exportVersion  = "1.0"
	defaultLimit   = 50
	maxExportLimit = 1000000
)
