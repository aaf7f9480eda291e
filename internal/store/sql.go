package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/prisma"
)

// sqlStore holds the queries shared by both backends. Queries are written
// with ? placeholders and rebound for dialects that number them.
type sqlStore struct {
	db       *sql.DB
	numbered bool
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const runColumns = `id, label, condition_label, organism, experiment, created_at,
	min_quality, quality_filter, total_identified, total_screened,
	total_excluded, total_included, flow_document`

func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scanRun(sc scanner) (*RunRecord, error) {
	run := &RunRecord{}
	var flow []byte
	err := sc.Scan(
		&run.ID, &run.Label, &run.Condition, &run.Organism, &run.Experiment, &run.CreatedAt,
		&run.MinQuality, &run.QualityFilter, &run.TotalIdentified, &run.TotalScreened,
		&run.TotalExcluded, &run.TotalIncluded, &flow,
	)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = run.CreatedAt.UTC()
	if len(flow) > 0 {
		run.Flow = json.RawMessage(flow)
	}
	return run, nil
}

func validateRun(run *RunRecord) error {
	if run == nil {
		return domain.NewValidationError("run", "is required", nil)
	}
	if !domain.Present(run.ID) {
		return domain.NewValidationError("id", "is required", run.ID)
	}
	if len(run.Flow) > 0 && !json.Valid(run.Flow) {
		return domain.NewValidationError("flow", "must be valid JSON", string(run.Flow))
	}
	return nil
}

func (s *sqlStore) SaveRun(ctx context.Context, run *RunRecord) error {
	if err := validateRun(run); err != nil {
		return err
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	var flow interface{}
	if len(run.Flow) > 0 {
		flow = string(run.Flow)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.rebind(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		run.ID, run.Label, run.Condition, run.Organism, run.Experiment, run.CreatedAt,
		run.MinQuality, run.QualityFilter, run.TotalIdentified, run.TotalScreened,
		run.TotalExcluded, run.TotalIncluded, flow,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, e := range run.Entries {
		var score interface{}
		if e.QualityScore != nil {
			score = *e.QualityScore
		}
		_, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO screening_entries (
				run_id, seq, screened_at, record_id, source_database,
				title, decision, reason, quality_score, notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`),
			run.ID, i, e.Timestamp.UTC(), e.RecordID, e.Database,
			e.Title, string(e.Decision), e.Reason, score, e.Notes,
		)
		if err != nil {
			return fmt.Errorf("failed to insert screening entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func (s *sqlStore) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM runs WHERE id = ?`), id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.Entries, err = s.Entries(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *sqlStore) ListRuns(ctx context.Context, opts ListOptions) ([]*RunRecord, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	args := []interface{}{}
	if opts.Label != "" {
		query += ` WHERE label = ?`
		args = append(args, opts.Label)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var result []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

func (s *sqlStore) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

func (s *sqlStore) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM screening_entries WHERE run_id = ?"), id); err != nil {
		return fmt.Errorf("failed to delete screening entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, s.rebind("DELETE FROM runs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", id, domain.ErrNotFound)
	}
	return tx.Commit()
}

func (s *sqlStore) Entries(ctx context.Context, runID string) ([]prisma.ScreeningEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT screened_at, record_id, source_database, title, decision, reason, quality_score, notes
		FROM screening_entries
		WHERE run_id = ?
		ORDER BY seq
	`), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query screening entries: %w", err)
	}
	defer rows.Close()

	var entries []prisma.ScreeningEntry
	for rows.Next() {
		var (
			e        prisma.ScreeningEntry
			decision string
			score    sql.NullFloat64
		)
		if err := rows.Scan(&e.Timestamp, &e.RecordID, &e.Database, &e.Title, &decision, &e.Reason, &score, &e.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan screening entry: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		e.Decision = prisma.Decision(decision)
		if score.Valid {
			v := score.Float64
			e.QualityScore = &v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *sqlStore) ExportJSON(ctx context.Context, w io.Writer) error {
	runs, err := s.ListRuns(ctx, ListOptions{Limit: maxExportLimit})
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if runs == nil {
		runs = []*RunRecord{}
	}
	for _, run := range runs {
		if run.Entries, err = s.Entries(ctx, run.ID); err != nil {
			return err
		}
	}

	export := &RunExport{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(runs),
		Runs:       runs,
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
