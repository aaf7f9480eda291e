package prisma

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/prisma-miner/internal/domain"
)

// ScreeningColumns is the fixed column order of the tabular log.
var ScreeningColumns = []string{
	"timestamp", "record_id", "database", "title", "decision", "reason", "quality_score", "notes",
}

// WriteCSV writes a header row and one row per entry.
func (l *ScreeningLog) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ScreeningColumns); err != nil {
		return fmt.Errorf("write screening header: %w", err)
	}
	for _, e := range l.entries {
		score := ""
		if e.QualityScore != nil {
			score = strconv.FormatFloat(*e.QualityScore, 'f', -1, 64)
		}
		row := []string{
			e.Timestamp.Format(time.RFC3339Nano),
			e.RecordID,
			e.Database,
			e.Title,
			string(e.Decision),
			e.Reason,
			score,
			e.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write screening entry %s: %w", e.RecordID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadScreeningLog restores a log written by WriteCSV. Every row goes
// through the same validation as AddEntry.
func ReadScreeningLog(r io.Reader, condition, label string) (*ScreeningLog, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(ScreeningColumns)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read screening header: %w", err)
	}
	for i, col := range ScreeningColumns {
		if header[i] != col {
			return nil, domain.NewValidationError("header", fmt.Sprintf("column %d is %q, want %q", i, header[i], col), header)
		}
	}

	log := NewScreeningLog(condition, label)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read screening row %d: %w", line, err)
		}

		e := ScreeningEntry{
			RecordID: row[1],
			Database: row[2],
			Title:    row[3],
			Decision: Decision(row[4]),
			Reason:   row[5],
			Notes:    row[7],
		}
		if e.Timestamp, err = time.Parse(time.RFC3339Nano, row[0]); err != nil {
			return nil, fmt.Errorf("row %d timestamp: %w", line, err)
		}
		if row[6] != "" {
			v, err := strconv.ParseFloat(row[6], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d quality_score: %w", line, err)
			}
			e.QualityScore = &v
		}
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		log.entries = append(log.entries, e)
	}
	return log, nil
}

// ScreeningLogFileName returns "{label}_{YYYYMMDD_HHMMSS}_screening.log".
func ScreeningLogFileName(label string, at time.Time) string {
	return fmt.Sprintf("%s_%s_screening.log", label, at.Format("20060102_150405"))
}

// ScreeningSummaryFileName returns "{label}_{YYYYMMDD_HHMMSS}_screening_summary.txt".
func ScreeningSummaryFileName(label string, at time.Time) string {
	return fmt.Sprintf("%s_%s_screening_summary.txt", label, at.Format("20060102_150405"))
}
