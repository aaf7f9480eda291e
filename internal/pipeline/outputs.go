package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prisma-miner/internal/config"
	"github.com/prisma-miner/internal/prisma"
	"github.com/prisma-miner/internal/quality"
)

// RecordColumns is the header of processed and excluded record files.
var RecordColumns = []string{
	"source_database", "condition_label", "id", "title", "description", "organism",
	"tissue", "tissue_confidence", "quality_score", "grade",
	"completeness", "title_quality", "description_quality", "tissue_quality", "organism_specificity",
	"extra",
}

// Outputs lists the files written for a run, keyed by kind.
type Outputs map[string]string

// Output kinds.
const (
	OutputIncluded         = "included"
	OutputExcluded         = "excluded"
	OutputFlow             = "prisma_flow"
	OutputFlowReport       = "prisma_report"
	OutputQualityReport    = "quality_report"
	OutputScreeningLog     = "screening_log"
	OutputScreeningSummary = "screening_summary"
)

// WriteOutputs writes the run's data files and PRISMA documentation under
// the request's output directory.
func WriteOutputs(res *RunResult) (Outputs, error) {
	if res == nil || res.Flow == nil || res.Log == nil {
		return nil, fmt.Errorf("run result is incomplete")
	}
	format, err := prisma.ParseFormat(res.Request.FlowFormat)
	if err != nil {
		return nil, err
	}

	paths := config.NewPaths(res.Request.OutputDir)
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to create output directories: %w", err)
	}

	label := res.Request.Label
	day := res.StartedAt.Format("20060102")
	out := Outputs{}

	write := func(kind, path string, fn func(io.Writer) error) error {
		if err := writeFile(path, fn); err != nil {
			return fmt.Errorf("failed to write %s: %w", kind, err)
		}
		out[kind] = path
		return nil
	}

	if err := write(OutputIncluded, filepath.Join(paths.ProcessedDir(), fmt.Sprintf("%s_%s_processed.csv", label, day)),
		func(w io.Writer) error { return WriteRecordsCSV(w, res.Included, "") }); err != nil {
		return nil, err
	}
	if len(res.Excluded) > 0 {
		reason := "Quality score below threshold (" + formatThreshold(res.Request.MinQuality) + ")"
		if err := write(OutputExcluded, filepath.Join(paths.ExcludedDir(), fmt.Sprintf("%s_%s_excluded.csv", label, day)),
			func(w io.Writer) error { return WriteRecordsCSV(w, res.Excluded, reason) }); err != nil {
			return nil, err
		}
	}

	flowName := prisma.FlowFileName(label, res.Flow.Timestamp(), format)
	if err := write(OutputFlow, filepath.Join(paths.FlowDir(), flowName),
		func(w io.Writer) error { return prisma.SaveFlow(w, res.Flow.Document(), format) }); err != nil {
		return nil, err
	}
	if err := write(OutputFlowReport, filepath.Join(paths.FlowDir(), prisma.FlowReportFileName(label)),
		writeString(res.Flow.TextReport())); err != nil {
		return nil, err
	}

	if err := write(OutputQualityReport, filepath.Join(paths.QualityDir(), fmt.Sprintf("quality_report_%s.txt", day)),
		writeString(res.Quality.Text(res.FinishedAt))); err != nil {
		return nil, err
	}

	if err := write(OutputScreeningLog, filepath.Join(paths.LogDir(), prisma.ScreeningLogFileName(label, res.StartedAt)),
		res.Log.WriteCSV); err != nil {
		return nil, err
	}
	if err := write(OutputScreeningSummary, filepath.Join(paths.LogDir(), prisma.ScreeningSummaryFileName(label, res.StartedAt)),
		writeString(res.Log.SummaryText(res.FinishedAt))); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteRecordsCSV writes assessed records under RecordColumns. A non-empty
// reason adds an exclusion_reason column.
func WriteRecordsCSV(w io.Writer, records []quality.AssessedRecord, reason string) error {
	cw := csv.NewWriter(w)
	header := RecordColumns
	if reason != "" {
		header = append(append([]string(nil), RecordColumns...), "exclusion_reason")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range records {
		extra := ""
		if len(r.Extra) > 0 {
			data, err := json.Marshal(r.Extra)
			if err != nil {
				return fmt.Errorf("encode extra for %s: %w", r.ID, err)
			}
			extra = string(data)
		}

		row := []string{
			r.SourceDatabase, r.ConditionLabel, r.ID, r.Title, r.Description, r.Organism,
			r.Tissue, string(r.TissueConfidence),
		}
		if q := r.Quality; q != nil {
			row = append(row,
				formatScore(q.TotalScore), string(q.Grade),
				formatScore(q.Scores.Completeness), formatScore(q.Scores.TitleQuality),
				formatScore(q.Scores.DescriptionQuality), formatScore(q.Scores.TissueQuality),
				formatScore(q.Scores.OrganismSpecificity))
		} else {
			row = append(row, "", "", "", "", "", "", "")
		}
		row = append(row, extra)
		if reason != "" {
			row = append(row, reason)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := fn(bw); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
