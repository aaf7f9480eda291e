package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/prisma"
	"github.com/prisma-miner/internal/quality"
	"github.com/prisma-miner/internal/query"
	"github.com/prisma-miner/internal/vocabulary"
)

func newQueryCmd(a *app) *cobra.Command {
	var (
		fields  query.Fields
		targets []string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Build search queries without contacting any database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed := make([]query.Target, 0, len(targets))
			for _, name := range targets {
				t, err := query.ParseTarget(name)
				if err != nil {
					return err
				}
				parsed = append(parsed, t)
			}

			builder := query.NewBuilder(vocabulary.Default())
			queries, err := builder.BuildAll(fields, parsed...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]interface{}{
					"expansion": builder.Expand(fields),
					"queries":   queries,
				})
			}
			for _, q := range queries {
				fmt.Fprintf(out, "[%s]\n", q.Target)
				if q.Target.Structured() {
					for _, k := range slices.Sorted(maps.Keys(q.Params)) {
						fmt.Fprintf(out, "  %s = %s\n", k, q.Params[k])
					}
				} else {
					fmt.Fprintf(out, "  %s\n", q.Expression)
				}
			}
			a.logger.WithField("targets", len(queries)).Debug("Built queries")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&fields.Organism, "organism", "", "organism name")
	f.StringVar(&fields.Condition, "condition", "", "condition name")
	f.StringVar(&fields.Experiment, "experiment", "", "experiment type")
	f.StringSliceVar(&fields.ExtraTerms, "extra", nil, "additional terms ANDed into every query")
	f.StringSliceVar(&targets, "targets", []string{"ncbi"}, "query syntaxes to build")
	f.BoolVar(&asJSON, "json", false, "print the expansion and queries as JSON")
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <query>",
		Short: "Check a boolean query for syntax errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !query.Validate(args[0]) {
				return domain.NewValidationError("query", "query is blank, has unbalanced parentheses or an empty group", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}

func newAssessCmd(a *app) *cobra.Command {
	var (
		asJSON     bool
		minQuality float64
	)

	cmd := &cobra.Command{
		Use:   "assess <records.json>",
		Short: "Score metadata records from a JSON file",
		Long: `Score records read from a JSON file holding either an array of records or
an object with a "records" array. Use "-" to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			records, err := decodeRecords(data)
			if err != nil {
				return err
			}
			if minQuality < 0 || minQuality > 100 {
				return domain.NewValidationError("min_quality", "must be between 0 and 100", minQuality)
			}

			assessor, err := quality.NewAssessor(vocabulary.Default())
			if err != nil {
				return err
			}
			assessed := assessor.AssessCollection(records)
			report := assessor.Report(assessed)

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, map[string]interface{}{
					"records": assessed,
					"report":  report,
				})
			}

			passed := 0
			for _, r := range assessed {
				mark := "FAIL"
				if r.Score() >= minQuality {
					mark = "PASS"
					passed++
				}
				fmt.Fprintf(out, "%-4s %-14s %5.1f %s  %s\n", mark, r.ID, r.Score(), r.Quality.Grade, r.Title)
			}
			fmt.Fprintf(out, "\n%d of %d records at or above %.1f\n\n", passed, len(assessed), minQuality)
			fmt.Fprint(out, report.Text(time.Now()))
			a.logger.WithField("records", len(assessed)).Debug("Assessed records")
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print scored records and the report as JSON")
	cmd.Flags().Float64Var(&minQuality, "min-quality", 50, "threshold used for PASS/FAIL marks")
	return cmd
}

func newReportCmd() *cobra.Command {
	var logPath string

	cmd := &cobra.Command{
		Use:   "report <flow file>",
		Short: "Render a saved PRISMA flow as a text report",
		Long: `Render a PRISMA flow document written by "run" as the plain-text report.
The format is taken from the file extension. With --log, the summary of the
matching screening log is appended.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := prisma.ParseFormat(strings.TrimPrefix(filepath.Ext(args[0]), "."))
			if err != nil {
				return err
			}
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open flow: %w", err)
			}
			defer file.Close()

			doc, err := prisma.LoadFlow(file, format)
			if err != nil {
				return err
			}
			flow, err := prisma.NewFlowTrackerFromDocument(doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, flow.TextReport())

			if logPath == "" {
				return nil
			}
			lf, err := os.Open(logPath)
			if err != nil {
				return fmt.Errorf("failed to open screening log: %w", err)
			}
			defer lf.Close()

			log, err := prisma.ReadScreeningLog(lf, flow.Condition(), flow.Label())
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprint(out, log.SummaryText(flow.Timestamp()))
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "", "screening log CSV to summarize")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// decodeRecords accepts a bare array or {"records": [...]}.
func decodeRecords(data []byte) ([]domain.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, domain.NewValidationError("records", "input is empty", "")
	}

	var records []domain.Record
	if data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
	} else {
		var wrapped struct {
			Records []domain.Record `json:"records"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
		records = wrapped.Records
	}
	if len(records) == 0 {
		return nil, domain.NewValidationError("records", "no records to assess", "")
	}
	return records, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
