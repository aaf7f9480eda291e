package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/prisma-miner/internal/metrics"
	"github.com/prisma-miner/internal/pipeline"
	"github.com/prisma-miner/internal/store"
	"github.com/prisma-miner/internal/vocabulary"
	"github.com/prisma-miner/pkg/ncbi"
)

type runOptions struct {
	organism        string
	condition       string
	experiment      string
	label           string
	noQualityFilter bool
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Mine NCBI databases and write PRISMA outputs",
		Long: `Run a complete mining pass: build database-specific queries, search and
fetch every configured database, score each record and write the processed
and excluded tables, the PRISMA flow, the quality report and the screening
log under the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.organism, "organism", "", "organism, e.g. \"Arabidopsis thaliana\"")
	f.StringVar(&opts.condition, "condition", "", "condition, e.g. \"salt stress\"")
	f.StringVar(&opts.experiment, "experiment", "", "experiment type, e.g. RNA-seq")
	f.StringVar(&opts.label, "label", "", "label used in output file names (default: condition)")
	f.String("email", "", "contact email sent to NCBI")
	f.String("api-key", "", "NCBI API key")
	f.String("output-dir", ".", "directory receiving the data/ tree")
	f.Float64("min-quality", 50, "minimum quality score for inclusion")
	f.BoolVar(&opts.noQualityFilter, "no-quality-filter", false, "include every screened record")
	f.StringSlice("databases", pipeline.DefaultDatabases, "databases to search")
	f.String("flow-format", "json", "PRISMA flow format (json, yaml)")
	_ = cmd.MarkFlagRequired("organism")
	_ = cmd.MarkFlagRequired("condition")

	return cmd
}

func (a *app) run(cmd *cobra.Command, opts *runOptions) error {
	if err := a.manager.Validate(true); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var collector *metrics.Collector
	if a.cfg.Metrics.Enabled {
		collector = metrics.New()
	}

	client, closeClient, err := a.ncbiClient(ctx, collector)
	if err != nil {
		return err
	}
	defer closeClient()

	runs, err := store.Open(a.cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	if runs != nil {
		defer runs.Close()
	}

	miner, err := a.newMiner(client, runs, collector)
	if err != nil {
		return err
	}

	p := a.cfg.Pipeline
	res, err := miner.Run(ctx, pipeline.RunRequest{
		Organism:      opts.organism,
		Condition:     opts.condition,
		Experiment:    opts.experiment,
		Label:         opts.label,
		OutputDir:     p.OutputDir,
		QualityFilter: p.QualityFilter && !opts.noQualityFilter,
		MinQuality:    p.MinQuality,
		Databases:     a.cfg.NCBI.Databases,
		FlowFormat:    p.FlowFormat,
	})
	if err != nil {
		return err
	}

	outputs, err := pipeline.WriteOutputs(res)
	if err != nil {
		return err
	}

	printRunSummary(cmd.OutOrStdout(), res, outputs)
	return nil
}

// ncbiClient wires the E-utilities client with rate limiting, breakers and
// the configured summary cache. The returned func releases the cache.
func (a *app) ncbiClient(ctx context.Context, collector *metrics.Collector) (*ncbi.ResilientClient, func(), error) {
	clientOpts := []ncbi.Option{ncbi.WithLogger(a.logger)}
	resilientOpts := []ncbi.ResilientOption{}
	if collector != nil {
		clientOpts = append(clientOpts, ncbi.WithObserver(collector.ObserveNCBIRequest))
		resilientOpts = append(resilientOpts, ncbi.WithStateObserver(collector.ObserveBreaker))
	}

	cache, err := ncbi.NewCache(ctx, a.cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create summary cache: %w", err)
	}
	resilientOpts = append(resilientOpts, ncbi.WithCache(cache))

	release := func() {
		if c, ok := cache.(io.Closer); ok {
			if err := c.Close(); err != nil {
				a.logger.WithError(err).Warn("Failed to close summary cache")
			}
		}
	}

	client := ncbi.NewClient(a.cfg.NCBI, clientOpts...)
	return ncbi.NewResilientClient(client, a.cfg.CircuitBreaker, resilientOpts...), release, nil
}

func (a *app) newMiner(client *ncbi.ResilientClient, runs store.RunStore, collector *metrics.Collector) (*pipeline.Miner, error) {
	opts := []pipeline.Option{pipeline.WithLogger(a.logger)}
	if runs != nil {
		opts = append(opts, pipeline.WithStore(runs))
	}
	if collector != nil {
		opts = append(opts, pipeline.WithMetrics(collector))
	}
	return pipeline.NewMiner(vocabulary.Default(), client, client, opts...)
}

func printRunSummary(w io.Writer, res *pipeline.RunResult, outputs pipeline.Outputs) {
	s := res.Summary
	fmt.Fprintf(w, "Run %s (%s)\n", res.ID, res.Request.Label)
	fmt.Fprintf(w, "  Identified: %s\n", humanize.Comma(int64(s.TotalIdentified)))
	fmt.Fprintf(w, "  Screened:   %s\n", humanize.Comma(int64(s.TotalScreened)))
	fmt.Fprintf(w, "  Excluded:   %s\n", humanize.Comma(int64(s.TotalExcluded)))
	fmt.Fprintf(w, "  Included:   %s\n", humanize.Comma(int64(s.TotalIncluded)))
	fmt.Fprintf(w, "  Mean quality: %.1f\n", res.Quality.Average)
	fmt.Fprintf(w, "  Elapsed: %s\n", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))

	fmt.Fprintln(w, "Outputs:")
	for _, key := range []string{
		pipeline.OutputIncluded,
		pipeline.OutputExcluded,
		pipeline.OutputFlow,
		pipeline.OutputFlowReport,
		pipeline.OutputQualityReport,
		pipeline.OutputScreeningLog,
		pipeline.OutputScreeningSummary,
	} {
		if path, ok := outputs[key]; ok {
			fmt.Fprintf(w, "  %-18s %s\n", key, path)
		}
	}
}
