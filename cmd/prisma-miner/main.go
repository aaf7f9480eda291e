// Command prisma-miner mines NCBI repositories for datasets matching an
// organism, condition and experiment, scores their metadata and documents
// the selection as a PRISMA flow.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/prisma-miner/internal/api"
	"github.com/prisma-miner/internal/config"
	"github.com/prisma-miner/internal/domain"
)

// Set with -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

// flagKeys maps command-line flags onto configuration keys. A flag only
// overrides file and environment values when it is set explicitly.
var flagKeys = map[string]string{
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"email":       "ncbi.email",
	"api-key":     "ncbi.api_key",
	"output-dir":  "pipeline.output_dir",
	"min-quality": "pipeline.min_quality",
	"flow-format": "pipeline.flow_format",
	"databases":   "ncbi.databases",
	"host":        "server.host",
	"port":        "server.port",
}

// app carries state shared by every subcommand once the root pre-run hook
// has loaded configuration.
type app struct {
	configFile string
	manager    *config.Manager
	cfg        *domain.Config
	logger     *logrus.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "prisma-miner",
		Short: "Systematic dataset mining with PRISMA accounting",
		Long: `prisma-miner searches BioProject, SRA, GEO and PubMed for an organism,
condition and experiment, scores the metadata of every record and documents
identification, screening, exclusion and inclusion as a PRISMA flow.

Examples:
  prisma-miner run --organism "Arabidopsis thaliana" --condition "salt stress" --email you@lab.org
  prisma-miner query --organism "Oryza sativa" --condition drought --targets sra,gds
  prisma-miner report data/prisma_flows/salt_20260301_prisma_flow.json
  prisma-miner serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default ./prisma-miner.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "text", "log format (text, json)")

	root.AddCommand(
		newRunCmd(a),
		newQueryCmd(a),
		newValidateCmd(),
		newAssessCmd(a),
		newReportCmd(),
		newServeCmd(a),
		newMCPCmd(a),
		newMigrateCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads configuration with explicitly set flags taking precedence and
// builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	a.manager = config.NewManager(a.configFile)
	v := a.manager.Viper()

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
			bindErr = v.BindPFlag(key, f)
		}
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	if err := a.manager.Load(); err != nil {
		return err
	}
	a.cfg = a.manager.Config()
	a.logger = config.NewLogger(a.cfg.Logging, cmd.ErrOrStderr())
	if used := a.manager.ConfigFileUsed(); used != "" {
		a.logger.WithField("file", used).Debug("Loaded configuration")
	}
	api.Version = version
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prisma-miner %s (commit %s)\n", version, commit)
			fmt.Fprintf(cmd.OutOrStdout(), "Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
