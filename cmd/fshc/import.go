package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	fsh "github.com/gofhir/fsh"
	"github.com/gofhir/fsh/pkg/config"
	"github.com/gofhir/fsh/pkg/importer"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/legality"
	"github.com/gofhir/fsh/pkg/logger"
)

func newImportCmd() *cobra.Command {
	var (
		format      string
		strict      bool
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "import <file-or-directory>...",
		Short: "Import FSH files and report diagnostics",
		Long: `Import reads the given FSH files, and every .fsh file below the given
directories, as one batch. It exits with status 1 when any error is
reported, or any warning when --strict is set.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("format") {
				cfg.Output = format
			}
			if cmd.Flags().Changed("strict") {
				cfg.Strict = strict
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ok, err := runImport(cmd.Context(), cfg, args, showMetrics, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !ok {
				return errFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", config.OutputText, "output format: text or json")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on warnings as well as errors")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "include import metrics in the output")
	return cmd
}

// runImport imports paths as one batch, checks rule legality on the
// result and writes the report to w. It returns false when the batch
// failed under cfg.
func runImport(ctx context.Context, cfg *config.Config, paths []string, showMetrics bool, w io.Writer) (bool, error) {
	log := logger.Default().With("fshc")
	start := time.Now()

	files, loadErr := importer.LoadFiles(paths)
	if len(files) == 0 {
		if loadErr != nil {
			return false, loadErr
		}
		return false, fmt.Errorf("no %s files found in %v", importer.FileExtension, paths)
	}
	log.Info("importing %d files for %s", len(files), cfg.FHIRVersion)

	metrics := fsh.NewMetrics()
	opts := append(cfg.ImporterOptions(),
		importer.WithMetrics(metrics),
		importer.WithLogger(logger.Default().With("importer")),
	)
	res, err := importer.New(opts...).Import(ctx, files)
	if err != nil {
		return false, err
	}

	for _, err := range multierr.Errors(loadErr) {
		res.Issues.AddError(issue.CodeNotFound, err.Error(), nil)
	}
	for _, doc := range res.Documents {
		if n := legality.CheckDocument(doc, res.Issues); n > 0 {
			log.Debug("%s: %d rules not allowed", doc.File, n)
		}
	}

	report := newReport(cfg, res, len(files), time.Since(start))
	if showMetrics {
		snap := metrics.Snapshot()
		report.Metrics = &snap
	}

	switch cfg.Output {
	case config.OutputJSON:
		err = printJSONReport(w, report)
	default:
		err = printTextReport(w, report, res.Issues)
	}
	if err != nil {
		return false, fmt.Errorf("write report: %w", err)
	}

	if res.Issues.HasErrors() {
		return false, nil
	}
	return !cfg.Strict || res.Issues.WarningCount() == 0, nil
}
