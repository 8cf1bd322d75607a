// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/citation-engine/internal/archive"
	"github.com/pdiddy/citation-engine/internal/batch"
	"github.com/pdiddy/citation-engine/internal/engine"
	"github.com/pdiddy/citation-engine/internal/metrics"
	"github.com/pdiddy/citation-engine/internal/report"
	"github.com/pdiddy/citation-engine/pkg/types"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank raw search records into a citation bundle",
	Long: `Rank reads a batch file of raw bibliographic records (YAML or JSON, or
stdin with --input -), normalizes and deduplicates them, scores evidence
quality and relevance to the question, and prints the ranked bundle with its
evidence report and gap analysis.

The batch file holds query, topic, context and records keys; --query,
--topic and --context override the file. A file holding only a list of
records is accepted too.

Use --output to save the bundle to a file that can be re-ranked later with
--from-bundle, and --archive to store the run in the local archive.`,
	RunE: runRank,
}

func runRank(cmd *cobra.Command, args []string) error {
	in, err := rankInput(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg := engineConfig()
	tax, err := loadTaxonomy(cfg.TaxonomyPath)
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithLogger(logger)}
	metricsFile, _ := cmd.Flags().GetString("metrics-file")
	var m *metrics.Metrics
	if metricsFile != "" {
		m = metrics.New()
		opts = append(opts, engine.WithMetrics(m))
	}

	eng := engine.New(tax, cfg, opts...)
	bundle, err := eng.Run(cmd.Context(), in)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	if err := writeBundle(bundle, format, os.Stdout); err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("output"); out != "" {
		bf := batch.NewBundleFile(in, eng.Config(), bundle, time.Now())
		if err := batch.WriteBundleFile(out, bf); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Bundle written to %s\n", out)
	}

	if save, _ := cmd.Flags().GetBool("archive"); save {
		id, err := archiveRun(cmd, bundle)
		if err != nil {
			return err
		}
		logger.Info("archived run", zap.String("run_id", id))
		fmt.Fprintf(os.Stderr, "Archived run %s\n", id)
	}

	if m != nil {
		if err := m.WriteFile(metricsFile); err != nil {
			return err
		}
	}
	return nil
}

// rankInput assembles the request from --input or --from-bundle and the
// override flags.
func rankInput(cmd *cobra.Command) (engine.Input, error) {
	inputPath, _ := cmd.Flags().GetString("input")
	bundlePath, _ := cmd.Flags().GetString("from-bundle")

	var (
		in  engine.Input
		err error
	)
	switch {
	case inputPath != "" && bundlePath != "":
		return in, fmt.Errorf("--input and --from-bundle are mutually exclusive")
	case bundlePath != "":
		bf, err := batch.ReadBundleFile(bundlePath)
		if err != nil {
			return in, err
		}
		in = bf.Input()
	case inputPath == "-":
		in, err = batch.ReadInput(cmd.InOrStdin())
		if err != nil {
			return in, err
		}
	case inputPath != "":
		in, err = batch.ReadInputFile(inputPath)
		if err != nil {
			return in, err
		}
	default:
		return in, fmt.Errorf("--input or --from-bundle is required")
	}

	if cmd.Flags().Changed("query") {
		in.Query, _ = cmd.Flags().GetString("query")
	}
	if cmd.Flags().Changed("topic") {
		in.TopicHint, _ = cmd.Flags().GetString("topic")
	}
	if cmd.Flags().Changed("context") {
		in.AnswerContext, _ = cmd.Flags().GetString("context")
	}
	return in, nil
}

// writeBundle renders b in the named format.
func writeBundle(b types.Bundle, format string, w io.Writer) error {
	switch format {
	case "table", "":
		report.FormatTable(b, w)
		return nil
	case "markdown", "md":
		report.FormatMarkdown(b, w)
		return nil
	case "json":
		return report.FormatJSON(b, w)
	case "yaml":
		return report.FormatYAML(b, w)
	case "csl":
		return report.FormatCSL(b.RankedCitations, w)
	default:
		return fmt.Errorf("unsupported format %q: use table, markdown, json, yaml or csl", format)
	}
}

func archiveRun(cmd *cobra.Command, b types.Bundle) (string, error) {
	store, err := archive.Open(archiveConfig())
	if err != nil {
		return "", err
	}
	defer store.Close()
	return store.Save(cmd.Context(), b)
}

// addRankFlags registers the rank flags on cmd.
func addRankFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("input", "i", "", "batch file of raw records (YAML or JSON), or - for stdin")
	cmd.Flags().String("from-bundle", "", "re-rank the citations of a saved bundle file")
	cmd.Flags().StringP("query", "q", "", "the user's question (overrides the batch file)")
	cmd.Flags().String("topic", "", "clinical topic for gap detection (overrides the batch file)")
	cmd.Flags().String("context", "", "answer text the citations support (overrides the batch file)")
	cmd.Flags().StringP("format", "f", "table", "output format: table, markdown, json, yaml or csl")
	cmd.Flags().StringP("output", "o", "", "also save the bundle to this file (.yaml or .json)")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics for the run to this file")
	cmd.Flags().Bool("archive", false, "store the run in the archive")

	cmd.Flags().Int("max-citations", 0, "maximum ranked citations (overrides engine.max_citations)")
	cmd.Flags().Int("workers", 0, "parallel scoring workers (overrides engine.workers)")
	cmd.Flags().String("taxonomy", "", "taxonomy YAML file (overrides engine.taxonomy_path)")
}

func init() {
	addRankFlags(rankCmd)
	_ = viper.BindPFlag("engine.max_citations", rankCmd.Flags().Lookup("max-citations"))
	_ = viper.BindPFlag("engine.workers", rankCmd.Flags().Lookup("workers"))
	_ = viper.BindPFlag("engine.taxonomy_path", rankCmd.Flags().Lookup("taxonomy"))

	rootCmd.AddCommand(rankCmd)
}
