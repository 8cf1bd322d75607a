// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/citation-engine/internal/archive"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse archived ranking runs (list, show, search, export, delete)",
	Long: `History works with the local archive of ranking runs written by
rank --archive. Runs are stored in a SQLite database under archive.dir with a
full-text index over the titles and abstracts of their ranked citations.`,
}

// --- list subcommand ---

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs, newest first",
	RunE:  runHistoryList,
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %-16s  %-44s  %-9s  %5s  %4s\n",
		"Run", "Created", "Query", "Strength", "Cites", "Gaps")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 96))
	for _, r := range runs {
		query := r.Query
		if len(query) > 44 {
			query = query[:41] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-8s  %-16s  %-44s  %-9s  %5d  %4d\n",
			r.ID[:8], r.CreatedAt.Local().Format("2006-01-02 15:04"), query,
			r.Strength, r.CitationCount, r.GapCount)
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

// --- show subcommand ---

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print an archived bundle (a unique ID prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	e, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	fmt.Fprintf(os.Stderr, "Run %s, %s\n", e.ID, e.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	return writeBundle(e.Bundle, format, os.Stdout)
}

// --- search subcommand ---

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over archived citations",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHistorySearch,
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	hits, err := store.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-8s  %3s  %-56s  %-16s  %4s  %5s\n",
		"Run", "#", "Title", "Source", "Year", "Qual")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 102))
	for _, h := range hits {
		title := h.Title
		if len(title) > 56 {
			title = title[:53] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-8s  %3d  %-56s  %-16s  %4d  %5.0f\n",
			h.RunID[:8], h.Position, title, h.Source, h.Year, h.QualityScore)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
	return nil
}

// --- export subcommand ---

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every archived run to YAML or JSON",
	RunE:  runHistoryExport,
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		return store.Export(cmd.Context(), os.Stdout, format)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("creating %s: %w", out, err)
	}
	if err := store.Export(cmd.Context(), f, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "Exported to %s\n", out)
	return nil
}

// --- delete subcommand ---

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Remove an archived run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openArchive(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		e, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := store.Delete(cmd.Context(), e.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", e.ID)
		return nil
	},
}

// --- shared helpers ---

func openArchive(cmd *cobra.Command) (*archive.Store, error) {
	cfg := archiveConfig()
	if dir, _ := cmd.Flags().GetString("archive-dir"); dir != "" {
		cfg.Dir = dir
	}
	return archive.Open(cfg)
}

func init() {
	historyCmd.PersistentFlags().String("archive-dir", "", "archive base directory (overrides archive.dir)")

	historyListCmd.Flags().Int("limit", 0, "maximum runs (0 = use archive.max_results)")
	historyListCmd.Flags().Bool("json", false, "output as JSON")

	historyShowCmd.Flags().StringP("format", "f", "table", "output format: table, markdown, json, yaml or csl")

	historySearchCmd.Flags().Int("limit", 0, "maximum results (0 = use archive.max_results)")
	historySearchCmd.Flags().Bool("json", false, "output as JSON")

	historyExportCmd.Flags().String("format", archive.FormatYAML, "export format: yaml or json")
	historyExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historySearchCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	rootCmd.AddCommand(historyCmd)
}
