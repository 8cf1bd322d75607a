// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Inspect or validate the keyword taxonomy",
	Long: `Taxonomy works with the keyword and phrase catalogs the engine scores
against: landmark trials, guideline bodies, evidence-quality phrases, topic
clusters, relevance detectors and expected-evidence topics. Without a file
argument the configured taxonomy (engine.taxonomy_path) or the built-in
default is used.`,
}

// --- check subcommand ---

var taxonomyCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a taxonomy file and print catalog sizes",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaxonomyCheck,
}

func runTaxonomyCheck(cmd *cobra.Command, args []string) error {
	path := taxonomyPath(args)
	tax, err := loadTaxonomy(path)
	if err != nil {
		return err
	}

	name := path
	if name == "" {
		name = "built-in default"
	}
	fmt.Printf("%s: OK (version %s)\n\n", name, tax.Version)

	rows := []struct {
		label string
		n     int
	}{
		{"Landmark trials", len(tax.LandmarkTrials)},
		{"Guideline organizations", len(tax.GuidelineOrgs)},
		{"Priority venues", len(tax.PriorityVenues)},
		{"Topic clusters", len(tax.TopicClusters)},
		{"Hard exclusions", len(tax.HardExclusions)},
		{"Pair detectors", len(tax.PairDetectors)},
		{"Topic detectors", len(tax.TopicDetectors)},
		{"Clinical topics", len(tax.ClinicalTopics)},
	}
	for _, r := range rows {
		fmt.Printf("  %-26s %d\n", r.label, r.n)
	}
	return nil
}

// --- show subcommand ---

var taxonomyShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Print the effective taxonomy as YAML, or one clinical topic",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTaxonomyShow,
}

func runTaxonomyShow(cmd *cobra.Command, args []string) error {
	tax, err := loadTaxonomy(taxonomyPath(args))
	if err != nil {
		return err
	}

	var v any = tax
	if topic, _ := cmd.Flags().GetString("topic"); topic != "" {
		t, ok := tax.Topic(topic)
		if !ok {
			return fmt.Errorf("unknown clinical topic %q (have: %s)", topic, topicNames(tax))
		}
		v = t
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling taxonomy: %w", err)
	}
	return enc.Close()
}

func taxonomyPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return viper.GetString("engine.taxonomy_path")
}

func topicNames(tax *taxonomy.Taxonomy) string {
	names := make([]string, len(tax.ClinicalTopics))
	for i, t := range tax.ClinicalTopics {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

func init() {
	taxonomyShowCmd.Flags().String("topic", "", "print only this clinical topic")

	taxonomyCmd.AddCommand(taxonomyCheckCmd)
	taxonomyCmd.AddCommand(taxonomyShowCmd)

	rootCmd.AddCommand(taxonomyCmd)
}
