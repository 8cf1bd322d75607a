// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// FormatTable writes ranked citations as a human-readable table to w,
// followed by the report summary.
func FormatTable(b types.Bundle, w io.Writer) {
	if len(b.RankedCitations) == 0 {
		fmt.Fprintln(w, b.Report.Fallback+".")
	} else {
		fmt.Fprintf(w, "%-4s  %-56s  %-20s  %-4s  %-7s  %-9s  %s\n",
			"Rank", "Title", "Authors", "Year", "Quality", "Relevance", "Source")
		fmt.Fprintln(w, strings.Repeat("-", 124))

		for i, c := range b.RankedCitations {
			year := ""
			if c.Year > 0 {
				year = fmt.Sprintf("%d", c.Year)
			}
			fmt.Fprintf(w, "%-4d  %-56s  %-20s  %-4s  %-7.1f  %-9s  %s\n",
				i+1, truncate(c.Title, 56), formatAuthors(c.Authors), year,
				c.QualityScore, fmt.Sprintf("%.0f %s", c.RelevanceScore, shortCategory(c.RelevanceCategory)), c.Source)
			if c.RelevanceWarning != "" {
				fmt.Fprintf(w, "      ! %s\n", c.RelevanceWarning)
			}
		}
	}

	r := b.Report
	fmt.Fprintf(w, "\n%d citations from %d databases", r.TotalSources, b.Diversity.DatabasesRepresented)
	if b.Stats.DuplicatesRemoved > 0 {
		fmt.Fprintf(w, " (%d duplicates removed)", b.Stats.DuplicatesRemoved)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Evidence strength: %s (mean quality %.1f)\n", r.Strength, r.MeanQuality)

	if len(b.Gaps) > 0 {
		fmt.Fprintf(w, "\nGaps (%s):\n", r.Topic)
		for _, g := range b.Gaps {
			fmt.Fprintf(w, "  - [%s] %s\n", g.Kind, g.MissingItem)
		}
	}
}

// FormatMarkdown writes the templated quality report as Markdown to w.
func FormatMarkdown(b types.Bundle, w io.Writer) {
	r := b.Report
	fmt.Fprintln(w, "## Evidence quality")
	fmt.Fprintln(w)

	if len(b.RankedCitations) == 0 {
		fmt.Fprintf(w, "%s.\n", r.Fallback)
	} else {
		fmt.Fprintf(w, "**Strength:** %s (mean quality %.1f across %d sources from %d databases)\n\n",
			r.Strength, r.MeanQuality, r.TotalSources, b.Diversity.DatabasesRepresented)
		fmt.Fprintf(w, "| Guidelines | Landmark trials | RCTs | High-impact venues | Total |\n")
		fmt.Fprintf(w, "|---|---|---|---|---|\n")
		fmt.Fprintf(w, "| %d | %d | %d | %d | %d |\n", r.Guidelines, r.LandmarkTrials, r.RCTs, r.HighImpactVenues, r.TotalSources)

		fmt.Fprintln(w)
		fmt.Fprintln(w, "### Sources")
		fmt.Fprintln(w)
		for _, g := range b.Groups {
			fmt.Fprintf(w, "**%s** (%d)\n\n", g.Source, len(g.Citations))
			for _, c := range g.Citations {
				fmt.Fprintf(w, "- %s", c.Title)
				if c.Journal != "" {
					fmt.Fprintf(w, ". *%s*", c.Journal)
				}
				if c.Year > 0 {
					fmt.Fprintf(w, " (%d)", c.Year)
				}
				if link := Link(c); link != "" {
					fmt.Fprintf(w, " %s", link)
				}
				fmt.Fprintln(w)
				if c.RelevanceWarning != "" {
					fmt.Fprintf(w, "  - _%s_\n", c.RelevanceWarning)
				}
			}
			fmt.Fprintln(w)
		}
	}

	if len(r.UnmetExpectations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "### Not cited (%s)\n\n", r.Topic)
		for _, item := range r.UnmetExpectations {
			fmt.Fprintf(w, "- %s\n", item)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintln(w)
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "> %s\n", warn)
		}
	}
}

// FormatJSON writes the bundle as indented JSON to w.
func FormatJSON(b types.Bundle, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// FormatYAML writes the bundle as YAML to w.
func FormatYAML(b types.Bundle, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(b)
}

// Link returns a resolvable URL for c, preferring PubMed, then DOI, then
// the raw URL. It returns "" for unresolvable citations.
func Link(c types.Citation) string {
	switch {
	case c.PMID != "":
		return "https://pubmed.ncbi.nlm.nih.gov/" + c.PMID + "/"
	case c.DOI != "":
		return "https://doi.org/" + c.DOI
	default:
		return c.URL
	}
}

func shortCategory(c types.RelevanceCategory) string {
	switch c {
	case types.RelevanceExcellent:
		return "exc"
	case types.RelevanceIrrelevant:
		return "irr"
	case types.RelevanceModerate:
		return "mod"
	case types.RelevanceUnknown:
		return "?"
	default:
		return string(c)
	}
}

func formatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0], 20)
	default:
		return truncate(authors[0], 14) + " et al."
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
