// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank filters, orders and caps scored citations and groups the
// result by source database for display.
package rank

import (
	"sort"

	"github.com/pdiddy/citation-engine/internal/taxonomy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// DefaultMaxCitations is the cap applied when Ranker.MaxCitations is not positive.
const DefaultMaxCitations = 12

// Output is the ranked, capped and grouped citation set.
type Output struct {
	Citations []types.Citation
	Groups    []types.SourceGroup
	Diversity types.Diversity

	// Filtered counts records removed as very low quality.
	Filtered int

	// Capped counts records that survived filtering but fell below the cap.
	Capped int
}

// Ranker orders scored citations. The very-low-quality filter is
// deliberately narrow: the goal is to keep evidence from every backend,
// not to prune aggressively.
type Ranker struct {
	tax          *taxonomy.Taxonomy
	MaxCitations int
}

// New returns a Ranker. A nil taxonomy uses taxonomy.Default().
func New(tax *taxonomy.Taxonomy, maxCitations int) *Ranker {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &Ranker{tax: tax, MaxCitations: maxCitations}
}

// VeryLowQuality reports whether the ranker drops c.
func (r *Ranker) VeryLowQuality(c types.Citation) bool {
	return c.StudyType == types.StudyFAERSReport || r.tax.VeryLowQualityMatcher().Contains(c.Text())
}

// Rank filters very-low-quality records, sorts by quality, relevance and
// year (all descending, input order breaking remaining ties), caps the
// result and groups it by source. Empty input yields an empty Output.
func (r *Ranker) Rank(records []types.Citation) Output {
	kept := make([]types.Citation, 0, len(records))
	out := Output{}
	for _, c := range records {
		if r.VeryLowQuality(c) {
			out.Filtered++
			continue
		}
		kept = append(kept, c.Clone())
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		return a.Year > b.Year
	})

	limit := r.MaxCitations
	if limit <= 0 {
		limit = DefaultMaxCitations
	}
	if len(kept) > limit {
		out.Capped = len(kept) - limit
		kept = kept[:limit]
	}

	out.Citations = kept
	out.Groups = Group(kept)
	out.Diversity = Diversity(kept, out.Groups)
	return out
}

// Group splits citations by canonical source. Groups appear in order of
// their best-ranked citation and keep rank order internally.
func Group(citations []types.Citation) []types.SourceGroup {
	groups := make([]types.SourceGroup, 0)
	index := make(map[types.Source]int)
	for _, c := range citations {
		i, ok := index[c.Source]
		if !ok {
			i = len(groups)
			index[c.Source] = i
			groups = append(groups, types.SourceGroup{Source: c.Source})
		}
		groups[i].Citations = append(groups[i].Citations, c)
	}
	return groups
}

// Diversity counts distinct canonical sources and every known backend
// that returned a ranked citation.
func Diversity(citations []types.Citation, groups []types.SourceGroup) types.Diversity {
	d := types.Diversity{
		DistinctSources: len(groups),
		PerSource:       make([]types.SourceCount, 0, len(groups)),
	}
	for _, g := range groups {
		d.PerSource = append(d.PerSource, types.SourceCount{Source: g.Source, Count: len(g.Citations)})
	}

	seen := make(map[types.Source]bool)
	for _, c := range citations {
		for _, s := range c.FoundIn {
			seen[s] = true
		}
		seen[c.Source] = true
	}
	delete(seen, types.SourceUnknown)
	d.DatabasesRepresented = len(seen)
	return d
}
