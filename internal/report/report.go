// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package report summarizes a ranked citation set and renders bundles for
// display. It only templates numbers computed by earlier stages.
package report

import (
	"fmt"

	"github.com/pdiddy/citation-engine/internal/gaps"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// FallbackMessage is shown when no citation survives ranking.
const FallbackMessage = "Evidence based on established literature"

// Generate builds the structured summary of a ranked set.
func Generate(citations []types.Citation, div types.Diversity, analysis gaps.Analysis, th types.StrengthThresholds) types.Report {
	r := types.Report{
		TotalSources:      len(citations),
		DistinctSources:   div.DistinctSources,
		Topic:             analysis.TopicLabel,
		UnmetExpectations: analysis.Unmet(),
		MissingCategories: append([]string(nil), analysis.MissingCategories...),
		NarrowScope:       analysis.NarrowScope,
	}

	var total float64
	lowRelevance := 0
	for _, c := range citations {
		if c.IsGuideline || c.StudyType == types.StudyGuideline || c.QualitySignals.Guideline {
			r.Guidelines++
		}
		if len(c.QualitySignals.LandmarkTrials) > 0 {
			r.LandmarkTrials++
		}
		if c.StudyType == types.StudyRCT || c.QualitySignals.RCT {
			r.RCTs++
		}
		if c.QualitySignals.PriorityVenue {
			r.HighImpactVenues++
		}
		if c.RelevanceCategory.NeedsWarning() {
			lowRelevance++
		}
		total += c.QualityScore
	}
	if len(citations) > 0 {
		r.MeanQuality = total / float64(len(citations))
	}
	r.Strength = Strength(r.MeanQuality, th)

	if len(citations) == 0 {
		r.Fallback = FallbackMessage
	}
	if lowRelevance > 0 {
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d of %d citations have low relevance to the question", lowRelevance, len(citations)))
	}
	for _, g := range analysis.Gaps {
		if g.Kind == types.GapScope {
			r.Warnings = append(r.Warnings, "Narrow scope: "+g.Rationale)
		}
	}
	return r
}

// Strength labels a mean quality score. Zero thresholds use 60 and 30.
func Strength(mean float64, th types.StrengthThresholds) types.EvidenceStrength {
	strong, moderate := th.Strong, th.Moderate
	if strong <= 0 {
		strong = 60
	}
	if moderate <= 0 {
		moderate = 30
	}
	switch {
	case mean >= strong:
		return types.StrengthStrong
	case mean >= moderate:
		return types.StrengthModerate
	default:
		return types.StrengthLimited
	}
}
