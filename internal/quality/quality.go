// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality scores the intrinsic evidence quality of a citation. The
// score depends only on the citation's own content and metadata, never on
// the user's question.
package quality

import (
	"strings"

	"github.com/pdiddy/citation-engine/internal/taxonomy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Assessment is the score of one citation and the signals that produced it.
type Assessment struct {
	Score   float64
	Signals types.QualitySignals
}

// Scorer applies additive weights per taxonomy category. Each category
// contributes at most once per citation.
type Scorer struct {
	tax     *taxonomy.Taxonomy
	weights types.QualityWeights
	refYear int
}

// NewScorer returns a Scorer. refYear anchors the recency bonus so that
// scores depend on a citation's Year and not on the wall clock.
func NewScorer(tax *taxonomy.Taxonomy, weights types.QualityWeights, refYear int) *Scorer {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &Scorer{tax: tax, weights: weights, refYear: refYear}
}

// Score computes the quality of c. The result is never negative.
func (s *Scorer) Score(c types.Citation) Assessment {
	text := c.Text()
	journal := strings.ToLower(c.Journal)
	w := s.weights

	var sig types.QualitySignals
	score := 0.0

	if sig.LandmarkTrials = s.tax.MatchLandmarks(text); len(sig.LandmarkTrials) > 0 {
		score += w.LandmarkTrial
	}

	if c.IsGuideline || c.StudyType == types.StudyGuideline || s.tax.GuidelineMatcher().Contains(text) {
		sig.Guideline = true
		score += w.Guideline
	}

	sig.RCT = c.StudyType == types.StudyRCT || s.tax.RCTMatcher().Contains(text)
	if highQualityType(c.StudyType) || s.tax.HighQualityMatcher().Contains(text) {
		sig.HighQuality = true
		score += w.HighQuality
	}

	if s.tax.VenueMatcher().Contains(journal) {
		sig.PriorityVenue = true
		score += w.PriorityVenue
	}

	if sig.TopicClusters = s.tax.MatchClusters(text); len(sig.TopicClusters) > 0 {
		score += w.TopicCluster
	}

	if sig.Interventions = s.tax.InterventionMatcher().Find(text); len(sig.Interventions) > 0 {
		score += w.Intervention
	}

	score += s.recency(c.Year)

	if s.tax.ComparativeMatcher().Contains(text) {
		sig.Comparative = true
		score += w.Comparative
	}

	if s.tax.LowQualityMatcher().Contains(text) {
		sig.LowQuality = true
		score -= w.LowQualityPenalty
	}
	if s.tax.OffTopicMatcher().Contains(text) {
		sig.OffTopic = true
		score -= w.OffTopicPenalty
	}

	if score < 0 {
		score = 0
	}
	return Assessment{Score: score, Signals: sig}
}

// ScoreAll returns copies of records with QualityScore and QualitySignals set.
func (s *Scorer) ScoreAll(records []types.Citation) []types.Citation {
	out := make([]types.Citation, len(records))
	for i, c := range records {
		out[i] = s.Apply(c)
	}
	return out
}

// Apply returns a copy of c with its quality fields set.
func (s *Scorer) Apply(c types.Citation) types.Citation {
	a := s.Score(c)
	out := c.Clone()
	out.QualityScore = a.Score
	out.QualitySignals = a.Signals
	return out
}

func (s *Scorer) recency(year int) float64 {
	if year <= 0 || s.refYear <= 0 {
		return 0
	}
	age := s.refYear - year
	switch {
	case age < 0:
		// Future-dated records (online-first, typos) count as current.
		return s.weights.RecentFiveYears
	case age <= 5:
		return s.weights.RecentFiveYears
	case age <= 10:
		return s.weights.RecentTenYears
	default:
		return 0
	}
}

func highQualityType(st types.StudyType) bool {
	return st == types.StudyRCT || st == types.StudyMetaAnalysis || st == types.StudySystematic
}
