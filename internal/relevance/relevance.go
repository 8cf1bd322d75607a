// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relevance scores how well a citation answers a specific question.
// Scoring is a short-circuit cascade: hard exclusions first, then a neutral
// score when no question is given, then the first matching Detector in a
// priority-ordered list that always ends with the generic term-overlap
// detector.
package relevance

import (
	"fmt"
	"math"
	"strings"

	"github.com/pdiddy/citation-engine/internal/taxonomy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Result is the relevance verdict for one citation.
type Result struct {
	Score    float64
	Category types.RelevanceCategory
	Warning  string
	Detector string
}

// DetectorExclusion is the Detector name reported for hard exclusions.
const DetectorExclusion = "hard_exclusion"

// DetectorNone is the Detector name reported when no question was supplied.
const DetectorNone = "none"

// Categorize buckets a score: >=80 excellent, >=60 good, >=40 moderate,
// >=20 poor, otherwise irrelevant.
func Categorize(score float64) types.RelevanceCategory {
	switch {
	case score >= 80:
		return types.RelevanceExcellent
	case score >= 60:
		return types.RelevanceGood
	case score >= 40:
		return types.RelevanceModerate
	case score >= 20:
		return types.RelevancePoor
	default:
		return types.RelevanceIrrelevant
	}
}

// newResult clamps score to [0, 100] and buckets it. The warning is kept
// only for categories that need one, and a default is supplied when they
// do and none was given.
func newResult(detector string, score float64, warning string) Result {
	score = math.Max(0, math.Min(100, score))
	r := Result{Score: score, Category: Categorize(score), Detector: detector}
	if r.Category.NeedsWarning() {
		if warning == "" {
			warning = fmt.Sprintf("Low relevance to the question (score %.0f)", score)
		}
		r.Warning = warning
	}
	return r
}

type exclusion struct {
	pattern *taxonomy.Matcher
	phrase  string
	reason  string
	scope   *taxonomy.Matcher
}

func (e exclusion) applies(q Query) bool {
	return e.scope.Len() == 0 || e.scope.Contains(q.Text)
}

// Scorer evaluates the relevance cascade. It is immutable and safe for
// concurrent use.
type Scorer struct {
	exclusions []exclusion
	detectors  []Detector
	stopwords  map[string]bool
}

// NewScorer builds the cascade from the taxonomy. Custom detectors are
// tried before the taxonomy's pair and topic detectors; the generic
// detector always comes last.
func NewScorer(tax *taxonomy.Taxonomy, custom ...Detector) *Scorer {
	if tax == nil {
		tax = taxonomy.Default()
	}
	s := &Scorer{stopwords: make(map[string]bool, len(tax.QueryStopwords))}

	for _, h := range tax.HardExclusions {
		s.exclusions = append(s.exclusions, exclusion{
			pattern: taxonomy.NewMatcher([]string{h.Pattern}),
			phrase:  strings.ToLower(strings.TrimSpace(h.Pattern)),
			reason:  h.Reason,
			scope:   taxonomy.NewMatcher(h.QueryScope),
		})
	}

	s.detectors = append(s.detectors, custom...)
	for _, p := range tax.PairDetectors {
		s.detectors = append(s.detectors, NewPairDetector(p))
	}
	for _, t := range tax.TopicDetectors {
		s.detectors = append(s.detectors, NewTopicDetector(t))
	}
	s.detectors = append(s.detectors, GenericDetector{})

	for _, w := range tax.QueryStopwords {
		s.stopwords[strings.ToLower(w)] = true
	}
	return s
}

// Detectors returns the cascade in priority order.
func (s *Scorer) Detectors() []Detector {
	return append([]Detector(nil), s.detectors...)
}

// Prepare lowercases the question and extracts its significant terms.
func (s *Scorer) Prepare(raw string) Query {
	q := Query{Raw: raw, Text: strings.ToLower(strings.TrimSpace(raw))}
	seen := make(map[string]bool)
	for _, tok := range tokenize(q.Text) {
		if len([]rune(tok)) <= 3 || s.stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		q.Terms = append(q.Terms, tok)
	}
	return q
}

// Select returns the detector that decides scores for q, or nil when q is
// empty.
func (s *Scorer) Select(q Query) Detector {
	if q.Empty() {
		return nil
	}
	for _, d := range s.detectors {
		if d.Matches(q) {
			return d
		}
	}
	return nil
}

// Score runs the cascade for one citation.
func (s *Scorer) Score(c types.Citation, query string) Result {
	q := s.Prepare(query)
	return s.ScoreQuery(c, q, s.Select(q))
}

// ScoreQuery runs the cascade with a prepared query and a selected detector.
func (s *Scorer) ScoreQuery(c types.Citation, q Query, d Detector) Result {
	doc := NewDocument(c)

	for _, e := range s.exclusions {
		if e.applies(q) && e.pattern.Contains(doc.Text) {
			return Result{
				Score:    0,
				Category: types.RelevanceIrrelevant,
				Warning:  fmt.Sprintf("Excluded: %s (matched %q)", e.reason, e.phrase),
				Detector: DetectorExclusion,
			}
		}
	}

	if q.Empty() || d == nil {
		return Result{Score: 50, Category: types.RelevanceUnknown, Detector: DetectorNone}
	}
	return d.Score(doc, q)
}

// Apply returns a copy of c with its relevance fields set.
func (s *Scorer) Apply(c types.Citation, q Query, d Detector) types.Citation {
	r := s.ScoreQuery(c, q, d)
	out := c.Clone()
	out.RelevanceScore = r.Score
	out.RelevanceCategory = r.Category
	out.RelevanceWarning = r.Warning
	out.RelevanceDetector = r.Detector
	return out
}

// ScoreAll returns copies of records with relevance fields set for query.
func (s *Scorer) ScoreAll(records []types.Citation, query string) []types.Citation {
	q := s.Prepare(query)
	d := s.Select(q)
	out := make([]types.Citation, len(records))
	for i, c := range records {
		out[i] = s.Apply(c, q, d)
	}
	return out
}

// NewDocument extracts the lowercased title and title+abstract of c.
func NewDocument(c types.Citation) Document {
	title := strings.ToLower(c.Title)
	return Document{Title: title, Text: title + " \n " + strings.ToLower(c.Abstract)}
}
