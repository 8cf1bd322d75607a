// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package relevance

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/pdiddy/citation-engine/internal/taxonomy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Query is a user question prepared for matching.
type Query struct {
	// Raw is the question as supplied.
	Raw string

	// Text is Raw lowercased.
	Text string

	// Terms are the distinct lowercased tokens longer than three characters,
	// in query order. Words in the taxonomy's query_stopwords list, empty by
	// default, are left out.
	Terms []string
}

// Empty reports whether no question was supplied.
func (q Query) Empty() bool { return strings.TrimSpace(q.Text) == "" }

// Document is the part of a citation that relevance looks at.
type Document struct {
	// Title is the lowercased title.
	Title string

	// Text is the lowercased title and abstract.
	Text string
}

// Detector is one relevance heuristic. Detectors are tried in priority
// order and the first whose Matches reports true decides the score.
type Detector interface {
	Name() string
	Matches(q Query) bool
	Score(d Document, q Query) Result
}

// overlapCap bounds the score of records that a topical detector found to
// mention neither side of the question.
const overlapCap = 15

// termFraction returns the share of query terms present as substrings of text.
func termFraction(text string, terms []string) (hits int, frac float64) {
	if len(terms) == 0 {
		return 0, 0
	}
	for _, t := range terms {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return hits, float64(hits) / float64(len(terms))
}

func overlapResult(name string, d Document, q Query, warning string) Result {
	_, frac := termFraction(d.Text, q.Terms)
	score := math.Min(overlapCap, math.Round(frac*100))
	return newResult(name, score, warning)
}

// PairDetector scores questions comparing two classes, such as two drug
// classes. Records mentioning both classes are the most relevant; broad
// background studies are demoted even when they mention one class.
type PairDetector struct {
	name       string
	a, b       concept
	background *taxonomy.Matcher
}

type concept struct {
	label string
	m     *taxonomy.Matcher
}

// NewPairDetector builds a PairDetector from its taxonomy entry.
func NewPairDetector(p taxonomy.PairDetector) *PairDetector {
	return &PairDetector{
		name:       p.Name,
		a:          concept{label: p.A.Label, m: taxonomy.NewMatcher(p.A.Terms)},
		b:          concept{label: p.B.Label, m: taxonomy.NewMatcher(p.B.Terms)},
		background: taxonomy.NewMatcher(p.Background),
	}
}

func (p *PairDetector) Name() string { return p.name }

// Matches reports whether the question mentions both classes.
func (p *PairDetector) Matches(q Query) bool {
	return p.a.m.Contains(q.Text) && p.b.m.Contains(q.Text)
}

func (p *PairDetector) Score(d Document, q Query) Result {
	hasA := p.a.m.Contains(d.Text)
	hasB := p.b.m.Contains(d.Text)

	switch {
	case hasA && hasB:
		return newResult(p.name, 90, "")
	case p.background.Contains(d.Text):
		return newResult(p.name, 25, fmt.Sprintf(
			"General study rather than class comparison of %s and %s", p.a.label, p.b.label))
	case hasA || hasB:
		return newResult(p.name, 60, "")
	default:
		return overlapResult(p.name, d, q, fmt.Sprintf(
			"Mentions neither %s nor %s", p.a.label, p.b.label))
	}
}

// TopicDetector scores questions about one intervention for one
// condition. Coverage of the condition alone does not count as evidence
// for the intervention.
type TopicDetector struct {
	name         string
	condition    concept
	intervention concept
}

// NewTopicDetector builds a TopicDetector from its taxonomy entry.
func NewTopicDetector(t taxonomy.TopicDetector) *TopicDetector {
	return &TopicDetector{
		name:         t.Name,
		condition:    concept{label: t.Condition.Label, m: taxonomy.NewMatcher(t.Condition.Terms)},
		intervention: concept{label: t.Intervention.Label, m: taxonomy.NewMatcher(t.Intervention.Terms)},
	}
}

func (t *TopicDetector) Name() string { return t.name }

// Matches reports whether the question names both the condition and the intervention.
func (t *TopicDetector) Matches(q Query) bool {
	return t.condition.m.Contains(q.Text) && t.intervention.m.Contains(q.Text)
}

func (t *TopicDetector) Score(d Document, q Query) Result {
	hasCond := t.condition.m.Contains(d.Text)
	hasInt := t.intervention.m.Contains(d.Text)

	switch {
	case hasCond && hasInt:
		if t.condition.m.Contains(d.Title) && t.intervention.m.Contains(d.Title) {
			return newResult(t.name, 95, "")
		}
		return newResult(t.name, 90, "")
	case hasInt:
		return newResult(t.name, 75, "")
	case hasCond:
		return newResult(t.name, 0, fmt.Sprintf(
			"Covers %s but not %s, which the question asks about", t.condition.label, t.intervention.label))
	default:
		return overlapResult(t.name, d, q, fmt.Sprintf(
			"Mentions neither %s nor %s", t.condition.label, t.intervention.label))
	}
}

// GenericDetector scores by the share of query terms found in the record.
// It matches every non-empty question and is always tried last.
type GenericDetector struct{}

func (GenericDetector) Name() string { return "generic" }

func (GenericDetector) Matches(q Query) bool { return !q.Empty() }

func (g GenericDetector) Score(d Document, q Query) Result {
	if len(q.Terms) == 0 {
		return Result{Score: 50, Category: types.RelevanceUnknown, Detector: g.Name()}
	}
	hits, frac := termFraction(d.Text, q.Terms)

	var score float64
	switch {
	case frac >= 0.7:
		score = 75
	case frac >= 0.5:
		score = 60
	case frac >= 0.3:
		score = 45
	case frac > 0:
		score = 25
	}
	return newResult(g.Name(), score, fmt.Sprintf("Matches %d of %d query terms", hits, len(q.Terms)))
}

// tokenize splits lowercased text into letter/digit runs, keeping inner
// hyphens so that terms like "dpp-4" survive.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.Trim(f, "-"); f != "" {
			out = append(out, f)
		}
	}
	return out
}
