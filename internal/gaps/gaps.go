// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package gaps compares a cited set against the expected-evidence catalog
// of the clinical topic it addresses. It is advisory: it never removes or
// reorders citations.
package gaps

import (
	"fmt"
	"strings"

	"github.com/pdiddy/citation-engine/internal/taxonomy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// DefaultNarrowScopeThreshold is the number of missing intervention
// categories that triggers the narrow-scope warning when neither the topic
// nor the caller sets one.
const DefaultNarrowScopeThreshold = 4

// Analysis is the result of gap detection.
type Analysis struct {
	// Topic is the name of the detected clinical topic, empty when none applies.
	Topic string

	// TopicLabel is the display label of Topic.
	TopicLabel string

	// Gaps lists missing expected items, missing categories and the
	// narrow-scope warning, in that order.
	Gaps []types.Gap

	// MissingCategories holds the labels of uncovered intervention categories.
	MissingCategories []string

	// NarrowScope is set when enough categories are missing.
	NarrowScope bool
}

// Unmet returns the expected items (trials, guidelines, interventions)
// reported missing.
func (a Analysis) Unmet() []string {
	var out []string
	for _, g := range a.Gaps {
		switch g.Kind {
		case types.GapTrial, types.GapGuideline, types.GapIntervention:
			out = append(out, g.MissingItem)
		}
	}
	return out
}

// Detector finds gaps using the taxonomy's clinical topics.
type Detector struct {
	tax       *taxonomy.Taxonomy
	threshold int
}

// New returns a Detector. threshold <= 0 uses DefaultNarrowScopeThreshold.
// A topic that sets narrow_scope_threshold in a custom taxonomy overrides
// threshold for that topic; the built-in topics leave it unset.
func New(tax *taxonomy.Taxonomy, threshold int) *Detector {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if threshold <= 0 {
		threshold = DefaultNarrowScopeThreshold
	}
	return &Detector{tax: tax, threshold: threshold}
}

// DetectTopic picks the clinical topic. A hint naming a topic (by name or
// label) wins; otherwise the first topic with a trigger phrase in the
// answer context, then in the record text, applies.
func (d *Detector) DetectTopic(records []types.Citation, answerContext, hint string) (taxonomy.ClinicalTopic, bool) {
	if hint = strings.TrimSpace(hint); hint != "" {
		for _, ct := range d.tax.ClinicalTopics {
			if strings.EqualFold(ct.Name, hint) || strings.EqualFold(ct.Label, hint) {
				return ct, true
			}
		}
	}

	ctx := strings.ToLower(answerContext)
	for _, ct := range d.tax.ClinicalTopics {
		if d.tax.TriggerMatcher(ct.Name).Contains(ctx) {
			return ct, true
		}
	}

	text := recordText(records)
	for _, ct := range d.tax.ClinicalTopics {
		if d.tax.TriggerMatcher(ct.Name).Contains(text) {
			return ct, true
		}
	}
	return taxonomy.ClinicalTopic{}, false
}

// Detect reports expected evidence missing from records. answerContext is
// the surrounding answer text (and question) used for topic detection and
// category coverage. When no topic applies the analysis is empty.
func (d *Detector) Detect(records []types.Citation, answerContext, hint string) Analysis {
	topic, ok := d.DetectTopic(records, answerContext, hint)
	if !ok {
		return Analysis{Gaps: []types.Gap{}}
	}

	a := Analysis{Topic: topic.Name, TopicLabel: topic.Label, Gaps: []types.Gap{}}
	cited := recordText(records)

	for i, item := range topic.Expected {
		if d.tax.ExpectedMatcher(topic.Name, i).Contains(cited) {
			continue
		}
		a.Gaps = append(a.Gaps, types.Gap{
			MissingItem: item.Item,
			Kind:        types.GapKind(item.Kind),
			Rationale:   item.Rationale,
		})
	}

	covered := strings.ToLower(answerContext) + " \n " + cited
	for _, cat := range topic.Categories {
		if d.tax.Cluster(cat).Contains(covered) {
			continue
		}
		label := d.tax.ClusterLabel(cat)
		a.MissingCategories = append(a.MissingCategories, label)
		a.Gaps = append(a.Gaps, types.Gap{
			MissingItem: label,
			Kind:        types.GapCategory,
			Rationale:   fmt.Sprintf("No %s evidence is discussed or cited for %s.", strings.ToLower(label), strings.ToLower(topic.Label)),
		})
	}

	threshold := d.threshold
	if topic.NarrowScopeThreshold > 0 {
		threshold = topic.NarrowScopeThreshold
	}
	if len(topic.Categories) > 0 && len(a.MissingCategories) >= threshold {
		a.NarrowScope = true
		a.Gaps = append(a.Gaps, types.Gap{
			MissingItem: "Narrow scope",
			Kind:        types.GapScope,
			Rationale: fmt.Sprintf("%d of %d intervention categories are not covered: %s.",
				len(a.MissingCategories), len(topic.Categories), strings.Join(a.MissingCategories, ", ")),
		})
	}
	return a
}

func recordText(records []types.Citation) string {
	var b strings.Builder
	for _, c := range records {
		b.WriteString(c.Text())
		b.WriteString(" \n ")
	}
	return b.String()
}
