// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package taxonomy loads the static keyword and phrase catalogs consulted by
// every scoring stage: landmark trials, guideline bodies, evidence-quality
// phrases, topic clusters, relevance detectors and the expected-evidence
// catalogs used for gap detection.
//
// A Taxonomy is immutable once loaded and safe for concurrent use.
package taxonomy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/pkg/types"
)

//go:embed default.yaml
var defaultYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid taxonomy")

// LandmarkTrial is a named trial worth the landmark bonus when matched.
type LandmarkTrial struct {
	Name string `yaml:"name"`

	// Patterns are the phrases that identify the trial. When empty, Name is used.
	Patterns    []string `yaml:"patterns,omitempty"`
	Topic       string   `yaml:"topic,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

// GuidelineOrg is an issuing body identified by its short code.
type GuidelineOrg struct {
	Code     string   `yaml:"code"`
	Patterns []string `yaml:"patterns"`
}

// TopicCluster groups keywords for one clinical domain.
type TopicCluster struct {
	Name     string   `yaml:"name"`
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// HardExclusion is a pattern known to be retrieved spuriously. When
// QueryScope is non-empty the exclusion only applies to queries that
// contain one of its terms.
type HardExclusion struct {
	Pattern    string   `yaml:"pattern"`
	Reason     string   `yaml:"reason"`
	QueryScope []string `yaml:"query_scope,omitempty"`
}

// Concept is a labeled set of synonymous terms.
type Concept struct {
	Label string   `yaml:"label"`
	Terms []string `yaml:"terms"`
}

// PairDetector describes a comparison between two intervention classes.
// Background lists phrases of broad studies that are not specific to the
// comparison.
type PairDetector struct {
	Name       string   `yaml:"name"`
	A          Concept  `yaml:"a"`
	B          Concept  `yaml:"b"`
	Background []string `yaml:"background,omitempty"`
}

// TopicDetector describes a condition treated by a specific intervention.
type TopicDetector struct {
	Name         string  `yaml:"name"`
	Condition    Concept `yaml:"condition"`
	Intervention Concept `yaml:"intervention"`
}

// StudyTypeHint maps phrases to a study type for inference.
type StudyTypeHint struct {
	StudyType string   `yaml:"study_type"`
	Phrases   []string `yaml:"phrases"`
}

// ExpectedItem is a piece of evidence a complete answer on a topic cites.
type ExpectedItem struct {
	Item      string   `yaml:"item"`
	Kind      string   `yaml:"kind"`
	Patterns  []string `yaml:"patterns"`
	Rationale string   `yaml:"rationale"`
}

// ClinicalTopic is an expected-evidence catalog for gap detection.
type ClinicalTopic struct {
	Name                 string         `yaml:"name"`
	Label                string         `yaml:"label"`
	Triggers             []string       `yaml:"triggers"`
	NarrowScopeThreshold int            `yaml:"narrow_scope_threshold,omitempty"`
	Categories           []string       `yaml:"categories,omitempty"`
	Expected             []ExpectedItem `yaml:"expected"`
}

// Taxonomy holds every catalog. Fields are exported for YAML decoding and
// inspection; callers must treat them as read-only.
type Taxonomy struct {
	Version              string          `yaml:"version"`
	LandmarkTrials       []LandmarkTrial `yaml:"landmark_trials"`
	GuidelineKeywords    []string        `yaml:"guideline_keywords"`
	GuidelineOrgs        []GuidelineOrg  `yaml:"guideline_orgs"`
	PriorityVenues       []string        `yaml:"priority_venues"`
	HighQualityEvidence  []string        `yaml:"high_quality_evidence"`
	RCTPhrases           []string        `yaml:"rct_phrases"`
	LowQualityIndicators []string        `yaml:"low_quality_indicators"`
	OffTopic             []string        `yaml:"off_topic"`
	Interventions        []string        `yaml:"interventions"`
	ComparativePhrases   []string        `yaml:"comparative_phrases"`
	VeryLowQuality       []string        `yaml:"very_low_quality"`
	TopicClusters        []TopicCluster  `yaml:"topic_clusters"`
	HardExclusions       []HardExclusion `yaml:"hard_exclusions"`
	PairDetectors        []PairDetector  `yaml:"pair_detectors"`
	TopicDetectors       []TopicDetector `yaml:"topic_detectors"`
	QueryStopwords       []string        `yaml:"query_stopwords"`
	StudyTypeHints       []StudyTypeHint `yaml:"study_type_hints"`
	ClinicalTopics       []ClinicalTopic `yaml:"clinical_topics"`

	idx index
}

type namedMatcher struct {
	name string
	m    *Matcher
}

type index struct {
	landmarks      []namedMatcher
	orgs           []namedMatcher
	clusters       map[string]*Matcher
	studyTypes     []namedMatcher
	guideline      *Matcher
	venues         *Matcher
	highQuality    *Matcher
	rct            *Matcher
	lowQuality     *Matcher
	offTopic       *Matcher
	interventions  *Matcher
	comparative    *Matcher
	veryLowQuality *Matcher

	// keyed by clinical topic name; expected is index-aligned with
	// ClinicalTopic.Expected
	triggers map[string]*Matcher
	expected map[string][]*Matcher
}

var (
	defaultOnce sync.Once
	defaultTax  *Taxonomy
)

// Default returns the embedded taxonomy. It panics if the embedded file is
// invalid, which the package tests rule out.
func Default() *Taxonomy {
	defaultOnce.Do(func() {
		t, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded taxonomy: %v", err))
		}
		defaultTax = t
	})
	return defaultTax
}

// Load reads a taxonomy from a YAML file. An empty path returns Default().
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading taxonomy: %w", err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading taxonomy %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes, validates and compiles a taxonomy from YAML.
func Parse(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing taxonomy: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.compile()
	return &t, nil
}

// Validate checks structural consistency: named entries are non-empty,
// names are unique, and every category a clinical topic refers to exists
// as a topic cluster.
func (t *Taxonomy) Validate() error {
	var problems []string

	clusters := make(map[string]bool, len(t.TopicClusters))
	for i, c := range t.TopicClusters {
		if c.Name == "" {
			problems = append(problems, fmt.Sprintf("topic_clusters[%d]: empty name", i))
			continue
		}
		if clusters[c.Name] {
			problems = append(problems, fmt.Sprintf("topic_clusters: duplicate name %q", c.Name))
		}
		clusters[c.Name] = true
		if len(c.Keywords) == 0 {
			problems = append(problems, fmt.Sprintf("topic_clusters %q: no keywords", c.Name))
		}
	}

	for i, lt := range t.LandmarkTrials {
		if strings.TrimSpace(lt.Name) == "" {
			problems = append(problems, fmt.Sprintf("landmark_trials[%d]: empty name", i))
		}
	}

	for i, o := range t.GuidelineOrgs {
		if o.Code == "" || len(o.Patterns) == 0 {
			problems = append(problems, fmt.Sprintf("guideline_orgs[%d]: code and patterns are required", i))
		}
	}

	for i, h := range t.HardExclusions {
		if strings.TrimSpace(h.Pattern) == "" || h.Reason == "" {
			problems = append(problems, fmt.Sprintf("hard_exclusions[%d]: pattern and reason are required", i))
		}
	}

	detectorNames := make(map[string]bool)
	for _, d := range t.PairDetectors {
		if d.Name == "" || len(d.A.Terms) == 0 || len(d.B.Terms) == 0 {
			problems = append(problems, fmt.Sprintf("pair_detectors %q: name and both concepts are required", d.Name))
		}
		if detectorNames[d.Name] {
			problems = append(problems, fmt.Sprintf("duplicate detector name %q", d.Name))
		}
		detectorNames[d.Name] = true
	}
	for _, d := range t.TopicDetectors {
		if d.Name == "" || len(d.Condition.Terms) == 0 || len(d.Intervention.Terms) == 0 {
			problems = append(problems, fmt.Sprintf("topic_detectors %q: name, condition and intervention are required", d.Name))
		}
		if detectorNames[d.Name] {
			problems = append(problems, fmt.Sprintf("duplicate detector name %q", d.Name))
		}
		detectorNames[d.Name] = true
	}

	for _, h := range t.StudyTypeHints {
		if types.ParseStudyType(h.StudyType) == types.StudyUnknown {
			problems = append(problems, fmt.Sprintf("study_type_hints: unknown study type %q", h.StudyType))
		}
	}

	topics := make(map[string]bool, len(t.ClinicalTopics))
	for _, ct := range t.ClinicalTopics {
		if ct.Name == "" {
			problems = append(problems, "clinical_topics: empty name")
			continue
		}
		if topics[ct.Name] {
			problems = append(problems, fmt.Sprintf("clinical_topics: duplicate name %q", ct.Name))
		}
		topics[ct.Name] = true
		if len(ct.Triggers) == 0 {
			problems = append(problems, fmt.Sprintf("clinical_topics %q: no triggers", ct.Name))
		}
		for _, cat := range ct.Categories {
			if !clusters[cat] {
				problems = append(problems, fmt.Sprintf("clinical_topics %q: unknown category %q", ct.Name, cat))
			}
		}
		for _, e := range ct.Expected {
			if e.Item == "" || len(e.Patterns) == 0 {
				problems = append(problems, fmt.Sprintf("clinical_topics %q: expected items need item and patterns", ct.Name))
			}
			switch types.GapKind(e.Kind) {
			case types.GapTrial, types.GapGuideline, types.GapIntervention:
			default:
				problems = append(problems, fmt.Sprintf("clinical_topics %q: item %q has unknown kind %q", ct.Name, e.Item, e.Kind))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (t *Taxonomy) compile() {
	idx := index{
		clusters:       make(map[string]*Matcher, len(t.TopicClusters)),
		guideline:      NewMatcher(t.GuidelineKeywords),
		venues:         NewMatcher(t.PriorityVenues),
		highQuality:    NewMatcher(t.HighQualityEvidence),
		rct:            NewMatcher(t.RCTPhrases),
		lowQuality:     NewMatcher(t.LowQualityIndicators),
		offTopic:       NewMatcher(t.OffTopic),
		interventions:  NewMatcher(t.Interventions),
		comparative:    NewMatcher(t.ComparativePhrases),
		veryLowQuality: NewMatcher(t.VeryLowQuality),
		triggers:       make(map[string]*Matcher, len(t.ClinicalTopics)),
		expected:       make(map[string][]*Matcher, len(t.ClinicalTopics)),
	}
	for _, lt := range t.LandmarkTrials {
		patterns := lt.Patterns
		if len(patterns) == 0 {
			patterns = []string{lt.Name}
		}
		idx.landmarks = append(idx.landmarks, namedMatcher{name: lt.Name, m: NewMatcher(patterns)})
	}
	for _, o := range t.GuidelineOrgs {
		idx.orgs = append(idx.orgs, namedMatcher{name: o.Code, m: NewMatcher(o.Patterns)})
	}
	for _, c := range t.TopicClusters {
		idx.clusters[c.Name] = NewMatcher(c.Keywords)
	}
	for _, h := range t.StudyTypeHints {
		idx.studyTypes = append(idx.studyTypes, namedMatcher{name: h.StudyType, m: NewMatcher(h.Phrases)})
	}
	for _, ct := range t.ClinicalTopics {
		idx.triggers[ct.Name] = NewMatcher(ct.Triggers)
		ms := make([]*Matcher, len(ct.Expected))
		for i, e := range ct.Expected {
			ms[i] = NewMatcher(e.Patterns)
		}
		idx.expected[ct.Name] = ms
	}
	t.idx = idx
}

// MatchLandmarks returns the names of landmark trials mentioned in text.
func (t *Taxonomy) MatchLandmarks(text string) []string {
	var names []string
	for _, nm := range t.idx.landmarks {
		if nm.m.Contains(text) {
			names = append(names, nm.name)
		}
	}
	return names
}

// MatchGuidelineOrg returns the code of the first guideline body mentioned
// in text, or "".
func (t *Taxonomy) MatchGuidelineOrg(text string) string {
	for _, nm := range t.idx.orgs {
		if nm.m.Contains(text) {
			return nm.name
		}
	}
	return ""
}

// InferStudyType returns the first study type whose hint phrases occur in
// text, or StudyUnknown.
func (t *Taxonomy) InferStudyType(text string) types.StudyType {
	for _, nm := range t.idx.studyTypes {
		if nm.m.Contains(text) {
			return types.ParseStudyType(nm.name)
		}
	}
	return types.StudyUnknown
}

// Cluster returns the keyword matcher of a topic cluster, or nil.
func (t *Taxonomy) Cluster(name string) *Matcher { return t.idx.clusters[name] }

// ClusterLabel returns the display label of a topic cluster, falling back to its name.
func (t *Taxonomy) ClusterLabel(name string) string {
	for _, c := range t.TopicClusters {
		if c.Name == name && c.Label != "" {
			return c.Label
		}
	}
	return name
}

// MatchClusters returns the names of topic clusters with a keyword in text,
// in declaration order.
func (t *Taxonomy) MatchClusters(text string) []string {
	var names []string
	for _, c := range t.TopicClusters {
		if t.idx.clusters[c.Name].Contains(text) {
			names = append(names, c.Name)
		}
	}
	return names
}

// Topic returns the clinical topic with the given name.
func (t *Taxonomy) Topic(name string) (ClinicalTopic, bool) {
	for _, ct := range t.ClinicalTopics {
		if ct.Name == name {
			return ct, true
		}
	}
	return ClinicalTopic{}, false
}

// TriggerMatcher returns the trigger-phrase matcher of a clinical topic, or nil.
func (t *Taxonomy) TriggerMatcher(topic string) *Matcher { return t.idx.triggers[topic] }

// ExpectedMatcher returns the pattern matcher of the i-th expected item of a
// clinical topic, or nil.
func (t *Taxonomy) ExpectedMatcher(topic string, i int) *Matcher {
	ms := t.idx.expected[topic]
	if i < 0 || i >= len(ms) {
		return nil
	}
	return ms[i]
}

// GuidelineMatcher matches guideline keywords.
func (t *Taxonomy) GuidelineMatcher() *Matcher { return t.idx.guideline }

// VenueMatcher matches priority venues. Apply it to the journal only.
func (t *Taxonomy) VenueMatcher() *Matcher { return t.idx.venues }

func (t *Taxonomy) HighQualityMatcher() *Matcher { return t.idx.highQuality }

func (t *Taxonomy) RCTMatcher() *Matcher { return t.idx.rct }

func (t *Taxonomy) LowQualityMatcher() *Matcher { return t.idx.lowQuality }

func (t *Taxonomy) OffTopicMatcher() *Matcher { return t.idx.offTopic }

func (t *Taxonomy) InterventionMatcher() *Matcher { return t.idx.interventions }

func (t *Taxonomy) ComparativeMatcher() *Matcher { return t.idx.comparative }

// VeryLowQualityMatcher matches records the ranker filters out entirely.
func (t *Taxonomy) VeryLowQualityMatcher() *Matcher { return t.idx.veryLowQuality }
