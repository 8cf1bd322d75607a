// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the citation engine:
// the raw records handed over by literature-search clients, the normalized
// Citation the scoring stages work on, and the output Bundle returned to the
// presentation layer.
package types

import "strings"

// Source names a literature-search backend.
type Source string

const (
	SourcePubMed          Source = "PubMed"
	SourceEuropePMC       Source = "Europe PMC"
	SourceSemanticScholar Source = "Semantic Scholar"
	SourceCrossRef        Source = "CrossRef"
	SourceOpenAlex        Source = "OpenAlex"
	SourceBioRxiv         Source = "bioRxiv"
	SourceMedRxiv         Source = "medRxiv"
	SourceClinicalTrials  Source = "ClinicalTrials.gov"
	SourceCochrane        Source = "Cochrane Library"
	SourceFDA             Source = "FDA"
	SourceFAERS           Source = "FAERS"
	SourceGuidelines      Source = "Guidelines"
	SourceUnknown         Source = "Unknown"
)

// sourceAliases maps lowercased backend spellings to their canonical Source.
var sourceAliases = map[string]Source{
	"pubmed":             SourcePubMed,
	"medline":            SourcePubMed,
	"ncbi":               SourcePubMed,
	"europe pmc":         SourceEuropePMC,
	"europepmc":          SourceEuropePMC,
	"europe_pmc":         SourceEuropePMC,
	"semantic scholar":   SourceSemanticScholar,
	"semantic_scholar":   SourceSemanticScholar,
	"semanticscholar":    SourceSemanticScholar,
	"crossref":           SourceCrossRef,
	"openalex":           SourceOpenAlex,
	"biorxiv":            SourceBioRxiv,
	"medrxiv":            SourceMedRxiv,
	"clinicaltrials.gov": SourceClinicalTrials,
	"clinicaltrials":     SourceClinicalTrials,
	"clinical_trials":    SourceClinicalTrials,
	"cochrane":           SourceCochrane,
	"cochrane library":   SourceCochrane,
	"fda":                SourceFDA,
	"openfda":            SourceFDA,
	"fda label":          SourceFDA,
	"faers":              SourceFAERS,
	"fda faers":          SourceFAERS,
	"guidelines":         SourceGuidelines,
	"guideline":          SourceGuidelines,
	"nice":               SourceGuidelines,
}

// ParseSource returns the canonical Source for a backend name, or
// SourceUnknown when the name is not recognized.
func ParseSource(s string) Source {
	if src, ok := sourceAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return src
	}
	return SourceUnknown
}

// StudyType classifies the design of the study behind a citation.
type StudyType string

const (
	StudyRCT           StudyType = "RCT"
	StudyMetaAnalysis  StudyType = "Meta-Analysis"
	StudySystematic    StudyType = "Systematic Review"
	StudyGuideline     StudyType = "Guideline"
	StudyObservational StudyType = "Observational"
	StudyCohort        StudyType = "Cohort Study"
	StudyCaseControl   StudyType = "Case-Control Study"
	StudyCase          StudyType = "Case Study"
	StudyReview        StudyType = "Review"
	StudyFDALabel      StudyType = "FDA Label"
	StudyFAERSReport   StudyType = "FAERS Report"
	StudyUnknown       StudyType = "Unknown"
)

var studyTypes = []StudyType{
	StudyRCT, StudyMetaAnalysis, StudySystematic, StudyGuideline,
	StudyObservational, StudyCohort, StudyCaseControl, StudyCase,
	StudyReview, StudyFDALabel, StudyFAERSReport,
}

// ParseStudyType matches s case-insensitively against the known study
// types. Unrecognized values yield StudyUnknown.
func ParseStudyType(s string) StudyType {
	s = strings.TrimSpace(s)
	for _, st := range studyTypes {
		if strings.EqualFold(s, string(st)) {
			return st
		}
	}
	return StudyUnknown
}

// EvidenceLevel is a coarse grade of the strength of evidence.
type EvidenceLevel string

const (
	EvidenceHigh     EvidenceLevel = "High"
	EvidenceModerate EvidenceLevel = "Moderate"
	EvidenceLow      EvidenceLevel = "Low"
	EvidenceUnknown  EvidenceLevel = "Unknown"
)

// ParseEvidenceLevel matches s case-insensitively. Unrecognized values
// yield EvidenceUnknown.
func ParseEvidenceLevel(s string) EvidenceLevel {
	for _, l := range []EvidenceLevel{EvidenceHigh, EvidenceModerate, EvidenceLow} {
		if strings.EqualFold(strings.TrimSpace(s), string(l)) {
			return l
		}
	}
	return EvidenceUnknown
}

// RelevanceCategory buckets a relevance score.
type RelevanceCategory string

const (
	RelevanceExcellent  RelevanceCategory = "excellent"
	RelevanceGood       RelevanceCategory = "good"
	RelevanceModerate   RelevanceCategory = "moderate"
	RelevancePoor       RelevanceCategory = "poor"
	RelevanceIrrelevant RelevanceCategory = "irrelevant"
	RelevanceUnknown    RelevanceCategory = "unknown"
)

// NeedsWarning reports whether citations in this category must carry a
// user-facing relevance warning.
func (c RelevanceCategory) NeedsWarning() bool {
	return c == RelevancePoor || c == RelevanceIrrelevant
}

// RawRecord is a citation-like object as produced by a literature-search
// client. Fields are loosely typed; the normalizer validates and coerces them.
type RawRecord struct {
	Title            string   `json:"title" yaml:"title"`
	Authors          []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Journal          string   `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year             string   `json:"year,omitempty" yaml:"year,omitempty"`
	Abstract         string   `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Source           string   `json:"source,omitempty" yaml:"source,omitempty"`
	StudyType        string   `json:"study_type,omitempty" yaml:"study_type,omitempty"`
	PublicationTypes []string `json:"publication_types,omitempty" yaml:"publication_types,omitempty"`
	EvidenceLevel    string   `json:"evidence_level,omitempty" yaml:"evidence_level,omitempty"`
	IsGuideline      bool     `json:"is_guideline,omitempty" yaml:"is_guideline,omitempty"`
	GuidelineOrg     string   `json:"guideline_org,omitempty" yaml:"guideline_org,omitempty"`
	PMID             string   `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	DOI              string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL              string   `json:"url,omitempty" yaml:"url,omitempty"`
}

// QualitySignals records which taxonomy categories contributed to a
// citation's quality score.
type QualitySignals struct {
	LandmarkTrials []string `json:"landmark_trials,omitempty" yaml:"landmark_trials,omitempty"`
	Guideline      bool     `json:"guideline,omitempty" yaml:"guideline,omitempty"`
	HighQuality    bool     `json:"high_quality,omitempty" yaml:"high_quality,omitempty"`
	RCT            bool     `json:"rct,omitempty" yaml:"rct,omitempty"`
	PriorityVenue  bool     `json:"priority_venue,omitempty" yaml:"priority_venue,omitempty"`
	TopicClusters  []string `json:"topic_clusters,omitempty" yaml:"topic_clusters,omitempty"`
	Interventions  []string `json:"interventions,omitempty" yaml:"interventions,omitempty"`
	Comparative    bool     `json:"comparative,omitempty" yaml:"comparative,omitempty"`
	LowQuality     bool     `json:"low_quality,omitempty" yaml:"low_quality,omitempty"`
	OffTopic       bool     `json:"off_topic,omitempty" yaml:"off_topic,omitempty"`
}

// Citation is the normalized representation of one bibliographic item.
// Citations are built fresh for every ranking run and are passed by value
// between stages; each stage returns new copies rather than mutating input.
type Citation struct {
	// ID is the deduplication key: pmid:, doi:, url: or title: prefixed.
	ID string `json:"id" yaml:"id"`

	// Title is the item title. Never empty after normalization.
	Title string `json:"title" yaml:"title"`

	// Authors lists authors in source order. Never nil after normalization.
	Authors []string `json:"authors" yaml:"authors"`

	// Journal is the venue name, empty when unknown.
	Journal string `json:"journal" yaml:"journal"`

	// Year is the publication year, 0 when unknown.
	Year int `json:"year" yaml:"year"`

	// Abstract is the item abstract, empty when unknown.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Source is the canonical backend used for scoring and grouping.
	Source Source `json:"source" yaml:"source"`

	// FoundIn lists every backend that returned this item, canonical source first.
	FoundIn []Source `json:"found_in" yaml:"found_in"`

	StudyType     StudyType     `json:"study_type" yaml:"study_type"`
	EvidenceLevel EvidenceLevel `json:"evidence_level" yaml:"evidence_level"`
	IsGuideline   bool          `json:"is_guideline" yaml:"is_guideline"`
	GuidelineOrg  string        `json:"guideline_org,omitempty" yaml:"guideline_org,omitempty"`

	PMID string `json:"pmid,omitempty" yaml:"pmid,omitempty"`
	DOI  string `json:"doi,omitempty" yaml:"doi,omitempty"`
	URL  string `json:"url,omitempty" yaml:"url,omitempty"`

	// QualityScore is the intrinsic evidence-quality score, never negative.
	QualityScore float64 `json:"quality_score" yaml:"quality_score"`

	// QualitySignals explains QualityScore.
	QualitySignals QualitySignals `json:"quality_signals" yaml:"quality_signals"`

	// RelevanceScore is the query-specific score in [0, 100].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// RelevanceCategory buckets RelevanceScore.
	RelevanceCategory RelevanceCategory `json:"relevance_category" yaml:"relevance_category"`

	// RelevanceWarning is a one-line caveat shown to the user. Always set
	// for poor and irrelevant citations.
	RelevanceWarning string `json:"relevance_warning,omitempty" yaml:"relevance_warning,omitempty"`

	// RelevanceDetector names the rule that decided RelevanceScore.
	RelevanceDetector string `json:"relevance_detector,omitempty" yaml:"relevance_detector,omitempty"`
}

// Resolvable reports whether the presentation layer can link to the item.
func (c Citation) Resolvable() bool {
	return c.PMID != "" || c.DOI != "" || c.URL != ""
}

// Text returns the lowercased title, journal and abstract joined for
// phrase matching.
func (c Citation) Text() string {
	return strings.ToLower(c.Title + " \n " + c.Journal + " \n " + c.Abstract)
}

// Clone returns a copy of c that shares no slices with it.
func (c Citation) Clone() Citation {
	out := c
	out.Authors = append([]string{}, c.Authors...)
	out.FoundIn = append([]Source{}, c.FoundIn...)
	out.QualitySignals.LandmarkTrials = append([]string(nil), c.QualitySignals.LandmarkTrials...)
	out.QualitySignals.TopicClusters = append([]string(nil), c.QualitySignals.TopicClusters...)
	out.QualitySignals.Interventions = append([]string(nil), c.QualitySignals.Interventions...)
	return out
}
