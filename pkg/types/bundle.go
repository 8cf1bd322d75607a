// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// GapKind classifies a missing piece of expected evidence.
type GapKind string

const (
	GapTrial        GapKind = "trial"
	GapGuideline    GapKind = "guideline"
	GapIntervention GapKind = "intervention"
	GapCategory     GapKind = "category"
	GapScope        GapKind = "scope"
)

// Gap is an expected piece of evidence absent from the cited set.
type Gap struct {
	// MissingItem names what is missing (a trial, a guideline body, a category).
	MissingItem string `json:"missing_item" yaml:"missing_item"`

	// Kind classifies the gap.
	Kind GapKind `json:"kind" yaml:"kind"`

	// Rationale says what the item is and why a complete answer cites it.
	Rationale string `json:"rationale" yaml:"rationale"`
}

// EvidenceStrength is a coarse label derived from mean quality score.
type EvidenceStrength string

const (
	StrengthStrong   EvidenceStrength = "strong"
	StrengthModerate EvidenceStrength = "moderate"
	StrengthLimited  EvidenceStrength = "limited"
)

// SourceCount pairs a backend with the number of ranked citations it contributed.
type SourceCount struct {
	Source Source `json:"source" yaml:"source"`
	Count  int    `json:"count" yaml:"count"`
}

// Diversity summarizes how many databases the ranked set draws from.
type Diversity struct {
	// DistinctSources is the number of canonical sources in the ranked set.
	DistinctSources int `json:"distinct_sources" yaml:"distinct_sources"`

	// PerSource counts ranked citations per canonical source, in group order.
	PerSource []SourceCount `json:"per_source" yaml:"per_source"`

	// DatabasesRepresented counts every backend that returned any ranked
	// citation, including backends whose copy was merged as a duplicate.
	DatabasesRepresented int `json:"databases_represented" yaml:"databases_represented"`
}

// SourceGroup holds the ranked citations of one source in overall rank order.
type SourceGroup struct {
	Source    Source     `json:"source" yaml:"source"`
	Citations []Citation `json:"citations" yaml:"citations"`
}

// Report is the short structured summary rendered for display.
type Report struct {
	TotalSources      int              `json:"total_sources" yaml:"total_sources"`
	Guidelines        int              `json:"guidelines" yaml:"guidelines"`
	LandmarkTrials    int              `json:"landmark_trials" yaml:"landmark_trials"`
	RCTs              int              `json:"rcts" yaml:"rcts"`
	HighImpactVenues  int              `json:"high_impact_venues" yaml:"high_impact_venues"`
	MeanQuality       float64          `json:"mean_quality" yaml:"mean_quality"`
	Strength          EvidenceStrength `json:"strength" yaml:"strength"`
	DistinctSources   int              `json:"distinct_sources" yaml:"distinct_sources"`
	Topic             string           `json:"topic,omitempty" yaml:"topic,omitempty"`
	UnmetExpectations []string         `json:"unmet_expectations,omitempty" yaml:"unmet_expectations,omitempty"`
	MissingCategories []string         `json:"missing_categories,omitempty" yaml:"missing_categories,omitempty"`
	NarrowScope       bool             `json:"narrow_scope" yaml:"narrow_scope"`
	Warnings          []string         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Fallback          string           `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// RunStats counts what happened to the input records during a run.
type RunStats struct {
	RawRecords        int `json:"raw_records" yaml:"raw_records"`
	Dropped           int `json:"dropped" yaml:"dropped"`
	DuplicatesRemoved int `json:"duplicates_removed" yaml:"duplicates_removed"`
	Normalized        int `json:"normalized" yaml:"normalized"`
	Filtered          int `json:"filtered" yaml:"filtered"`
	Capped            int `json:"capped" yaml:"capped"`
}

// Bundle is the output of one ranking run handed to the presentation layer.
type Bundle struct {
	Query           string        `json:"query" yaml:"query"`
	RankedCitations []Citation    `json:"ranked_citations" yaml:"ranked_citations"`
	Groups          []SourceGroup `json:"groups" yaml:"groups"`
	Diversity       Diversity     `json:"diversity" yaml:"diversity"`
	Report          Report        `json:"report" yaml:"report"`
	Gaps            []Gap         `json:"gaps" yaml:"gaps"`
	Stats           RunStats      `json:"stats" yaml:"stats"`
}
