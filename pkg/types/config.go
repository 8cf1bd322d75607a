package types

// QualityWeights holds the additive quality-score contributions. The
// relative order landmark > guideline ≈ high-quality evidence > venue >
// topic > intervention > recency is what ranking depends on; the
// magnitudes are tunable.
type QualityWeights struct {
	LandmarkTrial     float64 `json:"landmark_trial" yaml:"landmark_trial"`
	Guideline         float64 `json:"guideline" yaml:"guideline"`
	HighQuality       float64 `json:"high_quality" yaml:"high_quality"`
	PriorityVenue     float64 `json:"priority_venue" yaml:"priority_venue"`
	TopicCluster      float64 `json:"topic_cluster" yaml:"topic_cluster"`
	Intervention      float64 `json:"intervention" yaml:"intervention"`
	RecentFiveYears   float64 `json:"recent_five_years" yaml:"recent_five_years"`
	RecentTenYears    float64 `json:"recent_ten_years" yaml:"recent_ten_years"`
	Comparative       float64 `json:"comparative" yaml:"comparative"`
	LowQualityPenalty float64 `json:"low_quality_penalty" yaml:"low_quality_penalty"`
	OffTopicPenalty   float64 `json:"off_topic_penalty" yaml:"off_topic_penalty"`
}

// DefaultQualityWeights returns the reference weights.
func DefaultQualityWeights() QualityWeights {
	return QualityWeights{
		LandmarkTrial:     50,
		Guideline:         35,
		HighQuality:       30,
		PriorityVenue:     20,
		TopicCluster:      12,
		Intervention:      8,
		RecentFiveYears:   6,
		RecentTenYears:    3,
		Comparative:       5,
		LowQualityPenalty: 40,
		OffTopicPenalty:   20,
	}
}

// StrengthThresholds maps mean quality score to an EvidenceStrength.
type StrengthThresholds struct {
	// Strong is the minimum mean quality for "strong" (default 60).
	Strong float64 `json:"strong" yaml:"strong"`

	// Moderate is the minimum mean quality for "moderate" (default 30).
	Moderate float64 `json:"moderate" yaml:"moderate"`
}

// EngineConfig holds settings for one engine instance.
type EngineConfig struct {
	// MaxCitations caps the ranked output (default 12).
	MaxCitations int `json:"max_citations" yaml:"max_citations"`

	// NarrowScopeThreshold is the number of missing intervention categories
	// that triggers the narrow-scope warning (default 4).
	NarrowScopeThreshold int `json:"narrow_scope_threshold" yaml:"narrow_scope_threshold"`

	// Workers bounds per-record scoring concurrency. Values <= 1 score sequentially.
	Workers int `json:"workers" yaml:"workers"`

	// TaxonomyPath points at a YAML taxonomy replacing the embedded default.
	TaxonomyPath string `json:"taxonomy_path,omitempty" yaml:"taxonomy_path,omitempty"`

	Weights  QualityWeights     `json:"weights" yaml:"weights"`
	Strength StrengthThresholds `json:"strength" yaml:"strength"`
}

// DefaultEngineConfig returns the reference configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxCitations:         12,
		NarrowScopeThreshold: 4,
		Workers:              1,
		Weights:              DefaultQualityWeights(),
		Strength:             StrengthThresholds{Strong: 60, Moderate: 30},
	}
}

// ArchiveConfig holds settings for the run archive.
type ArchiveConfig struct {
	// Dir is the base directory for the archive (contains index/).
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}
