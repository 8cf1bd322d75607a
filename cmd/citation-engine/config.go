package main

import (
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/citation-engine/internal/logging"
	"github.com/pdiddy/citation-engine/internal/taxonomy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// setDefaults registers a default for every configuration key so that
// environment variables resolve even without a config file.
func setDefaults() {
	def := types.DefaultEngineConfig()
	w := def.Weights

	viper.SetDefault("engine.max_citations", def.MaxCitations)
	viper.SetDefault("engine.narrow_scope_threshold", def.NarrowScopeThreshold)
	viper.SetDefault("engine.workers", def.Workers)
	viper.SetDefault("engine.taxonomy_path", "")

	viper.SetDefault("engine.weights.landmark_trial", w.LandmarkTrial)
	viper.SetDefault("engine.weights.guideline", w.Guideline)
	viper.SetDefault("engine.weights.high_quality", w.HighQuality)
	viper.SetDefault("engine.weights.priority_venue", w.PriorityVenue)
	viper.SetDefault("engine.weights.topic_cluster", w.TopicCluster)
	viper.SetDefault("engine.weights.intervention", w.Intervention)
	viper.SetDefault("engine.weights.recent_five_years", w.RecentFiveYears)
	viper.SetDefault("engine.weights.recent_ten_years", w.RecentTenYears)
	viper.SetDefault("engine.weights.comparative", w.Comparative)
	viper.SetDefault("engine.weights.low_quality_penalty", w.LowQualityPenalty)
	viper.SetDefault("engine.weights.off_topic_penalty", w.OffTopicPenalty)

	viper.SetDefault("engine.strength.strong", def.Strength.Strong)
	viper.SetDefault("engine.strength.moderate", def.Strength.Moderate)

	viper.SetDefault("archive.dir", "archive")
	viper.SetDefault("archive.max_results", 20)

	viper.SetDefault("log.level", "info")
}

// engineConfig builds the engine configuration from viper.
func engineConfig() types.EngineConfig {
	return types.EngineConfig{
		MaxCitations:         viper.GetInt("engine.max_citations"),
		NarrowScopeThreshold: viper.GetInt("engine.narrow_scope_threshold"),
		Workers:              viper.GetInt("engine.workers"),
		TaxonomyPath:         viper.GetString("engine.taxonomy_path"),
		Weights: types.QualityWeights{
			LandmarkTrial:     viper.GetFloat64("engine.weights.landmark_trial"),
			Guideline:         viper.GetFloat64("engine.weights.guideline"),
			HighQuality:       viper.GetFloat64("engine.weights.high_quality"),
			PriorityVenue:     viper.GetFloat64("engine.weights.priority_venue"),
			TopicCluster:      viper.GetFloat64("engine.weights.topic_cluster"),
			Intervention:      viper.GetFloat64("engine.weights.intervention"),
			RecentFiveYears:   viper.GetFloat64("engine.weights.recent_five_years"),
			RecentTenYears:    viper.GetFloat64("engine.weights.recent_ten_years"),
			Comparative:       viper.GetFloat64("engine.weights.comparative"),
			LowQualityPenalty: viper.GetFloat64("engine.weights.low_quality_penalty"),
			OffTopicPenalty:   viper.GetFloat64("engine.weights.off_topic_penalty"),
		},
		Strength: types.StrengthThresholds{
			Strong:   viper.GetFloat64("engine.strength.strong"),
			Moderate: viper.GetFloat64("engine.strength.moderate"),
		},
	}
}

func archiveConfig() types.ArchiveConfig {
	return types.ArchiveConfig{
		Dir:        viper.GetString("archive.dir"),
		MaxResults: viper.GetInt("archive.max_results"),
	}
}

func newLogger() (*zap.Logger, error) {
	logger, err := logging.New(viper.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("configuring logger: %w", err)
	}
	return logger, nil
}

// loadTaxonomy returns the taxonomy at path, or the embedded default when
// path is empty.
func loadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	tax, err := taxonomy.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading taxonomy: %w", err)
	}
	return tax, nil
}
