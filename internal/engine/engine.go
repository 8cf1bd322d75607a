// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine wires the ranking stages into one pipeline:
// normalize, score quality and relevance, rank and diversify, detect gaps,
// and summarize. A run is a pure transformation of its Input; an Engine
// holds no per-run state and may serve concurrent runs.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/citation-engine/internal/gaps"
	"github.com/pdiddy/citation-engine/internal/metrics"
	"github.com/pdiddy/citation-engine/internal/normalize"
	"github.com/pdiddy/citation-engine/internal/quality"
	"github.com/pdiddy/citation-engine/internal/rank"
	"github.com/pdiddy/citation-engine/internal/relevance"
	"github.com/pdiddy/citation-engine/internal/report"
	"github.com/pdiddy/citation-engine/internal/taxonomy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

const tracerName = "github.com/pdiddy/citation-engine/internal/engine"

// Input is one ranking request: the raw records returned by search
// clients for a single question.
type Input struct {
	Records []types.RawRecord `json:"records" yaml:"records"`

	// Query is the user's question. Empty disables relevance filtering.
	Query string `json:"query,omitempty" yaml:"query,omitempty"`

	// TopicHint names a clinical topic for gap detection, overriding trigger detection.
	TopicHint string `json:"topic,omitempty" yaml:"topic,omitempty"`

	// AnswerContext is the answer text the citations support.
	AnswerContext string `json:"context,omitempty" yaml:"context,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock that anchors the recency bonus.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records every run on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracerProvider sets the tracer provider. The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracer = tp.Tracer(tracerName) }
}

// WithDetectors adds relevance detectors tried before the taxonomy's own.
func WithDetectors(ds ...relevance.Detector) Option {
	return func(e *Engine) { e.custom = append(e.custom, ds...) }
}

// Engine runs the ranking pipeline.
type Engine struct {
	cfg types.EngineConfig
	tax *taxonomy.Taxonomy

	normalizer *normalize.Normalizer
	relevance  *relevance.Scorer
	ranker     *rank.Ranker
	gaps       *gaps.Detector
	custom     []relevance.Detector

	logger  *zap.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// New returns an Engine. A nil taxonomy uses taxonomy.Default(); zero
// config values take their defaults.
func New(tax *taxonomy.Taxonomy, cfg types.EngineConfig, opts ...Option) *Engine {
	if tax == nil {
		tax = taxonomy.Default()
	}
	e := &Engine{
		cfg:    withDefaults(cfg),
		tax:    tax,
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.normalizer = normalize.New(tax)
	e.relevance = relevance.NewScorer(tax, e.custom...)
	e.ranker = rank.New(tax, e.cfg.MaxCitations)
	e.gaps = gaps.New(tax, e.cfg.NarrowScopeThreshold)
	return e
}

func withDefaults(cfg types.EngineConfig) types.EngineConfig {
	def := types.DefaultEngineConfig()
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = def.MaxCitations
	}
	if cfg.NarrowScopeThreshold <= 0 {
		cfg.NarrowScopeThreshold = def.NarrowScopeThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Weights == (types.QualityWeights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.Strength == (types.StrengthThresholds{}) {
		cfg.Strength = def.Strength
	}
	return cfg
}

// Config returns the effective configuration.
func (e *Engine) Config() types.EngineConfig { return e.cfg }

// Run executes the pipeline. Defective records are dropped and counted,
// an empty result carries the fallback report, and a missing query yields
// neutral relevance. The only error is cancellation of ctx.
func (e *Engine) Run(ctx context.Context, in Input) (types.Bundle, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.Run", trace.WithAttributes(
		attribute.Int("records.raw", len(in.Records)),
		attribute.Bool("query.present", in.Query != ""),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return types.Bundle{}, fmt.Errorf("ranking run: %w", err)
	}

	// Normalize.
	_, nspan := e.tracer.Start(ctx, "engine.normalize")
	norm := e.normalizer.Normalize(in.Records)
	nspan.SetAttributes(
		attribute.Int("records.dropped", norm.Dropped),
		attribute.Int("records.duplicates", norm.DuplicatesRemoved),
	)
	nspan.End()
	e.logger.Debug("normalized records",
		zap.Int("raw", len(in.Records)),
		zap.Int("kept", len(norm.Citations)),
		zap.Int("dropped", norm.Dropped),
		zap.Int("duplicates", norm.DuplicatesRemoved),
	)

	// Score.
	sctx, sspan := e.tracer.Start(ctx, "engine.score")
	q := e.relevance.Prepare(in.Query)
	det := e.relevance.Select(q)
	detName := relevance.DetectorNone
	if det != nil {
		detName = det.Name()
	}
	sspan.SetAttributes(attribute.String("relevance.detector", detName))
	qs := quality.NewScorer(e.tax, e.cfg.Weights, e.now().Year())
	scored, err := e.score(sctx, norm.Citations, qs, q, det)
	if err != nil {
		sspan.RecordError(err)
		sspan.SetStatus(codes.Error, err.Error())
		sspan.End()
		span.SetStatus(codes.Error, err.Error())
		return types.Bundle{}, fmt.Errorf("scoring citations: %w", err)
	}
	sspan.End()
	e.logger.Debug("scored citations", zap.Int("count", len(scored)), zap.String("detector", detName))

	// Rank.
	_, rspan := e.tracer.Start(ctx, "engine.rank")
	ranked := e.ranker.Rank(scored)
	rspan.SetAttributes(
		attribute.Int("records.filtered", ranked.Filtered),
		attribute.Int("records.ranked", len(ranked.Citations)),
		attribute.Int("sources.distinct", ranked.Diversity.DistinctSources),
	)
	rspan.End()
	e.logger.Debug("ranked citations",
		zap.Int("filtered", ranked.Filtered),
		zap.Int("capped", ranked.Capped),
		zap.Int("ranked", len(ranked.Citations)),
	)

	// Gaps and report.
	_, gspan := e.tracer.Start(ctx, "engine.gaps")
	analysis := e.gaps.Detect(ranked.Citations, in.AnswerContext+"\n"+in.Query, in.TopicHint)
	gspan.SetAttributes(
		attribute.String("topic", analysis.Topic),
		attribute.Int("gaps", len(analysis.Gaps)),
	)
	gspan.End()

	b := types.Bundle{
		Query:           in.Query,
		RankedCitations: ranked.Citations,
		Groups:          ranked.Groups,
		Diversity:       ranked.Diversity,
		Report:          report.Generate(ranked.Citations, ranked.Diversity, analysis, e.cfg.Strength),
		Gaps:            analysis.Gaps,
		Stats: types.RunStats{
			RawRecords:        len(in.Records),
			Dropped:           norm.Dropped,
			DuplicatesRemoved: norm.DuplicatesRemoved,
			Normalized:        len(norm.Citations),
			Filtered:          ranked.Filtered,
			Capped:            ranked.Capped,
		},
	}

	elapsed := time.Since(start)
	e.metrics.ObserveRun(b, elapsed)
	e.logger.Info("ranking run complete",
		zap.Int("ranked", len(b.RankedCitations)),
		zap.Int("sources", b.Diversity.DistinctSources),
		zap.String("topic", analysis.Topic),
		zap.Int("gaps", len(b.Gaps)),
		zap.String("strength", string(b.Report.Strength)),
		zap.Duration("elapsed", elapsed),
	)
	return b, nil
}

// score applies both scorers to every citation. Quality and relevance are
// independent, so with Workers > 1 citations are scored concurrently;
// results land at their input index so output matches sequential mode.
func (e *Engine) score(ctx context.Context, cs []types.Citation, qs *quality.Scorer, q relevance.Query, det relevance.Detector) ([]types.Citation, error) {
	out := make([]types.Citation, len(cs))
	one := func(i int) {
		out[i] = e.relevance.Apply(qs.Apply(cs[i]), q, det)
	}

	if e.cfg.Workers <= 1 || len(cs) < 2 {
		for i := range cs {
			one(i)
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := range cs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			one(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
