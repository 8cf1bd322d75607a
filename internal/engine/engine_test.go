// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/citation-engine/internal/metrics"
	"github.com/pdiddy/citation-engine/internal/report"
	"github.com/pdiddy/citation-engine/pkg/types"
)

var fixedNow = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }

func newEngine(opts ...Option) *Engine {
	opts = append([]Option{WithClock(fixedNow)}, opts...)
	return New(nil, types.DefaultEngineConfig(), opts...)
}

// sglt2Records builds 20 duplicate-free records for an SGLT2-versus-DPP-4
// question: two compare both classes, five mention one class, and thirteen
// are unrelated, including a UKPDS-style general diabetes trial.
func sglt2Records() (records []types.RawRecord, dual, unrelated map[string]bool) {
	dual = map[string]bool{"pmid:1001": true, "pmid:1002": true}
	unrelated = map[string]bool{}

	records = append(records,
		types.RawRecord{
			Title:   "SGLT2 inhibitors versus DPP-4 inhibitors and cardiovascular outcomes in type 2 diabetes: a systematic review and meta-analysis",
			Journal: "BMJ", Year: "2021", Source: "PubMed", PMID: "1001",
		},
		types.RawRecord{
			Title:    "Comparative effectiveness of empagliflozin versus sitagliptin: a randomized controlled trial",
			Abstract: "Adults with type 2 diabetes were randomized.",
			Journal:  "Lancet", Year: "2023", Source: "Europe PMC", PMID: "1002",
		},
	)

	singles := []string{
		"Dapagliflozin and kidney function in older adults",
		"Linagliptin and hypoglycaemia risk in elderly patients",
		"Canagliflozin and amputation risk",
		"Saxagliptin and heart failure hospitalization",
		"Ertugliflozin add-on therapy outcomes",
	}
	for i, title := range singles {
		records = append(records, types.RawRecord{
			Title: title, Journal: "Diabetes Obes Metab", Year: "2019", Source: "Semantic Scholar",
			PMID: fmt.Sprint(2000 + i),
		})
	}

	records = append(records, types.RawRecord{
		Title:   "Intensive blood-glucose control with sulphonylureas or insulin compared with conventional treatment and risk of complications in patients with type 2 diabetes (UKPDS 33)",
		Journal: "Lancet", Year: "1998", Source: "PubMed", PMID: "3000",
	})
	unrelated["pmid:3000"] = true

	for i := 0; i < 12; i++ {
		title := fmt.Sprintf("Metformin adherence in primary care, region %d", i)
		if i%2 == 1 {
			title = fmt.Sprintf("Knee osteoarthritis exercise programme, site %d", i)
		}
		id := fmt.Sprint(4000 + i)
		records = append(records, types.RawRecord{Title: title, Year: "2015", Source: "OpenAlex", PMID: id})
		unrelated["pmid:"+id] = true
	}
	return records, dual, unrelated
}

func TestRunClassComparison(t *testing.T) {
	records, dual, unrelated := sglt2Records()
	require.Len(t, records, 20)

	b, err := newEngine().Run(context.Background(), Input{
		Records: records,
		Query:   "SGLT2 inhibitors vs DPP-4 inhibitors for diabetes",
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(b.RankedCitations), 12)

	positions := map[string]int{}
	for i, c := range b.RankedCitations {
		positions[c.ID] = i
		if unrelated[c.ID] {
			assert.LessOrEqual(t, c.RelevanceScore, 25.0, "unrelated %s", c.Title)
		}
	}

	for id := range dual {
		pos, ok := positions[id]
		require.True(t, ok, "dual-mention record %s is ranked", id)
		assert.Less(t, pos, 3, "dual-mention record %s ranks near the top", id)
		c := b.RankedCitations[pos]
		assert.GreaterOrEqual(t, c.RelevanceScore, 80.0)
		assert.Equal(t, types.RelevanceExcellent, c.RelevanceCategory)
	}

	pos, ok := positions["pmid:3000"]
	require.True(t, ok)
	ukpds := b.RankedCitations[pos]
	assert.Equal(t, types.RelevancePoor, ukpds.RelevanceCategory)
	assert.Contains(t, ukpds.RelevanceWarning, "General study rather than class comparison")
	assert.Equal(t, "sglt2_vs_dpp4", ukpds.RelevanceDetector)

	assert.Equal(t, 20, b.Stats.RawRecords)
	assert.Equal(t, 8, b.Stats.Capped)
}

func TestRunHardExclusion(t *testing.T) {
	records := []types.RawRecord{
		{
			Title:   "Omega-3 fatty acids for depression: a meta-analysis of randomized trials",
			Journal: "JAMA Psychiatry",
			Year:    "2022",
			PMID:    "1",
		},
		{
			Title:    "Baryon asymmetry from leptogenesis",
			Abstract: "We discuss depression of the washout rate and omega-3 symmetric operators.",
			Year:     "2020",
			Source:   "CrossRef",
			DOI:      "10.1103/physrev.1",
		},
	}
	b, err := newEngine().Run(context.Background(), Input{Records: records, Query: "omega-3 supplementation for depression"})
	require.NoError(t, err)
	require.Len(t, b.RankedCitations, 2)

	for _, c := range b.RankedCitations {
		if c.ID != "doi:10.1103/physrev.1" {
			assert.Equal(t, 95.0, c.RelevanceScore)
			continue
		}
		assert.Equal(t, 0.0, c.RelevanceScore)
		assert.Equal(t, types.RelevanceIrrelevant, c.RelevanceCategory)
		assert.NotEmpty(t, c.RelevanceWarning)
	}
}

func TestRunDedupByDOI(t *testing.T) {
	var records []types.RawRecord
	for i := 0; i < 12; i++ {
		records = append(records, types.RawRecord{Title: fmt.Sprintf("Study %d", i), DOI: fmt.Sprintf("10.1/%d", i)})
	}
	for i := 0; i < 3; i++ {
		records = append(records, types.RawRecord{Title: "Shared", DOI: "10.1/shared"})
	}

	b, err := newEngine().Run(context.Background(), Input{Records: records})
	require.NoError(t, err)
	assert.Equal(t, 13, b.Stats.Normalized)
	assert.Equal(t, 2, b.Stats.DuplicatesRemoved)
	assert.Len(t, b.RankedCitations, 12)
}

func TestRunStrokePreventionGaps(t *testing.T) {
	records := []types.RawRecord{
		{Title: "Bleeding risk scores in atrial fibrillation", Journal: "Heart", Year: "2020", PMID: "10"},
		{Title: "Frailty and falls in older adults", Year: "2018", PMID: "11"},
	}
	b, err := newEngine().Run(context.Background(), Input{
		Records:       records,
		Query:         "How should we prevent stroke?",
		AnswerContext: "Stroke prevention in atrial fibrillation depends on individual bleeding risk.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Stroke prevention", b.Report.Topic)
	assert.Contains(t, b.Report.UnmetExpectations, "Anticoagulation landmark trials (RE-LY, ARISTOTLE, ROCKET AF, ENGAGE AF-TIMI 48)")
	assert.Contains(t, b.Report.UnmetExpectations, "AHA/ASA secondary stroke prevention guideline")
	assert.Contains(t, b.Report.MissingCategories, "Antiplatelet therapy")
	assert.Contains(t, b.Report.MissingCategories, "Lipid-lowering therapy")
	assert.True(t, b.Report.NarrowScope)

	scope := 0
	for _, g := range b.Gaps {
		if g.Kind == types.GapScope {
			scope++
		}
	}
	assert.Equal(t, 1, scope)
}

func TestRunNarrowScopeThresholdFromConfig(t *testing.T) {
	in := Input{
		Records:       []types.RawRecord{{Title: "Bleeding risk scores in atrial fibrillation", Year: "2020", PMID: "10"}},
		Query:         "How should we prevent stroke?",
		AnswerContext: "Stroke prevention with warfarin, aspirin and statins for cholesterol.",
	}

	b, err := newEngine().Run(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, b.Report.MissingCategories, 4)
	assert.True(t, b.Report.NarrowScope)

	cfg := types.DefaultEngineConfig()
	cfg.NarrowScopeThreshold = 7
	b, err = New(nil, cfg, WithClock(fixedNow)).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, b.Report.MissingCategories, 4)
	assert.False(t, b.Report.NarrowScope)
}

func TestRunEmptyInput(t *testing.T) {
	b, err := newEngine().Run(context.Background(), Input{})
	require.NoError(t, err)

	assert.Empty(t, b.RankedCitations)
	assert.Empty(t, b.Gaps)
	assert.Zero(t, b.Report.TotalSources)
	assert.Equal(t, report.FallbackMessage, b.Report.Fallback)
	assert.Equal(t, types.StrengthLimited, b.Report.Strength)
}

func TestRunIsIdempotentAndDeterministic(t *testing.T) {
	records, _, _ := sglt2Records()
	in := Input{Records: records, Query: "SGLT2 inhibitors vs DPP-4 inhibitors for diabetes", AnswerContext: "type 2 diabetes"}
	e := newEngine()

	first, err := e.Run(context.Background(), in)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := newEngine().Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, first, other)
}

func TestParallelMatchesSequential(t *testing.T) {
	records, _, _ := sglt2Records()
	in := Input{Records: records, Query: "SGLT2 inhibitors vs DPP-4 inhibitors for diabetes"}

	seq, err := newEngine().Run(context.Background(), in)
	require.NoError(t, err)

	cfg := types.DefaultEngineConfig()
	cfg.Workers = 4
	par, err := New(nil, cfg, WithClock(fixedNow)).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, seq, par)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	records, _, _ := sglt2Records()
	before := make([]types.RawRecord, len(records))
	copy(before, records)

	_, err := newEngine().Run(context.Background(), Input{Records: records, Query: "sglt2 vs dpp-4"})
	require.NoError(t, err)
	assert.Equal(t, before, records)
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine().Run(ctx, Input{Records: []types.RawRecord{{Title: "x"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreBoundsAcrossRun(t *testing.T) {
	records, _, _ := sglt2Records()
	for _, query := range []string{"", "SGLT2 inhibitors vs DPP-4 inhibitors", "exercise for knee osteoarthritis"} {
		b, err := newEngine().Run(context.Background(), Input{Records: records, Query: query})
		require.NoError(t, err)
		for _, c := range b.RankedCitations {
			assert.GreaterOrEqual(t, c.QualityScore, 0.0)
			assert.GreaterOrEqual(t, c.RelevanceScore, 0.0)
			assert.LessOrEqual(t, c.RelevanceScore, 100.0)
			if c.RelevanceCategory.NeedsWarning() {
				assert.NotEmpty(t, c.RelevanceWarning)
			}
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	e := New(nil, types.EngineConfig{})
	assert.Equal(t, types.DefaultEngineConfig(), e.Config())
}

func TestRunRecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	_, err := newEngine(WithTracerProvider(tp)).Run(context.Background(), Input{
		Records: []types.RawRecord{{Title: "Aspirin after stroke", PMID: "1"}},
		Query:   "aspirin",
	})
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"engine.normalize", "engine.score", "engine.rank", "engine.gaps", "engine.Run"}, names)
}

func TestRunLogsAndMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New()

	_, err := newEngine(WithLogger(zap.New(core)), WithMetrics(m)).Run(context.Background(), Input{
		Records: []types.RawRecord{{Title: "Aspirin after stroke", PMID: "1"}, {Title: ""}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("ranking run complete").Len())
	entries := logs.FilterMessage("normalized records").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0].ContextMap()["dropped"])

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
