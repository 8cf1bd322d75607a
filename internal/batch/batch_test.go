// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package batch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citation-engine/internal/engine"
	"github.com/pdiddy/citation-engine/pkg/types"
)

const yamlInput = `query: SGLT2 inhibitors vs DPP-4 inhibitors for cardiovascular outcomes
topic: diabetes_cv
context: Compare the two drug classes.
records:
  - title: Empagliflozin, cardiovascular outcomes, and mortality in type 2 diabetes
    journal: N Engl J Med
    year: "2015"
    source: PubMed
    pmid: "26378978"
    publication_types: [Randomized Controlled Trial]
  - title: Sitagliptin and cardiovascular outcomes
    year: 2015
    source: Europe PMC
`

const jsonInput = `{
  "query": "statins after stroke",
  "records": [
    {"title": "High-dose atorvastatin after stroke", "year": "2006", "source": "PubMed", "pmid": "16899775"}
  ]
}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadInputFileYAML(t *testing.T) {
	in, err := ReadInputFile(writeFile(t, "req.yaml", yamlInput))
	require.NoError(t, err)

	assert.Equal(t, "SGLT2 inhibitors vs DPP-4 inhibitors for cardiovascular outcomes", in.Query)
	assert.Equal(t, "diabetes_cv", in.TopicHint)
	assert.Equal(t, "Compare the two drug classes.", in.AnswerContext)
	require.Len(t, in.Records, 2)
	assert.Equal(t, "26378978", in.Records[0].PMID)
	assert.Equal(t, []string{"Randomized Controlled Trial"}, in.Records[0].PublicationTypes)
	// Unquoted YAML years decode into the string field.
	assert.Equal(t, "2015", in.Records[1].Year)
}

func TestReadInputFileJSON(t *testing.T) {
	in, err := ReadInputFile(writeFile(t, "req.json", jsonInput))
	require.NoError(t, err)

	assert.Equal(t, "statins after stroke", in.Query)
	require.Len(t, in.Records, 1)
	assert.Equal(t, "16899775", in.Records[0].PMID)
}

func TestReadInputFileBareList(t *testing.T) {
	in, err := ReadInputFile(writeFile(t, "records.yaml", "- title: A\n  source: PubMed\n- title: B\n"))
	require.NoError(t, err)

	assert.Empty(t, in.Query)
	require.Len(t, in.Records, 2)
	assert.Equal(t, "B", in.Records[1].Title)
}

func TestReadInputFileErrors(t *testing.T) {
	_, err := ReadInputFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = ReadInputFile(writeFile(t, "bad.json", `{"records": [`))
	assert.Error(t, err)

	_, err = ReadInputFile(writeFile(t, "bad.yaml", "records: {title: [unterminated"))
	assert.Error(t, err)
}

func TestReadInputEmpty(t *testing.T) {
	in, err := ReadInput(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, in.Records)
}

func TestReadInputJSONThroughYAML(t *testing.T) {
	in, err := ReadInput(strings.NewReader(jsonInput))
	require.NoError(t, err)
	assert.Equal(t, "statins after stroke", in.Query)
	assert.Len(t, in.Records, 1)
}

func sampleRun() (engine.Input, types.Bundle) {
	in := engine.Input{Query: "q", TopicHint: "stroke_prevention", AnswerContext: "ctx"}
	b := types.Bundle{
		Query: "q",
		RankedCitations: []types.Citation{{
			ID:            "pmid:16899775",
			Title:         "High-dose atorvastatin after stroke",
			Authors:       []string{"Amarenco P"},
			Year:          2006,
			Source:        types.SourcePubMed,
			StudyType:     types.StudyRCT,
			EvidenceLevel: types.EvidenceHigh,
			PMID:          "16899775",
			QualityScore:  88,
		}},
		Report: types.Report{Strength: types.StrengthStrong},
		Gaps:   []types.Gap{{MissingItem: "ESO", Kind: types.GapGuideline}},
		Stats:  types.RunStats{RawRecords: 3, Dropped: 1, Normalized: 2},
	}
	return in, b
}

func TestBundleFileRoundTrip(t *testing.T) {
	in, b := sampleRun()
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	bf := NewBundleFile(in, types.DefaultEngineConfig(), b, at)

	for _, name := range []string{"bundle.yaml", "bundle.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, WriteBundleFile(path, bf))

			got, err := ReadBundleFile(path)
			require.NoError(t, err)
			assert.Equal(t, "stroke_prevention", got.Request.Topic)
			assert.Equal(t, 12, got.Config.MaxCitations)
			assert.Equal(t, 1, got.Summary.Ranked)
			assert.Equal(t, 1, got.Summary.Gaps)
			assert.Equal(t, 3, got.Summary.Stats.RawRecords)
			assert.Equal(t, types.StrengthStrong, got.Summary.Strength)
			assert.True(t, at.Equal(got.Summary.Timestamp))
			require.Len(t, got.Bundle.RankedCitations, 1)
			assert.Equal(t, 88.0, got.Bundle.RankedCitations[0].QualityScore)
		})
	}
}

func TestBundleFileInput(t *testing.T) {
	in, b := sampleRun()
	bf := NewBundleFile(in, types.DefaultEngineConfig(), b, time.Now())

	got := bf.Input()
	assert.Equal(t, "q", got.Query)
	assert.Equal(t, "stroke_prevention", got.TopicHint)
	assert.Equal(t, "ctx", got.AnswerContext)
	require.Len(t, got.Records, 1)

	r := got.Records[0]
	assert.Equal(t, "2006", r.Year)
	assert.Equal(t, "PubMed", r.Source)
	assert.Equal(t, "RCT", r.StudyType)
	assert.Equal(t, "16899775", r.PMID)
}

func TestReadBundleFileMissing(t *testing.T) {
	_, err := ReadBundleFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
