// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch reads ranking requests from disk and writes ranked bundles
// back, so a search can be re-ranked later without re-querying backends.
package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/internal/engine"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// ReadInputFile loads a ranking request from a YAML or JSON file. Files
// ending in .json are parsed as JSON; everything else as YAML. A file that
// holds a bare list of records is accepted as a request with no query.
func ReadInputFile(path string) (engine.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Input{}, fmt.Errorf("reading input file: %w", err)
	}
	in, err := ParseInput(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return engine.Input{}, fmt.Errorf("parsing input file %s: %w", path, err)
	}
	return in, nil
}

// ReadInput parses a request from r as YAML, which also accepts JSON.
func ReadInput(r io.Reader) (engine.Input, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return engine.Input{}, fmt.Errorf("reading input: %w", err)
	}
	return ParseInput(data, false)
}

// ParseInput decodes a request document.
func ParseInput(data []byte, isJSON bool) (engine.Input, error) {
	var in engine.Input
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return in, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var records []types.RawRecord
		if err := unmarshal(data, &records, isJSON); err != nil {
			return in, err
		}
		in.Records = records
		return in, nil
	}

	if err := unmarshal(data, &in, isJSON); err != nil {
		return in, err
	}
	return in, nil
}

func unmarshal(data []byte, v any, isJSON bool) error {
	if isJSON {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// BundleFile is the on-disk form of a ranked bundle.
type BundleFile struct {
	Request RequestParams `yaml:"request" json:"request"`
	Config  BundleConfig  `yaml:"config" json:"config"`
	Bundle  types.Bundle  `yaml:"bundle" json:"bundle"`
	Summary BundleSummary `yaml:"summary" json:"summary"`
}

// RequestParams records what was asked.
type RequestParams struct {
	Query   string `yaml:"query,omitempty" json:"query,omitempty"`
	Topic   string `yaml:"topic,omitempty" json:"topic,omitempty"`
	Context string `yaml:"context,omitempty" json:"context,omitempty"`
}

// BundleConfig records the engine settings that produced the bundle.
type BundleConfig struct {
	MaxCitations         int    `yaml:"max_citations" json:"max_citations"`
	NarrowScopeThreshold int    `yaml:"narrow_scope_threshold" json:"narrow_scope_threshold"`
	TaxonomyPath         string `yaml:"taxonomy_path,omitempty" json:"taxonomy_path,omitempty"`
}

// BundleSummary stores run statistics and a timestamp.
type BundleSummary struct {
	Ranked    int                    `yaml:"ranked" json:"ranked"`
	Stats     types.RunStats         `yaml:"stats" json:"stats"`
	Strength  types.EvidenceStrength `yaml:"strength" json:"strength"`
	Gaps      int                    `yaml:"gaps" json:"gaps"`
	Timestamp time.Time              `yaml:"timestamp" json:"timestamp"`
}

// NewBundleFile assembles the file form of a run.
func NewBundleFile(in engine.Input, cfg types.EngineConfig, b types.Bundle, at time.Time) BundleFile {
	return BundleFile{
		Request: RequestParams{
			Query:   in.Query,
			Topic:   in.TopicHint,
			Context: in.AnswerContext,
		},
		Config: BundleConfig{
			MaxCitations:         cfg.MaxCitations,
			NarrowScopeThreshold: cfg.NarrowScopeThreshold,
			TaxonomyPath:         cfg.TaxonomyPath,
		},
		Bundle: b,
		Summary: BundleSummary{
			Ranked:    len(b.RankedCitations),
			Stats:     b.Stats,
			Strength:  b.Report.Strength,
			Gaps:      len(b.Gaps),
			Timestamp: at,
		},
	}
}

// WriteBundleFile saves bf to path, as JSON when path ends in .json and
// YAML otherwise.
func WriteBundleFile(path string, bf BundleFile) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(&bf, "", "  ")
	} else {
		data, err = yaml.Marshal(&bf)
	}
	if err != nil {
		return fmt.Errorf("marshaling bundle file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadBundleFile loads a previously saved bundle file.
func ReadBundleFile(path string) (*BundleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle file: %w", err)
	}
	var bf BundleFile
	if err := unmarshal(data, &bf, strings.EqualFold(filepath.Ext(path), ".json")); err != nil {
		return nil, fmt.Errorf("parsing bundle file: %w", err)
	}
	return &bf, nil
}

// Input rebuilds the ranking request from a bundle file's request
// parameters and the records it ranked. Only the ranked citations are
// recoverable, so re-ranking a saved bundle can only narrow it.
func (bf *BundleFile) Input() engine.Input {
	in := engine.Input{
		Query:         bf.Request.Query,
		TopicHint:     bf.Request.Topic,
		AnswerContext: bf.Request.Context,
	}
	for _, c := range bf.Bundle.RankedCitations {
		in.Records = append(in.Records, ToRawRecord(c))
	}
	return in
}

// ToRawRecord converts a citation back into the raw form the engine accepts.
func ToRawRecord(c types.Citation) types.RawRecord {
	r := types.RawRecord{
		Title:         c.Title,
		Authors:       append([]string(nil), c.Authors...),
		Journal:       c.Journal,
		Abstract:      c.Abstract,
		Source:        string(c.Source),
		StudyType:     string(c.StudyType),
		EvidenceLevel: string(c.EvidenceLevel),
		IsGuideline:   c.IsGuideline,
		GuidelineOrg:  c.GuidelineOrg,
		PMID:          c.PMID,
		DOI:           c.DOI,
		URL:           c.URL,
	}
	if c.Year > 0 {
		r.Year = fmt.Sprintf("%d", c.Year)
	}
	return r
}
