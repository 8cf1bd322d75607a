// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// --- test helpers ---

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "archive")
	s, err := Open(types.ArchiveConfig{Dir: dir, MaxResults: 20})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return s, dir
}

func sampleBundle(query string) types.Bundle {
	return types.Bundle{
		Query: query,
		RankedCitations: []types.Citation{
			{
				ID:                "pmid:26378978",
				Title:             "Empagliflozin, cardiovascular outcomes, and mortality in type 2 diabetes",
				Journal:           "N Engl J Med",
				Year:              2015,
				Abstract:          "EMPA-REG OUTCOME randomized patients to empagliflozin or placebo.",
				Source:            types.SourcePubMed,
				QualityScore:      125,
				RelevanceScore:    90,
				RelevanceCategory: types.RelevanceExcellent,
			},
			{
				ID:                "doi:10.1056/nejmoa1504720",
				Title:             "Effect of sitagliptin on cardiovascular outcomes in type 2 diabetes",
				Journal:           "N Engl J Med",
				Year:              2015,
				Source:            types.SourceEuropePMC,
				QualityScore:      92,
				RelevanceScore:    60,
				RelevanceCategory: types.RelevanceGood,
			},
		},
		Report: types.Report{
			TotalSources: 2,
			MeanQuality:  108.5,
			Strength:     types.StrengthStrong,
			Topic:        "diabetes_cv",
		},
		Gaps: []types.Gap{{MissingItem: "CANVAS", Kind: types.GapTrial}},
	}
}

// --- tests ---

func TestOpenCreatesDatabase(t *testing.T) {
	_, dir := testStore(t)
	if _, err := os.Stat(filepath.Join(dir, indexDir, dbFile)); err != nil {
		t.Fatalf("database file missing: %v", err)
	}
}

func TestOpenReopensExisting(t *testing.T) {
	s, dir := testStore(t)
	id, err := s.Save(context.Background(), sampleBundle("SGLT2 vs DPP-4"))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	again, err := Open(types.ArchiveConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if _, err := again.Get(context.Background(), id); err != nil {
		t.Errorf("Get after reopen: %v", err)
	}
}

func TestSaveAndGet(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	b := sampleBundle("SGLT2 inhibitors vs DPP-4 inhibitors")
	id, err := s.Save(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != 36 {
		t.Errorf("run ID = %q, want a UUID", id)
	}

	e, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if e.Query != b.Query {
		t.Errorf("Query = %q, want %q", e.Query, b.Query)
	}
	if e.Topic != "diabetes_cv" || e.Strength != "strong" {
		t.Errorf("Topic/Strength = %q/%q", e.Topic, e.Strength)
	}
	if e.CitationCount != 2 || e.GapCount != 1 {
		t.Errorf("counts = %d/%d, want 2/1", e.CitationCount, e.GapCount)
	}
	if len(e.Bundle.RankedCitations) != 2 || e.Bundle.RankedCitations[0].ID != "pmid:26378978" {
		t.Errorf("bundle citations = %+v", e.Bundle.RankedCitations)
	}
	if e.Bundle.Report.MeanQuality != 108.5 {
		t.Errorf("MeanQuality = %v", e.Bundle.Report.MeanQuality)
	}
}

func TestGetByPrefix(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, sampleBundle("q"))
	if err != nil {
		t.Fatal(err)
	}
	e, err := s.Get(ctx, id[:8])
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != id {
		t.Errorf("ID = %q, want %q", e.ID, id)
	}
}

func TestGetNotFound(t *testing.T) {
	s, _ := testStore(t)
	for _, id := range []string{"", "no-such-run"} {
		_, err := s.Get(context.Background(), id)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestGetPrefixWildcardsAreLiteral(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	for _, q := range []string{"first", "second"} {
		if _, err := s.Save(ctx, sampleBundle(q)); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []string{"%", "_", "________", `\`, "%-%"} {
		_, err := s.Get(ctx, id)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestEscapeLike(t *testing.T) {
	tests := map[string]string{
		"abc":  "abc",
		"50%":  `50\%`,
		"a_b":  `a\_b`,
		`c:\x`: `c:\\x`,
		"%_\\": `\%\_\\`,
	}
	for in, want := range tests {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestListNewestFirst(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	var ids []string
	for _, q := range []string{"first", "second", "third"} {
		id, err := s.Save(ctx, sampleBundle(q))
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}

	runs, err := s.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("List returned %d runs, want 3", len(runs))
	}
	if runs[0].ID != ids[2] || runs[2].ID != ids[0] {
		t.Errorf("order = %s, %s, %s", runs[0].Query, runs[1].Query, runs[2].Query)
	}
	if !runs[0].CreatedAt.After(runs[1].CreatedAt) {
		t.Errorf("CreatedAt not descending: %v, %v", runs[0].CreatedAt, runs[1].CreatedAt)
	}

	limited, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Errorf("List(2) returned %d runs", len(limited))
	}
}

func TestSearch(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, sampleBundle("SGLT2 vs DPP-4"))
	if err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, "empagliflozin", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("Search returned %d hits, want 1", len(hits))
	}
	h := hits[0]
	if h.RunID != id || h.Position != 1 || h.CitationID != "pmid:26378978" {
		t.Errorf("hit = %+v", h)
	}
	if h.RunQuery != "SGLT2 vs DPP-4" || h.Source != "PubMed" || h.RelevanceCategory != "excellent" {
		t.Errorf("hit metadata = %+v", h)
	}

	// Abstract-only term.
	hits, err = s.Search(ctx, "placebo", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("abstract search returned %d hits, want 1", len(hits))
	}

	hits, err = s.Search(ctx, "warfarin", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("unrelated search returned %d hits", len(hits))
	}

	hits, err = s.Search(ctx, "   ", 0)
	if err != nil || hits != nil {
		t.Errorf("blank search = %v, %v", hits, err)
	}
}

// rawDB opens the raw database behind an archive directory.
func rawDB(t *testing.T, dir string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(dir, indexDir, dbFile))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReopenWithoutFTS5IgnoresLeftoverIndex(t *testing.T) {
	s, dir := testStore(t)
	if s.FullText() {
		t.Skip("driver built with FTS5")
	}
	s.Close()

	// Leftovers of a database first written by an FTS5 build. A plain
	// table stands in for the virtual table this driver cannot create.
	db := rawDB(t, dir)
	for _, stmt := range []string{
		`CREATE TABLE citations_fts (title TEXT, abstract TEXT)`,
		`CREATE TRIGGER citations_ai AFTER INSERT ON citations BEGIN
			INSERT INTO citations_fts_data(rowid, title) VALUES (new.rowid, new.title);
		END`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatal(err)
		}
	}
	db.Close()

	again, err := Open(types.ArchiveConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if again.FullText() {
		t.Fatal("FullText() = true for a driver without FTS5")
	}

	ctx := context.Background()
	if _, err := again.Save(ctx, sampleBundle("q")); err != nil {
		t.Fatalf("Save with leftover triggers: %v", err)
	}
	hits, err := again.Search(ctx, "empagliflozin", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("Search returned %d hits, want 1", len(hits))
	}
	hits, err = again.Search(ctx, "%", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("Search(%%) returned %d hits, want 0", len(hits))
	}
}

func TestReopenRestoresMissingFTSTriggers(t *testing.T) {
	s, dir := testStore(t)
	if !s.FullText() {
		t.Skip("driver built without FTS5")
	}
	s.Close()

	db := rawDB(t, dir)
	for _, name := range ftsTriggers {
		if _, err := db.Exec(`DROP TRIGGER ` + name); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Exec(
		`INSERT INTO runs (id, created_at, query, bundle) VALUES ('run-1', '2026-06-01T09:00:00Z', 'q', '{}')`,
	); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(
		`INSERT INTO citations (run_id, position, citation_id, title) VALUES ('run-1', 1, 'pmid:1', 'Ticagrelor after minor stroke')`,
	); err != nil {
		t.Fatal(err)
	}
	db.Close()

	again, err := Open(types.ArchiveConfig{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()

	hits, err := again.Search(context.Background(), "ticagrelor", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].RunID != "run-1" {
		t.Errorf("Search after reopen = %+v, want the row written without triggers", hits)
	}
}

func TestDelete(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	id, err := s.Save(ctx, sampleBundle("q"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
	hits, err := s.Search(ctx, "sitagliptin", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("deleted citations still searchable: %+v", hits)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v", err)
	}
}

func TestExport(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	for _, q := range []string{"first", "second"} {
		if _, err := s.Save(ctx, sampleBundle(q)); err != nil {
			t.Fatal(err)
		}
	}

	var yb bytes.Buffer
	if err := s.Export(ctx, &yb, FormatYAML); err != nil {
		t.Fatal(err)
	}
	var fromYAML []Entry
	if err := yaml.Unmarshal(yb.Bytes(), &fromYAML); err != nil {
		t.Fatalf("parsing YAML export: %v", err)
	}
	if len(fromYAML) != 2 || fromYAML[0].Query != "second" {
		t.Errorf("YAML export = %d entries, first %q", len(fromYAML), fromYAML[0].Query)
	}
	if !strings.Contains(yb.String(), "ranked_citations:") {
		t.Error("YAML export missing bundle")
	}

	var jb bytes.Buffer
	if err := s.Export(ctx, &jb, FormatJSON); err != nil {
		t.Fatal(err)
	}
	var fromJSON []Entry
	if err := json.Unmarshal(jb.Bytes(), &fromJSON); err != nil {
		t.Fatalf("parsing JSON export: %v", err)
	}
	if len(fromJSON) != 2 || len(fromJSON[1].Bundle.RankedCitations) != 2 {
		t.Errorf("JSON export = %+v", fromJSON)
	}

	if err := s.Export(ctx, &bytes.Buffer{}, "xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
}
