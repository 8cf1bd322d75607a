// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive persists ranking runs in a local SQLite database so past
// bundles can be listed, reopened, searched and exported.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/citation-engine/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "citations.db"

	defaultMaxResults = 20
)

// ErrNotFound is returned when no archived run matches an ID.
var ErrNotFound = errors.New("run not found")

// Store manages the archive database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
	fts        bool
	now        func() time.Time
}

// Open opens or creates the archive at cfg.Dir/index/citations.db and
// creates the schema if it does not exist.
func Open(cfg types.ArchiveConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.Dir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{
		db:         db,
		dir:        cfg.Dir,
		maxResults: maxResults,
		now:        time.Now,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FullText reports whether searches use the FTS5 index. Without the
// sqlite_fts5 build tag the driver lacks FTS5 and Search falls back to
// substring matching.
func (s *Store) FullText() bool { return s.fts }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			query TEXT,
			topic TEXT,
			strength TEXT,
			mean_quality REAL,
			citation_count INTEGER,
			gap_count INTEGER,
			bundle TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			citation_id TEXT NOT NULL,
			title TEXT NOT NULL,
			abstract TEXT,
			journal TEXT,
			year INTEGER,
			source TEXT,
			quality_score REAL,
			relevance_score REAL,
			relevance_category TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_citations_run_id ON citations(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	fts, err := s.fts5Available()
	if err != nil {
		return err
	}
	if !fts {
		// Triggers left by an FTS5 build would fail every write.
		for _, name := range ftsTriggers {
			if _, err := s.db.Exec(`DROP TRIGGER IF EXISTS ` + name); err != nil {
				return fmt.Errorf("dropping FTS trigger: %w", err)
			}
		}
		return nil
	}

	if _, err := s.db.Exec(
		`CREATE VIRTUAL TABLE IF NOT EXISTS citations_fts USING fts5(title, abstract, content=citations, content_rowid=rowid)`,
	); err != nil {
		if strings.Contains(err.Error(), "no such module") {
			return nil
		}
		return fmt.Errorf("creating FTS table: %w", err)
	}

	var triggers int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='trigger' AND name IN ('citations_ai', 'citations_ad', 'citations_au')`,
	).Scan(&triggers); err != nil {
		return fmt.Errorf("checking FTS triggers: %w", err)
	}
	if triggers < len(ftsTriggers) {
		triggerStatements := []string{
			`CREATE TRIGGER IF NOT EXISTS citations_ai AFTER INSERT ON citations BEGIN
				INSERT INTO citations_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
			`CREATE TRIGGER IF NOT EXISTS citations_ad AFTER DELETE ON citations BEGIN
				INSERT INTO citations_fts(citations_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
			END`,
			`CREATE TRIGGER IF NOT EXISTS citations_au AFTER UPDATE ON citations BEGIN
				INSERT INTO citations_fts(citations_fts, rowid, title, abstract) VALUES('delete', old.rowid, old.title, old.abstract);
				INSERT INTO citations_fts(rowid, title, abstract) VALUES (new.rowid, new.title, new.abstract);
			END`,
			// Rows written while the triggers were missing are not indexed yet.
			`INSERT INTO citations_fts(citations_fts) VALUES('rebuild')`,
		}
		for _, stmt := range triggerStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS trigger: %w", err)
			}
		}
	}
	s.fts = true
	return nil
}

var ftsTriggers = []string{"citations_ai", "citations_ad", "citations_au"}

// fts5Available reports whether the linked SQLite was compiled with FTS5.
// An existing citations_fts table says nothing about the running binary.
func (s *Store) fts5Available() (bool, error) {
	var used int
	if err := s.db.QueryRow(`SELECT sqlite_compileoption_used('ENABLE_FTS5')`).Scan(&used); err != nil {
		return false, fmt.Errorf("checking FTS5 support: %w", err)
	}
	return used == 1, nil
}

// Run is the summary row of one archived ranking run.
type Run struct {
	ID            string    `json:"id" yaml:"id"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	Query         string    `json:"query" yaml:"query"`
	Topic         string    `json:"topic,omitempty" yaml:"topic,omitempty"`
	Strength      string    `json:"strength" yaml:"strength"`
	MeanQuality   float64   `json:"mean_quality" yaml:"mean_quality"`
	CitationCount int       `json:"citation_count" yaml:"citation_count"`
	GapCount      int       `json:"gap_count" yaml:"gap_count"`
}

// Entry is an archived run with its full bundle.
type Entry struct {
	Run    `json:",inline" yaml:",inline"`
	Bundle types.Bundle `json:"bundle" yaml:"bundle"`
}

// Save archives b and returns the new run ID. Citations are stored in
// rank order and indexed for Search.
func (s *Store) Save(ctx context.Context, b types.Bundle) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("marshaling bundle: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, query, topic, strength, mean_quality, citation_count, gap_count, bundle)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.now().UTC().Format(time.RFC3339Nano), b.Query, b.Report.Topic,
		string(b.Report.Strength), b.Report.MeanQuality,
		len(b.RankedCitations), len(b.Gaps), string(data),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO citations (run_id, position, citation_id, title, abstract, journal, year, source,
			quality_score, relevance_score, relevance_category)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range b.RankedCitations {
		_, err := stmt.ExecContext(ctx,
			id, i+1, c.ID, c.Title, c.Abstract, c.Journal, c.Year, string(c.Source),
			c.QualityScore, c.RelevanceScore, string(c.RelevanceCategory),
		)
		if err != nil {
			return "", fmt.Errorf("inserting citation %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// List returns the most recent runs, newest first. limit <= 0 uses the
// store default.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = s.maxResults
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, query, topic, strength, mean_quality, citation_count, gap_count
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                      Run
		created                string
		query, topic, strength sql.NullString
		mean                   sql.NullFloat64
		citations, gaps        sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &created, &query, &topic, &strength, &mean, &citations, &gaps); err != nil {
		return r, fmt.Errorf("scanning run: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return r, fmt.Errorf("parsing created_at of run %s: %w", r.ID, err)
	}
	r.CreatedAt = t
	r.Query = query.String
	r.Topic = topic.String
	r.Strength = strength.String
	r.MeanQuality = mean.Float64
	r.CitationCount = int(citations.Int64)
	r.GapCount = int(gaps.Int64)
	return r, nil
}

// Get loads one run by ID or by a unique ID prefix.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, query, topic, strength, mean_quality, citation_count, gap_count, bundle
		 FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e    Entry
			data string
		)
		r, err := scanRun(scanFunc(func(dest ...any) error {
			return rows.Scan(append(dest, &data)...)
		}))
		if err != nil {
			return nil, err
		}
		e.Run = r
		if err := json.Unmarshal([]byte(data), &e.Bundle); err != nil {
			return nil, fmt.Errorf("decoding bundle of run %s: %w", r.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("looking up run: %w", err)
	}

	switch {
	case len(entries) == 0:
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	case len(entries) > 1 && entries[0].ID != id:
		return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
	return &entries[0], nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes LIKE wildcards so s matches literally under ESCAPE '\'.
func escapeLike(s string) string { return likeEscaper.Replace(s) }

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// Hit is one archived citation matching a search.
type Hit struct {
	RunID             string  `json:"run_id" yaml:"run_id"`
	RunQuery          string  `json:"run_query" yaml:"run_query"`
	Position          int     `json:"position" yaml:"position"`
	CitationID        string  `json:"citation_id" yaml:"citation_id"`
	Title             string  `json:"title" yaml:"title"`
	Journal           string  `json:"journal,omitempty" yaml:"journal,omitempty"`
	Year              int     `json:"year,omitempty" yaml:"year,omitempty"`
	Source            string  `json:"source" yaml:"source"`
	QualityScore      float64 `json:"quality_score" yaml:"quality_score"`
	RelevanceScore    float64 `json:"relevance_score" yaml:"relevance_score"`
	RelevanceCategory string  `json:"relevance_category" yaml:"relevance_category"`
}

// Search finds archived citations whose title or abstract matches query.
// With FTS5 the query uses FTS5 syntax and hits are ordered by bm25 rank;
// otherwise it is a case-insensitive substring and hits are newest first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.maxResults
	}

	var (
		stmt string
		args []any
	)
	if s.fts {
		stmt = `SELECT c.run_id, r.query, c.position, c.citation_id, c.title, c.journal, c.year, c.source,
				c.quality_score, c.relevance_score, c.relevance_category
			FROM citations_fts
			JOIN citations c ON c.rowid = citations_fts.rowid
			JOIN runs r ON r.id = c.run_id
			WHERE citations_fts MATCH ?
			ORDER BY citations_fts.rank
			LIMIT ?`
		args = []any{query, limit}
	} else {
		like := "%" + escapeLike(strings.ToLower(query)) + "%"
		stmt = `SELECT c.run_id, r.query, c.position, c.citation_id, c.title, c.journal, c.year, c.source,
				c.quality_score, c.relevance_score, c.relevance_category
			FROM citations c
			JOIN runs r ON r.id = c.run_id
			WHERE lower(c.title) LIKE ? ESCAPE '\' OR lower(c.abstract) LIKE ? ESCAPE '\'
			ORDER BY r.created_at DESC, c.position
			LIMIT ?`
		args = []any{like, like, limit}
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("searching archive: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h                         Hit
			runQuery, journal, source sql.NullString
			category                  sql.NullString
			year                      sql.NullInt64
			quality, relevance        sql.NullFloat64
		)
		if err := rows.Scan(
			&h.RunID, &runQuery, &h.Position, &h.CitationID, &h.Title, &journal, &year, &source,
			&quality, &relevance, &category,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.RunQuery = runQuery.String
		h.Journal = journal.String
		h.Year = int(year.Int64)
		h.Source = source.String
		h.QualityScore = quality.Float64
		h.RelevanceScore = relevance.Float64
		h.RelevanceCategory = category.String
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Delete removes a run and its citations.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}
