// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize turns raw records from literature-search clients into
// deduplicated Citation values with every optional field coerced to a
// well-defined empty value.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/pdiddy/citation-engine/internal/taxonomy"
	"github.com/pdiddy/citation-engine/pkg/types"
)

// Result holds the normalized citations and what was discarded on the way.
type Result struct {
	Citations         []types.Citation
	Dropped           int
	DuplicatesRemoved int
}

// Normalizer converts raw records using the taxonomy for study-type and
// guideline inference.
type Normalizer struct {
	tax *taxonomy.Taxonomy
}

// New returns a Normalizer. A nil taxonomy uses taxonomy.Default().
func New(tax *taxonomy.Taxonomy) *Normalizer {
	if tax == nil {
		tax = taxonomy.Default()
	}
	return &Normalizer{tax: tax}
}

// Normalize drops records without a title, assigns IDs, and removes
// duplicates. The first occurrence of an ID wins; later duplicates only add
// their source to FoundIn. Input order is preserved and raw is not modified.
func (n *Normalizer) Normalize(raw []types.RawRecord) Result {
	var res Result
	res.Citations = make([]types.Citation, 0, len(raw))
	seen := make(map[string]int, len(raw)) // id → index in res.Citations

	for _, r := range raw {
		c, ok := n.convert(r)
		if !ok {
			res.Dropped++
			continue
		}
		if idx, dup := seen[c.ID]; dup {
			addSource(&res.Citations[idx], c.Source)
			res.DuplicatesRemoved++
			continue
		}
		seen[c.ID] = len(res.Citations)
		res.Citations = append(res.Citations, c)
	}
	return res
}

func (n *Normalizer) convert(r types.RawRecord) (types.Citation, bool) {
	title := cleanSpace(r.Title)
	if title == "" {
		return types.Citation{}, false
	}

	c := types.Citation{
		Title:        title,
		Authors:      cleanAuthors(r.Authors),
		Journal:      cleanSpace(r.Journal),
		Year:         ParseYear(r.Year),
		Abstract:     strings.TrimSpace(r.Abstract),
		Source:       types.ParseSource(r.Source),
		PMID:         cleanPMID(r.PMID),
		DOI:          CleanDOI(r.DOI),
		URL:          strings.TrimSpace(r.URL),
		IsGuideline:  r.IsGuideline,
		GuidelineOrg: strings.TrimSpace(r.GuidelineOrg),
	}
	c.FoundIn = []types.Source{c.Source}
	c.ID = CitationID(c.PMID, c.DOI, c.URL, c.Title, c.Year)

	c.StudyType = n.studyType(r, title)
	if c.StudyType == types.StudyGuideline {
		c.IsGuideline = true
	}
	if c.GuidelineOrg == "" && (c.IsGuideline || n.tax.GuidelineMatcher().Contains(strings.ToLower(title))) {
		c.GuidelineOrg = n.tax.MatchGuidelineOrg(c.Text())
	}
	if c.GuidelineOrg != "" && c.Source == types.SourceGuidelines {
		c.IsGuideline = true
	}

	c.EvidenceLevel = types.ParseEvidenceLevel(r.EvidenceLevel)
	if c.EvidenceLevel == types.EvidenceUnknown {
		c.EvidenceLevel = EvidenceFor(c.StudyType)
	}
	return c, true
}

// studyType prefers an explicit value, then publication types, then the title.
func (n *Normalizer) studyType(r types.RawRecord, title string) types.StudyType {
	if st := types.ParseStudyType(r.StudyType); st != types.StudyUnknown {
		return st
	}
	for _, pt := range r.PublicationTypes {
		if st := types.ParseStudyType(pt); st != types.StudyUnknown {
			return st
		}
		if st := n.tax.InferStudyType(strings.ToLower(pt)); st != types.StudyUnknown {
			return st
		}
	}
	if types.ParseSource(r.Source) == types.SourceFAERS {
		return types.StudyFAERSReport
	}
	return n.tax.InferStudyType(strings.ToLower(title))
}

// EvidenceFor maps a study type to its default evidence level.
func EvidenceFor(st types.StudyType) types.EvidenceLevel {
	switch st {
	case types.StudyMetaAnalysis, types.StudySystematic, types.StudyRCT, types.StudyGuideline:
		return types.EvidenceHigh
	case types.StudyCohort, types.StudyCaseControl, types.StudyObservational, types.StudyFDALabel:
		return types.EvidenceModerate
	case types.StudyCase, types.StudyReview, types.StudyFAERSReport:
		return types.EvidenceLow
	default:
		return types.EvidenceUnknown
	}
}

// CitationID derives the deduplication key with precedence
// pmid > doi > url > hash(title, year).
func CitationID(pmid, doi, url, title string, year int) string {
	switch {
	case pmid != "":
		return "pmid:" + pmid
	case doi != "":
		return "doi:" + doi
	case url != "":
		return "url:" + url
	}
	sum := sha256.Sum256([]byte(NormalizeTitle(title) + "|" + strconv.Itoa(year)))
	return "title:" + hex.EncodeToString(sum[:8])
}

var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi.org/",
	"doi:",
}

// CleanDOI lowercases a DOI and strips resolver prefixes.
func CleanDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, p := range doiPrefixes {
		if strings.HasPrefix(doi, p) {
			doi = strings.TrimSpace(doi[len(p):])
			break
		}
	}
	return doi
}

func cleanPMID(pmid string) string {
	pmid = strings.TrimSpace(pmid)
	if len(pmid) > 5 && strings.EqualFold(pmid[:5], "pmid:") {
		pmid = strings.TrimSpace(pmid[5:])
	}
	return pmid
}

var yearRe = regexp.MustCompile(`\b(1[89]\d\d|2\d\d\d)\b`)

// ParseYear extracts a four-digit year from values like "2021",
// "2021-03-04" or "2021 Mar". It returns 0 when none is found.
func ParseYear(s string) int {
	m := yearRe.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0
	}
	y, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return y
}

// NormalizeTitle returns a lowercased, punctuation-stripped version of the title.
func NormalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func cleanSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanAuthors(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = cleanSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func addSource(c *types.Citation, src types.Source) {
	for _, s := range c.FoundIn {
		if s == src {
			return
		}
	}
	c.FoundIn = append(c.FoundIn, src)
}
