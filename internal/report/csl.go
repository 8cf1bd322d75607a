package report

import (
	"io"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/citation-engine/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	PMID           string    `yaml:"PMID,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Authority      string    `yaml:"authority,omitempty"`
	Note           string    `yaml:"note,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes ranked citations as a CSL-YAML list to w.
func FormatCSL(citations []types.Citation, w io.Writer) error {
	items := make([]CSLItem, len(citations))
	for i, c := range citations {
		items[i] = toCSLItem(c)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a Citation to a CSLItem. Guidelines and regulatory
// documents map to CSL's report type; everything else is a journal article.
func toCSLItem(c types.Citation) CSLItem {
	item := CSLItem{
		ID:             cslID(c.ID),
		Type:           "article-journal",
		Title:          c.Title,
		ContainerTitle: c.Journal,
		Abstract:       c.Abstract,
		DOI:            c.DOI,
		PMID:           c.PMID,
		URL:            c.URL,
		Note:           "Study type: " + string(c.StudyType),
	}

	switch {
	case c.IsGuideline || c.StudyType == types.StudyGuideline:
		item.Type = "report"
		item.Authority = c.GuidelineOrg
	case c.StudyType == types.StudyFDALabel || c.StudyType == types.StudyFAERSReport:
		item.Type = "report"
		item.Authority = "U.S. Food and Drug Administration"
	case c.Source == types.SourceBioRxiv || c.Source == types.SourceMedRxiv:
		item.Type = "article"
	}

	for _, a := range c.Authors {
		item.Author = append(item.Author, parseAuthorName(a))
	}

	if c.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{c.Year}}}
	}
	return item
}

// cslID turns a citation ID into a citation key without the scheme colon,
// e.g. "pmid:123" becomes "pmid-123".
func cslID(id string) string {
	return strings.NewReplacer(":", "-", "/", "_").Replace(id)
}

// parseAuthorName splits a name into CSL family/given parts. PubMed style
// "Granger CB" puts initials last; "Christopher B Granger" puts the family
// name last. Single-token names use the literal field.
func parseAuthorName(name string) CSLName {
	name = strings.TrimSpace(name)
	if name == "" {
		return CSLName{}
	}
	idx := strings.LastIndex(name, " ")
	if idx < 0 {
		return CSLName{Literal: name}
	}
	last := name[idx+1:]
	if isInitials(last) {
		return CSLName{Family: name[:idx], Given: last}
	}
	return CSLName{Given: name[:idx], Family: last}
}

// isInitials reports whether s looks like "CB" or "C.B.".
func isInitials(s string) bool {
	letters := strings.ReplaceAll(s, ".", "")
	if letters == "" || len(letters) > 3 {
		return false
	}
	return strings.ToUpper(letters) == letters
}
