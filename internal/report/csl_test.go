// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pdiddy/citation-engine/pkg/types"
)

func TestToCSLItemArticle(t *testing.T) {
	c := types.Citation{
		ID:        "pmid:21870978",
		Title:     "Apixaban versus warfarin in patients with atrial fibrillation",
		Authors:   []string{"Granger CB", "John H. Alexander"},
		Journal:   "N Engl J Med",
		Year:      2011,
		StudyType: types.StudyRCT,
		PMID:      "21870978",
		DOI:       "10.1056/nejmoa1107039",
	}

	item := toCSLItem(c)

	if item.ID != "pmid-21870978" {
		t.Errorf("ID = %q, want %q", item.ID, "pmid-21870978")
	}
	if item.Type != "article-journal" {
		t.Errorf("Type = %q, want %q", item.Type, "article-journal")
	}
	if item.ContainerTitle != "N Engl J Med" {
		t.Errorf("ContainerTitle = %q", item.ContainerTitle)
	}
	if len(item.Author) != 2 {
		t.Fatalf("len(Author) = %d, want 2", len(item.Author))
	}
	if item.Author[0].Family != "Granger" || item.Author[0].Given != "CB" {
		t.Errorf("Author[0] = %+v, want Granger, CB", item.Author[0])
	}
	if item.Author[1].Family != "Alexander" || item.Author[1].Given != "John H." {
		t.Errorf("Author[1] = %+v, want Alexander, John H.", item.Author[1])
	}
	if item.Issued == nil || item.Issued.DateParts[0][0] != 2011 {
		t.Errorf("Issued year should be 2011")
	}
}

func TestToCSLItemGuideline(t *testing.T) {
	c := types.Citation{
		ID:           "doi:10.1161/str.0000000000000375",
		Title:        "2021 Guideline for the Prevention of Stroke",
		IsGuideline:  true,
		GuidelineOrg: "AHA/ASA",
	}

	item := toCSLItem(c)

	if item.Type != "report" {
		t.Errorf("Type = %q, want report", item.Type)
	}
	if item.Authority != "AHA/ASA" {
		t.Errorf("Authority = %q, want AHA/ASA", item.Authority)
	}
	if item.ID != "doi-10.1161_str.0000000000000375" {
		t.Errorf("ID = %q", item.ID)
	}
	if item.Issued != nil {
		t.Errorf("Issued should be nil without a year")
	}
}

func TestParseAuthorNameSingleToken(t *testing.T) {
	n := parseAuthorName("Cochrane")
	if n.Literal != "Cochrane" {
		t.Errorf("Literal = %q, want Cochrane", n.Literal)
	}
	if n := parseAuthorName("   "); n != (CSLName{}) {
		t.Errorf("blank name = %+v, want zero", n)
	}
}

func TestFormatCSL(t *testing.T) {
	cs := []types.Citation{
		{ID: "pmid:1", Title: "First", Year: 2020},
		{ID: "url:https://example.org", Title: "Second"},
	}
	var buf bytes.Buffer
	if err := FormatCSL(cs, &buf); err != nil {
		t.Fatalf("FormatCSL: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"id: pmid-1", "title: First", "date-parts:", "title: Second"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
