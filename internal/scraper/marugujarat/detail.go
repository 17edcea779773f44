package marugujarat

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"go-marugujarat-scraper/internal/models"
	"go-marugujarat-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

const maxDescriptionRunes = 500

// applyRowLabels are tried in order against the first cell of the links table.
var applyRowLabels = []string{"Apply Online", "Official Portal"}

// Enricher fills the optional listing fields from the detail page.
type Enricher struct {
	fetcher scraper.Fetcher
}

func NewEnricher(f scraper.Fetcher) *Enricher {
	return &Enricher{fetcher: f}
}

// Enrich fetches l.URL and sets PublishedMarker (when missing), ApplyURL and Description.
// On error l is left untouched.
func (e *Enricher) Enrich(ctx context.Context, l *models.Listing) error {
	body, err := e.fetcher.Get(ctx, l.URL)
	if err != nil {
		return err
	}
	d, err := ParseDetail(body, l.URL)
	if err != nil {
		return err
	}

	if l.PublishedMarker == "" {
		l.PublishedMarker = d.Published
	}
	if d.ApplyURL != "" {
		l.ApplyURL = d.ApplyURL
	}
	if d.Description != "" {
		l.Description = d.Description
	}
	return nil
}

// Detail is what a single post page contributes to a listing.
type Detail struct {
	Published   string
	ApplyURL    string
	Description string
}

func ParseDetail(raw []byte, pageURL string) (Detail, error) {
	var d Detail
	page, err := url.Parse(pageURL)
	if err != nil {
		return d, fmt.Errorf("invalid detail url %q: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return d, &scraper.ParseError{Reason: scraper.ReasonUnrecognizedStructure, Detail: err.Error()}
	}

	d.Published = cleanText(doc.Find("time.entry-date.published").First().Text())
	d.ApplyURL = applyLink(doc, page)

	article, err := readability.FromReader(bytes.NewReader(raw), page)
	if err == nil {
		d.Description = truncateRunes(cleanText(article.Excerpt), maxDescriptionRunes)
	}
	return d, nil
}

// applyLink looks for two-column rows labelled "Apply Online", then "Official Portal".
func applyLink(doc *goquery.Document, page *url.URL) string {
	rows := doc.Find("tr")
	for _, label := range applyRowLabels {
		var found string
		rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
			cols := row.Find("td")
			if cols.Length() != 2 {
				return true
			}
			if !strings.Contains(strings.TrimSpace(cols.Eq(0).Text()), label) {
				return true
			}
			href, ok := cols.Eq(1).Find("a[href]").First().Attr("href")
			if !ok {
				return true
			}
			ref, err := url.Parse(strings.TrimSpace(href))
			if err != nil {
				return true
			}
			found = page.ResolveReference(ref).String()
			return false
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}
