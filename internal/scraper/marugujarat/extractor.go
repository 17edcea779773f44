package marugujarat

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go-marugujarat-scraper/internal/models"
	"go-marugujarat-scraper/internal/scraper"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locate the listing grid on a page.
type Selectors struct {
	Container string
	Item      string
	Title     string
	//empty means the title element itself (or the first link in the item)
	Link     string
	Date     string
	Category string
}

// DefaultSelectors match the content-views grid used on the listing pages.
func DefaultSelectors() Selectors {
	return Selectors{
		Container: ".pt-cv-view",
		Item:      ".pt-cv-content-item",
		Title:     ".pt-cv-title a",
		Date:      ".entry-date",
		Category:  ".terms a",
	}
}

// Extractor parses listing pages into models.Listing records.
type Extractor struct {
	base *url.URL
	sel  Selectors
}

func NewExtractor(baseURL string, sel Selectors) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if sel.Item == "" || sel.Title == "" {
		return nil, fmt.Errorf("item and title selectors are required")
	}
	return &Extractor{base: base, sel: sel}, nil
}

// Extract reads one listing page.
// A page whose grid is present but empty yields an empty Page, not an error.
func (e *Extractor) Extract(raw []byte) (*scraper.Page, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &scraper.ParseError{Reason: scraper.ReasonUnrecognizedStructure, Detail: "empty document"}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &scraper.ParseError{Reason: scraper.ReasonUnrecognizedStructure, Detail: err.Error()}
	}

	items := doc.Find(e.sel.Item)
	//ajax fragments carry bare title links without the item wrapper
	bare := items.Length() == 0 && e.sel.Title != ""
	if bare {
		items = doc.Find(e.sel.Title)
	}

	hasContainer := e.sel.Container != "" && doc.Find(e.sel.Container).Length() > 0
	if items.Length() == 0 && !hasContainer {
		return nil, &scraper.ParseError{Reason: scraper.ReasonUnrecognizedStructure, Detail: "no listing grid found"}
	}

	var listings []models.Listing
	skipped := 0
	items.Each(func(_ int, item *goquery.Selection) {
		var l models.Listing
		var ok bool
		if bare {
			l, ok = e.fromTitle(item)
		} else {
			l, ok = e.fromItem(item)
		}
		if !ok {
			skipped++
			return
		}
		listings = append(listings, l)
	})

	return scraper.NewPage(listings, skipped), nil
}

func (e *Extractor) fromItem(item *goquery.Selection) (models.Listing, bool) {
	titleSel := item.Find(e.sel.Title).First()
	title := cleanText(titleSel.Text())
	if title == "" {
		return models.Listing{}, false
	}

	var href string
	switch {
	case e.sel.Link != "":
		href, _ = item.Find(e.sel.Link).First().Attr("href")
	case goquery.NodeName(titleSel) == "a":
		href, _ = titleSel.Attr("href")
	default:
		href, _ = item.Find("a[href]").First().Attr("href")
	}
	link, ok := e.resolve(href)
	if !ok {
		return models.Listing{}, false
	}

	l := models.Listing{Title: title, URL: link}
	if e.sel.Date != "" {
		l.PublishedMarker = cleanText(item.Find(e.sel.Date).First().Text())
	}
	if e.sel.Category != "" {
		var cats []string
		item.Find(e.sel.Category).Each(func(_ int, c *goquery.Selection) {
			if t := cleanText(c.Text()); t != "" {
				cats = append(cats, t)
			}
		})
		l.Category = strings.Join(cats, ", ")
	}
	return l, true
}

func (e *Extractor) fromTitle(a *goquery.Selection) (models.Listing, bool) {
	title := cleanText(a.Text())
	if title == "" {
		return models.Listing{}, false
	}
	href, _ := a.Attr("href")
	link, ok := e.resolve(href)
	if !ok {
		return models.Listing{}, false
	}
	return models.Listing{Title: title, URL: link}, true
}

// resolve makes href absolute against the base URL. Only http(s) links are usable.
func (e *Extractor) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := e.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}

var (
	nonASCIIRegex = regexp.MustCompile(`[^\x00-\x7F]+`)
	parensRegex   = regexp.MustCompile(`\([^)]*\)`)
	cutRegex      = regexp.MustCompile(`[-:|]`)
)

// CleanTitle strips emoji and other non-ASCII text, parenthesised notes and
// everything after the first "-", ":" or "|".
func CleanTitle(title string) string {
	title = nonASCIIRegex.ReplaceAllString(title, "")
	title = parensRegex.ReplaceAllString(title, "")
	title = cutRegex.Split(title, 2)[0]
	return cleanText(title)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
