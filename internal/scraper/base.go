// Define the interfaces between the page source and the parser
// Keep the orchestrator independent of the concrete site

package scraper

import (
	"context"
	"fmt"
	"iter"

	"go-marugujarat-scraper/internal/models"
)

// Fetcher retrieves raw listing pages and detail pages.
type Fetcher interface {
	//Fetch returns the UTF-8 body of listing page n (n >= 1)
	Fetch(ctx context.Context, page int) ([]byte, error)

	//Get returns the UTF-8 body of an arbitrary URL on the same budget
	Get(ctx context.Context, rawURL string) ([]byte, error)
}

// Extractor turns one fetched listing page into records.
type Extractor interface {
	Extract(raw []byte) (*Page, error)
}

// Page is the result of extracting one listing page.
type Page struct {
	listings []models.Listing
	skipped  int
}

// NewPage builds a Page from already extracted listings.
func NewPage(listings []models.Listing, skipped int) *Page {
	return &Page{listings: listings, skipped: skipped}
}

// Listings yields the extracted records in document order.
// The sequence can be ranged over more than once.
func (p *Page) Listings() iter.Seq[models.Listing] {
	return func(yield func(models.Listing) bool) {
		if p == nil {
			return
		}
		for _, l := range p.listings {
			if !yield(l) {
				return
			}
		}
	}
}

// Len is the number of well-formed listings on the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.listings)
}

// Skipped is the number of malformed blocks dropped during extraction.
func (p *Page) Skipped() int {
	if p == nil {
		return 0
	}
	return p.skipped
}

// ParseError reports markup that does not look like a listing page at all.
type ParseError struct {
	Reason string
	Detail string
}

const ReasonUnrecognizedStructure = "unrecognized_structure"

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("parse error: %s", e.Reason)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Reason, e.Detail)
}
