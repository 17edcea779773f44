package dedup

import (
	"fmt"
	"strings"
	"time"

	"go-marugujarat-scraper/internal/models"
)

// Stored field names, in the order they are written.
const (
	fieldIdentity    = "identity"
	fieldTitle       = "title"
	fieldURL         = "url"
	fieldPublished   = "published_marker"
	fieldCategory    = "category"
	fieldApplyURL    = "apply_url"
	fieldDescription = "description"
	fieldFirstSeen   = "first_seen"
)

var storedFields = []string{
	fieldIdentity, fieldTitle, fieldURL, fieldPublished, fieldCategory,
	fieldApplyURL, fieldDescription, fieldFirstSeen,
}

// legacyFields maps names written by older exports to the stored field
// they carry, so those files load without losing a column.
var legacyFields = map[string]string{
	"link":              fieldURL,
	"page_link":         fieldURL,
	"publish_date":      fieldPublished,
	"posted_date":       fieldPublished,
	"apply_online_link": fieldApplyURL,
}

// canonicalField resolves a column or key name. ok is false for names the
// store does not know; loading such a file would drop data on the next flush.
func canonicalField(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, f := range storedFields {
		if name == f {
			return f, true
		}
	}
	f, ok := legacyFields[name]
	return f, ok
}

// addValue records v for field f found under name. Values under the current
// name go first so they win over legacy aliases.
func addValue(values map[string][]string, name, f, v string) {
	if strings.EqualFold(strings.TrimSpace(name), f) {
		values[f] = append([]string{v}, values[f]...)
		return
	}
	values[f] = append(values[f], v)
}

// entryFromFields builds an entry from resolved field values. When a field
// appears under several names the first non-empty value wins.
func entryFromFields(values map[string][]string) (Entry, error) {
	get := func(f string) string {
		for _, v := range values[f] {
			if v != "" {
				return v
			}
		}
		return ""
	}

	e := Entry{
		Identity: get(fieldIdentity),
		Listing: models.Listing{
			Title:           get(fieldTitle),
			URL:             get(fieldURL),
			PublishedMarker: get(fieldPublished),
			Category:        get(fieldCategory),
			ApplyURL:        get(fieldApplyURL),
			Description:     get(fieldDescription),
		},
	}
	if err := fillEntry(&e, get(fieldFirstSeen)); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// fillEntry derives a missing identity and parses the first-seen stamp.
// A missing stamp stays zero; Store.Load sets it to the load time.
func fillEntry(e *Entry, firstSeen string) error {
	if e.Identity == "" {
		id, err := e.Listing.Identity()
		if err != nil {
			return err
		}
		e.Identity = id
	}
	if firstSeen != "" {
		t, err := time.Parse(time.RFC3339Nano, firstSeen)
		if err != nil {
			return fmt.Errorf("invalid first_seen %q", firstSeen)
		}
		e.FirstSeen = t.UTC()
	}
	return nil
}
