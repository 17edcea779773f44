package models

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrNoIdentity is returned for a listing that has neither a usable URL nor a title.
var ErrNoIdentity = errors.New("listing has no identity")

// Listing is one job notification as presented on the listing page.
type Listing struct {
	Title           string `json:"title"`
	URL             string `json:"url"`
	PublishedMarker string `json:"published_marker,omitempty"`
	Category        string `json:"category,omitempty"`

	//filled by detail enrichment only
	ApplyURL    string `json:"apply_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Identity returns the stable dedup key for the listing.
// The normalized URL wins; a listing without one falls back to its normalized title.
func (l Listing) Identity() (string, error) {
	if u := NormalizeURL(l.URL); u != "" {
		return u, nil
	}
	if t := NormalizeText(l.Title); t != "" {
		return "title:" + t, nil
	}
	return "", ErrNoIdentity
}

// NormalizeText applies NFKC, Unicode case folding and whitespace collapsing.
// Combining marks are kept: Gujarati vowel signs are Mn and stripping them changes the word.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeURL canonicalizes an absolute http(s) URL so the same page always
// yields the same string. Anything else normalizes to "".
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""

	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				if b.Len() > 0 {
					b.WriteByte('&')
				}
				b.WriteString(url.QueryEscape(k))
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = b.String()
	}

	return u.String()
}
