package filter

import (
	"strings"
	"time"

	"go-marugujarat-scraper/internal/models"
)

type Decision int

const (
	Reject Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "reject"
}

// Reason names the rule that produced a decision.
type Reason string

const (
	ReasonBlacklisted  Reason = "blacklisted"
	ReasonNotWhitelist Reason = "not_whitelisted"
	ReasonTooOld       Reason = "too_old"
	ReasonMatched      Reason = "matched"
)

// Policy holds pre-normalized keyword terms. Build it with NewPolicy.
type Policy struct {
	whitelist []string
	blacklist []string

	//zero disables the recency check
	NotBefore time.Time
}

// NewPolicy normalizes the terms once. Blank terms are dropped.
func NewPolicy(whitelist, blacklist []string) Policy {
	return Policy{
		whitelist: normalizeTerms(whitelist),
		blacklist: normalizeTerms(blacklist),
	}
}

// WithMaxAge returns a copy that also rejects listings published more than
// maxAge before now. A non-positive maxAge leaves the policy unchanged.
func (p Policy) WithMaxAge(now time.Time, maxAge time.Duration) Policy {
	if maxAge > 0 {
		p.NotBefore = now.Add(-maxAge)
	}
	return p
}

func (p Policy) Whitelist() []string { return p.whitelist }
func (p Policy) Blacklist() []string { return p.blacklist }

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := models.NormalizeText(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Decide applies the keyword policy to a listing title.
// Blacklist terms always win; an empty whitelist accepts everything not blacklisted.
func Decide(rec models.Listing, p Policy) Decision {
	d, _ := Explain(rec, p)
	return d
}

// Explain is Decide plus the rule that fired.
func Explain(rec models.Listing, p Policy) (Decision, Reason) {
	title := models.NormalizeText(rec.Title)

	//must not contain blacklisted terms
	if containsAny(title, p.blacklist) {
		return Reject, ReasonBlacklisted
	}

	//must contain a whitelisted term unless the whitelist is empty
	if len(p.whitelist) > 0 && !containsAny(title, p.whitelist) {
		return Reject, ReasonNotWhitelist
	}

	//must be recent when a cut-off is set
	if !p.NotBefore.IsZero() && !PublishedAfter(rec.PublishedMarker, p.NotBefore) {
		return Reject, ReasonTooOld
	}

	return Accept, ReasonMatched
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
