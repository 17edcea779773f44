package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-marugujarat-scraper/internal/dedup"
	"go-marugujarat-scraper/internal/filter"
	"go-marugujarat-scraper/internal/models"
	"go-marugujarat-scraper/internal/scraper"

	"github.com/sirupsen/logrus"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseFetching   Phase = "fetching"
	PhaseExtracting Phase = "extracting"
	PhaseFiltering  Phase = "filtering"
	PhaseStoring    Phase = "storing"
	PhaseFlushing   Phase = "flushing"
	PhaseDone       Phase = "done"
)

type StopReason string

const (
	StopPageLimit StopReason = "page_limit"
	StopExhausted StopReason = "source_exhausted"
	StopPageError StopReason = "page_error"
	StopFatal     StopReason = "fatal"
	StopCanceled  StopReason = "canceled"
)

// Summary is the outcome of one run.
type Summary struct {
	PagesProcessed int
	Fetched        int
	Extracted      int
	Accepted       int
	Duplicates     int
	Stored         int
	Rejected       int
	Skipped        int
	Errors         int
	Duration       time.Duration
	StopReason     StopReason
}

func (s Summary) String() string {
	return fmt.Sprintf("pages=%d fetched=%d extracted=%d accepted=%d stored=%d duplicates=%d rejected=%d skipped=%d errors=%d duration=%s stop=%s",
		s.PagesProcessed, s.Fetched, s.Extracted, s.Accepted, s.Stored, s.Duplicates,
		s.Rejected, s.Skipped, s.Errors, s.Duration.Round(time.Millisecond), s.StopReason)
}

// Store is the part of *dedup.Store the runner drives.
type Store interface {
	Location() string
	Load(ctx context.Context) (*dedup.State, error)
	Contains(identity string) bool
	Put(l models.Listing) (dedup.PutResult, error)
	Flush(ctx context.Context) error
}

// Enricher adds detail-page fields to a listing before it is stored.
type Enricher interface {
	Enrich(ctx context.Context, l *models.Listing) error
}

type Option func(*Runner)

func WithEnricher(e Enricher) Option {
	return func(r *Runner) { r.enricher = e }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Runner) { r.log = log }
}

// WithTitleCleaner rewrites the title of accepted listings before they are stored.
// Filtering always sees the title as extracted.
func WithTitleCleaner(clean func(string) string) Option {
	return func(r *Runner) { r.cleanTitle = clean }
}

// WithFlushPerPage makes every processed page durable before the next fetch.
func WithFlushPerPage(on bool) Option {
	return func(r *Runner) { r.flushPerPage = on }
}

// Runner drives pagination: fetch, extract, filter, store, one page at a time.
type Runner struct {
	fetcher   scraper.Fetcher
	extractor scraper.Extractor
	policy    filter.Policy
	store     Store
	pages     int

	enricher     Enricher
	cleanTitle   func(string) string
	flushPerPage bool
	log          logrus.FieldLogger
	phase        Phase
}

func New(f scraper.Fetcher, x scraper.Extractor, p filter.Policy, s Store, pages int, opts ...Option) *Runner {
	r := &Runner{
		fetcher:   f,
		extractor: x,
		policy:    p,
		store:     s,
		pages:     pages,
		log:       logrus.StandardLogger(),
		phase:     PhaseIdle,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Phase is the current position in the run, for diagnostics.
func (r *Runner) Phase() Phase { return r.phase }

func (r *Runner) enter(p Phase, fields logrus.Fields) {
	r.phase = p
	r.log.WithFields(fields).WithField("phase", p).Debug("phase")
}

// Run performs one scrape. A corrupt store or a failure on the first page is
// fatal; a failure on a later page ends the run early but keeps what was stored.
func (r *Runner) Run(ctx context.Context) (sum Summary, err error) {
	start := time.Now()
	defer func() {
		sum.Duration = time.Since(start)
		r.enter(PhaseIdle, nil)
	}()

	r.enter(PhaseLoading, logrus.Fields{"store": r.store.Location()})
	if _, err := r.store.Load(ctx); err != nil {
		sum.StopReason = StopFatal
		return sum, fmt.Errorf("load store: %w", err)
	}

	sum.StopReason = StopPageLimit
	for n := 1; n <= r.pages; n++ {
		stop, err := r.processPage(ctx, n, &sum)
		if err != nil {
			if ctx.Err() != nil {
				sum.StopReason = StopCanceled
				//keep what was collected
				if ferr := r.flush(context.WithoutCancel(ctx)); ferr != nil {
					return sum, errors.Join(err, ferr)
				}
				return sum, err
			}
			sum.Errors++
			if n == 1 {
				sum.StopReason = StopFatal
				return sum, err
			}
			r.log.WithError(err).WithField("page", n).Warn("⚠️ Page failed, ending run early")
			sum.StopReason = StopPageError
			break
		}
		if stop {
			sum.StopReason = StopExhausted
			break
		}
		sum.PagesProcessed++

		if r.flushPerPage {
			if err := r.flush(ctx); err != nil {
				sum.StopReason = StopFatal
				return sum, err
			}
		}
	}

	if err := r.flush(ctx); err != nil {
		sum.StopReason = StopFatal
		return sum, err
	}
	r.enter(PhaseDone, logrus.Fields{"stop": sum.StopReason})
	return sum, nil
}

// processPage handles page n. stop is true when the page had no listings.
func (r *Runner) processPage(ctx context.Context, n int, sum *Summary) (stop bool, err error) {
	log := r.log.WithField("page", n)

	r.enter(PhaseFetching, logrus.Fields{"page": n})
	log.Info("📄 Fetching page")
	raw, err := r.fetcher.Fetch(ctx, n)
	if err != nil {
		return false, err
	}
	sum.Fetched++

	r.enter(PhaseExtracting, logrus.Fields{"page": n})
	page, err := r.extractor.Extract(raw)
	if err != nil {
		return false, fmt.Errorf("page %d: %w", n, err)
	}
	sum.Skipped += page.Skipped()
	if page.Skipped() > 0 {
		log.WithField("skipped", page.Skipped()).Warn("⚠️ Malformed listing blocks skipped")
	}
	if page.Len() == 0 {
		log.Info("🏁 No listings on page, source exhausted")
		return true, nil
	}

	var accepted, stored, dups int
	for l := range page.Listings() {
		sum.Extracted++

		r.enter(PhaseFiltering, logrus.Fields{"page": n})
		decision, reason := filter.Explain(l, r.policy)
		if decision == filter.Reject {
			sum.Rejected++
			log.WithFields(logrus.Fields{"title": l.Title, "reason": reason}).Debug("filtered out")
			continue
		}
		sum.Accepted++
		accepted++
		if r.cleanTitle != nil {
			//a title that cleans down to nothing is kept as is
			if t := r.cleanTitle(l.Title); t != "" {
				l.Title = t
			}
		}

		r.enter(PhaseStoring, logrus.Fields{"page": n})
		res, err := r.put(ctx, &l, sum)
		if err != nil {
			if errors.Is(err, models.ErrNoIdentity) {
				sum.Skipped++
				log.WithField("title", l.Title).Warn("⚠️ Listing without identity skipped")
				continue
			}
			return false, err
		}
		switch res {
		case dedup.Inserted:
			sum.Stored++
			stored++
		case dedup.AlreadyPresent:
			sum.Duplicates++
			dups++
		}
	}

	log.WithFields(logrus.Fields{
		"extracted":  page.Len(),
		"accepted":   accepted,
		"stored":     stored,
		"duplicates": dups,
	}).Infof("✅ Page %d done", n)
	return false, nil
}

// put enriches new listings when configured, then puts them.
func (r *Runner) put(ctx context.Context, l *models.Listing, sum *Summary) (dedup.PutResult, error) {
	id, err := l.Identity()
	if err != nil {
		return 0, err
	}
	if r.enricher != nil && !r.store.Contains(id) {
		if err := r.enricher.Enrich(ctx, l); err != nil {
			if ctx.Err() != nil {
				return 0, err
			}
			sum.Errors++
			r.log.WithError(err).WithField("url", l.URL).Warn("⚠️ Detail page failed, storing listing without details")
		}
	}
	res, err := r.store.Put(*l)
	if err != nil {
		return 0, fmt.Errorf("store listing: %w", err)
	}
	return res, nil
}

func (r *Runner) flush(ctx context.Context) error {
	r.enter(PhaseFlushing, nil)
	if err := r.store.Flush(ctx); err != nil {
		return fmt.Errorf("flush store: %w", err)
	}
	return nil
}
