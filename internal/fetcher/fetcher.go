package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

const defaultMaxBody = 10 << 20

// Options is the resolved fetcher configuration.
type Options struct {
	BaseURL string
	//appended for pages > 1, "{page}" is replaced by the page number
	PaginationSuffix  string
	Timeout           time.Duration
	Retry             RetryPolicy
	RequestsPerMinute int
	RotateUserAgent   bool
	UserAgent         string
	RespectRobots     bool
	MaxBodyBytes      int64
}

type Option func(*Fetcher)

// WithHTTPClient replaces the default client, e.g. with one pointed at a test server.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(f *Fetcher) { f.log = log }
}

// Fetcher downloads listing pages politely: every attempt waits for the
// shared rate limiter, failures are retried per the RetryPolicy.
type Fetcher struct {
	opts    Options
	base    *url.URL
	client  *http.Client
	limiter *rate.Limiter
	agents  *agentPicker
	log     logrus.FieldLogger

	robotsOnce sync.Once
	robots     *robotstxt.Group
}

func New(opts Options, options ...Option) (*Fetcher, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}
	if opts.PaginationSuffix == "" {
		opts.PaginationSuffix = "?_page={page}"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}

	f := &Fetcher{
		opts:    opts,
		base:    base,
		client:  &http.Client{},
		limiter: newLimiter(opts.RequestsPerMinute),
		agents:  newAgentPicker(opts.RotateUserAgent, opts.UserAgent),
		log:     logrus.StandardLogger(),
	}
	for _, o := range options {
		o(f)
	}
	return f, nil
}

// newLimiter spaces requests evenly: one every minute/rpm, no bursting.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
}

// PageURL returns the address of listing page n.
func (f *Fetcher) PageURL(page int) (string, error) {
	if page < 1 {
		return "", ErrInvalidPage
	}
	if page == 1 {
		return f.base.String(), nil
	}

	suffix := strings.ReplaceAll(f.opts.PaginationSuffix, "{page}", strconv.Itoa(page))
	u := *f.base
	if strings.HasPrefix(suffix, "?") || strings.HasPrefix(suffix, "&") {
		extra, err := url.ParseQuery(suffix[1:])
		if err != nil {
			return "", fmt.Errorf("invalid pagination suffix %q: %w", f.opts.PaginationSuffix, err)
		}
		q := u.Query()
		for k, vs := range extra {
			q[k] = vs
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(suffix, "/")
	u.RawPath = ""
	return u.String(), nil
}

// Fetch downloads listing page n and returns its body decoded to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, page int) ([]byte, error) {
	target, err := f.PageURL(page)
	if err != nil {
		return nil, err
	}
	return f.do(ctx, page, target)
}

// Get downloads an arbitrary page, typically a listing's detail page.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return f.do(ctx, 0, rawURL)
}

func (f *Fetcher) do(ctx context.Context, page int, target string) ([]byte, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, &FetchError{Kind: KindConnection, Page: page, URL: target, Err: err}
	}
	if !f.allowed(ctx, u) {
		return nil, &FetchError{Kind: KindDisallowed, Page: page, URL: target, Err: errors.New("blocked by robots.txt")}
	}

	log := f.log.WithFields(logrus.Fields{"url": target})
	if page > 0 {
		log = log.WithField("page", page)
	}

	attempts := f.opts.Retry.attempts()
	var lastErr *FetchError
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		body, ferr := f.attempt(ctx, page, target)
		if ferr == nil {
			log.WithField("bytes", len(body)).Debug("📥 Fetched")
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", target, ctx.Err())
		}

		ferr.Attempts = attempt
		lastErr = ferr
		if !ferr.Retryable() || attempt == attempts {
			break
		}

		wait := f.opts.Retry.backoff(attempt)
		log.WithError(ferr).WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("⚠️ Request failed, retrying")
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", target, err)
		}
	}

	log.WithError(lastErr).Error("❌ Giving up")
	return nil, lastErr
}

// attempt performs one request under the per-request timeout.
func (f *Fetcher) attempt(ctx context.Context, page int, target string) ([]byte, *FetchError) {
	reqCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindConnection, Page: page, URL: target, Err: err}
	}
	req.Header.Set("User-Agent", f.agents.pick())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,gu;q=0.8")
	if page > 1 {
		req.Header.Set("Referer", f.base.String())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classify(err), Page: page, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		//drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &FetchError{Kind: KindHTTPStatus, Page: page, URL: target, Status: resp.StatusCode}
	}

	//one byte past the cap tells a full body from a cut one
	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{Kind: classify(err), Page: page, URL: target, Status: resp.StatusCode, Err: err}
	}
	if int64(len(raw)) > f.opts.MaxBodyBytes {
		return nil, &FetchError{
			Kind:   KindTooLarge,
			Page:   page,
			URL:    target,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("body exceeds %d bytes", f.opts.MaxBodyBytes),
		}
	}

	return f.decode(raw, resp.Header.Get("Content-Type"), target), nil
}

// decode converts body to UTF-8 using the declared or sniffed charset.
// Undecodable bodies are returned as received.
func (f *Fetcher) decode(raw []byte, contentType, target string) []byte {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		f.log.WithError(err).WithField("url", target).Warn("⚠️ Unknown charset, keeping raw body")
		return raw
	}
	body, err := io.ReadAll(r)
	if err != nil {
		f.log.WithError(err).WithField("url", target).Warn("⚠️ Charset decode failed, keeping raw body")
		return raw
	}
	return body
}
