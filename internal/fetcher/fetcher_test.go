package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, srv *httptest.Server, mutate func(*Options)) *Fetcher {
	t.Helper()
	opts := Options{
		BaseURL: srv.URL + "/maru-gujarat/",
		Timeout: time.Second,
		Retry:   RetryPolicy{MaxAttempts: 3, Delay: 10 * time.Millisecond},
	}
	if mutate != nil {
		mutate(&opts)
	}
	log, _ := test.NewNullLogger()
	f, err := New(opts, WithHTTPClient(srv.Client()), WithLogger(log))
	require.NoError(t, err)
	return f
}

func TestPageURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		suffix string
		page   int
		want   string
	}{
		{"first page is base", "https://example.com/maru-gujarat/", "", 1, "https://example.com/maru-gujarat/"},
		{"query suffix", "https://example.com/maru-gujarat/", "?_page={page}", 3, "https://example.com/maru-gujarat/?_page=3"},
		{"query merged", "https://example.com/jobs?cat=gpsc", "&_page={page}", 2, "https://example.com/jobs?_page=2&cat=gpsc"},
		{"path suffix", "https://example.com/maru-gujarat/", "page/{page}/", 2, "https://example.com/maru-gujarat/page/2/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(Options{BaseURL: tt.base, PaginationSuffix: tt.suffix})
			require.NoError(t, err)
			got, err := f.PageURL(tt.page)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch_InvalidPage(t *testing.T) {
	f, err := New(Options{BaseURL: "https://example.com/"})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("_page"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)
	body, err := f.Fetch(context.Background(), 2)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ok")
}

func TestFetch_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		//"café" in latin-1
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)
	body, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "café", string(body))
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)
	body, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)
	_, err := f.Fetch(context.Background(), 2)

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, KindHTTPStatus, ferr.Kind)
	assert.Equal(t, http.StatusTooManyRequests, ferr.Status)
	assert.Equal(t, 3, ferr.Attempts)
	assert.Equal(t, 2, ferr.Page)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, nil)
	_, err := f.Fetch(context.Background(), 1)

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, KindHTTPStatus, ferr.Kind)
	assert.Equal(t, http.StatusNotFound, ferr.Status)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_BodyLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"under the cap", 999, false},
		{"exactly the cap", 1000, false},
		{"over the cap", 2000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				_, _ = w.Write([]byte(strings.Repeat("a", tt.size)))
			}))
			defer srv.Close()

			f := newTestFetcher(t, srv, func(o *Options) { o.MaxBodyBytes = 1000 })
			body, err := f.Fetch(context.Background(), 1)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Len(t, body, tt.size)
				return
			}
			var ferr *FetchError
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, KindTooLarge, ferr.Kind)
			assert.False(t, ferr.Retryable())
			assert.Equal(t, 1, ferr.Attempts)
			assert.Equal(t, int32(1), calls.Load())
			assert.Nil(t, body)
		})
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := newTestFetcher(t, srv, func(o *Options) {
		o.Timeout = 50 * time.Millisecond
		o.Retry = RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}
	})
	_, err := f.Fetch(context.Background(), 1)

	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, KindTimeout, ferr.Kind)
	assert.Equal(t, 2, ferr.Attempts)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	log, _ := test.NewNullLogger()
	f, err := New(Options{
		BaseURL: base + "/",
		Timeout: time.Second,
		Retry:   RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond},
	}, WithLogger(log))
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), 1)
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, KindConnection, ferr.Kind)
	assert.Equal(t, 2, ferr.Attempts)
}

func TestFetch_RotatesUserAgent(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.UserAgent())
		mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, func(o *Options) { o.RotateUserAgent = true })
	for page := 1; page <= 4; page++ {
		_, err := f.Fetch(context.Background(), page)
		require.NoError(t, err)
	}

	require.Len(t, agents, 4)
	for i := 1; i < len(agents); i++ {
		assert.NotEqual(t, agents[i-1], agents[i])
	}
}

func TestFetch_FixedUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gov-jobs-bot/2.0", r.UserAgent())
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, func(o *Options) { o.UserAgent = "gov-jobs-bot/2.0" })
	_, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)
}

func TestFetch_RateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	//600 rpm = one request every 100ms
	f := newTestFetcher(t, srv, func(o *Options) { o.RequestsPerMinute = 600 })

	start := time.Now()
	for page := 1; page <= 3; page++ {
		_, err := f.Fetch(context.Background(), page)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 190*time.Millisecond)
}

func TestFetch_RespectsRobots(t *testing.T) {
	var listingHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		listingHits.Add(1)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, func(o *Options) { o.RespectRobots = true })

	_, err := f.Fetch(context.Background(), 1)
	require.NoError(t, err)

	_, err = f.Get(context.Background(), srv.URL+"/private/post")
	var ferr *FetchError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, KindDisallowed, ferr.Kind)
	assert.False(t, ferr.Retryable())
	assert.Equal(t, int32(1), listingHits.Load())
}

func TestFetch_CanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := newTestFetcher(t, srv, func(o *Options) {
		o.Retry = RetryPolicy{MaxAttempts: 5, Delay: time.Hour}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	fixed := RetryPolicy{Delay: time.Second}
	assert.Equal(t, time.Second, fixed.backoff(1))
	assert.Equal(t, time.Second, fixed.backoff(3))

	linear := RetryPolicy{Delay: time.Second, Linear: true}
	assert.Equal(t, 3*time.Second, linear.backoff(3))

	jittered := RetryPolicy{Delay: time.Second, Jitter: 500 * time.Millisecond}
	d := jittered.backoff(1)
	assert.GreaterOrEqual(t, d, time.Second)
	assert.Less(t, d, 1500*time.Millisecond)

	assert.Equal(t, 1, RetryPolicy{}.attempts())
}
