package marugujarat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go-marugujarat-scraper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailPage = `<html><head><title>GPSC Recruitment 2025</title></head><body>
<article>
  <header><h1 class="entry-title">GPSC Recruitment 2025</h1>
  <time class="entry-date published" datetime="2025-03-05T10:00:00+05:30">March 5, 2025</time></header>
  <div class="entry-content">
    <p>Gujarat Public Service Commission has published an advertisement for the recruitment of various Class 1 and Class 2 posts. Eligible candidates can apply online before the last date.</p>
    <table>
      <tr><td>Official Portal</td><td><a href="https://gpsc.gujarat.gov.in/">Click Here</a></td></tr>
      <tr><td>Notification</td><td><a href="/files/notification.pdf">Download</a></td></tr>
      <tr><td>Apply Online</td><td><a href="https://gpsc-ojas.gujarat.gov.in/">Click Here</a></td></tr>
    </table>
  </div>
</article>
</body></html>`

type stubFetcher struct {
	pages map[string]string
	err   error
}

func (s *stubFetcher) Fetch(ctx context.Context, page int) ([]byte, error) {
	return nil, errors.New("not used")
}

func (s *stubFetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.pages[rawURL]), nil
}

func TestParseDetail(t *testing.T) {
	d, err := ParseDetail([]byte(detailPage), "https://www.marugujarat.in/gpsc-2025/")
	require.NoError(t, err)

	assert.Equal(t, "March 5, 2025", d.Published)
	//apply online wins over official portal even though it comes later
	assert.Equal(t, "https://gpsc-ojas.gujarat.gov.in/", d.ApplyURL)
}

func TestParseDetail_OfficialPortalFallback(t *testing.T) {
	html := `<table><tr><td>Official Portal</td><td><a href="/portal">Open</a></td></tr></table>`
	d, err := ParseDetail([]byte(html), "https://www.marugujarat.in/post/")
	require.NoError(t, err)
	assert.Equal(t, "https://www.marugujarat.in/portal", d.ApplyURL)
	assert.Empty(t, d.Published)
}

func TestEnricher(t *testing.T) {
	const link = "https://www.marugujarat.in/gpsc-2025/"
	e := NewEnricher(&stubFetcher{pages: map[string]string{link: detailPage}})

	l := models.Listing{Title: "GPSC Recruitment 2025", URL: link}
	require.NoError(t, e.Enrich(context.Background(), &l))

	assert.Equal(t, "March 5, 2025", l.PublishedMarker)
	assert.Equal(t, "https://gpsc-ojas.gujarat.gov.in/", l.ApplyURL)
}

func TestEnricher_KeepsListingDate(t *testing.T) {
	const link = "https://www.marugujarat.in/gpsc-2025/"
	e := NewEnricher(&stubFetcher{pages: map[string]string{link: detailPage}})

	l := models.Listing{Title: "GPSC", URL: link, PublishedMarker: "5 March 2025"}
	require.NoError(t, e.Enrich(context.Background(), &l))
	assert.Equal(t, "5 March 2025", l.PublishedMarker)
}

func TestEnricher_FetchError(t *testing.T) {
	e := NewEnricher(&stubFetcher{err: errors.New("boom")})

	l := models.Listing{Title: "GPSC", URL: "https://www.marugujarat.in/x/"}
	err := e.Enrich(context.Background(), &l)
	assert.Error(t, err)
	assert.Empty(t, l.ApplyURL)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	got := truncateRunes(strings.Repeat("ગ", 20), 5)
	assert.Equal(t, strings.Repeat("ગ", 5)+"…", got)
}
