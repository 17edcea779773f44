package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// loadRobots fetches /robots.txt for the base host once.
// Any failure leaves the fetcher allowing everything.
func (f *Fetcher) loadRobots(ctx context.Context) {
	f.robotsOnce.Do(func() {
		u, err := url.Parse(f.opts.BaseURL)
		if err != nil {
			return
		}
		robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
		log := f.log.WithField("url", robotsURL)
		log.Debug("🤖 Loading robots.txt")

		if err := f.limiter.Wait(ctx); err != nil {
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return
		}
		req.Header.Set("User-Agent", f.agents.pick())

		resp, err := f.client.Do(req)
		if err != nil {
			log.WithError(err).Warn("⚠️ Failed to load robots.txt (ignored)")
			return
		}
		defer resp.Body.Close()

		data, err := robotstxt.FromResponse(resp)
		if err != nil {
			log.WithError(err).Warn("⚠️ Failed to parse robots.txt (ignored)")
			return
		}
		f.robots = data.FindGroup(f.agents.robotsAgent())
		log.WithFields(logrus.Fields{"status": resp.StatusCode}).Info("✅ robots.txt applied")
	})
}

func (f *Fetcher) allowed(ctx context.Context, target *url.URL) bool {
	if !f.opts.RespectRobots {
		return true
	}
	f.loadRobots(ctx)
	if f.robots == nil {
		return true
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return f.robots.Test(path)
}
