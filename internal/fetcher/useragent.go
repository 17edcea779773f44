package fetcher

import "sync"

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36",
}

const defaultUserAgent = "Mozilla/5.0 (compatible; marugujarat-scraper/1.0)"

// agentPicker hands out User-Agent values. With rotation on it walks the pool
// round-robin, so two consecutive requests never share a value.
type agentPicker struct {
	mu     sync.Mutex
	rotate bool
	fixed  string
	next   int
}

func newAgentPicker(rotate bool, fixed string) *agentPicker {
	if fixed == "" {
		fixed = defaultUserAgent
	}
	return &agentPicker{rotate: rotate, fixed: fixed}
}

func (p *agentPicker) pick() string {
	if !p.rotate {
		return p.fixed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ua := userAgents[p.next%len(userAgents)]
	p.next++
	return ua
}

// robotsAgent is the name matched against robots.txt groups.
func (p *agentPicker) robotsAgent() string {
	if p.rotate {
		return "*"
	}
	return p.fixed
}
