package main

import (
	"flag"
	"fmt"
	"strings"

	"go-marugujarat-scraper/internal/config"

	"github.com/sirupsen/logrus"
)

func main() {
	path := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	fmt.Println("🔧 Testing config loading...")
	cfg, err := config.Load(*path)
	if err != nil {
		logrus.WithError(err).Fatal("❌ Failed to load config")
	}
	source := cfg.Source
	if source == "" {
		source = "(defaults)"
	}
	fmt.Printf("✅ Config loaded successfully from %s\n", source)
	fmt.Printf("   Base URL: %s\n", cfg.BaseURL)
	fmt.Printf("   Pages: %d\n", cfg.PagesToScrape)
	fmt.Printf("   Whitelist: %d terms (%s...)\n", len(cfg.Whitelist()), preview(cfg.Whitelist()))
	fmt.Printf("   Blacklist: %d terms (%s...)\n", len(cfg.Blacklist()), preview(cfg.Blacklist()))
	fmt.Printf("   Max age: %d days\n", cfg.MaxAgeDays)
	fmt.Printf("   Storage: %s, dir=%s, prefix=%s, flush_per_page=%t\n",
		cfg.Storage.Format, cfg.Storage.Directory, cfg.Storage.FilenamePrefix, cfg.Storage.FlushPerPage)
	fmt.Printf("   Scraper: timeout=%s retries=%d delay=%s backoff=%s jitter=%t\n",
		cfg.Scraper.Timeout(), cfg.Scraper.Attempts(), cfg.Scraper.Delay(), cfg.Scraper.RetryBackoff, cfg.Scraper.Jitter())
	fmt.Printf("   Rate limit: %d req/min, rotate UA=%t, robots=%t, details=%t\n",
		cfg.Scraper.RateLimit.RequestsPerMinute, cfg.Scraper.RotateUserAgent(), cfg.Scraper.RespectRobotsTxt, cfg.Scraper.FetchDetails)
	fmt.Printf("   Selectors: item=%q title=%q date=%q\n", cfg.Parser.ItemSelector, cfg.Parser.TitleSelector, cfg.Parser.DateSelector)
	fmt.Printf("   Logging: level=%s format=%s file=%s\n", cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if cfg.Telegram.Enabled() {
		fmt.Printf("   Telegram: chat %d, token %s...\n", cfg.Telegram.ChatID, cfg.Telegram.Token[:min(10, len(cfg.Telegram.Token))])
	} else {
		fmt.Println("   Telegram: disabled")
	}
}

func preview(terms []string) string {
	return strings.Join(terms[:min(3, len(terms))], ", ")
}
