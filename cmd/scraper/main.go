package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-marugujarat-scraper/internal/config"
	"go-marugujarat-scraper/internal/dedup"
	"go-marugujarat-scraper/internal/fetcher"
	"go-marugujarat-scraper/internal/filter"
	"go-marugujarat-scraper/internal/logger"
	"go-marugujarat-scraper/internal/reporter"
	"go-marugujarat-scraper/internal/runner"
	"go-marugujarat-scraper/internal/scraper/marugujarat"

	"github.com/sirupsen/logrus"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config.yaml (default ./config.yaml if present)")
	pages := flag.Int("pages", 0, "override pages_to_scrape")
	format := flag.String("format", "", "override storage.format (csv, json, sqlite, postgres, mongo)")
	flag.Parse()

	//load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Error("❌ Failed to load config")
		return 1
	}
	if *pages > 0 {
		cfg.PagesToScrape = *pages
	}
	if *format != "" {
		cfg.Storage.Format = *format
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Error("❌ Invalid config")
		return 1
	}

	log, closer, err := logger.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Error("❌ Failed to init logger")
		return 1
	}
	defer closer.Close()

	log.WithFields(logrus.Fields{
		"config":  cfg.Source,
		"pages":   cfg.PagesToScrape,
		"storage": cfg.Storage.Format,
	}).Info("🔧 Config loaded")

	//stop cleanly on ctrl-c, whatever was stored so far is still flushed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tg *reporter.TelegramReporter
	if cfg.Telegram.Enabled() {
		tg, err = reporter.NewTelegramReporter(cfg.Telegram, cfg.BaseURL)
		if err != nil {
			log.WithError(err).Warn("⚠️ Telegram disabled")
			tg = nil
		} else {
			log.Info("🤖 Telegram reporter initialized.")
		}
	}

	r, err := build(cfg, log)
	if err != nil {
		log.WithError(err).Error("❌ Failed to set up scraper")
		report(log, tg, runner.Summary{}, err)
		return 1
	}

	log.Info("🚀 Starting MaruGujarat scrape...")
	sum, err := r.Run(ctx)
	log.WithFields(logrus.Fields{
		"pages":      sum.PagesProcessed,
		"fetched":    sum.Fetched,
		"extracted":  sum.Extracted,
		"accepted":   sum.Accepted,
		"rejected":   sum.Rejected,
		"stored":     sum.Stored,
		"duplicates": sum.Duplicates,
		"skipped":    sum.Skipped,
		"errors":     sum.Errors,
		"duration":   sum.Duration.Round(time.Millisecond),
		"stop":       sum.StopReason,
	}).Info("📦 Run summary")

	report(log, tg, sum, err)
	if err != nil {
		log.WithError(err).Error("❌ Scrape failed")
		return 1
	}
	log.Info("🏁 Execution finished.")
	return 0
}

func build(cfg *config.Config, log *logrus.Logger) (*runner.Runner, error) {
	sc := cfg.Scraper
	retry := fetcher.RetryPolicy{
		MaxAttempts: sc.Attempts(),
		Delay:       sc.Delay(),
		Linear:      sc.RetryBackoff == "linear",
	}
	if sc.Jitter() {
		retry.Jitter = time.Second
	}

	f, err := fetcher.New(fetcher.Options{
		BaseURL:           cfg.BaseURL,
		PaginationSuffix:  sc.PaginationSuffix,
		Timeout:           sc.Timeout(),
		Retry:             retry,
		RequestsPerMinute: sc.RateLimit.RequestsPerMinute,
		RotateUserAgent:   sc.RotateUserAgent(),
		UserAgent:         sc.UserAgent,
		RespectRobots:     sc.RespectRobotsTxt,
	}, fetcher.WithLogger(log))
	if err != nil {
		return nil, err
	}

	p := cfg.Parser
	x, err := marugujarat.NewExtractor(cfg.BaseURL, marugujarat.Selectors{
		Container: p.ContainerSelector,
		Item:      p.ItemSelector,
		Title:     p.TitleSelector,
		Link:      p.LinkSelector,
		Date:      p.DateSelector,
		Category:  p.CategorySelector,
	})
	if err != nil {
		return nil, err
	}

	policy := filter.NewPolicy(cfg.Whitelist(), cfg.Blacklist()).WithMaxAge(time.Now(), cfg.MaxAge())
	log.WithFields(logrus.Fields{
		"whitelist":    len(policy.Whitelist()),
		"blacklist":    len(policy.Blacklist()),
		"max_age_days": cfg.MaxAgeDays,
	}).Info("🔍 Filter policy ready")

	store, err := dedup.Open(cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	opts := []runner.Option{
		runner.WithLogger(log),
		runner.WithFlushPerPage(cfg.Storage.FlushPerPage),
	}
	if p.CleanTitles {
		opts = append(opts, runner.WithTitleCleaner(marugujarat.CleanTitle))
	}
	if sc.FetchDetails {
		opts = append(opts, runner.WithEnricher(marugujarat.NewEnricher(f)))
	}
	return runner.New(f, x, policy, store, cfg.PagesToScrape, opts...), nil
}

func report(log logrus.FieldLogger, tg *reporter.TelegramReporter, sum runner.Summary, runErr error) {
	if tg == nil {
		return
	}
	var err error
	if runErr != nil {
		err = tg.SendError(runErr)
	} else {
		err = tg.SendSummary(sum)
	}
	if err != nil {
		log.WithError(err).Warn("⚠️ Failed to send status to Telegram")
	}
}
