// Load envs from .env
// Load YAML config
// Provide default values
// Validate config

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-marugujarat-scraper/internal/filter"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 5 //seconds
)

const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
	FormatMongo    = "mongo"
)

var Formats = []string{FormatCSV, FormatJSON, FormatSQLite, FormatPostgres, FormatMongo}

type Config struct {
	BaseURL       string `yaml:"base_url"`
	PagesToScrape int    `yaml:"pages_to_scrape"`
	//nil means "use the built-in list", an explicit [] means no terms
	WhitelistKeywords []string `yaml:"whitelist_keywords"`
	BlacklistKeywords []string `yaml:"blacklist_keywords"`
	MaxAgeDays        int      `yaml:"max_age_days"`

	Storage  StorageConfig  `yaml:"storage"`
	Scraper  ScraperConfig  `yaml:"scraper"`
	Parser   ParserConfig   `yaml:"parser"`
	Logging  LoggingConfig  `yaml:"logging"`
	Telegram TelegramConfig `yaml:"telegram"`

	//path the config was read from, empty when running on defaults
	Source string `yaml:"-"`
}

type StorageConfig struct {
	Format         string `yaml:"format"`
	Directory      string `yaml:"directory"`
	FilenamePrefix string `yaml:"filename_prefix"`
	FlushPerPage   bool   `yaml:"flush_per_page"`
	DSN            string `yaml:"dsn" env:"DATABASE_URL"`
	URI            string `yaml:"uri" env:"MONGO_URI"`
	Database       string `yaml:"database"`
}

type ScraperConfig struct {
	RequestTimeout    int             `yaml:"request_timeout"`
	MaxRetries        *int            `yaml:"max_retries"`
	RetryDelay        *float64        `yaml:"retry_delay"`
	RetryBackoff      string          `yaml:"retry_backoff"`
	RetryJitter       *bool           `yaml:"retry_jitter"`
	UserAgentRotation *bool           `yaml:"user_agent_rotation"`
	UserAgent         string          `yaml:"user_agent"`
	PaginationSuffix  string          `yaml:"pagination_suffix"`
	RespectRobotsTxt  bool            `yaml:"respect_robots_txt"`
	FetchDetails      bool            `yaml:"fetch_details"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type ParserConfig struct {
	ContainerSelector string `yaml:"container_selector"`
	ItemSelector      string `yaml:"item_selector"`
	TitleSelector     string `yaml:"title_selector"`
	LinkSelector      string `yaml:"link_selector"`
	DateSelector      string `yaml:"date_selector"`
	CategorySelector  string `yaml:"category_selector"`
	CleanTitles       bool   `yaml:"clean_titles"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type TelegramConfig struct {
	Token  string `yaml:"token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
}

func (t TelegramConfig) Enabled() bool { return t.Token != "" && t.ChatID != 0 }

func (s ScraperConfig) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// Attempts is the total number of tries per request, including the first.
func (s ScraperConfig) Attempts() int {
	if s.MaxRetries == nil {
		return defaultMaxRetries
	}
	return *s.MaxRetries
}

// Delay is the wait between attempts. An explicit 0 retries immediately.
func (s ScraperConfig) Delay() time.Duration {
	if s.RetryDelay == nil {
		return defaultRetryDelay * time.Second
	}
	return time.Duration(*s.RetryDelay * float64(time.Second))
}

func (s ScraperConfig) Jitter() bool { return s.RetryJitter == nil || *s.RetryJitter }

func (s ScraperConfig) RotateUserAgent() bool {
	return s.UserAgentRotation == nil || *s.UserAgentRotation
}

func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// Whitelist returns the configured terms or the built-in defaults.
func (c *Config) Whitelist() []string {
	if c.WhitelistKeywords == nil {
		return filter.DefaultWhitelist
	}
	return c.WhitelistKeywords
}

func (c *Config) Blacklist() []string {
	if c.BlacklistKeywords == nil {
		return filter.DefaultBlacklist
	}
	return c.BlacklistKeywords
}

// Load reads .env, then the YAML file at path, applies environment overrides
// and defaults, and validates the result. A missing file at the default path
// is not an error; everything falls back to defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
		cfg.Source = path
	case os.IsNotExist(err) && !explicit:
		//run on defaults
	default:
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("SCRAPER_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SCRAPER_STORAGE_FORMAT"); v != "" {
		cfg.Storage.Format = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Storage.URI = v
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.Telegram.ChatID = id
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://www.marugujarat.in/maru-gujarat/"
	}
	if c.PagesToScrape == 0 {
		c.PagesToScrape = 3
	}

	s := &c.Storage
	if s.Format == "" {
		s.Format = FormatCSV
	}
	s.Format = strings.ToLower(s.Format)
	if s.Directory == "" {
		s.Directory = "data/processed"
	}
	if s.FilenamePrefix == "" {
		s.FilenamePrefix = "marugujarat_jobs"
	}
	if s.Database == "" {
		s.Database = "scraper"
	}

	sc := &c.Scraper
	if sc.RequestTimeout == 0 {
		sc.RequestTimeout = 30
	}
	if sc.MaxRetries == nil {
		n := defaultMaxRetries
		sc.MaxRetries = &n
	}
	if sc.RetryDelay == nil {
		d := float64(defaultRetryDelay)
		sc.RetryDelay = &d
	}
	if sc.RetryBackoff == "" {
		sc.RetryBackoff = "fixed"
	}
	if sc.PaginationSuffix == "" {
		sc.PaginationSuffix = "?_page={page}"
	}
	if sc.RateLimit.RequestsPerMinute == 0 {
		sc.RateLimit.RequestsPerMinute = 10
	}

	p := &c.Parser
	if p.ContainerSelector == "" {
		p.ContainerSelector = ".pt-cv-view"
	}
	if p.ItemSelector == "" {
		p.ItemSelector = ".pt-cv-content-item"
	}
	if p.TitleSelector == "" {
		p.TitleSelector = ".pt-cv-title a"
	}
	if p.DateSelector == "" {
		p.DateSelector = ".entry-date"
	}
	if p.CategorySelector == "" {
		p.CategorySelector = ".terms a"
	}

	l := &c.Logging
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
	if l.File == "" {
		l.File = "logs/scraper.log"
	}
}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("base_url must be an absolute http(s) url, got %q", c.BaseURL)
	}
	if c.PagesToScrape < 1 {
		return fmt.Errorf("pages_to_scrape must be >= 1, got %d", c.PagesToScrape)
	}
	if c.MaxAgeDays < 0 {
		return fmt.Errorf("max_age_days must be >= 0, got %d", c.MaxAgeDays)
	}

	s := c.Storage
	known := false
	for _, f := range Formats {
		if s.Format == f {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown storage format %q (want one of %s)", s.Format, strings.Join(Formats, ", "))
	}
	if !identRegex.MatchString(s.FilenamePrefix) {
		return fmt.Errorf("storage.filename_prefix %q must contain only letters, digits and underscores", s.FilenamePrefix)
	}
	if s.Format == FormatPostgres && s.DSN == "" {
		return errors.New("storage.dsn or DATABASE_URL is required for the postgres format")
	}
	if s.Format == FormatMongo && s.URI == "" {
		return errors.New("storage.uri or MONGO_URI is required for the mongo format")
	}

	sc := c.Scraper
	if sc.RequestTimeout < 0 {
		return fmt.Errorf("scraper.request_timeout must be positive, got %d", sc.RequestTimeout)
	}
	if sc.Attempts() < 1 {
		return fmt.Errorf("scraper.max_retries must be >= 1, got %d", sc.Attempts())
	}
	if sc.Delay() < 0 {
		return fmt.Errorf("scraper.retry_delay must be >= 0, got %v", *sc.RetryDelay)
	}
	if sc.RetryBackoff != "fixed" && sc.RetryBackoff != "linear" {
		return fmt.Errorf("scraper.retry_backoff must be fixed or linear, got %q", sc.RetryBackoff)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}
