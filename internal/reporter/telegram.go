package reporter

import (
	"fmt"
	"html"
	"net/http"
	"time"

	"go-marugujarat-scraper/internal/config"
	"go-marugujarat-scraper/internal/runner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type TelegramReporter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	source string
}

type Option func(*options)

type options struct {
	endpoint string
	client   *http.Client
}

// WithEndpoint points the bot at another API server, format "https://host/bot%s/%s".
func WithEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = endpoint }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// NewTelegramReporter checks the token with getMe before returning.
// source names the scraped site in every message.
func NewTelegramReporter(cfg config.TelegramConfig, source string, opts ...Option) (*TelegramReporter, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}
	o := options{endpoint: tgbotapi.APIEndpoint, client: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, o.endpoint, o.client)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram bot: %w", err)
	}

	//turn this on in case of debug
	//bot.Debug = true

	return &TelegramReporter{
		bot:    bot,
		chatID: cfg.ChatID,
		source: source,
	}, nil
}

func (t *TelegramReporter) SendMessage(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := t.bot.Send(msg)
	return err
}

// SendSummary posts the counters of a finished run.
func (t *TelegramReporter) SendSummary(sum runner.Summary) error {
	head := "✅ <b>Scrape finished</b>"
	if sum.Errors > 0 {
		head = "⚠️ <b>Scrape finished with errors</b>"
	}
	text := fmt.Sprintf(
		"%s\n"+
			"🌐 %s\n"+
			"📄 Pages: %d (fetched %d)\n"+
			"🔎 Extracted: %d, accepted: %d, rejected: %d\n"+
			"💾 New: %d, already seen: %d\n"+
			"🚫 Skipped: %d, errors: %d\n"+
			"⏱ %s (%s)",
		head,
		html.EscapeString(t.source),
		sum.PagesProcessed, sum.Fetched,
		sum.Extracted, sum.Accepted, sum.Rejected,
		sum.Stored, sum.Duplicates,
		sum.Skipped, sum.Errors,
		sum.Duration.Round(time.Millisecond), sum.StopReason,
	)
	return t.SendMessage(text)
}

func (t *TelegramReporter) SendError(errReq error) error {
	text := fmt.Sprintf("❌ <b>Scrape failed</b>\n🌐 %s\n%s",
		html.EscapeString(t.source), html.EscapeString(errReq.Error()))
	return t.SendMessage(text)
}
