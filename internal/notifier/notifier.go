package notifier

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"adnews/internal/fetch"
	"adnews/internal/fetcher"
	"adnews/internal/model"

	"github.com/go-shiori/go-readability"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type NewsProvider interface {
	AllNotPosted(ctx context.Context, since time.Time, limit uint64) ([]model.NewsItem, error)
	MarkAsPosted(ctx context.Context, id int64) error
}

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	news             NewsProvider
	bot              Sender
	client           *fetch.Client
	lookupTimeWindow time.Duration
	channel          string
	sentences        int
	logger           *logrus.Logger

	now func() time.Time
}

func New(
	news NewsProvider,
	bot Sender,
	client *fetch.Client,
	lookupTimeWindow time.Duration,
	channel string,
	sentences int,
	logger *logrus.Logger,
) *Notifier {
	return &Notifier{
		news:             news,
		bot:              bot,
		client:           client,
		lookupTimeWindow: lookupTimeWindow,
		channel:          channel,
		sentences:        sentences,
		logger:           logger,
		now:              time.Now,
	}
}

// GetSummary returns the stored description or, when it is empty, the article text from the link.
func (n *Notifier) GetSummary(ctx context.Context, item model.NewsItem) (string, error) {
	if item.Description != "" {
		return item.Description, nil
	}

	pageURL, err := url.Parse(item.Link)
	if err != nil {
		return "", err
	}

	body, err := n.client.Open(ctx, item.Link)
	if err != nil {
		return "", err
	}
	defer body.Close()

	article, err := readability.FromReader(body, pageURL)
	if err != nil {
		return "", err
	}

	return fetcher.Truncate(fetcher.CleanText(article.TextContent), n.sentences), nil
}

func (n *Notifier) SelectAndSendArticle(ctx context.Context) error {
	items, err := n.news.AllNotPosted(ctx, n.now().Add(-n.lookupTimeWindow), 1)
	if err != nil {
		return fmt.Errorf("failed to select news: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	item := items[0]

	summary, err := n.GetSummary(ctx, item)
	if err != nil {
		// без описания новость все равно публикуется
		n.logger.WithField("link", item.Link).Warnf("failed to get summary: %v", err)
	}

	if err := n.SendArticle(item, summary); err != nil {
		return fmt.Errorf("failed to send news %d: %w", item.ID, err)
	}

	return n.news.MarkAsPosted(ctx, item.ID)
}

func (n *Notifier) SendArticle(item model.NewsItem, summary string) error {
	const msgFormat = "*%s*\n\n%s\n\n%s"

	msg := tgbotapi.NewMessageToChannel(n.channel, fmt.Sprintf(
		msgFormat,
		EscapeForMarkdown(item.Title),
		EscapeForMarkdown(summary),
		EscapeForMarkdown(item.Link),
	))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	_, err := n.bot.Send(msg)

	return err
}

var replacer = strings.NewReplacer(
	"\\", "\\\\",
	"-", "\\-",
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"]", "\\]",
	"(", "\\(",
	")", "\\)",
	"~", "\\~",
	"`", "\\`",
	">", "\\>",
	"#", "\\#",
	"+", "\\+",
	"=", "\\=",
	"|", "\\|",
	"{", "\\{",
	"}", "\\}",
	".", "\\.",
	"!", "\\!",
)

func EscapeForMarkdown(src string) string {
	return replacer.Replace(src)
}
