// Package tester implements the probation actor: it re-checks discovered
// articles for the deindex marker until their probation window closes.
package tester

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/benbjohnson/clock"

	"ZenWatcher/internal/actor"
	"ZenWatcher/internal/domain"
	"ZenWatcher/internal/message"
	"ZenWatcher/internal/ports"
)

// Tester screens article batches. The fixed delay bounds the outbound
// request rate and throttles how often the store re-derives the next batch.
type Tester struct {
	delay   time.Duration
	fetcher ports.Fetcher
	store   *actor.Mailbox[message.Store]
	bot     *actor.Mailbox[message.Bot]
	mb      *actor.Mailbox[message.Tester]
	clock   clock.Clock
	logger  *slog.Logger
}

// New builds the tester actor. A nil clk gets the wall clock.
func New(delay time.Duration, fetcher ports.Fetcher, store *actor.Mailbox[message.Store],
	bot *actor.Mailbox[message.Bot], clk clock.Clock, logger *slog.Logger) *Tester {
	if clk == nil {
		clk = clock.New()
	}
	return &Tester{
		delay:   delay,
		fetcher: fetcher,
		store:   store,
		bot:     bot,
		mb:      actor.NewMailbox[message.Tester](),
		clock:   clk,
		logger:  logger,
	}
}

// Mailbox exposes the tester's queue.
func (t *Tester) Mailbox() *actor.Mailbox[message.Tester] {
	return t.mb
}

// Run serves messages until the mailbox is closed and drained.
func (t *Tester) Run(ctx context.Context) {
	t.logger.Info("actor started")
	for {
		msg, ok := t.mb.Receive()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case message.CheckArticles:
			t.checkBatch(ctx, m.Articles)
		default:
			t.logger.Warn("unknown message", "type", fmt.Sprintf("%T", msg))
		}
	}
}

// checkBatch classifies each article, reports bans immediately, then sends
// the whole updated batch back to the store.
func (t *Tester) checkBatch(ctx context.Context, articles []domain.Article) {
	for i := range articles {
		article := &articles[i]
		if t.clock.Now().After(article.EndOfTesting) {
			// Probation over: no further fetches, whatever the page says now.
			article.State = domain.ArticleTested
		} else {
			article.State = t.checkArticle(ctx, article.URL)
			if article.State == domain.ArticleBanned {
				t.logger.Info("article banned", "title", article.Title, "url", article.URL)
				banned := message.ArticleBanned{
					TelegramID: article.AuthorTelegramID,
					Title:      article.Title,
					URL:        article.URL,
				}
				if err := t.bot.Send(banned); err != nil {
					t.logger.Warn("notify ban", "error", err)
				}
			}
		}
		t.clock.Sleep(t.delay)
	}

	if err := t.store.Send(message.IngestTestResults{Articles: articles}); err != nil {
		t.logger.Warn("send results", "error", err)
	}
	t.clock.Sleep(t.delay)
}

// checkArticle fetches the page and looks for the noindex robots directive.
// Fetch failure counts as temporary unavailability, never as a ban.
func (t *Tester) checkArticle(ctx context.Context, url string) domain.ArticleState {
	body, err := t.fetcher.FetchText(ctx, url)
	if err != nil {
		t.logger.Warn("article unavailable", "url", url, "error", err)
		return domain.ArticleUnavailable
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.logger.Warn("parse article", "url", url, "error", err)
		return domain.ArticleUnavailable
	}

	banned := false
	doc.Find(`meta[name="robots"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if content, ok := sel.Attr("content"); ok && strings.Contains(content, "noindex") {
			banned = true
			return false
		}
		return true
	})

	if banned {
		return domain.ArticleBanned
	}
	return domain.ArticleTesting
}
