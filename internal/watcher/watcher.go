// Package watcher implements the discovery actor: it polls channel listings
// for new articles, walking the full pagination chain for channels seen for
// the first time.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/benbjohnson/clock"

	"ZenWatcher/internal/actor"
	"ZenWatcher/internal/domain"
	"ZenWatcher/internal/feed"
	"ZenWatcher/internal/message"
)

// Watcher polls channel batches. It holds no durable state: each sweep's
// input is the refreshed channel list the store sends back after ingesting
// the previous sweep.
type Watcher struct {
	delay          time.Duration
	feed           *feed.Client
	store          *actor.Mailbox[message.Store]
	mb             *actor.Mailbox[message.Watcher]
	clock          clock.Clock
	probationWeeks int
	logger         *slog.Logger
}

// New builds the watcher actor. A nil clk gets the wall clock.
func New(delay time.Duration, probationWeeks int, feedClient *feed.Client,
	store *actor.Mailbox[message.Store], clk clock.Clock, logger *slog.Logger) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	return &Watcher{
		delay:          delay,
		feed:           feedClient,
		store:          store,
		mb:             actor.NewMailbox[message.Watcher](),
		clock:          clk,
		probationWeeks: probationWeeks,
		logger:         logger,
	}
}

// Mailbox exposes the watcher's queue.
func (w *Watcher) Mailbox() *actor.Mailbox[message.Watcher] {
	return w.mb
}

// Run serves messages until the mailbox is closed and drained.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("actor started")
	for {
		msg, ok := w.mb.Receive()
		if !ok {
			return
		}
		switch m := msg.(type) {
		case message.CheckChannels:
			w.checkChannels(ctx, m.Channels)
		default:
			w.logger.Warn("unknown message", "type", fmt.Sprintf("%T", msg))
		}
		w.clock.Sleep(w.delay)
	}
}

// checkChannels sweeps one channel batch and sends the discoveries plus the
// updated channel snapshots to the store.
func (w *Watcher) checkChannels(ctx context.Context, channels []domain.Channel) {
	var articles []domain.Article
	for i := range channels {
		channel := &channels[i]

		listing, err := w.feed.FirstPage(ctx, channel.ZenID)
		if err != nil {
			w.logger.Warn("channel unavailable", "channel", channel.ZenID, "error", err)
			channel.State = domain.ChannelUnavailable
			continue
		}
		articles = append(articles, w.collect(channel, listing)...)

		if channel.State == domain.ChannelNew {
			// First sweep: backfill the full history before going incremental.
			next := listing.More
			for next != "" {
				page, err := w.feed.Page(ctx, next)
				if err != nil {
					break
				}
				articles = append(articles, w.collect(channel, page)...)
				next = page.More
			}
			channel.State = domain.ChannelAvailable
		}
	}

	w.logger.Info("sweep done", "channels", len(channels), "articles", len(articles))
	if err := w.store.Send(message.IngestDiscovery{Channels: channels, Articles: articles}); err != nil {
		w.logger.Warn("send discovery", "error", err)
	}
}

func (w *Watcher) collect(channel *domain.Channel, listing feed.Listing) []domain.Article {
	endOfTesting := w.clock.Now().AddDate(0, 0, 7*w.probationWeeks)

	articles := make([]domain.Article, 0, len(listing.Items))
	for _, item := range listing.Items {
		url, _, _ := strings.Cut(item.Link, "?")
		articles = append(articles, domain.Article{
			ZenID:        channel.ZenID,
			Title:        item.Title,
			URL:          url,
			State:        domain.ArticleTesting,
			EndOfTesting: endOfTesting,
		})
	}
	return articles
}
