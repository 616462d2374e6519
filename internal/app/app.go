package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"ZenWatcher/internal/bot"
	"ZenWatcher/internal/config"
	"ZenWatcher/internal/feed"
	"ZenWatcher/internal/message"
	"ZenWatcher/internal/store"
	"ZenWatcher/internal/telegram"
	"ZenWatcher/internal/tester"
	"ZenWatcher/internal/watcher"
)

// Application wires the four actors and owns their lifecycle.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db      *sql.DB
	store   *store.Store
	bot     *bot.Bot
	tester  *tester.Tester
	watcher *watcher.Watcher

	wg sync.WaitGroup
}

// New opens the database and constructs the actors. The store comes first:
// the other three take its mailbox at construction time, while the store
// learns about them through the startup rendezvous in Start.
func New(cfg config.Config, password string, baseLogger *slog.Logger) (*Application, error) {
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	st := store.New(db, cfg.Channels.DeadThreshold, baseLogger.With("component", "store"))

	transport := telegram.NewClient(cfg.Telegram.BotToken, nil)
	bt := bot.New(password, transport, st.Mailbox(), cfg.Telegram.PollTimeoutSeconds,
		baseLogger.With("component", "bot"))

	fetcher := feed.NewHTTPFetcher(nil)
	ts := tester.New(cfg.TesterInterval(), fetcher, st.Mailbox(), bt.Mailbox(), nil,
		baseLogger.With("component", "tester"))

	feedClient := feed.NewClient(fetcher, cfg.Feed.BaseURL)
	wt := watcher.New(cfg.WatcherInterval(), cfg.Tester.ProbationWeeks, feedClient,
		st.Mailbox(), nil, baseLogger.With("component", "watcher"))

	return &Application{
		cfg:     cfg,
		logger:  baseLogger.With("component", "app"),
		db:      db,
		store:   st,
		bot:     bt,
		tester:  ts,
		watcher: wt,
	}, nil
}

// Start launches the actor loops, completes the rendezvous, and seeds the
// pipeline with one initial message per actor.
func (a *Application) Start(ctx context.Context) {
	peers := make(chan message.Peers)

	a.wg.Add(4)
	go func() {
		defer a.wg.Done()
		a.store.Run(peers)
	}()
	go func() {
		defer a.wg.Done()
		a.bot.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.tester.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.watcher.Run(ctx)
	}()

	peers <- message.Peers{
		Bot:     a.bot.Mailbox(),
		Tester:  a.tester.Mailbox(),
		Watcher: a.watcher.Mailbox(),
	}
	close(peers)

	if err := a.bot.Mailbox().Send(message.Poll{}); err != nil {
		a.logger.Error("seed bot", "error", err)
	}
	if err := a.tester.Mailbox().Send(message.CheckArticles{}); err != nil {
		a.logger.Error("seed tester", "error", err)
	}
	if err := a.watcher.Mailbox().Send(message.CheckChannels{}); err != nil {
		a.logger.Error("seed watcher", "error", err)
	}

	a.logger.Info("pipeline started")
}

// Stop closes all mailboxes, lets in-flight messages finish, and closes the
// database. Sends into closed mailboxes are rejected, so the cyclic message
// flow winds down on its own.
func (a *Application) Stop() {
	a.bot.Mailbox().Close()
	a.tester.Mailbox().Close()
	a.watcher.Mailbox().Close()
	a.store.Mailbox().Close()

	a.wg.Wait()

	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
	a.logger.Info("pipeline stopped")
}
