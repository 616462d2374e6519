// Package store implements the persistence actor. It is the only component
// that touches the database; every other actor gets snapshots by value
// through messages, so no locking is needed around the relational state.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"ZenWatcher/internal/actor"
	"ZenWatcher/internal/message"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	telegram_id INTEGER NOT NULL DEFAULT -1,
	rights INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS channels (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	author_id INTEGER NOT NULL,
	channel_id TEXT NOT NULL,
	state INTEGER NOT NULL DEFAULT 0,
	fails INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (author_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS articles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	url TEXT NOT NULL,
	state INTEGER NOT NULL DEFAULT 0,
	end_of_testing DATETIME NOT NULL,
	FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_users_name ON users(name);
CREATE INDEX IF NOT EXISTS idx_channels_author_id ON channels(author_id);
CREATE INDEX IF NOT EXISTS idx_articles_channel_id ON articles(channel_id);
CREATE INDEX IF NOT EXISTS idx_articles_url ON articles(url);
`

// Open connects to the SQLite file and creates the schema if absent.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

// Store processes persistence commands strictly in arrival order, each
// inside its own transaction.
type Store struct {
	db            *sql.DB
	mb            *actor.Mailbox[message.Store]
	logger        *slog.Logger
	deadThreshold int
}

// New builds the store actor over an open database.
func New(db *sql.DB, deadThreshold int, logger *slog.Logger) *Store {
	return &Store{
		db:            db,
		mb:            actor.NewMailbox[message.Store](),
		logger:        logger,
		deadThreshold: deadThreshold,
	}
}

// Mailbox exposes the store's command queue.
func (s *Store) Mailbox() *actor.Mailbox[message.Store] {
	return s.mb
}

// Run receives the peer mailboxes exactly once, then serves commands until
// the mailbox is closed and drained. Construction-time circularity between
// the store and its three consumers is resolved by this rendezvous.
func (s *Store) Run(peers <-chan message.Peers) {
	p, ok := <-peers
	if !ok {
		return
	}
	s.logger.Info("actor started")

	for {
		msg, ok := s.mb.Receive()
		if !ok {
			return
		}
		s.handle(msg, p)
	}
}

func (s *Store) handle(msg message.Store, p message.Peers) {
	switch m := msg.(type) {
	case message.AddAuthor:
		s.handleAddAuthor(m, p)
	case message.RemoveAuthor:
		s.handleRemoveAuthor(m, p)
	case message.ListAuthors:
		s.handleListAuthors(p)
	case message.ListArticles:
		s.handleListArticles(m, p)
	case message.Subscribe:
		s.handleSubscribe(m, p)
	case message.Unsubscribe:
		s.handleUnsubscribe(m, p)
	case message.IngestDiscovery:
		s.handleIngestDiscovery(m, p)
	case message.IngestTestResults:
		s.handleIngestTestResults(m, p)
	default:
		s.logger.Warn("unknown command", "type", fmt.Sprintf("%T", msg))
	}
}

// withTx runs fn inside a transaction, rolling back on error. A failed
// transaction is not retried; the caller skips its notification for the
// cycle and the loop continues.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
