package store

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"ZenWatcher/internal/domain"
	"ZenWatcher/internal/message"
)

// handleIngestDiscovery applies one watcher sweep in two phases: insert the
// not-yet-known articles of still-live channels, then fold the availability
// snapshots into the channel states. The refreshed live-channel list is
// forwarded to the watcher afterwards; that forward is what keeps the
// discovery loop running, so it happens even when the transaction failed
// (with an empty batch, which the next sweep recovers from).
func (s *Store) handleIngestDiscovery(m message.IngestDiscovery, p message.Peers) {
	s.logger.Info("ingest discovery", "channels", len(m.Channels), "articles", len(m.Articles))

	err := s.withTx(func(tx *sql.Tx) error {
		known, err := knownURLs(tx)
		if err != nil {
			return err
		}

		live, err := liveChannelIDs(tx, s.deadThreshold)
		if err != nil {
			return err
		}

		for _, article := range m.Articles {
			if known[article.URL] {
				continue
			}
			channelID, ok := live[article.ZenID]
			if !ok {
				continue
			}
			_, err := sq.Insert("articles").
				Columns("channel_id", "title", "url", "state", "end_of_testing").
				Values(channelID, article.Title, article.URL, int(article.State), article.EndOfTesting).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("insert article %s: %w", article.URL, err)
			}
			known[article.URL] = true
		}

		for _, channel := range m.Channels {
			if _, ok := live[channel.ZenID]; !ok {
				continue
			}
			update := sq.Update("channels").Where(sq.Eq{"channel_id": channel.ZenID})
			if channel.State == domain.ChannelUnavailable {
				update = update.
					Set("state", int(domain.ChannelUnavailable)).
					Set("fails", sq.Expr("fails + 1"))
			} else {
				update = update.Set("state", int(channel.State))
				// Recovery clears the escalation counter.
				if channel.State == domain.ChannelAvailable {
					update = update.Set("fails", 0)
				}
			}
			if _, err := update.RunWith(tx).Exec(); err != nil {
				return fmt.Errorf("update channel %s: %w", channel.ZenID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("ingest discovery failed", "error", err)
	}

	channels, err := s.liveChannels()
	if err != nil {
		s.logger.Error("read live channels failed", "error", err)
		channels = nil
	}
	if err := p.Watcher.Send(message.CheckChannels{Channels: channels}); err != nil {
		s.logger.Warn("forward to watcher", "error", err)
	}
}

// handleIngestTestResults writes back article states by URL, then forwards
// the refreshed still-under-probation batch to the tester. As with
// discovery, the forward keeps the loop alive regardless of write failures.
func (s *Store) handleIngestTestResults(m message.IngestTestResults, p message.Peers) {
	s.logger.Info("ingest test results", "articles", len(m.Articles))

	err := s.withTx(func(tx *sql.Tx) error {
		for _, article := range m.Articles {
			_, err := sq.Update("articles").
				Set("state", int(article.State)).
				Where(sq.Eq{"url": article.URL}).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("update article %s: %w", article.URL, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("ingest test results failed", "error", err)
	}

	var articles []domain.Article
	err = s.withTx(func(tx *sql.Tx) error {
		var err error
		articles, err = selectArticles(tx, sq.And{
			sq.Eq{"users.rights": int(domain.Author)},
			sq.Lt{"channels.fails": s.deadThreshold},
			sq.Eq{"articles.state": []int{int(domain.ArticleTesting), int(domain.ArticleUnavailable)}},
		})
		return err
	})
	if err != nil {
		s.logger.Error("read test batch failed", "error", err)
		articles = nil
	}
	if err := p.Tester.Send(message.CheckArticles{Articles: articles}); err != nil {
		s.logger.Warn("forward to tester", "error", err)
	}
}

func knownURLs(tx *sql.Tx) (map[string]bool, error) {
	rows, err := sq.Select("url").From("articles").RunWith(tx).Query()
	if err != nil {
		return nil, fmt.Errorf("select urls: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		known[u] = true
	}
	return known, rows.Err()
}

func liveChannelIDs(tx *sql.Tx, deadThreshold int) (map[string]int64, error) {
	rows, err := sq.Select("id", "channel_id").
		From("channels").
		Where(sq.Lt{"fails": deadThreshold}).
		RunWith(tx).
		Query()
	if err != nil {
		return nil, fmt.Errorf("select live channels: %w", err)
	}
	defer rows.Close()

	live := make(map[string]int64)
	for rows.Next() {
		var id int64
		var zenID string
		if err := rows.Scan(&id, &zenID); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		live[zenID] = id
	}
	return live, rows.Err()
}

// liveChannels reads the channels still worth polling, as value snapshots
// for the watcher's next sweep.
func (s *Store) liveChannels() ([]domain.Channel, error) {
	var channels []domain.Channel
	err := s.withTx(func(tx *sql.Tx) error {
		rows, err := sq.Select("author_id", "channel_id", "state", "fails").
			From("channels").
			Where(sq.Lt{"fails": s.deadThreshold}).
			RunWith(tx).
			Query()
		if err != nil {
			return fmt.Errorf("select channels: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var c domain.Channel
			var state int
			if err := rows.Scan(&c.AuthorID, &c.ZenID, &state, &c.Fails); err != nil {
				return fmt.Errorf("scan channel: %w", err)
			}
			c.State = domain.ChannelState(state)
			channels = append(channels, c)
		}
		return rows.Err()
	})
	return channels, err
}

// selectArticles joins users -> channels -> articles under the given filter.
func selectArticles(tx *sql.Tx, filter sq.Sqlizer) ([]domain.Article, error) {
	rows, err := sq.Select("users.telegram_id", "channels.channel_id", "articles.title",
		"articles.url", "articles.state", "articles.end_of_testing").
		From("users").
		Join("channels ON channels.author_id = users.id").
		Join("articles ON articles.channel_id = channels.id").
		Where(filter).
		RunWith(tx).
		Query()
	if err != nil {
		return nil, fmt.Errorf("select articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		var state int
		if err := rows.Scan(&a.AuthorTelegramID, &a.ZenID, &a.Title, &a.URL, &state, &a.EndOfTesting); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		a.State = domain.ArticleState(state)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
