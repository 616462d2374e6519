package store

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"ZenWatcher/internal/actor"
	"ZenWatcher/internal/domain"
	"ZenWatcher/internal/message"
)

type userRow struct {
	id         int64
	name       string
	telegramID int64
	rights     domain.Rights
}

func findUserByName(tx *sql.Tx, name string) (userRow, bool, error) {
	row := sq.Select("id", "name", "telegram_id", "rights").
		From("users").
		Where(sq.Eq{"name": name}).
		RunWith(tx).
		QueryRow()

	var u userRow
	var rights int
	if err := row.Scan(&u.id, &u.name, &u.telegramID, &rights); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return userRow{}, false, nil
		}
		return userRow{}, false, fmt.Errorf("select user %s: %w", name, err)
	}
	u.rights = domain.Rights(rights)
	return u, true, nil
}

func findUserByTelegramID(tx *sql.Tx, telegramID int64) (userRow, bool, error) {
	row := sq.Select("id", "name", "telegram_id", "rights").
		From("users").
		Where(sq.Eq{"telegram_id": telegramID}).
		RunWith(tx).
		QueryRow()

	var u userRow
	var rights int
	if err := row.Scan(&u.id, &u.name, &u.telegramID, &rights); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return userRow{}, false, nil
		}
		return userRow{}, false, fmt.Errorf("select user by handle %d: %w", telegramID, err)
	}
	u.rights = domain.Rights(rights)
	return u, true, nil
}

func (r userRow) snapshot() domain.User {
	return domain.User{TelegramID: r.telegramID, Name: r.name, Rights: r.rights}
}

func (s *Store) handleAddAuthor(m message.AddAuthor, p message.Peers) {
	s.logger.Info("add author", "name", m.Name)

	var user domain.User
	err := s.withTx(func(tx *sql.Tx) error {
		existing, found, err := findUserByName(tx, m.Name)
		if err != nil {
			return err
		}
		if !found {
			_, err := sq.Insert("users").
				Columns("name", "telegram_id", "rights").
				Values(m.Name, domain.UnsetTelegramID, int(domain.Author)).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("insert author %s: %w", m.Name, err)
			}
			user = domain.User{TelegramID: domain.UnsetTelegramID, Name: m.Name, Rights: domain.UnknownUser}
			return nil
		}

		_, err = sq.Update("users").
			Set("rights", int(domain.Author)).
			Where(sq.Eq{"name": m.Name}).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("promote author %s: %w", m.Name, err)
		}
		// The pre-promotion snapshot lets the bot detect the Waiting case.
		user = existing.snapshot()
		return nil
	})
	if err != nil {
		s.logger.Error("add author failed", "name", m.Name, "error", err)
		return
	}

	s.notify(p.Bot, message.AuthorAdded{User: user})
}

func (s *Store) handleRemoveAuthor(m message.RemoveAuthor, p message.Peers) {
	s.logger.Info("remove author", "name", m.Name)

	var user domain.User
	var removed bool
	err := s.withTx(func(tx *sql.Tx) error {
		existing, found, err := findUserByName(tx, m.Name)
		if err != nil {
			return err
		}
		if !found {
			user = domain.User{TelegramID: domain.UnsetTelegramID, Name: m.Name, Rights: domain.UnknownUser}
			return nil
		}

		_, err = sq.Delete("users").
			Where(sq.Eq{"id": existing.id}).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("delete user %s: %w", m.Name, err)
		}
		user = existing.snapshot()
		removed = true
		return nil
	})
	if err != nil {
		s.logger.Error("remove author failed", "name", m.Name, "error", err)
		return
	}

	s.notify(p.Bot, message.AuthorRemoved{User: user, Removed: removed})
}

func (s *Store) handleListAuthors(p message.Peers) {
	s.logger.Info("list authors")

	var authors []domain.User
	err := s.withTx(func(tx *sql.Tx) error {
		rows, err := sq.Select("name", "telegram_id", "rights").
			From("users").
			Where(sq.Eq{"rights": int(domain.Author)}).
			RunWith(tx).
			Query()
		if err != nil {
			return fmt.Errorf("select authors: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var u domain.User
			var rights int
			if err := rows.Scan(&u.Name, &u.TelegramID, &rights); err != nil {
				return fmt.Errorf("scan author: %w", err)
			}
			u.Rights = domain.Rights(rights)
			authors = append(authors, u)
		}
		return rows.Err()
	})
	if err != nil {
		s.logger.Error("list authors failed", "error", err)
		return
	}

	s.notify(p.Bot, message.AuthorList{Authors: authors})
}

func (s *Store) handleListArticles(m message.ListArticles, p message.Peers) {
	s.logger.Info("list articles", "telegram_id", m.TelegramID)

	var articles []domain.Article
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		articles, err = selectArticles(tx, sq.Eq{"users.telegram_id": m.TelegramID})
		return err
	})
	if err != nil {
		s.logger.Error("list articles failed", "telegram_id", m.TelegramID, "error", err)
		return
	}

	s.notify(p.Bot, message.ArticleList{TelegramID: m.TelegramID, Articles: articles})
}

func (s *Store) handleSubscribe(m message.Subscribe, p message.Peers) {
	s.logger.Info("subscribe", "name", m.Name, "channel", m.ZenID)

	var user domain.User
	err := s.withTx(func(tx *sql.Tx) error {
		existing, found, err := findUserByName(tx, m.Name)
		if err != nil {
			return err
		}

		var authorID int64
		if !found {
			res, err := sq.Insert("users").
				Columns("name", "telegram_id", "rights").
				Values(m.Name, m.TelegramID, int(domain.UnknownUser)).
				RunWith(tx).
				Exec()
			if err != nil {
				return fmt.Errorf("insert user %s: %w", m.Name, err)
			}
			authorID, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("user id: %w", err)
			}
			user = domain.User{TelegramID: m.TelegramID, Name: m.Name, Rights: domain.UnknownUser}
		} else {
			if existing.telegramID < 0 {
				_, err := sq.Update("users").
					Set("telegram_id", m.TelegramID).
					Where(sq.Eq{"id": existing.id}).
					RunWith(tx).
					Exec()
				if err != nil {
					return fmt.Errorf("bind handle for %s: %w", m.Name, err)
				}
				existing.telegramID = m.TelegramID
			}
			authorID = existing.id
			user = existing.snapshot()
		}

		_, err = sq.Insert("channels").
			Columns("author_id", "channel_id", "state", "fails").
			Values(authorID, m.ZenID, int(domain.ChannelNew), 0).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("insert channel %s: %w", m.ZenID, err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("subscribe failed", "name", m.Name, "channel", m.ZenID, "error", err)
		return
	}

	s.notify(p.Bot, message.ChannelAdded{User: user, ZenID: m.ZenID})
}

func (s *Store) handleUnsubscribe(m message.Unsubscribe, p message.Peers) {
	s.logger.Info("unsubscribe", "telegram_id", m.TelegramID, "channel", m.ZenID)

	var removed bool
	err := s.withTx(func(tx *sql.Tx) error {
		existing, found, err := findUserByTelegramID(tx, m.TelegramID)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}

		res, err := sq.Delete("channels").
			Where(sq.Eq{"author_id": existing.id, "channel_id": m.ZenID}).
			RunWith(tx).
			Exec()
		if err != nil {
			return fmt.Errorf("delete channel %s: %w", m.ZenID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		removed = affected > 0
		return nil
	})
	if err != nil {
		s.logger.Error("unsubscribe failed", "telegram_id", m.TelegramID, "channel", m.ZenID, "error", err)
		return
	}

	s.notify(p.Bot, message.ChannelRemoved{TelegramID: m.TelegramID, ZenID: m.ZenID, Removed: removed})
}

func (s *Store) notify(mb *actor.Mailbox[message.Bot], msg message.Bot) {
	if err := mb.Send(msg); err != nil {
		s.logger.Warn("notify bot", "error", err)
	}
}
