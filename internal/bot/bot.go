// Package bot implements the chat actor: it polls the transport for
// operator and author commands, routes them to the store, and renders the
// other actors' outcomes into replies.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"ZenWatcher/internal/actor"
	"ZenWatcher/internal/domain"
	"ZenWatcher/internal/message"
	"ZenWatcher/internal/ports"
)

var channelIDPattern = regexp.MustCompile(`id/[a-zA-Z0-9]*`)

const helpText = `Commands:
password <secret>
add-author <name>
remove-author <name>
list authors
list articles
subscribe <url>
unsubscribe <url>
----
NB: <name> is written without the @ sign.`

// Bot owns the chat session state: the current operator handle and the
// update-stream cursor. Both are touched only by its own loop.
type Bot struct {
	password       string
	transport      ports.Transport
	store          *actor.Mailbox[message.Store]
	mb             *actor.Mailbox[message.Bot]
	logger         *slog.Logger
	pollTimeoutSec int

	operatorID int64
	offset     int64
}

// New builds the chat actor. The operator is unknown until someone presents
// the password.
func New(password string, transport ports.Transport, store *actor.Mailbox[message.Store], pollTimeoutSec int, logger *slog.Logger) *Bot {
	return &Bot{
		password:       password,
		transport:      transport,
		store:          store,
		mb:             actor.NewMailbox[message.Bot](),
		logger:         logger,
		pollTimeoutSec: pollTimeoutSec,
		operatorID:     domain.UnsetTelegramID,
	}
}

// Mailbox exposes the bot's message queue.
func (b *Bot) Mailbox() *actor.Mailbox[message.Bot] {
	return b.mb
}

// Run serves messages until the mailbox is closed and drained.
func (b *Bot) Run(ctx context.Context) {
	b.logger.Info("actor started")
	for {
		msg, ok := b.mb.Receive()
		if !ok {
			return
		}
		b.handle(ctx, msg)
	}
}

func (b *Bot) handle(ctx context.Context, msg message.Bot) {
	switch m := msg.(type) {
	case message.Poll:
		b.poll(ctx)
	case message.AuthorAdded:
		b.logger.Info("author added", "name", m.User.Name)
		b.send(ctx, b.operatorID, fmt.Sprintf("%s added.", m.User.Name))
		if m.User.Rights == domain.Waiting {
			b.send(ctx, m.User.TelegramID, "Your channels are tracked now.")
		}
	case message.AuthorRemoved:
		b.logger.Info("author removed", "name", m.User.Name, "removed", m.Removed)
		if m.Removed {
			b.send(ctx, b.operatorID, fmt.Sprintf("%s removed.", m.User.Name))
			b.send(ctx, m.User.TelegramID, "Your channels are no longer tracked, by the operator's order.")
		} else {
			b.send(ctx, b.operatorID, fmt.Sprintf("%s not found.", m.User.Name))
		}
	case message.AuthorList:
		b.send(ctx, b.operatorID, renderAuthors(m.Authors))
	case message.ArticleList:
		if len(m.Articles) == 0 {
			b.send(ctx, m.TelegramID, "No articles.")
		} else {
			b.send(ctx, m.TelegramID, renderArticles(m.Articles))
		}
	case message.ChannelAdded:
		b.notifyChannelAdded(ctx, m)
	case message.ChannelRemoved:
		if m.Removed {
			b.send(ctx, m.TelegramID, fmt.Sprintf("%s is no longer tracked.", m.ZenID))
		} else {
			b.send(ctx, m.TelegramID, "You have no such channel.")
		}
	case message.ArticleBanned:
		b.logger.Info("article banned", "title", m.Title)
		b.send(ctx, m.TelegramID, fmt.Sprintf("Article %s is banned.\n%s", m.Title, m.URL))
	case message.RemindAdmin:
		// Re-queued to self until an operator is known; the next Poll in the
		// queue paces the retry.
		if b.operatorID >= 0 {
			b.send(ctx, b.operatorID, m.Text)
		} else if err := b.mb.Send(m); err != nil {
			b.logger.Warn("requeue reminder", "error", err)
		}
	default:
		b.logger.Warn("unknown message", "type", fmt.Sprintf("%T", msg))
	}
}

// poll processes one long-poll batch, then re-enqueues itself. Pacing comes
// from the transport's long-poll timeout, not from a timer.
func (b *Bot) poll(ctx context.Context) {
	defer func() {
		if err := b.mb.Send(message.Poll{}); err != nil {
			b.logger.Info("poll loop stopped", "error", err)
		}
	}()

	updates, err := b.transport.FetchUpdates(ctx, b.offset, b.pollTimeoutSec)
	if err != nil {
		b.logger.Warn("fetch updates", "error", err)
		return
	}

	for _, update := range updates {
		b.offset = update.UpdateID + 1
		// Non-text updates only advance the cursor.
		if update.Text == "" {
			continue
		}
		b.dispatch(ctx, update)
	}
}

func (b *Bot) dispatch(ctx context.Context, u ports.Update) {
	verb, rest := splitCommand(u.Text)

	switch verb {
	case "password":
		if rest != b.password {
			b.send(ctx, u.SenderID, "I do not have the honor of knowing you.")
			return
		}
		b.operatorID = u.SenderID
		b.send(ctx, u.SenderID, "At your service.")
		b.command(message.AddAuthor{Name: u.SenderName})
	case "add-author":
		if !b.fromOperator(ctx, u) {
			return
		}
		b.command(message.AddAuthor{Name: rest})
	case "remove-author":
		if !b.fromOperator(ctx, u) {
			return
		}
		b.command(message.RemoveAuthor{Name: rest})
	case "list":
		switch strings.ToLower(rest) {
		case "authors":
			if !b.fromOperator(ctx, u) {
				return
			}
			b.command(message.ListAuthors{})
		case "articles":
			b.command(message.ListArticles{TelegramID: u.SenderID})
		default:
			b.misunderstand(ctx, u.SenderID)
		}
	case "subscribe":
		b.withChannelID(ctx, rest, u.SenderID, func(zenID string) {
			b.command(message.Subscribe{Name: u.SenderName, TelegramID: u.SenderID, ZenID: zenID})
		})
	case "unsubscribe":
		b.withChannelID(ctx, rest, u.SenderID, func(zenID string) {
			b.command(message.Unsubscribe{TelegramID: u.SenderID, ZenID: zenID})
		})
	default:
		b.misunderstand(ctx, u.SenderID)
	}
}

func (b *Bot) notifyChannelAdded(ctx context.Context, m message.ChannelAdded) {
	b.logger.Info("channel added", "name", m.User.Name, "channel", m.ZenID)
	switch m.User.Rights {
	case domain.UnknownUser:
		reminder := fmt.Sprintf("%s wants their channels tracked.", m.User.Name)
		if err := b.mb.Send(message.RemindAdmin{Text: reminder}); err != nil {
			b.logger.Warn("queue reminder", "error", err)
		}
		b.send(ctx, m.User.TelegramID, "Waiting for the operator's confirmation.")
	case domain.Author:
		b.send(ctx, m.User.TelegramID, fmt.Sprintf("%s is now tracked.", m.ZenID))
	case domain.Waiting:
		b.send(ctx, m.User.TelegramID, "Your channels are not tracked: the operator ordered so, or has not confirmed you yet.")
	}
}

// fromOperator authorizes privileged verbs. Rejection is a fixed reply, not
// an error.
func (b *Bot) fromOperator(ctx context.Context, u ports.Update) bool {
	if b.operatorID < 0 || u.SenderID != b.operatorID {
		b.send(ctx, u.SenderID, "You are not allowed to do that.")
		return false
	}
	return true
}

func (b *Bot) withChannelID(ctx context.Context, text string, senderID int64, action func(zenID string)) {
	match := channelIDPattern.FindString(text)
	if match == "" {
		b.send(ctx, senderID, "Bad URL.")
		return
	}
	action(strings.TrimPrefix(match, "id/"))
}

func (b *Bot) misunderstand(ctx context.Context, telegramID int64) {
	b.send(ctx, telegramID, "I do not understand you.")
	b.send(ctx, telegramID, helpText)
}

func (b *Bot) command(msg message.Store) {
	if err := b.store.Send(msg); err != nil {
		b.logger.Warn("send to store", "error", err)
	}
}

func (b *Bot) send(ctx context.Context, telegramID int64, text string) {
	if telegramID < 0 {
		return
	}
	if err := b.transport.Send(ctx, telegramID, text); err != nil {
		b.logger.Warn("send message", "telegram_id", telegramID, "error", err)
	}
}

func splitCommand(text string) (verb, rest string) {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	verb = strings.ToLower(parts[0])
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return verb, rest
}

func renderAuthors(authors []domain.User) string {
	var builder strings.Builder
	builder.WriteString("Authors:\n")
	for _, user := range authors {
		builder.WriteString(user.Name)
		builder.WriteString("\n")
	}
	builder.WriteString("-----\n")
	fmt.Fprintf(&builder, "Total %d", len(authors))
	return builder.String()
}

func renderArticles(articles []domain.Article) string {
	var builder strings.Builder
	builder.WriteString("Articles:\n")
	for _, article := range articles {
		fmt.Fprintf(&builder, "- %s -- %s.\n", article.Title, stateWord(article.State))
	}
	builder.WriteString("-----\n")
	fmt.Fprintf(&builder, "Total %d", len(articles))
	return builder.String()
}

func stateWord(state domain.ArticleState) string {
	switch state {
	case domain.ArticleTested:
		return "tested"
	case domain.ArticleTesting:
		return "under testing"
	case domain.ArticleBanned:
		return "banned"
	case domain.ArticleUnavailable:
		return "temporarily unavailable"
	default:
		return "unknown"
	}
}
