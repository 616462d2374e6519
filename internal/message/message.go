// Package message defines the typed messages exchanged between the four
// pipeline actors. Keeping them in one leaf package lets every actor send to
// every other without import cycles.
package message

import (
	"ZenWatcher/internal/actor"
	"ZenWatcher/internal/domain"
)

// Store is a command for the store actor. Commands are processed strictly in
// arrival order, each inside its own transaction.
type Store interface{ storeMsg() }

// AddAuthor registers or promotes a user, by display name, to Author rights.
type AddAuthor struct{ Name string }

// RemoveAuthor deletes a user and, by cascade, their channels and articles.
type RemoveAuthor struct{ Name string }

// ListAuthors requests all users with Author rights.
type ListAuthors struct{}

// ListArticles requests all articles reachable from the user with the
// given chat handle.
type ListArticles struct{ TelegramID int64 }

// Subscribe inserts a new channel for the named user, creating the user if
// needed and binding their chat handle if it is still unset.
type Subscribe struct {
	Name       string
	TelegramID int64
	ZenID      string
}

// Unsubscribe removes the matching channel owned by the user with the
// given chat handle.
type Unsubscribe struct {
	TelegramID int64
	ZenID      string
}

// IngestDiscovery applies one watcher sweep: freshly discovered articles
// plus the per-channel availability snapshots.
type IngestDiscovery struct {
	Channels []domain.Channel
	Articles []domain.Article
}

// IngestTestResults writes back article states after one tester batch.
type IngestTestResults struct{ Articles []domain.Article }

func (AddAuthor) storeMsg()         {}
func (RemoveAuthor) storeMsg()      {}
func (ListAuthors) storeMsg()       {}
func (ListArticles) storeMsg()      {}
func (Subscribe) storeMsg()         {}
func (Unsubscribe) storeMsg()       {}
func (IngestDiscovery) storeMsg()   {}
func (IngestTestResults) storeMsg() {}

// Bot is a message for the chat actor.
type Bot interface{ botMsg() }

// Poll triggers one long-poll cycle over the chat transport. The bot
// re-enqueues it to itself after each processed batch.
type Poll struct{}

// AuthorAdded reports the outcome of AddAuthor. User carries the rights the
// record had before promotion, so the bot can tell a Waiting user their
// channels are tracked now.
type AuthorAdded struct{ User domain.User }

// AuthorRemoved reports the outcome of RemoveAuthor.
type AuthorRemoved struct {
	User    domain.User
	Removed bool
}

// AuthorList carries all registered authors.
type AuthorList struct{ Authors []domain.User }

// ArticleList carries one user's articles.
type ArticleList struct {
	TelegramID int64
	Articles   []domain.Article
}

// ChannelAdded reports a completed subscription.
type ChannelAdded struct {
	User  domain.User
	ZenID string
}

// ChannelRemoved reports the outcome of Unsubscribe.
type ChannelRemoved struct {
	TelegramID int64
	ZenID      string
	Removed    bool
}

// ArticleBanned reports a detected ban to the article's owner.
type ArticleBanned struct {
	TelegramID int64
	Title      string
	URL        string
}

// RemindAdmin is a note for the operator. While no operator is known the bot
// re-enqueues it to itself, so it is delivered once one authenticates.
type RemindAdmin struct{ Text string }

func (Poll) botMsg()           {}
func (AuthorAdded) botMsg()    {}
func (AuthorRemoved) botMsg()  {}
func (AuthorList) botMsg()     {}
func (ArticleList) botMsg()    {}
func (ChannelAdded) botMsg()   {}
func (ChannelRemoved) botMsg() {}
func (ArticleBanned) botMsg()  {}
func (RemindAdmin) botMsg()    {}

// Tester is a message for the tester actor.
type Tester interface{ testerMsg() }

// CheckArticles asks the tester to screen one batch of articles.
type CheckArticles struct{ Articles []domain.Article }

func (CheckArticles) testerMsg() {}

// Watcher is a message for the watcher actor.
type Watcher interface{ watcherMsg() }

// CheckChannels asks the watcher to poll one batch of channels.
type CheckChannels struct{ Channels []domain.Channel }

func (CheckChannels) watcherMsg() {}

// Peers is the startup rendezvous payload: the store receives the three
// mailboxes it delivers results to exactly once, before any command.
type Peers struct {
	Bot     *actor.Mailbox[Bot]
	Tester  *actor.Mailbox[Tester]
	Watcher *actor.Mailbox[Watcher]
}
