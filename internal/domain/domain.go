package domain

import "time"

// UnsetTelegramID marks a user created by name only, before any chat
// message from them has been seen.
const UnsetTelegramID = -1

// Rights is a user's access tier.
type Rights int

const (
	UnknownUser Rights = iota
	Author
	Waiting
)

// ChannelState tracks availability of a subscribed feed channel.
type ChannelState int

const (
	ChannelNew ChannelState = iota
	ChannelAvailable
	ChannelUnavailable
)

// ArticleState tracks a discovered article through its probation window.
type ArticleState int

const (
	ArticleTesting ArticleState = iota
	ArticleTested
	ArticleBanned
	ArticleUnavailable
)

// User is a registered content author or a pending applicant.
type User struct {
	TelegramID int64
	Name       string
	Rights     Rights
}

// Channel is one subscribed feed channel. Fails counts consecutive
// unavailability reports; once it reaches the configured threshold the
// channel is dead and excluded from polling.
type Channel struct {
	AuthorID int64
	ZenID    string
	State    ChannelState
	Fails    int
}

// Article is one discovered piece of content. URL is the dedup key.
// AuthorTelegramID is filled when the article is read back from storage;
// freshly discovered articles are matched to their channel by ZenID.
type Article struct {
	AuthorTelegramID int64
	ZenID            string
	Title            string
	URL              string
	State            ArticleState
	EndOfTesting     time.Time
}
