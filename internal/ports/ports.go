package ports

import "context"

// Update is one inbound chat message.
type Update struct {
	UpdateID   int64
	SenderID   int64
	SenderName string
	Text       string
}

// Transport is the chat boundary: long-poll inbound updates and send
// replies to a numeric chat handle.
type Transport interface {
	// FetchUpdates returns updates with id >= offset, long-polling up to
	// timeoutSec seconds.
	FetchUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error)
	Send(ctx context.Context, telegramID int64, text string) error
}

// Fetcher retrieves a URL as text. Any transport failure or non-200 status
// is reported as an error; callers fold it into their availability state.
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}
