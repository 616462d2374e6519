package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"ZenWatcher/internal/actor"
	"ZenWatcher/internal/domain"
	"ZenWatcher/internal/message"
	"ZenWatcher/internal/ports"
)

type sentMessage struct {
	telegramID int64
	text       string
}

// fakeTransport serves one batch of updates per FetchUpdates call and
// records outbound messages.
type fakeTransport struct {
	batches [][]ports.Update
	calls   int
	sent    []sentMessage
}

func (f *fakeTransport) FetchUpdates(ctx context.Context, offset int64, timeoutSec int) ([]ports.Update, error) {
	if f.calls >= len(f.batches) {
		return nil, nil
	}
	batch := f.batches[f.calls]
	f.calls++
	return batch, nil
}

func (f *fakeTransport) Send(ctx context.Context, telegramID int64, text string) error {
	f.sent = append(f.sent, sentMessage{telegramID: telegramID, text: text})
	return nil
}

func (f *fakeTransport) sentTo(telegramID int64) []string {
	var texts []string
	for _, m := range f.sent {
		if m.telegramID == telegramID {
			texts = append(texts, m.text)
		}
	}
	return texts
}

func newTestBot(transport *fakeTransport) (*Bot, *actor.Mailbox[message.Store]) {
	store := actor.NewMailbox[message.Store]()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New("secret123", transport, store, 5, logger), store
}

func update(id, sender int64, name, text string) ports.Update {
	return ports.Update{UpdateID: id, SenderID: sender, SenderName: name, Text: text}
}

func TestPasswordPromotesOperatorAndRegistersAuthor(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{batches: [][]ports.Update{
		{update(1, 7, "admin", "password secret123")},
	}}
	b, store := newTestBot(transport)

	b.handle(context.Background(), message.Poll{})

	if b.operatorID != 7 {
		t.Fatalf("expected operator 7, got %d", b.operatorID)
	}
	if got := transport.sentTo(7); len(got) != 1 || got[0] != "At your service." {
		t.Fatalf("unexpected replies: %v", got)
	}
	cmd, _ := store.Receive()
	if add, ok := cmd.(message.AddAuthor); !ok || add.Name != "admin" {
		t.Fatalf("expected AddAuthor{admin}, got %#v", cmd)
	}
}

func TestWrongPasswordIsRejected(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{batches: [][]ports.Update{
		{update(1, 7, "admin", "password nope")},
	}}
	b, store := newTestBot(transport)

	b.handle(context.Background(), message.Poll{})

	if b.operatorID != domain.UnsetTelegramID {
		t.Fatalf("operator should stay unset, got %d", b.operatorID)
	}
	if store.Len() != 0 {
		t.Fatalf("expected no store command")
	}
	if got := transport.sentTo(7); len(got) != 1 || !strings.Contains(got[0], "honor") {
		t.Fatalf("unexpected replies: %v", got)
	}
}

func TestUnauthorizedAdminCommands(t *testing.T) {
	t.Parallel()

	cases := []string{"add-author bob", "remove-author bob", "list authors"}
	for _, cmd := range cases {
		transport := &fakeTransport{batches: [][]ports.Update{
			{update(1, 8, "mallory", cmd)},
		}}
		b, store := newTestBot(transport)

		b.handle(context.Background(), message.Poll{})

		if store.Len() != 0 {
			t.Fatalf("%q: expected no store mutation", cmd)
		}
		if got := transport.sentTo(8); len(got) != 1 || got[0] != "You are not allowed to do that." {
			t.Fatalf("%q: unexpected replies: %v", cmd, got)
		}
	}
}

func TestOperatorCommandsReachStore(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{batches: [][]ports.Update{
		{
			update(1, 7, "admin", "password secret123"),
			update(2, 7, "admin", "Add-Author bob"),
			update(3, 7, "admin", "remove-author eve"),
			update(4, 7, "admin", "list authors"),
		},
	}}
	b, store := newTestBot(transport)

	b.handle(context.Background(), message.Poll{})

	want := []message.Store{
		message.AddAuthor{Name: "admin"},
		message.AddAuthor{Name: "bob"},
		message.RemoveAuthor{Name: "eve"},
		message.ListAuthors{},
	}
	for i, expected := range want {
		got, ok := store.Receive()
		if !ok {
			t.Fatalf("missing command %d", i)
		}
		if got != expected {
			t.Fatalf("command %d: expected %#v, got %#v", i, expected, got)
		}
	}
	if b.offset != 5 {
		t.Fatalf("expected cursor 5, got %d", b.offset)
	}
}

func TestListArticlesNeedsNoAuthorization(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{batches: [][]ports.Update{
		{update(1, 8, "bob", "list articles")},
	}}
	b, store := newTestBot(transport)

	b.handle(context.Background(), message.Poll{})

	cmd, _ := store.Receive()
	if list, ok := cmd.(message.ListArticles); !ok || list.TelegramID != 8 {
		t.Fatalf("expected ListArticles{8}, got %#v", cmd)
	}
}

func TestSubscribeExtractsChannelID(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{batches: [][]ports.Update{
		{
			update(1, 8, "bob", "subscribe https://zen.example/id/chY42?from=menu"),
			update(2, 8, "bob", "unsubscribe https://zen.example/id/chY42"),
			update(3, 8, "bob", "subscribe https://zen.example/profile"),
		},
	}}
	b, store := newTestBot(transport)

	b.handle(context.Background(), message.Poll{})

	cmd, _ := store.Receive()
	if sub, ok := cmd.(message.Subscribe); !ok || sub.ZenID != "chY42" || sub.TelegramID != 8 || sub.Name != "bob" {
		t.Fatalf("unexpected subscribe: %#v", cmd)
	}
	cmd, _ = store.Receive()
	if unsub, ok := cmd.(message.Unsubscribe); !ok || unsub.ZenID != "chY42" {
		t.Fatalf("unexpected unsubscribe: %#v", cmd)
	}

	// The third update has no id/ token: a fixed reply, no dispatch.
	if store.Len() != 0 {
		t.Fatalf("expected no further commands")
	}
	if got := transport.sentTo(8); len(got) != 1 || got[0] != "Bad URL." {
		t.Fatalf("unexpected replies: %v", got)
	}
}

func TestUnknownCommandGetsHelp(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{batches: [][]ports.Update{
		{update(1, 8, "bob", "hello there")},
	}}
	b, store := newTestBot(transport)

	b.handle(context.Background(), message.Poll{})

	if store.Len() != 0 {
		t.Fatalf("expected no store command")
	}
	got := transport.sentTo(8)
	if len(got) != 2 {
		t.Fatalf("expected misunderstanding plus help, got %v", got)
	}
	if !strings.Contains(got[1], "subscribe <url>") {
		t.Fatalf("help listing missing: %v", got)
	}
}

func TestPollRequeuesItself(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	b, _ := newTestBot(transport)

	b.handle(context.Background(), message.Poll{})

	msg, ok := b.mb.Receive()
	if !ok {
		t.Fatalf("expected requeued poll")
	}
	if _, ok := msg.(message.Poll); !ok {
		t.Fatalf("expected Poll, got %#v", msg)
	}
}

func TestRemindAdminSurvivesUntilOperatorKnown(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{batches: [][]ports.Update{
		{update(1, 7, "admin", "password secret123")},
	}}
	b, _ := newTestBot(transport)
	ctx := context.Background()

	reminder := message.RemindAdmin{Text: "bob wants their channels tracked."}
	b.handle(ctx, reminder)

	// No operator yet: the reminder is back in the bot's own queue.
	queued, ok := b.mb.Receive()
	if !ok || queued != message.Bot(reminder) {
		t.Fatalf("expected requeued reminder, got %#v", queued)
	}

	b.handle(ctx, message.Poll{})
	b.handle(ctx, queued)

	found := false
	for _, text := range transport.sentTo(7) {
		if text == reminder.Text {
			found = true
		}
	}
	if !found {
		t.Fatalf("reminder never reached the operator: %v", transport.sent)
	}
}

func TestChannelAddedBranches(t *testing.T) {
	t.Parallel()

	cases := []struct {
		rights domain.Rights
		want   string
		remind bool
	}{
		{domain.UnknownUser, "Waiting for the operator's confirmation.", true},
		{domain.Author, "chZ is now tracked.", false},
		{domain.Waiting, "Your channels are not tracked", false},
	}

	for _, tc := range cases {
		transport := &fakeTransport{}
		b, _ := newTestBot(transport)

		b.handle(context.Background(), message.ChannelAdded{
			User:  domain.User{TelegramID: 8, Name: "bob", Rights: tc.rights},
			ZenID: "chZ",
		})

		got := transport.sentTo(8)
		if len(got) != 1 || !strings.Contains(got[0], tc.want) {
			t.Fatalf("rights %v: unexpected replies: %v", tc.rights, got)
		}
		if tc.remind != (b.mb.Len() == 1) {
			t.Fatalf("rights %v: reminder queue mismatch", tc.rights)
		}
	}
}

func TestBanNoticeRendering(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	b, _ := newTestBot(transport)

	b.handle(context.Background(), message.ArticleBanned{
		TelegramID: 8, Title: "My Post", URL: "https://zen.example/a",
	})

	got := transport.sentTo(8)
	want := fmt.Sprintf("Article %s is banned.\n%s", "My Post", "https://zen.example/a")
	if len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected ban notice: %v", got)
	}
}

func TestArticleListRendering(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	b, _ := newTestBot(transport)
	ctx := context.Background()

	b.handle(ctx, message.ArticleList{TelegramID: 8})
	if got := transport.sentTo(8); len(got) != 1 || got[0] != "No articles." {
		t.Fatalf("unexpected empty-list reply: %v", got)
	}

	b.handle(ctx, message.ArticleList{
		TelegramID: 8,
		Articles: []domain.Article{
			{Title: "A", State: domain.ArticleTested},
			{Title: "B", State: domain.ArticleBanned},
		},
	})
	got := transport.sentTo(8)
	text := got[len(got)-1]
	for _, fragment := range []string{"- A -- tested.", "- B -- banned.", "Total 2"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("missing %q in %q", fragment, text)
		}
	}
}
