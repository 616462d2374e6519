package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"ZenWatcher/internal/bot"
	"ZenWatcher/internal/feed"
	"ZenWatcher/internal/message"
	"ZenWatcher/internal/ports"
	"ZenWatcher/internal/store"
	"ZenWatcher/internal/tester"
	"ZenWatcher/internal/watcher"
)

// scriptedTransport plays back update batches one per poll and records
// every outbound message.
type scriptedTransport struct {
	mu      sync.Mutex
	batches [][]ports.Update
	calls   int
	sent    []string
}

func (s *scriptedTransport) FetchUpdates(ctx context.Context, offset int64, timeoutSec int) ([]ports.Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.batches) {
		// Stand in for the long-poll timeout so the loop does not spin hot.
		time.Sleep(5 * time.Millisecond)
		return nil, nil
	}
	batch := s.batches[s.calls]
	s.calls++
	return batch, nil
}

func (s *scriptedTransport) Send(ctx context.Context, telegramID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *scriptedTransport) sawMessage(fragment string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, text := range s.sent {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// TestPipelineScenario drives the four running actors through the full
// operator flow: authenticate, register an author, accept a subscription
// from that author, and deliver the pending reminder.
func TestPipelineScenario(t *testing.T) {
	feedServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer feedServer.Close()

	transport := &scriptedTransport{batches: [][]ports.Update{
		{{UpdateID: 1, SenderID: 7, SenderName: "admin", Text: "password secret123"}},
		{{UpdateID: 2, SenderID: 7, SenderName: "admin", Text: "add-author bob"}},
		{{UpdateID: 3, SenderID: 8, SenderName: "bob", Text: "subscribe https://zen.example/id/chY"}},
	}}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := store.Open(filepath.Join(t.TempDir(), "pipeline.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	st := store.New(db, 5, logger)
	bt := bot.New("secret123", transport, st.Mailbox(), 5, logger)
	fetcher := feed.NewHTTPFetcher(feedServer.Client())
	ts := tester.New(10*time.Millisecond, fetcher, st.Mailbox(), bt.Mailbox(), nil, logger)
	wt := watcher.New(20*time.Millisecond, 3, feed.NewClient(fetcher, feedServer.URL),
		st.Mailbox(), nil, logger)

	ctx := context.Background()
	peers := make(chan message.Peers)
	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); st.Run(peers) }()
	go func() { defer wg.Done(); bt.Run(ctx) }()
	go func() { defer wg.Done(); ts.Run(ctx) }()
	go func() { defer wg.Done(); wt.Run(ctx) }()

	peers <- message.Peers{Bot: bt.Mailbox(), Tester: ts.Mailbox(), Watcher: wt.Mailbox()}
	close(peers)

	if err := bt.Mailbox().Send(message.Poll{}); err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	if err := ts.Mailbox().Send(message.CheckArticles{}); err != nil {
		t.Fatalf("seed tester: %v", err)
	}
	if err := wt.Mailbox().Send(message.CheckChannels{}); err != nil {
		t.Fatalf("seed watcher: %v", err)
	}

	waitFor(t, "operator acknowledgment", func() bool {
		return transport.sawMessage("At your service.")
	})
	waitFor(t, "operator registration notice", func() bool {
		return transport.sawMessage("admin added.")
	})
	waitFor(t, "author added notice", func() bool {
		return transport.sawMessage("bob added.")
	})
	waitFor(t, "pending confirmation reply", func() bool {
		return transport.sawMessage("Waiting for the operator's confirmation.")
	})
	waitFor(t, "operator reminder", func() bool {
		return transport.sawMessage("bob wants their channels tracked.")
	})

	bt.Mailbox().Close()
	ts.Mailbox().Close()
	wt.Mailbox().Close()
	st.Mailbox().Close()
	wg.Wait()
}
