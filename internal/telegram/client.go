package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"ZenWatcher/internal/ports"
)

const apiBase = "https://api.telegram.org"

// Client talks to the Telegram Bot API over plain HTTP.
type Client struct {
	botToken string
	baseURL  string
	client   *http.Client
}

var _ ports.Transport = (*Client)(nil)

// NewClient registers the bot token. A nil http.Client gets a sane default;
// its timeout must exceed the long-poll timeout passed to FetchUpdates.
func NewClient(botToken string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{botToken: botToken, baseURL: apiBase, client: client}
}

type updateResponse struct {
	OK     bool `json:"ok"`
	Result []struct {
		UpdateID int64 `json:"update_id"`
		Message  *struct {
			Text string `json:"text"`
			From *struct {
				ID       int64  `json:"id"`
				Username string `json:"username"`
			} `json:"from"`
		} `json:"message"`
	} `json:"result"`
}

// FetchUpdates long-polls getUpdates starting at offset. Updates without a
// text message keep their UpdateID but carry empty text, so the caller's
// cursor still advances past them.
func (c *Client) FetchUpdates(ctx context.Context, offset int64, timeoutSec int) ([]ports.Update, error) {
	form := url.Values{}
	form.Set("offset", strconv.FormatInt(offset, 10))
	form.Set("timeout", strconv.Itoa(timeoutSec))

	body, err := c.call(ctx, "getUpdates", form)
	if err != nil {
		return nil, err
	}

	var parsed updateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode getUpdates: %w", err)
	}
	if !parsed.OK {
		return nil, fmt.Errorf("telegram getUpdates rejected")
	}

	updates := make([]ports.Update, 0, len(parsed.Result))
	for _, raw := range parsed.Result {
		u := ports.Update{UpdateID: raw.UpdateID}
		if raw.Message != nil && raw.Message.From != nil {
			u.SenderID = raw.Message.From.ID
			u.SenderName = raw.Message.From.Username
			u.Text = raw.Message.Text
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// Send posts a plain-text message to the given chat handle.
func (c *Client) Send(ctx context.Context, telegramID int64, text string) error {
	form := url.Values{}
	form.Set("chat_id", strconv.FormatInt(telegramID, 10))
	form.Set("text", text)

	_, err := c.call(ctx, "sendMessage", form)
	return err
}

func (c *Client) call(ctx context.Context, method string, form url.Values) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram %s: %s", method, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
