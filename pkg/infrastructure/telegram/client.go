// Package telegram sends bot messages through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	httputil "github.com/stravabot/server/pkg/infrastructure/http"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	// MaxMessageLength is Telegram's limit for one text message.
	MaxMessageLength = 4096
)

var ErrNoToken = errors.New("telegram bot token not configured")

type Client struct {
	token   string
	baseURL string
	client  *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send delivers text to the chat identified by userID. Texts longer than
// Telegram's limit are split across several messages.
func (c *Client) Send(ctx context.Context, userID, text string) error {
	for _, chunk := range splitMessage(text, MaxMessageLength) {
		if err := c.sendMessage(ctx, userID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) sendMessage(ctx context.Context, chatID, text string) error {
	if c.token == "" {
		return ErrNoToken
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, DisableWebPagePreview: true})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of the error.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("sendMessage: %w", urlErr.Err)
		}
		return fmt.Errorf("sendMessage: %w", err)
	}
	defer resp.Body.Close()

	if err := httputil.ParseErrorResponse(resp); err != nil {
		var httpErr *httputil.HTTPError
		if errors.As(err, &httpErr) {
			httpErr.URL = ""
		}
		return err
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode sendMessage response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("sendMessage rejected: %s", out.Description)
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
