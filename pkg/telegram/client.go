// Package telegram is a minimal Telegram Bot API client covering the
// methods the checker needs: fetching updates and posting into forum
// topics.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Client talks to the Bot API. It carries its base configuration
// explicitly so call sites never depend on process-wide state.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API host. Tests point this at a local server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the given bot token.
func New(token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// apiResponse is the Bot API envelope around every result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) post(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	return decodeResponse(method, resp, result)
}

func decodeResponse(method string, resp *http.Response, result any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned HTTP %d: %s", method, resp.StatusCode, truncate(data, 200))
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("%s rejected: %s", method, envelope.Description)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to parse %s result: %w", method, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

// GetUpdates fetches pending message updates starting at offset. The
// short long-poll timeout keeps a cron invocation from hanging on an
// idle stream.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("limit", "100")
	q.Set("timeout", "5")
	q.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getUpdates request failed: %w", err)
	}
	defer resp.Body.Close()

	var updates []Update
	if err := decodeResponse("getUpdates", resp, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage posts a text message into a topic thread.
func (c *Client) SendMessage(ctx context.Context, chatID, threadID int64, text string) error {
	return c.post(ctx, "sendMessage", map[string]any{
		"chat_id":              chatID,
		"message_thread_id":    threadID,
		"text":                 text,
		"disable_notification": false,
	}, nil)
}

// SendMessageWithButtons posts a message with a single row of inline
// keyboard buttons and returns the sent message id.
func (c *Client) SendMessageWithButtons(ctx context.Context, chatID, threadID int64, text string, buttons []Button) (int64, error) {
	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	err := c.post(ctx, "sendMessage", map[string]any{
		"chat_id":              chatID,
		"message_thread_id":    threadID,
		"text":                 text,
		"disable_notification": false,
		"reply_markup":         map[string]any{"inline_keyboard": [][]Button{buttons}},
	}, &sent)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text of an existing message, dropping any
// inline keyboard it carried.
func (c *Client) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	return c.post(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}, nil)
}

// AnswerCallback acknowledges a callback query so the client stops
// showing its loading spinner.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	return c.post(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
	}, nil)
}
