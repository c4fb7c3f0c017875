// Package telegram implements the chat transport over the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Iceeze/BitrixAssistant/internal/port/chat"
)

const defaultAPIBase = "https://api.telegram.org"

// Client is a Telegram Bot API client implementing chat.Sender.
type Client struct {
	token      string
	apiBase    string // tests point this at a local server
	httpClient *http.Client
}

// NewClient creates a client for the given bot token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		apiBase: defaultAPIBase,
		httpClient: &http.Client{
			Timeout: 65 * time.Second, // above the long-poll window
		},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

func toMarkup(keyboard [][]chat.Button) *inlineMarkup {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]inlineButton, 0, len(keyboard))
	for _, row := range keyboard {
		btns := make([]inlineButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, inlineButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, btns)
	}
	return &inlineMarkup{InlineKeyboard: rows}
}

// Send delivers a message with optional inline keyboard. Text is sent
// with HTML parse mode, matching how notification bodies are rendered.
func (c *Client) Send(ctx context.Context, msg chat.Message) error {
	payload := map[string]any{
		"chat_id":    msg.ChatID,
		"text":       msg.Text,
		"parse_mode": "HTML",
	}
	if markup := toMarkup(msg.Keyboard); markup != nil {
		payload["reply_markup"] = markup
	}
	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

// EditText replaces an earlier message's text and keyboard.
func (c *Client) EditText(ctx context.Context, chatID, messageID int64, text string, keyboard [][]chat.Button) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if markup := toMarkup(keyboard); markup != nil {
		payload["reply_markup"] = markup
	}
	_, err := c.call(ctx, "editMessageText", payload)
	return err
}

// DeleteMessage removes a message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	_, err := c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	})
	return err
}

// AnswerCallback acknowledges an inline button press.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	payload := map[string]any{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
		payload["show_alert"] = alert
	}
	_, err := c.call(ctx, "answerCallbackQuery", payload)
	return err
}

// getUpdates long-polls for incoming updates past offset.
func (c *Client) getUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	raw, err := c.call(ctx, "getUpdates", map[string]any{
		"offset":  offset,
		"timeout": timeout,
	})
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, fmt.Errorf("getUpdates decode: %w", err)
	}
	return updates, nil
}

func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s marshal: %w", method, err)
	}

	u := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%s decode (status %d): %w", method, resp.StatusCode, err)
	}
	if !apiResp.OK {
		return nil, fmt.Errorf("%s: telegram error %d: %s", method, apiResp.ErrorCode, apiResp.Description)
	}
	return apiResp.Result, nil
}
