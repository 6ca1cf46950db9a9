package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gatekeeper.backend/internal/domain/entities"
	domainerrors "gatekeeper.backend/internal/domain/errors"
	"gatekeeper.backend/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultAPIURL  = "https://api.telegram.org"
	defaultTimeout = 10 * time.Second
)

// APIError is a request the Bot API answered with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Unwrap classifies the rejection. Rate limits and server errors are
// transient, everything else is a platform refusal.
func (e *APIError) Unwrap() error {
	if e.Code == http.StatusTooManyRequests || e.Code >= 500 {
		return domainerrors.ErrNetwork
	}
	return domainerrors.ErrPlatform
}

// Client talks to the Telegram Bot API
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	meMu sync.Mutex
	me   *User
}

// NewClient creates a Bot API client. Each request is bounded by timeout.
func NewClient(token, apiURL string, timeout time.Duration) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		token:      token,
		baseURL:    strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

func (c *Client) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token; report the method only.
		return fmt.Errorf("%w: telegram %s: %v", domainerrors.ErrNetwork, method, redact(err.Error(), c.token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: telegram %s: read body: %v", domainerrors.ErrNetwork, method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 500 {
			return &APIError{Method: method, Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !envelope.OK {
		code := envelope.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return &APIError{Method: method, Code: code, Description: envelope.Description}
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "<token>")
}

// GetMe returns the bot's own user. The result is cached after the first success.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	c.meMu.Lock()
	defer c.meMu.Unlock()
	if c.me != nil {
		return c.me, nil
	}

	var me User
	if err := c.call(ctx, "getMe", struct{}{}, &me); err != nil {
		return nil, err
	}
	c.me = &me
	return c.me, nil
}

// CreateSingleUseInvitation creates a named join-request invite link
func (c *Client) CreateSingleUseInvitation(ctx context.Context, chatID int64, name string, expiresAt time.Time) (*entities.Invitation, error) {
	payload := map[string]interface{}{
		"chat_id":              chatID,
		"name":                 name,
		"creates_join_request": true,
	}
	if !expiresAt.IsZero() {
		payload["expire_date"] = expiresAt.Unix()
	}

	var link ChatInviteLink
	if err := c.call(ctx, "createChatInviteLink", payload, &link); err != nil {
		return nil, err
	}
	if link.Name == "" {
		link.Name = name
	}
	return &entities.Invitation{Name: link.Name, Link: link.InviteLink}, nil
}

// RevokeInvitation revokes an invite link
func (c *Client) RevokeInvitation(ctx context.Context, chatID int64, link string) error {
	return c.call(ctx, "revokeChatInviteLink", map[string]interface{}{
		"chat_id":     chatID,
		"invite_link": link,
	}, nil)
}

// ApproveJoinRequest approves a pending join request
func (c *Client) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "approveChatJoinRequest", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

// RemoveMember bans the user, removing them from the chat
func (c *Client) RemoveMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "banChatMember", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	}, nil)
}

// ReinstateMember lifts the ban so the user may rejoin through a new invitation
func (c *Client) ReinstateMember(ctx context.Context, chatID, userID int64) error {
	return c.call(ctx, "unbanChatMember", map[string]interface{}{
		"chat_id":        chatID,
		"user_id":        userID,
		"only_if_banned": true,
	}, nil)
}

// NotifyUser sends a plain direct message
func (c *Client) NotifyUser(ctx context.Context, userID int64, text string) error {
	return c.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": userID,
		"text":    text,
	}, nil)
}

// IsAdmin reports whether userID administers chatID
func (c *Client) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	var member ChatMember
	if err := c.call(ctx, "getChatMember", map[string]interface{}{
		"chat_id": chatID,
		"user_id": userID,
	}, &member); err != nil {
		return false, err
	}
	return member.IsAdmin(), nil
}

// IsBotAdmin reports whether the bot itself administers chatID
func (c *Client) IsBotAdmin(ctx context.Context, chatID int64) (bool, error) {
	me, err := c.GetMe(ctx)
	if err != nil {
		return false, err
	}
	return c.IsAdmin(ctx, chatID, me.ID)
}

// SendMessage posts an HTML message with an optional inline keyboard
func (c *Client) SendMessage(ctx context.Context, chatID int64, msg entities.BotMessage) error {
	payload := messagePayload(msg)
	payload["chat_id"] = chatID
	return c.call(ctx, "sendMessage", payload, nil)
}

// EditMessage replaces the text and keyboard of a message the bot sent
func (c *Client) EditMessage(ctx context.Context, chatID, messageID int64, msg entities.BotMessage) error {
	payload := messagePayload(msg)
	payload["chat_id"] = chatID
	payload["message_id"] = messageID
	err := c.call(ctx, "editMessageText", payload, nil)
	var apiErr *APIError
	if asAPIError(err, &apiErr) && strings.Contains(apiErr.Description, "message is not modified") {
		return nil
	}
	return err
}

// AnswerCallback acknowledges a button press
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return c.call(ctx, "answerCallbackQuery", map[string]interface{}{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        alert,
	}, nil)
}

// SetWebhook registers url as the update endpoint
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	logger.Info(ctx, "Registering Telegram webhook", zap.String("url", redact(url, c.token)))
	return c.call(ctx, "setWebhook", map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message", "channel_post", "callback_query", "chat_join_request"},
	}, nil)
}

func messagePayload(msg entities.BotMessage) map[string]interface{} {
	payload := map[string]interface{}{
		"text":                     msg.Text,
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	if len(msg.Keyboard) > 0 {
		markup := inlineKeyboardMarkup{InlineKeyboard: make([][]inlineKeyboardButton, 0, len(msg.Keyboard))}
		for _, row := range msg.Keyboard {
			buttons := make([]inlineKeyboardButton, 0, len(row))
			for _, b := range row {
				buttons = append(buttons, inlineKeyboardButton{Text: b.Text, CallbackData: b.CallbackData, URL: b.URL})
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
		}
		payload["reply_markup"] = markup
	}
	return payload
}

func asAPIError(err error, target **APIError) bool {
	if err == nil {
		return false
	}
	return errors.As(err, target)
}
