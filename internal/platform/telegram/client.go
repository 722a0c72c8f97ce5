// Package telegram implements the direct Telegram operation over the Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
	"github.com/tinywideclouds/go-notification-gateway/pkg/notification"
)

const (
	providerName = "telegram"

	// maxResponseBytes caps how much of a Bot API reply is read.
	maxResponseBytes = 1 << 20
)

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used to call the Bot API.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL points the client at another Bot API server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// Client sends text messages as a bot.
type Client struct {
	bot        *bot.Bot
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given bot token. No request is made
// until the first Send.
func NewClient(botToken string, logger *slog.Logger, opts ...Option) (*Client, error) {
	token := strings.TrimSpace(botToken)
	if token == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With("component", "TelegramClient"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	limited := *c.httpClient
	limited.Transport = limitedTransport{base: c.httpClient.Transport, limit: maxResponseBytes}

	botOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(time.Minute, &limited),
	}
	if c.baseURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(c.baseURL))
	}
	b, err := bot.New(token, botOpts...)
	if err != nil {
		return nil, errors.New("telegram: failed to create bot client")
	}
	c.bot = b
	return c, nil
}

// Send calls sendMessage. An empty chat id is rejected with a
// *dispatch.ValidationError before any request is made.
func (c *Client) Send(ctx context.Context, payload notification.TelegramPayload) (*notification.ProviderResult, error) {
	chatID := strings.TrimSpace(payload.ChatID)
	if chatID == "" {
		return nil, &dispatch.ValidationError{Field: "chatId", Reason: "is required"}
	}

	sent, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   payload.Text,
	})
	if err != nil {
		perr := providerError(err)
		c.logger.Error("Telegram rejected message", "code", perr.Code, "err", perr.Err)
		return nil, perr
	}
	if sent == nil {
		return nil, &dispatch.ProviderError{Provider: providerName, Code: dispatch.CodeInvalidResponse, Err: errors.New("empty result")}
	}

	c.logger.Info("Message sent to telegram", "message_id", sent.ID)
	return &notification.ProviderResult{
		Provider:  providerName,
		MessageID: strconv.Itoa(sent.ID),
		Status:    "sent",
		Meta:      map[string]string{"chatId": strconv.FormatInt(sent.Chat.ID, 10)},
	}, nil
}

// providerError maps the bot library's failures onto the dispatch taxonomy.
func providerError(err error) *dispatch.ProviderError {
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return dispatch.NewHTTPProviderError(providerName, http.StatusTooManyRequests, err)
	}
	for _, known := range []struct {
		sentinel error
		status   int
	}{
		{bot.ErrorBadRequest, http.StatusBadRequest},
		{bot.ErrorUnauthorized, http.StatusUnauthorized},
		{bot.ErrorForbidden, http.StatusForbidden},
		{bot.ErrorNotFound, http.StatusNotFound},
		{bot.ErrorConflict, http.StatusConflict},
	} {
		if errors.Is(err, known.sentinel) {
			return dispatch.NewHTTPProviderError(providerName, known.status, err)
		}
	}

	// The request URL embeds the bot token; keep it out of the error text.
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &dispatch.ProviderError{Provider: providerName, Err: uerr.Err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		return &dispatch.ProviderError{Provider: providerName, Code: dispatch.CodeInvalidResponse, Err: syntaxErr}
	case errors.As(err, &typeErr):
		return &dispatch.ProviderError{Provider: providerName, Code: dispatch.CodeInvalidResponse, Err: typeErr}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return &dispatch.ProviderError{Provider: providerName, Code: dispatch.CodeInvalidResponse, Err: io.ErrUnexpectedEOF}
	}
	return &dispatch.ProviderError{Provider: providerName, Err: err}
}

// limitedTransport truncates response bodies at limit bytes.
type limitedTransport struct {
	base  http.RoundTripper
	limit int64
}

func (t limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resp.Body = limitedBody{Reader: io.LimitReader(resp.Body, t.limit), Closer: resp.Body}
	return resp, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}
