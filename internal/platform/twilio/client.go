// Package twilio wraps the Twilio Messages API for the SMS and WhatsApp
// channels.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	twiliogo "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/tinywideclouds/go-notification-gateway/pkg/dispatch"
)

const providerName = "twilio"

// MessagesAPI is the subset of the twilio-go v2010 API service we use.
// *openapi.ApiService satisfies it.
type MessagesAPI interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Config holds the account credentials.
type Config struct {
	AccountSID string
	AuthToken  string
}

// Option customises a Client.
type Option func(*Client)

// WithMessagesAPI replaces the twilio-go service, mostly for tests.
func WithMessagesAPI(api MessagesAPI) Option {
	return func(c *Client) {
		if api != nil {
			c.api = api
		}
	}
}

// MessageParams is one outbound message.
type MessageParams struct {
	From string
	To   string
	Body string
}

// Message is the part of Twilio's message resource we keep.
type Message struct {
	SID    string
	Status string
}

// Client creates messages through the Twilio REST API.
type Client struct {
	api MessagesAPI
}

// NewClient validates the credentials and builds a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	sid := strings.TrimSpace(cfg.AccountSID)
	token := strings.TrimSpace(cfg.AuthToken)
	if sid == "" {
		return nil, errors.New("twilio: account SID is required")
	}
	if token == "" {
		return nil, errors.New("twilio: auth token is required")
	}

	c := &Client{}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.api == nil {
		rest := twiliogo.NewRestClientWithParams(twiliogo.ClientParams{
			Username: sid,
			Password: token,
		})
		c.api = rest.Api
	}
	return c, nil
}

// CreateMessage sends one message. Failures are returned as
// *dispatch.ProviderError. The twilio-go call takes no context, so ctx is
// only checked before the request; the dispatch timeout bounds the rest.
func (c *Client) CreateMessage(ctx context.Context, params MessageParams) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, &dispatch.ProviderError{Provider: providerName, Err: err}
	}

	p := &openapi.CreateMessageParams{}
	p.SetTo(params.To)
	p.SetFrom(params.From)
	p.SetBody(params.Body)

	resp, err := c.api.CreateMessage(p)
	if err != nil {
		return nil, providerError(err)
	}

	msg := &Message{}
	if resp != nil {
		if resp.Sid != nil {
			msg.SID = *resp.Sid
		}
		if resp.Status != nil {
			msg.Status = *resp.Status
		}
	}
	return msg, nil
}

// providerError classifies a twilio-go failure. API errors carry the HTTP
// status and Twilio's own error code; anything else is a transport failure.
func providerError(err error) *dispatch.ProviderError {
	var restErr *twclient.TwilioRestError
	if errors.As(err, &restErr) {
		return dispatch.NewHTTPProviderError(providerName, restErr.Status,
			fmt.Errorf("error %d: %s", restErr.Code, restErr.Message))
	}
	return &dispatch.ProviderError{Provider: providerName, Err: err}
}
