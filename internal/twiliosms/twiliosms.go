// Package twiliosms wraps the Twilio REST API for outbound SMS in LeadLine.
package twiliosms

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/leadline/leadline/internal/models"
)

// Sender is the outbound SMS abstraction consumed by the automation responder.
type Sender interface {
	SendSMS(ctx context.Context, to string, body string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number in E.164 format.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// Client wraps the Twilio REST API for SMS.
type Client struct {
	client *twilio.RestClient
	from   string
}

// NewClient builds a Twilio SMS client, falling back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN, and TWILIO_FROM_NUMBER environment
// variables for any option not provided.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client: client,
		from:   cfg.FromNumber,
	}, nil
}

// SendSMS sends an SMS using the Twilio API. The recipient is canonicalized
// and sent in E.164 format.
func (c *Client) SendSMS(ctx context.Context, to string, body string) error {
	canonical, err := models.CanonicalizePhone(to)
	if err != nil {
		slog.Error("Twilio SendSMS invalid recipient", "to", models.RedactPhone(to), "error", err)
		return fmt.Errorf("invalid recipient: %w", err)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo("+" + canonical)
	params.SetFrom(c.from)
	params.SetBody(body)

	_, err = c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendSMS failed", "to", models.RedactPhone(to), "error", err)
		return fmt.Errorf("failed to send SMS to %s: %w", models.RedactPhone(to), err)
	}

	slog.Debug("Twilio SMS sent", "to", models.RedactPhone(to))
	return nil
}

// MockSender records sent messages for tests.
type MockSender struct {
	SentMessages []SentMessage
	// Err, when set, is returned from every SendSMS call.
	Err error
}

// SentMessage is one message captured by the MockSender.
type SentMessage struct {
	To   string
	Body string
}

// NewMockSender creates an empty MockSender.
func NewMockSender() *MockSender {
	return &MockSender{SentMessages: []SentMessage{}}
}

func (m *MockSender) SendSMS(ctx context.Context, to string, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}
