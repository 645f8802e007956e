package emails

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/owya490/sportshub-backend/pkg/config"
	pkgerrors "github.com/owya490/sportshub-backend/pkg/errors"
	"github.com/owya490/sportshub-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	sendgridEndpoint = "https://api.sendgrid.com/v3/mail/send"
	sendTimeout      = 10 * time.Second
)

// SendgridSender delivers transactional email through the SendGrid v3 API.
type SendgridSender struct {
	cfg      config.SendgridConfig
	client   *http.Client
	logg     *logger.Logger
	endpoint string
}

// NewSendgridSender builds a SendGrid-backed sender. Falls back to a log
// sender when no API key is configured so development environments work
// without credentials.
func NewSendgridSender(cfg config.SendgridConfig, logg *logger.Logger) (Sender, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.APIKey == "" {
		return NewLogSender(logg)
	}
	return &SendgridSender{
		cfg:      cfg,
		client:   &http.Client{Timeout: sendTimeout},
		logg:     logg,
		endpoint: sendgridEndpoint,
	}, nil
}

type sendgridMail struct {
	Personalizations []sendgridPersonalization `json:"personalizations"`
	From             sendgridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendgridContent         `json:"content"`
}

type sendgridPersonalization struct {
	To []sendgridAddress `json:"to"`
}

type sendgridAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendgridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (s *SendgridSender) SendReceipt(ctx context.Context, email ReceiptEmail) error {
	amount := decimal.NewFromInt(email.AmountCents).Div(decimal.NewFromInt(100))
	subject := fmt.Sprintf("Your tickets for %s", email.EventName)
	body := fmt.Sprintf(
		"Hi %s,\n\nThanks for your purchase. You have %d ticket(s) for %s.\nTotal paid: $%s AUD.\nOrder reference: %s.\n\nSee you there!",
		email.FullName, email.TicketCount, email.EventName, amount.StringFixed(2), email.OrderID,
	)
	return s.send(ctx, email.To, email.FullName, subject, body)
}

func (s *SendgridSender) SendDecision(ctx context.Context, email DecisionEmail) error {
	outcome := "approved"
	if !email.Approved {
		outcome = "declined"
	}
	subject := fmt.Sprintf("Your booking for %s was %s", email.EventName, outcome)
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking request for %s has been %s.\nOrder reference: %s.",
		email.FullName, email.EventName, outcome, email.OrderID,
	)
	return s.send(ctx, email.To, email.FullName, subject, body)
}

func (s *SendgridSender) send(ctx context.Context, to, name, subject, body string) error {
	mail := sendgridMail{
		Personalizations: []sendgridPersonalization{
			{To: []sendgridAddress{{Email: to, Name: name}}},
		},
		From:    sendgridAddress{Email: s.cfg.DefaultFrom, Name: "SportsHub"},
		Subject: subject,
		Content: []sendgridContent{{Type: "text/plain", Value: body}},
	}

	payload, err := json.Marshal(mail)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding email payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building email request")
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling sendgrid")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return pkgerrors.New(pkgerrors.CodeDependency, "sendgrid rejected email").
			WithDetails(map[string]any{"status": resp.StatusCode, "detail": string(detail)})
	}
	return nil
}
