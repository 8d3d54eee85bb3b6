// Package sms delivers verification codes over SMS through the Twilio
// Messages API.
package sms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

// Client sends SMS through Twilio. When no account SID is configured,
// Configured reports false and callers fall back to email delivery.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(accountSID, authToken, fromNumber string, opts ...Option) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the account SID is set.
func (c *Client) Configured() bool {
	return c.accountSID != ""
}

// SendVerificationCode texts the short code to the number. Transient
// failures (network errors, 5xx, 429) are retried with backoff; client
// errors fail immediately.
func (c *Client) SendVerificationCode(ctx context.Context, toNumber, code string) error {
	if !c.Configured() {
		return fmt.Errorf("sms client not configured: missing account sid")
	}

	body := fmt.Sprintf("Your verification code is %s", code)

	backoff := retry.WithMaxRetries(3, retry.NewExponential(250*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.send(ctx, toNumber, body)
	})
}

func (c *Client) send(ctx context.Context, toNumber, body string) error {
	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", c.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", c.accountSID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("send sms: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("twilio API error: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("twilio API error: status %d", resp.StatusCode)
	}
}
