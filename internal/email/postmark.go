package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client sends transactional email through Postmark. When no server token is
// configured every send fails with an explicit error, which callers decide to
// surface or swallow.
type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient creates a Postmark client. baseURL is the application's public
// origin, used to build links in email bodies.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendEmailConfirmation delivers the long-form code that confirms ownership
// of an email address, as a clickable link.
func (c *Client) SendEmailConfirmation(toEmail, code string) error {
	link := fmt.Sprintf("%s/verify/email/confirm?code=%s", c.baseURL, code)
	text := fmt.Sprintf("Confirm your email address to finish setting up your account:\n\n%s", link)
	html := fmt.Sprintf(
		`<p>Confirm your email address to finish setting up your account:</p><p><a href="%s">Confirm email</a></p>`,
		link,
	)
	return c.send(toEmail, "Confirm your email address", html, text)
}

// SendVerificationCode delivers the short device-verification code by email.
// Used as the fallback channel when SMS delivery is unavailable.
func (c *Client) SendVerificationCode(toEmail, code string) error {
	text := fmt.Sprintf("Your verification code is %s", code)
	html := fmt.Sprintf(`<p>Your verification code is <strong>%s</strong></p>`, code)
	return c.send(toEmail, "Your verification code", html, text)
}

// SendUntrustedDeviceAlert tells the account holder that a sign-in from an
// unrecognized device triggered a verification challenge.
func (c *Client) SendUntrustedDeviceAlert(toEmail, ip string) error {
	text := fmt.Sprintf(
		"A sign-in to your account from an unrecognized device (IP %s) requires verification. If this was not you, change your password.",
		ip,
	)
	html := fmt.Sprintf(
		`<p>A sign-in to your account from an unrecognized device (IP %s) requires verification.</p><p>If this was not you, change your password.</p>`,
		ip,
	)
	return c.send(toEmail, "New device sign-in", html, text)
}

// SendInvite delivers a firm invitation with its redemption link.
func (c *Client) SendInvite(toEmail, token, firmName string) error {
	link := fmt.Sprintf("%s/invite/accept?token=%s", c.baseURL, token)
	text := fmt.Sprintf("You've been invited to join %s. Accept the invitation:\n\n%s\n\nThis invitation expires in 7 days.", firmName, link)
	html := fmt.Sprintf(
		`<p>You've been invited to join %s.</p><p><a href="%s">Accept invitation</a></p><p>This invitation expires in 7 days.</p>`,
		firmName, link,
	)
	return c.send(toEmail, fmt.Sprintf("Invitation to join %s", firmName), html, text)
}

// SendRegistrationReminder nudges an account that registered but never
// confirmed its email address.
func (c *Client) SendRegistrationReminder(toEmail, code string) error {
	link := fmt.Sprintf("%s/verify/email/confirm?code=%s", c.baseURL, code)
	text := fmt.Sprintf("Your account setup is unfinished. Confirm your email address to continue:\n\n%s", link)
	html := fmt.Sprintf(
		`<p>Your account setup is unfinished. Confirm your email address to continue:</p><p><a href="%s">Confirm email</a></p>`,
		link,
	)
	return c.send(toEmail, "Finish setting up your account", html, text)
}

func (c *Client) send(toEmail, subject, htmlBody, textBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.postmarkapp.com/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
