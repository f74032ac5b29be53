// Package twilio provides a client for sending SMS and placing voice calls
// through the Twilio REST API.
//
// Designed to be used as the telephony provider in the exitpal system.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://api.twilio.com"

// Config holds Twilio account credentials and callback addressing.
type Config struct {
	AccountSID  string
	AuthToken   string
	From        string // default sender number in E.164 format
	CallbackURL string // public base URL for status webhooks and call scripts
	BaseURL     string // API base URL, defaults to the Twilio cloud
}

// Client represents a Twilio client used to deliver scheduled messages.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a new Twilio Client instance with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// createResponse represents the subset of the Twilio API response we need.
type createResponse struct {
	SID string `json:"sid"` // provider reference for the created resource
}

// SendText sends an SMS to the given number and returns the provider
// reference Twilio assigned to it.
func (c *Client) SendText(ctx context.Context, to, body, from string) (string, error) {
	if from == "" {
		from = c.cfg.From
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)
	form.Set("StatusCallback", c.cfg.CallbackURL+"/api/webhook/sms")

	return c.create(ctx, "Messages.json", form)
}

// PlaceVoiceCall places an outbound call that reads the given text to the
// recipient and returns the provider reference Twilio assigned to it.
//
// The spoken text is not sent inline; Twilio fetches the call script from
// our /api/twiml endpoint when the recipient answers.
func (c *Client) PlaceVoiceCall(ctx context.Context, to, spokenText, from string) (string, error) {
	if from == "" {
		from = c.cfg.From
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Url", c.cfg.CallbackURL+"/api/twiml?message="+url.QueryEscape(spokenText))
	form.Set("StatusCallback", c.cfg.CallbackURL+"/api/webhook/voice")

	return c.create(ctx, "Calls.json", form)
}

// create posts a form-encoded resource-creation request to the account API
// and returns the new resource's sid.
func (c *Client) create(ctx context.Context, resource string, form url.Values) (string, error) {
	endpoint := fmt.Sprintf(
		"%s/2010-04-01/Accounts/%s/%s",
		c.cfg.BaseURL, c.cfg.AccountSID, resource,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("twilio API error: %s", resp.Status)
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return created.SID, nil
}
