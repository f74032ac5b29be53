// Package vonage provides a client for sending SMS and placing voice calls
// through the Vonage (formerly Nexmo) APIs.
//
// Designed to be used as the telephony provider in the exitpal system.
package vonage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultSMSBaseURL   = "https://rest.nexmo.com"
	defaultVoiceBaseURL = "https://api.nexmo.com"
)

// Config holds Vonage API credentials and callback addressing.
type Config struct {
	APIKey       string
	APISecret    string
	From         string // default sender number or alphanumeric id
	CallbackURL  string // public base URL for delivery receipts
	SMSBaseURL   string // SMS API base URL, defaults to the Vonage cloud
	VoiceBaseURL string // Voice API base URL, defaults to the Vonage cloud
}

// Client represents a Vonage client used to deliver scheduled messages.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a new Vonage Client instance with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.SMSBaseURL == "" {
		cfg.SMSBaseURL = defaultSMSBaseURL
	}
	if cfg.VoiceBaseURL == "" {
		cfg.VoiceBaseURL = defaultVoiceBaseURL
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// smsResponse represents the subset of the SMS API response we need.
type smsResponse struct {
	Messages []struct {
		MessageID string `json:"message-id"`
		Status    string `json:"status"` // "0" means accepted
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

// SendText sends an SMS to the given number and returns the provider
// reference Vonage assigned to it.
func (c *Client) SendText(ctx context.Context, to, body, from string) (string, error) {
	if from == "" {
		from = c.cfg.From
	}

	form := url.Values{}
	form.Set("api_key", c.cfg.APIKey)
	form.Set("api_secret", c.cfg.APISecret)
	form.Set("to", to)
	form.Set("from", from)
	form.Set("text", body)

	endpoint := c.cfg.SMSBaseURL + "/sms/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vonage SMS API error: %s", resp.Status)
	}

	var result smsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(result.Messages) == 0 {
		return "", fmt.Errorf("vonage SMS API returned no messages")
	}
	if msg := result.Messages[0]; msg.Status != "0" {
		return "", fmt.Errorf("vonage SMS rejected: %s", msg.ErrorText)
	}

	return result.Messages[0].MessageID, nil
}

// callRequest represents the payload for the Voice API call creation.
type callRequest struct {
	To   []callEndpoint `json:"to"`
	From callEndpoint   `json:"from"`
	NCCO []talkAction   `json:"ncco"`
}

type callEndpoint struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type talkAction struct {
	Action    string `json:"action"`
	Text      string `json:"text"`
	VoiceName string `json:"voiceName,omitempty"`
}

// callResponse represents the subset of the Voice API response we need.
type callResponse struct {
	UUID string `json:"uuid"`
}

// PlaceVoiceCall places an outbound call that reads the given text to the
// recipient and returns the provider reference Vonage assigned to it.
//
// Unlike Twilio, the call script is sent inline as NCCO actions rather than
// fetched from a callback endpoint.
func (c *Client) PlaceVoiceCall(ctx context.Context, to, spokenText, from string) (string, error) {
	if from == "" {
		from = c.cfg.From
	}

	reqBody := callRequest{
		To:   []callEndpoint{{Type: "phone", Number: to}},
		From: callEndpoint{Type: "phone", Number: from},
		NCCO: []talkAction{
			{Action: "talk", Text: spokenText, VoiceName: "Amy"},
			{Action: "talk", Text: "This call was scheduled through ExitPal.", VoiceName: "Amy"},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.cfg.VoiceBaseURL + "/v1/calls"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("vonage Voice API error: %s", resp.Status)
	}

	var created callResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return created.UUID, nil
}
