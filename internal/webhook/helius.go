package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PumpFunProgram is the pump.fun program address the provisioned webhook
// watches.
const PumpFunProgram = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// heliusAPIBase is the Helius management API root.
const heliusAPIBase = "https://api.helius.xyz/v0"

// HeliusWebhook is one registered webhook as returned by the API.
type HeliusWebhook struct {
	WebhookID        string   `json:"webhookID"`
	WebhookURL       string   `json:"webhookURL"`
	TransactionTypes []string `json:"transactionTypes"`
	AccountAddresses []string `json:"accountAddresses"`
	WebhookType      string   `json:"webhookType"`
	AuthHeader       string   `json:"authHeader,omitempty"`
}

// HeliusClient manages enhanced-transaction webhooks through the Helius
// API.
type HeliusClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewHeliusClient(apiKey string) *HeliusClient {
	return &HeliusClient{
		apiKey:  apiKey,
		baseURL: heliusAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL overrides the API root. Used in tests.
func (c *HeliusClient) WithBaseURL(base string) *HeliusClient {
	c.baseURL = strings.TrimRight(base, "/")
	return c
}

// CreateWebhook registers an enhanced webhook delivering pump.fun program
// transactions to webhookURL. authHeader, when non-empty, is echoed back by
// Helius on every delivery.
func (c *HeliusClient) CreateWebhook(ctx context.Context, webhookURL, authHeader string) (*HeliusWebhook, error) {
	req := map[string]any{
		"webhookURL":       webhookURL,
		"transactionTypes": []string{"ANY"},
		"accountAddresses": []string{PumpFunProgram},
		"webhookType":      "enhanced",
	}
	if authHeader != "" {
		req["authHeader"] = authHeader
	}

	var created HeliusWebhook
	if err := c.do(ctx, http.MethodPost, "/webhooks", req, &created); err != nil {
		return nil, fmt.Errorf("creating webhook: %w", err)
	}
	return &created, nil
}

// ListWebhooks returns every webhook registered for the API key.
func (c *HeliusClient) ListWebhooks(ctx context.Context) ([]HeliusWebhook, error) {
	var hooks []HeliusWebhook
	if err := c.do(ctx, http.MethodGet, "/webhooks", nil, &hooks); err != nil {
		return nil, fmt.Errorf("listing webhooks: %w", err)
	}
	return hooks, nil
}

// DeleteWebhook removes a webhook by id.
func (c *HeliusClient) DeleteWebhook(ctx context.Context, webhookID string) error {
	if err := c.do(ctx, http.MethodDelete, "/webhooks/"+url.PathEscape(webhookID), nil, nil); err != nil {
		return fmt.Errorf("deleting webhook %s: %w", webhookID, err)
	}
	return nil
}

func (c *HeliusClient) do(ctx context.Context, method, path string, in, out any) error {
	if c.apiKey == "" {
		return fmt.Errorf("helius api key not configured")
	}

	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	u := fmt.Sprintf("%s%s?api-key=%s", c.baseURL, path, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("helius status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
