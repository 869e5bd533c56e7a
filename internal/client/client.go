package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/TimurManjosov/goruled/internal/engine"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/templates"
)

// Client is an HTTP client for the goruled API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Attachment is the condition or action half of an authoring payload.
type Attachment struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

// RulePayload is the authoring request body for creating or updating a rule.
type RulePayload struct {
	Description      string      `json:"description"`
	TargetEntityType string      `json:"targetEntityType,omitempty"`
	Condition        *Attachment `json:"condition,omitempty"`
	Action           *Attachment `json:"action,omitempty"`
}

// CreateRule creates a rule with its inline condition and action
func (c *Client) CreateRule(ctx context.Context, payload RulePayload) (*rules.Rule, error) {
	var created rules.Rule
	if err := c.do(ctx, http.MethodPost, "/v1/rules", payload, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateRule replaces an existing rule's payload
func (c *Client) UpdateRule(ctx context.Context, id string, payload RulePayload) (*rules.Rule, error) {
	var updated rules.Rule
	if err := c.do(ctx, http.MethodPut, "/v1/rules/"+id, payload, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetRule retrieves a single rule by ID
func (c *Client) GetRule(ctx context.Context, id string) (*rules.Rule, error) {
	var rule rules.Rule
	if err := c.do(ctx, http.MethodGet, "/v1/rules/"+id, nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ListRules retrieves all rules
func (c *Client) ListRules(ctx context.Context) ([]rules.Rule, error) {
	var result struct {
		Rules []rules.Rule `json:"rules"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/rules", nil, &result); err != nil {
		return nil, err
	}
	return result.Rules, nil
}

// DeleteRule deletes a rule
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/rules/"+id, nil, nil)
}

// RunScan triggers one cron-condition scan and returns its report
func (c *Client) RunScan(ctx context.Context) (*engine.Report, error) {
	var report engine.Report
	if err := c.do(ctx, http.MethodPost, "/v1/scan/run", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListTemplates retrieves the notification template catalog
func (c *Client) ListTemplates(ctx context.Context) ([]templates.Choice, error) {
	var result struct {
		Templates []templates.Choice `json:"templates"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/templates", nil, &result); err != nil {
		return nil, err
	}
	return result.Templates, nil
}

// ListEntityTypes retrieves the registered target entity types
func (c *Client) ListEntityTypes(ctx context.Context) ([]string, error) {
	var result struct {
		EntityTypes []string `json:"entityTypes"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/entity-types", nil, &result); err != nil {
		return nil, err
	}
	return result.EntityTypes, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
