package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TimurManjosov/goruled/internal/rules"
)

// KindWebhook POSTs a signed JSON payload describing the trigger to the stored
// URL. A single synchronous attempt: cron triggers retry through the guard
// semantics, reactive triggers have no retry.
const KindWebhook rules.ActionKind = "webhook"

const webhookTimeout = 10 * time.Second

type webhookParams struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// webhookPayload is the body delivered to the receiver.
type webhookPayload struct {
	RuleID      string         `json:"ruleId"`
	Description string         `json:"description,omitempty"`
	Trigger     string         `json:"trigger"`
	FiredAt     time.Time      `json:"firedAt"`
	Entity      *webhookEntity `json:"entity,omitempty"`
}

type webhookEntity struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// WebhookDefinition builds the webhook action. A nil client gets a default
// with a bounded timeout.
func WebhookDefinition(client *http.Client) Definition {
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	return Definition{
		Kind: KindWebhook,
		Validate: func(params map[string]any) error {
			var p webhookParams
			if err := decodeParams(params, &p); err != nil {
				return err
			}
			u, err := url.Parse(p.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("url must be an absolute http(s) URL, got %q: %w", p.URL, rules.ErrInvalidArgument)
			}
			if p.Secret == "" {
				return fmt.Errorf("secret is required: %w", rules.ErrInvalidArgument)
			}
			return nil
		},
		Run: func(ctx context.Context, req RunRequest) error {
			var p webhookParams
			if err := decodeParams(req.Action.Params, &p); err != nil {
				return err
			}

			payload := webhookPayload{
				RuleID:      req.Rule.ID,
				Description: req.Rule.Description,
				Trigger:     string(req.Trigger),
				FiredAt:     time.Now().UTC(),
			}
			if req.Entity != nil {
				payload.Entity = &webhookEntity{
					Type:       req.Entity.EntityType(),
					ID:         req.Entity.EntityID(),
					Attributes: req.Entity.Attributes(),
				}
			}
			body, err := json.Marshal(payload)
			if err != nil {
				return err
			}

			httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")
			httpReq.Header.Set("X-Ruled-Signature", ComputeHMAC(body, p.Secret))
			httpReq.Header.Set("X-Ruled-Trigger", string(req.Trigger))

			resp, err := client.Do(httpReq)
			if err != nil {
				return fmt.Errorf("delivering webhook: %w", err)
			}
			defer resp.Body.Close()
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("webhook receiver returned status %d", resp.StatusCode)
			}
			return nil
		},
	}
}
