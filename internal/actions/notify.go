package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/TimurManjosov/goruled/internal/mailer"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/templates"
)

// KindNotify renders a catalog template and delivers it to the stored
// recipient. The text body always renders; an HTML alternative is attached
// when the template has an .html counterpart.
const KindNotify rules.ActionKind = "notify"

type notifyParams struct {
	Recipient string `mapstructure:"recipient"`
	Subject   string `mapstructure:"subject"`
	// Template is a catalog reference (path relative to the templates root).
	Template string `mapstructure:"template"`
}

// NotifyDefinition builds the notify action over the given catalog and sender.
func NotifyDefinition(catalog *templates.Catalog, sender mailer.Sender) Definition {
	return Definition{
		Kind: KindNotify,
		Validate: func(params map[string]any) error {
			var p notifyParams
			if err := decodeParams(params, &p); err != nil {
				return err
			}
			if p.Recipient == "" || !strings.Contains(p.Recipient, "@") {
				return fmt.Errorf("recipient must be an address, got %q: %w", p.Recipient, rules.ErrInvalidArgument)
			}
			if p.Subject == "" {
				return fmt.Errorf("subject is required: %w", rules.ErrInvalidArgument)
			}
			if p.Template == "" {
				return fmt.Errorf("template reference is required: %w", rules.ErrInvalidArgument)
			}
			return nil
		},
		Run: func(ctx context.Context, req RunRequest) error {
			var p notifyParams
			if err := decodeParams(req.Action.Params, &p); err != nil {
				return err
			}

			data := map[string]any{"Rule": req.Rule}
			if req.Entity != nil {
				data["Entity"] = map[string]any{
					"Type":       req.Entity.EntityType(),
					"ID":         req.Entity.EntityID(),
					"Attributes": req.Entity.Attributes(),
				}
			}

			text, html, err := catalog.Render(p.Template, data)
			if err != nil {
				return err
			}
			return sender.Send(ctx, mailer.Message{
				To:      p.Recipient,
				Subject: p.Subject,
				Text:    text,
				HTML:    html,
			})
		},
	}
}
