package actions

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goruled/internal/mailer"
	"github.com/TimurManjosov/goruled/internal/templates"
)

// NewBuiltinRegistry creates a registry with the built-in kinds registered:
// logger, notify and webhook.
func NewBuiltinRegistry(log zerolog.Logger, catalog *templates.Catalog, sender mailer.Sender, client *http.Client) *Registry {
	r := NewRegistry()
	for _, def := range []Definition{
		LoggerDefinition(log),
		NotifyDefinition(catalog, sender),
		WebhookDefinition(client),
	} {
		// Built-in definitions are complete by construction.
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}
