// Package testutil provides helpers for wiring a fully assembled engine
// around the in-memory store in tests.
package testutil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goruled/internal/actions"
	"github.com/TimurManjosov/goruled/internal/api"
	"github.com/TimurManjosov/goruled/internal/bus"
	"github.com/TimurManjosov/goruled/internal/conditions"
	"github.com/TimurManjosov/goruled/internal/engine"
	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/mailer"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/signals"
	"github.com/TimurManjosov/goruled/internal/store"
	"github.com/TimurManjosov/goruled/internal/templates"
)

// Env is a fully wired engine around the in-memory store.
type Env struct {
	Server       *api.Server
	Store        *store.MemoryStore
	Bus          *bus.Bus
	Source       *entities.MemorySource
	Scanner      *engine.Scanner
	Manager      *signals.Manager
	Conditions   *conditions.Registry
	Actions      *actions.Registry
	TemplatesDir string
}

// NewTestServer creates a test environment with an in-memory store, the
// built-in registries and a log-only notification sender. entityTypes become
// the registered rule targets.
func NewTestServer(t *testing.T, adminKey string, entityTypes ...string) *Env {
	t.Helper()

	log := zerolog.Nop()
	memStore := store.NewMemoryStore()
	templatesDir := t.TempDir()
	catalog := templates.NewCatalog(templatesDir)

	condReg := conditions.NewBuiltinRegistry()
	actReg := actions.NewBuiltinRegistry(log, catalog, mailer.NewLogSender(log), nil)
	validator := rules.NewValidator(condReg, actReg)

	eventBus := bus.New(log)
	manager := signals.NewManager(eventBus, condReg, actReg, memStore, log)
	source := entities.NewMemorySource()
	scanner := engine.NewScanner(memStore, condReg, actReg, source, log)

	server := api.NewServer(api.Deps{
		Store:       memStore,
		Conditions:  condReg,
		Actions:     actReg,
		Validator:   validator,
		Signals:     manager,
		Scanner:     scanner,
		Entities:    entities.NewRegistry(entityTypes...),
		Templates:   catalog,
		Log:         log,
		AdminAPIKey: adminKey,
	})

	return &Env{
		Server:       server,
		Store:        memStore,
		Bus:          eventBus,
		Source:       source,
		Scanner:      scanner,
		Manager:      manager,
		Conditions:   condReg,
		Actions:      actReg,
		TemplatesDir: templatesDir,
	}
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
