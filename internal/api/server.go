// Package api implements the rule authoring HTTP API: CRUD over rules with
// inline condition/action payloads, the scan trigger endpoint, and the
// catalog endpoints rule authors browse.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/goruled/internal/actions"
	"github.com/TimurManjosov/goruled/internal/bus"
	"github.com/TimurManjosov/goruled/internal/conditions"
	"github.com/TimurManjosov/goruled/internal/engine"
	"github.com/TimurManjosov/goruled/internal/entities"
	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/signals"
	"github.com/TimurManjosov/goruled/internal/store"
	"github.com/TimurManjosov/goruled/internal/telemetry"
	"github.com/TimurManjosov/goruled/internal/templates"
)

// Deps bundles the collaborators the server exposes over HTTP.
type Deps struct {
	Store      store.Store
	Conditions *conditions.Registry
	Actions    *actions.Registry
	Validator  *rules.Validator
	Signals    *signals.Manager
	Scanner    *engine.Scanner
	Entities   *entities.Registry
	Templates  *templates.Catalog
	Log        zerolog.Logger

	AdminAPIKey    string
	RateLimitPerIP int
}

type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(telemetry.Middleware)
	if s.deps.RateLimitPerIP > 0 {
		r.Use(httprate.LimitByIP(s.deps.RateLimitPerIP, time.Minute))
	}

	// health
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/v1/rules", s.handleListRules)
	r.Get("/v1/rules/{id}", s.handleGetRule)
	r.Post("/v1/rules", s.authAdmin(s.handleCreateRule))
	r.Put("/v1/rules/{id}", s.authAdmin(s.handleUpdateRule))
	r.Delete("/v1/rules/{id}", s.authAdmin(s.handleDeleteRule))

	r.Post("/v1/scan/run", s.authAdmin(s.handleRunScan))

	r.Get("/v1/templates", s.handleListTemplates)
	r.Get("/v1/entity-types", s.handleListEntityTypes)
	r.Get("/v1/events", s.handleListEvents)

	return r
}

// ---- handlers ----

type attachmentPayload struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params,omitempty"`
}

type ruleRequest struct {
	Description      string             `json:"description"`
	TargetEntityType string             `json:"targetEntityType,omitempty"`
	Condition        *attachmentPayload `json:"condition,omitempty"`
	Action           *attachmentPayload `json:"action,omitempty"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	all, err := s.deps.Store.ListRules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing rules failed")
		return
	}
	if all == nil {
		all = []rules.Rule{}
	}

	body, err := json.Marshal(map[string]any{"rules": all})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding rules failed")
		return
	}
	etag := fmt.Sprintf("%q", fmt.Sprintf("%x", xxhash.Sum64(body)))
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	_, _ = w.Write(body)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.deps.Store.GetRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "loading rule failed")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	rule, err := s.buildRule(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule.ID = uuid.NewString()

	if err := s.deps.Store.CreateRule(r.Context(), rule); err != nil {
		writeError(w, http.StatusInternalServerError, "storing rule failed")
		return
	}
	if err := s.deps.Signals.Connect(rule); err != nil {
		s.deps.Log.Error().Err(err).Str("rule_id", rule.ID).Msg("connecting signal rule failed")
		writeError(w, http.StatusInternalServerError, "connecting signal rule failed")
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing, err := s.deps.Store.GetRule(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "loading rule failed")
		return
	}

	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.deps.Validator.ValidateTargetChange(existing, req.TargetEntityType); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rule, err := s.buildRule(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt

	// An unchanged condition kind keeps its identity, so the cron guard and
	// the bus subscription survive the edit.
	if existing.Condition != nil && rule.Condition != nil && existing.Condition.Kind == rule.Condition.Kind {
		rule.Condition.ID = existing.Condition.ID
		rule.Condition.LastExecuted = existing.Condition.LastExecuted
		if existing.Condition.SubscriptionID != "" {
			rule.Condition.SubscriptionID = existing.Condition.SubscriptionID
		}
	}
	if existing.Action != nil && rule.Action != nil && existing.Action.Kind == rule.Action.Kind {
		rule.Action.ID = existing.Action.ID
	}

	if err := s.deps.Store.UpdateRule(r.Context(), rule); err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "storing rule failed")
		return
	}

	if err := s.deps.Signals.Disconnect(existing); err != nil {
		s.deps.Log.Warn().Err(err).Str("rule_id", id).Msg("disconnecting old subscription failed")
	}
	if err := s.deps.Signals.Connect(rule); err != nil {
		s.deps.Log.Error().Err(err).Str("rule_id", id).Msg("connecting signal rule failed")
		writeError(w, http.StatusInternalServerError, "connecting signal rule failed")
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.deps.Store.DeleteRule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrRuleNotFound) {
			writeError(w, http.StatusNotFound, "rule not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "deleting rule failed")
		return
	}

	// Disconnect only after the deletion has committed, so a concurrent event
	// never fires a rule that storage still reports as existing.
	if err := s.deps.Signals.Disconnect(deleted); err != nil {
		s.deps.Log.Warn().Err(err).Str("rule_id", deleted.ID).Msg("disconnecting deleted rule failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunScan(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Scanner.Run(r.Context())
	if err != nil {
		s.deps.Log.Error().Err(err).Msg("scan run failed")
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}
	if report.Outcomes == nil {
		report.Outcomes = []engine.Outcome{}
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	choices, err := s.deps.Templates.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing templates failed")
		return
	}
	if choices == nil {
		choices = []templates.Choice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": choices})
}

func (s *Server) handleListEntityTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"entityTypes": s.deps.Entities.Types()})
}

func (s *Server) handleListEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": bus.Events()})
}

// buildRule assembles and validates a rule from an authoring payload. IDs for
// the condition and action are minted here; signal conditions also get their
// subscription ID, stable for the condition's lifetime.
func (s *Server) buildRule(req *ruleRequest) (*rules.Rule, error) {
	if req.TargetEntityType != "" && !s.deps.Entities.IsEntityType(req.TargetEntityType) {
		return nil, fmt.Errorf("unknown target entity type %q", req.TargetEntityType)
	}

	rule := &rules.Rule{
		Description:      req.Description,
		TargetEntityType: req.TargetEntityType,
	}
	if req.Condition != nil {
		rule.Condition = &rules.Condition{
			ID:     uuid.NewString(),
			Kind:   rules.ConditionKind(req.Condition.Kind),
			Params: req.Condition.Params,
		}
		if def, ok := s.deps.Conditions.Get(rule.Condition.Kind); ok && def.Trigger == conditions.TriggerSignal {
			rule.Condition.SubscriptionID = uuid.NewString()
		}
	}
	if req.Action != nil {
		rule.Action = &rules.Action{
			ID:     uuid.NewString(),
			Kind:   rules.ActionKind(req.Action.Kind),
			Params: req.Action.Params,
		}
	}

	if err := s.deps.Validator.ValidateRule(rule); err != nil {
		return nil, err
	}
	if rule.Condition != nil {
		if err := s.deps.Conditions.Validate(rule.Condition); err != nil {
			return nil, err
		}
	}
	if rule.Action != nil {
		if err := s.deps.Actions.Validate(rule.Action); err != nil {
			return nil, err
		}
	}
	return rule, nil
}

// ---- middleware & helpers ----

func (s *Server) authAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
		if got == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		// constant-time compare
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.AdminAPIKey)) != 1 {
			writeError(w, http.StatusForbidden, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": msg,
	})
}
