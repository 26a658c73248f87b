package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/brightsignal/opskit/pkg/hardreset"
	"github.com/brightsignal/opskit/pkg/toolkit"
)

// TokenIssuer mints hard-reset confirmation tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, tenantID string) (*hardreset.Token, error)
}

// Service binds the command registry and executor to the internal HTTP
// surface. Handlers translate DTOs to ExecutionRequests and executor
// failures to problem+json; they hold no business logic of their own.
type Service struct {
	registry *toolkit.Registry
	exec     *toolkit.Executor
	issuer   TokenIssuer
	logger   *slog.Logger
}

// NewService creates the HTTP service over a populated registry.
func NewService(registry *toolkit.Registry, exec *toolkit.Executor, issuer TokenIssuer) *Service {
	return &Service{
		registry: registry,
		exec:     exec,
		issuer:   issuer,
		logger:   slog.Default(),
	}
}

// WithLogger overrides the default logger.
func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// StatusResponse is the read-only surface snapshot.
type StatusResponse struct {
	Version  string                `json:"version"`
	Commands []toolkit.CommandSpec `json:"commands"`
	Slots    SlotStatus            `json:"slots"`
}

// SlotStatus reports concurrency gate occupancy.
type SlotStatus struct {
	InFlight int `json:"inFlight"`
	Limit    int `json:"limit"`
}

// HandleStatus handles GET /internal/toolkit/status.
func (s *Service) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteMethodNotAllowed(w)
		return
	}

	gate := s.exec.Gate()
	writeJSON(w, http.StatusOK, &StatusResponse{
		Version:  toolkit.Version,
		Commands: s.registry.Specs(),
		Slots:    SlotStatus{InFlight: gate.InFlight(), Limit: gate.Limit()},
	})
}

// TokenResponse is the token-issue reply.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleIssueToken handles POST /internal/toolkit/reset-tenant/hard/token.
func (s *Service) HandleIssueToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}
	if s.issuer == nil {
		WriteError(w, http.StatusServiceUnavailable, "Service Unavailable", "Token issuance is not configured")
		return
	}

	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if err := validateTokenBody(body); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	tenantID, _ := body["tenantId"].(string)
	token, err := s.issuer.Issue(r.Context(), tenantID)
	if err != nil {
		WriteInternal(w, err)
		return
	}

	s.logger.Info("hard-reset token issued", "tenant_id", tenantID, "expires_at", token.ExpiresAt)
	writeJSON(w, http.StatusCreated, &TokenResponse{Token: token.Token, ExpiresAt: token.ExpiresAt})
}

// HandleResetTenant handles POST /internal/toolkit/reset-tenant.
func (s *Service) HandleResetTenant(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "reset-tenant")
}

// HandleHardReset handles POST /internal/toolkit/reset-tenant/hard.
func (s *Service) HandleHardReset(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "reset-tenant-hard")
}

// HandleSeedScenario handles POST /internal/toolkit/alert-scenario.
func (s *Service) HandleSeedScenario(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "seed-alert-scenario")
}

// HandleRunAlertRules handles POST /internal/toolkit/alert-rules/run.
func (s *Service) HandleRunAlertRules(w http.ResponseWriter, r *http.Request) {
	s.runCommand(w, r, "run-alert-rules")
}

// runCommand is the shared mutating-endpoint pipeline: decode, validate,
// translate to an ExecutionRequest, execute, map the outcome.
func (s *Service) runCommand(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodPost {
		WriteMethodNotAllowed(w)
		return
	}

	cmd, ok := s.registry.Lookup(name)
	if !ok {
		WriteNotFound(w, "Unknown command")
		return
	}

	body, ok := decodeBody(w, r)
	if !ok {
		return
	}
	if err := validateCommandBody(body); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	req, err := requestFromBody(body)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	req.Mode = toolkit.ModeHTTP

	res := s.exec.Execute(r.Context(), cmd, req)
	if res.Kind == toolkit.ResultFailure {
		WriteToolkitError(w, res.Err())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeBody reads at most 1MB and decodes into a generic map so the schema
// can see unknown fields. A false return means the error is already written.
func decodeBody(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return nil, false
	}
	return body, true
}

// requestFromBody re-marshals the validated map into the typed DTO.
func requestFromBody(body map[string]any) (*toolkit.ExecutionRequest, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	var req toolkit.ExecutionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
