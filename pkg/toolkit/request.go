package toolkit

import (
	"strings"

	"github.com/brightsignal/opskit/pkg/canonicalize"
)

// DestructiveAck is the literal a human must supply before a DESTRUCTIVE
// command runs for real. It is deliberately not the command name so a
// copy-pasted script cannot produce it by accident.
const DestructiveAck = "HARD_RESET"

// ExecutionMode distinguishes how an invocation reached the executor.
type ExecutionMode string

const (
	ModeCLI  ExecutionMode = "CLI"
	ModeHTTP ExecutionMode = "HTTP"
)

// ExecutionRequest is the per-call input to the executor. It is created
// fresh per invocation and never persisted beyond the sanitized manifest
// args.
type ExecutionRequest struct {
	TenantID          string         `json:"tenantId"`
	DryRun            bool           `json:"dryRun"`
	ConfirmWrite      bool           `json:"confirmWrite"`
	ConfirmationToken string         `json:"confirmationToken,omitempty"`
	ConfirmedAt       string         `json:"confirmedAt,omitempty"`
	DestructiveAck    string         `json:"destructiveAck,omitempty"`
	PersistReport     bool           `json:"persistReport,omitempty"`
	ReportRoot        string         `json:"reportRoot,omitempty"`
	Mode              ExecutionMode  `json:"-"`
	Params            map[string]any `json:"params,omitempty"`
}

// credentialKeywords mark params that must never reach the manifest.
var credentialKeywords = []string{"token", "secret", "password", "credential", "apikey", "api_key"}

func isCredentialShaped(key string) bool {
	lower := strings.ToLower(key)
	for _, kw := range credentialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SanitizedArgs returns the request as a manifest-safe args map: the
// confirmation token and every credential-shaped param are replaced with
// "[REDACTED]", and all strings are NFC-normalized so the recorded args hash
// deterministically.
func (r *ExecutionRequest) SanitizedArgs() map[string]any {
	args := map[string]any{
		"tenantId":     r.TenantID,
		"dryRun":       r.DryRun,
		"confirmWrite": r.ConfirmWrite,
	}
	if r.ConfirmationToken != "" {
		args["confirmationToken"] = "[REDACTED]"
	}
	if r.ConfirmedAt != "" {
		args["confirmedAt"] = r.ConfirmedAt
	}
	if r.DestructiveAck != "" {
		args["destructiveAck"] = r.DestructiveAck
	}
	if len(r.Params) > 0 {
		params := make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			if isCredentialShaped(k) {
				params[k] = "[REDACTED]"
				continue
			}
			params[k] = v
		}
		args["params"] = params
	}

	normalized, _ := canonicalize.NFC(args).(map[string]any)
	return normalized
}

// Param returns a named command-specific parameter.
func (r *ExecutionRequest) Param(name string) (any, bool) {
	if r.Params == nil {
		return nil, false
	}
	v, ok := r.Params[name]
	return v, ok
}

// IntParam returns a numeric parameter, tolerating the float64 that
// encoding/json produces for JSON numbers.
func (r *ExecutionRequest) IntParam(name string, fallback int) int {
	v, ok := r.Param(name)
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}

// BoolParam returns a boolean parameter.
func (r *ExecutionRequest) BoolParam(name string, fallback bool) bool {
	v, ok := r.Param(name)
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}
