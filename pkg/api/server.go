package api

import (
	"net/http"

	"github.com/brightsignal/opskit/pkg/auth"
)

// Routes mounts the internal toolkit surface on a fresh mux. Every route
// sits behind the shared-secret guard; the rate limiter and request-ID
// middleware wrap the whole surface.
func Routes(svc *Service, guard *auth.Guard, limiter *GlobalRateLimiter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/internal/toolkit/status", svc.HandleStatus)
	mux.HandleFunc("/internal/toolkit/reset-tenant", svc.HandleResetTenant)
	mux.HandleFunc("/internal/toolkit/reset-tenant/hard", svc.HandleHardReset)
	mux.HandleFunc("/internal/toolkit/reset-tenant/hard/token", svc.HandleIssueToken)
	mux.HandleFunc("/internal/toolkit/alert-scenario", svc.HandleSeedScenario)
	mux.HandleFunc("/internal/toolkit/alert-rules/run", svc.HandleRunAlertRules)

	var handler http.Handler = mux
	handler = guard.Middleware(handler)
	if limiter != nil {
		handler = limiter.Middleware(handler)
	}
	handler = auth.RequestIDMiddleware(handler)

	root := http.NewServeMux()
	root.Handle("/internal/toolkit/", handler)
	root.HandleFunc("/healthz", handleHealthz)
	return root
}

// handleHealthz is the unauthenticated liveness probe. It reveals nothing
// about the toolkit surface.
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
