package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/brightsignal/opskit/pkg/config"
)

// runTokenCmd implements `opskit token <tenant>`. With a Redis token store
// configured the token is valid across processes; with the in-memory store
// it only confirms executions inside the same process, so server setups
// should issue via the HTTP endpoint instead.
func runTokenCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] == "" {
		_, _ = fmt.Fprintln(stderr, "Usage: opskit token <tenant>")
		return 2
	}
	tenantID := args[0]

	cfg := config.Load()
	if cfg.InternalKey == "" {
		_, _ = fmt.Fprintln(stderr, "Error: OPSKIT_INTERNAL_KEY is required to issue tokens")
		return 2
	}

	issuer, err := buildIssuer(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	token, err := issuer.Issue(context.Background(), tenantID)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.RedisAddr == "" {
		_, _ = fmt.Fprintln(stderr, "Warning: in-memory token store; this token is only valid in-process")
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(token)
	return 0
}
