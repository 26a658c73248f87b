package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/brightsignal/opskit/pkg/config"
	"github.com/brightsignal/opskit/pkg/toolkit"
)

// runRunCmd implements `opskit run <command>`.
//
// Exit codes mirror the toolkit error taxonomy:
//
//	0 = success
//	1 = handler failure
//	2 = usage / validation
//	3 = safety block
//	4 = concurrency limit
//	5 = invalid run id
func runRunCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		_, _ = fmt.Fprintln(stderr, "Usage: opskit run <command> [flags]")
		return 2
	}
	name := args[0]

	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		tenantID      string
		dryRun        bool
		confirmWrite  bool
		token         string
		confirmedAt   string
		ack           string
		persistReport bool
		reportRoot    string
		params        = map[string]any{}
	)
	cmd.StringVar(&tenantID, "tenant", "", "Tenant ID (REQUIRED)")
	cmd.BoolVar(&dryRun, "dry-run", true, "Simulate without mutating (default true)")
	cmd.BoolVar(&confirmWrite, "confirm-write", false, "Required for any non-dry-run execution")
	cmd.StringVar(&token, "confirmation-token", "", "Hard-reset confirmation token (destructive commands)")
	cmd.StringVar(&confirmedAt, "confirmed-at", "", "RFC 3339 confirmation timestamp (default: now)")
	cmd.StringVar(&ack, "ack", "", `Destructive acknowledgment literal ("HARD_RESET")`)
	cmd.BoolVar(&persistReport, "persist-report", false, "Write the run report under the configured roots")
	cmd.StringVar(&reportRoot, "report-root", "", "Write the report under this allow-listed root")
	cmd.Func("param", "Command parameter as key=value (repeatable)", func(raw string) error {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return fmt.Errorf("expected key=value, got %q", raw)
		}
		params[key] = value
		return nil
	})

	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}
	if tenantID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -tenant is required")
		return 2
	}
	if token != "" && confirmedAt == "" {
		confirmedAt = nowRFC3339()
	}

	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	ctx := context.Background()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer rt.Close()

	command, ok := rt.registry.Lookup(name)
	if !ok {
		_, _ = fmt.Fprintf(stderr, "Error: unknown command %q\n", name)
		return 2
	}

	req := &toolkit.ExecutionRequest{
		TenantID:          tenantID,
		DryRun:            dryRun,
		ConfirmWrite:      confirmWrite,
		ConfirmationToken: token,
		ConfirmedAt:       confirmedAt,
		DestructiveAck:    ack,
		PersistReport:     persistReport,
		ReportRoot:        reportRoot,
		Mode:              toolkit.ModeCLI,
		Params:            params,
	}

	res := rt.exec.Execute(ctx, command, req)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)

	if res.Kind == toolkit.ResultFailure {
		_, _ = fmt.Fprintf(stderr, "Error: %s\n", res.Err().Error())
	}
	return res.ExitCode
}
