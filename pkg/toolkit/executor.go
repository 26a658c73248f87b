package toolkit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/brightsignal/opskit/pkg/audit"
	"github.com/brightsignal/opskit/pkg/manifest"
	"github.com/brightsignal/opskit/pkg/report"
)

// TokenValidator checks a hard-reset confirmation token for a tenant.
type TokenValidator interface {
	Validate(ctx context.Context, tenantID, token string) error
}

// ReportWriter persists a result document and returns its path.
type ReportWriter interface {
	Write(ctx context.Context, doc *report.Document) (string, error)
	WriteTo(ctx context.Context, doc *report.Document, root string) (string, error)
}

// Executor validates the safety contract, acquires a concurrency slot,
// dispatches to the business handler, finalizes the audit manifest and
// persists the report. Failures map to the uniform Result type; the
// concurrency slot is always released, even on handler panic-free errors.
type Executor struct {
	gate    *SlotGate
	tokens  TokenValidator
	reports ReportWriter
	audit   audit.Logger
	logger  *slog.Logger

	tracer     trace.Tracer
	executions metric.Int64Counter
	failures   metric.Int64Counter
}

// NewExecutor creates an executor over the given slot gate.
func NewExecutor(gate *SlotGate) *Executor {
	if gate == nil {
		gate = NewSlotGate(DefaultSlotLimit)
	}

	meter := otel.Meter("opskit/toolkit")
	executions, _ := meter.Int64Counter("opskit.executions",
		metric.WithDescription("Toolkit command executions reaching a slot"))
	failures, _ := meter.Int64Counter("opskit.failures",
		metric.WithDescription("Toolkit command failures by code"))

	return &Executor{
		gate:       gate,
		logger:     slog.Default(),
		tracer:     otel.Tracer("opskit/toolkit"),
		executions: executions,
		failures:   failures,
	}
}

// WithTokenValidator wires the hard-reset token check. Without one, every
// DESTRUCTIVE command is blocked (fail closed).
func (e *Executor) WithTokenValidator(v TokenValidator) *Executor {
	e.tokens = v
	return e
}

// WithReportWriter wires report persistence.
func (e *Executor) WithReportWriter(w ReportWriter) *Executor {
	e.reports = w
	return e
}

// WithAudit wires the audit trail.
func (e *Executor) WithAudit(l audit.Logger) *Executor {
	e.audit = l
	return e
}

// WithLogger overrides the default slog logger.
func (e *Executor) WithLogger(l *slog.Logger) *Executor {
	if l != nil {
		e.logger = l
	}
	return e
}

// Gate exposes the slot gate for status endpoints.
func (e *Executor) Gate() *SlotGate { return e.gate }

// Execute runs one command invocation end to end. Validation failures are
// detected before any side effect; the slot is acquired only after the
// safety gates pass, and pre-slot rejections produce no manifest.
func (e *Executor) Execute(ctx context.Context, cmd *Command, req *ExecutionRequest) *Result {
	if cmd == nil || cmd.Handler == nil {
		return e.reject(ctx, nil, Validation("No command bound to this invocation"))
	}
	if req == nil {
		return e.reject(ctx, cmd, Validation("Execution request is required"))
	}

	ctx, span := e.tracer.Start(ctx, "toolkit.execute", trace.WithAttributes(
		attribute.String("toolkit.command", cmd.Spec.Name),
		attribute.String("toolkit.classification", string(cmd.Spec.Classification)),
		attribute.String("toolkit.mode", string(req.Mode)),
		attribute.Bool("toolkit.dry_run", req.DryRun),
	))
	defer span.End()

	// Gate 1: any non-dry-run execution needs an explicit confirm,
	// independent of classification.
	if !req.DryRun && !req.ConfirmWrite {
		return e.reject(ctx, cmd, SafetyBlock("Confirm write required for non-dry-run execution"))
	}

	// Gate 2: destructive commands demand the full two-phase confirmation.
	if cmd.Spec.Classification == ClassificationDestructive {
		if te := e.checkDestructiveGate(ctx, req); te != nil {
			return e.reject(ctx, cmd, te)
		}
	}

	// Gate 3: concurrency. Never queue; exhaustion is surfaced immediately
	// so backpressure stays observable to the operator.
	release, ok := e.gate.TryAcquire()
	if !ok {
		return e.reject(ctx, cmd, ConcurrencyLimit())
	}
	defer release()

	runID := uuid.New().String()
	builder := manifest.NewBuilder(
		cmd.Spec.Name,
		string(cmd.Spec.Classification),
		string(req.Mode),
		req.SanitizedArgs(),
	).WithVersion(Version)

	e.executions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", cmd.Spec.Name),
	))

	value, err := cmd.Handler.Run(ctx, req)
	if err != nil {
		te := WrapHandler(err)
		doc, _ := builder.Finalize(manifest.StatusFailure, te.ExitCode)
		e.record(ctx, cmd, req, runID, string(manifest.StatusFailure), te.ExitCode, nil)
		e.countFailure(ctx, cmd, te)
		span.RecordError(te)
		return failureResult(te, runID, doc)
	}

	doc, _ := builder.Finalize(manifest.StatusSuccess, 0)

	reportPath := ""
	if req.PersistReport {
		reportPath, err = e.persist(ctx, req, runID, value, doc)
		if err != nil {
			// The command itself succeeded; only persistence failed. The
			// manifest keeps the handler outcome and the audit record agrees
			// with it, carrying the persistence failure as metadata. The
			// Result still fails so the caller knows the report is missing.
			te := e.mapReportError(err, runID)
			e.record(ctx, cmd, req, runID, string(manifest.StatusSuccess), 0, map[string]any{
				"report_persisted": false,
				"report_error":     string(te.Code),
			})
			e.countFailure(ctx, cmd, te)
			span.RecordError(te)
			return failureResult(te, runID, doc)
		}
	}

	e.record(ctx, cmd, req, runID, string(manifest.StatusSuccess), 0, nil)
	return successResult(value, runID, doc, reportPath)
}

func (e *Executor) checkDestructiveGate(ctx context.Context, req *ExecutionRequest) *Error {
	if req.DestructiveAck != DestructiveAck {
		return SafetyBlock("Destructive acknowledgment missing or incorrect")
	}
	if req.ConfirmedAt == "" {
		return SafetyBlock("Confirmation timestamp required for destructive execution")
	}
	if _, err := time.Parse(time.RFC3339, req.ConfirmedAt); err != nil {
		return SafetyBlock("Confirmation timestamp must be RFC 3339")
	}
	if e.tokens == nil {
		return SafetyBlock("Hard-reset confirmation unavailable")
	}
	if err := e.tokens.Validate(ctx, req.TenantID, req.ConfirmationToken); err != nil {
		return SafetyBlock("Hard-reset confirmation rejected")
	}
	return nil
}

// persist writes the run report under the configured (or requested) root.
func (e *Executor) persist(ctx context.Context, req *ExecutionRequest, runID string, value any, doc *manifest.Document) (string, error) {
	if e.reports == nil {
		return "", report.ErrRootNotAllowed
	}
	rd := &report.Document{
		RunID: runID,
		Meta: map[string]any{
			"tenantId": req.TenantID,
			"mode":     string(req.Mode),
			"dryRun":   req.DryRun,
		},
		Results:  value,
		Manifest: doc,
	}
	if req.ReportRoot != "" {
		return e.reports.WriteTo(ctx, rd, req.ReportRoot)
	}
	return e.reports.Write(ctx, rd)
}

func (e *Executor) mapReportError(err error, runID string) *Error {
	switch {
	case errors.Is(err, report.ErrInvalidRunID):
		return InvalidRunID(runID)
	case errors.Is(err, report.ErrRootNotAllowed):
		return &Error{Code: CodeValidation, Message: "Report destination root not allowed", ExitCode: 2}
	default:
		return &Error{Code: CodeHandlerFailed, Message: "Report persistence failed", ExitCode: 6, cause: err}
	}
}

// reject handles pre-slot failures: no manifest, no audit mutation record;
// the command never ran.
func (e *Executor) reject(ctx context.Context, cmd *Command, te *Error) *Result {
	name := ""
	if cmd != nil {
		name = cmd.Spec.Name
	}
	e.logger.Warn("toolkit execution rejected",
		"command", name, "code", te.Code, "message", te.Message)
	e.countFailure(ctx, cmd, te)
	return failureResult(te, "", nil)
}

func (e *Executor) record(ctx context.Context, cmd *Command, req *ExecutionRequest, runID, status string, exitCode int, extra map[string]any) {
	if e.audit == nil {
		return
	}
	eventType := audit.EventMutation
	if cmd.Spec.Classification == ClassificationRead || req.DryRun {
		eventType = audit.EventAccess
	}
	meta := map[string]any{
		"tenant_id": req.TenantID,
		"run_id":    runID,
		"status":    status,
		"exit_code": exitCode,
		"mode":      string(req.Mode),
		"dry_run":   req.DryRun,
	}
	for k, v := range extra {
		meta[k] = v
	}
	_ = e.audit.Record(ctx, eventType, "execute_"+cmd.Spec.Name, "tenant/"+req.TenantID, meta)
}

func (e *Executor) countFailure(ctx context.Context, cmd *Command, te *Error) {
	name := ""
	if cmd != nil {
		name = cmd.Spec.Name
	}
	e.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("command", name),
		attribute.String("code", string(te.Code)),
	))
}
