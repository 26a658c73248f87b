package toolkit_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/brightsignal/opskit/pkg/audit"
	"github.com/brightsignal/opskit/pkg/report"
	"github.com/brightsignal/opskit/pkg/toolkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Stubs ---

type stubValidator struct {
	err   error
	calls int
}

func (v *stubValidator) Validate(ctx context.Context, tenantID, token string) error {
	v.calls++
	return v.err
}

type recordingHandler struct {
	mu      sync.Mutex
	calls   int
	lastReq *toolkit.ExecutionRequest
	result  any
	err     error
	block   chan struct{} // when set, Run waits until closed
}

func (h *recordingHandler) Run(ctx context.Context, req *toolkit.ExecutionRequest) (any, error) {
	h.mu.Lock()
	h.calls++
	h.lastReq = req
	h.mu.Unlock()
	if h.block != nil {
		<-h.block
	}
	return h.result, h.err
}

func (h *recordingHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func command(name string, class toolkit.Classification, h toolkit.Handler) *toolkit.Command {
	return &toolkit.Command{
		Spec:    toolkit.CommandSpec{Name: name, Classification: class},
		Handler: h,
	}
}

func validDestructiveRequest(token string) *toolkit.ExecutionRequest {
	return &toolkit.ExecutionRequest{
		TenantID:          "t-1",
		DryRun:            false,
		ConfirmWrite:      true,
		ConfirmationToken: token,
		ConfirmedAt:       time.Now().UTC().Format(time.RFC3339),
		DestructiveAck:    toolkit.DestructiveAck,
		Mode:              toolkit.ModeCLI,
	}
}

// --- Safety gates ---

// TestExecute_ConfirmWriteGate: dryRun=false with confirmWrite=false always
// yields SAFETY_BLOCK regardless of classification, and the handler is
// never reached.
func TestExecute_ConfirmWriteGate(t *testing.T) {
	for _, class := range []toolkit.Classification{
		toolkit.ClassificationRead,
		toolkit.ClassificationWrite,
		toolkit.ClassificationDestructive,
	} {
		t.Run(string(class), func(t *testing.T) {
			h := &recordingHandler{}
			exec := toolkit.NewExecutor(toolkit.NewSlotGate(5))

			res := exec.Execute(context.Background(), command("cmd", class, h), &toolkit.ExecutionRequest{
				TenantID:     "t-1",
				DryRun:       false,
				ConfirmWrite: false,
			})

			require.Equal(t, toolkit.ResultFailure, res.Kind)
			assert.Equal(t, toolkit.CodeSafetyBlock, res.Error.Code)
			assert.False(t, res.Error.IsRecoverable)
			assert.Equal(t, 0, h.Calls())
			assert.Nil(t, res.Manifest, "pre-slot rejection must not produce a manifest")
		})
	}
}

// TestExecute_DestructiveAckGate: a DESTRUCTIVE command with a missing or
// mismatched acknowledgment literal never reaches the handler.
func TestExecute_DestructiveAckGate(t *testing.T) {
	for _, ack := range []string{"", "hard_reset", "YES", "HARD-RESET"} {
		h := &recordingHandler{}
		v := &stubValidator{}
		exec := toolkit.NewExecutor(toolkit.NewSlotGate(5)).WithTokenValidator(v)

		req := validDestructiveRequest("RTH.x.y")
		req.DestructiveAck = ack
		res := exec.Execute(context.Background(), command("reset-tenant-hard", toolkit.ClassificationDestructive, h), req)

		require.Equal(t, toolkit.ResultFailure, res.Kind, "ack=%q", ack)
		assert.Equal(t, toolkit.CodeSafetyBlock, res.Error.Code)
		assert.Equal(t, 0, h.Calls())
	}
}

func TestExecute_DestructiveTokenRejected(t *testing.T) {
	h := &recordingHandler{}
	v := &stubValidator{err: errors.New("rejected")}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5)).WithTokenValidator(v)

	res := exec.Execute(context.Background(),
		command("reset-tenant-hard", toolkit.ClassificationDestructive, h),
		validDestructiveRequest("RTH.bogus.tag"))

	require.Equal(t, toolkit.ResultFailure, res.Kind)
	assert.Equal(t, toolkit.CodeSafetyBlock, res.Error.Code)
	assert.Equal(t, 1, v.calls)
	assert.Equal(t, 0, h.Calls())
}

func TestExecute_DestructiveWithoutValidatorFailsClosed(t *testing.T) {
	h := &recordingHandler{}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5))

	res := exec.Execute(context.Background(),
		command("reset-tenant-hard", toolkit.ClassificationDestructive, h),
		validDestructiveRequest("RTH.x.y"))

	require.Equal(t, toolkit.ResultFailure, res.Kind)
	assert.Equal(t, toolkit.CodeSafetyBlock, res.Error.Code)
	assert.Equal(t, 0, h.Calls())
}

func TestExecute_DestructiveBadConfirmedAt(t *testing.T) {
	h := &recordingHandler{}
	v := &stubValidator{}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5)).WithTokenValidator(v)

	req := validDestructiveRequest("RTH.x.y")
	req.ConfirmedAt = "yesterday"
	res := exec.Execute(context.Background(),
		command("reset-tenant-hard", toolkit.ClassificationDestructive, h), req)

	require.Equal(t, toolkit.ResultFailure, res.Kind)
	assert.Equal(t, toolkit.CodeSafetyBlock, res.Error.Code)
	assert.Equal(t, 0, v.calls, "token must not be consulted before cheaper gates pass")
}

// --- Dispatch and outcomes ---

// TestExecute_SuccessPath verifies the handler observes the request and the
// manifest is finalized SUCCESS with exit code 0.
func TestExecute_SuccessPath(t *testing.T) {
	h := &recordingHandler{result: map[string]any{"rows": 3}}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5))

	res := exec.Execute(context.Background(), command("reset-tenant", toolkit.ClassificationWrite, h), &toolkit.ExecutionRequest{
		TenantID:     "t-1",
		DryRun:       false,
		ConfirmWrite: true,
		Mode:         toolkit.ModeHTTP,
	})

	require.Equal(t, toolkit.ResultSuccess, res.Kind)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, map[string]any{"rows": 3}, res.Value)
	assert.Equal(t, 1, h.Calls())
	assert.False(t, h.lastReq.DryRun, "handler must observe dryRun=false")
	require.NotNil(t, res.Manifest)
	assert.Equal(t, "SUCCESS", string(res.Manifest.Status))
	assert.Equal(t, "HTTP", res.Manifest.Invocation.ExecutionMode)
	assert.NotEmpty(t, res.RunID)
}

func TestExecute_HandlerFailureWrapped(t *testing.T) {
	h := &recordingHandler{err: errors.New("db unreachable")}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5))

	res := exec.Execute(context.Background(), command("reset-tenant", toolkit.ClassificationWrite, h), &toolkit.ExecutionRequest{
		TenantID: "t-1", DryRun: true,
	})

	require.Equal(t, toolkit.ResultFailure, res.Kind)
	assert.Equal(t, toolkit.CodeHandlerFailed, res.Error.Code)
	require.NotNil(t, res.Manifest)
	assert.Equal(t, "FAILURE", string(res.Manifest.Status))
	assert.NotZero(t, res.Manifest.ExitCode)
	assert.ErrorContains(t, res.Err(), "db unreachable")
}

// TestExecute_TypedHandlerErrorPassesThrough: a handler error tagged
// CONCURRENCY_LIMIT keeps its code (and recoverability) end to end.
func TestExecute_TypedHandlerErrorPassesThrough(t *testing.T) {
	h := &recordingHandler{err: toolkit.ConcurrencyLimit()}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5))

	res := exec.Execute(context.Background(), command("run-alert-rules", toolkit.ClassificationRead, h), &toolkit.ExecutionRequest{
		TenantID: "t-1", DryRun: true,
	})

	require.Equal(t, toolkit.ResultFailure, res.Kind)
	assert.Equal(t, toolkit.CodeConcurrencyLimit, res.Error.Code)
	assert.True(t, res.Error.IsRecoverable)
}

// TestExecute_ArgsSanitized verifies raw tokens never reach the manifest.
func TestExecute_ArgsSanitized(t *testing.T) {
	h := &recordingHandler{}
	v := &stubValidator{}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5)).WithTokenValidator(v)

	req := validDestructiveRequest("RTH.secret-token.tag")
	req.Params = map[string]any{"days": 30, "apiKey": "hunter2"}
	res := exec.Execute(context.Background(),
		command("reset-tenant-hard", toolkit.ClassificationDestructive, h), req)

	require.Equal(t, toolkit.ResultSuccess, res.Kind)
	args := res.Manifest.Invocation.Args
	assert.Equal(t, "[REDACTED]", args["confirmationToken"])
	params := args["params"].(map[string]any)
	assert.Equal(t, "[REDACTED]", params["apiKey"])
	assert.Equal(t, 30, params["days"])
}

// --- Concurrency ---

// TestExecute_ConcurrencyCeiling: 6 simultaneous executions against a limit
// of 5: at least one fails CONCURRENCY_LIMIT, the rest complete.
func TestExecute_ConcurrencyCeiling(t *testing.T) {
	block := make(chan struct{})
	h := &recordingHandler{block: block, result: "ok"}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5))
	cmd := command("status", toolkit.ClassificationRead, h)

	results := make(chan *toolkit.Result, 6)
	for i := 0; i < 6; i++ {
		go func() {
			results <- exec.Execute(context.Background(), cmd, &toolkit.ExecutionRequest{
				TenantID: "t-1", DryRun: true,
			})
		}()
	}

	// Wait for the five slot holders to be inside the handler.
	require.Eventually(t, func() bool { return h.Calls() == 5 }, 2*time.Second, 5*time.Millisecond)

	var limited *toolkit.Result
	select {
	case limited = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an immediate CONCURRENCY_LIMIT rejection")
	}
	require.Equal(t, toolkit.ResultFailure, limited.Kind)
	assert.Equal(t, toolkit.CodeConcurrencyLimit, limited.Error.Code)
	assert.True(t, limited.Error.IsRecoverable)

	close(block)
	for i := 0; i < 5; i++ {
		res := <-results
		assert.Equal(t, toolkit.ResultSuccess, res.Kind)
	}
	assert.Equal(t, 0, exec.Gate().InFlight(), "all slots released")
}

func TestExecute_SlotReleasedOnFailure(t *testing.T) {
	h := &recordingHandler{err: errors.New("boom")}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(1))
	cmd := command("status", toolkit.ClassificationRead, h)

	for i := 0; i < 3; i++ {
		res := exec.Execute(context.Background(), cmd, &toolkit.ExecutionRequest{TenantID: "t", DryRun: true})
		require.Equal(t, toolkit.ResultFailure, res.Kind)
		assert.Equal(t, toolkit.CodeHandlerFailed, res.Error.Code)
	}
	assert.Equal(t, 0, exec.Gate().InFlight())
}

// --- Report persistence ---

func TestExecute_PersistReport(t *testing.T) {
	root := t.TempDir()
	w, err := report.NewWriter([]string{root})
	require.NoError(t, err)

	h := &recordingHandler{result: map[string]any{"seeded": true}}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5)).WithReportWriter(w)

	res := exec.Execute(context.Background(), command("seed-alert-scenario", toolkit.ClassificationWrite, h), &toolkit.ExecutionRequest{
		TenantID:      "t-1",
		DryRun:        false,
		ConfirmWrite:  true,
		PersistReport: true,
	})

	require.Equal(t, toolkit.ResultSuccess, res.Kind)
	require.NotEmpty(t, res.ReportPath)
	data, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"seeded":true`)
	assert.Contains(t, string(data), `"commandName":"seed-alert-scenario"`)
}

type failingWriter struct{ err error }

func (w *failingWriter) Write(ctx context.Context, doc *report.Document) (string, error) {
	return "", w.err
}

func (w *failingWriter) WriteTo(ctx context.Context, doc *report.Document, root string) (string, error) {
	return "", w.err
}

type capturingAudit struct {
	mu     sync.Mutex
	events []map[string]any
}

func (a *capturingAudit) Record(ctx context.Context, eventType audit.EventType, action, resource string, metadata map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, metadata)
	return nil
}

// TestExecute_PersistFailureKeepsArtifactsConsistent: when the handler
// succeeds and only report persistence fails, the manifest and the audit
// record both carry the handler outcome; the persistence failure travels in
// the Result and in audit metadata.
func TestExecute_PersistFailureKeepsArtifactsConsistent(t *testing.T) {
	h := &recordingHandler{result: "ok"}
	a := &capturingAudit{}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5)).
		WithReportWriter(&failingWriter{err: errors.New("disk full")}).
		WithAudit(a)

	res := exec.Execute(context.Background(), command("reset-tenant", toolkit.ClassificationWrite, h), &toolkit.ExecutionRequest{
		TenantID:      "t-1",
		DryRun:        false,
		ConfirmWrite:  true,
		PersistReport: true,
	})

	require.Equal(t, toolkit.ResultFailure, res.Kind)
	assert.Equal(t, toolkit.CodeHandlerFailed, res.Error.Code)
	assert.Equal(t, 6, res.ExitCode)

	require.NotNil(t, res.Manifest)
	assert.Equal(t, "SUCCESS", string(res.Manifest.Status))
	assert.Equal(t, 0, res.Manifest.ExitCode)

	require.Len(t, a.events, 1)
	meta := a.events[0]
	assert.Equal(t, "SUCCESS", meta["status"], "audit must agree with the manifest")
	assert.Equal(t, 0, meta["exit_code"])
	assert.Equal(t, false, meta["report_persisted"])
	assert.Equal(t, string(toolkit.CodeHandlerFailed), meta["report_error"])
}

func TestExecute_PersistWithoutWriterFails(t *testing.T) {
	h := &recordingHandler{}
	exec := toolkit.NewExecutor(toolkit.NewSlotGate(5))

	res := exec.Execute(context.Background(), command("status", toolkit.ClassificationRead, h), &toolkit.ExecutionRequest{
		TenantID: "t-1", DryRun: true, PersistReport: true,
	})

	require.Equal(t, toolkit.ResultFailure, res.Kind)
	assert.Equal(t, toolkit.CodeValidation, res.Error.Code)
}
