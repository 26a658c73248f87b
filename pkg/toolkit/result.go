package toolkit

import "github.com/brightsignal/opskit/pkg/manifest"

// ResultKind discriminates the two execution outcomes.
type ResultKind string

const (
	ResultSuccess ResultKind = "success"
	ResultFailure ResultKind = "failure"
)

// ErrorDetail is the serializable failure half of a Result.
type ErrorDetail struct {
	Name          string `json:"name"`
	Code          Code   `json:"code"`
	Message       string `json:"message"`
	IsRecoverable bool   `json:"isRecoverable"`
}

// Result is the uniform outcome of one executor invocation.
type Result struct {
	Kind       ResultKind         `json:"kind"`
	Value      any                `json:"value,omitempty"`
	Error      *ErrorDetail       `json:"error,omitempty"`
	RunID      string             `json:"runId,omitempty"`
	ExitCode   int                `json:"exitCode"`
	ReportPath string             `json:"reportPath,omitempty"`
	Manifest   *manifest.Document `json:"manifest,omitempty"`

	err *Error
}

// Err returns the typed failure, nil for successes.
func (r *Result) Err() *Error { return r.err }

func successResult(value any, runID string, doc *manifest.Document, reportPath string) *Result {
	return &Result{
		Kind:       ResultSuccess,
		Value:      value,
		RunID:      runID,
		ExitCode:   0,
		ReportPath: reportPath,
		Manifest:   doc,
	}
}

func failureResult(te *Error, runID string, doc *manifest.Document) *Result {
	return &Result{
		Kind:     ResultFailure,
		RunID:    runID,
		ExitCode: te.ExitCode,
		Manifest: doc,
		Error: &ErrorDetail{
			Name:          "ToolkitError",
			Code:          te.Code,
			Message:       te.Message,
			IsRecoverable: te.Recoverable(),
		},
		err: te,
	}
}
