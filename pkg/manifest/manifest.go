// Package manifest builds the append-only audit record of one toolkit
// command invocation: who/what/when/args/outcome. Every invocation that
// reaches an execution slot is representable as exactly one manifest.
package manifest

import (
	"errors"
	"fmt"
	"time"
)

// Status is the terminal outcome recorded in a manifest.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// ErrAlreadyFinalized is returned when Finalize is called twice.
var ErrAlreadyFinalized = errors.New("manifest: already finalized")

// Invocation captures the immutable inputs of a command run. Args must be
// sanitized by the caller before construction; no raw tokens or secrets.
type Invocation struct {
	CommandName           string         `json:"commandName"`
	CommandClassification string         `json:"commandClassification"`
	ExecutionMode         string         `json:"executionMode"`
	Args                  map[string]any `json:"args"`
}

// Document is the finalized audit record. Immutable once built.
type Document struct {
	Invocation     Invocation `json:"invocation"`
	Status         Status     `json:"status"`
	ExitCode       int        `json:"exitCode"`
	StartedAt      time.Time  `json:"startedAt"`
	FinishedAt     time.Time  `json:"finishedAt"`
	ToolkitVersion string     `json:"toolkitVersion,omitempty"`
	Notes          []string   `json:"notes,omitempty"`
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// Builder assembles a Document incrementally with one mutation point:
// Finalize, which may run exactly once.
type Builder struct {
	inv       Invocation
	startedAt time.Time
	notes     []string
	version   string
	clock     Clock
	finalized bool
}

// NewBuilder starts a manifest for one invocation. Args are recorded as
// given; callers pass ExecutionRequest.SanitizedArgs().
func NewBuilder(commandName, classification, executionMode string, args map[string]any) *Builder {
	b := &Builder{
		inv: Invocation{
			CommandName:           commandName,
			CommandClassification: classification,
			ExecutionMode:         executionMode,
			Args:                  args,
		},
		clock: wallClock{},
	}
	b.startedAt = b.clock.Now()
	return b
}

// WithClock injects a test clock. Must be called before Finalize.
func (b *Builder) WithClock(c Clock) *Builder {
	if c != nil {
		b.clock = c
		b.startedAt = c.Now()
	}
	return b
}

// WithVersion stamps the toolkit version into the document.
func (b *Builder) WithVersion(v string) *Builder {
	b.version = v
	return b
}

// Note appends a free-form progress note.
func (b *Builder) Note(format string, args ...any) {
	if b.finalized {
		return
	}
	b.notes = append(b.notes, fmt.Sprintf(format, args...))
}

// Finalize seals the manifest. A second call returns ErrAlreadyFinalized.
func (b *Builder) Finalize(status Status, exitCode int) (*Document, error) {
	if b.finalized {
		return nil, ErrAlreadyFinalized
	}
	if status != StatusSuccess && status != StatusFailure {
		return nil, fmt.Errorf("manifest: invalid status %q", status)
	}
	b.finalized = true

	notes := make([]string, len(b.notes))
	copy(notes, b.notes)

	return &Document{
		Invocation:     b.inv,
		Status:         status,
		ExitCode:       exitCode,
		StartedAt:      b.startedAt,
		FinishedAt:     b.clock.Now(),
		ToolkitVersion: b.version,
		Notes:          notes,
	}, nil
}
