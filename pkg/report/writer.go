// Package report persists toolkit result documents to disk: canonical
// (key-sorted) JSON, traversal-safe naming, confinement to an allow-list of
// roots, and atomic visibility. A reader can never observe a partial report.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/brightsignal/opskit/pkg/canonicalize"
	"github.com/brightsignal/opskit/pkg/manifest"
)

// ErrInvalidRunID is returned before any filesystem call when the run ID
// fails the allow-list pattern.
var ErrInvalidRunID = errors.New("Invalid Run ID")

// ErrRootNotAllowed is returned when the destination is outside the
// configured report roots (including the no-roots-configured case, which
// fails closed).
var ErrRootNotAllowed = errors.New("report destination root not allowed")

// runIDPattern is a strict allow-list: alphanumerics, dash, underscore. No
// dots, so traversal sequences and hidden files are impossible by
// construction.
var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Document is the persisted artifact of one run: arbitrary results plus the
// audit manifest. RunID names the file and is deliberately excluded from the
// serialized body so identical logical content is byte-identical on disk
// regardless of run.
type Document struct {
	RunID    string             `json:"-"`
	Meta     map[string]any     `json:"meta,omitempty"`
	Results  any                `json:"results,omitempty"`
	Summary  map[string]any     `json:"summary,omitempty"`
	Manifest *manifest.Document `json:"manifest,omitempty"`
}

// Archiver mirrors a written report to object storage.
type Archiver interface {
	Archive(ctx context.Context, runID string, canonical []byte) error
}

// Writer persists reports under an allow-list of roots.
type Writer struct {
	roots    []string
	archiver Archiver
	logger   *slog.Logger
}

// NewWriter creates a writer confined to roots. An empty list is legal and
// means every write is refused.
func NewWriter(roots []string) (*Writer, error) {
	abs := make([]string, 0, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		a, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("report: resolving root %q: %w", r, err)
		}
		abs = append(abs, filepath.Clean(a))
	}
	return &Writer{roots: abs, logger: slog.Default()}, nil
}

// WithArchiver attaches an object-storage archiver. Archival failures are
// logged, never fatal: the local report is the durable artifact.
func (w *Writer) WithArchiver(a Archiver) *Writer {
	w.archiver = a
	return w
}

// Write persists doc under the first allowed root.
func (w *Writer) Write(ctx context.Context, doc *Document) (string, error) {
	if len(w.roots) == 0 {
		return "", ErrRootNotAllowed
	}
	return w.WriteTo(ctx, doc, w.roots[0])
}

// WriteTo persists doc under the named root, which must be on the
// allow-list. The run ID is validated before any filesystem call.
func (w *Writer) WriteTo(ctx context.Context, doc *Document, root string) (string, error) {
	if doc == nil {
		return "", fmt.Errorf("report: nil document")
	}
	if !runIDPattern.MatchString(doc.RunID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, doc.RunID)
	}

	allowedRoot, err := w.resolveRoot(root)
	if err != nil {
		return "", err
	}

	canonical, err := canonicalize.JCS(doc)
	if err != nil {
		return "", fmt.Errorf("report: canonicalization failed: %w", err)
	}

	dest := filepath.Join(allowedRoot, doc.RunID+".json")
	// Belt and braces: the pattern already forbids separators, but the final
	// path must still resolve inside the root.
	if filepath.Dir(dest) != allowedRoot {
		return "", fmt.Errorf("%w: %q", ErrInvalidRunID, doc.RunID)
	}

	if err := w.commit(dest, allowedRoot, canonical); err != nil {
		return "", err
	}

	if w.archiver != nil {
		if err := w.archiver.Archive(ctx, doc.RunID, canonical); err != nil {
			w.logger.Warn("report archival failed", "run_id", doc.RunID, "error", err)
		}
	}
	return dest, nil
}

func (w *Writer) resolveRoot(root string) (string, error) {
	a, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("report: resolving root %q: %w", root, err)
	}
	a = filepath.Clean(a)
	for _, allowed := range w.roots {
		if a == allowed {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrRootNotAllowed, root)
}

// commit writes canonical bytes to a temp file in the destination directory
// and renames it into place. Concurrent writers for different run IDs never
// share a temp path; racing writers for the same run ID resolve to
// last-rename-wins with no partial file ever visible.
func (w *Writer) commit(dest, dir string, canonical []byte) error {
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("report: temp file creation failed: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(canonical); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("report: write failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("report: close failed: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		// Some platforms refuse overwrite-by-rename. Remove and retry once.
		_ = os.Remove(dest)
		if err := os.Rename(tmpPath, dest); err != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("report: commit failed: %w", err)
		}
	}
	return nil
}
