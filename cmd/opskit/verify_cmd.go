package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Masterminds/semver/v3"

	"github.com/brightsignal/opskit/pkg/canonicalize"
	"github.com/brightsignal/opskit/pkg/toolkit"
)

// verifyReport is the machine-readable outcome of `opskit verify`.
type verifyReport struct {
	Path           string `json:"path"`
	Canonical      bool   `json:"canonical"`
	Hash           string `json:"hash"`
	ToolkitVersion string `json:"toolkitVersion,omitempty"`
	Compatible     bool   `json:"compatible"`
	Verified       bool   `json:"verified"`
	Reason         string `json:"reason,omitempty"`
}

// runVerifyCmd implements `opskit verify <report.json>`.
//
// A report verifies when its bytes are already in canonical form (any edit
// breaks this) and its toolkit version satisfies the compatibility range.
//
// Exit codes:
//
//	0 = verification passed
//	1 = verification failed
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] == "" {
		_, _ = fmt.Fprintln(stderr, "Usage: opskit verify <report.json>")
		return 2
	}
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	report := verifyReport{Path: path, Hash: canonicalize.HashBytes(data)}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		report.Reason = fmt.Sprintf("not valid JSON: %v", err)
		return emitVerify(stdout, stderr, report)
	}

	canonical, err := canonicalize.JCS(doc)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	report.Canonical = bytes.Equal(bytes.TrimRight(data, "\n"), canonical)
	if !report.Canonical {
		report.Reason = "report bytes differ from their canonical form"
	}

	report.ToolkitVersion = extractVersion(doc)
	report.Compatible, err = versionCompatible(report.ToolkitVersion)
	if err != nil {
		report.Reason = err.Error()
	}

	report.Verified = report.Canonical && report.Compatible
	return emitVerify(stdout, stderr, report)
}

func extractVersion(doc map[string]any) string {
	manifest, ok := doc["manifest"].(map[string]any)
	if !ok {
		return ""
	}
	version, _ := manifest["toolkitVersion"].(string)
	return version
}

// versionCompatible checks the report's producing version against the range
// this binary knows how to verify.
func versionCompatible(version string) (bool, error) {
	if version == "" {
		return false, fmt.Errorf("report carries no toolkit version")
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("toolkit version %q is not semver: %v", version, err)
	}
	constraint, err := semver.NewConstraint(toolkit.CompatConstraint)
	if err != nil {
		return false, err
	}
	if !constraint.Check(v) {
		return false, fmt.Errorf("toolkit version %s outside supported range %s", version, toolkit.CompatConstraint)
	}
	return true, nil
}

func emitVerify(stdout, stderr io.Writer, report verifyReport) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if !report.Verified {
		_, _ = fmt.Fprintf(stderr, "Verification failed: %s\n", report.Reason)
		return 1
	}
	return 0
}
