// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// compliant serialization for toolkit reports and manifests. Logically
// identical documents always produce byte-identical output, which is what
// makes persisted reports diffable and tamper-evident.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"golang.org/x/text/unicode/norm"
)

// JCS returns the RFC 8785 canonical JSON representation of v.
//
// Key features:
// 1. Map keys are sorted lexicographically by UTF-16 code units, recursively.
// 2. HTML escaping is DISABLED (unlike standard json.Marshal).
// 3. Number formatting follows ECMAScript shortest-round-trip rules.
//
// Strategy: marshal with encoding/json first so struct tags are respected,
// then run the bytes through the JCS transform to fix ordering and escaping.
func JCS(v any) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jcs: pre-marshal failed: %w", err)
	}

	canonical, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("jcs: transform failed: %w", err)
	}
	return canonical, nil
}

// JCSString returns the JCS canonical form as a string.
func JCSString(v any) (string, error) {
	data, err := JCS(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical JSON
// representation of v.
func CanonicalHash(v any) (string, error) {
	b, err := JCS(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns a hex string.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// NFC recursively normalizes every string value (and map key) in v to
// Unicode Normalization Form C. Operator-supplied arguments can arrive in
// mixed normal forms depending on the terminal; without this, two visually
// identical invocations would hash differently in the manifest.
func NFC(v any) any {
	switch t := v.(type) {
	case string:
		return norm.NFC.String(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[norm.NFC.String(k)] = NFC(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			out[i] = NFC(elem)
		}
		return out
	default:
		return v
	}
}
