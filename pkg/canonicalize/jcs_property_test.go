//go:build property
// +build property

// Property-based tests for canonical JSON determinism.
package canonicalize_test

import (
	"encoding/json"
	"testing"

	"github.com/brightsignal/opskit/pkg/canonicalize"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestJCSDeterminism verifies canonicalization is a pure function.
// Property: JCS(obj) == JCS(obj) for any obj.
func TestJCSDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical form is deterministic", prop.ForAll(
		func(keys []string, values []string) bool {
			obj := make(map[string]any)
			for i := 0; i < len(keys) && i < len(values); i++ {
				if keys[i] != "" {
					obj[keys[i]] = values[i]
				}
			}

			b1, err1 := canonicalize.JCS(obj)
			b2, err2 := canonicalize.JCS(obj)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return string(b1) == string(b2)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestJCSRoundTrip verifies canonical output is still valid JSON carrying
// the same data.
func TestJCSRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("canonical form round-trips", prop.ForAll(
		func(key string, value string) bool {
			if key == "" {
				return true
			}
			obj := map[string]any{key: value}

			b, err := canonicalize.JCS(obj)
			if err != nil {
				return false
			}
			var decoded map[string]any
			if err := json.Unmarshal(b, &decoded); err != nil {
				return false
			}
			return decoded[key] == value
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
