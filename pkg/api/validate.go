package api

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// commandRequestSchema is the JSON Schema every mutating endpoint body must
// satisfy before the DTO is handed to the executor. Field-shape errors are
// caught here (400); the executor's safety gates are enforced independently
// and still apply to anything that passes.
const commandRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tenantId", "dryRun"],
  "properties": {
    "tenantId":          {"type": "string", "minLength": 1, "maxLength": 128},
    "dryRun":            {"type": "boolean"},
    "confirmWrite":      {"type": "boolean"},
    "confirmationToken": {"type": "string", "maxLength": 256},
    "confirmedAt":       {"type": "string", "maxLength": 64},
    "destructiveAck":    {"type": "string", "maxLength": 64},
    "persistReport":     {"type": "boolean"},
    "reportRoot":        {"type": "string", "maxLength": 1024},
    "params":            {"type": "object"}
  },
  "additionalProperties": false
}`

// tokenRequestSchema validates the token-issue endpoint body.
const tokenRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["tenantId"],
  "properties": {
    "tenantId": {"type": "string", "minLength": 1, "maxLength": 128}
  },
  "additionalProperties": false
}`

var (
	compiledCommandSchema = mustCompileSchema("command-request", commandRequestSchema)
	compiledTokenSchema   = mustCompileSchema("token-request", tokenRequestSchema)
)

func mustCompileSchema(name, schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://brightsignal.io/schemas/opskit/%s.schema.json", name)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		panic(fmt.Sprintf("api: schema %s load failed: %v", name, err))
	}
	compiled, err := c.Compile(url)
	if err != nil {
		panic(fmt.Sprintf("api: schema %s compile failed: %v", name, err))
	}
	return compiled
}

// validateCommandBody checks the decoded body against the command schema and
// the cross-field confirmation rule. The returned message is safe to expose.
func validateCommandBody(body map[string]any) error {
	if err := compiledCommandSchema.Validate(body); err != nil {
		return fmt.Errorf("request body: %s", schemaErrorDetail(err))
	}

	// Cross-field rule: a real (non-dry-run) execution must carry an explicit
	// confirmWrite=true. Catching it here gives the caller a 400 with a field
	// message instead of the executor's 403.
	dryRun, _ := body["dryRun"].(bool)
	confirmWrite, _ := body["confirmWrite"].(bool)
	if !dryRun && !confirmWrite {
		return fmt.Errorf("confirmWrite must be true when dryRun is false")
	}
	return nil
}

func validateTokenBody(body map[string]any) error {
	if err := compiledTokenSchema.Validate(body); err != nil {
		return fmt.Errorf("request body: %s", schemaErrorDetail(err))
	}
	return nil
}

// schemaErrorDetail flattens a jsonschema validation error into its most
// specific leaf message.
func schemaErrorDetail(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	if loc := leaf.InstanceLocation; loc != "" {
		return fmt.Sprintf("%s: %s", strings.TrimPrefix(loc, "/"), leaf.Message)
	}
	return leaf.Message
}
