// Package schema validates inbound snapshot documents against the
// normalized-snapshot JSON schema before they reach the codec. This is an
// ingest-boundary check: the engine's own validation still covers
// programmatically constructed snapshots.
package schema

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const snapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "NormalizedResourceSnapshot",
  "type": "object",
  "required": ["snapshot_id"],
  "properties": {
    "snapshot_id": {"type": "string"},
    "account_id": {"type": "string"},
    "provider": {"type": "string", "enum": ["AWS", "Azure", "GCP"]},
    "resource_type": {"type": "string"},
    "resource_id": {"type": "string"},
    "captured_at": {"type": "string"},
    "metadata": {"type": "object"}
  }
}`

// SnapshotValidator checks snapshot documents against the embedded schema.
type SnapshotValidator struct {
	schema *gojsonschema.Schema
}

// NewSnapshotValidator compiles the embedded snapshot schema.
func NewSnapshotValidator() (*SnapshotValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(snapshotSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile snapshot schema: %w", err)
	}
	return &SnapshotValidator{schema: schema}, nil
}

// Validate returns an error describing every schema violation in the
// document, or nil when the document conforms.
func (v *SnapshotValidator) Validate(document []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("snapshot document invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}
