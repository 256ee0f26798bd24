package rules

import (
	"fmt"
	"strings"

	"github.com/edelagziel/SkyWatch/internal/model"
)

// FindingSpec is a rule's raw output before enrichment. FindingKey must be
// stable per distinct violation condition within a rule; it is the
// determinism anchor for finding identity. Severity is optional: a rule
// sets it only when it has a reason to deviate from its default.
type FindingSpec struct {
	FindingKey  string
	Title       string
	Description string
	Evidence    model.Evidence
	Remediation model.Remediation
	Severity    model.Severity
	Extra       map[string]interface{}
}

// PolicyRule is the contract every policy rule implements. Evaluate must be
// a pure function of its two inputs: no hidden state, no I/O. An empty
// result with a nil error means "evaluated, no violation found".
//
// Evaluate signals its failure modes through error kinds:
//   - *SkippedMissingDataError: the data this rule needs is absent from the
//     snapshot; the engine records a soft skip, not a failure.
//   - *InvalidSchemaError: the data is present but violates the expected
//     shape; counted as a rule failure.
//   - any other error is treated as a rule exception by the engine.
type PolicyRule interface {
	ID() string
	Version() string
	DefaultSeverity() model.Severity
	Supports(resourceType model.ResourceType) bool
	Evaluate(snapshot *model.ResourceSnapshot, params map[string]interface{}) ([]FindingSpec, error)
}

// UnknownRuleError reports a registry lookup for an unregistered rule id.
type UnknownRuleError struct {
	RuleID string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown rule_id: %s", e.RuleID)
}

// SkippedMissingDataError signals that a rule's required data is absent
// from the snapshot. It is a soft skip, not a rule failure.
type SkippedMissingDataError struct {
	RuleID       string
	MissingPaths []string
}

func (e *SkippedMissingDataError) Error() string {
	return fmt.Sprintf("rule %s skipped: missing required data: %s", e.RuleID, strings.Join(e.MissingPaths, ", "))
}

// InvalidSchemaError signals that a rule's input data is present but
// malformed.
type InvalidSchemaError struct {
	RuleID  string
	Message string
}

func (e *InvalidSchemaError) Error() string {
	return fmt.Sprintf("rule %s invalid schema: %s", e.RuleID, e.Message)
}
