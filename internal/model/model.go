package model

import (
	"time"
)

// Provider identifies the cloud provider a snapshot was collected from.
type Provider string

const (
	ProviderAWS   Provider = "AWS"
	ProviderAzure Provider = "Azure"
	ProviderGCP   Provider = "GCP"
)

// ResourceType identifies the kind of resource a snapshot describes.
type ResourceType string

const (
	ResourceTypeS3Bucket ResourceType = "S3_BUCKET"
)

// Severity is the severity level of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// FindingStatus indicates whether a finding is actionable.
type FindingStatus string

const (
	StatusOpen       FindingStatus = "OPEN"
	StatusSuppressed FindingStatus = "SUPPRESSED"
)

// ErrorCode classifies a non-fatal evaluation error.
type ErrorCode string

const (
	ErrCodeUnknownRule        ErrorCode = "UNKNOWN_RULE"
	ErrCodeInvalidSchema      ErrorCode = "INVALID_SCHEMA"
	ErrCodeSkippedMissingData ErrorCode = "SKIPPED_MISSING_DATA"
	ErrCodeRuleException      ErrorCode = "RULE_EXCEPTION"
)

// ValidationRuleID is the sentinel rule id used for snapshot-level
// validation errors, which are not attributable to any single rule.
const ValidationRuleID = "__validation__"

// ResourceSnapshot is a normalized, point-in-time view of one cloud
// resource's configuration. It is produced upstream by a collector and
// consumed read-only by the engine.
//
// Metadata contains normalized keys that are consistent across providers
// (for S3: encryption, public_access_block, acl_grants, bucket_policy,
// transport).
type ResourceSnapshot struct {
	SnapshotID   string                 `json:"snapshot_id"`
	AccountID    string                 `json:"account_id"`
	Provider     Provider               `json:"provider"`
	ResourceType ResourceType           `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	CapturedAt   time.Time              `json:"captured_at"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// RuleConfig is one rule's activation state for an evaluation scope.
// A suppressed rule still runs; its findings are recorded with status
// SUPPRESSED instead of OPEN.
type RuleConfig struct {
	RuleID           string                 `json:"rule_id"`
	Enabled          bool                   `json:"enabled"`
	SeverityOverride Severity               `json:"severity_override,omitempty"`
	Params           map[string]interface{} `json:"params,omitempty"`
	Suppressed       bool                   `json:"suppressed"`
}

// Observation is one auditable data point backing a finding. Path is a
// dot-separated pointer into the snapshot metadata.
type Observation struct {
	Path  string      `json:"path"`
	Value interface{} `json:"value"`
}

// Evidence supports a finding with a summary and ordered observations.
type Evidence struct {
	Summary      string        `json:"summary"`
	Observations []Observation `json:"observations"`
}

// Remediation carries guidance for fixing the detected issue.
type Remediation struct {
	Summary    string   `json:"summary"`
	Steps      []string `json:"steps"`
	References []string `json:"references"`
}

// Finding is a fully assembled policy violation tied to one snapshot,
// one rule, and one violation instance. FindingID is deterministic:
// the same (snapshot_id, rule_id, finding_key) always yields the same id.
type Finding struct {
	FindingID    string        `json:"finding_id"`
	AccountID    string        `json:"account_id"`
	ResourceType ResourceType  `json:"resource_type"`
	ResourceID   string        `json:"resource_id"`
	RuleID       string        `json:"rule_id"`
	RuleVersion  string        `json:"rule_version"`
	Severity     Severity      `json:"severity"`
	Status       FindingStatus `json:"status"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Evidence     Evidence      `json:"evidence"`
	Remediation  Remediation   `json:"remediation"`
	DetectedAt   time.Time     `json:"detected_at"`
}

// EvaluationError is a non-fatal problem encountered while evaluating
// one rule (or validating the snapshot, under ValidationRuleID).
type EvaluationError struct {
	RuleID     string    `json:"rule_id"`
	ErrorCode  ErrorCode `json:"error_code"`
	Message    string    `json:"message"`
	SnapshotID string    `json:"snapshot_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EvaluationStats summarizes one evaluation call. RulesFailed counts
// UNKNOWN_RULE, INVALID_SCHEMA and RULE_EXCEPTION; SKIPPED_MISSING_DATA
// is a soft skip and does not count as a failure.
type EvaluationStats struct {
	RulesEvaluated int   `json:"rules_evaluated"`
	RulesFailed    int   `json:"rules_failed"`
	DurationMs     int64 `json:"duration_ms"`
}

// EvaluationResult is the complete outcome of evaluating one snapshot.
// Findings are ordered by rule-config iteration order, then per-rule
// emission order; errors are ordered by occurrence.
type EvaluationResult struct {
	Findings []Finding         `json:"findings"`
	Stats    EvaluationStats   `json:"stats"`
	Errors   []EvaluationError `json:"errors"`
}

// ValidSeverity reports whether s is one of the four severity levels.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// ValidProvider reports whether p is a known cloud provider.
func ValidProvider(p Provider) bool {
	switch p {
	case ProviderAWS, ProviderAzure, ProviderGCP:
		return true
	}
	return false
}

// ValidResourceType reports whether t is a known resource type.
func ValidResourceType(t ResourceType) bool {
	return t == ResourceTypeS3Bucket
}
