package model

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// parseTimestamp accepts RFC 3339 timestamps; a Z suffix is UTC.
func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

// snapshotDoc mirrors the normalized snapshot document contract.
type snapshotDoc struct {
	SnapshotID   string                 `json:"snapshot_id"`
	AccountID    string                 `json:"account_id"`
	Provider     string                 `json:"provider"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	CapturedAt   string                 `json:"captured_at"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// ParseSnapshot decodes a normalized snapshot document. The captured_at
// timestamp accepts RFC 3339 with either a Z suffix or an explicit offset
// and may be absent. Missing account_id/resource_id/resource_type are left
// empty rather than rejected here; the engine's validation step reports
// them as a structured INVALID_SCHEMA result.
func ParseSnapshot(data []byte) (*ResourceSnapshot, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot document: %w", err)
	}

	if doc.SnapshotID == "" {
		return nil, fmt.Errorf("snapshot document missing snapshot_id")
	}
	if doc.Provider != "" && !ValidProvider(Provider(doc.Provider)) {
		return nil, fmt.Errorf("unknown provider: %q", doc.Provider)
	}
	if doc.ResourceType != "" && !ValidResourceType(ResourceType(doc.ResourceType)) {
		return nil, fmt.Errorf("unknown resource_type: %q", doc.ResourceType)
	}

	snap := &ResourceSnapshot{
		SnapshotID:   doc.SnapshotID,
		AccountID:    doc.AccountID,
		Provider:     Provider(doc.Provider),
		ResourceType: ResourceType(doc.ResourceType),
		ResourceID:   doc.ResourceID,
		Metadata:     doc.Metadata,
	}
	if snap.Metadata == nil {
		snap.Metadata = map[string]interface{}{}
	}

	if doc.CapturedAt != "" {
		ts, err := parseTimestamp(doc.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid captured_at: %w", err)
		}
		snap.CapturedAt = ts
	}

	return snap, nil
}

// ruleConfigDoc is the wire form of one rule entry in a policy document.
// Pointers distinguish absent booleans from explicit false so the
// documented defaults (enabled=true, suppressed=false) apply.
type ruleConfigDoc struct {
	RuleID           string                 `json:"rule_id" yaml:"rule_id"`
	Enabled          *bool                  `json:"enabled" yaml:"enabled"`
	SeverityOverride string                 `json:"severity_override" yaml:"severity_override"`
	Params           map[string]interface{} `json:"params" yaml:"params"`
	Suppressed       *bool                  `json:"suppressed" yaml:"suppressed"`
}

type policyDoc struct {
	Rules []ruleConfigDoc `json:"rules" yaml:"rules"`
}

// ParseRuleConfigs decodes a JSON policy configuration document.
func ParseRuleConfigs(data []byte) ([]RuleConfig, error) {
	var doc policyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return ruleConfigsFromDoc(doc)
}

// ParseRuleConfigsYAML decodes a YAML policy configuration document.
func ParseRuleConfigsYAML(data []byte) ([]RuleConfig, error) {
	var doc policyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}
	return ruleConfigsFromDoc(doc)
}

func ruleConfigsFromDoc(doc policyDoc) ([]RuleConfig, error) {
	configs := make([]RuleConfig, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		if r.RuleID == "" {
			return nil, fmt.Errorf("policy rule %d missing rule_id", i)
		}
		cfg := RuleConfig{
			RuleID:     r.RuleID,
			Enabled:    true,
			Params:     r.Params,
			Suppressed: false,
		}
		if r.Enabled != nil {
			cfg.Enabled = *r.Enabled
		}
		if r.Suppressed != nil {
			cfg.Suppressed = *r.Suppressed
		}
		if r.SeverityOverride != "" {
			sev := Severity(r.SeverityOverride)
			if !ValidSeverity(sev) {
				return nil, fmt.Errorf("policy rule %q has invalid severity_override: %q", r.RuleID, r.SeverityOverride)
			}
			cfg.SeverityOverride = sev
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// MarshalResult serializes an EvaluationResult to the output contract,
// guaranteeing findings and errors serialize as arrays rather than null.
func MarshalResult(result *EvaluationResult, pretty bool) ([]byte, error) {
	out := *result
	if out.Findings == nil {
		out.Findings = []Finding{}
	}
	if out.Errors == nil {
		out.Errors = []EvaluationError{}
	}
	if pretty {
		return json.MarshalIndent(&out, "", "  ")
	}
	return json.Marshal(&out)
}
