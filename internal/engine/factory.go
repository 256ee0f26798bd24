package engine

import (
	"github.com/google/uuid"

	"github.com/edelagziel/SkyWatch/internal/model"
	"github.com/edelagziel/SkyWatch/internal/rules"
)

// findingNamespace is the fixed namespace for deterministic finding ids.
// It is a compatibility-critical constant: changing it silently changes
// every future finding identity. Never regenerate it.
var findingNamespace = uuid.MustParse("3d014e3a-8a03-4dd8-9f5d-6b7b5a03b0d2")

// FindingFactory assembles fully formed findings from raw rule output.
// FindingID is a name-based UUID (v5, SHA-1) over
// "{snapshot_id}|{rule_id}|{finding_key}" under findingNamespace, so
// identical inputs always yield the identical id regardless of process,
// time, or machine.
type FindingFactory struct{}

// NewFindingFactory creates a finding factory.
func NewFindingFactory() *FindingFactory {
	return &FindingFactory{}
}

// Create enriches a FindingSpec into a Finding using the resolved severity
// and status decided by the engine.
func (f *FindingFactory) Create(
	snapshot *model.ResourceSnapshot,
	ctx *EvaluationContext,
	ruleID, ruleVersion string,
	severity model.Severity,
	status model.FindingStatus,
	spec rules.FindingSpec,
) model.Finding {
	return model.Finding{
		FindingID:    stableFindingID(snapshot.SnapshotID, ruleID, spec.FindingKey),
		AccountID:    snapshot.AccountID,
		ResourceType: snapshot.ResourceType,
		ResourceID:   snapshot.ResourceID,
		RuleID:       ruleID,
		RuleVersion:  ruleVersion,
		Severity:     severity,
		Status:       status,
		Title:        spec.Title,
		Description:  spec.Description,
		Evidence:     spec.Evidence,
		Remediation:  spec.Remediation,
		DetectedAt:   ctx.EvaluatedAt,
	}
}

func stableFindingID(snapshotID, ruleID, findingKey string) string {
	name := snapshotID + "|" + ruleID + "|" + findingKey
	return uuid.NewSHA1(findingNamespace, []byte(name)).String()
}
