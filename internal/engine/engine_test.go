package engine

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edelagziel/SkyWatch/internal/model"
	"github.com/edelagziel/SkyWatch/internal/policy"
	"github.com/edelagziel/SkyWatch/internal/rules"
)

// fakeRule is a configurable rule for exercising the engine's control flow.
type fakeRule struct {
	id       string
	severity model.Severity
	supports bool
	specs    []rules.FindingSpec
	err      error
	panics   bool
}

func (r *fakeRule) ID() string                             { return r.id }
func (r *fakeRule) Version() string                        { return "0.0.1" }
func (r *fakeRule) DefaultSeverity() model.Severity        { return r.severity }
func (r *fakeRule) Supports(rt model.ResourceType) bool    { return r.supports }
func (r *fakeRule) Evaluate(snapshot *model.ResourceSnapshot, params map[string]interface{}) ([]rules.FindingSpec, error) {
	if r.panics {
		panic("rule blew up")
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.specs, nil
}

func testSnapshot(metadata map[string]interface{}) *model.ResourceSnapshot {
	return &model.ResourceSnapshot{
		SnapshotID:   "snap-1",
		AccountID:    "123456789012",
		Provider:     model.ProviderAWS,
		ResourceType: model.ResourceTypeS3Bucket,
		ResourceID:   "bucket-1",
		CapturedAt:   time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC),
		Metadata:     metadata,
	}
}

func newTestEngine(registry *rules.Registry, configs []model.RuleConfig) *Engine {
	return NewEngine(policy.NewStaticRepository(configs), registry, nil, slog.Default())
}

func simpleSpec(key string) rules.FindingSpec {
	return rules.FindingSpec{
		FindingKey:  key,
		Title:       "title for " + key,
		Description: "description for " + key,
		Evidence:    model.Evidence{Summary: "evidence"},
		Remediation: model.Remediation{Summary: "remediation"},
	}
}

func TestEvaluateEncryptionScenario(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "S3_ENCRYPTION_DISABLED", Enabled: true},
	})
	snapshot := testSnapshot(map[string]interface{}{
		"encryption": map[string]interface{}{"enabled": false},
	})

	result, err := eng.Evaluate(snapshot)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	finding := result.Findings[0]
	assert.Equal(t, "S3_ENCRYPTION_DISABLED", finding.RuleID)
	assert.Equal(t, model.SeverityHigh, finding.Severity)
	assert.Equal(t, model.StatusOpen, finding.Status)
	assert.Equal(t, snapshot.AccountID, finding.AccountID)
	assert.Equal(t, snapshot.CapturedAt, finding.DetectedAt)
	assert.Equal(t, 1, result.Stats.RulesEvaluated)
	assert.Equal(t, 0, result.Stats.RulesFailed)
	assert.Empty(t, result.Errors)
}

func TestEvaluateSeverityPrecedence(t *testing.T) {
	// Same violation evaluated under three configs resolves to three
	// different severities: override > spec severity > rule default.
	registry := rules.NewRegistry()
	registry.Register(&fakeRule{id: "rule-default", severity: model.SeverityLow, supports: true,
		specs: []rules.FindingSpec{simpleSpec("k")}})
	registry.Register(&fakeRule{id: "rule-spec", severity: model.SeverityLow, supports: true,
		specs: []rules.FindingSpec{func() rules.FindingSpec {
			s := simpleSpec("k")
			s.Severity = model.SeverityMedium
			return s
		}()}})
	registry.Register(&fakeRule{id: "rule-override", severity: model.SeverityLow, supports: true,
		specs: []rules.FindingSpec{func() rules.FindingSpec {
			s := simpleSpec("k")
			s.Severity = model.SeverityMedium
			return s
		}()}})

	eng := newTestEngine(registry, []model.RuleConfig{
		{RuleID: "rule-default", Enabled: true},
		{RuleID: "rule-spec", Enabled: true},
		{RuleID: "rule-override", Enabled: true, SeverityOverride: model.SeverityCritical},
	})

	result, err := eng.Evaluate(testSnapshot(nil))
	require.NoError(t, err)
	require.Len(t, result.Findings, 3)

	bySeverity := map[string]model.Severity{}
	for _, f := range result.Findings {
		bySeverity[f.RuleID] = f.Severity
	}
	assert.Equal(t, model.SeverityLow, bySeverity["rule-default"])
	assert.Equal(t, model.SeverityMedium, bySeverity["rule-spec"])
	assert.Equal(t, model.SeverityCritical, bySeverity["rule-override"])
}

func TestEvaluateSeverityOverrideOnBuiltin(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "S3_ENCRYPTION_DISABLED", Enabled: true, SeverityOverride: model.SeverityCritical},
	})
	result, err := eng.Evaluate(testSnapshot(map[string]interface{}{
		"encryption": map[string]interface{}{"enabled": false},
	}))
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, model.SeverityCritical, result.Findings[0].Severity)
}

func TestEvaluateSuppression(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "S3_ENCRYPTION_DISABLED", Enabled: true, Suppressed: true},
	})
	result, err := eng.Evaluate(testSnapshot(map[string]interface{}{
		"encryption": map[string]interface{}{"enabled": false},
	}))
	require.NoError(t, err)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, model.StatusSuppressed, result.Findings[0].Status)
}

func TestEvaluateValidationShortCircuit(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ResourceSnapshot)
	}{
		{"missing account_id", func(s *model.ResourceSnapshot) { s.AccountID = "" }},
		{"missing resource_id", func(s *model.ResourceSnapshot) { s.ResourceID = "" }},
		{"missing resource_type", func(s *model.ResourceSnapshot) { s.ResourceType = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
				{RuleID: "S3_ENCRYPTION_DISABLED", Enabled: true},
			})
			snapshot := testSnapshot(map[string]interface{}{
				"encryption": map[string]interface{}{"enabled": false},
			})
			tt.mutate(snapshot)

			result, err := eng.Evaluate(snapshot)
			require.NoError(t, err)

			assert.Empty(t, result.Findings)
			assert.Equal(t, 0, result.Stats.RulesEvaluated)
			assert.Equal(t, 0, result.Stats.RulesFailed)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, model.ValidationRuleID, result.Errors[0].RuleID)
			assert.Equal(t, model.ErrCodeInvalidSchema, result.Errors[0].ErrorCode)
			assert.Equal(t, "snap-1", result.Errors[0].SnapshotID)
		})
	}
}

func TestEvaluateValidationNamesEveryMissingPath(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), nil)
	snapshot := testSnapshot(nil)
	snapshot.AccountID = ""
	snapshot.ResourceID = ""

	result, err := eng.Evaluate(snapshot)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "account_id")
	assert.Contains(t, result.Errors[0].Message, "resource_id")
}

func TestEvaluateUnknownRule(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "NO_SUCH_RULE", Enabled: true},
		{RuleID: "S3_ENCRYPTION_DISABLED", Enabled: true},
	})
	result, err := eng.Evaluate(testSnapshot(map[string]interface{}{
		"encryption": map[string]interface{}{"enabled": false},
	}))
	require.NoError(t, err)

	// The lookup failure is recorded and the loop continues.
	assert.Len(t, result.Findings, 1)
	assert.Equal(t, 2, result.Stats.RulesEvaluated)
	assert.Equal(t, 1, result.Stats.RulesFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.ErrCodeUnknownRule, result.Errors[0].ErrorCode)
	assert.Equal(t, "NO_SUCH_RULE", result.Errors[0].RuleID)
}

func TestEvaluateMissingDataSkipIsNotFailure(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "S3_PUBLIC_ACL", Enabled: true},
	})
	// Metadata lacks acl_grants entirely.
	result, err := eng.Evaluate(testSnapshot(map[string]interface{}{}))
	require.NoError(t, err)

	assert.Empty(t, result.Findings)
	assert.Equal(t, 1, result.Stats.RulesEvaluated)
	assert.Equal(t, 0, result.Stats.RulesFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.ErrCodeSkippedMissingData, result.Errors[0].ErrorCode)
}

func TestEvaluateInvalidSchemaCountsAsFailure(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "S3_PUBLIC_ACL", Enabled: true},
	})
	result, err := eng.Evaluate(testSnapshot(map[string]interface{}{
		"acl_grants": "not-a-list",
	}))
	require.NoError(t, err)

	assert.Empty(t, result.Findings)
	assert.Equal(t, 1, result.Stats.RulesFailed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.ErrCodeInvalidSchema, result.Errors[0].ErrorCode)
}

func TestEvaluateIsolation(t *testing.T) {
	tests := []struct {
		name     string
		badRule  *fakeRule
		contains string
	}{
		{
			name:     "erroring rule",
			badRule:  &fakeRule{id: "bad", severity: model.SeverityLow, supports: true, err: errors.New("unexpected boom")},
			contains: "unexpected boom",
		},
		{
			name:     "panicking rule",
			badRule:  &fakeRule{id: "bad", severity: model.SeverityLow, supports: true, panics: true},
			contains: "panic: rule blew up",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := rules.NewRegistry()
			registry.Register(tt.badRule)
			registry.Register(&fakeRule{id: "good", severity: model.SeverityLow, supports: true,
				specs: []rules.FindingSpec{simpleSpec("ok")}})

			eng := newTestEngine(registry, []model.RuleConfig{
				{RuleID: "bad", Enabled: true},
				{RuleID: "good", Enabled: true},
			})

			result, err := eng.Evaluate(testSnapshot(nil))
			require.NoError(t, err)

			// The failing rule never affects the healthy one.
			require.Len(t, result.Findings, 1)
			assert.Equal(t, "good", result.Findings[0].RuleID)
			assert.Equal(t, 2, result.Stats.RulesEvaluated)
			assert.Equal(t, 1, result.Stats.RulesFailed)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, model.ErrCodeRuleException, result.Errors[0].ErrorCode)
			assert.Contains(t, result.Errors[0].Message, tt.contains)
		})
	}
}

func TestEvaluateUnsupportedResourceTypeSkipsSilently(t *testing.T) {
	registry := rules.NewRegistry()
	registry.Register(&fakeRule{id: "unsupported", severity: model.SeverityLow, supports: false,
		specs: []rules.FindingSpec{simpleSpec("never")}})

	eng := newTestEngine(registry, []model.RuleConfig{
		{RuleID: "unsupported", Enabled: true},
	})

	result, err := eng.Evaluate(testSnapshot(nil))
	require.NoError(t, err)

	assert.Empty(t, result.Findings)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 1, result.Stats.RulesEvaluated)
	assert.Equal(t, 0, result.Stats.RulesFailed)
}

func TestEvaluateDeterminism(t *testing.T) {
	metadata := map[string]interface{}{
		"encryption": map[string]interface{}{"enabled": false},
		"acl_grants": []interface{}{
			map[string]interface{}{
				"grantee_uri": "http://acs.amazonaws.com/groups/global/AllUsers",
				"permission":  "READ",
			},
		},
		"bucket_policy": map[string]interface{}{
			"statements": []interface{}{
				map[string]interface{}{
					"effect":    "Allow",
					"principal": "*",
					"action":    []interface{}{"s3:GetObject"},
				},
			},
		},
		"public_access_block": map[string]interface{}{"restrict_public_buckets": false},
	}
	configs := []model.RuleConfig{
		{RuleID: "S3_ENCRYPTION_DISABLED", Enabled: true},
		{RuleID: "S3_PUBLIC_ACL", Enabled: true},
		{RuleID: "S3_PUBLIC_POLICY", Enabled: true},
		{RuleID: "S3_TLS_NOT_ENFORCED", Enabled: true},
	}

	eng := newTestEngine(rules.NewDefaultRegistry(), configs)

	first, err := eng.Evaluate(testSnapshot(metadata))
	require.NoError(t, err)
	second, err := eng.Evaluate(testSnapshot(metadata))
	require.NoError(t, err)

	require.Len(t, first.Findings, 4)
	require.Len(t, second.Findings, len(first.Findings))
	for i := range first.Findings {
		assert.Equal(t, first.Findings[i].FindingID, second.Findings[i].FindingID)
		assert.Equal(t, first.Findings[i].Title, second.Findings[i].Title)
		assert.Equal(t, first.Findings[i].Severity, second.Findings[i].Severity)
		assert.Equal(t, first.Findings[i].Status, second.Findings[i].Status)
		assert.Equal(t, first.Findings[i].Evidence, second.Findings[i].Evidence)
		assert.Equal(t, first.Findings[i].DetectedAt, second.Findings[i].DetectedAt)
	}
}

func TestEvaluatePublicPolicyEscalation(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "S3_PUBLIC_POLICY", Enabled: true},
	})
	result, err := eng.Evaluate(testSnapshot(map[string]interface{}{
		"bucket_policy": map[string]interface{}{
			"statements": []interface{}{
				map[string]interface{}{
					"effect":    "Allow",
					"principal": "*",
					"action":    []interface{}{"s3:GetObject"},
				},
			},
		},
		"public_access_block": map[string]interface{}{"restrict_public_buckets": false},
	}))
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	finding := result.Findings[0]
	assert.Equal(t, "S3_PUBLIC_POLICY", finding.RuleID)
	assert.Equal(t, model.SeverityCritical, finding.Severity)
	assert.Equal(t, model.StatusOpen, finding.Status)
}

func TestEvaluateDisabledRulesAreNotIterated(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "S3_ENCRYPTION_DISABLED", Enabled: false},
		{RuleID: "S3_TLS_NOT_ENFORCED", Enabled: true},
	})
	result, err := eng.Evaluate(testSnapshot(nil))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Stats.RulesEvaluated)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "S3_TLS_NOT_ENFORCED", result.Findings[0].RuleID)
}

func TestEvaluateWithNilLogger(t *testing.T) {
	eng := NewEngine(
		policy.NewStaticRepository([]model.RuleConfig{
			{RuleID: "S3_TLS_NOT_ENFORCED", Enabled: true},
		}),
		rules.NewDefaultRegistry(),
		nil,
		nil,
	)

	result, err := eng.Evaluate(testSnapshot(nil))
	require.NoError(t, err)
	assert.Len(t, result.Findings, 1)
}

func TestEvaluateUsesNowWhenCaptureTimeMissing(t *testing.T) {
	eng := newTestEngine(rules.NewDefaultRegistry(), []model.RuleConfig{
		{RuleID: "S3_TLS_NOT_ENFORCED", Enabled: true},
	})
	snapshot := testSnapshot(nil)
	snapshot.CapturedAt = time.Time{}

	before := time.Now().UTC()
	result, err := eng.Evaluate(snapshot)
	require.NoError(t, err)
	after := time.Now().UTC()

	require.Len(t, result.Findings, 1)
	detected := result.Findings[0].DetectedAt
	assert.False(t, detected.Before(before))
	assert.False(t, detected.After(after))
}
