package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edelagziel/SkyWatch/internal/model"
	"github.com/edelagziel/SkyWatch/internal/policy"
	"github.com/edelagziel/SkyWatch/internal/rules"
)

// requiredSnapshotPaths are the top-level fields a snapshot must carry
// before any rule runs.
var requiredSnapshotPaths = []string{"account_id", "resource_id", "resource_type"}

// Metrics is the observation surface the engine reports into. A nil
// implementation disables metrics.
type Metrics interface {
	ObserveEvaluation(duration time.Duration)
	IncFindings(severity model.Severity)
	IncRuleErrors(code model.ErrorCode)
}

// Engine evaluates a resource snapshot against enabled policy rules.
//
// Evaluation is deterministic: the same snapshot, rule configs, and
// registry contents always produce the same finding ids, titles,
// severities, and evidence; only duration_ms varies between calls.
// It is fail-soft: every failure inside a single rule invocation is
// converted to an EvaluationError on the result, never a returned error,
// so one misbehaving rule cannot abort the call. The only errors Evaluate
// itself can surface come from the repository, which is the caller's
// collaborator, not part of the fail-soft contract.
//
// A single call is synchronous and single-threaded. Concurrent calls are
// safe as long as the registry is not mutated after startup.
type Engine struct {
	repository policy.Repository
	registry   *rules.Registry
	factory    *FindingFactory
	metrics    Metrics
	logger     *slog.Logger
}

// NewEngine creates an engine. metrics may be nil; a nil logger falls back
// to slog.Default().
func NewEngine(repository policy.Repository, registry *rules.Registry, metrics Metrics, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repository: repository,
		registry:   registry,
		factory:    NewFindingFactory(),
		metrics:    metrics,
		logger:     logger,
	}
}

// Evaluate runs one snapshot through the enabled rules and packages
// findings, stats, and non-fatal errors into an EvaluationResult.
func (e *Engine) Evaluate(snapshot *model.ResourceSnapshot) (*model.EvaluationResult, error) {
	started := time.Now()

	findings := []model.Finding{}
	evalErrors := []model.EvaluationError{}
	rulesEvaluated := 0
	rulesFailed := 0

	// Validation short-circuit: the only early-exit path.
	if guard := RequirePaths(snapshotView(snapshot), requiredSnapshotPaths); len(guard.MissingPaths) > 0 {
		e.logger.Warn("Snapshot failed validation",
			"snapshot_id", snapshot.SnapshotID,
			"missing_paths", guard.MissingPaths)
		e.recordRuleError(model.ErrCodeInvalidSchema)
		result := &model.EvaluationResult{
			Findings: findings,
			Stats: model.EvaluationStats{
				RulesEvaluated: 0,
				RulesFailed:    0,
				DurationMs:     time.Since(started).Milliseconds(),
			},
			Errors: []model.EvaluationError{
				{
					RuleID:     model.ValidationRuleID,
					ErrorCode:  model.ErrCodeInvalidSchema,
					Message:    "missing required snapshot fields: " + strings.Join(guard.MissingPaths, ", "),
					SnapshotID: snapshot.SnapshotID,
					OccurredAt: time.Now().UTC(),
				},
			},
		}
		e.observeEvaluation(time.Since(started))
		return result, nil
	}

	evaluatedAt := snapshot.CapturedAt
	if evaluatedAt.IsZero() {
		evaluatedAt = time.Now().UTC()
	}
	ctx := &EvaluationContext{
		CorrelationID: snapshot.SnapshotID,
		EvaluatedAt:   evaluatedAt,
		AccountID:     snapshot.AccountID,
		Provider:      snapshot.Provider,
		ResourceType:  snapshot.ResourceType,
		ResourceID:    snapshot.ResourceID,
	}

	configs, err := e.repository.EnabledRules(snapshot.ResourceType, snapshot.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve rule configs: %w", err)
	}

	for _, cfg := range configs {
		rulesEvaluated++

		rule, err := e.registry.Get(cfg.RuleID)
		if err != nil {
			rulesFailed++
			evalErrors = append(evalErrors, e.newError(snapshot, cfg.RuleID, model.ErrCodeUnknownRule, err.Error()))
			continue
		}

		if !rule.Supports(snapshot.ResourceType) {
			continue
		}

		specs, err := invokeRule(rule, snapshot, cfg.Params)
		if err != nil {
			var skipErr *rules.SkippedMissingDataError
			var schemaErr *rules.InvalidSchemaError
			switch {
			case errors.As(err, &skipErr):
				evalErrors = append(evalErrors, e.newError(snapshot, cfg.RuleID, model.ErrCodeSkippedMissingData, err.Error()))
			case errors.As(err, &schemaErr):
				rulesFailed++
				evalErrors = append(evalErrors, e.newError(snapshot, cfg.RuleID, model.ErrCodeInvalidSchema, err.Error()))
			default:
				rulesFailed++
				evalErrors = append(evalErrors, e.newError(snapshot, cfg.RuleID, model.ErrCodeRuleException, fmt.Sprintf("%T: %v", err, err)))
			}
			continue
		}

		status := model.StatusOpen
		if cfg.Suppressed {
			status = model.StatusSuppressed
		}

		for _, spec := range specs {
			severity := resolveSeverity(rule, cfg, spec.Severity)
			finding := e.factory.Create(snapshot, ctx, rule.ID(), rule.Version(), severity, status, spec)
			findings = append(findings, finding)
			if e.metrics != nil {
				e.metrics.IncFindings(severity)
			}
		}
	}

	duration := time.Since(started)
	result := &model.EvaluationResult{
		Findings: findings,
		Stats: model.EvaluationStats{
			RulesEvaluated: rulesEvaluated,
			RulesFailed:    rulesFailed,
			DurationMs:     duration.Milliseconds(),
		},
		Errors: evalErrors,
	}

	e.observeEvaluation(duration)
	e.logger.Info("Evaluation completed",
		"snapshot_id", snapshot.SnapshotID,
		"account_id", snapshot.AccountID,
		"resource_id", snapshot.ResourceID,
		"rules_evaluated", rulesEvaluated,
		"rules_failed", rulesFailed,
		"findings", len(findings),
		"errors", len(evalErrors),
		"duration_ms", duration.Milliseconds())

	return result, nil
}

// invokeRule is the isolation boundary around a single rule. A panicking
// rule surfaces as an error and is classified as RULE_EXCEPTION.
func invokeRule(rule rules.PolicyRule, snapshot *model.ResourceSnapshot, params map[string]interface{}) (specs []rules.FindingSpec, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			specs = nil
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return rule.Evaluate(snapshot, params)
}

// resolveSeverity applies the strict precedence: config override, then the
// severity the spec carries, then the rule's default. An override applies
// uniformly to every spec the rule emitted in this invocation.
func resolveSeverity(rule rules.PolicyRule, cfg model.RuleConfig, specSeverity model.Severity) model.Severity {
	if cfg.SeverityOverride != "" {
		return cfg.SeverityOverride
	}
	if specSeverity != "" {
		return specSeverity
	}
	return rule.DefaultSeverity()
}

// snapshotView exposes the snapshot's required top-level fields as a
// shallow document for the path guard. Zero values are absent.
func snapshotView(snapshot *model.ResourceSnapshot) map[string]interface{} {
	view := map[string]interface{}{}
	if snapshot.AccountID != "" {
		view["account_id"] = snapshot.AccountID
	}
	if snapshot.ResourceID != "" {
		view["resource_id"] = snapshot.ResourceID
	}
	if snapshot.ResourceType != "" {
		view["resource_type"] = string(snapshot.ResourceType)
	}
	return view
}

func (e *Engine) newError(snapshot *model.ResourceSnapshot, ruleID string, code model.ErrorCode, message string) model.EvaluationError {
	e.recordRuleError(code)
	return model.EvaluationError{
		RuleID:     ruleID,
		ErrorCode:  code,
		Message:    message,
		SnapshotID: snapshot.SnapshotID,
		OccurredAt: time.Now().UTC(),
	}
}

func (e *Engine) recordRuleError(code model.ErrorCode) {
	if e.metrics != nil {
		e.metrics.IncRuleErrors(code)
	}
}

func (e *Engine) observeEvaluation(duration time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveEvaluation(duration)
	}
}
