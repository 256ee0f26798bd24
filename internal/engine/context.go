package engine

import (
	"time"

	"github.com/edelagziel/SkyWatch/internal/model"
)

// EvaluationContext carries per-call identity and timing shared by every
// finding assembled during one evaluation. EvaluatedAt is the snapshot's
// capture time (or the call start when the snapshot carries none), never
// per-finding wall clock, so re-evaluating an unchanged snapshot later
// reproduces identical findings.
type EvaluationContext struct {
	CorrelationID string
	EvaluatedAt   time.Time
	AccountID     string
	Provider      model.Provider
	ResourceType  model.ResourceType
	ResourceID    string
}
