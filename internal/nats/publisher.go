package nats

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/edelagziel/SkyWatch/internal/model"
)

// Publisher emits evaluation results and individual findings to NATS for
// downstream storage and alerting.
type Publisher struct {
	nc             *nats.Conn
	resultSubject  string
	findingSubject string
	logger         *slog.Logger
}

// NewPublisher creates a publisher for the given subjects.
func NewPublisher(nc *nats.Conn, resultSubject, findingSubject string, logger *slog.Logger) *Publisher {
	return &Publisher{
		nc:             nc,
		resultSubject:  resultSubject,
		findingSubject: findingSubject,
		logger:         logger,
	}
}

// PublishResult publishes the complete evaluation result, then each
// finding individually with routing headers.
func (p *Publisher) PublishResult(snapshot *model.ResourceSnapshot, result *model.EvaluationResult) error {
	if p.nc == nil || !p.nc.IsConnected() {
		return fmt.Errorf("NATS connection not available")
	}

	data, err := model.MarshalResult(result, false)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation result: %w", err)
	}

	headers := nats.Header{}
	headers.Set("x-snapshot-id", snapshot.SnapshotID)
	headers.Set("x-account-id", snapshot.AccountID)
	headers.Set("x-resource-id", snapshot.ResourceID)

	msg := &nats.Msg{
		Subject: p.resultSubject,
		Data:    data,
		Header:  headers,
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish evaluation result: %w", err)
	}

	for i := range result.Findings {
		if err := p.publishFinding(&result.Findings[i]); err != nil {
			return err
		}
	}

	p.logger.Info("Published evaluation result",
		"snapshot_id", snapshot.SnapshotID,
		"findings", len(result.Findings),
		"errors", len(result.Errors),
		"subject", p.resultSubject)

	return nil
}

func (p *Publisher) publishFinding(finding *model.Finding) error {
	data, err := json.Marshal(finding)
	if err != nil {
		return fmt.Errorf("failed to marshal finding: %w", err)
	}

	msg := &nats.Msg{
		Subject: p.findingSubject,
		Data:    data,
		Header:  FindingHeaders(finding),
	}
	if err := p.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish finding %s: %w", finding.FindingID, err)
	}
	return nil
}

// FindingHeaders builds the routing headers downstream consumers filter on.
func FindingHeaders(finding *model.Finding) nats.Header {
	headers := nats.Header{}
	headers.Set("x-finding-id", finding.FindingID)
	headers.Set("x-rule-id", finding.RuleID)
	headers.Set("x-severity", string(finding.Severity))
	headers.Set("x-status", string(finding.Status))
	headers.Set("x-account-id", finding.AccountID)
	headers.Set("x-resource-id", finding.ResourceID)
	return headers
}
