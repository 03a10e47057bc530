package risk

import (
	"context"
	"fmt"

	"riskwatch/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IncidentRecorder is the only writer of incident rows.
type IncidentRecorder struct {
	tracer trace.Tracer
	store  IncidentStore
}

func NewIncidentRecorder(tracer trace.Tracer, store IncidentStore) *IncidentRecorder {
	return &IncidentRecorder{tracer: tracer, store: store}
}

type RecordInput struct {
	Key           EvaluationKey
	Account       domain.Account
	Rule          domain.RiskRule
	Trade         *domain.Trade
	Escalation    Escalation
	MeasuredValue string
}

// Record persists the incident for a violated verdict together with the
// counter value and evaluation mark, whether or not actions will fire.
func (r *IncidentRecorder) Record(ctx context.Context, in RecordInput) (*domain.Incident, error) {
	ctx, span := r.tracer.Start(ctx, "incident-recorder.record")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account_id", in.Account.ID),
		attribute.Int64("rule_id", in.Rule.ID),
		attribute.Int64("count", in.Escalation.Count),
	)

	inc := &domain.Incident{
		AccountID:      in.Account.ID,
		RiskRuleID:     in.Rule.ID,
		Trigger:        in.Key.Trigger,
		Count:          in.Escalation.Count,
		TriggeredValue: in.MeasuredValue,
		Fired:          in.Escalation.FireNow,
	}
	if in.Trade != nil {
		id := in.Trade.ID
		inc.TradeID = &id
	}

	if err := r.store.RecordViolation(ctx, ViolationRecord{Key: in.Key, Incident: inc, Counter: in.Escalation.Count}); err != nil {
		return nil, fmt.Errorf("record incident rule=%d account=%d: %w", in.Rule.ID, in.Account.ID, err)
	}
	return inc, nil
}

// MarkExecuted flags a fired incident whose actions all succeeded.
func (r *IncidentRecorder) MarkExecuted(ctx context.Context, inc *domain.Incident) error {
	ctx, span := r.tracer.Start(ctx, "incident-recorder.mark-executed")
	defer span.End()

	if err := r.store.MarkExecuted(ctx, inc.ID); err != nil {
		return fmt.Errorf("mark incident %d executed: %w", inc.ID, err)
	}
	inc.IsExecuted = true
	return nil
}
