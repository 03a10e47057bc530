package job

import (
	"context"
	"fmt"
	"strings"
	"time"

	"riskwatch/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const auditBatchSize = 100

type PendingIncidents interface {
	ListPendingExecution(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Incident, error)
}

type Relay interface {
	Relay(ctx context.Context, message string) error
}

// DispatchAudit periodically reports fired incidents whose actions never
// completed. It only reports; actions are not replayed.
type DispatchAudit struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	store    PendingIncidents
	relay    Relay
	interval time.Duration
	grace    time.Duration

	// reported holds incidents already announced, so each is reported once
	// while it stays pending.
	reported map[int64]bool
}

func NewDispatchAudit(tracer trace.Tracer, logger *zap.Logger, store PendingIncidents, relay Relay, pollSecs, graceSecs int) *DispatchAudit {
	return &DispatchAudit{
		tracer:   tracer,
		logger:   logger,
		store:    store,
		relay:    relay,
		interval: time.Duration(pollSecs) * time.Second,
		grace:    time.Duration(graceSecs) * time.Second,
		reported: make(map[int64]bool),
	}
}

// Start blocks until ctx is cancelled.
func (a *DispatchAudit) Start(ctx context.Context) {
	a.logger.Info("dispatch audit starting", zap.Duration("interval", a.interval), zap.Duration("grace", a.grace))

	if err := a.runOnce(ctx); err != nil {
		a.logger.Error("dispatch audit initial run failed", zap.Error(err))
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("dispatch audit stopped")
			return
		case <-ticker.C:
			if err := a.runOnce(ctx); err != nil {
				a.logger.Error("dispatch audit run failed", zap.Error(err))
			}
		}
	}
}

func (a *DispatchAudit) runOnce(ctx context.Context) error {
	ctx, span := a.tracer.Start(ctx, "dispatch-audit.run")
	defer span.End()

	pending, err := a.store.ListPendingExecution(ctx, a.grace, auditBatchSize)
	if err != nil {
		return fmt.Errorf("list pending incidents: %w", err)
	}
	span.SetAttributes(attribute.Int("pending", len(pending)))

	still := make(map[int64]bool, len(pending))
	var fresh []domain.Incident
	for _, inc := range pending {
		still[inc.ID] = true
		if a.reported[inc.ID] {
			continue
		}
		fresh = append(fresh, inc)
		a.logger.Warn("incident actions not executed",
			zap.Int64("incident_id", inc.ID),
			zap.Int64("account_id", inc.AccountID),
			zap.Int64("rule_id", inc.RiskRuleID),
			zap.Time("created_at", inc.CreatedAt),
		)
	}
	a.reported = still

	if len(fresh) == 0 || a.relay == nil {
		return nil
	}
	if err := a.relay.Relay(ctx, auditMessage(fresh)); err != nil {
		a.logger.Warn("dispatch audit relay failed", zap.Error(err))
	}
	return nil
}

func auditMessage(incidents []domain.Incident) string {
	ids := make([]string, len(incidents))
	for i, inc := range incidents {
		ids[i] = fmt.Sprintf("#%d", inc.ID)
	}
	return fmt.Sprintf("%d incidents fired without completing their actions: %s",
		len(incidents), strings.Join(ids, ", "))
}
