package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"riskwatch/internal/domain"
	"riskwatch/internal/risk"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IncidentRepository stores incidents together with the bookkeeping that must
// commit with them: violation counters and evaluation marks.
type IncidentRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewIncidentRepository(pool PgxPool, tracer trace.Tracer) *IncidentRepository {
	return &IncidentRepository{pool: pool, tracer: tracer}
}

func (r *IncidentRepository) RecordViolation(ctx context.Context, rec risk.ViolationRecord) error {
	ctx, span := r.tracer.Start(ctx, "incident-repo.record-violation")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("account_id", rec.Incident.AccountID),
		attribute.Int64("rule_id", rec.Incident.RiskRuleID),
		attribute.Int64("count", rec.Counter),
	)

	inc := rec.Incident
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO incidents (account_id, risk_rule_id, trade_id, trigger, count, triggered_value, fired)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at, updated_at`,
			inc.AccountID, inc.RiskRuleID, inc.TradeID, inc.Trigger, inc.Count, inc.TriggeredValue, inc.Fired,
		).Scan(&inc.ID, &inc.CreatedAt, &inc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert incident: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO violation_counters (account_id, risk_rule_id, count)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (account_id, risk_rule_id) DO UPDATE SET count = EXCLUDED.count, updated_at = NOW()`,
			inc.AccountID, inc.RiskRuleID, rec.Counter,
		); err != nil {
			return fmt.Errorf("upsert counter: %w", err)
		}

		return markEvaluated(ctx, tx, rec.Key)
	})
}

func (r *IncidentRepository) MarkExecuted(ctx context.Context, incidentID int64) error {
	ctx, span := r.tracer.Start(ctx, "incident-repo.mark-executed")
	defer span.End()

	tag, err := r.pool.Exec(ctx,
		`UPDATE incidents SET is_executed = TRUE, updated_at = NOW() WHERE id = $1`, incidentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListIncidents returns incidents newest first, joined with the rule and
// account for display. Rule fields are empty for deleted rules.
func (r *IncidentRepository) ListIncidents(ctx context.Context, f domain.IncidentFilter) ([]domain.Incident, error) {
	ctx, span := r.tracer.Start(ctx, "incident-repo.list-incidents")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT i.id, i.account_id, i.risk_rule_id, i.trade_id, i.trigger, i.count, i.triggered_value,
		        i.fired, i.is_executed, i.created_at, i.updated_at,
		        COALESCE(rr.name, ''), COALESCE(rr.severity, ''), a.login
		 FROM incidents i
		 JOIN accounts a ON a.id = i.account_id
		 LEFT JOIN risk_rules rr ON rr.id = i.risk_rule_id
		 WHERE ($1::BIGINT IS NULL OR a.owner_id = $1)
		   AND ($2::BIGINT IS NULL OR i.account_id = $2)
		 ORDER BY i.created_at DESC, i.id DESC
		 LIMIT $3`,
		f.OwnerID, f.AccountID, clampLimit(f.Limit),
	)
	if err != nil {
		return nil, err
	}
	return collectIncidents(rows)
}

// ListPendingExecution returns fired incidents whose actions did not all
// succeed and that are older than the given age.
func (r *IncidentRepository) ListPendingExecution(ctx context.Context, olderThan time.Duration, limit int) ([]domain.Incident, error) {
	ctx, span := r.tracer.Start(ctx, "incident-repo.list-pending-execution")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT i.id, i.account_id, i.risk_rule_id, i.trade_id, i.trigger, i.count, i.triggered_value,
		        i.fired, i.is_executed, i.created_at, i.updated_at,
		        COALESCE(rr.name, ''), COALESCE(rr.severity, ''), a.login
		 FROM incidents i
		 JOIN accounts a ON a.id = i.account_id
		 LEFT JOIN risk_rules rr ON rr.id = i.risk_rule_id
		 WHERE i.fired AND NOT i.is_executed AND i.created_at < $1
		 ORDER BY i.created_at
		 LIMIT $2`,
		time.Now().Add(-olderThan), clampLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	return collectIncidents(rows)
}

func collectIncidents(rows pgx.Rows) ([]domain.Incident, error) {
	defer rows.Close()
	var incidents []domain.Incident
	for rows.Next() {
		var inc domain.Incident
		if err := rows.Scan(&inc.ID, &inc.AccountID, &inc.RiskRuleID, &inc.TradeID, &inc.Trigger, &inc.Count,
			&inc.TriggeredValue, &inc.Fired, &inc.IsExecuted, &inc.CreatedAt, &inc.UpdatedAt,
			&inc.RuleName, &inc.RuleSeverity, &inc.AccountLogin); err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

func (r *IncidentRepository) LoadCounter(ctx context.Context, accountID, ruleID int64) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "incident-repo.load-counter")
	defer span.End()

	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT count FROM violation_counters WHERE account_id = $1 AND risk_rule_id = $2`,
		accountID, ruleID,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return count, err
}

func (r *IncidentRepository) DeleteRuleCounters(ctx context.Context, ruleID int64) error {
	ctx, span := r.tracer.Start(ctx, "incident-repo.delete-rule-counters")
	defer span.End()

	_, err := r.pool.Exec(ctx, `DELETE FROM violation_counters WHERE risk_rule_id = $1`, ruleID)
	return err
}

func (r *IncidentRepository) HasEvaluation(ctx context.Context, key risk.EvaluationKey) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "incident-repo.has-evaluation")
	defer span.End()

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM rule_evaluations
		     WHERE trade_id = $1 AND risk_rule_id = $2 AND rule_version = $3 AND trigger = $4)`,
		key.TradeID, key.RuleID, key.RuleVersion, key.Trigger,
	).Scan(&exists)
	return exists, err
}

func (r *IncidentRepository) MarkEvaluated(ctx context.Context, key risk.EvaluationKey) error {
	ctx, span := r.tracer.Start(ctx, "incident-repo.mark-evaluated")
	defer span.End()

	return markEvaluated(ctx, r.pool, key)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func markEvaluated(ctx context.Context, db execer, key risk.EvaluationKey) error {
	_, err := db.Exec(ctx,
		`INSERT INTO rule_evaluations (trade_id, risk_rule_id, rule_version, trigger)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT DO NOTHING`,
		key.TradeID, key.RuleID, key.RuleVersion, key.Trigger,
	)
	if err != nil {
		return fmt.Errorf("mark evaluated: %w", err)
	}
	return nil
}
