package repository

import (
	"context"

	"riskwatch/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const ruleColumns = `id, created_by_user_id, rule_type_id, name, description, severity, is_active,
	parameter_type, parameter_data, actions, version, created_at, updated_at`

type RuleRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRuleRepository(pool PgxPool, tracer trace.Tracer) *RuleRepository {
	return &RuleRepository{pool: pool, tracer: tracer}
}

func scanRule(row pgx.Row) (*domain.RiskRule, error) {
	r := &domain.RiskRule{}
	var params []byte
	var actions []string
	err := row.Scan(&r.ID, &r.OwnerID, &r.RuleTypeID, &r.Name, &r.Description, &r.Severity, &r.IsActive,
		&r.ParameterType, &params, &actions, &r.Version, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	r.ParameterData = params
	r.Actions = make([]domain.Action, len(actions))
	for i, a := range actions {
		r.Actions[i] = domain.Action(a)
	}
	return r, nil
}

func actionStrings(actions []domain.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = string(a)
	}
	return out
}

func (r *RuleRepository) queryRules(ctx context.Context, sql string, args ...any) ([]domain.RiskRule, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []domain.RiskRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

func (r *RuleRepository) GetRule(ctx context.Context, id int64) (*domain.RiskRule, error) {
	ctx, span := r.tracer.Start(ctx, "rule-repo.get-rule")
	defer span.End()

	return scanRule(r.pool.QueryRow(ctx, `SELECT `+ruleColumns+` FROM risk_rules WHERE id = $1`, id))
}

func (r *RuleRepository) ListRules(ctx context.Context, ownerID *int64) ([]domain.RiskRule, error) {
	ctx, span := r.tracer.Start(ctx, "rule-repo.list-rules")
	defer span.End()

	return r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM risk_rules
		 WHERE ($1::BIGINT IS NULL OR created_by_user_id = $1)
		 ORDER BY id`,
		ownerID,
	)
}

// ActiveRulesForOwner returns the owner's active rules in id order. Rows are
// returned even when parameter_data does not decode.
func (r *RuleRepository) ActiveRulesForOwner(ctx context.Context, ownerID int64) ([]domain.RiskRule, error) {
	ctx, span := r.tracer.Start(ctx, "rule-repo.active-rules-for-owner")
	defer span.End()
	span.SetAttributes(attribute.Int64("owner_id", ownerID))

	return r.queryRules(ctx,
		`SELECT `+ruleColumns+` FROM risk_rules
		 WHERE created_by_user_id = $1 AND is_active
		 ORDER BY id`,
		ownerID,
	)
}

func (r *RuleRepository) CreateRule(ctx context.Context, rule *domain.RiskRule) error {
	ctx, span := r.tracer.Start(ctx, "rule-repo.create-rule")
	defer span.End()

	return r.pool.QueryRow(ctx,
		`INSERT INTO risk_rules (created_by_user_id, rule_type_id, name, description, severity, is_active,
		                         parameter_type, parameter_data, actions)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, version, created_at, updated_at`,
		rule.OwnerID, rule.RuleTypeID, rule.Name, rule.Description, rule.Severity, rule.IsActive,
		rule.ParameterType, []byte(rule.ParameterData), actionStrings(rule.Actions),
	).Scan(&rule.ID, &rule.Version, &rule.CreatedAt, &rule.UpdatedAt)
}

// UpdateRule writes every mutable field and bumps the version when the
// definition changed, so earlier evaluation marks stop matching.
func (r *RuleRepository) UpdateRule(ctx context.Context, rule *domain.RiskRule, definitionChanged bool) error {
	ctx, span := r.tracer.Start(ctx, "rule-repo.update-rule")
	defer span.End()

	err := r.pool.QueryRow(ctx,
		`UPDATE risk_rules
		 SET rule_type_id = $2, name = $3, description = $4, severity = $5, is_active = $6,
		     parameter_type = $7, parameter_data = $8, actions = $9,
		     version = CASE WHEN $10 THEN version + 1 ELSE version END,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING version, updated_at`,
		rule.ID, rule.RuleTypeID, rule.Name, rule.Description, rule.Severity, rule.IsActive,
		rule.ParameterType, []byte(rule.ParameterData), actionStrings(rule.Actions), definitionChanged,
	).Scan(&rule.Version, &rule.UpdatedAt)
	return notFound(err)
}

func (r *RuleRepository) DeleteRule(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "rule-repo.delete-rule")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM risk_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
