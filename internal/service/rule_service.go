package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"riskwatch/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultRuleCacheTTL = 60 * time.Second

// CounterResetter drops the violation counters of a rule.
type CounterResetter interface {
	ResetRule(ctx context.Context, ruleID int64) error
}

// RuleInput is the create payload. Actions may be given by id (as the
// dashboard sends them) or by slug.
type RuleInput struct {
	OwnerID       int64                `json:"created_by_user_id"`
	RuleTypeID    int64                `json:"rule_type_id"`
	Name          string               `json:"name"`
	Description   string               `json:"description"`
	Severity      domain.Severity      `json:"severity"`
	IsActive      *bool                `json:"is_active"`
	ParameterType domain.ParameterType `json:"parameter_type"`
	ParameterData json.RawMessage      `json:"parameter_data"`
	ActionIDs     []int64              `json:"action_ids"`
	Actions       []domain.Action      `json:"actions"`
}

// RulePatch is a partial update; nil fields are left unchanged.
type RulePatch struct {
	RuleTypeID    *int64                `json:"rule_type_id"`
	Name          *string               `json:"name"`
	Description   *string               `json:"description"`
	Severity      *domain.Severity      `json:"severity"`
	IsActive      *bool                 `json:"is_active"`
	ParameterType *domain.ParameterType `json:"parameter_type"`
	ParameterData json.RawMessage       `json:"parameter_data"`
	ActionIDs     []int64               `json:"action_ids"`
	Actions       []domain.Action       `json:"actions"`
}

type RuleService struct {
	tracer            trace.Tracer
	logger            *zap.Logger
	store             RuleStore
	redis             RedisClient
	cacheTTL          time.Duration
	counters          CounterResetter
	resetOnDeactivate bool
}

func NewRuleService(
	tracer trace.Tracer,
	logger *zap.Logger,
	store RuleStore,
	redisClient RedisClient,
	cacheTTL time.Duration,
	counters CounterResetter,
	resetOnDeactivate bool,
) *RuleService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultRuleCacheTTL
	}
	return &RuleService{
		tracer:            tracer,
		logger:            logger,
		store:             store,
		redis:             redisClient,
		cacheTTL:          cacheTTL,
		counters:          counters,
		resetOnDeactivate: resetOnDeactivate,
	}
}

func (s *RuleService) RuleTypes() []domain.RuleType {
	return domain.RuleTypes
}

func (s *RuleService) Actions() []domain.ActionDef {
	return domain.Actions
}

func (s *RuleService) ListRules(ctx context.Context, caller domain.Caller) ([]domain.RiskRule, error) {
	ctx, span := s.tracer.Start(ctx, "rule-service.list-rules")
	defer span.End()

	rules, err := s.store.ListRules(ctx, scopeOwner(caller))
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []domain.RiskRule{}
	}
	return rules, nil
}

func (s *RuleService) GetRule(ctx context.Context, caller domain.Caller, id int64) (*domain.RiskRule, error) {
	ctx, span := s.tracer.Start(ctx, "rule-service.get-rule")
	defer span.End()

	rule, err := s.store.GetRule(ctx, id)
	if err != nil {
		return nil, translate(err, ErrRuleNotFound)
	}
	if !caller.CanSee(rule.OwnerID) {
		return nil, ErrRuleNotFound
	}
	return rule, nil
}

func (s *RuleService) CreateRule(ctx context.Context, caller domain.Caller, in RuleInput) (*domain.RiskRule, error) {
	ctx, span := s.tracer.Start(ctx, "rule-service.create-rule")
	defer span.End()

	owner := caller.UserID
	if in.OwnerID != 0 && in.OwnerID != caller.UserID {
		if !caller.IsAdmin {
			return nil, ErrForbidden
		}
		owner = in.OwnerID
	}

	rule := &domain.RiskRule{
		OwnerID:       owner,
		RuleTypeID:    in.RuleTypeID,
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		Severity:      in.Severity,
		IsActive:      in.IsActive == nil || *in.IsActive,
		ParameterType: in.ParameterType,
		ParameterData: in.ParameterData,
	}
	if err := s.normalize(rule, in.ActionIDs, in.Actions); err != nil {
		return nil, err
	}
	if err := s.store.CreateRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	s.invalidate(ctx, rule.OwnerID)

	s.logger.Info("risk rule created",
		zap.Int64("rule_id", rule.ID),
		zap.Int64("owner_id", rule.OwnerID),
		zap.String("parameter_type", string(rule.ParameterType)),
	)
	return rule, nil
}

func (s *RuleService) UpdateRule(ctx context.Context, caller domain.Caller, id int64, p RulePatch) (*domain.RiskRule, error) {
	ctx, span := s.tracer.Start(ctx, "rule-service.update-rule")
	defer span.End()
	span.SetAttributes(attribute.Int64("rule_id", id))

	rule, err := s.GetRule(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	wasActive := rule.IsActive
	before := *rule

	if p.RuleTypeID != nil {
		rule.RuleTypeID = *p.RuleTypeID
		if p.ParameterType == nil {
			rule.ParameterType = ""
		}
	}
	if p.Name != nil {
		rule.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		rule.Description = strings.TrimSpace(*p.Description)
	}
	if p.Severity != nil {
		rule.Severity = *p.Severity
	}
	if p.IsActive != nil {
		rule.IsActive = *p.IsActive
	}
	if p.ParameterType != nil {
		rule.ParameterType = *p.ParameterType
	}
	if len(p.ParameterData) > 0 {
		rule.ParameterData = p.ParameterData
	}

	actionIDs, actions := p.ActionIDs, p.Actions
	if actionIDs == nil && actions == nil {
		actions = rule.Actions
	}
	if err := s.normalize(rule, actionIDs, actions); err != nil {
		return nil, err
	}

	changed := definitionChanged(before, *rule)
	if err := s.store.UpdateRule(ctx, rule, changed); err != nil {
		return nil, translate(err, ErrRuleNotFound)
	}
	s.invalidate(ctx, rule.OwnerID)

	if wasActive && !rule.IsActive && s.resetOnDeactivate {
		s.resetCounters(ctx, rule.ID)
	}
	return rule, nil
}

func (s *RuleService) DeleteRule(ctx context.Context, caller domain.Caller, id int64) error {
	ctx, span := s.tracer.Start(ctx, "rule-service.delete-rule")
	defer span.End()

	rule, err := s.GetRule(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return translate(err, ErrRuleNotFound)
	}
	s.invalidate(ctx, rule.OwnerID)
	s.resetCounters(ctx, id)
	return nil
}

// ActiveRulesForOwner serves the engine from a short-lived cache in front of
// the rule store. Cache failures fall through to the store.
//
// Entries are keyed by the owner's cache generation, which every rule change
// bumps after its store write. A load that raced a change is written under
// the old generation and never read again.
func (s *RuleService) ActiveRulesForOwner(ctx context.Context, ownerID int64) ([]domain.RiskRule, error) {
	ctx, span := s.tracer.Start(ctx, "rule-service.active-rules-for-owner")
	defer span.End()

	var (
		gen      int64
		useCache = s.redis != nil
	)
	if useCache {
		var err error
		gen, err = s.ruleCacheGeneration(ctx, ownerID)
		if err != nil {
			s.logger.Warn("rule cache generation read failed", zap.Int64("owner_id", ownerID), zap.Error(err))
			useCache = false
		}
	}
	if useCache {
		cached, err := s.getRuleCache(ctx, ownerID, gen)
		if err != nil {
			s.logger.Warn("rule cache read failed", zap.Int64("owner_id", ownerID), zap.Error(err))
		}
		if cached != nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		}
	}

	rules, err := s.store.ActiveRulesForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []domain.RiskRule{}
	}
	if useCache {
		if err := s.setRuleCache(ctx, ownerID, gen, rules); err != nil {
			s.logger.Warn("rule cache write failed", zap.Int64("owner_id", ownerID), zap.Error(err))
		}
	}
	return rules, nil
}

// normalize validates rule in place, resolving the parameter type from the
// rule type and storing parameters in canonical form.
func (s *RuleService) normalize(rule *domain.RiskRule, actionIDs []int64, slugs []domain.Action) error {
	var v validator

	v.check(rule.Name != "", "name is required")
	v.check(rule.Severity.IsValid(), "severity must be Hard or Soft")

	rt, ok := domain.RuleTypeByID(rule.RuleTypeID)
	if !ok {
		v.add("unknown rule_type_id %d", rule.RuleTypeID)
	} else {
		if rule.ParameterType == "" {
			rule.ParameterType = rt.ParameterType
		}
		v.check(rule.ParameterType == rt.ParameterType,
			"parameter_type %q does not match rule type %s", rule.ParameterType, rt.Slug)
	}

	if ok && rule.ParameterType == rt.ParameterType {
		params, err := domain.DecodeParameters(rule.ParameterType, rule.ParameterData)
		if err != nil {
			v.add("parameter_data: %v", err)
		} else if canonical, err := domain.EncodeParameters(params); err == nil {
			rule.ParameterData = canonical
		}
	}

	actions := make([]domain.Action, 0, len(actionIDs)+len(slugs))
	seen := make(map[domain.Action]bool)
	for _, id := range actionIDs {
		a, ok := domain.ActionByID(id)
		if !ok {
			v.add("unknown action id %d", id)
			continue
		}
		if !seen[a] {
			seen[a] = true
			actions = append(actions, a)
		}
	}
	for _, a := range slugs {
		if _, ok := domain.ActionID(a); !ok {
			v.add("unknown action %q", a)
			continue
		}
		if !seen[a] {
			seen[a] = true
			actions = append(actions, a)
		}
	}
	rule.Actions = actions

	return v.err()
}

// definitionChanged reports whether an edit changes anything other than the
// active flag. Such edits start a new rule version.
func definitionChanged(before, after domain.RiskRule) bool {
	if before.RuleTypeID != after.RuleTypeID ||
		before.Name != after.Name ||
		before.Description != after.Description ||
		before.Severity != after.Severity ||
		before.ParameterType != after.ParameterType ||
		!bytes.Equal(before.ParameterData, after.ParameterData) ||
		len(before.Actions) != len(after.Actions) {
		return true
	}
	for i := range before.Actions {
		if before.Actions[i] != after.Actions[i] {
			return true
		}
	}
	return false
}

func (s *RuleService) resetCounters(ctx context.Context, ruleID int64) {
	if s.counters == nil {
		return
	}
	if err := s.counters.ResetRule(ctx, ruleID); err != nil {
		s.logger.Error("reset rule counters failed", zap.Int64("rule_id", ruleID), zap.Error(err))
	}
}

func ruleCacheKey(ownerID, gen int64) string {
	return "rules:active:" + strconv.FormatInt(ownerID, 10) + ":" + strconv.FormatInt(gen, 10)
}

func ruleGenerationKey(ownerID int64) string {
	return "rules:gen:" + strconv.FormatInt(ownerID, 10)
}

// invalidate moves the owner to a new cache generation and drops the entry of
// the previous one.
func (s *RuleService) invalidate(ctx context.Context, ownerID int64) {
	if s.redis == nil {
		return
	}
	gen, err := s.redis.Incr(ctx, ruleGenerationKey(ownerID)).Result()
	if err != nil {
		s.logger.Warn("rule cache invalidation failed", zap.Int64("owner_id", ownerID), zap.Error(err))
		return
	}
	if err := s.redis.Del(ctx, ruleCacheKey(ownerID, gen-1)).Err(); err != nil {
		s.logger.Warn("rule cache cleanup failed", zap.Int64("owner_id", ownerID), zap.Error(err))
	}
}

func (s *RuleService) ruleCacheGeneration(ctx context.Context, ownerID int64) (int64, error) {
	gen, err := s.redis.Get(ctx, ruleGenerationKey(ownerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *RuleService) setRuleCache(ctx context.Context, ownerID, gen int64, rules []domain.RiskRule) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, ruleCacheKey(ownerID, gen), data, s.cacheTTL).Err()
}

func (s *RuleService) getRuleCache(ctx context.Context, ownerID, gen int64) ([]domain.RiskRule, error) {
	data, err := s.redis.Get(ctx, ruleCacheKey(ownerID, gen)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rules []domain.RiskRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []domain.RiskRule{}
	}
	return rules, nil
}
