package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"riskwatch/internal/domain"
	"riskwatch/internal/risk"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace/noop"
)

type execPool struct {
	tag  string
	err  error
	sqls []string
	tx   *fakeTx
}

func (p *execPool) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	p.sqls = append(p.sqls, sql)
	return pgconn.NewCommandTag(p.tag), p.err
}

func (p *execPool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (p *execPool) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (p *execPool) Begin(context.Context) (pgx.Tx, error) {
	if p.tx == nil {
		return nil, errors.New("not implemented")
	}
	return p.tx, nil
}

// fakeTx records statements; methods it does not override panic.
type fakeTx struct {
	pgx.Tx
	failOn     string
	sqls       []string
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	tx.sqls = append(tx.sqls, sql)
	if tx.failOn != "" && strings.Contains(sql, tx.failOn) {
		return pgconn.CommandTag{}, errors.New("constraint violation")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	tx.sqls = append(tx.sqls, sql)
	return incidentRow{}
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
	}
	return nil
}

type incidentRow struct{}

func (incidentRow) Scan(dest ...any) error {
	*dest[0].(*int64) = 77
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	*dest[1].(*time.Time) = now
	*dest[2].(*time.Time) = now
	return nil
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	cases := map[int]int{0: defaultListLimit, -5: defaultListLimit, 1: 1, 1000: 1000, 1001: defaultListLimit}
	for in, want := range cases {
		if got := clampLimit(in); got != want {
			t.Fatalf("clampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestNotFoundMapsNoRows(t *testing.T) {
	t.Parallel()

	if err := notFound(pgx.ErrNoRows); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	other := errors.New("boom")
	if err := notFound(other); err != other {
		t.Fatalf("expected passthrough, got %v", err)
	}
}

func TestDeleteNotification(t *testing.T) {
	t.Parallel()

	tracer := noop.NewTracerProvider().Tracer("test")

	pool := &execPool{tag: "DELETE 1"}
	repo := NewNotificationRepository(pool, tracer)
	if err := repo.DeleteNotification(context.Background(), 4, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(pool.sqls) != 1 {
		t.Fatalf("expected one statement, got %d", len(pool.sqls))
	}

	missing := NewNotificationRepository(&execPool{tag: "DELETE 0"}, tracer)
	if err := missing.DeleteNotification(context.Background(), 4, 2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	failing := NewNotificationRepository(&execPool{err: errors.New("conn reset")}, tracer)
	if err := failing.DeleteNotification(context.Background(), 4, 1); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected driver error, got %v", err)
	}
}

func violationRecord() risk.ViolationRecord {
	return risk.ViolationRecord{
		Key:      risk.EvaluationKey{TradeID: 3, RuleID: 5, RuleVersion: 1, Trigger: domain.TriggerClose},
		Incident: &domain.Incident{AccountID: 1, RiskRuleID: 5, Trigger: domain.TriggerClose, Count: 2},
		Counter:  2,
	}
}

func TestRecordViolationCommitsAsOneUnit(t *testing.T) {
	t.Parallel()

	tracer := noop.NewTracerProvider().Tracer("test")
	tx := &fakeTx{}
	repo := NewIncidentRepository(&execPool{tx: tx}, tracer)

	rec := violationRecord()
	if err := repo.RecordViolation(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("expected commit only, got committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
	if len(tx.sqls) != 3 {
		t.Fatalf("expected incident, counter and mark statements, got %d", len(tx.sqls))
	}
	if rec.Incident.ID != 77 {
		t.Fatalf("expected incident id from RETURNING, got %d", rec.Incident.ID)
	}
}

func TestRecordViolationRollsBackOnCounterFailure(t *testing.T) {
	t.Parallel()

	tracer := noop.NewTracerProvider().Tracer("test")
	tx := &fakeTx{failOn: "violation_counters"}
	repo := NewIncidentRepository(&execPool{tx: tx}, tracer)

	if err := repo.RecordViolation(context.Background(), violationRecord()); err == nil {
		t.Fatal("expected counter failure")
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback only, got committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
	for _, sql := range tx.sqls {
		if strings.Contains(sql, "rule_evaluations") {
			t.Fatal("evaluation mark must not be written after a failed counter upsert")
		}
	}
}
