package service

import (
	"context"
	"errors"
	"testing"

	"riskwatch/internal/domain"
)

func TestIncidentService_ScopesByOwner(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.addAccount(1, 1, 5001)
	repo.addAccount(2, 2, 5002)
	repo.incidents = []*domain.Incident{
		{ID: 1, AccountID: 1, RiskRuleID: 10},
		{ID: 2, AccountID: 2, RiskRuleID: 11},
		{ID: 3, AccountID: 1, RiskRuleID: 10},
	}
	svc := NewIncidentService(testTracer, repo, repo)

	mine, err := svc.ListIncidents(context.Background(), domain.Caller{UserID: 1}, nil, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != 3 {
		t.Fatalf("expected own incidents newest first, got %+v", mine)
	}

	acc := int64(2)
	all, _ := svc.ListIncidents(context.Background(), domain.Caller{UserID: 9, IsAdmin: true}, &acc, 0)
	if len(all) != 1 || all[0].ID != 2 {
		t.Fatalf("expected admin to filter by account, got %+v", all)
	}
}

func TestIncidentService_Notifications(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	ctx := context.Background()
	_ = repo.CreateNotification(ctx, &domain.Notification{UserID: 1, Message: "a"})
	_ = repo.CreateNotification(ctx, &domain.Notification{UserID: 2, Message: "b"})
	svc := NewIncidentService(testTracer, repo, repo)

	notes, err := svc.ListNotifications(ctx, domain.Caller{UserID: 1}, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 1 || notes[0].Message != "a" {
		t.Fatalf("unexpected notifications: %+v", notes)
	}

	other := repo.notifications[1].ID
	if err := svc.DismissNotification(ctx, domain.Caller{UserID: 1}, other); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
	if err := svc.DismissNotification(ctx, domain.Caller{UserID: 1}, notes[0].ID); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	notes, _ = svc.ListNotifications(ctx, domain.Caller{UserID: 1}, 0)
	if len(notes) != 0 {
		t.Fatalf("expected no notifications left, got %d", len(notes))
	}
}
