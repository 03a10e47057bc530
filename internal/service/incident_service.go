package service

import (
	"context"
	"errors"

	"riskwatch/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var ErrNotificationNotFound = errors.New("notification not found")

type IncidentService struct {
	tracer        trace.Tracer
	incidents     IncidentLister
	notifications NotificationStore
}

func NewIncidentService(tracer trace.Tracer, incidents IncidentLister, notifications NotificationStore) *IncidentService {
	return &IncidentService{tracer: tracer, incidents: incidents, notifications: notifications}
}

// ListIncidents returns incidents newest first, restricted to the caller's
// accounts unless the caller is an admin.
func (s *IncidentService) ListIncidents(ctx context.Context, caller domain.Caller, accountID *int64, limit int) ([]domain.Incident, error) {
	ctx, span := s.tracer.Start(ctx, "incident-service.list-incidents")
	defer span.End()

	incidents, err := s.incidents.ListIncidents(ctx, domain.IncidentFilter{
		OwnerID:   scopeOwner(caller),
		AccountID: accountID,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	if incidents == nil {
		incidents = []domain.Incident{}
	}
	return incidents, nil
}

func (s *IncidentService) ListNotifications(ctx context.Context, caller domain.Caller, limit int) ([]domain.Notification, error) {
	ctx, span := s.tracer.Start(ctx, "incident-service.list-notifications")
	defer span.End()

	notes, err := s.notifications.ListNotifications(ctx, caller.UserID, limit)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []domain.Notification{}
	}
	return notes, nil
}

// DismissNotification deletes one of the caller's own notifications.
func (s *IncidentService) DismissNotification(ctx context.Context, caller domain.Caller, id int64) error {
	ctx, span := s.tracer.Start(ctx, "incident-service.dismiss-notification")
	defer span.End()

	return translate(s.notifications.DeleteNotification(ctx, id, caller.UserID), ErrNotificationNotFound)
}
