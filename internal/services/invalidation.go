package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

// SessionInvalidationService owns the admin fan-out triggers: force logout for
// one user or everyone, and global notifications. Triggers are fire-and-forget
// pushes; nothing durable is revoked server-side, so a client that never
// processes the event stays logged in until its token expires.
type SessionInvalidationService struct {
	sink domain.EventSink
	repo domain.NotificationRepository
	log  logger.Logger
}

func NewSessionInvalidationService(sink domain.EventSink,
	repo domain.NotificationRepository, log logger.Logger) *SessionInvalidationService {
	return &SessionInvalidationService{
		sink: sink,
		repo: repo,
		log:  log,
	}
}

// TriggerGlobalLogout pushes a ForceLogout to every live connection. The
// returned error reflects the dispatch call only, never delivery.
func (s *SessionInvalidationService) TriggerGlobalLogout(ctx context.Context, reason string) error {
	event := realtime.ForceLogoutEvent{
		Reason:    reason,
		Timestamp: time.Now().UTC(),
		Scope:     realtime.LogoutGlobal,
	}

	target := domain.GroupTarget(realtime.GroupAllUsers)
	if err := s.sink.Dispatch(ctx, target, event); err != nil {
		return err
	}

	s.log.Info("Triggered global logout", "reason", reason)
	s.record(ctx, event.Kind(), target, reason, "")
	return nil
}

// TriggerUserLogout pushes a ForceLogout to the connections of one user.
func (s *SessionInvalidationService) TriggerUserLogout(ctx context.Context, userID, reason string) error {
	event := realtime.ForceLogoutEvent{
		Reason:    reason,
		Timestamp: time.Now().UTC(),
		Scope:     realtime.LogoutIndividual,
	}

	target := domain.GroupTarget(realtime.UserGroup(userID))
	if err := s.sink.Dispatch(ctx, target, event); err != nil {
		return err
	}

	s.log.Info("Triggered user logout", "user_id", userID, "reason", reason)
	s.record(ctx, event.Kind(), target, reason, "")
	return nil
}

// SendGlobalNotification pushes a notification to every live connection.
// Severity is passed through as-is; by convention it is one of
// info|warning|error|success but the set is open.
func (s *SessionInvalidationService) SendGlobalNotification(ctx context.Context, message, severity string) error {
	event := realtime.GlobalNotificationEvent{
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}

	target := domain.GroupTarget(realtime.GroupAllUsers)
	if err := s.sink.Dispatch(ctx, target, event); err != nil {
		return err
	}

	s.log.Info("Sent global notification", "severity", severity)
	s.record(ctx, event.Kind(), target, message, severity)
	return nil
}

// ListRecent returns the audit log for the admin UI.
func (s *SessionInvalidationService) ListRecent(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	return s.repo.ListRecent(ctx, limit)
}

// record writes the audit row after the dispatch has been handed off. A
// failed write is logged and swallowed so auditing can never fail a trigger.
func (s *SessionInvalidationService) record(ctx context.Context, kind realtime.EventKind,
	target domain.Target, message, severity string) {
	if s.repo == nil {
		return
	}

	rec := &domain.NotificationRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Target:    target.Name,
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.RecordDispatch(ctx, rec); err != nil {
		s.log.Error("Failed to record dispatch", "kind", kind, "error", err)
	}
}
