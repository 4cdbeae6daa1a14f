package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/logger"
)

// NotificationScheduler polls the scheduled_notifications table and sends due
// rows through the invalidation service. Only the elected leader instance
// dispatches, so a multi-instance deployment broadcasts each row once.
type NotificationScheduler struct {
	cron         *cron.Cron
	repo         domain.NotificationRepository
	invalidator  *SessionInvalidationService
	leader       domain.LeaderElection
	instanceID   string
	pollInterval time.Duration
	log          logger.Logger
}

func NewNotificationScheduler(repo domain.NotificationRepository,
	invalidator *SessionInvalidationService, leader domain.LeaderElection,
	instanceID string, pollInterval time.Duration, log logger.Logger) *NotificationScheduler {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	return &NotificationScheduler{
		cron:         cron.New(cron.WithSeconds()),
		repo:         repo,
		invalidator:  invalidator,
		leader:       leader,
		instanceID:   instanceID,
		pollInterval: pollInterval,
		log:          log,
	}
}

func (s *NotificationScheduler) cronSpec() string {
	return "@every " + s.pollInterval.String()
}

func (s *NotificationScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting notification scheduler", "poll_interval", s.pollInterval)

	_, err := s.cron.AddFunc(s.cronSpec(), func() {
		s.processDue(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *NotificationScheduler) Stop() error {
	s.log.Info("Stopping notification scheduler")
	s.cron.Stop()
	return nil
}

// Schedule queues a global notification for a future time.
func (s *NotificationScheduler) Schedule(ctx context.Context, message, severity string, sendAt time.Time) (*domain.ScheduledNotification, error) {
	if !sendAt.After(time.Now()) {
		return nil, fmt.Errorf("send_at must be in the future")
	}

	scheduled := &domain.ScheduledNotification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		SendAt:    sendAt,
		Status:    domain.SchedulePending,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateScheduled(ctx, scheduled); err != nil {
		return nil, err
	}

	return scheduled, nil
}

// Cancel marks a pending scheduled notification cancelled.
func (s *NotificationScheduler) Cancel(ctx context.Context, id string) error {
	return s.repo.UpdateScheduledStatus(ctx, id, domain.ScheduleCancelled)
}

func (s *NotificationScheduler) processDue(ctx context.Context) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Failed to check leadership", "error", err)
		return
	}
	if !isLeader {
		return
	}

	due, err := s.repo.DueScheduled(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to load due notifications", "error", err)
		return
	}

	for _, scheduled := range due {
		s.log.Info("Sending scheduled notification", "id", scheduled.ID, "send_at", scheduled.SendAt)

		if err := s.invalidator.SendGlobalNotification(ctx, scheduled.Message, scheduled.Severity); err != nil {
			s.log.Error("Failed to send scheduled notification", "id", scheduled.ID, "error", err)
			// Leave the row pending so the next poll retries it
			continue
		}

		if err := s.repo.UpdateScheduledStatus(ctx, scheduled.ID, domain.ScheduleSent); err != nil {
			s.log.Error("Failed to mark notification sent", "id", scheduled.ID, "error", err)
		}
	}
}
