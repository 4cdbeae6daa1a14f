package mysql

import (
	"context"
	"database/sql"
	"time"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/realtime"
)

// MySQLNotificationRepository persists the admin audit log and the scheduled
// notification queue. The fan-out path never reads from here.
type MySQLNotificationRepository struct {
	db *sql.DB
}

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

func (r *MySQLNotificationRepository) RecordDispatch(ctx context.Context, record *domain.NotificationRecord) error {
	query := `
        INSERT INTO notification_log (id, kind, target, message, severity, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		record.ID, string(record.Kind), record.Target,
		record.Message, record.Severity, record.CreatedAt)
	return err
}

func (r *MySQLNotificationRepository) ListRecent(ctx context.Context, limit int) ([]*domain.NotificationRecord, error) {
	query := `
        SELECT id, kind, target, message, severity, created_at
        FROM notification_log
        ORDER BY created_at DESC
        LIMIT ?
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.NotificationRecord
	for rows.Next() {
		var record domain.NotificationRecord
		var kind string

		err := rows.Scan(&record.ID, &kind, &record.Target,
			&record.Message, &record.Severity, &record.CreatedAt)
		if err != nil {
			return nil, err
		}

		record.Kind = realtime.EventKind(kind)
		records = append(records, &record)
	}

	return records, rows.Err()
}

func (r *MySQLNotificationRepository) CreateScheduled(ctx context.Context, scheduled *domain.ScheduledNotification) error {
	query := `
        INSERT INTO scheduled_notifications (id, message, severity, send_at, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		scheduled.ID, scheduled.Message, scheduled.Severity,
		scheduled.SendAt, string(scheduled.Status), scheduled.CreatedAt)
	return err
}

func (r *MySQLNotificationRepository) DueScheduled(ctx context.Context, before time.Time) ([]*domain.ScheduledNotification, error) {
	query := `
        SELECT id, message, severity, send_at, status, created_at
        FROM scheduled_notifications
        WHERE status = 'pending' AND send_at <= ?
        ORDER BY send_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*domain.ScheduledNotification
	for rows.Next() {
		var scheduled domain.ScheduledNotification
		var status string

		err := rows.Scan(&scheduled.ID, &scheduled.Message, &scheduled.Severity,
			&scheduled.SendAt, &status, &scheduled.CreatedAt)
		if err != nil {
			return nil, err
		}

		scheduled.Status = domain.ScheduleStatus(status)
		due = append(due, &scheduled)
	}

	return due, rows.Err()
}

func (r *MySQLNotificationRepository) UpdateScheduledStatus(ctx context.Context, id string, status domain.ScheduleStatus) error {
	query := `UPDATE scheduled_notifications SET status = ? WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, string(status), id)
	return err
}
