package mysql

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/realtime"
)

func TestRecordDispatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	repo := NewMySQLNotificationRepository(db)

	record := &domain.NotificationRecord{
		ID:        "n1",
		Kind:      realtime.EventForceLogout,
		Target:    "AllUsers",
		Message:   "security incident",
		Severity:  "",
		CreatedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO notification_log").
		WithArgs(record.ID, string(record.Kind), record.Target,
			record.Message, record.Severity, record.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.RecordDispatch(context.Background(), record); err != nil {
		t.Fatalf("RecordDispatch failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	repo := NewMySQLNotificationRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "kind", "target", "message", "severity", "created_at"}).
		AddRow("n2", "GlobalNotification", "AllUsers", "maintenance", "warning", now).
		AddRow("n1", "ForceLogout", "User_42", "compromised", "", now.Add(-time.Minute))

	mock.ExpectQuery("SELECT id, kind, target, message, severity, created_at").
		WithArgs(10).
		WillReturnRows(rows)

	records, err := repo.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Kind != realtime.EventGlobalNotification {
		t.Errorf("first record kind = %q", records[0].Kind)
	}
	if records[1].Target != "User_42" {
		t.Errorf("second record target = %q", records[1].Target)
	}
}

func TestDueScheduled(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	repo := NewMySQLNotificationRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "message", "severity", "send_at", "status", "created_at"}).
		AddRow("s1", "window opens", "info", now.Add(-time.Second), "pending", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, message, severity, send_at, status, created_at").
		WillReturnRows(rows)

	due, err := repo.DueScheduled(context.Background(), now)
	if err != nil {
		t.Fatalf("DueScheduled failed: %v", err)
	}

	if len(due) != 1 {
		t.Fatalf("got %d due rows, want 1", len(due))
	}
	if due[0].Status != domain.SchedulePending {
		t.Errorf("status = %q, want pending", due[0].Status)
	}
}

func TestUpdateScheduledStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	defer db.Close()

	repo := NewMySQLNotificationRepository(db)

	mock.ExpectExec("UPDATE scheduled_notifications SET status").
		WithArgs("sent", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateScheduledStatus(context.Background(), "s1", domain.ScheduleSent); err != nil {
		t.Fatalf("UpdateScheduledStatus failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
