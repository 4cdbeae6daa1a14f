package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"realtime-gateway/internal/domain"
	"realtime-gateway/internal/services"
	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

type captureSink struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (c *captureSink) Dispatch(_ context.Context, _ domain.Target, event realtime.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

type memoryRepo struct {
	mu        sync.Mutex
	records   []*domain.NotificationRecord
	scheduled []*domain.ScheduledNotification
}

func (m *memoryRepo) RecordDispatch(_ context.Context, record *domain.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *memoryRepo) ListRecent(_ context.Context, limit int) ([]*domain.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) < limit {
		limit = len(m.records)
	}
	return m.records[:limit], nil
}

func (m *memoryRepo) CreateScheduled(_ context.Context, scheduled *domain.ScheduledNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled = append(m.scheduled, scheduled)
	return nil
}

func (m *memoryRepo) DueScheduled(context.Context, time.Time) ([]*domain.ScheduledNotification, error) {
	return nil, nil
}

func (m *memoryRepo) UpdateScheduledStatus(context.Context, string, domain.ScheduleStatus) error {
	return nil
}

type noLeader struct{}

func (noLeader) BecomeLeader(context.Context, string) (bool, error) { return false, nil }
func (noLeader) IsLeader(context.Context, string) (bool, error)     { return false, nil }
func (noLeader) ReleaseLeadership(context.Context, string) error    { return nil }

func newTestHandler() (*AdminHandler, *captureSink, *memoryRepo) {
	log := logger.NewNop()
	sink := &captureSink{}
	repo := &memoryRepo{}
	invalidator := services.NewSessionInvalidationService(sink, repo, log)
	scheduler := services.NewNotificationScheduler(repo, invalidator, noLeader{}, "test", 30*time.Second, log)
	return NewAdminHandler(invalidator, scheduler, log), sink, repo
}

func doRequest(t *testing.T, handler echo.HandlerFunc, method, target, body string,
	params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for name, value := range params {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}

	if err := handler(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestGlobalLogoutEndpoint(t *testing.T) {
	handler, sink, repo := newTestHandler()

	rec := doRequest(t, handler.GlobalLogout, http.MethodPost, "/api/v1/admin/logout/global",
		`{"reason":"security incident"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(sink.events) != 1 {
		t.Fatalf("dispatched %d events, want 1", len(sink.events))
	}
	ev := sink.events[0].(realtime.ForceLogoutEvent)
	if ev.Reason != "security incident" || ev.Scope != realtime.LogoutGlobal {
		t.Errorf("dispatched %+v", ev)
	}
	if len(repo.records) != 1 {
		t.Errorf("audited %d records, want 1", len(repo.records))
	}
}

func TestGlobalLogoutRequiresReason(t *testing.T) {
	handler, sink, _ := newTestHandler()

	rec := doRequest(t, handler.GlobalLogout, http.MethodPost, "/api/v1/admin/logout/global", `{}`, nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(sink.events) != 0 {
		t.Errorf("dispatched despite missing reason")
	}
}

func TestUserLogoutEndpoint(t *testing.T) {
	handler, sink, _ := newTestHandler()

	rec := doRequest(t, handler.UserLogout, http.MethodPost, "/api/v1/admin/logout/users/42",
		`{"reason":"compromised"}`, map[string]string{"id": "42"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	ev := sink.events[0].(realtime.ForceLogoutEvent)
	if ev.Scope != realtime.LogoutIndividual {
		t.Errorf("scope = %q, want individual", ev.Scope)
	}
}

func TestSendNotificationDefaultsSeverity(t *testing.T) {
	handler, sink, _ := newTestHandler()

	rec := doRequest(t, handler.SendNotification, http.MethodPost, "/api/v1/admin/notifications",
		`{"message":"hello"}`, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	ev := sink.events[0].(realtime.GlobalNotificationEvent)
	if ev.Severity != "info" {
		t.Errorf("severity = %q, want info default", ev.Severity)
	}
}

func TestScheduleNotificationEndpoint(t *testing.T) {
	handler, _, repo := newTestHandler()

	sendAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	body := `{"message":"maintenance","type":"warning","send_at":"` + sendAt + `"}`

	rec := doRequest(t, handler.ScheduleNotification, http.MethodPost,
		"/api/v1/admin/notifications/schedule", body, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(repo.scheduled) != 1 {
		t.Fatalf("scheduled %d rows, want 1", len(repo.scheduled))
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["status"] != string(domain.SchedulePending) {
		t.Errorf("status = %v, want pending", resp["status"])
	}
}

func TestScheduleNotificationRejectsPast(t *testing.T) {
	handler, _, repo := newTestHandler()

	sendAt := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	body := `{"message":"too late","send_at":"` + sendAt + `"}`

	rec := doRequest(t, handler.ScheduleNotification, http.MethodPost,
		"/api/v1/admin/notifications/schedule", body, nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(repo.scheduled) != 0 {
		t.Errorf("past notification was scheduled")
	}
}

func TestListNotificationsEndpoint(t *testing.T) {
	handler, _, repo := newTestHandler()
	repo.records = append(repo.records, &domain.NotificationRecord{
		ID: "n1", Kind: realtime.EventGlobalNotification, Target: "AllUsers",
		Message: "m", Severity: "info", CreatedAt: time.Now(),
	})

	rec := doRequest(t, handler.ListNotifications, http.MethodGet, "/api/v1/admin/notifications", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"notifications"`) {
		t.Errorf("body missing notifications: %s", rec.Body.String())
	}
}
