package domain

import (
	"time"

	"realtime-gateway/pkg/realtime"
)

// Identity is the authenticated principal attached to a connection, extracted
// from the access token at connect time. The zero value is an anonymous
// connection.
type Identity struct {
	UserID string
	Role   string
}

const (
	RoleAdmin   = "admin"
	RoleRegular = "user"
)

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Groups returns the built-in groups this identity belongs to.
func (i Identity) Groups() []string {
	groups := []string{realtime.GroupAllUsers}

	if !i.Authenticated() {
		return groups
	}

	groups = append(groups, realtime.UserGroup(i.UserID))

	if i.IsAdmin() {
		groups = append(groups, realtime.GroupAdmins)
	} else {
		groups = append(groups, realtime.GroupRegularUsers)
	}

	return groups
}

// NotificationRecord is the audit row written after every admin trigger.
// Live delivery never depends on it; it exists so the admin UI can list what
// was sent.
type NotificationRecord struct {
	ID        string
	Kind      realtime.EventKind
	Target    string
	Message   string
	Severity  string
	CreatedAt time.Time
}

type ScheduleStatus string

const (
	SchedulePending   ScheduleStatus = "pending"
	ScheduleSent      ScheduleStatus = "sent"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// ScheduledNotification is a global notification queued for a future time.
type ScheduledNotification struct {
	ID        string
	Message   string
	Severity  string
	SendAt    time.Time
	Status    ScheduleStatus
	CreatedAt time.Time
}
