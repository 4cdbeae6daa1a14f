package domain

import (
	"context"
	"time"

	"realtime-gateway/pkg/realtime"
)

// TargetKind selects how a dispatch resolves to connections.
type TargetKind string

const (
	TargetConnection TargetKind = "connection"
	TargetGroup      TargetKind = "group"
	TargetBroadcast  TargetKind = "broadcast"
)

// Target selects the set of live connections a dispatch fans out to.
type Target struct {
	Kind TargetKind `json:"kind"`
	Name string     `json:"name,omitempty"`
}

func ConnectionTarget(connectionID string) Target {
	return Target{Kind: TargetConnection, Name: connectionID}
}

func GroupTarget(group string) Target {
	return Target{Kind: TargetGroup, Name: group}
}

func Broadcast() Target {
	return Target{Kind: TargetBroadcast}
}

// Connection is one live transport session.
type Connection interface {
	ID() string
	Identity() Identity
	Send(event realtime.Event) error
	Close() error
}

// ConnectionRegistry tracks live connections and their group memberships and
// fans events out to them. Dispatch to a target with no live connections is a
// silent no-op.
type ConnectionRegistry interface {
	Register(conn Connection)
	Unregister(conn Connection)
	JoinGroup(connectionID, group string)
	LeaveGroup(connectionID, group string)
	Dispatch(target Target, event realtime.Event)
	ConnectionCount() int
}

// EventSink accepts fire-and-forget dispatches. Implemented locally by the
// registry and, in a multi-instance deployment, by the Redis bridge publisher.
type EventSink interface {
	Dispatch(ctx context.Context, target Target, event realtime.Event) error
}

// BridgeHandler receives events arriving from other gateway instances.
type BridgeHandler func(target Target, event realtime.Event) error

// EventBridge carries dispatches across gateway instances.
type EventBridge interface {
	Publish(ctx context.Context, target Target, event realtime.Event) error
	Subscribe(ctx context.Context, handler BridgeHandler) error
}

// NotificationRepository persists the admin audit log and the scheduled
// notification queue.
type NotificationRepository interface {
	RecordDispatch(ctx context.Context, record *NotificationRecord) error
	ListRecent(ctx context.Context, limit int) ([]*NotificationRecord, error)
	CreateScheduled(ctx context.Context, scheduled *ScheduledNotification) error
	DueScheduled(ctx context.Context, before time.Time) ([]*ScheduledNotification, error)
	UpdateScheduledStatus(ctx context.Context, id string, status ScheduleStatus) error
}

// LeaderElection gates the scheduled-notification poller so a multi-instance
// deployment broadcasts each scheduled row once.
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}
