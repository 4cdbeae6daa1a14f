package websocket

import (
	"context"
	"sync"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

type memberEntry struct {
	conn   domain.Connection
	groups map[string]struct{}
}

// Registry tracks live connections and their group memberships and fans
// events out to them. All state is in-memory; membership is rebuilt from the
// identity on every new connection.
type Registry struct {
	connections map[string]*memberEntry                 // connection id -> entry
	groups      map[string]map[string]domain.Connection // group -> connection id -> conn
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		connections: make(map[string]*memberEntry),
		groups:      make(map[string]map[string]domain.Connection),
		log:         log,
	}
}

// Register places the connection into AllUsers plus the per-user and role
// groups its identity derives. Membership is visible to Dispatch as soon as
// this returns.
func (r *Registry) Register(conn domain.Connection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry := &memberEntry{
		conn:   conn,
		groups: make(map[string]struct{}),
	}
	r.connections[conn.ID()] = entry

	for _, group := range conn.Identity().Groups() {
		r.addToGroup(entry, group)
	}

	r.log.Info("Connection registered", "connection_id", conn.ID(),
		"user_id", conn.Identity().UserID)
}

// Unregister removes the connection from every group. Safe to call twice.
func (r *Registry) Unregister(conn domain.Connection) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, exists := r.connections[conn.ID()]
	if !exists {
		return
	}

	for group := range entry.groups {
		r.removeFromGroup(conn.ID(), group)
	}
	delete(r.connections, conn.ID())

	r.log.Info("Connection unregistered", "connection_id", conn.ID())
}

// JoinGroup adds an ad-hoc membership requested by the client. Group names
// are not authorized against the caller's identity; see the deployment notes
// before exposing this beyond trusted clients.
func (r *Registry) JoinGroup(connectionID, group string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, exists := r.connections[connectionID]
	if !exists {
		return
	}

	r.addToGroup(entry, group)
	r.log.Info("Joined group", "connection_id", connectionID, "group", group)
}

func (r *Registry) LeaveGroup(connectionID, group string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	entry, exists := r.connections[connectionID]
	if !exists {
		return
	}

	delete(entry.groups, group)
	r.removeFromGroup(connectionID, group)
	r.log.Info("Left group", "connection_id", connectionID, "group", group)
}

// Dispatch delivers the event to every connection the target resolves to.
// Zero matches is a no-op; a per-connection send failure is logged and does
// not stop delivery to the rest.
func (r *Registry) Dispatch(target domain.Target, event realtime.Event) {
	for _, conn := range r.resolve(target) {
		if err := conn.Send(event); err != nil {
			r.log.Warn("Failed to deliver event", "connection_id", conn.ID(),
				"event", event.Kind(), "error", err)
		}
	}
}

func (r *Registry) ConnectionCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.connections)
}

// GroupSize reports current membership of a group.
func (r *Registry) GroupSize(group string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.groups[group])
}

// resolve snapshots the matching connections so sends happen outside the lock.
func (r *Registry) resolve(target domain.Target) []domain.Connection {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matched []domain.Connection

	switch target.Kind {
	case domain.TargetConnection:
		if entry, exists := r.connections[target.Name]; exists {
			matched = append(matched, entry.conn)
		}
	case domain.TargetGroup:
		for _, conn := range r.groups[target.Name] {
			matched = append(matched, conn)
		}
	case domain.TargetBroadcast:
		for _, entry := range r.connections {
			matched = append(matched, entry.conn)
		}
	}

	return matched
}

// addToGroup and removeFromGroup assume the write lock is held.
func (r *Registry) addToGroup(entry *memberEntry, group string) {
	if r.groups[group] == nil {
		r.groups[group] = make(map[string]domain.Connection)
	}
	r.groups[group][entry.conn.ID()] = entry.conn
	entry.groups[group] = struct{}{}
}

func (r *Registry) removeFromGroup(connectionID, group string) {
	members, exists := r.groups[group]
	if !exists {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(r.groups, group)
	}
}

// Sink adapts the registry to the fire-and-forget EventSink contract for
// single-instance deployments that skip the Redis bridge.
func (r *Registry) Sink() domain.EventSink {
	return localSink{registry: r}
}

type localSink struct {
	registry *Registry
}

func (s localSink) Dispatch(_ context.Context, target domain.Target, event realtime.Event) error {
	s.registry.Dispatch(target, event)
	return nil
}
