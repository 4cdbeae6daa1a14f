// Package realtime defines the wire contract shared by the gateway and its
// Go client: server-pushed events, client-invoked methods, and group names.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind identifies a server-pushed event variant.
type EventKind string

const (
	EventButtonSuccess      EventKind = "ButtonSuccess"
	EventForceLogout        EventKind = "ForceLogout"
	EventGlobalNotification EventKind = "GlobalNotification"
	EventTestResponse       EventKind = "TestResponse"
)

// LogoutScope distinguishes a broadcast logout from a targeted one.
type LogoutScope string

const (
	LogoutGlobal     LogoutScope = "global"
	LogoutIndividual LogoutScope = "individual"
)

// Event is a server-pushed event. The set of implementations is closed;
// Decode rejects kinds it does not know.
type Event interface {
	Kind() EventKind
}

type ForceLogoutEvent struct {
	Reason    string      `json:"reason"`
	Timestamp time.Time   `json:"timestamp"`
	Scope     LogoutScope `json:"type"`
}

func (ForceLogoutEvent) Kind() EventKind { return EventForceLogout }

type GlobalNotificationEvent struct {
	Message   string    `json:"message"`
	Severity  string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func (GlobalNotificationEvent) Kind() EventKind { return EventGlobalNotification }

type ButtonSuccessEvent struct {
	RequestID string    `json:"requestId"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

func (ButtonSuccessEvent) Kind() EventKind { return EventButtonSuccess }

type TestResponseEvent struct {
	Message string `json:"message"`
}

func (TestResponseEvent) Kind() EventKind { return EventTestResponse }

// Envelope is the framing for every server-to-client message.
type Envelope struct {
	Event   EventKind       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps an event in its envelope and marshals it.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{
		Event:   ev.Kind(),
		Payload: payload,
	})
}

// Decode unmarshals an envelope into its typed event.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Event {
	case EventForceLogout:
		var ev ForceLogoutEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventGlobalNotification:
		var ev GlobalNotificationEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventButtonSuccess:
		var ev ButtonSuccessEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case EventTestResponse:
		var ev TestResponseEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event kind: %q", env.Event)
	}
}
