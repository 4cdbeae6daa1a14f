package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

const eventChannel = "gateway_events"

// bridgeMessage is the envelope carried over the pub/sub channel between
// gateway instances.
type bridgeMessage struct {
	Target   domain.Target     `json:"target"`
	Envelope realtime.Envelope `json:"envelope"`
}

// EventBridge fans dispatches out across gateway instances through Redis
// pub/sub. Every instance, including the publisher, receives the message via
// its subscription and delivers to its local registry.
type EventBridge struct {
	client *redis.Client
	log    logger.Logger
}

func NewEventBridge(client *redis.Client, log logger.Logger) *EventBridge {
	return &EventBridge{
		client: client,
		log:    log,
	}
}

func (b *EventBridge) Publish(ctx context.Context, target domain.Target, event realtime.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := bridgeMessage{
		Target: target,
		Envelope: realtime.Envelope{
			Event:   event.Kind(),
			Payload: payload,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal bridge message: %w", err)
	}

	return b.client.Publish(ctx, eventChannel, data).Err()
}

// Dispatch implements domain.EventSink so admin triggers can publish through
// the bridge directly.
func (b *EventBridge) Dispatch(ctx context.Context, target domain.Target, event realtime.Event) error {
	return b.Publish(ctx, target, event)
}

func (b *EventBridge) Subscribe(ctx context.Context, handler domain.BridgeHandler) error {
	pubsub := b.client.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	b.log.Info("Subscribed to gateway events")

	return b.consume(ctx, pubsub.Channel(), handler)
}

func (b *EventBridge) consume(ctx context.Context, ch <-chan *redis.Message,
	handler domain.BridgeHandler) error {
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				b.log.Info("Event bridge channel closed")
				return nil
			}

			target, event, err := b.parseMessage(msg.Payload)
			if err != nil {
				b.log.Error("Failed to parse bridge message", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(target, event); err != nil {
				b.log.Error("Failed to handle bridge message", "event", event.Kind(), "error", err)
			}

		case <-ctx.Done():
			b.log.Info("Event bridge subscriber stopped")
			return ctx.Err()
		}
	}
}

func (b *EventBridge) parseMessage(payload string) (domain.Target, realtime.Event, error) {
	var msg bridgeMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return domain.Target{}, nil, err
	}

	data, err := json.Marshal(msg.Envelope)
	if err != nil {
		return domain.Target{}, nil, err
	}

	event, err := realtime.Decode(data)
	if err != nil {
		return domain.Target{}, nil, err
	}

	return msg.Target, event, nil
}
