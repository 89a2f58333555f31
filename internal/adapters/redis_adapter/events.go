package redis_a

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

// BackupEventsChannel is the pub/sub channel backup status changes go out on
const BackupEventsChannel = "erp:events:backups"

// EventBus publishes and fans in domain events over Redis pub/sub
type EventBus struct {
	client *redis.Client
	logger *slog.Logger
}

var _ ports.EventBus = (*EventBus)(nil)

// NewEventBus creates a Redis backed event bus
func NewEventBus(client *redis.Client, logger *slog.Logger) *EventBus {
	return &EventBus{
		client: client,
		logger: logger.With(slog.String("component", "event_bus")),
	}
}

// PublishBackupEvent broadcasts event to every subscriber
func (b *EventBus) PublishBackupEvent(ctx context.Context, event domain.BackupEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal backup event: %w", err)
	}
	if err := b.client.Publish(ctx, BackupEventsChannel, data).Err(); err != nil {
		return fmt.Errorf("publish backup event: %w", err)
	}
	b.logger.DebugContext(ctx, "backup event published",
		slog.String("backup_id", event.BackupID.String()),
		slog.String("status", string(event.Status)))
	return nil
}

// SubscribeBackupEvents returns a channel of events that closes when ctx ends.
// Malformed payloads are logged and skipped.
func (b *EventBus) SubscribeBackupEvents(ctx context.Context) (<-chan domain.BackupEvent, error) {
	sub := b.client.Subscribe(ctx, BackupEventsChannel)
	// Wait for the subscription confirmation so no early publish is lost.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe backup events: %w", err)
	}

	out := make(chan domain.BackupEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.BackupEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.WarnContext(ctx, "dropping malformed backup event",
						slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
