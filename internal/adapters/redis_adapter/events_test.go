package redis_a_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/erp-admin/internal/adapters/redis_adapter"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/test/helpers"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	bus := redis_a.NewEventBus(r.Client, helpers.TestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.SubscribeBackupEvents(ctx)
	require.NoError(t, err)

	sent := domain.BackupEvent{
		BackupID:  uuid.New(),
		Status:    domain.BackupStatusCompleted,
		SizeBytes: 2048,
		At:        time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, bus.PublishBackupEvent(context.Background(), sent))

	select {
	case got := <-events:
		assert.Equal(t, sent.BackupID, got.BackupID)
		assert.Equal(t, domain.BackupStatusCompleted, got.Status)
		assert.Equal(t, int64(2048), got.SizeBytes)
	case <-time.After(2 * time.Second):
		t.Fatal("no backup event received")
	}
}

func TestEventBus_SkipsMalformedPayloads(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	bus := redis_a.NewEventBus(r.Client, helpers.TestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := bus.SubscribeBackupEvents(ctx)
	require.NoError(t, err)

	r.Server.Publish(redis_a.BackupEventsChannel, "not json")
	id := uuid.New()
	require.NoError(t, bus.PublishBackupEvent(context.Background(), domain.BackupEvent{BackupID: id, Status: domain.BackupStatusRunning}))

	select {
	case got := <-events:
		assert.Equal(t, id, got.BackupID)
	case <-time.After(2 * time.Second):
		t.Fatal("no backup event received")
	}
}

func TestEventBus_ClosesOnCancel(t *testing.T) {
	r := helpers.SetupTestRedis(t)
	bus := redis_a.NewEventBus(r.Client, helpers.TestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.SubscribeBackupEvents(ctx)
	require.NoError(t, err)

	cancel()

	helpers.AssertEventuallyWithTimeout(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, "event channel should close after cancel")
}
