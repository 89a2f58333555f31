// internal/handlers/events_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/handlers"
	"github.com/ammerola/erp-admin/test/helpers"
	"github.com/ammerola/erp-admin/test/mocks"
)

func dialHub(t *testing.T, srv *httptest.Server, origin string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestEventHub_FansOutBackupEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	bus := mocks.NewMockEventBus(ctrl)
	events := make(chan domain.BackupEvent, 1)
	bus.EXPECT().SubscribeBackupEvents(gomock.Any()).Return((<-chan domain.BackupEvent)(events), nil)

	hub := handlers.NewEventHub(bus, nil, helpers.TestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	a := dialHub(t, srv, "")
	b := dialHub(t, srv, "")
	helpers.AssertEventuallyWithTimeout(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, "clients registered")

	ev := domain.BackupEvent{BackupID: uuid.New(), Status: domain.BackupStatusCompleted, SizeBytes: 42, At: time.Now().UTC()}
	events <- ev

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var got domain.BackupEvent
		require.NoError(t, json.Unmarshal(msg, &got))
		assert.Equal(t, ev.BackupID, got.BackupID)
		assert.Equal(t, domain.BackupStatusCompleted, got.Status)
		assert.EqualValues(t, 42, got.SizeBytes)
	}

	cancel()
	require.NoError(t, <-done)
	helpers.AssertEventuallyWithTimeout(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, "clients closed")
}

func TestEventHub_UnregistersOnDisconnect(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := handlers.NewEventHub(mocks.NewMockEventBus(ctrl), nil, helpers.TestLogger())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dialHub(t, srv, "")
	helpers.AssertEventuallyWithTimeout(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, "client registered")

	require.NoError(t, conn.Close())
	helpers.AssertEventuallyWithTimeout(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, "client unregistered")
}

func TestEventHub_RejectsUnknownOrigin(t *testing.T) {
	ctrl := gomock.NewController(t)
	hub := handlers.NewEventHub(mocks.NewMockEventBus(ctrl), []string{"https://erp.example.com"}, helpers.TestLogger())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	dialHub(t, srv, "https://erp.example.com")
	helpers.AssertEventuallyWithTimeout(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, "allowed origin connects")
}
