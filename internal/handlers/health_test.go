// internal/handlers/health_test.go
package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/erp-admin/internal/handlers"
	"github.com/ammerola/erp-admin/internal/workers"
	"github.com/ammerola/erp-admin/test/helpers"
	"github.com/ammerola/erp-admin/test/mocks"
)

type stubInspector struct {
	queues  []string
	info    map[string]*asynq.QueueInfo
	servers []*asynq.ServerInfo
	err     error
}

func (s *stubInspector) Queues() ([]string, error) { return s.queues, s.err }

func (s *stubInspector) GetQueueInfo(q string) (*asynq.QueueInfo, error) {
	return s.info[q], nil
}

func (s *stubInspector) Servers() ([]*asynq.ServerInfo, error) { return s.servers, nil }

type healthBody struct {
	Status   string                          `json:"status"`
	Services map[string]handlers.ServiceInfo `json:"services"`
}

func newHealthFixture(t *testing.T) (*mocks.MockDatabase, *mocks.MockObjectStorage, *helpers.TestRedis) {
	t.Helper()
	ctrl := gomock.NewController(t)
	return mocks.NewMockDatabase(ctrl), mocks.NewMockObjectStorage(ctrl), helpers.SetupTestRedis(t)
}

func getHealth(t *testing.T, h *handlers.HealthHandler) (int, healthBody) {
	t.Helper()
	w := httptest.NewRecorder()
	h.Health(w, httptest.NewRequest("GET", "/health", nil))

	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealthHandler_AllHealthy(t *testing.T) {
	db, objects, r := newHealthFixture(t)
	db.EXPECT().Ping(gomock.Any()).Return(nil)
	db.EXPECT().Health(gomock.Any()).Return(map[string]interface{}{"total_conns": 4})
	objects.EXPECT().Exists(gomock.Any(), "health/check").Return(false, nil)

	inspector := &stubInspector{
		queues:  []string{workers.QueueCritical},
		info:    map[string]*asynq.QueueInfo{workers.QueueCritical: {Queue: workers.QueueCritical, Pending: 2, Active: 1}},
		servers: []*asynq.ServerInfo{{Host: "worker-1"}},
	}
	h := handlers.NewHealthHandler(handlers.HealthDeps{
		Database: db, Redis: r.Client, Storage: objects, Queues: inspector,
	}, helpers.LoadTestConfig(), helpers.TestLogger())

	code, body := getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, handlers.StatusHealthy, body.Status)
	assert.Len(t, body.Services, 4)

	queues := body.Services["workers"].Details["queues"].(map[string]any)
	critical := queues[workers.QueueCritical].(map[string]any)
	assert.EqualValues(t, 2, critical["pending"])
	assert.Equal(t, []any{workers.TypeBackupCreate}, critical["tasks"])
	assert.EqualValues(t, 0, queues[workers.QueueLow].(map[string]any)["pending"], "queues without tasks yet read as empty")
}

func TestHealthHandler_StorageFailureDegrades(t *testing.T) {
	db, objects, r := newHealthFixture(t)
	db.EXPECT().Ping(gomock.Any()).Return(nil).Times(2)
	db.EXPECT().Health(gomock.Any()).Return(map[string]interface{}{}).Times(2)
	objects.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, errors.New("bucket unreachable"))

	h := handlers.NewHealthHandler(handlers.HealthDeps{
		Database: db, Redis: r.Client, Storage: objects,
	}, helpers.LoadTestConfig(), helpers.TestLogger())

	code, body := getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, handlers.StatusDegraded, body.Status)
	assert.Equal(t, "bucket unreachable", body.Services["object_storage"].Message)
	assert.False(t, body.Services["object_storage"].Critical)

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code, "storage does not gate readiness")
}

func TestHealthHandler_NoWorkersDegrades(t *testing.T) {
	db, objects, r := newHealthFixture(t)
	db.EXPECT().Ping(gomock.Any()).Return(nil)
	db.EXPECT().Health(gomock.Any()).Return(map[string]interface{}{})
	objects.EXPECT().Exists(gomock.Any(), gomock.Any()).Return(false, nil)

	h := handlers.NewHealthHandler(handlers.HealthDeps{
		Database: db, Redis: r.Client, Storage: objects, Queues: &stubInspector{},
	}, helpers.LoadTestConfig(), helpers.TestLogger())

	_, body := getHealth(t, h)
	assert.Equal(t, handlers.StatusDegraded, body.Status)
	assert.Contains(t, body.Services["workers"].Message, "no worker is running")
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	db, _, r := newHealthFixture(t)
	db.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused")).Times(2)

	h := handlers.NewHealthHandler(handlers.HealthDeps{Database: db, Redis: r.Client},
		helpers.LoadTestConfig(), helpers.TestLogger())

	code, body := getHealth(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, handlers.StatusUnhealthy, body.Status)
	assert.True(t, body.Services["database"].Critical)

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var ready struct {
		Ready   bool              `json:"ready"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.False(t, ready.Ready)
	assert.Equal(t, "not ready", ready.Details["database"])
	assert.Equal(t, "ready", ready.Details["redis"])
}
