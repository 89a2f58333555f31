// internal/handlers/health.go
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ammerola/erp-admin/internal/core/ports"
	"github.com/ammerola/erp-admin/internal/pkg/config"
	"github.com/ammerola/erp-admin/internal/workers"
)

// Health states. Critical dependencies make the API unhealthy; the others
// only degrade it, since invoices and leads stay usable without them.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// storageCheckKey is looked up, never written, to reach the object store
const storageCheckKey = "health/check"

// RedisPinger is the part of the redis client the health check uses
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
	PoolStats() *redis.PoolStats
}

// QueueInspector is the part of asynq.Inspector the health check uses
type QueueInspector interface {
	Queues() ([]string, error)
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	Servers() ([]*asynq.ServerInfo, error)
}

// HealthDeps lists what the health endpoints check. Queues is optional.
type HealthDeps struct {
	Database ports.Database
	Redis    RedisPinger
	Storage  ports.ObjectStorage
	Queues   QueueInspector
}

type dependencyCheck struct {
	name     string
	critical bool
	check    func(ctx context.Context) (map[string]any, error)
}

// HealthHandler handles the health and readiness endpoints
type HealthHandler struct {
	responder
	deps        HealthDeps
	checks      []dependencyCheck
	version     string
	environment string
	storage     string
	startTime   time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(deps HealthDeps, cfg *config.Config, logger *slog.Logger) *HealthHandler {
	h := &HealthHandler{
		responder:   responder{logger: logger.With(slog.String("handler", "health"))},
		deps:        deps,
		version:     cfg.App.Version,
		environment: cfg.App.Environment,
		storage:     cfg.Storage.Driver,
		startTime:   time.Now(),
	}

	h.checks = []dependencyCheck{
		{name: "database", critical: true, check: h.checkDatabase},
		{name: "redis", critical: true, check: h.checkRedis},
	}
	if deps.Storage != nil {
		h.checks = append(h.checks, dependencyCheck{name: "object_storage", check: h.checkStorage})
	}
	if deps.Queues != nil {
		h.checks = append(h.checks, dependencyCheck{name: "workers", check: h.checkWorkers})
	}
	return h
}

// HealthStatus is the /health response
type HealthStatus struct {
	Status      string                 `json:"status"`
	Version     string                 `json:"version"`
	Environment string                 `json:"environment"`
	Uptime      string                 `json:"uptime"`
	Timestamp   time.Time              `json:"timestamp"`
	Services    map[string]ServiceInfo `json:"services"`
	System      SystemInfo             `json:"system"`
}

// ServiceInfo is the result of one dependency check
type ServiceInfo struct {
	Status       string         `json:"status"`
	Critical     bool           `json:"critical"`
	Message      string         `json:"message,omitempty"`
	ResponseTime string         `json:"response_time,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
}

// SystemInfo is a small runtime snapshot
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	NumGC         uint32 `json:"num_gc"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := h.run(ctx, h.checks)
	health := HealthStatus{
		Status:      overallStatus(services),
		Version:     h.version,
		Environment: h.environment,
		Uptime:      time.Since(h.startTime).Round(time.Second).String(),
		Timestamp:   time.Now(),
		Services:    services,
		System:      systemInfo(),
	}

	code := http.StatusOK
	if health.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.respondJSON(w, code, health)
}

// Readiness handles GET /ready. Only critical dependencies gate traffic.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var critical []dependencyCheck
	for _, c := range h.checks {
		if c.critical {
			critical = append(critical, c)
		}
	}

	ready := true
	details := make(map[string]string, len(critical))
	for name, info := range h.run(ctx, critical) {
		if info.Status == StatusHealthy {
			details[name] = "ready"
			continue
		}
		ready = false
		details[name] = "not ready"
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.respondJSON(w, code, map[string]any{"ready": ready, "details": details})
}

// run executes checks concurrently
func (h *HealthHandler) run(ctx context.Context, checks []dependencyCheck) map[string]ServiceInfo {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]ServiceInfo, len(checks))
	)
	for _, c := range checks {
		wg.Add(1)
		go func(c dependencyCheck) {
			defer wg.Done()
			start := time.Now()
			details, err := c.check(ctx)

			info := ServiceInfo{
				Status:       StatusHealthy,
				Critical:     c.critical,
				ResponseTime: time.Since(start).String(),
				Details:      details,
			}
			if err != nil {
				info.Status = StatusUnhealthy
				info.Message = err.Error()
				h.logger.WarnContext(ctx, "health check failed",
					slog.String("dependency", c.name),
					slog.Bool("critical", c.critical),
					slog.String("error", err.Error()))
			}

			mu.Lock()
			out[c.name] = info
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return out
}

func overallStatus(services map[string]ServiceInfo) string {
	status := StatusHealthy
	for _, info := range services {
		if info.Status == StatusHealthy {
			continue
		}
		if info.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

func (h *HealthHandler) checkDatabase(ctx context.Context) (map[string]any, error) {
	if err := h.deps.Database.Ping(ctx); err != nil {
		return nil, err
	}
	return h.deps.Database.Health(ctx), nil
}

func (h *HealthHandler) checkRedis(ctx context.Context) (map[string]any, error) {
	if err := h.deps.Redis.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	stats := h.deps.Redis.PoolStats()
	return map[string]any{
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}, nil
}

// checkStorage reaches the store holding backups and invoice PDFs
func (h *HealthHandler) checkStorage(ctx context.Context) (map[string]any, error) {
	if _, err := h.deps.Storage.Exists(ctx, storageCheckKey); err != nil {
		return nil, err
	}
	return map[string]any{"driver": h.storage}, nil
}

var errNoWorkers = errors.New("no worker is running: backups and invoice e-mails are not being processed")

// checkWorkers reports the backlog of every worker queue and fails when no
// worker process is online.
func (h *HealthHandler) checkWorkers(context.Context) (map[string]any, error) {
	existing, err := h.deps.Queues.Queues()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, q := range existing {
		known[q] = true
	}

	names := make([]string, 0, len(workers.QueueTasks))
	for q := range workers.QueueTasks {
		names = append(names, q)
	}
	sort.Strings(names)

	queues := make(map[string]any, len(names))
	for _, q := range names {
		entry := map[string]any{"tasks": workers.QueueTasks[q], "pending": 0}
		queues[q] = entry
		// asynq creates a queue on its first task
		if !known[q] {
			continue
		}
		info, err := h.deps.Queues.GetQueueInfo(q)
		if err != nil {
			return nil, err
		}
		entry["pending"] = info.Pending
		entry["active"] = info.Active
		entry["retry"] = info.Retry
		entry["archived"] = info.Archived
	}
	details := map[string]any{"queues": queues}

	servers, err := h.deps.Queues.Servers()
	if err != nil {
		return details, err
	}
	details["servers"] = len(servers)
	if len(servers) == 0 {
		return details, errNoWorkers
	}
	return details, nil
}

func systemInfo() SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		MemoryAllocMB: m.Alloc / 1024 / 1024,
		NumGC:         m.NumGC,
	}
}
