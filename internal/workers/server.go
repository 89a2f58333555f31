// internal/workers/server.go
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/erp-admin/internal/pkg/config"
)

// Processors groups every task handler the worker serves
type Processors struct {
	Backup       *BackupProcessor
	Invoice      *InvoiceProcessor
	Notification *NotificationProcessor
	Analytics    *AnalyticsProcessor
}

// NewServeMux routes each task type to its processor
func NewServeMux(p Processors, logger *slog.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(loggingMiddleware(logger))

	mux.HandleFunc(TypeBackupCreate, p.Backup.CreateBackup)
	mux.HandleFunc(TypeBackupCleanup, p.Backup.CleanupBackups)
	mux.HandleFunc(TypeInvoiceRenderPDF, p.Invoice.RenderPDF)
	mux.HandleFunc(TypeInvoiceMarkOverdue, p.Invoice.MarkOverdue)
	mux.HandleFunc(TypeEmailInvoice, p.Notification.SendInvoice)
	mux.HandleFunc(TypeEmailNotification, p.Notification.SendEmail)
	mux.HandleFunc(TypeStatsRefresh, p.Analytics.RefreshStats)
	return mux
}

// ScheduledTask is a periodic task registered with the scheduler
type ScheduledTask struct {
	Spec string
	Task *asynq.Task
}

// Schedule lists the periodic tasks driven by cfg
func Schedule(cfg *config.Config) []ScheduledTask {
	return []ScheduledTask{
		{Spec: cfg.Backup.CleanupSchedule, Task: asynq.NewTask(TypeBackupCleanup, nil, asynq.Queue(QueueLow))},
		{Spec: cfg.Invoice.OverdueSchedule, Task: asynq.NewTask(TypeInvoiceMarkOverdue, nil, asynq.Queue(QueueDefault))},
		{Spec: cfg.Invoice.StatsSchedule, Task: asynq.NewTask(TypeStatsRefresh, nil, asynq.Queue(QueueLow))},
	}
}

// RegisterSchedule adds every scheduled task to s, skipping empty specs
func RegisterSchedule(s *asynq.Scheduler, tasks []ScheduledTask, logger *slog.Logger) error {
	for _, st := range tasks {
		if st.Spec == "" {
			continue
		}
		id, err := s.Register(st.Spec, st.Task)
		if err != nil {
			return fmt.Errorf("failed to schedule %s (%q): %w", st.Task.Type(), st.Spec, err)
		}
		logger.Info("task scheduled",
			slog.String("type", st.Task.Type()),
			slog.String("spec", st.Spec),
			slog.String("entry_id", id))
	}
	return nil
}

func loggingMiddleware(logger *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			start := time.Now()
			taskID, _ := asynq.GetTaskID(ctx)
			retried, _ := asynq.GetRetryCount(ctx)

			err := next.ProcessTask(ctx, t)

			attrs := []any{
				slog.String("type", t.Type()),
				slog.String("task_id", taskID),
				slog.Int("retry", retried),
				slog.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.WarnContext(ctx, "task failed", append(attrs, slog.String("error", err.Error()))...)
			} else {
				logger.DebugContext(ctx, "task processed", attrs...)
			}
			return err
		})
	}
}

// HandleError logs tasks that exhausted their handler
func HandleError(logger *slog.Logger) asynq.ErrorHandler {
	return asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		logger.ErrorContext(ctx, "task processing failed",
			slog.String("type", task.Type()),
			slog.Int("retry", retried),
			slog.Int("max_retry", maxRetry),
			slog.String("error", err.Error()))
	})
}

// ExponentialBackoff doubles the delay per retry up to ten minutes
func ExponentialBackoff(n int, _ error, _ *asynq.Task) time.Duration {
	baseDelay := time.Second
	maxDelay := 10 * time.Minute
	if n > 20 {
		return maxDelay
	}
	delay := baseDelay * time.Duration(1<<uint(n))
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// Logger adapts slog for asynq
type Logger struct {
	logger *slog.Logger
}

// NewLogger creates an asynq logger writing through logger
func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger.With(slog.String("component", "asynq"))}
}

func (l *Logger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *Logger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *Logger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *Logger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }

func (l *Logger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
