// test/helpers/helpers.go
package helpers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/erp-admin/internal/adapters/db"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/pkg/config"
)

// TestJWTSecret signs tokens accepted by LoadTestConfig.
const TestJWTSecret = "test-secret-that-is-long-enough-for-hs256"

// TestDB represents a test database instance
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis represents a test Redis instance
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger returns a test logger
func TestLogger() *slog.Logger {
	level := slog.LevelError
	if testing.Verbose() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// SetupTestDB starts PostgreSQL in Docker and applies the embedded migrations
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "Could not connect to Docker")

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=erp_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Could not start PostgreSQL container")

	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("Could not purge resource: %s", err)
		}
	})

	dbConfig := &db.Config{
		Host:               "localhost",
		Port:               resource.GetPort("5432/tcp"),
		User:               "test",
		Password:           "test",
		Database:           "erp_test",
		SSLMode:            "disable",
		MaxConnections:     5,
		MinConnections:     1,
		MaxConnLifetime:    time.Hour,
		MaxConnIdleTime:    time.Minute * 30,
		HealthCheckPeriod:  time.Minute,
		ConnectTimeout:     time.Second * 10,
		EnableQueryLogging: testing.Verbose(),
	}

	var database *db.Database
	err = pool.Retry(func() error {
		var err error
		database, err = db.NewDatabase(context.Background(), dbConfig, TestLogger())
		return err
	})
	require.NoError(t, err, "Could not connect to PostgreSQL")
	t.Cleanup(database.Close)

	err = db.RunMigrationsWithRetry(context.Background(), &db.MigrationConfig{
		DatabaseURL: dbConfig.URL(),
	}, TestLogger(), 3)
	require.NoError(t, err, "Could not run migrations")

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   dbConfig,
	}
}

// SetupTestRedis creates an in-memory Redis for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{Client: client, Server: mr}
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "erp-admin-test",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Database: config.DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "test",
			Password:       "test",
			Name:           "erp_test",
			SSLMode:        "disable",
			MaxConnections: 10,
			MinConnections: 2,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			TTL:      time.Hour,
			PoolSize: 10,
		},
		Asynq: config.AsynqConfig{
			RedisAddr:   "localhost:6379",
			Concurrency: 2,
			Queues:      map[string]int{"critical": 6, "default": 3, "low": 1},
		},
		Storage: config.StorageConfig{
			Driver:    "local",
			LocalPath: os.TempDir(),
			Bucket:    "erp-admin-test",
		},
		SMTP: config.SMTPConfig{
			Host:      "localhost",
			Port:      2525,
			FromEmail: "erp@example.test",
			FromName:  "ERP Admin",
			Timeout:   time.Second,
		},
		Security: config.SecurityConfig{
			JWTSecret:         TestJWTSecret,
			JWTIssuer:         "erp-admin",
			JWTExpiration:     time.Hour,
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
			RequestIDHeader:   "X-Request-ID",
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Backup: config.BackupConfig{
			Retention:       30 * 24 * time.Hour,
			CleanupSchedule: "0 3 * * *",
		},
		Invoice: config.InvoiceConfig{
			OverdueSchedule: "15 0 * * *",
			StatsSchedule:   "*/15 * * * *",
		},
	}
}

// NewTestToken signs an HS256 token for role with the test secret
func NewTestToken(t *testing.T, subject, role string) string {
	t.Helper()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iss":  "erp-admin",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(TestJWTSecret))
	require.NoError(t, err)
	return signed
}

// CreateTestInvoice returns a draft invoice with one line item totalling 16.00
func CreateTestInvoice(overrides ...func(*domain.Invoice)) *domain.Invoice {
	issue := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	inv := &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: "INV-20240110-00001",
		ClientName:    "Acme Corp",
		ClientEmail:   "billing@acme.test",
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, 30),
		Status:        domain.InvoiceStatusDraft,
		Currency:      domain.DefaultCurrency,
		Items: []domain.LineItem{{
			ItemName: "Widget",
			Quantity: decimal.NewFromInt(2),
			Price:    decimal.NewFromInt(10),
			Discount: decimal.NewFromInt(5),
			Tax:      decimal.NewFromInt(1),
		}},
		CreatedAt: issue,
		UpdatedAt: issue,
	}
	inv.CalculateTotals()

	for _, override := range overrides {
		override(inv)
	}
	return inv
}

// CreateTestLead returns a new medium-priority lead
func CreateTestLead(overrides ...func(*domain.Lead)) *domain.Lead {
	now := time.Now().UTC().Truncate(time.Microsecond)
	lead := &domain.Lead{
		ID:             uuid.New(),
		Company:        "Initech",
		ContactName:    "Bill Lumbergh",
		Email:          "contact@initech.test",
		Phone:          "+1-555-0100",
		Status:         domain.LeadStatusNew,
		Priority:       domain.LeadPriorityMedium,
		Source:         "website",
		EstimatedValue: decimal.NewFromInt(5000),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, override := range overrides {
		override(lead)
	}
	return lead
}

// CreateTestRole returns a custom role with leads and invoice access
func CreateTestRole(overrides ...func(*domain.Role)) *domain.Role {
	now := time.Now().UTC().Truncate(time.Microsecond)
	role := &domain.Role{
		ID:          uuid.New(),
		Name:        "Sales",
		Description: "Sales team",
		Color:       "#22c55e",
		Permissions: map[string]domain.AccessLevel{
			domain.ModuleLeads:    domain.AccessFull,
			domain.ModuleInvoices: domain.AccessView,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, override := range overrides {
		override(role)
	}
	return role
}

// CreateTestEmployee returns an active employee
func CreateTestEmployee(overrides ...func(*domain.Employee)) *domain.Employee {
	id := uuid.New()
	e := &domain.Employee{
		ID:         id,
		Name:       "Peter Gibbons",
		Email:      fmt.Sprintf("peter.%s@initech.test", id.String()[:8]),
		Department: "Sales",
		Active:     true,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	for _, override := range overrides {
		override(e)
	}
	return e
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}

// TruncateAllTables truncates all tables in the test database
func TruncateAllTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`TRUNCATE TABLE leads, invoices, invoice_sequences, roles, employees, settings, backups CASCADE`)
	require.NoError(t, err, "Failed to truncate tables")
}

// CreateTempFile creates a temporary file for testing
func CreateTempFile(t *testing.T, content []byte, extension string) string {
	t.Helper()

	file, err := os.CreateTemp(t.TempDir(), fmt.Sprintf("test-*%s", extension))
	require.NoError(t, err, "Failed to create temp file")

	_, err = file.Write(content)
	require.NoError(t, err, "Failed to write to temp file")
	require.NoError(t, file.Close())

	return file.Name()
}
