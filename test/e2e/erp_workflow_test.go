//go:build e2e
// +build e2e

package e2e_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/ammerola/erp-admin/internal/adapters/db"
	"github.com/ammerola/erp-admin/internal/adapters/mailer"
	"github.com/ammerola/erp-admin/internal/adapters/pdf"
	redis_a "github.com/ammerola/erp-admin/internal/adapters/redis_adapter"
	"github.com/ammerola/erp-admin/internal/adapters/storage"
	"github.com/ammerola/erp-admin/internal/client"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
	"github.com/ammerola/erp-admin/internal/core/services"
	"github.com/ammerola/erp-admin/internal/handlers"
	"github.com/ammerola/erp-admin/internal/handlers/middleware"
	"github.com/ammerola/erp-admin/internal/listquery"
	"github.com/ammerola/erp-admin/internal/workers"
	"github.com/ammerola/erp-admin/test/helpers"
)

// inlineQueue hands tasks straight to the worker mux on a goroutine, so the
// workflow runs without a separate worker process.
type inlineQueue struct {
	mux asynq.Handler
	wg  sync.WaitGroup
}

func (q *inlineQueue) run(ctx context.Context, task *asynq.Task, err error) (string, error) {
	if err != nil {
		return "", err
	}
	ctx = context.WithoutCancel(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		_ = q.mux.ProcessTask(ctx, task)
	}()
	return uuid.NewString(), nil
}

func (q *inlineQueue) EnqueueBackup(ctx context.Context, id uuid.UUID) (string, error) {
	task, err := workers.NewBackupTask(id)
	return q.run(ctx, task, err)
}

func (q *inlineQueue) EnqueueInvoicePDF(ctx context.Context, id uuid.UUID) (string, error) {
	task, err := workers.NewInvoicePDFTask(id)
	return q.run(ctx, task, err)
}

func (q *inlineQueue) EnqueueInvoiceEmail(ctx context.Context, id uuid.UUID, to string) (string, error) {
	task, err := workers.NewInvoiceEmailTask(id, to)
	return q.run(ctx, task, err)
}

func (q *inlineQueue) EnqueueNotification(ctx context.Context, email ports.Email) (string, error) {
	task, err := workers.NewNotificationTask(email)
	return q.run(ctx, task, err)
}

type ERPWorkflowSuite struct {
	suite.Suite
	testDB    *helpers.TestDB
	testRedis *helpers.TestRedis
	server    *httptest.Server
	queue     *inlineQueue
	hub       *handlers.EventHub
	employees ports.EmployeeRepository
	api       *client.Client
	stopHub   context.CancelFunc
}

func (s *ERPWorkflowSuite) SetupSuite() {
	t := s.T()
	s.testDB = helpers.SetupTestDB(t)
	s.testRedis = helpers.SetupTestRedis(t)

	log := helpers.TestLogger()
	cfg := helpers.LoadTestConfig()
	cfg.Storage.Driver = storage.DriverLocal
	cfg.Storage.LocalPath = t.TempDir()

	ctx := context.Background()
	objects, err := storage.New(ctx, cfg.Storage, log)
	s.Require().NoError(err)

	database := s.testDB.Database
	cache := redis_a.NewCache(s.testRedis.Client, time.Minute, log)
	events := redis_a.NewEventBus(s.testRedis.Client, log)
	s.queue = &inlineQueue{}

	invoiceRepo := db.NewInvoiceRepository(database, log)
	leadRepo := db.NewLeadRepository(database, log)
	roleRepo := db.NewRoleRepository(database, log)
	settingsRepo := db.NewSettingsRepository(database, log)
	s.employees = db.NewEmployeeRepository(database, log)

	invoiceService := services.NewInvoiceService(invoiceRepo, settingsRepo, pdf.NewRenderer(), objects, s.queue, cache, log)
	leadService := services.NewLeadService(leadRepo, s.employees, settingsRepo, s.queue, cache, log)
	roleService := services.NewRoleService(roleRepo, cache, log)
	settingsService := services.NewSettingsService(settingsRepo, log)
	backupService := services.NewBackupService(db.NewBackupRepository(database, log), services.BackupSources{
		Invoices:  invoiceRepo,
		Leads:     leadRepo,
		Roles:     roleRepo,
		Employees: s.employees,
		Settings:  settingsRepo,
	}, objects, s.queue, events, log)

	_, err = roleService.EnsureAdministrator(ctx)
	s.Require().NoError(err)

	mail := mailer.New(cfg, log)
	s.queue.mux = workers.NewServeMux(workers.Processors{
		Backup:       workers.NewBackupProcessor(backupService, settingsService, mail, cfg.Backup.Retention, log),
		Invoice:      workers.NewInvoiceProcessor(invoiceService, log),
		Notification: workers.NewNotificationProcessor(invoiceService, settingsService, mail, log),
		Analytics:    workers.NewAnalyticsProcessor(leadService, log),
	}, log)

	s.hub = handlers.NewEventHub(events, nil, log)
	hubCtx, stop := context.WithCancel(ctx)
	s.stopHub = stop
	go s.hub.Run(hubCtx)

	router := handlers.NewRouter(handlers.Routes{
		Invoices:  handlers.NewInvoiceHandler(invoiceService, log),
		Leads:     handlers.NewLeadHandler(leadService, 1<<20, log),
		Roles:     handlers.NewRoleHandler(roleService, log),
		Settings:  handlers.NewSettingsHandler(settingsService, backupService, log),
		Dashboard: handlers.NewDashboardHandler(invoiceService, leadService, backupService, cache, log),
		Events:    s.hub,
		Access:    roleService,
	}, handlers.RouterConfig{
		Auth:         middleware.AuthConfig{Secret: []byte(helpers.TestJWTSecret), Issuer: "erp-admin"},
		MaxBodyBytes: 2 << 20,
	}, log)
	s.server = httptest.NewServer(router)

	s.api = s.clientAs(domain.AdministratorRole)
}

func (s *ERPWorkflowSuite) TearDownSuite() {
	s.queue.wg.Wait()
	s.stopHub()
	s.server.Close()
}

func (s *ERPWorkflowSuite) clientAs(role string) *client.Client {
	token := helpers.NewTestToken(s.T(), "e2e-"+strings.ToLower(role), role)
	c, err := client.New(s.server.URL+handlers.APIPrefix, client.StaticToken(token))
	s.Require().NoError(err)
	return c
}

// newInvoiceInput leaves the number blank so the server allocates one
func newInvoiceInput(overrides ...func(*domain.Invoice)) client.InvoiceInput {
	inv := helpers.CreateTestInvoice(overrides...)
	inv.InvoiceNumber = ""
	return client.InvoiceInputFrom(inv)
}

func (s *ERPWorkflowSuite) TestInvoiceWorkflow() {
	ctx := context.Background()
	invoices := s.api.Invoices()

	in := newInvoiceInput(func(inv *domain.Invoice) {
		inv.ClientName = "E2E Workflow Ltd"
		inv.ClientEmail = "ap@e2e.test"
		inv.Items = []domain.LineItem{
			{ItemName: "Widget", Quantity: decimal.NewFromInt(3), Price: decimal.RequireFromString("19.99"), Tax: decimal.NewFromInt(2)},
			{ItemName: "Setup", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(50), Discount: decimal.NewFromInt(10)},
		}
	})

	// 1. Create computes totals and numbers the invoice
	inv, err := invoices.Create(ctx, in)
	s.Require().NoError(err)
	s.NotEmpty(inv.InvoiceNumber)
	s.True(decimal.RequireFromString("101.97").Equal(inv.Amount), inv.Amount.String())
	s.Equal(domain.InvoiceStatusDraft, inv.Status)

	// 2. Search finds it
	page, err := invoices.List(ctx, url.Values{"search": {"E2E Workflow"}})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	s.Equal(inv.ID, page.Items[0].ID)

	// 3. Status transition
	inv, err = invoices.UpdateStatus(ctx, inv.ID, domain.InvoiceStatusUnpaid)
	s.Require().NoError(err)
	s.Equal(domain.InvoiceStatusUnpaid, inv.Status)

	// 4. PDF contains the invoice number
	d, err := invoices.DownloadPDF(ctx, inv.ID)
	s.Require().NoError(err)
	data, err := io.ReadAll(d.Body)
	d.Close()
	s.Require().NoError(err)
	s.Equal("application/pdf", d.ContentType)
	pages, err := pdf.ExtractText(data)
	s.Require().NoError(err)
	s.Contains(strings.Join(pages, "\n"), inv.InvoiceNumber)

	// 5. Send is queued
	sent, err := invoices.Send(ctx, inv.ID, "")
	s.Require().NoError(err)
	s.NotEmpty(sent.TaskID)

	// 6. Delete hides it
	s.queue.wg.Wait()
	s.Require().NoError(invoices.Delete(ctx, inv.ID))
	_, err = invoices.Get(ctx, inv.ID)
	s.True(client.IsStatus(err, http.StatusNotFound), "got %v", err)
}

func (s *ERPWorkflowSuite) TestInvoicePagingThroughController() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.api.Invoices().Create(ctx, newInvoiceInput(func(inv *domain.Invoice) {
			inv.ClientName = "Paging Client"
		}))
		s.Require().NoError(err)
	}

	fetch := func(ctx context.Context, st listquery.State) (*domain.Page[*domain.Invoice], error) {
		return s.api.Invoices().List(ctx, st.Query())
	}
	initial := listquery.Reduce(listquery.NewState(), listquery.SetLimit{Limit: 2})
	initial = listquery.Reduce(initial, listquery.SetFilter{Field: listquery.FieldSearch, Value: "Paging Client"})

	ctrl := listquery.NewController(fetch, initial, helpers.TestLogger())
	defer ctrl.Close()

	seen := map[uuid.UUID]bool{}
	ctrl.Refresh(ctx)
	for {
		s.Require().NoError(ctrl.Wait(ctx))
		snap := ctrl.Snapshot()
		s.Require().Equal(listquery.StatusReady, snap.State.Status, "err: %v", snap.State.Err)
		s.EqualValues(5, snap.State.Total)
		s.Equal(3, snap.State.PageCount())
		for _, inv := range snap.Items {
			seen[inv.ID] = true
		}
		if snap.State.Page == snap.State.PageCount() {
			break
		}
		ctrl.Dispatch(ctx, listquery.SetPage{Page: snap.State.Page + 1})
	}
	s.Len(seen, 5)
}

func (s *ERPWorkflowSuite) TestLeadWorkflow() {
	ctx := context.Background()
	employee := helpers.CreateTestEmployee(func(e *domain.Employee) {
		e.Email = "rep-" + uuid.NewString()[:8] + "@e2e.test"
	})
	s.Require().NoError(s.employees.Create(ctx, employee))

	leads := s.api.Leads()
	lead, err := leads.Create(ctx, client.LeadInputFrom(helpers.CreateTestLead(func(l *domain.Lead) {
		l.Company = "Lead Workflow Inc"
		l.AssignedTo = &employee.ID
		l.Priority = domain.LeadPriorityHigh
	})))
	s.Require().NoError(err)
	s.Equal(employee.Name, lead.AssigneeName)

	page, err := leads.List(ctx, url.Values{"priority": {"High"}, "assignedTo": {employee.ID.String()}})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 1)
	s.Equal(lead.ID, page.Items[0].ID)

	csvData := "Company,Email,Priority\nImported Co,buyer@imported.test,Low\n,missing@company.test,Low\n"
	res, err := leads.Import(ctx, "leads.csv", strings.NewReader(csvData))
	s.Require().NoError(err)
	s.Equal(1, res.Imported)
	s.Len(res.Skipped, 1)

	export, err := leads.ExportCSV(ctx, url.Values{"search": {"Imported Co"}})
	s.Require().NoError(err)
	body, err := io.ReadAll(export.Body)
	export.Close()
	s.Require().NoError(err)
	s.Contains(string(body), "buyer@imported.test")

	stats, err := leads.Stats(ctx)
	s.Require().NoError(err)
	s.GreaterOrEqual(stats.Total, int64(2))
	s.GreaterOrEqual(stats.ByPriority[domain.LeadPriorityHigh], int64(1))
}

func (s *ERPWorkflowSuite) TestRolePermissions() {
	ctx := context.Background()
	_, err := s.api.Roles().Create(ctx, client.RoleInput{
		Name: "E2E Viewer",
		Permissions: map[string]domain.AccessLevel{
			domain.ModuleInvoices: domain.AccessView,
		},
	})
	s.Require().NoError(err)

	viewer := s.clientAs("E2E Viewer")
	_, err = viewer.Invoices().List(ctx, nil)
	s.NoError(err)

	_, err = viewer.Invoices().Create(ctx, newInvoiceInput())
	s.True(client.IsStatus(err, http.StatusForbidden), "got %v", err)

	_, err = viewer.Roles().List(ctx)
	s.True(client.IsStatus(err, http.StatusForbidden), "got %v", err)

	// The built-in role cannot be removed.
	roles, err := s.api.Roles().List(ctx)
	s.Require().NoError(err)
	for _, r := range roles {
		if r.Name == domain.AdministratorRole {
			err = s.api.Roles().Delete(ctx, r.ID)
			s.True(client.IsStatus(err, http.StatusForbidden), "got %v", err)
		}
	}
}

func (s *ERPWorkflowSuite) TestBackupWorkflow() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(s.server.URL, "http") + handlers.APIPrefix +
		"/settings/backup/events?access_token=" + helpers.NewTestToken(s.T(), "e2e-ws", domain.AdministratorRole)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	s.Require().NoError(err)
	defer conn.Close()
	helpers.AssertEventuallyWithTimeout(s.T(), func() bool { return s.hub.Clients() > 0 }, 5*time.Second, "websocket client registered")

	settings := s.api.Settings()
	rec, err := settings.StartBackup(ctx)
	s.Require().NoError(err)

	rec, err = settings.PollBackup(ctx, rec.ID, 100*time.Millisecond)
	s.Require().NoError(err)
	s.Equal(domain.BackupStatusCompleted, rec.Status)
	s.Positive(rec.SizeBytes)

	// The websocket saw the job finish.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		s.Require().NoError(err)
		var ev domain.BackupEvent
		s.Require().NoError(json.Unmarshal(msg, &ev))
		if ev.BackupID == rec.ID && ev.Status == domain.BackupStatusCompleted {
			break
		}
	}

	d, err := settings.DownloadBackup(ctx, rec.ID)
	s.Require().NoError(err)
	data, err := io.ReadAll(d.Body)
	d.Close()
	s.Require().NoError(err)
	sum := sha256.Sum256(data)
	s.Equal(rec.Checksum, hex.EncodeToString(sum[:]))

	history, err := settings.BackupHistory(ctx, 5)
	s.Require().NoError(err)
	s.Require().NotEmpty(history)
	s.Equal(rec.ID, history[0].ID)
}

func TestERPWorkflowSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}
	suite.Run(t, new(ERPWorkflowSuite))
}
