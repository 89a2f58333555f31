//go:build integration
// +build integration

package db_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/ammerola/erp-admin/internal/adapters/db"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
	"github.com/ammerola/erp-admin/test/helpers"
)

type RepositorySuite struct {
	suite.Suite
	testDB    *helpers.TestDB
	invoices  ports.InvoiceRepository
	leads     ports.LeadRepository
	employees ports.EmployeeRepository
	roles     ports.RoleRepository
	settings  ports.SettingsRepository
	backups   ports.BackupRepository
	ctx       context.Context
}

func (s *RepositorySuite) SetupSuite() {
	s.testDB = helpers.SetupTestDB(s.T())
	logger := helpers.TestLogger()
	database := s.testDB.Database

	s.invoices = db.NewInvoiceRepository(database, logger)
	s.leads = db.NewLeadRepository(database, logger)
	s.employees = db.NewEmployeeRepository(database, logger)
	s.roles = db.NewRoleRepository(database, logger)
	s.settings = db.NewSettingsRepository(database, logger)
	s.backups = db.NewBackupRepository(database, logger)
	s.ctx = context.Background()
}

func (s *RepositorySuite) SetupTest() {
	helpers.TruncateAllTables(s.T(), s.testDB.PgxPool)
}

func (s *RepositorySuite) createInvoice(n int, overrides ...func(*domain.Invoice)) *domain.Invoice {
	inv := helpers.CreateTestInvoice(append([]func(*domain.Invoice){func(i *domain.Invoice) {
		i.InvoiceNumber = fmt.Sprintf("INV-20240110-%05d", n)
	}}, overrides...)...)
	s.Require().NoError(s.invoices.Create(s.ctx, inv))
	return inv
}

func (s *RepositorySuite) TestInvoice_CreateAndFind() {
	inv := s.createInvoice(1)

	found, err := s.invoices.FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal(inv.InvoiceNumber, found.InvoiceNumber)
	s.Equal("Acme Corp", found.ClientName)
	s.Require().Len(found.Items, 1)
	s.True(decimal.NewFromInt(16).Equal(found.Items[0].Total))
	s.True(decimal.NewFromInt(16).Equal(found.Amount))
	s.True(decimal.NewFromInt(20).Equal(found.Subtotal))
	s.Equal(domain.InvoiceStatusDraft, found.Status)
}

func (s *RepositorySuite) TestInvoice_FindMissing() {
	_, err := s.invoices.FindByID(s.ctx, uuid.New())
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositorySuite) TestInvoice_DuplicateNumberConflicts() {
	s.createInvoice(1)

	dup := helpers.CreateTestInvoice(func(i *domain.Invoice) {
		i.InvoiceNumber = "INV-20240110-00001"
	})
	err := s.invoices.Create(s.ctx, dup)
	s.ErrorIs(err, domain.ErrConflict)
}

func (s *RepositorySuite) TestInvoice_UpdateAndStatus() {
	inv := s.createInvoice(1)

	inv.ClientName = "Acme Holdings"
	inv.Items = append(inv.Items, domain.LineItem{
		ItemName: "Support", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(100),
	})
	inv.CalculateTotals()
	inv.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.invoices.Update(s.ctx, inv))
	s.Require().NoError(s.invoices.UpdateStatus(s.ctx, inv.ID, domain.InvoiceStatusUnpaid))

	found, err := s.invoices.FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal("Acme Holdings", found.ClientName)
	s.Len(found.Items, 2)
	s.True(decimal.NewFromInt(116).Equal(found.Amount))
	s.Equal(domain.InvoiceStatusUnpaid, found.Status)

	s.ErrorIs(s.invoices.UpdateStatus(s.ctx, uuid.New(), domain.InvoiceStatusPaid), domain.ErrNotFound)
}

func (s *RepositorySuite) TestInvoice_SetPDF() {
	inv := s.createInvoice(1)
	renderedAt := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.invoices.SetPDF(s.ctx, inv.ID, "invoices/x.pdf", renderedAt))

	found, err := s.invoices.FindByID(s.ctx, inv.ID)
	s.Require().NoError(err)
	s.Equal("invoices/x.pdf", found.PDFKey)
	s.Require().NotNil(found.PDFRenderedAt)
	s.True(renderedAt.Equal(*found.PDFRenderedAt))
}

func (s *RepositorySuite) TestInvoice_ListPaginationAndSort() {
	for i := 1; i <= 25; i++ {
		s.createInvoice(i, func(inv *domain.Invoice) {
			inv.ClientName = fmt.Sprintf("Client %02d", i)
		})
	}

	params := domain.ListParams{Page: 1, Limit: 10, SortBy: "client_name", SortOrder: domain.SortAsc}
	items, total, err := s.invoices.List(s.ctx, domain.InvoiceFilter{}, params)
	s.Require().NoError(err)
	s.Equal(int64(25), total)
	s.Len(items, 10)
	s.Equal("Client 01", items[0].ClientName)

	params.Page = 3
	items, total, err = s.invoices.List(s.ctx, domain.InvoiceFilter{}, params)
	s.Require().NoError(err)
	s.Equal(int64(25), total)
	s.Len(items, 5)
	s.Equal("Client 21", items[0].ClientName)
}

func (s *RepositorySuite) TestInvoice_ListFilters() {
	s.createInvoice(1, func(i *domain.Invoice) { i.ClientName = "Globex" })
	s.createInvoice(2, func(i *domain.Invoice) { i.Status = domain.InvoiceStatusUnpaid })
	s.createInvoice(3, func(i *domain.Invoice) { i.ClientName = "100% Widgets" })

	items, total, err := s.invoices.List(s.ctx, domain.InvoiceFilter{Search: "glob"}, domain.ListParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal("Globex", items[0].ClientName)

	_, total, err = s.invoices.List(s.ctx, domain.InvoiceFilter{Search: "100%"}, domain.ListParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)

	items, total, err = s.invoices.List(s.ctx, domain.InvoiceFilter{Status: domain.InvoiceStatusUnpaid}, domain.ListParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal(domain.InvoiceStatusUnpaid, items[0].Status)
}

func (s *RepositorySuite) TestInvoice_SoftDelete() {
	inv := s.createInvoice(1)

	s.Require().NoError(s.invoices.SoftDelete(s.ctx, inv.ID))
	s.ErrorIs(s.invoices.SoftDelete(s.ctx, inv.ID), domain.ErrNotFound)

	_, total, err := s.invoices.List(s.ctx, domain.InvoiceFilter{}, domain.ListParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)

	var deletedAt *time.Time
	err = s.testDB.PgxPool.QueryRow(s.ctx, `SELECT deleted_at FROM invoices WHERE id = $1`, inv.ID).Scan(&deletedAt)
	s.Require().NoError(err)
	s.NotNil(deletedAt)
}

func (s *RepositorySuite) TestInvoice_NextSequenceIsPerDayAndConcurrent() {
	day := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := s.invoices.NextSequence(context.Background(), day)
			s.NoError(err)
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.Len(seen, 20)
	for i := int64(1); i <= 20; i++ {
		s.True(seen[i], "missing sequence %d", i)
	}

	next, err := s.invoices.NextSequence(s.ctx, day.AddDate(0, 0, 1))
	s.Require().NoError(err)
	s.Equal(int64(1), next)
}

func (s *RepositorySuite) TestInvoice_MarkOverdueAndSummary() {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	s.createInvoice(1, func(i *domain.Invoice) {
		i.Status = domain.InvoiceStatusUnpaid
		i.DueDate = now.AddDate(0, 0, -1)
	})
	s.createInvoice(2, func(i *domain.Invoice) {
		i.Status = domain.InvoiceStatusUnpaid
		i.DueDate = now.AddDate(0, 0, 5)
	})
	s.createInvoice(3, func(i *domain.Invoice) {
		i.Status = domain.InvoiceStatusPaid
		i.DueDate = now.AddDate(0, 0, -10)
	})

	n, err := s.invoices.MarkOverdue(s.ctx, now)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	summary, err := s.invoices.SummarizeByStatus(s.ctx)
	s.Require().NoError(err)
	s.Len(summary, 4)
	s.Equal(int64(1), summary[domain.InvoiceStatusOverdue].Count)
	s.Equal(int64(1), summary[domain.InvoiceStatusUnpaid].Count)
	s.Equal(int64(1), summary[domain.InvoiceStatusPaid].Count)
	s.Zero(summary[domain.InvoiceStatusDraft].Count)
	s.True(decimal.NewFromInt(16).Equal(summary[domain.InvoiceStatusPaid].Amount))
}

func (s *RepositorySuite) TestLead_CRUDWithAssignee() {
	emp := helpers.CreateTestEmployee()
	s.Require().NoError(s.employees.Create(s.ctx, emp))

	lead := helpers.CreateTestLead(func(l *domain.Lead) { l.AssignedTo = &emp.ID })
	s.Require().NoError(s.leads.Create(s.ctx, lead))

	found, err := s.leads.FindByID(s.ctx, lead.ID)
	s.Require().NoError(err)
	s.Equal("Initech", found.Company)
	s.Equal(emp.Name, found.AssigneeName)
	s.Require().NotNil(found.AssignedTo)
	s.Equal(emp.ID, *found.AssignedTo)

	contacted := time.Now().UTC().Truncate(time.Microsecond)
	found.Status = domain.LeadStatusContacted
	found.LastContact = &contacted
	s.Require().NoError(s.leads.Update(s.ctx, found))

	updated, err := s.leads.FindByID(s.ctx, lead.ID)
	s.Require().NoError(err)
	s.Equal(domain.LeadStatusContacted, updated.Status)
	s.Require().NotNil(updated.LastContact)

	s.Require().NoError(s.leads.SoftDelete(s.ctx, lead.ID))
	_, err = s.leads.FindByID(s.ctx, lead.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositorySuite) TestLead_ListFiltersAndPrioritySort() {
	emp := helpers.CreateTestEmployee()
	s.Require().NoError(s.employees.Create(s.ctx, emp))

	fixtures := []*domain.Lead{
		helpers.CreateTestLead(func(l *domain.Lead) { l.Company = "Alpha"; l.Priority = domain.LeadPriorityLow }),
		helpers.CreateTestLead(func(l *domain.Lead) {
			l.Company = "Bravo"
			l.Priority = domain.LeadPriorityHigh
			l.AssignedTo = &emp.ID
		}),
		helpers.CreateTestLead(func(l *domain.Lead) {
			l.Company = "Charlie"
			l.Status = domain.LeadStatusLost
			l.Phone = "+44-20-7946-0000"
		}),
	}
	for _, l := range fixtures {
		s.Require().NoError(s.leads.Create(s.ctx, l))
	}

	items, total, err := s.leads.List(s.ctx, domain.LeadFilter{},
		domain.ListParams{Page: 1, Limit: 10, SortBy: "priority", SortOrder: domain.SortDesc})
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Equal("Bravo", items[0].Company)
	s.Equal("Alpha", items[2].Company)

	items, total, err = s.leads.List(s.ctx, domain.LeadFilter{AssignedTo: &emp.ID}, domain.ListParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal("Bravo", items[0].Company)

	items, total, err = s.leads.List(s.ctx, domain.LeadFilter{Search: "7946"}, domain.ListParams{Page: 1, Limit: 10})
	s.Require().NoError(err)
	s.Equal(int64(1), total)
	s.Equal("Charlie", items[0].Company)

	all, err := s.leads.ListAll(s.ctx, domain.LeadFilter{Status: domain.LeadStatusNew},
		domain.ListParams{SortBy: "company", SortOrder: domain.SortAsc})
	s.Require().NoError(err)
	s.Len(all, 2)
	s.Equal("Alpha", all[0].Company)
}

func (s *RepositorySuite) TestLead_Stats() {
	values := []struct {
		status domain.LeadStatus
		value  int64
	}{
		{domain.LeadStatusConverted, 1000},
		{domain.LeadStatusConverted, 500},
		{domain.LeadStatusLost, 200},
		{domain.LeadStatusNew, 300},
	}
	for _, v := range values {
		lead := helpers.CreateTestLead(func(l *domain.Lead) {
			l.Status = v.status
			l.EstimatedValue = decimal.NewFromInt(v.value)
		})
		s.Require().NoError(s.leads.Create(s.ctx, lead))
	}

	stats, err := s.leads.Stats(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(4), stats.Total)
	s.Equal(int64(2), stats.ByStatus[domain.LeadStatusConverted])
	s.Equal(int64(0), stats.ByStatus[domain.LeadStatusContacted])
	s.Equal(int64(4), stats.ByPriority[domain.LeadPriorityMedium])
	s.True(decimal.NewFromInt(2000).Equal(stats.TotalEstimatedValue))
	s.True(decimal.NewFromInt(1500).Equal(stats.ConvertedValue))
	s.Equal("66.67", stats.ConversionRate.StringFixed(2))
}

func (s *RepositorySuite) TestEmployee_ListActive() {
	active := helpers.CreateTestEmployee(func(e *domain.Employee) { e.Name = "Active" })
	inactive := helpers.CreateTestEmployee(func(e *domain.Employee) { e.Name = "Gone"; e.Active = false })
	s.Require().NoError(s.employees.Create(s.ctx, active))
	s.Require().NoError(s.employees.Create(s.ctx, inactive))

	list, err := s.employees.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Len(list, 1)
	s.Equal("Active", list[0].Name)

	all, err := s.employees.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *RepositorySuite) TestRole_Lifecycle() {
	admin := domain.NewAdministratorRole()
	admin.PrepareForStorage()
	s.Require().NoError(s.roles.Create(s.ctx, admin))

	role := helpers.CreateTestRole()
	s.Require().NoError(s.roles.Create(s.ctx, role))

	dup := helpers.CreateTestRole(func(r *domain.Role) { r.Name = "sales" })
	s.ErrorIs(s.roles.Create(s.ctx, dup), domain.ErrConflict)

	found, err := s.roles.FindByName(s.ctx, "SALES")
	s.Require().NoError(err)
	s.Equal(domain.AccessFull, found.Permissions[domain.ModuleLeads])

	found.Permissions[domain.ModuleLeads] = domain.AccessLimited
	found.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.roles.Update(s.ctx, found))

	list, err := s.roles.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(domain.AdministratorRole, list[0].Name)
	s.Equal(domain.AccessLimited, list[1].Permissions[domain.ModuleLeads])

	s.ErrorIs(s.roles.Delete(s.ctx, admin.ID), domain.ErrNotFound)
	s.Require().NoError(s.roles.Delete(s.ctx, role.ID))
	_, err = s.roles.FindByID(s.ctx, role.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositorySuite) TestSettings_Upsert() {
	_, err := s.settings.GetBranding(s.ctx)
	s.ErrorIs(err, domain.ErrNotFound)

	b := domain.DefaultBranding()
	b.CompanyName = "Acme"
	b.UpdatedAt = time.Now().UTC()
	s.Require().NoError(s.settings.SaveBranding(s.ctx, b))
	b.CompanyName = "Acme Inc"
	s.Require().NoError(s.settings.SaveBranding(s.ctx, b))

	got, err := s.settings.GetBranding(s.ctx)
	s.Require().NoError(err)
	s.Equal("Acme Inc", got.CompanyName)

	n := domain.DefaultNotificationSettings()
	n.Recipients = []string{"ops@acme.test"}
	s.Require().NoError(s.settings.SaveNotifications(s.ctx, n))

	gotN, err := s.settings.GetNotifications(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"ops@acme.test"}, gotN.Recipients)
}

func (s *RepositorySuite) TestBackup_History() {
	old := domain.NewBackupRecord("admin@acme.test")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour).Truncate(time.Microsecond)
	completed := old.CreatedAt.Add(time.Minute)
	old.Status = domain.BackupStatusCompleted
	old.CompletedAt = &completed
	s.Require().NoError(s.backups.Create(s.ctx, old))

	fresh := domain.NewBackupRecord("admin@acme.test")
	s.Require().NoError(s.backups.Create(s.ctx, fresh))

	fresh.Status = domain.BackupStatusFailed
	fresh.Error = "disk full"
	s.Require().NoError(s.backups.Update(s.ctx, fresh))

	list, err := s.backups.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(fresh.ID, list[0].ID)
	s.Equal("disk full", list[0].Error)

	expired, err := s.backups.ListCompletedBefore(s.ctx, time.Now().UTC().Add(-24*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(expired, 1)
	s.Equal(old.ID, expired[0].ID)

	s.Require().NoError(s.backups.Delete(s.ctx, old.ID))
	_, err = s.backups.FindByID(s.ctx, old.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *RepositorySuite) TestTransaction_RollsBack() {
	err := s.testDB.Database.Transaction(s.ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(s.ctx, `INSERT INTO employees (id, name, email, department, active, created_at)
			VALUES ($1, 'Temp', 'temp@acme.test', '', true, now())`, uuid.New())
		s.Require().NoError(err)
		return fmt.Errorf("abort")
	})
	s.Error(err)

	all, err := s.employees.ListAll(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
}

func TestRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositorySuite))
}
