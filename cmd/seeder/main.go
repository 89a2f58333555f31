// cmd/seeder/main.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ammerola/erp-admin/internal/adapters/db"
	"github.com/ammerola/erp-admin/internal/adapters/sheets"
	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
	"github.com/ammerola/erp-admin/internal/pkg/config"
	"github.com/ammerola/erp-admin/internal/pkg/logger"
)

// seedState records completed runs so repeated invocations are no-ops
type seedState struct {
	Seeded     bool      `json:"seeded"`
	Leads      int       `json:"leads"`
	Invoices   int       `json:"invoices"`
	Imported   []string  `json:"imported"`
	LastUpdate time.Time `json:"last_update"`
}

type seeder struct {
	invoices  ports.InvoiceRepository
	leads     ports.LeadRepository
	employees ports.EmployeeRepository
	roles     ports.RoleRepository
	settings  ports.SettingsRepository
	logger    *slog.Logger
	dryRun    bool
}

type summary struct {
	roles, employees, leads, invoices, imported int
	skipped                                     []sheets.RowError
}

func main() {
	var (
		leadCount    = flag.Int("leads", 40, "Number of demo leads to create")
		invoiceCount = flag.Int("invoices", 25, "Number of demo invoices to create")
		importFile   = flag.String("import", "", "CSV or XLSX lead sheet to import")
		stateFile    = flag.String("state", "./.seed_state.json", "State file for tracking progress")
		seed         = flag.Uint64("seed", 42, "Random seed for demo data")
		logLevel     = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun       = flag.Bool("dry-run", false, "Preview changes without modifying database")
		force        = flag.Bool("force", false, "Seed again even if the state file says it is done")
		reset        = flag.Bool("reset", false, "Delete existing leads, invoices and employees first")
	)
	flag.Parse()

	appLogger := logger.SetupLogger(*logLevel, "json")
	log := appLogger.Logger

	cfg, err := config.Load(log)
	if err != nil {
		log.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.IsProduction() && !*dryRun {
		log.Error("Refusing to seed a production database")
		os.Exit(1)
	}

	ctx := context.Background()

	var state seedState
	if !*force {
		if data, err := os.ReadFile(*stateFile); err == nil {
			_ = json.Unmarshal(data, &state)
		}
	}

	database, err := db.NewDatabase(ctx, db.ConfigFrom(cfg.Database), log)
	if err != nil {
		log.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer database.Close()

	if *reset && !*dryRun {
		if err := resetData(ctx, database); err != nil {
			log.Error("Failed to reset data", slog.String("error", err.Error()))
			os.Exit(1)
		}
		state = seedState{}
		log.Info("Removed existing demo data")
	}

	s := &seeder{
		invoices:  db.NewInvoiceRepository(database, log),
		leads:     db.NewLeadRepository(database, log),
		employees: db.NewEmployeeRepository(database, log),
		roles:     db.NewRoleRepository(database, log),
		settings:  db.NewSettingsRepository(database, log),
		logger:    log,
		dryRun:    *dryRun,
	}

	var sum summary
	if state.Seeded {
		log.Info("Demo data already seeded, use -force to seed again", slog.String("state", *stateFile))
	} else {
		sum, err = s.seed(ctx, newGenerator(*seed, time.Now()), *leadCount, *invoiceCount)
		if err != nil {
			log.Error("Seeding failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		state.Seeded = true
		state.Leads += sum.leads
		state.Invoices += sum.invoices
	}

	if *importFile != "" {
		name := filepath.Base(*importFile)
		if contains(state.Imported, name) && !*force {
			log.Info("Skipping already imported sheet", slog.String("file", name))
		} else {
			imported, skipped, err := s.importLeads(ctx, *importFile)
			if err != nil {
				log.Error("Import failed", slog.String("file", name), slog.String("error", err.Error()))
				os.Exit(1)
			}
			sum.imported, sum.skipped = imported, skipped
			state.Imported = append(state.Imported, name)
		}
	}

	if !*dryRun {
		state.LastUpdate = time.Now()
		data, _ := json.MarshalIndent(state, "", "  ")
		if err := os.WriteFile(*stateFile, data, 0o644); err != nil {
			log.Warn("Failed to write state file", slog.String("error", err.Error()))
		}
	}

	printSummary(sum, *dryRun)
	log.Info("Seed operation completed",
		slog.Int("roles", sum.roles),
		slog.Int("employees", sum.employees),
		slog.Int("leads", sum.leads),
		slog.Int("invoices", sum.invoices),
		slog.Int("imported", sum.imported))
}

func (s *seeder) seed(ctx context.Context, gen *generator, leadCount, invoiceCount int) (summary, error) {
	var sum summary

	created, err := s.seedRoles(ctx)
	if err != nil {
		return sum, err
	}
	sum.roles = created

	employees, created, err := s.seedEmployees(ctx, gen.now)
	if err != nil {
		return sum, err
	}
	sum.employees = created

	if err := s.seedSettings(ctx); err != nil {
		return sum, err
	}

	for i := 0; i < leadCount; i++ {
		lead := gen.lead(employees)
		if err := lead.Validate(); err != nil {
			return sum, fmt.Errorf("generated lead %d: %w", i, err)
		}
		lead.PrepareForStorage()
		if !s.dryRun {
			if err := s.leads.Create(ctx, lead); err != nil {
				return sum, fmt.Errorf("create lead %s: %w", lead.Company, err)
			}
		}
		sum.leads++
	}

	for i := 0; i < invoiceCount; i++ {
		inv := gen.invoice()
		if err := inv.Validate(); err != nil {
			return sum, fmt.Errorf("generated invoice %d: %w", i, err)
		}
		if !s.dryRun {
			seq, err := s.invoices.NextSequence(ctx, inv.IssueDate)
			if err != nil {
				return sum, fmt.Errorf("allocate invoice number: %w", err)
			}
			inv.InvoiceNumber = domain.FormatInvoiceNumber(inv.IssueDate, seq)
		}
		inv.PrepareForStorage()
		if !s.dryRun {
			if err := s.invoices.Create(ctx, inv); err != nil {
				return sum, fmt.Errorf("create invoice for %s: %w", inv.ClientName, err)
			}
		}
		fmt.Printf("PROGRESS: invoice %d/%d %s %s\n", i+1, invoiceCount, inv.InvoiceNumber, inv.Amount.StringFixed(domain.MoneyPlaces))
		sum.invoices++
	}

	if !s.dryRun {
		flagged, err := s.invoices.MarkOverdue(ctx, gen.now)
		if err != nil {
			return sum, fmt.Errorf("mark overdue invoices: %w", err)
		}
		s.logger.Info("Flagged overdue demo invoices", slog.Int64("count", flagged))
	}
	return sum, nil
}

func (s *seeder) seedRoles(ctx context.Context) (int, error) {
	created := 0
	for _, role := range append([]*domain.Role{domain.NewAdministratorRole()}, demoRoles()...) {
		_, err := s.roles.FindByName(ctx, role.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, fmt.Errorf("look up role %s: %w", role.Name, err)
		}
		if err := role.Validate(); err != nil {
			return created, err
		}
		role.PrepareForStorage()
		if !s.dryRun {
			if err := s.roles.Create(ctx, role); err != nil {
				return created, fmt.Errorf("create role %s: %w", role.Name, err)
			}
		}
		created++
	}
	return created, nil
}

// seedEmployees creates the demo staff that are missing and returns every
// active employee.
func (s *seeder) seedEmployees(ctx context.Context, now time.Time) ([]*domain.Employee, int, error) {
	existing, err := s.employees.ListAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, e := range existing {
		known[strings.ToLower(e.Email)] = true
	}

	active := make([]*domain.Employee, 0, len(existing)+len(demoEmployees))
	for _, e := range existing {
		if e.Active {
			active = append(active, e)
		}
	}

	created := 0
	for _, e := range demoEmployeeList(now) {
		if known[e.Email] {
			continue
		}
		if !s.dryRun {
			if err := s.employees.Create(ctx, e); err != nil {
				return nil, created, fmt.Errorf("create employee %s: %w", e.Name, err)
			}
		}
		active = append(active, e)
		created++
	}
	return active, created, nil
}

func (s *seeder) seedSettings(ctx context.Context) error {
	_, err := s.settings.GetBranding(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load branding: %w", err)
	}

	b := domain.DefaultBranding()
	b.CompanyName = "Demo Company"
	b.InvoiceFooter = "Thank you for your business."
	if s.dryRun {
		return nil
	}
	if err := s.settings.SaveBranding(ctx, b); err != nil {
		return fmt.Errorf("save branding: %w", err)
	}
	return s.settings.SaveNotifications(ctx, domain.DefaultNotificationSettings())
}

func (s *seeder) importLeads(ctx context.Context, path string) (int, []sheets.RowError, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, nil, err
	}

	var (
		leads   []*domain.Lead
		skipped []sheets.RowError
	)
	if sheets.SniffXLSX(data) {
		leads, skipped, err = sheets.ReadLeadsXLSX(data)
	} else {
		leads, skipped, err = sheets.ReadLeadsCSV(bytes.NewReader(data))
	}
	if err != nil {
		return 0, nil, err
	}

	imported := 0
	for _, lead := range leads {
		lead.PrepareForStorage()
		if s.dryRun {
			imported++
			continue
		}
		if err := s.leads.Create(ctx, lead); err != nil {
			skipped = append(skipped, sheets.RowError{Message: fmt.Sprintf("%s: %v", lead.Company, err)})
			continue
		}
		imported++
	}
	return imported, skipped, nil
}

// resetData clears demo tables in one transaction. Roles, settings and
// backups are kept.
func resetData(ctx context.Context, database *db.Database) error {
	return database.Transaction(ctx, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM leads`,
			`DELETE FROM invoices`,
			`DELETE FROM invoice_sequences`,
			`DELETE FROM employees`,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	})
}

func printSummary(sum summary, dryRun bool) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEEDING SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Roles created:     %d\n", sum.roles)
	fmt.Printf("Employees created: %d\n", sum.employees)
	fmt.Printf("Leads created:     %d\n", sum.leads)
	fmt.Printf("Invoices created:  %d\n", sum.invoices)
	if sum.imported > 0 || len(sum.skipped) > 0 {
		fmt.Printf("Leads imported:    %d\n", sum.imported)
	}
	if len(sum.skipped) > 0 {
		fmt.Printf("\nSkipped rows (%d):\n", len(sum.skipped))
		for _, e := range sum.skipped {
			fmt.Printf("  - row %d: %s\n", e.Row, e.Message)
		}
	}
	if dryRun {
		fmt.Println("\n[DRY RUN] No changes were made to the database")
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
