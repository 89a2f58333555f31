package main

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

var demoEmployees = []struct {
	name, department string
}{
	{"Alice Moreno", "Sales"},
	{"Ben Okafor", "Sales"},
	{"Chen Wei", "Accounting"},
	{"Dana Kowalski", "Sales"},
	{"Elif Yilmaz", "Operations"},
}

var demoCompanies = []string{
	"Northwind Traders", "Contoso Ltd", "Fabrikam", "Globex", "Initech",
	"Umbrella Supply", "Stark Components", "Wayne Logistics", "Tyrell Systems",
	"Soylent Foods", "Hooli", "Vandelay Industries", "Wonka Confections",
	"Acme Hardware", "Cyberdyne Labs", "Oscorp Materials",
}

var demoSources = []string{"Website", "Referral", "Trade show", "Cold call", "LinkedIn"}

var demoProducts = []struct {
	name  string
	price int64
}{
	{"Consulting hours", 120},
	{"Implementation package", 2500},
	{"Annual support", 1800},
	{"Training session", 650},
	{"Hardware kit", 940},
	{"License seat", 45},
}

// demoRoles are created alongside the administrator role
func demoRoles() []*domain.Role {
	grant := func(levels map[string]domain.AccessLevel) map[string]domain.AccessLevel {
		perms := make(map[string]domain.AccessLevel, len(domain.Modules))
		for _, m := range domain.Modules {
			perms[m] = domain.AccessNone
		}
		for m, l := range levels {
			perms[m] = l
		}
		return perms
	}

	return []*domain.Role{
		{
			Name:        "Sales",
			Description: "Works leads and views invoices",
			Color:       "#16a34a",
			Permissions: grant(map[string]domain.AccessLevel{
				domain.ModuleDashboard: domain.AccessView,
				domain.ModuleLeads:     domain.AccessLimited,
				domain.ModuleInvoices:  domain.AccessView,
				domain.ModuleEmployees: domain.AccessView,
			}),
		},
		{
			Name:        "Accounting",
			Description: "Manages invoices",
			Color:       "#ca8a04",
			Permissions: grant(map[string]domain.AccessLevel{
				domain.ModuleDashboard: domain.AccessView,
				domain.ModuleInvoices:  domain.AccessFull,
				domain.ModuleLeads:     domain.AccessView,
			}),
		},
		{
			Name:        "Viewer",
			Description: "Read-only access",
			Color:       "#64748b",
			Permissions: grant(map[string]domain.AccessLevel{
				domain.ModuleDashboard: domain.AccessView,
				domain.ModuleInvoices:  domain.AccessView,
				domain.ModuleLeads:     domain.AccessView,
			}),
		},
	}
}

func demoEmployeeList(now time.Time) []*domain.Employee {
	out := make([]*domain.Employee, len(demoEmployees))
	for i, e := range demoEmployees {
		out[i] = &domain.Employee{
			ID:         uuid.New(),
			Name:       e.name,
			Email:      emailFor(e.name, "example.com"),
			Department: e.department,
			Active:     true,
			CreatedAt:  now,
		}
	}
	return out
}

// generator produces deterministic demo records for a given seed
type generator struct {
	rng *rand.Rand
	now time.Time
}

func newGenerator(seed uint64, now time.Time) *generator {
	return &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: now.UTC()}
}

func (g *generator) pick(n int) int {
	return g.rng.IntN(n)
}

func (g *generator) lead(assignees []*domain.Employee) *domain.Lead {
	company := demoCompanies[g.pick(len(demoCompanies))]
	contact := demoEmployees[g.pick(len(demoEmployees))].name
	domainName := strings.ToLower(strings.ReplaceAll(company, " ", "")) + ".test"

	lead := &domain.Lead{
		Company:        company,
		ContactName:    contact,
		Email:          emailFor(contact, domainName),
		Phone:          fmt.Sprintf("+1-555-%04d", g.pick(10000)),
		Status:         domain.LeadStatuses[g.pick(len(domain.LeadStatuses))],
		Priority:       domain.LeadPriorities[g.pick(len(domain.LeadPriorities))],
		Source:         demoSources[g.pick(len(demoSources))],
		EstimatedValue: decimal.NewFromInt(int64(500 + g.pick(50)*250)),
	}
	if len(assignees) > 0 && g.pick(4) > 0 {
		id := assignees[g.pick(len(assignees))].ID
		lead.AssignedTo = &id
	}
	if lead.Status != domain.LeadStatusNew {
		contacted := g.now.AddDate(0, 0, -g.pick(60))
		lead.LastContact = &contacted
	}
	return lead
}

// invoice returns an invoice issued within the last 90 days. Unpaid
// invoices past their due date are left for the overdue job to flag.
func (g *generator) invoice() *domain.Invoice {
	company := demoCompanies[g.pick(len(demoCompanies))]
	issued := g.now.AddDate(0, 0, -g.pick(90)).Truncate(24 * time.Hour)

	items := make([]domain.LineItem, 1+g.pick(4))
	for i := range items {
		p := demoProducts[g.pick(len(demoProducts))]
		items[i] = domain.LineItem{
			ItemName: p.name,
			Quantity: decimal.NewFromInt(int64(1 + g.pick(10))),
			Price:    decimal.NewFromInt(p.price),
			Discount: decimal.NewFromInt(int64(g.pick(3) * 5)),
			Tax:      decimal.NewFromInt(int64([]int{0, 5, 8, 20}[g.pick(4)])),
		}
	}

	statuses := []domain.InvoiceStatus{
		domain.InvoiceStatusDraft, domain.InvoiceStatusUnpaid,
		domain.InvoiceStatusUnpaid, domain.InvoiceStatusPaid, domain.InvoiceStatusPaid,
	}
	return &domain.Invoice{
		ClientName:  company,
		ClientEmail: "billing@" + strings.ToLower(strings.ReplaceAll(company, " ", "")) + ".test",
		IssueDate:   issued,
		DueDate:     issued.AddDate(0, 0, []int{14, 30, 45}[g.pick(3)]),
		Status:      statuses[g.pick(len(statuses))],
		Currency:    domain.DefaultCurrency,
		Items:       items,
	}
}

func emailFor(name, host string) string {
	local := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "."))
	return local + "@" + host
}
