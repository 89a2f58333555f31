// test/benchmarks/helpers.go
package benchmarks

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/erp-admin/internal/core/domain"
)

var itemNames = []string{
	"Consulting hours",
	"Implementation package",
	"Annual support",
	"Training session",
	"Hardware kit",
	"License seat",
}

// createLineItems builds n items with fractional prices so decimal
// arithmetic does real work.
func createLineItems(n int) []domain.LineItem {
	items := make([]domain.LineItem, n)
	for i := range items {
		items[i] = domain.LineItem{
			ItemName: itemNames[i%len(itemNames)],
			Quantity: decimal.NewFromInt(int64(1 + i%7)),
			Price:    decimal.New(int64(1999+i*37), -2),
			Discount: decimal.New(int64(i%5*125), -2),
			Tax:      decimal.New(int64(i%3*80), -2),
		}
	}
	return items
}

func createInvoice(items int) *domain.Invoice {
	issue := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	inv := &domain.Invoice{
		ID:            uuid.New(),
		InvoiceNumber: domain.FormatInvoiceNumber(issue, 1),
		ClientName:    "Benchmark Holdings",
		ClientEmail:   "ap@benchmark.test",
		IssueDate:     issue,
		DueDate:       issue.AddDate(0, 0, 30),
		Status:        domain.InvoiceStatusUnpaid,
		Currency:      domain.DefaultCurrency,
		Items:         createLineItems(items),
	}
	inv.CalculateTotals()
	return inv
}

func createLeads(n int) []*domain.Lead {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	leads := make([]*domain.Lead, n)
	for i := range leads {
		leads[i] = &domain.Lead{
			ID:             uuid.New(),
			Company:        fmt.Sprintf("Company %d", i),
			ContactName:    fmt.Sprintf("Contact %d", i),
			Email:          fmt.Sprintf("contact%d@bench.test", i),
			Status:         domain.LeadStatuses[i%len(domain.LeadStatuses)],
			Priority:       domain.LeadPriorities[i%len(domain.LeadPriorities)],
			Source:         "Website",
			EstimatedValue: decimal.NewFromInt(int64(1000 + i)),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}
	return leads
}
