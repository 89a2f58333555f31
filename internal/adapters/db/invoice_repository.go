// internal/adapters/db/invoice_repository.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

var invoiceColumns = []string{
	"id", "invoice_number", "client_name", "client_email", "issue_date", "due_date",
	"status", "currency", "notes", "items", "subtotal", "discount_total", "tax_total",
	"amount", "pdf_key", "pdf_rendered_at", "created_at", "updated_at", "deleted_at",
}

var invoiceSort = sortColumns{
	columns: map[string]string{
		"invoice_number": "invoice_number",
		"client_name":    "client_name",
		"issue_date":     "issue_date",
		"due_date":       "due_date",
		"amount":         "amount",
		"status":         "status",
		"created_at":     "created_at",
	},
	fallback: "created_at",
}

// invoiceRepository implements ports.InvoiceRepository
type invoiceRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *Database, logger *slog.Logger) ports.InvoiceRepository {
	return &invoiceRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "invoice")),
	}
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.ClientName, &inv.ClientEmail, &inv.IssueDate, &inv.DueDate,
		&inv.Status, &inv.Currency, &inv.Notes, &inv.Items, &inv.Subtotal, &inv.DiscountTotal, &inv.TaxTotal,
		&inv.Amount, &inv.PDFKey, &inv.PDFRenderedAt, &inv.CreatedAt, &inv.UpdatedAt, &inv.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	if inv.Items == nil {
		inv.Items = []domain.LineItem{}
	}
	return inv, nil
}

// Create inserts a new invoice
func (r *invoiceRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `
		INSERT INTO invoices (
			id, invoice_number, client_name, client_email, issue_date, due_date,
			status, currency, notes, items, subtotal, discount_total, tax_total,
			amount, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := r.db.Exec(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.ClientName, inv.ClientEmail, inv.IssueDate, inv.DueDate,
		inv.Status, inv.Currency, inv.Notes, inv.Items, inv.Subtotal, inv.DiscountTotal, inv.TaxTotal,
		inv.Amount, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return mapError("create invoice", err)
	}

	r.logger.DebugContext(ctx, "invoice created",
		slog.String("invoice_id", inv.ID.String()),
		slog.String("invoice_number", inv.InvoiceNumber))

	return nil
}

// Update replaces the mutable fields of an invoice
func (r *invoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	query := `
		UPDATE invoices SET
			invoice_number = $2, client_name = $3, client_email = $4, issue_date = $5,
			due_date = $6, status = $7, currency = $8, notes = $9, items = $10,
			subtotal = $11, discount_total = $12, tax_total = $13, amount = $14,
			updated_at = $15
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.ClientName, inv.ClientEmail, inv.IssueDate,
		inv.DueDate, inv.Status, inv.Currency, inv.Notes, inv.Items,
		inv.Subtotal, inv.DiscountTotal, inv.TaxTotal, inv.Amount,
		inv.UpdatedAt,
	)
	if err != nil {
		return mapError("update invoice", err)
	}
	return expectOne(tag, "update invoice")
}

// UpdateStatus changes only the status column
func (r *invoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.InvoiceStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = $3 WHERE id = $1 AND deleted_at IS NULL`,
		id, status, time.Now().UTC())
	if err != nil {
		return mapError("update invoice status", err)
	}
	return expectOne(tag, "update invoice status")
}

// SetPDF records where the rendered PDF lives
func (r *invoiceRepository) SetPDF(ctx context.Context, id uuid.UUID, key string, renderedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET pdf_key = $2, pdf_rendered_at = $3 WHERE id = $1 AND deleted_at IS NULL`,
		id, key, renderedAt)
	if err != nil {
		return mapError("set invoice pdf", err)
	}
	return expectOne(tag, "set invoice pdf")
}

// FindByID retrieves a live invoice
func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	sqlStr, args, err := psql.Select(invoiceColumns...).
		From("invoices").
		Where(squirrel.Eq{"id": id}).
		Where("deleted_at IS NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build invoice query: %w", err)
	}

	inv, err := scanInvoice(r.db.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError("find invoice", err)
	}
	return inv, nil
}

func invoiceFilterQuery(qb squirrel.SelectBuilder, filter domain.InvoiceFilter) squirrel.SelectBuilder {
	qb = qb.Where("deleted_at IS NULL")
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		qb = qb.Where(squirrel.Or{
			squirrel.ILike{"invoice_number": pattern},
			squirrel.ILike{"client_name": pattern},
			squirrel.ILike{"client_email": pattern},
		})
	}
	if filter.Status != "" {
		qb = qb.Where(squirrel.Eq{"status": filter.Status})
	}
	return qb
}

func buildInvoiceList(filter domain.InvoiceFilter, params domain.ListParams) (squirrel.SelectBuilder, squirrel.SelectBuilder) {
	list := invoiceFilterQuery(psql.Select(invoiceColumns...).From("invoices"), filter).
		OrderBy(invoiceSort.orderBy(params)...)
	count := invoiceFilterQuery(psql.Select("COUNT(*)").From("invoices"), filter)
	return paginate(list, params), count
}

// List returns one page of invoices plus the total matching count
func (r *invoiceRepository) List(ctx context.Context, filter domain.InvoiceFilter, params domain.ListParams) ([]*domain.Invoice, int64, error) {
	listQb, countQb := buildInvoiceList(filter, params)

	total, err := countRows(ctx, r.db, countQb)
	if err != nil {
		return nil, 0, mapError("count invoices", err)
	}

	sqlStr, args, err := listQb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build invoice list: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, 0, mapError("list invoices", err)
	}
	invoices, err := collect(rows, scanInvoice)
	if err != nil {
		return nil, 0, mapError("scan invoices", err)
	}
	return invoices, total, nil
}

// ListAll returns every live invoice, newest first
func (r *invoiceRepository) ListAll(ctx context.Context) ([]*domain.Invoice, error) {
	sqlStr, args, err := psql.Select(invoiceColumns...).
		From("invoices").
		Where("deleted_at IS NULL").
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build invoice export: %w", err)
	}

	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError("list all invoices", err)
	}
	return collect(rows, scanInvoice)
}

// SoftDelete marks an invoice as deleted
func (r *invoiceRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, now)
	if err != nil {
		return mapError("delete invoice", err)
	}
	if err := expectOne(tag, "delete invoice"); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "invoice soft deleted", slog.String("invoice_id", id.String()))
	return nil
}

// NextSequence atomically allocates the next invoice number for day
func (r *invoiceRepository) NextSequence(ctx context.Context, day time.Time) (int64, error) {
	query := `
		INSERT INTO invoice_sequences (day, last_value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		RETURNING last_value`

	var seq int64
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if err := r.db.QueryRow(ctx, query, d).Scan(&seq); err != nil {
		return 0, mapError("next invoice sequence", err)
	}
	return seq, nil
}

// MarkOverdue flips unpaid invoices whose due date has passed
func (r *invoiceRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE invoices SET status = $1, updated_at = $3
		WHERE status = $2 AND due_date < $3::date AND deleted_at IS NULL`,
		domain.InvoiceStatusOverdue, domain.InvoiceStatusUnpaid, now.UTC())
	if err != nil {
		return 0, mapError("mark overdue invoices", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		r.logger.InfoContext(ctx, "invoices marked overdue", slog.Int64("count", n))
	}
	return tag.RowsAffected(), nil
}

// SummarizeByStatus counts and sums live invoices per status
func (r *invoiceRepository) SummarizeByStatus(ctx context.Context) (map[domain.InvoiceStatus]ports.InvoiceStatusSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(amount), 0)
		FROM invoices
		WHERE deleted_at IS NULL
		GROUP BY status`)
	if err != nil {
		return nil, mapError("summarize invoices", err)
	}
	defer rows.Close()

	summary := map[domain.InvoiceStatus]ports.InvoiceStatusSummary{
		domain.InvoiceStatusDraft:   {Amount: decimal.Zero},
		domain.InvoiceStatusUnpaid:  {Amount: decimal.Zero},
		domain.InvoiceStatusPaid:    {Amount: decimal.Zero},
		domain.InvoiceStatusOverdue: {Amount: decimal.Zero},
	}
	for rows.Next() {
		var (
			status domain.InvoiceStatus
			s      ports.InvoiceStatusSummary
		)
		if err := rows.Scan(&status, &s.Count, &s.Amount); err != nil {
			return nil, fmt.Errorf("scan invoice summary: %w", err)
		}
		summary[status] = s
	}
	return summary, rows.Err()
}
