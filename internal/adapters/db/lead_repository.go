// internal/adapters/db/lead_repository.go
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

var leadColumns = []string{
	"l.id", "l.company", "l.contact_name", "l.email", "l.phone", "l.status", "l.priority",
	"l.assigned_to", "COALESCE(e.name, '')", "l.last_contact", "l.source", "l.estimated_value",
	"l.notes", "l.created_at", "l.updated_at", "l.deleted_at",
}

var leadSort = sortColumns{
	columns: map[string]string{
		"id":              "l.id",
		"company":         "l.company",
		"status":          "l.status",
		"priority":        "CASE l.priority WHEN 'High' THEN 3 WHEN 'Medium' THEN 2 ELSE 1 END",
		"last_contact":    "l.last_contact",
		"estimated_value": "l.estimated_value",
		"created_at":      "l.created_at",
	},
	fallback: "l.created_at",
}

// leadRepository implements ports.LeadRepository
type leadRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *Database, logger *slog.Logger) ports.LeadRepository {
	return &leadRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "lead")),
	}
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	l := &domain.Lead{}
	err := row.Scan(
		&l.ID, &l.Company, &l.ContactName, &l.Email, &l.Phone, &l.Status, &l.Priority,
		&l.AssignedTo, &l.AssigneeName, &l.LastContact, &l.Source, &l.EstimatedValue,
		&l.Notes, &l.CreatedAt, &l.UpdatedAt, &l.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func leadSelect() squirrel.SelectBuilder {
	return psql.Select(leadColumns...).
		From("leads l").
		LeftJoin("employees e ON e.id = l.assigned_to")
}

// Create inserts a new lead
func (r *leadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	query := `
		INSERT INTO leads (
			id, company, contact_name, email, phone, status, priority, assigned_to,
			last_contact, source, estimated_value, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.Exec(ctx, query,
		lead.ID, lead.Company, lead.ContactName, lead.Email, lead.Phone, lead.Status, lead.Priority,
		lead.AssignedTo, lead.LastContact, lead.Source, lead.EstimatedValue, lead.Notes,
		lead.CreatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return mapError("create lead", err)
	}

	r.logger.DebugContext(ctx, "lead created", slog.String("lead_id", lead.ID.String()))
	return nil
}

// Update replaces the mutable fields of a lead
func (r *leadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	query := `
		UPDATE leads SET
			company = $2, contact_name = $3, email = $4, phone = $5, status = $6,
			priority = $7, assigned_to = $8, last_contact = $9, source = $10,
			estimated_value = $11, notes = $12, updated_at = $13
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := r.db.Exec(ctx, query,
		lead.ID, lead.Company, lead.ContactName, lead.Email, lead.Phone, lead.Status,
		lead.Priority, lead.AssignedTo, lead.LastContact, lead.Source,
		lead.EstimatedValue, lead.Notes, lead.UpdatedAt,
	)
	if err != nil {
		return mapError("update lead", err)
	}
	return expectOne(tag, "update lead")
}

// FindByID retrieves a live lead with its assignee name
func (r *leadRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	sqlStr, args, err := leadSelect().
		Where(squirrel.Eq{"l.id": id}).
		Where("l.deleted_at IS NULL").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lead query: %w", err)
	}

	lead, err := scanLead(r.db.QueryRow(ctx, sqlStr, args...))
	if err != nil {
		return nil, mapError("find lead", err)
	}
	return lead, nil
}

func leadFilterQuery(qb squirrel.SelectBuilder, filter domain.LeadFilter) squirrel.SelectBuilder {
	qb = qb.Where("l.deleted_at IS NULL")
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		qb = qb.Where(squirrel.Or{
			squirrel.ILike{"l.company": pattern},
			squirrel.ILike{"l.contact_name": pattern},
			squirrel.ILike{"l.email": pattern},
			squirrel.ILike{"l.phone": pattern},
		})
	}
	if filter.Status != "" {
		qb = qb.Where(squirrel.Eq{"l.status": filter.Status})
	}
	if filter.Priority != "" {
		qb = qb.Where(squirrel.Eq{"l.priority": filter.Priority})
	}
	if filter.AssignedTo != nil {
		qb = qb.Where(squirrel.Eq{"l.assigned_to": *filter.AssignedTo})
	}
	return qb
}

func buildLeadList(filter domain.LeadFilter, params domain.ListParams) (squirrel.SelectBuilder, squirrel.SelectBuilder) {
	list := leadFilterQuery(leadSelect(), filter).OrderBy(leadSort.orderBy(params)...)
	count := leadFilterQuery(psql.Select("COUNT(*)").From("leads l"), filter)
	return paginate(list, params), count
}

// List returns one page of leads plus the total matching count
func (r *leadRepository) List(ctx context.Context, filter domain.LeadFilter, params domain.ListParams) ([]*domain.Lead, int64, error) {
	listQb, countQb := buildLeadList(filter, params)

	total, err := countRows(ctx, r.db, countQb)
	if err != nil {
		return nil, 0, mapError("count leads", err)
	}

	leads, err := r.query(ctx, listQb)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

// ListAll returns every matching lead without paging
func (r *leadRepository) ListAll(ctx context.Context, filter domain.LeadFilter, params domain.ListParams) ([]*domain.Lead, error) {
	return r.query(ctx, leadFilterQuery(leadSelect(), filter).OrderBy(leadSort.orderBy(params)...))
}

func (r *leadRepository) query(ctx context.Context, qb squirrel.SelectBuilder) ([]*domain.Lead, error) {
	sqlStr, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lead list: %w", err)
	}
	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, mapError("list leads", err)
	}
	leads, err := collect(rows, scanLead)
	if err != nil {
		return nil, mapError("scan leads", err)
	}
	return leads, nil
}

// SoftDelete marks a lead as deleted
func (r *leadRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE leads SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`,
		id, now)
	if err != nil {
		return mapError("delete lead", err)
	}
	if err := expectOne(tag, "delete lead"); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "lead soft deleted", slog.String("lead_id", id.String()))
	return nil
}

// Stats aggregates live leads by status and priority
func (r *leadRepository) Stats(ctx context.Context) (*domain.LeadStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, priority, COUNT(*), COALESCE(SUM(estimated_value), 0)
		FROM leads
		WHERE deleted_at IS NULL
		GROUP BY status, priority`)
	if err != nil {
		return nil, mapError("lead stats", err)
	}
	defer rows.Close()

	stats := domain.NewLeadStats()
	for rows.Next() {
		var (
			status   domain.LeadStatus
			priority domain.LeadPriority
			count    int64
			value    decimal.Decimal
		)
		if err := rows.Scan(&status, &priority, &count, &value); err != nil {
			return nil, fmt.Errorf("scan lead stats: %w", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count
		stats.TotalEstimatedValue = stats.TotalEstimatedValue.Add(value)
		if status == domain.LeadStatusConverted {
			stats.ConvertedValue = stats.ConvertedValue.Add(value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lead stats: %w", err)
	}

	stats.ComputeConversionRate()
	stats.GeneratedAt = time.Now().UTC()
	return stats, nil
}
