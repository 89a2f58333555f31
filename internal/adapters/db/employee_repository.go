// internal/adapters/db/employee_repository.go
package db

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/erp-admin/internal/core/domain"
	"github.com/ammerola/erp-admin/internal/core/ports"
)

const employeeSelect = `SELECT id, name, email, department, active, created_at FROM employees`

type employeeRepository struct {
	db     *Database
	logger *slog.Logger
}

// NewEmployeeRepository creates a new employee repository
func NewEmployeeRepository(db *Database, logger *slog.Logger) ports.EmployeeRepository {
	return &employeeRepository{
		db:     db,
		logger: logger.With(slog.String("repository", "employee")),
	}
}

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	e := &domain.Employee{}
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Department, &e.Active, &e.CreatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *employeeRepository) Create(ctx context.Context, e *domain.Employee) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO employees (id, name, email, department, active, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Name, e.Email, e.Department, e.Active, e.CreatedAt)
	return mapError("create employee", err)
}

func (r *employeeRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Employee, error) {
	e, err := scanEmployee(r.db.QueryRow(ctx, employeeSelect+` WHERE id = $1`, id))
	if err != nil {
		return nil, mapError("find employee", err)
	}
	return e, nil
}

func (r *employeeRepository) ListActive(ctx context.Context) ([]*domain.Employee, error) {
	rows, err := r.db.Query(ctx, employeeSelect+` WHERE active ORDER BY name, id`)
	if err != nil {
		return nil, mapError("list active employees", err)
	}
	return collect(rows, scanEmployee)
}

func (r *employeeRepository) ListAll(ctx context.Context) ([]*domain.Employee, error) {
	rows, err := r.db.Query(ctx, employeeSelect+` ORDER BY name, id`)
	if err != nil {
		return nil, mapError("list employees", err)
	}
	return collect(rows, scanEmployee)
}
