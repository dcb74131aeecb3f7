package database

import (
	"context"
	"database/sql"
	"fmt"

	"support_plan_notifier/internal/domain/office"
)

var ErrOfficeNotFound = fmt.Errorf("office not found")

type PostgresOfficeRepository struct {
	db *sql.DB
}

func NewPostgresOfficeRepository(db *sql.DB) *PostgresOfficeRepository {
	return &PostgresOfficeRepository{db: db}
}

func (r *PostgresOfficeRepository) GetByID(ctx context.Context, id int64) (*office.Office, error) {
	query := `SELECT id, name, deleted_at, created_at, updated_at FROM offices WHERE id = $1`
	o := &office.Office{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&o.ID, &o.Name, &o.DeletedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOfficeNotFound
		}
		return nil, fmt.Errorf("error getting office by ID: %w", err)
	}
	return o, nil
}

func (r *PostgresOfficeRepository) ListActive(ctx context.Context) ([]*office.Office, error) {
	query := `SELECT id, name, deleted_at, created_at, updated_at
               FROM offices WHERE deleted_at IS NULL ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active offices: %w", err)
	}
	defer rows.Close()

	offices := make([]*office.Office, 0)
	for rows.Next() {
		o := &office.Office{}
		if err := rows.Scan(&o.ID, &o.Name, &o.DeletedAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning office: %w", err)
		}
		offices = append(offices, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offices: %w", err)
	}
	return offices, nil
}

func (r *PostgresOfficeRepository) ListNotifiableStaff(ctx context.Context, officeID int64) ([]*office.Staff, error) {
	query := `SELECT s.id, s.first_name, s.last_name, s.email, s.deleted_at, s.created_at, s.updated_at
               FROM staffs s
               JOIN office_staffs os ON os.staff_id = s.id
               WHERE os.office_id = $1 AND s.deleted_at IS NULL AND s.email IS NOT NULL
               ORDER BY s.id`
	rows, err := r.db.QueryContext(ctx, query, officeID)
	if err != nil {
		return nil, fmt.Errorf("error listing notifiable staff for office %d: %w", officeID, err)
	}
	defer rows.Close()

	staffs := make([]*office.Staff, 0)
	for rows.Next() {
		s := &office.Staff{}
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.DeletedAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning staff: %w", err)
		}
		staffs = append(staffs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating staff: %w", err)
	}
	return staffs, nil
}
