package database

import (
	"context"
	"database/sql"
	"fmt"

	"support_plan_notifier/internal/domain/recipient"
)

var ErrRecipientNotFound = fmt.Errorf("welfare recipient not found")

type PostgresRecipientRepository struct {
	db *sql.DB
}

func NewPostgresRecipientRepository(db *sql.DB) *PostgresRecipientRepository {
	return &PostgresRecipientRepository{db: db}
}

func (r *PostgresRecipientRepository) Create(ctx context.Context, rec *recipient.Recipient) error {
	query := `INSERT INTO welfare_recipients (office_id, first_name, last_name, is_active)
               VALUES ($1, $2, $3, $4)
               RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, rec.OfficeID, rec.FirstName, rec.LastName, rec.IsActive).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating welfare recipient: %w", err)
	}
	return nil
}

func (r *PostgresRecipientRepository) GetByID(ctx context.Context, id int64) (*recipient.Recipient, error) {
	query := `SELECT id, office_id, first_name, last_name, is_active, created_at, updated_at
               FROM welfare_recipients WHERE id = $1`
	rec := &recipient.Recipient{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&rec.ID, &rec.OfficeID, &rec.FirstName, &rec.LastName, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("error getting welfare recipient by ID: %w", err)
	}
	return rec, nil
}

func (r *PostgresRecipientRepository) ListActiveByOffice(ctx context.Context, officeID int64) ([]*recipient.Recipient, error) {
	query := `SELECT id, office_id, first_name, last_name, is_active, created_at, updated_at
               FROM welfare_recipients WHERE office_id = $1 AND is_active = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, officeID)
	if err != nil {
		return nil, fmt.Errorf("error listing active recipients: %w", err)
	}
	defer rows.Close()

	recipients := make([]*recipient.Recipient, 0)
	for rows.Next() {
		rec := &recipient.Recipient{}
		if err := rows.Scan(&rec.ID, &rec.OfficeID, &rec.FirstName, &rec.LastName, &rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning recipient: %w", err)
		}
		recipients = append(recipients, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipients: %w", err)
	}
	return recipients, nil
}
