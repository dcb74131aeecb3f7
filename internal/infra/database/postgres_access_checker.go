package database

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresAccessChecker answers office membership questions from the
// office_staffs association table.
type PostgresAccessChecker struct {
	db *sql.DB
}

func NewPostgresAccessChecker(db *sql.DB) *PostgresAccessChecker {
	return &PostgresAccessChecker{db: db}
}

func (c *PostgresAccessChecker) CanAccessOffice(ctx context.Context, staffID, officeID int64) (bool, error) {
	var count int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM office_staffs os
          JOIN staffs s ON s.id = os.staff_id
          WHERE os.staff_id = $1 AND os.office_id = $2 AND s.deleted_at IS NULL`,
		staffID, officeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking office access: %w", err)
	}
	return count > 0, nil
}
