package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresAuditLogger appends rows to the audit_logs table. Rows are never
// updated or deleted by this engine.
type PostgresAuditLogger struct {
	db *sql.DB
}

func NewPostgresAuditLogger(db *sql.DB) *PostgresAuditLogger {
	return &PostgresAuditLogger{db: db}
}

func (l *PostgresAuditLogger) Append(ctx context.Context, action string, staffID, officeID int64, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("error marshaling audit details: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_logs (action, staff_id, office_id, details) VALUES ($1, $2, $3, $4)`,
		action, staffID, officeID, payload)
	if err != nil {
		return fmt.Errorf("error appending audit log: %w", err)
	}
	return nil
}
