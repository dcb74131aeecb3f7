package office

import "context"

// Repository defines persistence operations for offices and their staff.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Office, error)
	// ListActive returns all non-deleted offices in enumeration order.
	ListActive(ctx context.Context) ([]*Office, error)
	// ListNotifiableStaff returns non-deleted staff of the office that have
	// a known email address.
	ListNotifiableStaff(ctx context.Context, officeID int64) ([]*Staff, error)
}
