package recipient

import "context"

// Repository defines persistence operations for Recipient entities.
type Repository interface {
	Create(ctx context.Context, r *Recipient) error
	GetByID(ctx context.Context, id int64) (*Recipient, error)
	ListActiveByOffice(ctx context.Context, officeID int64) ([]*Recipient, error)
}
