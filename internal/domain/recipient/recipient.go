package recipient

import "time"

// Recipient represents a welfare recipient registered at an office.
type Recipient struct {
	ID        int64
	OfficeID  int64
	FirstName string
	LastName  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName renders the display name the way the facility writes it,
// family name first.
func (r *Recipient) FullName() string {
	return r.LastName + " " + r.FirstName
}
