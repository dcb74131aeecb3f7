package office

import (
	"database/sql"
	"time"
)

// Office is a welfare facility location.
type Office struct {
	ID        int64
	Name      string
	DeletedAt sql.NullTime
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Staff is a facility staff member. Email is optional; staff without a
// known address are skipped by the notification dispatcher.
type Staff struct {
	ID        int64
	FirstName string
	LastName  string
	Email     sql.NullString
	DeletedAt sql.NullTime
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName renders family name first.
func (s *Staff) FullName() string {
	return s.LastName + " " + s.FirstName
}
