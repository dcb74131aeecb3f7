package access

import "context"

// Checker answers whether a staff member may act on a given office's data.
// The intake gate surfaces a deny as an access-denied error.
type Checker interface {
	CanAccessOffice(ctx context.Context, staffID, officeID int64) (bool, error)
}
