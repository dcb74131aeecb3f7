package audit

import "context"

// ActionDeadlineNotificationSent is recorded once per successfully sent
// deadline-alert email.
const ActionDeadlineNotificationSent = "deadline_notification_sent"

// Logger appends audit records. Writes are fire-and-forget from the
// dispatcher's perspective: a failed append never blocks or rolls back the
// send it annotates.
type Logger interface {
	Append(ctx context.Context, action string, staffID, officeID int64, details map[string]any) error
}
