package mail

import "context"

// Message is one composed deadline-alert email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a single message. Failures are treated as transient by
// the dispatcher and retried under its backoff policy; implementations
// should not retry internally.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
