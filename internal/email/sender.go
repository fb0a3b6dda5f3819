package email

import "context"

// Sender delivers transactional email: claim codes and match notifications.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
