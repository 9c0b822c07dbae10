package dispatch

import "context"

// Channel delivers one rendered notification. Exactly one channel is active
// per deployment; there is no runtime fallback between channels.
type Channel interface {
	// Name returns the channel identifier.
	Name() string

	// Send delivers the message. Implementations must be safe for
	// concurrent use.
	Send(ctx context.Context, from, to, subject, body string) error
}
