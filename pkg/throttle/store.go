package throttle

import (
	"context"
	"time"

	"github.com/cloudops-tools/quota-notifier/pkg/model"
)

// Store is the persisted per-recipient send log that gates duplicate
// notifications. It is the only mutable shared state in the alerting core;
// all access goes through these operations.
//
// Callers must serialize ShouldSend and the matching RecordSend for a given
// email against other check/record pairs for the same email; the dispatcher
// does this with a per-key lock.
type Store interface {
	// ShouldSend reports whether the recipient may be notified: true when no
	// record exists or when now minus the last send is at least cooldown
	// (boundary inclusive).
	ShouldSend(ctx context.Context, email string, now time.Time, cooldown time.Duration) (bool, error)

	// RecordSend upserts the last-sent timestamp for the recipient.
	RecordSend(ctx context.Context, email string, now time.Time) error

	// List returns all throttle records, ordered by email.
	List(ctx context.Context) ([]model.ThrottleRecord, error)

	// Reset deletes the record for one recipient, making them immediately
	// eligible again. Resetting an unknown email is not an error.
	Reset(ctx context.Context, email string) error

	// Close releases resources.
	Close() error
}
