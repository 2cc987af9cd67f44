package reminder

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no reminder row exists for an identity.
var ErrNotFound = errors.New("reminder not found")

// Repository defines the interface for reminder storage
type Repository interface {
	// GetByIdentity fetches the single row for (tgID, tenantID, botID).
	GetByIdentity(ctx context.Context, tgID int64, tenantID, botID string) (*Reminder, error)
	// Upsert inserts the row or, when the identity already exists, resets
	// enabled/mode/next_remind_at/updated_at on the existing row. The
	// stored row (with its original id and created_at) is written back
	// into r.
	Upsert(ctx context.Context, r *Reminder) error
	// ListDue returns enabled rows with next_remind_at <= now for the
	// tenant/bot. Pure read.
	ListDue(ctx context.Context, tenantID, botID string, now time.Time) ([]*Reminder, error)
	// InBatch runs fn against a transactional view; all writes made
	// through the Batch commit together or not at all.
	InBatch(ctx context.Context, fn func(b Batch) error) error
}

// Batch is the transactional slice of the repository used by due
// processing.
type Batch interface {
	GetByIdentity(ctx context.Context, tgID int64, tenantID, botID string) (*Reminder, error)
	Update(ctx context.Context, r *Reminder) error
}
