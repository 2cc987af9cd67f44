package reminder

import "time"

// ModeDate is the only scheduling mode currently supported: fire once at
// a fixed time. Rescheduling/snooze would be a new mode.
const ModeDate = "date"

// Reminder is the per-user reminder row. At most one row exists per
// (TgID, TenantID, BotID); re-enabling resets NextRemindAt on the
// existing row instead of inserting a duplicate.
type Reminder struct {
	ID           string    `json:"id"`
	TgID         int64     `json:"tg_id"`
	TenantID     string    `json:"tenant_id"`
	BotID        string    `json:"bot_id"`
	Enabled      bool      `json:"enabled"`
	Mode         string    `json:"mode"`
	NextRemindAt time.Time `json:"next_remind_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Due reports whether the reminder still needs processing at the given
// instant.
func (r *Reminder) Due(now time.Time) bool {
	return r.Enabled && !r.NextRemindAt.After(now)
}
