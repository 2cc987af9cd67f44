package postgres

import (
	"context"
	"fmt"

	"github.com/ruJakara/bot-project/internal/track"
)

// EventRepository implements track.EventRepository
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert appends one analytics event. Events are write-once: there is no
// update or delete path.
func (repo *EventRepository) Insert(ctx context.Context, event *track.Event) error {
	var meta any
	if len(event.Meta) > 0 {
		meta = event.Meta
	}

	_, err := repo.db.pool.Exec(ctx, `
		INSERT INTO events (id, ts, tenant_id, bot_id, tg_id, event_name, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, event.ID, event.TS, event.TenantID, event.BotID, event.TgID, event.Name, meta)

	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}
