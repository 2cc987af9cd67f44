// Copyright 2026 The Bot Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ruJakara/bot-project/internal/reminder"
)

// ReminderRepository implements reminder.Repository
type ReminderRepository struct {
	db *DB
}

// NewReminderRepository creates a new reminder repository
func NewReminderRepository(db *DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

const reminderColumns = "id, tg_id, tenant_id, bot_id, enabled, mode, next_remind_at, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*reminder.Reminder, error) {
	var r reminder.Reminder
	if err := row.Scan(
		&r.ID, &r.TgID, &r.TenantID, &r.BotID,
		&r.Enabled, &r.Mode, &r.NextRemindAt, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByIdentity fetches the single row for (tgID, tenantID, botID)
func (repo *ReminderRepository) GetByIdentity(ctx context.Context, tgID int64, tenantID, botID string) (*reminder.Reminder, error) {
	row := repo.db.pool.QueryRow(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE tg_id = $1 AND tenant_id = $2 AND bot_id = $3
	`, tgID, tenantID, botID)

	r, err := scanReminder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reminder.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

// Upsert inserts the row or resets the existing one for the same
// identity. The unique constraint on (tg_id, tenant_id, bot_id) is what
// makes a duplicate row impossible.
func (repo *ReminderRepository) Upsert(ctx context.Context, r *reminder.Reminder) error {
	row := repo.db.pool.QueryRow(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT reminders_identity DO UPDATE SET
			enabled        = EXCLUDED.enabled,
			mode           = EXCLUDED.mode,
			next_remind_at = EXCLUDED.next_remind_at,
			updated_at     = EXCLUDED.updated_at
		RETURNING id, created_at
	`, r.ID, r.TgID, r.TenantID, r.BotID, r.Enabled, r.Mode, r.NextRemindAt, r.CreatedAt, r.UpdatedAt)

	// The stored row keeps its original id and created_at on conflict
	if err := row.Scan(&r.ID, &r.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert reminder: %w", err)
	}
	return nil
}

// ListDue returns enabled rows whose time has passed for the tenant/bot
func (repo *ReminderRepository) ListDue(ctx context.Context, tenantID, botID string, now time.Time) ([]*reminder.Reminder, error) {
	rows, err := repo.db.pool.Query(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE tenant_id = $1 AND bot_id = $2 AND enabled AND next_remind_at <= $3
		ORDER BY next_remind_at
	`, tenantID, botID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer rows.Close()

	var due []*reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		due = append(due, r)
	}
	return due, rows.Err()
}

// InBatch runs fn inside one transaction; the whole batch commits
// atomically or rolls back.
func (repo *ReminderRepository) InBatch(ctx context.Context, fn func(b reminder.Batch) error) error {
	return pgx.BeginFunc(ctx, repo.db.pool, func(tx pgx.Tx) error {
		return fn(&reminderBatch{tx: tx})
	})
}

// reminderBatch is the transactional view handed to due processing
type reminderBatch struct {
	tx pgx.Tx
}

func (b *reminderBatch) GetByIdentity(ctx context.Context, tgID int64, tenantID, botID string) (*reminder.Reminder, error) {
	row := b.tx.QueryRow(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE tg_id = $1 AND tenant_id = $2 AND bot_id = $3
		FOR UPDATE
	`, tgID, tenantID, botID)

	r, err := scanReminder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, reminder.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

func (b *reminderBatch) Update(ctx context.Context, r *reminder.Reminder) error {
	result, err := b.tx.Exec(ctx, `
		UPDATE reminders
		SET enabled = $2, mode = $3, next_remind_at = $4, updated_at = $5
		WHERE id = $1
	`, r.ID, r.Enabled, r.Mode, r.NextRemindAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	if result.RowsAffected() == 0 {
		return reminder.ErrNotFound
	}
	return nil
}
