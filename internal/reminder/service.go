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

package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ruJakara/bot-project/internal/observability/logger"
	"github.com/ruJakara/bot-project/internal/track"
)

// DefaultMonthLength is the fixed 30-day month used when converting
// "N months from now" into a timestamp. Not calendar-accurate on purpose.
const DefaultMonthLength = 30 * 24 * time.Hour

// Service drives the per-user reminder state machine:
// absent → enabled(next_remind_at) → disabled (after firing).
type Service struct {
	tenantID    string
	botID       string
	repo        Repository
	tracker     track.Tracker
	monthLength time.Duration
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMonthLength overrides the month approximation.
func WithMonthLength(d time.Duration) Option {
	return func(s *Service) { s.monthLength = d }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a reminder service bound to one tenant/bot identity.
func NewService(tenantID, botID string, repo Repository, tracker track.Tracker, opts ...Option) *Service {
	if tracker == nil {
		tracker = track.NewSlogTracker()
	}
	s := &Service{
		tenantID:    tenantID,
		botID:       botID,
		repo:        repo,
		tracker:     tracker,
		monthLength: DefaultMonthLength,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enable switches the reminder on for a user, months x 30 days from now.
// Re-enabling resets next_remind_at on the existing row; the identity
// never gains a second row.
func (s *Service) Enable(ctx context.Context, tgID int64, months int) (*Reminder, error) {
	if months <= 0 {
		return nil, fmt.Errorf("months must be positive, got %d", months)
	}

	now := s.now().UTC()
	r := &Reminder{
		ID:           newReminderID(),
		TgID:         tgID,
		TenantID:     s.tenantID,
		BotID:        s.botID,
		Enabled:      true,
		Mode:         ModeDate,
		NextRemindAt: now.Add(time.Duration(months) * s.monthLength),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Upsert(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to enable reminder: %w", err)
	}

	s.tracker.Track(ctx, track.EventReminderEnabled, tgID, map[string]any{
		"mode":           r.Mode,
		"months":         months,
		"next_remind_at": r.NextRemindAt.Format(time.RFC3339),
	})
	return r, nil
}

// ListDue returns the enabled reminders of this tenant/bot whose time has
// passed. Pure read, no mutation.
func (s *Service) ListDue(ctx context.Context, now time.Time) ([]*Reminder, error) {
	return s.repo.ListDue(ctx, s.tenantID, s.botID, now)
}

// ProcessDue fires every due reminder and returns the count actually
// processed. The listing is advisory: inside the batch transaction each
// row is re-fetched by identity and skipped if it is no longer enabled,
// so repeated invocations (scheduler tick, manual trigger, restart) are
// safe — the enabled flag is the single source of truth.
//
// The batch commits atomically. A crash before commit leaves every row
// enabled and the batch is simply reprocessed on the next run, which may
// re-emit reminder.sent events: delivery is at-least-once, not
// exactly-once.
func (s *Service) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.ListDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list due reminders: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	count := 0
	err = s.repo.InBatch(ctx, func(b Batch) error {
		for _, listed := range due {
			r, err := b.GetByIdentity(ctx, listed.TgID, listed.TenantID, listed.BotID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !r.Enabled {
				// Already handled by a concurrent run between listing and now
				continue
			}

			s.tracker.Track(ctx, track.EventReminderSent, r.TgID, map[string]any{
				"mode":        r.Mode,
				"reminder_id": r.ID,
			})

			r.Enabled = false
			r.UpdatedAt = now.UTC()
			if err := b.Update(ctx, r); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to process due reminders: %w", err)
	}

	if count > 0 {
		slog.InfoContext(ctx, "processed due reminders",
			logger.Component("reminder"), slog.Int("count", count))
	}
	return count, nil
}

func newReminderID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
