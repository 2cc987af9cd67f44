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

package track

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Well-known event names
const (
	EventReminderEnabled = "reminder.enabled"
	EventReminderSent    = "reminder.sent"
)

// Event is one append-only analytics record. Rows are written once and
// never updated or deleted.
type Event struct {
	ID       string
	TS       time.Time
	TenantID string
	BotID    string
	TgID     int64
	Name     string
	Meta     []byte
}

// Tracker records a structured analytics event. Track returns nothing:
// by construction it cannot fail the caller, so it is safe to call inline
// on any request path. Failures degrade telemetry, never functionality.
type Tracker interface {
	Track(ctx context.Context, name string, tgID int64, meta map[string]any)
}

// EventRepository appends events to storage.
type EventRepository interface {
	Insert(ctx context.Context, event *Event) error
}

// Service persists events tagged with the process-wide tenant/bot
// identity. Every internal failure is logged at warn and swallowed.
type Service struct {
	tenantID string
	botID    string
	repo     EventRepository
}

// NewService creates a storage-backed tracker.
func NewService(tenantID, botID string, repo EventRepository) *Service {
	return &Service{tenantID: tenantID, botID: botID, repo: repo}
}

// Track records one event.
func (s *Service) Track(ctx context.Context, name string, tgID int64, meta map[string]any) {
	var metaJSON []byte
	if len(meta) > 0 {
		encoded, err := json.Marshal(meta)
		if err != nil {
			slog.WarnContext(ctx, "failed to serialize event meta",
				slog.String("event_name", name), slog.String("error", err.Error()))
		} else {
			metaJSON = encoded
		}
	}

	event := &Event{
		ID:       newEventID(),
		TS:       time.Now().UTC(),
		TenantID: s.tenantID,
		BotID:    s.botID,
		TgID:     tgID,
		Name:     name,
		Meta:     metaJSON,
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to track event",
			slog.String("event_name", name),
			slog.Int64("tg_id", tgID),
			slog.String("error", err.Error()))
	}
}

func newEventID() string {
	// UUIDv7 for temporal ordering of append-only rows
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// SlogTracker records events to the log only. Used before storage is up
// and as the nil-tracker default.
type SlogTracker struct{}

// NewSlogTracker creates a log-only tracker.
func NewSlogTracker() *SlogTracker {
	return &SlogTracker{}
}

// Track logs the event at INFO.
func (t *SlogTracker) Track(ctx context.Context, name string, tgID int64, meta map[string]any) {
	attrs := []any{
		slog.String("event_name", name),
		slog.Int64("tg_id", tgID),
		slog.String("component", "track"),
	}
	if len(meta) > 0 {
		group := []any{}
		for k, v := range meta {
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("meta", group...))
	}
	slog.InfoContext(ctx, "TRACK_EVENT", attrs...)
}
