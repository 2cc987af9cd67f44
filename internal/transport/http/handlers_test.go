package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruJakara/bot-project/internal/reminder"
	"github.com/ruJakara/bot-project/internal/track"
)

const testTriggerSecret = "test-trigger-secret"

// fakeReminderRepo is the minimal in-memory store the reminder service
// needs for transport-level tests.
type fakeReminderRepo struct {
	rows map[int64]*reminder.Reminder
}

func newFakeReminderRepo() *fakeReminderRepo {
	return &fakeReminderRepo{rows: make(map[int64]*reminder.Reminder)}
}

func (f *fakeReminderRepo) GetByIdentity(_ context.Context, tgID int64, _, _ string) (*reminder.Reminder, error) {
	r, ok := f.rows[tgID]
	if !ok {
		return nil, reminder.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (f *fakeReminderRepo) Upsert(_ context.Context, r *reminder.Reminder) error {
	if existing, ok := f.rows[r.TgID]; ok {
		r.ID = existing.ID
		r.CreatedAt = existing.CreatedAt
	}
	clone := *r
	f.rows[r.TgID] = &clone
	return nil
}

func (f *fakeReminderRepo) ListDue(_ context.Context, _, _ string, now time.Time) ([]*reminder.Reminder, error) {
	var due []*reminder.Reminder
	for _, r := range f.rows {
		if r.Due(now) {
			clone := *r
			due = append(due, &clone)
		}
	}
	return due, nil
}

func (f *fakeReminderRepo) InBatch(_ context.Context, fn func(b reminder.Batch) error) error {
	return fn(f)
}

func (f *fakeReminderRepo) Update(_ context.Context, r *reminder.Reminder) error {
	clone := *r
	f.rows[r.TgID] = &clone
	return nil
}

func newTestRouter(t *testing.T, repo reminder.Repository) http.Handler {
	t.Helper()
	svc := reminder.NewService("vojd", "hound_vojd", repo, track.NewSlogTracker())
	h := NewHandler(nil, svc, track.NewSlogTracker(), testTriggerSecret)
	return NewRouter(h, NewRateLimiter(100, 100))
}

func signTriggerToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "cron",
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestHTTP_HealthCheck(t *testing.T) {
	router := newTestRouter(t, newFakeReminderRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestHTTP_CRMSurfaceWithoutIntegration(t *testing.T) {
	// Router built with no CRM client, as happens for tenants that run
	// with the integration switched off
	router := newTestRouter(t, newFakeReminderRepo())

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/api/v1/crm/ping"},
		{http.MethodGet, "/api/v1/crm/branches"},
		{http.MethodGet, "/api/v1/crm/clients"},
		{http.MethodPost, "/api/v1/leads"},
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

// TestPurpose: Validates reminder enabling over HTTP — payload validation,
// the 6-month default and the created row in the response.
// Scope: Integration Test
// Expected: 201 with the stored reminder; 400 on a missing tg_id.
// Test Case ID: HTTP-01
func TestHTTP_EnableReminder(t *testing.T) {
	repo := newFakeReminderRepo()
	router := newTestRouter(t, repo)

	body := bytes.NewBufferString(`{"tg_id": 42}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reminders", body))

	require.Equal(t, http.StatusCreated, rec.Code)
	var created reminder.Reminder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.EqualValues(t, 42, created.TgID)
	assert.True(t, created.Enabled)
	// Default horizon is six 30-day months
	assert.WithinDuration(t, time.Now().Add(180*24*time.Hour), created.NextRemindAt, time.Minute)

	t.Run("missing tg_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reminders",
			bytes.NewBufferString(`{"months": 3}`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reminders",
			bytes.NewBufferString(`not json`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestPurpose: Validates the trigger token gate on manual due processing.
// Scope: Integration Test
// Expected: 401 without a token, with a wrongly-signed token and with an
// expired token; 200 with a valid HS256 token.
// Test Case ID: HTTP-02
func TestHTTP_ProcessReminders_Auth(t *testing.T) {
	repo := newFakeReminderRepo()
	repo.rows[42] = &reminder.Reminder{
		ID: "r-1", TgID: 42, TenantID: "vojd", BotID: "hound_vojd",
		Enabled: true, Mode: reminder.ModeDate,
		NextRemindAt: time.Now().Add(-time.Hour),
	}
	router := newTestRouter(t, repo)

	process := func(authorization string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders/process", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("missing token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, process("").Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := signTriggerToken(t, "some-other-secret", time.Hour)
		assert.Equal(t, http.StatusUnauthorized, process("Bearer "+token).Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signTriggerToken(t, testTriggerSecret, -time.Hour)
		assert.Equal(t, http.StatusUnauthorized, process("Bearer "+token).Code)
	})

	t.Run("token without expiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "cron"})
		signed, err := token.SignedString([]byte(testTriggerSecret))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, process("Bearer "+signed).Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token := signTriggerToken(t, testTriggerSecret, time.Hour)
		rec := process("Bearer " + token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"processed": 1}`, rec.Body.String())

		// The fired reminder is now off; a repeat run processes nothing
		rec = process("Bearer " + token)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"processed": 0}`, rec.Body.String())
	})
}
