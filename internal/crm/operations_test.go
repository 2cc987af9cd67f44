package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates lead creation and its deployment-compatibility fallback:
// a 404 from the lead endpoint reroutes the same contact to customer create.
// Scope: Unit Test
// Expected: Lead id on the happy path; customer id when the lead endpoint is absent.
// Test Case ID: CRM-03
func TestCRM_CreateLead(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
			assert.Equal(t, "/v2api/1/lead/create", r.URL.Path)
			return http.StatusOK, `{"model": {"id": 501}}`
		})
		server := httptest.NewServer(stub.handler())
		defer server.Close()

		client := newTestClient(t, server.URL)
		id, err := client.CreateLead(context.Background(), 1, "Ivan", "+79990001122", "", "telegram")
		require.NoError(t, err)
		assert.EqualValues(t, 501, id)
	})

	t.Run("404 falls back to customer create", func(t *testing.T) {
		var paths []string
		stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
			paths = append(paths, r.URL.Path)
			if n == 1 {
				return http.StatusNotFound, `{"message": "Not Found"}`
			}
			return http.StatusOK, `{"id": 777}`
		})
		server := httptest.NewServer(stub.handler())
		defer server.Close()

		client := newTestClient(t, server.URL)
		id, err := client.CreateLead(context.Background(), 1, "Ivan", "+79990001122", "note", "telegram")
		require.NoError(t, err)
		assert.EqualValues(t, 777, id)
		require.Len(t, paths, 2)
		assert.Equal(t, "/v2api/1/lead/create", paths[0])
		assert.Equal(t, "/v2api/1/customer/create", paths[1])
	})

	t.Run("model error has no fallback", func(t *testing.T) {
		stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
			return http.StatusOK, `{"model_error": {"phone": ["invalid"]}}`
		})
		server := httptest.NewServer(stub.handler())
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.CreateLead(context.Background(), 1, "Ivan", "bad", "", "telegram")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model error")
		assert.EqualValues(t, 1, stub.dataCalls.Load(), "validation failures must not retry as customer create")
	})

	t.Run("missing id has no fallback", func(t *testing.T) {
		stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
			return http.StatusOK, `{"success": true}`
		})
		server := httptest.NewServer(stub.handler())
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.CreateLead(context.Background(), 1, "Ivan", "+79990001122", "", "telegram")
		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "id", missing.Field)
		assert.EqualValues(t, 1, stub.dataCalls.Load())
	})

	t.Run("server error surfaces", func(t *testing.T) {
		stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
			return http.StatusInternalServerError, `boom`
		})
		server := httptest.NewServer(stub.handler())
		defer server.Close()

		client := newTestClient(t, server.URL)
		_, err := client.CreateLead(context.Background(), 1, "Ivan", "+79990001122", "", "telegram")
		var httpErr *HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	})
}

type capturedEvent struct {
	name string
	tgID int64
	meta map[string]any
}

type captureTracker struct {
	events []capturedEvent
}

func (c *captureTracker) Track(_ context.Context, name string, tgID int64, meta map[string]any) {
	c.events = append(c.events, capturedEvent{name: name, tgID: tgID, meta: meta})
}

// TestPurpose: Validates tracking from CRM operations — the subject id stays
// zero (the CRM layer has no Telegram identity) and CRM object ids ride in meta.
// Scope: Unit Test
// Expected: tg_id 0 on every event; lead/customer/invoice ids under their own
// meta keys.
// Test Case ID: CRM-04
func TestCRM_OperationsTrackWithCRMIdsInMeta(t *testing.T) {
	stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
		return http.StatusOK, `{"id": 600}`
	})
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	tracker := &captureTracker{}
	client := New(Config{
		BaseURL:  server.URL,
		Email:    "bot@example.com",
		APIKey:   "secret",
		Branch:   1,
		TokenTTL: time.Hour,
		Timeout:  5 * time.Second,
	}, tracker, nil)
	ctx := context.Background()

	_, err := client.CreateLead(ctx, 1, "Ivan", "+79990001122", "", "telegram")
	require.NoError(t, err)
	_, err = client.CreateCustomer(ctx, 1, "Ivan", "+79990001122", "", "telegram")
	require.NoError(t, err)
	_, err = client.CreateInvoice(ctx, 123, 4500, "Абонемент")
	require.NoError(t, err)

	require.Len(t, tracker.events, 3)
	for _, e := range tracker.events {
		assert.Zero(t, e.tgID, "%s must not abuse tg_id for CRM ids", e.name)
	}
	assert.EqualValues(t, 600, tracker.events[0].meta["lead_id"])
	assert.EqualValues(t, 600, tracker.events[1].meta["customer_id"])
	assert.EqualValues(t, 600, tracker.events[2].meta["invoice_id"])
	assert.EqualValues(t, 123, tracker.events[2].meta["client_id"])
}

func TestCRM_ListBranches(t *testing.T) {
	stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
		return http.StatusOK, `{"items": [{"id": 1, "name": "Центр"}, {"id": 2, "name": "Север"}]}`
	})
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	branches, err := client.ListBranches(context.Background())
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, Branch{ID: 1, Name: "Центр"}, branches[0])
	assert.Equal(t, Branch{ID: 2, Name: "Север"}, branches[1])
}

func TestCRM_Ping(t *testing.T) {
	stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
		return http.StatusOK, `{"items": []}`
	})
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	assert.True(t, client.Ping(context.Background()))

	server.Close()
	assert.False(t, client.Ping(context.Background()))
}

func TestCRM_ListClients(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
		gotPath = r.URL.Path
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotBody = body
		return http.StatusOK, `{"items": [{"id": 10, "name": "Анна"}, {"id": 11, "name": "Пётр"}]}`
	})
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	clients, err := client.ListClients(context.Background(), 1, "+79990001122")
	require.NoError(t, err)
	assert.Equal(t, "/company/1/customer/index", gotPath)
	assert.Equal(t, "+79990001122", gotBody["phone"])
	require.Len(t, clients, 2)
	assert.Equal(t, "Анна", clients[0]["name"])

	// Without a phone the filter is omitted entirely
	_, err = client.ListClients(context.Background(), 1, "")
	require.NoError(t, err)
	assert.NotContains(t, gotBody, "phone")
}

func TestCRM_CreateInvoiceAndSendMessage(t *testing.T) {
	var paths []string
	stub := newCRMStub(func(n int64, r *http.Request) (int, string) {
		paths = append(paths, r.URL.Path)
		return http.StatusOK, `{"id": 9000}`
	})
	server := httptest.NewServer(stub.handler())
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx := context.Background()

	id, err := client.CreateInvoice(ctx, 123, 4500.50, "Абонемент")
	require.NoError(t, err)
	assert.EqualValues(t, 9000, id)

	require.NoError(t, client.SendMessage(ctx, 123, "Ждём вас на занятии"))

	require.Len(t, paths, 2)
	assert.Equal(t, "/invoices", paths[0])
	assert.Equal(t, "/messages", paths[1])
}
