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

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ruJakara/bot-project/internal/crm"
	"github.com/ruJakara/bot-project/internal/reminder"
	"github.com/ruJakara/bot-project/internal/track"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	crmClient       *crm.Client
	reminderService *reminder.Service
	tracker         track.Tracker
	triggerSecret   []byte
}

// NewHandler creates a new HTTP handler
func NewHandler(
	crmClient *crm.Client,
	reminderService *reminder.Service,
	tracker track.Tracker,
	triggerSecret string,
) *Handler {
	return &Handler{
		crmClient:       crmClient,
		reminderService: reminderService,
		tracker:         tracker,
		triggerSecret:   []byte(triggerSecret),
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Operational checks over the CRM gateway
		r.Get("/crm/ping", h.CRMPing)
		r.Get("/crm/branches", h.ListBranches)
		r.Get("/crm/clients", h.ListClients)

		// Lead intake (the thin business-handler surface)
		r.Post("/leads", h.CreateLead)

		// Reminder state machine
		r.Post("/reminders", h.EnableReminder)

		// Manual trigger for due processing: cron jobs and authorized
		// operators call this with a signed service token.
		r.Group(func(r chi.Router) {
			r.Use(h.TriggerAuthMiddleware)
			r.Post("/reminders/process", h.ProcessReminders)
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// crmEnabled reports whether this process runs with a CRM integration.
// The tenant document may disable it, in which case the CRM surface
// answers 503 instead of panicking on a nil client.
func (h *Handler) crmEnabled(w http.ResponseWriter) bool {
	if h.crmClient == nil {
		respondError(w, http.StatusServiceUnavailable, "crm integration disabled")
		return false
	}
	return true
}

// CRMPing checks CRM connectivity and credentials
func (h *Handler) CRMPing(w http.ResponseWriter, r *http.Request) {
	if !h.crmEnabled(w) {
		return
	}
	if !h.crmClient.Ping(r.Context()) {
		respondError(w, http.StatusServiceUnavailable, "crm unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"crm": "ok"})
}

// ListBranches returns the active CRM branches
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	if !h.crmEnabled(w) {
		return
	}
	branches, err := h.crmClient.ListBranches(r.Context())
	if err != nil {
		respondCRMError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"branches": branches})
}

// ListClients returns customer records, optionally filtered by phone
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	if !h.crmEnabled(w) {
		return
	}

	branch := h.crmClient.Branch()
	if raw := r.URL.Query().Get("branch_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "branch_id must be a number")
			return
		}
		branch = parsed
	}

	clients, err := h.crmClient.ListClients(r.Context(), branch, r.URL.Query().Get("phone"))
	if err != nil {
		respondCRMError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

// CreateLeadRequest is the lead intake payload
type CreateLeadRequest struct {
	TgID   int64  `json:"tg_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Note   string `json:"note,omitempty"`
	Source string `json:"source,omitempty"`
	Branch int64  `json:"branch_id,omitempty"`
}

// CreateLead registers a lead in the CRM
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	if !h.crmEnabled(w) {
		return
	}
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Phone == "" {
		respondError(w, http.StatusBadRequest, "name and phone are required")
		return
	}

	source := req.Source
	if source == "" {
		source = "telegram"
	}
	branch := req.Branch
	if branch == 0 {
		branch = h.crmClient.Branch()
	}

	id, err := h.crmClient.CreateLead(r.Context(), branch, req.Name, req.Phone, req.Note, source)
	if err != nil {
		respondCRMError(w, err)
		return
	}

	h.tracker.Track(r.Context(), "lead.submitted", req.TgID, map[string]any{
		"crm_id": id,
		"source": source,
	})
	respondJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// EnableReminderRequest is the reminder enable payload
type EnableReminderRequest struct {
	TgID   int64 `json:"tg_id"`
	Months int   `json:"months,omitempty"`
}

// EnableReminder switches a reminder on for a user
func (h *Handler) EnableReminder(w http.ResponseWriter, r *http.Request) {
	var req EnableReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TgID == 0 {
		respondError(w, http.StatusBadRequest, "tg_id is required")
		return
	}
	if req.Months == 0 {
		req.Months = 6
	}

	rem, err := h.reminderService.Enable(r.Context(), req.TgID, req.Months)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, rem)
}

// ProcessReminders fires all due reminders and reports the count
func (h *Handler) ProcessReminders(w http.ResponseWriter, r *http.Request) {
	count, err := h.reminderService.ProcessDue(r.Context(), time.Now().UTC())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"processed": count})
}

// respondCRMError maps the gateway error taxonomy to transport statuses.
// The gateway never fabricates success: a failed CRM call surfaces here.
func respondCRMError(w http.ResponseWriter, err error) {
	var authErr *crm.AuthError
	var httpErr *crm.HTTPError
	var missingErr *crm.MissingFieldError
	switch {
	case errors.As(err, &authErr):
		respondError(w, http.StatusBadGateway, "crm authentication failed")
	case errors.As(err, &httpErr):
		respondError(w, http.StatusBadGateway, "crm request failed")
	case errors.As(err, &missingErr):
		respondError(w, http.StatusBadGateway, "crm response malformed")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
