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

package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ruJakara/bot-project/internal/observability/logger"
)

// Branch is one CRM branch (office/location).
type Branch struct {
	ID   int64
	Name string
}

// Ping checks connectivity and credentials with a cheap branch listing.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Request(ctx, http.MethodPost, "/v2api/branch/index",
		map[string]any{"is_active": 1, "page": 0})
	if err != nil {
		slog.ErrorContext(ctx, "crm ping failed", logger.Component("crm"), logger.Error(err))
		return false
	}
	return true
}

// ListBranches returns the active branches of the deployment.
func (c *Client) ListBranches(ctx context.Context) ([]Branch, error) {
	res, err := c.Request(ctx, http.MethodPost, "/v2api/branch/index",
		map[string]any{"is_active": 1, "page": 0})
	if err != nil {
		return nil, err
	}

	var branches []Branch
	for _, item := range items(res.JSON) {
		id, ok := coerceID(item["id"])
		if !ok {
			continue
		}
		name, _ := item["name"].(string)
		branches = append(branches, Branch{ID: id, Name: name})
	}
	return branches, nil
}

// CreateLead registers an inbound lead in the CRM and returns its id.
//
// Not every deployment exposes the lead object: when lead creation comes
// back 404-shaped, the call falls back to creating a customer record
// instead. That fallback is a real compatibility concern across CRM
// deployments, not belt-and-suspenders.
func (c *Client) CreateLead(ctx context.Context, branchID int64, name, phone, note, source string) (int64, error) {
	payload := map[string]any{"name": name, "phone": phone}
	if note != "" {
		payload["note"] = note
	}

	res, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/v2api/%d/lead/create", branchID), payload)
	if err == nil {
		if isModelError(res.JSON) {
			return 0, fmt.Errorf("lead create model error: %s", res)
		}
		id, ok := extractID(res.JSON)
		if !ok {
			return 0, &MissingFieldError{Field: "id", Payload: res.String()}
		}
		// Subject 0: the CRM layer does not know the Telegram user; the
		// transport handler tracks the user-facing event
		c.tracker.Track(ctx, "crm.lead_created", 0,
			map[string]any{"lead_id": id, "branch_id": branchID, "source": source})
		return id, nil
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) &&
		(httpErr.Status == http.StatusNotFound || strings.Contains(strings.ToLower(httpErr.Body), "not found")) {
		slog.WarnContext(ctx, "lead endpoint unavailable, falling back to customer create",
			logger.Component("crm"), logger.StatusCode(httpErr.Status))
		return c.CreateCustomer(ctx, branchID, name, phone, note, source)
	}
	return 0, fmt.Errorf("lead create failed: %w", err)
}

// CreateCustomer creates a customer record (a not-yet-studying client)
// and returns its id.
func (c *Client) CreateCustomer(ctx context.Context, branchID int64, name, phone, note, source string) (int64, error) {
	payload := map[string]any{
		"name":     name,
		"phone":    []string{phone},
		"is_study": 0,
		"source":   source,
	}
	if note != "" {
		payload["note"] = note
	}

	res, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/v2api/%d/customer/create", branchID), payload)
	if err != nil {
		return 0, fmt.Errorf("customer create failed: %w", err)
	}
	id, ok := extractID(res.JSON)
	if !ok {
		return 0, &MissingFieldError{Field: "id", Payload: res.String()}
	}
	c.tracker.Track(ctx, "crm.customer_created", 0,
		map[string]any{"customer_id": id, "branch_id": branchID, "source": source})
	return id, nil
}

// ListClients returns customer records of a branch, optionally filtered
// by phone.
func (c *Client) ListClients(ctx context.Context, branchID int64, phone string) ([]map[string]any, error) {
	payload := map[string]any{"page": 0}
	if phone != "" {
		payload["phone"] = phone
	}
	res, err := c.Request(ctx, http.MethodPost, fmt.Sprintf("/company/%d/customer/index", branchID), payload)
	if err != nil {
		return nil, err
	}
	return items(res.JSON), nil
}

// CreateInvoice creates an invoice for a client and returns its id.
func (c *Client) CreateInvoice(ctx context.Context, clientID int64, sum float64, desc string) (int64, error) {
	res, err := c.Request(ctx, http.MethodPost, "/invoices",
		map[string]any{"client_id": clientID, "sum": sum, "desc": desc})
	if err != nil {
		return 0, fmt.Errorf("invoice create failed: %w", err)
	}
	id, ok := extractID(res.JSON)
	if !ok {
		return 0, &MissingFieldError{Field: "id", Payload: res.String()}
	}
	c.tracker.Track(ctx, "crm.invoice_created", 0,
		map[string]any{"invoice_id": id, "client_id": clientID, "sum": sum})
	return id, nil
}

// SendMessage posts a free-form message to a client's CRM feed.
func (c *Client) SendMessage(ctx context.Context, clientID int64, text string) error {
	_, err := c.Request(ctx, http.MethodPost, "/messages",
		map[string]any{"client_id": clientID, "text": text})
	if err != nil {
		return fmt.Errorf("send message failed: %w", err)
	}
	return nil
}
