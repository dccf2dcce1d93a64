package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListSubscriptions(w, r)
	case http.MethodPost:
		s.handleCreateSubscription(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListSubscriptions(r.Context(), s.userID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list subscriptions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	out := make([]subscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		out = append(out, toSubscriptionDTO(sub))
	}
	respondJSON(w, http.StatusOK, out)
}

type createSubscriptionRequest struct {
	AccountID  int64  `json:"account_id,omitempty"`
	CategoryID int64  `json:"category_id,omitempty"`
	Name       string `json:"name"`
	Amount     string `json:"amount"` // decimal, e.g. "9.99"
	Cycle      string `json:"cycle"`
	NextDue    string `json:"next_due"` // YYYY-MM-DD
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}
	nextDue, err := core.ParseDate(req.NextDue)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid next due date, want YYYY-MM-DD")
		return
	}

	sub := core.Subscription{
		UserID:     s.userID(r),
		AccountID:  req.AccountID,
		CategoryID: req.CategoryID,
		Name:       sanitizeInput(req.Name),
		Amount:     core.Money{Cents: cents},
		Cycle:      core.BillingCycle(req.Cycle),
		NextDue:    nextDue,
		Status:     core.StatusActive,
	}
	if err := sub.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateSubscription(r.Context(), sub)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create subscription", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create subscription")
		return
	}

	slog.InfoContext(r.Context(), "Subscription created",
		"subscription_id", created.ID,
		"name", created.Name,
		"cycle", string(created.Cycle),
		"next_due", created.NextDue.String())
	respondJSON(w, http.StatusCreated, toSubscriptionDTO(created))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// handleSubscriptionStatus serves POST /api/subscriptions/{id}/status for
// pausing and resuming.
func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/subscriptions/")
	idStr, action, found := strings.Cut(rest, "/")
	if !found || action != "status" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status := core.SubscriptionStatus(req.Status)
	if err := status.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpdateSubscriptionStatus(r.Context(), id, status); err != nil {
		if isNotFound(err) {
			respondError(w, http.StatusNotFound, "subscription not found")
			return
		}
		slog.ErrorContext(r.Context(), "Failed to update subscription status",
			"subscription_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to update subscription")
		return
	}

	slog.InfoContext(r.Context(), "Subscription status updated",
		"subscription_id", id,
		"status", string(status))
	w.WriteHeader(http.StatusNoContent)
}
