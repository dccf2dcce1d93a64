package http

import (
	"net/http"

	applog "fintrack/internal/log"
)

// handleBillingRun serves POST /api/billing/run: it charges every due
// subscription and returns the run report. The run is idempotent for a
// given day because charging advances each due date past today.
func (s *Server) handleBillingRun(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	report, err := s.billing.ProcessDueSubscriptions(r.Context(), nowFunc())
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Billing run failed", "error", err)
		respondError(w, http.StatusInternalServerError, "billing run failed")
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Billing run complete",
		applog.FieldOperation, applog.OpCharge,
		"processed", report.Processed,
		"errors", report.Errors)

	// Charges landed in the ledger; cached reports are stale for everyone
	// whose subscriptions were processed. The runs are rare enough to just
	// drop the caches for the acting user.
	s.invalidateReports(s.userID(r))

	respondJSON(w, http.StatusOK, report)
}
