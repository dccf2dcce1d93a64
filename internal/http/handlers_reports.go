package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// handleMonthlyReport serves GET /api/reports/monthly. Optional filters:
// year, account_id, category_id, from, to (YYYY-MM-DD).
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID := s.userID(r)
	filter := storage.TransactionFilter{
		UserID:     userID,
		AccountID:  queryInt64(r, "account_id", 0),
		CategoryID: queryInt64(r, "category_id", 0),
		Year:       queryInt(r, "year", 0),
	}
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid from date")
			return
		}
		filter.From = d
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid to date")
			return
		}
		filter.To = d
	}

	cacheKey := fmt.Sprintf("%s:monthly:%d:%d:%d:%s:%s",
		userID, filter.Year, filter.AccountID, filter.CategoryID,
		filter.From.String(), filter.To.String())
	if cached, ok := s.monthlyCache.Get(cacheKey); ok {
		respondJSON(w, http.StatusOK, toMonthlyReportDTO(cached))
		return
	}

	report, err := s.reports.Monthly(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build monthly report", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	s.monthlyCache.Set(cacheKey, report)
	respondJSON(w, http.StatusOK, toMonthlyReportDTO(report))
}

// handleCategoryReport serves GET /api/reports/categories?year=2025. An
// optional category_id narrows to a single category.
func (s *Server) handleCategoryReport(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID := s.userID(r)
	year := queryInt(r, "year", nowFunc().Year())
	if year < 1900 || year > 9999 {
		respondError(w, http.StatusBadRequest, "invalid year")
		return
	}
	categoryID := queryInt64(r, "category_id", 0)

	cacheKey := fmt.Sprintf("%s:totals:%d:%d", userID, year, categoryID)
	if cached, ok := s.totalsCache.Get(cacheKey); ok {
		respondCategoryTotals(w, cached)
		return
	}

	totals, err := s.reports.CategoryYear(r.Context(), userID, year, categoryID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build category report",
			"year", year, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	s.totalsCache.Set(cacheKey, totals)
	respondCategoryTotals(w, totals)
}

func respondCategoryTotals(w http.ResponseWriter, totals []core.CategoryTotals) {
	out := make([]categoryTotalsDTO, 0, len(totals))
	for _, t := range totals {
		out = append(out, toCategoryTotalsDTO(t))
	}
	respondJSON(w, http.StatusOK, out)
}

// handleYears serves GET /api/reports/years: the years with ledger
// activity, newest first.
func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	years, err := s.reports.AvailableYears(r.Context(), s.userID(r), nowFunc())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list years", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list years")
		return
	}
	respondJSON(w, http.StatusOK, years)
}

// handleForecast serves GET /api/reports/forecast: next month's projected
// spend from the trailing expense window.
func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	userID := s.userID(r)
	now := nowFunc()

	cacheKey := fmt.Sprintf("%s:forecast:%s", userID, core.DateOf(now).MonthKey())
	if cached, ok := s.forecastCache.Get(cacheKey); ok {
		respondJSON(w, http.StatusOK, toForecastDTO(cached))
		return
	}

	forecast, err := s.reports.Forecast(r.Context(), userID, now)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to build forecast", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to build forecast")
		return
	}

	s.forecastCache.Set(cacheKey, forecast)
	respondJSON(w, http.StatusOK, toForecastDTO(forecast))
}
