package http

import (
	"log/slog"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := storage.TransactionFilter{
		UserID:     s.userID(r),
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

	txs, err := s.store.ListTransactions(r.Context(), filter)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	out := make([]transactionDTO, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionDTO(tx))
	}
	respondJSON(w, http.StatusOK, out)
}

type createTransactionRequest struct {
	AccountID   int64  `json:"account_id"`
	CategoryID  int64  `json:"category_id,omitempty"`
	Type        string `json:"type"`
	Amount      string `json:"amount"` // decimal, e.g. "12.34"
	Description string `json:"description"`
	Date        string `json:"date,omitempty"` // YYYY-MM-DD, defaults to today
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount: "+err.Error())
		return
	}

	date := core.DateOf(nowFunc())
	if req.Date != "" {
		date, err = core.ParseDate(req.Date)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
			return
		}
	}

	userID := s.userID(r)
	tx := core.Transaction{
		UserID:      userID,
		AccountID:   req.AccountID,
		CategoryID:  req.CategoryID,
		Type:        core.TransactionType(req.Type),
		Amount:      core.Money{Cents: cents},
		Description: sanitizeInput(req.Description),
		Date:        date,
	}

	created, err := s.ledger.Record(r.Context(), tx)
	if err != nil {
		if isValidation(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Failed to record transaction", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to record transaction")
		return
	}

	s.invalidateReports(userID)
	respondJSON(w, http.StatusCreated, toTransactionDTO(created))
}
