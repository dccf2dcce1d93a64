package http

import (
	"log/slog"
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListAccounts(w, r)
	case http.MethodPost:
		s.handleCreateAccount(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.store.ListAccounts(r.Context(), s.userID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list accounts", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list accounts")
		return
	}

	out := make([]accountDTO, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountDTO(a))
	}
	respondJSON(w, http.StatusOK, out)
}

type createAccountRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Balance string `json:"balance,omitempty"` // decimal, e.g. "1250.00"
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	account := core.Account{
		UserID: s.userID(r),
		Name:   sanitizeInput(req.Name),
		Type:   core.AccountType(req.Type),
	}
	if req.Balance != "" {
		cents, err := core.ParseDecimalToCents(req.Balance)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid balance: "+err.Error())
			return
		}
		account.Balance = core.Money{Cents: cents}
	}

	if err := account.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.store.CreateAccount(r.Context(), account)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to create account", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	slog.InfoContext(r.Context(), "Account created",
		"account_id", created.ID,
		"type", string(created.Type))
	respondJSON(w, http.StatusCreated, toAccountDTO(created))
}
