package http

import (
	"log/slog"
	"net/http"
)

// handleCategories serves GET /api/categories: the shared defaults plus the
// user's own categories.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	categories, err := s.store.ListCategories(r.Context(), s.userID(r))
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list categories", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	out := make([]categoryDTO, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryDTO(c))
	}
	respondJSON(w, http.StatusOK, out)
}
