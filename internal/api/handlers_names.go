package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/internal/zns"
)

// handleListNames serves GET /names, ordered by key (§4.8).
func (s *Server) handleListNames(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	limit := queryInt(r, "limit", 50)
	startKey := r.URL.Query().Get("page")

	page, err := zns.ListNames(rt, startKey, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list names")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": page.Items, "page": startKey, "limit": limit, "has_more": page.HasMore,
	})
}

// nameResolveResponse is the §6 `name resolve` contract.
type nameResolveResponse struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

// handleResolveName serves GET /names/{name}.
func (s *Server) handleResolveName(w http.ResponseWriter, r *http.Request) {
	nameLower := strings.ToLower(chi.URLParam(r, "name"))

	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	rec, err := zns.GetName(rt, nameLower)
	if err == store.ErrNotFound {
		respondJSON(w, http.StatusNotFound, nameResolveResponse{Error: "name not found"})
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to resolve name")
		return
	}
	respondJSON(w, http.StatusOK, nameResolveResponse{Name: rec.Display, Address: rec.Owner})
}
