package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/store"
)

// inscriptionsFeedResponse is the §6 paginated-feed contract.
type inscriptionsFeedResponse struct {
	Items   []ledger.InscriptionRecord `json:"items"`
	Page    string                     `json:"page"`
	Limit   int                        `json:"limit"`
	Total   uint64                     `json:"total"`
	HasMore bool                       `json:"has_more"`
}

// handleListInscriptions serves GET /inscriptions, newest-first (§4.8).
func (s *Server) handleListInscriptions(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	limit := queryInt(r, "limit", 50)
	startKey := r.URL.Query().Get("page")

	page, err := ledger.ListInscriptions(rt, startKey, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list inscriptions")
		return
	}
	total, _ := ledger.GetMetaUint64(rt, ledger.MetaInscriptionsTotal)

	respondJSON(w, http.StatusOK, inscriptionsFeedResponse{
		Items: page.Items, Page: startKey, Limit: limit, Total: total, HasMore: page.HasMore,
	})
}

// handleGetInscription serves GET /inscriptions/{id}.
func (s *Server) handleGetInscription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	rec, err := ledger.GetInscription(rt, id)
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "inscription not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read inscription")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// handleListInscriptionsByAddress serves GET /addresses/{address}/inscriptions.
func (s *Server) handleListInscriptionsByAddress(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	limit := queryInt(r, "limit", 50)
	startKey := r.URL.Query().Get("page")

	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	page, err := ledger.ListInscriptionsByAddress(rt, address, startKey, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list inscriptions")
		return
	}
	respondJSON(w, http.StatusOK, inscriptionsFeedResponse{
		Items: page.Items, Page: startKey, Limit: limit, HasMore: page.HasMore,
	})
}
