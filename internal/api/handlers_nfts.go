package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/internal/zrc721"
)

// handleListCollections serves GET /collections.
func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	limit := queryInt(r, "limit", 50)
	startKey := r.URL.Query().Get("page")

	page, err := zrc721.ListCollections(rt, startKey, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list collections")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": page.Items, "page": startKey, "limit": limit, "has_more": page.HasMore,
	})
}

// handleGetCollection serves GET /collections/{collection}.
func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	info, err := zrc721.GetCollection(rt, collection)
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "collection not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read collection")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// handleListCollectionTokens serves GET /collections/{collection}/tokens.
func (s *Server) handleListCollectionTokens(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	limit := queryInt(r, "limit", 50)
	startKey := r.URL.Query().Get("page")

	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	page, err := zrc721.ListTokensByCollection(rt, collection, startKey, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": page.Items, "page": startKey, "limit": limit, "has_more": page.HasMore,
	})
}

// handleGetNftToken serves GET /collections/{collection}/tokens/{id}.
func (s *Server) handleGetNftToken(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid token id")
		return
	}

	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	token, err := zrc721.GetNftToken(rt, collection, id)
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "nft token not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read nft token")
		return
	}
	respondJSON(w, http.StatusOK, token)
}
