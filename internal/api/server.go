// Package api exposes the read-only HTTP surface (C8): paginated scans
// over every ledger, per-ticker summaries with integrity recomputation,
// rank-of-address, per-address portfolios, and name resolution. Every
// handler reads through a *store.ReadTxn; nothing here ever writes.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zatoshilabs/zord/internal/cache"
	"github.com/zatoshilabs/zord/internal/chainclient"
	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/livefeed"
	"github.com/zatoshilabs/zord/internal/store"
)

// version is the read surface's reported API version.
const version = "1.0.0"

// Server holds the dependencies every handler needs.
type Server struct {
	Store *store.Store
	Chain chainclient.Client
	Cache *cache.Cache
	Hub   *livefeed.Hub
}

// beginRead opens a read transaction or writes a 503 if one cannot be
// opened. It does not look at the core cursor, so a store that has not yet
// reached the first inscribable height still serves reads.
func (s *Server) beginRead(ctx context.Context, w http.ResponseWriter) (*store.ReadTxn, bool) {
	rt, err := s.Store.BeginRead(ctx)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return nil, false
	}
	return rt, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// queryInt parses a query parameter as an int, returning defaultValue on
// absence or parse failure.
func queryInt(r *http.Request, key string, defaultValue int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return defaultValue
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// statusResponse is the §6 `status` read-surface contract.
type statusResponse struct {
	Height       uint64                  `json:"height"`
	ChainTip     uint64                  `json:"chain_tip"`
	Inscriptions uint64                  `json:"inscriptions"`
	Tokens       uint64                  `json:"tokens"`
	Names        uint64                  `json:"names"`
	Components   map[string]componentLag `json:"components"`
	Version      string                  `json:"version"`
}

type componentLag struct {
	Height uint64 `json:"height"`
	Tip    uint64 `json:"tip"`
}

// handleStatus serves GET /status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.Cache != nil {
		var cached statusResponse
		if err := s.Cache.GetStatus(r.Context(), &cached); err == nil {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	height, err := ledger.GetMetaUint64(rt, ledger.MetaCoreHeight)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read core height")
		return
	}
	tip, err := ledger.GetMetaUint64(rt, ledger.MetaChainTip)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read chain tip")
		return
	}
	inscriptions, _ := ledger.GetMetaUint64(rt, ledger.MetaInscriptionsTotal)
	tokens, _ := ledger.GetMetaUint64(rt, ledger.MetaTokensTotal)
	names, _ := ledger.GetMetaUint64(rt, ledger.MetaNamesTotal)
	zrc20Height, _ := ledger.GetMetaUint64(rt, ledger.MetaZrc20Height)
	zrc721Height, _ := ledger.GetMetaUint64(rt, ledger.MetaZrc721Height)
	znsHeight, _ := ledger.GetMetaUint64(rt, ledger.MetaZnsHeight)

	resp := statusResponse{
		Height:       height,
		ChainTip:     tip,
		Inscriptions: inscriptions,
		Tokens:       tokens,
		Names:        names,
		Components: map[string]componentLag{
			"core":   {Height: height, Tip: tip},
			"zrc20":  {Height: zrc20Height, Tip: tip},
			"zrc721": {Height: zrc721Height, Tip: tip},
			"names":  {Height: znsHeight, Tip: tip},
		},
		Version: version,
	}

	if s.Cache != nil {
		_ = s.Cache.SetStatus(r.Context(), resp)
	}
	respondJSON(w, http.StatusOK, resp)
}
