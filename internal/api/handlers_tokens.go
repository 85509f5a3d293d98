package api

import (
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/internal/zrc20"
)

// tokenResponse is the §6 `tokens list` contract.
type tokenResponse struct {
	Ticker        string `json:"ticker"`
	Max           string `json:"max"`
	MaxBaseUnits  string `json:"max_base_units"`
	Supply        string `json:"supply"`
	SupplyBase    string `json:"supply_base_units"`
	Lim           string `json:"lim"`
	Dec           int    `json:"dec"`
	Deployer      string `json:"deployer"`
	InscriptionID string `json:"inscription_id"`
	Progress      string `json:"progress"`
}

func toTokenResponse(info zrc20.TokenInfo) tokenResponse {
	progress := "0"
	if maxBase, ok := new(big.Int).SetString(info.MaxBase, 10); ok && maxBase.Sign() > 0 {
		if supplyBase, ok := new(big.Int).SetString(info.SupplyBase, 10); ok {
			ratio := new(big.Float).Quo(new(big.Float).SetInt(supplyBase), new(big.Float).SetInt(maxBase))
			progress = ratio.Text('f', 6)
		}
	}
	return tokenResponse{
		Ticker:        info.TickDisplay,
		Max:           info.MaxBase,
		MaxBaseUnits:  info.MaxBase,
		Supply:        info.SupplyBase,
		SupplyBase:    info.SupplyBase,
		Lim:           info.LimBase,
		Dec:           info.Dec,
		Deployer:      info.Deployer,
		InscriptionID: info.InscriptionID,
		Progress:      progress,
	}
}

// handleListTokens serves GET /tokens.
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	limit := queryInt(r, "limit", 50)
	startKey := r.URL.Query().Get("page")

	page, err := zrc20.ListTokens(rt, startKey, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}

	items := make([]tokenResponse, 0, len(page.Items))
	for _, info := range page.Items {
		items = append(items, toTokenResponse(info))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items, "page": startKey, "limit": limit, "has_more": page.HasMore,
	})
}

// handleGetToken serves GET /tokens/{tick}.
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	tickLower := chi.URLParam(r, "tick")
	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	info, err := zrc20.GetToken(rt, tickLower)
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "token not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read token")
		return
	}
	respondJSON(w, http.StatusOK, toTokenResponse(*info))
}

// tokenIntegrityResponse is the §6 `token integrity` contract.
type tokenIntegrityResponse struct {
	SupplyBaseUnits       string `json:"supply_base_units"`
	SumOverallBaseUnits   string `json:"sum_overall_base_units"`
	SumAvailableBaseUnits string `json:"sum_available_base_units"`
	BurnedBaseUnits       string `json:"burned_base_units"`
	TotalHolders          uint64 `json:"total_holders"`
	HoldersPositive       uint64 `json:"holders_positive"`
	Consistent            bool   `json:"consistent"`
}

// handleTokenIntegrity serves GET /tokens/{tick}/integrity: recomputes
// consistency by re-summing every balance for the ticker, per §4.8.
func (s *Server) handleTokenIntegrity(w http.ResponseWriter, r *http.Request) {
	tickLower := chi.URLParam(r, "tick")
	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	info, err := zrc20.GetToken(rt, tickLower)
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "token not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read token")
		return
	}
	stats, err := zrc20.GetStats(rt, tickLower)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read token stats")
		return
	}

	sumOverall := big.NewInt(0)
	sumAvailable := big.NewInt(0)
	holdersPositive := uint64(0)
	totalHolders := uint64(0)
	startKey := ""
	for {
		page, err := zrc20.ListBalancesByTicker(rt, tickLower, startKey, 500)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to scan balances")
			return
		}
		for _, row := range page.Items {
			totalHolders++
			overall := bigOrZero(row.Balance.OverallBase)
			available := bigOrZero(row.Balance.AvailableBase)
			sumOverall.Add(sumOverall, overall)
			sumAvailable.Add(sumAvailable, available)
			if overall.Sign() > 0 {
				holdersPositive++
			}
		}
		if !page.HasMore || len(page.Items) == 0 {
			break
		}
		// StartKey is inclusive; the trailing NUL steps past the last row seen.
		startKey = tickLower + "\x00" + page.Items[len(page.Items)-1].Address + "\x00"
	}

	supplyBase := bigOrZero(info.SupplyBase)
	burnedBase := bigOrZero(stats.BurnedBase)
	expected := new(big.Int).Sub(supplyBase, burnedBase)
	consistent := sumOverall.Cmp(expected) == 0

	respondJSON(w, http.StatusOK, tokenIntegrityResponse{
		SupplyBaseUnits:       info.SupplyBase,
		SumOverallBaseUnits:   sumOverall.String(),
		SumAvailableBaseUnits: sumAvailable.String(),
		BurnedBaseUnits:       stats.BurnedBase,
		TotalHolders:          totalHolders,
		HoldersPositive:       holdersPositive,
		Consistent:            consistent,
	})
}

func bigOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

// rankResponse is the §4.8 rank-of-address contract.
type rankResponse struct {
	Rank                 uint64  `json:"rank"`
	TotalHoldersPositive uint64  `json:"total_holders_positive"`
	Percentile           float64 `json:"percentile"`
}

// handleTokenRank serves GET /tokens/{tick}/rank/{address}: counts
// positive balances with overall_base > target, via a full ordered scan.
func (s *Server) handleTokenRank(w http.ResponseWriter, r *http.Request) {
	tickLower := chi.URLParam(r, "tick")
	address := chi.URLParam(r, "address")

	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	target, err := zrc20.GetBalance(rt, tickLower, address)
	if err == store.ErrNotFound {
		respondError(w, http.StatusNotFound, "address holds no balance for this ticker")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read balance")
		return
	}
	targetOverall := bigOrZero(target.OverallBase)

	rank := uint64(1)
	totalPositive := uint64(0)
	startKey := ""
	for {
		page, err := zrc20.ListBalancesByTicker(rt, tickLower, startKey, 500)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to scan balances")
			return
		}
		for _, row := range page.Items {
			overall := bigOrZero(row.Balance.OverallBase)
			if overall.Sign() <= 0 {
				continue
			}
			totalPositive++
			if overall.Cmp(targetOverall) > 0 {
				rank++
			}
		}
		if !page.HasMore || len(page.Items) == 0 {
			break
		}
		// StartKey is inclusive; the trailing NUL steps past the last row seen.
		startKey = tickLower + "\x00" + page.Items[len(page.Items)-1].Address + "\x00"
	}

	percentile := 0.0
	if totalPositive > 0 {
		percentile = 100.0 * float64(totalPositive-rank+1) / float64(totalPositive)
	}

	respondJSON(w, http.StatusOK, rankResponse{
		Rank: rank, TotalHoldersPositive: totalPositive, Percentile: percentile,
	})
}

// portfolioEntry is one row of a per-address portfolio.
type portfolioEntry struct {
	Tick          string `json:"tick"`
	AvailableBase string `json:"available_base"`
	OverallBase   string `json:"overall_base"`
}

// handleAddressPortfolio serves GET /addresses/{address}/tokens: every
// ticker the address holds a balance row for (§4.8).
func (s *Server) handleAddressPortfolio(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	limit := queryInt(r, "limit", 50)
	startKey := r.URL.Query().Get("page")

	rt, ok := s.beginRead(r.Context(), w)
	if !ok {
		return
	}
	defer rt.Close()

	page, err := zrc20.ListBalancesByAddress(rt, address, startKey, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list portfolio")
		return
	}

	items := make([]portfolioEntry, 0, len(page.Items))
	for _, row := range page.Items {
		items = append(items, portfolioEntry{
			Tick: row.TickLower, AvailableBase: row.Balance.AvailableBase, OverallBase: row.Balance.OverallBase,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items, "page": startKey, "limit": limit, "has_more": page.HasMore,
	})
}
