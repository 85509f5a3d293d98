package indexer

import (
	"github.com/zatoshilabs/zord/internal/store"
)

// TableBlockEffects holds one JSON-encoded blockEffects row per indexed
// height, keyed by the zero-padded height. It is the indexer's own
// bookkeeping table — not part of any engine's public schema — recording
// exactly enough about each block's writes to invert them during a reorg.
const TableBlockEffects = "block_effects"

// inscriptionEffect captures what ledger.RemoveInscription needs to undo
// one ledger.InsertInscription call.
type inscriptionEffect struct {
	InscriptionID string `json:"inscription_id"`
	Number        uint64 `json:"number"`
	Sender        string `json:"sender"`
}

// engineEffect captures what one metaprotocol engine's Rollback* function
// needs to undo a single accepted operation. Kind selects which fields are
// meaningful and which Rollback* function applies.
type engineEffect struct {
	Kind          string `json:"kind"`
	TickLower     string `json:"tick_lower,omitempty"`
	Collection    string `json:"collection,omitempty"`
	ID            uint64 `json:"id,omitempty"`
	NameLower     string `json:"name_lower,omitempty"`
	Owner         string `json:"owner,omitempty"`
	AcceptedBase  string `json:"accepted_base,omitempty"`
	InscriptionID string `json:"inscription_id,omitempty"`
	Recipient     string `json:"recipient,omitempty"`
}

const (
	effectZrc20Deploy           = "zrc20-deploy"
	effectZrc20Mint             = "zrc20-mint"
	effectZrc20TransferInscribe = "zrc20-transfer-inscribe"
	effectZrc20TransferExecute  = "zrc20-transfer-execute"
	effectZrc721Deploy          = "zrc721-deploy"
	effectZrc721Mint            = "zrc721-mint"
	effectZnsRegister           = "zns-register"
)

// blockEffects accumulates everything processHeight did to the store for
// one block, in application order, so a reorg can invert it precisely in
// reverse order.
type blockEffects struct {
	Inscriptions []inscriptionEffect `json:"inscriptions"`
	Engine       []engineEffect      `json:"engine"`
}

func putBlockEffects(w store.Writer, height uint64, eff blockEffects) error {
	return store.PutJSON(w, TableBlockEffects, store.ZeroPad(height), eff)
}

func getBlockEffects(r store.Reader, height uint64) (blockEffects, error) {
	var eff blockEffects
	err := store.GetJSON(r, TableBlockEffects, store.ZeroPad(height), &eff)
	if err == store.ErrNotFound {
		return blockEffects{}, nil
	}
	return eff, err
}

func deleteBlockEffects(w store.Writer, height uint64) error {
	return w.Delete(TableBlockEffects, store.ZeroPad(height))
}
