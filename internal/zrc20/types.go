// Package zrc20 implements the ZRC-20 fungible-token metaprotocol state
// machine: deploy, mint, transfer-inscribe and transfer-execute, with
// checked 128-bit arithmetic and deterministic rollback inverses.
package zrc20

import (
	"math/big"

	"github.com/zatoshilabs/zord/internal/store"
)

const (
	TableTokens             = "tokens"
	TableBalances           = "balances"
	TableBalancesByAddress  = "balances_by_address"
	TableTransferInscripts  = "transfer_inscriptions"
	TableStats              = "zrc20_stats"
	TablePendingTransferIdx = "pending_transfer_carriers"
)

// ProtocolID is the "p" field value this engine handles.
const ProtocolID = "zrc-20"

// BurnSentinel is the receiver address used to represent a burn when a
// transfer-execute's spending transaction has no ordinary output (an
// OP_RETURN-only spend).
const BurnSentinel = "burn"

// MaxUint128 is the checked-arithmetic ceiling for every base-unit amount.
var MaxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Envelope is the JSON payload shape for every ZRC-20 operation; unused
// fields for a given Op are simply empty strings.
type Envelope struct {
	P    string `json:"p"`
	Op   string `json:"op"`
	Tick string `json:"tick"`
	Max  string `json:"max"`
	Lim  string `json:"lim"`
	Dec  string `json:"dec"`
	Amt  string `json:"amt"`
}

// TokenInfo is the token record created by the first valid deploy; after
// that only SupplyBase changes, on each mint.
type TokenInfo struct {
	TickLower     string `json:"tick_lower"`
	TickDisplay   string `json:"tick_display"`
	MaxBase       string `json:"max_base"`
	LimBase       string `json:"lim_base"`
	Dec           int    `json:"dec"`
	Deployer      string `json:"deployer"`
	SupplyBase    string `json:"supply_base"`
	InscriptionID string `json:"inscription_id"`
	DeployHeight  uint64 `json:"deploy_height"`
}

// Balance is the per-(ticker,address) balance row.
type Balance struct {
	AvailableBase string `json:"available_base"`
	OverallBase   string `json:"overall_base"`
}

// TransferRecord is created by transfer-inscribe and mutated exactly once,
// by transfer-execute, to used=true with its settling outpoint.
type TransferRecord struct {
	TickLower    string `json:"tick_lower"`
	AmtBase      string `json:"amt_base"`
	Sender       string `json:"sender"`
	Used         bool   `json:"used"`
	CarrierTxid  string `json:"carrier_txid"`
	CarrierVout  uint32 `json:"carrier_vout"`
	OutpointTxid string `json:"outpoint_txid,omitempty"`
	OutpointVout uint32 `json:"outpoint_vout,omitempty"`
}

// Stats accumulates per-ticker derived counters.
type Stats struct {
	HoldersTotal       uint64 `json:"holders_total"`
	HoldersPositive    uint64 `json:"holders_positive"`
	TransfersCompleted uint64 `json:"transfers_completed"`
	BurnedBase         string `json:"burned_base"`
}

func balanceKey(tickLower, address string) string { return store.JoinKey(tickLower, address) }

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
