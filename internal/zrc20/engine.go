package zrc20

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/zatoshilabs/zord/internal/coreerr"
	"github.com/zatoshilabs/zord/internal/envelope"
	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/store"
)

// ParseEnvelope decodes content as a ZRC-20 envelope, returning ok=false
// (not an error) when the payload's "p" field does not match this
// protocol, so the caller can try the other engines.
func ParseEnvelope(content []byte) (Envelope, bool, error) {
	var env Envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return Envelope{}, false, coreerr.Parse("zrc20: invalid json: %w", err)
	}
	if env.P != ProtocolID {
		return Envelope{}, false, nil
	}
	return env, true, nil
}

// Apply dispatches env to the matching operation. sender is the
// inscription's spent address (the encumbering holder for transfers);
// receiver is the inscription's first output address (the mint/transfer
// beneficiary).
func Apply(w store.Writer, inscriptionID string, env Envelope, sender, receiver string, height uint64, carrierTxid string, carrierVout uint32) error {
	switch env.Op {
	case "deploy":
		return Deploy(w, inscriptionID, env, sender, height)
	case "mint":
		return Mint(w, env, receiver)
	case "transfer":
		return TransferInscribe(w, inscriptionID, env, sender, carrierTxid, carrierVout)
	default:
		return coreerr.Parse("zrc20: unknown op %q", env.Op)
	}
}

// Deploy creates a new token if tick_lower is unused and the bounds are
// valid. First deploy per tick wins; later deploys are silently ignored
// (not an error), per the spec's first-writer-wins rule.
func Deploy(w store.Writer, inscriptionID string, env Envelope, deployer string, height uint64) error {
	tickLower := envelope.NormalizeKey(env.Tick)
	if len(env.Tick) != 4 && len(env.Tick) != 5 {
		return coreerr.Parse("zrc20: tick %q must be 4 or 5 bytes", env.Tick)
	}

	dec, err := ParseDecimals(env.Dec)
	if err != nil {
		return err
	}
	maxN, err := ParseBaseAmount(env.Max, dec)
	if err != nil {
		return err
	}
	limN, err := ParseBaseAmount(env.Lim, dec)
	if err != nil {
		return err
	}
	if maxN.Sign() <= 0 || limN.Sign() <= 0 || limN.Cmp(maxN) > 0 {
		return coreerr.Parse("zrc20: deploy %q has invalid max/lim bounds", tickLower)
	}

	info := TokenInfo{
		TickLower:     tickLower,
		TickDisplay:   env.Tick,
		MaxBase:       maxN.String(),
		LimBase:       limN.String(),
		Dec:           dec,
		Deployer:      deployer,
		SupplyBase:    "0",
		InscriptionID: inscriptionID,
		DeployHeight:  height,
	}
	inserted, err := store.PutJSONIfAbsent(w, TableTokens, tickLower, info)
	if err != nil {
		return err
	}
	if !inserted {
		return nil // first deploy already won; this one is a no-op, not an error
	}
	_, err = ledger.IncrMetaUint64(w, ledger.MetaTokensTotal, 1)
	return err
}

// RollbackDeploy removes the token row created by Deploy. Safe because the
// deploy inscription itself is rolled back in the same reorg walk.
func RollbackDeploy(w store.Writer, tickLower string) error {
	if err := w.Delete(TableTokens, tickLower); err != nil {
		return err
	}
	_, err := ledger.IncrMetaUint64(w, ledger.MetaTokensTotal, -1)
	return err
}

// GetToken is the public read accessor used by the read surface (C8).
func GetToken(r store.Reader, tickLower string) (*TokenInfo, error) { return getToken(r, tickLower) }

// GetBalance is the public read accessor used by the read surface (C8).
func GetBalance(r store.Reader, tickLower, address string) (*Balance, error) {
	bal, _, err := getBalance(r, tickLower, address)
	return bal, err
}

// GetStats is the public read accessor used by the read surface (C8).
func GetStats(r store.Reader, tickLower string) (Stats, error) { return getStats(r, tickLower) }

// GetTransferRecord fetches a pending or settled transfer record by its
// inscription id; used by the indexer to recover rollback state during a
// reorg.
func GetTransferRecord(r store.Reader, inscriptionID string) (*TransferRecord, error) {
	var rec TransferRecord
	if err := store.GetJSON(r, TableTransferInscripts, inscriptionID, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListTokens returns a page of tokens ordered by tick_lower ascending
// (alphabetical); the order is not deploy order.
func ListTokens(r store.Reader, startKey string, limit int) (store.Page[TokenInfo], error) {
	opts := store.ScanOptions{StartKey: startKey, Limit: limit}
	return store.Paginate(r, TableTokens, opts, func(e store.Entry) (TokenInfo, error) {
		var info TokenInfo
		if err := json.Unmarshal(e.Value, &info); err != nil {
			return TokenInfo{}, err
		}
		return info, nil
	})
}

// ListBalancesByTicker returns a page of (address, Balance) rows for
// tickLower, ordered by address — the basis for the rank-of-address query.
func ListBalancesByTicker(r store.Reader, tickLower, startKey string, limit int) (store.Page[BalanceRow], error) {
	prefix := tickLower + "\x00"
	opts := store.ScanOptions{Prefix: prefix, StartKey: startKey, Limit: limit}
	return store.Paginate(r, TableBalances, opts, func(e store.Entry) (BalanceRow, error) {
		var bal Balance
		if err := json.Unmarshal(e.Value, &bal); err != nil {
			return BalanceRow{}, err
		}
		parts := strings.SplitN(e.Key, "\x00", 2)
		address := ""
		if len(parts) == 2 {
			address = parts[1]
		}
		return BalanceRow{Address: address, Balance: bal}, nil
	})
}

// ListBalancesByAddress returns every ticker the address holds a row for,
// using the secondary balances_by_address index to avoid a full table
// scan (§4.8).
func ListBalancesByAddress(r store.Reader, address, startKey string, limit int) (store.Page[BalanceRow], error) {
	prefix := address + "\x00"
	opts := store.ScanOptions{Prefix: prefix, StartKey: startKey, Limit: limit}
	return store.Paginate(r, TableBalancesByAddress, opts, func(e store.Entry) (BalanceRow, error) {
		parts := strings.SplitN(e.Key, "\x00", 2)
		tickLower := ""
		if len(parts) == 2 {
			tickLower = parts[1]
		}
		bal, _, err := getBalance(r, tickLower, address)
		if err != nil {
			return BalanceRow{}, err
		}
		return BalanceRow{Address: address, TickLower: tickLower, Balance: *bal}, nil
	})
}

// BalanceRow pairs a Balance with the address/ticker it belongs to, for
// listing endpoints that scan across addresses or tickers.
type BalanceRow struct {
	Address   string
	TickLower string
	Balance   Balance
}

func getToken(w store.Reader, tickLower string) (*TokenInfo, error) {
	var info TokenInfo
	if err := store.GetJSON(w, TableTokens, tickLower, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func getBalance(w store.Reader, tickLower, address string) (*Balance, bool, error) {
	var bal Balance
	err := store.GetJSON(w, TableBalances, balanceKey(tickLower, address), &bal)
	if err == store.ErrNotFound {
		return &Balance{AvailableBase: "0", OverallBase: "0"}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &bal, true, nil
}

func putBalance(w store.Writer, tickLower, address string, bal Balance) error {
	if err := store.PutJSON(w, TableBalances, balanceKey(tickLower, address), bal); err != nil {
		return err
	}
	return w.Put(TableBalancesByAddress, store.JoinKey(address, tickLower), []byte{})
}

func getStats(w store.Reader, tickLower string) (Stats, error) {
	var s Stats
	err := store.GetJSON(w, TableStats, tickLower, &s)
	if err == store.ErrNotFound {
		return Stats{BurnedBase: "0"}, nil
	}
	return s, err
}

func putStats(w store.Writer, tickLower string, s Stats) error {
	return store.PutJSON(w, TableStats, tickLower, s)
}

// Mint credits receiver with the requested amount, applying the
// partial-mint rule when supply + amt would exceed max.
func Mint(w store.Writer, env Envelope, receiver string) error {
	tickLower := envelope.NormalizeKey(env.Tick)
	info, err := getToken(w, tickLower)
	if err == store.ErrNotFound {
		return coreerr.Parse("zrc20: mint on unknown token %q", tickLower)
	}
	if err != nil {
		return err
	}

	amtBase, err := ParseBaseAmount(env.Amt, info.Dec)
	if err != nil {
		return err
	}
	if amtBase.Sign() <= 0 {
		return coreerr.Parse("zrc20: mint amount must be positive")
	}
	limBase := bigOrZero(info.LimBase)
	if amtBase.Cmp(limBase) > 0 {
		return coreerr.Parse("zrc20: mint amount exceeds per-mint limit")
	}

	supply := bigOrZero(info.SupplyBase)
	maxBase := bigOrZero(info.MaxBase)
	remaining := new(big.Int).Sub(maxBase, supply)
	accepted := amtBase
	if new(big.Int).Add(supply, amtBase).Cmp(maxBase) > 0 {
		if remaining.Sign() <= 0 {
			return coreerr.Parse("zrc20: mint rejected, supply already at max")
		}
		accepted = remaining
	}

	info.SupplyBase = new(big.Int).Add(supply, accepted).String()
	if err := store.PutJSON(w, TableTokens, tickLower, *info); err != nil {
		return err
	}

	bal, existed, err := getBalance(w, tickLower, receiver)
	if err != nil {
		return err
	}
	wasPositive := bigOrZero(bal.AvailableBase).Sign() > 0 || bigOrZero(bal.OverallBase).Sign() > 0
	bal.AvailableBase = new(big.Int).Add(bigOrZero(bal.AvailableBase), accepted).String()
	bal.OverallBase = new(big.Int).Add(bigOrZero(bal.OverallBase), accepted).String()
	if err := putBalance(w, tickLower, receiver, *bal); err != nil {
		return err
	}

	stats, err := getStats(w, tickLower)
	if err != nil {
		return err
	}
	if !existed {
		stats.HoldersTotal++
	}
	if !wasPositive && bigOrZero(bal.OverallBase).Sign() > 0 {
		stats.HoldersPositive++
	}
	return putStats(w, tickLower, stats)
}

// RollbackMint is Mint's deterministic inverse, given the amount that was
// actually accepted (recoverable from the forward op's effect log by the
// caller).
func RollbackMint(w store.Writer, tickLower, receiver string, acceptedBase *big.Int) error {
	info, err := getToken(w, tickLower)
	if err != nil {
		return err
	}
	info.SupplyBase = new(big.Int).Sub(bigOrZero(info.SupplyBase), acceptedBase).String()
	if err := store.PutJSON(w, TableTokens, tickLower, *info); err != nil {
		return err
	}

	bal, _, err := getBalance(w, tickLower, receiver)
	if err != nil {
		return err
	}
	wasPositive := bigOrZero(bal.OverallBase).Sign() > 0
	bal.AvailableBase = new(big.Int).Sub(bigOrZero(bal.AvailableBase), acceptedBase).String()
	bal.OverallBase = new(big.Int).Sub(bigOrZero(bal.OverallBase), acceptedBase).String()
	if err := putBalance(w, tickLower, receiver, *bal); err != nil {
		return err
	}

	stats, err := getStats(w, tickLower)
	if err != nil {
		return err
	}
	if wasPositive && bigOrZero(bal.OverallBase).Sign() == 0 {
		stats.HoldersPositive--
	}
	return putStats(w, tickLower, stats)
}

// TransferInscribe encumbers sender's available balance and creates a
// pending TransferRecord, indexed by its carrier outpoint so the indexer
// can detect the later spend that triggers TransferExecute.
func TransferInscribe(w store.Writer, inscriptionID string, env Envelope, sender, carrierTxid string, carrierVout uint32) error {
	tickLower := envelope.NormalizeKey(env.Tick)
	info, err := getToken(w, tickLower)
	if err == store.ErrNotFound {
		return coreerr.Parse("zrc20: transfer on unknown token %q", tickLower)
	}
	if err != nil {
		return err
	}

	amtBase, err := ParseBaseAmount(env.Amt, info.Dec)
	if err != nil {
		return err
	}
	if amtBase.Sign() <= 0 {
		return coreerr.Parse("zrc20: transfer amount must be positive")
	}

	bal, _, err := getBalance(w, tickLower, sender)
	if err != nil {
		return err
	}
	available := bigOrZero(bal.AvailableBase)
	if amtBase.Cmp(available) > 0 {
		return coreerr.Parse("zrc20: transfer amount exceeds available balance")
	}
	bal.AvailableBase = new(big.Int).Sub(available, amtBase).String()
	if err := putBalance(w, tickLower, sender, *bal); err != nil {
		return err
	}

	rec := TransferRecord{
		TickLower:   tickLower,
		AmtBase:     amtBase.String(),
		Sender:      sender,
		Used:        false,
		CarrierTxid: carrierTxid,
		CarrierVout: carrierVout,
	}
	if err := store.PutJSON(w, TableTransferInscripts, inscriptionID, rec); err != nil {
		return err
	}
	return w.Put(TablePendingTransferIdx, store.JoinKey(carrierTxid, carrierVoutKey(carrierVout)), []byte(inscriptionID))
}

// RollbackTransferInscribe restores sender's available balance and removes
// the pending transfer record and its carrier index entry.
func RollbackTransferInscribe(w store.Writer, inscriptionID string, rec TransferRecord) error {
	bal, _, err := getBalance(w, rec.TickLower, rec.Sender)
	if err != nil {
		return err
	}
	bal.AvailableBase = new(big.Int).Add(bigOrZero(bal.AvailableBase), bigOrZero(rec.AmtBase)).String()
	if err := putBalance(w, rec.TickLower, rec.Sender, *bal); err != nil {
		return err
	}
	if err := w.Delete(TableTransferInscripts, inscriptionID); err != nil {
		return err
	}
	return w.Delete(TablePendingTransferIdx, store.JoinKey(rec.CarrierTxid, carrierVoutKey(rec.CarrierVout)))
}

// LookupPendingTransfer returns the inscription id of the outstanding
// transfer whose carrier outpoint is (txid, vout), if any.
func LookupPendingTransfer(w store.Writer, txid string, vout uint32) (string, bool, error) {
	b, err := w.Get(TablePendingTransferIdx, store.JoinKey(txid, carrierVoutKey(vout)))
	if err == store.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

func carrierVoutKey(vout uint32) string { return store.ZeroPad(uint64(vout)) }

// TransferExecute settles a pending transfer when its carrier UTXO is
// spent. recipient is the spending transaction's first output address, or
// BurnSentinel if that transaction has no ordinary output.
func TransferExecute(w store.Writer, inscriptionID string, spendTxid string, spendVout uint32, recipient string) error {
	var rec TransferRecord
	if err := store.GetJSON(w, TableTransferInscripts, inscriptionID, &rec); err != nil {
		return err
	}
	if rec.Used {
		return nil // replay safety: already settled, no-op
	}

	rec.Used = true
	rec.OutpointTxid = spendTxid
	rec.OutpointVout = spendVout
	if err := store.PutJSON(w, TableTransferInscripts, inscriptionID, rec); err != nil {
		return err
	}
	if err := w.Delete(TablePendingTransferIdx, store.JoinKey(rec.CarrierTxid, carrierVoutKey(rec.CarrierVout))); err != nil {
		return err
	}

	amtBase := bigOrZero(rec.AmtBase)
	senderBal, _, err := getBalance(w, rec.TickLower, rec.Sender)
	if err != nil {
		return err
	}
	senderBal.OverallBase = new(big.Int).Sub(bigOrZero(senderBal.OverallBase), amtBase).String()
	senderWasPositive := bigOrZero(senderBal.OverallBase).Sign() > 0 || amtBase.Sign() > 0
	if err := putBalance(w, rec.TickLower, rec.Sender, *senderBal); err != nil {
		return err
	}

	stats, err := getStats(w, rec.TickLower)
	if err != nil {
		return err
	}

	if strings.EqualFold(recipient, BurnSentinel) || recipient == "" {
		stats.BurnedBase = new(big.Int).Add(bigOrZero(stats.BurnedBase), amtBase).String()
	} else {
		recvBal, existed, err := getBalance(w, rec.TickLower, recipient)
		if err != nil {
			return err
		}
		recvWasPositive := bigOrZero(recvBal.OverallBase).Sign() > 0
		recvBal.AvailableBase = new(big.Int).Add(bigOrZero(recvBal.AvailableBase), amtBase).String()
		recvBal.OverallBase = new(big.Int).Add(bigOrZero(recvBal.OverallBase), amtBase).String()
		if err := putBalance(w, rec.TickLower, recipient, *recvBal); err != nil {
			return err
		}
		if !existed {
			stats.HoldersTotal++
		}
		if !recvWasPositive && bigOrZero(recvBal.OverallBase).Sign() > 0 {
			stats.HoldersPositive++
		}
	}

	if senderWasPositive && bigOrZero(senderBal.OverallBase).Sign() == 0 {
		stats.HoldersPositive--
	}
	stats.TransfersCompleted++
	return putStats(w, rec.TickLower, stats)
}

// RollbackTransferExecute reverses TransferExecute: flips used back to
// false, re-establishes the carrier index entry, reverses the address
// deltas and restores burned_base.
func RollbackTransferExecute(w store.Writer, inscriptionID, recipient string) error {
	var rec TransferRecord
	if err := store.GetJSON(w, TableTransferInscripts, inscriptionID, &rec); err != nil {
		return err
	}
	amtBase := bigOrZero(rec.AmtBase)

	rec.Used = false
	rec.OutpointTxid = ""
	rec.OutpointVout = 0
	if err := store.PutJSON(w, TableTransferInscripts, inscriptionID, rec); err != nil {
		return err
	}
	if err := w.Put(TablePendingTransferIdx, store.JoinKey(rec.CarrierTxid, carrierVoutKey(rec.CarrierVout)), []byte(inscriptionID)); err != nil {
		return err
	}

	senderBal, _, err := getBalance(w, rec.TickLower, rec.Sender)
	if err != nil {
		return err
	}
	senderWasPositive := bigOrZero(senderBal.OverallBase).Sign() > 0
	senderBal.OverallBase = new(big.Int).Add(bigOrZero(senderBal.OverallBase), amtBase).String()
	if err := putBalance(w, rec.TickLower, rec.Sender, *senderBal); err != nil {
		return err
	}

	stats, err := getStats(w, rec.TickLower)
	if err != nil {
		return err
	}
	if !senderWasPositive && bigOrZero(senderBal.OverallBase).Sign() > 0 {
		stats.HoldersPositive++
	}
	if strings.EqualFold(recipient, BurnSentinel) || recipient == "" {
		stats.BurnedBase = new(big.Int).Sub(bigOrZero(stats.BurnedBase), amtBase).String()
	} else {
		recvBal, _, err := getBalance(w, rec.TickLower, recipient)
		if err != nil {
			return err
		}
		recvWasPositive := bigOrZero(recvBal.OverallBase).Sign() > 0
		recvBal.AvailableBase = new(big.Int).Sub(bigOrZero(recvBal.AvailableBase), amtBase).String()
		recvBal.OverallBase = new(big.Int).Sub(bigOrZero(recvBal.OverallBase), amtBase).String()
		if err := putBalance(w, rec.TickLower, recipient, *recvBal); err != nil {
			return err
		}
		if recvWasPositive && bigOrZero(recvBal.OverallBase).Sign() == 0 {
			stats.HoldersPositive--
		}
	}
	stats.TransfersCompleted--
	return putStats(w, rec.TickLower, stats)
}
