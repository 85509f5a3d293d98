package indexer

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatoshilabs/zord/internal/chainclient"
	"github.com/zatoshilabs/zord/internal/coreerr"
	"github.com/zatoshilabs/zord/internal/envelope"
	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/internal/zns"
	"github.com/zatoshilabs/zord/internal/zrc20"
	"github.com/zatoshilabs/zord/internal/zrc721"
)

// EngineName identifies one of the three metaprotocol engines for
// per-engine cursor tracking and independent rebuild.
type EngineName string

const (
	EngineZrc20  EngineName = "zrc20"
	EngineZrc721 EngineName = "zrc721"
	EngineZns    EngineName = "zns"
)

func (e EngineName) metaHeightKey() string {
	switch e {
	case EngineZrc20:
		return ledger.MetaZrc20Height
	case EngineZrc721:
		return ledger.MetaZrc721Height
	case EngineZns:
		return ledger.MetaZnsHeight
	default:
		return ""
	}
}

func (e EngineName) tables() []string {
	switch e {
	case EngineZrc20:
		return []string{zrc20.TableTokens, zrc20.TableBalances, zrc20.TableBalancesByAddress, zrc20.TableTransferInscripts, zrc20.TableStats, zrc20.TablePendingTransferIdx}
	case EngineZrc721:
		return []string{zrc721.TableCollections, zrc721.TableNftTokens, zrc721.TableOwnerIndex}
	case EngineZns:
		return []string{zns.TableNames, zns.TableNamesByOwner}
	default:
		return nil
	}
}

func (e EngineName) counters() []string {
	switch e {
	case EngineZrc20:
		return []string{ledger.MetaTokensTotal}
	case EngineZrc721:
		return []string{ledger.MetaCollectionsTotal, ledger.MetaNftTokensTotal}
	case EngineZns:
		return []string{ledger.MetaNamesTotal}
	default:
		return nil
	}
}

// RebuildEngine drops one engine's own tables and totals, resets its
// cursor to start-1, then replays every already-committed block from
// start through the current core height, dispatching only to that
// engine. The core inscription ledger, block-hash index, and core_height
// are never touched: this is the "drop one engine's tables and reset its
// cursor below START_HEIGHT" rebuild path from the persisted-state-layout
// note, driven here instead of by a cold restart.
func RebuildEngine(ctx context.Context, s *store.Store, chain chainclient.Client, name EngineName, start uint64) error {
	if name.metaHeightKey() == "" {
		return coreerr.Parse("indexer: unknown engine %q", name)
	}
	if start == 0 {
		start = 1
	}

	wt, err := s.BeginWrite(ctx)
	if err != nil {
		return err
	}
	coreHeight, err := ledger.GetMetaUint64(wt, ledger.MetaCoreHeight)
	if err != nil {
		_ = wt.Abort()
		return err
	}
	for _, tbl := range name.tables() {
		if err := clearTable(wt, tbl); err != nil {
			_ = wt.Abort()
			return err
		}
	}
	for _, key := range name.counters() {
		if err := ledger.SetMetaUint64(wt, key, 0); err != nil {
			_ = wt.Abort()
			return err
		}
	}
	if err := ledger.SetMetaUint64(wt, name.metaHeightKey(), start-1); err != nil {
		_ = wt.Abort()
		return err
	}
	if err := wt.Commit(); err != nil {
		return coreerr.Store("indexer: rebuild %s reset: %w", name, err)
	}

	for height := start; height <= coreHeight; height++ {
		if err := replayHeightForEngine(ctx, s, chain, name, height); err != nil {
			return err
		}
	}
	return nil
}

// clearTable deletes every row of tbl. Scan re-queries from the top each
// pass, so rows already deleted simply fall out of the next page; this
// avoids needing a generic "drop table" primitive on store.Writer.
func clearTable(w store.Writer, tbl string) error {
	for {
		entries, err := w.Scan(tbl, store.ScanOptions{Limit: 500})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for _, e := range entries {
			if err := w.Delete(tbl, e.Key); err != nil {
				return err
			}
		}
	}
}

// replayHeightForEngine re-fetches one already-ingested block and re-runs
// dispatch for name only, inside its own write transaction, advancing
// only that engine's cursor. Other engines' tables and core_height are
// never written here.
func replayHeightForEngine(ctx context.Context, s *store.Store, chain chainclient.Client, name EngineName, height uint64) error {
	hash, err := chain.GetBlockHash(ctx, height)
	if err != nil {
		return err
	}
	block, err := chain.GetBlock(ctx, hash)
	if err != nil {
		return err
	}

	wt, err := s.BeginWrite(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = wt.Abort()
		}
	}()

	for _, txid := range block.Tx {
		tx, err := chain.GetRawTransaction(ctx, txid)
		if err != nil {
			return err
		}
		receiver := firstOutputAddress(tx)

		for vinIdx, in := range tx.Vin {
			env, ok := envelope.Parse(in.ScriptPushes)
			if !ok {
				continue
			}
			inscriptionID := fmt.Sprintf("%si%d", tx.Txid, vinIdx)
			sender := in.SpentAddress
			if err := dispatchEnvelopeForEngine(wt, name, inscriptionID, env, sender, receiver, height, tx.Txid); err != nil {
				if coreerr.IsFatal(err) {
					return err
				}
				continue
			}
		}

		if name != EngineZrc20 {
			continue
		}
		for _, in := range tx.Vin {
			pendingID, found, err := zrc20.LookupPendingTransfer(wt, in.Txid, in.Vout)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			recipient := receiver
			if recipient == "" {
				recipient = zrc20.BurnSentinel
			}
			if err := zrc20.TransferExecute(wt, pendingID, tx.Txid, in.Vout, recipient); err != nil {
				if !coreerr.IsFatal(err) {
					continue
				}
				return err
			}
		}
	}

	if err := ledger.SetMetaUint64(wt, name.metaHeightKey(), height); err != nil {
		return err
	}
	if err := wt.Commit(); err != nil {
		return coreerr.Store("indexer: rebuild %s replay height %d: %w", name, height, err)
	}
	committed = true
	return nil
}

// dispatchEnvelopeForEngine is dispatchEnvelope (block.go) narrowed to a
// single engine, so replaying one engine's history never touches
// another engine's state. Tables were already cleared by RebuildEngine,
// so there is no need to track first-writer-wins effects here the way
// the live loop's dispatchEnvelope does for reorg inversion.
func dispatchEnvelopeForEngine(w store.Writer, name EngineName, inscriptionID string, env *envelope.Envelope, sender, receiver string, height uint64, txid string) error {
	ct := envelope.NormalizeContentType(env.ContentType)
	if !strings.HasPrefix(ct, "application/json") && !strings.HasPrefix(ct, "text/plain") {
		return nil
	}

	switch name {
	case EngineZrc20:
		zrc20Env, ok, err := zrc20.ParseEnvelope(env.Content)
		if err != nil || !ok {
			return err
		}
		_, err = applyZrc20(w, inscriptionID, zrc20Env, sender, receiver, height, txid)
		return err

	case EngineZrc721:
		zrc721Env, ok, err := zrc721.ParseEnvelope(env.Content)
		if err != nil || !ok {
			return err
		}
		_, err = applyZrc721(w, inscriptionID, zrc721Env, sender, receiver)
		return err

	case EngineZns:
		nameLower, ok := zns.Eligible(env.ContentType, env.Content)
		if !ok {
			return nil
		}
		return zns.Register(w, inscriptionID, string(env.Content), nameLower, receiver, height)
	}
	return nil
}
