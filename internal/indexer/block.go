package indexer

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/zatoshilabs/zord/internal/chainclient"
	"github.com/zatoshilabs/zord/internal/coreerr"
	"github.com/zatoshilabs/zord/internal/envelope"
	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/internal/zns"
	"github.com/zatoshilabs/zord/internal/zrc20"
	"github.com/zatoshilabs/zord/internal/zrc721"
	"github.com/zatoshilabs/zord/pkg/workerpool"
)

// carrierVout is the output index convention this indexer uses for the
// sat carrying a freshly-inscribed envelope: the inscribing transaction's
// first output, mirroring the receiver-is-first-vout rule used throughout
// this package.
const carrierVout = 0

// processHeight runs the atomic per-block procedure for height: fetch,
// parse, dispatch, commit. A reorg at height-1 is detected and unwound
// before the height is (re)committed.
func (ix *Indexer) processHeight(ctx context.Context, height uint64) error {
	hash, err := ix.chain.GetBlockHash(ctx, height)
	if err != nil {
		return err
	}
	block, err := ix.chain.GetBlock(ctx, hash)
	if err != nil {
		return err
	}

	if height > 1 {
		reorged, err := ix.maybeRollback(ctx, height, block.Previous)
		if err != nil {
			return err
		}
		if reorged {
			// The chain was rewound; the caller's loop will re-derive
			// the next height to process from the (now shorter) cursor.
			return nil
		}
	}

	txs, err := ix.fetcher(ctx, ix.pool, ix.chain, block.Tx)
	if err != nil {
		return err
	}

	wt, err := ix.store.BeginWrite(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = wt.Abort()
		}
	}()

	var eff blockEffects
	inscriptionCount := 0
	for _, tx := range txs {
		receiver := firstOutputAddress(tx)

		for vinIdx, in := range tx.Vin {
			env, ok := envelope.Parse(in.ScriptPushes)
			if !ok {
				continue
			}
			inscriptionID := fmt.Sprintf("%si%d", tx.Txid, vinIdx)
			sender := in.SpentAddress

			rec := ledger.InscriptionRecord{
				InscriptionID: inscriptionID,
				ContentType:   env.ContentType,
				ContentHex:    fmt.Sprintf("%x", env.Content),
				ContentLength: len(env.Content),
				Sender:        sender,
				Receiver:      receiver,
				BlockHeight:   height,
				BlockTime:     block.Time,
				Txid:          tx.Txid,
				Vin:           uint32(vinIdx),
				PreviewText:   env.PreviewText,
			}
			number, err := ledger.InsertInscription(wt, rec)
			if err != nil {
				return err
			}
			inscriptionCount++
			eff.Inscriptions = append(eff.Inscriptions, inscriptionEffect{InscriptionID: inscriptionID, Number: number, Sender: sender})

			if e, err := dispatchEnvelope(wt, inscriptionID, env, sender, receiver, height, tx.Txid); err != nil {
				if coreerr.IsFatal(err) {
					return err
				}
				// A malformed envelope payload is a parse-level
				// concern scoped to this one inscription; the
				// inscription record itself still stands.
				continue
			} else if e != nil {
				eff.Engine = append(eff.Engine, *e)
			}
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
			eff.Engine = append(eff.Engine, engineEffect{Kind: effectZrc20TransferExecute, InscriptionID: pendingID, Recipient: recipient})
		}
	}

	if err := putBlockEffects(wt, height, eff); err != nil {
		return err
	}
	if err := ledger.PutBlockHash(wt, height, hash); err != nil {
		return err
	}
	if err := ledger.SetMetaUint64(wt, ledger.MetaCoreHeight, height); err != nil {
		return err
	}
	// All three engines are dispatched inline above, within this same
	// commit, so their cursors advance in lock-step with core_height
	// (§3 invariant: core_height >= max(zrc20_height, zrc721_height,
	// zns_height)). RebuildEngine is what lets one of them fall behind
	// and catch up independently.
	if err := ledger.SetMetaUint64(wt, ledger.MetaZrc20Height, height); err != nil {
		return err
	}
	if err := ledger.SetMetaUint64(wt, ledger.MetaZrc721Height, height); err != nil {
		return err
	}
	if err := ledger.SetMetaUint64(wt, ledger.MetaZnsHeight, height); err != nil {
		return err
	}
	tip, err := ix.chain.GetBlockCount(ctx)
	if err == nil {
		_ = ledger.SetMetaUint64(wt, ledger.MetaChainTip, tip)
	}

	if err := wt.Commit(); err != nil {
		return coreerr.Store("indexer: commit height %d: %w", height, err)
	}
	committed = true

	if ix.notify != nil {
		ix.notify.NotifyBlock(height, hash, inscriptionCount)
	}
	return nil
}

// dispatchEnvelope classifies env by content-type and routes it to the
// matching metaprotocol engine, per §4.3 step 3. It returns the
// engineEffect needed to invert the write on reorg, or nil if nothing
// actually changed (first-writer-wins silently rejected a duplicate).
func dispatchEnvelope(w store.Writer, inscriptionID string, env *envelope.Envelope, sender, receiver string, height uint64, txid string) (*engineEffect, error) {
	ct := envelope.NormalizeContentType(env.ContentType)
	if !strings.HasPrefix(ct, "application/json") && !strings.HasPrefix(ct, "text/plain") {
		return nil, nil
	}

	if zrc20Env, ok, err := zrc20.ParseEnvelope(env.Content); err != nil {
		return nil, err
	} else if ok {
		return applyZrc20(w, inscriptionID, zrc20Env, sender, receiver, height, txid)
	}

	if zrc721Env, ok, err := zrc721.ParseEnvelope(env.Content); err != nil {
		return nil, err
	} else if ok {
		return applyZrc721(w, inscriptionID, zrc721Env, sender, receiver)
	}

	if nameLower, ok := zns.Eligible(env.ContentType, env.Content); ok {
		existed := true
		if _, err := zns.GetName(w, nameLower); err == store.ErrNotFound {
			existed = false
		} else if err != nil {
			return nil, err
		}
		if err := zns.Register(w, inscriptionID, string(env.Content), nameLower, receiver, height); err != nil {
			return nil, err
		}
		if existed {
			return nil, nil
		}
		return &engineEffect{Kind: effectZnsRegister, NameLower: nameLower, Owner: receiver}, nil
	}

	return nil, nil
}

func applyZrc20(w store.Writer, inscriptionID string, env zrc20.Envelope, sender, receiver string, height uint64, txid string) (*engineEffect, error) {
	tickLower := envelope.NormalizeKey(env.Tick)
	switch env.Op {
	case "deploy":
		existed := true
		if _, err := zrc20.GetToken(w, tickLower); err == store.ErrNotFound {
			existed = false
		} else if err != nil {
			return nil, err
		}
		if err := zrc20.Deploy(w, inscriptionID, env, sender, height); err != nil {
			return nil, err
		}
		if existed {
			return nil, nil
		}
		return &engineEffect{Kind: effectZrc20Deploy, TickLower: tickLower}, nil

	case "mint":
		preSupply := "0"
		if before, err := zrc20.GetToken(w, tickLower); err == nil {
			preSupply = before.SupplyBase
		} else if err != store.ErrNotFound {
			return nil, err
		}
		if err := zrc20.Mint(w, env, receiver); err != nil {
			return nil, err
		}
		after, err := zrc20.GetToken(w, tickLower)
		if err != nil {
			return nil, err
		}
		accepted := diffDecimal(after.SupplyBase, preSupply)
		if accepted == "0" {
			return nil, nil
		}
		return &engineEffect{Kind: effectZrc20Mint, TickLower: tickLower, Owner: receiver, AcceptedBase: accepted}, nil

	case "transfer":
		if err := zrc20.TransferInscribe(w, inscriptionID, env, sender, txid, carrierVout); err != nil {
			return nil, err
		}
		return &engineEffect{Kind: effectZrc20TransferInscribe, InscriptionID: inscriptionID}, nil

	default:
		return nil, zrc20.Apply(w, inscriptionID, env, sender, receiver, height, txid, carrierVout)
	}
}

func applyZrc721(w store.Writer, inscriptionID string, env zrc721.Envelope, deployer, receiver string) (*engineEffect, error) {
	switch env.Op {
	case "deploy":
		existed := true
		if _, err := zrc721.GetCollection(w, env.Collection); err == store.ErrNotFound {
			existed = false
		} else if err != nil {
			return nil, err
		}
		if err := zrc721.Deploy(w, inscriptionID, env, deployer); err != nil {
			return nil, err
		}
		if existed {
			return nil, nil
		}
		return &engineEffect{Kind: effectZrc721Deploy, Collection: env.Collection}, nil

	case "mint":
		id, parseErr := strconv.ParseUint(env.ID, 10, 64)
		existed := parseErr != nil // an unparseable id never gets inserted either
		if parseErr == nil {
			if _, err := zrc721.GetNftToken(w, env.Collection, id); err == store.ErrNotFound {
				existed = false
			} else if err != nil {
				return nil, err
			} else {
				existed = true
			}
		}
		if err := zrc721.Mint(w, inscriptionID, env, receiver); err != nil {
			return nil, err
		}
		if existed {
			return nil, nil
		}
		return &engineEffect{Kind: effectZrc721Mint, Collection: env.Collection, ID: id, Owner: receiver}, nil

	default:
		return nil, zrc721.Apply(w, inscriptionID, env, deployer, receiver)
	}
}

// diffDecimal returns (a - b) as a decimal string, both given as decimal
// strings, using checked big.Int arithmetic.
func diffDecimal(a, b string) string {
	av, bv := bigFromString(a), bigFromString(b)
	return new(big.Int).Sub(av, bv).String()
}

func bigFromString(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

func firstOutputAddress(tx *chainclient.Transaction) string {
	for _, out := range tx.Vout {
		if len(out.Addresses) > 0 {
			return out.Addresses[0]
		}
	}
	return ""
}

// fetchTransactions is the default fetcher: it fans out get_raw_transaction
// calls across the worker pool (when one is configured) and re-sorts the
// results back into the block's original tx order before returning, so
// the pool's concurrency never becomes observable (§4.3 "added").
func fetchTransactions(ctx context.Context, pool *workerpool.Pool, chain chainclient.Client, txids []string) ([]*chainclient.Transaction, error) {
	results := make([]*chainclient.Transaction, len(txids))
	errs := make([]error, len(txids))

	if pool == nil {
		for i, txid := range txids {
			tx, err := chain.GetRawTransaction(ctx, txid)
			results[i], errs[i] = tx, err
		}
	} else {
		done := make(chan struct{}, len(txids))
		for i, txid := range txids {
			i, txid := i, txid
			task := workerpool.Task{
				ID: txid,
				Fn: func(ctx context.Context) error {
					tx, err := chain.GetRawTransaction(ctx, txid)
					results[i], errs[i] = tx, err
					done <- struct{}{}
					return err
				},
			}
			if err := pool.Submit(ctx, task); err != nil {
				return nil, err
			}
		}
		for range txids {
			<-done
		}
	}

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
