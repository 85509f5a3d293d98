package indexer

import (
	"context"

	"github.com/zatoshilabs/zord/internal/coreerr"
	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/internal/zns"
	"github.com/zatoshilabs/zord/internal/zrc20"
	"github.com/zatoshilabs/zord/internal/zrc721"
)

// maybeRollback checks whether the block about to be committed at height
// still descends from what is recorded at height-1. If prevHash (the
// candidate block's "previous" pointer) disagrees with the recorded hash,
// it walks backwards, unwinding each engine's effects in reverse order,
// until the two agree again (§4.3 "Reorg handling").
func (ix *Indexer) maybeRollback(ctx context.Context, height uint64, prevHash string) (bool, error) {
	recorded, err := ix.readBlockHash(ctx, height-1)
	if err != nil {
		return false, err
	}
	if recorded == "" || recorded == prevHash {
		return false, nil
	}

	cursor := height - 1
	for cursor > 0 {
		chainHash, err := ix.chain.GetBlockHash(ctx, cursor)
		if err != nil {
			return false, err
		}
		localHash, err := ix.readBlockHash(ctx, cursor)
		if err != nil {
			return false, err
		}
		if localHash != "" && localHash == chainHash {
			break
		}

		if err := ix.rollbackHeight(ctx, cursor); err != nil {
			return false, err
		}
		cursor--
	}
	return true, nil
}

func (ix *Indexer) readBlockHash(ctx context.Context, height uint64) (string, error) {
	rt, err := ix.store.BeginRead(ctx)
	if err != nil {
		return "", err
	}
	defer rt.Close()
	return ledger.GetBlockHash(rt, height)
}

// rollbackHeight undoes every effect recorded for height inside one write
// transaction, then rewinds core_height to height-1.
func (ix *Indexer) rollbackHeight(ctx context.Context, height uint64) error {
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

	eff, err := getBlockEffects(wt, height)
	if err != nil {
		return err
	}

	for i := len(eff.Engine) - 1; i >= 0; i-- {
		if err := invertEngineEffect(wt, eff.Engine[i]); err != nil {
			return err
		}
	}
	for i := len(eff.Inscriptions) - 1; i >= 0; i-- {
		ie := eff.Inscriptions[i]
		if err := ledger.RemoveInscription(wt, ie.InscriptionID, ie.Number, ie.Sender); err != nil {
			return err
		}
	}
	if err := deleteBlockEffects(wt, height); err != nil {
		return err
	}
	if err := ledger.RemoveBlockHash(wt, height); err != nil {
		return err
	}
	if err := ledger.SetMetaUint64(wt, ledger.MetaCoreHeight, height-1); err != nil {
		return err
	}
	// Engine cursors were advanced in lock-step with core_height when
	// this height was committed; unwind them the same way so invariant 7
	// (core_height >= max(engine heights)) holds after rollback too.
	if err := ledger.SetMetaUint64(wt, ledger.MetaZrc20Height, height-1); err != nil {
		return err
	}
	if err := ledger.SetMetaUint64(wt, ledger.MetaZrc721Height, height-1); err != nil {
		return err
	}
	if err := ledger.SetMetaUint64(wt, ledger.MetaZnsHeight, height-1); err != nil {
		return err
	}

	if err := wt.Commit(); err != nil {
		return coreerr.Store("indexer: rollback commit height %d: %w", height, err)
	}
	committed = true
	return nil
}

func invertEngineEffect(w store.Writer, e engineEffect) error {
	switch e.Kind {
	case effectZrc20Deploy:
		return zrc20.RollbackDeploy(w, e.TickLower)
	case effectZrc20Mint:
		return zrc20.RollbackMint(w, e.TickLower, e.Owner, bigFromString(e.AcceptedBase))
	case effectZrc20TransferInscribe:
		rec, err := zrc20.GetTransferRecord(w, e.InscriptionID)
		if err != nil {
			return err
		}
		return zrc20.RollbackTransferInscribe(w, e.InscriptionID, *rec)
	case effectZrc20TransferExecute:
		return zrc20.RollbackTransferExecute(w, e.InscriptionID, e.Recipient)
	case effectZrc721Deploy:
		return zrc721.RollbackDeploy(w, e.Collection)
	case effectZrc721Mint:
		return zrc721.RollbackMint(w, e.Collection, e.ID, e.Owner)
	case effectZnsRegister:
		return zns.RollbackRegister(w, e.NameLower, e.Owner)
	default:
		return nil
	}
}
