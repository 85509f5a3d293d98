package indexer

import (
	"context"

	"github.com/zatoshilabs/zord/internal/ledger"
)

// readCoreHeight opens a short-lived read transaction to fetch core_height
// without contending with the single writer (§5).
func (ix *Indexer) readCoreHeight(ctx context.Context) (uint64, error) {
	rt, err := ix.store.BeginRead(ctx)
	if err != nil {
		return 0, err
	}
	defer rt.Close()
	return ledger.GetMetaUint64(rt, ledger.MetaCoreHeight)
}
