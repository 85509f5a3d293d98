// Package chainclient talks to the blockchain node's JSON-RPC surface and
// to an optional Redis-backed tip-push channel. It is the only package that
// knows about node transport; the indexer depends solely on the Client
// interface below.
package chainclient

import (
	"context"
	"fmt"
)

// RpcError is the single error kind this package ever returns for
// transport or decode failures; the indexer loop treats it uniformly as
// recoverable.
type RpcError struct {
	Op  string
	Err error
}

func (e *RpcError) Error() string { return fmt.Sprintf("chainclient: %s: %v", e.Op, e.Err) }
func (e *RpcError) Unwrap() error { return e.Err }

func wrapRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RpcError{Op: op, Err: err}
}

// Input describes one transparent input of a transaction as surfaced by
// the node, including the pushes from its script-sig (envelope material)
// and the address it spent from, if the node could resolve it.
type Input struct {
	Txid         string
	Vout         uint32
	ScriptPushes [][]byte
	SpentAddress string
}

// Output is one transaction output.
type Output struct {
	N         uint32
	Value     string
	Addresses []string
}

// Transaction is the node's view of one transaction, as returned by
// get_raw_transaction.
type Transaction struct {
	Txid string
	Hex  string
	Vin  []Input
	Vout []Output
}

// Block is the node's view of one block, as returned by get_block.
type Block struct {
	Hash     string
	Height   uint64
	Time     int64
	Tx       []string
	Previous string
}

// Client is the contract the indexer depends on; transport, credentials
// and retry/backoff are this package's implementation detail.
type Client interface {
	GetBlockCount(ctx context.Context) (uint64, error)
	GetBlockHash(ctx context.Context, height uint64) (string, error)
	GetBlock(ctx context.Context, hash string) (*Block, error)
	GetRawTransaction(ctx context.Context, txid string) (*Transaction, error)
}
