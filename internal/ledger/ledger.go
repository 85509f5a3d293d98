// Package ledger implements C1's primary inscription ledger: block hashes,
// inscription records, the monotonic numbering sequence, and the
// per-address inscription index. Every metaprotocol engine layers its own
// tables on top of the same store using the same key-composition idioms
// established here.
package ledger

import (
	"strconv"

	"github.com/zatoshilabs/zord/internal/store"
)

// Table names within the single physical kv_store table.
const (
	TableMeta                = "meta"
	TableBlocks              = "blocks"
	TableInscriptions        = "inscriptions"
	TableInscriptionNumbers  = "inscription_numbers"
	TableAddressInscriptions = "address_inscriptions"
)

// Meta keys, as enumerated in the data model.
const (
	MetaCoreHeight        = "core_height"
	MetaZrc20Height       = "zrc20_height"
	MetaZrc721Height      = "zrc721_height"
	MetaZnsHeight         = "zns_height"
	MetaChainTip          = "chain_tip"
	MetaInscriptionsTotal = "inscriptions_total"
	MetaNamesTotal        = "names_total"
	MetaTokensTotal       = "tokens_total"
	MetaCollectionsTotal  = "collections_total"
	MetaNftTokensTotal    = "nft_tokens_total"
)

// InscriptionRecord is the immutable per-inscription record created at
// block-commit time and never mutated thereafter.
type InscriptionRecord struct {
	InscriptionID string `json:"inscription_id"`
	ContentType   string `json:"content_type"`
	ContentHex    string `json:"content_hex"`
	ContentLength int    `json:"content_length"`
	Sender        string `json:"sender"`
	Receiver      string `json:"receiver"`
	BlockHeight   uint64 `json:"block_height"`
	BlockTime     int64  `json:"block_time"`
	Txid          string `json:"txid"`
	Vin           uint32 `json:"vin"`
	PreviewText   string `json:"preview_text,omitempty"`
	Kind          string `json:"kind,omitempty"`
	Number        uint64 `json:"number"`
}

// GetMeta returns the string meta value for key, or "" if unset.
func GetMeta(r store.Reader, key string) (string, error) {
	b, err := r.Get(TableMeta, key)
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetMetaUint64 returns the uint64 meta value for key, or 0 if unset.
func GetMetaUint64(r store.Reader, key string) (uint64, error) {
	s, err := GetMeta(r, key)
	if err != nil || s == "" {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}

// SetMeta writes a string meta value.
func SetMeta(w store.Writer, key, value string) error {
	return w.Put(TableMeta, key, []byte(value))
}

// SetMetaUint64 writes a uint64 meta value as decimal text.
func SetMetaUint64(w store.Writer, key string, value uint64) error {
	return SetMeta(w, key, strconv.FormatUint(value, 10))
}

// IncrMetaUint64 adds delta (which may be negative, encoded via subtract)
// to the named counter and returns the new value.
func IncrMetaUint64(w store.Writer, key string, delta int64) (uint64, error) {
	cur, err := GetMetaUint64(w, key)
	if err != nil {
		return 0, err
	}
	next := int64(cur) + delta
	if next < 0 {
		next = 0
	}
	if err := SetMetaUint64(w, key, uint64(next)); err != nil {
		return 0, err
	}
	return uint64(next), nil
}

// PutBlockHash records the hash of a processed height.
func PutBlockHash(w store.Writer, height uint64, hash string) error {
	return w.Put(TableBlocks, store.ZeroPad(height), []byte(hash))
}

// GetBlockHash returns the hash recorded for height, or "" if unprocessed.
func GetBlockHash(r store.Reader, height uint64) (string, error) {
	b, err := r.Get(TableBlocks, store.ZeroPad(height))
	if err == store.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RemoveBlockHash deletes the recorded hash for height (reorg rollback).
func RemoveBlockHash(w store.Writer, height uint64) error {
	return w.Delete(TableBlocks, store.ZeroPad(height))
}

// InsertInscription assigns the next ordinal number, writes the record,
// the number index, and appends to the sender's address index. It returns
// the assigned ordinal so the caller can pass it to RemoveInscription on
// rollback.
func InsertInscription(w store.Writer, rec InscriptionRecord) (uint64, error) {
	number, err := GetMetaUint64(w, MetaInscriptionsTotal)
	if err != nil {
		return 0, err
	}
	rec.Number = number

	if err := store.PutJSON(w, TableInscriptions, rec.InscriptionID, rec); err != nil {
		return 0, err
	}
	if err := w.Put(TableInscriptionNumbers, store.ZeroPad(number), []byte(rec.InscriptionID)); err != nil {
		return 0, err
	}
	addrKey := store.JoinKey(rec.Sender, store.ZeroPad(number))
	if err := w.Put(TableAddressInscriptions, addrKey, []byte(rec.InscriptionID)); err != nil {
		return 0, err
	}
	if _, err := IncrMetaUint64(w, MetaInscriptionsTotal, 1); err != nil {
		return 0, err
	}
	return number, nil
}

// RemoveInscription undoes InsertInscription during reorg rollback.
func RemoveInscription(w store.Writer, id string, number uint64, sender string) error {
	if err := w.Delete(TableInscriptions, id); err != nil {
		return err
	}
	if err := w.Delete(TableInscriptionNumbers, store.ZeroPad(number)); err != nil {
		return err
	}
	if err := w.Delete(TableAddressInscriptions, store.JoinKey(sender, store.ZeroPad(number))); err != nil {
		return err
	}
	_, err := IncrMetaUint64(w, MetaInscriptionsTotal, -1)
	return err
}

// GetInscription fetches a single inscription record by id.
func GetInscription(r store.Reader, id string) (*InscriptionRecord, error) {
	var rec InscriptionRecord
	if err := store.GetJSON(r, TableInscriptions, id, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListInscriptions returns a page of inscriptions ordered newest-first by
// ordinal number (the default, per §4.4's pagination rule).
func ListInscriptions(r store.Reader, startKey string, limit int) (store.Page[InscriptionRecord], error) {
	opts := store.ScanOptions{StartKey: startKey, Limit: limit, Descending: true}
	return store.Paginate(r, TableInscriptionNumbers, opts, func(e store.Entry) (InscriptionRecord, error) {
		var rec InscriptionRecord
		if err := store.GetJSON(r, TableInscriptions, string(e.Value), &rec); err != nil {
			return InscriptionRecord{}, err
		}
		return rec, nil
	})
}

// ListInscriptionsByAddress returns a page of inscription records observed
// to have been sent from address, newest first.
func ListInscriptionsByAddress(r store.Reader, address, startKey string, limit int) (store.Page[InscriptionRecord], error) {
	prefix := address + "\x00"
	opts := store.ScanOptions{Prefix: prefix, StartKey: startKey, Limit: limit, Descending: true}
	return store.Paginate(r, TableAddressInscriptions, opts, func(e store.Entry) (InscriptionRecord, error) {
		var rec InscriptionRecord
		if err := store.GetJSON(r, TableInscriptions, string(e.Value), &rec); err != nil {
			return InscriptionRecord{}, err
		}
		return rec, nil
	})
}
