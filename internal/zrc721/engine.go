package zrc721

import (
	"encoding/json"
	"strconv"

	"github.com/zatoshilabs/zord/internal/coreerr"
	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/store"
)

// ParseEnvelope decodes content as a ZRC-721 envelope, returning ok=false
// when the payload's "p" field does not match this protocol.
func ParseEnvelope(content []byte) (Envelope, bool, error) {
	var env Envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return Envelope{}, false, coreerr.Parse("zrc721: invalid json: %w", err)
	}
	if env.P != ProtocolID {
		return Envelope{}, false, nil
	}
	return env, true, nil
}

// Apply dispatches env to Deploy or Mint. receiver is the inscription's
// first output address, used as the new owner on mint.
func Apply(w store.Writer, inscriptionID string, env Envelope, deployer, receiver string) error {
	switch env.Op {
	case "deploy":
		return Deploy(w, inscriptionID, env, deployer)
	case "mint":
		return Mint(w, inscriptionID, env, receiver)
	default:
		return coreerr.Parse("zrc721: unknown op %q", env.Op)
	}
}

// Deploy creates a new collection, case-sensitive slug, first valid deploy
// wins.
func Deploy(w store.Writer, inscriptionID string, env Envelope, deployer string) error {
	if env.Collection == "" {
		return coreerr.Parse("zrc721: collection slug must not be empty")
	}
	supply, err := strconv.ParseUint(env.Supply, 10, 64)
	if err != nil || supply < 1 {
		return coreerr.Parse("zrc721: invalid supply %q", env.Supply)
	}
	var royaltyBP uint64
	if env.Royalty != "" {
		royaltyBP, err = strconv.ParseUint(env.Royalty, 10, 64)
		if err != nil || royaltyBP > 10000 {
			return coreerr.Parse("zrc721: invalid royalty %q", env.Royalty)
		}
	}

	info := CollectionInfo{
		Collection:    env.Collection,
		Supply:        supply,
		Minted:        0,
		MetaCID:       env.Meta,
		RoyaltyBP:     uint32(royaltyBP),
		Deployer:      deployer,
		InscriptionID: inscriptionID,
	}
	inserted, err := store.PutJSONIfAbsent(w, TableCollections, env.Collection, info)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	_, err = ledger.IncrMetaUint64(w, ledger.MetaCollectionsTotal, 1)
	return err
}

// RollbackDeploy removes the collection row created by Deploy.
func RollbackDeploy(w store.Writer, collection string) error {
	if err := w.Delete(TableCollections, collection); err != nil {
		return err
	}
	_, err := ledger.IncrMetaUint64(w, ledger.MetaCollectionsTotal, -1)
	return err
}

func getCollection(r store.Reader, collection string) (*CollectionInfo, error) {
	var info CollectionInfo
	if err := store.GetJSON(r, TableCollections, collection, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetCollection is the public read accessor used by the read surface.
func GetCollection(r store.Reader, collection string) (*CollectionInfo, error) {
	return getCollection(r, collection)
}

// GetNftToken is the public read accessor for a single token.
func GetNftToken(r store.Reader, collection string, id uint64) (*NftToken, error) {
	var tok NftToken
	if err := store.GetJSON(r, TableNftTokens, nftKey(collection, id), &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// Mint creates token id within collection for receiver, if the collection
// exists, id is in range, and the (collection, id) pair is unused.
func Mint(w store.Writer, inscriptionID string, env Envelope, receiver string) error {
	info, err := getCollection(w, env.Collection)
	if err == store.ErrNotFound {
		return coreerr.Parse("zrc721: mint on unknown collection %q", env.Collection)
	}
	if err != nil {
		return err
	}

	id, err := strconv.ParseUint(env.ID, 10, 64)
	if err != nil {
		return coreerr.Parse("zrc721: invalid id %q", env.ID)
	}
	if id >= info.Supply {
		return coreerr.Parse("zrc721: id %d out of range for supply %d", id, info.Supply)
	}

	tok := NftToken{
		Collection:    env.Collection,
		ID:            id,
		Owner:         receiver,
		InscriptionID: inscriptionID,
		MetadataPath:  MetadataPath(info.MetaCID, id),
	}
	inserted, err := store.PutJSONIfAbsent(w, TableNftTokens, nftKey(env.Collection, id), tok)
	if err != nil {
		return err
	}
	if !inserted {
		return nil // (collection, id) already minted; first mint wins
	}

	info.Minted++
	if err := store.PutJSON(w, TableCollections, env.Collection, *info); err != nil {
		return err
	}

	ownerKey := store.JoinKey(receiver, nftKey(env.Collection, id))
	if err := w.Put(TableOwnerIndex, ownerKey, []byte{}); err != nil {
		return err
	}
	_, err = ledger.IncrMetaUint64(w, ledger.MetaNftTokensTotal, 1)
	return err
}

// RollbackMint removes the token row, decrements minted, and removes the
// owner index entry.
func RollbackMint(w store.Writer, collection string, id uint64, owner string) error {
	if err := w.Delete(TableNftTokens, nftKey(collection, id)); err != nil {
		return err
	}
	info, err := getCollection(w, collection)
	if err != nil {
		return err
	}
	info.Minted--
	if err := store.PutJSON(w, TableCollections, collection, *info); err != nil {
		return err
	}
	if err := w.Delete(TableOwnerIndex, store.JoinKey(owner, nftKey(collection, id))); err != nil {
		return err
	}
	_, err = ledger.IncrMetaUint64(w, ledger.MetaNftTokensTotal, -1)
	return err
}

// ListCollections returns a page of collections ordered by slug ascending
// (alphabetical); the order is not deploy order.
func ListCollections(r store.Reader, startKey string, limit int) (store.Page[CollectionInfo], error) {
	opts := store.ScanOptions{StartKey: startKey, Limit: limit}
	return store.Paginate(r, TableCollections, opts, func(e store.Entry) (CollectionInfo, error) {
		var info CollectionInfo
		if err := json.Unmarshal(e.Value, &info); err != nil {
			return CollectionInfo{}, err
		}
		return info, nil
	})
}

// ListTokensByCollection returns a page of tokens within collection,
// ordered by id ascending.
func ListTokensByCollection(r store.Reader, collection, startKey string, limit int) (store.Page[NftToken], error) {
	prefix := collection + "\x00"
	opts := store.ScanOptions{Prefix: prefix, StartKey: startKey, Limit: limit}
	return store.Paginate(r, TableNftTokens, opts, func(e store.Entry) (NftToken, error) {
		var tok NftToken
		if err := json.Unmarshal(e.Value, &tok); err != nil {
			return NftToken{}, err
		}
		return tok, nil
	})
}
