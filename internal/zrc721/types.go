// Package zrc721 implements the ZRC-721 NFT metaprotocol: collection
// deploy and unique-id mint, with a deterministic metadata path derived
// from the collection's stored CID.
package zrc721

import (
	"fmt"

	"github.com/zatoshilabs/zord/internal/store"
)

const (
	TableCollections  = "collections"
	TableNftTokens    = "nft_tokens"
	TableOwnerIndex   = "nft_owner_index"
)

// ProtocolID is the "p" field value this engine handles.
const ProtocolID = "zrc-721"

// Envelope is the JSON payload shape for deploy and mint.
type Envelope struct {
	P          string `json:"p"`
	Op         string `json:"op"`
	Collection string `json:"collection"`
	Supply     string `json:"supply"`
	Meta       string `json:"meta"`
	Royalty    string `json:"royalty"`
	ID         string `json:"id"`
}

// CollectionInfo is the collection record created by the first valid
// deploy; after that only Minted changes, on each mint.
type CollectionInfo struct {
	Collection    string `json:"collection"`
	Supply        uint64 `json:"supply"`
	Minted        uint64 `json:"minted"`
	MetaCID       string `json:"meta_cid"`
	RoyaltyBP     uint32 `json:"royalty_bp"`
	Deployer      string `json:"deployer"`
	InscriptionID string `json:"inscription_id"`
}

// NftToken is a single minted token within a collection.
type NftToken struct {
	Collection    string `json:"collection"`
	ID            uint64 `json:"id"`
	Owner         string `json:"owner"`
	InscriptionID string `json:"inscription_id"`
	MetadataPath  string `json:"metadata_path"`
}

func nftKey(collection string, id uint64) string {
	return store.JoinKey(collection, store.ZeroPad(id))
}

// MetadataPath derives "<meta>/<id>.json" — not fetched by the core, only
// stored for consumers.
func MetadataPath(metaCID string, id uint64) string {
	return fmt.Sprintf("%s/%d.json", metaCID, id)
}
