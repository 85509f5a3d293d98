// Package zns implements the ZNS name registry: first-valid-inscription-
// wins semantics over a lowercase name key, eligible only for plain-text
// inscriptions ending in a recognized TLD.
package zns

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/zatoshilabs/zord/internal/coreerr"
	"github.com/zatoshilabs/zord/internal/ledger"
	"github.com/zatoshilabs/zord/internal/store"
)

const (
	TableNames        = "names"
	TableNamesByOwner = "names_by_owner"
)

// maxNameLen is the spec's 253-byte ceiling.
const maxNameLen = 253

var nameRe = regexp.MustCompile(`^[a-z0-9-]+\.(zec|zcash)$`)

// NameRecord is the immutable-after-registration name record.
type NameRecord struct {
	Display         string `json:"display"`
	Owner           string `json:"owner"`
	InscriptionID   string `json:"inscription_id"`
	Tld             string `json:"tld"`
	RegisteredHeight uint64 `json:"registered_height"`
}

// Eligible reports whether contentType/content qualify as a ZNS
// registration attempt: content-type begins with "text/plain" and the
// trimmed, lowercased content matches the name grammar.
func Eligible(contentType string, content []byte) (nameLower string, ok bool) {
	if !strings.HasPrefix(strings.ToLower(contentType), "text/plain") {
		return "", false
	}
	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" || len(trimmed) > maxNameLen {
		return "", false
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return "", false
	}
	lower := strings.ToLower(trimmed)
	if !nameRe.MatchString(lower) {
		return "", false
	}
	return lower, true
}

func tld(nameLower string) string {
	idx := strings.LastIndex(nameLower, ".")
	if idx < 0 {
		return ""
	}
	return nameLower[idx+1:]
}

// Register attempts to claim nameLower for owner. First valid inscription
// per key wins; later ones are silently ignored (not an error), recorded
// only in the inscription ledger by the caller.
func Register(w store.Writer, inscriptionID string, display, nameLower, owner string, height uint64) error {
	if err := validate(nameLower); err != nil {
		return err
	}
	rec := NameRecord{
		Display:          display,
		Owner:            owner,
		InscriptionID:    inscriptionID,
		Tld:              tld(nameLower),
		RegisteredHeight: height,
	}
	inserted, err := store.PutJSONIfAbsent(w, TableNames, nameLower, rec)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}
	if err := w.Put(TableNamesByOwner, store.JoinKey(owner, nameLower), []byte{}); err != nil {
		return err
	}
	_, err = ledger.IncrMetaUint64(w, ledger.MetaNamesTotal, 1)
	return err
}

func validate(nameLower string) error {
	if len(nameLower) == 0 || len(nameLower) > maxNameLen {
		return coreerr.Parse("zns: name length out of bounds")
	}
	if !nameRe.MatchString(nameLower) {
		return coreerr.Parse("zns: name %q does not match grammar", nameLower)
	}
	return nil
}

// RollbackRegister removes the name row created by Register.
func RollbackRegister(w store.Writer, nameLower, owner string) error {
	if err := w.Delete(TableNames, nameLower); err != nil {
		return err
	}
	if err := w.Delete(TableNamesByOwner, store.JoinKey(owner, nameLower)); err != nil {
		return err
	}
	_, err := ledger.IncrMetaUint64(w, ledger.MetaNamesTotal, -1)
	return err
}

// GetName is the public read accessor used by the read surface.
func GetName(r store.Reader, nameLower string) (*NameRecord, error) {
	var rec NameRecord
	if err := store.GetJSON(r, TableNames, nameLower, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListNames returns a page of names ordered by key ascending.
func ListNames(r store.Reader, startKey string, limit int) (store.Page[NameRecord], error) {
	opts := store.ScanOptions{StartKey: startKey, Limit: limit}
	return store.Paginate(r, TableNames, opts, func(e store.Entry) (NameRecord, error) {
		var rec NameRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return NameRecord{}, err
		}
		return rec, nil
	})
}
