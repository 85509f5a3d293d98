package ledger

import (
	"testing"

	"github.com/zatoshilabs/zord/internal/store"
)

// fakeStore is a minimal in-memory stand-in for store.WriteTxn/ReadTxn,
// used the way the teacher's MockRepository stands in for a real database.
type fakeStore struct {
	data map[string]map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]map[string][]byte)}
}

func (f *fakeStore) Get(tbl, key string) ([]byte, error) {
	t, ok := f.data[tbl]
	if !ok {
		return nil, store.ErrNotFound
	}
	v, ok := t[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) Put(tbl, key string, value []byte) error {
	if f.data[tbl] == nil {
		f.data[tbl] = make(map[string][]byte)
	}
	f.data[tbl][key] = value
	return nil
}

func (f *fakeStore) PutIfAbsent(tbl, key string, value []byte) (bool, error) {
	if f.data[tbl] == nil {
		f.data[tbl] = make(map[string][]byte)
	}
	if _, exists := f.data[tbl][key]; exists {
		return false, nil
	}
	f.data[tbl][key] = value
	return true, nil
}

func (f *fakeStore) Delete(tbl, key string) error {
	if f.data[tbl] != nil {
		delete(f.data[tbl], key)
	}
	return nil
}

func (f *fakeStore) Scan(tbl string, opts store.ScanOptions) ([]store.Entry, error) {
	var keys []string
	for k := range f.data[tbl] {
		keys = append(keys, k)
	}
	// naive insertion-order-independent sort
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			less := keys[j] < keys[i]
			if opts.Descending {
				less = keys[j] > keys[i]
			}
			if less {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	var out []store.Entry
	for _, k := range keys {
		if len(out) >= limit+1 {
			break
		}
		out = append(out, store.Entry{Key: k, Value: f.data[tbl][k]})
	}
	return out, nil
}

func TestInsertAndGetInscription(t *testing.T) {
	f := newFakeStore()
	rec := InscriptionRecord{
		InscriptionID: "txid1i0",
		ContentType:   "text/plain",
		Sender:        "t_A",
		Receiver:      "t_B",
		BlockHeight:   100,
	}
	number, err := InsertInscription(f, rec)
	if err != nil {
		t.Fatalf("InsertInscription error: %v", err)
	}
	if number != 0 {
		t.Errorf("expected first inscription number 0, got %d", number)
	}

	got, err := GetInscription(f, "txid1i0")
	if err != nil {
		t.Fatalf("GetInscription error: %v", err)
	}
	if got.Sender != "t_A" || got.Receiver != "t_B" {
		t.Errorf("unexpected record: %+v", got)
	}

	total, err := GetMetaUint64(f, MetaInscriptionsTotal)
	if err != nil {
		t.Fatalf("GetMetaUint64 error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected inscriptions_total == 1, got %d", total)
	}
}

func TestRemoveInscriptionIsInverseOfInsert(t *testing.T) {
	f := newFakeStore()
	rec := InscriptionRecord{InscriptionID: "txid2i0", Sender: "t_A"}
	number, err := InsertInscription(f, rec)
	if err != nil {
		t.Fatalf("InsertInscription error: %v", err)
	}
	if err := RemoveInscription(f, rec.InscriptionID, number, rec.Sender); err != nil {
		t.Fatalf("RemoveInscription error: %v", err)
	}
	if _, err := GetInscription(f, rec.InscriptionID); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after rollback, got %v", err)
	}
	total, _ := GetMetaUint64(f, MetaInscriptionsTotal)
	if total != 0 {
		t.Errorf("expected inscriptions_total == 0 after rollback, got %d", total)
	}
}

func TestBlockHashRoundTrip(t *testing.T) {
	f := newFakeStore()
	if err := PutBlockHash(f, 3132400, "hash123"); err != nil {
		t.Fatalf("PutBlockHash error: %v", err)
	}
	hash, err := GetBlockHash(f, 3132400)
	if err != nil {
		t.Fatalf("GetBlockHash error: %v", err)
	}
	if hash != "hash123" {
		t.Errorf("hash = %q", hash)
	}
	if err := RemoveBlockHash(f, 3132400); err != nil {
		t.Fatalf("RemoveBlockHash error: %v", err)
	}
	hash, _ = GetBlockHash(f, 3132400)
	if hash != "" {
		t.Errorf("expected empty hash after removal, got %q", hash)
	}
}

func TestListInscriptionsNewestFirst(t *testing.T) {
	f := newFakeStore()
	for i := 0; i < 3; i++ {
		rec := InscriptionRecord{InscriptionID: string(rune('a' + i)), Sender: "t_A"}
		if _, err := InsertInscription(f, rec); err != nil {
			t.Fatalf("InsertInscription error: %v", err)
		}
	}
	page, err := ListInscriptions(f, "", 10)
	if err != nil {
		t.Fatalf("ListInscriptions error: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(page.Items))
	}
	if page.Items[0].InscriptionID != "c" {
		t.Errorf("expected newest-first order, got first = %q", page.Items[0].InscriptionID)
	}
}
