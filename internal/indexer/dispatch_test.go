package indexer

import (
	"testing"

	"github.com/zatoshilabs/zord/internal/chainclient"
	"github.com/zatoshilabs/zord/internal/store"
	"github.com/zatoshilabs/zord/internal/zrc20"
	"github.com/zatoshilabs/zord/internal/zrc721"
)

type fakeStore struct {
	data map[string]map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{data: make(map[string]map[string][]byte)} }

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
	var out []store.Entry
	for k, v := range f.data[tbl] {
		out = append(out, store.Entry{Key: k, Value: v})
	}
	return out, nil
}

func TestApplyZrc20DeployProducesEffectOnlyOnce(t *testing.T) {
	f := newFakeStore()
	env := zrc20.Envelope{P: "zrc-20", Op: "deploy", Tick: "zord", Max: "1000", Lim: "100", Dec: "0"}

	eff, err := applyZrc20(f, "id0", env, "t_A", "t_A", 10, "txid0")
	if err != nil {
		t.Fatalf("first deploy error: %v", err)
	}
	if eff == nil || eff.Kind != effectZrc20Deploy || eff.TickLower != "zord" {
		t.Fatalf("expected zrc20-deploy effect, got %+v", eff)
	}

	eff2, err := applyZrc20(f, "id1", env, "t_B", "t_B", 11, "txid1")
	if err != nil {
		t.Fatalf("duplicate deploy should be a silent no-op, got error: %v", err)
	}
	if eff2 != nil {
		t.Fatalf("duplicate deploy must not produce a rollback effect, got %+v", eff2)
	}
}

func TestApplyZrc20MintEffectCapturesAcceptedAmount(t *testing.T) {
	f := newFakeStore()
	deploy := zrc20.Envelope{P: "zrc-20", Op: "deploy", Tick: "zord", Max: "1000", Lim: "1000", Dec: "0"}
	if _, err := applyZrc20(f, "id0", deploy, "t_A", "t_A", 1, "txid0"); err != nil {
		t.Fatalf("deploy error: %v", err)
	}

	mint := zrc20.Envelope{P: "zrc-20", Op: "mint", Tick: "zord", Amt: "900"}
	eff, err := applyZrc20(f, "id1", mint, "t_A", "t_B", 2, "txid1")
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}
	if eff == nil || eff.Kind != effectZrc20Mint || eff.AcceptedBase != "900" {
		t.Fatalf("expected accepted_base=900, got %+v", eff)
	}

	// second mint exceeds max (1000); partial-mint accepts only the 100 remainder.
	eff2, err := applyZrc20(f, "id2", mint, "t_A", "t_C", 3, "txid2")
	if err != nil {
		t.Fatalf("partial mint error: %v", err)
	}
	if eff2 == nil || eff2.AcceptedBase != "100" {
		t.Fatalf("expected partial-mint accepted_base=100, got %+v", eff2)
	}
}

func TestApplyZrc721MintEffectSkipsDuplicate(t *testing.T) {
	f := newFakeStore()
	deploy := zrc721.Envelope{P: "zrc-721", Op: "deploy", Collection: "ZGODS", Supply: "2", Meta: "cid1"}
	if _, err := applyZrc721(f, "id0", deploy, "t_A", "t_A"); err != nil {
		t.Fatalf("deploy error: %v", err)
	}

	mint := zrc721.Envelope{P: "zrc-721", Op: "mint", Collection: "ZGODS", ID: "0"}
	eff, err := applyZrc721(f, "id1", mint, "t_B", "t_B")
	if err != nil {
		t.Fatalf("mint error: %v", err)
	}
	if eff == nil || eff.Kind != effectZrc721Mint || eff.ID != 0 {
		t.Fatalf("expected zrc721-mint effect for id 0, got %+v", eff)
	}

	eff2, err := applyZrc721(f, "id2", mint, "t_C", "t_C")
	if err != nil {
		t.Fatalf("duplicate mint should be a silent no-op, got error: %v", err)
	}
	if eff2 != nil {
		t.Fatalf("duplicate mint must not produce a rollback effect, got %+v", eff2)
	}
}

func TestBlockEffectsRoundTrip(t *testing.T) {
	f := newFakeStore()
	eff := blockEffects{
		Inscriptions: []inscriptionEffect{{InscriptionID: "txidi0", Number: 5, Sender: "t_A"}},
		Engine:       []engineEffect{{Kind: effectZrc20Deploy, TickLower: "zord"}},
	}
	if err := putBlockEffects(f, 100, eff); err != nil {
		t.Fatalf("putBlockEffects error: %v", err)
	}
	got, err := getBlockEffects(f, 100)
	if err != nil {
		t.Fatalf("getBlockEffects error: %v", err)
	}
	if len(got.Inscriptions) != 1 || got.Inscriptions[0].InscriptionID != "txidi0" {
		t.Fatalf("unexpected round-tripped inscriptions: %+v", got.Inscriptions)
	}
	if len(got.Engine) != 1 || got.Engine[0].Kind != effectZrc20Deploy {
		t.Fatalf("unexpected round-tripped engine effects: %+v", got.Engine)
	}

	if err := deleteBlockEffects(f, 100); err != nil {
		t.Fatalf("deleteBlockEffects error: %v", err)
	}
	if empty, err := getBlockEffects(f, 100); err != nil || len(empty.Engine) != 0 {
		t.Fatalf("expected empty effects after delete, got %+v, err=%v", empty, err)
	}
}

func TestFirstOutputAddress(t *testing.T) {
	tx := &chainclient.Transaction{
		Vout: []chainclient.Output{
			{N: 0, Addresses: nil},
			{N: 1, Addresses: []string{"t_B"}},
		},
	}
	if got := firstOutputAddress(tx); got != "t_B" {
		t.Errorf("firstOutputAddress = %q, want t_B", got)
	}
	if got := firstOutputAddress(&chainclient.Transaction{}); got != "" {
		t.Errorf("firstOutputAddress on empty vout = %q, want empty", got)
	}
}

func TestDiffDecimal(t *testing.T) {
	if got := diffDecimal("900", "0"); got != "900" {
		t.Errorf("diffDecimal(900,0) = %q", got)
	}
	if got := diffDecimal("", ""); got != "0" {
		t.Errorf("diffDecimal on empty strings = %q, want 0", got)
	}
}
