package zrc20

import (
	"testing"

	"github.com/zatoshilabs/zord/internal/coreerr"
	"github.com/zatoshilabs/zord/internal/store"
)

// fakeStore is the same minimal in-memory stand-in used by the ledger
// package's tests, reimplemented here so this package has no test-only
// dependency on another package's internals.
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
	var out []store.Entry
	for k, v := range f.data[tbl] {
		out = append(out, store.Entry{Key: k, Value: v})
	}
	return out, nil
}

func TestScenario_DeployMintTransferExecute(t *testing.T) {
	f := newFakeStore()

	// S1: deploy ZERO.
	deploy := Envelope{P: "zrc-20", Op: "deploy", Tick: "ZERO", Max: "21000000", Lim: "1000"}
	if err := Deploy(f, "txd i0", deploy, "t_A", 3132400); err != nil {
		t.Fatalf("Deploy error: %v", err)
	}
	info, err := GetToken(f, "zero")
	if err != nil {
		t.Fatalf("GetToken error: %v", err)
	}
	if info.MaxBase != "21000000" || info.LimBase != "1000" || info.SupplyBase != "0" {
		t.Fatalf("unexpected token info: %+v", info)
	}

	// S2: mint 1000 three times to t_B.
	mint := Envelope{P: "zrc-20", Op: "mint", Tick: "ZERO", Amt: "1000"}
	for i := 0; i < 3; i++ {
		if err := Mint(f, mint, "t_B"); err != nil {
			t.Fatalf("Mint[%d] error: %v", i, err)
		}
	}
	info, _ = GetToken(f, "zero")
	if info.SupplyBase != "3000" {
		t.Fatalf("expected supply 3000, got %s", info.SupplyBase)
	}
	bal, err := GetBalance(f, "zero", "t_B")
	if err != nil {
		t.Fatalf("GetBalance error: %v", err)
	}
	if bal.AvailableBase != "3000" || bal.OverallBase != "3000" {
		t.Fatalf("unexpected balance: %+v", bal)
	}
	stats, _ := GetStats(f, "zero")
	if stats.HoldersPositive != 1 {
		t.Fatalf("expected 1 positive holder, got %d", stats.HoldersPositive)
	}

	// S3: transfer-inscribe 500 from t_B.
	transfer := Envelope{P: "zrc-20", Op: "transfer", Tick: "ZERO", Amt: "500"}
	if err := TransferInscribe(f, "txt i0", transfer, "t_B", "txt", 0); err != nil {
		t.Fatalf("TransferInscribe error: %v", err)
	}
	bal, _ = GetBalance(f, "zero", "t_B")
	if bal.AvailableBase != "2500" || bal.OverallBase != "3000" {
		t.Fatalf("expected available=2500 overall=3000, got %+v", bal)
	}

	// S4: spend the transfer-carrying UTXO to t_C.
	id, ok, err := LookupPendingTransfer(f, "txt", 0)
	if err != nil || !ok {
		t.Fatalf("expected pending transfer lookup to succeed, ok=%v err=%v", ok, err)
	}
	if id != "txt i0" {
		t.Fatalf("unexpected pending transfer id %q", id)
	}
	if err := TransferExecute(f, id, "txspend", 0, "t_C"); err != nil {
		t.Fatalf("TransferExecute error: %v", err)
	}
	balB, _ := GetBalance(f, "zero", "t_B")
	if balB.AvailableBase != "2500" || balB.OverallBase != "2500" {
		t.Fatalf("expected t_B available=2500 overall=2500, got %+v", balB)
	}
	balC, _ := GetBalance(f, "zero", "t_C")
	if balC.AvailableBase != "500" || balC.OverallBase != "500" {
		t.Fatalf("expected t_C available=500 overall=500, got %+v", balC)
	}
	stats, _ = GetStats(f, "zero")
	if stats.TransfersCompleted != 1 {
		t.Fatalf("expected 1 completed transfer, got %d", stats.TransfersCompleted)
	}

	// Replay safety: re-executing the same (now used) transfer is a no-op.
	if err := TransferExecute(f, id, "txspend2", 0, "t_D"); err != nil {
		t.Fatalf("re-execute should be a no-op, got error: %v", err)
	}
	balD, _ := GetBalance(f, "zero", "t_D")
	if balD.OverallBase != "0" {
		t.Fatalf("replay must not credit t_D, got %+v", balD)
	}
}

func TestPartialMintAcceptsRemainder(t *testing.T) {
	f := newFakeStore()
	deploy := Envelope{P: "zrc-20", Op: "deploy", Tick: "FOUR", Max: "1000", Lim: "1000"}
	if err := Deploy(f, "id0", deploy, "t_A", 1); err != nil {
		t.Fatalf("Deploy error: %v", err)
	}
	mint1 := Envelope{P: "zrc-20", Op: "mint", Tick: "FOUR", Amt: "800"}
	if err := Mint(f, mint1, "t_B"); err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	mint2 := Envelope{P: "zrc-20", Op: "mint", Tick: "FOUR", Amt: "800"}
	if err := Mint(f, mint2, "t_B"); err != nil {
		t.Fatalf("partial mint should be accepted, got error: %v", err)
	}
	info, _ := GetToken(f, "four")
	if info.SupplyBase != "1000" {
		t.Fatalf("expected supply capped at max 1000, got %s", info.SupplyBase)
	}

	mint3 := Envelope{P: "zrc-20", Op: "mint", Tick: "FOUR", Amt: "1"}
	if err := Mint(f, mint3, "t_B"); err == nil {
		t.Fatal("expected mint at full supply to be rejected")
	}
}

func TestTransferInscribeRejectsInsufficientBalance(t *testing.T) {
	f := newFakeStore()
	deploy := Envelope{P: "zrc-20", Op: "deploy", Tick: "FIVE", Max: "1000", Lim: "1000"}
	_ = Deploy(f, "id0", deploy, "t_A", 1)
	transfer := Envelope{P: "zrc-20", Op: "transfer", Tick: "FIVE", Amt: "10"}
	if err := TransferInscribe(f, "id1", transfer, "t_B", "tx", 0); err == nil {
		t.Fatal("expected rejection for transfer exceeding available balance")
	}
	bal, _ := GetBalance(f, "five", "t_B")
	if bal.AvailableBase != "0" || bal.OverallBase != "0" {
		t.Fatalf("balances must be unchanged on rejection, got %+v", bal)
	}
}

func TestDeployFirstWriterWins(t *testing.T) {
	f := newFakeStore()
	d1 := Envelope{P: "zrc-20", Op: "deploy", Tick: "SIX1", Max: "100", Lim: "10"}
	d2 := Envelope{P: "zrc-20", Op: "deploy", Tick: "SIX1", Max: "999", Lim: "999"}
	_ = Deploy(f, "id0", d1, "t_A", 1)
	if err := Deploy(f, "id1", d2, "t_B", 2); err != nil {
		t.Fatalf("second deploy of same tick should be a silent no-op, got error: %v", err)
	}
	info, _ := GetToken(f, "six1")
	if info.MaxBase != "100" || info.Deployer != "t_A" {
		t.Fatalf("expected first deploy to win, got %+v", info)
	}
}

func TestParseBaseAmountOverflow(t *testing.T) {
	huge := "999999999999999999999999999999999999999999"
	_, err := ParseBaseAmount(huge, 0)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	if !coreerr.Is(err, coreerr.KindOverflow) {
		t.Fatalf("expected KindOverflow, got %v", err)
	}
}

func TestMixedCaseTickerNormalizedToLowercase(t *testing.T) {
	f := newFakeStore()
	d := Envelope{P: "zrc-20", Op: "deploy", Tick: "Zero2", Max: "100", Lim: "10"}
	if err := Deploy(f, "id0", d, "t_A", 1); err != nil {
		t.Fatalf("Deploy error: %v", err)
	}
	info, err := GetToken(f, "zero2")
	if err != nil {
		t.Fatalf("expected stored key 'zero2': %v", err)
	}
	if info.TickDisplay != "Zero2" {
		t.Fatalf("expected display case preserved, got %q", info.TickDisplay)
	}
}
