package store

import "testing"

func TestZeroPad(t *testing.T) {
	if got := ZeroPad(42); got != "00000000000000000042" {
		t.Errorf("ZeroPad(42) = %q", got)
	}
	if ZeroPad(1) >= ZeroPad(2) {
		t.Errorf("ZeroPad should preserve numeric order lexicographically")
	}
	if ZeroPad(9) >= ZeroPad(10) {
		t.Errorf("ZeroPad(9) should sort before ZeroPad(10)")
	}
}

func TestJoinKey(t *testing.T) {
	got := JoinKey("zero", "t_b")
	want := "zero\x00t_b"
	if got != want {
		t.Errorf("JoinKey = %q, want %q", got, want)
	}
}

type fakeScanner struct {
	entries []Entry
}

func (f *fakeScanner) Scan(tbl string, opts ScanOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if len(f.entries) > limit {
		return f.entries[:limit+1], nil
	}
	return f.entries, nil
}

func TestPaginateHasMore(t *testing.T) {
	f := &fakeScanner{entries: []Entry{
		{Key: "1", Value: []byte("a")},
		{Key: "2", Value: []byte("b")},
		{Key: "3", Value: []byte("c")},
	}}
	page, err := Paginate(f, "t", ScanOptions{Limit: 2}, func(e Entry) (string, error) {
		return string(e.Value), nil
	})
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if !page.HasMore {
		t.Error("expected HasMore true")
	}
	if len(page.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(page.Items))
	}
}

func TestPaginateExact(t *testing.T) {
	f := &fakeScanner{entries: []Entry{
		{Key: "1", Value: []byte("a")},
	}}
	page, err := Paginate(f, "t", ScanOptions{Limit: 5}, func(e Entry) (string, error) {
		return string(e.Value), nil
	})
	if err != nil {
		t.Fatalf("Paginate error: %v", err)
	}
	if page.HasMore {
		t.Error("expected HasMore false")
	}
	if len(page.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(page.Items))
	}
}
