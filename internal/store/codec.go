package store

import (
	"encoding/json"
	"fmt"
)

// PutJSON JSON-encodes v and writes it to (tbl, key).
func PutJSON(w Writer, tbl, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: marshal %s/%s: %w", tbl, key, err)
	}
	return w.Put(tbl, key, b)
}

// PutJSONIfAbsent JSON-encodes v and writes it only if the key is unset,
// implementing first-writer-wins semantics for unique keys.
func PutJSONIfAbsent(w Writer, tbl, key string, v any) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("store: marshal %s/%s: %w", tbl, key, err)
	}
	return w.PutIfAbsent(tbl, key, b)
}

// GetJSON reads and JSON-decodes (tbl, key) into v. Returns ErrNotFound if
// absent.
func GetJSON(g Reader, tbl, key string, v any) error {
	b, err := g.Get(tbl, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("store: unmarshal %s/%s: %w", tbl, key, err)
	}
	return nil
}

// ZeroPad formats n as a fixed-width, zero-padded decimal string so that
// byte-lexicographic order equals numeric order. width should exceed the
// maximum number of digits ever expected (20 safely covers all uint64s).
func ZeroPad(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

// JoinKey builds a composite key from components, separated by the NUL
// byte so components never collide with user-supplied content.
func JoinKey(parts ...string) string {
	out := parts[0]
	for _, p := range parts[1:] {
		out += "\x00" + p
	}
	return out
}
