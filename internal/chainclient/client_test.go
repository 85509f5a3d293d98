package chainclient

import (
	"errors"
	"testing"
)

func TestWrapRPC(t *testing.T) {
	if wrapRPC("getblock", nil) != nil {
		t.Error("expected nil wrap for nil error")
	}
	err := wrapRPC("getblock", errors.New("boom"))
	var rpcErr *RpcError
	if !errors.As(err, &rpcErr) {
		t.Fatal("expected *RpcError")
	}
	if rpcErr.Op != "getblock" {
		t.Errorf("Op = %q", rpcErr.Op)
	}
}

func TestDecodeScriptPushes_SimplePush(t *testing.T) {
	// push 4 bytes "abcd"
	script := "0461626364"
	pushes, err := decodeScriptPushes(script)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(pushes) != 1 || string(pushes[0]) != "abcd" {
		t.Errorf("pushes = %v", pushes)
	}
}

func TestDecodeScriptPushes_Empty(t *testing.T) {
	pushes, err := decodeScriptPushes("")
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if pushes != nil {
		t.Errorf("expected nil pushes for empty script")
	}
}

func TestDecodeScriptPushes_InvalidHex(t *testing.T) {
	if _, err := decodeScriptPushes("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
}
