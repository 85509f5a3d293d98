package envelope

import "testing"

func TestParse_SimpleTextInscription(t *testing.T) {
	pushes := [][]byte{
		[]byte("text/plain"),
		[]byte("hello world"),
	}
	env, ok := Parse(pushes)
	if !ok {
		t.Fatal("expected envelope")
	}
	if env.ContentType != "text/plain" {
		t.Errorf("ContentType = %q", env.ContentType)
	}
	if string(env.Content) != "hello world" {
		t.Errorf("Content = %q", env.Content)
	}
	if !env.HasPreview || env.PreviewText != "hello world" {
		t.Errorf("expected preview text, got %q (has=%v)", env.PreviewText, env.HasPreview)
	}
}

func TestParse_NoEnvelopeWithoutContentType(t *testing.T) {
	pushes := [][]byte{[]byte("not a mime type"), []byte("payload")}
	if _, ok := Parse(pushes); ok {
		t.Fatal("expected no envelope when no push contains '/'")
	}
}

func TestParse_SignatureTerminatorNotContent(t *testing.T) {
	sig := make([]byte, 72)
	sig[0] = 0x30
	pushes := [][]byte{
		[]byte("application/json"),
		[]byte(`{"p":"zrc-20"}`),
		sig,
	}
	env, ok := Parse(pushes)
	if !ok {
		t.Fatal("expected envelope")
	}
	if string(env.Content) != `{"p":"zrc-20"}` {
		t.Errorf("signature push leaked into content: %q", env.Content)
	}
}

func TestParse_CompressedPubkeyTerminator(t *testing.T) {
	for _, prefix := range []byte{0x02, 0x03} {
		pubkey := make([]byte, 33)
		pubkey[0] = prefix
		pushes := [][]byte{
			[]byte("text/plain"),
			[]byte("alice.zec"),
			pubkey,
		}
		env, ok := Parse(pushes)
		if !ok {
			t.Fatal("expected envelope")
		}
		if string(env.Content) != "alice.zec" {
			t.Errorf("pubkey push leaked into content: %q", env.Content)
		}
	}
}

func TestParse_UncompressedPubkeyTerminator(t *testing.T) {
	pubkey := make([]byte, 65)
	pubkey[0] = 0x04
	pushes := [][]byte{
		[]byte("text/plain"),
		[]byte("content"),
		pubkey,
	}
	env, ok := Parse(pushes)
	if !ok {
		t.Fatal("expected envelope")
	}
	if string(env.Content) != "content" {
		t.Errorf("uncompressed pubkey push leaked into content: %q", env.Content)
	}
}

func TestParse_NoContentAfterTerminatorImmediately(t *testing.T) {
	sig := make([]byte, 10)
	sig[0] = 0x30
	pushes := [][]byte{
		[]byte("text/plain"),
		sig,
	}
	if _, ok := Parse(pushes); ok {
		t.Fatal("expected no envelope when terminator follows content-type immediately")
	}
}

func TestParse_BinaryContentHasNoPreview(t *testing.T) {
	binary := []byte{0xff, 0xfe, 0xfd, 0x00, 0x01}
	pushes := [][]byte{
		[]byte("application/octet-stream"),
		binary,
	}
	env, ok := Parse(pushes)
	if !ok {
		t.Fatal("expected envelope")
	}
	if env.HasPreview {
		t.Error("expected no preview text for invalid UTF-8 content")
	}
}

func TestParse_72ByteDerLikePushIsTerminator(t *testing.T) {
	push := make([]byte, 72)
	push[0] = 0x30
	if !isTerminatorPush(push) {
		t.Error("72-byte push starting 0x30 should be classified as terminator")
	}
}

func TestParse_33ByteCompressedKeyIsTerminator(t *testing.T) {
	for _, prefix := range []byte{0x02, 0x03} {
		push := make([]byte, 33)
		push[0] = prefix
		if !isTerminatorPush(push) {
			t.Errorf("33-byte push starting %x should be classified as terminator", prefix)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	if NormalizeKey("Zero") != "zero" {
		t.Errorf("NormalizeKey(Zero) should lowercase")
	}
}
