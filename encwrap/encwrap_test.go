package encwrap

import (
	"bytes"
	"crypto/aes"
	"testing"
)

func TestParseHeader(t *testing.T) {
	buf := make([]byte, headerSize)
	copy(buf, []byte("pspp-wrapped-SAV-file--ENCRYPTED---"))
	h, err := ParseHeader(buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.Kind != KindSAV {
		t.Fatalf("Kind = %v, want SAV", h.Kind)
	}
}

func TestParseHeaderRejectsMissingMarker(t *testing.T) {
	buf := make([]byte, headerSize)
	copy(buf, []byte("not a wrapper at all"))
	if _, err := ParseHeader(buf); err == nil {
		t.Fatal("expected an error for a header with no ENCRYPTED marker")
	}
}

func TestDeriveKeyIsDeterministicAndRightSized(t *testing.T) {
	k1, err := DeriveKey("pspp")
	if err != nil {
		t.Fatal(err)
	}
	k2, err := DeriveKey("pspp")
	if err != nil {
		t.Fatal(err)
	}
	if len(k1) != 32 {
		t.Fatalf("len(key) = %d, want 32", len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("DeriveKey is not deterministic")
	}
	if !bytes.Equal(k1[:16], k1[16:]) {
		t.Fatal("key is not the CMAC doubled onto itself")
	}
	k3, err := DeriveKey("different")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(k1, k3) {
		t.Fatal("different passwords produced the same key")
	}
}

func TestPasswordCheckRoundTrip(t *testing.T) {
	key, err := DeriveKey("pspp")
	if err != nil {
		t.Fatal(err)
	}
	plain := make([]byte, aes.BlockSize)
	copy(plain, []byte("$FL2@(#)"))

	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	cipherBlock := make([]byte, aes.BlockSize)
	block.Encrypt(cipherBlock, plain)

	ok, err := CheckPassword("pspp", cipherBlock)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("password check failed for the correct password and a well-formed magic")
	}

	cipherBlock[0] ^= 0xff
	ok2, err := CheckPassword("pspp", cipherBlock)
	if err == nil && ok2 {
		t.Fatal("flipping a ciphertext bit should not still report a valid magic")
	}
}

func TestDecryptECBRejectsBadPadding(t *testing.T) {
	key := make([]byte, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	plain := make([]byte, aes.BlockSize)
	// Last byte is not a valid PKCS#7 padding length for one block.
	plain[aes.BlockSize-1] = 0x00
	ct := make([]byte, aes.BlockSize)
	block.Encrypt(ct, plain)
	if _, err := DecryptECB(key, ct); err == nil {
		t.Fatal("expected a padding error")
	}
}

func TestCMACEmptyMessageDoesNotPanic(t *testing.T) {
	key := make([]byte, 32)
	if _, err := cmacAES(key, nil); err != nil {
		t.Fatal(err)
	}
}
