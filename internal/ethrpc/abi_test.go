package ethrpc

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"
)

func TestSelector_KnownERC721(t *testing.T) {
	// Selectors published for the standard ERC-721 Enumerable surface.
	tests := []struct {
		sig  string
		want string
	}{
		{"totalSupply()", "18160ddd"},
		{"ownerOf(uint256)", "6352211e"},
		{"tokenByIndex(uint256)", "4f6ccce7"},
		{"tokenURI(uint256)", "c87b56dd"},
		{"balanceOf(address)", "70a08231"},
	}

	for _, tt := range tests {
		got := hex.EncodeToString(Selector(tt.sig))
		if got != tt.want {
			t.Errorf("Selector(%q) = %s, want %s", tt.sig, got, tt.want)
		}
	}
}

func TestEncodeCall_StaticArgs(t *testing.T) {
	data, err := EncodeCall("ownerOf(uint256)", Uint64(7))
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}

	if len(data) != 4+Word {
		t.Fatalf("expected %d bytes, got %d", 4+Word, len(data))
	}

	wantArg := make([]byte, Word)
	wantArg[Word-1] = 7
	if !bytes.Equal(data[4:], wantArg) {
		t.Errorf("argument word = %x, want %x", data[4:], wantArg)
	}
}

func TestEncodeCall_DynamicString(t *testing.T) {
	addr := "0x00000000000000000000000000000000000000aa"
	data, err := EncodeCall("safeMint(address,string)", Addr(addr), Str("cidX"))
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}

	// selector + address word + offset word + length word + padded payload
	if len(data) != 4+4*Word {
		t.Fatalf("expected %d bytes, got %d", 4+4*Word, len(data))
	}

	body := data[4:]

	// address in the low 20 bytes of word 0
	if body[Word-1] != 0xaa {
		t.Errorf("address word = %x", body[:Word])
	}

	// offset to the string tail: two head words = 64
	offset := new(big.Int).SetBytes(body[Word : 2*Word])
	if offset.Uint64() != 2*Word {
		t.Errorf("offset = %d, want %d", offset.Uint64(), 2*Word)
	}

	// length word then right-padded bytes
	length := new(big.Int).SetBytes(body[2*Word : 3*Word])
	if length.Uint64() != 4 {
		t.Errorf("length = %d, want 4", length.Uint64())
	}
	if string(body[3*Word:3*Word+4]) != "cidX" {
		t.Errorf("payload = %q, want \"cidX\"", body[3*Word:3*Word+4])
	}
}

func TestEncodeCall_InvalidAddress(t *testing.T) {
	if _, err := EncodeCall("safeMint(address,string)", Addr("nonsense"), Str("x")); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestDecodeUint256(t *testing.T) {
	word := make([]byte, Word)
	word[Word-2] = 0x01 // 256
	v, err := DecodeUint256(word)
	if err != nil {
		t.Fatalf("DecodeUint256: %v", err)
	}
	if v.Uint64() != 256 {
		t.Errorf("got %d, want 256", v.Uint64())
	}

	if _, err := DecodeUint256([]byte{0x01}); err == nil {
		t.Error("expected error for short data")
	}
}

func TestDecodeBool(t *testing.T) {
	word := make([]byte, Word)
	v, err := DecodeBool(word)
	if err != nil || v {
		t.Errorf("zero word: got %v, %v", v, err)
	}

	word[Word-1] = 1
	v, err = DecodeBool(word)
	if err != nil || !v {
		t.Errorf("one word: got %v, %v", v, err)
	}
}

func TestDecodeAddress(t *testing.T) {
	word := make([]byte, Word)
	word[Word-1] = 0xbe
	addr, err := DecodeAddress(word)
	if err != nil {
		t.Fatalf("DecodeAddress: %v", err)
	}
	if addr != "0x00000000000000000000000000000000000000be" {
		t.Errorf("got %s", addr)
	}
}

func TestDecodeString_RoundTrip(t *testing.T) {
	// Encode a string as a return value would be laid out, then decode.
	for _, s := range []string{"", "ipfs://QmABC", "a string longer than one thirty-two byte word of data"} {
		data := leftPad(big.NewInt(Word).Bytes()) // offset
		data = append(data, leftPad(new(big.Int).SetUint64(uint64(len(s))).Bytes())...)
		data = append(data, rightPad([]byte(s))...)

		got, err := DecodeString(data)
		if err != nil {
			t.Fatalf("DecodeString(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("DecodeString = %q, want %q", got, s)
		}
	}
}

func TestDecodeString_OutOfRange(t *testing.T) {
	data := leftPad(big.NewInt(1024).Bytes())
	if _, err := DecodeString(data); err == nil {
		t.Fatal("expected error for offset past end of data")
	}
}

func TestDecodeString_HugeWordsDoNotWrap(t *testing.T) {
	// Offset and length words near 2^64 must be rejected, not wrapped
	// into in-range slice indices. Return data comes from the remote
	// node, so these must fail cleanly rather than panic.
	nearMax := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(33))

	// offset = 2^64-33, so offset+Word wraps to a small value
	data := leftPad(nearMax.Bytes())
	data = append(data, make([]byte, Word)...)
	if _, err := DecodeString(data); err == nil {
		t.Error("expected error for wrapping offset")
	}

	// offset = 32, length = 2^64-33, so start+Word+length wraps
	data = leftPad(big.NewInt(Word).Bytes())
	data = append(data, leftPad(nearMax.Bytes())...)
	if _, err := DecodeString(data); err == nil {
		t.Error("expected error for wrapping length")
	}
}
