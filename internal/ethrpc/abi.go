package ethrpc

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Word is the EVM word size in bytes.
const Word = 32

// Arg is one ABI-encodable call argument.
type Arg struct {
	static  []byte // 32-byte head word for static args
	dynamic []byte // tail payload for dynamic args, nil for static
	err     error
}

// Uint builds a uint256 argument.
func Uint(v *big.Int) Arg {
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		return Arg{err: fmt.Errorf("value out of uint256 range")}
	}
	return Arg{static: leftPad(v.Bytes())}
}

// Uint64 builds a uint256 argument from a uint64.
func Uint64(v uint64) Arg {
	return Uint(new(big.Int).SetUint64(v))
}

// Addr builds an address argument from a 0x-prefixed hex string.
func Addr(addr string) Arg {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(addr), "0x"))
	if err != nil || len(b) != 20 {
		return Arg{err: fmt.Errorf("invalid address %q", addr)}
	}
	return Arg{static: leftPad(b)}
}

// Str builds a dynamic string argument.
func Str(s string) Arg {
	payload := leftPad(new(big.Int).SetUint64(uint64(len(s))).Bytes())
	payload = append(payload, rightPad([]byte(s))...)
	return Arg{dynamic: payload}
}

// Selector returns the 4-byte function selector for a canonical
// signature like "ownerOf(uint256)".
func Selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

// EncodeCall ABI-encodes a function call: 4-byte selector followed by
// head words and dynamic tails per the contract ABI encoding rules.
func EncodeCall(signature string, args ...Arg) ([]byte, error) {
	headSize := len(args) * Word
	head := make([]byte, 0, headSize)
	var tail []byte

	for _, a := range args {
		if a.err != nil {
			return nil, fmt.Errorf("encode %s: %w", signature, a.err)
		}
		if a.dynamic != nil {
			offset := new(big.Int).SetUint64(uint64(headSize + len(tail)))
			head = append(head, leftPad(offset.Bytes())...)
			tail = append(tail, a.dynamic...)
			continue
		}
		head = append(head, a.static...)
	}

	out := make([]byte, 0, 4+len(head)+len(tail))
	out = append(out, Selector(signature)...)
	out = append(out, head...)
	out = append(out, tail...)
	return out, nil
}

// DecodeUint256 decodes a single uint256 return value.
func DecodeUint256(data []byte) (*big.Int, error) {
	if len(data) < Word {
		return nil, fmt.Errorf("return data too short: %d bytes", len(data))
	}
	return new(big.Int).SetBytes(data[:Word]), nil
}

// DecodeBool decodes a single bool return value.
func DecodeBool(data []byte) (bool, error) {
	v, err := DecodeUint256(data)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

// DecodeAddress decodes a single address return value as a
// 0x-prefixed lowercase hex string.
func DecodeAddress(data []byte) (string, error) {
	if len(data) < Word {
		return "", fmt.Errorf("return data too short: %d bytes", len(data))
	}
	return "0x" + hex.EncodeToString(data[Word-20:Word]), nil
}

// DecodeString decodes a single dynamic string return value.
func DecodeString(data []byte) (string, error) {
	offset, err := DecodeUint256(data)
	if err != nil {
		return "", err
	}
	// Bounds checks subtract from len(data) instead of adding to the
	// untrusted words, which could wrap around uint64. DecodeUint256
	// already guarantees len(data) >= Word.
	if !offset.IsUint64() || offset.Uint64() > uint64(len(data))-Word {
		return "", fmt.Errorf("string offset out of range")
	}
	start := offset.Uint64()

	length := new(big.Int).SetBytes(data[start : start+Word])
	if !length.IsUint64() || length.Uint64() > uint64(len(data))-start-Word {
		return "", fmt.Errorf("string length out of range")
	}
	end := start + Word + length.Uint64()

	return string(data[start+Word : end]), nil
}

// leftPad pads b on the left to a full word.
func leftPad(b []byte) []byte {
	if len(b) >= Word {
		return b[len(b)-Word:]
	}
	out := make([]byte, Word)
	copy(out[Word-len(b):], b)
	return out
}

// rightPad pads b on the right to a whole number of words.
func rightPad(b []byte) []byte {
	rem := len(b) % Word
	if rem == 0 {
		return b
	}
	return append(b, make([]byte, Word-rem)...)
}
