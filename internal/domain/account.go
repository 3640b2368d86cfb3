package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Account is a wallet address on the ledger. The zero value means no
// connected account.
type Account string

// NoAccount is the absent-account value.
const NoAccount Account = ""

// Normalized returns the address lowercased with a 0x prefix. Remote
// ledgers may return mixed-case (EIP-55) addresses, so all equality
// checks go through this form.
func (a Account) Normalized() Account {
	s := strings.ToLower(string(a))
	if s != "" && !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return Account(s)
}

// Equal reports whether two addresses refer to the same account,
// ignoring case.
func (a Account) Equal(other Account) bool {
	return a.Normalized() == other.Normalized()
}

// IsZero reports whether no account is set.
func (a Account) IsZero() bool {
	return a == NoAccount
}

// String returns the string representation of Account.
func (a Account) String() string {
	return string(a)
}

// Checksummed returns the EIP-55 mixed-case form of the address for
// display. Invalid hex input is returned unchanged.
func (a Account) Checksummed() string {
	body := strings.TrimPrefix(strings.ToLower(string(a)), "0x")
	if _, err := hex.DecodeString(body); err != nil || len(body) != 40 {
		return string(a)
	}

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(body))
	digest := hex.EncodeToString(h.Sum(nil))

	out := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			c = c - 'a' + 'A'
		}
		out[i] = c
	}
	return "0x" + string(out)
}
