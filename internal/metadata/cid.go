package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// CID validation errors.
var (
	// ErrEmptyCID is returned for an empty CID.
	ErrEmptyCID = errors.New("empty CID")

	// ErrInvalidCID is returned for a malformed CID.
	ErrInvalidCID = errors.New("invalid CID")
)

// cidV0Length is the byte length of a decoded CIDv0: a 0x12 0x20
// multihash prefix plus a 32-byte sha2-256 digest.
const cidV0Length = 34

// ValidateCID checks a content identifier before it is submitted in a
// mint transaction. CIDv0 ("Qm...", base58btc) is decoded and length
// checked; CIDv1 ("b...", multibase) gets a shape check only.
func ValidateCID(cid string) error {
	if cid == "" {
		return ErrEmptyCID
	}

	if strings.HasPrefix(cid, "Qm") {
		raw, err := base58.Decode(cid)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidCID, err)
		}
		if len(raw) != cidV0Length {
			return fmt.Errorf("%w: decoded length %d, want %d", ErrInvalidCID, len(raw), cidV0Length)
		}
		return nil
	}

	if strings.HasPrefix(cid, "b") && len(cid) >= 8 {
		return nil
	}

	return fmt.Errorf("%w: %q", ErrInvalidCID, cid)
}
