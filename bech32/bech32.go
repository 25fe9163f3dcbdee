// Package bech32 implements the human-readable, checksummed address codec
// used for nostr's npub/nsec textual key encodings: a 5-bit regrouped
// payload, a bech32 or bech32m checksum, and a short human-readable prefix.
//
// Rather than reimplement the BIP-173/BIP-350 polynomial by hand, this
// package wraps the battle-tested github.com/btcsuite/btcd/btcutil/bech32
// codec (the same library the wider retrieval pack reaches for — see
// DESIGN.md) and translates its errors into the taxonomy this module's
// callers expect.
package bech32

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Variant distinguishes the two checksum constants defined by BIP-173
// (original bech32) and BIP-350 (bech32m).
type Variant int

const (
	Bech32 Variant = iota
	Bech32m
)

// ErrMalformedAddress is returned for any decode failure: mixed case,
// length over 90 characters (unless DecodeNoLimit is used), an out-of-alphabet
// character, a bad checksum, or an unrecognized variant.
var ErrMalformedAddress = errors.New("bech32: malformed address")

// Encode renders data (already regrouped to 5-bit words, see ConvertBits)
// as a bech32 or bech32m string with the given human-readable prefix.
func Encode(hrp string, data []byte, variant Variant) (string, error) {
	switch variant {
	case Bech32:
		return bech32.Encode(hrp, data)
	case Bech32m:
		return bech32.EncodeM(hrp, data)
	default:
		return "", fmt.Errorf("%w: unknown variant %d", ErrMalformedAddress, variant)
	}
}

// Decode parses s, enforcing the 90-character length cap from BIP-173.
func Decode(s string) (hrp string, data []byte, variant Variant, err error) {
	return decode(s, false)
}

// DecodeNoLimit parses s without the 90-character length cap, for payloads
// the caller knows in advance to be larger (e.g. long relay lists).
func DecodeNoLimit(s string) (hrp string, data []byte, variant Variant, err error) {
	return decode(s, true)
}

func decode(s string, noLimit bool) (hrp string, data []byte, variant Variant, err error) {
	var ver bech32.Version
	if noLimit {
		hrp, data, ver, err = bech32.DecodeGenericNoLimit(s)
	} else {
		hrp, data, ver, err = bech32.DecodeGeneric(s)
	}
	if err != nil {
		return "", nil, 0, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}
	switch ver {
	case bech32.Version0:
		variant = Bech32
	case bech32.VersionM:
		variant = Bech32m
	default:
		return "", nil, 0, fmt.Errorf("%w: unrecognized checksum variant", ErrMalformedAddress)
	}
	return hrp, data, variant, nil
}

// ConvertBits regroups a byte slice between bit widths — 8-bit bytes down
// to 5-bit words before encoding, or back up to 8-bit bytes after
// decoding. pad controls whether a short trailing group is zero-padded
// (required when going 8->5) or must divide evenly (when going 5->8, a
// non-zero pad group indicates a corrupt payload).
func ConvertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, error) {
	out, err := bech32.ConvertBits(data, uint8(fromBits), uint8(toBits), pad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAddress, err)
	}
	return out, nil
}
