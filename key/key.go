// Package key implements the nostr keypair: a 32-byte secret, its x-only
// (BIP-340) public key, Schnorr signing and verification, raw-x ECDH key
// agreement, and AES-256-CBC/PKCS7 payload encryption over the ECDH secret.
package key

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"lukechampine.com/frand"

	"github.com/nostrpy/nostrcli/bech32"
	"github.com/nostrpy/nostrcli/internal/chk"
)

const (
	SecretLen    = 32
	PublicLen    = 32
	SignatureLen = 64

	npubHRP = "npub"
	nsecHRP = "nsec"
)

// ErrCrypto covers bad-length keys, ECDH failures, and any other
// cryptographic precondition violation.
var ErrCrypto = errors.New("key: crypto error")

// ErrDecrypt covers padding or UTF-8 failures while decrypting a DM.
var ErrDecrypt = errors.New("key: decrypt error")

// Pair is an immutable secp256k1 keypair. Construct with Generate,
// FromSecretHex, or FromSecretBech32 — never by assigning the fields of a
// zero Pair.
type Pair struct {
	secret [SecretLen]byte
	priv   *btcec.PrivateKey
	pub    *btcec.PublicKey // x-only serialized on demand
}

// Generate draws 32 cryptographically random bytes (via frand, the same
// CSPRNG the teacher uses for key and nonce material) and derives the
// x-only public key.
func Generate() (*Pair, error) {
	var sec [SecretLen]byte
	frand.Read(sec[:])
	return FromSecretBytes(sec[:])
}

// FromSecretBytes builds a Pair from a raw 32-byte secret.
func FromSecretBytes(sec []byte) (*Pair, error) {
	if len(sec) != SecretLen {
		return nil, fmt.Errorf("%w: secret must be %d bytes, got %d", ErrCrypto, SecretLen, len(sec))
	}
	kp := &Pair{}
	copy(kp.secret[:], sec)
	kp.priv, kp.pub = btcec.PrivKeyFromBytes(sec)
	return kp, nil
}

// FromSecretHex decodes a lowercase-hex secret key.
func FromSecretHex(s string) (*Pair, error) {
	b, err := hex.DecodeString(s)
	if chk.D(err) {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return FromSecretBytes(b)
}

// FromSecretBech32 decodes an nsec-prefixed bech32 secret key.
func FromSecretBech32(nsec string) (*Pair, error) {
	hrp, data5, _, err := bech32.Decode(nsec)
	if chk.D(err) {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	if hrp != nsecHRP {
		return nil, fmt.Errorf("%w: expected %q prefix, got %q", ErrCrypto, nsecHRP, hrp)
	}
	raw, err := bech32.ConvertBits(data5, 5, 8, false)
	if chk.E(err) {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return FromSecretBytes(raw)
}

// SecretBytes returns the raw 32-byte secret.
func (kp *Pair) SecretBytes() []byte {
	b := make([]byte, SecretLen)
	copy(b, kp.secret[:])
	return b
}

// SecretHex returns the secret as lowercase hex.
func (kp *Pair) SecretHex() string { return hex.EncodeToString(kp.secret[:]) }

// SecretBech32 returns the secret as an nsec-prefixed bech32 string.
func (kp *Pair) SecretBech32() (string, error) { return encodeBech32(nsecHRP, kp.secret[:]) }

// PublicBytes returns the raw 32-byte x-only public key.
func (kp *Pair) PublicBytes() []byte { return schnorr.SerializePubKey(kp.pub) }

// PublicHex returns the x-only public key as lowercase hex.
func (kp *Pair) PublicHex() string { return hex.EncodeToString(kp.PublicBytes()) }

// PublicBech32 returns the x-only public key as an npub-prefixed bech32
// string.
func (kp *Pair) PublicBech32() (string, error) { return encodeBech32(npubHRP, kp.PublicBytes()) }

func encodeBech32(hrp string, raw []byte) (string, error) {
	data5, err := bech32.ConvertBits(raw, 8, 5, true)
	if chk.E(err) {
		return "", err
	}
	return bech32.Encode(hrp, data5, bech32.Bech32)
}

// DecodePublicHex parses a 32-byte hex x-only public key, validating its
// length without requiring a full Pair.
func DecodePublicHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if chk.D(err) {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	if len(b) != PublicLen {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrCrypto, PublicLen, len(b))
	}
	return b, nil
}

// Sign produces a 64-byte BIP-340 Schnorr signature over a 32-byte message
// (the event id). When auxRand is nil, 32 bytes of auxiliary randomness are
// drawn from frand, matching BIP-340's recommended (but optional) nonce
// tweak.
func (kp *Pair) Sign(msg []byte, auxRand []byte) ([]byte, error) {
	if len(msg) != 32 {
		return nil, fmt.Errorf("%w: message to sign must be 32 bytes, got %d", ErrCrypto, len(msg))
	}
	var opts []schnorr.SignOption
	if auxRand == nil {
		var r [32]byte
		frand.Read(r[:])
		auxRand = r[:]
	}
	if len(auxRand) == 32 {
		var r [32]byte
		copy(r[:], auxRand)
		opts = append(opts, schnorr.CustomNonce(r))
	}
	sig, err := schnorr.Sign(kp.priv, msg, opts...)
	if chk.E(err) {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	return sig.Serialize(), nil
}

// Verify reports whether sig is a valid BIP-340 signature over msg by the
// 32-byte x-only public key pubkey. It never returns an error: a malformed
// signature or key simply fails to verify.
func Verify(pubkey, msg, sig []byte) bool {
	if len(pubkey) != PublicLen || len(msg) != 32 || len(sig) != SignatureLen {
		return false
	}
	pk, err := schnorr.ParsePubKey(pubkey)
	if err != nil {
		return false
	}
	parsed, err := schnorr.ParseSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(msg, pk)
}

// ECDH computes the raw-x shared secret with a peer's x-only public key
// (hex), for use directly as an AES-256 key. Per NIP-04 wire compatibility
// this is NOT hashed — only the x coordinate of the shared point, copied
// unchanged — so the standard library's hashing ECDH cannot be used here;
// the point multiplication is done directly instead (see DESIGN.md).
func (kp *Pair) ECDH(peerPubHex string) ([]byte, error) {
	peerX, err := DecodePublicHex(peerPubHex)
	if chk.E(err) {
		return nil, err
	}
	compressed := append([]byte{0x02}, peerX...)
	peerPub, err := btcec.ParsePubKey(compressed)
	if chk.E(err) {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	var point, result btcec.JacobianPoint
	peerPub.AsJacobian(&point)
	btcec.ScalarMultNonConst(&kp.priv.Key, &point, &result)
	result.ToAffine()
	x := result.X.Bytes()
	shared := make([]byte, 32)
	copy(shared, x[:])
	return shared, nil
}

// Encrypt implements NIP-04: PKCS7-pad the UTF-8 message, AES-256-CBC
// encrypt under a random 16-byte IV with the ECDH shared secret as key,
// and format as base64(ciphertext)+"?iv="+base64(iv).
func (kp *Pair) Encrypt(recipientPubHex, message string) (string, error) {
	sharedKey, err := kp.ECDH(recipientPubHex)
	if chk.E(err) {
		return "", err
	}
	block, err := aes.NewCipher(sharedKey)
	if chk.E(err) {
		return "", fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	var iv [aes.BlockSize]byte
	frand.Read(iv[:])

	padded := pkcs7Pad([]byte(message), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv[:]).CryptBlocks(ciphertext, padded)

	return base64.StdEncoding.EncodeToString(ciphertext) + "?iv=" + base64.StdEncoding.EncodeToString(iv[:]), nil
}

// Decrypt reverses Encrypt using the same ECDH shared secret, derived from
// this Pair's secret and the sender's public key.
func (kp *Pair) Decrypt(senderPubHex, payload string) (string, error) {
	parts := strings.SplitN(payload, "?iv=", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: missing ?iv= separator", ErrDecrypt)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(parts[0])
	if chk.D(err) {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	iv, err := base64.StdEncoding.DecodeString(parts[1])
	if chk.D(err) {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("%w: iv must be %d bytes, got %d", ErrDecrypt, aes.BlockSize, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrDecrypt)
	}

	sharedKey, err := kp.ECDH(senderPubHex)
	if chk.E(err) {
		return "", err
	}
	block, err := aes.NewCipher(sharedKey)
	if chk.E(err) {
		return "", fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	plainPadded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainPadded, ciphertext)

	plain, err := pkcs7Unpad(plainPadded, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: decrypted payload is not valid UTF-8", ErrDecrypt)
	}
	return string(plain), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	padLen := blockSize - len(b)%blockSize
	padding := make([]byte, padLen)
	for i := range padding {
		padding[i] = byte(padLen)
	}
	return append(append([]byte{}, b...), padding...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("pkcs7: invalid padded length")
	}
	padLen := int(b[len(b)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(b) {
		return nil, errors.New("pkcs7: invalid padding")
	}
	for _, p := range b[len(b)-padLen:] {
		if int(p) != padLen {
			return nil, errors.New("pkcs7: invalid padding bytes")
		}
	}
	return b[:len(b)-padLen], nil
}
