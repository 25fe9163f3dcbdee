// Package event implements the nostr event model: canonical serialization
// and id derivation, Schnorr signing/verification, tag operations, and the
// encrypted direct-message specialization.
package event

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	sha256 "github.com/minio/sha256-simd"

	"github.com/nostrpy/nostrcli/key"
)

// Tags is an ordered sequence of ordered sequences of strings; each inner
// sequence has length >= 2 with the first element the tag name. Either a
// []string-of-name-then-values or the full [][]string works for matching
// code, which only ever looks at indices 0 and 1 — this module keeps the
// simpler [][]string shape.
type Tags [][]string

// Event is the core nostr datatype. Id and Sig, when present, are
// lowercase hex. Id is never stored — see ID().
type Event struct {
	Content   string
	PubKey    string // 32-byte hex
	CreatedAt int64  // unix seconds
	Kind      Kind
	Tags      Tags
	Sig       string // 64-byte hex, set only after Sign
}

// New returns an Event with CreatedAt defaulted to the current wall clock
// and Kind defaulted to TextNote, per spec.md §3.
func New() *Event {
	return &Event{CreatedAt: time.Now().Unix(), Kind: TextNote, Tags: Tags{}}
}

// ErrNotEncrypted is returned by Sign when called on an
// EncryptedDirectMessage whose Content has not yet been populated by
// Encrypt.
var ErrNotEncrypted = errors.New("event: encrypted direct message has no content to sign; call Encrypt first")

// ID recomputes and returns the lowercase-hex SHA-256 of the canonical
// serialization of the event's CURRENT fields. It is deliberately not
// cached: mutating CreatedAt, Tags, Content, Kind, or PubKey after
// construction invalidates any previously observed id, per spec.md §3/§9.
func (e *Event) ID() string {
	h := sha256.Sum256(canonicalJSON(e.PubKey, e.CreatedAt, e.Kind, e.Tags, e.Content))
	return hex.EncodeToString(h[:])
}

// Sign computes the id, signs it with kp's secret, and records kp's public
// key and the resulting 64-byte hex signature on the event.
func (e *Event) Sign(kp *key.Pair) error {
	idHex := e.ID()
	idBytes, err := hex.DecodeString(idHex)
	if err != nil {
		return fmt.Errorf("event: %w", err)
	}
	sig, err := kp.Sign(idBytes, nil)
	if err != nil {
		return fmt.Errorf("event: sign: %w", err)
	}
	e.PubKey = kp.PublicHex()
	e.Sig = hex.EncodeToString(sig)
	return nil
}

// Verify recomputes the id from current fields and BIP-340-verifies Sig
// against PubKey over it. It never panics or errors: a malformed or
// missing signature simply fails to verify.
func (e *Event) Verify() bool {
	if e.Sig == "" || e.PubKey == "" {
		return false
	}
	pub, err := key.DecodePublicHex(e.PubKey)
	if err != nil {
		return false
	}
	sig, err := hex.DecodeString(e.Sig)
	if err != nil || len(sig) != key.SignatureLen {
		return false
	}
	idHex := e.ID()
	idBytes, err := hex.DecodeString(idHex)
	if err != nil {
		return false
	}
	return key.Verify(pub, idBytes, sig)
}

// AddPubkeyRef appends a ["p", pubkey] tag.
func (e *Event) AddPubkeyRef(pubkey string) { e.Tags = append(e.Tags, []string{"p", pubkey}) }

// AddEventRef appends an ["e", eventID] tag.
func (e *Event) AddEventRef(eventID string) { e.Tags = append(e.Tags, []string{"e", eventID}) }

// HasPubkeyRef reports whether a ["p", pubkey] tag is present.
func (e *Event) HasPubkeyRef(pubkey string) bool { return e.GetTagCount("p") > 0 && e.hasTagValue("p", pubkey) }

// HasEventRef reports whether an ["e", eventID] tag is present.
func (e *Event) HasEventRef(eventID string) bool { return e.GetTagCount("e") > 0 && e.hasTagValue("e", eventID) }

func (e *Event) hasTagValue(name, value string) bool {
	for _, t := range e.Tags {
		if len(t) >= 2 && t[0] == name && t[1] == value {
			return true
		}
	}
	return false
}

// GetTagList returns the values (index 1) of every tag named t, in
// encounter order.
func (e *Event) GetTagList(t string) []string {
	var out []string
	for _, tag := range e.Tags {
		if len(tag) >= 2 && tag[0] == t {
			out = append(out, tag[1])
		}
	}
	return out
}

// GetTagTypes returns the distinct tag names present, deduplicated in
// first-seen order.
func (e *Event) GetTagTypes() []string {
	seen := map[string]bool{}
	var out []string
	for _, tag := range e.Tags {
		if len(tag) == 0 {
			continue
		}
		if !seen[tag[0]] {
			seen[tag[0]] = true
			out = append(out, tag[0])
		}
	}
	return out
}

// GetTagCount counts occurrences of tags named t.
func (e *Event) GetTagCount(t string) int {
	n := 0
	for _, tag := range e.Tags {
		if len(tag) > 0 && tag[0] == t {
			n++
		}
	}
	return n
}
