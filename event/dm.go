package event

import (
	"errors"
	"fmt"

	"github.com/nostrpy/nostrcli/key"
)

// ErrMissingRecipient is returned by NewEncryptedDirectMessage and Encrypt
// when no recipient public key is set.
var ErrMissingRecipient = errors.New("event: encrypted direct message has no recipient")

// ErrUndefinedID is returned by EncryptedDirectMessage.ID when Encrypt has
// not yet populated Content.
var ErrUndefinedID = errors.New("event: referenced event has no id")

// EncryptedDirectMessage wraps a kind-4 Event, carrying the plaintext
// alongside it until Encrypt populates Event.Content with the NIP-04
// ciphertext. CleartextContent is never sent over the wire; only
// Event.Content is serialized.
type EncryptedDirectMessage struct {
	*Event
	RecipientPubKey  string
	CleartextContent string
	ReferenceEventID string // set by NewEncryptedDirectMessage; already an ["e", id] tag
}

// NewEncryptedDirectMessage builds an unencrypted kind-4 DM addressed to
// recipientPubHex, referencing referenceEventID if non-empty. Construction
// without a recipient fails with ErrMissingRecipient, per spec.md §4.3/§7.
// The ["p", recipient] tag, and the ["e", referenceEventID] tag if one is
// supplied, are added here at construction, not by Encrypt, matching the
// original's EncryptedDirectMessage.__post_init__. Call Encrypt before Sign.
func NewEncryptedDirectMessage(recipientPubHex, cleartext string, referenceEventID ...string) (*EncryptedDirectMessage, error) {
	if recipientPubHex == "" {
		return nil, ErrMissingRecipient
	}
	e := New()
	e.Kind = EncryptedDirectMessage
	e.AddPubkeyRef(recipientPubHex)
	dm := &EncryptedDirectMessage{
		Event:            e,
		RecipientPubKey:  recipientPubHex,
		CleartextContent: cleartext,
	}
	if len(referenceEventID) > 0 && referenceEventID[0] != "" {
		dm.ReferenceEventID = referenceEventID[0]
		dm.AddEventRef(dm.ReferenceEventID)
	}
	return dm, nil
}

// ID shadows the embedded Event.ID: requesting an id before Encrypt has
// populated Content fails with ErrUndefinedID, since the cleartext must
// never leak into the canonical serialization used to derive it.
func (dm *EncryptedDirectMessage) ID() (string, error) {
	if dm.Content == "" {
		return "", ErrUndefinedID
	}
	return dm.Event.ID(), nil
}

// Encrypt derives the NIP-04 ciphertext from CleartextContent using kp's
// ECDH shared secret with RecipientPubKey, and stores it as Event.Content.
// The recipient and reference tags are already present from construction.
func (dm *EncryptedDirectMessage) Encrypt(kp *key.Pair) error {
	if dm.RecipientPubKey == "" {
		return ErrMissingRecipient
	}
	ct, err := kp.Encrypt(dm.RecipientPubKey, dm.CleartextContent)
	if err != nil {
		return fmt.Errorf("event: dm encrypt: %w", err)
	}
	dm.Content = ct
	return nil
}

// Decrypt recovers the cleartext of an inbound kind-4 Event's Content
// using kp's ECDH shared secret with senderPubHex. It does not mutate the
// Event; callers typically wrap the result rather than round-tripping
// through EncryptedDirectMessage.
func Decrypt(kp *key.Pair, senderPubHex string, e *Event) (string, error) {
	if e.Kind != EncryptedDirectMessage {
		return "", fmt.Errorf("event: kind %d is not an encrypted direct message", e.Kind)
	}
	return kp.Decrypt(senderPubHex, e.Content)
}

// Sign refuses to sign until Encrypt has populated Event.Content, since an
// unencrypted kind-4 event would leak the cleartext on the wire.
func (dm *EncryptedDirectMessage) Sign(kp *key.Pair) error {
	if dm.Content == "" {
		return ErrNotEncrypted
	}
	return dm.Event.Sign(kp)
}
