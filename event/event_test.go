package event_test

import (
	"encoding/json"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/nostrpy/nostrcli/event"
	"github.com/nostrpy/nostrcli/key"
)

// TestDeterministicID exercises spec scenario 1's literal test vector: a
// fixed secret, fixed content/timestamp/kind/empty-tags, producing an
// exact id and a passing signature.
func TestDeterministicID(t *testing.T) {
	kp, err := key.FromSecretHex("964b29795d621cdacf05fd94fb23206c88742db1fa50b34d7545f3a2221d8124")
	require.NoError(t, err)

	e := &event.Event{
		Content:   "Hello Nostr!",
		CreatedAt: 1671406583,
		Kind:      event.TextNote,
		Tags:      event.Tags{},
	}
	require.NoError(t, e.Sign(kp))
	require.Equal(t, "23411895658d374ec922adf774a70172290b2c738ae67815bd8945e5d8fff3bb", e.ID())
	require.True(t, e.Verify())
}

// TestMutationInvalidatesID ensures id is recomputed live, never cached.
func TestMutationInvalidatesID(t *testing.T) {
	kp, err := key.Generate()
	require.NoError(t, err)

	e := event.New()
	e.Content = "before"
	require.NoError(t, e.Sign(kp))
	before := e.ID()
	require.True(t, e.Verify())

	e.Content = "after"
	after := e.ID()
	require.NotEqual(t, before, after)
	// Sig was computed over the old id; it no longer verifies.
	require.False(t, e.Verify())
}

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := key.Generate()
	require.NoError(t, err)

	e := event.New()
	e.Content = "round trip"
	e.AddPubkeyRef(kp.PublicHex())
	require.NoError(t, e.Sign(kp))
	require.True(t, e.Verify())
	require.True(t, e.HasPubkeyRef(kp.PublicHex()))
	require.Equal(t, []string{kp.PublicHex()}, e.GetTagList("p"))
	require.Equal(t, 1, e.GetTagCount("p"))
	require.Equal(t, []string{"p"}, e.GetTagTypes())
}

func TestVerifyFailsUnsigned(t *testing.T) {
	e := event.New()
	e.Content = "no sig"
	require.False(t, e.Verify())
}

func TestJSONRoundTrip(t *testing.T) {
	kp, err := key.Generate()
	require.NoError(t, err)

	e := event.New()
	e.Content = "wire test"
	e.AddEventRef("deadbeef")
	require.NoError(t, e.Sign(kp))

	data, err := json.Marshal(e)
	require.NoError(t, err)
	require.Contains(t, string(data), `"id":"`)
	require.Contains(t, string(data), `"pubkey":"`+kp.PublicHex()+`"`)

	var got event.Event
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, e.Content, got.Content, "round-tripped event:\n%s", spew.Sdump(got))
	require.Equal(t, e.PubKey, got.PubKey)
	require.Equal(t, e.Sig, got.Sig)
	require.True(t, got.Verify())
}

func TestEncryptedDirectMessageRoundTrip(t *testing.T) {
	alice, err := key.Generate()
	require.NoError(t, err)
	bob, err := key.Generate()
	require.NoError(t, err)

	dm, err := event.NewEncryptedDirectMessage(bob.PublicHex(), "secret message")
	require.NoError(t, err)
	_, idErr := dm.ID()
	require.ErrorIs(t, idErr, event.ErrUndefinedID)
	require.NoError(t, dm.Encrypt(alice))
	encryptedID, err := dm.ID()
	require.NoError(t, err)
	require.NotEmpty(t, encryptedID)
	require.NoError(t, dm.Sign(alice))
	require.True(t, dm.Verify())
	require.True(t, dm.HasPubkeyRef(bob.PublicHex()))

	plain, err := event.Decrypt(bob, alice.PublicHex(), dm.Event)
	require.NoError(t, err)
	require.Equal(t, "secret message", plain)
}

// TestEncryptedDirectMessageTagsSetAtConstruction ensures the p-tag (and,
// when supplied, the e-tag) are present on a constructed-but-not-yet-
// encrypted DM, not only after Encrypt runs.
func TestEncryptedDirectMessageTagsSetAtConstruction(t *testing.T) {
	bob, err := key.Generate()
	require.NoError(t, err)

	dm, err := event.NewEncryptedDirectMessage(bob.PublicHex(), "hi", "deadbeef")
	require.NoError(t, err)
	require.True(t, dm.HasPubkeyRef(bob.PublicHex()))
	require.True(t, dm.HasEventRef("deadbeef"))
	require.Equal(t, "deadbeef", dm.ReferenceEventID)
}

func TestEncryptedDirectMessageRequiresRecipient(t *testing.T) {
	_, err := event.NewEncryptedDirectMessage("", "oops")
	require.ErrorIs(t, err, event.ErrMissingRecipient)
}

func TestEncryptedDirectMessageRefusesUnencryptedSign(t *testing.T) {
	alice, err := key.Generate()
	require.NoError(t, err)
	bob, err := key.Generate()
	require.NoError(t, err)

	dm, err := event.NewEncryptedDirectMessage(bob.PublicHex(), "hi")
	require.NoError(t, err)
	require.ErrorIs(t, dm.Sign(alice), event.ErrNotEncrypted)
}
