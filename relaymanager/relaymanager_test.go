package relaymanager_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nostrpy/nostrcli/event"
	"github.com/nostrpy/nostrcli/key"
	"github.com/nostrpy/nostrcli/relaymanager"
	"github.com/nostrpy/nostrcli/subscription"
)

// TestPublishGateUnsigned exercises spec scenario: publish_event with no
// signature raises the "must be signed" error.
func TestPublishGateUnsigned(t *testing.T) {
	m := relaymanager.New()
	e := event.New()
	e.Content = "hi"
	require.ErrorIs(t, m.PublishEvent(e), relaymanager.ErrMustBeSigned)
}

// TestPublishGateBadSignature exercises spec scenario: a zero-filled
// signature raises the "failed to verify" error.
func TestPublishGateBadSignature(t *testing.T) {
	m := relaymanager.New()
	kp, err := key.Generate()
	require.NoError(t, err)
	e := event.New()
	e.Content = "hi"
	require.NoError(t, e.Sign(kp))
	e.Sig = strings.Repeat("00", key.SignatureLen)
	require.ErrorIs(t, m.PublishEvent(e), relaymanager.ErrFailedToVerify)
}

// TestPublishGatePassesAfterSign exercises spec scenario: after a proper
// sign, PublishEvent does not raise (even with zero relays registered,
// since the gate runs before any network I/O).
func TestPublishGatePassesAfterSign(t *testing.T) {
	m := relaymanager.New()
	kp, err := key.Generate()
	require.NoError(t, err)
	e := event.New()
	e.Content = "hi"
	require.NoError(t, e.Sign(kp))
	require.NoError(t, m.PublishEvent(e))
}

// TestAddRelayPropagatesErrorThreshold exercises spec.md §4.8's "AddRelay
// inherits manager's error threshold if positive".
func TestAddRelayPropagatesErrorThreshold(t *testing.T) {
	m := relaymanager.New()
	m.ErrorThreshold = 3
	r := m.AddRelay("wss://a.invalid")
	require.Equal(t, 3, r.ErrorThreshold())
}

// TestConnectionStatusesReportsPerRelay exercises the connection-status
// query spec.md §7 requires as the only observable surface for per-relay
// connectivity.
func TestConnectionStatusesReportsPerRelay(t *testing.T) {
	m := relaymanager.New()
	m.AddRelay("wss://a.invalid")
	statuses := m.ConnectionStatuses()
	require.Contains(t, statuses, "wss://a.invalid")
	require.False(t, statuses["wss://a.invalid"])
}

func TestCloseSubscriptionOnUnknownRelay(t *testing.T) {
	m := relaymanager.New()
	err := m.CloseSubscriptionOnRelay("wss://nope.invalid", "s1")
	require.ErrorIs(t, err, relaymanager.ErrUnknownRelay)
}

// TestSubscriptionIsolationAcrossManager exercises spec's isolation
// property at the manager level: a subscription added via AddSubscription
// only appears on relays the manager owns, each relay keeping its own map.
func TestSubscriptionIsolationAcrossManager(t *testing.T) {
	m := relaymanager.New()
	a := m.AddRelay("wss://a.invalid")
	b := m.AddRelay("wss://b.invalid")

	sub, err := subscription.New("s1", nil)
	require.NoError(t, err)
	m.AddSubscription(sub)

	_, ok := a.Subscriptions.Load("s1")
	require.True(t, ok)
	_, ok = b.Subscriptions.Load("s1")
	require.True(t, ok)

	b.CloseSubscription("s1")
	_, ok = a.Subscriptions.Load("s1")
	require.True(t, ok, "closing on one relay must not affect another")
	_, ok = b.Subscriptions.Load("s1")
	require.False(t, ok)
}
