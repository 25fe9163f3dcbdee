package relay_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nostrpy/nostrcli/event"
	"github.com/nostrpy/nostrcli/filter"
	"github.com/nostrpy/nostrcli/key"
	"github.com/nostrpy/nostrcli/pool"
	"github.com/nostrpy/nostrcli/relay"
	"github.com/nostrpy/nostrcli/subscription"
)

// fakeRelayServer starts an httptest server that accepts one websocket
// connection and hands it to handler, mirroring the teacher's
// newWebsocketServer test helper.
func fakeRelayServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		handler(conn)
	}))
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestConnectAndPublish(t *testing.T) {
	received := make(chan []byte, 1)
	srv := fakeRelayServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.Read(context.Background())
		if err == nil {
			received <- data
		}
	})
	defer srv.Close()

	p := pool.New()
	r := relay.New(wsURL(srv.URL), p)
	require.NoError(t, r.Connect(context.Background()))
	defer r.Close()

	require.NoError(t, r.Publish([]byte(`["REQ","s1",{}]`)))

	select {
	case got := <-received:
		require.Equal(t, `["REQ","s1",{}]`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the published frame")
	}
}

func TestPublishBeforeConnectFails(t *testing.T) {
	p := pool.New()
	r := relay.New("wss://example.invalid", p)
	require.ErrorIs(t, r.Publish([]byte("x")), relay.ErrNotConnected)
}

func TestReadOnlyRelayRefusesPublish(t *testing.T) {
	p := pool.New()
	r := relay.New("wss://example.invalid", p, relay.ReadOnly())
	err := r.Publish([]byte("x"))
	require.Error(t, err)
}

func TestInboundEventFeedsPool(t *testing.T) {
	kp, err := key.Generate()
	require.NoError(t, err)
	e := event.New()
	e.Content = "hi"
	require.NoError(t, e.Sign(kp))
	// relay->client EVENT frame: ["EVENT","s1",<event>]
	eventJSON, err := e.MarshalJSON()
	require.NoError(t, err)
	relayFrame := []byte(`["EVENT","s1",` + string(eventJSON) + `]`)

	srv := fakeRelayServer(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.Write(context.Background(), websocket.MessageText, relayFrame))
		time.Sleep(200 * time.Millisecond)
	})
	defer srv.Close()

	p := pool.New()
	r := relay.New(wsURL(srv.URL), p)
	sub, err := subscription.New("s1", filter.FilterSet{filter.New()})
	require.NoError(t, err)
	r.AddSubscription(sub)

	require.NoError(t, r.Connect(context.Background()))
	defer r.Close()

	select {
	case <-waitForEvent(p):
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the pool")
	}

	got := p.GetEvent()
	require.Equal(t, e.ID(), got.Event.ID())
	require.Equal(t, "s1", got.SubscriptionID)
}

func waitForEvent(p *pool.Pool) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		for !p.HasEvents() {
			time.Sleep(5 * time.Millisecond)
		}
		close(done)
	}()
	return done
}

func TestSubscriptionBookkeeping(t *testing.T) {
	p := pool.New()
	r := relay.New("wss://example.invalid", p)

	sub, err := subscription.New("s1", nil)
	require.NoError(t, err)
	r.AddSubscription(sub)

	_, ok := r.Subscriptions.Load("s1")
	require.True(t, ok)

	r.CloseSubscription("s1")
	_, ok = r.Subscriptions.Load("s1")
	require.False(t, ok)
}

// TestSubscriptionIsolation exercises spec's isolation property: adding a
// subscription to one relay's map must not affect another relay.
func TestSubscriptionIsolation(t *testing.T) {
	p := pool.New()
	a := relay.New("wss://a.invalid", p)
	b := relay.New("wss://b.invalid", p)

	sub, err := subscription.New("s1", nil)
	require.NoError(t, err)
	a.AddSubscription(sub)

	_, ok := a.Subscriptions.Load("s1")
	require.True(t, ok)
	_, ok = b.Subscriptions.Load("s1")
	require.False(t, ok)
}
