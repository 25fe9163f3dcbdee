// Package relaymanager owns a set of relays sharing one message pool: it
// fans outbound REQ/CLOSE/EVENT frames out to every relay whose policy
// permits writing, and exposes the subscription lifecycle operations
// spec.md §4.8 describes.
package relaymanager

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/nostrpy/nostrcli/event"
	"github.com/nostrpy/nostrcli/internal/chk"
	"github.com/nostrpy/nostrcli/internal/xlog"
	"github.com/nostrpy/nostrcli/pool"
	"github.com/nostrpy/nostrcli/relay"
	"github.com/nostrpy/nostrcli/subscription"
)

// openConnectionsWarmup is how long OpenConnections waits after launching
// every relay's dial goroutine before checking which came up, per
// spec.md §4.8/§6's 2s warmup default.
const openConnectionsWarmup = 2 * time.Second

// ErrMustBeSigned is returned by PublishEvent when the event carries no
// signature.
var ErrMustBeSigned = errors.New("relaymanager: event must be signed")

// ErrFailedToVerify is returned by PublishEvent when the event's
// signature does not verify.
var ErrFailedToVerify = errors.New("relaymanager: event failed to verify")

// ErrUnknownRelay is returned by per-relay operations naming a URL the
// manager does not own.
var ErrUnknownRelay = errors.New("relaymanager: unknown relay")

// Manager owns a URL-keyed set of relays and the message pool they all
// feed. The zero value is not usable; construct with New.
type Manager struct {
	mu     sync.Mutex
	relays *xsync.MapOf[string, *relay.Relay]
	Pool   *pool.Pool

	// ErrorThreshold is propagated to every relay added via AddRelay when
	// positive, per spec.md §4.8's "inherits manager's error threshold if
	// positive". Zero, the default, leaves new relays at their own
	// unbounded-retry default.
	ErrorThreshold int
}

// New constructs an empty Manager with its own shared message pool.
func New() *Manager {
	return &Manager{
		relays: xsync.NewMapOf[string, *relay.Relay](),
		Pool:   pool.New(),
	}
}

// AddRelay registers a relay at url, constructing it against the
// manager's shared pool. When m.ErrorThreshold is positive it is applied
// before opts, so a caller-supplied relay.WithErrorThreshold in opts
// still wins. AddRelay does not connect.
func (m *Manager) AddRelay(url string, opts ...relay.Option) *relay.Relay {
	if m.ErrorThreshold > 0 {
		opts = append([]relay.Option{relay.WithErrorThreshold(m.ErrorThreshold)}, opts...)
	}
	r := relay.New(url, m.Pool, opts...)
	m.mu.Lock()
	m.relays.Store(url, r)
	m.mu.Unlock()
	return r
}

// RemoveRelay closes and unregisters the relay at url, if present.
func (m *Manager) RemoveRelay(url string) {
	m.mu.Lock()
	r, ok := m.relays.Load(url)
	if ok {
		m.relays.Delete(url)
	}
	m.mu.Unlock()
	if ok {
		_ = r.Close()
	}
}

// Relay returns the relay registered at url, if any.
func (m *Manager) Relay(url string) (*relay.Relay, bool) {
	return m.relays.Load(url)
}

// OpenConnections dials every registered relay concurrently, one
// errgroup goroutine per relay, matching spec.md §5's "one worker per
// relay" contract. A single relay's dial failure does not prevent the
// others from connecting. Per spec.md §4.8 it then sleeps
// openConnectionsWarmup to let sockets come up, drops any relay still
// reporting not-connected, and asserts every remaining relay is
// connected before returning the first dial error seen, if any.
func (m *Manager) OpenConnections(ctx context.Context) error {
	var g errgroup.Group
	m.relays.Range(func(url string, r *relay.Relay) bool {
		g.Go(func() error {
			if err := r.Connect(ctx); chk.E(err) {
				return fmt.Errorf("relaymanager: connect %s: %w", url, err)
			}
			return nil
		})
		return true
	})
	firstErr := g.Wait()

	time.Sleep(openConnectionsWarmup)

	var notConnected []string
	m.relays.Range(func(url string, r *relay.Relay) bool {
		if !r.IsActive() {
			notConnected = append(notConnected, url)
		}
		return true
	})
	for _, url := range notConnected {
		xlog.W.F("relaymanager: dropping %s, still not connected after warmup", url)
		m.RemoveRelay(url)
	}

	var stillNotConnected []string
	m.relays.Range(func(url string, r *relay.Relay) bool {
		if !r.IsActive() {
			stillNotConnected = append(stillNotConnected, url)
		}
		return true
	})
	if len(stillNotConnected) > 0 {
		return fmt.Errorf("relaymanager: relays not connected after warmup: %v", stillNotConnected)
	}
	return firstErr
}

// ConnectionStatuses reports, per registered relay URL, whether its
// connection currently appears healthy. It is the only supported way to
// observe per-relay connectivity, per spec.md §7.
func (m *Manager) ConnectionStatuses() map[string]bool {
	statuses := make(map[string]bool)
	m.relays.Range(func(url string, r *relay.Relay) bool {
		statuses[url] = r.IsActive()
		return true
	})
	return statuses
}

// CloseAll closes every registered relay.
func (m *Manager) CloseAll() {
	m.relays.Range(func(_ string, r *relay.Relay) bool {
		_ = r.Close()
		return true
	})
}

// AddSubscription registers a subscription on every relay whose policy
// permits reading, without sending the REQUEST frame — callers publish
// it themselves (e.g. via PublishMessage), per spec.md §4.8.
func (m *Manager) AddSubscription(sub *subscription.Subscription) {
	m.relays.Range(func(_ string, r *relay.Relay) bool {
		if r.CanRead {
			r.AddSubscription(sub)
		}
		return true
	})
}

// AddSubscriptionOnAllRelays registers sub on every readable relay and
// additionally sends the REQUEST frame to each.
func (m *Manager) AddSubscriptionOnAllRelays(sub *subscription.Subscription) error {
	frame, err := sub.ToRequestMessage()
	if chk.E(err) {
		return fmt.Errorf("relaymanager: build request frame: %w", err)
	}
	var firstErr error
	m.relays.Range(func(_ string, r *relay.Relay) bool {
		if !r.CanRead {
			return true
		}
		r.AddSubscription(sub)
		if err := r.Publish(frame); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// CloseSubscriptionOnRelay unregisters id from the relay at url and
// sends it a CLOSE frame.
func (m *Manager) CloseSubscriptionOnRelay(url, id string) error {
	r, ok := m.relays.Load(url)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRelay, url)
	}
	r.CloseSubscription(id)
	frame, err := (&subscription.Subscription{ID: id}).ToCloseMessage()
	if chk.E(err) {
		return err
	}
	return r.Publish(frame)
}

// CloseSubscriptionOnAllRelays unregisters id from every relay and sends
// each a CLOSE frame.
func (m *Manager) CloseSubscriptionOnAllRelays(id string) {
	frame, err := (&subscription.Subscription{ID: id}).ToCloseMessage()
	if chk.E(err) {
		return
	}
	m.relays.Range(func(_ string, r *relay.Relay) bool {
		r.CloseSubscription(id)
		_ = r.Publish(frame)
		return true
	})
}

// PublishMessage sends a raw pre-built frame to every writable relay.
func (m *Manager) PublishMessage(frame []byte) {
	m.relays.Range(func(_ string, r *relay.Relay) bool {
		if r.CanWrite {
			_ = r.Publish(frame)
		}
		return true
	})
}

// PublishEvent validates e (signed, verifies) and fans it out to every
// writable relay as an ["EVENT", event] frame, implementing spec.md
// §4.8/§8's publish gate.
func (m *Manager) PublishEvent(e *event.Event) error {
	if e.Sig == "" {
		return ErrMustBeSigned
	}
	if !e.Verify() {
		return ErrFailedToVerify
	}
	frame, err := e.ToEventMessage()
	if chk.E(err) {
		return fmt.Errorf("relaymanager: build event frame: %w", err)
	}
	m.PublishMessage(frame)
	return nil
}

// Scoped opens connections to every registered relay, runs fn, and
// closes them all afterward regardless of fn's outcome — the Go
// replacement for a Python context manager's __enter__/__exit__ pair.
// When tlsOpts is nil, InsecureSkipVerify defaults to true for this
// convenience helper only; see DESIGN.md for why this default was chosen
// instead of verifying by default.
func Scoped(ctx context.Context, tlsOpts *tls.Config, urls []string, fn func(*Manager) error) error {
	m := New()
	if tlsOpts == nil {
		tlsOpts = &tls.Config{InsecureSkipVerify: true}
	}
	for _, url := range urls {
		m.AddRelay(url, relay.WithTLSConfig(tlsOpts))
	}
	if err := m.OpenConnections(ctx); chk.E(err) {
		return err
	}
	defer m.CloseAll()
	return fn(m)
}
