// Package relay implements one persistent bidirectional connection to a
// nostr relay: dialing, the ping-keepalive and receive loops, frame
// validation, reconnection, and per-relay subscription bookkeeping.
package relay

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"

	"github.com/nostrpy/nostrcli/event"
	"github.com/nostrpy/nostrcli/internal/chk"
	"github.com/nostrpy/nostrcli/internal/xlog"
	"github.com/nostrpy/nostrcli/pool"
	"github.com/nostrpy/nostrcli/subscription"
)

const (
	pingInterval   = 60 * time.Second
	pingTimeout    = 10 * time.Second
	pingPayload    = "2" // not sent: coder/websocket's Ping picks its own payload
	reconnectCeil  = 30 * time.Second
	reconnectFloor = 1 * time.Second
)

// ErrNotConnected is returned by Publish when no connection is open:
// before Connect, or after Close.
var ErrNotConnected = errors.New("relay: not connected")

// Relay owns one websocket connection to URL, a map of active
// subscriptions, and error/activity counters. Construct with New, then
// call Connect.
type Relay struct {
	URL string

	CanRead  bool
	CanWrite bool

	pool          *pool.Pool
	Subscriptions *xsync.MapOf[string, *subscription.Subscription]

	// errorThreshold caps how many consecutive read errors receiveLoop
	// tolerates before giving up on reconnection. Zero means unbounded
	// retry, per spec.md §4.7.
	errorThreshold int

	active       *atomic.Bool
	errorCounter *atomic.Int64
	lastActive   *atomic.Int64

	mu   sync.Mutex
	conn *connection

	dial dialOptions

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Relay at construction time.
type Option func(*Relay)

// WithTLSConfig overrides the default TLS configuration used to dial.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(r *Relay) { r.dial.tlsConfig = cfg }
}

// WithRequestHeader sets the HTTP header sent on the websocket preflight
// request (e.g. an Origin header some relays require).
func WithRequestHeader(h http.Header) Option {
	return func(r *Relay) { r.dial.requestHeader = h }
}

// WithProxy routes the connection through an HTTP-CONNECT or SOCKS5 proxy
// at host:port, per spec.md §4.7's (host, port, type) triple.
func WithProxy(host string, port int, kind ProxyType) Option {
	return func(r *Relay) {
		r.dial.hasProxy = true
		r.dial.proxyHost = host
		r.dial.proxyPort = port
		r.dial.proxyType = kind
	}
}

// WithErrorThreshold caps the number of consecutive read errors
// receiveLoop tolerates before it stops attempting reconnection. A
// threshold of 0 (the default) means unbounded retry, per spec.md §4.7;
// a positive threshold caps it. relaymanager.Manager.AddRelay propagates
// its own default here when positive, per spec.md §4.8.
func WithErrorThreshold(n int) Option {
	return func(r *Relay) { r.errorThreshold = n }
}

// ReadOnly marks the relay as not accepting outbound EVENT/REQ/CLOSE
// writes; it still receives.
func ReadOnly() Option { return func(r *Relay) { r.CanWrite = false } }

// WriteOnly marks the relay as accepting writes but not forwarding
// inbound frames to the shared pool.
func WriteOnly() Option { return func(r *Relay) { r.CanRead = false } }

// New constructs a Relay bound to url and the shared message pool p.
// Inbound valid frames are fed into p; Connect must be called before any
// I/O is attempted.
func New(url string, p *pool.Pool, opts ...Option) *Relay {
	r := &Relay{
		URL:           url,
		CanRead:       true,
		CanWrite:      true,
		pool:          p,
		Subscriptions: xsync.NewMapOf[string, *subscription.Subscription](),
		active:        atomic.NewBool(false),
		errorCounter:  atomic.NewInt64(0),
		lastActive:    atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsActive reports whether the connection appears healthy.
func (r *Relay) IsActive() bool { return r.active.Load() }

// ErrorThreshold reports the configured error threshold; zero means
// receiveLoop retries unboundedly, per spec.md §4.7.
func (r *Relay) ErrorThreshold() int { return r.errorThreshold }

// Connect dials the relay and starts its receive and ping-keepalive
// loops under ctx; cancelling ctx tears the connection down. Connect
// itself only blocks for the initial handshake.
func (r *Relay) Connect(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	c, err := dial(r.ctx, r.URL, r.dial)
	if chk.E(err) {
		return fmt.Errorf("relay: connect %s: %w", r.URL, err)
	}
	r.mu.Lock()
	r.conn = c
	r.mu.Unlock()
	r.active.Store(true)
	r.errorCounter.Store(0)

	go r.pingLoop()
	go r.receiveLoop()
	return nil
}

// Close tears the connection down; idempotent.
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	r.active.Store(false)
	if r.conn == nil {
		return nil
	}
	err := r.conn.close()
	r.conn = nil
	return err
}

// Publish writes one text frame to the relay. On a write failure it
// marks the relay inactive, logs, and returns the wrapped error; it
// never panics. Fire-and-forget callers such as
// relaymanager.Manager.PublishMessage discard that error.
func (r *Relay) Publish(frame []byte) error {
	if !r.CanWrite {
		return fmt.Errorf("relay: %s is read-only", r.URL)
	}
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()
	if err := conn.writeText(ctx, frame); chk.E(err) {
		r.active.Store(false)
		return fmt.Errorf("relay: publish to %s: %w", r.URL, err)
	}
	r.lastActive.Store(time.Now().Unix())
	return nil
}

// AddSubscription registers sub without sending a REQUEST frame.
func (r *Relay) AddSubscription(sub *subscription.Subscription) {
	r.Subscriptions.Store(sub.ID, sub)
}

// CloseSubscription unregisters the subscription with id, if present.
func (r *Relay) CloseSubscription(id string) {
	r.Subscriptions.Delete(id)
}

// UpdateSubscription replaces the stored subscription for sub.ID, e.g. to
// flip Paused.
func (r *Relay) UpdateSubscription(sub *subscription.Subscription) {
	r.Subscriptions.Store(sub.ID, sub)
}

func (r *Relay) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.mu.Lock()
			conn := r.conn
			r.mu.Unlock()
			if conn == nil {
				return
			}
			pingCtx, cancel := context.WithTimeout(r.ctx, pingTimeout)
			err := conn.ping(pingCtx)
			cancel()
			if chk.W(err) {
				xlog.W.F("relay %s: ping failed, closing: %v", r.URL, err)
				_ = r.Close()
				return
			}
		}
	}
}

func (r *Relay) receiveLoop() {
	handedOff := false
	defer func() {
		if !handedOff {
			r.active.Store(false)
		}
	}()
	backoff := reconnectFloor
	for {
		r.mu.Lock()
		conn := r.conn
		r.mu.Unlock()
		if conn == nil {
			return
		}
		raw, err := conn.readText(r.ctx)
		if err != nil {
			select {
			case <-r.ctx.Done():
				return
			default:
			}
			n := r.errorCounter.Inc()
			xlog.D.F("relay %s: read error (%d): %v", r.URL, n, err)
			// errorThreshold == 0 means unbounded retry, per spec.md §4.7.
			if r.errorThreshold > 0 && n > int64(r.errorThreshold) {
				xlog.E.F("relay %s: error threshold exceeded, giving up", r.URL)
				_ = r.Close()
				return
			}
			time.Sleep(backoff)
			if backoff < reconnectCeil {
				backoff *= 2
				if backoff > reconnectCeil {
					backoff = reconnectCeil
				}
			}
			if err := r.Connect(r.ctx); chk.E(err) {
				continue
			}
			handedOff = true
			return // Connect started a fresh receiveLoop goroutine
		}
		backoff = reconnectFloor
		r.lastActive.Store(time.Now().Unix())

		if !r.CanRead {
			continue
		}
		if !r.isValidMessage(raw) {
			continue
		}
		if err := r.pool.Feed(raw, r.URL); chk.D(err) {
			continue
		}
	}
}

// isValidMessage implements spec.md §4.7's frame-admission checks: strip
// a trailing newline, require a JSON array, and for EVENT frames require
// exactly 3 elements, a known subscription id that is not Paused, a
// verifying signature, and a filter-set match.
func (r *Relay) isValidMessage(raw []byte) bool {
	trimmed := bytes.TrimRight(raw, "\n")
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return false
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(trimmed, &arr); chk.D(err) {
		return false
	}
	if len(arr) == 0 {
		return false
	}
	var tag string
	if err := json.Unmarshal(arr[0], &tag); chk.D(err) {
		return false
	}
	switch tag {
	case "EVENT":
		if len(arr) != 3 {
			return false
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); chk.D(err) {
			return false
		}
		sub, ok := r.Subscriptions.Load(subID)
		if !ok || sub.Paused {
			return false
		}
		var e event.Event
		if err := json.Unmarshal(arr[2], &e); chk.D(err) {
			return false
		}
		if !e.Verify() {
			return false
		}
		if !sub.Filters.Matches(&e) {
			return false
		}
		return true
	case "NOTICE", "EOSE", "OK":
		return true
	default:
		return false
	}
}
