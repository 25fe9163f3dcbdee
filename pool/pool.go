// Package pool implements the deduplicating inbound message pool: four
// FIFO queues (events, notices, EOSE, OK) fed by every relay's receive
// loop and drained by the caller, with blocking Get* semantics matching
// the teacher's own pool/queue discipline.
package pool

import (
	"encoding/json"
	"sync"

	"github.com/nostrpy/nostrcli/event"
	"github.com/nostrpy/nostrcli/internal/chk"
)

// RelayEvent is an inbound event paired with the subscription and relay
// it arrived on.
type RelayEvent struct {
	Event          *event.Event
	SubscriptionID string
	URL            string
}

// RelayNotice is a relay's free-text NOTICE message.
type RelayNotice struct {
	Text string
	URL  string
}

// RelayEOSE marks end-of-stored-events for a subscription on a relay.
type RelayEOSE struct {
	SubscriptionID string
	URL            string
}

// Pool demultiplexes parsed relay frames into four typed FIFO queues,
// deduplicating inbound events by (subscription id, event id). One mutex
// guards all four queues and the dedup set, matching spec's
// single-process-wide-lock discipline — there is no per-queue lock
// striping here, since Feed is called far less often than it is cheap.
type Pool struct {
	mu sync.Mutex

	events  []RelayEvent
	notices []RelayNotice
	eose    []RelayEOSE
	oks     []string

	seen map[string]struct{}

	eventsCond *sync.Cond
	noticeCond *sync.Cond
	eoseCond   *sync.Cond
	okCond     *sync.Cond
}

// New returns an empty Pool ready to Feed and drain.
func New() *Pool {
	p := &Pool{seen: map[string]struct{}{}}
	p.eventsCond = sync.NewCond(&p.mu)
	p.noticeCond = sync.NewCond(&p.mu)
	p.eoseCond = sync.NewCond(&p.mu)
	p.okCond = sync.NewCond(&p.mu)
	return p
}

// Feed parses one inbound relay text frame and dispatches it per the
// discriminator table: EVENT/NOTICE/EOSE/OK are enqueued; any other or
// malformed discriminator is dropped silently, matching relay behavior
// that must never let one bad frame from one relay break the pool.
func (p *Pool) Feed(raw []byte, url string) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); chk.D(err) {
		return nil
	}
	if len(arr) == 0 {
		return nil
	}
	var tag string
	if err := json.Unmarshal(arr[0], &tag); chk.D(err) {
		return nil
	}

	switch tag {
	case "EVENT":
		if len(arr) != 3 {
			return nil
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); chk.D(err) {
			return nil
		}
		var e event.Event
		if err := json.Unmarshal(arr[2], &e); chk.D(err) {
			return nil
		}
		uid := subID + e.ID()
		p.mu.Lock()
		if _, dup := p.seen[uid]; !dup {
			p.seen[uid] = struct{}{}
			p.events = append(p.events, RelayEvent{Event: &e, SubscriptionID: subID, URL: url})
			p.eventsCond.Signal()
		}
		p.mu.Unlock()

	case "NOTICE":
		if len(arr) != 2 {
			return nil
		}
		var text string
		if err := json.Unmarshal(arr[1], &text); chk.D(err) {
			return nil
		}
		p.mu.Lock()
		p.notices = append(p.notices, RelayNotice{Text: text, URL: url})
		p.noticeCond.Signal()
		p.mu.Unlock()

	case "EOSE":
		if len(arr) != 2 {
			return nil
		}
		var subID string
		if err := json.Unmarshal(arr[1], &subID); chk.D(err) {
			return nil
		}
		p.mu.Lock()
		p.eose = append(p.eose, RelayEOSE{SubscriptionID: subID, URL: url})
		p.eoseCond.Signal()
		p.mu.Unlock()

	case "OK":
		p.mu.Lock()
		p.oks = append(p.oks, string(raw))
		p.okCond.Signal()
		p.mu.Unlock()

	default:
		return nil
	}
	return nil
}

// HasEvents reports whether the events queue is non-empty.
func (p *Pool) HasEvents() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events) > 0
}

// GetEvent blocks until an event is available, then pops and returns it.
func (p *Pool) GetEvent() RelayEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.events) == 0 {
		p.eventsCond.Wait()
	}
	ev := p.events[0]
	p.events = p.events[1:]
	return ev
}

// TryGetEvent pops an event without blocking; ok is false if none is
// queued.
func (p *Pool) TryGetEvent() (ev RelayEvent, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return RelayEvent{}, false
	}
	ev, p.events = p.events[0], p.events[1:]
	return ev, true
}

// HasNotices reports whether the notices queue is non-empty.
func (p *Pool) HasNotices() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notices) > 0
}

// GetNotice blocks until a notice is available.
func (p *Pool) GetNotice() RelayNotice {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.notices) == 0 {
		p.noticeCond.Wait()
	}
	n := p.notices[0]
	p.notices = p.notices[1:]
	return n
}

// TryGetNotice pops a notice without blocking.
func (p *Pool) TryGetNotice() (n RelayNotice, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.notices) == 0 {
		return RelayNotice{}, false
	}
	n, p.notices = p.notices[0], p.notices[1:]
	return n, true
}

// HasEOSE reports whether the EOSE queue is non-empty.
func (p *Pool) HasEOSE() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.eose) > 0
}

// GetEOSE blocks until an EOSE marker is available.
func (p *Pool) GetEOSE() RelayEOSE {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.eose) == 0 {
		p.eoseCond.Wait()
	}
	eo := p.eose[0]
	p.eose = p.eose[1:]
	return eo
}

// TryGetEOSE pops an EOSE marker without blocking.
func (p *Pool) TryGetEOSE() (eo RelayEOSE, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.eose) == 0 {
		return RelayEOSE{}, false
	}
	eo, p.eose = p.eose[0], p.eose[1:]
	return eo, true
}

// HasOK reports whether the OK queue is non-empty.
func (p *Pool) HasOK() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.oks) > 0
}

// GetOK blocks until a raw OK frame is available.
func (p *Pool) GetOK() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.oks) == 0 {
		p.okCond.Wait()
	}
	ok := p.oks[0]
	p.oks = p.oks[1:]
	return ok
}

// TryGetOK pops a raw OK frame without blocking.
func (p *Pool) TryGetOK() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.oks) == 0 {
		return "", false
	}
	ok := p.oks[0]
	p.oks = p.oks[1:]
	return ok, true
}
