// Package subscription implements the REQ/CLOSE frame assembly for a
// named filter-set binding on a relay.
package subscription

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nostrpy/nostrcli/filter"
)

// Subscription binds an id to a FilterSet. Batch is carried as metadata
// only; it is not written into the REQ frame. Paused subscriptions are
// kept registered but stop forwarding to the pool (see
// relay.Relay.UpdateSubscription).
type Subscription struct {
	ID      string
	Filters filter.FilterSet
	Batch   int
	Paused  bool
}

// New constructs a Subscription. Go's static typing makes spec scenario
// 6's "non-string id raises a type error" a compile-time property: ID is
// declared string, so passing anything else fails to compile rather than
// raising at runtime. New still rejects the one runtime-reachable
// violation of the same intent, an empty id, which would produce
// ambiguous REQ/CLOSE frames.
func New(id string, filters filter.FilterSet) (*Subscription, error) {
	if id == "" {
		return nil, fmt.Errorf("subscription: id must be non-empty")
	}
	return &Subscription{ID: id, Filters: filters}, nil
}

// ToRequestMessage builds the wire frame ["REQ", id, filter, filter, ...].
func (s *Subscription) ToRequestMessage() ([]byte, error) {
	arr := make([]interface{}, 0, 2+len(s.Filters))
	arr = append(arr, "REQ", s.ID)
	for _, f := range s.Filters {
		arr = append(arr, f)
	}
	return marshalCompact(arr)
}

// ToCloseMessage builds the wire frame ["CLOSE", id].
func (s *Subscription) ToCloseMessage() ([]byte, error) {
	return marshalCompact([]interface{}{"CLOSE", s.ID})
}

// marshalCompact serializes v with an encoding/json Encoder whose HTML
// escaping is disabled, and trims the Encoder's trailing newline, so
// frames match the wire format byte-for-byte regardless of filter/tag
// content.
func marshalCompact(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("subscription: marshal: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
