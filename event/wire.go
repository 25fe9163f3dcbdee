package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireEvent mirrors the NIP-01 JSON representation of an event:
// {"id","pubkey","created_at","kind","tags","content","sig"}. It exists
// purely as a wire DTO — Event itself never stores id, since ID() always
// recomputes it.
type wireEvent struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      Kind   `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// MarshalJSON emits the NIP-01 wire form, recomputing id from current
// fields.
func (e *Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		ID:        e.ID(),
		PubKey:    e.PubKey,
		CreatedAt: e.CreatedAt,
		Kind:      e.Kind,
		Tags:      e.Tags,
		Content:   e.Content,
		Sig:       e.Sig,
	}
	if w.Tags == nil {
		w.Tags = Tags{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the NIP-01 wire form. The incoming "id" field is
// read but not stored; callers that care whether the wire id matches the
// recomputed one should compare e.ID() against it themselves, or call
// Verify, which implicitly depends on the recomputed id.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("event: unmarshal: %w", err)
	}
	e.PubKey = w.PubKey
	e.CreatedAt = w.CreatedAt
	e.Kind = w.Kind
	e.Tags = w.Tags
	if e.Tags == nil {
		e.Tags = Tags{}
	}
	e.Content = w.Content
	e.Sig = w.Sig
	return nil
}

// ToEventMessage builds the client-to-relay wire frame ["EVENT", event].
func (e *Event) ToEventMessage() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]interface{}{"EVENT", e}); err != nil {
		return nil, fmt.Errorf("event: to event message: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
