// Package filter implements the nostr REQ filter object: its seven-step
// short-circuit match against an event, and a FilterSet (OR of filters)
// mirroring the wire format of a REQ message's filter list.
package filter

import "github.com/nostrpy/nostrcli/event"

// Filter constrains which events a subscription receives. A zero-value
// Filter (every field nil/empty) matches every event.
type Filter struct {
	IDs     []string
	Kinds   []event.Kind
	Authors []string
	Since   *int64
	Until   *int64
	// Tags holds single-letter tag constraints keyed WITHOUT the leading
	// '#' (e.g. "e", "p"); the wire representation uses "#e", "#p" keys.
	Tags  map[string][]string
	Limit *int
}

// New returns an empty Filter matching every event.
func New() *Filter { return &Filter{} }

// Matches implements spec's seven-step short-circuit match.
func (f *Filter) Matches(e *event.Event) bool {
	if len(f.IDs) > 0 && !containsString(f.IDs, e.ID()) {
		return false
	}
	if len(f.Kinds) > 0 && !containsKind(f.Kinds, e.Kind) {
		return false
	}
	if len(f.Authors) > 0 && !containsString(f.Authors, e.PubKey) {
		return false
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	if len(f.Tags) > 0 {
		if len(e.Tags) == 0 {
			return false
		}
		for name, values := range f.Tags {
			if !matchesAnyTag(e, name, values) {
				return false
			}
		}
	}
	return true
}

func matchesAnyTag(e *event.Event, name string, values []string) bool {
	for _, tag := range e.Tags {
		if len(tag) < 2 || tag[0] != name {
			continue
		}
		if containsString(values, tag[1]) {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsKind(list []event.Kind, v event.Kind) bool {
	for _, k := range list {
		if k == v {
			return true
		}
	}
	return false
}

// FilterSet is an ordered sequence of filters; an event matches the set
// if it matches any member (disjunction).
type FilterSet []*Filter

// Matches reports whether e matches any filter in the set. An empty set
// matches nothing, since a subscription always carries at least one
// filter in practice — callers constructing a zero-filter subscription
// should include an explicit empty Filter to match everything.
func (fs FilterSet) Matches(e *event.Event) bool {
	for _, f := range fs {
		if f.Matches(e) {
			return true
		}
	}
	return false
}
