package filter_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nostrpy/nostrcli/event"
	"github.com/nostrpy/nostrcli/filter"
	"github.com/nostrpy/nostrcli/key"
)

func signed(t *testing.T, kind event.Kind, tags event.Tags) *event.Event {
	t.Helper()
	kp, err := key.Generate()
	require.NoError(t, err)
	e := event.New()
	e.Kind = kind
	e.Tags = tags
	e.Content = "x"
	require.NoError(t, e.Sign(kp))
	return e
}

// TestKindFilter exercises the spec example: kinds=[1] accepts kind 1,
// rejects kind 4.
func TestKindFilter(t *testing.T) {
	f := filter.New()
	f.Kinds = []event.Kind{event.TextNote}

	note := signed(t, event.TextNote, nil)
	dm := signed(t, event.EncryptedDirectMessage, nil)

	require.True(t, f.Matches(note))
	require.False(t, f.Matches(dm))
}

// TestTagFilter exercises the spec example: #p=[X] accepts iff the event
// has a p-tag with value in the set.
func TestTagFilter(t *testing.T) {
	kp, err := key.Generate()
	require.NoError(t, err)

	f := filter.New()
	f.Tags = map[string][]string{"p": {kp.PublicHex()}}

	tagged := signed(t, event.TextNote, event.Tags{{"p", kp.PublicHex()}})
	untagged := signed(t, event.TextNote, nil)
	otherTag := signed(t, event.TextNote, event.Tags{{"p", "deadbeef"}})

	require.True(t, f.Matches(tagged))
	require.False(t, f.Matches(untagged))
	require.False(t, f.Matches(otherTag))
}

func TestEmptyFilterMatchesEverything(t *testing.T) {
	f := filter.New()
	require.True(t, f.Matches(signed(t, event.TextNote, nil)))
	require.True(t, f.Matches(signed(t, event.Reaction, nil)))
}

func TestSinceUntilBounds(t *testing.T) {
	e := event.New()
	kp, err := key.Generate()
	require.NoError(t, err)
	e.CreatedAt = 100
	require.NoError(t, e.Sign(kp))

	since := int64(50)
	until := int64(150)
	f := &filter.Filter{Since: &since, Until: &until}
	require.True(t, f.Matches(e))

	lateSince := int64(101)
	f2 := &filter.Filter{Since: &lateSince}
	require.False(t, f2.Matches(e))

	earlyUntil := int64(99)
	f3 := &filter.Filter{Until: &earlyUntil}
	require.False(t, f3.Matches(e))
}

func TestFilterSetIsDisjunction(t *testing.T) {
	noteFilter := &filter.Filter{Kinds: []event.Kind{event.TextNote}}
	dmFilter := &filter.Filter{Kinds: []event.Kind{event.EncryptedDirectMessage}}
	set := filter.FilterSet{noteFilter, dmFilter}

	note := signed(t, event.TextNote, nil)
	dm := signed(t, event.EncryptedDirectMessage, nil)
	boost := signed(t, event.Boost, nil)

	require.True(t, set.Matches(note))
	require.True(t, set.Matches(dm))
	require.False(t, set.Matches(boost))
}

func TestFilterJSONRoundTrip(t *testing.T) {
	since := int64(100)
	limit := 50
	f := &filter.Filter{
		Kinds: []event.Kind{event.TextNote, event.Boost},
		Since: &since,
		Limit: &limit,
		Tags:  map[string][]string{"e": {"abc", "def"}},
	}

	data, err := json.Marshal(f)
	require.NoError(t, err)
	require.Contains(t, string(data), `"#e":["abc","def"]`)
	require.Contains(t, string(data), `"since":100`)
	require.Contains(t, string(data), `"limit":50`)

	var got filter.Filter
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, f.Kinds, got.Kinds)
	require.Equal(t, *f.Since, *got.Since)
	require.Equal(t, *f.Limit, *got.Limit)
	require.Equal(t, f.Tags, got.Tags)
}
