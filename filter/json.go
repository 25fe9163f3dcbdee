package filter

import (
	"encoding/json"
	"fmt"

	"github.com/nostrpy/nostrcli/event"
)

// MarshalJSON emits the wire object: fixed keys (ids, authors, kinds,
// since, until, limit) plus one "#x" key per tag constraint. Custom
// marshaling is unavoidable here: Tags' keys are dynamic ("#e", "#p", any
// single letter), something struct tags can't express, so this builds the
// object through a map rather than the teacher's byte-scanner — stdlib
// encoding/json is the better idiomatic fit for this particular shape (see
// DESIGN.md).
func (f *Filter) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{}
	if len(f.IDs) > 0 {
		m["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		m["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if f.Since != nil {
		m["since"] = *f.Since
	}
	if f.Until != nil {
		m["until"] = *f.Until
	}
	if f.Limit != nil {
		m["limit"] = *f.Limit
	}
	for name, values := range f.Tags {
		m["#"+name] = values
	}
	return json.Marshal(m)
}

// UnmarshalJSON parses the wire object, routing any "#x" key into Tags
// and everything else into the fixed fields.
func (f *Filter) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("filter: unmarshal: %w", err)
	}

	*f = Filter{}
	for key, v := range raw {
		switch key {
		case "ids":
			if err := json.Unmarshal(v, &f.IDs); err != nil {
				return fmt.Errorf("filter: ids: %w", err)
			}
		case "authors":
			if err := json.Unmarshal(v, &f.Authors); err != nil {
				return fmt.Errorf("filter: authors: %w", err)
			}
		case "kinds":
			var kinds []event.Kind
			if err := json.Unmarshal(v, &kinds); err != nil {
				return fmt.Errorf("filter: kinds: %w", err)
			}
			f.Kinds = kinds
		case "since":
			var since int64
			if err := json.Unmarshal(v, &since); err != nil {
				return fmt.Errorf("filter: since: %w", err)
			}
			f.Since = &since
		case "until":
			var until int64
			if err := json.Unmarshal(v, &until); err != nil {
				return fmt.Errorf("filter: until: %w", err)
			}
			f.Until = &until
		case "limit":
			var limit int
			if err := json.Unmarshal(v, &limit); err != nil {
				return fmt.Errorf("filter: limit: %w", err)
			}
			f.Limit = &limit
		default:
			if len(key) >= 2 && key[0] == '#' {
				var values []string
				if err := json.Unmarshal(v, &values); err != nil {
					return fmt.Errorf("filter: tag %s: %w", key, err)
				}
				if f.Tags == nil {
					f.Tags = map[string][]string{}
				}
				f.Tags[key[1:]] = values
			}
		}
	}
	return nil
}
