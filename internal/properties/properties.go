// Package properties implements the ordered-merge build property store
// handed to the build database on enqueue.
//
// Each property carries a provenance tag naming the component that set it
// (e.g. "Scheduler", "L10nFanOut"), so operators can tell where a value in
// a submitted buildset came from. Later writes win on key conflict.
package properties

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Property is a single value plus the name of the component that set it.
type Property struct {
	Value  any
	Source string
}

// Set is an insertion-ordered key/value store with provenance.
// The zero value is not usable; call New.
type Set struct {
	order []string
	props map[string]Property
}

func New() *Set {
	return &Set{props: map[string]Property{}}
}

// FromMap builds a Set from a plain map, all tagged with source.
// Map iteration order is not meaningful, so keys are inserted sorted to
// keep the result deterministic.
func FromMap(m map[string]any, source string) *Set {
	s := New()
	for _, k := range sortedKeys(m) {
		s.Set(k, m[k], source)
	}
	return s
}

// Set stores value under key with the given provenance. Re-setting an
// existing key keeps its original position but replaces value and source.
func (s *Set) Set(key string, value any, source string) {
	if _, ok := s.props[key]; !ok {
		s.order = append(s.order, key)
	}
	s.props[key] = Property{Value: value, Source: source}
}

// MergeFrom copies every property from other into s, keeping other's
// provenance. Conflicting keys are overwritten (later merge wins).
// A nil other is a no-op.
func (s *Set) MergeFrom(other *Set) {
	if other == nil {
		return
	}
	for _, k := range other.order {
		p := other.props[k]
		s.Set(k, p.Value, p.Source)
	}
}

// Get returns the value for key.
func (s *Set) Get(key string) (any, bool) {
	p, ok := s.props[key]
	return p.Value, ok
}

// Lookup returns the full property (value + provenance) for key.
func (s *Set) Lookup(key string) (Property, bool) {
	p, ok := s.props[key]
	return p, ok
}

// Keys returns property names in insertion order.
func (s *Set) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Clone returns an independent copy.
func (s *Set) Clone() *Set {
	cp := New()
	cp.MergeFrom(s)
	return cp
}

// ValueJSON renders the value for key as JSON for persistence.
func (s *Set) ValueJSON(key string) (string, error) {
	p, ok := s.props[key]
	if !ok {
		return "", fmt.Errorf("properties: unknown key %q", key)
	}
	b, err := json.Marshal(p.Value)
	if err != nil {
		return "", fmt.Errorf("properties: marshal %q: %w", key, err)
	}
	return string(b), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
