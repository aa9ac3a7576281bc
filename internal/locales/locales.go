// Package locales parses locale list files (all-locales / shipped-locales
// style) into an ordered locale -> platform-restriction mapping.
//
// File format: one locale per line; the first whitespace-separated token is
// the locale id, any remaining tokens restrict the locale to those build
// platforms (e.g. "ja linux win32"). A locale with no platform tokens is
// built everywhere. No comments, no escaping.
package locales

import (
	"sort"
)

// PlatformSet is a set of platform restriction tokens, stored as given in
// the source file (no normalization).
type PlatformSet map[string]struct{}

func NewPlatformSet(platforms ...string) PlatformSet {
	ps := make(PlatformSet, len(platforms))
	for _, p := range platforms {
		ps[p] = struct{}{}
	}
	return ps
}

func (ps PlatformSet) Has(platform string) bool {
	_, ok := ps[platform]
	return ok
}

func (ps PlatformSet) Len() int { return len(ps) }

// Union adds every platform from other into ps.
func (ps PlatformSet) Union(other PlatformSet) {
	for p := range other {
		ps[p] = struct{}{}
	}
}

// Sorted returns the platforms in lexical order (for stable logs/output).
func (ps PlatformSet) Sorted() []string {
	out := make([]string, 0, len(ps))
	for p := range ps {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (ps PlatformSet) Equal(other PlatformSet) bool {
	if len(ps) != len(other) {
		return false
	}
	for p := range ps {
		if _, ok := other[p]; !ok {
			return false
		}
	}
	return true
}

// List is an ordered mapping from locale id to its platform restrictions.
// Iteration order is first-seen line order. An empty restriction set means
// "build on all platforms".
//
// Locale ids are unique within a List: adding the same id again unions the
// restriction sets instead of overwriting.
type List struct {
	order   []string
	entries map[string]PlatformSet
}

func NewList() *List {
	return &List{entries: map[string]PlatformSet{}}
}

// Add records a locale with the given platform restrictions. Repeated adds
// for the same id union their restrictions. Empty ids are ignored.
func (l *List) Add(id string, platforms ...string) {
	if id == "" {
		return
	}
	if ps, ok := l.entries[id]; ok {
		ps.Union(NewPlatformSet(platforms...))
		return
	}
	l.order = append(l.order, id)
	l.entries[id] = NewPlatformSet(platforms...)
}

// Locales returns the locale ids in first-seen order.
// Callers must not rely on the order for correctness.
func (l *List) Locales() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Restrictions returns the platform restriction set for id (nil if absent).
func (l *List) Restrictions(id string) PlatformSet {
	return l.entries[id]
}

func (l *List) Has(id string) bool {
	_, ok := l.entries[id]
	return ok
}

func (l *List) Len() int { return len(l.order) }

// Clone returns a deep copy. The zero-entry case clones to an empty List.
func (l *List) Clone() *List {
	cp := NewList()
	for _, id := range l.order {
		cp.order = append(cp.order, id)
		ps := NewPlatformSet()
		ps.Union(l.entries[id])
		cp.entries[id] = ps
	}
	return cp
}

func (l *List) Equal(other *List) bool {
	if l.Len() != other.Len() {
		return false
	}
	for id, ps := range l.entries {
		ops, ok := other.entries[id]
		if !ok || !ps.Equal(ops) {
			return false
		}
	}
	return true
}
