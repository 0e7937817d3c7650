package record

import "strings"

// Path is the ordered set of records on the current recursion stack of one
// projection call. The zero value is an empty path.
//
// Push never mutates the receiver, so a Path can be handed to concurrent
// branches without synchronization.
type Path struct {
	keys []Key
}

// NewPath builds a path from keys, outermost first.
func NewPath(keys ...Key) Path {
	return Path{}.Push(keys...)
}

// Push returns a copy of the path with keys appended.
func (p Path) Push(keys ...Key) Path {
	next := make([]Key, len(p.keys), len(p.keys)+len(keys))
	copy(next, p.keys)

	return Path{keys: append(next, keys...)}
}

// Contains reports whether k is already on the path.
func (p Path) Contains(k Key) bool {
	for _, existing := range p.keys {
		if existing == k {
			return true
		}
	}

	return false
}

// Len returns the depth of the path.
func (p Path) Len() int {
	return len(p.keys)
}

// Keys returns a copy of the path entries.
func (p Path) Keys() []Key {
	out := make([]Key, len(p.keys))
	copy(out, p.keys)

	return out
}

// String renders the path as "a#1 > b#2".
func (p Path) String() string {
	parts := make([]string, len(p.keys))
	for i, k := range p.keys {
		parts[i] = k.String()
	}

	return strings.Join(parts, " > ")
}
