package record

import "fmt"

// Key identifies a record by id and type name.
type Key struct {
	ID   string
	Type string
}

// String returns "type#id".
func (k Key) String() string {
	return k.Type + "#" + k.ID
}

// Record is a single entity instance.
type Record struct {
	// ID is the stable identity of the record within its type.
	ID string
	// Type is the record type name used to look up its descriptor.
	Type string
	// Attributes maps attribute names to scalar values. A present key with a
	// nil value is a defined attribute whose value is null.
	Attributes map[string]any
	// Associations maps association names to loaded values. A missing key
	// means the association was not loaded.
	Associations map[string]Link
}

// New creates a record with empty attribute and association maps.
func New(typeName string, id any) *Record {
	return &Record{
		ID:           FormatID(id),
		Type:         typeName,
		Attributes:   map[string]any{},
		Associations: map[string]Link{},
	}
}

// Key returns the record's identity.
func (r *Record) Key() Key {
	return Key{ID: r.ID, Type: r.Type}
}

// Attribute returns the named attribute and whether the record defines it.
func (r *Record) Attribute(name string) (any, bool) {
	if r == nil || r.Attributes == nil {
		return nil, false
	}

	v, ok := r.Attributes[name]

	return v, ok
}

// Association returns the loaded association and whether it is resident.
func (r *Record) Association(name string) (Link, bool) {
	if r == nil || r.Associations == nil {
		return Link{}, false
	}

	l, ok := r.Associations[name]

	return l, ok
}

// Set assigns an attribute and returns the record for chaining.
func (r *Record) Set(name string, value any) *Record {
	if r.Attributes == nil {
		r.Attributes = map[string]any{}
	}

	r.Attributes[name] = value

	return r
}

// Include marks an association as loaded with the given value.
func (r *Record) Include(name string, link Link) *Record {
	if r.Associations == nil {
		r.Associations = map[string]Link{}
	}

	r.Associations[name] = link

	return r
}

// String returns a short debug representation.
func (r *Record) String() string {
	if r == nil {
		return "<nil>"
	}

	return fmt.Sprintf("%s(%d attrs, %d assocs)", r.Key(), len(r.Attributes), len(r.Associations))
}

// FormatID renders an identity value (string, integer, ...) as a Key id.
func FormatID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
