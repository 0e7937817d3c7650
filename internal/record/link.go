package record

// Link is the loaded value of an association: either a single (possibly
// null) record or an ordered collection.
type Link struct {
	one        *Record
	many       []*Record
	collection bool
}

// One returns a single-record link. A nil record models a loaded relation
// whose target does not exist.
func One(r *Record) Link {
	return Link{one: r}
}

// Many returns a collection link. The slice is copied.
func Many(rs ...*Record) Link {
	many := make([]*Record, len(rs))
	copy(many, rs)

	return Link{many: many, collection: true}
}

// IsCollection reports whether the link holds a collection.
func (l Link) IsCollection() bool {
	return l.collection
}

// IsNull reports whether the link is a single relation without a target.
func (l Link) IsNull() bool {
	return !l.collection && l.one == nil
}

// Record returns the single target, or nil for collections and null links.
func (l Link) Record() *Record {
	if l.collection {
		return nil
	}

	return l.one
}

// Records returns the collection members. A single non-null link yields a
// one-element slice.
func (l Link) Records() []*Record {
	if l.collection {
		return l.many
	}

	if l.one == nil {
		return nil
	}

	return []*Record{l.one}
}

// Len returns the number of target records.
func (l Link) Len() int {
	return len(l.Records())
}
