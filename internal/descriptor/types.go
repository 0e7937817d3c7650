package descriptor

import (
	"record-presenter/internal/common"
)

// DefaultPresentationKey is the public identifier attribute used when a
// descriptor does not name one.
const DefaultPresentationKey = "uuid"

// Mode selects which attributes and associations a projection exposes.
type Mode string

const (
	// ModePublic projects public attributes and public associations.
	ModePublic Mode = "public"
	// ModePrivate projects public and private attributes and private associations.
	ModePrivate Mode = "private"
)

// ParseMode parses "public" or "private".
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModePublic, ModePrivate:
		return Mode(s), true
	default:
		return "", false
	}
}

// AttributeList is an ordered list of attribute names that remembers
// whether it was declared at all: an undefined list is a configuration
// error, an empty one is not.
type AttributeList struct {
	names   []string
	defined bool
}

// Attributes declares an attribute list.
func Attributes(names ...string) AttributeList {
	return AttributeList{names: common.Concat(names), defined: true}
}

// Defined reports whether the list was declared.
func (a AttributeList) Defined() bool {
	return a.defined
}

// Names returns a copy of the declared names.
func (a AttributeList) Names() []string {
	return common.Concat(a.names)
}

// Len returns the number of names.
func (a AttributeList) Len() int {
	return len(a.names)
}

// IsZero reports whether the list is undefined (used by YAML omitempty).
func (a AttributeList) IsZero() bool {
	return !a.defined
}

// AssociationSpec names the association read from a record and the key its
// projection is written under.
type AssociationSpec struct {
	Association string
	Rename      string
}

// Assoc is an AssociationSpec whose output key equals the association name.
func Assoc(name string) AssociationSpec {
	return AssociationSpec{Association: name, Rename: name}
}

// Renamed is an AssociationSpec reading association and writing it under rename.
func Renamed(association, rename string) AssociationSpec {
	return AssociationSpec{Association: association, Rename: rename}
}

// Normalize fills Rename from Association when it is empty.
func (s AssociationSpec) Normalize() AssociationSpec {
	if s.Rename == "" {
		s.Rename = s.Association
	}

	return s
}

// IsRenamed reports whether the output key differs from the association.
func (s AssociationSpec) IsRenamed() bool {
	n := s.Normalize()
	return n.Rename != n.Association
}

// NormalizeSpecs returns the specs with every Rename filled in.
func NormalizeSpecs(specs []AssociationSpec) []AssociationSpec {
	out := make([]AssociationSpec, len(specs))
	for i, s := range specs {
		out[i] = s.Normalize()
	}

	return out
}

// RenameIndex maps each renamed output key back to its association.
func RenameIndex(specs []AssociationSpec) map[string]string {
	idx := make(map[string]string)

	for _, s := range specs {
		s = s.Normalize()
		if s.Rename != s.Association {
			idx[s.Rename] = s.Association
		}
	}

	return idx
}

// AssociationSet is either one flat list used by both modes, or separate
// public and private lists.
type AssociationSet struct {
	flat    []AssociationSpec
	public  []AssociationSpec
	private []AssociationSpec
	split   bool
}

// Flat declares associations shared by both modes.
func Flat(specs ...AssociationSpec) AssociationSet {
	return AssociationSet{flat: NormalizeSpecs(specs)}
}

// Split declares separate public and private associations.
func Split(public, private []AssociationSpec) AssociationSet {
	return AssociationSet{
		public:  NormalizeSpecs(public),
		private: NormalizeSpecs(private),
		split:   true,
	}
}

// IsSplit reports whether the set has separate public and private lists.
func (s AssociationSet) IsSplit() bool {
	return s.split
}

// For returns the specs used by mode.
func (s AssociationSet) For(mode Mode) []AssociationSpec {
	if !s.split {
		return NormalizeSpecs(s.flat)
	}

	if mode == ModePrivate {
		return NormalizeSpecs(s.private)
	}

	return NormalizeSpecs(s.public)
}

// IsZero reports whether no association was declared.
func (s AssociationSet) IsZero() bool {
	return !s.split && len(s.flat) == 0
}

// Modes returns the modes whose association lists differ; a flat set
// reports only ModePublic since both modes share it.
func (s AssociationSet) Modes() []Mode {
	if s.split {
		return []Mode{ModePublic, ModePrivate}
	}

	return []Mode{ModePublic}
}

// TypeDescriptor is the presentation configuration of one record type.
type TypeDescriptor struct {
	// Name is the record type name.
	Name string `yaml:"name"`
	// PublicAttributes are exposed by every projection.
	PublicAttributes AttributeList `yaml:"public_attributes,omitempty"`
	// PrivateAttributes are appended to PublicAttributes in private mode.
	PrivateAttributes AttributeList `yaml:"private_attributes,omitempty"`
	// NestedAssociations are projected recursively.
	NestedAssociations AssociationSet `yaml:"nested_associations,omitempty"`
	// PresentationKey is the public identifier attribute (default "uuid").
	PresentationKey string `yaml:"presentation_key,omitempty"`
	// MissingAssociations decides what happens to associations that were not loaded.
	MissingAssociations Policy `yaml:"missing_associations,omitempty"`
}

// Attributes returns the attribute list for mode and whether every list it
// is built from was declared.
func (d *TypeDescriptor) Attributes(mode Mode) ([]string, bool) {
	if mode == ModePrivate {
		if !d.PublicAttributes.Defined() || !d.PrivateAttributes.Defined() {
			return nil, false
		}

		return common.Concat(d.PublicAttributes.names, d.PrivateAttributes.names), true
	}

	if !d.PublicAttributes.Defined() {
		return nil, false
	}

	return d.PublicAttributes.Names(), true
}

// Associations returns the association specs for mode.
func (d *TypeDescriptor) Associations(mode Mode) []AssociationSpec {
	return d.NestedAssociations.For(mode)
}

// KeySuffix is the capitalized presentation key marking key attributes:
// "Uuid" for "uuid".
func (d *TypeDescriptor) KeySuffix() string {
	return KeySuffix(d.presentationKey())
}

func (d *TypeDescriptor) presentationKey() string {
	if d.PresentationKey == "" {
		return DefaultPresentationKey
	}

	return d.PresentationKey
}

// KeySuffix capitalizes a presentation key name.
func KeySuffix(presentationKey string) string {
	return common.Capitalize(presentationKey)
}

// SplitKeyAttributes partitions attrs into key attributes (ending with
// suffix, e.g. "authorUuid") and plain attributes, keeping their order.
func SplitKeyAttributes(attrs []string, suffix string) (keys, plain []string) {
	for _, a := range attrs {
		if _, ok := common.TrimSuffixStrict(a, suffix); ok {
			keys = append(keys, a)
		} else {
			plain = append(plain, a)
		}
	}

	return keys, plain
}

// ImpliedAssociation returns the association a key attribute refers to,
// translated through renames: "authorUuid" -> "author" -> "user".
func ImpliedAssociation(attr, suffix string, renames map[string]string) string {
	name, _ := common.TrimSuffixStrict(attr, suffix)
	if target, ok := renames[name]; ok {
		return target
	}

	return name
}

// Defaults are registry-wide settings applied to descriptors that leave
// them unset.
type Defaults struct {
	PresentationKey     string `yaml:"presentation_key,omitempty"`
	MissingAssociations Policy `yaml:"missing_associations,omitempty"`
}

// DefaultDefaults returns the built-in defaults: "uuid" and load.
func DefaultDefaults() Defaults {
	return Defaults{
		PresentationKey:     DefaultPresentationKey,
		MissingAssociations: Load(),
	}
}

// File is a descriptor YAML document.
type File struct {
	Version  string           `yaml:"version"`
	Defaults Defaults         `yaml:"defaults,omitempty"`
	Types    []TypeDescriptor `yaml:"types"`
}

// TypeSchema lists what a store knows about one record type.
type TypeSchema struct {
	Attributes   []string
	Associations []string
}

// Schema maps record type names to what a store knows about them.
type Schema map[string]TypeSchema
