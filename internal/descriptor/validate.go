package descriptor

import (
	"fmt"
	"slices"

	"record-presenter/internal/diagnostic"
	"record-presenter/internal/match"
)

const maxSuggestions = 3

// Validate checks a descriptor file for structural problems. It doesn't
// look at stored data; see ValidateSchema for that.
func Validate(f *File) *diagnostic.Diagnostics {
	res := &diagnostic.Diagnostics{}
	if f == nil {
		res.AddError("file_is_nil", "descriptor file is nil", "", "")
		return res
	}

	seen := map[string]struct{}{}
	names := make([]string, 0, len(f.Types))

	for i := range f.Types {
		d := &f.Types[i]
		if d.Name == "" {
			res.AddError("type_name_missing", fmt.Sprintf("type #%d has no name", i+1), "", "")
			continue
		}

		if _, ok := seen[d.Name]; ok {
			res.AddError("duplicate_type", fmt.Sprintf("duplicate type %q", d.Name), d.Name, "")
			continue
		}

		seen[d.Name] = struct{}{}
		names = append(names, d.Name)

		validateType(res, Normalize(*d, f.Defaults))
	}

	validatePolicyTypes(res, "", f.Defaults.MissingAssociations, names)

	for i := range f.Types {
		validatePolicyTypes(res, f.Types[i].Name, f.Types[i].MissingAssociations, names)
	}

	return res
}

func validateType(res *diagnostic.Diagnostics, d TypeDescriptor) {
	if !d.PublicAttributes.Defined() {
		res.AddWarning("public_attributes_missing",
			"public_attributes is not declared; public and private views will fail", d.Name, "")
	} else if !d.PrivateAttributes.Defined() {
		res.AddInfo("private_attributes_missing",
			"private_attributes is not declared; private views will fail", d.Name, "")
	}

	seenAttr := map[string]struct{}{}

	for _, a := range d.PublicAttributes.names {
		if _, dup := seenAttr[a]; dup {
			res.AddWarning("duplicate_attribute", fmt.Sprintf("attribute %q is listed twice", a), d.Name, a)
		}

		seenAttr[a] = struct{}{}
	}

	for _, a := range d.PrivateAttributes.names {
		if _, dup := seenAttr[a]; dup {
			res.AddWarning("duplicate_attribute", fmt.Sprintf("private attribute %q is already public", a), d.Name, a)
		}

		seenAttr[a] = struct{}{}
	}

	for _, mode := range d.NestedAssociations.Modes() {
		attrs, _ := d.Attributes(mode)
		if mode == ModePublic && !d.NestedAssociations.IsSplit() {
			// A flat set is shared, so check it against every attribute.
			attrs = append(d.PublicAttributes.Names(), d.PrivateAttributes.names...)
		}

		validateSpecs(res, d, mode, d.Associations(mode), attrs)
	}
}

func validateSpecs(res *diagnostic.Diagnostics, d TypeDescriptor, mode Mode, specs []AssociationSpec, attrs []string) {
	renames := map[string]struct{}{}

	for _, s := range specs {
		path := fmt.Sprintf("%s.%s", mode, s.Rename)
		if s.Association == "" {
			res.AddError("association_missing", "association spec has no association name", d.Name, path)
			continue
		}

		if _, dup := renames[s.Rename]; dup {
			res.AddError("duplicate_rename",
				fmt.Sprintf("output key %q is produced by more than one association", s.Rename), d.Name, path)
		}

		renames[s.Rename] = struct{}{}

		if slices.Contains(attrs, s.Rename) {
			res.AddWarning("rename_shadows_attribute",
				fmt.Sprintf("association output key %q overwrites the attribute of the same name", s.Rename),
				d.Name, path)
		}
	}
}

func validatePolicyTypes(res *diagnostic.Diagnostics, owner string, p Policy, known []string) {
	for t := range p.Types {
		if slices.Contains(known, t) {
			continue
		}

		res.AddWarning("policy_unknown_type",
			fmt.Sprintf("missing_associations override names unknown type %q", t),
			owner, "missing_associations.types."+t, match.Suggest(t, known, maxSuggestions)...)
	}
}

// ValidateSchema checks registered descriptors against what a store knows
// about each type: attributes that are never stored, key attributes with
// no way to resolve them, and associations the store cannot follow.
func ValidateSchema(r *Registry, schema Schema) *diagnostic.Diagnostics {
	res := &diagnostic.Diagnostics{}

	for _, name := range r.Names() {
		d, _ := r.Lookup(name)

		ts, ok := schema[name]
		if !ok {
			res.AddInfo("type_not_stored", "no stored records of this type", name, "")
			continue
		}

		attrs := append(d.PublicAttributes.Names(), d.PrivateAttributes.names...)
		suffix := d.KeySuffix()

		var specs []AssociationSpec
		for _, mode := range d.NestedAssociations.Modes() {
			specs = append(specs, d.Associations(mode)...)
		}

		renames := RenameIndex(specs)
		keys, plain := SplitKeyAttributes(attrs, suffix)

		for _, a := range plain {
			if slices.Contains(ts.Attributes, a) {
				continue
			}

			res.AddWarning("unknown_attribute", fmt.Sprintf("attribute %q is not stored", a), name, a,
				match.Suggest(a, ts.Attributes, maxSuggestions)...)
		}

		for _, k := range keys {
			assoc := ImpliedAssociation(k, suffix, renames)
			if slices.Contains(ts.Attributes, k) || slices.Contains(ts.Associations, assoc) {
				continue
			}

			res.AddWarning("unresolvable_key",
				fmt.Sprintf("key attribute %q is not stored and association %q is unknown", k, assoc),
				name, k, match.Suggest(assoc, ts.Associations, maxSuggestions)...)
		}

		checked := map[string]struct{}{}

		for _, s := range specs {
			if _, done := checked[s.Association]; done {
				continue
			}

			checked[s.Association] = struct{}{}

			if slices.Contains(ts.Associations, s.Association) {
				continue
			}

			res.AddWarning("unknown_association",
				fmt.Sprintf("association %q is not stored", s.Association), name, s.Association,
				match.Suggest(s.Association, ts.Associations, maxSuggestions)...)
		}
	}

	return res
}
