// Package descriptor provides the per-type presentation configuration:
// attribute allow-lists, nested association specs, presentation key and
// missing-association policy, plus the YAML file format, registry and
// validation around them.
//
// # File Overview
//
//	version: "1"
//	defaults:
//	  presentation_key: uuid        # default "uuid"
//	  missing_associations: load    # default "load"
//	types:
//	  - name: post
//	    public_attributes: [uuid, title, authorUuid]
//	    private_attributes: [followers]
//	    nested_associations:
//	      - association: user
//	        rename: author
//	  - name: user
//	    public_attributes: [uuid, name]
//	    private_attributes: [role]
//	    nested_associations:
//	      public: [team]
//	      private: [team, posts]
//	    missing_associations:
//	      default: warn
//	      types:
//	        comment: disabled
//
// # Association Specs
//
// A bare string names an association whose output key is the same name. A
// mapping {association, rename} reads one association and writes it under
// another key. The key "attribute" is accepted as an alias of "association".
//
// # Missing Association Policy
//
// A policy is either a single action (disabled, load, warn) or a mapping
// with a default action and per-type overrides keyed by record type name.
// Overrides resolve against the type of the record being projected. A
// policy with overrides but no default resolves unlisted types to disabled.
package descriptor
