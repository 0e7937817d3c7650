package descriptor

import (
	"errors"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// --- AttributeList YAML methods ---

// UnmarshalYAML accepts a sequence of names or a single name.
func (a *AttributeList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}

		*a = Attributes(name)

		return nil

	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return err
		}

		*a = Attributes(names...)

		return nil

	default:
		return fmt.Errorf("line %d: expected attribute name or list, got %v", node.Line, kindName(node.Kind))
	}
}

// MarshalYAML outputs the names as a sequence.
func (a AttributeList) MarshalYAML() (any, error) {
	if !a.defined {
		return nil, nil
	}

	return a.Names(), nil
}

// --- AssociationSpec YAML methods ---

type associationSpecYAML struct {
	Association string `yaml:"association,omitempty"`
	Attribute   string `yaml:"attribute,omitempty"`
	Rename      string `yaml:"rename,omitempty"`
}

// UnmarshalYAML accepts "user" or {association: user, rename: author}.
func (s *AssociationSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}

		*s = Assoc(name)

		return nil

	case yaml.MappingNode:
		var raw associationSpecYAML
		if err := node.Decode(&raw); err != nil {
			return err
		}

		if raw.Association != "" && raw.Attribute != "" && raw.Association != raw.Attribute {
			return fmt.Errorf("line %d: association %q and attribute %q disagree", node.Line, raw.Association, raw.Attribute)
		}

		name := raw.Association
		if name == "" {
			name = raw.Attribute
		}

		*s = AssociationSpec{Association: name, Rename: raw.Rename}.Normalize()

		return nil

	default:
		return fmt.Errorf("line %d: expected association name or mapping, got %v", node.Line, kindName(node.Kind))
	}
}

// MarshalYAML outputs a bare name unless the association is renamed.
func (s AssociationSpec) MarshalYAML() (any, error) {
	n := s.Normalize()
	if !n.IsRenamed() {
		return n.Association, nil
	}

	return associationSpecYAML{Association: n.Association, Rename: n.Rename}, nil
}

// --- AssociationSet YAML methods ---

type splitYAML struct {
	Public  []AssociationSpec `yaml:"public"`
	Private []AssociationSpec `yaml:"private"`
}

// UnmarshalYAML accepts a sequence (flat) or {public: [...], private: [...]}.
func (s *AssociationSet) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var specs []AssociationSpec
		if err := node.Decode(&specs); err != nil {
			return err
		}

		*s = Flat(specs...)

		return nil

	case yaml.MappingNode:
		if err := onlyKeys(node, "public", "private"); err != nil {
			return fmt.Errorf("nested_associations: %w", err)
		}

		var raw splitYAML
		if err := node.Decode(&raw); err != nil {
			return err
		}

		*s = Split(raw.Public, raw.Private)

		return nil

	default:
		return fmt.Errorf("line %d: expected association list or public/private mapping, got %v",
			node.Line, kindName(node.Kind))
	}
}

// MarshalYAML outputs a sequence for flat sets and a mapping for split sets.
func (s AssociationSet) MarshalYAML() (any, error) {
	if s.split {
		return splitYAML{Public: s.public, Private: s.private}, nil
	}

	return s.flat, nil
}

// --- Action and Policy YAML methods ---

// UnmarshalYAML parses an action name.
func (a *Action) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected action name, got %v", node.Line, kindName(node.Kind))
	}

	parsed, err := ParseAction(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*a = parsed

	return nil
}

// MarshalYAML outputs the action name.
func (a Action) MarshalYAML() (any, error) {
	return a.String(), nil
}

type policyYAML struct {
	Default Action            `yaml:"default,omitempty"`
	Types   map[string]Action `yaml:"types,omitempty"`
}

// UnmarshalYAML accepts an action name, or {default: action, types: {type: action}}.
func (p *Policy) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var a Action
		if err := a.UnmarshalYAML(node); err != nil {
			return err
		}

		*p = Policy{Default: a}

		return nil

	case yaml.MappingNode:
		if err := onlyKeys(node, "default", "types"); err != nil {
			return fmt.Errorf("missing_associations: %w", err)
		}

		var raw policyYAML
		if err := node.Decode(&raw); err != nil {
			return err
		}

		*p = Policy{Default: raw.Default, Types: raw.Types}

		return nil

	default:
		return fmt.Errorf("line %d: expected action or policy mapping, got %v", node.Line, kindName(node.Kind))
	}
}

// MarshalYAML outputs a bare action when there are no overrides.
func (p Policy) MarshalYAML() (any, error) {
	if len(p.Types) == 0 {
		return p.Default, nil
	}

	return policyYAML(p), nil
}

// IsZero reports whether the action is unset (used by YAML omitempty).
func (a Action) IsZero() bool {
	return a == ActionUnset
}

// onlyKeys rejects mapping keys outside allowed. This is what keeps a
// record type named like a policy or mode key from being misread.
func onlyKeys(node *yaml.Node, allowed ...string) error {
	var unknown []string

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value

		ok := false

		for _, a := range allowed {
			if key == a {
				ok = true
				break
			}
		}

		if !ok {
			unknown = append(unknown, key)
		}
	}

	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)

	return fmt.Errorf("line %d: unexpected keys %v (allowed: %v)", node.Line, unknown, allowed)
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

var errNilFile = errors.New("descriptor file is nil")
