package descriptor

import (
	"fmt"
	"strings"
)

//go:generate go tool stringer -type=Action -linecomment -output=action_string.go

// Action is what the projector does when an association is not loaded.
type Action int

const (
	ActionUnset    Action = iota // unset
	ActionDisabled               // disabled
	ActionLoad                   // load
	ActionWarn                   // warn
)

// ParseAction parses an action name. "false", "off" and "none" are
// accepted as spellings of disabled.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ActionUnset, nil
	case "disabled", "false", "off", "none":
		return ActionDisabled, nil
	case "load":
		return ActionLoad, nil
	case "warn":
		return ActionWarn, nil
	default:
		return ActionUnset, fmt.Errorf("unknown missing association action %q", s)
	}
}

// Policy decides the Action per record type.
type Policy struct {
	// Default applies to types without an override.
	Default Action
	// Types holds per-type overrides keyed by record type name.
	Types map[string]Action
}

// Disabled never loads and never warns.
func Disabled() Policy { return Policy{Default: ActionDisabled} }

// Load lazily fetches missing associations.
func Load() Policy { return Policy{Default: ActionLoad} }

// Warn reports missing associations to the diagnostic sink.
func Warn() Policy { return Policy{Default: ActionWarn} }

// PerType builds a policy that only acts for the listed types.
func PerType(types map[string]Action) Policy {
	cp := make(map[string]Action, len(types))
	for k, v := range types {
		cp[k] = v
	}

	return Policy{Types: cp}
}

// With returns a copy of p with an override for typeName.
func (p Policy) With(typeName string, a Action) Policy {
	cp := PerType(p.Types)
	cp.Default = p.Default
	cp.Types[typeName] = a

	return cp
}

// IsZero reports whether the policy was never set.
func (p Policy) IsZero() bool {
	return p.Default == ActionUnset && len(p.Types) == 0
}

// Resolve returns the action for a record of type typeName.
func (p Policy) Resolve(typeName string) Action {
	if a, ok := p.Types[typeName]; ok && a != ActionUnset {
		return a
	}

	if p.Default == ActionUnset {
		return ActionDisabled
	}

	return p.Default
}

// String renders the policy the way it is written in YAML.
func (p Policy) String() string {
	if len(p.Types) == 0 {
		return p.Default.String()
	}

	return fmt.Sprintf("{default: %s, types: %v}", p.Default, p.Types)
}
