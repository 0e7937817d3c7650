package presenter

import (
	"errors"
	"fmt"

	"record-presenter/internal/descriptor"
)

// ErrConfiguration matches every *ConfigError through errors.Is.
var ErrConfiguration = errors.New("presenter configuration error")

// Configuration error codes.
const (
	CodeUnknownType         = "unknown_type"
	CodeAttributesUndefined = "attributes_undefined"
)

// ConfigError reports a descriptor that cannot serve a projection. It is
// returned before any store access.
type ConfigError struct {
	Code   string
	Type   string
	Mode   descriptor.Mode
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Mode == "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Reason)
	}

	return fmt.Sprintf("%s (%s): %s", e.Type, e.Mode, e.Reason)
}

// Is makes errors.Is(err, ErrConfiguration) true.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

func unknownType(typeName string, mode descriptor.Mode) *ConfigError {
	return &ConfigError{
		Code:   CodeUnknownType,
		Type:   typeName,
		Mode:   mode,
		Reason: "record type is not registered",
	}
}

func attributesUndefined(typeName string, mode descriptor.Mode) *ConfigError {
	return &ConfigError{
		Code:   CodeAttributesUndefined,
		Type:   typeName,
		Mode:   mode,
		Reason: fmt.Sprintf("%s attributes are not defined", mode),
	}
}
